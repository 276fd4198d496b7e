package lienos_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lienos "github.com/3piecechickendinner/LeinOS"
	"github.com/3piecechickendinner/LeinOS/deadline"
	"github.com/3piecechickendinner/LeinOS/id"
	"github.com/3piecechickendinner/LeinOS/lien"
	"github.com/3piecechickendinner/LeinOS/notification"
	"github.com/3piecechickendinner/LeinOS/payment"
	"github.com/3piecechickendinner/LeinOS/store/memory"
	"github.com/3piecechickendinner/LeinOS/tenant"
	"github.com/3piecechickendinner/LeinOS/types"
)

var (
	countyA = tenant.MustParse("maricopa-az")
	countyB = tenant.MustParse("harris-tx")

	// All engine tests run against a frozen clock.
	frozenNow = time.Date(2025, 5, 15, 12, 0, 0, 0, time.UTC)
)

func newEngine(t *testing.T, opts ...lienos.Option) (*lienos.Engine, *memory.Store) {
	t.Helper()
	st := memory.New()
	opts = append([]lienos.Option{lienos.WithClock(func() time.Time { return frozenNow })}, opts...)
	return lienos.New(st, opts...), st
}

func activeLien() *lien.Lien {
	return &lien.Lien{
		CertificateNumber:  "2024-001234",
		Principal:          types.USD(850000),
		AnnualRate:         types.Percent(18),
		PurchaseDate:       types.MustParseDate("2024-05-15"),
		RedemptionDeadline: types.MustParseDate("2026-05-15"),
		County:             "Maricopa",
		State:              "AZ",
	}
}

func TestCreateLienAssignsIdentityAndDeadline(t *testing.T) {
	e, st := newEngine(t)
	ctx := context.Background()

	l := activeLien()
	require.NoError(t, e.CreateLien(ctx, countyA, l))

	assert.False(t, l.ID.IsNil())
	assert.Equal(t, lien.StatusActive, l.Status)
	assert.Equal(t, int64(1), l.Revision)

	inst, err := st.GetDeadlineByLien(ctx, countyA, l.ID, deadline.KindRedemption)
	require.NoError(t, err)
	assert.Equal(t, deadline.StatusPending, inst.Status)
	assert.Equal(t, l.RedemptionDeadline, inst.DueDate)
	assert.Empty(t, inst.FiredThresholds)
}

func TestCreateLienListsEveryViolation(t *testing.T) {
	e, _ := newEngine(t)

	l := &lien.Lien{
		Principal:          types.USD(-100),
		PurchaseDate:       types.MustParseDate("2025-05-15"),
		RedemptionDeadline: types.MustParseDate("2024-05-15"),
	}
	err := e.CreateLien(context.Background(), countyA, l)
	require.Error(t, err)
	assert.True(t, lienos.IsValidation(err))

	var verr lienos.ValidationErrors
	require.ErrorAs(t, err, &verr)
	fields := make([]string, 0, len(verr.Errors))
	for _, v := range verr.Errors {
		fields = append(fields, v.Field)
	}
	assert.Contains(t, fields, "certificate_number")
	assert.Contains(t, fields, "principal")
	assert.Contains(t, fields, "redemption_deadline")
}

func TestCreateLienRejectsMissingTenant(t *testing.T) {
	e, _ := newEngine(t)
	err := e.CreateLien(context.Background(), tenant.ID{}, activeLien())
	assert.ErrorIs(t, err, lienos.ErrMissingTenant)
}

func TestCalculateInterestFullYear(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()

	l := activeLien()
	require.NoError(t, e.CreateLien(ctx, countyA, l))

	res, err := e.CalculateInterest(ctx, countyA, l.ID, types.MustParseDate("2025-05-15"))
	require.NoError(t, err)
	assert.Equal(t, 365, res.DaysHeld)
	assert.Equal(t, types.USD(153000), res.Interest)
	assert.Equal(t, types.USD(1003000), res.TotalValue)
}

func TestCalculateInterestDefaultsToToday(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()

	l := activeLien()
	require.NoError(t, e.CreateLien(ctx, countyA, l))

	// Frozen clock is exactly one year after purchase.
	res, err := e.CalculateInterest(ctx, countyA, l.ID, types.Date{})
	require.NoError(t, err)
	assert.Equal(t, 365, res.DaysHeld)
}

func TestCalculateInterestBeforePurchase(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()

	l := activeLien()
	require.NoError(t, e.CreateLien(ctx, countyA, l))

	_, err := e.CalculateInterest(ctx, countyA, l.ID, types.MustParseDate("2024-05-14"))
	assert.ErrorIs(t, err, lienos.ErrInvalidAsOfDate)
}

func TestRecordPaymentPartialLeavesActive(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()

	l := activeLien()
	require.NoError(t, e.CreateLien(ctx, countyA, l))

	p, err := e.RecordPayment(ctx, countyA, &payment.Payment{
		LienID:      l.ID,
		Amount:      types.USD(100000),
		AppliedDate: types.MustParseDate("2025-05-15"),
		Reference:   "check-88",
	})
	require.NoError(t, err)
	assert.False(t, p.ID.IsNil())

	got, err := e.GetLien(ctx, countyA, l.ID)
	require.NoError(t, err)
	assert.Equal(t, lien.StatusActive, got.Status)

	ns, err := e.ListNotifications(ctx, countyA, notification.Filter{Type: notification.TypePaymentReceived})
	require.NoError(t, err)
	require.Len(t, ns, 1)
	assert.Equal(t, notification.PriorityNormal, ns[0].Priority)
	assert.Contains(t, ns[0].Message, "2024-001234")
}

func TestRecordPaymentRedeemsAtFullBalance(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()

	l := activeLien()
	require.NoError(t, e.CreateLien(ctx, countyA, l))

	// $10,030.00 covers principal plus one year of 18% simple interest.
	_, err := e.RecordPayment(ctx, countyA, &payment.Payment{
		LienID:      l.ID,
		Amount:      types.USD(1003000),
		AppliedDate: types.MustParseDate("2025-05-15"),
	})
	require.NoError(t, err)

	got, err := e.GetLien(ctx, countyA, l.ID)
	require.NoError(t, err)
	assert.Equal(t, lien.StatusRedeemed, got.Status)

	// The deadline watch is closed alongside the transition.
	ds, err := e.ListUpcomingDeadlines(ctx, countyA, 400)
	require.NoError(t, err)
	assert.Empty(t, ds)

	ns, err := e.ListNotifications(ctx, countyA, notification.Filter{Type: notification.TypeLienRedeemed})
	require.NoError(t, err)
	require.Len(t, ns, 1)
	assert.Equal(t, notification.PriorityHigh, ns[0].Priority)

	// A second payment against the redeemed lien is rejected.
	_, err = e.RecordPayment(ctx, countyA, &payment.Payment{
		LienID:      l.ID,
		Amount:      types.USD(5000),
		AppliedDate: types.MustParseDate("2025-05-16"),
	})
	assert.ErrorIs(t, err, lienos.ErrLienNotActive)
}

func TestRecordPaymentWithinEpsilonRedeems(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()

	l := activeLien()
	require.NoError(t, e.CreateLien(ctx, countyA, l))

	// One cent short of the accrued total still redeems.
	_, err := e.RecordPayment(ctx, countyA, &payment.Payment{
		LienID:      l.ID,
		Amount:      types.USD(1002999),
		AppliedDate: types.MustParseDate("2025-05-15"),
	})
	require.NoError(t, err)

	got, err := e.GetLien(ctx, countyA, l.ID)
	require.NoError(t, err)
	assert.Equal(t, lien.StatusRedeemed, got.Status)
}

func TestRecordPaymentDuplicateTuple(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()

	l := activeLien()
	require.NoError(t, e.CreateLien(ctx, countyA, l))

	p := payment.Payment{
		LienID:      l.ID,
		Amount:      types.USD(50000),
		AppliedDate: types.MustParseDate("2025-05-15"),
		Reference:   "wire-1201",
	}
	first := p
	_, err := e.RecordPayment(ctx, countyA, &first)
	require.NoError(t, err)

	second := p
	_, err = e.RecordPayment(ctx, countyA, &second)
	assert.ErrorIs(t, err, lienos.ErrDuplicatePayment)
}

func TestRecordPaymentValidation(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()

	l := activeLien()
	require.NoError(t, e.CreateLien(ctx, countyA, l))

	_, err := e.RecordPayment(ctx, countyA, &payment.Payment{
		LienID:      l.ID,
		Amount:      types.USD(0),
		AppliedDate: types.MustParseDate("2025-05-15"),
	})
	assert.ErrorIs(t, err, lienos.ErrInvalidAmount)

	_, err = e.RecordPayment(ctx, countyA, &payment.Payment{
		LienID:      l.ID,
		Amount:      types.USD(1000),
		AppliedDate: types.MustParseDate("2024-05-14"),
	})
	assert.ErrorIs(t, err, lienos.ErrPaymentBeforeBuy)

	_, err = e.RecordPayment(ctx, countyA, &payment.Payment{
		LienID:      id.NewLienID(),
		Amount:      types.USD(1000),
		AppliedDate: types.MustParseDate("2025-05-15"),
	})
	assert.True(t, lienos.IsNotFound(err))
}

func TestSweepFiresEachThresholdOnce(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()

	// Deadline 29 days from the frozen clock: 90, 60, and 30 day
	// thresholds are all due on the first sweep.
	l := activeLien()
	l.RedemptionDeadline = types.MustParseDate("2025-06-13")
	require.NoError(t, e.CreateLien(ctx, countyA, l))

	first, err := e.RunDeadlineSweep(ctx, countyA)
	require.NoError(t, err)
	require.Len(t, first.Alerts, 3)
	assert.Equal(t, []int{90, 60, 30}, []int{first.Alerts[0].Threshold, first.Alerts[1].Threshold, first.Alerts[2].Threshold})
	for _, a := range first.Alerts {
		assert.Equal(t, 29, a.DaysRemaining)
		assert.Equal(t, l.ID, a.LienID)
	}

	// Sweeping again the same day fires nothing new.
	second, err := e.RunDeadlineSweep(ctx, countyA)
	require.NoError(t, err)
	assert.Empty(t, second.Alerts)

	ns, err := e.ListNotifications(ctx, countyA, notification.Filter{Type: notification.TypeDeadline})
	require.NoError(t, err)
	assert.Len(t, ns, 3)
}

func TestSweepEscalatesPriorityNearDue(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()

	l := activeLien()
	l.RedemptionDeadline = types.MustParseDate("2025-05-20") // 5 days out
	require.NoError(t, e.CreateLien(ctx, countyA, l))

	res, err := e.RunDeadlineSweep(ctx, countyA)
	require.NoError(t, err)
	require.NotEmpty(t, res.Alerts)
	for _, a := range res.Alerts {
		require.NotNil(t, a.Notification)
		assert.Equal(t, notification.PriorityHigh, a.Notification.Priority)
	}
}

func TestSweepExpiresPastDueLiens(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()

	l := activeLien()
	l.RedemptionDeadline = types.MustParseDate("2025-05-01") // two weeks overdue
	require.NoError(t, e.CreateLien(ctx, countyA, l))

	res, err := e.RunDeadlineSweep(ctx, countyA)
	require.NoError(t, err)
	require.Len(t, res.Expired, 1)
	assert.Equal(t, l.ID, res.Expired[0])

	got, err := e.GetLien(ctx, countyA, l.ID)
	require.NoError(t, err)
	assert.Equal(t, lien.StatusExpired, got.Status)

	// The watch is completed, so the next sweep has nothing to do.
	second, err := e.RunDeadlineSweep(ctx, countyA)
	require.NoError(t, err)
	assert.Empty(t, second.Alerts)
	assert.Empty(t, second.Expired)
}

func TestSweepOrdersAlertsSoonestFirst(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()

	far := activeLien()
	far.CertificateNumber = "2024-005555"
	far.RedemptionDeadline = types.MustParseDate("2025-08-10") // 87 days
	require.NoError(t, e.CreateLien(ctx, countyA, far))

	near := activeLien()
	near.CertificateNumber = "2024-006666"
	near.RedemptionDeadline = types.MustParseDate("2025-05-27") // 12 days
	require.NoError(t, e.CreateLien(ctx, countyA, near))

	res, err := e.RunDeadlineSweep(ctx, countyA)
	require.NoError(t, err)
	require.NotEmpty(t, res.Alerts)

	last := -1 << 31
	for _, a := range res.Alerts {
		assert.GreaterOrEqual(t, a.DaysRemaining, last)
		last = a.DaysRemaining
	}
	assert.Equal(t, near.ID, res.Alerts[0].LienID)
}

func TestListUpcomingDeadlinesWindow(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()

	soon := activeLien()
	soon.RedemptionDeadline = types.MustParseDate("2025-06-01")
	require.NoError(t, e.CreateLien(ctx, countyA, soon))

	later := activeLien()
	later.CertificateNumber = "2024-009999"
	require.NoError(t, e.CreateLien(ctx, countyA, later))

	within, err := e.ListUpcomingDeadlines(ctx, countyA, 30)
	require.NoError(t, err)
	require.Len(t, within, 1)
	assert.Equal(t, soon.ID, within[0].LienID)
}

func TestForecloseLien(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()

	l := activeLien()
	require.NoError(t, e.CreateLien(ctx, countyA, l))

	got, err := e.ForecloseLien(ctx, countyA, l.ID)
	require.NoError(t, err)
	assert.Equal(t, lien.StatusForeclosed, got.Status)

	_, err = e.ForecloseLien(ctx, countyA, l.ID)
	assert.ErrorIs(t, err, lienos.ErrInvalidTransition)
}

func TestDeleteLienIsSoft(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()

	l := activeLien()
	require.NoError(t, e.CreateLien(ctx, countyA, l))
	_, err := e.RecordPayment(ctx, countyA, &payment.Payment{
		LienID:      l.ID,
		Amount:      types.USD(25000),
		AppliedDate: types.MustParseDate("2025-05-15"),
	})
	require.NoError(t, err)

	got, err := e.DeleteLien(ctx, countyA, l.ID)
	require.NoError(t, err)
	assert.Equal(t, lien.StatusExpired, got.Status)

	// Payment history survives the retire.
	ps, err := e.ListPayments(ctx, countyA, l.ID)
	require.NoError(t, err)
	assert.Len(t, ps, 1)
}

func TestUpdateLienPatchesMutableFields(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()

	l := activeLien()
	require.NoError(t, e.CreateLien(ctx, countyA, l))

	county := "Pima"
	due := types.MustParseDate("2026-11-01")
	got, err := e.UpdateLien(ctx, countyA, l.ID, lien.Patch{
		County:             &county,
		RedemptionDeadline: &due,
	})
	require.NoError(t, err)
	assert.Equal(t, "Pima", got.County)
	assert.Equal(t, due, got.RedemptionDeadline)
	assert.Equal(t, int64(2), got.Revision)

	// The deadline watch follows the patched due date.
	ds, err := e.ListUpcomingDeadlines(ctx, countyA, 1000)
	require.NoError(t, err)
	require.Len(t, ds, 1)
	assert.Equal(t, due, ds[0].DueDate)
}

func TestUpdateLienTerminalFinancialConflict(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()

	l := activeLien()
	require.NoError(t, e.CreateLien(ctx, countyA, l))
	_, err := e.ForecloseLien(ctx, countyA, l.ID)
	require.NoError(t, err)

	principal := types.USD(900000)
	_, err = e.UpdateLien(ctx, countyA, l.ID, lien.Patch{Principal: &principal})
	assert.ErrorIs(t, err, lienos.ErrConflict)

	// Non-financial patches are still allowed on terminal liens.
	county := "Pinal"
	got, err := e.UpdateLien(ctx, countyA, l.ID, lien.Patch{County: &county})
	require.NoError(t, err)
	assert.Equal(t, "Pinal", got.County)
}

func TestReconcileLienRepairsCrash(t *testing.T) {
	e, st := newEngine(t)
	ctx := context.Background()

	l := activeLien()
	require.NoError(t, e.CreateLien(ctx, countyA, l))

	// Simulate a crash after the payment committed but before the lien
	// status write: insert the covering payment directly.
	require.NoError(t, st.CreatePayment(ctx, countyA, &payment.Payment{
		Entity:      types.NewEntity(),
		ID:          id.NewPaymentID(),
		TenantID:    countyA,
		LienID:      l.ID,
		Amount:      types.USD(1003000),
		AppliedDate: types.MustParseDate("2025-05-15"),
	}))

	got, err := e.ReconcileLien(ctx, countyA, l.ID)
	require.NoError(t, err)
	assert.Equal(t, lien.StatusRedeemed, got.Status)

	// Idempotent: running again changes nothing and emits nothing new.
	again, err := e.ReconcileLien(ctx, countyA, l.ID)
	require.NoError(t, err)
	assert.Equal(t, lien.StatusRedeemed, again.Status)

	ns, err := e.ListNotifications(ctx, countyA, notification.Filter{Type: notification.TypeLienRedeemed})
	require.NoError(t, err)
	assert.Len(t, ns, 1)
}

func TestReconcileLienNoopOnPartialBalance(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()

	l := activeLien()
	require.NoError(t, e.CreateLien(ctx, countyA, l))
	_, err := e.RecordPayment(ctx, countyA, &payment.Payment{
		LienID:      l.ID,
		Amount:      types.USD(100000),
		AppliedDate: types.MustParseDate("2025-05-15"),
	})
	require.NoError(t, err)

	got, err := e.ReconcileLien(ctx, countyA, l.ID)
	require.NoError(t, err)
	assert.Equal(t, lien.StatusActive, got.Status)
}

func TestTenantIsolation(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()

	l := activeLien()
	require.NoError(t, e.CreateLien(ctx, countyA, l))

	_, err := e.GetLien(ctx, countyB, l.ID)
	assert.True(t, lienos.IsNotFound(err))

	res, err := e.RunDeadlineSweep(ctx, countyB)
	require.NoError(t, err)
	assert.Empty(t, res.Alerts)

	s, err := e.PortfolioSummary(ctx, countyB)
	require.NoError(t, err)
	assert.Equal(t, 0, s.ActiveCount)

	count, err := e.UnreadCount(ctx, countyB)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestPortfolioSummary(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()

	// One active lien, one year held at 18%.
	active := activeLien()
	require.NoError(t, e.CreateLien(ctx, countyA, active))

	// One redeemed lien: $1,000 at 10%, held 120 days, collected in full.
	redeemed := activeLien()
	redeemed.CertificateNumber = "2025-000042"
	redeemed.Principal = types.USD(100000)
	redeemed.AnnualRate = types.Percent(10)
	redeemed.PurchaseDate = types.MustParseDate("2025-01-15")
	redeemed.RedemptionDeadline = types.MustParseDate("2026-01-15")
	require.NoError(t, e.CreateLien(ctx, countyA, redeemed))

	_, err := e.RecordPayment(ctx, countyA, &payment.Payment{
		LienID:      redeemed.ID,
		Amount:      types.USD(103288),
		AppliedDate: types.MustParseDate("2025-05-15"),
	})
	require.NoError(t, err)

	s, err := e.PortfolioSummary(ctx, countyA)
	require.NoError(t, err)
	assert.Equal(t, 1, s.ActiveCount)
	assert.Equal(t, types.USD(1003000), s.TotalValue)
	assert.Equal(t, types.USD(3288), s.TotalInterestEarned)
	assert.Equal(t, types.Percent(18), s.AvgReturnRate)
	assert.Equal(t, 0, s.UpcomingDeadlineCount)
}

func TestPortfolioAnalytics(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()

	a1 := activeLien()
	require.NoError(t, e.CreateLien(ctx, countyA, a1))

	a2 := activeLien()
	a2.CertificateNumber = "2024-007777"
	a2.County = "Pima"
	require.NoError(t, e.CreateLien(ctx, countyA, a2))

	got, err := e.PortfolioAnalytics(ctx, countyA)
	require.NoError(t, err)
	assert.Equal(t, 2, got.LiensByStatus[string(lien.StatusActive)])
	assert.Equal(t, 1, got.LiensByCounty["Maricopa"])
	assert.Equal(t, 1, got.LiensByCounty["Pima"])
	assert.Equal(t, types.USD(1700000), got.TotalInvested)
	assert.Equal(t, 365, got.AverageHoldingPeriodDays)
	require.Len(t, got.Liens, 2)
	for _, perf := range got.Liens {
		assert.Equal(t, types.Percent(18), perf.ReturnRate)
		assert.Equal(t, types.USD(153000), perf.AccruedInterest)
	}
}

func TestEmptyPortfolioReturnsZeros(t *testing.T) {
	e, _ := newEngine(t)

	s, err := e.PortfolioSummary(context.Background(), countyA)
	require.NoError(t, err)
	assert.Equal(t, 0, s.ActiveCount)
	assert.True(t, s.TotalValue.IsZero())
	assert.True(t, s.TotalInterestEarned.IsZero())
	assert.Equal(t, types.Rate(0), s.AvgReturnRate)
	assert.Equal(t, 0, s.UpcomingDeadlineCount)
}

func TestMarkNotificationRead(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()

	l := activeLien()
	require.NoError(t, e.CreateLien(ctx, countyA, l))
	_, err := e.RecordPayment(ctx, countyA, &payment.Payment{
		LienID:      l.ID,
		Amount:      types.USD(1000),
		AppliedDate: types.MustParseDate("2025-05-15"),
	})
	require.NoError(t, err)

	unread, err := e.UnreadCount(ctx, countyA)
	require.NoError(t, err)
	assert.Equal(t, int64(1), unread)

	ns, err := e.ListNotifications(ctx, countyA, notification.Filter{Unread: true})
	require.NoError(t, err)
	require.Len(t, ns, 1)

	require.NoError(t, e.MarkNotificationRead(ctx, countyA, ns[0].ID))

	unread, err = e.UnreadCount(ctx, countyA)
	require.NoError(t, err)
	assert.Zero(t, unread)
}

// countingPlugin tallies lifecycle hook invocations.
type countingPlugin struct {
	created  atomic.Int64
	payments atomic.Int64
	alerts   atomic.Int64
	redeemed atomic.Int64
}

func (p *countingPlugin) Name() string { return "counting" }

func (p *countingPlugin) OnLienCreated(_ context.Context, _ interface{}) error {
	p.created.Add(1)
	return nil
}

func (p *countingPlugin) OnPaymentRecorded(_ context.Context, _ interface{}) error {
	p.payments.Add(1)
	return nil
}

func (p *countingPlugin) OnDeadlineAlert(_ context.Context, _ string, _, _ int) error {
	p.alerts.Add(1)
	return nil
}

func (p *countingPlugin) OnLienRedeemed(_ context.Context, _ interface{}) error {
	p.redeemed.Add(1)
	return nil
}

func TestPluginHooksFire(t *testing.T) {
	counter := &countingPlugin{}
	e, _ := newEngine(t, lienos.WithPlugin(counter))
	ctx := context.Background()

	l := activeLien()
	l.RedemptionDeadline = types.MustParseDate("2025-06-13")
	require.NoError(t, e.CreateLien(ctx, countyA, l))

	_, err := e.RunDeadlineSweep(ctx, countyA)
	require.NoError(t, err)

	_, err = e.RecordPayment(ctx, countyA, &payment.Payment{
		LienID:      l.ID,
		Amount:      types.USD(1003000),
		AppliedDate: types.MustParseDate("2025-05-15"),
	})
	require.NoError(t, err)

	assert.Equal(t, int64(1), counter.created.Load())
	assert.Equal(t, int64(3), counter.alerts.Load())
	assert.Equal(t, int64(1), counter.payments.Load())
	assert.Equal(t, int64(1), counter.redeemed.Load())
}

func TestStartAndStopLifecycle(t *testing.T) {
	e, _ := newEngine(t)
	require.NoError(t, e.Start(context.Background()))
	require.NoError(t, e.Stop())
}

func TestRetryableClassification(t *testing.T) {
	// Only transient store errors qualify for automatic retry.
	err := errors.Join(lienos.ErrStaleWrite)
	assert.True(t, lienos.IsRetryable(err))
	assert.False(t, lienos.IsRetryable(lienos.ErrLienNotActive))
	assert.False(t, lienos.IsRetryable(lienos.ErrDuplicatePayment))
}

func TestStopIsIdempotent(t *testing.T) {
	e, _ := newEngine(t)
	require.NoError(t, e.Start(context.Background()))
	require.NoError(t, e.Stop())
	require.NoError(t, e.Stop())
}

// notifyFailStore simulates a notification store outage.
type notifyFailStore struct {
	*memory.Store
	fail atomic.Bool
}

func (s *notifyFailStore) CreateNotification(ctx context.Context, tenantID tenant.ID, n *notification.Notification) (*notification.Notification, bool, error) {
	if s.fail.Load() {
		return nil, false, errors.New("notification store unavailable")
	}
	return s.Store.CreateNotification(ctx, tenantID, n)
}

func TestSweepReplaysAlertsAfterNotificationOutage(t *testing.T) {
	st := &notifyFailStore{Store: memory.New()}
	e := lienos.New(st, lienos.WithClock(func() time.Time { return frozenNow }))
	ctx := context.Background()

	l := activeLien()
	l.RedemptionDeadline = types.MustParseDate("2025-06-13")
	require.NoError(t, e.CreateLien(ctx, countyA, l))

	st.fail.Store(true)
	_, err := e.RunDeadlineSweep(ctx, countyA)
	require.Error(t, err)

	// Nothing was durably marked fired during the outage, so recovery
	// replays the full cascade with every alert intact.
	st.fail.Store(false)
	res, err := e.RunDeadlineSweep(ctx, countyA)
	require.NoError(t, err)
	require.Len(t, res.Alerts, 3)

	ns, err := e.ListNotifications(ctx, countyA, notification.Filter{Type: notification.TypeDeadline})
	require.NoError(t, err)
	assert.Len(t, ns, 3)
}

func TestConcurrentCoveringPaymentsRedeemOnce(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()

	l := activeLien()
	require.NoError(t, e.CreateLien(ctx, countyA, l))

	amounts := []int64{1003000, 1003100}
	errs := make([]error, len(amounts))
	var wg sync.WaitGroup
	for i, amount := range amounts {
		wg.Add(1)
		go func(i int, amount int64) {
			defer wg.Done()
			_, errs[i] = e.RecordPayment(ctx, countyA, &payment.Payment{
				LienID:      l.ID,
				Amount:      types.USD(amount),
				AppliedDate: types.MustParseDate("2025-05-15"),
			})
		}(i, amount)
	}
	wg.Wait()

	// The loser either lands as a second payment or is rejected after the
	// lien turned terminal; either way the transition happens once.
	for _, err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, lienos.ErrLienNotActive)
		}
	}

	got, err := e.GetLien(ctx, countyA, l.ID)
	require.NoError(t, err)
	assert.Equal(t, lien.StatusRedeemed, got.Status)

	ns, err := e.ListNotifications(ctx, countyA, notification.Filter{Type: notification.TypeLienRedeemed})
	require.NoError(t, err)
	assert.Len(t, ns, 1)
}

func TestConcurrentSweepsFireEachThresholdOnce(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()

	l := activeLien()
	l.RedemptionDeadline = types.MustParseDate("2025-06-13")
	require.NoError(t, e.CreateLien(ctx, countyA, l))

	const sweeps = 4
	results := make([]*lienos.SweepResult, sweeps)
	errs := make([]error, sweeps)
	var wg sync.WaitGroup
	for i := 0; i < sweeps; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = e.RunDeadlineSweep(ctx, countyA)
		}(i)
	}
	wg.Wait()

	fired := 0
	for i := range results {
		if errs[i] != nil {
			assert.ErrorIs(t, errs[i], lienos.ErrSweepRunning)
			continue
		}
		fired += len(results[i].Alerts)
	}
	assert.Equal(t, 3, fired)

	ns, err := e.ListNotifications(ctx, countyA, notification.Filter{Type: notification.TypeDeadline})
	require.NoError(t, err)
	assert.Len(t, ns, 3)
}

// crossSweepPlugin sweeps a second tenant from inside the first
// tenant's sweep.
type crossSweepPlugin struct {
	e     *lienos.Engine
	other tenant.ID
	ran   atomic.Bool
	err   error
}

func (p *crossSweepPlugin) Name() string { return "cross-sweep" }

func (p *crossSweepPlugin) OnDeadlineAlert(ctx context.Context, _ string, _, _ int) error {
	if p.ran.CompareAndSwap(false, true) {
		_, p.err = p.e.RunDeadlineSweep(ctx, p.other)
	}
	return nil
}

func TestSweepsForDifferentTenantsDoNotContend(t *testing.T) {
	cross := &crossSweepPlugin{other: countyB}
	e, _ := newEngine(t, lienos.WithPlugin(cross))
	cross.e = e
	ctx := context.Background()

	for _, county := range []tenant.ID{countyA, countyB} {
		l := activeLien()
		l.RedemptionDeadline = types.MustParseDate("2025-06-13")
		require.NoError(t, e.CreateLien(ctx, county, l))
	}

	// countyB is swept while countyA's sweep slot is still held.
	_, err := e.RunDeadlineSweep(ctx, countyA)
	require.NoError(t, err)
	require.True(t, cross.ran.Load())
	assert.NoError(t, cross.err)
}

func TestReconcileLienRestoresMissingWatch(t *testing.T) {
	e, st := newEngine(t)
	ctx := context.Background()

	// Simulate a crash between the lien and deadline writes: the lien
	// row exists with no redemption watch.
	l := activeLien()
	l.ID = id.NewLienID()
	l.TenantID = countyA
	l.Status = lien.StatusActive
	l.Entity = types.NewEntity()
	require.NoError(t, st.CreateLien(ctx, countyA, l))

	_, err := st.GetDeadlineByLien(ctx, countyA, l.ID, deadline.KindRedemption)
	require.True(t, lienos.IsNotFound(err))

	_, err = e.ReconcileLien(ctx, countyA, l.ID)
	require.NoError(t, err)

	inst, err := st.GetDeadlineByLien(ctx, countyA, l.ID, deadline.KindRedemption)
	require.NoError(t, err)
	assert.Equal(t, deadline.StatusPending, inst.Status)
	assert.True(t, inst.DueDate.Equal(l.RedemptionDeadline))

	upcoming, err := e.ListUpcomingDeadlines(ctx, countyA, 400)
	require.NoError(t, err)
	assert.Len(t, upcoming, 1)
}

func TestListLiensClampsNegativePaging(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()

	require.NoError(t, e.CreateLien(ctx, countyA, activeLien()))
	l2 := activeLien()
	l2.CertificateNumber = "2024-005678"
	require.NoError(t, e.CreateLien(ctx, countyA, l2))

	liens, err := e.ListLiens(ctx, countyA, lien.Filter{Offset: -5, Limit: -1})
	require.NoError(t, err)
	assert.Len(t, liens, 2)
}
