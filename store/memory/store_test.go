package memory_test

import (
	"context"
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
	tenantA = tenant.MustParse("county-a")
	tenantB = tenant.MustParse("county-b")
)

func newLien(tenantID tenant.ID) *lien.Lien {
	return &lien.Lien{
		Entity:             types.NewEntity(),
		ID:                 id.NewLienID(),
		TenantID:           tenantID,
		CertificateNumber:  "CERT-001",
		Principal:          types.USD(850000),
		AnnualRate:         types.Percent(18),
		PurchaseDate:       types.MustParseDate("2024-05-15"),
		RedemptionDeadline: types.MustParseDate("2026-05-15"),
		Status:             lien.StatusActive,
		County:             "Maricopa",
		State:              "AZ",
	}
}

func TestLienCRUD(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	l := newLien(tenantA)
	require.NoError(t, s.CreateLien(ctx, tenantA, l))

	got, err := s.GetLien(ctx, tenantA, l.ID)
	require.NoError(t, err)
	assert.Equal(t, l.CertificateNumber, got.CertificateNumber)
	assert.Equal(t, l.Principal, got.Principal)

	// Duplicate create rejected.
	err = s.CreateLien(ctx, tenantA, l)
	require.ErrorIs(t, err, lienos.ErrAlreadyExists)

	// Unknown id.
	_, err = s.GetLien(ctx, tenantA, id.NewLienID())
	require.ErrorIs(t, err, lienos.ErrLienNotFound)
}

func TestMissingTenantRejected(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	var zero tenant.ID

	err := s.CreateLien(ctx, zero, newLien(tenantA))
	require.ErrorIs(t, err, lienos.ErrMissingTenant)

	_, err = s.ListLiens(ctx, zero, lien.Filter{})
	require.ErrorIs(t, err, lienos.ErrMissingTenant)

	_, err = s.UnreadCount(ctx, zero)
	require.ErrorIs(t, err, lienos.ErrMissingTenant)
}

func TestTenantIsolation(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	la := newLien(tenantA)
	lb := newLien(tenantB)
	require.NoError(t, s.CreateLien(ctx, tenantA, la))
	require.NoError(t, s.CreateLien(ctx, tenantB, lb))

	// Cross-tenant get misses.
	_, err := s.GetLien(ctx, tenantB, la.ID)
	require.ErrorIs(t, err, lienos.ErrLienNotFound)

	// Cross-tenant list never leaks.
	listA, err := s.ListLiens(ctx, tenantA, lien.Filter{})
	require.NoError(t, err)
	require.Len(t, listA, 1)
	assert.Equal(t, la.ID.String(), listA[0].ID.String())

	// Cross-tenant update fails.
	la.Status = lien.StatusForeclosed
	err = s.UpdateLien(ctx, tenantB, la)
	require.ErrorIs(t, err, lienos.ErrLienNotFound)
}

func TestStaleWrite(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	l := newLien(tenantA)
	require.NoError(t, s.CreateLien(ctx, tenantA, l))

	first, err := s.GetLien(ctx, tenantA, l.ID)
	require.NoError(t, err)
	second, err := s.GetLien(ctx, tenantA, l.ID)
	require.NoError(t, err)

	first.County = "Pima"
	require.NoError(t, s.UpdateLien(ctx, tenantA, first))

	// second still holds the old revision.
	second.County = "Pinal"
	err = s.UpdateLien(ctx, tenantA, second)
	require.ErrorIs(t, err, lienos.ErrStaleWrite)

	// Re-read and retry succeeds.
	fresh, err := s.GetLien(ctx, tenantA, l.ID)
	require.NoError(t, err)
	fresh.County = "Pinal"
	require.NoError(t, s.UpdateLien(ctx, tenantA, fresh))
}

func TestUpdateBumpsRevision(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	l := newLien(tenantA)
	require.NoError(t, s.CreateLien(ctx, tenantA, l))

	got, err := s.GetLien(ctx, tenantA, l.ID)
	require.NoError(t, err)
	before := got.Revision

	got.County = "Pima"
	require.NoError(t, s.UpdateLien(ctx, tenantA, got))
	assert.Equal(t, before+1, got.Revision)
}

func TestReadYourWrites(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	l := newLien(tenantA)
	require.NoError(t, s.CreateLien(ctx, tenantA, l))

	got, err := s.GetLien(ctx, tenantA, l.ID)
	require.NoError(t, err)
	got.Status = lien.StatusRedeemed
	require.NoError(t, s.UpdateLien(ctx, tenantA, got))

	reread, err := s.GetLien(ctx, tenantA, l.ID)
	require.NoError(t, err)
	assert.Equal(t, lien.StatusRedeemed, reread.Status)
}

func TestListLiensOrderAndFilter(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	far := newLien(tenantA)
	far.RedemptionDeadline = types.MustParseDate("2027-01-01")
	near := newLien(tenantA)
	near.RedemptionDeadline = types.MustParseDate("2026-01-01")
	near.County = "Pima"
	require.NoError(t, s.CreateLien(ctx, tenantA, far))
	require.NoError(t, s.CreateLien(ctx, tenantA, near))

	all, err := s.ListLiens(ctx, tenantA, lien.Filter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	// Soonest deadline first.
	assert.Equal(t, near.ID.String(), all[0].ID.String())

	pima, err := s.ListLiens(ctx, tenantA, lien.Filter{County: "pima"})
	require.NoError(t, err)
	require.Len(t, pima, 1)
	assert.Equal(t, near.ID.String(), pima[0].ID.String())

	active, err := s.ListLiens(ctx, tenantA, lien.Filter{Status: lien.StatusRedeemed})
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestPaymentAppendOnlyAndDuplicate(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	l := newLien(tenantA)
	require.NoError(t, s.CreateLien(ctx, tenantA, l))

	p := &payment.Payment{
		Entity:      types.NewEntity(),
		ID:          id.NewPaymentID(),
		TenantID:    tenantA,
		LienID:      l.ID,
		Amount:      types.USD(50000),
		AppliedDate: types.MustParseDate("2024-08-01"),
		Reference:   "CHK-100",
	}
	require.NoError(t, s.CreatePayment(ctx, tenantA, p))

	exists, err := s.PaymentExists(ctx, tenantA, p)
	require.NoError(t, err)
	assert.True(t, exists)

	// Same tuple, new id: probable duplicate.
	dup := *p
	dup.ID = id.NewPaymentID()
	err = s.CreatePayment(ctx, tenantA, &dup)
	require.ErrorIs(t, err, lienos.ErrDuplicatePayment)

	// Different reference is a distinct payment.
	other := *p
	other.ID = id.NewPaymentID()
	other.Reference = "CHK-101"
	require.NoError(t, s.CreatePayment(ctx, tenantA, &other))

	list, err := s.ListPaymentsByLien(ctx, tenantA, l.ID)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestDeadlineVersionedUpdate(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	l := newLien(tenantA)
	inst := &deadline.Instance{
		Entity:   types.NewEntity(),
		ID:       id.NewDeadlineID(),
		TenantID: tenantA,
		LienID:   l.ID,
		Kind:     deadline.KindRedemption,
		DueDate:  l.RedemptionDeadline,
		Status:   deadline.StatusPending,
	}
	require.NoError(t, s.CreateDeadline(ctx, tenantA, inst))

	byLien, err := s.GetDeadlineByLien(ctx, tenantA, l.ID, deadline.KindRedemption)
	require.NoError(t, err)
	assert.Equal(t, inst.ID.String(), byLien.ID.String())

	a, err := s.GetDeadline(ctx, tenantA, inst.ID)
	require.NoError(t, err)
	b, err := s.GetDeadline(ctx, tenantA, inst.ID)
	require.NoError(t, err)

	a.MarkFired(90)
	require.NoError(t, s.UpdateDeadline(ctx, tenantA, a))

	b.MarkFired(60)
	err = s.UpdateDeadline(ctx, tenantA, b)
	require.ErrorIs(t, err, lienos.ErrStaleWrite)
}

func TestNotificationDedupe(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	lienID := id.NewLienID()
	n := &notification.Notification{
		Entity:    types.NewEntity(),
		ID:        id.NewNotificationID(),
		TenantID:  tenantA,
		Type:      notification.TypeDeadline,
		LienID:    lienID,
		Priority:  notification.PriorityNormal,
		Message:   "30 days remaining",
		DedupeKey: notification.DeadlineDedupeKey(lienID, 30),
	}
	first, created, err := s.CreateNotification(ctx, tenantA, n)
	require.NoError(t, err)
	assert.True(t, created)

	// Same dedupe key returns the existing record, no error.
	again := *n
	again.ID = id.NewNotificationID()
	second, created, err := s.CreateNotification(ctx, tenantA, &again)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID.String(), second.ID.String())

	list, err := s.ListNotifications(ctx, tenantA, notification.Filter{LienID: lienID})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestNotificationReadTracking(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	n := &notification.Notification{
		Entity:   types.NewEntity(),
		ID:       id.NewNotificationID(),
		TenantID: tenantA,
		Type:     notification.TypePaymentReceived,
		Priority: notification.PriorityNormal,
		Message:  "payment received",
	}
	_, _, err := s.CreateNotification(ctx, tenantA, n)
	require.NoError(t, err)

	count, err := s.UnreadCount(ctx, tenantA)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	require.NoError(t, s.MarkNotificationRead(ctx, tenantA, n.ID, time.Now()))

	count, err = s.UnreadCount(ctx, tenantA)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	unread, err := s.ListNotifications(ctx, tenantA, notification.Filter{Unread: true})
	require.NoError(t, err)
	assert.Empty(t, unread)
}

func TestCanceledContext(t *testing.T) {
	s := memory.New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.CreateLien(ctx, tenantA, newLien(tenantA))
	require.ErrorIs(t, err, lienos.ErrTimeout)
}

func TestClosedStore(t *testing.T) {
	s := memory.New()
	require.NoError(t, s.Close())

	err := s.CreateLien(context.Background(), tenantA, newLien(tenantA))
	require.ErrorIs(t, err, lienos.ErrStoreClosed)
	require.Error(t, s.Ping(context.Background()))
}

func TestClonesAreIsolated(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	l := newLien(tenantA)
	l.Metadata = map[string]string{"parcel": "123-45-678"}
	require.NoError(t, s.CreateLien(ctx, tenantA, l))

	got, err := s.GetLien(ctx, tenantA, l.ID)
	require.NoError(t, err)
	got.Metadata["parcel"] = "mutated"

	reread, err := s.GetLien(ctx, tenantA, l.ID)
	require.NoError(t, err)
	assert.Equal(t, "123-45-678", reread.Metadata["parcel"])
}
