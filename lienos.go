package lienos

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/3piecechickendinner/LeinOS/accrual"
	"github.com/3piecechickendinner/LeinOS/deadline"
	"github.com/3piecechickendinner/LeinOS/id"
	"github.com/3piecechickendinner/LeinOS/lien"
	"github.com/3piecechickendinner/LeinOS/notification"
	"github.com/3piecechickendinner/LeinOS/payment"
	"github.com/3piecechickendinner/LeinOS/plugin"
	"github.com/3piecechickendinner/LeinOS/store"
	"github.com/3piecechickendinner/LeinOS/tenant"
	"github.com/3piecechickendinner/LeinOS/types"
)

// redemptionSlack is the epsilon, in minor units, for the redemption
// balance comparison. A payment within one cent of the accrued total
// still redeems the lien.
const redemptionSlack = 1

// Engine is the main lien lifecycle engine.
type Engine struct {
	store   store.Store
	plugins *plugin.Registry
	logger  *slog.Logger
	clock   func() time.Time

	// Background sweep worker
	sweepMu  sync.Mutex
	sweeping map[tenant.ID]bool
	stopOnce sync.Once
	stopErr  error
	stopChan chan struct{}
	wg       sync.WaitGroup

	// Configuration
	thresholds    []int
	retryAttempts int
	sweepInterval time.Duration
	sweepTenants  []tenant.ID
}

// New creates a new Engine instance.
func New(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:         s,
		plugins:       plugin.NewRegistry(),
		logger:        slog.Default(),
		clock:         time.Now,
		sweeping:      make(map[tenant.ID]bool),
		stopChan:      make(chan struct{}),
		thresholds:    deadline.DefaultThresholds,
		retryAttempts: 3,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Option configures an Engine instance.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
		e.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Engine) {
		_ = e.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithClock injects the time source. Tests pass a fixed clock so that
// accrual and sweep results are reproducible.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		e.clock = clock
	}
}

// WithThresholds overrides the deadline escalation cascade.
func WithThresholds(thresholds []int) Option {
	return func(e *Engine) {
		e.thresholds = thresholds
	}
}

// WithRetry sets how many times transient store errors are retried.
func WithRetry(attempts int) Option {
	return func(e *Engine) {
		if attempts > 0 {
			e.retryAttempts = attempts
		}
	}
}

// WithSweepInterval enables the background sweep worker for the given
// tenants. Zero interval disables the worker.
func WithSweepInterval(interval time.Duration, tenants ...tenant.ID) Option {
	return func(e *Engine) {
		e.sweepInterval = interval
		e.sweepTenants = tenants
	}
}

// Start migrates the store, initializes plugins, and begins background
// workers.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.store.Migrate(ctx); err != nil {
		return err
	}

	e.plugins.EmitInit(ctx, e)

	if e.sweepInterval > 0 && len(e.sweepTenants) > 0 {
		e.wg.Add(1)
		go e.sweepWorker(ctx)
	}

	e.logger.Info("lienos started",
		"thresholds", e.thresholds,
		"sweep_interval", e.sweepInterval,
		"sweep_tenants", len(e.sweepTenants),
	)

	return nil
}

// Stop shuts down the Engine. Calling it more than once is safe;
// subsequent calls return the first call's result.
func (e *Engine) Stop() error {
	e.stopOnce.Do(func() {
		close(e.stopChan)
		e.wg.Wait()

		ctx := context.Background()
		e.plugins.EmitShutdown(ctx)

		e.stopErr = e.store.Close()
	})
	return e.stopErr
}

// sweepWorker runs the deadline sweep on a fixed interval for every
// configured tenant.
func (e *Engine) sweepWorker(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopChan:
			return
		case <-ticker.C:
			for _, tenantID := range e.sweepTenants {
				if _, err := e.RunDeadlineSweep(ctx, tenantID); err != nil {
					e.logger.Error("background sweep failed",
						"tenant_id", tenantID.String(),
						"error", err,
					)
				}
			}
		}
	}
}

// ──────────────────────────────────────────────────
// Lien Ledger
// ──────────────────────────────────────────────────

// CreateLien validates and persists a new lien and materializes its
// redemption deadline.
func (e *Engine) CreateLien(ctx context.Context, tenantID tenant.ID, l *lien.Lien) error {
	if tenantID.IsZero() {
		return ErrMissingTenant
	}

	l.TenantID = tenantID
	if l.Status == "" {
		l.Status = lien.StatusActive
	}
	if err := validateLien(l); err != nil {
		return err
	}

	if l.ID.IsNil() {
		l.ID = id.NewLienID()
	}
	l.Entity = types.NewEntityAt(e.now())

	if err := e.store.CreateLien(ctx, tenantID, l); err != nil {
		return err
	}

	if err := e.store.CreateDeadline(ctx, tenantID, e.newWatch(tenantID, l)); err != nil && !errors.Is(err, ErrAlreadyExists) {
		return err
	}

	e.plugins.EmitLienCreated(ctx, l)
	return nil
}

// GetLien retrieves a lien by ID.
func (e *Engine) GetLien(ctx context.Context, tenantID tenant.ID, lienID id.LienID) (*lien.Lien, error) {
	return e.store.GetLien(ctx, tenantID, lienID)
}

// ListLiens lists liens matching the filter, soonest deadline first.
func (e *Engine) ListLiens(ctx context.Context, tenantID tenant.ID, filter lien.Filter) ([]*lien.Lien, error) {
	return e.store.ListLiens(ctx, tenantID, filter)
}

// UpdateLien applies a patch to a lien's mutable fields. Terminal liens
// reject patches that would alter financial terms with ErrConflict.
func (e *Engine) UpdateLien(ctx context.Context, tenantID tenant.ID, lienID id.LienID, patch lien.Patch) (*lien.Lien, error) {
	if tenantID.IsZero() {
		return nil, ErrMissingTenant
	}

	var updated *lien.Lien
	err := e.withRetry(ctx, func() error {
		cur, err := e.store.GetLien(ctx, tenantID, lienID)
		if err != nil {
			return err
		}
		if cur.Status.Terminal() && patch.TouchesFinancialTerms() {
			return ErrConflict
		}

		old := *cur
		patch.Apply(cur)
		if err := validateLien(cur); err != nil {
			return err
		}

		if err := e.store.UpdateLien(ctx, tenantID, cur); err != nil {
			return err
		}
		updated = cur
		e.plugins.EmitLienUpdated(ctx, &old, cur)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if patch.RedemptionDeadline != nil {
		e.syncDeadline(ctx, tenantID, lienID, *patch.RedemptionDeadline)
	}

	return updated, nil
}

// DeleteLien retires a lien without removing its records. The lien
// moves to EXPIRED and its deadline watch is completed; payment history
// stays intact. Hard deletes are not exposed.
func (e *Engine) DeleteLien(ctx context.Context, tenantID tenant.ID, lienID id.LienID) (*lien.Lien, error) {
	return e.transition(ctx, tenantID, lienID, lien.StatusExpired)
}

// ForecloseLien declares a lien foreclosed. This is the only path to
// FORECLOSED; the sweep never sets it.
func (e *Engine) ForecloseLien(ctx context.Context, tenantID tenant.ID, lienID id.LienID) (*lien.Lien, error) {
	l, err := e.transition(ctx, tenantID, lienID, lien.StatusForeclosed)
	if err != nil {
		return nil, err
	}
	e.plugins.EmitLienForeclosed(ctx, l)
	return l, nil
}

// ReconcileLien re-derives a lien's status from its payment history.
// A crash between committing a covering payment and updating the lien
// leaves the lien ACTIVE with a fully paid balance; this pass repairs
// that case and is safe to run any number of times. It also restores a
// missing redemption watch for active liens.
func (e *Engine) ReconcileLien(ctx context.Context, tenantID tenant.ID, lienID id.LienID) (*lien.Lien, error) {
	if tenantID.IsZero() {
		return nil, ErrMissingTenant
	}

	cur, err := e.store.GetLien(ctx, tenantID, lienID)
	if err != nil {
		return nil, err
	}
	if cur.Status != lien.StatusActive {
		return cur, nil
	}
	e.ensureWatch(ctx, tenantID, cur)

	payments, err := e.store.ListPaymentsByLien(ctx, tenantID, lienID)
	if err != nil {
		return nil, err
	}
	if len(payments) == 0 {
		return cur, nil
	}

	collected := types.Zero(cur.Principal.Currency)
	lastApplied := payments[0].AppliedDate
	for _, p := range payments {
		collected = collected.Add(p.Amount)
		if p.AppliedDate.After(lastApplied) {
			lastApplied = p.AppliedDate
		}
	}

	res, err := accrual.AccruedInterest(cur.Principal, cur.AnnualRate, cur.PurchaseDate, lastApplied)
	if err != nil {
		return nil, err
	}
	if !collected.Covers(res.TotalValue, redemptionSlack) {
		return cur, nil
	}

	redeemed, performed, err := e.redeemLien(ctx, tenantID, lienID)
	if err != nil {
		return nil, err
	}
	if performed {
		e.notifyRedemption(ctx, tenantID, redeemed, collected, res.TotalValue)
	}
	return redeemed, nil
}

// ──────────────────────────────────────────────────
// Accrual
// ──────────────────────────────────────────────────

// CalculateInterest computes accrued interest for a lien as of the given
// date. A zero asOf means today.
func (e *Engine) CalculateInterest(ctx context.Context, tenantID tenant.ID, lienID id.LienID, asOf types.Date) (accrual.Result, error) {
	l, err := e.store.GetLien(ctx, tenantID, lienID)
	if err != nil {
		return accrual.Result{}, err
	}
	if asOf.IsZero() {
		asOf = e.today()
	}

	res, err := accrual.AccruedInterest(l.Principal, l.AnnualRate, l.PurchaseDate, asOf)
	if errors.Is(err, accrual.ErrInvalidAsOfDate) {
		return accrual.Result{}, ErrInvalidAsOfDate
	}
	return res, err
}

// ──────────────────────────────────────────────────
// Payment Processing
// ──────────────────────────────────────────────────

// RecordPayment applies funds against an active lien. The payment record
// is committed before any lien status change, so a crash between the two
// writes loses status freshness, never money; ReconcileLien repairs it.
//
// If the payment brings total collections to the accrued value as of the
// applied date (within one minor unit), the lien is redeemed and a
// redemption notification is emitted exactly once.
func (e *Engine) RecordPayment(ctx context.Context, tenantID tenant.ID, p *payment.Payment) (*payment.Payment, error) {
	if tenantID.IsZero() {
		return nil, ErrMissingTenant
	}
	if p.LienID.IsNil() {
		return nil, fmt.Errorf("%w: payment lien_id is required", ErrInvalidInput)
	}
	if !p.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if p.AppliedDate.IsZero() {
		return nil, fmt.Errorf("%w: payment applied_date is required", ErrInvalidInput)
	}

	l, err := e.store.GetLien(ctx, tenantID, p.LienID)
	if err != nil {
		return nil, err
	}
	if l.Status != lien.StatusActive {
		return nil, ErrLienNotActive
	}
	if p.AppliedDate.Before(l.PurchaseDate) {
		return nil, ErrPaymentBeforeBuy
	}

	if exists, err := e.store.PaymentExists(ctx, tenantID, p); err != nil {
		return nil, err
	} else if exists {
		return nil, ErrDuplicatePayment
	}

	res, err := accrual.AccruedInterest(l.Principal, l.AnnualRate, l.PurchaseDate, p.AppliedDate)
	if err != nil {
		return nil, err
	}

	prior, err := e.store.ListPaymentsByLien(ctx, tenantID, p.LienID)
	if err != nil {
		return nil, err
	}
	collected := p.Amount
	for _, pp := range prior {
		collected = collected.Add(pp.Amount)
	}

	if p.ID.IsNil() {
		p.ID = id.NewPaymentID()
	}
	p.TenantID = tenantID
	p.Entity = types.NewEntityAt(e.now())

	if err := e.store.CreatePayment(ctx, tenantID, p); err != nil {
		return nil, err
	}
	e.plugins.EmitPaymentRecorded(ctx, p)

	if collected.Covers(res.TotalValue, redemptionSlack) {
		redeemed, performed, err := e.redeemLien(ctx, tenantID, p.LienID)
		if err != nil {
			// The payment is durable; status repair is ReconcileLien's job.
			e.logger.Error("payment recorded but redemption transition failed",
				"lien_id", p.LienID.String(),
				"payment_id", p.ID.String(),
				"error", err,
			)
			return p, nil
		}
		if performed {
			e.notifyRedemption(ctx, tenantID, redeemed, collected, res.TotalValue)
		}
	} else {
		balance := res.TotalValue.Subtract(collected)
		// Receipt delivery is best-effort; the payment itself is durable.
		_, _ = e.notify(ctx, tenantID, &notification.Notification{
			Type:      notification.TypePaymentReceived,
			LienID:    p.LienID,
			Priority:  notification.PriorityNormal,
			Message:   fmt.Sprintf("Payment of %s received for certificate %s; outstanding balance %s", p.Amount, l.CertificateNumber, balance),
			DedupeKey: notification.PaymentDedupeKey(p.ID),
		})
	}

	return p, nil
}

// GetPayment retrieves a payment by ID.
func (e *Engine) GetPayment(ctx context.Context, tenantID tenant.ID, paymentID id.PaymentID) (*payment.Payment, error) {
	return e.store.GetPayment(ctx, tenantID, paymentID)
}

// ListPayments lists the payment history for a lien, oldest first.
func (e *Engine) ListPayments(ctx context.Context, tenantID tenant.ID, lienID id.LienID) ([]*payment.Payment, error) {
	return e.store.ListPaymentsByLien(ctx, tenantID, lienID)
}

// ──────────────────────────────────────────────────
// Notifications
// ──────────────────────────────────────────────────

// ListNotifications lists notifications matching the filter, newest first.
func (e *Engine) ListNotifications(ctx context.Context, tenantID tenant.ID, filter notification.Filter) ([]*notification.Notification, error) {
	return e.store.ListNotifications(ctx, tenantID, filter)
}

// MarkNotificationRead marks a notification as read.
func (e *Engine) MarkNotificationRead(ctx context.Context, tenantID tenant.ID, notificationID id.NotificationID) error {
	return e.store.MarkNotificationRead(ctx, tenantID, notificationID, e.now())
}

// UnreadCount returns the number of unread notifications for a tenant.
func (e *Engine) UnreadCount(ctx context.Context, tenantID tenant.ID) (int64, error) {
	return e.store.UnreadCount(ctx, tenantID)
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func (e *Engine) now() time.Time {
	return e.clock()
}

func (e *Engine) today() types.Date {
	return types.DateOf(e.now())
}

// withRetry runs fn, retrying transient store failures up to the
// configured attempt count. Business-rule errors surface immediately.
func (e *Engine) withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < e.retryAttempts; attempt++ {
		if err = fn(); err == nil || !IsRetryable(err) {
			return err
		}
		if ctx.Err() != nil {
			return err
		}
	}
	return err
}

// validateLien converts model violations into the root error taxonomy.
func validateLien(l *lien.Lien) error {
	vs := l.Validate()
	if len(vs) == 0 {
		return nil
	}
	var verr ValidationErrors
	for _, v := range vs {
		verr.Add(v.Field, v.Message)
	}
	return verr
}

// transition moves an ACTIVE lien to the given terminal status and
// completes its deadline watch.
func (e *Engine) transition(ctx context.Context, tenantID tenant.ID, lienID id.LienID, next lien.Status) (*lien.Lien, error) {
	if tenantID.IsZero() {
		return nil, ErrMissingTenant
	}

	var out *lien.Lien
	err := e.withRetry(ctx, func() error {
		cur, err := e.store.GetLien(ctx, tenantID, lienID)
		if err != nil {
			return err
		}
		if !cur.Status.CanTransitionTo(next) {
			return ErrInvalidTransition
		}
		cur.Status = next
		if err := e.store.UpdateLien(ctx, tenantID, cur); err != nil {
			return err
		}
		out = cur
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.completeDeadline(ctx, tenantID, lienID)
	return out, nil
}

// redeemLien transitions a lien to REDEEMED. The bool result reports
// whether this call performed the transition; under a race the loser
// observes the terminal state and returns false, which is what keeps
// redemption side effects exactly-once.
func (e *Engine) redeemLien(ctx context.Context, tenantID tenant.ID, lienID id.LienID) (*lien.Lien, bool, error) {
	var out *lien.Lien
	performed := false
	err := e.withRetry(ctx, func() error {
		cur, err := e.store.GetLien(ctx, tenantID, lienID)
		if err != nil {
			return err
		}
		if cur.Status == lien.StatusRedeemed {
			out = cur
			performed = false
			return nil
		}
		if !cur.Status.CanTransitionTo(lien.StatusRedeemed) {
			return ErrInvalidTransition
		}
		cur.Status = lien.StatusRedeemed
		if err := e.store.UpdateLien(ctx, tenantID, cur); err != nil {
			return err
		}
		out = cur
		performed = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if performed {
		e.completeDeadline(ctx, tenantID, lienID)
		e.plugins.EmitLienRedeemed(ctx, out)
	}
	return out, performed, nil
}

// notifyRedemption emits the deduplicated lien-redeemed notification.
// Delivery is best-effort; ReconcileLien replays it through the same
// dedupe key if it was lost.
func (e *Engine) notifyRedemption(ctx context.Context, tenantID tenant.ID, l *lien.Lien, collected, total types.Money) {
	_, _ = e.notify(ctx, tenantID, &notification.Notification{
		Type:      notification.TypeLienRedeemed,
		LienID:    l.ID,
		Priority:  notification.PriorityHigh,
		Message:   fmt.Sprintf("Certificate %s fully redeemed: collected %s against total due %s", l.CertificateNumber, collected, total),
		DedupeKey: notification.RedemptionDedupeKey(l.ID),
	})
}

// notify stores a notification and fires the plugin hook when it was
// newly created. Deduplicated creates return the existing record and
// fire nothing. Failures are logged and returned; callers decide
// whether delivery is best-effort.
func (e *Engine) notify(ctx context.Context, tenantID tenant.ID, n *notification.Notification) (*notification.Notification, error) {
	if n.ID.IsNil() {
		n.ID = id.NewNotificationID()
	}
	n.TenantID = tenantID
	n.Entity = types.NewEntityAt(e.now())

	stored, created, err := e.store.CreateNotification(ctx, tenantID, n)
	if err != nil {
		e.logger.Warn("failed to store notification",
			"type", string(n.Type),
			"dedupe_key", n.DedupeKey,
			"error", err,
		)
		return nil, err
	}
	if created {
		e.plugins.EmitNotificationCreated(ctx, stored)
	}
	return stored, nil
}

// newWatch builds the pending redemption watch for a lien.
func (e *Engine) newWatch(tenantID tenant.ID, l *lien.Lien) *deadline.Instance {
	return &deadline.Instance{
		Entity:   types.NewEntityAt(e.now()),
		ID:       id.NewDeadlineID(),
		TenantID: tenantID,
		LienID:   l.ID,
		Kind:     deadline.KindRedemption,
		DueDate:  l.RedemptionDeadline,
		Status:   deadline.StatusPending,
	}
}

// ensureWatch re-creates an active lien's redemption watch when it is
// missing. A crash in CreateLien between the lien and deadline writes
// leaves the lien unwatched until reconciliation runs.
func (e *Engine) ensureWatch(ctx context.Context, tenantID tenant.ID, l *lien.Lien) {
	_, err := e.store.GetDeadlineByLien(ctx, tenantID, l.ID, deadline.KindRedemption)
	if err == nil {
		return
	}
	if !IsNotFound(err) {
		e.logger.Warn("failed to check redemption watch",
			"lien_id", l.ID.String(),
			"error", err,
		)
		return
	}
	if err := e.store.CreateDeadline(ctx, tenantID, e.newWatch(tenantID, l)); err != nil && !errors.Is(err, ErrAlreadyExists) {
		e.logger.Warn("failed to restore redemption watch",
			"lien_id", l.ID.String(),
			"error", err,
		)
	}
}

// completeDeadline marks the lien's redemption watch COMPLETED. Missing
// instances are ignored; terminal liens need no watch.
func (e *Engine) completeDeadline(ctx context.Context, tenantID tenant.ID, lienID id.LienID) {
	err := e.withRetry(ctx, func() error {
		inst, err := e.store.GetDeadlineByLien(ctx, tenantID, lienID, deadline.KindRedemption)
		if err != nil {
			return err
		}
		if inst.Status == deadline.StatusCompleted {
			return nil
		}
		inst.Status = deadline.StatusCompleted
		return e.store.UpdateDeadline(ctx, tenantID, inst)
	})
	if err != nil && !IsNotFound(err) {
		e.logger.Warn("failed to complete deadline instance",
			"lien_id", lienID.String(),
			"error", err,
		)
	}
}

// syncDeadline moves the pending redemption watch to a new due date
// after the lien's deadline was patched.
func (e *Engine) syncDeadline(ctx context.Context, tenantID tenant.ID, lienID id.LienID, due types.Date) {
	err := e.withRetry(ctx, func() error {
		inst, err := e.store.GetDeadlineByLien(ctx, tenantID, lienID, deadline.KindRedemption)
		if err != nil {
			return err
		}
		if inst.Status != deadline.StatusPending || inst.DueDate.Equal(due) {
			return nil
		}
		inst.DueDate = due
		return e.store.UpdateDeadline(ctx, tenantID, inst)
	})
	if err != nil && !IsNotFound(err) {
		e.logger.Warn("failed to move deadline instance",
			"lien_id", lienID.String(),
			"error", err,
		)
	}
}
