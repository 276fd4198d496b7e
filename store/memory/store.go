// Package memory provides an in-memory Store backend used by tests,
// examples, and short-lived tooling. Data does not survive the process.
package memory

import (
	"context"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	lienos "github.com/3piecechickendinner/LeinOS"
	"github.com/3piecechickendinner/LeinOS/deadline"
	"github.com/3piecechickendinner/LeinOS/id"
	"github.com/3piecechickendinner/LeinOS/lien"
	"github.com/3piecechickendinner/LeinOS/notification"
	"github.com/3piecechickendinner/LeinOS/payment"
	lienstore "github.com/3piecechickendinner/LeinOS/store"
	"github.com/3piecechickendinner/LeinOS/tenant"
)

var _ lienstore.Store = (*Store)(nil)

type Store struct {
	mu     sync.RWMutex
	closed bool

	// All maps are partitioned by tenant first, then by entity id.
	liens         map[string]map[string]*lien.Lien
	payments      map[string]map[string]*payment.Payment
	deadlines     map[string]map[string]*deadline.Instance
	notifications map[string]map[string]*notification.Notification
}

func New() *Store {
	return &Store{
		liens:         make(map[string]map[string]*lien.Lien),
		payments:      make(map[string]map[string]*payment.Payment),
		deadlines:     make(map[string]map[string]*deadline.Instance),
		notifications: make(map[string]map[string]*notification.Notification),
	}
}

// guard checks the preconditions shared by every operation: a live
// context, an open store, and a non-zero tenant.
func (s *Store) guard(ctx context.Context, tenantID tenant.ID) error {
	select {
	case <-ctx.Done():
		return lienos.ErrTimeout
	default:
	}
	if s.closed {
		return lienos.ErrStoreClosed
	}
	if tenantID.IsZero() {
		return lienos.ErrMissingTenant
	}
	return nil
}

func bucket[T any](outer map[string]map[string]*T, tenantID tenant.ID) map[string]*T {
	inner, ok := outer[tenantID.String()]
	if !ok {
		inner = make(map[string]*T)
		outer[tenantID.String()] = inner
	}
	return inner
}

// Lien methods

func (s *Store) CreateLien(ctx context.Context, tenantID tenant.ID, l *lien.Lien) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.guard(ctx, tenantID); err != nil {
		return err
	}
	b := bucket(s.liens, tenantID)
	if _, exists := b[l.ID.String()]; exists {
		return lienos.ErrAlreadyExists
	}
	b[l.ID.String()] = cloneLien(l)
	return nil
}

func (s *Store) GetLien(ctx context.Context, tenantID tenant.ID, lienID id.LienID) (*lien.Lien, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.guard(ctx, tenantID); err != nil {
		return nil, err
	}
	if l, ok := s.liens[tenantID.String()][lienID.String()]; ok {
		return cloneLien(l), nil
	}
	return nil, lienos.ErrLienNotFound
}

func (s *Store) ListLiens(ctx context.Context, tenantID tenant.ID, filter lien.Filter) ([]*lien.Lien, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.guard(ctx, tenantID); err != nil {
		return nil, err
	}
	result := make([]*lien.Lien, 0)
	for _, l := range s.liens[tenantID.String()] {
		if matchLien(l, filter) {
			result = append(result, cloneLien(l))
		}
	}
	// Soonest redemption deadline first, ties by id for determinism.
	sort.Slice(result, func(i, j int) bool {
		if !result[i].RedemptionDeadline.Equal(result[j].RedemptionDeadline) {
			return result[i].RedemptionDeadline.Before(result[j].RedemptionDeadline)
		}
		return result[i].ID.String() < result[j].ID.String()
	})
	return page(result, filter.Offset, filter.Limit), nil
}

func (s *Store) UpdateLien(ctx context.Context, tenantID tenant.ID, l *lien.Lien) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.guard(ctx, tenantID); err != nil {
		return err
	}
	b := s.liens[tenantID.String()]
	current, exists := b[l.ID.String()]
	if !exists {
		return lienos.ErrLienNotFound
	}
	if current.Revision != l.Revision {
		return lienos.ErrStaleWrite
	}
	updated := cloneLien(l)
	updated.Bump()
	b[l.ID.String()] = updated
	l.Revision = updated.Revision
	l.UpdatedAt = updated.UpdatedAt
	return nil
}

// Payment methods

func (s *Store) CreatePayment(ctx context.Context, tenantID tenant.ID, p *payment.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.guard(ctx, tenantID); err != nil {
		return err
	}
	b := bucket(s.payments, tenantID)
	if _, exists := b[p.ID.String()]; exists {
		return lienos.ErrAlreadyExists
	}
	for _, existing := range b {
		if existing.DuplicateKey() == p.DuplicateKey() {
			return lienos.ErrDuplicatePayment
		}
	}
	b[p.ID.String()] = clonePayment(p)
	return nil
}

func (s *Store) GetPayment(ctx context.Context, tenantID tenant.ID, paymentID id.PaymentID) (*payment.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.guard(ctx, tenantID); err != nil {
		return nil, err
	}
	if p, ok := s.payments[tenantID.String()][paymentID.String()]; ok {
		return clonePayment(p), nil
	}
	return nil, lienos.ErrPaymentNotFound
}

func (s *Store) ListPaymentsByLien(ctx context.Context, tenantID tenant.ID, lienID id.LienID) ([]*payment.Payment, error) {
	return s.ListPayments(ctx, tenantID, payment.ListOpts{LienID: lienID})
}

func (s *Store) ListPayments(ctx context.Context, tenantID tenant.ID, opts payment.ListOpts) ([]*payment.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.guard(ctx, tenantID); err != nil {
		return nil, err
	}
	result := make([]*payment.Payment, 0)
	for _, p := range s.payments[tenantID.String()] {
		if !opts.LienID.IsNil() && p.LienID.String() != opts.LienID.String() {
			continue
		}
		result = append(result, clonePayment(p))
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].AppliedDate.Equal(result[j].AppliedDate) {
			return result[i].AppliedDate.Before(result[j].AppliedDate)
		}
		return result[i].ID.String() < result[j].ID.String()
	})
	return page(result, opts.Offset, opts.Limit), nil
}

func (s *Store) PaymentExists(ctx context.Context, tenantID tenant.ID, p *payment.Payment) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.guard(ctx, tenantID); err != nil {
		return false, err
	}
	key := p.DuplicateKey()
	for _, existing := range s.payments[tenantID.String()] {
		if existing.DuplicateKey() == key {
			return true, nil
		}
	}
	return false, nil
}

// Deadline methods

func (s *Store) CreateDeadline(ctx context.Context, tenantID tenant.ID, inst *deadline.Instance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.guard(ctx, tenantID); err != nil {
		return err
	}
	b := bucket(s.deadlines, tenantID)
	if _, exists := b[inst.ID.String()]; exists {
		return lienos.ErrAlreadyExists
	}
	b[inst.ID.String()] = cloneDeadline(inst)
	return nil
}

func (s *Store) GetDeadline(ctx context.Context, tenantID tenant.ID, deadlineID id.DeadlineID) (*deadline.Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.guard(ctx, tenantID); err != nil {
		return nil, err
	}
	if inst, ok := s.deadlines[tenantID.String()][deadlineID.String()]; ok {
		return cloneDeadline(inst), nil
	}
	return nil, lienos.ErrDeadlineNotFound
}

func (s *Store) GetDeadlineByLien(ctx context.Context, tenantID tenant.ID, lienID id.LienID, kind deadline.Kind) (*deadline.Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.guard(ctx, tenantID); err != nil {
		return nil, err
	}
	for _, inst := range s.deadlines[tenantID.String()] {
		if inst.LienID.String() == lienID.String() && inst.Kind == kind {
			return cloneDeadline(inst), nil
		}
	}
	return nil, lienos.ErrDeadlineNotFound
}

func (s *Store) ListDeadlines(ctx context.Context, tenantID tenant.ID, filter deadline.Filter) ([]*deadline.Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.guard(ctx, tenantID); err != nil {
		return nil, err
	}
	result := make([]*deadline.Instance, 0)
	for _, inst := range s.deadlines[tenantID.String()] {
		if matchDeadline(inst, filter) {
			result = append(result, cloneDeadline(inst))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].DueDate.Equal(result[j].DueDate) {
			return result[i].DueDate.Before(result[j].DueDate)
		}
		return result[i].LienID.String() < result[j].LienID.String()
	})
	return page(result, filter.Offset, filter.Limit), nil
}

func (s *Store) UpdateDeadline(ctx context.Context, tenantID tenant.ID, inst *deadline.Instance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.guard(ctx, tenantID); err != nil {
		return err
	}
	b := s.deadlines[tenantID.String()]
	current, exists := b[inst.ID.String()]
	if !exists {
		return lienos.ErrDeadlineNotFound
	}
	if current.Revision != inst.Revision {
		return lienos.ErrStaleWrite
	}
	updated := cloneDeadline(inst)
	updated.Bump()
	b[inst.ID.String()] = updated
	inst.Revision = updated.Revision
	inst.UpdatedAt = updated.UpdatedAt
	return nil
}

// Notification methods

func (s *Store) CreateNotification(ctx context.Context, tenantID tenant.ID, n *notification.Notification) (*notification.Notification, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.guard(ctx, tenantID); err != nil {
		return nil, false, err
	}
	b := bucket(s.notifications, tenantID)
	if n.DedupeKey != "" {
		for _, existing := range b {
			if existing.DedupeKey == n.DedupeKey {
				return cloneNotification(existing), false, nil
			}
		}
	}
	if _, exists := b[n.ID.String()]; exists {
		return nil, false, lienos.ErrAlreadyExists
	}
	stored := cloneNotification(n)
	b[n.ID.String()] = stored
	return cloneNotification(stored), true, nil
}

func (s *Store) GetNotification(ctx context.Context, tenantID tenant.ID, notificationID id.NotificationID) (*notification.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.guard(ctx, tenantID); err != nil {
		return nil, err
	}
	if n, ok := s.notifications[tenantID.String()][notificationID.String()]; ok {
		return cloneNotification(n), nil
	}
	return nil, lienos.ErrNotificationNotFound
}

func (s *Store) ListNotifications(ctx context.Context, tenantID tenant.ID, filter notification.Filter) ([]*notification.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.guard(ctx, tenantID); err != nil {
		return nil, err
	}
	result := make([]*notification.Notification, 0)
	for _, n := range s.notifications[tenantID.String()] {
		if matchNotification(n, filter) {
			result = append(result, cloneNotification(n))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID.String() < result[j].ID.String()
	})
	return page(result, filter.Offset, filter.Limit), nil
}

func (s *Store) MarkNotificationRead(ctx context.Context, tenantID tenant.ID, notificationID id.NotificationID, readAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.guard(ctx, tenantID); err != nil {
		return err
	}
	n, ok := s.notifications[tenantID.String()][notificationID.String()]
	if !ok {
		return lienos.ErrNotificationNotFound
	}
	if !n.Read {
		n.Read = true
		n.ReadAt = &readAt
		n.Bump()
	}
	return nil
}

func (s *Store) UnreadCount(ctx context.Context, tenantID tenant.ID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.guard(ctx, tenantID); err != nil {
		return 0, err
	}
	var count int64
	for _, n := range s.notifications[tenantID.String()] {
		if !n.Read {
			count++
		}
	}
	return count, nil
}

// Core methods

func (s *Store) Migrate(_ context.Context) error { return nil }

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return lienos.ErrStoreClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Filters

func matchLien(l *lien.Lien, f lien.Filter) bool {
	if f.Status != "" && l.Status != f.Status {
		return false
	}
	if f.County != "" && !strings.EqualFold(l.County, f.County) {
		return false
	}
	if f.State != "" && !strings.EqualFold(l.State, f.State) {
		return false
	}
	if !f.PurchasedFrom.IsZero() && l.PurchaseDate.Before(f.PurchasedFrom) {
		return false
	}
	if !f.PurchasedTo.IsZero() && l.PurchaseDate.After(f.PurchasedTo) {
		return false
	}
	if !f.DeadlineFrom.IsZero() && l.RedemptionDeadline.Before(f.DeadlineFrom) {
		return false
	}
	if !f.DeadlineTo.IsZero() && l.RedemptionDeadline.After(f.DeadlineTo) {
		return false
	}
	return true
}

func matchDeadline(inst *deadline.Instance, f deadline.Filter) bool {
	if f.Status != "" && inst.Status != f.Status {
		return false
	}
	if f.Kind != "" && inst.Kind != f.Kind {
		return false
	}
	if !f.DueFrom.IsZero() && inst.DueDate.Before(f.DueFrom) {
		return false
	}
	if !f.DueTo.IsZero() && inst.DueDate.After(f.DueTo) {
		return false
	}
	return true
}

func matchNotification(n *notification.Notification, f notification.Filter) bool {
	if f.Type != "" && n.Type != f.Type {
		return false
	}
	if f.Priority != "" && n.Priority != f.Priority {
		return false
	}
	if !f.LienID.IsNil() && n.LienID.String() != f.LienID.String() {
		return false
	}
	if f.Unread && n.Read {
		return false
	}
	return true
}

// Clones

func cloneLien(l *lien.Lien) *lien.Lien {
	c := *l
	c.Metadata = maps.Clone(l.Metadata)
	return &c
}

func clonePayment(p *payment.Payment) *payment.Payment {
	c := *p
	c.Metadata = maps.Clone(p.Metadata)
	return &c
}

func cloneDeadline(inst *deadline.Instance) *deadline.Instance {
	c := *inst
	c.FiredThresholds = slices.Clone(inst.FiredThresholds)
	return &c
}

func cloneNotification(n *notification.Notification) *notification.Notification {
	c := *n
	if n.ReadAt != nil {
		at := *n.ReadAt
		c.ReadAt = &at
	}
	return &c
}

func page[T any](items []*T, offset, limit int) []*T {
	start := offset
	if start < 0 {
		start = 0
	}
	if start > len(items) {
		start = len(items)
	}
	end := start + limit
	if limit <= 0 || end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
