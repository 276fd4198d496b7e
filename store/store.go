package store

import (
	"context"
	"time"

	"github.com/3piecechickendinner/LeinOS/deadline"
	"github.com/3piecechickendinner/LeinOS/id"
	"github.com/3piecechickendinner/LeinOS/lien"
	"github.com/3piecechickendinner/LeinOS/notification"
	"github.com/3piecechickendinner/LeinOS/payment"
	"github.com/3piecechickendinner/LeinOS/tenant"
)

// Store is the unified storage interface for all LeinOS entities.
// Instead of embedding the sub-interfaces, we explicitly declare all methods
// to avoid naming conflicts.
//
// Every method takes a tenant.ID and must refuse the zero value. All
// Update methods are versioned writes: the entity's Revision must match
// the stored revision or the write fails with a stale-write error.
type Store interface {
	// Lien methods
	CreateLien(ctx context.Context, tenantID tenant.ID, l *lien.Lien) error
	GetLien(ctx context.Context, tenantID tenant.ID, lienID id.LienID) (*lien.Lien, error)
	ListLiens(ctx context.Context, tenantID tenant.ID, filter lien.Filter) ([]*lien.Lien, error)
	UpdateLien(ctx context.Context, tenantID tenant.ID, l *lien.Lien) error

	// Payment methods (append-only)
	CreatePayment(ctx context.Context, tenantID tenant.ID, p *payment.Payment) error
	GetPayment(ctx context.Context, tenantID tenant.ID, paymentID id.PaymentID) (*payment.Payment, error)
	ListPaymentsByLien(ctx context.Context, tenantID tenant.ID, lienID id.LienID) ([]*payment.Payment, error)
	ListPayments(ctx context.Context, tenantID tenant.ID, opts payment.ListOpts) ([]*payment.Payment, error)
	PaymentExists(ctx context.Context, tenantID tenant.ID, p *payment.Payment) (bool, error)

	// Deadline methods
	CreateDeadline(ctx context.Context, tenantID tenant.ID, inst *deadline.Instance) error
	GetDeadline(ctx context.Context, tenantID tenant.ID, deadlineID id.DeadlineID) (*deadline.Instance, error)
	GetDeadlineByLien(ctx context.Context, tenantID tenant.ID, lienID id.LienID, kind deadline.Kind) (*deadline.Instance, error)
	ListDeadlines(ctx context.Context, tenantID tenant.ID, filter deadline.Filter) ([]*deadline.Instance, error)
	UpdateDeadline(ctx context.Context, tenantID tenant.ID, inst *deadline.Instance) error

	// Notification methods
	CreateNotification(ctx context.Context, tenantID tenant.ID, n *notification.Notification) (*notification.Notification, bool, error)
	GetNotification(ctx context.Context, tenantID tenant.ID, notificationID id.NotificationID) (*notification.Notification, error)
	ListNotifications(ctx context.Context, tenantID tenant.ID, filter notification.Filter) ([]*notification.Notification, error)
	MarkNotificationRead(ctx context.Context, tenantID tenant.ID, notificationID id.NotificationID, readAt time.Time) error
	UnreadCount(ctx context.Context, tenantID tenant.ID) (int64, error)

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
