package notification

import (
	"context"
	"time"

	"github.com/3piecechickendinner/LeinOS/id"
	"github.com/3piecechickendinner/LeinOS/tenant"
)

type Store interface {
	// Create enforces dedupe-key uniqueness: when a notification with
	// the same non-empty DedupeKey already exists, the existing record
	// is returned and created is false. No error, since concurrent
	// sweeps make this the expected path.
	Create(ctx context.Context, tenantID tenant.ID, n *Notification) (existing *Notification, created bool, err error)
	Get(ctx context.Context, tenantID tenant.ID, notificationID id.NotificationID) (*Notification, error)
	List(ctx context.Context, tenantID tenant.ID, filter Filter) ([]*Notification, error)
	MarkRead(ctx context.Context, tenantID tenant.ID, notificationID id.NotificationID, readAt time.Time) error
	UnreadCount(ctx context.Context, tenantID tenant.ID) (int64, error)
}

// Filter narrows List results. Unread filters to read=false when true.
// Results are ordered by created_at descending.
type Filter struct {
	Type     Type
	Priority Priority
	LienID   id.LienID
	Unread   bool
	Limit    int
	Offset   int
}
