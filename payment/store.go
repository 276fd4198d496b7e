package payment

import (
	"context"

	"github.com/3piecechickendinner/LeinOS/id"
	"github.com/3piecechickendinner/LeinOS/tenant"
)

// Store is append-only: payments are never updated or deleted.
type Store interface {
	Create(ctx context.Context, tenantID tenant.ID, p *Payment) error
	Get(ctx context.Context, tenantID tenant.ID, paymentID id.PaymentID) (*Payment, error)
	ListByLien(ctx context.Context, tenantID tenant.ID, lienID id.LienID) ([]*Payment, error)
	List(ctx context.Context, tenantID tenant.ID, opts ListOpts) ([]*Payment, error)
	// ExistsDuplicate reports whether a payment with the same
	// (lien_id, applied_date, amount, reference) tuple already exists.
	ExistsDuplicate(ctx context.Context, tenantID tenant.ID, p *Payment) (bool, error)
}

type ListOpts struct {
	LienID id.LienID
	Limit  int
	Offset int
}
