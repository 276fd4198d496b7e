package lien

import (
	"context"

	"github.com/3piecechickendinner/LeinOS/id"
	"github.com/3piecechickendinner/LeinOS/tenant"
	"github.com/3piecechickendinner/LeinOS/types"
)

type Store interface {
	Create(ctx context.Context, tenantID tenant.ID, l *Lien) error
	Get(ctx context.Context, tenantID tenant.ID, lienID id.LienID) (*Lien, error)
	List(ctx context.Context, tenantID tenant.ID, filter Filter) ([]*Lien, error)
	// Update is a versioned write: it fails when l.Revision does not
	// match the stored revision.
	Update(ctx context.Context, tenantID tenant.ID, l *Lien) error
}

// Filter narrows List results. Zero values are ignored. Results are
// ordered by redemption_deadline ascending, ties by id.
type Filter struct {
	Status        Status
	County        string
	State         string
	PurchasedFrom types.Date
	PurchasedTo   types.Date
	DeadlineFrom  types.Date
	DeadlineTo    types.Date
	Limit         int
	Offset        int
}
