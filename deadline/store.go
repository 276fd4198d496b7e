package deadline

import (
	"context"

	"github.com/3piecechickendinner/LeinOS/id"
	"github.com/3piecechickendinner/LeinOS/tenant"
	"github.com/3piecechickendinner/LeinOS/types"
)

type Store interface {
	Create(ctx context.Context, tenantID tenant.ID, inst *Instance) error
	Get(ctx context.Context, tenantID tenant.ID, deadlineID id.DeadlineID) (*Instance, error)
	GetByLien(ctx context.Context, tenantID tenant.ID, lienID id.LienID, kind Kind) (*Instance, error)
	List(ctx context.Context, tenantID tenant.ID, filter Filter) ([]*Instance, error)
	// Update is a versioned write: stale revisions fail rather than
	// overwrite, which is what keeps FiredThresholds exactly-once
	// under concurrent sweeps.
	Update(ctx context.Context, tenantID tenant.ID, inst *Instance) error
}

// Filter narrows List results. Zero values are ignored. Results are
// ordered by due_date ascending, ties by lien id.
type Filter struct {
	Status  Status
	Kind    Kind
	DueFrom types.Date
	DueTo   types.Date
	Limit   int
	Offset  int
}
