package types

import "time"

// Entity is the base type for all LeinOS entities. It carries creation and
// modification timestamps plus the optimistic-concurrency revision counter
// that stores use to serialize writers: an update whose Revision does not
// match the stored value fails instead of silently overwriting.
type Entity struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Revision  int64     `json:"revision"`
}

// NewEntity creates a new Entity with current timestamps at revision 1.
func NewEntity() Entity {
	now := time.Now().UTC()
	return Entity{
		CreatedAt: now,
		UpdatedAt: now,
		Revision:  1,
	}
}

// NewEntityAt is like NewEntity with an explicit creation instant, for
// callers that inject their clock.
func NewEntityAt(now time.Time) Entity {
	now = now.UTC()
	return Entity{
		CreatedAt: now,
		UpdatedAt: now,
		Revision:  1,
	}
}

// Touch updates the UpdatedAt timestamp to now.
func (e *Entity) Touch() {
	e.UpdatedAt = time.Now().UTC()
}

// Bump advances the revision counter and touches the entity. Stores call
// it after a successful compare-and-swap.
func (e *Entity) Bump() {
	e.Revision++
	e.Touch()
}

// Age returns how long ago the entity was created.
func (e Entity) Age() time.Duration {
	return time.Since(e.CreatedAt)
}

// LastModified returns how long ago the entity was last updated.
func (e Entity) LastModified() time.Duration {
	return time.Since(e.UpdatedAt)
}
