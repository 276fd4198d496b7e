package deadline

import (
	"slices"

	"github.com/3piecechickendinner/LeinOS/id"
	"github.com/3piecechickendinner/LeinOS/tenant"
	"github.com/3piecechickendinner/LeinOS/types"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
)

// Kind identifies what the deadline watches. Only redemption deadlines
// are materialized today; the field stays open for other asset classes.
type Kind string

const KindRedemption Kind = "redemption"

// DefaultThresholds is the escalation cascade in days-before-due.
var DefaultThresholds = []int{90, 60, 30, 14, 7, 3, 1, 0}

// Instance is a materialized due-date watch on a lien. FiredThresholds
// is the exactly-once ledger: a threshold present there never fires again.
type Instance struct {
	types.Entity
	ID              id.DeadlineID `json:"id"`
	TenantID        tenant.ID     `json:"tenant_id"`
	LienID          id.LienID     `json:"lien_id"`
	Kind            Kind          `json:"kind"`
	DueDate         types.Date    `json:"due_date"`
	Status          Status        `json:"status"`
	FiredThresholds []int         `json:"fired_thresholds"`
}

// HasFired reports whether threshold has already been alerted.
func (i *Instance) HasFired(threshold int) bool {
	return slices.Contains(i.FiredThresholds, threshold)
}

// MarkFired records threshold in the fired set. Idempotent.
func (i *Instance) MarkFired(threshold int) {
	if i.HasFired(threshold) {
		return
	}
	i.FiredThresholds = append(i.FiredThresholds, threshold)
	slices.Sort(i.FiredThresholds)
}

// PendingThresholds returns the thresholds from cascade that are due
// (daysRemaining <= threshold) and not yet fired, ordered descending
// so farther thresholds fire before closer ones.
func (i *Instance) PendingThresholds(cascade []int, daysRemaining int) []int {
	var due []int
	for _, t := range cascade {
		if daysRemaining <= t && !i.HasFired(t) {
			due = append(due, t)
		}
	}
	slices.SortFunc(due, func(a, b int) int { return b - a })
	return due
}
