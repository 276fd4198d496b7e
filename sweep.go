package lienos

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/3piecechickendinner/LeinOS/deadline"
	"github.com/3piecechickendinner/LeinOS/id"
	"github.com/3piecechickendinner/LeinOS/lien"
	"github.com/3piecechickendinner/LeinOS/notification"
	"github.com/3piecechickendinner/LeinOS/tenant"
	"github.com/3piecechickendinner/LeinOS/types"
)

// highPriorityDays is the days-remaining cutoff below which deadline
// alerts escalate to high priority.
const highPriorityDays = 7

// SweepAlert is one threshold firing produced by a sweep.
type SweepAlert struct {
	LienID        id.LienID                  `json:"lien_id"`
	Threshold     int                        `json:"threshold"`
	DaysRemaining int                        `json:"days_remaining"`
	Notification  *notification.Notification `json:"notification,omitempty"`
}

// SweepResult is the outcome of one deadline sweep.
type SweepResult struct {
	Alerts  []SweepAlert  `json:"alerts"`
	Expired []id.LienID   `json:"expired"`
	Elapsed time.Duration `json:"elapsed"`
}

// RunDeadlineSweep walks every pending deadline watch for the tenant,
// fires due thresholds exactly once, and expires past-due liens. Within
// one instance thresholds fire farthest first, so the fired set is
// always a contiguous prefix of the cascade. Alerts are returned sorted
// by days remaining ascending, ties broken by lien id.
//
// The sweep is safe to run repeatedly: FiredThresholds is the dedup
// ledger and the notification store enforces uniqueness per
// (lien, threshold). Sweeps for different tenants run in parallel; a
// second concurrent sweep for the same tenant fails fast with
// ErrSweepRunning.
func (e *Engine) RunDeadlineSweep(ctx context.Context, tenantID tenant.ID) (*SweepResult, error) {
	if tenantID.IsZero() {
		return nil, ErrMissingTenant
	}
	if !e.beginSweep(tenantID) {
		return nil, ErrSweepRunning
	}
	defer e.endSweep(tenantID)

	start := e.now()
	today := types.DateOf(start)
	result := &SweepResult{}

	instances, err := e.store.ListDeadlines(ctx, tenantID, deadline.Filter{Status: deadline.StatusPending})
	if err != nil {
		return nil, err
	}

	for _, inst := range instances {
		l, err := e.store.GetLien(ctx, tenantID, inst.LienID)
		if err != nil {
			if IsNotFound(err) {
				e.logger.Warn("deadline instance references unknown lien",
					"deadline_id", inst.ID.String(),
					"lien_id", inst.LienID.String(),
				)
				continue
			}
			return nil, err
		}

		if l.Status != lien.StatusActive {
			// The lien reached a terminal state without its watch being
			// completed; close it out now.
			e.completeInstance(ctx, tenantID, inst)
			continue
		}

		days := today.DaysUntil(inst.DueDate)

		for _, t := range inst.PendingThresholds(e.thresholds, days) {
			priority := notification.PriorityNormal
			if days <= highPriorityDays {
				priority = notification.PriorityHigh
			}
			stored, err := e.notify(ctx, tenantID, &notification.Notification{
				Type:      notification.TypeDeadline,
				LienID:    inst.LienID,
				Priority:  priority,
				Message:   deadlineMessage(l, inst.DueDate, days),
				DedupeKey: notification.DeadlineDedupeKey(inst.LienID, t),
			})
			if err != nil {
				// The threshold stays unfired; the next sweep replays it
				// through the same dedupe key.
				if perr := e.persistInstance(ctx, tenantID, inst); perr != nil {
					e.logger.Error("failed to persist partial sweep progress",
						"deadline_id", inst.ID.String(),
						"error", perr,
					)
				}
				return nil, fmt.Errorf("deadline alert for lien %s at threshold %d: %w", inst.LienID, t, err)
			}
			inst.MarkFired(t)
			e.plugins.EmitDeadlineAlert(ctx, inst.LienID.String(), t, days)
			result.Alerts = append(result.Alerts, SweepAlert{
				LienID:        inst.LienID,
				Threshold:     t,
				DaysRemaining: days,
				Notification:  stored,
			})
		}

		if days < 0 {
			expired, err := e.transition(ctx, tenantID, inst.LienID, lien.StatusExpired)
			if err != nil {
				e.logger.Error("failed to expire past-due lien",
					"lien_id", inst.LienID.String(),
					"error", err,
				)
			} else {
				result.Expired = append(result.Expired, expired.ID)
				e.plugins.EmitLienExpired(ctx, expired)
			}
			inst.Status = deadline.StatusCompleted
		}

		if err := e.persistInstance(ctx, tenantID, inst); err != nil {
			return nil, err
		}
	}

	slices.SortStableFunc(result.Alerts, func(a, b SweepAlert) int {
		if a.DaysRemaining != b.DaysRemaining {
			return a.DaysRemaining - b.DaysRemaining
		}
		return strings.Compare(a.LienID.String(), b.LienID.String())
	})

	result.Elapsed = e.now().Sub(start)
	e.plugins.EmitSweepCompleted(ctx, len(result.Alerts), result.Elapsed)

	e.logger.Info("deadline sweep completed",
		"tenant_id", tenantID.String(),
		"instances", len(instances),
		"fired", len(result.Alerts),
		"expired", len(result.Expired),
		"elapsed_ms", result.Elapsed.Milliseconds(),
	)

	return result, nil
}

// ListUpcomingDeadlines returns pending deadline watches due within the
// next windowDays, soonest first.
func (e *Engine) ListUpcomingDeadlines(ctx context.Context, tenantID tenant.ID, windowDays int) ([]*deadline.Instance, error) {
	today := e.today()
	return e.store.ListDeadlines(ctx, tenantID, deadline.Filter{
		Status:  deadline.StatusPending,
		DueFrom: today,
		DueTo:   today.AddDays(windowDays),
	})
}

// persistInstance writes the instance's fired set and status back,
// merging with any concurrent sweep's progress on a stale write.
func (e *Engine) persistInstance(ctx context.Context, tenantID tenant.ID, inst *deadline.Instance) error {
	fired := slices.Clone(inst.FiredThresholds)
	status := inst.Status

	return e.withRetry(ctx, func() error {
		if err := e.store.UpdateDeadline(ctx, tenantID, inst); err == nil {
			return nil
		} else if !IsRetryable(err) {
			return err
		}

		cur, err := e.store.GetDeadline(ctx, tenantID, inst.ID)
		if err != nil {
			return err
		}
		for _, t := range fired {
			cur.MarkFired(t)
		}
		if status == deadline.StatusCompleted {
			cur.Status = status
		}
		if err := e.store.UpdateDeadline(ctx, tenantID, cur); err != nil {
			return err
		}
		*inst = *cur
		return nil
	})
}

// beginSweep claims the tenant's sweep slot. Tenants never contend
// with each other.
func (e *Engine) beginSweep(tenantID tenant.ID) bool {
	e.sweepMu.Lock()
	defer e.sweepMu.Unlock()
	if e.sweeping[tenantID] {
		return false
	}
	e.sweeping[tenantID] = true
	return true
}

func (e *Engine) endSweep(tenantID tenant.ID) {
	e.sweepMu.Lock()
	delete(e.sweeping, tenantID)
	e.sweepMu.Unlock()
}

// completeInstance closes a watch whose lien is already terminal.
func (e *Engine) completeInstance(ctx context.Context, tenantID tenant.ID, inst *deadline.Instance) {
	inst.Status = deadline.StatusCompleted
	if err := e.persistInstance(ctx, tenantID, inst); err != nil {
		e.logger.Warn("failed to complete orphaned deadline instance",
			"deadline_id", inst.ID.String(),
			"error", err,
		)
	}
}

func deadlineMessage(l *lien.Lien, due types.Date, days int) string {
	switch {
	case days < 0:
		return fmt.Sprintf("Redemption deadline for certificate %s passed on %s", l.CertificateNumber, due)
	case days == 0:
		return fmt.Sprintf("Redemption deadline for certificate %s is due today (%s)", l.CertificateNumber, due)
	case days == 1:
		return fmt.Sprintf("Redemption deadline for certificate %s is due tomorrow (%s)", l.CertificateNumber, due)
	default:
		return fmt.Sprintf("Redemption deadline for certificate %s is due in %d days (%s)", l.CertificateNumber, days, due)
	}
}
