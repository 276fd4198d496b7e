// Package audithook bridges LeinOS lifecycle events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not depend on
// any particular audit store. Callers inject a RecorderFunc adapter that
// bridges to their backend at wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/3piecechickendinner/LeinOS/plugin"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin                = (*Extension)(nil)
	_ plugin.OnLienCreated         = (*Extension)(nil)
	_ plugin.OnLienUpdated         = (*Extension)(nil)
	_ plugin.OnLienRedeemed        = (*Extension)(nil)
	_ plugin.OnLienForeclosed      = (*Extension)(nil)
	_ plugin.OnLienExpired         = (*Extension)(nil)
	_ plugin.OnPaymentRecorded     = (*Extension)(nil)
	_ plugin.OnDeadlineAlert       = (*Extension)(nil)
	_ plugin.OnSweepCompleted      = (*Extension)(nil)
	_ plugin.OnNotificationCreated = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges LeinOS lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Lien lifecycle hooks
// ──────────────────────────────────────────────────

// OnLienCreated implements plugin.OnLienCreated.
func (e *Extension) OnLienCreated(ctx context.Context, _ interface{}) error {
	return e.record(ctx, ActionLienCreated, SeverityInfo, OutcomeSuccess,
		ResourceLien, "", CategoryLedger, nil,
		"event", "lien_created",
	)
}

// OnLienUpdated implements plugin.OnLienUpdated.
func (e *Extension) OnLienUpdated(ctx context.Context, _, _ interface{}) error {
	return e.record(ctx, ActionLienUpdated, SeverityInfo, OutcomeSuccess,
		ResourceLien, "", CategoryLedger, nil,
		"event", "lien_updated",
	)
}

// OnLienRedeemed implements plugin.OnLienRedeemed.
func (e *Extension) OnLienRedeemed(ctx context.Context, _ interface{}) error {
	return e.record(ctx, ActionLienRedeemed, SeverityInfo, OutcomeSuccess,
		ResourceLien, "", CategoryLedger, nil,
		"event", "lien_redeemed",
	)
}

// OnLienForeclosed implements plugin.OnLienForeclosed.
func (e *Extension) OnLienForeclosed(ctx context.Context, _ interface{}) error {
	return e.record(ctx, ActionLienForeclosed, SeverityWarning, OutcomeSuccess,
		ResourceLien, "", CategoryLedger, nil,
		"event", "lien_foreclosed",
	)
}

// OnLienExpired implements plugin.OnLienExpired.
func (e *Extension) OnLienExpired(ctx context.Context, _ interface{}) error {
	return e.record(ctx, ActionLienExpired, SeverityWarning, OutcomeSuccess,
		ResourceLien, "", CategoryLedger, nil,
		"event", "lien_expired",
	)
}

// ──────────────────────────────────────────────────
// Payment hooks
// ──────────────────────────────────────────────────

// OnPaymentRecorded implements plugin.OnPaymentRecorded.
func (e *Extension) OnPaymentRecorded(ctx context.Context, _ interface{}) error {
	return e.record(ctx, ActionPaymentRecorded, SeverityInfo, OutcomeSuccess,
		ResourcePayment, "", CategoryPayment, nil,
		"event", "payment_recorded",
	)
}

// ──────────────────────────────────────────────────
// Deadline hooks
// ──────────────────────────────────────────────────

// OnDeadlineAlert implements plugin.OnDeadlineAlert.
func (e *Extension) OnDeadlineAlert(ctx context.Context, lienID string, threshold, daysRemaining int) error {
	severity := SeverityInfo
	if daysRemaining <= 7 {
		severity = SeverityWarning
	}
	return e.record(ctx, ActionDeadlineAlert, severity, OutcomeSuccess,
		ResourceDeadline, lienID, CategorySchedule, nil,
		"lien_id", lienID,
		"threshold", threshold,
		"days_remaining", daysRemaining,
	)
}

// OnSweepCompleted implements plugin.OnSweepCompleted.
func (e *Extension) OnSweepCompleted(ctx context.Context, fired int, elapsed time.Duration) error {
	return e.record(ctx, ActionSweepCompleted, SeverityInfo, OutcomeSuccess,
		ResourceDeadline, "", CategorySchedule, nil,
		"fired", fired,
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// ──────────────────────────────────────────────────
// Notification hooks
// ──────────────────────────────────────────────────

// OnNotificationCreated implements plugin.OnNotificationCreated.
func (e *Extension) OnNotificationCreated(ctx context.Context, _ interface{}) error {
	return e.record(ctx, ActionNotificationCreated, SeverityInfo, OutcomeSuccess,
		ResourceNotification, "", CategoryAlerting, nil,
		"event", "notification_created",
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
