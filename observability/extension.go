// Package observability provides a metrics extension for LeinOS that records
// lifecycle event counts through a pluggable MetricFactory.
package observability

import (
	"context"
	"time"

	"github.com/3piecechickendinner/LeinOS/payment"
	"github.com/3piecechickendinner/LeinOS/plugin"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin                = (*MetricsExtension)(nil)
	_ plugin.OnInit                = (*MetricsExtension)(nil)
	_ plugin.OnLienCreated         = (*MetricsExtension)(nil)
	_ plugin.OnLienUpdated         = (*MetricsExtension)(nil)
	_ plugin.OnLienRedeemed        = (*MetricsExtension)(nil)
	_ plugin.OnLienForeclosed      = (*MetricsExtension)(nil)
	_ plugin.OnLienExpired         = (*MetricsExtension)(nil)
	_ plugin.OnPaymentRecorded     = (*MetricsExtension)(nil)
	_ plugin.OnDeadlineAlert       = (*MetricsExtension)(nil)
	_ plugin.OnSweepCompleted      = (*MetricsExtension)(nil)
	_ plugin.OnNotificationCreated = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide lifecycle metrics.
// Register it as a LeinOS plugin to automatically track portfolio metrics.
type MetricsExtension struct {
	factory MetricFactory

	// Lien metrics
	LienCreated    Counter
	LienUpdated    Counter
	LienRedeemed   Counter
	LienForeclosed Counter
	LienExpired    Counter

	// Payment metrics
	PaymentRecorded Counter
	PaymentAmount   Histogram

	// Deadline metrics
	DeadlineAlerts Counter
	SweepFired     Counter
	SweepLatency   Histogram

	// Notification metrics
	NotificationCreated Counter

	// Error metrics
	StoreErrors  Counter
	PluginErrors Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		// Lien metrics
		LienCreated:    factory.Counter("lienos.lien.created"),
		LienUpdated:    factory.Counter("lienos.lien.updated"),
		LienRedeemed:   factory.Counter("lienos.lien.redeemed"),
		LienForeclosed: factory.Counter("lienos.lien.foreclosed"),
		LienExpired:    factory.Counter("lienos.lien.expired"),

		// Payment metrics
		PaymentRecorded: factory.Counter("lienos.payment.recorded"),
		PaymentAmount:   factory.Histogram("lienos.payment.amount_cents"),

		// Deadline metrics
		DeadlineAlerts: factory.Counter("lienos.deadline.alerts"),
		SweepFired:     factory.Counter("lienos.sweep.fired"),
		SweepLatency:   factory.Histogram("lienos.sweep.latency_ms"),

		// Notification metrics
		NotificationCreated: factory.Counter("lienos.notification.created"),

		// Error metrics
		StoreErrors:  factory.Counter("lienos.store.errors"),
		PluginErrors: factory.Counter("lienos.plugin.errors"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	// No initialization needed
	return nil
}

// ──────────────────────────────────────────────────
// Lien lifecycle hooks
// ──────────────────────────────────────────────────

// OnLienCreated implements plugin.OnLienCreated.
func (m *MetricsExtension) OnLienCreated(_ context.Context, _ interface{}) error {
	m.LienCreated.Inc()
	return nil
}

// OnLienUpdated implements plugin.OnLienUpdated.
func (m *MetricsExtension) OnLienUpdated(_ context.Context, _, _ interface{}) error {
	m.LienUpdated.Inc()
	return nil
}

// OnLienRedeemed implements plugin.OnLienRedeemed.
func (m *MetricsExtension) OnLienRedeemed(_ context.Context, _ interface{}) error {
	m.LienRedeemed.Inc()
	return nil
}

// OnLienForeclosed implements plugin.OnLienForeclosed.
func (m *MetricsExtension) OnLienForeclosed(_ context.Context, _ interface{}) error {
	m.LienForeclosed.Inc()
	return nil
}

// OnLienExpired implements plugin.OnLienExpired.
func (m *MetricsExtension) OnLienExpired(_ context.Context, _ interface{}) error {
	m.LienExpired.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Payment hooks
// ──────────────────────────────────────────────────

// OnPaymentRecorded implements plugin.OnPaymentRecorded.
func (m *MetricsExtension) OnPaymentRecorded(_ context.Context, p interface{}) error {
	m.PaymentRecorded.Inc()
	if pay, ok := p.(*payment.Payment); ok {
		m.PaymentAmount.Observe(float64(pay.Amount.Amount))
	}
	return nil
}

// ──────────────────────────────────────────────────
// Deadline hooks
// ──────────────────────────────────────────────────

// OnDeadlineAlert implements plugin.OnDeadlineAlert.
func (m *MetricsExtension) OnDeadlineAlert(_ context.Context, _ string, _, _ int) error {
	m.DeadlineAlerts.Inc()
	return nil
}

// OnSweepCompleted implements plugin.OnSweepCompleted.
func (m *MetricsExtension) OnSweepCompleted(_ context.Context, fired int, elapsed time.Duration) error {
	m.SweepFired.Add(float64(fired))
	m.SweepLatency.Observe(float64(elapsed.Milliseconds()))
	return nil
}

// ──────────────────────────────────────────────────
// Notification hooks
// ──────────────────────────────────────────────────

// OnNotificationCreated implements plugin.OnNotificationCreated.
func (m *MetricsExtension) OnNotificationCreated(_ context.Context, _ interface{}) error {
	m.NotificationCreated.Inc()
	return nil
}
