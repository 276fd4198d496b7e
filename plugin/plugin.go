// Package plugin provides an extensible plugin system for LeinOS.
// Plugins can hook into lifecycle events to extend functionality.
package plugin

import (
	"context"
	"time"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the plugin is initialized.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine interface{}) error
}

// OnShutdown is called when the plugin is shutting down.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Lien lifecycle hooks
// ──────────────────────────────────────────────────

// OnLienCreated is called when a new lien is created.
type OnLienCreated interface {
	Plugin
	OnLienCreated(ctx context.Context, l interface{}) error
}

// OnLienUpdated is called when a lien's mutable fields change.
type OnLienUpdated interface {
	Plugin
	OnLienUpdated(ctx context.Context, oldLien, newLien interface{}) error
}

// OnLienRedeemed is called when a payment completes a lien's balance.
type OnLienRedeemed interface {
	Plugin
	OnLienRedeemed(ctx context.Context, l interface{}) error
}

// OnLienForeclosed is called when a lien is declared foreclosed.
type OnLienForeclosed interface {
	Plugin
	OnLienForeclosed(ctx context.Context, l interface{}) error
}

// OnLienExpired is called when a sweep expires a past-deadline lien.
type OnLienExpired interface {
	Plugin
	OnLienExpired(ctx context.Context, l interface{}) error
}

// ──────────────────────────────────────────────────
// Payment hooks
// ──────────────────────────────────────────────────

// OnPaymentRecorded is called when a payment is durably recorded.
type OnPaymentRecorded interface {
	Plugin
	OnPaymentRecorded(ctx context.Context, p interface{}) error
}

// ──────────────────────────────────────────────────
// Deadline hooks
// ──────────────────────────────────────────────────

// OnDeadlineAlert is called once per (lien, threshold) firing.
type OnDeadlineAlert interface {
	Plugin
	OnDeadlineAlert(ctx context.Context, lienID string, threshold, daysRemaining int) error
}

// OnSweepCompleted is called at the end of a deadline sweep.
type OnSweepCompleted interface {
	Plugin
	OnSweepCompleted(ctx context.Context, fired int, elapsed time.Duration) error
}

// ──────────────────────────────────────────────────
// Notification hooks
// ──────────────────────────────────────────────────

// OnNotificationCreated is called when a new notification is stored.
// It does not fire for deduplicated creates.
type OnNotificationCreated interface {
	Plugin
	OnNotificationCreated(ctx context.Context, n interface{}) error
}
