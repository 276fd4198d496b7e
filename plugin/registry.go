package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"
)

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery for O(1) dispatch performance.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger

	// Type-cached plugin lists for efficient dispatch
	onInit                []OnInit
	onShutdown            []OnShutdown
	onLienCreated         []OnLienCreated
	onLienUpdated         []OnLienUpdated
	onLienRedeemed        []OnLienRedeemed
	onLienForeclosed      []OnLienForeclosed
	onLienExpired         []OnLienExpired
	onPaymentRecorded     []OnPaymentRecorded
	onDeadlineAlert       []OnDeadlineAlert
	onSweepCompleted      []OnSweepCompleted
	onNotificationCreated []OnNotificationCreated
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{logger: slog.Default()}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	// Type-switch to cache interfaces
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnLienCreated); ok {
		r.onLienCreated = append(r.onLienCreated, v)
	}
	if v, ok := p.(OnLienUpdated); ok {
		r.onLienUpdated = append(r.onLienUpdated, v)
	}
	if v, ok := p.(OnLienRedeemed); ok {
		r.onLienRedeemed = append(r.onLienRedeemed, v)
	}
	if v, ok := p.(OnLienForeclosed); ok {
		r.onLienForeclosed = append(r.onLienForeclosed, v)
	}
	if v, ok := p.(OnLienExpired); ok {
		r.onLienExpired = append(r.onLienExpired, v)
	}
	if v, ok := p.(OnPaymentRecorded); ok {
		r.onPaymentRecorded = append(r.onPaymentRecorded, v)
	}
	if v, ok := p.(OnDeadlineAlert); ok {
		r.onDeadlineAlert = append(r.onDeadlineAlert, v)
	}
	if v, ok := p.(OnSweepCompleted); ok {
		r.onSweepCompleted = append(r.onSweepCompleted, v)
	}
	if v, ok := p.(OnNotificationCreated); ok {
		r.onNotificationCreated = append(r.onNotificationCreated, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", r.getImplementedInterfaces(p),
	)

	return nil
}

// getImplementedInterfaces returns a list of interfaces implemented by the plugin.
func (r *Registry) getImplementedInterfaces(p Plugin) []string {
	var interfaces []string
	v := reflect.TypeOf(p)

	checkInterface := func(iface reflect.Type, name string) {
		if v.Implements(iface) {
			interfaces = append(interfaces, name)
		}
	}

	checkInterface(reflect.TypeOf((*OnInit)(nil)).Elem(), "OnInit")
	checkInterface(reflect.TypeOf((*OnShutdown)(nil)).Elem(), "OnShutdown")
	checkInterface(reflect.TypeOf((*OnLienCreated)(nil)).Elem(), "OnLienCreated")
	checkInterface(reflect.TypeOf((*OnLienUpdated)(nil)).Elem(), "OnLienUpdated")
	checkInterface(reflect.TypeOf((*OnLienRedeemed)(nil)).Elem(), "OnLienRedeemed")
	checkInterface(reflect.TypeOf((*OnLienForeclosed)(nil)).Elem(), "OnLienForeclosed")
	checkInterface(reflect.TypeOf((*OnLienExpired)(nil)).Elem(), "OnLienExpired")
	checkInterface(reflect.TypeOf((*OnPaymentRecorded)(nil)).Elem(), "OnPaymentRecorded")
	checkInterface(reflect.TypeOf((*OnDeadlineAlert)(nil)).Elem(), "OnDeadlineAlert")
	checkInterface(reflect.TypeOf((*OnSweepCompleted)(nil)).Elem(), "OnSweepCompleted")
	checkInterface(reflect.TypeOf((*OnNotificationCreated)(nil)).Elem(), "OnNotificationCreated")

	return interfaces
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, engine interface{}) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnInit(ctx, engine)
		}); err != nil {
			r.logger.Warn("plugin OnInit failed", "plugin", p.Name(), "error", err)
		}
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnShutdown(ctx)
		}); err != nil {
			r.logger.Warn("plugin OnShutdown failed", "plugin", p.Name(), "error", err)
		}
	}
}

// EmitLienCreated emits a lien created event.
func (r *Registry) EmitLienCreated(ctx context.Context, l interface{}) {
	r.mu.RLock()
	plugins := r.onLienCreated
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnLienCreated(ctx, l)
		}); err != nil {
			r.logger.Warn("plugin OnLienCreated failed", "plugin", p.Name(), "error", err)
		}
	}
}

// EmitLienUpdated emits a lien updated event.
func (r *Registry) EmitLienUpdated(ctx context.Context, oldLien, newLien interface{}) {
	r.mu.RLock()
	plugins := r.onLienUpdated
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnLienUpdated(ctx, oldLien, newLien)
		}); err != nil {
			r.logger.Warn("plugin OnLienUpdated failed", "plugin", p.Name(), "error", err)
		}
	}
}

// EmitLienRedeemed emits a lien redeemed event.
func (r *Registry) EmitLienRedeemed(ctx context.Context, l interface{}) {
	r.mu.RLock()
	plugins := r.onLienRedeemed
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnLienRedeemed(ctx, l)
		}); err != nil {
			r.logger.Warn("plugin OnLienRedeemed failed", "plugin", p.Name(), "error", err)
		}
	}
}

// EmitLienForeclosed emits a lien foreclosed event.
func (r *Registry) EmitLienForeclosed(ctx context.Context, l interface{}) {
	r.mu.RLock()
	plugins := r.onLienForeclosed
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnLienForeclosed(ctx, l)
		}); err != nil {
			r.logger.Warn("plugin OnLienForeclosed failed", "plugin", p.Name(), "error", err)
		}
	}
}

// EmitLienExpired emits a lien expired event.
func (r *Registry) EmitLienExpired(ctx context.Context, l interface{}) {
	r.mu.RLock()
	plugins := r.onLienExpired
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnLienExpired(ctx, l)
		}); err != nil {
			r.logger.Warn("plugin OnLienExpired failed", "plugin", p.Name(), "error", err)
		}
	}
}

// EmitPaymentRecorded emits a payment recorded event.
func (r *Registry) EmitPaymentRecorded(ctx context.Context, p interface{}) {
	r.mu.RLock()
	plugins := r.onPaymentRecorded
	r.mu.RUnlock()

	for _, pl := range plugins {
		if err := r.callWithTimeout(ctx, pl.Name(), func() error {
			return pl.OnPaymentRecorded(ctx, p)
		}); err != nil {
			r.logger.Warn("plugin OnPaymentRecorded failed", "plugin", pl.Name(), "error", err)
		}
	}
}

// EmitDeadlineAlert emits a deadline alert event.
func (r *Registry) EmitDeadlineAlert(ctx context.Context, lienID string, threshold, daysRemaining int) {
	r.mu.RLock()
	plugins := r.onDeadlineAlert
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnDeadlineAlert(ctx, lienID, threshold, daysRemaining)
		}); err != nil {
			r.logger.Warn("plugin OnDeadlineAlert failed", "plugin", p.Name(), "error", err)
		}
	}
}

// EmitSweepCompleted emits a sweep completed event.
func (r *Registry) EmitSweepCompleted(ctx context.Context, fired int, elapsed time.Duration) {
	r.mu.RLock()
	plugins := r.onSweepCompleted
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnSweepCompleted(ctx, fired, elapsed)
		}); err != nil {
			r.logger.Warn("plugin OnSweepCompleted failed", "plugin", p.Name(), "error", err)
		}
	}
}

// EmitNotificationCreated emits a notification created event.
func (r *Registry) EmitNotificationCreated(ctx context.Context, n interface{}) {
	r.mu.RLock()
	plugins := r.onNotificationCreated
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnNotificationCreated(ctx, n)
		}); err != nil {
			r.logger.Warn("plugin OnNotificationCreated failed", "plugin", p.Name(), "error", err)
		}
	}
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the lifecycle pipeline.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
