package hook

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Registry manages all registered hooks and provides type-cached dispatch:
// each event interface is matched once at registration, so emitting an
// event walks only the hooks that observe it.
type Registry struct {
	mu     sync.RWMutex
	hooks  []Hook
	logger *slog.Logger

	onProviderRegistered   []OnProviderRegistered
	onProviderRemoved      []OnProviderRemoved
	onSubscriberRegistered []OnSubscriberRegistered
	onWithdrawalSettled    []OnWithdrawalSettled
	onSubscriptionCanceled []OnSubscriptionCanceled
	onDepositMade          []OnDepositMade
}

// NewRegistry creates a new hook registry.
func NewRegistry() *Registry {
	return &Registry{logger: slog.Default()}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// Register adds a hook to the registry and caches its interfaces.
func (r *Registry) Register(h Hook) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.hooks {
		if existing.Name() == h.Name() {
			return fmt.Errorf("hook: duplicate registration: %s", h.Name())
		}
	}
	r.hooks = append(r.hooks, h)

	if v, ok := h.(OnProviderRegistered); ok {
		r.onProviderRegistered = append(r.onProviderRegistered, v)
	}
	if v, ok := h.(OnProviderRemoved); ok {
		r.onProviderRemoved = append(r.onProviderRemoved, v)
	}
	if v, ok := h.(OnSubscriberRegistered); ok {
		r.onSubscriberRegistered = append(r.onSubscriberRegistered, v)
	}
	if v, ok := h.(OnWithdrawalSettled); ok {
		r.onWithdrawalSettled = append(r.onWithdrawalSettled, v)
	}
	if v, ok := h.(OnSubscriptionCanceled); ok {
		r.onSubscriptionCanceled = append(r.onSubscriptionCanceled, v)
	}
	if v, ok := h.(OnDepositMade); ok {
		r.onDepositMade = append(r.onDepositMade, v)
	}
	return nil
}

// Hooks returns the names of all registered hooks.
func (r *Registry) Hooks() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.hooks))
	for _, h := range r.hooks {
		names = append(names, h.Name())
	}
	return names
}

// EmitProviderRegistered dispatches a ProviderRegistered event.
func (r *Registry) EmitProviderRegistered(ctx context.Context, ev ProviderRegistered) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, h := range r.onProviderRegistered {
		if err := h.OnProviderRegistered(ctx, ev); err != nil {
			r.logHookError(h, "provider_registered", err)
		}
	}
}

// EmitProviderRemoved dispatches a ProviderRemoved event.
func (r *Registry) EmitProviderRemoved(ctx context.Context, ev ProviderRemoved) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, h := range r.onProviderRemoved {
		if err := h.OnProviderRemoved(ctx, ev); err != nil {
			r.logHookError(h, "provider_removed", err)
		}
	}
}

// EmitSubscriberRegistered dispatches a SubscriberRegistered event.
func (r *Registry) EmitSubscriberRegistered(ctx context.Context, ev SubscriberRegistered) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, h := range r.onSubscriberRegistered {
		if err := h.OnSubscriberRegistered(ctx, ev); err != nil {
			r.logHookError(h, "subscriber_registered", err)
		}
	}
}

// EmitWithdrawalSettled dispatches a WithdrawalSettled event.
func (r *Registry) EmitWithdrawalSettled(ctx context.Context, ev WithdrawalSettled) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, h := range r.onWithdrawalSettled {
		if err := h.OnWithdrawalSettled(ctx, ev); err != nil {
			r.logHookError(h, "withdrawal_settled", err)
		}
	}
}

// EmitSubscriptionCanceled dispatches a SubscriptionCanceled event.
func (r *Registry) EmitSubscriptionCanceled(ctx context.Context, ev SubscriptionCanceled) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, h := range r.onSubscriptionCanceled {
		if err := h.OnSubscriptionCanceled(ctx, ev); err != nil {
			r.logHookError(h, "subscription_canceled", err)
		}
	}
}

// EmitDepositMade dispatches a DepositMade event.
func (r *Registry) EmitDepositMade(ctx context.Context, ev DepositMade) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, h := range r.onDepositMade {
		if err := h.OnDepositMade(ctx, ev); err != nil {
			r.logHookError(h, "deposit_made", err)
		}
	}
}

func (r *Registry) logHookError(h Hook, event string, err error) {
	r.logger.Error("hook failed",
		"hook", h.Name(),
		"event", event,
		"error", err,
	)
}
