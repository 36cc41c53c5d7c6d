package subledger

import (
	"context"
	"log/slog"

	"github.com/subledger/subledger/hook"
	"github.com/subledger/subledger/id"
	"github.com/subledger/subledger/provider"
	"github.com/subledger/subledger/store"
	"github.com/subledger/subledger/subscriber"
	"github.com/subledger/subledger/transfer"
)

// Caller is an already-authenticated principal invoking an operation. The
// engine only compares it against stored owner/operator fields; identity
// verification happens before the engine is called.
type Caller struct {
	ID    string
	Admin bool
}

// Ledger is the subscription billing engine: it tracks providers charging a
// per-hour fee, subscribers prepaying a deposit, and the accrual and
// settlement bookkeeping between them.
//
// Every mutating operation runs to completion against a single sampled
// timestamp; the engine assumes total ordering of mutations is provided by
// its host.
type Ledger struct {
	store  store.Store
	xfer   transfer.Service
	hooks  *hook.Registry
	logger *slog.Logger
	clock  Clock
	cfg    Config
}

// New creates a new Ledger instance settling through the given
// value-transfer service.
func New(s store.Store, xfer transfer.Service, opts ...Option) *Ledger {
	l := &Ledger{
		store:  s,
		xfer:   xfer,
		hooks:  hook.NewRegistry(),
		logger: slog.Default(),
		clock:  SystemClock(),
		cfg:    DefaultConfig(),
	}

	for _, opt := range opts {
		opt(l)
	}
	l.hooks.WithLogger(l.logger)

	return l
}

// Option configures a Ledger instance.
type Option func(*Ledger)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
	}
}

// WithClock sets the time source. Each operation samples it once.
func WithClock(clock Clock) Option {
	return func(l *Ledger) {
		l.clock = clock
	}
}

// WithConfig sets the policy configuration.
func WithConfig(cfg Config) Option {
	return func(l *Ledger) {
		l.cfg = cfg
	}
}

// WithHook registers an event hook. Place it after WithLogger so a
// rejected registration is reported through the configured logger.
func WithHook(h hook.Hook) Option {
	return func(l *Ledger) {
		if err := l.hooks.Register(h); err != nil {
			l.logger.Warn("hook registration rejected",
				"hook", h.Name(),
				"error", err,
			)
		}
	}
}

// Start prepares the backing store.
func (l *Ledger) Start(ctx context.Context) error {
	if err := l.cfg.Validate(); err != nil {
		return err
	}
	if err := l.store.Migrate(ctx); err != nil {
		return err
	}

	l.logger.Info("subledger started",
		"minimal_fee", l.cfg.MinimalFee,
		"max_providers", l.cfg.MaxProviders,
		"non_negative_balances", l.cfg.NonNegativeBalances,
	)
	return nil
}

// Stop shuts down the engine and closes the store.
func (l *Ledger) Stop() error {
	return l.store.Close()
}

// GetProvider retrieves a provider by ID.
func (l *Ledger) GetProvider(ctx context.Context, provID id.ProviderID) (*provider.Provider, error) {
	return l.store.GetProvider(ctx, provID)
}

// GetSubscriber retrieves a subscriber by ID.
func (l *Ledger) GetSubscriber(ctx context.Context, subID id.SubscriberID) (*subscriber.Subscriber, error) {
	return l.store.GetSubscriber(ctx, subID)
}

// requireOwner checks that the caller is the stored owner or an admin.
func requireOwner(caller Caller, owner string) error {
	if caller.Admin || caller.ID == owner {
		return nil
	}
	return ErrNotOwner
}

// requireOwnerOrOperator checks that the caller is the provider's owner,
// its operator, or an admin.
func requireOwnerOrOperator(caller Caller, p *provider.Provider) error {
	if caller.Admin || caller.ID == p.Owner || caller.ID == p.Operator {
		return nil
	}
	return ErrNotOperator
}
