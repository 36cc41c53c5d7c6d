// Package store defines the unified storage interface for Subledger
// entities and the one-time-use registration key set.
package store

import (
	"context"

	"github.com/subledger/subledger/id"
	"github.com/subledger/subledger/provider"
	"github.com/subledger/subledger/subscriber"
)

// Store is the unified storage interface for all Subledger entities.
// Implementations must preserve each provider's schedule entries and roster
// members byte-for-byte: the accrual math depends on them exactly.
type Store interface {
	// Provider methods
	CreateProvider(ctx context.Context, p *provider.Provider) error
	GetProvider(ctx context.Context, provID id.ProviderID) (*provider.Provider, error)
	ListProviders(ctx context.Context) ([]*provider.Provider, error)
	UpdateProvider(ctx context.Context, p *provider.Provider) error
	DeleteProvider(ctx context.Context, provID id.ProviderID) error
	CountProviders(ctx context.Context) (int, error)

	// Subscriber methods
	CreateSubscriber(ctx context.Context, s *subscriber.Subscriber) error
	GetSubscriber(ctx context.Context, subID id.SubscriberID) (*subscriber.Subscriber, error)
	ListSubscribers(ctx context.Context) ([]*subscriber.Subscriber, error)
	UpdateSubscriber(ctx context.Context, s *subscriber.Subscriber) error

	// Registration key set: a digest can be consumed exactly once.
	KeyConsumed(ctx context.Context, digest string) (bool, error)
	ConsumeKey(ctx context.Context, digest string) error

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
