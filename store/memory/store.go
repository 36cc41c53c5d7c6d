// Package memory provides an in-memory Store for tests, demos, and hosts
// that supply their own durability.
package memory

import (
	"context"
	"sync"

	ledger "github.com/subledger/subledger"
	"github.com/subledger/subledger/id"
	"github.com/subledger/subledger/provider"
	ledgerstore "github.com/subledger/subledger/store"
	"github.com/subledger/subledger/subscriber"
)

// compile-time interface check
var _ ledgerstore.Store = (*Store)(nil)

type Store struct {
	mu sync.RWMutex

	providers   map[string]*provider.Provider
	subscribers map[string]*subscriber.Subscriber
	keys        map[string]struct{}

	closed bool
}

func New() *Store {
	return &Store{
		providers:   make(map[string]*provider.Provider),
		subscribers: make(map[string]*subscriber.Subscriber),
		keys:        make(map[string]struct{}),
	}
}

// Provider Store implementation

func (s *Store) CreateProvider(_ context.Context, p *provider.Provider) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ledger.ErrStoreClosed
	}
	if _, exists := s.providers[p.ID.String()]; exists {
		return ledger.ErrAlreadyExists
	}
	s.providers[p.ID.String()] = p
	return nil
}

func (s *Store) GetProvider(_ context.Context, provID id.ProviderID) (*provider.Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.providers[provID.String()]; ok {
		return p, nil
	}
	return nil, ledger.ErrProviderNotFound
}

func (s *Store) ListProviders(_ context.Context) ([]*provider.Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*provider.Provider, 0, len(s.providers))
	for _, p := range s.providers {
		result = append(result, p)
	}
	return result, nil
}

func (s *Store) UpdateProvider(_ context.Context, p *provider.Provider) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.providers[p.ID.String()]; !exists {
		return ledger.ErrProviderNotFound
	}
	s.providers[p.ID.String()] = p
	return nil
}

func (s *Store) DeleteProvider(_ context.Context, provID id.ProviderID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.providers[provID.String()]; !exists {
		return ledger.ErrProviderNotFound
	}
	delete(s.providers, provID.String())
	return nil
}

func (s *Store) CountProviders(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.providers), nil
}

// Subscriber Store implementation

func (s *Store) CreateSubscriber(_ context.Context, sub *subscriber.Subscriber) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ledger.ErrStoreClosed
	}
	if _, exists := s.subscribers[sub.ID.String()]; exists {
		return ledger.ErrAlreadyExists
	}
	s.subscribers[sub.ID.String()] = sub
	return nil
}

func (s *Store) GetSubscriber(_ context.Context, subID id.SubscriberID) (*subscriber.Subscriber, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if sub, ok := s.subscribers[subID.String()]; ok {
		return sub, nil
	}
	return nil, ledger.ErrSubscriberNotFound
}

func (s *Store) ListSubscribers(_ context.Context) ([]*subscriber.Subscriber, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*subscriber.Subscriber, 0, len(s.subscribers))
	for _, sub := range s.subscribers {
		result = append(result, sub)
	}
	return result, nil
}

func (s *Store) UpdateSubscriber(_ context.Context, sub *subscriber.Subscriber) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.subscribers[sub.ID.String()]; !exists {
		return ledger.ErrSubscriberNotFound
	}
	s.subscribers[sub.ID.String()] = sub
	return nil
}

// Registration key set

func (s *Store) KeyConsumed(_ context.Context, digest string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.keys[digest]
	return ok, nil
}

func (s *Store) ConsumeKey(_ context.Context, digest string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.keys[digest]; ok {
		return ledger.ErrKeyAlreadyUsed
	}
	s.keys[digest] = struct{}{}
	return nil
}

// Core methods

func (s *Store) Migrate(_ context.Context) error { return nil }

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ledger.ErrStoreClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}
