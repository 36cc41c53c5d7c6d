package subscriber

import (
	"testing"
	"time"

	"github.com/subledger/subledger/id"
	"github.com/subledger/subledger/types"
)

func TestNew(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	s := New("bob", types.Amount(1000), "basic", now)

	if s.Owner != "bob" || s.Balance != 1000 || s.Plan != "basic" {
		t.Fatalf("New = %+v", s)
	}
	if s.Paused || len(s.Providers) != 0 {
		t.Fatalf("new subscriber should start active with no subscriptions: %+v", s)
	}
	if s.ID.Prefix() != id.PrefixSubscriber {
		t.Fatalf("prefix = %q, want %q", s.ID.Prefix(), id.PrefixSubscriber)
	}
	if !s.CreatedAt.Equal(now) {
		t.Fatalf("CreatedAt = %v, want %v", s.CreatedAt, now)
	}
}

func TestProviderSet(t *testing.T) {
	s := New("bob", 0, "", time.Now().UTC())
	a, b := id.NewProviderID(), id.NewProviderID()

	s.AddProvider(a)
	s.AddProvider(b)
	s.AddProvider(a) // idempotent
	if len(s.Providers) != 2 {
		t.Fatalf("len = %d, want 2", len(s.Providers))
	}
	if !s.SubscribedTo(a) || !s.SubscribedTo(b) {
		t.Fatal("memberships lost")
	}

	s.DropProvider(a)
	if s.SubscribedTo(a) || len(s.Providers) != 1 {
		t.Fatalf("drop failed: %v", s.Providers)
	}
	s.DropProvider(a) // absent, no-op
	if len(s.Providers) != 1 {
		t.Fatalf("len = %d after repeated drop, want 1", len(s.Providers))
	}
}

func TestCanceled(t *testing.T) {
	s := New("bob", 0, "", time.Now().UTC())
	if s.Canceled() {
		t.Fatal("fresh subscriber must not read as canceled")
	}

	s.Paused = true
	if !s.Canceled() {
		t.Fatal("paused with no subscriptions is canceled")
	}

	s.AddProvider(id.NewProviderID())
	if s.Canceled() {
		t.Fatal("paused with subscriptions is not canceled")
	}
}
