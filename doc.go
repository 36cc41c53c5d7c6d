// Package subledger provides an embeddable subscription billing ledger for
// Go applications.
//
// Subledger is designed as a library, not a service. It tracks service
// providers charging a per-hour fee, subscribers prepaying a deposit to
// consume several providers at once, and the accounting between them:
//
//   - Time-sliced earnings accrual: fee changes mid-period are prorated
//     exactly, at whole-hour granularity, with integer-only arithmetic
//   - Provider withdrawals that debit each subscriber's share and never
//     count settled time twice
//   - Subscriber cancellation that settles outstanding dues across every
//     subscribed provider, pulling any shortfall from the owner
//   - Registration with one-time-use keys, minimum-fee enforcement, and
//     deposit coverage checks
//
// # Quick Start
//
// Create a ledger instance with your preferred store and a value-transfer
// service:
//
//	import (
//	    "github.com/subledger/subledger"
//	    "github.com/subledger/subledger/store/memory"
//	    "github.com/subledger/subledger/transfer"
//	)
//
//	bank := transfer.NewBank("escrow")
//	l := subledger.New(memory.New(), bank)
//
//	if err := l.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer l.Stop()
//
// Register a provider and a subscriber:
//
//	p, err := l.RegisterProvider(ctx, caller, "", []byte("reg-key"), 100)
//	s, err := l.RegisterSubscriber(ctx, caller, 1000, "basic", providerIDs)
//
// Settle accrued earnings:
//
//	amount, err := l.Withdraw(ctx, ownerCaller, p.ID)
//
// # Execution model
//
// Every mutating operation runs to completion against a single sampled
// timestamp and assumes total ordering is provided by the host (a
// single-writer transactional log, a mutex around the engine, or similar).
// The engine itself holds no locks across entities.
//
// All monetary calculations use integer arithmetic. The Amount type is a
// value in whole currency units; fee rates charge per whole hour, and
// fractional hours truncate per fee slice.
//
// # TypeID
//
// All entities use TypeID for globally unique, type-safe identifiers:
//
//	prov_01h2xcejqtf2nbrexx3vqjhp41  // Provider ID
//	subr_01h455vb4pex5vsknk084sn02q  // Subscriber ID
//
// TypeIDs are K-sortable, making them ideal for database indexes and
// providing natural time-ordering of entities.
package subledger
