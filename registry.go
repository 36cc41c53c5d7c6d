package subledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/subledger/subledger/hook"
	"github.com/subledger/subledger/id"
	"github.com/subledger/subledger/provider"
	"github.com/subledger/subledger/subscriber"
	"github.com/subledger/subledger/types"
)

// keyDigest derives the one-time-use set key from caller-supplied
// registration key bytes. Collision-resistant and deterministic.
func keyDigest(key []byte) string {
	sum := sha256.Sum256(key)
	return hex.EncodeToString(sum[:])
}

// RegisterProvider creates a provider owned by the given principal,
// operated by the caller, with a fee schedule seeded at fee. The
// registration key is consumed and may never be used again. An empty owner
// defaults to the caller.
func (l *Ledger) RegisterProvider(ctx context.Context, caller Caller, owner string, key []byte, fee types.Amount) (*provider.Provider, error) {
	if fee < l.cfg.MinimalFee {
		return nil, ErrFeeBelowMinimum
	}
	if owner == "" {
		owner = caller.ID
	}

	if l.cfg.MaxProviders > 0 {
		count, err := l.store.CountProviders(ctx)
		if err != nil {
			return nil, err
		}
		if count >= l.cfg.MaxProviders {
			return nil, ErrProviderCapReached
		}
	}

	digest := keyDigest(key)
	consumed, err := l.store.KeyConsumed(ctx, digest)
	if err != nil {
		return nil, err
	}
	if consumed {
		return nil, ErrKeyAlreadyUsed
	}

	now := l.clock.Now()
	p := provider.New(owner, caller.ID, fee, now)

	if err := l.store.CreateProvider(ctx, p); err != nil {
		return nil, err
	}
	if err := l.store.ConsumeKey(ctx, digest); err != nil {
		return nil, err
	}

	l.hooks.EmitProviderRegistered(ctx, hook.ProviderRegistered{
		ProviderID: p.ID,
		Owner:      p.Owner,
		Operator:   p.Operator,
		Fee:        fee,
		Key:        key,
		At:         now,
	})
	l.logger.Info("provider registered",
		"provider_id", p.ID.String(),
		"owner", p.Owner,
		"fee", fee,
	)
	return p, nil
}

// RegisterSubscriber creates a subscriber funded by deposit and joins it to
// every currently active provider in the list; inactive providers are
// silently skipped. The working deposit must cover two periods of every
// joined provider's fee, but the full deposit is pulled from the caller and
// recorded as the balance.
func (l *Ledger) RegisterSubscriber(ctx context.Context, caller Caller, deposit types.Amount, plan string, providerIDs []id.ProviderID) (*subscriber.Subscriber, error) {
	if len(providerIDs) < l.cfg.MinSubscriptionProviders || len(providerIDs) > l.cfg.MaxSubscriptionProviders {
		return nil, ErrProviderListSize
	}
	if !deposit.IsPositive() {
		return nil, ErrInvalidAmount
	}

	working := deposit
	joined := make([]*provider.Provider, 0, len(providerIDs))
	seen := make(map[string]struct{}, len(providerIDs))
	for _, pid := range providerIDs {
		// Duplicate ids are rejected here, before the deposit moves or any
		// roster is touched.
		if _, dup := seen[pid.String()]; dup {
			return nil, fmt.Errorf("%w: provider %s", ErrAlreadySubscribed, pid)
		}
		seen[pid.String()] = struct{}{}

		p, err := l.store.GetProvider(ctx, pid)
		if err != nil {
			return nil, err
		}
		if !p.Active {
			continue
		}
		working -= p.Schedule.CurrentRate() * 2
		joined = append(joined, p)
	}
	if working.IsNegative() {
		return nil, ErrDepositTooLow
	}

	if err := l.xfer.TransferFrom(ctx, caller.ID, l.cfg.EscrowAccount, deposit); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}

	now := l.clock.Now()
	s := subscriber.New(caller.ID, deposit, plan, now)

	for _, p := range joined {
		// The subscriber id is freshly generated and the request ids are
		// deduplicated above, so Add cannot fail here.
		if err := p.Roster.Add(s.ID, now); err != nil {
			return nil, fmt.Errorf("%w: provider %s", ErrAlreadySubscribed, p.ID)
		}
		s.AddProvider(p.ID)
	}
	for _, p := range joined {
		p.Touch(now)
		if err := l.store.UpdateProvider(ctx, p); err != nil {
			return nil, err
		}
	}
	if err := l.store.CreateSubscriber(ctx, s); err != nil {
		return nil, err
	}

	l.hooks.EmitSubscriberRegistered(ctx, hook.SubscriberRegistered{
		SubscriberID: s.ID,
		Owner:        s.Owner,
		Deposit:      deposit,
		Plan:         plan,
		Providers:    s.Providers,
		At:           now,
	})
	l.logger.Info("subscriber registered",
		"subscriber_id", s.ID.String(),
		"owner", s.Owner,
		"deposit", deposit,
		"providers", len(s.Providers),
	)
	return s, nil
}

// Deposit tops up a subscriber's prepaid balance, pulling the amount from
// the owner via the value-transfer service. Owner-only.
func (l *Ledger) Deposit(ctx context.Context, caller Caller, subID id.SubscriberID, amount types.Amount) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}

	s, err := l.store.GetSubscriber(ctx, subID)
	if err != nil {
		return err
	}
	if err := requireOwner(caller, s.Owner); err != nil {
		return err
	}

	if err := l.xfer.TransferFrom(ctx, s.Owner, l.cfg.EscrowAccount, amount); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}

	now := l.clock.Now()
	s.Balance += amount
	s.Touch(now)
	if err := l.store.UpdateSubscriber(ctx, s); err != nil {
		return err
	}

	l.hooks.EmitDepositMade(ctx, hook.DepositMade{
		SubscriberID: s.ID,
		Owner:        s.Owner,
		Amount:       amount,
		At:           now,
	})
	return nil
}

// SetProviderStatus toggles the active flag of each listed provider.
// Owner-only per entry; entries whose flag is unchanged are no-ops.
func (l *Ledger) SetProviderStatus(ctx context.Context, caller Caller, provIDs []id.ProviderID, active []bool) error {
	if len(provIDs) != len(active) {
		return ErrBatchLengthMismatch
	}

	// Load and authorize the whole batch before applying anything, so a
	// bad entry aborts with no provider toggled.
	batch := make([]*provider.Provider, len(provIDs))
	for i, pid := range provIDs {
		p, err := l.store.GetProvider(ctx, pid)
		if err != nil {
			return err
		}
		if err := requireOwner(caller, p.Owner); err != nil {
			return err
		}
		batch[i] = p
	}

	now := l.clock.Now()
	for i, p := range batch {
		if p.Active == active[i] {
			continue
		}

		p.Active = active[i]
		p.Touch(now)
		if err := l.store.UpdateProvider(ctx, p); err != nil {
			return err
		}
		l.logger.Info("provider status changed",
			"provider_id", p.ID.String(),
			"active", p.Active,
		)
	}
	return nil
}

// RemoveProvider pays out any residual earnings, detaches every subscriber,
// and deletes the provider with its schedule and roster. Owner-only.
func (l *Ledger) RemoveProvider(ctx context.Context, caller Caller, provID id.ProviderID) error {
	p, err := l.store.GetProvider(ctx, provID)
	if err != nil {
		return err
	}
	if err := requireOwner(caller, p.Owner); err != nil {
		return err
	}

	now := l.clock.Now()
	st, err := l.accrue(ctx, p, now)
	if err != nil {
		return err
	}

	if st.total.IsPositive() {
		if err := l.xfer.Transfer(ctx, p.Owner, st.total); err != nil {
			return fmt.Errorf("%w: %v", ErrTransferFailed, err)
		}
	}

	for _, d := range st.debits {
		d.sub.Balance -= d.amount
		d.sub.DropProvider(p.ID)
		d.sub.Touch(now)
		if err := l.store.UpdateSubscriber(ctx, d.sub); err != nil {
			return err
		}
	}
	if err := l.store.DeleteProvider(ctx, p.ID); err != nil {
		return err
	}

	l.hooks.EmitProviderRemoved(ctx, hook.ProviderRemoved{
		ProviderID: p.ID,
		Owner:      p.Owner,
		Residual:   st.total,
		At:         now,
	})
	l.logger.Info("provider removed",
		"provider_id", p.ID.String(),
		"residual", st.total,
	)
	return nil
}
