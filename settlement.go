package subledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/subledger/subledger/accrual"
	"github.com/subledger/subledger/hook"
	"github.com/subledger/subledger/id"
	"github.com/subledger/subledger/provider"
	"github.com/subledger/subledger/subscriber"
	"github.com/subledger/subledger/types"
)

// memberDebit is one subscriber's share of a provider settlement.
type memberDebit struct {
	sub    *subscriber.Subscriber
	amount types.Amount
}

// settlement is the computed outcome of settling a provider up to a single
// instant. total always equals the sum of the debit amounts, so every unit
// paid out is matched by a unit debited.
type settlement struct {
	total  types.Amount
	debits []memberDebit
}

// accrue computes each roster member's unsettled share up to now without
// mutating anything. Under the non-negative balance policy each debit is
// clamped at the subscriber's remaining balance and the total shrinks by
// the uncovered remainder.
func (l *Ledger) accrue(ctx context.Context, p *provider.Provider, now time.Time) (*settlement, error) {
	earned := accrual.PerMember(p, now)

	st := &settlement{debits: make([]memberDebit, 0, len(earned))}
	for _, e := range earned {
		s, err := l.store.GetSubscriber(ctx, e.Member.ID)
		if err != nil {
			return nil, err
		}

		amount := e.Amount
		if l.cfg.NonNegativeBalances {
			amount = amount.Min(s.Balance.Max(0))
		}
		st.total += amount
		st.debits = append(st.debits, memberDebit{sub: s, amount: amount})
	}
	return st, nil
}

// Withdraw pays the provider's accrued earnings to its owner, debiting each
// roster member's balance by its share. The withdrawal record and schedule
// prune guarantee settled time is never counted again. Nothing is persisted
// unless the external transfer succeeds: a declined transfer aborts with no
// state change.
func (l *Ledger) Withdraw(ctx context.Context, caller Caller, provID id.ProviderID) (types.Amount, error) {
	p, err := l.store.GetProvider(ctx, provID)
	if err != nil {
		return 0, err
	}
	if err := requireOwnerOrOperator(caller, p); err != nil {
		return 0, err
	}
	if !p.Active {
		return 0, ErrProviderInactive
	}

	now := l.clock.Now()
	st, err := l.accrue(ctx, p, now)
	if err != nil {
		return 0, err
	}
	if !st.total.IsPositive() {
		return 0, nil
	}

	if err := l.xfer.Transfer(ctx, p.Owner, st.total); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}

	for _, d := range st.debits {
		d.sub.Balance -= d.amount
		d.sub.Touch(now)
		if err := l.store.UpdateSubscriber(ctx, d.sub); err != nil {
			return 0, err
		}
	}

	p.LastWithdrawal = provider.Withdrawal{At: now, Amount: st.total}
	p.Schedule.PruneBefore(now)
	p.Touch(now)
	if err := l.store.UpdateProvider(ctx, p); err != nil {
		return 0, err
	}

	l.hooks.EmitWithdrawalSettled(ctx, hook.WithdrawalSettled{
		ProviderID: p.ID,
		Owner:      p.Owner,
		Amount:     st.total,
		At:         now,
	})
	l.logger.Info("withdrawal settled",
		"provider_id", p.ID.String(),
		"amount", st.total,
		"members", len(st.debits),
	)
	return st.total, nil
}

// payout is one provider's cached owed share during a cancellation. The
// owed amounts are computed once and reused for the payout pass, so both
// passes observe the same state and the same now.
type payout struct {
	prov   *provider.Provider
	amount types.Amount
}

// Cancel settles a subscriber's outstanding dues across every subscribed
// provider, then detaches it from all rosters, clears its subscription set,
// and marks it paused. If the dues exceed the prepaid balance the shortfall
// is pulled from the owner; balance beyond what was owed is not refunded.
//
// The shortfall pull and the per-provider payouts are separate external
// transfers. Ledger state commits only after all of them succeed, but
// transfers completed before a later one fails are not recalled; that
// window is inherent to the non-transactional transfer service.
func (l *Ledger) Cancel(ctx context.Context, caller Caller, subID id.SubscriberID) error {
	s, err := l.store.GetSubscriber(ctx, subID)
	if err != nil {
		return err
	}
	if err := requireOwner(caller, s.Owner); err != nil {
		return err
	}
	if s.Canceled() {
		return ErrAlreadyCanceled
	}

	now := l.clock.Now()

	payouts := make([]payout, 0, len(s.Providers))
	var owed types.Amount
	for _, pid := range s.Providers {
		p, err := l.store.GetProvider(ctx, pid)
		if err != nil {
			if errors.Is(err, ErrProviderNotFound) {
				// Stale link to a removed provider; nothing owed.
				continue
			}
			return err
		}

		amount, err := accrual.ForMember(p, s.ID, now)
		if err != nil {
			if errors.Is(err, accrual.ErrNotSubscribed) {
				amount = 0
			} else {
				return err
			}
		}
		owed += amount
		payouts = append(payouts, payout{prov: p, amount: amount})
	}

	// All external transfers run before any balance or roster mutation, so
	// a declined transfer aborts with ledger state untouched.
	var shortfall types.Amount
	if owed > s.Balance {
		shortfall = owed - s.Balance
		if err := l.xfer.TransferFrom(ctx, s.Owner, l.cfg.EscrowAccount, shortfall); err != nil {
			return fmt.Errorf("%w: %v", ErrTransferFailed, err)
		}
	}

	// Providers are paid immediately on cancellation rather than waiting
	// for a batched withdrawal.
	for _, po := range payouts {
		if !po.amount.IsPositive() {
			continue
		}
		if err := l.xfer.Transfer(ctx, po.prov.Owner, po.amount); err != nil {
			return fmt.Errorf("%w: %v", ErrTransferFailed, err)
		}
	}

	if shortfall.IsPositive() {
		s.Balance = 0
	} else {
		s.Balance -= owed
	}

	for _, po := range payouts {
		if err := po.prov.Roster.Remove(s.ID); err != nil {
			return fmt.Errorf("%w: provider %s", ErrNotSubscribed, po.prov.ID)
		}
		po.prov.Touch(now)
		if err := l.store.UpdateProvider(ctx, po.prov); err != nil {
			return err
		}
	}

	s.Providers = nil
	s.Paused = true
	s.Touch(now)
	if err := l.store.UpdateSubscriber(ctx, s); err != nil {
		return err
	}

	l.hooks.EmitSubscriptionCanceled(ctx, hook.SubscriptionCanceled{
		SubscriberID: s.ID,
		Owner:        s.Owner,
		Owed:         owed,
		Shortfall:    shortfall,
		At:           now,
	})
	l.logger.Info("subscription canceled",
		"subscriber_id", s.ID.String(),
		"owed", owed,
		"shortfall", shortfall,
	)
	return nil
}

// SetProviderRate changes a provider's rate going forward, closing the
// open-ended fee entry at the sampled now. Earnings already accrued at the
// old rate are unaffected. Owner or operator only.
func (l *Ledger) SetProviderRate(ctx context.Context, caller Caller, provID id.ProviderID, rate types.Amount) error {
	if rate < l.cfg.MinimalFee {
		return ErrFeeBelowMinimum
	}

	p, err := l.store.GetProvider(ctx, provID)
	if err != nil {
		return err
	}
	if err := requireOwnerOrOperator(caller, p); err != nil {
		return err
	}

	now := l.clock.Now()
	p.Schedule.SetRate(rate, now)
	p.Touch(now)
	if err := l.store.UpdateProvider(ctx, p); err != nil {
		return err
	}

	l.logger.Info("provider rate changed",
		"provider_id", p.ID.String(),
		"rate", rate,
	)
	return nil
}
