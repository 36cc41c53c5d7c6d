package subledger_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	subledger "github.com/subledger/subledger"
	"github.com/subledger/subledger/hook"
	"github.com/subledger/subledger/id"
	"github.com/subledger/subledger/store/memory"
	"github.com/subledger/subledger/transfer"
	"github.com/subledger/subledger/types"
)

// fakeClock is a settable time source so accrual windows are exact.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// flakyService wraps a Service and can be switched into a declining mode.
type flakyService struct {
	transfer.Service
	fail bool
}

func (f *flakyService) Transfer(ctx context.Context, to string, amount types.Amount) error {
	if f.fail {
		return errors.New("declined")
	}
	return f.Service.Transfer(ctx, to, amount)
}

func (f *flakyService) TransferFrom(ctx context.Context, from, to string, amount types.Amount) error {
	if f.fail {
		return errors.New("declined")
	}
	return f.Service.TransferFrom(ctx, from, to, amount)
}

const escrow = "subledger"

type fixture struct {
	ledger *subledger.Ledger
	bank   *transfer.Bank
	xfer   *flakyService
	clock  *fakeClock
}

func newFixture(t *testing.T, opts ...subledger.Option) *fixture {
	t.Helper()

	bank := transfer.NewBank(escrow)
	bank.Credit(escrow, 1_000_000) // float backing post-pay settlements
	xfer := &flakyService{Service: bank}
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}

	opts = append([]subledger.Option{subledger.WithClock(clock)}, opts...)
	l := subledger.New(memory.New(), xfer, opts...)
	require.NoError(t, l.Start(context.Background()))
	t.Cleanup(func() { _ = l.Stop() })

	return &fixture{ledger: l, bank: bank, xfer: xfer, clock: clock}
}

// registerProviders creates n active providers with distinct owners and keys.
func (f *fixture) registerProviders(t *testing.T, n int, fee types.Amount) []id.ProviderID {
	t.Helper()
	ctx := context.Background()

	ids := make([]id.ProviderID, n)
	for i := range ids {
		owner := fmt.Sprintf("owner-%d", i)
		key := []byte(fmt.Sprintf("%s/key-%d", t.Name(), i))
		p, err := f.ledger.RegisterProvider(ctx, subledger.Caller{ID: owner}, "", key, fee)
		require.NoError(t, err)
		ids[i] = p.ID
	}
	return ids
}

func (f *fixture) total(accounts ...string) types.Amount {
	sum := f.bank.Balance(escrow)
	for _, a := range accounts {
		sum += f.bank.Balance(a)
	}
	return sum
}

func TestFullSettlementFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	provIDs := f.registerProviders(t, 3, 100)
	f.bank.Credit("bob", 1000)

	before := f.total("bob", "owner-0", "owner-1", "owner-2")

	sub, err := f.ledger.RegisterSubscriber(ctx, subledger.Caller{ID: "bob"}, 1000, "standard", provIDs)
	require.NoError(t, err)
	assert.Equal(t, types.Amount(1000), sub.Balance)
	assert.Equal(t, types.Amount(0), f.bank.Balance("bob"))
	assert.Len(t, sub.Providers, 3)

	for _, pid := range provIDs {
		p, err := f.ledger.GetProvider(ctx, pid)
		require.NoError(t, err)
		assert.Equal(t, 1, p.Roster.Len())
	}

	// One month of service at 100 per hour.
	f.clock.Advance(730 * time.Hour)

	amount, err := f.ledger.Withdraw(ctx, subledger.Caller{ID: "owner-0"}, provIDs[0])
	require.NoError(t, err)
	assert.Equal(t, types.Amount(73000), amount)
	assert.Equal(t, types.Amount(73000), f.bank.Balance("owner-0"))

	sub, err = f.ledger.GetSubscriber(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, types.Amount(1000-73000), sub.Balance)

	// Settled time must never be counted twice.
	amount, err = f.ledger.Withdraw(ctx, subledger.Caller{ID: "owner-0"}, provIDs[0])
	require.NoError(t, err)
	assert.Equal(t, types.Amount(0), amount)
	assert.Equal(t, types.Amount(73000), f.bank.Balance("owner-0"))

	// Another accrued hour settles exactly one more fee.
	f.clock.Advance(time.Hour)
	amount, err = f.ledger.Withdraw(ctx, subledger.Caller{ID: "owner-0"}, provIDs[0])
	require.NoError(t, err)
	assert.Equal(t, types.Amount(100), amount)

	// No money is created or destroyed, only moved.
	assert.Equal(t, before, f.total("bob", "owner-0", "owner-1", "owner-2"))
}

func TestRegisterProviderValidation(t *testing.T) {
	f := newFixture(t, subledger.WithConfig(func() subledger.Config {
		cfg := subledger.DefaultConfig()
		cfg.MinimalFee = 10
		cfg.MaxProviders = 2
		return cfg
	}()))
	ctx := context.Background()
	caller := subledger.Caller{ID: "alice"}

	_, err := f.ledger.RegisterProvider(ctx, caller, "", []byte("k1"), 9)
	assert.ErrorIs(t, err, subledger.ErrFeeBelowMinimum)

	p, err := f.ledger.RegisterProvider(ctx, caller, "", []byte("k1"), 10)
	require.NoError(t, err)
	assert.Equal(t, "alice", p.Owner)
	assert.Equal(t, "alice", p.Operator)
	assert.True(t, p.Active)

	// The key was consumed; it never opens a second provider.
	_, err = f.ledger.RegisterProvider(ctx, subledger.Caller{ID: "mallory"}, "", []byte("k1"), 10)
	assert.ErrorIs(t, err, subledger.ErrKeyAlreadyUsed)

	_, err = f.ledger.RegisterProvider(ctx, caller, "", []byte("k2"), 10)
	require.NoError(t, err)
	_, err = f.ledger.RegisterProvider(ctx, caller, "", []byte("k3"), 10)
	assert.ErrorIs(t, err, subledger.ErrProviderCapReached)
}

func TestRegisterSubscriberValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	provIDs := f.registerProviders(t, 3, 100)
	f.bank.Credit("bob", 10_000)

	_, err := f.ledger.RegisterSubscriber(ctx, subledger.Caller{ID: "bob"}, 1000, "", provIDs[:2])
	assert.ErrorIs(t, err, subledger.ErrProviderListSize)

	tooMany := make([]id.ProviderID, 15)
	for i := range tooMany {
		tooMany[i] = provIDs[0]
	}
	_, err = f.ledger.RegisterSubscriber(ctx, subledger.Caller{ID: "bob"}, 1000, "", tooMany)
	assert.ErrorIs(t, err, subledger.ErrProviderListSize)

	_, err = f.ledger.RegisterSubscriber(ctx, subledger.Caller{ID: "bob"}, 0, "", provIDs)
	assert.ErrorIs(t, err, subledger.ErrInvalidAmount)

	// Three fees of 100 need a deposit of at least 600 to cover two periods.
	bobBefore := f.bank.Balance("bob")
	_, err = f.ledger.RegisterSubscriber(ctx, subledger.Caller{ID: "bob"}, 599, "", provIDs)
	assert.ErrorIs(t, err, subledger.ErrDepositTooLow)
	assert.Equal(t, bobBefore, f.bank.Balance("bob"), "rejected registration must not move money")

	_, err = f.ledger.RegisterSubscriber(ctx, subledger.Caller{ID: "bob"}, 600, "", provIDs)
	require.NoError(t, err)
}

func TestInactiveProvidersSkipped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	provIDs := f.registerProviders(t, 3, 100)
	require.NoError(t, f.ledger.SetProviderStatus(ctx,
		subledger.Caller{ID: "owner-2"}, provIDs[2:], []bool{false}))

	f.bank.Credit("bob", 1000)
	sub, err := f.ledger.RegisterSubscriber(ctx, subledger.Caller{ID: "bob"}, 1000, "", provIDs)
	require.NoError(t, err)
	assert.Len(t, sub.Providers, 2, "inactive provider must be skipped, not joined")

	inactive, err := f.ledger.GetProvider(ctx, provIDs[2])
	require.NoError(t, err)
	assert.Equal(t, 0, inactive.Roster.Len())

	_, err = f.ledger.Withdraw(ctx, subledger.Caller{ID: "owner-2"}, provIDs[2])
	assert.ErrorIs(t, err, subledger.ErrProviderInactive)
}

func TestSetProviderStatusAuth(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	provIDs := f.registerProviders(t, 1, 100)

	err := f.ledger.SetProviderStatus(ctx, subledger.Caller{ID: "stranger"}, provIDs, []bool{false})
	assert.ErrorIs(t, err, subledger.ErrNotOwner)

	err = f.ledger.SetProviderStatus(ctx, subledger.Caller{ID: "x"}, provIDs, []bool{false, true})
	assert.ErrorIs(t, err, subledger.ErrBatchLengthMismatch)

	// Admins may toggle any provider.
	err = f.ledger.SetProviderStatus(ctx, subledger.Caller{Admin: true}, provIDs, []bool{false})
	require.NoError(t, err)
	p, err := f.ledger.GetProvider(ctx, provIDs[0])
	require.NoError(t, err)
	assert.False(t, p.Active)
}

func TestWithdrawAuth(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.ledger.RegisterProvider(ctx,
		subledger.Caller{ID: "operator"}, "owner", []byte("wk"), 100)
	require.NoError(t, err)

	_, err = f.ledger.Withdraw(ctx, subledger.Caller{ID: "stranger"}, p.ID)
	assert.ErrorIs(t, err, subledger.ErrNotOperator)

	// Owner, operator, and admin are all allowed.
	for _, caller := range []subledger.Caller{
		{ID: "owner"}, {ID: "operator"}, {Admin: true},
	} {
		_, err = f.ledger.Withdraw(ctx, caller, p.ID)
		require.NoError(t, err)
	}
}

func TestDeposit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	provIDs := f.registerProviders(t, 3, 1)
	f.bank.Credit("bob", 500)
	sub, err := f.ledger.RegisterSubscriber(ctx, subledger.Caller{ID: "bob"}, 100, "", provIDs)
	require.NoError(t, err)

	err = f.ledger.Deposit(ctx, subledger.Caller{ID: "stranger"}, sub.ID, 50)
	assert.ErrorIs(t, err, subledger.ErrNotOwner)

	err = f.ledger.Deposit(ctx, subledger.Caller{ID: "bob"}, sub.ID, 0)
	assert.ErrorIs(t, err, subledger.ErrInvalidAmount)

	err = f.ledger.Deposit(ctx, subledger.Caller{ID: "bob"}, sub.ID, 50)
	require.NoError(t, err)

	sub, err = f.ledger.GetSubscriber(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, types.Amount(150), sub.Balance)
	assert.Equal(t, types.Amount(350), f.bank.Balance("bob"))
}

func TestCancelCoveredByBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	provIDs := f.registerProviders(t, 3, 1)
	f.bank.Credit("bob", 200)
	sub, err := f.ledger.RegisterSubscriber(ctx, subledger.Caller{ID: "bob"}, 200, "", provIDs)
	require.NoError(t, err)

	f.clock.Advance(10 * time.Hour)

	require.NoError(t, f.ledger.Cancel(ctx, subledger.Caller{ID: "bob"}, sub.ID))

	sub, err = f.ledger.GetSubscriber(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, types.Amount(200-30), sub.Balance, "10h at 1/h across 3 providers")
	assert.True(t, sub.Paused)
	assert.True(t, sub.Canceled())
	assert.Empty(t, sub.Providers)

	for i, pid := range provIDs {
		p, err := f.ledger.GetProvider(ctx, pid)
		require.NoError(t, err)
		assert.Equal(t, 0, p.Roster.Len())
		assert.Equal(t, types.Amount(10), f.bank.Balance(fmt.Sprintf("owner-%d", i)))
	}

	err = f.ledger.Cancel(ctx, subledger.Caller{ID: "bob"}, sub.ID)
	assert.ErrorIs(t, err, subledger.ErrAlreadyCanceled)
}

func TestCancelWithShortfall(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	provIDs := f.registerProviders(t, 3, 1)
	f.bank.Credit("bob", 1000)
	sub, err := f.ledger.RegisterSubscriber(ctx, subledger.Caller{ID: "bob"}, 200, "", provIDs)
	require.NoError(t, err)

	// Owes 300, prepaid only 200: the missing 100 is pulled from the owner.
	f.clock.Advance(100 * time.Hour)
	bobBefore := f.bank.Balance("bob")

	require.NoError(t, f.ledger.Cancel(ctx, subledger.Caller{ID: "bob"}, sub.ID))

	sub, err = f.ledger.GetSubscriber(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, types.Amount(0), sub.Balance)
	assert.True(t, sub.Canceled())
	assert.Equal(t, bobBefore-100, f.bank.Balance("bob"))

	for i := range provIDs {
		assert.Equal(t, types.Amount(100), f.bank.Balance(fmt.Sprintf("owner-%d", i)))
	}
}

func TestCancelAuth(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	provIDs := f.registerProviders(t, 3, 1)
	f.bank.Credit("bob", 100)
	sub, err := f.ledger.RegisterSubscriber(ctx, subledger.Caller{ID: "bob"}, 100, "", provIDs)
	require.NoError(t, err)

	err = f.ledger.Cancel(ctx, subledger.Caller{ID: "stranger"}, sub.ID)
	assert.ErrorIs(t, err, subledger.ErrNotOwner)
}

func TestSetProviderRateProration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	provIDs := f.registerProviders(t, 3, 100)
	f.bank.Credit("bob", 1000)
	_, err := f.ledger.RegisterSubscriber(ctx, subledger.Caller{ID: "bob"}, 1000, "", provIDs)
	require.NoError(t, err)

	f.clock.Advance(10 * time.Hour)
	require.NoError(t, f.ledger.SetProviderRate(ctx,
		subledger.Caller{ID: "owner-0"}, provIDs[0], 50))
	f.clock.Advance(10 * time.Hour)

	err = f.ledger.SetProviderRate(ctx, subledger.Caller{ID: "stranger"}, provIDs[0], 70)
	assert.ErrorIs(t, err, subledger.ErrNotOperator)

	amount, err := f.ledger.Withdraw(ctx, subledger.Caller{ID: "owner-0"}, provIDs[0])
	require.NoError(t, err)
	assert.Equal(t, types.Amount(10*100+10*50), amount)
}

func TestRemoveProvider(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	provIDs := f.registerProviders(t, 3, 100)
	f.bank.Credit("bob", 1000)
	sub, err := f.ledger.RegisterSubscriber(ctx, subledger.Caller{ID: "bob"}, 1000, "", provIDs)
	require.NoError(t, err)

	f.clock.Advance(5 * time.Hour)

	err = f.ledger.RemoveProvider(ctx, subledger.Caller{ID: "stranger"}, provIDs[0])
	assert.ErrorIs(t, err, subledger.ErrNotOwner)

	require.NoError(t, f.ledger.RemoveProvider(ctx, subledger.Caller{ID: "owner-0"}, provIDs[0]))

	assert.Equal(t, types.Amount(500), f.bank.Balance("owner-0"), "residual settles on removal")
	_, err = f.ledger.GetProvider(ctx, provIDs[0])
	assert.ErrorIs(t, err, subledger.ErrProviderNotFound)

	sub, err = f.ledger.GetSubscriber(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, types.Amount(500), sub.Balance)
	assert.Len(t, sub.Providers, 2)
	assert.False(t, sub.SubscribedTo(provIDs[0]))
}

func TestNonNegativeBalancePolicy(t *testing.T) {
	cfg := subledger.DefaultConfig()
	cfg.NonNegativeBalances = true
	f := newFixture(t, subledger.WithConfig(cfg))
	ctx := context.Background()

	provIDs := f.registerProviders(t, 3, 1)
	f.bank.Credit("bob", 10)
	sub, err := f.ledger.RegisterSubscriber(ctx, subledger.Caller{ID: "bob"}, 10, "", provIDs)
	require.NoError(t, err)

	// Earned 100 per provider but only 10 is prepaid; the first withdrawal
	// drains the balance and later ones collect nothing.
	f.clock.Advance(100 * time.Hour)

	amount, err := f.ledger.Withdraw(ctx, subledger.Caller{ID: "owner-0"}, provIDs[0])
	require.NoError(t, err)
	assert.Equal(t, types.Amount(10), amount)

	sub, err = f.ledger.GetSubscriber(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, types.Amount(0), sub.Balance)

	amount, err = f.ledger.Withdraw(ctx, subledger.Caller{ID: "owner-1"}, provIDs[1])
	require.NoError(t, err)
	assert.Equal(t, types.Amount(0), amount)
}

func TestDeclinedTransferAborts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	provIDs := f.registerProviders(t, 3, 100)
	f.bank.Credit("bob", 1000)
	sub, err := f.ledger.RegisterSubscriber(ctx, subledger.Caller{ID: "bob"}, 1000, "", provIDs)
	require.NoError(t, err)

	f.clock.Advance(10 * time.Hour)
	f.xfer.fail = true

	_, err = f.ledger.Withdraw(ctx, subledger.Caller{ID: "owner-0"}, provIDs[0])
	assert.ErrorIs(t, err, subledger.ErrTransferFailed)

	// Nothing was persisted: balance intact and the accrual window still open.
	sub, err = f.ledger.GetSubscriber(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, types.Amount(1000), sub.Balance)
	p, err := f.ledger.GetProvider(ctx, provIDs[0])
	require.NoError(t, err)
	assert.True(t, p.LastWithdrawal.IsZero())

	f.xfer.fail = false
	amount, err := f.ledger.Withdraw(ctx, subledger.Caller{ID: "owner-0"}, provIDs[0])
	require.NoError(t, err)
	assert.Equal(t, types.Amount(1000), amount)
}

func TestCancelDeclinedPayoutLeavesStateIntact(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	provIDs := f.registerProviders(t, 3, 1)
	f.bank.Credit("bob", 200)
	sub, err := f.ledger.RegisterSubscriber(ctx, subledger.Caller{ID: "bob"}, 200, "", provIDs)
	require.NoError(t, err)

	f.clock.Advance(10 * time.Hour)
	f.xfer.fail = true

	err = f.ledger.Cancel(ctx, subledger.Caller{ID: "bob"}, sub.ID)
	assert.ErrorIs(t, err, subledger.ErrTransferFailed)

	// The debit must not outlive the declined payout.
	sub, err = f.ledger.GetSubscriber(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, types.Amount(200), sub.Balance)
	assert.False(t, sub.Paused)
	assert.Len(t, sub.Providers, 3)
	for _, pid := range provIDs {
		p, err := f.ledger.GetProvider(ctx, pid)
		require.NoError(t, err)
		assert.Equal(t, 1, p.Roster.Len())
	}

	f.xfer.fail = false
	require.NoError(t, f.ledger.Cancel(ctx, subledger.Caller{ID: "bob"}, sub.ID))
	sub, err = f.ledger.GetSubscriber(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, types.Amount(200-30), sub.Balance)
	assert.True(t, sub.Canceled())
}

func TestRegisterSubscriberDuplicateProviderIDs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	provIDs := f.registerProviders(t, 2, 1)
	f.bank.Credit("bob", 100)

	request := []id.ProviderID{provIDs[0], provIDs[0], provIDs[1]}
	_, err := f.ledger.RegisterSubscriber(ctx, subledger.Caller{ID: "bob"}, 100, "", request)
	assert.ErrorIs(t, err, subledger.ErrAlreadySubscribed)

	// The rejection happens before the deposit moves or a roster changes.
	assert.Equal(t, types.Amount(100), f.bank.Balance("bob"))
	for _, pid := range provIDs {
		p, err := f.ledger.GetProvider(ctx, pid)
		require.NoError(t, err)
		assert.Equal(t, 0, p.Roster.Len())
	}
}

func TestSetProviderStatusBatchAborts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	mine, err := f.ledger.RegisterProvider(ctx,
		subledger.Caller{ID: "alice"}, "", []byte("batch-mine"), 100)
	require.NoError(t, err)
	theirs, err := f.ledger.RegisterProvider(ctx,
		subledger.Caller{ID: "carol"}, "", []byte("batch-theirs"), 100)
	require.NoError(t, err)

	err = f.ledger.SetProviderStatus(ctx, subledger.Caller{ID: "alice"},
		[]id.ProviderID{mine.ID, theirs.ID}, []bool{false, false})
	assert.ErrorIs(t, err, subledger.ErrNotOwner)

	// The authorization failure on the second entry aborts the whole batch;
	// the first entry must not have been toggled.
	p, err := f.ledger.GetProvider(ctx, mine.ID)
	require.NoError(t, err)
	assert.True(t, p.Active)
}

func TestWithHookLogsRejectedRegistration(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	bank := transfer.NewBank(escrow)
	subledger.New(memory.New(), bank,
		subledger.WithLogger(logger),
		subledger.WithHook(hook.NewAuditLog(logger)),
		subledger.WithHook(hook.NewAuditLog(logger)),
	)

	assert.Contains(t, buf.String(), "hook registration rejected")
	assert.Contains(t, buf.String(), "auditlog")
}

func TestLateJoinerAccruesFromJoin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	provIDs := f.registerProviders(t, 3, 100)
	f.bank.Credit("bob", 1000)
	_, err := f.ledger.RegisterSubscriber(ctx, subledger.Caller{ID: "bob"}, 1000, "", provIDs)
	require.NoError(t, err)

	// Carol joins 20 hours later; her meter starts at her join.
	f.clock.Advance(20 * time.Hour)
	f.bank.Credit("carol", 1000)
	_, err = f.ledger.RegisterSubscriber(ctx, subledger.Caller{ID: "carol"}, 1000, "", provIDs)
	require.NoError(t, err)

	f.clock.Advance(10 * time.Hour)
	amount, err := f.ledger.Withdraw(ctx, subledger.Caller{ID: "owner-0"}, provIDs[0])
	require.NoError(t, err)
	assert.Equal(t, types.Amount(30*100+10*100), amount)
}
