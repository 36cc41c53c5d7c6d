// Package observability provides a Prometheus hook for the ledger engine.
// Register it with subledger.WithHook to export counters for registrations,
// withdrawals, cancellations and money moved.
package observability

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/subledger/subledger/hook"
)

// Metrics implements every hook event and feeds Prometheus counters.
type Metrics struct {
	providersRegistered   prometheus.Counter
	providersRemoved      prometheus.Counter
	subscribersRegistered prometheus.Counter
	withdrawals           prometheus.Counter
	cancellations         prometheus.Counter
	deposits              prometheus.Counter

	withdrawnUnits prometheus.Counter
	depositedUnits prometheus.Counter
	residualUnits  prometheus.Counter
	shortfallUnits prometheus.Counter
}

// NewMetrics creates the counters and registers them with reg. Pass
// prometheus.DefaultRegisterer to use the default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		providersRegistered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "subledger",
			Name:      "providers_registered_total",
			Help:      "Providers registered since process start.",
		}),
		providersRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "subledger",
			Name:      "providers_removed_total",
			Help:      "Providers removed since process start.",
		}),
		subscribersRegistered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "subledger",
			Name:      "subscribers_registered_total",
			Help:      "Subscriber accounts opened since process start.",
		}),
		withdrawals: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "subledger",
			Name:      "withdrawals_total",
			Help:      "Provider withdrawals settled.",
		}),
		cancellations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "subledger",
			Name:      "cancellations_total",
			Help:      "Subscriptions canceled.",
		}),
		deposits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "subledger",
			Name:      "deposits_total",
			Help:      "Balance top-ups made.",
		}),
		withdrawnUnits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "subledger",
			Name:      "withdrawn_units_total",
			Help:      "Currency units paid out to providers.",
		}),
		depositedUnits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "subledger",
			Name:      "deposited_units_total",
			Help:      "Currency units deposited by subscribers.",
		}),
		residualUnits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "subledger",
			Name:      "residual_units_total",
			Help:      "Currency units settled on provider removal.",
		}),
		shortfallUnits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "subledger",
			Name:      "shortfall_units_total",
			Help:      "Currency units pulled beyond prepaid balances at cancellation.",
		}),
	}
	reg.MustRegister(
		m.providersRegistered, m.providersRemoved, m.subscribersRegistered,
		m.withdrawals, m.cancellations, m.deposits,
		m.withdrawnUnits, m.depositedUnits, m.residualUnits, m.shortfallUnits,
	)
	return m
}

func (m *Metrics) Name() string { return "prometheus" }

func (m *Metrics) OnProviderRegistered(ctx context.Context, ev hook.ProviderRegistered) error {
	m.providersRegistered.Inc()
	return nil
}

func (m *Metrics) OnProviderRemoved(ctx context.Context, ev hook.ProviderRemoved) error {
	m.providersRemoved.Inc()
	if ev.Residual.IsPositive() {
		m.residualUnits.Add(float64(ev.Residual))
	}
	return nil
}

func (m *Metrics) OnSubscriberRegistered(ctx context.Context, ev hook.SubscriberRegistered) error {
	m.subscribersRegistered.Inc()
	m.depositedUnits.Add(float64(ev.Deposit))
	return nil
}

func (m *Metrics) OnWithdrawalSettled(ctx context.Context, ev hook.WithdrawalSettled) error {
	m.withdrawals.Inc()
	m.withdrawnUnits.Add(float64(ev.Amount))
	return nil
}

func (m *Metrics) OnSubscriptionCanceled(ctx context.Context, ev hook.SubscriptionCanceled) error {
	m.cancellations.Inc()
	if ev.Shortfall.IsPositive() {
		m.shortfallUnits.Add(float64(ev.Shortfall))
	}
	return nil
}

func (m *Metrics) OnDepositMade(ctx context.Context, ev hook.DepositMade) error {
	m.deposits.Inc()
	m.depositedUnits.Add(float64(ev.Amount))
	return nil
}

var (
	_ hook.OnProviderRegistered   = (*Metrics)(nil)
	_ hook.OnProviderRemoved      = (*Metrics)(nil)
	_ hook.OnSubscriberRegistered = (*Metrics)(nil)
	_ hook.OnWithdrawalSettled    = (*Metrics)(nil)
	_ hook.OnSubscriptionCanceled = (*Metrics)(nil)
	_ hook.OnDepositMade          = (*Metrics)(nil)
)
