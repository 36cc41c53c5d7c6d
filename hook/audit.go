package hook

import (
	"context"
	"log/slog"
)

// AuditLog is a hook that writes every settlement-relevant event to a
// structured log, giving an append-only audit trail of the ledger's money
// movements.
type AuditLog struct {
	logger *slog.Logger
}

// NewAuditLog creates an audit hook writing to the given logger.
func NewAuditLog(logger *slog.Logger) *AuditLog {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLog{logger: logger}
}

// Name implements Hook.
func (a *AuditLog) Name() string { return "auditlog" }

// OnProviderRegistered implements OnProviderRegistered.
func (a *AuditLog) OnProviderRegistered(_ context.Context, ev ProviderRegistered) error {
	a.logger.Info("provider registered",
		"provider_id", ev.ProviderID.String(),
		"owner", ev.Owner,
		"operator", ev.Operator,
		"fee", ev.Fee,
		"key_len", len(ev.Key),
		"at", ev.At,
	)
	return nil
}

// OnProviderRemoved implements OnProviderRemoved.
func (a *AuditLog) OnProviderRemoved(_ context.Context, ev ProviderRemoved) error {
	a.logger.Info("provider removed",
		"provider_id", ev.ProviderID.String(),
		"owner", ev.Owner,
		"residual", ev.Residual,
		"at", ev.At,
	)
	return nil
}

// OnSubscriberRegistered implements OnSubscriberRegistered.
func (a *AuditLog) OnSubscriberRegistered(_ context.Context, ev SubscriberRegistered) error {
	a.logger.Info("subscriber registered",
		"subscriber_id", ev.SubscriberID.String(),
		"owner", ev.Owner,
		"deposit", ev.Deposit,
		"plan", ev.Plan,
		"providers", len(ev.Providers),
		"at", ev.At,
	)
	return nil
}

// OnWithdrawalSettled implements OnWithdrawalSettled.
func (a *AuditLog) OnWithdrawalSettled(_ context.Context, ev WithdrawalSettled) error {
	a.logger.Info("withdrawal settled",
		"provider_id", ev.ProviderID.String(),
		"owner", ev.Owner,
		"amount", ev.Amount,
		"at", ev.At,
	)
	return nil
}

// OnSubscriptionCanceled implements OnSubscriptionCanceled.
func (a *AuditLog) OnSubscriptionCanceled(_ context.Context, ev SubscriptionCanceled) error {
	a.logger.Info("subscription canceled",
		"subscriber_id", ev.SubscriberID.String(),
		"owner", ev.Owner,
		"owed", ev.Owed,
		"shortfall", ev.Shortfall,
		"at", ev.At,
	)
	return nil
}

// OnDepositMade implements OnDepositMade.
func (a *AuditLog) OnDepositMade(_ context.Context, ev DepositMade) error {
	a.logger.Info("deposit made",
		"subscriber_id", ev.SubscriberID.String(),
		"owner", ev.Owner,
		"amount", ev.Amount,
		"at", ev.At,
	)
	return nil
}
