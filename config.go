package subledger

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/subledger/subledger/types"
)

// Config holds the engine's policy knobs.
type Config struct {
	// MinimalFee is the lowest hourly fee a provider may register with.
	MinimalFee types.Amount `yaml:"minimal_fee"`

	// MaxProviders caps the total provider count. Zero means unlimited.
	MaxProviders int `yaml:"max_providers"`

	// MinSubscriptionProviders and MaxSubscriptionProviders bound the
	// provider list accepted at subscriber registration (inclusive).
	MinSubscriptionProviders int `yaml:"min_subscription_providers"`
	MaxSubscriptionProviders int `yaml:"max_subscription_providers"`

	// EscrowAccount is the account deposits are pulled into and payouts
	// are sent from via the value-transfer service.
	EscrowAccount string `yaml:"escrow_account"`

	// NonNegativeBalances clamps withdrawal debits at each subscriber's
	// balance, shrinking the provider payout by the uncovered remainder.
	// When false, debits may push a balance negative, matching the
	// post-pay behavior this ledger was modelled on.
	NonNegativeBalances bool `yaml:"non_negative_balances"`
}

// DefaultConfig returns the standard policy: fee floor of 1 unit, no
// provider cap, provider lists of 3 to 14 entries, post-pay balances.
func DefaultConfig() Config {
	return Config{
		MinimalFee:               1,
		MinSubscriptionProviders: 3,
		MaxSubscriptionProviders: 14,
		EscrowAccount:            "subledger",
	}
}

// LoadConfig reads a YAML config file, filling unset fields from
// DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration for internal consistency.
func (c Config) Validate() error {
	if c.MinimalFee.IsNegative() {
		return fmt.Errorf("config: minimal_fee must not be negative")
	}
	if c.MaxProviders < 0 {
		return fmt.Errorf("config: max_providers must not be negative")
	}
	if c.MinSubscriptionProviders < 1 {
		return fmt.Errorf("config: min_subscription_providers must be at least 1")
	}
	if c.MaxSubscriptionProviders < c.MinSubscriptionProviders {
		return fmt.Errorf("config: max_subscription_providers must be >= min_subscription_providers")
	}
	if c.EscrowAccount == "" {
		return fmt.Errorf("config: escrow_account must be set")
	}
	return nil
}
