package types

import "testing"

func TestAmountPredicates(t *testing.T) {
	tests := []struct {
		name     string
		amount   Amount
		zero     bool
		positive bool
		negative bool
	}{
		{"Zero", Amount(0), true, false, false},
		{"Positive", Amount(100), false, true, false},
		{"Negative", Amount(-73000), false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.amount.IsZero() != tt.zero {
				t.Errorf("IsZero: got %v, want %v", tt.amount.IsZero(), tt.zero)
			}
			if tt.amount.IsPositive() != tt.positive {
				t.Errorf("IsPositive: got %v, want %v", tt.amount.IsPositive(), tt.positive)
			}
			if tt.amount.IsNegative() != tt.negative {
				t.Errorf("IsNegative: got %v, want %v", tt.amount.IsNegative(), tt.negative)
			}
		})
	}
}

func TestAmountForHours(t *testing.T) {
	tests := []struct {
		name     string
		rate     Amount
		hours    int64
		expected Amount
	}{
		{"OneMonth", Amount(100), 730, Amount(73000)},
		{"ZeroHours", Amount(100), 0, Amount(0)},
		{"ZeroRate", Amount(0), 500, Amount(0)},
		{"SingleHour", Amount(42), 1, Amount(42)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rate.ForHours(tt.hours); got != tt.expected {
				t.Errorf("ForHours: got %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestAmountMinMax(t *testing.T) {
	if got := Amount(5).Min(3); got != 3 {
		t.Errorf("Min: got %d, want 3", got)
	}
	if got := Amount(5).Max(3); got != 5 {
		t.Errorf("Max: got %d, want 5", got)
	}
}

func TestSum(t *testing.T) {
	tests := []struct {
		name     string
		values   []Amount
		expected Amount
	}{
		{"Empty", nil, 0},
		{"Single", []Amount{100}, 100},
		{"Several", []Amount{100, 200, 300}, 600},
		{"Mixed", []Amount{500, -200}, 300},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sum(tt.values...); got != tt.expected {
				t.Errorf("Sum: got %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestAmountString(t *testing.T) {
	if got := Amount(73000).String(); got != "73000" {
		t.Errorf("String: got %q, want %q", got, "73000")
	}
	if got := Amount(-5).String(); got != "-5" {
		t.Errorf("String: got %q, want %q", got, "-5")
	}
}
