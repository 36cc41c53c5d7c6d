// Package types provides common value types used across Subledger.
package types

import "strconv"

// Amount is a monetary value in whole currency units. All ledger arithmetic
// is integer-only — no floating point, no rounding drift. For fee schedules
// an Amount is the charge rate per whole hour of service.
type Amount int64

// IsZero reports whether the amount is zero.
func (a Amount) IsZero() bool { return a == 0 }

// IsPositive reports whether the amount is greater than zero.
func (a Amount) IsPositive() bool { return a > 0 }

// IsNegative reports whether the amount is less than zero.
func (a Amount) IsNegative() bool { return a < 0 }

// ForHours returns the amount accrued by this hourly rate over h whole hours.
func (a Amount) ForHours(h int64) Amount { return a * Amount(h) }

// Min returns the smaller of two amounts.
func (a Amount) Min(other Amount) Amount {
	if a < other {
		return a
	}
	return other
}

// Max returns the larger of two amounts.
func (a Amount) Max(other Amount) Amount {
	if a > other {
		return a
	}
	return other
}

// String returns the amount in decimal notation.
func (a Amount) String() string { return strconv.FormatInt(int64(a), 10) }

// Sum calculates the sum of multiple amounts.
func Sum(values ...Amount) Amount {
	var total Amount
	for _, v := range values {
		total += v
	}
	return total
}
