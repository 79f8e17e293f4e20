// Package amount provides unsigned quantity arithmetic and the fixed-point
// fee-rate math used by the ledger and the flash-loan settlement engine.
package amount

import (
	"errors"
	"fmt"
	"math/bits"
)

// Quantity is an unsigned amount of a fungible asset in base units.
type Quantity uint64

// ErrOverflow is returned when an arithmetic result does not fit in 64 bits.
var ErrOverflow = errors.New("quantity overflow")

// ErrUnderflow is returned when a subtraction would go below zero. This is the
// unsigned-underflow guard behind the InsufficientBalance condition.
var ErrUnderflow = errors.New("quantity underflow")

// Add returns q + other, failing on 64-bit overflow.
func (q Quantity) Add(other Quantity) (Quantity, error) {
	sum, carry := bits.Add64(uint64(q), uint64(other), 0)
	if carry != 0 {
		return 0, ErrOverflow
	}
	return Quantity(sum), nil
}

// Sub returns q - other, failing when other exceeds q.
func (q Quantity) Sub(other Quantity) (Quantity, error) {
	diff, borrow := bits.Sub64(uint64(q), uint64(other), 0)
	if borrow != 0 {
		return 0, ErrUnderflow
	}
	return Quantity(diff), nil
}

// IsZero reports whether the quantity is zero.
func (q Quantity) IsZero() bool {
	return q == 0
}

func (q Quantity) String() string {
	return fmt.Sprintf("%d", uint64(q))
}

// RateDenominator is the fixed-point denominator of a FeeRate. A rate of
// 500 is 500/1_000_000 = 0.0005.
const RateDenominator = 1_000_000

// FeeRate is a fee fraction expressed in parts per million. It is immutable
// per ledger instance and set at construction.
type FeeRate uint32

// Valid reports whether the rate is at most 100% (the denominator).
func (r FeeRate) Valid() bool {
	return uint32(r) <= RateDenominator
}

// Apply returns floor(q * r / RateDenominator). The intermediate product is
// computed in 128 bits so it cannot overflow for any uint64 quantity.
func (r FeeRate) Apply(q Quantity) Quantity {
	hi, lo := bits.Mul64(uint64(q), uint64(r))
	// hi < RateDenominator always holds because r <= RateDenominator,
	// so the division cannot trap.
	quot, _ := bits.Div64(hi, lo, RateDenominator)
	return Quantity(quot)
}

func (r FeeRate) String() string {
	return fmt.Sprintf("%d/%d", uint32(r), RateDenominator)
}
