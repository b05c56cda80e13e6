package protocol

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"
)

var (
	ErrAddressOutOfRange = errors.New("address out of range 0-99")
	ErrValueOutOfRange   = errors.New("value does not fit in 3 digits")
	ErrUnknownCommand    = errors.New("unknown command")
)

// RoundingMode selects how a scaled setpoint that lands on a half unit is
// turned into an integer.
type RoundingMode int

const (
	// RoundHalfAwayFromZero turns 100.5 into 101. This is the default.
	RoundHalfAwayFromZero RoundingMode = iota
	// RoundHalfEven turns 100.5 into 100 and 101.5 into 102.
	RoundHalfEven
)

func (m RoundingMode) String() string {
	switch m {
	case RoundHalfEven:
		return "half-even"
	default:
		return "half-away-from-zero"
	}
}

// Scale multiplies value by factor and rounds to an integer.
//
// The float is first converted to its shortest decimal form, so 1.005 is
// treated as exactly 1.005 rather than the nearest binary fraction, which
// is slightly below it.
func Scale(value float64, factor int64, mode RoundingMode) (int, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, ErrValueOutOfRange
	}

	scaled := decimal.NewFromFloat(value).Mul(decimal.NewFromInt(factor))
	switch mode {
	case RoundHalfEven:
		scaled = scaled.RoundBank(0)
	default:
		scaled = scaled.Round(0)
	}

	if scaled.IsNegative() || scaled.GreaterThan(decimal.NewFromInt(MaxValue)) {
		return 0, ErrValueOutOfRange
	}
	return int(scaled.IntPart()), nil
}

// Unscale converts a wire value back to volts or amps.
func Unscale(value int, factor int64) float64 {
	f, _ := decimal.NewFromInt(int64(value)).Div(decimal.NewFromInt(factor)).Float64()
	return f
}
