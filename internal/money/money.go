// Package money does quote-currency arithmetic in decimal so trim pools and
// sizing notionals do not drift across many small mutations.
package money

import (
	"math"

	"github.com/shopspring/decimal"
)

// Places is the rounding precision of quote amounts.
const Places = 8

func dec(v float64) decimal.Decimal {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v)
}

func out(d decimal.Decimal) float64 {
	f, _ := d.Round(Places).Float64()
	return f
}

// Mul returns a*b.
func Mul(a, b float64) float64 {
	return out(dec(a).Mul(dec(b)))
}

// Add returns a+b.
func Add(a, b float64) float64 {
	return out(dec(a).Add(dec(b)))
}

// Sub returns a-b.
func Sub(a, b float64) float64 {
	return out(dec(a).Sub(dec(b)))
}

// SubFloor returns max(a-b, 0).
func SubFloor(a, b float64) float64 {
	d := dec(a).Sub(dec(b))
	if d.IsNegative() {
		return 0
	}
	return out(d)
}

// Div returns a/b, or 0 when b is zero.
func Div(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return out(dec(a).DivRound(dec(b), Places+4))
}

// Min returns the smaller amount.
func Min(a, b float64) float64 {
	if dec(a).LessThan(dec(b)) {
		return out(dec(a))
	}
	return out(dec(b))
}

// Positive reports a > 0 at quote precision.
func Positive(a float64) bool {
	return dec(a).Round(Places).IsPositive()
}
