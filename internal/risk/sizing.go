// Package risk sizes trades and enforces per-trade and drawdown limits.
package risk

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultFraction is the share of capital committed per entry when none is configured.
const DefaultFraction = 0.01

var (
	// ErrNoCapital is returned when there is no positive capital left to size against.
	ErrNoCapital = errors.New("no capital available")
	// ErrInvalidPrice is returned when sizing against a non-positive price.
	ErrInvalidPrice = errors.New("price must be positive")
)

// Sizer turns available capital and a reference price into an order quantity.
type Sizer interface {
	Size(capital, price decimal.Decimal) (decimal.Decimal, error)
}

func checkInputs(capital, price decimal.Decimal) error {
	if !price.IsPositive() {
		return fmt.Errorf("size at %s: %w", price, ErrInvalidPrice)
	}
	if !capital.IsPositive() {
		return fmt.Errorf("size with capital %s: %w", capital, ErrNoCapital)
	}
	return nil
}

// FixedFraction commits a fixed share of current capital: qty = capital * fraction / price.
type FixedFraction struct {
	Fraction decimal.Decimal
}

// NewFixedFraction falls back to DefaultFraction for values outside (0, 1].
func NewFixedFraction(fraction float64) FixedFraction {
	if fraction <= 0 || fraction > 1 {
		fraction = DefaultFraction
	}
	return FixedFraction{Fraction: decimal.NewFromFloat(fraction)}
}

// Size implements Sizer.
func (f FixedFraction) Size(capital, price decimal.Decimal) (decimal.Decimal, error) {
	if err := checkInputs(capital, price); err != nil {
		return decimal.Zero, err
	}
	return capital.Mul(f.Fraction).Div(price), nil
}

// RiskBased sizes so that a stop placed Stop (a fraction of price) away from entry loses at most
// Risk of capital: qty = capital * risk / (price * stop).
type RiskBased struct {
	Risk decimal.Decimal
	Stop decimal.Decimal
}

// NewRiskBased builds a RiskBased sizer; non-positive inputs fall back to 1% risk and a 2% stop.
func NewRiskBased(risk, stop float64) RiskBased {
	if risk <= 0 || risk > 1 {
		risk = DefaultFraction
	}
	if stop <= 0 || stop >= 1 {
		stop = 0.02
	}
	return RiskBased{Risk: decimal.NewFromFloat(risk), Stop: decimal.NewFromFloat(stop)}
}

// Size implements Sizer.
func (r RiskBased) Size(capital, price decimal.Decimal) (decimal.Decimal, error) {
	if err := checkInputs(capital, price); err != nil {
		return decimal.Zero, err
	}
	perUnit := price.Mul(r.Stop)
	return capital.Mul(r.Risk).Div(perUnit), nil
}

// StopPrice is the protective stop for an entry at price on the given side.
func (r RiskBased) StopPrice(price decimal.Decimal, long bool) decimal.Decimal {
	if long {
		return price.Mul(decimal.NewFromInt(1).Sub(r.Stop))
	}
	return price.Mul(decimal.NewFromInt(1).Add(r.Stop))
}

// NewSizer maps a configured rule name to a Sizer.
func NewSizer(rule string, fraction, stop float64) (Sizer, error) {
	switch strings.ToLower(strings.TrimSpace(rule)) {
	case "", "fixed", "fixed_fraction":
		return NewFixedFraction(fraction), nil
	case "risk", "risk_based":
		return NewRiskBased(fraction, stop), nil
	default:
		return nil, fmt.Errorf("unknown sizing rule %q", rule)
	}
}

// Fraction reports the share of capital an order of qty at price represents.
func Fraction(capital, qty, price decimal.Decimal) float64 {
	if !capital.IsPositive() {
		return 0
	}
	return qty.Mul(price).Div(capital).InexactFloat64()
}
