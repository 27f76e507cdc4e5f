package risk

import "github.com/shopspring/decimal"

// Limits caps individual orders. Zero values disable a limit.
type Limits struct {
	MaxNotionalPerTrade decimal.Decimal
	MaxPosition         decimal.Decimal
}

// Cap trims qty so the order respects the notional cap and, given the absolute quantity already
// held on the same side, the position cap. The result is never negative.
func (l Limits) Cap(qty, price, held decimal.Decimal) decimal.Decimal {
	if l.MaxNotionalPerTrade.IsPositive() && price.IsPositive() {
		qty = decimal.Min(qty, l.MaxNotionalPerTrade.Div(price))
	}
	if l.MaxPosition.IsPositive() {
		qty = decimal.Min(qty, l.MaxPosition.Sub(held.Abs()))
	}
	if qty.IsNegative() {
		return decimal.Zero
	}
	return qty
}

// DrawdownGuard trips once equity falls more than Max below its running peak. A tripped guard
// stays tripped.
type DrawdownGuard struct {
	Max     decimal.Decimal
	peak    decimal.Decimal
	tripped bool
}

// NewDrawdownGuard starts tracking from initial equity; max <= 0 disables the guard.
func NewDrawdownGuard(max float64, initial decimal.Decimal) *DrawdownGuard {
	return &DrawdownGuard{Max: decimal.NewFromFloat(max), peak: initial}
}

// Observe records an equity value and reports whether the guard is tripped.
func (g *DrawdownGuard) Observe(equity decimal.Decimal) bool {
	if equity.GreaterThan(g.peak) {
		g.peak = equity
	}
	if g.Max.IsPositive() && Drawdown(g.peak, equity).GreaterThan(g.Max) {
		g.tripped = true
	}
	return g.tripped
}

// Tripped reports whether new exposure is blocked.
func (g *DrawdownGuard) Tripped() bool { return g.tripped }

// Drawdown is the fractional fall of equity from peak; zero when peak is not positive.
func Drawdown(peak, equity decimal.Decimal) decimal.Decimal {
	if !peak.IsPositive() || equity.GreaterThanOrEqual(peak) {
		return decimal.Zero
	}
	return peak.Sub(equity).Div(peak)
}
