package risk

import "github.com/shopspring/decimal"

// Stopper places a protective stop for an entry at price. RiskBased implements it, so the stop a
// position was sized against can also be enforced.
type Stopper interface {
	StopPrice(price decimal.Decimal, long bool) decimal.Decimal
}

// StopHit reports whether a bar spanning [low, high] reached stop for a position on the given side.
// The fill is the stop itself, or the open when the bar gapped through it.
func StopHit(stop, open, low, high decimal.Decimal, long bool) (decimal.Decimal, bool) {
	if !stop.IsPositive() {
		return decimal.Zero, false
	}
	if long {
		if low.GreaterThan(stop) {
			return decimal.Zero, false
		}
		if open.IsPositive() && open.LessThan(stop) {
			return open, true
		}
		return stop, true
	}
	if high.LessThan(stop) {
		return decimal.Zero, false
	}
	if open.GreaterThan(stop) {
		return open, true
	}
	return stop, true
}
