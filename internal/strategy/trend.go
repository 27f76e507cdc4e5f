package strategy

import (
	"github.com/shopspring/decimal"

	"github.com/Devon-ODell/quant/internal/indicator"
	sig "github.com/Devon-ODell/quant/internal/signal"
)

// TrendFollower goes with the close-to-close change over a lookback once it exceeds a threshold,
// optionally requiring a minimum traded volume over the same bars.
type TrendFollower struct {
	threshold decimal.Decimal
	lookback  int
	minVolume decimal.Decimal
}

// NewTrendFollower builds a trend-following strategy using percent change and volume filters.
func NewTrendFollower(threshold float64, lookback int, minVolume float64) *TrendFollower {
	if threshold <= 0 {
		threshold = 0.05
	}
	if lookback <= 0 {
		lookback = 20
	}
	if minVolume < 0 {
		minVolume = 0
	}
	return &TrendFollower{
		threshold: decimal.NewFromFloat(threshold),
		lookback:  lookback,
		minVolume: decimal.NewFromFloat(minVolume),
	}
}

// Name returns the configured identifier for logging.
func (t *TrendFollower) Name() string { return "TrendFollower" }

// Warmup needs the anchor bar plus lookback bars.
func (t *TrendFollower) Warmup() int { return t.lookback + 1 }

// Decide compares the last close against the close lookback bars earlier.
func (t *TrendFollower) Decide(view sig.Series) (sig.Direction, error) {
	n := view.Len()
	if n < t.Warmup() {
		return sig.Flat, &indicator.InsufficientDataError{What: "trend", Need: t.Warmup(), Have: n}
	}
	anchor := view.Bars[n-1-t.lookback].Close
	latest := view.Bars[n-1].Close
	// No relative change exists from a zero anchor.
	if !anchor.IsPositive() {
		return sig.Flat, nil
	}
	if t.minVolume.IsPositive() {
		volume := decimal.Zero
		for _, b := range view.Bars[n-t.lookback:] {
			volume = volume.Add(b.Volume.Mul(b.Close))
		}
		if volume.LessThan(t.minVolume) {
			return sig.Flat, nil
		}
	}
	change := latest.Sub(anchor).Div(anchor)
	switch {
	case change.GreaterThanOrEqual(t.threshold):
		return sig.Long, nil
	case change.LessThanOrEqual(t.threshold.Neg()):
		return sig.Short, nil
	default:
		return sig.Flat, nil
	}
}
