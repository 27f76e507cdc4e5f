// Package indicator computes rolling volatility and channel measures over bar series.
// Every function is pure: values are recomputed from the trailing bars on each call.
package indicator

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Devon-ODell/quant/internal/signal"
)

// DefaultATRWindow is the Average True Range lookback used when none is configured.
const DefaultATRWindow = 14

var (
	// ErrInsufficientData means a rolling window cannot be filled yet; waiting for more bars resolves it.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrInvalidWindow is returned for non-positive window sizes.
	ErrInvalidWindow = errors.New("window must be positive")
	// ErrIndexOutOfRange is returned when the evaluation index is outside the series.
	ErrIndexOutOfRange = errors.New("evaluation index out of range")
)

// InsufficientDataError details how many bars a window needed versus what was available.
type InsufficientDataError struct {
	What string
	Need int
	Have int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("%s: need %d bars, have %d: %s", e.What, e.Need, e.Have, ErrInsufficientData)
}

// Is lets errors.Is match ErrInsufficientData.
func (e *InsufficientDataError) Is(target error) bool { return target == ErrInsufficientData }

// TrueRange returns the true range of bars[i]. The first bar has no prior close, so its range is high-low.
func TrueRange(bars []signal.Bar, i int) decimal.Decimal {
	b := bars[i]
	tr := b.High.Sub(b.Low)
	if i == 0 {
		return tr
	}
	prevClose := bars[i-1].Close
	if up := b.High.Sub(prevClose).Abs(); up.GreaterThan(tr) {
		tr = up
	}
	if down := b.Low.Sub(prevClose).Abs(); down.GreaterThan(tr) {
		tr = down
	}
	return tr
}

// ATR is ATRAt evaluated at the last bar.
func ATR(s signal.Series, window int) (decimal.Decimal, error) {
	return ATRAt(s, window, s.Len()-1)
}

// ATRAt returns the mean true range of the window bars ending at idx. Every bar in the window needs a
// prior close, so window+1 bars must exist up to idx.
func ATRAt(s signal.Series, window, idx int) (decimal.Decimal, error) {
	if window <= 0 {
		return decimal.Zero, fmt.Errorf("atr window %d: %w", window, ErrInvalidWindow)
	}
	if idx < 0 || idx >= s.Len() {
		if s.Len() == 0 {
			return decimal.Zero, &InsufficientDataError{What: "atr", Need: window + 1, Have: 0}
		}
		return decimal.Zero, fmt.Errorf("atr index %d of %d bars: %w", idx, s.Len(), ErrIndexOutOfRange)
	}
	if idx < window {
		return decimal.Zero, &InsufficientDataError{What: "atr", Need: window + 1, Have: idx + 1}
	}
	sum := decimal.Zero
	for i := idx - window + 1; i <= idx; i++ {
		sum = sum.Add(TrueRange(s.Bars, i))
	}
	return sum.Div(decimal.NewFromInt(int64(window))), nil
}
