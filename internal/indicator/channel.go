package indicator

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Devon-ODell/quant/internal/signal"
)

// HighestHigh returns the maximum high over bars[from..to] inclusive.
func HighestHigh(s signal.Series, from, to int) (decimal.Decimal, error) {
	if err := checkRange(s, from, to); err != nil {
		return decimal.Zero, err
	}
	hi := s.Bars[from].High
	for i := from + 1; i <= to; i++ {
		if s.Bars[i].High.GreaterThan(hi) {
			hi = s.Bars[i].High
		}
	}
	return hi, nil
}

// LowestLow returns the minimum low over bars[from..to] inclusive.
func LowestLow(s signal.Series, from, to int) (decimal.Decimal, error) {
	if err := checkRange(s, from, to); err != nil {
		return decimal.Zero, err
	}
	lo := s.Bars[from].Low
	for i := from + 1; i <= to; i++ {
		if s.Bars[i].Low.LessThan(lo) {
			lo = s.Bars[i].Low
		}
	}
	return lo, nil
}

func checkRange(s signal.Series, from, to int) error {
	if from < 0 || to >= s.Len() || from > to {
		return fmt.Errorf("channel range [%d,%d] of %d bars: %w", from, to, s.Len(), ErrIndexOutOfRange)
	}
	return nil
}
