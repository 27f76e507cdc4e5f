package indicator

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Devon-ODell/quant/internal/signal"
)

func d(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func bar(ts time.Time, o, h, l, c float64) signal.Bar {
	return signal.Bar{Time: ts, Open: d(o), High: d(h), Low: d(l), Close: d(c)}
}

func flatSeries(n int, px float64) signal.Series {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]signal.Bar, n)
	for i := range bars {
		bars[i] = bar(start.Add(time.Duration(i)*time.Hour), px, px, px, px)
	}
	return signal.Series{Instrument: "XBTUSD", Timeframe: signal.TF1h, Bars: bars}
}

func TestATRNeedsWindowPlusOneBars(t *testing.T) {
	for n := 0; n < 15; n++ {
		_, err := ATR(flatSeries(n, 100), DefaultATRWindow)
		if !errors.Is(err, ErrInsufficientData) {
			t.Fatalf("%d bars: expected ErrInsufficientData, got %v", n, err)
		}
	}
	if _, err := ATR(flatSeries(15, 100), DefaultATRWindow); err != nil {
		t.Fatalf("15 bars: unexpected error %v", err)
	}
}

func TestATRInsufficientDataDetails(t *testing.T) {
	_, err := ATR(flatSeries(10, 100), DefaultATRWindow)
	var detail *InsufficientDataError
	if !errors.As(err, &detail) {
		t.Fatalf("expected *InsufficientDataError, got %T", err)
	}
	if detail.Need != 15 || detail.Have != 10 {
		t.Fatalf("unexpected need/have %d/%d", detail.Need, detail.Have)
	}
}

func TestATRConstantSeriesIsZero(t *testing.T) {
	atr, err := ATR(flatSeries(30, 100), DefaultATRWindow)
	if err != nil {
		t.Fatalf("ATR error: %v", err)
	}
	if !atr.IsZero() {
		t.Fatalf("expected zero ATR, got %s", atr)
	}
}

func TestATRUsesPriorClose(t *testing.T) {
	s := flatSeries(20, 100)
	s.Bars = append(s.Bars, bar(s.Bars[19].Time.Add(time.Hour), 130, 130, 129, 130))
	atr, err := ATR(s, DefaultATRWindow)
	if err != nil {
		t.Fatalf("ATR error: %v", err)
	}
	// Only the gap bar has a non-zero true range: |129-100| < |130-100| = 30.
	want := d(30).Div(decimal.NewFromInt(14))
	if !atr.Equal(want) {
		t.Fatalf("expected %s, got %s", want, atr)
	}
	if atr.IsNegative() {
		t.Fatalf("ATR must not be negative")
	}
}

func TestATRAtIgnoresLaterBars(t *testing.T) {
	s := flatSeries(30, 100)
	before, err := ATRAt(s, 14, 20)
	if err != nil {
		t.Fatalf("ATRAt error: %v", err)
	}
	s.Bars[25] = bar(s.Bars[25].Time, 100, 500, 1, 100)
	after, err := ATRAt(s, 14, 20)
	if err != nil {
		t.Fatalf("ATRAt error: %v", err)
	}
	if !before.Equal(after) {
		t.Fatalf("future bar changed ATR at index 20: %s -> %s", before, after)
	}
}

func TestATRRejectsBadArguments(t *testing.T) {
	s := flatSeries(20, 100)
	if _, err := ATRAt(s, 0, 19); !errors.Is(err, ErrInvalidWindow) {
		t.Fatalf("expected ErrInvalidWindow, got %v", err)
	}
	if _, err := ATRAt(s, 14, 20); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("expected ErrIndexOutOfRange, got %v", err)
	}
}

func TestTrueRangeFirstBar(t *testing.T) {
	bars := []signal.Bar{bar(time.Time{}, 10, 12, 9, 11)}
	if tr := TrueRange(bars, 0); !tr.Equal(d(3)) {
		t.Fatalf("expected 3, got %s", tr)
	}
}

func TestChannelExtremes(t *testing.T) {
	s := flatSeries(5, 100)
	s.Bars[1] = bar(s.Bars[1].Time, 100, 110, 95, 100)
	s.Bars[3] = bar(s.Bars[3].Time, 100, 104, 90, 100)
	hi, err := HighestHigh(s, 0, 4)
	if err != nil || !hi.Equal(d(110)) {
		t.Fatalf("expected 110, got %s (%v)", hi, err)
	}
	lo, err := LowestLow(s, 2, 4)
	if err != nil || !lo.Equal(d(90)) {
		t.Fatalf("expected 90, got %s (%v)", lo, err)
	}
	if _, err := HighestHigh(s, 3, 5); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("expected ErrIndexOutOfRange, got %v", err)
	}
}
