package strategy

import (
	"time"

	"github.com/shopspring/decimal"

	sig "github.com/Devon-ODell/quant/internal/signal"
)

var testStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func d(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func flatBar(ts time.Time, px float64) sig.Bar {
	return sig.Bar{Time: ts, Open: d(px), High: d(px), Low: d(px), Close: d(px), Volume: d(1)}
}

func flatSeries(tf sig.Timeframe, n int, px float64) sig.Series {
	step := tf.Duration()
	bars := make([]sig.Bar, n)
	for i := range bars {
		bars[i] = flatBar(testStart.Add(time.Duration(i)*step), px)
	}
	return sig.Series{Instrument: "XBTUSD", Timeframe: tf, Bars: bars}
}

// withJump appends one bar to s whose range is [low, high] and which closes at closePx.
func withJump(s sig.Series, high, low, closePx float64) sig.Series {
	last, _ := s.Last()
	bars := make([]sig.Bar, len(s.Bars), len(s.Bars)+1)
	copy(bars, s.Bars)
	bars = append(bars, sig.Bar{
		Time:   last.Time.Add(s.Timeframe.Duration()),
		Open:   last.Close,
		High:   d(high),
		Low:    d(low),
		Close:  d(closePx),
		Volume: d(1),
	})
	s.Bars = bars
	return s
}
