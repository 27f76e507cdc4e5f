package exchange

import (
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"

	sig "github.com/Devon-ODell/quant/internal/signal"
)

// StubSeries generates n bars of a seeded random walk whose last bar opens at end truncated to tf.
// The same instrument, timeframe, seed and end always give the same bars.
func StubSeries(instrument string, tf sig.Timeframe, n int, seed int64, end time.Time) (sig.Series, error) {
	step := tf.Duration()
	if step <= 0 {
		return sig.Series{}, fmt.Errorf("stub %s: unknown timeframe %q", instrument, tf)
	}
	if n <= 0 {
		return sig.Series{Instrument: instrument, Timeframe: tf}, nil
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(instrument))
	_, _ = h.Write([]byte(tf))
	rng := rand.New(rand.NewSource(seed ^ int64(h.Sum64())))

	first := end.Truncate(step).Add(-time.Duration(n-1) * step)
	px := 100 + rng.Float64()*50
	bars := make([]sig.Bar, n)
	for i := range bars {
		// Slow regime shifts in drift give the channels something to break out of.
		drift := 0.004 * math.Sin(float64(i)/40)
		ret := drift + rng.NormFloat64()*0.01
		open := px
		px = math.Max(1, px*(1+ret))
		wick := math.Abs(rng.NormFloat64()) * 0.004 * px
		high := math.Max(open, px) + wick
		low := math.Max(0.5, math.Min(open, px)-wick)
		bars[i] = sig.Bar{
			Time:   first.Add(time.Duration(i) * step),
			Open:   round(open),
			High:   round(high),
			Low:    round(low),
			Close:  round(px),
			Volume: round(10 + rng.Float64()*90),
		}
	}
	return sig.NewSeries(instrument, tf, bars)
}

func round(v float64) decimal.Decimal { return decimal.NewFromFloat(v).Round(4) }
