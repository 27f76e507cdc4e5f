package signal

import (
	"errors"
	"fmt"
	"time"
)

// ErrMissingTime is returned when resampling bars that carry no timestamp.
var ErrMissingTime = errors.New("bar has no timestamp")

// Resample aggregates a finer series into tf with right-edge alignment: a higher-timeframe bar is
// emitted only once its whole interval has elapsed by the close of the last base bar, so a
// partially formed bucket never becomes visible.
func Resample(s Series, tf Timeframe) (Series, error) {
	base := s.Timeframe.Duration()
	target := tf.Duration()
	if base <= 0 || target <= 0 {
		return Series{}, fmt.Errorf("resample %s %s -> %s: unknown timeframe", s.Instrument, s.Timeframe, tf)
	}
	if target < base || target%base != 0 {
		return Series{}, fmt.Errorf("resample %s %s -> %s: target must be a multiple of the base timeframe", s.Instrument, s.Timeframe, tf)
	}
	out := Series{Instrument: s.Instrument, Timeframe: tf}
	if target == base {
		out.Bars = s.Bars
		return out, nil
	}
	last, ok := s.Last()
	if !ok {
		return out, nil
	}
	if last.Time.IsZero() {
		return Series{}, fmt.Errorf("resample %s: %w", s.Instrument, ErrMissingTime)
	}
	visibleUntil := last.Time.Add(base)

	var (
		current Bar
		start   time.Time
		open    bool
	)
	flush := func() {
		if open && !start.Add(target).After(visibleUntil) {
			out.Bars = append(out.Bars, current)
		}
	}
	for _, b := range s.Bars {
		if b.Time.IsZero() {
			return Series{}, fmt.Errorf("resample %s: %w", s.Instrument, ErrMissingTime)
		}
		bucket := b.Time.Truncate(target)
		if !open || !bucket.Equal(start) {
			flush()
			start = bucket
			current = Bar{Time: bucket, Open: b.Open, High: b.High, Low: b.Low, Close: b.Close, Volume: b.Volume}
			open = true
			continue
		}
		if b.High.GreaterThan(current.High) {
			current.High = b.High
		}
		if b.Low.LessThan(current.Low) {
			current.Low = b.Low
		}
		current.Close = b.Close
		current.Volume = current.Volume.Add(b.Volume)
	}
	flush()
	return out, nil
}
