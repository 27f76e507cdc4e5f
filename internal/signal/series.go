package signal

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnordered is returned when bars are not strictly increasing in time.
var ErrUnordered = errors.New("bars are not in chronological order")

// Series is the ordered bar history of one instrument at one timeframe.
// Callers treat Bars as read-only; views returned by Upto share the backing array.
type Series struct {
	Instrument string    `json:"instrument"`
	Timeframe  Timeframe `json:"timeframe"`
	Bars       []Bar     `json:"bars"`
}

// NewSeries validates ordering and prices before wrapping the bars.
func NewSeries(instrument string, tf Timeframe, bars []Bar) (Series, error) {
	s := Series{Instrument: instrument, Timeframe: tf, Bars: bars}
	if err := s.Validate(); err != nil {
		return Series{}, err
	}
	return s, nil
}

// Validate checks chronological order and non-negative prices. Bars without a timestamp rely on
// their position only.
func (s Series) Validate() error {
	for i, b := range s.Bars {
		if err := b.Validate(); err != nil {
			return fmt.Errorf("%s %s bar %d: %w", s.Instrument, s.Timeframe, i, err)
		}
		if i == 0 {
			continue
		}
		prev := s.Bars[i-1].Time
		if !prev.IsZero() && !b.Time.IsZero() && !b.Time.After(prev) {
			return fmt.Errorf("%s %s bar %d at %s: %w", s.Instrument, s.Timeframe, i, b.Time.Format(time.RFC3339), ErrUnordered)
		}
	}
	return nil
}

// Len returns the number of bars.
func (s Series) Len() int { return len(s.Bars) }

// Last returns the most recent bar, or false when the series is empty.
func (s Series) Last() (Bar, bool) {
	if len(s.Bars) == 0 {
		return Bar{}, false
	}
	return s.Bars[len(s.Bars)-1], true
}

// Upto returns the view of bars 0..i inclusive. The view's capacity ends at i so appends
// cannot reach later bars.
func (s Series) Upto(i int) Series {
	if i < 0 {
		return Series{Instrument: s.Instrument, Timeframe: s.Timeframe}
	}
	if i >= len(s.Bars) {
		i = len(s.Bars) - 1
	}
	return Series{Instrument: s.Instrument, Timeframe: s.Timeframe, Bars: s.Bars[: i+1 : i+1]}
}
