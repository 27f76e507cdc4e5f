package strategy

import (
	"errors"
	"fmt"
	"time"

	"github.com/Devon-ODell/quant/internal/indicator"
	sig "github.com/Devon-ODell/quant/internal/signal"
)

// ErrTimeframeUnavailable marks a timeframe whose series was missing or could not be evaluated.
var ErrTimeframeUnavailable = errors.New("timeframe unavailable")

// Confirmation is the outcome of one multi-timeframe pass.
type Confirmation struct {
	Direction   sig.Direction                        `json:"direction"`
	Signals     map[sig.Timeframe]sig.BreakoutSignal `json:"signals"`
	Unavailable map[sig.Timeframe]error              `json:"-"`
}

// Available reports whether every configured timeframe produced a signal.
func (c Confirmation) Available() bool { return len(c.Unavailable) == 0 }

// Confirmer requires every configured timeframe to agree before emitting a direction.
// A single dissenting, mixed or unavailable timeframe vetoes the trade.
type Confirmer struct {
	detector   *Detector
	timeframes []sig.Timeframe
}

// NewConfirmer evaluates detector on each timeframe; no timeframes means DefaultTimeframes.
func NewConfirmer(detector *Detector, timeframes ...sig.Timeframe) *Confirmer {
	if detector == nil {
		detector = NewDetector(DefaultBreakoutParams())
	}
	if len(timeframes) == 0 {
		timeframes = sig.DefaultTimeframes
	}
	tfs := make([]sig.Timeframe, len(timeframes))
	copy(tfs, timeframes)
	return &Confirmer{detector: detector, timeframes: tfs}
}

// Timeframes returns the configured set in evaluation order.
func (c *Confirmer) Timeframes() []sig.Timeframe {
	out := make([]sig.Timeframe, len(c.timeframes))
	copy(out, c.timeframes)
	return out
}

// Detector exposes the per-timeframe detector.
func (c *Confirmer) Detector() *Detector { return c.detector }

// Confirm evaluates the latest bar of each timeframe's series. Missing series and insufficient
// history downgrade the result to Flat and are listed in Unavailable; any other failure is returned.
func (c *Confirmer) Confirm(series map[sig.Timeframe]sig.Series) (Confirmation, error) {
	out := Confirmation{
		Direction:   sig.Flat,
		Signals:     make(map[sig.Timeframe]sig.BreakoutSignal, len(c.timeframes)),
		Unavailable: make(map[sig.Timeframe]error),
	}
	longs, shorts := 0, 0
	for _, tf := range c.timeframes {
		s, ok := series[tf]
		if !ok {
			out.Unavailable[tf] = fmt.Errorf("%s: %w: series missing", tf, ErrTimeframeUnavailable)
			continue
		}
		bs, err := c.detector.EvaluateLast(s)
		if err != nil {
			if errors.Is(err, indicator.ErrInsufficientData) {
				out.Unavailable[tf] = fmt.Errorf("%s: %w: %w", tf, ErrTimeframeUnavailable, err)
				continue
			}
			return Confirmation{Direction: sig.Flat}, fmt.Errorf("confirm %s: %w", tf, err)
		}
		out.Signals[tf] = bs
		switch bs.Direction() {
		case sig.Long:
			longs++
		case sig.Short:
			shorts++
		}
	}
	if len(out.Unavailable) > 0 {
		return out, nil
	}
	if longs == len(c.timeframes) {
		out.Direction = sig.Long
	} else if shorts == len(c.timeframes) {
		out.Direction = sig.Short
	}
	return out, nil
}

// TimeframeStrategy runs a Confirmer against a single base series by resampling the visible bars
// into each configured timeframe, so it plugs into the backtester without look-ahead.
type TimeframeStrategy struct {
	confirmer *Confirmer
	base      sig.Timeframe
}

// NewTimeframeStrategy binds the confirmer to the resolution of the series it will be fed.
func NewTimeframeStrategy(confirmer *Confirmer, base sig.Timeframe) (*TimeframeStrategy, error) {
	if confirmer == nil {
		return nil, errors.New("nil confirmer")
	}
	baseDur := base.Duration()
	if baseDur <= 0 {
		return nil, fmt.Errorf("unknown base timeframe %q", base)
	}
	for _, tf := range confirmer.timeframes {
		d := tf.Duration()
		if d < baseDur || d%baseDur != 0 {
			return nil, fmt.Errorf("timeframe %s is not a multiple of base %s", tf, base)
		}
	}
	return &TimeframeStrategy{confirmer: confirmer, base: base}, nil
}

// Name returns the identifier used in logs and reports.
func (t *TimeframeStrategy) Name() string { return "MultiTimeframeBreakout" }

// Warmup is the base bar count that fills the detector on the coarsest timeframe, ignoring bucket
// alignment; the first few evaluations after warmup may still be Flat while buckets complete.
func (t *TimeframeStrategy) Warmup() int {
	baseDur := t.base.Duration()
	var coarsest time.Duration
	for _, tf := range t.confirmer.timeframes {
		if d := tf.Duration(); d > coarsest {
			coarsest = d
		}
	}
	factor := int(coarsest / baseDur)
	if factor < 1 {
		factor = 1
	}
	return factor * t.confirmer.detector.Warmup()
}

// Decide resamples the view and asks the confirmer for a unanimous direction.
func (t *TimeframeStrategy) Decide(view sig.Series) (sig.Direction, error) {
	if view.Timeframe != "" && view.Timeframe.Duration() != t.base.Duration() {
		return sig.Flat, fmt.Errorf("series timeframe %s does not match base %s", view.Timeframe, t.base)
	}
	view.Timeframe = t.base
	frames := make(map[sig.Timeframe]sig.Series, len(t.confirmer.timeframes))
	for _, tf := range t.confirmer.timeframes {
		resampled, err := sig.Resample(view, tf)
		if err != nil {
			return sig.Flat, err
		}
		frames[tf] = resampled
	}
	conf, err := t.confirmer.Confirm(frames)
	if err != nil {
		return sig.Flat, err
	}
	return conf.Direction, nil
}
