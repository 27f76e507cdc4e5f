package strategy

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Devon-ODell/quant/internal/indicator"
	sig "github.com/Devon-ODell/quant/internal/signal"
)

// ChannelWindow selects which bars form the rolling high/low channel.
type ChannelWindow int

const (
	// ChannelPreceding uses the C bars before the evaluation bar. It is the default because a close
	// can only clear a channel that excludes its own bar's high.
	ChannelPreceding ChannelWindow = iota
	// ChannelInclusive uses the C bars ending with the evaluation bar. A well-formed bar closes
	// inside its own range, so with k >= 0 this mode only reports breakouts for degenerate bars.
	ChannelInclusive
)

func (w ChannelWindow) String() string {
	if w == ChannelInclusive {
		return "inclusive"
	}
	return "preceding"
}

// ParseChannelWindow reads the configuration form of a ChannelWindow.
func ParseChannelWindow(s string) (ChannelWindow, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "preceding", "exclusive":
		return ChannelPreceding, nil
	case "inclusive":
		return ChannelInclusive, nil
	default:
		return ChannelPreceding, fmt.Errorf("unknown channel window %q", s)
	}
}

const (
	defaultChannel    = 10
	defaultMultiplier = 0.5
)

// BreakoutParams tunes the volatility breakout detector.
type BreakoutParams struct {
	Channel   int
	ATRWindow int
	K         float64
	Window    ChannelWindow
}

// DefaultBreakoutParams returns channel 10, ATR 14, k 0.5 over the preceding-bars channel.
func DefaultBreakoutParams() BreakoutParams {
	return BreakoutParams{Channel: defaultChannel, ATRWindow: indicator.DefaultATRWindow, K: defaultMultiplier, Window: ChannelPreceding}
}

// Detector flags closes beyond the rolling high/low channel widened by k times ATR.
type Detector struct {
	channel   int
	atrWindow int
	k         decimal.Decimal
	window    ChannelWindow
}

// NewDetector builds a detector, substituting defaults for non-positive windows and a negative k.
func NewDetector(p BreakoutParams) *Detector {
	if p.Channel <= 0 {
		p.Channel = defaultChannel
	}
	if p.ATRWindow <= 0 {
		p.ATRWindow = indicator.DefaultATRWindow
	}
	if p.K < 0 {
		p.K = defaultMultiplier
	}
	return &Detector{channel: p.Channel, atrWindow: p.ATRWindow, k: decimal.NewFromFloat(p.K), window: p.Window}
}

// Params reports the effective parameters.
func (d *Detector) Params() BreakoutParams {
	return BreakoutParams{Channel: d.channel, ATRWindow: d.atrWindow, K: d.k.InexactFloat64(), Window: d.window}
}

// Name returns the identifier used in logs and reports.
func (d *Detector) Name() string { return "Breakout" }

// Warmup returns the bar count needed to fill both the ATR and the channel window.
func (d *Detector) Warmup() int {
	need := d.atrWindow + 1
	channel := d.channel
	if d.window == ChannelPreceding {
		channel++
	}
	if channel > need {
		need = channel
	}
	return need
}

// Evaluate computes the breakout flags at idx.
func (d *Detector) Evaluate(s sig.Series, idx int) (sig.BreakoutSignal, error) {
	if idx < 0 || idx >= s.Len() {
		if s.Len() == 0 {
			return sig.BreakoutSignal{}, &indicator.InsufficientDataError{What: "breakout", Need: d.Warmup(), Have: 0}
		}
		return sig.BreakoutSignal{}, fmt.Errorf("breakout index %d of %d bars: %w", idx, s.Len(), indicator.ErrIndexOutOfRange)
	}

	from, to := idx-d.channel+1, idx
	if d.window == ChannelPreceding {
		from, to = idx-d.channel, idx-1
	}
	if from < 0 {
		return sig.BreakoutSignal{}, &indicator.InsufficientDataError{What: "breakout channel", Need: d.Warmup(), Have: idx + 1}
	}

	atr, err := indicator.ATRAt(s, d.atrWindow, idx)
	if err != nil {
		return sig.BreakoutSignal{}, fmt.Errorf("breakout %s %s: %w", s.Instrument, s.Timeframe, err)
	}
	hi, err := indicator.HighestHigh(s, from, to)
	if err != nil {
		return sig.BreakoutSignal{}, err
	}
	lo, err := indicator.LowestLow(s, from, to)
	if err != nil {
		return sig.BreakoutSignal{}, err
	}

	band := d.k.Mul(atr)
	upper := hi.Add(band)
	lower := lo.Sub(band)
	closePx := s.Bars[idx].Close
	return sig.BreakoutSignal{
		Upper:      closePx.GreaterThan(upper),
		Lower:      closePx.LessThan(lower),
		UpperLevel: upper,
		LowerLevel: lower,
		ATR:        atr,
		Close:      closePx,
	}, nil
}

// EvaluateLast computes the breakout flags at the most recent bar.
func (d *Detector) EvaluateLast(s sig.Series) (sig.BreakoutSignal, error) {
	return d.Evaluate(s, s.Len()-1)
}

// Decide lets the detector run as a single-timeframe strategy; mixed signals are Flat.
func (d *Detector) Decide(view sig.Series) (sig.Direction, error) {
	out, err := d.EvaluateLast(view)
	if err != nil {
		return sig.Flat, err
	}
	return out.Direction(), nil
}
