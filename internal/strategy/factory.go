package strategy

import (
	"fmt"
	"strings"

	sig "github.com/Devon-ODell/quant/internal/signal"
)

// Params expresses tunable knobs required by strategy constructors.
type Params struct {
	Breakout       BreakoutParams
	Timeframes     []sig.Timeframe
	TrendThreshold float64
	TrendLookback  int
	TrendMinVolume float64
}

// Build returns a strategy implementation matching the configured mode. base is the timeframe of
// the series the strategy will be fed.
func Build(mode string, params Params, base sig.Timeframe) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "confirm", "mtf", "multi_timeframe":
		confirmer := NewConfirmer(NewDetector(params.Breakout), params.Timeframes...)
		return NewTimeframeStrategy(confirmer, base)
	case "breakout":
		return NewDetector(params.Breakout), nil
	case "trend", "trend_follow", "trend_follower":
		return NewTrendFollower(params.TrendThreshold, params.TrendLookback, params.TrendMinVolume), nil
	default:
		return nil, fmt.Errorf("unknown strategy mode %q", mode)
	}
}
