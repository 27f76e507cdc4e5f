package strategy

import (
	"errors"
	"testing"

	"github.com/Devon-ODell/quant/internal/indicator"
	sig "github.com/Devon-ODell/quant/internal/signal"
)

func upSeries(tf sig.Timeframe) sig.Series {
	return withJump(flatSeries(tf, 20, 100), 130, 129, 130)
}

func downSeries(tf sig.Timeframe) sig.Series {
	return withJump(flatSeries(tf, 20, 100), 71, 70, 70)
}

func TestConfirmUnanimousLong(t *testing.T) {
	c := NewConfirmer(nil)
	frames := map[sig.Timeframe]sig.Series{
		sig.TF1h: upSeries(sig.TF1h),
		sig.TF4h: upSeries(sig.TF4h),
		sig.TF1d: upSeries(sig.TF1d),
	}
	conf, err := c.Confirm(frames)
	if err != nil {
		t.Fatalf("Confirm error: %v", err)
	}
	if conf.Direction != sig.Long {
		t.Fatalf("expected Long, got %s", conf.Direction)
	}
	if !conf.Available() || len(conf.Signals) != 3 {
		t.Fatalf("expected three signals, got %+v", conf)
	}
}

func TestConfirmUnanimousShort(t *testing.T) {
	c := NewConfirmer(nil, sig.TF1h, sig.TF4h)
	conf, err := c.Confirm(map[sig.Timeframe]sig.Series{
		sig.TF1h: downSeries(sig.TF1h),
		sig.TF4h: downSeries(sig.TF4h),
	})
	if err != nil {
		t.Fatalf("Confirm error: %v", err)
	}
	if conf.Direction != sig.Short {
		t.Fatalf("expected Short, got %s", conf.Direction)
	}
}

func TestConfirmDisagreementIsFlat(t *testing.T) {
	c := NewConfirmer(nil)
	conf, err := c.Confirm(map[sig.Timeframe]sig.Series{
		sig.TF1h: upSeries(sig.TF1h),
		sig.TF4h: upSeries(sig.TF4h),
		sig.TF1d: downSeries(sig.TF1d),
	})
	if err != nil {
		t.Fatalf("Confirm error: %v", err)
	}
	if conf.Direction != sig.Flat {
		t.Fatalf("expected Flat on disagreement, got %s", conf.Direction)
	}
	if !conf.Signals[sig.TF1d].Lower {
		t.Fatalf("expected daily lower breakout to be recorded")
	}
}

func TestConfirmNoBreakoutIsFlat(t *testing.T) {
	c := NewConfirmer(nil)
	conf, err := c.Confirm(map[sig.Timeframe]sig.Series{
		sig.TF1h: upSeries(sig.TF1h),
		sig.TF4h: flatSeries(sig.TF4h, 30, 100),
		sig.TF1d: upSeries(sig.TF1d),
	})
	if err != nil {
		t.Fatalf("Confirm error: %v", err)
	}
	if conf.Direction != sig.Flat {
		t.Fatalf("expected Flat, got %s", conf.Direction)
	}
}

func TestConfirmMissingTimeframe(t *testing.T) {
	c := NewConfirmer(nil)
	conf, err := c.Confirm(map[sig.Timeframe]sig.Series{
		sig.TF1h: upSeries(sig.TF1h),
		sig.TF4h: upSeries(sig.TF4h),
	})
	if err != nil {
		t.Fatalf("Confirm error: %v", err)
	}
	if conf.Direction != sig.Flat {
		t.Fatalf("expected Flat with a missing timeframe, got %s", conf.Direction)
	}
	if conf.Available() {
		t.Fatalf("expected unavailable timeframe to be reported")
	}
	if !errors.Is(conf.Unavailable[sig.TF1d], ErrTimeframeUnavailable) {
		t.Fatalf("expected ErrTimeframeUnavailable for 1d, got %v", conf.Unavailable[sig.TF1d])
	}
}

func TestConfirmInsufficientTimeframe(t *testing.T) {
	c := NewConfirmer(nil)
	conf, err := c.Confirm(map[sig.Timeframe]sig.Series{
		sig.TF1h: upSeries(sig.TF1h),
		sig.TF4h: upSeries(sig.TF4h),
		sig.TF1d: flatSeries(sig.TF1d, 5, 100),
	})
	if err != nil {
		t.Fatalf("Confirm error: %v", err)
	}
	if conf.Direction != sig.Flat {
		t.Fatalf("expected Flat, got %s", conf.Direction)
	}
	reason := conf.Unavailable[sig.TF1d]
	if !errors.Is(reason, indicator.ErrInsufficientData) || !errors.Is(reason, ErrTimeframeUnavailable) {
		t.Fatalf("expected insufficient data on 1d, got %v", reason)
	}
}

func timeframeStrategy(t *testing.T) *TimeframeStrategy {
	t.Helper()
	det := NewDetector(BreakoutParams{Channel: 2, ATRWindow: 2, K: 0.5})
	strat, err := NewTimeframeStrategy(NewConfirmer(det, sig.TF1h, sig.TF4h), sig.TF1h)
	if err != nil {
		t.Fatalf("NewTimeframeStrategy error: %v", err)
	}
	return strat
}

func TestTimeframeStrategyConfirmsOnCompletedBucket(t *testing.T) {
	strat := timeframeStrategy(t)
	if strat.Warmup() != 12 {
		t.Fatalf("expected warmup 12, got %d", strat.Warmup())
	}
	// Hour 47 closes the 44:00-48:00 bucket.
	s := withJump(flatSeries(sig.TF1h, 47, 100), 130, 129, 130)
	dir, err := strat.Decide(s)
	if err != nil {
		t.Fatalf("Decide error: %v", err)
	}
	if dir != sig.Long {
		t.Fatalf("expected Long, got %s", dir)
	}
	before, err := strat.Decide(s.Upto(46))
	if err != nil {
		t.Fatalf("Decide error: %v", err)
	}
	if before != sig.Flat {
		t.Fatalf("expected Flat before the jump, got %s", before)
	}
}

func TestTimeframeStrategyIgnoresPartialBucket(t *testing.T) {
	strat := timeframeStrategy(t)
	// Hour 45 breaks out on 1h but its 4h bucket is still open.
	s := withJump(flatSeries(sig.TF1h, 45, 100), 130, 129, 130)
	dir, err := strat.Decide(s)
	if err != nil {
		t.Fatalf("Decide error: %v", err)
	}
	if dir != sig.Flat {
		t.Fatalf("expected Flat while the 4h bucket is incomplete, got %s", dir)
	}
}

func TestTimeframeStrategyRejectsMisalignedTimeframes(t *testing.T) {
	c := NewConfirmer(nil, sig.TF1h)
	if _, err := NewTimeframeStrategy(c, sig.TF4h); err == nil {
		t.Fatalf("expected error for timeframe finer than base")
	}
	if _, err := NewTimeframeStrategy(c, sig.Timeframe("7m")); err == nil {
		t.Fatalf("expected error for non-multiple timeframe")
	}
	if _, err := NewTimeframeStrategy(nil, sig.TF1h); err == nil {
		t.Fatalf("expected error for nil confirmer")
	}
	strat := timeframeStrategy(t)
	if _, err := strat.Decide(flatSeries(sig.TF4h, 20, 100)); err == nil {
		t.Fatalf("expected error for series at the wrong resolution")
	}
}
