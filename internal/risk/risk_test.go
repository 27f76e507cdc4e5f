package risk

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func d(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func TestCap(t *testing.T) {
	limits := Limits{MaxNotionalPerTrade: d(1000), MaxPosition: d(8)}
	if got := limits.Cap(d(20), d(100), decimal.Zero); !got.Equal(d(8)) {
		t.Fatalf("expected position cap 8, got %s", got)
	}
	if got := limits.Cap(d(20), d(250), decimal.Zero); !got.Equal(d(4)) {
		t.Fatalf("expected notional cap 4, got %s", got)
	}
	if got := limits.Cap(d(5), d(10), d(-10)); !got.IsZero() {
		t.Fatalf("expected zero when already over the position cap, got %s", got)
	}
}

func TestFixedFraction(t *testing.T) {
	qty, err := NewFixedFraction(0).Size(d(100000), d(100))
	if err != nil {
		t.Fatalf("Size error: %v", err)
	}
	if !qty.Equal(d(10)) {
		t.Fatalf("expected 1%% of 100000 at 100 = 10, got %s", qty)
	}
	if _, err := NewFixedFraction(0.5).Size(decimal.Zero, d(100)); !errors.Is(err, ErrNoCapital) {
		t.Fatalf("expected ErrNoCapital, got %v", err)
	}
	if _, err := NewFixedFraction(0.5).Size(d(100), decimal.Zero); !errors.Is(err, ErrInvalidPrice) {
		t.Fatalf("expected ErrInvalidPrice, got %v", err)
	}
}

func TestRiskBased(t *testing.T) {
	sizer := NewRiskBased(0.01, 0.02)
	qty, err := sizer.Size(d(10000), d(100))
	if err != nil {
		t.Fatalf("Size error: %v", err)
	}
	// 1% of 10000 risked over a 2 point stop.
	if !qty.Equal(d(50)) {
		t.Fatalf("expected 50, got %s", qty)
	}
	if stop := sizer.StopPrice(d(100), true); !stop.Equal(d(98)) {
		t.Fatalf("expected long stop 98, got %s", stop)
	}
	if stop := sizer.StopPrice(d(100), false); !stop.Equal(d(102)) {
		t.Fatalf("expected short stop 102, got %s", stop)
	}
}

func TestNewSizer(t *testing.T) {
	if s, err := NewSizer("", 0.02, 0); err != nil {
		t.Fatalf("NewSizer error: %v", err)
	} else if _, ok := s.(FixedFraction); !ok {
		t.Fatalf("expected FixedFraction, got %T", s)
	}
	if s, err := NewSizer("risk_based", 0.01, 0.05); err != nil {
		t.Fatalf("NewSizer error: %v", err)
	} else if _, ok := s.(RiskBased); !ok {
		t.Fatalf("expected RiskBased, got %T", s)
	}
	if _, err := NewSizer("kelly", 0.01, 0); err == nil {
		t.Fatalf("expected unknown rule error")
	}
}

func TestDrawdownGuard(t *testing.T) {
	guard := NewDrawdownGuard(0.2, d(1000))
	if guard.Observe(d(1200)) {
		t.Fatalf("new peak must not trip")
	}
	if guard.Observe(d(1000)) {
		t.Fatalf("16.7%% drawdown must not trip a 20%% guard")
	}
	if !guard.Observe(d(900)) {
		t.Fatalf("25%% drawdown must trip")
	}
	if !guard.Observe(d(5000)) || !guard.Tripped() {
		t.Fatalf("guard must stay tripped")
	}
	if NewDrawdownGuard(0, d(1000)).Observe(d(1)) {
		t.Fatalf("disabled guard must not trip")
	}
}

func TestFraction(t *testing.T) {
	if f := Fraction(d(1000), d(2), d(50)); f != 0.1 {
		t.Fatalf("expected 0.1, got %v", f)
	}
	if Fraction(decimal.Zero, d(1), d(1)) != 0 {
		t.Fatalf("expected zero fraction without capital")
	}
}

func TestStopHit(t *testing.T) {
	var stopper Stopper = NewRiskBased(0.01, 0.1)
	stop := stopper.StopPrice(d(100), true)
	if fill, hit := StopHit(stop, d(95), d(91), d(96), true); hit {
		t.Fatalf("long stop %s should not trigger above it, got fill %s", stop, fill)
	}
	if fill, hit := StopHit(stop, d(95), d(85), d(96), true); !hit || !fill.Equal(d(90)) {
		t.Fatalf("expected long stop fill at 90, got %s (%v)", fill, hit)
	}
	if fill, hit := StopHit(stop, d(80), d(75), d(82), true); !hit || !fill.Equal(d(80)) {
		t.Fatalf("expected gap fill at the open 80, got %s (%v)", fill, hit)
	}

	short := stopper.StopPrice(d(100), false)
	if fill, hit := StopHit(short, d(105), d(104), d(112), false); !hit || !fill.Equal(d(110)) {
		t.Fatalf("expected short stop fill at 110, got %s (%v)", fill, hit)
	}
	if fill, hit := StopHit(short, d(120), d(115), d(125), false); !hit || !fill.Equal(d(120)) {
		t.Fatalf("expected short gap fill at the open 120, got %s (%v)", fill, hit)
	}
	if _, hit := StopHit(decimal.Zero, d(1), d(0), d(2), true); hit {
		t.Fatalf("zero stop must never trigger")
	}
}
