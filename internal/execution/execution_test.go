package execution

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Devon-ODell/quant/internal/metrics"
	sig "github.com/Devon-ODell/quant/internal/signal"
)

func TestSubmitLogsOrder(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	exec := NewExecutor(logger)
	before := testutil.ToFloat64(metrics.OrdersTotal.WithLabelValues("XBTUSD", string(Buy)))
	err := exec.Submit(context.Background(), Order{Instrument: "XBTUSD", Side: Buy, Qty: decimal.NewFromInt(1), Price: decimal.NewFromInt(100)})
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "XBTUSD") {
		t.Fatalf("log does not contain instrument: %s", out)
	}
	if got := testutil.ToFloat64(metrics.OrdersTotal.WithLabelValues("XBTUSD", string(Buy))); got != before+1 {
		t.Fatalf("expected order counter %v, got %v", before+1, got)
	}
}

func TestSubmitRejectsEmptyOrder(t *testing.T) {
	exec := NewExecutor(zerolog.Nop())
	if err := exec.Submit(context.Background(), Order{Instrument: "XBTUSD", Side: Sell}); err == nil {
		t.Fatalf("expected error for zero quantity")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := exec.Submit(ctx, Order{Instrument: "XBTUSD", Side: Sell, Qty: decimal.NewFromInt(1)}); err == nil {
		t.Fatalf("expected error for cancelled context")
	}
}

func TestSideFor(t *testing.T) {
	if side, err := SideFor(sig.Long); err != nil || side != Buy {
		t.Fatalf("expected Buy, got %s (%v)", side, err)
	}
	if side, err := SideFor(sig.Short); err != nil || side != Sell {
		t.Fatalf("expected Sell, got %s (%v)", side, err)
	}
	if _, err := SideFor(sig.Flat); err == nil {
		t.Fatalf("expected error for Flat")
	}
}
