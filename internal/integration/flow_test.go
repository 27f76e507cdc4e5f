package integration

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Devon-ODell/quant/internal/backtest"
	"github.com/Devon-ODell/quant/internal/exchange"
	"github.com/Devon-ODell/quant/internal/execution"
	"github.com/Devon-ODell/quant/internal/live"
	"github.com/Devon-ODell/quant/internal/paper"
	"github.com/Devon-ODell/quant/internal/risk"
	sig "github.com/Devon-ODell/quant/internal/signal"
	"github.com/Devon-ODell/quant/internal/strategy"
)

// breakoutSeries is twenty flat bars at 100 and a final bar closing at 130.
func breakoutSeries(tf sig.Timeframe, start time.Time) sig.Series {
	px := decimal.NewFromInt(100)
	bars := make([]sig.Bar, 0, 21)
	for i := 0; i < 20; i++ {
		bars = append(bars, sig.Bar{Time: start.Add(time.Duration(i) * tf.Duration()), Open: px, High: px, Low: px, Close: px, Volume: decimal.NewFromInt(10)})
	}
	bars = append(bars, sig.Bar{
		Time:   start.Add(20 * tf.Duration()),
		Open:   px,
		High:   decimal.NewFromInt(131),
		Low:    decimal.NewFromInt(100),
		Close:  decimal.NewFromInt(130),
		Volume: decimal.NewFromInt(10),
	})
	return sig.Series{Instrument: "XBTUSD", Timeframe: tf, Bars: bars}
}

func TestLiveFlowSubmitsConfirmedBreakout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	dir := t.TempDir()
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for _, tf := range sig.DefaultTimeframes {
		if _, err := exchange.SaveCSV(dir, breakoutSeries(tf, start)); err != nil {
			t.Fatalf("SaveCSV returned error: %v", err)
		}
	}

	ledgerPath := filepath.Join(dir, "fills.jsonl")
	recorder, err := paper.NewJSONLRecorder(ledgerPath)
	if err != nil {
		t.Fatalf("NewJSONLRecorder returned error: %v", err)
	}

	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	trader, err := live.NewTrader(live.Config{
		Source: exchange.NewFeed(exchange.ProviderCSV, zerolog.Nop(), exchange.WithDir(dir)),
		Sink:   execution.NewExecutor(logger),
		Book:   paper.NewBook(decimal.NewFromInt(100000), recorder),
		Limits: risk.Limits{MaxNotionalPerTrade: decimal.NewFromInt(500)},
	}, logger)
	if err != nil {
		t.Fatalf("NewTrader returned error: %v", err)
	}

	decision, err := trader.Evaluate(ctx, "XBTUSD")
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if decision.Direction != sig.Long || decision.Trade == nil {
		t.Fatalf("expected a confirmed long trade, got %+v", decision)
	}
	for _, tf := range sig.DefaultTimeframes {
		if !decision.Confirmation.Signals[tf].Upper {
			t.Fatalf("expected upper breakout on %s", tf)
		}
	}
	if notional := decision.Trade.Notional(); notional.GreaterThan(decimal.NewFromInt(500)) {
		t.Fatalf("expected notional capped at 500, got %s", notional)
	}
	if !strings.Contains(buf.String(), "submit order") {
		t.Fatalf("expected log output to include submit order, got %s", buf.String())
	}

	if err := recorder.Close(); err != nil {
		t.Fatalf("recorder Close returned error: %v", err)
	}
	fills, err := paper.ReadJSONLFile(ledgerPath)
	if err != nil {
		t.Fatalf("ReadJSONLFile returned error: %v", err)
	}
	if len(fills) != 1 || fills[0].ID != decision.Trade.ID {
		t.Fatalf("expected the trade in the ledger file, got %+v", fills)
	}
}

func TestBacktestFlowLedgerMatchesReport(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	end := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	feed := exchange.NewFeed(exchange.ProviderStub, zerolog.Nop(), exchange.WithStub(600, 11), exchange.WithStubEnd(end))
	series, err := feed.Load(ctx, []string{"XBTUSD", "ETHUSD", "XBTUSD"}, sig.TF1h)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(series) != 2 {
		t.Fatalf("expected duplicate instruments to collapse, got %d", len(series))
	}

	params := strategy.Params{
		Breakout:   strategy.BreakoutParams{Channel: 5, ATRWindow: 5, K: 0.1},
		Timeframes: []sig.Timeframe{sig.TF1h, sig.TF4h},
	}
	strat, err := strategy.Build("confirm", params, sig.TF1h)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}

	ledgerPath := filepath.Join(t.TempDir(), "ledger.jsonl")
	recorder, err := paper.NewJSONLRecorder(ledgerPath)
	if err != nil {
		t.Fatalf("NewJSONLRecorder returned error: %v", err)
	}
	cfg := backtest.DefaultConfig()
	cfg.Recorders = []paper.TradeRecorder{recorder}

	result, err := backtest.Replay(ctx, cfg, strat, series, zerolog.Nop())
	if err != nil {
		t.Fatalf("Replay returned error: %v", err)
	}
	if err := recorder.Close(); err != nil {
		t.Fatalf("recorder Close returned error: %v", err)
	}
	if len(result.Reports) != 2 {
		t.Fatalf("expected one report per instrument, got %d", len(result.Reports))
	}

	for _, rep := range result.Reports {
		pnl := rep.FinalEquity.Sub(rep.InitialCapital)
		if !pnl.Equal(rep.RealizedPnL.Add(rep.UnrealizedPnL)) {
			t.Fatalf("%v: equity change %s != realized %s + unrealized %s", rep.Instruments, pnl, rep.RealizedPnL, rep.UnrealizedPnL)
		}
		if rep.TradeCount != len(rep.Trades) {
			t.Fatalf("%v: trade count %d does not match ledger %d", rep.Instruments, rep.TradeCount, len(rep.Trades))
		}
	}

	fills, err := paper.ReadJSONLFile(ledgerPath)
	if err != nil {
		t.Fatalf("ReadJSONLFile returned error: %v", err)
	}
	seen := make(map[string]bool, len(fills))
	for _, f := range fills {
		seen[f.ID.String()] = true
	}
	trades := result.Trades()
	if len(fills) != len(trades) {
		t.Fatalf("ledger has %d fills, result has %d trades", len(fills), len(trades))
	}
	for _, tr := range trades {
		if !seen[tr.ID.String()] {
			t.Fatalf("trade %s missing from ledger file", tr.ID)
		}
	}
}
