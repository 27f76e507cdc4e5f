package store

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Devon-ODell/quant/internal/exchange"
	"github.com/Devon-ODell/quant/internal/paper"
	sig "github.com/Devon-ODell/quant/internal/signal"
)

func TestBarFromText(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.FixedZone("CET", 3600))
	bar, err := barFromText(ts, "100.50", "101", "99.25", "100", "12.000")
	if err != nil {
		t.Fatalf("barFromText error: %v", err)
	}
	if bar.Time.Location() != time.UTC || !bar.Time.Equal(ts) {
		t.Fatalf("expected UTC time, got %s", bar.Time)
	}
	if !bar.Low.Equal(decimal.RequireFromString("99.25")) || !bar.Volume.Equal(decimal.NewFromInt(12)) {
		t.Fatalf("unexpected bar %+v", bar)
	}
	if _, err := barFromText(ts, "1", "NaN?", "1", "1", "1"); err == nil {
		t.Fatalf("expected parse error")
	}
	if _, err := barFromText(ts, "1", "1"); err == nil {
		t.Fatalf("expected column count error")
	}
}

// TestRepositoryRoundTrip needs a scratch database named by QUANT_TEST_POSTGRES_DSN.
func TestRepositoryRoundTrip(t *testing.T) {
	dsn := os.Getenv("QUANT_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("QUANT_TEST_POSTGRES_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	repo, err := NewRepository(ctx, dsn)
	if err != nil {
		t.Fatalf("NewRepository error: %v", err)
	}
	defer repo.Close()
	if err := repo.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema error: %v", err)
	}

	inst := "TEST" + uuid.NewString()[:8]
	series, err := exchange.StubSeries(inst, sig.TF1h, 48, 5, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("StubSeries error: %v", err)
	}
	if err := repo.SaveSeries(ctx, series); err != nil {
		t.Fatalf("SaveSeries error: %v", err)
	}
	loaded, err := repo.LoadSeries(ctx, inst, sig.TF1h)
	if err != nil {
		t.Fatalf("LoadSeries error: %v", err)
	}
	if loaded.Len() != series.Len() || !loaded.Bars[10].Close.Equal(series.Bars[10].Close) {
		t.Fatalf("bars changed through postgres")
	}
	if _, err := repo.LoadSeries(ctx, inst, sig.TF1d); !errors.Is(err, exchange.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	book := paper.NewBook(decimal.NewFromInt(1000))
	_, _ = book.ApplyTrade(inst, sig.Long, decimal.NewFromInt(2), decimal.RequireFromString("100.5"), series.Bars[0].Time)
	_, _ = book.ApplyTrade(inst, sig.Short, decimal.NewFromInt(2), decimal.RequireFromString("101.25"), series.Bars[1].Time)
	runID := uuid.New()
	if err := repo.SaveTrades(ctx, runID, book.Trades()); err != nil {
		t.Fatalf("SaveTrades error: %v", err)
	}
	trades, err := repo.LoadTrades(ctx, runID)
	if err != nil {
		t.Fatalf("LoadTrades error: %v", err)
	}
	if len(trades) != 2 || trades[1].Direction != sig.Short {
		t.Fatalf("unexpected ledger %+v", trades)
	}
	if !paper.TotalNotional(trades).Equal(paper.TotalNotional(book.Trades())) {
		t.Fatalf("notional changed through postgres")
	}
}
