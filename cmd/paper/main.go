// Binary paper polls fresh bars on an interval, confirms breakouts across timeframes and books
// the resulting orders against a paper account.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	ossignal "os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Devon-ODell/quant/internal/config"
	"github.com/Devon-ODell/quant/internal/exchange"
	"github.com/Devon-ODell/quant/internal/execution"
	"github.com/Devon-ODell/quant/internal/live"
	"github.com/Devon-ODell/quant/internal/metrics"
	"github.com/Devon-ODell/quant/internal/paper"
	"github.com/Devon-ODell/quant/internal/store"
	"github.com/Devon-ODell/quant/internal/strategy"
	"github.com/Devon-ODell/quant/internal/util"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration")
	envFile := flag.String("env", ".env", "optional dotenv file applied over the configuration")
	once := flag.Bool("once", false, "evaluate every instrument a single time and exit")
	flag.Parse()

	boot := util.NewLogger("info", "json")
	cfg, err := config.Load(*configPath)
	if err != nil {
		boot.Fatal().Err(err).Msg("load config")
	}
	if err := cfg.ApplyEnv(*envFile); err != nil {
		boot.Fatal().Err(err).Msg("apply env")
	}
	if err := cfg.Validate(); err != nil {
		boot.Fatal().Err(err).Msg("invalid config")
	}
	log := util.NewLogger(cfg.App.LogLevel, cfg.App.LogFormat)

	if cfg.App.MetricsAddr != "" {
		_ = metrics.Serve(cfg.App.MetricsAddr)
		log.Info().Str("addr", cfg.App.MetricsAddr).Msg("metrics up")
	}

	ctx, cancel := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	opts := cfg.FeedOptions()
	if cfg.Data.Provider == exchange.ProviderPostgres {
		repo, err := store.NewRepository(ctx, cfg.Data.PostgresDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("connect postgres")
		}
		defer repo.Close()
		opts = append(opts, exchange.WithSource(repo))
	}
	feed := exchange.NewFeed(cfg.Data.Provider, log, opts...)

	params, err := cfg.StrategyParams()
	if err != nil {
		log.Fatal().Err(err).Msg("strategy params")
	}
	sizer, err := cfg.Sizer()
	if err != nil {
		log.Fatal().Err(err).Msg("sizing")
	}

	var recorders []paper.TradeRecorder
	if cfg.Paper.FillsPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Paper.FillsPath), 0o755); err != nil {
			log.Fatal().Err(err).Msg("fills dir")
		}
		recorder, err := paper.NewJSONLRecorder(cfg.Paper.FillsPath)
		if err != nil {
			log.Fatal().Err(err).Msg("open fills")
		}
		defer func() {
			if err := recorder.Close(); err != nil {
				log.Error().Err(err).Msg("fills write failed")
			}
		}()
		recorders = append(recorders, recorder)
	}

	confirmer := strategy.NewConfirmer(strategy.NewDetector(params.Breakout), params.Timeframes...)
	breakout := confirmer.Detector().Params()
	log.Info().
		Int("channel", breakout.Channel).
		Int("atr_window", breakout.ATRWindow).
		Float64("k", breakout.K).
		Str("window", breakout.Window.String()).
		Msg("breakout detector")

	trader, err := live.NewTrader(live.Config{
		Source:    feed,
		Confirmer: confirmer,
		Sizer:     sizer,
		Limits:    cfg.Limits(),
		Sink:      execution.NewExecutor(log),
		Book:      paper.NewBook(decimal.NewFromFloat(cfg.Paper.StartingCash), recorders...),
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("build trader")
	}

	poll := time.Duration(cfg.Paper.PollIntervalMs) * time.Millisecond
	if poll <= 0 {
		poll = time.Minute
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	log.Info().Strs("instruments", cfg.Data.Instruments).Dur("poll", poll).Msg("paper engine started")
	for {
		for _, inst := range cfg.Data.Instruments {
			if _, err := trader.Evaluate(ctx, inst); err != nil {
				if errors.Is(err, context.Canceled) {
					break
				}
				log.Error().Err(err).Str("inst", inst).Msg("evaluate failed")
			}
		}
		snap := trader.Book().Snapshot(trader.Marks())
		log.Info().
			Str("capital", snap.Capital.StringFixed(2)).
			Str("equity", snap.Equity.StringFixed(2)).
			Str("realized", snap.RealizedPnL.StringFixed(2)).
			Str("unrealized", snap.UnrealizedPnL.StringFixed(2)).
			Int("trades", snap.TradeCount).
			Msg("paper account")
		if *once {
			return
		}

		select {
		case <-ctx.Done():
			log.Info().Msg("shutting down")
			return
		case <-ticker.C:
		}
	}
}
