// Binary backtest replays bar history through the configured strategy and reports per-book results.
package main

import (
	"context"
	"flag"
	"os"
	ossignal "os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/Devon-ODell/quant/internal/backtest"
	"github.com/Devon-ODell/quant/internal/config"
	"github.com/Devon-ODell/quant/internal/exchange"
	"github.com/Devon-ODell/quant/internal/metrics"
	"github.com/Devon-ODell/quant/internal/paper"
	"github.com/Devon-ODell/quant/internal/store"
	"github.com/Devon-ODell/quant/internal/strategy"
	"github.com/Devon-ODell/quant/internal/util"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration")
	envFile := flag.String("env", ".env", "optional dotenv file applied over the configuration")
	dumpDir := flag.String("dump-csv", "", "write the loaded series as CSV into this directory")
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

	var repo *store.Repository
	opts := cfg.FeedOptions()
	if cfg.Data.Provider == exchange.ProviderPostgres || cfg.Backtest.Persist {
		repo, err = store.NewRepository(ctx, cfg.Data.PostgresDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("connect postgres")
		}
		defer repo.Close()
		if err := repo.EnsureSchema(ctx); err != nil {
			log.Fatal().Err(err).Msg("ensure schema")
		}
		opts = append(opts, exchange.WithSource(repo))
	}
	feed := exchange.NewFeed(cfg.Data.Provider, log, opts...)

	base, err := cfg.BaseTimeframe()
	if err != nil {
		log.Fatal().Err(err).Msg("base timeframe")
	}
	series, err := feed.Load(ctx, cfg.Data.Instruments, base)
	if err != nil {
		log.Fatal().Err(err).Msg("load series")
	}
	if cfg.Backtest.Persist && cfg.Data.Provider != exchange.ProviderPostgres {
		for _, s := range series {
			if err := repo.SaveSeries(ctx, s); err != nil {
				log.Fatal().Err(err).Str("inst", s.Instrument).Msg("persist series")
			}
		}
		log.Info().Int("series", len(series)).Msg("series persisted")
	}
	if *dumpDir != "" {
		for _, s := range series {
			path, err := exchange.SaveCSV(*dumpDir, s)
			if err != nil {
				log.Fatal().Err(err).Msg("dump csv")
			}
			log.Info().Str("path", path).Int("bars", s.Len()).Msg("series written")
		}
	}

	params, err := cfg.StrategyParams()
	if err != nil {
		log.Fatal().Err(err).Msg("strategy params")
	}
	strat, err := strategy.Build(cfg.Strategy.Mode, params, base)
	if err != nil {
		log.Fatal().Err(err).Msg("build strategy")
	}

	btCfg, err := cfg.BacktestConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("backtest config")
	}
	var recorder *paper.JSONLRecorder
	if cfg.Backtest.LedgerPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Backtest.LedgerPath), 0o755); err != nil {
			log.Fatal().Err(err).Msg("ledger dir")
		}
		recorder, err = paper.CreateJSONLRecorder(cfg.Backtest.LedgerPath)
		if err != nil {
			log.Fatal().Err(err).Msg("open ledger")
		}
		btCfg.Recorders = append(btCfg.Recorders, recorder)
	}

	result, runErr := backtest.Replay(ctx, btCfg, strat, series, log)
	if recorder != nil {
		if err := recorder.Close(); err != nil {
			log.Error().Err(err).Str("path", cfg.Backtest.LedgerPath).Msg("ledger write failed")
		}
	}
	if runErr != nil {
		log.Fatal().Err(runErr).Msg("backtest failed")
	}

	for _, rep := range result.Reports {
		logReport(log, result, rep)
	}
	if cfg.Backtest.Persist {
		if err := repo.SaveTrades(ctx, result.RunID, result.Trades()); err != nil {
			log.Fatal().Err(err).Msg("persist trades")
		}
		log.Info().Str("run", result.RunID.String()).Int("trades", len(result.Trades())).Msg("trades persisted")
	}
}

func logReport(log zerolog.Logger, result *backtest.Result, rep backtest.Report) {
	log.Info().
		Str("run", result.RunID.String()).
		Str("strategy", result.Strategy).
		Strs("instruments", rep.Instruments).
		Str("initial", rep.InitialCapital.String()).
		Str("equity", rep.FinalEquity.StringFixed(2)).
		Float64("return", rep.TotalReturn).
		Int("trades", rep.TradeCount).
		Int("round_trips", len(rep.RoundTrips)).
		Float64("win_rate", rep.WinRate).
		Str("realized", rep.RealizedPnL.StringFixed(2)).
		Str("unrealized", rep.UnrealizedPnL.StringFixed(2)).
		Float64("max_drawdown", rep.MaxDrawdown).
		Dur("elapsed", result.Duration).
		Msg("backtest report")
}
