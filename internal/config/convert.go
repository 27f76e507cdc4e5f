package config

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Devon-ODell/quant/internal/backtest"
	"github.com/Devon-ODell/quant/internal/exchange"
	"github.com/Devon-ODell/quant/internal/risk"
	sig "github.com/Devon-ODell/quant/internal/signal"
	"github.com/Devon-ODell/quant/internal/strategy"
)

// BaseTimeframe parses data.base_timeframe.
func (c *Config) BaseTimeframe() (sig.Timeframe, error) {
	tf, err := sig.ParseTimeframe(c.Data.BaseTimeframe)
	if err != nil {
		return "", fmt.Errorf("data.base_timeframe: %w", err)
	}
	return tf, nil
}

// StrategyParams translates the strategy section into constructor parameters.
func (c *Config) StrategyParams() (strategy.Params, error) {
	p := c.Strategy.Params
	window, err := strategy.ParseChannelWindow(p.Breakout.Window)
	if err != nil {
		return strategy.Params{}, fmt.Errorf("strategy.params.breakout.window: %w", err)
	}
	tfs, err := sig.ParseTimeframes(c.Strategy.Timeframes)
	if err != nil {
		return strategy.Params{}, fmt.Errorf("strategy.timeframes: %w", err)
	}
	return strategy.Params{
		Breakout: strategy.BreakoutParams{
			Channel:   p.Breakout.Channel,
			ATRWindow: p.Breakout.ATRWindow,
			K:         p.Breakout.K,
			Window:    window,
		},
		Timeframes:     tfs,
		TrendThreshold: p.TrendThreshold,
		TrendLookback:  p.TrendLookback,
		TrendMinVolume: p.TrendMinVolume,
	}, nil
}

// Sizer builds the configured sizing rule.
func (c *Config) Sizer() (risk.Sizer, error) {
	return risk.NewSizer(c.Sizing.Rule, c.Sizing.Fraction, c.Sizing.Stop)
}

// Limits builds the per-order caps.
func (c *Config) Limits() risk.Limits {
	return risk.Limits{
		MaxNotionalPerTrade: decimal.NewFromFloat(c.Risk.MaxNotionalPerTrade),
		MaxPosition:         decimal.NewFromFloat(c.Risk.MaxPosition),
	}
}

// BacktestConfig assembles the engine configuration. Recorders are attached by the caller.
func (c *Config) BacktestConfig() (backtest.Config, error) {
	sizer, err := c.Sizer()
	if err != nil {
		return backtest.Config{}, err
	}
	// A sizer that assumes a stop distance also enforces it.
	stops, _ := sizer.(risk.Stopper)
	return backtest.Config{
		InitialCapital: decimal.NewFromFloat(c.Backtest.InitialCapital),
		Sizer:          sizer,
		Stops:          stops,
		Limits:         c.Limits(),
		SharedCapital:  c.Backtest.SharedCapital,
		Pyramiding:     c.Backtest.Pyramiding,
		MaxDrawdown:    c.Risk.KillSwitchDrawdown,
	}, nil
}

// FeedOptions maps the data section onto feed options. A Postgres source is attached by the caller.
func (c *Config) FeedOptions() []exchange.Option {
	return []exchange.Option{
		exchange.WithDir(c.Data.Dir),
		exchange.WithStub(c.Data.StubLength, c.Data.StubSeed),
		exchange.WithKraken(c.Data.KrakenURL, nil),
	}
}
