// Package config exposes strongly typed application configuration structs loaded from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// App captures process-wide runtime settings such as name, environment, metrics, and logging levels.
type App struct {
	Name        string `yaml:"name"`
	Env         string `yaml:"env"`
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
}

// Data selects where bar series come from.
type Data struct {
	Provider      string   `yaml:"provider"` // csv|stub|postgres|kraken
	Dir           string   `yaml:"dir"`
	BaseTimeframe string   `yaml:"base_timeframe"`
	Instruments   []string `yaml:"instruments"`
	PostgresDSN   string   `yaml:"postgres_dsn"`
	KrakenURL     string   `yaml:"kraken_url"`
	StubLength    int      `yaml:"stub_length"`
	StubSeed      int64    `yaml:"stub_seed"`
}

// Breakout tunes the volatility breakout detector.
type Breakout struct {
	Channel   int     `yaml:"channel"`
	ATRWindow int     `yaml:"atr_window"`
	K         float64 `yaml:"k"`
	Window    string  `yaml:"window"` // preceding|inclusive
}

// StrategyParams groups tunable knobs for a strategy implementation.
type StrategyParams struct {
	Breakout       Breakout `yaml:"breakout"`
	TrendThreshold float64  `yaml:"trend_threshold"`
	TrendLookback  int      `yaml:"trend_lookback"`
	TrendMinVolume float64  `yaml:"trend_min_volume"`
}

// Strategy specifies which strategy is active along with the parameter bundle.
type Strategy struct {
	Mode       string         `yaml:"mode"`
	Timeframes []string       `yaml:"timeframes"`
	Params     StrategyParams `yaml:"params"`
}

// Sizing picks the rule that turns capital into order quantity.
type Sizing struct {
	Rule     string  `yaml:"rule"` // fixed_fraction|risk_based
	Fraction float64 `yaml:"fraction"`
	Stop     float64 `yaml:"stop"`
}

// Risk encodes guard-rails for how much size a run may take on.
type Risk struct {
	MaxNotionalPerTrade float64 `yaml:"max_notional_per_trade"`
	MaxPosition         float64 `yaml:"max_position"`
	KillSwitchDrawdown  float64 `yaml:"kill_switch_drawdown"`
}

// Backtest configures historical replays.
type Backtest struct {
	InitialCapital float64 `yaml:"initial_capital"`
	SharedCapital  bool    `yaml:"shared_capital"`
	Pyramiding     bool    `yaml:"pyramiding"`
	LedgerPath     string  `yaml:"ledger_path"`
	Persist        bool    `yaml:"persist"`
}

// Paper captures live paper-trading settings.
type Paper struct {
	StartingCash   float64 `yaml:"starting_cash"`
	PollIntervalMs int     `yaml:"poll_interval_ms"`
	FillsPath      string  `yaml:"fills_path"`
}

// Config collects every configuration leaf for easy marshaling from YAML.
type Config struct {
	App      App      `yaml:"app"`
	Data     Data     `yaml:"data"`
	Strategy Strategy `yaml:"strategy"`
	Sizing   Sizing   `yaml:"sizing"`
	Risk     Risk     `yaml:"risk"`
	Backtest Backtest `yaml:"backtest"`
	Paper    Paper    `yaml:"paper"`
}

// Default returns the configuration used when a key is absent from the file.
func Default() *Config {
	return &Config{
		App: App{Name: "quant", Env: "dev", MetricsAddr: ":9102", LogLevel: "info", LogFormat: "json"},
		Data: Data{
			Provider:      "csv",
			Dir:           "data",
			BaseTimeframe: "1h",
			Instruments:   []string{"XBTUSD"},
			StubLength:    24 * 90,
			StubSeed:      1,
		},
		Strategy: Strategy{
			Mode:       "confirm",
			Timeframes: []string{"1h", "4h", "1d"},
			Params: StrategyParams{
				Breakout:       Breakout{Channel: 10, ATRWindow: 14, K: 0.5, Window: "preceding"},
				TrendThreshold: 0.05,
				TrendLookback:  20,
			},
		},
		Sizing:   Sizing{Rule: "fixed_fraction", Fraction: 0.01, Stop: 0.02},
		Backtest: Backtest{InitialCapital: 100000, LedgerPath: "var/ledger.jsonl"},
		Paper:    Paper{StartingCash: 10000, PollIntervalMs: 60000, FillsPath: "var/paper_trades.jsonl"},
	}
}

// Load reads a YAML file from disk on top of Default.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	config := Default()
	if err := yaml.NewDecoder(file).Decode(config); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return config, nil
}

// Save persists a Config struct to disk as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Validate reports every setting that cannot be used as given.
func (c *Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.Data.Provider) {
	case "csv", "stub", "kraken":
	case "postgres":
		if c.Data.PostgresDSN == "" {
			errs = append(errs, errors.New("data.postgres_dsn is required for the postgres provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("data.provider %q is not one of csv, stub, postgres, kraken", c.Data.Provider))
	}
	if c.Backtest.Persist && c.Data.PostgresDSN == "" {
		errs = append(errs, errors.New("data.postgres_dsn is required when backtest.persist is set"))
	}
	if len(c.Data.Instruments) == 0 {
		errs = append(errs, errors.New("data.instruments is empty"))
	}
	if c.Backtest.InitialCapital <= 0 {
		errs = append(errs, fmt.Errorf("backtest.initial_capital %.2f must be positive", c.Backtest.InitialCapital))
	}
	if c.Sizing.Fraction <= 0 || c.Sizing.Fraction > 1 {
		errs = append(errs, fmt.Errorf("sizing.fraction %.4f must be in (0, 1]", c.Sizing.Fraction))
	}
	if c.Strategy.Params.Breakout.K < 0 {
		errs = append(errs, fmt.Errorf("strategy.params.breakout.k %.2f must not be negative", c.Strategy.Params.Breakout.K))
	}
	if c.Risk.KillSwitchDrawdown < 0 || c.Risk.KillSwitchDrawdown >= 1 {
		errs = append(errs, fmt.Errorf("risk.kill_switch_drawdown %.2f must be in [0, 1)", c.Risk.KillSwitchDrawdown))
	}
	if _, err := c.StrategyParams(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.BaseTimeframe(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
