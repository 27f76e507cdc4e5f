package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// ApplyEnv loads the given .env files (missing files are skipped) and then overlays QUANT_*
// variables on c. Variables already set in the process environment win over the files.
func (c *Config) ApplyEnv(files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", f, err)
		}
	}

	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	str("QUANT_LOG_LEVEL", &c.App.LogLevel)
	str("QUANT_LOG_FORMAT", &c.App.LogFormat)
	str("QUANT_METRICS_ADDR", &c.App.MetricsAddr)
	str("QUANT_DATA_PROVIDER", &c.Data.Provider)
	str("QUANT_DATA_DIR", &c.Data.Dir)
	str("QUANT_POSTGRES_DSN", &c.Data.PostgresDSN)
	str("QUANT_STRATEGY_MODE", &c.Strategy.Mode)
	if v := os.Getenv("QUANT_INSTRUMENTS"); v != "" {
		c.Data.Instruments = splitList(v)
	}
	if v := os.Getenv("QUANT_TIMEFRAMES"); v != "" {
		c.Strategy.Timeframes = splitList(v)
	}
	if v := os.Getenv("QUANT_INITIAL_CAPITAL"); v != "" {
		capital, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("QUANT_INITIAL_CAPITAL: %w", err)
		}
		c.Backtest.InitialCapital = capital
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
