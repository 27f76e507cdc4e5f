// Package exchange hosts the market data providers that hand bar series to the core.
package exchange

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/Devon-ODell/quant/internal/metrics"
	sig "github.com/Devon-ODell/quant/internal/signal"
)

const (
	// ProviderCSV reads <dir>/<instrument>_<timeframe>.csv files.
	ProviderCSV = "csv"
	// ProviderStub emits deterministic synthetic bars (useful for tests/offline work).
	ProviderStub = "stub"
	// ProviderPostgres reads bars through a BarSource backed by Postgres.
	ProviderPostgres = "postgres"
	// ProviderKraken polls the Kraken public OHLC endpoint.
	ProviderKraken = "kraken"
)

// ErrNotFound is returned when a provider has no bars for an instrument and timeframe.
var ErrNotFound = errors.New("series not found")

// BarSource loads a stored series; the Postgres repository implements it.
type BarSource interface {
	LoadSeries(ctx context.Context, instrument string, tf sig.Timeframe) (sig.Series, error)
}

// Feed represents a pluggable market data source.
type Feed struct {
	provider   string
	log        zerolog.Logger
	dir        string
	stubLength int
	stubSeed   int64
	stubEnd    time.Time
	source     BarSource
	krakenBase string
	client     *http.Client
	throttle   *rate.Limiter
}

// Option configures Feed construction parameters.
type Option func(*Feed)

const (
	defaultStubLength    = 500
	defaultKrakenBaseURL = "https://api.kraken.com"
	defaultKrakenPacing  = time.Second
)

// WithDir sets the directory the csv provider reads from.
func WithDir(dir string) Option {
	return func(f *Feed) {
		if dir != "" {
			f.dir = dir
		}
	}
}

// WithStub sets how many bars the stub provider emits and the seed of its random walk.
func WithStub(length int, seed int64) Option {
	return func(f *Feed) {
		if length > 0 {
			f.stubLength = length
		}
		f.stubSeed = seed
	}
}

// WithStubEnd pins the open time of the last stub bar.
func WithStubEnd(end time.Time) Option {
	return func(f *Feed) {
		if !end.IsZero() {
			f.stubEnd = end
		}
	}
}

// WithSource wires the backing store for the postgres provider.
func WithSource(src BarSource) Option {
	return func(f *Feed) { f.source = src }
}

// WithKraken overrides the Kraken base URL and the HTTP client used to reach it.
func WithKraken(baseURL string, client *http.Client) Option {
	return func(f *Feed) {
		if baseURL != "" {
			f.krakenBase = strings.TrimSuffix(baseURL, "/")
		}
		if client != nil {
			f.client = client
		}
	}
}

// WithThrottle replaces the limiter applied to outbound requests.
func WithThrottle(t *rate.Limiter) Option {
	return func(f *Feed) {
		if t != nil {
			f.throttle = t
		}
	}
}

// NewFeed constructs a feed backed by the requested provider.
func NewFeed(provider string, log zerolog.Logger, opts ...Option) *Feed {
	if provider == "" {
		provider = ProviderStub
	}
	f := &Feed{
		provider:   strings.ToLower(provider),
		log:        log,
		dir:        ".",
		stubLength: defaultStubLength,
		stubSeed:   1,
		stubEnd:    time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		krakenBase: defaultKrakenBaseURL,
		client:     &http.Client{Timeout: 10 * time.Second},
		throttle:   NewThrottle(defaultKrakenPacing),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Provider returns the configured provider name.
func (f *Feed) Provider() string { return f.provider }

// Series fetches the validated bar history of one instrument at one timeframe.
func (f *Feed) Series(ctx context.Context, instrument string, tf sig.Timeframe) (sig.Series, error) {
	if tf.Duration() <= 0 {
		return sig.Series{}, fmt.Errorf("feed %s: unknown timeframe %q", instrument, tf)
	}
	var (
		s   sig.Series
		err error
	)
	switch f.provider {
	case ProviderCSV:
		s, err = LoadCSVFile(filepath.Join(f.dir, CSVName(instrument, tf)), instrument, tf)
	case ProviderStub:
		s, err = StubSeries(instrument, tf, f.stubLength, f.stubSeed, f.stubEnd)
	case ProviderPostgres:
		if f.source == nil {
			return sig.Series{}, fmt.Errorf("feed %s: postgres provider has no source", instrument)
		}
		s, err = f.source.LoadSeries(ctx, instrument, tf)
	case ProviderKraken:
		s, err = f.fetchKraken(ctx, instrument, tf)
	default:
		return sig.Series{}, fmt.Errorf("unknown data provider %q", f.provider)
	}
	if err != nil {
		return sig.Series{}, err
	}
	if err := s.Validate(); err != nil {
		return sig.Series{}, err
	}
	metrics.BarsTotal.WithLabelValues(instrument, string(tf)).Add(float64(s.Len()))
	f.log.Debug().Str("provider", f.provider).Str("inst", instrument).Str("tf", string(tf)).Int("bars", s.Len()).Msg("series loaded")
	return s, nil
}

// Load fetches one series per instrument, deduplicated, at timeframe tf.
func (f *Feed) Load(ctx context.Context, instruments []string, tf sig.Timeframe) (map[string]sig.Series, error) {
	out := make(map[string]sig.Series, len(instruments))
	for _, inst := range normalizeInstruments(instruments) {
		s, err := f.Series(ctx, inst, tf)
		if err != nil {
			return nil, fmt.Errorf("load %s %s: %w", inst, tf, err)
		}
		out[inst] = s
	}
	return out, nil
}

func normalizeInstruments(instruments []string) []string {
	unique := make(map[string]struct{}, len(instruments))
	for _, inst := range instruments {
		inst = strings.TrimSpace(inst)
		if inst == "" {
			continue
		}
		unique[inst] = struct{}{}
	}
	out := make([]string, 0, len(unique))
	for inst := range unique {
		out = append(out, inst)
	}
	sort.Strings(out)
	return out
}
