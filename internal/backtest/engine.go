// Package backtest replays historical series through a strategy and reports return metrics.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Devon-ODell/quant/internal/metrics"
	"github.com/Devon-ODell/quant/internal/paper"
	"github.com/Devon-ODell/quant/internal/risk"
	sig "github.com/Devon-ODell/quant/internal/signal"
	"github.com/Devon-ODell/quant/internal/strategy"
)

var (
	// ErrEmptySeries is returned when an instrument has no index at which the strategy can be evaluated.
	ErrEmptySeries = errors.New("series has no evaluable bars")
	// ErrRunStarted is returned when Execute is called on a run that is not in the Initialized state.
	ErrRunStarted = errors.New("backtest run already started")
)

// State tracks a run through Initialized, Running and then Completed or Failed.
type State int

const (
	Initialized State = iota
	Running
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case Initialized:
		return "initialized"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Config tunes a run. Zero values pick the defaults from DefaultConfig.
type Config struct {
	InitialCapital decimal.Decimal
	Sizer          risk.Sizer
	Limits         risk.Limits
	// SharedCapital runs every instrument against one book, interleaving bars by time.
	SharedCapital bool
	// Pyramiding lets a repeated signal add to an open position instead of holding it.
	Pyramiding bool
	// Stops, when set, closes a position at its protective stop before the bar is evaluated.
	Stops risk.Stopper
	// MaxDrawdown stops new exposure once equity falls this fraction below its peak; 0 disables.
	MaxDrawdown float64
	// Recorders receive every trade of every book once the run has completed, e.g. a JSONL ledger.
	// A failed run delivers nothing.
	Recorders []paper.TradeRecorder
}

// DefaultConfig is 100000 of capital sized at 1% per entry.
func DefaultConfig() Config {
	return Config{
		InitialCapital: decimal.NewFromInt(100000),
		Sizer:          risk.NewFixedFraction(risk.DefaultFraction),
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.InitialCapital.IsZero() {
		c.InitialCapital = def.InitialCapital
	}
	if c.Sizer == nil {
		c.Sizer = def.Sizer
	}
	return c
}

// Run is a single backtest. It owns its books and is not safe for concurrent use; parameter sweeps
// build one Run per parameter set.
type Run struct {
	ID       uuid.UUID
	cfg      Config
	strategy strategy.Strategy
	series   map[string]sig.Series
	log      zerolog.Logger

	state  State
	result *Result
	err    error
}

// NewRun validates the inputs and returns a run in the Initialized state.
func NewRun(cfg Config, strat strategy.Strategy, series map[string]sig.Series, log zerolog.Logger) (*Run, error) {
	if strat == nil {
		return nil, errors.New("backtest: nil strategy")
	}
	if len(series) == 0 {
		return nil, fmt.Errorf("backtest: no instruments: %w", ErrEmptySeries)
	}
	cfg = cfg.withDefaults()
	if !cfg.InitialCapital.IsPositive() {
		return nil, fmt.Errorf("backtest: initial capital %s must be positive", cfg.InitialCapital)
	}
	owned := make(map[string]sig.Series, len(series))
	for inst, s := range series {
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("backtest %s: %w", inst, err)
		}
		if s.Instrument == "" {
			s.Instrument = inst
		}
		owned[inst] = s
	}
	id := uuid.New()
	return &Run{
		ID:       id,
		cfg:      cfg,
		strategy: strat,
		series:   owned,
		log:      log.With().Str("run", id.String()).Str("strategy", strat.Name()).Logger(),
		state:    Initialized,
	}, nil
}

// Replay builds a run and executes it.
func Replay(ctx context.Context, cfg Config, strat strategy.Strategy, series map[string]sig.Series, log zerolog.Logger) (*Result, error) {
	run, err := NewRun(cfg, strat, series, log)
	if err != nil {
		return nil, err
	}
	return run.Execute(ctx)
}

// State reports where the run is in its lifecycle.
func (r *Run) State() State { return r.state }

// Result returns the outcome of a completed run, or the error that failed it.
func (r *Run) Result() (*Result, error) {
	switch r.state {
	case Completed:
		return r.result, nil
	case Failed:
		return nil, r.err
	default:
		return nil, fmt.Errorf("backtest run is %s", r.state)
	}
}

// Execute replays every instrument. Any error aborts the whole run and no partial result is kept.
func (r *Run) Execute(ctx context.Context) (*Result, error) {
	if r.state != Initialized {
		return nil, ErrRunStarted
	}
	r.state = Running
	started := time.Now()
	r.log.Info().Int("instruments", len(r.series)).Bool("shared", r.cfg.SharedCapital).Msg("backtest started")

	result, err := r.execute(ctx)
	if err != nil {
		r.state = Failed
		r.err = err
		metrics.BacktestRunsTotal.WithLabelValues(Failed.String()).Inc()
		r.log.Error().Err(err).Msg("backtest failed")
		return nil, err
	}
	for _, trade := range result.Trades() {
		for _, rec := range r.cfg.Recorders {
			rec.Record(trade)
		}
	}
	result.Duration = time.Since(started)
	r.state = Completed
	r.result = result
	metrics.BacktestRunsTotal.WithLabelValues(Completed.String()).Inc()
	r.log.Info().Int("reports", len(result.Reports)).Dur("took", result.Duration).Msg("backtest completed")
	return result, nil
}

type event struct {
	inst  string
	index int
	at    time.Time
}

func (r *Run) instruments() []string {
	out := make([]string, 0, len(r.series))
	for inst := range r.series {
		out = append(out, inst)
	}
	sort.Strings(out)
	return out
}

// events lists the evaluable indices of inst, starting at the first index that fills the warmup.
func (r *Run) events(inst string) ([]event, error) {
	s := r.series[inst]
	start := r.strategy.Warmup() - 1
	if start < 0 {
		start = 0
	}
	if start >= s.Len() {
		return nil, fmt.Errorf("backtest %s: %d bars, warmup %d: %w", inst, s.Len(), r.strategy.Warmup(), ErrEmptySeries)
	}
	out := make([]event, 0, s.Len()-start)
	for i := start; i < s.Len(); i++ {
		out = append(out, event{inst: inst, index: i, at: s.Bars[i].Time})
	}
	return out, nil
}

func (r *Run) execute(ctx context.Context) (*Result, error) {
	result := &Result{RunID: r.ID, Strategy: r.strategy.Name(), Shared: r.cfg.SharedCapital}
	insts := r.instruments()

	if r.cfg.SharedCapital {
		var merged []event
		for _, inst := range insts {
			evs, err := r.events(inst)
			if err != nil {
				return nil, err
			}
			merged = append(merged, evs...)
		}
		sort.SliceStable(merged, func(i, j int) bool { return merged[i].at.Before(merged[j].at) })
		report, err := r.replay(ctx, insts, merged)
		if err != nil {
			return nil, err
		}
		result.Reports = append(result.Reports, report)
		return result, nil
	}

	for _, inst := range insts {
		evs, err := r.events(inst)
		if err != nil {
			return nil, err
		}
		report, err := r.replay(ctx, []string{inst}, evs)
		if err != nil {
			return nil, err
		}
		result.Reports = append(result.Reports, report)
	}
	return result, nil
}

// replay folds events into a fresh book.
func (r *Run) replay(ctx context.Context, insts []string, events []event) (Report, error) {
	book := paper.NewBook(r.cfg.InitialCapital)
	guard := risk.NewDrawdownGuard(r.cfg.MaxDrawdown, r.cfg.InitialCapital)
	marks := make(map[string]decimal.Decimal, len(insts))
	curve := make([]EquityPoint, 0, len(events))

	for _, ev := range events {
		if err := ctx.Err(); err != nil {
			return Report{}, fmt.Errorf("backtest interrupted at %s[%d]: %w", ev.inst, ev.index, err)
		}
		s := r.series[ev.inst]
		bar := s.Bars[ev.index]
		marks[ev.inst] = bar.Close
		if r.cfg.Stops != nil {
			if err := r.stopOut(book, ev.inst, bar); err != nil {
				return Report{}, err
			}
		}

		dir, err := r.strategy.Decide(s.Upto(ev.index))
		if err != nil {
			return Report{}, fmt.Errorf("backtest %s[%d] %s: %w", ev.inst, ev.index, bar.Time.Format(time.RFC3339), err)
		}
		metrics.SignalsTotal.WithLabelValues(ev.inst, dir.String()).Inc()
		if dir != sig.Flat {
			if err := r.act(book, guard, ev.inst, dir, bar); err != nil {
				return Report{}, err
			}
		}

		equity := book.Equity(marks)
		guard.Observe(equity)
		curve = append(curve, EquityPoint{Time: bar.Time, Equity: equity})
	}
	return buildReport(insts, book, marks, curve), nil
}

// act turns a non-flat decision into at most one trade. A repeated direction holds unless pyramiding
// is on; an opposing direction closes and reverses in the same trade. A tripped drawdown guard only
// allows the closing part.
func (r *Run) act(book *paper.Book, guard *risk.DrawdownGuard, inst string, dir sig.Direction, bar sig.Bar) error {
	pos := book.PositionOf(inst)
	held := pos.Direction()
	if held == dir && !r.cfg.Pyramiding {
		return nil
	}

	closing := decimal.Zero
	if held == dir.Opposite() {
		closing = pos.Quantity.Abs()
	}

	opening := decimal.Zero
	if !guard.Tripped() {
		sized, err := r.cfg.Sizer.Size(book.Capital(), bar.Close)
		switch {
		case errors.Is(err, risk.ErrNoCapital):
			r.log.Warn().Str("inst", inst).Str("capital", book.Capital().String()).Msg("no capital left, entry skipped")
		case err != nil:
			return fmt.Errorf("size %s at %s: %w", inst, bar.Time.Format(time.RFC3339), err)
		default:
			sameSide := decimal.Zero
			if held == dir {
				sameSide = pos.Quantity
			}
			opening = r.cfg.Limits.Cap(sized, bar.Close, sameSide)
		}
	}

	qty := closing.Add(opening)
	if qty.IsZero() {
		return nil
	}
	trade, err := book.ApplyTrade(inst, dir, qty, bar.Close, bar.Time)
	if err != nil {
		return err
	}
	metrics.TradesTotal.WithLabelValues(inst, dir.String()).Inc()
	r.log.Debug().
		Str("inst", inst).
		Str("dir", dir.String()).
		Str("qty", trade.Quantity.String()).
		Str("px", trade.Price.String()).
		Time("at", trade.Time).
		Msg("trade")
	return nil
}

// stopOut closes the whole position of inst when bar reaches the stop placed for its average entry.
func (r *Run) stopOut(book *paper.Book, inst string, bar sig.Bar) error {
	pos := book.PositionOf(inst)
	if pos.IsFlat() {
		return nil
	}
	long := pos.Direction() == sig.Long
	stop := r.cfg.Stops.StopPrice(pos.AvgPrice, long)
	fill, hit := risk.StopHit(stop, bar.Open, bar.Low, bar.High, long)
	if !hit {
		return nil
	}
	exit := pos.Direction().Opposite()
	trade, err := book.ApplyTrade(inst, exit, pos.Quantity.Abs(), fill, bar.Time)
	if err != nil {
		return fmt.Errorf("stop %s at %s: %w", inst, bar.Time.Format(time.RFC3339), err)
	}
	metrics.TradesTotal.WithLabelValues(inst, exit.String()).Inc()
	r.log.Debug().
		Str("inst", inst).
		Str("stop", stop.String()).
		Str("qty", trade.Quantity.String()).
		Str("px", trade.Price.String()).
		Time("at", trade.Time).
		Msg("stop exit")
	return nil
}
