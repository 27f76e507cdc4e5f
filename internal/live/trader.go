// Package live runs confirmation passes against freshly fetched bars and routes confirmed
// directions to an execution sink.
package live

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Devon-ODell/quant/internal/execution"
	"github.com/Devon-ODell/quant/internal/metrics"
	"github.com/Devon-ODell/quant/internal/paper"
	"github.com/Devon-ODell/quant/internal/risk"
	sig "github.com/Devon-ODell/quant/internal/signal"
	"github.com/Devon-ODell/quant/internal/strategy"
)

// SeriesSource fetches the latest bars of an instrument at one timeframe.
type SeriesSource interface {
	Series(ctx context.Context, instrument string, tf sig.Timeframe) (sig.Series, error)
}

// Decision is the outcome of one Evaluate call.
type Decision struct {
	Instrument   string                `json:"instrument"`
	Direction    sig.Direction         `json:"direction"`
	Confirmation strategy.Confirmation `json:"confirmation"`
	Order        *execution.Order      `json:"order,omitempty"`
	Trade        *paper.Trade          `json:"trade,omitempty"`
	Skipped      string                `json:"skipped,omitempty"`
}

// Config wires a Trader.
type Config struct {
	Source    SeriesSource
	Confirmer *strategy.Confirmer
	Sizer     risk.Sizer
	Limits    risk.Limits
	Sink      execution.Sink
	Book      *paper.Book
	Store     *sig.Store
	Now       func() time.Time
}

// Trader evaluates instruments one at a time; it owns its book and is not safe for concurrent use.
type Trader struct {
	cfg Config
	log zerolog.Logger
}

// NewTrader validates cfg and fills defaults for the confirmer, sizer and clock.
func NewTrader(cfg Config, log zerolog.Logger) (*Trader, error) {
	if cfg.Source == nil {
		return nil, errors.New("live: nil series source")
	}
	if cfg.Sink == nil {
		return nil, errors.New("live: nil execution sink")
	}
	if cfg.Book == nil {
		return nil, errors.New("live: nil book")
	}
	if cfg.Confirmer == nil {
		cfg.Confirmer = strategy.NewConfirmer(nil)
	}
	if cfg.Sizer == nil {
		cfg.Sizer = risk.NewFixedFraction(risk.DefaultFraction)
	}
	if cfg.Store == nil {
		cfg.Store = sig.NewStore()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Trader{cfg: cfg, log: log}, nil
}

// Book exposes the trader's positions and ledger.
func (t *Trader) Book() *paper.Book { return t.cfg.Book }

// Marks returns the latest close per instrument from the finest timeframe fetched so far.
func (t *Trader) Marks() map[string]decimal.Decimal {
	marks := make(map[string]decimal.Decimal)
	for _, inst := range t.cfg.Store.Instruments() {
		tfs := t.cfg.Store.Timeframes(inst)
		if len(tfs) == 0 {
			continue
		}
		s, _ := t.cfg.Store.Get(inst, tfs[0])
		if last, ok := s.Last(); ok {
			marks[inst] = last.Close
		}
	}
	return marks
}

// Evaluate fetches every configured timeframe, confirms, and on a new direction submits an order
// and books the resulting trade. A timeframe that cannot be fetched counts as unavailable.
func (t *Trader) Evaluate(ctx context.Context, instrument string) (Decision, error) {
	decision := Decision{Instrument: instrument, Direction: sig.Flat}
	tfs := t.cfg.Confirmer.Timeframes()

	frames := make(map[sig.Timeframe]sig.Series, len(tfs))
	fetchErrs := make(map[sig.Timeframe]error)
	var (
		finest    sig.Series
		finestDur time.Duration
	)
	for _, tf := range tfs {
		s, err := t.cfg.Source.Series(ctx, instrument, tf)
		if err != nil {
			if ctx.Err() != nil {
				return decision, ctx.Err()
			}
			fetchErrs[tf] = err
			continue
		}
		frames[tf] = s
		if err := t.remember(s); err != nil {
			t.log.Warn().Err(err).Str("inst", instrument).Str("tf", string(tf)).Msg("store series")
		}
		if d := tf.Duration(); finestDur == 0 || d < finestDur {
			finest, finestDur = s, d
		}
	}

	conf, err := t.cfg.Confirmer.Confirm(frames)
	if err != nil {
		return decision, fmt.Errorf("confirm %s: %w", instrument, err)
	}
	for tf, ferr := range fetchErrs {
		conf.Unavailable[tf] = fmt.Errorf("%s: %w: %w", tf, strategy.ErrTimeframeUnavailable, ferr)
	}
	for tf, reason := range conf.Unavailable {
		metrics.TimeframeUnavailableTotal.WithLabelValues(string(tf)).Inc()
		t.log.Warn().Str("inst", instrument).Str("tf", string(tf)).Err(reason).Msg("timeframe unavailable")
	}
	decision.Confirmation = conf
	decision.Direction = conf.Direction
	metrics.SignalsTotal.WithLabelValues(instrument, conf.Direction.String()).Inc()

	if conf.Direction == sig.Flat {
		decision.Skipped = "flat"
		return decision, nil
	}
	last, ok := finest.Last()
	if !ok {
		decision.Skipped = "no price"
		return decision, nil
	}
	return t.act(ctx, decision, last.Close)
}

// remember appends the bars of s newer than what the store already holds, so history outlives the
// provider's window.
func (t *Trader) remember(s sig.Series) error {
	held, ok := t.cfg.Store.Get(s.Instrument, s.Timeframe)
	last, hasLast := held.Last()
	if !ok || !hasLast {
		return t.cfg.Store.Put(s)
	}
	from := 0
	for from < s.Len() && !s.Bars[from].Time.After(last.Time) {
		from++
	}
	if from == s.Len() {
		return nil
	}
	return t.cfg.Store.Append(s.Instrument, s.Timeframe, s.Bars[from:]...)
}

func (t *Trader) act(ctx context.Context, decision Decision, price decimal.Decimal) (Decision, error) {
	book := t.cfg.Book
	inst, dir := decision.Instrument, decision.Direction
	pos := book.PositionOf(inst)
	if pos.Direction() == dir {
		decision.Skipped = "already positioned"
		return decision, nil
	}
	closing := decimal.Zero
	if pos.Direction() == dir.Opposite() {
		closing = pos.Quantity.Abs()
	}

	opening := decimal.Zero
	sized, err := t.cfg.Sizer.Size(book.Capital(), price)
	switch {
	case errors.Is(err, risk.ErrNoCapital):
		t.log.Warn().Str("inst", inst).Str("capital", book.Capital().String()).Msg("no capital left, entry skipped")
	case err != nil:
		return decision, fmt.Errorf("size %s: %w", inst, err)
	default:
		opening = t.cfg.Limits.Cap(sized, price, decimal.Zero)
	}
	qty := closing.Add(opening)
	if qty.IsZero() {
		decision.Skipped = "zero size"
		return decision, nil
	}

	side, err := execution.SideFor(dir)
	if err != nil {
		return decision, err
	}
	order := execution.Order{
		Instrument:   inst,
		Side:         side,
		Qty:          qty,
		Price:        price,
		SizeFraction: risk.Fraction(book.Capital(), opening, price),
		Time:         t.cfg.Now().UTC(),
	}
	if err := t.cfg.Sink.Submit(ctx, order); err != nil {
		return decision, fmt.Errorf("submit %s: %w", inst, err)
	}
	decision.Order = &order

	trade, err := book.ApplyTrade(inst, dir, qty, price, order.Time)
	if err != nil {
		return decision, err
	}
	metrics.TradesTotal.WithLabelValues(inst, dir.String()).Inc()
	decision.Trade = &trade
	t.log.Info().Str("inst", inst).Str("dir", dir.String()).Str("qty", qty.String()).Str("px", price.String()).Msg("confirmed trade")
	return decision, nil
}
