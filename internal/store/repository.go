// Package store persists bar series and trade ledgers in Postgres.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/Devon-ODell/quant/internal/exchange"
	"github.com/Devon-ODell/quant/internal/paper"
	sig "github.com/Devon-ODell/quant/internal/signal"
)

// Schema creates the tables the repository reads and writes.
const Schema = `
CREATE TABLE IF NOT EXISTS bars (
	instrument TEXT        NOT NULL,
	timeframe  TEXT        NOT NULL,
	ts         TIMESTAMPTZ NOT NULL,
	open       NUMERIC     NOT NULL,
	high       NUMERIC     NOT NULL,
	low        NUMERIC     NOT NULL,
	close      NUMERIC     NOT NULL,
	volume     NUMERIC     NOT NULL DEFAULT 0,
	PRIMARY KEY (instrument, timeframe, ts)
);
CREATE TABLE IF NOT EXISTS trades (
	trade_id   UUID        PRIMARY KEY,
	run_id     UUID        NOT NULL,
	seq        INTEGER     NOT NULL,
	instrument TEXT        NOT NULL,
	direction  TEXT        NOT NULL,
	quantity   NUMERIC     NOT NULL,
	price      NUMERIC     NOT NULL,
	traded_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS trades_run_idx ON trades (run_id, seq);`

// Repository is a pgx-backed store for bars and ledgers.
type Repository struct {
	pool *pgxpool.Pool
}

var _ exchange.BarSource = (*Repository)(nil)

// NewRepository connects a pool to dsn.
func NewRepository(ctx context.Context, dsn string) (*Repository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pgx config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	return &Repository{pool: pool}, nil
}

// Close releases the pool.
func (r *Repository) Close() {
	if r == nil || r.pool == nil {
		return
	}
	r.pool.Close()
}

// EnsureSchema applies Schema.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, Schema)
	return err
}

// Bars

const selectBarsQuery = `
	SELECT ts, open::text, high::text, low::text, close::text, volume::text
	FROM bars
	WHERE instrument=$1 AND timeframe=$2
	ORDER BY ts ASC`

// LoadSeries reads every stored bar of instrument at tf in time order.
func (r *Repository) LoadSeries(ctx context.Context, instrument string, tf sig.Timeframe) (sig.Series, error) {
	rows, err := r.pool.Query(ctx, selectBarsQuery, instrument, string(tf))
	if err != nil {
		return sig.Series{}, err
	}
	defer rows.Close()

	var bars []sig.Bar
	for rows.Next() {
		var (
			ts            time.Time
			o, h, l, c, v string
		)
		if err := rows.Scan(&ts, &o, &h, &l, &c, &v); err != nil {
			return sig.Series{}, err
		}
		bar, err := barFromText(ts, o, h, l, c, v)
		if err != nil {
			return sig.Series{}, fmt.Errorf("%s %s at %s: %w", instrument, tf, ts.Format(time.RFC3339), err)
		}
		bars = append(bars, bar)
	}
	if err := rows.Err(); err != nil {
		return sig.Series{}, err
	}
	if len(bars) == 0 {
		return sig.Series{}, fmt.Errorf("%s %s: %w", instrument, tf, exchange.ErrNotFound)
	}
	return sig.NewSeries(instrument, tf, bars)
}

const upsertBarQuery = `
	INSERT INTO bars (instrument, timeframe, ts, open, high, low, close, volume)
	VALUES ($1,$2,$3,$4::numeric,$5::numeric,$6::numeric,$7::numeric,$8::numeric)
	ON CONFLICT (instrument, timeframe, ts) DO UPDATE
	SET open=EXCLUDED.open, high=EXCLUDED.high, low=EXCLUDED.low, close=EXCLUDED.close, volume=EXCLUDED.volume`

// SaveSeries upserts every bar of s.
func (r *Repository) SaveSeries(ctx context.Context, s sig.Series) error {
	batch := &pgx.Batch{}
	for _, b := range s.Bars {
		batch.Queue(upsertBarQuery, s.Instrument, string(s.Timeframe), b.Time,
			b.Open.String(), b.High.String(), b.Low.String(), b.Close.String(), b.Volume.String())
	}
	return r.execBatch(ctx, batch)
}

// Trades

const insertTradeQuery = `
	INSERT INTO trades (trade_id, run_id, seq, instrument, direction, quantity, price, traded_at)
	VALUES ($1,$2,$3,$4,$5,$6::numeric,$7::numeric,$8)
	ON CONFLICT (trade_id) DO NOTHING`

// SaveTrades stores a run's ledger, keeping its order in seq.
func (r *Repository) SaveTrades(ctx context.Context, runID uuid.UUID, trades []paper.Trade) error {
	batch := &pgx.Batch{}
	for i, t := range trades {
		id := t.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		batch.Queue(insertTradeQuery, id, runID, i, t.Instrument, t.Direction.String(),
			t.Quantity.String(), t.Price.String(), t.Time)
	}
	return r.execBatch(ctx, batch)
}

const selectTradesQuery = `
	SELECT trade_id, instrument, direction, quantity::text, price::text, traded_at
	FROM trades
	WHERE run_id=$1
	ORDER BY seq ASC`

// LoadTrades reads a run's ledger back in its original order.
func (r *Repository) LoadTrades(ctx context.Context, runID uuid.UUID) ([]paper.Trade, error) {
	rows, err := r.pool.Query(ctx, selectTradesQuery, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []paper.Trade
	for rows.Next() {
		var (
			t       paper.Trade
			dir     string
			qty, px string
		)
		if err := rows.Scan(&t.ID, &t.Instrument, &dir, &qty, &px, &t.Time); err != nil {
			return nil, err
		}
		if t.Direction, err = sig.ParseDirection(dir); err != nil {
			return nil, err
		}
		if t.Quantity, err = decimal.NewFromString(qty); err != nil {
			return nil, err
		}
		if t.Price, err = decimal.NewFromString(px); err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

func (r *Repository) execBatch(ctx context.Context, batch *pgx.Batch) error {
	if batch.Len() == 0 {
		return nil
	}
	results := r.pool.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return err
		}
	}
	return results.Close()
}

func barFromText(ts time.Time, fields ...string) (sig.Bar, error) {
	values := make([]decimal.Decimal, len(fields))
	for i, f := range fields {
		v, err := decimal.NewFromString(f)
		if err != nil {
			return sig.Bar{}, fmt.Errorf("column %d %q: %w", i+1, f, err)
		}
		values[i] = v
	}
	if len(values) != 5 {
		return sig.Bar{}, fmt.Errorf("want 5 price columns, got %d", len(values))
	}
	return sig.Bar{Time: ts.UTC(), Open: values[0], High: values[1], Low: values[2], Close: values[3], Volume: values[4]}, nil
}
