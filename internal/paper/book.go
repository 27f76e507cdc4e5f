// Package paper keeps simulated positions, capital and the trade ledger for one run.
package paper

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	sig "github.com/Devon-ODell/quant/internal/signal"
)

var (
	// ErrInvalidQuantity is returned when a trade size is zero or negative.
	ErrInvalidQuantity = errors.New("quantity must be positive")
	// ErrInvalidPrice is returned when a trade price is zero or negative.
	ErrInvalidPrice = errors.New("price must be positive")
	// ErrInvalidDirection is returned when a trade is applied with a Flat direction.
	ErrInvalidDirection = errors.New("trade direction must be long or short")
)

// TradeRecorder captures applied trades for later inspection.
type TradeRecorder interface {
	Record(Trade)
}

// Trade is one immutable ledger entry. Long buys, Short sells.
type Trade struct {
	ID         uuid.UUID       `json:"id"`
	Instrument string          `json:"instrument"`
	Direction  sig.Direction   `json:"direction"`
	Quantity   decimal.Decimal `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	Time       time.Time       `json:"time"`
}

// Notional is quantity times price.
func (t Trade) Notional() decimal.Decimal { return t.Quantity.Mul(t.Price) }

// Signed returns the quantity with the trade's sign applied.
func (t Trade) Signed() decimal.Decimal {
	if t.Direction == sig.Short {
		return t.Quantity.Neg()
	}
	return t.Quantity
}

// Position is the signed holding in one instrument; positive is long, negative short.
type Position struct {
	Instrument string          `json:"instrument"`
	Quantity   decimal.Decimal `json:"quantity"`
	AvgPrice   decimal.Decimal `json:"avg_price"`
}

// Direction reports which side the position is on.
func (p Position) Direction() sig.Direction {
	switch p.Quantity.Sign() {
	case 1:
		return sig.Long
	case -1:
		return sig.Short
	default:
		return sig.Flat
	}
}

// IsFlat reports whether nothing is held.
func (p Position) IsFlat() bool { return p.Quantity.IsZero() }

// UnrealizedPnL marks the position at mark.
func (p Position) UnrealizedPnL(mark decimal.Decimal) decimal.Decimal {
	if p.IsFlat() {
		return decimal.Zero
	}
	return mark.Sub(p.AvgPrice).Mul(p.Quantity)
}

// fill applies t to p using average cost and returns the new position and the PnL it realized.
// Adding to a position re-weights the average, reducing keeps it, flipping restarts it at t.Price.
func fill(p Position, t Trade) (Position, decimal.Decimal) {
	delta := t.Signed()
	next := p.Quantity.Add(delta)
	out := Position{Instrument: t.Instrument, Quantity: next}

	if p.IsFlat() {
		out.AvgPrice = t.Price
		return out, decimal.Zero
	}
	if p.Quantity.Sign() == delta.Sign() {
		cost := p.AvgPrice.Mul(p.Quantity.Abs()).Add(t.Notional())
		out.AvgPrice = cost.Div(next.Abs())
		return out, decimal.Zero
	}

	closed := decimal.Min(t.Quantity, p.Quantity.Abs())
	realized := t.Price.Sub(p.AvgPrice).Mul(closed)
	if p.Quantity.IsNegative() {
		realized = realized.Neg()
	}
	switch {
	case next.IsZero():
		out.AvgPrice = decimal.Zero
	case next.Sign() == p.Quantity.Sign():
		out.AvgPrice = p.AvgPrice
	default:
		out.AvgPrice = t.Price
	}
	return out, realized
}

// PositionSnapshot is a read-only view of one position marked to market.
type PositionSnapshot struct {
	Position
	Mark        decimal.Decimal `json:"mark"`
	MarketValue decimal.Decimal `json:"market_value"`
	Unrealized  decimal.Decimal `json:"unrealized"`
}

// Snapshot is a copy of the book's state marked with the supplied prices.
type Snapshot struct {
	InitialCapital decimal.Decimal             `json:"initial_capital"`
	Capital        decimal.Decimal             `json:"capital"`
	RealizedPnL    decimal.Decimal             `json:"realized_pnl"`
	UnrealizedPnL  decimal.Decimal             `json:"unrealized_pnl"`
	Equity         decimal.Decimal             `json:"equity"`
	Positions      map[string]PositionSnapshot `json:"positions"`
	TradeCount     int                         `json:"trade_count"`
}

// Book owns capital, positions and the ledger for a single run. It is not safe for concurrent use;
// every run builds its own.
type Book struct {
	initial   decimal.Decimal
	capital   decimal.Decimal
	positions map[string]Position
	ledger    *Ledger
	recorders []TradeRecorder
}

// NewBook starts a book with the given capital. Recorders receive every applied trade.
func NewBook(initial decimal.Decimal, recorders ...TradeRecorder) *Book {
	return &Book{
		initial:   initial,
		capital:   initial,
		positions: make(map[string]Position),
		ledger:    NewLedger(0),
		recorders: recorders,
	}
}

// ApplyTrade validates and books a trade. On error the book is left untouched.
func (b *Book) ApplyTrade(instrument string, dir sig.Direction, qty, price decimal.Decimal, ts time.Time) (Trade, error) {
	if instrument == "" {
		return Trade{}, errors.New("trade instrument is empty")
	}
	if !qty.IsPositive() {
		return Trade{}, fmt.Errorf("%s qty %s: %w", instrument, qty, ErrInvalidQuantity)
	}
	if !price.IsPositive() {
		return Trade{}, fmt.Errorf("%s price %s: %w", instrument, price, ErrInvalidPrice)
	}
	if dir != sig.Long && dir != sig.Short {
		return Trade{}, fmt.Errorf("%s %s: %w", instrument, dir, ErrInvalidDirection)
	}

	trade := Trade{
		ID:         uuid.New(),
		Instrument: instrument,
		Direction:  dir,
		Quantity:   qty,
		Price:      price,
		Time:       ts,
	}
	pos, _ := fill(b.positions[instrument], trade)
	if pos.IsFlat() {
		delete(b.positions, instrument)
	} else {
		b.positions[instrument] = pos
	}
	if dir == sig.Long {
		b.capital = b.capital.Sub(trade.Notional())
	} else {
		b.capital = b.capital.Add(trade.Notional())
	}
	b.ledger.Record(trade)
	for _, r := range b.recorders {
		r.Record(trade)
	}
	return trade, nil
}

// PositionOf returns the current position; unseen instruments are flat.
func (b *Book) PositionOf(instrument string) Position {
	if pos, ok := b.positions[instrument]; ok {
		return pos
	}
	return Position{Instrument: instrument}
}

// Positions returns the open positions sorted by instrument.
func (b *Book) Positions() []Position {
	out := make([]Position, 0, len(b.positions))
	for _, pos := range b.positions {
		out = append(out, pos)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Instrument < out[j].Instrument })
	return out
}

// InitialCapital returns the capital the book started with.
func (b *Book) InitialCapital() decimal.Decimal { return b.initial }

// Capital returns available cash. It may be negative; no margin is modelled.
func (b *Book) Capital() decimal.Decimal { return b.capital }

// Ledger exposes the append-only trade log.
func (b *Book) Ledger() *Ledger { return b.ledger }

// Trades returns a copy of the ledger.
func (b *Book) Trades() []Trade { return b.ledger.Trades() }

// RealizedPnL replays the ledger with average-cost accounting.
func (b *Book) RealizedPnL() decimal.Decimal {
	return RealizedPnL(b.ledger.Trades())
}

// UnrealizedPnL marks one instrument's open position at mark.
func (b *Book) UnrealizedPnL(instrument string, mark decimal.Decimal) decimal.Decimal {
	return b.PositionOf(instrument).UnrealizedPnL(mark)
}

// Equity is capital plus every open position valued at its mark. Instruments without a mark are
// valued at their average price.
func (b *Book) Equity(marks map[string]decimal.Decimal) decimal.Decimal {
	equity := b.capital
	for inst, pos := range b.positions {
		equity = equity.Add(pos.Quantity.Mul(markFor(pos, marks[inst])))
	}
	return equity
}

// Snapshot returns a copy of balances marked with the supplied prices.
func (b *Book) Snapshot(marks map[string]decimal.Decimal) Snapshot {
	positions := make(map[string]PositionSnapshot, len(b.positions))
	unrealized := decimal.Zero
	for inst, pos := range b.positions {
		mark := markFor(pos, marks[inst])
		u := pos.UnrealizedPnL(mark)
		positions[inst] = PositionSnapshot{
			Position:    pos,
			Mark:        mark,
			MarketValue: pos.Quantity.Mul(mark),
			Unrealized:  u,
		}
		unrealized = unrealized.Add(u)
	}
	return Snapshot{
		InitialCapital: b.initial,
		Capital:        b.capital,
		RealizedPnL:    b.RealizedPnL(),
		UnrealizedPnL:  unrealized,
		Equity:         b.Equity(marks),
		Positions:      positions,
		TradeCount:     b.ledger.Len(),
	}
}

func markFor(pos Position, mark decimal.Decimal) decimal.Decimal {
	if mark.IsPositive() {
		return mark
	}
	return pos.AvgPrice
}

// RealizedPnL replays trades in order and sums the profit closed out along the way.
func RealizedPnL(trades []Trade) decimal.Decimal {
	positions := make(map[string]Position)
	total := decimal.Zero
	for _, t := range trades {
		pos, realized := fill(positions[t.Instrument], t)
		positions[t.Instrument] = pos
		total = total.Add(realized)
	}
	return total
}
