package paper

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	sig "github.com/Devon-ODell/quant/internal/signal"
)

// Ledger stores trades in memory in the order they were applied. Entries are never changed or
// removed.
type Ledger struct {
	mu     sync.Mutex
	trades []Trade
}

// NewLedger creates an empty ledger optionally pre-sizing storage.
func NewLedger(capacity int) *Ledger {
	if capacity < 0 {
		capacity = 0
	}
	return &Ledger{trades: make([]Trade, 0, capacity)}
}

// Record appends a trade to the ledger.
func (l *Ledger) Record(trade Trade) {
	l.mu.Lock()
	l.trades = append(l.trades, trade)
	l.mu.Unlock()
}

// Trades returns a copy of the recorded trades.
func (l *Ledger) Trades() []Trade {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Trade, len(l.trades))
	copy(out, l.trades)
	return out
}

// Len returns the number of recorded trades.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.trades)
}

// TotalNotional sums quantity times price over trades.
func TotalNotional(trades []Trade) decimal.Decimal {
	total := decimal.Zero
	for _, t := range trades {
		total = total.Add(t.Notional())
	}
	return total
}

// RoundTrip is an opening leg matched with the opposing trade that closed it.
type RoundTrip struct {
	Instrument string          `json:"instrument"`
	Direction  sig.Direction   `json:"direction"`
	Quantity   decimal.Decimal `json:"quantity"`
	EntryPrice decimal.Decimal `json:"entry_price"`
	ExitPrice  decimal.Decimal `json:"exit_price"`
	EntryTime  time.Time       `json:"entry_time"`
	ExitTime   time.Time       `json:"exit_time"`
	PnL        decimal.Decimal `json:"pnl"`
}

// Win reports whether the round trip closed with a profit.
func (r RoundTrip) Win() bool { return r.PnL.IsPositive() }

type openLeg struct {
	dir   sig.Direction
	qty   decimal.Decimal
	price decimal.Decimal
	at    time.Time
}

// RoundTrips pairs each opening trade with the next opposing trade on the same instrument, oldest
// leg first. A closing trade larger than the open legs opens a new leg with the remainder; legs
// still open at the end are not reported.
func RoundTrips(trades []Trade) []RoundTrip {
	pending := make(map[string][]openLeg)
	var out []RoundTrip
	for _, t := range trades {
		legs := pending[t.Instrument]
		if len(legs) == 0 || legs[0].dir == t.Direction {
			pending[t.Instrument] = append(legs, openLeg{dir: t.Direction, qty: t.Quantity, price: t.Price, at: t.Time})
			continue
		}
		remaining := t.Quantity
		for len(legs) > 0 && remaining.IsPositive() {
			leg := &legs[0]
			matched := decimal.Min(leg.qty, remaining)
			pnl := t.Price.Sub(leg.price).Mul(matched)
			if leg.dir == sig.Short {
				pnl = pnl.Neg()
			}
			out = append(out, RoundTrip{
				Instrument: t.Instrument,
				Direction:  leg.dir,
				Quantity:   matched,
				EntryPrice: leg.price,
				ExitPrice:  t.Price,
				EntryTime:  leg.at,
				ExitTime:   t.Time,
				PnL:        pnl,
			})
			leg.qty = leg.qty.Sub(matched)
			remaining = remaining.Sub(matched)
			if leg.qty.IsZero() {
				legs = legs[1:]
			}
		}
		if remaining.IsPositive() {
			legs = append(legs, openLeg{dir: t.Direction, qty: remaining, price: t.Price, at: t.Time})
		}
		pending[t.Instrument] = legs
	}
	return out
}

// WinRate is the fraction of round trips with positive PnL, zero when there are none.
func WinRate(trips []RoundTrip) float64 {
	if len(trips) == 0 {
		return 0
	}
	wins := 0
	for _, rt := range trips {
		if rt.Win() {
			wins++
		}
	}
	return float64(wins) / float64(len(trips))
}
