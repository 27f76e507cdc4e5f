package backtest

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Devon-ODell/quant/internal/paper"
	"github.com/Devon-ODell/quant/internal/risk"
)

// EquityPoint is book equity after one evaluated bar.
type EquityPoint struct {
	Time   time.Time       `json:"time"`
	Equity decimal.Decimal `json:"equity"`
}

// Report summarises one book. In isolated runs there is one report per instrument; a shared-capital
// run has a single report covering every instrument.
type Report struct {
	Instruments    []string          `json:"instruments"`
	InitialCapital decimal.Decimal   `json:"initial_capital"`
	FinalCapital   decimal.Decimal   `json:"final_capital"`
	FinalEquity    decimal.Decimal   `json:"final_equity"`
	TotalReturn    float64           `json:"total_return"`
	TradeCount     int               `json:"trade_count"`
	RoundTrips     []paper.RoundTrip `json:"round_trips"`
	WinRate        float64           `json:"win_rate"`
	RealizedPnL    decimal.Decimal   `json:"realized_pnl"`
	UnrealizedPnL  decimal.Decimal   `json:"unrealized_pnl"`
	MaxDrawdown    float64           `json:"max_drawdown"`
	Positions      []paper.Position  `json:"positions"`
	Trades         []paper.Trade     `json:"trades"`
	EquityCurve    []EquityPoint     `json:"equity_curve"`
}

// Result is the outcome of a completed run.
type Result struct {
	RunID    uuid.UUID     `json:"run_id"`
	Strategy string        `json:"strategy"`
	Shared   bool          `json:"shared_capital"`
	Reports  []Report      `json:"reports"`
	Duration time.Duration `json:"duration"`
}

// Trades returns every report's ledger in report order.
func (r *Result) Trades() []paper.Trade {
	var out []paper.Trade
	for _, rep := range r.Reports {
		out = append(out, rep.Trades...)
	}
	return out
}

// Report returns the report that covers inst.
func (r *Result) Report(inst string) (Report, bool) {
	for _, rep := range r.Reports {
		for _, name := range rep.Instruments {
			if name == inst {
				return rep, true
			}
		}
	}
	return Report{}, false
}

func buildReport(insts []string, book *paper.Book, marks map[string]decimal.Decimal, curve []EquityPoint) Report {
	trades := book.Trades()
	trips := paper.RoundTrips(trades)
	snap := book.Snapshot(marks)
	initial := book.InitialCapital()

	return Report{
		Instruments:    append([]string(nil), insts...),
		InitialCapital: initial,
		FinalCapital:   snap.Capital,
		FinalEquity:    snap.Equity,
		TotalReturn:    snap.Equity.Div(initial).Sub(decimal.NewFromInt(1)).InexactFloat64(),
		TradeCount:     len(trades),
		RoundTrips:     trips,
		WinRate:        paper.WinRate(trips),
		RealizedPnL:    snap.RealizedPnL,
		UnrealizedPnL:  snap.UnrealizedPnL,
		MaxDrawdown:    maxDrawdown(initial, curve),
		Positions:      book.Positions(),
		Trades:         trades,
		EquityCurve:    curve,
	}
}

func maxDrawdown(initial decimal.Decimal, curve []EquityPoint) float64 {
	peak := initial
	worst := decimal.Zero
	for _, p := range curve {
		if p.Equity.GreaterThan(peak) {
			peak = p.Equity
		}
		if dd := risk.Drawdown(peak, p.Equity); dd.GreaterThan(worst) {
			worst = dd
		}
	}
	return worst.InexactFloat64()
}
