// Package signal standardizes payloads shared between data ingestion, strategy, and execution layers.
package signal

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Bar models a single OHLC sample consumed by indicators and strategies.
type Bar struct {
	Time   time.Time       `json:"time"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume decimal.Decimal `json:"volume"`
}

// Validate rejects negative prices. High below Low is tolerated so degenerate data stays observable.
func (b Bar) Validate() error {
	fields := [...]struct {
		name string
		v    decimal.Decimal
	}{{"open", b.Open}, {"high", b.High}, {"low", b.Low}, {"close", b.Close}, {"volume", b.Volume}}
	for _, f := range fields {
		if f.v.IsNegative() {
			return fmt.Errorf("bar %s is negative: %s", f.name, f.v)
		}
	}
	return nil
}

// Direction expresses the trading bias decided for an instrument.
type Direction int

const (
	// Flat means no position change is requested.
	Flat Direction = iota
	// Long requests buying exposure.
	Long
	// Short requests selling exposure.
	Short
)

func (d Direction) String() string {
	switch d {
	case Long:
		return "LONG"
	case Short:
		return "SHORT"
	default:
		return "FLAT"
	}
}

// Opposite returns the reverse bias; Flat stays Flat.
func (d Direction) Opposite() Direction {
	switch d {
	case Long:
		return Short
	case Short:
		return Long
	default:
		return Flat
	}
}

// Sign is +1 for Long, -1 for Short and 0 for Flat.
func (d Direction) Sign() int64 {
	switch d {
	case Long:
		return 1
	case Short:
		return -1
	default:
		return 0
	}
}

// MarshalText renders the direction as LONG, SHORT or FLAT.
func (d Direction) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// UnmarshalText accepts the MarshalText forms plus buy/sell aliases.
func (d *Direction) UnmarshalText(text []byte) error {
	parsed, err := ParseDirection(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ParseDirection converts user or wire input into a Direction.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "long", "buy":
		return Long, nil
	case "short", "sell":
		return Short, nil
	case "flat", "", "none", "hold":
		return Flat, nil
	default:
		return Flat, fmt.Errorf("unknown direction %q", s)
	}
}

// BreakoutSignal reports whether the close escaped the volatility-widened channel at one evaluation point.
// Upper and Lower are not forced to be exclusive; degenerate bars can set both.
type BreakoutSignal struct {
	Upper      bool            `json:"upper"`
	Lower      bool            `json:"lower"`
	UpperLevel decimal.Decimal `json:"upper_level"`
	LowerLevel decimal.Decimal `json:"lower_level"`
	ATR        decimal.Decimal `json:"atr"`
	Close      decimal.Decimal `json:"close"`
}

// Mixed reports the degenerate case where both breakouts fired.
func (s BreakoutSignal) Mixed() bool { return s.Upper && s.Lower }

// Direction maps a clean upper breakout to Long, a clean lower breakout to Short, anything else to Flat.
func (s BreakoutSignal) Direction() Direction {
	switch {
	case s.Upper && !s.Lower:
		return Long
	case s.Lower && !s.Upper:
		return Short
	default:
		return Flat
	}
}
