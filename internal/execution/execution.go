// Package execution is the boundary where confirmed directions become orders.
package execution

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Devon-ODell/quant/internal/metrics"
	sig "github.com/Devon-ODell/quant/internal/signal"
)

// Side enumerates order directions used by the executor.
type Side string

const (
	// Buy indicates a long order.
	Buy Side = "BUY"
	// Sell indicates a short order.
	Sell Side = "SELL"
)

// SideFor maps a confirmed direction to an order side; Flat has none.
func SideFor(dir sig.Direction) (Side, error) {
	switch dir {
	case sig.Long:
		return Buy, nil
	case sig.Short:
		return Sell, nil
	default:
		return "", fmt.Errorf("no order side for %s", dir)
	}
}

// Order is what the core hands to a venue: a side, a size and the price it was sized at.
// Venue-specific payloads are built by the Sink.
type Order struct {
	Instrument   string          `json:"instrument"`
	Side         Side            `json:"side"`
	Qty          decimal.Decimal `json:"qty"`
	Price        decimal.Decimal `json:"price"`
	SizeFraction float64         `json:"size_fraction"`
	Time         time.Time       `json:"time"`
}

// Sink places orders with a venue.
type Sink interface {
	Submit(ctx context.Context, order Order) error
}

// Executor implements a logger-backed Sink.
type Executor struct{ log zerolog.Logger }

// NewExecutor wraps a zerolog logger for order submissions.
func NewExecutor(log zerolog.Logger) *Executor { return &Executor{log: log} }

// Submit logs the order request and counts it.
func (executor *Executor) Submit(ctx context.Context, order Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !order.Qty.IsPositive() {
		return fmt.Errorf("order %s: quantity %s must be positive", order.Instrument, order.Qty)
	}
	metrics.OrdersTotal.WithLabelValues(order.Instrument, string(order.Side)).Inc()
	executor.log.Info().
		Str("inst", order.Instrument).
		Str("side", string(order.Side)).
		Str("qty", order.Qty.String()).
		Str("px", order.Price.String()).
		Float64("fraction", order.SizeFraction).
		Msg("submit order (paper)")
	return nil
}
