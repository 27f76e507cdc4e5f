// Package metrics exposes Prometheus counters for the signal, backtest and execution paths.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	BarsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "quant_bars_total", Help: "Bars loaded from market data providers"},
		[]string{"instrument", "timeframe"},
	)
	SignalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "quant_signals_total", Help: "Strategy decisions by direction"},
		[]string{"instrument", "direction"},
	)
	TradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "quant_trades_total", Help: "Trades applied to paper books"},
		[]string{"instrument", "direction"},
	)
	OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "quant_orders_total", Help: "Orders submitted to the execution sink"},
		[]string{"instrument", "side"},
	)
	TimeframeUnavailableTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "quant_timeframe_unavailable_total", Help: "Confirmation passes downgraded by a missing timeframe"},
		[]string{"timeframe"},
	)
	BacktestRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "quant_backtest_runs_total", Help: "Backtest runs by final state"},
		[]string{"state"},
	)
)

func init() {
	prometheus.MustRegister(BarsTotal, SignalsTotal, TradesTotal, OrdersTotal, TimeframeUnavailableTotal, BacktestRunsTotal)
}

// Serve exposes /metrics on addr in the background.
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
