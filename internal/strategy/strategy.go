// Package strategy turns bar history into directional decisions.
package strategy

import (
	sig "github.com/Devon-ODell/quant/internal/signal"
)

// Strategy is the plug-in contract shared by the backtester and live trading. Decide only ever sees
// bars up to the evaluation point and must treat them as read-only.
type Strategy interface {
	Name() string
	// Warmup is the minimum number of bars Decide needs.
	Warmup() int
	Decide(view sig.Series) (sig.Direction, error)
}

// Func adapts a plain function to the Strategy interface.
type Func struct {
	name   string
	warmup int
	fn     func(sig.Series) (sig.Direction, error)
}

// NewFunc wraps fn under the given name; warmup below one is raised to one.
func NewFunc(name string, warmup int, fn func(sig.Series) (sig.Direction, error)) *Func {
	if warmup < 1 {
		warmup = 1
	}
	return &Func{name: name, warmup: warmup, fn: fn}
}

// Name returns the configured identifier for logging.
func (f *Func) Name() string { return f.name }

// Warmup returns the minimum bar count.
func (f *Func) Warmup() int { return f.warmup }

// Decide delegates to the wrapped function.
func (f *Func) Decide(view sig.Series) (sig.Direction, error) { return f.fn(view) }
