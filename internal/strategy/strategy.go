// Package strategy computes trading intents from a window of closed
// candles. Strategies are pure functions of their input window — no
// store access, no clock reads — so a cycle's intent is fully
// reproducible from the candles it was given.
package strategy

import "paperfx/internal/domain"

// Strategy produces a StrategyIntent from a candle window. Implementations
// must not mutate the window and must return a HOLD/insufficient_data
// intent rather than erroring when the window is too short.
type Strategy interface {
	// Name identifies the strategy in the catalog and in persisted run
	// reports.
	Name() string
	// MinimumCandles is the smallest window length the strategy can
	// evaluate without warmup gaps.
	MinimumCandles() int
	// ComputeIntent evaluates candles (oldest first, last element is the
	// reference candle) and returns the resulting intent.
	ComputeIntent(candles []domain.Candle) domain.StrategyIntent
}

// registry holds every strategy constructor known to the engine, keyed by
// name, for the control surface's catalog endpoint and for config-driven
// selection.
var registry = map[string]func(params map[string]float64) (Strategy, error){}

// Register adds a strategy constructor to the catalog. Called from each
// strategy implementation's init().
func Register(name string, ctor func(params map[string]float64) (Strategy, error)) {
	registry[name] = ctor
}

// New builds the named strategy with the given parameters.
func New(name string, params map[string]float64) (Strategy, error) {
	ctor, ok := registry[name]
	if !ok {
		return nil, &UnknownStrategyError{Name: name}
	}
	return ctor(params)
}

// Catalog lists every registered strategy name.
func Catalog() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}

// UnknownStrategyError is returned by New for an unregistered name.
type UnknownStrategyError struct {
	Name string
}

func (e *UnknownStrategyError) Error() string {
	return "strategy: unknown strategy " + e.Name
}
