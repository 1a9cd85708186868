package strategy

import (
	"fmt"
	"sort"

	"liquiditySim/internal/backtest"
)

const (
	FixedRangeName        = "fixed_range"
	PeriodicRebalanceName = "periodic_rebalance"
)

var constructors = map[string]func(Params) (backtest.Strategy, error){
	FixedRangeName: func(p Params) (backtest.Strategy, error) {
		return newFixedRange(p)
	},
	PeriodicRebalanceName: func(p Params) (backtest.Strategy, error) {
		return newPeriodicRebalance(p)
	},
}

// New builds the named strategy from its parameters.
func New(name string, params map[string]string) (backtest.Strategy, error) {
	build, ok := constructors[name]
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q (known: %v)", name, Names())
	}
	s, err := build(Params(params))
	if err != nil {
		return nil, fmt.Errorf("strategy %s: %w", name, err)
	}
	return s, nil
}

// Names lists the registered strategies.
func Names() []string {
	out := make([]string, 0, len(constructors))
	for name := range constructors {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
