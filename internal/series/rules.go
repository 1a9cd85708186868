package series

import (
	"github.com/shopspring/decimal"

	"liquiditySim/internal/model"
)

// Agg is a per-column aggregation applied when resampling.
type Agg string

const (
	AggSum   Agg = "sum"
	AggFirst Agg = "first"
	AggLast  Agg = "last"
	AggMin   Agg = "min"
	AggMax   Agg = "max"
)

// DefaultAgg applies to columns without a rule.
const DefaultAgg = AggFirst

func (a Agg) valid() bool {
	switch a {
	case AggSum, AggFirst, AggLast, AggMin, AggMax:
		return true
	}
	return false
}

// FillMethod is a gap filling strategy.
type FillMethod string

const (
	FillNone    FillMethod = ""
	FillForward FillMethod = "ffill"
)

// Rule says how one column is aggregated and how its gaps are filled.
// An empty Agg defers to the caller's default aggregation; an empty Fill with
// an invalid FillValue defers to the caller's default fill parameters.
type Rule struct {
	Agg       Agg
	Fill      FillMethod
	FillValue decimal.NullDecimal
}

func (r Rule) hasFill() bool {
	return r.Fill != FillNone || r.FillValue.Valid
}

// ColumnRules maps column names to rules. A schema is just a ColumnRules value,
// so several can coexist.
type ColumnRules map[string]Rule

// Lookup returns the rule for column, or an empty rule.
func (c ColumnRules) Lookup(column string) Rule {
	if c == nil {
		return Rule{}
	}
	return c[column]
}

// Clone returns a copy that can be modified independently.
func (c ColumnRules) Clone() ColumnRules {
	out := make(ColumnRules, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

var zeroFill = decimal.NewNullDecimal(decimal.Zero)

// UniswapV3Rules is the schema of per-minute pool data: flows are summed and
// filled with zero, ticks keep OHLC semantics and are forward filled.
func UniswapV3Rules() ColumnRules {
	return ColumnRules{
		model.ColumnNetAmount0:       {Agg: AggSum, FillValue: zeroFill},
		model.ColumnNetAmount1:       {Agg: AggSum, FillValue: zeroFill},
		model.ColumnCloseTick:        {Agg: AggLast, Fill: FillForward},
		model.ColumnOpenTick:         {Agg: AggFirst, Fill: FillForward},
		model.ColumnLowestTick:       {Agg: AggMin, Fill: FillForward},
		model.ColumnHighestTick:      {Agg: AggMax, Fill: FillForward},
		model.ColumnInAmount0:        {Agg: AggSum, FillValue: zeroFill},
		model.ColumnInAmount1:        {Agg: AggSum, FillValue: zeroFill},
		model.ColumnCurrentLiquidity: {Agg: AggSum, Fill: FillForward},
	}
}

// SwapEventRules is the schema for one-row-per-swap input, where
// currentLiquidity is a pool level rather than a flow and must not be summed.
func SwapEventRules() ColumnRules {
	rules := UniswapV3Rules()
	rules[model.ColumnCurrentLiquidity] = Rule{Agg: AggLast, Fill: FillForward}
	return rules
}
