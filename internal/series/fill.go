package series

import (
	"github.com/shopspring/decimal"

	"liquiditySim/internal/model"
)

// tick columns that take the close tick when they have no data of their own
var closeDerivedColumns = map[string]bool{
	model.ColumnOpenTick:    true,
	model.ColumnHighestTick: true,
	model.ColumnLowestTick:  true,
}

// Fillna fills missing values in two passes and returns a new frame.
//
// The close tick is filled first with its own rule, because the open, highest
// and lowest ticks of a bar without trades are set to that bar's close. Every
// other column uses its registered fill method/value, falling back to
// defaultMethod/defaultValue. Columns without a rule use the defaults only.
// A leading gap that forward filling cannot reach takes defaultValue.
func Fillna(f *Frame, rules ColumnRules, defaultValue decimal.NullDecimal, defaultMethod FillMethod) *Frame {
	out := f.Clone()

	closeTicks, hasClose := out.values[model.ColumnCloseTick]
	if hasClose {
		rule := rules.Lookup(model.ColumnCloseTick)
		method := rule.Fill
		if method == FillNone {
			method = defaultMethod
		}
		fillSeries(closeTicks, method, defaultValue)
	}

	for _, column := range out.columns {
		if column == model.ColumnCloseTick {
			continue
		}
		values := out.values[column]
		rule := rules.Lookup(column)
		if !rule.hasFill() {
			fillSeries(values, defaultMethod, defaultValue)
			continue
		}

		if hasClose && closeDerivedColumns[column] {
			fillFrom(values, closeTicks)
			continue
		}

		method := rule.Fill
		if method == FillNone {
			method = defaultMethod
		}
		value := rule.FillValue
		if !value.Valid {
			value = defaultValue
		}
		if rule.FillValue.Valid && rule.Fill == FillNone {
			// a registered value means "nothing happened", never interpolate
			method = FillNone
		}
		fillSeries(values, method, value)
	}

	return out
}

func fillSeries(values []decimal.NullDecimal, method FillMethod, value decimal.NullDecimal) {
	if method == FillForward {
		var last decimal.NullDecimal
		for i, v := range values {
			if v.Valid {
				last = v
				continue
			}
			if last.Valid {
				values[i] = last
			}
		}
	}
	if !value.Valid {
		return
	}
	for i, v := range values {
		if !v.Valid {
			values[i] = value
		}
	}
}

func fillFrom(values, source []decimal.NullDecimal) {
	for i, v := range values {
		if !v.Valid {
			values[i] = source[i]
		}
	}
}
