package series

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"liquiditySim/internal/model"
)

// Resample groups rows into bars of the given width. Bars are aligned to the
// UTC midnight of the first row and labelled by their start; every bar between
// the first and last row is emitted, empty ones with all values missing.
//
// Each column is aggregated by its rule in rules, or by defaultAgg when the
// column has no rule. Missing values are skipped, and a bar with no valid value
// for a column leaves that cell missing for Fillna to decide.
func Resample(f *Frame, width time.Duration, rules ColumnRules, defaultAgg Agg) (*Frame, error) {
	if f == nil {
		return nil, formatErrorf(model.ColumnTimestamp, "frame is nil")
	}
	if width <= 0 {
		return nil, fmt.Errorf("bar width must be positive, got %s", width)
	}
	if defaultAgg == "" {
		defaultAgg = DefaultAgg
	}
	if !defaultAgg.valid() {
		return nil, fmt.Errorf("unknown default aggregation %q", defaultAgg)
	}
	if err := checkTimestamps(f.Timestamps); err != nil {
		return nil, err
	}

	out := NewFrame(f.columns...)
	if f.Len() == 0 {
		return out, nil
	}

	origin := dayStart(f.Timestamps[0])
	first := binIndex(f.Timestamps[0], origin, width)
	last := binIndex(f.Timestamps[f.Len()-1], origin, width)
	bins := int(last-first) + 1

	out.Timestamps = make([]time.Time, bins)
	for i := range out.Timestamps {
		out.Timestamps[i] = origin.Add(time.Duration(first+int64(i)) * width)
	}

	for _, column := range f.columns {
		agg := rules.Lookup(column).Agg
		if agg == "" {
			agg = defaultAgg
		}
		if !agg.valid() {
			return nil, fmt.Errorf("column %s: unknown aggregation %q", column, agg)
		}

		src := f.values[column]
		dst := make([]decimal.NullDecimal, bins)
		for row, v := range src {
			if !v.Valid {
				continue
			}
			bin := int(binIndex(f.Timestamps[row], origin, width) - first)
			dst[bin] = accumulate(agg, dst[bin], v.Decimal)
		}
		out.values[column] = dst
	}

	return out, nil
}

func accumulate(agg Agg, acc decimal.NullDecimal, v decimal.Decimal) decimal.NullDecimal {
	if !acc.Valid {
		return decimal.NewNullDecimal(v)
	}
	switch agg {
	case AggSum:
		acc.Decimal = acc.Decimal.Add(v)
	case AggLast:
		acc.Decimal = v
	case AggMin:
		if v.LessThan(acc.Decimal) {
			acc.Decimal = v
		}
	case AggMax:
		if v.GreaterThan(acc.Decimal) {
			acc.Decimal = v
		}
	}
	return acc
}

func checkTimestamps(ts []time.Time) error {
	for i, t := range ts {
		if t.IsZero() {
			return formatErrorf(model.ColumnTimestamp, "missing at row %d", i)
		}
		if i > 0 && t.Before(ts[i-1]) {
			return formatErrorf(model.ColumnTimestamp, "not ordered at row %d: %s before %s",
				i, t.UTC().Format(time.RFC3339), ts[i-1].UTC().Format(time.RFC3339))
		}
	}
	return nil
}

func dayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func binIndex(t, origin time.Time, width time.Duration) int64 {
	return int64(t.Sub(origin) / width)
}
