package series

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"liquiditySim/internal/model"
)

// Frame is a columnar table of nullable decimals indexed by timestamp.
type Frame struct {
	Timestamps []time.Time
	columns    []string
	values     map[string][]decimal.NullDecimal
}

// NewFrame returns an empty frame with the given columns.
func NewFrame(columns ...string) *Frame {
	f := &Frame{values: make(map[string][]decimal.NullDecimal, len(columns))}
	for _, c := range columns {
		f.ensureColumn(c)
	}
	return f
}

// FromRecords builds a frame holding every recognized column plus any extra
// column found on the records.
func FromRecords(records []model.RawBarRecord) *Frame {
	f := NewFrame(model.RawColumns...)
	for _, r := range records {
		row := make(map[string]decimal.NullDecimal, len(model.RawColumns)+len(r.Extra))
		for _, c := range model.RawColumns {
			v, _ := r.Value(c)
			row[c] = v
		}
		for c, v := range r.Extra {
			row[c] = v
		}
		f.AppendRow(r.Timestamp, row)
	}
	return f
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	return len(f.Timestamps)
}

// Columns returns the column names in insertion order.
func (f *Frame) Columns() []string {
	out := make([]string, len(f.columns))
	copy(out, f.columns)
	return out
}

// Has reports whether the frame has column.
func (f *Frame) Has(column string) bool {
	_, ok := f.values[column]
	return ok
}

// Column returns the values of column; nil when absent. The slice is shared.
func (f *Frame) Column(column string) []decimal.NullDecimal {
	return f.values[column]
}

// SetColumn adds or replaces a column.
func (f *Frame) SetColumn(column string, values []decimal.NullDecimal) error {
	if len(values) != f.Len() {
		return fmt.Errorf("column %s has %d values, frame has %d rows", column, len(values), f.Len())
	}
	f.ensureColumn(column)
	f.values[column] = values
	return nil
}

// AppendRow adds a row. Columns absent from values are missing; unseen columns
// are added and back-filled as missing.
func (f *Frame) AppendRow(ts time.Time, values map[string]decimal.NullDecimal) {
	var added []string
	for c := range values {
		if !f.Has(c) {
			added = append(added, c)
		}
	}
	sort.Strings(added)
	for _, c := range added {
		f.ensureColumn(c)
	}
	f.Timestamps = append(f.Timestamps, ts)
	for _, c := range f.columns {
		f.values[c] = append(f.values[c], values[c])
	}
}

// Clone deep-copies the frame.
func (f *Frame) Clone() *Frame {
	out := &Frame{
		Timestamps: append([]time.Time(nil), f.Timestamps...),
		columns:    f.Columns(),
		values:     make(map[string][]decimal.NullDecimal, len(f.values)),
	}
	for c, v := range f.values {
		out.values[c] = append([]decimal.NullDecimal(nil), v...)
	}
	return out
}

// Missing counts missing values in column.
func (f *Frame) Missing(column string) int {
	n := 0
	for _, v := range f.values[column] {
		if !v.Valid {
			n++
		}
	}
	return n
}

func (f *Frame) ensureColumn(column string) {
	if f.values == nil {
		f.values = make(map[string][]decimal.NullDecimal)
	}
	if _, ok := f.values[column]; ok {
		return
	}
	f.columns = append(f.columns, column)
	f.values[column] = make([]decimal.NullDecimal, len(f.Timestamps))
}
