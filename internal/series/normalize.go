package series

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"liquiditySim/internal/model"
)

// Normalize resamples, fills and derives a raw frame, returning typed bars.
// It runs once before simulation starts.
func Normalize(raw *Frame, width time.Duration, rules ColumnRules, pool model.Pool, conv TickConverter) (*Frame, []model.Bar, error) {
	resampled, err := Resample(raw, width, rules, DefaultAgg)
	if err != nil {
		return nil, nil, fmt.Errorf("resample: %w", err)
	}
	filled := Fillna(resampled, rules, decimal.NullDecimal{}, FillForward)
	derived, err := Derive(filled, pool, conv)
	if err != nil {
		return nil, nil, fmt.Errorf("derive: %w", err)
	}
	bars, err := Bars(derived)
	if err != nil {
		return nil, nil, fmt.Errorf("bars: %w", err)
	}
	return derived, bars, nil
}
