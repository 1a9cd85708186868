package strategy

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"

	"liquiditySim/internal/source"
)

// Params are the string key/values a strategy is configured with.
type Params map[string]string

func (p Params) decimal(key string, fallback decimal.Decimal) (decimal.Decimal, error) {
	raw, ok := p[key]
	if !ok || raw == "" {
		return fallback, nil
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("param %s: %w", key, err)
	}
	return v, nil
}

func (p Params) requiredDecimal(key string) (decimal.Decimal, error) {
	if raw, ok := p[key]; !ok || raw == "" {
		return decimal.Zero, fmt.Errorf("param %s is required", key)
	}
	return p.decimal(key, decimal.Zero)
}

func (p Params) duration(key string, fallback time.Duration) (time.Duration, error) {
	raw, ok := p[key]
	if !ok || raw == "" {
		return fallback, nil
	}
	v, err := cast.ToDurationE(raw)
	if err != nil {
		return 0, fmt.Errorf("param %s: %w", key, err)
	}
	return v, nil
}

func (p Params) bool(key string, fallback bool) (bool, error) {
	raw, ok := p[key]
	if !ok || raw == "" {
		return fallback, nil
	}
	v, err := cast.ToBoolE(raw)
	if err != nil {
		return false, fmt.Errorf("param %s: %w", key, err)
	}
	return v, nil
}

func (p Params) time(key string) (time.Time, error) {
	raw, ok := p[key]
	if !ok || raw == "" {
		return time.Time{}, nil
	}
	v, err := source.ParseTime(raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("param %s: %w", key, err)
	}
	return v, nil
}
