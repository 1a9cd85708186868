package unimath

import (
	"fmt"
	"math"
	"math/big"

	"github.com/shopspring/decimal"

	"liquiditySim/internal/model"
)

const tickBase = 1.0001

// Tick bounds of a V3 pool.
const (
	MinTick = -887272
	MaxTick = 887272
)

var (
	q96      = new(big.Int).Lsh(big.NewInt(1), 96)
	q96Float = new(big.Float).SetInt(q96)
)

// RawPriceAtTick returns token1/token0 in minor units, 1.0001^tick.
func RawPriceAtTick(tick int) float64 {
	return math.Pow(tickBase, float64(tick))
}

// SqrtPriceX96AtTick returns sqrt(1.0001^tick) as a Q64.96 fixed point integer.
func SqrtPriceX96AtTick(tick int) *big.Int {
	sqrt := math.Pow(tickBase, float64(tick)/2)
	f := new(big.Float).SetPrec(256).SetFloat64(sqrt)
	f.Mul(f, q96Float)
	out, _ := f.Int(nil)
	return out
}

// TickToPrice converts a tick into a human-scale price expressed as base
// token per quote token.
func TickToPrice(tick int, pool model.Pool) decimal.Decimal {
	raw := decimal.NewFromFloat(RawPriceAtTick(tick))
	// token1 per token0 after decimal adjustment
	price1in0 := raw.Shift(pool.Token0.Decimals - pool.Token1.Decimals)
	if pool.IsToken0Base() {
		if price1in0.IsZero() {
			return decimal.Zero
		}
		return decimal.NewFromInt(1).Div(price1in0)
	}
	return price1in0
}

// PriceToTick converts a base-per-quote price into the tick at or below it.
func PriceToTick(price decimal.Decimal, pool model.Pool) (int, error) {
	if !price.IsPositive() {
		return 0, fmt.Errorf("price must be positive, got %s", price)
	}
	price1in0 := price
	if pool.IsToken0Base() {
		price1in0 = decimal.NewFromInt(1).Div(price)
	}
	raw := price1in0.Shift(pool.Token1.Decimals - pool.Token0.Decimals).InexactFloat64()
	if raw <= 0 || math.IsInf(raw, 0) {
		return 0, fmt.Errorf("price %s out of range", price)
	}
	tick := int(math.Floor(math.Log(raw) / math.Log(tickBase)))
	return clampTick(tick), nil
}

// AlignTick rounds tick to the nearest multiple of spacing.
func AlignTick(tick, spacing int) int {
	if spacing <= 1 {
		return tick
	}
	aligned := int(math.Round(float64(tick)/float64(spacing))) * spacing
	return clampTick(aligned)
}

func clampTick(tick int) int {
	if tick < MinTick {
		return MinTick
	}
	if tick > MaxTick {
		return MaxTick
	}
	return tick
}

// PriceConverter converts ticks into base-per-quote prices for a pool.
type PriceConverter struct {
	Pool model.Pool
}

// TickToPrice implements the tick conversion used by the normalizer.
func (c PriceConverter) TickToPrice(tick int) decimal.Decimal {
	return TickToPrice(tick, c.Pool)
}

// PriceToTick implements the inverse conversion.
func (c PriceConverter) PriceToTick(price decimal.Decimal) (int, error) {
	return PriceToTick(price, c.Pool)
}
