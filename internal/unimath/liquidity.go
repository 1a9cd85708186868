package unimath

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"liquiditySim/internal/model"
)

// Calculator implements V3 LiquidityAmounts math for a pool. Amounts cross the
// boundary in human scale and are truncated to minor units internally, so the
// returned actual amounts never exceed the requested ones.
type Calculator struct {
	Pool model.Pool
}

// NewCalculator returns a Calculator for pool.
func NewCalculator(pool model.Pool) Calculator {
	return Calculator{Pool: pool}
}

// LiquidityForAmounts returns the largest liquidity that the desired amounts
// can fund at the current tick, and the token amounts that liquidity consumes.
func (c Calculator) LiquidityForAmounts(r model.PriceRange, amount0, amount1 decimal.Decimal, currentTick int) (*big.Int, decimal.Decimal, decimal.Decimal, error) {
	if amount0.IsNegative() || amount1.IsNegative() {
		return nil, decimal.Zero, decimal.Zero, fmt.Errorf("amounts must be non-negative: %s, %s", amount0, amount1)
	}
	sqrtP, sqrtA, sqrtB := c.sqrtPrices(r, currentTick)
	a0 := c.Pool.Token0.ToMinor(amount0)
	a1 := c.Pool.Token1.ToMinor(amount1)

	liquidity := liquidityForAmounts(sqrtP, sqrtA, sqrtB, a0, a1)
	used0, used1 := amountsForLiquidity(sqrtP, sqrtA, sqrtB, liquidity)
	return liquidity, c.Pool.Token0.FromMinor(used0), c.Pool.Token1.FromMinor(used1), nil
}

// AmountsForLiquidity returns the token amounts released by burning liquidity
// at the current tick.
func (c Calculator) AmountsForLiquidity(r model.PriceRange, liquidity *big.Int, currentTick int) (decimal.Decimal, decimal.Decimal, error) {
	if liquidity == nil || liquidity.Sign() < 0 {
		return decimal.Zero, decimal.Zero, fmt.Errorf("liquidity must be non-negative")
	}
	sqrtP, sqrtA, sqrtB := c.sqrtPrices(r, currentTick)
	a0, a1 := amountsForLiquidity(sqrtP, sqrtA, sqrtB, liquidity)
	return c.Pool.Token0.FromMinor(a0), c.Pool.Token1.FromMinor(a1), nil
}

func (c Calculator) sqrtPrices(r model.PriceRange, currentTick int) (*big.Int, *big.Int, *big.Int) {
	return SqrtPriceX96AtTick(currentTick), SqrtPriceX96AtTick(r.LowerTick), SqrtPriceX96AtTick(r.UpperTick)
}

func liquidityForAmount0(sqrtA, sqrtB, amount0 *big.Int) *big.Int {
	if sqrtA.Cmp(sqrtB) > 0 {
		sqrtA, sqrtB = sqrtB, sqrtA
	}
	diff := new(big.Int).Sub(sqrtB, sqrtA)
	if diff.Sign() == 0 {
		return big.NewInt(0)
	}
	intermediate := new(big.Int).Mul(sqrtA, sqrtB)
	intermediate.Div(intermediate, q96)
	out := new(big.Int).Mul(amount0, intermediate)
	return out.Div(out, diff)
}

func liquidityForAmount1(sqrtA, sqrtB, amount1 *big.Int) *big.Int {
	if sqrtA.Cmp(sqrtB) > 0 {
		sqrtA, sqrtB = sqrtB, sqrtA
	}
	diff := new(big.Int).Sub(sqrtB, sqrtA)
	if diff.Sign() == 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(amount1, q96)
	return out.Div(out, diff)
}

func liquidityForAmounts(sqrtP, sqrtA, sqrtB, amount0, amount1 *big.Int) *big.Int {
	if sqrtA.Cmp(sqrtB) > 0 {
		sqrtA, sqrtB = sqrtB, sqrtA
	}
	switch {
	case sqrtP.Cmp(sqrtA) <= 0:
		return liquidityForAmount0(sqrtA, sqrtB, amount0)
	case sqrtP.Cmp(sqrtB) < 0:
		l0 := liquidityForAmount0(sqrtP, sqrtB, amount0)
		l1 := liquidityForAmount1(sqrtA, sqrtP, amount1)
		if l0.Cmp(l1) < 0 {
			return l0
		}
		return l1
	default:
		return liquidityForAmount1(sqrtA, sqrtB, amount1)
	}
}

func amount0ForLiquidity(sqrtA, sqrtB, liquidity *big.Int) *big.Int {
	if sqrtA.Cmp(sqrtB) > 0 {
		sqrtA, sqrtB = sqrtB, sqrtA
	}
	if sqrtA.Sign() == 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Lsh(liquidity, 96)
	out.Mul(out, new(big.Int).Sub(sqrtB, sqrtA))
	out.Div(out, sqrtB)
	return out.Div(out, sqrtA)
}

func amount1ForLiquidity(sqrtA, sqrtB, liquidity *big.Int) *big.Int {
	if sqrtA.Cmp(sqrtB) > 0 {
		sqrtA, sqrtB = sqrtB, sqrtA
	}
	out := new(big.Int).Mul(liquidity, new(big.Int).Sub(sqrtB, sqrtA))
	return out.Div(out, q96)
}

func amountsForLiquidity(sqrtP, sqrtA, sqrtB, liquidity *big.Int) (*big.Int, *big.Int) {
	if sqrtA.Cmp(sqrtB) > 0 {
		sqrtA, sqrtB = sqrtB, sqrtA
	}
	switch {
	case sqrtP.Cmp(sqrtA) <= 0:
		return amount0ForLiquidity(sqrtA, sqrtB, liquidity), big.NewInt(0)
	case sqrtP.Cmp(sqrtB) < 0:
		return amount0ForLiquidity(sqrtP, sqrtB, liquidity), amount1ForLiquidity(sqrtA, sqrtP, liquidity)
	default:
		return big.NewInt(0), amount1ForLiquidity(sqrtA, sqrtB, liquidity)
	}
}
