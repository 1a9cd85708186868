package model

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

var (
	tickSpacingPerFeePercent = decimal.NewFromInt(200)
	hundred                  = decimal.NewFromInt(100)
	feeUnitsPerPercent       = decimal.NewFromInt(10_000)
)

// Pool is the immutable configuration of a concentrated-liquidity pool.
//
// FeeTier is expressed in percent (0.05, 0.3, 1). BaseToken selects the token
// all human-facing prices and valuations are denominated in.
type Pool struct {
	Address     common.Address  `json:"address"`
	Token0      TokenUnit       `json:"token0"`
	Token1      TokenUnit       `json:"token1"`
	BaseToken   TokenUnit       `json:"base_token"`
	FeeTier     decimal.Decimal `json:"fee_tier"`
	TickSpacing int             `json:"tick_spacing"`
}

// NewPool validates the pair and derives the tick spacing from the fee tier.
func NewPool(token0, token1 TokenUnit, feeTier decimal.Decimal, baseToken TokenUnit) (Pool, error) {
	if token0 == token1 {
		return Pool{}, fmt.Errorf("token0 and token1 must differ")
	}
	if baseToken != token0 && baseToken != token1 {
		return Pool{}, fmt.Errorf("base token %s is not in pool", baseToken.Name)
	}
	if !feeTier.IsPositive() {
		return Pool{}, fmt.Errorf("fee tier must be positive, got %s", feeTier)
	}
	spacing := feeTier.Mul(tickSpacingPerFeePercent).Floor().IntPart()
	if spacing < 1 {
		return Pool{}, fmt.Errorf("fee tier %s yields zero tick spacing", feeTier)
	}
	return Pool{
		Token0:      token0,
		Token1:      token1,
		BaseToken:   baseToken,
		FeeTier:     feeTier,
		TickSpacing: int(spacing),
	}, nil
}

// WithAddress returns a copy of the pool bound to an on-chain address.
func (p Pool) WithAddress(address common.Address) Pool {
	p.Address = address
	return p
}

// IsToken0Base reports whether token0 is the pricing denominator.
func (p Pool) IsToken0Base() bool {
	return p.BaseToken == p.Token0
}

// QuoteToken returns the token that is not the base token.
func (p Pool) QuoteToken() TokenUnit {
	if p.IsToken0Base() {
		return p.Token1
	}
	return p.Token0
}

// FeeRate is the swap fee as a fraction, e.g. 0.0005 for the 0.05% tier.
func (p Pool) FeeRate() decimal.Decimal {
	return p.FeeTier.Div(hundred)
}

// Fee is the fee in the pool contract's hundredths of a basis point (500, 3000, 10000).
func (p Pool) Fee() uint32 {
	return uint32(p.FeeTier.Mul(feeUnitsPerPercent).IntPart())
}

// BaseQuote reorders a token0/token1 pair into base/quote order.
func (p Pool) BaseQuote(amount0, amount1 decimal.Decimal) (base, quote decimal.Decimal) {
	if p.IsToken0Base() {
		return amount0, amount1
	}
	return amount1, amount0
}

// Token01 reorders a base/quote pair into token0/token1 order.
func (p Pool) Token01(base, quote decimal.Decimal) (amount0, amount1 decimal.Decimal) {
	if p.IsToken0Base() {
		return base, quote
	}
	return quote, base
}

func (p Pool) String() string {
	return fmt.Sprintf("Pool(token0: %s, token1: %s, fee: %s%%, base token: %s)",
		p.Token0.Name, p.Token1.Name, p.FeeTier, p.BaseToken.Name)
}
