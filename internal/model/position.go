package model

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// PriceRange identifies a position by its tick bounds. It is comparable and
// is used directly as a map key.
type PriceRange struct {
	LowerTick int `json:"lower_tick"`
	UpperTick int `json:"upper_tick"`
}

// Compare orders ranges by lower tick, then upper tick.
func (r PriceRange) Compare(other PriceRange) int {
	switch {
	case r.LowerTick < other.LowerTick:
		return -1
	case r.LowerTick > other.LowerTick:
		return 1
	case r.UpperTick < other.UpperTick:
		return -1
	case r.UpperTick > other.UpperTick:
		return 1
	default:
		return 0
	}
}

// Contains reports whether tick lies inside [LowerTick, UpperTick].
func (r PriceRange) Contains(tick int) bool {
	return r.LowerTick <= tick && tick <= r.UpperTick
}

func (r PriceRange) String() string {
	return fmt.Sprintf("(%d,%d)", r.LowerTick, r.UpperTick)
}

// Position is liquidity deposited in a single price range.
type Position struct {
	Range          PriceRange      `json:"range"`
	PendingAmount0 decimal.Decimal `json:"pending_amount0"`
	PendingAmount1 decimal.Decimal `json:"pending_amount1"`
	Liquidity      *big.Int        `json:"liquidity"`
}

// Empty reports whether the position holds no liquidity and no pending tokens.
func (p Position) Empty() bool {
	return (p.Liquidity == nil || p.Liquidity.Sign() == 0) &&
		p.PendingAmount0.IsZero() && p.PendingAmount1.IsZero()
}

// Clone returns a copy that shares no mutable state.
func (p Position) Clone() Position {
	out := p
	if p.Liquidity != nil {
		out.Liquidity = new(big.Int).Set(p.Liquidity)
	}
	return out
}
