package model

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// TokenUnit describes a token by display name and decimal scale.
type TokenUnit struct {
	Name     string `json:"name"`
	Decimals int32  `json:"decimals"`
}

func (t TokenUnit) String() string {
	return t.Name
}

// ToMinor converts a human-scale amount into integer minor units, truncating
// anything below the token's precision.
func (t TokenUnit) ToMinor(amount decimal.Decimal) *big.Int {
	return amount.Shift(t.Decimals).Truncate(0).BigInt()
}

// FromMinor converts integer minor units into a human-scale amount.
func (t TokenUnit) FromMinor(value *big.Int) decimal.Decimal {
	if value == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(value, -t.Decimals)
}

// Amount is a decimal tagged with the name of the token it is denominated in.
type Amount struct {
	Value decimal.Decimal `json:"value"`
	Unit  string          `json:"unit"`
}

// NewAmount builds an Amount for the token.
func NewAmount(value decimal.Decimal, token TokenUnit) Amount {
	return Amount{Value: value, Unit: token.Name}
}

func (a Amount) String() string {
	if a.Unit == "" {
		return a.Value.String()
	}
	return a.Value.String() + " " + a.Unit
}
