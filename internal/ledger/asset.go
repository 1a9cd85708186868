package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"

	"liquiditySim/internal/model"
)

// DefaultDustTolerance is the relative difference under which a debit empties
// the balance instead of leaving a residue or failing. Amounts coming out of
// the liquidity math carry rounding error of this order.
var DefaultDustTolerance = decimal.New(1, -5)

// AssetOption configures an AssetLedger.
type AssetOption func(*AssetLedger)

// WithDustTolerance overrides DefaultDustTolerance.
func WithDustTolerance(tolerance decimal.Decimal) AssetOption {
	return func(a *AssetLedger) {
		a.tolerance = tolerance
	}
}

// AssetBalance is the balance of one token.
type AssetBalance struct {
	Token   model.TokenUnit `json:"token"`
	Balance decimal.Decimal `json:"balance"`
}

// AssetLedger holds one balance per token.
type AssetLedger struct {
	tokens    []model.TokenUnit
	balances  map[model.TokenUnit]decimal.Decimal
	tolerance decimal.Decimal
}

// NewAssetLedger returns a ledger with a zero balance for every token.
func NewAssetLedger(tokens []model.TokenUnit, opts ...AssetOption) *AssetLedger {
	a := &AssetLedger{
		balances:  make(map[model.TokenUnit]decimal.Decimal, len(tokens)),
		tolerance: DefaultDustTolerance,
	}
	for _, t := range tokens {
		if _, ok := a.balances[t]; ok {
			continue
		}
		a.tokens = append(a.tokens, t)
		a.balances[t] = decimal.Zero
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Tolerance returns the dust tolerance in effect.
func (a *AssetLedger) Tolerance() decimal.Decimal {
	return a.tolerance
}

// Balance returns the balance of token, zero when unknown.
func (a *AssetLedger) Balance(token model.TokenUnit) decimal.Decimal {
	return a.balances[token]
}

// Balances returns every balance in registration order.
func (a *AssetLedger) Balances() []AssetBalance {
	out := make([]AssetBalance, 0, len(a.tokens))
	for _, t := range a.tokens {
		out = append(out, AssetBalance{Token: t, Balance: a.balances[t]})
	}
	return out
}

// Set overwrites the balance of token. It is meant for initial funding.
func (a *AssetLedger) Set(token model.TokenUnit, amount decimal.Decimal) error {
	if _, ok := a.balances[token]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownToken, token.Name)
	}
	if amount.IsNegative() {
		return fmt.Errorf("%w: balance %s must be non-negative", ErrInvalidAmount, amount)
	}
	a.balances[token] = amount
	return nil
}

// Credit adds amount to the balance of token and returns the new balance.
func (a *AssetLedger) Credit(token model.TokenUnit, amount decimal.Decimal) (decimal.Decimal, error) {
	balance, ok := a.balances[token]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnknownToken, token.Name)
	}
	if amount.IsNegative() {
		return balance, fmt.Errorf("%w: credit %s%s", ErrInvalidAmount, amount, token.Name)
	}
	balance = balance.Add(amount)
	a.balances[token] = balance
	return balance, nil
}

// Debit subtracts amount from the balance of token and returns the new
// balance.
//
// Unless allowNegative is set, a debit within the dust tolerance of the
// balance (relative to the balance, or to amount when the balance is zero)
// empties the balance, and any other debit larger than the balance fails with
// an *InsufficientBalanceError.
func (a *AssetLedger) Debit(token model.TokenUnit, amount decimal.Decimal, allowNegative bool) (decimal.Decimal, error) {
	next, err := a.planDebit(token, amount, allowNegative)
	if err != nil {
		return a.balances[token], err
	}
	a.balances[token] = next
	return next, nil
}

// planDebit computes the balance a debit would leave without applying it.
func (a *AssetLedger) planDebit(token model.TokenUnit, amount decimal.Decimal, allowNegative bool) (decimal.Decimal, error) {
	balance, ok := a.balances[token]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnknownToken, token.Name)
	}
	if amount.IsNegative() {
		return balance, fmt.Errorf("%w: debit %s%s", ErrInvalidAmount, amount, token.Name)
	}
	if balance.IsZero() && amount.IsZero() {
		return balance, nil
	}
	if allowNegative {
		return balance.Sub(amount), nil
	}

	base := balance
	if base.IsZero() {
		base = amount
	}
	remaining := balance.Sub(amount)
	if remaining.Abs().Div(base.Abs()).LessThan(a.tolerance) {
		return decimal.Zero, nil
	}
	if remaining.IsNegative() {
		return balance, &InsufficientBalanceError{Token: token, Balance: balance, Amount: amount}
	}
	return remaining, nil
}

// AmountInMinorUnits returns the balance of token scaled by 10^decimals.
func (a *AssetLedger) AmountInMinorUnits(token model.TokenUnit) decimal.Decimal {
	return a.balances[token].Shift(token.Decimals)
}
