package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"liquiditySim/internal/model"
)

var (
	// ErrInsufficientBalance is returned when a debit exceeds the balance by
	// more than the dust tolerance.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrInvalidRange is returned for a price range with lower >= upper or
	// ticks outside the pool bounds.
	ErrInvalidRange = errors.New("invalid price range")
	// ErrPositionNotFound is returned when no position exists for a range.
	ErrPositionNotFound = errors.New("position not found")
	// ErrInvalidAmount is returned for negative amounts or liquidity outside
	// the position.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrUnknownToken is returned for a token the ledger does not hold.
	ErrUnknownToken = errors.New("unknown token")
	// ErrNoMarketStatus is returned by market operations that need the
	// current tick before any bar status was set.
	ErrNoMarketStatus = errors.New("market status not set")
)

// InsufficientBalanceError carries the token, its balance and the debit that
// was refused.
type InsufficientBalanceError struct {
	Token   model.TokenUnit
	Balance decimal.Decimal
	Amount  decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance, balance is %s%s, but sub amount is %s%s",
		e.Balance, e.Token.Name, e.Amount, e.Token.Name)
}

func (e *InsufficientBalanceError) Unwrap() error {
	return ErrInsufficientBalance
}
