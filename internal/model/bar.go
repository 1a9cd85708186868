package model

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// Column names of the raw pool series.
const (
	ColumnTimestamp        = "timestamp"
	ColumnNetAmount0       = "netAmount0"
	ColumnNetAmount1       = "netAmount1"
	ColumnCloseTick        = "closeTick"
	ColumnOpenTick         = "openTick"
	ColumnLowestTick       = "lowestTick"
	ColumnHighestTick      = "highestTick"
	ColumnInAmount0        = "inAmount0"
	ColumnInAmount1        = "inAmount1"
	ColumnCurrentLiquidity = "currentLiquidity"
)

// Columns derived after normalization.
const (
	ColumnOpen    = "open"
	ColumnPrice   = "price"
	ColumnLow     = "low"
	ColumnHigh    = "high"
	ColumnVolume0 = "volume0"
	ColumnVolume1 = "volume1"
)

// RawColumns lists the recognized raw columns in file order, timestamp excluded.
var RawColumns = []string{
	ColumnNetAmount0,
	ColumnNetAmount1,
	ColumnCloseTick,
	ColumnOpenTick,
	ColumnLowestTick,
	ColumnHighestTick,
	ColumnInAmount0,
	ColumnInAmount1,
	ColumnCurrentLiquidity,
}

// RawBarRecord is one source row. Any field may be missing.
type RawBarRecord struct {
	Timestamp        time.Time
	NetAmount0       decimal.NullDecimal
	NetAmount1       decimal.NullDecimal
	CloseTick        decimal.NullDecimal
	OpenTick         decimal.NullDecimal
	LowestTick       decimal.NullDecimal
	HighestTick      decimal.NullDecimal
	InAmount0        decimal.NullDecimal
	InAmount1        decimal.NullDecimal
	CurrentLiquidity decimal.NullDecimal
	Extra            map[string]decimal.NullDecimal
}

// Value returns the named column of the record.
func (r RawBarRecord) Value(column string) (decimal.NullDecimal, bool) {
	switch column {
	case ColumnNetAmount0:
		return r.NetAmount0, true
	case ColumnNetAmount1:
		return r.NetAmount1, true
	case ColumnCloseTick:
		return r.CloseTick, true
	case ColumnOpenTick:
		return r.OpenTick, true
	case ColumnLowestTick:
		return r.LowestTick, true
	case ColumnHighestTick:
		return r.HighestTick, true
	case ColumnInAmount0:
		return r.InAmount0, true
	case ColumnInAmount1:
		return r.InAmount1, true
	case ColumnCurrentLiquidity:
		return r.CurrentLiquidity, true
	}
	v, ok := r.Extra[column]
	return v, ok
}

// Bar is a normalized, gap-free row used by the backtest.
type Bar struct {
	Timestamp        time.Time       `json:"timestamp"`
	NetAmount0       *big.Int        `json:"net_amount0"`
	NetAmount1       *big.Int        `json:"net_amount1"`
	CloseTick        int             `json:"close_tick"`
	OpenTick         int             `json:"open_tick"`
	LowestTick       int             `json:"lowest_tick"`
	HighestTick      int             `json:"highest_tick"`
	InAmount0        *big.Int        `json:"in_amount0"`
	InAmount1        *big.Int        `json:"in_amount1"`
	CurrentLiquidity *big.Int        `json:"current_liquidity"`
	Open             decimal.Decimal `json:"open"`
	Price            decimal.Decimal `json:"price"`
	Low              decimal.Decimal `json:"low"`
	High             decimal.Decimal `json:"high"`
	Volume0          decimal.Decimal `json:"volume0"`
	Volume1          decimal.Decimal `json:"volume1"`
}

// BarStatus is the pool state handed to the ledger and strategy for one bar.
// PreviousTick is nil when the prior tick is unknown.
type BarStatus struct {
	Timestamp        time.Time
	CurrentTick      int
	CurrentLiquidity *big.Int
	InAmount0        *big.Int
	InAmount1        *big.Int
	Price            decimal.Decimal
	PreviousTick     *int
}

// Status builds the BarStatus for a bar. previous is nil for the first bar.
func (b Bar) Status(previous *Bar) BarStatus {
	status := BarStatus{
		Timestamp:        b.Timestamp,
		CurrentTick:      b.CloseTick,
		CurrentLiquidity: b.CurrentLiquidity,
		InAmount0:        b.InAmount0,
		InAmount1:        b.InAmount1,
		Price:            b.Price,
	}
	if previous != nil {
		tick := previous.CloseTick
		status.PreviousTick = &tick
	}
	return status
}
