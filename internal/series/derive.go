package series

import (
	"math/big"

	"github.com/shopspring/decimal"

	"liquiditySim/internal/model"
)

// TickConverter turns a tick into a base-per-quote price.
type TickConverter interface {
	TickToPrice(tick int) decimal.Decimal
}

// Derive adds the price columns (open, price, low, high) and the volume
// columns (volume0, volume1) computed from ticks and net amounts. The close
// tick is required; absent open/lowest/highest tick columns fall back to it.
func Derive(f *Frame, pool model.Pool, conv TickConverter) (*Frame, error) {
	if !f.Has(model.ColumnCloseTick) {
		return nil, formatErrorf(model.ColumnCloseTick, "required to derive prices")
	}
	out := f.Clone()
	closeTicks := out.values[model.ColumnCloseTick]

	tickColumn := func(name string) []decimal.NullDecimal {
		if out.Has(name) {
			return out.values[name]
		}
		return closeTicks
	}

	toPrice := func(v decimal.NullDecimal) decimal.NullDecimal {
		if !v.Valid {
			return decimal.NullDecimal{}
		}
		return decimal.NewNullDecimal(conv.TickToPrice(int(v.Decimal.IntPart())))
	}

	n := out.Len()
	open := make([]decimal.NullDecimal, n)
	price := make([]decimal.NullDecimal, n)
	low := make([]decimal.NullDecimal, n)
	high := make([]decimal.NullDecimal, n)
	openTicks := tickColumn(model.ColumnOpenTick)
	lowest := tickColumn(model.ColumnLowestTick)
	highest := tickColumn(model.ColumnHighestTick)
	for i := 0; i < n; i++ {
		open[i] = toPrice(openTicks[i])
		price[i] = toPrice(closeTicks[i])
		a, b := toPrice(lowest[i]), toPrice(highest[i])
		if a.Valid && b.Valid && a.Decimal.GreaterThan(b.Decimal) {
			// base token0 inverts the tick/price direction
			a, b = b, a
		}
		low[i], high[i] = a, b
	}

	columns := []struct {
		name   string
		values []decimal.NullDecimal
	}{
		{model.ColumnOpen, open},
		{model.ColumnPrice, price},
		{model.ColumnLow, low},
		{model.ColumnHigh, high},
		{model.ColumnVolume0, volume(out.values[model.ColumnNetAmount0], pool.Token0, n)},
		{model.ColumnVolume1, volume(out.values[model.ColumnNetAmount1], pool.Token1, n)},
	}
	for _, c := range columns {
		if err := out.SetColumn(c.name, c.values); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func volume(net []decimal.NullDecimal, token model.TokenUnit, n int) []decimal.NullDecimal {
	out := make([]decimal.NullDecimal, n)
	for i := range out {
		if net == nil {
			out[i] = decimal.NewNullDecimal(decimal.Zero)
			continue
		}
		if !net[i].Valid {
			continue
		}
		out[i] = decimal.NewNullDecimal(net[i].Decimal.Abs().Shift(-token.Decimals))
	}
	return out
}

// Bars converts a filled and derived frame into typed bars. Ticks and prices
// must be present on every row; missing flows and liquidity read as zero.
func Bars(f *Frame) ([]model.Bar, error) {
	for _, c := range []string{model.ColumnCloseTick, model.ColumnPrice} {
		if !f.Has(c) {
			return nil, formatErrorf(c, "missing")
		}
	}

	bars := make([]model.Bar, f.Len())
	for i := range bars {
		closeTick, err := tickAt(f, model.ColumnCloseTick, i, nil)
		if err != nil {
			return nil, err
		}
		openTick, err := tickAt(f, model.ColumnOpenTick, i, &closeTick)
		if err != nil {
			return nil, err
		}
		lowest, err := tickAt(f, model.ColumnLowestTick, i, &closeTick)
		if err != nil {
			return nil, err
		}
		highest, err := tickAt(f, model.ColumnHighestTick, i, &closeTick)
		if err != nil {
			return nil, err
		}
		price, err := decimalAt(f, model.ColumnPrice, i, true)
		if err != nil {
			return nil, err
		}
		open, _ := decimalAt(f, model.ColumnOpen, i, false)
		low, _ := decimalAt(f, model.ColumnLow, i, false)
		high, _ := decimalAt(f, model.ColumnHigh, i, false)
		volume0, _ := decimalAt(f, model.ColumnVolume0, i, false)
		volume1, _ := decimalAt(f, model.ColumnVolume1, i, false)

		bars[i] = model.Bar{
			Timestamp:        f.Timestamps[i],
			NetAmount0:       intAt(f, model.ColumnNetAmount0, i),
			NetAmount1:       intAt(f, model.ColumnNetAmount1, i),
			CloseTick:        closeTick,
			OpenTick:         openTick,
			LowestTick:       lowest,
			HighestTick:      highest,
			InAmount0:        intAt(f, model.ColumnInAmount0, i),
			InAmount1:        intAt(f, model.ColumnInAmount1, i),
			CurrentLiquidity: intAt(f, model.ColumnCurrentLiquidity, i),
			Open:             open,
			Price:            price,
			Low:              low,
			High:             high,
			Volume0:          volume0,
			Volume1:          volume1,
		}
	}
	return bars, nil
}

func tickAt(f *Frame, column string, row int, fallback *int) (int, error) {
	values := f.Column(column)
	if values == nil || !values[row].Valid {
		if fallback != nil {
			return *fallback, nil
		}
		return 0, formatErrorf(column, "missing at %s", f.Timestamps[row].UTC())
	}
	return int(values[row].Decimal.IntPart()), nil
}

func decimalAt(f *Frame, column string, row int, required bool) (decimal.Decimal, error) {
	values := f.Column(column)
	if values == nil || !values[row].Valid {
		if required {
			return decimal.Zero, formatErrorf(column, "missing at %s", f.Timestamps[row].UTC())
		}
		return decimal.Zero, nil
	}
	return values[row].Decimal, nil
}

func intAt(f *Frame, column string, row int) *big.Int {
	values := f.Column(column)
	if values == nil || !values[row].Valid {
		return big.NewInt(0)
	}
	return values[row].Decimal.Truncate(0).BigInt()
}
