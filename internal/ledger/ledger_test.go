package ledger

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liquiditySim/internal/model"
)

var (
	usdc = model.TokenUnit{Name: "usdc", Decimals: 6}
	eth  = model.TokenUnit{Name: "eth", Decimals: 18}
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func usdcEthPool(t *testing.T) model.Pool {
	t.Helper()
	pool, err := model.NewPool(usdc, eth, d("0.05"), usdc)
	require.NoError(t, err)
	return pool
}

// fakeMath mints 1000 units of liquidity per token unit deposited and gives
// back half of liquidity/1000 in each token.
type fakeMath struct{}

func (fakeMath) LiquidityForAmounts(_ model.PriceRange, amount0, amount1 decimal.Decimal, _ int) (*big.Int, decimal.Decimal, decimal.Decimal, error) {
	l := amount0.Add(amount1).Mul(decimal.NewFromInt(1000)).Truncate(0).BigInt()
	return l, amount0, amount1, nil
}

func (fakeMath) AmountsForLiquidity(_ model.PriceRange, liquidity *big.Int, _ int) (decimal.Decimal, decimal.Decimal, error) {
	half := decimal.NewFromBigInt(liquidity, 0).Div(decimal.NewFromInt(2000))
	return half, half, nil
}

type fakePrices struct{}

func (fakePrices) TickToPrice(tick int) decimal.Decimal {
	return decimal.NewFromInt(int64(tick + 1000))
}

func (fakePrices) PriceToTick(price decimal.Decimal) (int, error) {
	return int(price.IntPart()) - 1000, nil
}

type fixture struct {
	pool      model.Pool
	assets    *AssetLedger
	log       *ActionLog
	positions *PositionLedger
}

func newFixture(t *testing.T, balance0, balance1 string) fixture {
	t.Helper()
	pool := usdcEthPool(t)
	assets := NewAssetLedger([]model.TokenUnit{pool.Token0, pool.Token1})
	require.NoError(t, assets.Set(pool.Token0, d(balance0)))
	require.NoError(t, assets.Set(pool.Token1, d(balance1)))
	log := NewActionLog()
	positions := NewPositionLedger(pool, fakeMath{}, fakePrices{}, assets, log)
	positions.SetTime(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	return fixture{pool: pool, assets: assets, log: log, positions: positions}
}

func TestDebitWithinDustEmptiesBalance(t *testing.T) {
	a := NewAssetLedger([]model.TokenUnit{usdc})
	require.NoError(t, a.Set(usdc, d("100.00000")))

	balance, err := a.Debit(usdc, d("100.00003"), false)
	require.NoError(t, err)
	assert.True(t, balance.IsZero())
	assert.True(t, a.Balance(usdc).IsZero())
}

func TestDebitInsufficientBalance(t *testing.T) {
	a := NewAssetLedger([]model.TokenUnit{usdc})
	require.NoError(t, a.Set(usdc, d("100")))

	_, err := a.Debit(usdc, d("101"), false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInsufficientBalance))

	var insufficient *InsufficientBalanceError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, usdc, insufficient.Token)
	assert.True(t, insufficient.Amount.Equal(d("101")))
	assert.Equal(t, "insufficient balance, balance is 100usdc, but sub amount is 101usdc", err.Error())
	assert.True(t, a.Balance(usdc).Equal(d("100")))
}

func TestDebitDustToleranceBoundary(t *testing.T) {
	cases := []struct {
		name         string
		amount       string
		want         string
		insufficient bool
	}{
		{name: "over by exactly tolerance", amount: "100.001", insufficient: true},
		{name: "over just inside tolerance", amount: "100.0009", want: "0"},
		{name: "under by exactly tolerance", amount: "99.999", want: "0.001"},
		{name: "under just inside tolerance", amount: "99.9991", want: "0"},
		{name: "exact", amount: "100", want: "0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := NewAssetLedger([]model.TokenUnit{usdc})
			require.NoError(t, a.Set(usdc, d("100")))

			balance, err := a.Debit(usdc, d(tc.amount), false)
			if tc.insufficient {
				assert.ErrorIs(t, err, ErrInsufficientBalance)
				assert.True(t, a.Balance(usdc).Equal(d("100")))
				return
			}
			require.NoError(t, err)
			assert.True(t, balance.Equal(d(tc.want)), balance.String())
			assert.True(t, a.Balance(usdc).Equal(d(tc.want)))
		})
	}
}

func TestDebitAllowNegative(t *testing.T) {
	a := NewAssetLedger([]model.TokenUnit{usdc})
	require.NoError(t, a.Set(usdc, d("1")))

	balance, err := a.Debit(usdc, d("3"), true)
	require.NoError(t, err)
	assert.True(t, balance.Equal(d("-2")))
}

func TestDebitZeroFromZero(t *testing.T) {
	a := NewAssetLedger([]model.TokenUnit{usdc})
	balance, err := a.Debit(usdc, decimal.Zero, false)
	require.NoError(t, err)
	assert.True(t, balance.IsZero())
}

func TestDebitFromZeroBalance(t *testing.T) {
	a := NewAssetLedger([]model.TokenUnit{usdc})
	_, err := a.Debit(usdc, d("1"), false)
	assert.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestCreditThenDebitRestoresBalance(t *testing.T) {
	a := NewAssetLedger([]model.TokenUnit{usdc, eth})
	require.NoError(t, a.Set(eth, d("2.5")))

	_, err := a.Credit(eth, d("0.123456789012345678"))
	require.NoError(t, err)
	_, err = a.Debit(eth, d("0.123456789012345678"), false)
	require.NoError(t, err)
	assert.True(t, a.Balance(eth).Equal(d("2.5")))
}

func TestAssetLedgerRejectsBadInput(t *testing.T) {
	a := NewAssetLedger([]model.TokenUnit{usdc})

	_, err := a.Credit(eth, d("1"))
	assert.ErrorIs(t, err, ErrUnknownToken)
	_, err = a.Credit(usdc, d("-1"))
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = a.Debit(usdc, d("-1"), false)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	assert.ErrorIs(t, a.Set(usdc, d("-1")), ErrInvalidAmount)
}

func TestCustomDustTolerance(t *testing.T) {
	a := NewAssetLedger([]model.TokenUnit{usdc}, WithDustTolerance(d("0.01")))
	require.NoError(t, a.Set(usdc, d("100")))

	balance, err := a.Debit(usdc, d("100.5"), false)
	require.NoError(t, err)
	assert.True(t, balance.IsZero())
	assert.True(t, a.Tolerance().Equal(d("0.01")))
}

func TestAmountInMinorUnits(t *testing.T) {
	a := NewAssetLedger([]model.TokenUnit{usdc})
	require.NoError(t, a.Set(usdc, d("1.5")))
	assert.True(t, a.AmountInMinorUnits(usdc).Equal(d("1500000")))
}

func TestOpenOrIncreaseReusesPosition(t *testing.T) {
	f := newFixture(t, "10", "10")
	r := model.PriceRange{LowerTick: -100, UpperTick: 100}

	_, err := f.positions.OpenOrIncrease(r, d("1"), d("1"), 0)
	require.NoError(t, err)
	action, err := f.positions.OpenOrIncrease(r, d("2"), d("1"), 0)
	require.NoError(t, err)

	assert.Equal(t, 1, f.positions.Len())
	pos, ok := f.positions.Get(r)
	require.True(t, ok)
	assert.Equal(t, big.NewInt(5000), pos.Liquidity)
	assert.Equal(t, big.NewInt(3000), action.Liquidity)
	assert.Equal(t, 2, f.log.Len())

	assert.True(t, f.assets.Balance(usdc).Equal(d("7")))
	assert.True(t, f.assets.Balance(eth).Equal(d("8")))
	assert.True(t, action.BaseBalanceAfter.Value.Equal(d("7")))
	assert.Equal(t, "usdc", action.BaseBalanceAfter.Unit)
	assert.True(t, action.LowerQuotePrice.Value.Equal(d("900")))
	assert.Equal(t, "usdc/eth", action.LowerQuotePrice.Unit)
}

func TestOpenOrIncreaseIsAtomic(t *testing.T) {
	f := newFixture(t, "10", "0.5")
	r := model.PriceRange{LowerTick: -100, UpperTick: 100}

	_, err := f.positions.OpenOrIncrease(r, d("1"), d("1"), 0)
	require.ErrorIs(t, err, ErrInsufficientBalance)

	assert.True(t, f.assets.Balance(usdc).Equal(d("10")))
	assert.True(t, f.assets.Balance(eth).Equal(d("0.5")))
	assert.Equal(t, 0, f.positions.Len())
	assert.Equal(t, 0, f.log.Len())
}

func TestOpenOrIncreaseValidatesRange(t *testing.T) {
	f := newFixture(t, "10", "10")

	for _, r := range []model.PriceRange{
		{LowerTick: 10, UpperTick: 10},
		{LowerTick: 20, UpperTick: 10},
		{LowerTick: -900000, UpperTick: 10},
	} {
		_, err := f.positions.OpenOrIncrease(r, d("1"), d("1"), 0)
		assert.ErrorIs(t, err, ErrInvalidRange, r.String())
	}
	_, err := f.positions.OpenOrIncrease(model.PriceRange{LowerTick: 0, UpperTick: 10}, decimal.Zero, decimal.Zero, 0)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestRemoveLifecycle(t *testing.T) {
	f := newFixture(t, "10", "10")
	r := model.PriceRange{LowerTick: -100, UpperTick: 100}
	_, err := f.positions.OpenOrIncrease(r, d("1"), d("1"), 0)
	require.NoError(t, err)

	_, err = f.positions.Remove(r, big.NewInt(2001), 0)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = f.positions.Remove(r, big.NewInt(0), 0)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	action, err := f.positions.Remove(r, big.NewInt(500), 0)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1500), action.RemainLiquidity)
	assert.Equal(t, 1, f.positions.Len())

	action, err = f.positions.Remove(r, big.NewInt(1500), 0)
	require.NoError(t, err)
	assert.Equal(t, 0, action.RemainLiquidity.Sign())
	assert.Equal(t, 0, f.positions.Len())
	assert.True(t, f.assets.Balance(usdc).Equal(d("10")))
	assert.True(t, f.assets.Balance(eth).Equal(d("10")))

	_, err = f.positions.Remove(r, big.NewInt(1), 0)
	assert.ErrorIs(t, err, ErrPositionNotFound)
	_, err = f.positions.CollectFees(r)
	assert.ErrorIs(t, err, ErrPositionNotFound)
}

func TestPendingFeesKeepPositionUntilCollected(t *testing.T) {
	f := newFixture(t, "10", "10")
	r := model.PriceRange{LowerTick: -100, UpperTick: 100}
	_, err := f.positions.OpenOrIncrease(r, d("1"), d("1"), 0)
	require.NoError(t, err)

	f.positions.AccrueFees(model.BarStatus{
		CurrentTick:      0,
		CurrentLiquidity: big.NewInt(4000),
		InAmount0:        big.NewInt(1_000_000),
		InAmount1:        new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil),
	})
	pos, _ := f.positions.Get(r)
	assert.True(t, pos.PendingAmount0.Equal(d("0.00025")), pos.PendingAmount0.String())
	assert.True(t, pos.PendingAmount1.Equal(d("0.00025")), pos.PendingAmount1.String())

	_, err = f.positions.Remove(r, big.NewInt(2000), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, f.positions.Len())

	action, err := f.positions.CollectFees(r)
	require.NoError(t, err)
	assert.True(t, action.BaseAmount.Value.Equal(d("0.00025")))
	assert.Equal(t, 0, f.positions.Len())
	assert.True(t, f.assets.Balance(usdc).Equal(d("10.00025")))
}

func TestAccrueFeesScalesByOverlap(t *testing.T) {
	f := newFixture(t, "10", "10")
	inside := model.PriceRange{LowerTick: -100, UpperTick: 100}
	crossed := model.PriceRange{LowerTick: 150, UpperTick: 250}
	outside := model.PriceRange{LowerTick: 500, UpperTick: 600}
	for _, r := range []model.PriceRange{inside, crossed, outside} {
		_, err := f.positions.OpenOrIncrease(r, d("1"), d("1"), 0)
		require.NoError(t, err)
	}

	previous := 200
	f.positions.AccrueFees(model.BarStatus{
		CurrentTick:      50,
		PreviousTick:     &previous,
		CurrentLiquidity: big.NewInt(8000),
		InAmount0:        big.NewInt(1_000_000),
		InAmount1:        big.NewInt(0),
	})

	// Share 2000/8000 of a 0.0005 fee, and 50 of the 150 swept ticks fall in
	// both the inside and the crossed range.
	third := 0.000125 / 3
	for r, want := range map[model.PriceRange]float64{inside: third, crossed: third, outside: 0} {
		pos, ok := f.positions.Get(r)
		require.True(t, ok)
		assert.InDelta(t, want, pos.PendingAmount0.InexactFloat64(), 1e-12, "%s: %s", r, pos.PendingAmount0)
		assert.True(t, pos.PendingAmount1.IsZero())
	}
}

func TestAccrueFeesSingleTickBar(t *testing.T) {
	f := newFixture(t, "10", "10")
	inside := model.PriceRange{LowerTick: -100, UpperTick: 100}
	edge := model.PriceRange{LowerTick: 100, UpperTick: 200}
	outside := model.PriceRange{LowerTick: 500, UpperTick: 600}
	for _, r := range []model.PriceRange{inside, edge, outside} {
		_, err := f.positions.OpenOrIncrease(r, d("1"), d("1"), 0)
		require.NoError(t, err)
	}

	f.positions.AccrueFees(model.BarStatus{
		CurrentTick:      100,
		CurrentLiquidity: big.NewInt(8000),
		InAmount0:        big.NewInt(1_000_000),
		InAmount1:        big.NewInt(0),
	})

	for r, want := range map[model.PriceRange]string{inside: "0.000125", edge: "0.000125", outside: "0"} {
		pos, ok := f.positions.Get(r)
		require.True(t, ok)
		assert.True(t, pos.PendingAmount0.Equal(d(want)), "%s: %s", r, pos.PendingAmount0)
	}
}

func TestSpanOverlap(t *testing.T) {
	r := model.PriceRange{LowerTick: 0, UpperTick: 100}
	cases := []struct {
		low, high int
		want      string
	}{
		{-50, 150, "0.5"},
		{0, 100, "1"},
		{20, 40, "1"},
		{100, 200, "0"},
		{-10, 0, "0"},
		{50, 50, "1"},
		{101, 101, "0"},
	}
	for _, tc := range cases {
		got := spanOverlap(tc.low, tc.high, r)
		assert.True(t, got.Equal(d(tc.want)), "[%d,%d]: %s", tc.low, tc.high, got)
	}
}

func TestRemoveAllInInsertionOrder(t *testing.T) {
	f := newFixture(t, "10", "10")
	ranges := []model.PriceRange{
		{LowerTick: 300, UpperTick: 400},
		{LowerTick: -100, UpperTick: 100},
		{LowerTick: 0, UpperTick: 50},
	}
	for _, r := range ranges {
		_, err := f.positions.OpenOrIncrease(r, d("1"), d("1"), 0)
		require.NoError(t, err)
	}
	positions := f.positions.Positions()
	require.Len(t, positions, 3)
	for i, pos := range positions {
		assert.Equal(t, ranges[i], pos.Range)
	}

	actions, err := f.positions.RemoveAll(0)
	require.NoError(t, err)
	require.Len(t, actions, 3)
	for i, action := range actions {
		assert.Equal(t, ranges[i], action.Position)
	}
	assert.Equal(t, 0, f.positions.Len())
	assert.Equal(t, 6, f.log.Len())
}

func TestGetReturnsCopy(t *testing.T) {
	f := newFixture(t, "10", "10")
	r := model.PriceRange{LowerTick: -100, UpperTick: 100}
	_, err := f.positions.OpenOrIncrease(r, d("1"), d("1"), 0)
	require.NoError(t, err)

	pos, _ := f.positions.Get(r)
	pos.Liquidity.SetInt64(1)
	again, _ := f.positions.Get(r)
	assert.Equal(t, big.NewInt(2000), again.Liquidity)
}

func TestActionLogHooksAndCopies(t *testing.T) {
	var seen []model.ActionKind
	log := NewActionLog(func(a model.Action) { seen = append(seen, a.Kind()) })
	later := 0
	log.Subscribe(func(model.Action) { later++ })

	log.Append(&model.BuyAction{})
	log.Append(&model.SellAction{})
	log.Append(&model.CollectFeeAction{})

	assert.Equal(t, []model.ActionKind{model.ActionBuy, model.ActionSell, model.ActionCollectFee}, seen)
	assert.Equal(t, 3, later)

	actions := log.Actions()
	actions[0] = &model.RemoveLiquidityAction{}
	assert.Equal(t, model.ActionBuy, log.Actions()[0].Kind())

	tail := log.Since(2)
	require.Len(t, tail, 1)
	assert.Equal(t, model.ActionCollectFee, tail[0].Kind())
	assert.Nil(t, log.Since(5))
}

func TestLoggedActionsCannotBeRewritten(t *testing.T) {
	f := newFixture(t, "10", "10")
	var hooked []model.Action
	f.log.Subscribe(func(a model.Action) { hooked = append(hooked, a) })
	r := model.PriceRange{LowerTick: -100, UpperTick: 100}

	action, err := f.positions.OpenOrIncrease(r, d("1"), d("1"), 0)
	require.NoError(t, err)
	wantLiquidity := new(big.Int).Set(action.Liquidity)
	wantBase := action.BaseBalanceAfter.Value

	action.Liquidity.SetInt64(1)
	action.BaseBalanceAfter.Value = d("999")
	require.Len(t, hooked, 1)
	hooked[0].(*model.AddLiquidityAction).Liquidity.SetInt64(2)

	logged := f.log.Actions()[0].(*model.AddLiquidityAction)
	assert.Equal(t, 0, logged.Liquidity.Cmp(wantLiquidity), logged.Liquidity.String())
	assert.True(t, logged.BaseBalanceAfter.Value.Equal(wantBase))

	logged.Liquidity.SetInt64(3)
	again := f.log.Actions()[0].(*model.AddLiquidityAction)
	assert.Equal(t, 0, again.Liquidity.Cmp(wantLiquidity))

	pos, ok := f.positions.Get(r)
	require.True(t, ok)
	assert.Equal(t, 0, pos.Liquidity.Cmp(wantLiquidity))

	removed, err := f.positions.Remove(r, pos.Liquidity, 0)
	require.NoError(t, err)
	removed.RemovedLiquidity.SetInt64(0)
	loggedRemove := f.log.Since(1)[0].(*model.RemoveLiquidityAction)
	assert.Equal(t, 0, loggedRemove.RemovedLiquidity.Cmp(wantLiquidity))
}

func TestSnapshotWithFakeMath(t *testing.T) {
	f := newFixture(t, "10", "10")
	r := model.PriceRange{LowerTick: -100, UpperTick: 100}
	_, err := f.positions.OpenOrIncrease(r, d("1"), d("1"), 0)
	require.NoError(t, err)

	snap, err := f.positions.TakeSnapshot(d("1000"))
	require.NoError(t, err)
	assert.True(t, snap.BaseBalance.Equal(d("9")))
	assert.True(t, snap.QuoteBalance.Equal(d("9")))
	assert.True(t, snap.BaseInPosition.Equal(d("1")))
	assert.True(t, snap.QuoteInPosition.Equal(d("1")))
	assert.Equal(t, 1, snap.PositionCount)
	assert.True(t, snap.NetValue.Equal(d("10010")), snap.NetValue.String())

	_, err = f.positions.TakeSnapshot(decimal.Zero)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}
