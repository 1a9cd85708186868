package ledger

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"liquiditySim/internal/model"
	"liquiditySim/internal/unimath"
)

func newMarket(t *testing.T, base, quote string) *Market {
	t.Helper()
	pool := usdcEthPool(t)
	m := NewMarket(pool, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, m.SetBalance(usdc, d(base)))
	require.NoError(t, m.SetBalance(eth, d(quote)))
	return m
}

func setTick(m *Market, tick int) {
	m.SetStatus(model.BarStatus{
		Timestamp:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		CurrentTick: tick,
		Price:       unimath.TickToPrice(tick, m.Pool()),
	})
}

func TestMarketRequiresStatus(t *testing.T) {
	m := newMarket(t, "1000", "1")
	_, err := m.AddLiquidity(0, 10, d("1"), d("1"))
	assert.ErrorIs(t, err, ErrNoMarketStatus)
	assert.ErrorIs(t, m.RemoveAll(true), ErrNoMarketStatus)
}

func TestMarketBuyChargesFeeInBase(t *testing.T) {
	m := newMarket(t, "1000", "0")

	action, err := m.Buy(d("0.1"), d("2000"))
	require.NoError(t, err)
	assert.True(t, m.BaseBalance().Equal(d("799.9")), m.BaseBalance().String())
	assert.True(t, m.QuoteBalance().Equal(d("0.1")))
	assert.True(t, action.Fee.Value.Equal(d("0.1")))
	assert.Equal(t, "usdc", action.Fee.Unit)
	assert.True(t, action.BaseChange.Value.Equal(d("-200.1")))
	assert.True(t, action.BaseBalanceAfter.Value.Equal(d("799.9")))

	_, err = m.Buy(d("1"), d("2000"))
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Equal(t, 1, m.ActionLog().Len())
}

func TestMarketSell(t *testing.T) {
	m := newMarket(t, "0", "1")

	action, err := m.Sell(d("0.5"), d("2000"))
	require.NoError(t, err)
	assert.True(t, m.BaseBalance().Equal(d("999.5")))
	assert.True(t, m.QuoteBalance().Equal(d("0.5")))
	assert.True(t, action.QuoteChange.Value.Equal(d("-0.5")))

	_, err = m.Sell(d("0"), d("2000"))
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestMarketEvenRebalance(t *testing.T) {
	m := newMarket(t, "1000", "0")

	require.NoError(t, m.EvenRebalance(d("2000")))
	assert.True(t, m.QuoteBalance().Equal(d("0.25")))
	assert.True(t, m.BaseBalance().Equal(d("499.75")), m.BaseBalance().String())
	require.Equal(t, 1, m.ActionLog().Len())
	assert.Equal(t, model.ActionBuy, m.ActionLog().Actions()[0].Kind())
}

func TestMarketAddLiquidityPreservesValue(t *testing.T) {
	m := newMarket(t, "1000", "0.5")
	setTick(m, 200000)

	before, err := m.Snapshot(m.Price())
	require.NoError(t, err)

	action, err := m.AddLiquidity(199000, 201000, d("500"), d("0.25"))
	require.NoError(t, err)
	assert.True(t, action.Liquidity.Sign() > 0)
	assert.True(t, action.BaseAmountActual.Value.LessThanOrEqual(d("500")))
	assert.True(t, action.QuoteAmountActual.Value.LessThanOrEqual(d("0.25")))
	assert.True(t, action.LowerQuotePrice.Value.LessThan(action.UpperQuotePrice.Value))

	after, err := m.Snapshot(m.Price())
	require.NoError(t, err)
	assert.Equal(t, 1, after.PositionCount)
	assert.InDelta(t, before.NetValue.InexactFloat64(), after.NetValue.InexactFloat64(), 0.5)

	require.NoError(t, m.RemoveAll(true))
	assert.Equal(t, 0, m.Positions().Len())
	assert.InDelta(t, 1000, m.BaseBalance().InexactFloat64(), 0.01)
	assert.InDelta(t, 0.5, m.QuoteBalance().InexactFloat64(), 1e-6)
}

func TestMarketAddLiquidityByPriceAlignsTicks(t *testing.T) {
	m := newMarket(t, "1000", "0.5")
	setTick(m, 200000)

	price := m.Price()
	action, err := m.AddLiquidityByPrice(price.Mul(d("0.9")), price.Mul(d("1.1")), d("500"), d("0.25"))
	require.NoError(t, err)
	spacing := m.Pool().TickSpacing
	assert.Zero(t, action.Position.LowerTick%spacing)
	assert.Zero(t, action.Position.UpperTick%spacing)
	assert.Less(t, action.Position.LowerTick, action.Position.UpperTick)
	assert.True(t, action.Position.Contains(200000))
}

func TestMarketRemoveLiquidityCollects(t *testing.T) {
	m := newMarket(t, "1000", "0.5")
	setTick(m, 200000)
	action, err := m.AddLiquidity(199000, 201000, d("500"), d("0.25"))
	require.NoError(t, err)

	_, err = m.RemoveLiquidity(action.Position, nil, true)
	require.NoError(t, err)
	assert.Equal(t, 0, m.Positions().Len())

	kinds := make([]model.ActionKind, 0)
	for _, a := range m.ActionLog().Actions() {
		kinds = append(kinds, a.Kind())
	}
	assert.Equal(t, []model.ActionKind{model.ActionAddLiquidity, model.ActionRemoveLiquidity}, kinds)
}

func TestMarketRemoveLiquidityCollectsFeeOnlyPosition(t *testing.T) {
	m := newMarket(t, "1000", "0.5")
	setTick(m, 200000)
	action, err := m.AddLiquidity(199000, 201000, d("500"), d("0.25"))
	require.NoError(t, err)
	r := action.Position

	status := m.Status()
	status.CurrentLiquidity = new(big.Int).Mul(action.Liquidity, big.NewInt(2))
	status.InAmount0 = big.NewInt(1_000_000_000)
	status.InAmount1 = big.NewInt(0)
	m.SetStatus(status)
	m.AccrueFees()

	_, err = m.RemoveLiquidity(r, nil, false)
	require.NoError(t, err)
	pos, ok := m.Positions().Get(r)
	require.True(t, ok, "pending fees keep the position open")
	require.Equal(t, 0, pos.Liquidity.Sign())
	require.True(t, pos.PendingAmount0.IsPositive())

	removed, err := m.RemoveLiquidity(r, nil, true)
	require.NoError(t, err)
	assert.Nil(t, removed)
	assert.Equal(t, 0, m.Positions().Len())

	actions := m.ActionLog().Actions()
	require.Len(t, actions, 3)
	collected, ok := actions[2].(*model.CollectFeeAction)
	require.True(t, ok)
	assert.True(t, collected.BaseAmount.Value.Equal(pos.PendingAmount0))
}
