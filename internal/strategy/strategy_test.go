package strategy

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liquiditySim/internal/backtest"
	"liquiditySim/internal/ledger"
	"liquiditySim/internal/model"
	"liquiditySim/internal/unimath"
)

func newMarket(t *testing.T) *ledger.Market {
	t.Helper()
	usdc := model.TokenUnit{Name: "usdc", Decimals: 6}
	eth := model.TokenUnit{Name: "eth", Decimals: 18}
	pool, err := model.NewPool(usdc, eth, decimal.RequireFromString("0.05"), usdc)
	require.NoError(t, err)
	m := ledger.NewMarket(pool)
	require.NoError(t, m.SetBalance(usdc, decimal.NewFromInt(2000)))
	return m
}

func halfHourBars(pool model.Pool, ticks ...int) []model.Bar {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]model.Bar, 0, len(ticks))
	for i, tick := range ticks {
		bars = append(bars, model.Bar{
			Timestamp:        start.Add(time.Duration(i) * 30 * time.Minute),
			CloseTick:        tick,
			Price:            unimath.TickToPrice(tick, pool),
			CurrentLiquidity: big.NewInt(1),
			InAmount0:        big.NewInt(0),
			InAmount1:        big.NewInt(0),
		})
	}
	return bars
}

func kinds(actions []model.Action) map[model.ActionKind]int {
	out := make(map[model.ActionKind]int)
	for _, a := range actions {
		out[a.Kind()]++
	}
	return out
}

func TestNewUnknownStrategy(t *testing.T) {
	_, err := New("martingale", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), FixedRangeName)
	assert.Equal(t, []string{FixedRangeName, PeriodicRebalanceName}, Names())
}

func TestNewValidatesParams(t *testing.T) {
	cases := []struct {
		name   string
		params map[string]string
	}{
		{FixedRangeName, map[string]string{"upper_price": "2300"}},
		{FixedRangeName, map[string]string{"lower_price": "2300", "upper_price": "1800"}},
		{FixedRangeName, map[string]string{"lower_price": "1800", "upper_price": "2300", "start": "soon"}},
		{PeriodicRebalanceName, map[string]string{"interval": "-1h"}},
		{PeriodicRebalanceName, map[string]string{"width": "1.5"}},
		{PeriodicRebalanceName, map[string]string{"interval": "often"}},
	}
	for _, tc := range cases {
		_, err := New(tc.name, tc.params)
		assert.Error(t, err, "%s %v", tc.name, tc.params)
	}
}

func TestFixedRangeDepositsOnce(t *testing.T) {
	m := newMarket(t)
	s, err := New(FixedRangeName, map[string]string{
		"lower_price": "1800",
		"upper_price": "2300",
		"start":       "2024-01-01 00:30:00",
	})
	require.NoError(t, err)

	result, err := backtest.NewRunner(m, s, backtest.Options{StopOnError: true}).
		Run(context.Background(), halfHourBars(m.Pool(), 200000, 200010, 200020))
	require.NoError(t, err)

	counts := kinds(result.Actions)
	assert.Equal(t, 1, counts[model.ActionBuy])
	assert.Equal(t, 1, counts[model.ActionAddLiquidity])
	assert.Equal(t, 1, m.Positions().Len())
	assert.Equal(t, 0, result.Snapshots[0].PositionCount)
	assert.Equal(t, 1, result.Snapshots[1].PositionCount)
}

func TestPeriodicRebalanceRecentres(t *testing.T) {
	m := newMarket(t)
	s, err := New(PeriodicRebalanceName, map[string]string{"interval": "1h", "width": "0.05"})
	require.NoError(t, err)

	result, err := backtest.NewRunner(m, s, backtest.Options{StopOnError: true}).
		Run(context.Background(), halfHourBars(m.Pool(), 200000, 200100, 200600))
	require.NoError(t, err)

	counts := kinds(result.Actions)
	assert.Equal(t, 2, counts[model.ActionAddLiquidity])
	assert.Equal(t, 1, counts[model.ActionRemoveLiquidity])
	assert.Equal(t, 1, m.Positions().Len())

	pos := m.Positions().Positions()[0]
	assert.True(t, pos.Range.Contains(200600), pos.Range.String())
}
