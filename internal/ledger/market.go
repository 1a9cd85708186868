package ledger

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"liquiditySim/internal/model"
	"liquiditySim/internal/unimath"
)

// MarketOption configures a Market.
type MarketOption func(*Market)

// WithLogger sets the logger used for ledger events.
func WithLogger(logger *zap.Logger) MarketOption {
	return func(m *Market) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithAssetOptions forwards options to the underlying AssetLedger.
func WithAssetOptions(opts ...AssetOption) MarketOption {
	return func(m *Market) {
		m.assetOpts = append(m.assetOpts, opts...)
	}
}

// Market is the account on a single pool: token balances, positions and the
// action log, driven bar by bar.
type Market struct {
	pool      model.Pool
	prices    unimath.PriceConverter
	assets    *AssetLedger
	positions *PositionLedger
	log       *ActionLog
	logger    *zap.Logger
	assetOpts []AssetOption

	status    model.BarStatus
	hasStatus bool
}

func NewMarket(pool model.Pool, opts ...MarketOption) *Market {
	m := &Market{
		pool:   pool,
		prices: unimath.PriceConverter{Pool: pool},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.assets = NewAssetLedger([]model.TokenUnit{pool.Token0, pool.Token1}, m.assetOpts...)
	m.log = NewActionLog()
	m.positions = NewPositionLedger(pool, unimath.NewCalculator(pool), m.prices, m.assets, m.log)
	return m
}

func (m *Market) Pool() model.Pool { return m.pool }
func (m *Market) Assets() *AssetLedger { return m.assets }
func (m *Market) Positions() *PositionLedger { return m.positions }
func (m *Market) ActionLog() *ActionLog { return m.log }
func (m *Market) Status() model.BarStatus { return m.status }
func (m *Market) Price() decimal.Decimal { return m.status.Price }
func (m *Market) Prices() unimath.PriceConverter { return m.prices }

// SetStatus moves the market to a new bar.
func (m *Market) SetStatus(status model.BarStatus) {
	m.status = status
	m.hasStatus = true
	m.positions.SetTime(status.Timestamp)
}

// SetBalance funds the account with an initial balance of token.
func (m *Market) SetBalance(token model.TokenUnit, amount decimal.Decimal) error {
	return m.assets.Set(token, amount)
}

// BaseBalance and QuoteBalance return the free balances.
func (m *Market) BaseBalance() decimal.Decimal { return m.assets.Balance(m.pool.BaseToken) }
func (m *Market) QuoteBalance() decimal.Decimal { return m.assets.Balance(m.pool.QuoteToken()) }

// AddLiquidity deposits up to baseMax and quoteMax into [lowerTick, upperTick]
// at the current tick.
func (m *Market) AddLiquidity(lowerTick, upperTick int, baseMax, quoteMax decimal.Decimal) (*model.AddLiquidityAction, error) {
	if !m.hasStatus {
		return nil, ErrNoMarketStatus
	}
	amount0, amount1 := m.pool.Token01(baseMax, quoteMax)
	r := model.PriceRange{LowerTick: lowerTick, UpperTick: upperTick}
	action, err := m.positions.OpenOrIncrease(r, amount0, amount1, m.status.CurrentTick)
	if err != nil {
		return nil, fmt.Errorf("add liquidity %s: %w", r, err)
	}
	m.logger.Debug("liquidity added",
		zap.Stringer("range", r),
		zap.String("liquidity", action.Liquidity.String()),
		zap.Stringer("base", action.BaseAmountActual),
		zap.Stringer("quote", action.QuoteAmountActual),
	)
	return action, nil
}

// AddLiquidityByPrice deposits into the range between two base-per-quote
// prices. Ticks are aligned to the pool's tick spacing; a range that collapses
// after alignment is widened by one spacing.
func (m *Market) AddLiquidityByPrice(lowerPrice, upperPrice, baseMax, quoteMax decimal.Decimal) (*model.AddLiquidityAction, error) {
	lowerTick, err := m.prices.PriceToTick(lowerPrice)
	if err != nil {
		return nil, fmt.Errorf("lower price: %w", err)
	}
	upperTick, err := m.prices.PriceToTick(upperPrice)
	if err != nil {
		return nil, fmt.Errorf("upper price: %w", err)
	}
	lowerTick = unimath.AlignTick(lowerTick, m.pool.TickSpacing)
	upperTick = unimath.AlignTick(upperTick, m.pool.TickSpacing)
	if lowerTick > upperTick {
		lowerTick, upperTick = upperTick, lowerTick
	}
	if lowerTick == upperTick {
		upperTick += m.pool.TickSpacing
	}
	return m.AddLiquidity(lowerTick, upperTick, baseMax, quoteMax)
}

// RemoveLiquidity withdraws liquidity from r; a nil liquidity removes all of
// it. With collect set the position's pending fees are collected afterwards.
// A position left holding only pending fees has nothing to burn, so the
// returned action is nil and only the collect step runs.
func (m *Market) RemoveLiquidity(r model.PriceRange, liquidity *big.Int, collect bool) (*model.RemoveLiquidityAction, error) {
	if !m.hasStatus {
		return nil, ErrNoMarketStatus
	}
	if liquidity == nil {
		pos, ok := m.positions.Get(r)
		if !ok {
			return nil, fmt.Errorf("remove liquidity: %w: %s", ErrPositionNotFound, r)
		}
		liquidity = pos.Liquidity
	}

	var action *model.RemoveLiquidityAction
	if liquidity.Sign() != 0 {
		var err error
		action, err = m.positions.Remove(r, liquidity, m.status.CurrentTick)
		if err != nil {
			return nil, fmt.Errorf("remove liquidity %s: %w", r, err)
		}
		m.logger.Debug("liquidity removed",
			zap.Stringer("range", r),
			zap.String("removed", action.RemovedLiquidity.String()),
			zap.String("remain", action.RemainLiquidity.String()),
		)
	}
	if collect {
		if _, ok := m.positions.Get(r); ok {
			if _, err := m.CollectFee(r); err != nil {
				return action, err
			}
		}
	}
	return action, nil
}

// RemoveAll withdraws every position and, with collect set, collects all
// pending fees.
func (m *Market) RemoveAll(collect bool) error {
	if !m.hasStatus {
		return ErrNoMarketStatus
	}
	if _, err := m.positions.RemoveAll(m.status.CurrentTick); err != nil {
		return fmt.Errorf("remove all: %w", err)
	}
	if !collect {
		return nil
	}
	for _, pos := range m.positions.Positions() {
		if _, err := m.CollectFee(pos.Range); err != nil {
			return err
		}
	}
	return nil
}

// CollectFee moves the pending fees of r into the balances.
func (m *Market) CollectFee(r model.PriceRange) (*model.CollectFeeAction, error) {
	action, err := m.positions.CollectFees(r)
	if err != nil {
		return nil, fmt.Errorf("collect fee %s: %w", r, err)
	}
	m.logger.Debug("fee collected",
		zap.Stringer("range", r),
		zap.Stringer("base", action.BaseAmount),
		zap.Stringer("quote", action.QuoteAmount),
	)
	return action, nil
}

// Buy swaps base token for amount of quote token at price (base per quote).
// A zero price uses the current bar price. The pool fee is charged on the
// traded value and paid in base token.
func (m *Market) Buy(amount, price decimal.Decimal) (*model.BuyAction, error) {
	price, err := m.tradePrice(amount, price)
	if err != nil {
		return nil, fmt.Errorf("buy: %w", err)
	}
	base, quote := m.pool.BaseToken, m.pool.QuoteToken()
	value := amount.Mul(price)
	fee := value.Mul(m.pool.FeeRate())
	cost := value.Add(fee)

	next, err := m.assets.planDebit(base, cost, false)
	if err != nil {
		return nil, fmt.Errorf("buy: %w", err)
	}
	m.assets.balances[base] = next
	m.assets.balances[quote] = m.assets.balances[quote].Add(amount)

	action := &model.BuyAction{
		ActionHeader: m.positions.header(),
		Amount:       model.NewAmount(amount, quote),
		Price:        model.PriceAmount(price, m.pool),
		Fee:          model.NewAmount(fee, base),
		BaseChange:   model.NewAmount(cost.Neg(), base),
		QuoteChange:  model.NewAmount(amount, quote),
	}
	m.log.Append(action)
	m.logger.Debug("buy", zap.Stringer("amount", action.Amount), zap.Stringer("price", action.Price))
	return action, nil
}

// Sell swaps amount of quote token for base token at price. A zero price uses
// the current bar price. The fee is deducted from the base proceeds.
func (m *Market) Sell(amount, price decimal.Decimal) (*model.SellAction, error) {
	price, err := m.tradePrice(amount, price)
	if err != nil {
		return nil, fmt.Errorf("sell: %w", err)
	}
	base, quote := m.pool.BaseToken, m.pool.QuoteToken()
	value := amount.Mul(price)
	fee := value.Mul(m.pool.FeeRate())
	proceeds := value.Sub(fee)

	next, err := m.assets.planDebit(quote, amount, false)
	if err != nil {
		return nil, fmt.Errorf("sell: %w", err)
	}
	m.assets.balances[quote] = next
	m.assets.balances[base] = m.assets.balances[base].Add(proceeds)

	action := &model.SellAction{
		ActionHeader: m.positions.header(),
		Amount:       model.NewAmount(amount, quote),
		Price:        model.PriceAmount(price, m.pool),
		Fee:          model.NewAmount(fee, base),
		BaseChange:   model.NewAmount(proceeds, base),
		QuoteChange:  model.NewAmount(amount.Neg(), quote),
	}
	m.log.Append(action)
	m.logger.Debug("sell", zap.Stringer("amount", action.Amount), zap.Stringer("price", action.Price))
	return action, nil
}

// EvenRebalance trades the free balances so that half of their value at price
// is held in each token. A zero price uses the current bar price.
func (m *Market) EvenRebalance(price decimal.Decimal) error {
	if price.IsZero() {
		price = m.status.Price
	}
	if !price.IsPositive() {
		return fmt.Errorf("even rebalance: %w: price %s", ErrInvalidAmount, price)
	}
	quote := m.QuoteBalance()
	total := m.BaseBalance().Add(quote.Mul(price))
	diff := total.Div(decimal.NewFromInt(2)).Div(price).Sub(quote)
	switch diff.Sign() {
	case 1:
		_, err := m.Buy(diff, price)
		return err
	case -1:
		_, err := m.Sell(diff.Neg(), price)
		return err
	}
	return nil
}

// AccrueFees credits the current bar's swap fees to the positions in range.
func (m *Market) AccrueFees() {
	if m.hasStatus {
		m.positions.AccrueFees(m.status)
	}
}

// Snapshot values the account at price; a zero price uses the current bar
// price.
func (m *Market) Snapshot(price decimal.Decimal) (Snapshot, error) {
	if price.IsZero() {
		price = m.status.Price
	}
	return m.positions.TakeSnapshot(price)
}

func (m *Market) tradePrice(amount, price decimal.Decimal) (decimal.Decimal, error) {
	if price.IsZero() {
		price = m.status.Price
	}
	if !price.IsPositive() {
		return price, fmt.Errorf("%w: price %s", ErrInvalidAmount, price)
	}
	if !amount.IsPositive() {
		return price, fmt.Errorf("%w: trade amount %s", ErrInvalidAmount, amount)
	}
	return price, nil
}
