package ledger

import (
	"fmt"
	"math/big"
	"time"

	"github.com/shopspring/decimal"

	"liquiditySim/internal/model"
	"liquiditySim/internal/unimath"
)

// LiquidityMath is the AMM formula collaborator. Amounts are human scale in
// token0/token1 order.
type LiquidityMath interface {
	LiquidityForAmounts(r model.PriceRange, amount0, amount1 decimal.Decimal, currentTick int) (*big.Int, decimal.Decimal, decimal.Decimal, error)
	AmountsForLiquidity(r model.PriceRange, liquidity *big.Int, currentTick int) (decimal.Decimal, decimal.Decimal, error)
}

// Prices converts between ticks and base-per-quote prices.
type Prices interface {
	TickToPrice(tick int) decimal.Decimal
	PriceToTick(price decimal.Decimal) (int, error)
}

// PositionLedger tracks open liquidity positions keyed by price range.
// Token movements go through the AssetLedger and every mutation is appended to
// the ActionLog.
type PositionLedger struct {
	pool      model.Pool
	math      LiquidityMath
	prices    Prices
	assets    *AssetLedger
	log       *ActionLog
	positions map[model.PriceRange]*model.Position
	order     []model.PriceRange
	now       time.Time
}

func NewPositionLedger(pool model.Pool, math LiquidityMath, prices Prices, assets *AssetLedger, log *ActionLog) *PositionLedger {
	return &PositionLedger{
		pool:      pool,
		math:      math,
		prices:    prices,
		assets:    assets,
		log:       log,
		positions: make(map[model.PriceRange]*model.Position),
	}
}

// SetTime sets the timestamp stamped on subsequent actions.
func (p *PositionLedger) SetTime(t time.Time) {
	p.now = t
}

// Len returns the number of open positions.
func (p *PositionLedger) Len() int {
	return len(p.order)
}

// Get returns a copy of the position for r.
func (p *PositionLedger) Get(r model.PriceRange) (model.Position, bool) {
	pos, ok := p.positions[r]
	if !ok {
		return model.Position{}, false
	}
	return pos.Clone(), true
}

// Positions returns copies of the open positions in insertion order.
func (p *PositionLedger) Positions() []model.Position {
	out := make([]model.Position, 0, len(p.order))
	for _, r := range p.order {
		out = append(out, p.positions[r].Clone())
	}
	return out
}

// OpenOrIncrease deposits up to the desired amounts into r, creating the
// position on first use. Both token debits are checked before anything is
// mutated.
func (p *PositionLedger) OpenOrIncrease(r model.PriceRange, desired0, desired1 decimal.Decimal, currentTick int) (*model.AddLiquidityAction, error) {
	if err := validateRange(r); err != nil {
		return nil, err
	}
	if desired0.IsNegative() || desired1.IsNegative() {
		return nil, fmt.Errorf("%w: desired amounts %s, %s", ErrInvalidAmount, desired0, desired1)
	}

	liquidity, used0, used1, err := p.math.LiquidityForAmounts(r, desired0, desired1, currentTick)
	if err != nil {
		return nil, fmt.Errorf("liquidity for amounts: %w", err)
	}
	if liquidity == nil || liquidity.Sign() <= 0 {
		return nil, fmt.Errorf("%w: amounts %s, %s yield no liquidity in %s", ErrInvalidAmount, desired0, desired1, r)
	}

	balance0, err := p.assets.planDebit(p.pool.Token0, used0, false)
	if err != nil {
		return nil, err
	}
	balance1, err := p.assets.planDebit(p.pool.Token1, used1, false)
	if err != nil {
		return nil, err
	}
	p.assets.balances[p.pool.Token0] = balance0
	p.assets.balances[p.pool.Token1] = balance1

	pos, ok := p.positions[r]
	if !ok {
		pos = &model.Position{Range: r, Liquidity: big.NewInt(0)}
		p.positions[r] = pos
		p.order = append(p.order, r)
	}
	pos.Liquidity = new(big.Int).Add(pos.Liquidity, liquidity)

	baseMax, quoteMax := p.pool.BaseQuote(desired0, desired1)
	baseUsed, quoteUsed := p.pool.BaseQuote(used0, used1)
	lowerPrice, upperPrice := p.prices.TickToPrice(r.LowerTick), p.prices.TickToPrice(r.UpperTick)
	if lowerPrice.GreaterThan(upperPrice) {
		lowerPrice, upperPrice = upperPrice, lowerPrice
	}
	base, quote := p.pool.BaseToken, p.pool.QuoteToken()

	action := &model.AddLiquidityAction{
		ActionHeader:      p.header(),
		BaseAmountMax:     model.NewAmount(baseMax, base),
		QuoteAmountMax:    model.NewAmount(quoteMax, quote),
		LowerQuotePrice:   model.PriceAmount(lowerPrice, p.pool),
		UpperQuotePrice:   model.PriceAmount(upperPrice, p.pool),
		BaseAmountActual:  model.NewAmount(baseUsed, base),
		QuoteAmountActual: model.NewAmount(quoteUsed, quote),
		Position:          r,
		Liquidity:         liquidity,
	}
	p.log.Append(action)
	return action, nil
}

// CollectFees moves the pending amounts of r into the asset balances.
func (p *PositionLedger) CollectFees(r model.PriceRange) (*model.CollectFeeAction, error) {
	pos, ok := p.positions[r]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPositionNotFound, r)
	}

	amount0, amount1 := pos.PendingAmount0, pos.PendingAmount1
	if _, err := p.assets.Credit(p.pool.Token0, amount0); err != nil {
		return nil, err
	}
	if _, err := p.assets.Credit(p.pool.Token1, amount1); err != nil {
		return nil, err
	}
	pos.PendingAmount0 = decimal.Zero
	pos.PendingAmount1 = decimal.Zero
	p.dropIfEmpty(r)

	baseAmount, quoteAmount := p.pool.BaseQuote(amount0, amount1)
	action := &model.CollectFeeAction{
		ActionHeader: p.header(),
		Position:     r,
		BaseAmount:   model.NewAmount(baseAmount, p.pool.BaseToken),
		QuoteAmount:  model.NewAmount(quoteAmount, p.pool.QuoteToken()),
	}
	p.log.Append(action)
	return action, nil
}

// Remove burns liquidity from r and credits the released tokens. The position
// is deleted once it holds no liquidity and no pending amounts.
func (p *PositionLedger) Remove(r model.PriceRange, liquidity *big.Int, currentTick int) (*model.RemoveLiquidityAction, error) {
	pos, ok := p.positions[r]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPositionNotFound, r)
	}
	if liquidity == nil || liquidity.Sign() <= 0 || liquidity.Cmp(pos.Liquidity) > 0 {
		return nil, fmt.Errorf("%w: liquidity %v not in (0, %s]", ErrInvalidAmount, liquidity, pos.Liquidity)
	}

	amount0, amount1, err := p.math.AmountsForLiquidity(r, liquidity, currentTick)
	if err != nil {
		return nil, fmt.Errorf("amounts for liquidity: %w", err)
	}
	if amount0.IsNegative() || amount1.IsNegative() {
		return nil, fmt.Errorf("%w: negative amounts %s, %s for liquidity", ErrInvalidAmount, amount0, amount1)
	}
	p.assets.balances[p.pool.Token0] = p.assets.balances[p.pool.Token0].Add(amount0)
	p.assets.balances[p.pool.Token1] = p.assets.balances[p.pool.Token1].Add(amount1)

	removed := new(big.Int).Set(liquidity)
	pos.Liquidity = new(big.Int).Sub(pos.Liquidity, removed)
	remain := new(big.Int).Set(pos.Liquidity)
	p.dropIfEmpty(r)

	baseAmount, quoteAmount := p.pool.BaseQuote(amount0, amount1)
	action := &model.RemoveLiquidityAction{
		ActionHeader:     p.header(),
		Position:         r,
		BaseAmount:       model.NewAmount(baseAmount, p.pool.BaseToken),
		QuoteAmount:      model.NewAmount(quoteAmount, p.pool.QuoteToken()),
		RemovedLiquidity: removed,
		RemainLiquidity:  remain,
	}
	p.log.Append(action)
	return action, nil
}

// RemoveAll withdraws the full liquidity of every open position in insertion
// order. Positions holding only pending amounts are left for CollectFees.
func (p *PositionLedger) RemoveAll(currentTick int) ([]*model.RemoveLiquidityAction, error) {
	ranges := append([]model.PriceRange(nil), p.order...)
	actions := make([]*model.RemoveLiquidityAction, 0, len(ranges))
	for _, r := range ranges {
		pos, ok := p.positions[r]
		if !ok || pos.Liquidity.Sign() == 0 {
			continue
		}
		action, err := p.Remove(r, pos.Liquidity, currentTick)
		if err != nil {
			return actions, fmt.Errorf("remove %s: %w", r, err)
		}
		actions = append(actions, action)
	}
	return actions, nil
}

// AccrueFees adds the fees earned during one bar to the pending amounts of
// every position the bar's price movement touched. Each position earns the
// pool's fee on the bar's inflows pro rata to its share of pool liquidity,
// scaled by the fraction of the bar's tick span that lies inside its range.
// A bar that stays on one tick counts fully for every range containing it.
func (p *PositionLedger) AccrueFees(status model.BarStatus) {
	if status.CurrentLiquidity == nil || status.CurrentLiquidity.Sign() <= 0 {
		return
	}
	poolLiquidity := decimal.NewFromBigInt(status.CurrentLiquidity, 0)
	feeRate := p.pool.FeeRate()
	in0 := p.pool.Token0.FromMinor(status.InAmount0)
	in1 := p.pool.Token1.FromMinor(status.InAmount1)

	low, high := status.CurrentTick, status.CurrentTick
	if status.PreviousTick != nil {
		low, high = minInt(*status.PreviousTick, status.CurrentTick), maxInt(*status.PreviousTick, status.CurrentTick)
	}

	for _, r := range p.order {
		pos := p.positions[r]
		if pos.Liquidity.Sign() == 0 {
			continue
		}
		fraction := spanOverlap(low, high, r)
		if fraction.IsZero() {
			continue
		}
		share := decimal.NewFromBigInt(pos.Liquidity, 0).Div(poolLiquidity).Mul(fraction)
		pos.PendingAmount0 = pos.PendingAmount0.Add(in0.Mul(feeRate).Mul(share))
		pos.PendingAmount1 = pos.PendingAmount1.Add(in1.Mul(feeRate).Mul(share))
	}
}

// spanOverlap returns the fraction of the tick span [low, high] covered by r.
func spanOverlap(low, high int, r model.PriceRange) decimal.Decimal {
	if low == high {
		if low < r.LowerTick || low > r.UpperTick {
			return decimal.Zero
		}
		return decimal.NewFromInt(1)
	}
	overlap := minInt(high, r.UpperTick) - maxInt(low, r.LowerTick)
	if overlap <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(overlap)).Div(decimal.NewFromInt(int64(high - low)))
}

func (p *PositionLedger) dropIfEmpty(r model.PriceRange) {
	pos, ok := p.positions[r]
	if !ok || !pos.Empty() {
		return
	}
	delete(p.positions, r)
	for i, key := range p.order {
		if key == r {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
}

func (p *PositionLedger) header() model.ActionHeader {
	base, quote := p.pool.BaseQuote(p.assets.Balance(p.pool.Token0), p.assets.Balance(p.pool.Token1))
	return model.ActionHeader{
		Timestamp:         p.now,
		BaseBalanceAfter:  model.NewAmount(base, p.pool.BaseToken),
		QuoteBalanceAfter: model.NewAmount(quote, p.pool.QuoteToken()),
	}
}

func validateRange(r model.PriceRange) error {
	if r.LowerTick >= r.UpperTick {
		return fmt.Errorf("%w: lower tick %d must be below upper tick %d", ErrInvalidRange, r.LowerTick, r.UpperTick)
	}
	if r.LowerTick < unimath.MinTick || r.UpperTick > unimath.MaxTick {
		return fmt.Errorf("%w: %s outside [%d, %d]", ErrInvalidRange, r, unimath.MinTick, unimath.MaxTick)
	}
	return nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
