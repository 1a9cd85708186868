package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Snapshot is the account state at one point in time. Every amount is
// human scale; NetValue is denominated in the base token.
type Snapshot struct {
	Timestamp        time.Time       `json:"timestamp"`
	Price            decimal.Decimal `json:"price"`
	BaseBalance      decimal.Decimal `json:"base_balance"`
	QuoteBalance     decimal.Decimal `json:"quote_balance"`
	BaseUncollected  decimal.Decimal `json:"base_uncollected"`
	QuoteUncollected decimal.Decimal `json:"quote_uncollected"`
	BaseInPosition   decimal.Decimal `json:"base_in_position"`
	QuoteInPosition  decimal.Decimal `json:"quote_in_position"`
	PositionCount    int             `json:"position_count"`
	NetValue         decimal.Decimal `json:"net_value"`
}

// TakeSnapshot values the account at price, given in base per quote. The
// liquidity of every position is valued at the tick derived from price.
// Nothing is cached; each call recomputes from the ledgers.
func (p *PositionLedger) TakeSnapshot(price decimal.Decimal) (Snapshot, error) {
	if !price.IsPositive() {
		return Snapshot{}, fmt.Errorf("%w: price %s must be positive", ErrInvalidAmount, price)
	}
	tick, err := p.prices.PriceToTick(price)
	if err != nil {
		return Snapshot{}, fmt.Errorf("price to tick: %w", err)
	}

	var pending0, pending1, held0, held1 decimal.Decimal
	for _, r := range p.order {
		pos := p.positions[r]
		pending0 = pending0.Add(pos.PendingAmount0)
		pending1 = pending1.Add(pos.PendingAmount1)
		if pos.Liquidity.Sign() == 0 {
			continue
		}
		amount0, amount1, err := p.math.AmountsForLiquidity(r, pos.Liquidity, tick)
		if err != nil {
			return Snapshot{}, fmt.Errorf("value position %s: %w", r, err)
		}
		held0 = held0.Add(amount0)
		held1 = held1.Add(amount1)
	}

	base, quote := p.pool.BaseQuote(p.assets.Balance(p.pool.Token0), p.assets.Balance(p.pool.Token1))
	baseUncollected, quoteUncollected := p.pool.BaseQuote(pending0, pending1)
	baseHeld, quoteHeld := p.pool.BaseQuote(held0, held1)

	totalBase := base.Add(baseUncollected).Add(baseHeld)
	totalQuote := quote.Add(quoteUncollected).Add(quoteHeld)

	return Snapshot{
		Timestamp:        p.now,
		Price:            price,
		BaseBalance:      base,
		QuoteBalance:     quote,
		BaseUncollected:  baseUncollected,
		QuoteUncollected: quoteUncollected,
		BaseInPosition:   baseHeld,
		QuoteInPosition:  quoteHeld,
		PositionCount:    len(p.order),
		NetValue:         totalBase.Add(totalQuote.Mul(price)),
	}, nil
}
