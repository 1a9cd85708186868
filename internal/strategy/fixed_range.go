package strategy

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"liquiditySim/internal/ledger"
	"liquiditySim/internal/model"
)

// FixedRange provides liquidity once, between two fixed prices, and holds the
// position for the rest of the run.
type FixedRange struct {
	LowerPrice decimal.Decimal
	UpperPrice decimal.Decimal
	// Start delays the deposit to the first bar at or after it.
	Start time.Time
	// Rebalance splits the balances evenly by value before depositing.
	Rebalance bool

	done bool
}

func newFixedRange(p Params) (*FixedRange, error) {
	lower, err := p.requiredDecimal("lower_price")
	if err != nil {
		return nil, err
	}
	upper, err := p.requiredDecimal("upper_price")
	if err != nil {
		return nil, err
	}
	if !lower.IsPositive() || !lower.LessThan(upper) {
		return nil, fmt.Errorf("price range [%s, %s] must be positive and increasing", lower, upper)
	}
	start, err := p.time("start")
	if err != nil {
		return nil, err
	}
	rebalance, err := p.bool("rebalance", true)
	if err != nil {
		return nil, err
	}
	return &FixedRange{LowerPrice: lower, UpperPrice: upper, Start: start, Rebalance: rebalance}, nil
}

func (s *FixedRange) Name() string { return FixedRangeName }

func (s *FixedRange) Init(*ledger.Market) error {
	s.done = false
	return nil
}

func (s *FixedRange) OnBar(m *ledger.Market, bar model.Bar) error {
	if s.done || bar.Timestamp.Before(s.Start) {
		return nil
	}
	if s.Rebalance {
		if err := m.EvenRebalance(bar.Price); err != nil {
			return err
		}
	}
	if _, err := m.AddLiquidityByPrice(s.LowerPrice, s.UpperPrice, m.BaseBalance(), m.QuoteBalance()); err != nil {
		return err
	}
	s.done = true
	return nil
}
