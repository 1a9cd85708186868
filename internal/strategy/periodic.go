package strategy

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"liquiditySim/internal/ledger"
	"liquiditySim/internal/model"
)

// PeriodicRebalance re-centres a single position around the current price
// every Interval: it withdraws everything, splits the balances evenly by value
// and deposits into [price*(1-Width), price*(1+Width)].
type PeriodicRebalance struct {
	Interval time.Duration
	Width    decimal.Decimal

	last time.Time
}

func newPeriodicRebalance(p Params) (*PeriodicRebalance, error) {
	interval, err := p.duration("interval", 24*time.Hour)
	if err != nil {
		return nil, err
	}
	if interval <= 0 {
		return nil, fmt.Errorf("interval %s must be positive", interval)
	}
	width, err := p.decimal("width", decimal.New(1, -1))
	if err != nil {
		return nil, err
	}
	if !width.IsPositive() || !width.LessThan(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("width %s must be in (0, 1)", width)
	}
	return &PeriodicRebalance{Interval: interval, Width: width}, nil
}

func (s *PeriodicRebalance) Name() string { return PeriodicRebalanceName }

func (s *PeriodicRebalance) Init(*ledger.Market) error {
	s.last = time.Time{}
	return nil
}

func (s *PeriodicRebalance) OnBar(m *ledger.Market, bar model.Bar) error {
	if !s.last.IsZero() && bar.Timestamp.Sub(s.last) < s.Interval {
		return nil
	}
	s.last = bar.Timestamp

	if err := m.RemoveAll(true); err != nil {
		return err
	}
	if err := m.EvenRebalance(bar.Price); err != nil {
		return err
	}
	one := decimal.NewFromInt(1)
	lower := bar.Price.Mul(one.Sub(s.Width))
	upper := bar.Price.Mul(one.Add(s.Width))
	if _, err := m.AddLiquidityByPrice(lower, upper, m.BaseBalance(), m.QuoteBalance()); err != nil {
		return err
	}
	return nil
}
