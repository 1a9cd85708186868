package model

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// ActionKind names an action variant.
type ActionKind string

const (
	ActionAddLiquidity    ActionKind = "add_liquidity"
	ActionRemoveLiquidity ActionKind = "remove_liquidity"
	ActionCollectFee      ActionKind = "collect_fee"
	ActionBuy             ActionKind = "buy"
	ActionSell            ActionKind = "sell"
)

// Action is a ledger mutation record. The set of implementations is closed:
// *AddLiquidityAction, *RemoveLiquidityAction, *CollectFeeAction, *BuyAction
// and *SellAction.
type Action interface {
	Kind() ActionKind
	Header() ActionHeader
	// Clone returns a deep copy that shares no mutable state with the receiver.
	Clone() Action
	isAction()
}

// ActionHeader carries the fields common to every action, including the
// balances of both tokens after the action was applied.
type ActionHeader struct {
	Timestamp         time.Time `json:"timestamp"`
	BaseBalanceAfter  Amount    `json:"base_balance_after"`
	QuoteBalanceAfter Amount    `json:"quote_balance_after"`
}

func (h ActionHeader) Header() ActionHeader { return h }

func (ActionHeader) isAction() {}

// AddLiquidityAction records liquidity deposited into a range.
type AddLiquidityAction struct {
	ActionHeader
	BaseAmountMax     Amount     `json:"base_amount_max"`
	QuoteAmountMax    Amount     `json:"quote_amount_max"`
	LowerQuotePrice   Amount     `json:"lower_quote_price"`
	UpperQuotePrice   Amount     `json:"upper_quote_price"`
	BaseAmountActual  Amount     `json:"base_amount_actual"`
	QuoteAmountActual Amount     `json:"quote_amount_actual"`
	Position          PriceRange `json:"position"`
	Liquidity         *big.Int   `json:"liquidity"`
}

func (*AddLiquidityAction) Kind() ActionKind { return ActionAddLiquidity }

func (a *AddLiquidityAction) Clone() Action {
	c := *a
	c.Liquidity = cloneBig(a.Liquidity)
	return &c
}

// RemoveLiquidityAction records liquidity withdrawn from a range.
type RemoveLiquidityAction struct {
	ActionHeader
	Position         PriceRange `json:"position"`
	BaseAmount       Amount     `json:"base_amount"`
	QuoteAmount      Amount     `json:"quote_amount"`
	RemovedLiquidity *big.Int   `json:"removed_liquidity"`
	RemainLiquidity  *big.Int   `json:"remain_liquidity"`
}

func (*RemoveLiquidityAction) Kind() ActionKind { return ActionRemoveLiquidity }

func (a *RemoveLiquidityAction) Clone() Action {
	c := *a
	c.RemovedLiquidity = cloneBig(a.RemovedLiquidity)
	c.RemainLiquidity = cloneBig(a.RemainLiquidity)
	return &c
}

// CollectFeeAction records pending fees moved into the asset balances.
type CollectFeeAction struct {
	ActionHeader
	Position    PriceRange `json:"position"`
	BaseAmount  Amount     `json:"base_amount"`
	QuoteAmount Amount     `json:"quote_amount"`
}

func (*CollectFeeAction) Kind() ActionKind { return ActionCollectFee }

func (a *CollectFeeAction) Clone() Action {
	c := *a
	return &c
}

// BuyAction records a swap from base token into quote token. Amount is in
// quote token, Fee in base token.
type BuyAction struct {
	ActionHeader
	Amount      Amount `json:"amount"`
	Price       Amount `json:"price"`
	Fee         Amount `json:"fee"`
	BaseChange  Amount `json:"base_change"`
	QuoteChange Amount `json:"quote_change"`
}

func (*BuyAction) Kind() ActionKind { return ActionBuy }

func (a *BuyAction) Clone() Action {
	c := *a
	return &c
}

// SellAction records a swap from quote token into base token. Amount is in
// quote token, Fee in base token.
type SellAction struct {
	ActionHeader
	Amount      Amount `json:"amount"`
	Price       Amount `json:"price"`
	Fee         Amount `json:"fee"`
	BaseChange  Amount `json:"base_change"`
	QuoteChange Amount `json:"quote_change"`
}

func (*SellAction) Kind() ActionKind { return ActionSell }

func (a *SellAction) Clone() Action {
	c := *a
	return &c
}

// PriceAmount tags a price with its "base/quote" unit.
func PriceAmount(price decimal.Decimal, pool Pool) Amount {
	return Amount{Value: price, Unit: pool.BaseToken.Name + "/" + pool.QuoteToken().Name}
}

func cloneBig(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
