package model

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// PoolSnapshot is a point-in-time view of a concentrated-liquidity pool.
// CurrentPrice is token1 per token0 in human units.
type PoolSnapshot struct {
	ID           string          `json:"id"`
	Token0       Token           `json:"token0"`
	Token1       Token           `json:"token1"`
	Fee          uint32          `json:"fee"`
	TickSpacing  int32           `json:"tick_spacing"`
	Tick         int32           `json:"tick"`
	SqrtPriceX96 *big.Int        `json:"sqrt_price_x96"`
	Liquidity    *big.Int        `json:"liquidity,omitempty"`
	CurrentPrice decimal.Decimal `json:"current_price"`
}

// Tokens returns the pair in pool order.
func (p PoolSnapshot) Tokens() [2]Token {
	return [2]Token{p.Token0, p.Token1}
}

// Complete reports whether both sides of the pair carry an address and symbol.
func (p PoolSnapshot) Complete() bool {
	return p.Token0.Address != "" && p.Token0.Symbol != "" &&
		p.Token1.Address != "" && p.Token1.Symbol != ""
}

// FeePercent renders the fee tier (hundredths of a bip) as a percentage.
func (p PoolSnapshot) FeePercent() decimal.Decimal {
	return decimal.New(int64(p.Fee), -4)
}
