package model

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// Position is an open liquidity position owned by a wallet. Handle is the
// position manager NFT token id.
type Position struct {
	Handle     string          `json:"handle"`
	PoolID     string          `json:"pool_id"`
	Token0     Token           `json:"token0"`
	Token1     Token           `json:"token1"`
	Fee        uint32          `json:"fee"`
	TickLower  int32           `json:"tick_lower"`
	TickUpper  int32           `json:"tick_upper"`
	Liquidity  *big.Int        `json:"liquidity"`
	PriceLower decimal.Decimal `json:"price_lower"`
	PriceUpper decimal.Decimal `json:"price_upper"`
	Amount0    decimal.Decimal `json:"amount0"`
	Amount1    decimal.Decimal `json:"amount1"`
	InRange    bool            `json:"in_range"`
	Rewards    []Reward        `json:"rewards,omitempty"`
}

// Reward is an uncollected amount owed to a position.
type Reward struct {
	Token  Token           `json:"token"`
	Amount decimal.Decimal `json:"amount"`
}

// HasLiquidity reports whether the position still holds liquidity.
func (p Position) HasLiquidity() bool {
	return p.Liquidity != nil && p.Liquidity.Sign() > 0
}

// OpenOrder is a fully sized request to mint a new position.
type OpenOrder struct {
	Pool           PoolSnapshot
	BaseToken      Token
	BaseAmount     *big.Int
	OtherAmountMax *big.Int
	TickLower      int32
	TickUpper      int32
}

// OpenReceipt describes a mined mint transaction.
type OpenReceipt struct {
	TxHash    string
	Handle    string
	Liquidity *big.Int
	Amount0   *big.Int
	Amount1   *big.Int
}

// CloseOrder removes all liquidity from a position. Minimum outputs are
// deliberately zero on exit.
type CloseOrder struct {
	Handle     string
	PoolID     string
	Liquidity  *big.Int
	MinAmount0 *big.Int
	MinAmount1 *big.Int
	Burn       bool
}
