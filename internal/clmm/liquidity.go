package clmm

import (
	"errors"
	"math/big"

	"github.com/shopspring/decimal"
)

var ErrBaseOutOfRange = errors.New("base token is not used by this price range")

// AmountsForLiquidity returns the token amounts represented by liquidity
// between sqrtA and sqrtB at the current sqrtP.
func AmountsForLiquidity(sqrtP, sqrtA, sqrtB, liquidity *big.Int) (*big.Int, *big.Int) {
	if sqrtA.Cmp(sqrtB) > 0 {
		sqrtA, sqrtB = sqrtB, sqrtA
	}
	amount0 := new(big.Int)
	amount1 := new(big.Int)
	if liquidity == nil || liquidity.Sign() == 0 {
		return amount0, amount1
	}

	switch {
	case sqrtP.Cmp(sqrtA) <= 0:
		amount0 = amount0For(sqrtA, sqrtB, liquidity)
	case sqrtP.Cmp(sqrtB) < 0:
		amount0 = amount0For(sqrtP, sqrtB, liquidity)
		amount1 = amount1For(sqrtA, sqrtP, liquidity)
	default:
		amount1 = amount1For(sqrtA, sqrtB, liquidity)
	}
	return amount0, amount1
}

func amount0For(sqrtLo, sqrtHi, liquidity *big.Int) *big.Int {
	num := new(big.Int).Mul(liquidity, q96)
	num.Mul(num, new(big.Int).Sub(sqrtHi, sqrtLo))
	num.Quo(num, sqrtHi)
	return num.Quo(num, sqrtLo)
}

func amount1For(sqrtLo, sqrtHi, liquidity *big.Int) *big.Int {
	num := new(big.Int).Mul(liquidity, new(big.Int).Sub(sqrtHi, sqrtLo))
	return num.Quo(num, q96)
}

// LiquidityForAmount0 is the liquidity that amount0 of token0 provides
// between sqrtLo and sqrtHi.
func LiquidityForAmount0(sqrtLo, sqrtHi, amount0 *big.Int) *big.Int {
	if sqrtLo.Cmp(sqrtHi) > 0 {
		sqrtLo, sqrtHi = sqrtHi, sqrtLo
	}
	diff := new(big.Int).Sub(sqrtHi, sqrtLo)
	if diff.Sign() == 0 {
		return new(big.Int)
	}
	intermediate := new(big.Int).Mul(sqrtLo, sqrtHi)
	intermediate.Quo(intermediate, q96)
	out := new(big.Int).Mul(amount0, intermediate)
	return out.Quo(out, diff)
}

// LiquidityForAmount1 is the liquidity that amount1 of token1 provides
// between sqrtLo and sqrtHi.
func LiquidityForAmount1(sqrtLo, sqrtHi, amount1 *big.Int) *big.Int {
	if sqrtLo.Cmp(sqrtHi) > 0 {
		sqrtLo, sqrtHi = sqrtHi, sqrtLo
	}
	diff := new(big.Int).Sub(sqrtHi, sqrtLo)
	if diff.Sign() == 0 {
		return new(big.Int)
	}
	out := new(big.Int).Mul(amount1, q96)
	return out.Quo(out, diff)
}

// OtherAmountForBase sizes the counter-token deposit required when
// baseAmount of the base side is supplied into [tickLower, tickUpper].
func OtherAmountForBase(sqrtP *big.Int, tickLower, tickUpper int32, baseIsToken0 bool, baseAmount *big.Int) (*big.Int, error) {
	tickLower, tickUpper = NormalizeTicks(tickLower, tickUpper)
	sqrtA := SqrtRatioAtTick(tickLower)
	sqrtB := SqrtRatioAtTick(tickUpper)

	if baseIsToken0 {
		if sqrtP.Cmp(sqrtB) >= 0 {
			return nil, ErrBaseOutOfRange
		}
		from := sqrtP
		if from.Cmp(sqrtA) < 0 {
			from = sqrtA
		}
		liquidity := LiquidityForAmount0(from, sqrtB, baseAmount)
		_, other := AmountsForLiquidity(sqrtP, sqrtA, sqrtB, liquidity)
		return other, nil
	}

	if sqrtP.Cmp(sqrtA) <= 0 {
		return nil, ErrBaseOutOfRange
	}
	to := sqrtP
	if to.Cmp(sqrtB) > 0 {
		to = sqrtB
	}
	liquidity := LiquidityForAmount1(sqrtA, to, baseAmount)
	other, _ := AmountsForLiquidity(sqrtP, sqrtA, sqrtB, liquidity)
	return other, nil
}

// ApplySlippage scales amount up by (1 + slippage), rounding up.
func ApplySlippage(amount *big.Int, slippage decimal.Decimal) *big.Int {
	if amount == nil {
		return new(big.Int)
	}
	factor := decimal.NewFromInt(1).Add(slippage)
	return decimal.NewFromBigInt(amount, 0).Mul(factor).Ceil().BigInt()
}

// ToBaseUnits converts a human amount into integer base units, rounding
// half up.
func ToBaseUnits(amount decimal.Decimal, decimals uint8) *big.Int {
	return amount.Shift(int32(decimals)).Round(0).BigInt()
}

// FromBaseUnits converts integer base units into a human amount.
func FromBaseUnits(value *big.Int, decimals uint8) decimal.Decimal {
	if value == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(value, -int32(decimals))
}
