// Package clmm holds concentrated-liquidity price and tick math for
// Uniswap V3 style pools.
package clmm

import (
	"fmt"
	"math"
	"math/big"

	"github.com/shopspring/decimal"
)

const (
	MinTick int32 = -887272
	MaxTick int32 = 887272

	floatPrec  = 256
	priceScale = 18
)

var (
	q96      = new(big.Int).Lsh(big.NewInt(1), 96)
	q192     = new(big.Int).Lsh(big.NewInt(1), 192)
	logBase  = math.Log(1.0001)
	tickBase = mustFloat("1.0001")
)

func mustFloat(text string) *big.Float {
	f, ok := new(big.Float).SetPrec(floatPrec).SetString(text)
	if !ok {
		panic("clmm: invalid float literal " + text)
	}
	return f
}

// Q96 returns 2^96.
func Q96() *big.Int {
	return new(big.Int).Set(q96)
}

// PriceToTick converts a human price (token1 per token0) into the nearest
// initializable tick at or below it.
func PriceToTick(price decimal.Decimal, decimals0, decimals1 uint8, spacing int32) (int32, error) {
	if price.Sign() <= 0 {
		return 0, fmt.Errorf("price must be positive, got %s", price)
	}
	raw, _ := price.Shift(int32(decimals1) - int32(decimals0)).Float64()
	if raw <= 0 || math.IsInf(raw, 0) || math.IsNaN(raw) {
		return 0, fmt.Errorf("price %s out of representable range", price)
	}

	tick := math.Floor(math.Log(raw) / logBase)
	if tick < float64(MinTick) {
		tick = float64(MinTick)
	}
	if tick > float64(MaxTick) {
		tick = float64(MaxTick)
	}
	return AlignTick(int32(tick), spacing), nil
}

// AlignTick rounds tick down to a multiple of spacing and keeps it inside
// the usable range.
func AlignTick(tick, spacing int32) int32 {
	if spacing <= 1 {
		return clamp(tick, MinTick, MaxTick)
	}
	aligned := tick / spacing * spacing
	if tick < 0 && tick%spacing != 0 {
		aligned -= spacing
	}
	return clamp(aligned, MinUsableTick(spacing), MaxUsableTick(spacing))
}

func MinUsableTick(spacing int32) int32 {
	if spacing <= 1 {
		return MinTick
	}
	return -(MaxTick / spacing) * spacing
}

func MaxUsableTick(spacing int32) int32 {
	if spacing <= 1 {
		return MaxTick
	}
	return (MaxTick / spacing) * spacing
}

func clamp(v, lo, hi int32) int32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// NormalizeTicks returns the pair ordered as (lower, upper).
func NormalizeTicks(a, b int32) (int32, int32) {
	if a > b {
		return b, a
	}
	return a, b
}

// TickToPrice converts a tick into a human price. The result is for display.
func TickToPrice(tick int32, decimals0, decimals1 uint8) decimal.Decimal {
	raw := math.Pow(1.0001, float64(tick))
	return decimal.NewFromFloat(raw).Shift(int32(decimals0) - int32(decimals1))
}

// SqrtRatioAtTick returns sqrt(1.0001^tick) in Q64.96.
func SqrtRatioAtTick(tick int32) *big.Int {
	abs := int64(tick)
	if abs < 0 {
		abs = -abs
	}
	ratio := powFloat(tickBase, uint64(abs))
	if tick < 0 {
		ratio = new(big.Float).SetPrec(floatPrec).Quo(big.NewFloat(1).SetPrec(floatPrec), ratio)
	}
	sqrt := new(big.Float).SetPrec(floatPrec).Sqrt(ratio)
	sqrt.Mul(sqrt, new(big.Float).SetPrec(floatPrec).SetInt(q96))
	out, _ := sqrt.Int(nil)
	return out
}

func powFloat(base *big.Float, exp uint64) *big.Float {
	result := new(big.Float).SetPrec(floatPrec).SetInt64(1)
	b := new(big.Float).SetPrec(floatPrec).Set(base)
	for exp > 0 {
		if exp&1 == 1 {
			result.Mul(result, b)
		}
		b.Mul(b, b)
		exp >>= 1
	}
	return result
}

// SqrtPriceToPrice converts slot0 sqrtPriceX96 into a human price of token1
// per token0.
func SqrtPriceToPrice(sqrtPriceX96 *big.Int, decimals0, decimals1 uint8) decimal.Decimal {
	if sqrtPriceX96 == nil || sqrtPriceX96.Sign() <= 0 {
		return decimal.Zero
	}
	num := new(big.Int).Mul(sqrtPriceX96, sqrtPriceX96)
	raw := decimal.NewFromBigInt(num, 0).DivRound(decimal.NewFromBigInt(q192, 0), 2*priceScale+8)
	return raw.Shift(int32(decimals0) - int32(decimals1)).Round(priceScale)
}
