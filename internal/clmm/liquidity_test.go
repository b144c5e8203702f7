package clmm

import (
	"errors"
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
)

func TestAmountsForLiquiditySymmetricRange(t *testing.T) {
	liquidity := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	a0, a1 := AmountsForLiquidity(Q96(), SqrtRatioAtTick(-60), SqrtRatioAtTick(60), liquidity)
	if a0.Sign() <= 0 || a1.Sign() <= 0 {
		t.Fatalf("expected both sides funded, got %s / %s", a0, a1)
	}
	diff := new(big.Int).Sub(a0, a1)
	if diff.Abs(diff).Cmp(big.NewInt(2)) > 0 {
		t.Fatalf("expected symmetric amounts, got %s / %s", a0, a1)
	}
}

func TestAmountsForLiquidityOutOfRange(t *testing.T) {
	liquidity := big.NewInt(1_000_000_000)
	below, _ := AmountsForLiquidity(SqrtRatioAtTick(-120), SqrtRatioAtTick(-60), SqrtRatioAtTick(60), liquidity)
	_, belowOther := AmountsForLiquidity(SqrtRatioAtTick(-120), SqrtRatioAtTick(-60), SqrtRatioAtTick(60), liquidity)
	if below.Sign() <= 0 || belowOther.Sign() != 0 {
		t.Fatalf("expected token0 only below range, got %s / %s", below, belowOther)
	}
	a0, a1 := AmountsForLiquidity(SqrtRatioAtTick(120), SqrtRatioAtTick(-60), SqrtRatioAtTick(60), liquidity)
	if a0.Sign() != 0 || a1.Sign() <= 0 {
		t.Fatalf("expected token1 only above range, got %s / %s", a0, a1)
	}
}

func TestOtherAmountForBaseAtLowerBound(t *testing.T) {
	base := big.NewInt(10_000_000)
	other, err := OtherAmountForBase(SqrtRatioAtTick(0), 0, 600, true, base)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if other.Sign() != 0 {
		t.Fatalf("expected no counter token at lower bound, got %s", other)
	}
}

func TestOtherAmountForBaseInsideRange(t *testing.T) {
	base := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	other, err := OtherAmountForBase(SqrtRatioAtTick(0), -600, 600, true, base)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if other.Sign() <= 0 {
		t.Fatalf("expected counter token amount, got %s", other)
	}

	reversed, err := OtherAmountForBase(SqrtRatioAtTick(0), 600, -600, true, base)
	if err != nil || reversed.Cmp(other) != 0 {
		t.Fatalf("expected tick order not to matter, got %s err=%v", reversed, err)
	}
}

func TestOtherAmountForBaseUnusable(t *testing.T) {
	base := big.NewInt(1000)
	if _, err := OtherAmountForBase(SqrtRatioAtTick(700), 0, 600, true, base); !errors.Is(err, ErrBaseOutOfRange) {
		t.Fatalf("expected ErrBaseOutOfRange for token0 above range, got %v", err)
	}
	if _, err := OtherAmountForBase(SqrtRatioAtTick(0), 0, 600, false, base); !errors.Is(err, ErrBaseOutOfRange) {
		t.Fatalf("expected ErrBaseOutOfRange for token1 at lower bound, got %v", err)
	}
}

func TestApplySlippage(t *testing.T) {
	got := ApplySlippage(big.NewInt(100), decimal.RequireFromString("0.05"))
	if got.Cmp(big.NewInt(105)) != 0 {
		t.Fatalf("expected 105, got %s", got)
	}
	got = ApplySlippage(big.NewInt(101), decimal.RequireFromString("0.05"))
	if got.Cmp(big.NewInt(107)) != 0 {
		t.Fatalf("expected rounding up to 107, got %s", got)
	}
}

func TestBaseUnits(t *testing.T) {
	got := ToBaseUnits(decimal.NewFromInt(10), 9)
	if got.Cmp(big.NewInt(10_000_000_000)) != 0 {
		t.Fatalf("expected 10e9, got %s", got)
	}
	if back := FromBaseUnits(got, 9); !back.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("expected 10, got %s", back)
	}
	if got := ToBaseUnits(decimal.RequireFromString("0.0000001"), 6); got.Sign() != 0 {
		t.Fatalf("expected dust below half a unit to round to zero, got %s", got)
	}

	cases := map[string]int64{
		"0.0000005":  1,
		"10.0000009": 10000001,
		"10.0000004": 10000000,
		"1.2345675":  1234568,
	}
	for in, want := range cases {
		if got := ToBaseUnits(decimal.RequireFromString(in), 6); got.Cmp(big.NewInt(want)) != 0 {
			t.Fatalf("%s: expected %d base units, got %s", in, want, got)
		}
	}
}
