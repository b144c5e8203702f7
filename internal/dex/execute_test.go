package dex

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"liquidityPilot/internal/model"
)

var (
	testToken0 = model.Token{Address: "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", Symbol: "WBNB", Decimals: 18}
	testToken1 = model.Token{Address: "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", Symbol: "USDT", Decimals: 18}
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(Config{}, nil, nil)
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	svc.now = func() time.Time { return time.Unix(1700000000, 0) }
	return svc
}

func TestBuildMintParamsOrdersBySide(t *testing.T) {
	svc := newTestService(t)
	pool := model.PoolSnapshot{ID: "0x1111111111111111111111111111111111111111", Token0: testToken0, Token1: testToken1, Fee: 2500}
	recipient := common.HexToAddress("0x2222222222222222222222222222222222222222")

	order := model.OpenOrder{
		Pool:           pool,
		BaseToken:      testToken1,
		BaseAmount:     big.NewInt(100),
		OtherAmountMax: big.NewInt(7),
		TickLower:      -120,
		TickUpper:      600,
	}
	params := svc.buildMintParams(order, recipient)
	if params.Amount0Desired.Int64() != 7 || params.Amount1Desired.Int64() != 100 {
		t.Fatalf("desired amounts mismatch: %s %s", params.Amount0Desired, params.Amount1Desired)
	}
	if params.Amount0Min.Sign() != 0 || params.Amount1Min.Sign() != 0 {
		t.Fatalf("expected zero minimums")
	}
	if params.TickLower.Int64() != -120 || params.TickUpper.Int64() != 600 || params.Fee.Int64() != 2500 {
		t.Fatalf("ticks mismatch: %+v", params)
	}
	if params.Deadline.Int64() != 1700000000+600 {
		t.Fatalf("deadline mismatch: %s", params.Deadline)
	}

	managerABI, err := PositionManagerABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	data, err := managerABI.Pack("mint", params)
	if err != nil {
		t.Fatalf("pack mint: %v", err)
	}
	if len(data) != 4+11*32 {
		t.Fatalf("unexpected calldata length: %d", len(data))
	}
}

func TestBuildCloseCalls(t *testing.T) {
	svc := newTestService(t)
	managerABI, err := PositionManagerABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	recipient := common.HexToAddress("0x2222222222222222222222222222222222222222")
	order := model.CloseOrder{Handle: "99", Liquidity: big.NewInt(1234), Burn: true}

	calls, err := svc.buildCloseCalls(managerABI, order, recipient)
	if err != nil {
		t.Fatalf("build calls: %v", err)
	}
	want := []string{"decreaseLiquidity", "collect", "burn"}
	if len(calls) != len(want) {
		t.Fatalf("calls mismatch: %d", len(calls))
	}
	for i, call := range calls {
		method, err := managerABI.MethodById(call[:4])
		if err != nil {
			t.Fatalf("method %d: %v", i, err)
		}
		if method.Name != want[i] {
			t.Fatalf("call %d: want %s got %s", i, want[i], method.Name)
		}
	}
	if _, err := managerABI.Pack("multicall", calls); err != nil {
		t.Fatalf("pack multicall: %v", err)
	}

	order.Burn = false
	calls, err = svc.buildCloseCalls(managerABI, order, recipient)
	if err != nil {
		t.Fatalf("build calls: %v", err)
	}
	if len(calls) != 2 {
		t.Fatalf("expected no burn, got %d calls", len(calls))
	}

	if _, err := svc.buildCloseCalls(managerABI, model.CloseOrder{Handle: "abc", Liquidity: big.NewInt(1)}, recipient); err == nil {
		t.Fatalf("expected invalid handle error")
	}
}

func TestDecodePosition(t *testing.T) {
	token0 := common.HexToAddress(testToken0.Address)
	token1 := common.HexToAddress(testToken1.Address)
	values := []interface{}{
		big.NewInt(0),
		common.Address{},
		token0,
		token1,
		big.NewInt(500),
		big.NewInt(-600),
		big.NewInt(600),
		big.NewInt(1000),
		big.NewInt(0),
		big.NewInt(0),
		big.NewInt(3),
		big.NewInt(4),
	}
	raw, err := decodePosition(big.NewInt(5), values)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if raw.token0 != token0 || raw.token1 != token1 || raw.fee != 500 {
		t.Fatalf("pool key mismatch: %+v", raw)
	}
	if raw.tickLower != -600 || raw.tickUpper != 600 || raw.liquidity.Int64() != 1000 {
		t.Fatalf("range mismatch: %+v", raw)
	}

	if _, err := decodePosition(big.NewInt(5), values[:11]); err == nil {
		t.Fatalf("expected length error")
	}
}

func TestBuildPosition(t *testing.T) {
	pool := model.PoolSnapshot{
		ID:           "0x1111111111111111111111111111111111111111",
		Token0:       testToken0,
		Token1:       testToken1,
		Tick:         0,
		SqrtPriceX96: new(big.Int).Lsh(big.NewInt(1), 96),
	}
	raw := rawPosition{
		tokenID:   big.NewInt(8),
		fee:       2500,
		tickLower: -600,
		tickUpper: 600,
		liquidity: big.NewInt(1_000_000_000_000),
	}

	pos := buildPosition(raw, pool, big.NewInt(0), big.NewInt(25))
	if pos.Handle != "8" || pos.PoolID != pool.ID {
		t.Fatalf("identity mismatch: %+v", pos)
	}
	if !pos.InRange {
		t.Fatalf("expected in range")
	}
	if !pos.Amount0.IsPositive() || !pos.Amount1.IsPositive() {
		t.Fatalf("expected both amounts: %s %s", pos.Amount0, pos.Amount1)
	}
	if len(pos.Rewards) != 1 || pos.Rewards[0].Token.Symbol != "USDT" {
		t.Fatalf("rewards mismatch: %+v", pos.Rewards)
	}

	pool.Tick = 600
	if buildPosition(raw, pool, nil, nil).InRange {
		t.Fatalf("upper tick is out of range")
	}
}
