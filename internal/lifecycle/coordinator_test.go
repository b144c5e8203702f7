package lifecycle

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"

	"liquidityPilot/internal/lperr"
	"liquidityPilot/internal/model"
	"liquidityPilot/internal/positions"
)

type fakeAMM struct {
	mu        sync.Mutex
	ticks     map[string]int32
	listing   []model.Position
	listErr   error
	harvested []string
	opened    []model.OpenOrder
	closed    []model.CloseOrder
	harvests  []string
	openErr   error
}

func (f *fakeAMM) PriceToTick(_ model.PoolSnapshot, price decimal.Decimal) (int32, error) {
	tick, ok := f.ticks[price.String()]
	if !ok {
		return 0, errors.New("unexpected price " + price.String())
	}
	return tick, nil
}

func (f *fakeAMM) QuoteOtherAmount(_ model.PoolSnapshot, _ model.Token, baseAmount *big.Int, _, _ int32, _ decimal.Decimal) (*big.Int, error) {
	return new(big.Int).Mul(baseAmount, big.NewInt(2)), nil
}

func (f *fakeAMM) OpenPosition(_ context.Context, _ *ecdsa.PrivateKey, order model.OpenOrder) (model.OpenReceipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened = append(f.opened, order)
	if f.openErr != nil {
		return model.OpenReceipt{}, f.openErr
	}
	return model.OpenReceipt{TxHash: "0xtx", Handle: "777"}, nil
}

func (f *fakeAMM) ListPositions(_ context.Context, _ string) ([]model.Position, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.listing, nil
}

func (f *fakeAMM) ClosePosition(_ context.Context, _ *ecdsa.PrivateKey, order model.CloseOrder) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = append(f.closed, order)
	return "0xclose", nil
}

func (f *fakeAMM) HarvestRewards(_ context.Context, _ *ecdsa.PrivateKey, handle string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.harvests = append(f.harvests, handle)
	return f.harvested, nil
}

type fakeProfiles struct {
	users map[int64]*model.User
}

func (f fakeProfiles) GetUser(_ context.Context, userID int64) (*model.User, error) {
	return f.users[userID], nil
}

type fakeVault struct {
	calls int
}

func (f *fakeVault) SigningKey(_ context.Context, _ int64) (*ecdsa.PrivateKey, error) {
	f.calls++
	return crypto.GenerateKey()
}

type memoryJournal struct {
	records []model.JournalRecord
}

func (m *memoryJournal) PutJournal(_ context.Context, records []model.JournalRecord) error {
	m.records = append(m.records, records...)
	return nil
}

var (
	base  = model.Token{Address: "0xAAA", Symbol: "WBNB", Decimals: 9}
	quote = model.Token{Address: "0xBBB", Symbol: "USDT", Decimals: 6}
	pool  = model.PoolSnapshot{ID: "0xpool", Token0: base, Token1: quote, TickSpacing: 10}
)

func walletUser() *model.User {
	return &model.User{ID: 1, ChatID: 1, WalletAddress: "0xowner", EncryptedKey: []byte{1}}
}

func livePosition(handle string, liquidity int64) model.Position {
	return model.Position{Handle: handle, PoolID: "0xpool", Token0: base, Token1: quote, Liquidity: big.NewInt(liquidity)}
}

func newCoordinator(amm *fakeAMM, users map[int64]*model.User) (*Coordinator, *fakeVault, *memoryJournal) {
	vault := &fakeVault{}
	journal := &memoryJournal{}
	c := NewCoordinator(
		Config{Slippage: decimal.RequireFromString("0.05")},
		amm,
		fakeProfiles{users: users},
		vault,
		positions.NewIndex(),
		journal,
		nil,
		nil,
	)
	return c, vault, journal
}

func TestOpenNormalizesTicksAndSizesAmount(t *testing.T) {
	amm := &fakeAMM{ticks: map[string]int32{"100": 600, "150": -600}}
	c, _, journal := newCoordinator(amm, map[int64]*model.User{1: walletUser()})

	res, err := c.Open(context.Background(), 1, OpenRequest{
		Pool:       pool,
		BaseToken:  base,
		Amount:     decimal.NewFromInt(10),
		LowerPrice: decimal.NewFromInt(100),
		UpperPrice: decimal.NewFromInt(150),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.TickLower != -600 || res.TickUpper != 600 {
		t.Fatalf("expected ticks normalized to (-600, 600), got (%d, %d)", res.TickLower, res.TickUpper)
	}
	if len(amm.opened) != 1 {
		t.Fatalf("expected one open call, got %d", len(amm.opened))
	}
	order := amm.opened[0]
	if order.TickLower >= order.TickUpper {
		t.Fatalf("open order ticks not ordered: %d >= %d", order.TickLower, order.TickUpper)
	}
	if order.BaseAmount.Cmp(big.NewInt(10_000_000_000)) != 0 {
		t.Fatalf("expected 10 * 10^9 base units, got %s", order.BaseAmount)
	}
	if order.OtherAmountMax.Cmp(big.NewInt(20_000_000_000)) != 0 {
		t.Fatalf("unexpected counter amount %s", order.OtherAmountMax)
	}
	if res.Handle != "777" || res.TxID != "0xtx" {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(journal.records) != 1 || journal.records[0].Operation != model.OpOpen {
		t.Fatalf("expected open journal record, got %+v", journal.records)
	}
}

func TestOpenWithoutWallet(t *testing.T) {
	amm := &fakeAMM{ticks: map[string]int32{"100": 0, "150": 600}}
	c, vault, _ := newCoordinator(amm, map[int64]*model.User{})

	_, err := c.Open(context.Background(), 1, OpenRequest{
		Pool:       pool,
		BaseToken:  base,
		Amount:     decimal.NewFromInt(1),
		LowerPrice: decimal.NewFromInt(100),
		UpperPrice: decimal.NewFromInt(150),
	})
	if !errors.Is(err, ErrNoWallet) {
		t.Fatalf("expected ErrNoWallet, got %v", err)
	}
	if vault.calls != 0 || len(amm.opened) != 0 {
		t.Fatalf("expected no key access or submission")
	}
}

func TestOpenRejectsCollapsedRange(t *testing.T) {
	amm := &fakeAMM{ticks: map[string]int32{"100": 60, "100.001": 60}}
	c, vault, _ := newCoordinator(amm, map[int64]*model.User{1: walletUser()})

	_, err := c.Open(context.Background(), 1, OpenRequest{
		Pool:       pool,
		BaseToken:  base,
		Amount:     decimal.NewFromInt(1),
		LowerPrice: decimal.NewFromInt(100),
		UpperPrice: decimal.RequireFromString("100.001"),
	})
	if !errors.Is(err, ErrRangeTooNarrow) {
		t.Fatalf("expected ErrRangeTooNarrow, got %v", err)
	}
	if vault.calls != 0 {
		t.Fatalf("expected key untouched")
	}
}

func TestOpenExecutionFailureIsTyped(t *testing.T) {
	amm := &fakeAMM{ticks: map[string]int32{"100": 0, "150": 600}, openErr: errors.New("execution reverted")}
	c, _, journal := newCoordinator(amm, map[int64]*model.User{1: walletUser()})

	_, err := c.Open(context.Background(), 1, OpenRequest{
		Pool:       pool,
		BaseToken:  base,
		Amount:     decimal.NewFromInt(1),
		LowerPrice: decimal.NewFromInt(100),
		UpperPrice: decimal.NewFromInt(150),
	})
	if lperr.CodeOf(err) != lperr.CodeExecution {
		t.Fatalf("expected execution error, got %v", err)
	}
	if len(journal.records) != 1 || journal.records[0].Error == "" {
		t.Fatalf("expected failed open to be journaled, got %+v", journal.records)
	}
}

func TestCloseResolvesOrdinalTwo(t *testing.T) {
	amm := &fakeAMM{listing: []model.Position{livePosition("10", 5), livePosition("20", 7)}}
	c, _, _ := newCoordinator(amm, map[int64]*model.User{1: walletUser()})

	if _, err := c.List(context.Background(), 1); err != nil {
		t.Fatalf("list failed: %v", err)
	}
	res, err := c.Close(context.Background(), 1, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Handle != "20" || len(amm.closed) != 1 {
		t.Fatalf("expected handle 20 closed once, got %+v calls=%d", res, len(amm.closed))
	}
	order := amm.closed[0]
	if order.Handle != "20" || order.Liquidity.Cmp(big.NewInt(7)) != 0 || !order.Burn {
		t.Fatalf("unexpected close order %+v", order)
	}
	if order.MinAmount0.Sign() != 0 || order.MinAmount1.Sign() != 0 {
		t.Fatalf("expected zero minimum outputs on close")
	}
}

func TestZeroLiquidityNeverSubmitted(t *testing.T) {
	amm := &fakeAMM{listing: []model.Position{livePosition("10", 0)}}
	c, vault, _ := newCoordinator(amm, map[int64]*model.User{1: walletUser()})

	if _, err := c.List(context.Background(), 1); err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if _, err := c.Close(context.Background(), 1, 1); !errors.Is(err, ErrZeroLiquidity) {
		t.Fatalf("close: expected ErrZeroLiquidity, got %v", err)
	}
	if _, err := c.Harvest(context.Background(), 1, 1); !errors.Is(err, ErrZeroLiquidity) {
		t.Fatalf("harvest: expected ErrZeroLiquidity, got %v", err)
	}
	if len(amm.closed) != 0 || len(amm.harvests) != 0 || vault.calls != 0 {
		t.Fatalf("zero-liquidity position reached submission")
	}
}

func TestCloseFailsClosedOnStaleHandle(t *testing.T) {
	amm := &fakeAMM{listing: []model.Position{livePosition("10", 5)}}
	c, _, _ := newCoordinator(amm, map[int64]*model.User{1: walletUser()})

	if _, err := c.List(context.Background(), 1); err != nil {
		t.Fatalf("list failed: %v", err)
	}
	amm.listing = []model.Position{livePosition("11", 5)}

	if _, err := c.Close(context.Background(), 1, 1); !errors.Is(err, ErrStalePosition) {
		t.Fatalf("expected ErrStalePosition, got %v", err)
	}
	if len(amm.closed) != 0 {
		t.Fatalf("stale handle reached submission")
	}
}

func TestCloseWithoutListing(t *testing.T) {
	amm := &fakeAMM{listing: []model.Position{livePosition("10", 5)}}
	c, _, _ := newCoordinator(amm, map[int64]*model.User{1: walletUser()})

	if _, err := c.Close(context.Background(), 1, 1); !errors.Is(err, positions.ErrNoListing) {
		t.Fatalf("expected ErrNoListing, got %v", err)
	}
}

func TestHarvestWithNothingOwed(t *testing.T) {
	amm := &fakeAMM{listing: []model.Position{livePosition("10", 5)}}
	c, _, journal := newCoordinator(amm, map[int64]*model.User{1: walletUser()})

	if _, err := c.List(context.Background(), 1); err != nil {
		t.Fatalf("list failed: %v", err)
	}
	res, err := c.Harvest(context.Background(), 1, 1)
	if err != nil {
		t.Fatalf("expected empty harvest to succeed, got %v", err)
	}
	if res.Claimed || len(res.TxIDs) != 0 {
		t.Fatalf("expected empty result, got %+v", res)
	}
	if len(journal.records) != 0 {
		t.Fatalf("expected no journal record for empty harvest")
	}
}

func TestHarvestReturnsTransactions(t *testing.T) {
	amm := &fakeAMM{listing: []model.Position{livePosition("10", 5)}, harvested: []string{"0xh1"}}
	c, _, _ := newCoordinator(amm, map[int64]*model.User{1: walletUser()})

	if _, err := c.List(context.Background(), 1); err != nil {
		t.Fatalf("list failed: %v", err)
	}
	res, err := c.Harvest(context.Background(), 1, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Claimed || len(res.TxIDs) != 1 || res.TxIDs[0] != "0xh1" {
		t.Fatalf("unexpected harvest result %+v", res)
	}
}

func TestListUnavailable(t *testing.T) {
	amm := &fakeAMM{listErr: errors.New("rpc down")}
	c, _, _ := newCoordinator(amm, map[int64]*model.User{1: walletUser()})

	_, err := c.List(context.Background(), 1)
	if lperr.CodeOf(err) != lperr.CodeUnavailable {
		t.Fatalf("expected unavailable, got %v", err)
	}
	if !lperr.Retryable(err) {
		t.Fatalf("expected retryable error")
	}
}
