package dex

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"liquidityPilot/internal/chain"
	"liquidityPilot/internal/clmm"
	"liquidityPilot/internal/lperr"
	"liquidityPilot/internal/model"
)

// Well-known NonfungiblePositionManager deployments.
const (
	PancakeSwapBSCPositionManager = "0x46A15B0b27311cedF172AB29E4f4766fbE7F4364"
	UniswapMainnetPositionManager = "0xC36442b4a4522E871399CD717aBDD847Ab11FE88"
)

// Config configures the AMM service.
type Config struct {
	PositionManager string
	TxDeadline      time.Duration
	ReceiptTimeout  time.Duration
	ReceiptPoll     time.Duration
}

// Service talks to a V3 pool deployment through its position manager.
type Service struct {
	cfg     Config
	chain   *chain.Client
	manager common.Address
	pools   *PoolMetaCache
	tokens  *TokenMetaCache
	logger  *zap.Logger
	now     func() time.Time

	mu        sync.RWMutex
	factory   common.Address
	poolByKey map[poolKey]common.Address
}

type poolKey struct {
	token0 common.Address
	token1 common.Address
	fee    uint32
}

func NewService(cfg Config, chainClient *chain.Client, logger *zap.Logger) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PositionManager == "" {
		cfg.PositionManager = PancakeSwapBSCPositionManager
	}
	if !common.IsHexAddress(cfg.PositionManager) {
		return nil, fmt.Errorf("invalid position manager address: %s", cfg.PositionManager)
	}
	if cfg.TxDeadline <= 0 {
		cfg.TxDeadline = 10 * time.Minute
	}
	if cfg.ReceiptTimeout <= 0 {
		cfg.ReceiptTimeout = 2 * time.Minute
	}
	if cfg.ReceiptPoll <= 0 {
		cfg.ReceiptPoll = time.Second
	}
	return &Service{
		cfg:       cfg,
		chain:     chainClient,
		manager:   common.HexToAddress(cfg.PositionManager),
		pools:     NewPoolMetaCache(),
		tokens:    NewTokenMetaCache(),
		logger:    logger,
		now:       time.Now,
		poolByKey: make(map[poolKey]common.Address),
	}, nil
}

// FetchPoolSnapshot reads immutable metadata (cached) and the live price of
// a pool.
func (s *Service) FetchPoolSnapshot(ctx context.Context, poolID string) (model.PoolSnapshot, error) {
	if !common.IsHexAddress(poolID) {
		return model.PoolSnapshot{}, lperr.New(lperr.CodeValidation, fmt.Sprintf("invalid pool id %q", poolID))
	}
	pool := common.HexToAddress(poolID)

	meta, ok := s.pools.Get(pool)
	if !ok {
		var err error
		meta, err = FetchPoolMeta(ctx, s.chain, pool)
		if err != nil {
			return model.PoolSnapshot{}, lperr.Wrap(lperr.CodeUnavailable, "pool information unavailable", err)
		}
		s.pools.Set(pool, meta)
	}

	token0, err := s.token(ctx, common.HexToAddress(meta.Token0))
	if err != nil {
		return model.PoolSnapshot{}, lperr.Wrap(lperr.CodeUnavailable, "token information unavailable", err)
	}
	token1, err := s.token(ctx, common.HexToAddress(meta.Token1))
	if err != nil {
		return model.PoolSnapshot{}, lperr.Wrap(lperr.CodeUnavailable, "token information unavailable", err)
	}

	slot0, err := FetchSlot0(ctx, s.chain, pool)
	if err != nil {
		return model.PoolSnapshot{}, lperr.Wrap(lperr.CodeUnavailable, "pool price unavailable", err)
	}

	return model.PoolSnapshot{
		ID:           pool.Hex(),
		Token0:       token0,
		Token1:       token1,
		Fee:          meta.Fee,
		TickSpacing:  meta.TickSpacing,
		Tick:         slot0.Tick,
		SqrtPriceX96: slot0.SqrtPriceX96,
		Liquidity:    FetchPoolLiquidity(ctx, s.chain, pool, s.logger),
		CurrentPrice: clmm.SqrtPriceToPrice(slot0.SqrtPriceX96, token0.Decimals, token1.Decimals),
	}, nil
}

func (s *Service) token(ctx context.Context, address common.Address) (model.Token, error) {
	if meta, ok := s.tokens.Get(address); ok {
		return meta, nil
	}
	meta, err := FetchTokenMeta(ctx, s.chain, address, s.logger)
	if err != nil {
		return model.Token{}, err
	}
	s.tokens.Set(address, meta)
	return meta, nil
}

// PriceToTick maps a human price onto an initializable tick of the pool.
func (s *Service) PriceToTick(pool model.PoolSnapshot, price decimal.Decimal) (int32, error) {
	return clmm.PriceToTick(price, pool.Token0.Decimals, pool.Token1.Decimals, pool.TickSpacing)
}

// QuoteOtherAmount returns the maximum counter-token deposit for baseAmount,
// including slippage.
func (s *Service) QuoteOtherAmount(pool model.PoolSnapshot, base model.Token, baseAmount *big.Int, tickLower, tickUpper int32, slippage decimal.Decimal) (*big.Int, error) {
	if pool.SqrtPriceX96 == nil || pool.SqrtPriceX96.Sign() <= 0 {
		return nil, fmt.Errorf("pool %s has no price", pool.ID)
	}
	other, err := clmm.OtherAmountForBase(pool.SqrtPriceX96, tickLower, tickUpper, pool.Token0.Is(base.Address), baseAmount)
	if err != nil {
		return nil, err
	}
	return clmm.ApplySlippage(other, slippage), nil
}

// WalletBalance returns the native coin balance of address.
func (s *Service) WalletBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	if !common.IsHexAddress(address) {
		return decimal.Zero, fmt.Errorf("invalid address: %s", address)
	}
	wei, err := s.chain.BalanceAt(ctx, common.HexToAddress(address))
	if err != nil {
		return decimal.Zero, lperr.Wrap(lperr.CodeUnavailable, "balance unavailable", err)
	}
	return clmm.FromBaseUnits(wei, 18), nil
}
