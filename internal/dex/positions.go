package dex

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"liquidityPilot/internal/clmm"
	"liquidityPilot/internal/model"
)

var maxUint128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

type rawPosition struct {
	tokenID     *big.Int
	token0      common.Address
	token1      common.Address
	fee         uint32
	tickLower   int32
	tickUpper   int32
	liquidity   *big.Int
	tokensOwed0 *big.Int
	tokensOwed1 *big.Int
}

// ListPositions returns every position NFT held by owner in wallet order.
func (s *Service) ListPositions(ctx context.Context, owner string) ([]model.Position, error) {
	if !common.IsHexAddress(owner) {
		return nil, fmt.Errorf("invalid owner address: %s", owner)
	}
	ownerAddr := common.HexToAddress(owner)

	managerABI, err := PositionManagerABI()
	if err != nil {
		return nil, fmt.Errorf("parse position manager abi: %w", err)
	}

	values, err := s.callManager(ctx, managerABI, common.Address{}, "balanceOf", ownerAddr)
	if err != nil {
		return nil, err
	}
	count, err := asBigInt(values[0])
	if err != nil {
		return nil, fmt.Errorf("balance: %w", err)
	}

	snapshots := make(map[common.Address]model.PoolSnapshot)
	out := make([]model.Position, 0, count.Int64())
	for i := int64(0); i < count.Int64(); i++ {
		values, err := s.callManager(ctx, managerABI, common.Address{}, "tokenOfOwnerByIndex", ownerAddr, big.NewInt(i))
		if err != nil {
			return nil, err
		}
		tokenID, err := asBigInt(values[0])
		if err != nil {
			return nil, fmt.Errorf("token id: %w", err)
		}

		raw, err := s.readPosition(ctx, managerABI, tokenID)
		if err != nil {
			return nil, err
		}

		poolAddr, err := s.poolFor(ctx, raw.token0, raw.token1, raw.fee)
		if err != nil {
			return nil, err
		}
		snapshot, ok := snapshots[poolAddr]
		if !ok {
			snapshot, err = s.FetchPoolSnapshot(ctx, poolAddr.Hex())
			if err != nil {
				return nil, err
			}
			snapshots[poolAddr] = snapshot
		}

		owed0, owed1 := raw.tokensOwed0, raw.tokensOwed1
		if pending0, pending1, err := s.pendingRewards(ctx, managerABI, ownerAddr, tokenID); err == nil {
			owed0, owed1 = pending0, pending1
		} else {
			s.logger.Debug("static collect failed", zap.String("token_id", tokenID.String()), zap.Error(err))
		}

		out = append(out, buildPosition(raw, snapshot, owed0, owed1))
	}
	return out, nil
}

func buildPosition(raw rawPosition, pool model.PoolSnapshot, owed0, owed1 *big.Int) model.Position {
	amount0, amount1 := clmm.AmountsForLiquidity(
		pool.SqrtPriceX96,
		clmm.SqrtRatioAtTick(raw.tickLower),
		clmm.SqrtRatioAtTick(raw.tickUpper),
		raw.liquidity,
	)

	pos := model.Position{
		Handle:     raw.tokenID.String(),
		PoolID:     pool.ID,
		Token0:     pool.Token0,
		Token1:     pool.Token1,
		Fee:        raw.fee,
		TickLower:  raw.tickLower,
		TickUpper:  raw.tickUpper,
		Liquidity:  raw.liquidity,
		PriceLower: clmm.TickToPrice(raw.tickLower, pool.Token0.Decimals, pool.Token1.Decimals),
		PriceUpper: clmm.TickToPrice(raw.tickUpper, pool.Token0.Decimals, pool.Token1.Decimals),
		Amount0:    clmm.FromBaseUnits(amount0, pool.Token0.Decimals),
		Amount1:    clmm.FromBaseUnits(amount1, pool.Token1.Decimals),
		InRange:    pool.Tick >= raw.tickLower && pool.Tick < raw.tickUpper,
	}
	if owed0 != nil && owed0.Sign() > 0 {
		pos.Rewards = append(pos.Rewards, model.Reward{Token: pool.Token0, Amount: clmm.FromBaseUnits(owed0, pool.Token0.Decimals)})
	}
	if owed1 != nil && owed1.Sign() > 0 {
		pos.Rewards = append(pos.Rewards, model.Reward{Token: pool.Token1, Amount: clmm.FromBaseUnits(owed1, pool.Token1.Decimals)})
	}
	return pos
}

func (s *Service) readPosition(ctx context.Context, managerABI abi.ABI, tokenID *big.Int) (rawPosition, error) {
	values, err := s.callManager(ctx, managerABI, common.Address{}, "positions", tokenID)
	if err != nil {
		return rawPosition{}, err
	}
	return decodePosition(tokenID, values)
}

func decodePosition(tokenID *big.Int, values []interface{}) (rawPosition, error) {
	if len(values) != 12 {
		return rawPosition{}, fmt.Errorf("unexpected positions values: %d", len(values))
	}
	token0, err := asAddress(values[2])
	if err != nil {
		return rawPosition{}, fmt.Errorf("token0: %w", err)
	}
	token1, err := asAddress(values[3])
	if err != nil {
		return rawPosition{}, fmt.Errorf("token1: %w", err)
	}
	fee, err := asBigInt(values[4])
	if err != nil {
		return rawPosition{}, fmt.Errorf("fee: %w", err)
	}
	lowerInt, err := asBigInt(values[5])
	if err != nil {
		return rawPosition{}, fmt.Errorf("tick lower: %w", err)
	}
	tickLower, err := int24FromBig(lowerInt)
	if err != nil {
		return rawPosition{}, fmt.Errorf("tick lower: %w", err)
	}
	upperInt, err := asBigInt(values[6])
	if err != nil {
		return rawPosition{}, fmt.Errorf("tick upper: %w", err)
	}
	tickUpper, err := int24FromBig(upperInt)
	if err != nil {
		return rawPosition{}, fmt.Errorf("tick upper: %w", err)
	}
	liquidity, err := asBigInt(values[7])
	if err != nil {
		return rawPosition{}, fmt.Errorf("liquidity: %w", err)
	}
	owed0, err := asBigInt(values[10])
	if err != nil {
		return rawPosition{}, fmt.Errorf("tokens owed0: %w", err)
	}
	owed1, err := asBigInt(values[11])
	if err != nil {
		return rawPosition{}, fmt.Errorf("tokens owed1: %w", err)
	}

	return rawPosition{
		tokenID:     tokenID,
		token0:      token0,
		token1:      token1,
		fee:         uint32(fee.Uint64()),
		tickLower:   tickLower,
		tickUpper:   tickUpper,
		liquidity:   liquidity,
		tokensOwed0: owed0,
		tokensOwed1: owed1,
	}, nil
}

// pendingRewards simulates a full collect from owner, which includes fees
// accrued since the last poke.
func (s *Service) pendingRewards(ctx context.Context, managerABI abi.ABI, owner common.Address, tokenID *big.Int) (*big.Int, *big.Int, error) {
	values, err := s.callManager(ctx, managerABI, owner, "collect", collectParams{
		TokenId:    tokenID,
		Recipient:  owner,
		Amount0Max: maxUint128,
		Amount1Max: maxUint128,
	})
	if err != nil {
		return nil, nil, err
	}
	if len(values) != 2 {
		return nil, nil, fmt.Errorf("unexpected collect values: %d", len(values))
	}
	amount0, err := asBigInt(values[0])
	if err != nil {
		return nil, nil, err
	}
	amount1, err := asBigInt(values[1])
	if err != nil {
		return nil, nil, err
	}
	return amount0, amount1, nil
}

func (s *Service) poolFor(ctx context.Context, token0, token1 common.Address, fee uint32) (common.Address, error) {
	key := poolKey{token0: token0, token1: token1, fee: fee}
	s.mu.RLock()
	addr, ok := s.poolByKey[key]
	s.mu.RUnlock()
	if ok {
		return addr, nil
	}

	factory, err := s.factoryAddress(ctx)
	if err != nil {
		return common.Address{}, err
	}
	factoryABI, err := V3FactoryABI()
	if err != nil {
		return common.Address{}, fmt.Errorf("parse factory abi: %w", err)
	}
	values, err := s.call(ctx, factoryABI, factory, common.Address{}, "getPool", token0, token1, new(big.Int).SetUint64(uint64(fee)))
	if err != nil {
		return common.Address{}, err
	}
	addr, err = asAddress(values[0])
	if err != nil {
		return common.Address{}, fmt.Errorf("pool address: %w", err)
	}
	if addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("no pool for %s/%s fee %d", token0.Hex(), token1.Hex(), fee)
	}

	s.mu.Lock()
	s.poolByKey[key] = addr
	s.mu.Unlock()
	return addr, nil
}

func (s *Service) factoryAddress(ctx context.Context) (common.Address, error) {
	s.mu.RLock()
	factory := s.factory
	s.mu.RUnlock()
	if factory != (common.Address{}) {
		return factory, nil
	}

	managerABI, err := PositionManagerABI()
	if err != nil {
		return common.Address{}, fmt.Errorf("parse position manager abi: %w", err)
	}
	values, err := s.callManager(ctx, managerABI, common.Address{}, "factory")
	if err != nil {
		return common.Address{}, err
	}
	factory, err = asAddress(values[0])
	if err != nil {
		return common.Address{}, fmt.Errorf("factory: %w", err)
	}

	s.mu.Lock()
	s.factory = factory
	s.mu.Unlock()
	return factory, nil
}

func (s *Service) callManager(ctx context.Context, managerABI abi.ABI, from common.Address, method string, args ...interface{}) ([]interface{}, error) {
	return s.call(ctx, managerABI, s.manager, from, method, args...)
}

func (s *Service) call(ctx context.Context, parsed abi.ABI, to common.Address, from common.Address, method string, args ...interface{}) ([]interface{}, error) {
	if s.chain == nil {
		return nil, fmt.Errorf("chain client is nil")
	}
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	msg := ethereum.CallMsg{From: from, To: &to, Data: data}
	resp, err := s.chain.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return values, nil
}
