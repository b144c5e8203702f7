package dex

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"liquidityPilot/internal/model"
)

// Tuple parameter structs. Field names follow abi.ToCamelCase of the
// component names.
type mintParams struct {
	Token0         common.Address
	Token1         common.Address
	Fee            *big.Int
	TickLower      *big.Int
	TickUpper      *big.Int
	Amount0Desired *big.Int
	Amount1Desired *big.Int
	Amount0Min     *big.Int
	Amount1Min     *big.Int
	Recipient      common.Address
	Deadline       *big.Int
}

type decreaseLiquidityParams struct {
	TokenId    *big.Int
	Liquidity  *big.Int
	Amount0Min *big.Int
	Amount1Min *big.Int
	Deadline   *big.Int
}

type collectParams struct {
	TokenId    *big.Int
	Recipient  common.Address
	Amount0Max *big.Int
	Amount1Max *big.Int
}

var errReverted = errors.New("transaction reverted")

// OpenPosition approves both deposits if needed and mints the position.
func (s *Service) OpenPosition(ctx context.Context, key *ecdsa.PrivateKey, order model.OpenOrder) (model.OpenReceipt, error) {
	managerABI, err := PositionManagerABI()
	if err != nil {
		return model.OpenReceipt{}, fmt.Errorf("parse position manager abi: %w", err)
	}
	owner := crypto.PubkeyToAddress(key.PublicKey)
	params := s.buildMintParams(order, owner)

	token0 := common.HexToAddress(order.Pool.Token0.Address)
	token1 := common.HexToAddress(order.Pool.Token1.Address)
	if err := s.ensureAllowance(ctx, key, token0, params.Amount0Desired); err != nil {
		return model.OpenReceipt{}, fmt.Errorf("approve %s: %w", order.Pool.Token0.Label(), err)
	}
	if err := s.ensureAllowance(ctx, key, token1, params.Amount1Desired); err != nil {
		return model.OpenReceipt{}, fmt.Errorf("approve %s: %w", order.Pool.Token1.Label(), err)
	}

	receipt, err := s.transact(ctx, key, s.manager, managerABI, "mint", params)
	if err != nil {
		return model.OpenReceipt{}, fmt.Errorf("mint: %w", err)
	}
	out, err := decodeMintReceipt(managerABI, s.manager, receipt.Logs)
	if err != nil {
		return model.OpenReceipt{TxHash: receipt.TxHash.Hex()}, fmt.Errorf("decode mint receipt: %w", err)
	}
	out.TxHash = receipt.TxHash.Hex()
	return out, nil
}

// buildMintParams orders the deposits by pool side. Minimum outputs are zero;
// the counter side is bounded by its slippage-adjusted maximum.
func (s *Service) buildMintParams(order model.OpenOrder, recipient common.Address) mintParams {
	amount0, amount1 := order.BaseAmount, order.OtherAmountMax
	if !order.Pool.Token0.Is(order.BaseToken.Address) {
		amount0, amount1 = order.OtherAmountMax, order.BaseAmount
	}
	return mintParams{
		Token0:         common.HexToAddress(order.Pool.Token0.Address),
		Token1:         common.HexToAddress(order.Pool.Token1.Address),
		Fee:            new(big.Int).SetUint64(uint64(order.Pool.Fee)),
		TickLower:      big.NewInt(int64(order.TickLower)),
		TickUpper:      big.NewInt(int64(order.TickUpper)),
		Amount0Desired: amount0,
		Amount1Desired: amount1,
		Amount0Min:     new(big.Int),
		Amount1Min:     new(big.Int),
		Recipient:      recipient,
		Deadline:       s.deadline(),
	}
}

// ClosePosition removes all liquidity, collects everything owed and burns
// the NFT in a single multicall.
func (s *Service) ClosePosition(ctx context.Context, key *ecdsa.PrivateKey, order model.CloseOrder) (string, error) {
	managerABI, err := PositionManagerABI()
	if err != nil {
		return "", fmt.Errorf("parse position manager abi: %w", err)
	}
	calls, err := s.buildCloseCalls(managerABI, order, crypto.PubkeyToAddress(key.PublicKey))
	if err != nil {
		return "", err
	}
	receipt, err := s.transact(ctx, key, s.manager, managerABI, "multicall", calls)
	if err != nil {
		return "", fmt.Errorf("close position %s: %w", order.Handle, err)
	}
	return receipt.TxHash.Hex(), nil
}

func (s *Service) buildCloseCalls(managerABI abi.ABI, order model.CloseOrder, recipient common.Address) ([][]byte, error) {
	tokenID, ok := new(big.Int).SetString(order.Handle, 10)
	if !ok {
		return nil, fmt.Errorf("invalid position handle %q", order.Handle)
	}
	min0, min1 := order.MinAmount0, order.MinAmount1
	if min0 == nil {
		min0 = new(big.Int)
	}
	if min1 == nil {
		min1 = new(big.Int)
	}

	decrease, err := managerABI.Pack("decreaseLiquidity", decreaseLiquidityParams{
		TokenId:    tokenID,
		Liquidity:  order.Liquidity,
		Amount0Min: min0,
		Amount1Min: min1,
		Deadline:   s.deadline(),
	})
	if err != nil {
		return nil, fmt.Errorf("pack decreaseLiquidity: %w", err)
	}
	collect, err := managerABI.Pack("collect", collectParams{
		TokenId:    tokenID,
		Recipient:  recipient,
		Amount0Max: maxUint128,
		Amount1Max: maxUint128,
	})
	if err != nil {
		return nil, fmt.Errorf("pack collect: %w", err)
	}
	calls := [][]byte{decrease, collect}
	if order.Burn {
		burn, err := managerABI.Pack("burn", tokenID)
		if err != nil {
			return nil, fmt.Errorf("pack burn: %w", err)
		}
		calls = append(calls, burn)
	}
	return calls, nil
}

// HarvestRewards collects owed fees. It returns no transactions when nothing
// is owed.
func (s *Service) HarvestRewards(ctx context.Context, key *ecdsa.PrivateKey, handle string) ([]string, error) {
	managerABI, err := PositionManagerABI()
	if err != nil {
		return nil, fmt.Errorf("parse position manager abi: %w", err)
	}
	tokenID, ok := new(big.Int).SetString(handle, 10)
	if !ok {
		return nil, fmt.Errorf("invalid position handle %q", handle)
	}
	owner := crypto.PubkeyToAddress(key.PublicKey)

	owed0, owed1, err := s.pendingRewards(ctx, managerABI, owner, tokenID)
	if err != nil {
		return nil, fmt.Errorf("read pending rewards: %w", err)
	}
	if owed0.Sign() == 0 && owed1.Sign() == 0 {
		return nil, nil
	}

	receipt, err := s.transact(ctx, key, s.manager, managerABI, "collect", collectParams{
		TokenId:    tokenID,
		Recipient:  owner,
		Amount0Max: maxUint128,
		Amount1Max: maxUint128,
	})
	if err != nil {
		return nil, fmt.Errorf("collect %s: %w", handle, err)
	}
	return []string{receipt.TxHash.Hex()}, nil
}

func (s *Service) ensureAllowance(ctx context.Context, key *ecdsa.PrivateKey, token common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	erc20, err := erc20ABIStringInstance()
	if err != nil {
		return fmt.Errorf("parse erc20 abi: %w", err)
	}
	owner := crypto.PubkeyToAddress(key.PublicKey)
	values, err := s.call(ctx, erc20, token, common.Address{}, "allowance", owner, s.manager)
	if err != nil {
		return err
	}
	current, err := asBigInt(values[0])
	if err != nil {
		return fmt.Errorf("allowance: %w", err)
	}
	if current.Cmp(amount) >= 0 {
		return nil
	}

	receipt, err := s.transact(ctx, key, token, erc20, "approve", s.manager, amount)
	if err != nil {
		return err
	}
	s.logger.Info("token approved", zap.String("token", token.Hex()), zap.String("tx", receipt.TxHash.Hex()))
	return nil
}

// transact signs, sends and waits for a contract call.
func (s *Service) transact(ctx context.Context, key *ecdsa.PrivateKey, to common.Address, parsed abi.ABI, method string, args ...interface{}) (*types.Receipt, error) {
	if s.chain == nil {
		return nil, fmt.Errorf("chain client is nil")
	}
	chainID, err := s.chain.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("chain id: %w", err)
	}
	opts, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		return nil, fmt.Errorf("transactor: %w", err)
	}
	opts.Context = ctx

	backend := s.chain.Backend()
	contract := bind.NewBoundContract(to, parsed, backend, backend, backend)
	tx, err := contract.Transact(opts, method, args...)
	if err != nil {
		return nil, fmt.Errorf("send %s: %w", method, err)
	}
	s.logger.Info("transaction sent", zap.String("method", method), zap.String("tx", tx.Hash().Hex()))

	receipt, err := s.waitMined(ctx, tx.Hash())
	if err != nil {
		return nil, err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, fmt.Errorf("%s %s: %w", method, tx.Hash().Hex(), errReverted)
	}
	return receipt, nil
}

func (s *Service) deadline() *big.Int {
	return big.NewInt(s.now().Add(s.cfg.TxDeadline).Unix())
}
