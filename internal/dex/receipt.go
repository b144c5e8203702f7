package dex

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"liquidityPilot/internal/model"
)

const maxRetryDelay = 10 * time.Second

// decodeMintReceipt extracts the minted token id and deposited amounts from
// the position manager logs of a mint receipt.
func decodeMintReceipt(managerABI abi.ABI, manager common.Address, logs []*types.Log) (model.OpenReceipt, error) {
	transfer, ok := managerABI.Events["Transfer"]
	if !ok {
		return model.OpenReceipt{}, fmt.Errorf("abi missing Transfer event")
	}
	increase, ok := managerABI.Events["IncreaseLiquidity"]
	if !ok {
		return model.OpenReceipt{}, fmt.Errorf("abi missing IncreaseLiquidity event")
	}

	var out model.OpenReceipt
	for _, log := range logs {
		if log == nil || log.Address != manager || len(log.Topics) == 0 {
			continue
		}
		switch log.Topics[0] {
		case transfer.ID:
			indexed, err := parseIndexedTopics(transfer, log.Topics)
			if err != nil {
				return model.OpenReceipt{}, fmt.Errorf("transfer: %w", err)
			}
			if common.BytesToAddress(indexed[0].Bytes()) != (common.Address{}) {
				continue
			}
			out.Handle = new(big.Int).SetBytes(indexed[2].Bytes()).String()
		case increase.ID:
			indexed, err := parseIndexedTopics(increase, log.Topics)
			if err != nil {
				return model.OpenReceipt{}, fmt.Errorf("increase liquidity: %w", err)
			}
			values, err := unpackNonIndexed(increase, log.Data)
			if err != nil {
				return model.OpenReceipt{}, err
			}
			if len(values) != 3 {
				return model.OpenReceipt{}, fmt.Errorf("unexpected IncreaseLiquidity values: %d", len(values))
			}
			liquidity, err := asBigInt(values[0])
			if err != nil {
				return model.OpenReceipt{}, fmt.Errorf("liquidity: %w", err)
			}
			amount0, err := asBigInt(values[1])
			if err != nil {
				return model.OpenReceipt{}, fmt.Errorf("amount0: %w", err)
			}
			amount1, err := asBigInt(values[2])
			if err != nil {
				return model.OpenReceipt{}, fmt.Errorf("amount1: %w", err)
			}
			if out.Handle == "" {
				out.Handle = new(big.Int).SetBytes(indexed[0].Bytes()).String()
			}
			out.Liquidity, out.Amount0, out.Amount1 = liquidity, amount0, amount1
		}
	}
	if out.Handle == "" {
		return model.OpenReceipt{}, fmt.Errorf("no minted position in receipt")
	}
	return out, nil
}

func parseIndexedTopics(event abi.Event, topics []common.Hash) ([]common.Hash, error) {
	indexedCount := len(indexedArguments(event.Inputs))
	if len(topics) != indexedCount+1 {
		return nil, fmt.Errorf("expected %d topics, got %d", indexedCount+1, len(topics))
	}
	return topics[1:], nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}

func unpackNonIndexed(event abi.Event, data []byte) ([]interface{}, error) {
	values, err := event.Inputs.NonIndexed().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	return values, nil
}

var errPending = errors.New("transaction pending")

// waitMined polls for the receipt until ReceiptTimeout elapses.
func (s *Service) waitMined(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ReceiptTimeout)
	defer cancel()

	var receipt *types.Receipt
	attempts := int(s.cfg.ReceiptTimeout / s.cfg.ReceiptPoll)
	err := withRetry(ctx, attempts, s.cfg.ReceiptPoll, func(ctx context.Context) error {
		r, err := s.chain.TransactionReceipt(ctx, hash)
		if errors.Is(err, ethereum.NotFound) {
			return errPending
		}
		if err != nil {
			return err
		}
		receipt = r
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("wait for %s: %w", hash.Hex(), err)
	}
	return receipt, nil
}

// withRetry retries fn with doubling delay capped at maxRetryDelay.
func withRetry(ctx context.Context, maxRetries int, baseDelay time.Duration, fn func(context.Context) error) error {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}

	delay := baseDelay
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= maxRetries {
			return err
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		if delay *= 2; delay > maxRetryDelay {
			delay = maxRetryDelay
		}
	}
}
