// Package lifecycle opens, closes and harvests positions on behalf of chat
// users, enforcing wallet and listing preconditions before any signing key
// is touched.
package lifecycle

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"liquidityPilot/internal/clmm"
	"liquidityPilot/internal/lperr"
	"liquidityPilot/internal/metrics"
	"liquidityPilot/internal/model"
	"liquidityPilot/internal/positions"
)

var (
	ErrNoWallet       = lperr.New(lperr.CodePrecondition, "you have no wallet yet, use /start to create one")
	ErrZeroLiquidity  = lperr.New(lperr.CodePrecondition, "this position has no liquidity left")
	ErrStalePosition  = lperr.New(lperr.CodePrecondition, "this position is no longer open, refresh with /positions")
	ErrRangeTooNarrow = lperr.New(lperr.CodeValidation, "price range is narrower than one tick spacing")
	ErrUnknownToken   = lperr.New(lperr.CodeValidation, "token is not part of this pool")
)

// AMM is the on-chain pool and position manager.
type AMM interface {
	PriceToTick(pool model.PoolSnapshot, price decimal.Decimal) (int32, error)
	QuoteOtherAmount(pool model.PoolSnapshot, base model.Token, baseAmount *big.Int, tickLower, tickUpper int32, slippage decimal.Decimal) (*big.Int, error)
	OpenPosition(ctx context.Context, key *ecdsa.PrivateKey, order model.OpenOrder) (model.OpenReceipt, error)
	ListPositions(ctx context.Context, owner string) ([]model.Position, error)
	ClosePosition(ctx context.Context, key *ecdsa.PrivateKey, order model.CloseOrder) (string, error)
	HarvestRewards(ctx context.Context, key *ecdsa.PrivateKey, handle string) ([]string, error)
}

// Profiles looks up users. A missing user is (nil, nil).
type Profiles interface {
	GetUser(ctx context.Context, userID int64) (*model.User, error)
}

// KeyVault releases the decrypted signing key of a user.
type KeyVault interface {
	SigningKey(ctx context.Context, userID int64) (*ecdsa.PrivateKey, error)
}

// Journal receives an audit record for every mutating operation.
type Journal interface {
	PutJournal(ctx context.Context, records []model.JournalRecord) error
}

// Config holds lifecycle policy. Slippage is a fraction, 0.05 for 5%.
type Config struct {
	Slippage decimal.Decimal
}

// OpenRequest is a confirmed open. Pool is the snapshot observed at
// confirmation; LowerPrice is its current price.
type OpenRequest struct {
	Pool       model.PoolSnapshot
	BaseToken  model.Token
	Amount     decimal.Decimal
	LowerPrice decimal.Decimal
	UpperPrice decimal.Decimal
}

// OpenResult describes a minted position.
type OpenResult struct {
	TxID           string
	Handle         string
	PoolID         string
	TickLower      int32
	TickUpper      int32
	BaseAmount     *big.Int
	OtherAmountMax *big.Int
}

// CloseResult identifies the closing transaction.
type CloseResult struct {
	TxID   string
	Handle string
	PoolID string
}

// HarvestResult has Claimed=false when nothing was owed.
type HarvestResult struct {
	Handle  string
	TxIDs   []string
	Claimed bool
}

// Coordinator runs the terminal position operations for chat users.
type Coordinator struct {
	cfg      Config
	amm      AMM
	profiles Profiles
	vault    KeyVault
	index    *positions.Index
	journal  Journal
	metrics  *metrics.Recorder
	logger   *zap.Logger
	now      func() time.Time
}

// NewCoordinator wires the coordinator. A nil index starts empty.
func NewCoordinator(cfg Config, amm AMM, profiles Profiles, vault KeyVault, index *positions.Index, journal Journal, rec *metrics.Recorder, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if index == nil {
		index = positions.NewIndex()
	}
	return &Coordinator{
		cfg:      cfg,
		amm:      amm,
		profiles: profiles,
		vault:    vault,
		index:    index,
		journal:  journal,
		metrics:  rec,
		logger:   logger,
		now:      time.Now,
	}
}

// Index exposes the ordinal index shared with the chat layer.
func (c *Coordinator) Index() *positions.Index {
	return c.index
}

// Open mints a position from the confirmed request. It performs no price
// re-check of its own.
func (c *Coordinator) Open(ctx context.Context, userID int64, req OpenRequest) (res OpenResult, err error) {
	start := c.now()
	defer func() { c.observe(model.OpOpen, start, err) }()

	if _, err := c.requireWallet(ctx, userID); err != nil {
		return OpenResult{}, err
	}
	if req.Amount.Sign() <= 0 {
		return OpenResult{}, lperr.New(lperr.CodeValidation, "amount must be a positive number")
	}
	if req.LowerPrice.Sign() <= 0 || req.UpperPrice.Sign() <= 0 {
		return OpenResult{}, lperr.New(lperr.CodeValidation, "price bounds must be positive")
	}
	if !req.Pool.Token0.Is(req.BaseToken.Address) && !req.Pool.Token1.Is(req.BaseToken.Address) {
		return OpenResult{}, ErrUnknownToken
	}

	baseAmount := clmm.ToBaseUnits(req.Amount, req.BaseToken.Decimals)
	if baseAmount.Sign() <= 0 {
		return OpenResult{}, lperr.New(lperr.CodeValidation, fmt.Sprintf("amount is below the precision of %s", req.BaseToken.Label()))
	}

	lowerTick, err := c.amm.PriceToTick(req.Pool, req.LowerPrice)
	if err != nil {
		return OpenResult{}, lperr.Wrap(lperr.CodeValidation, "lower price cannot be mapped to a tick", err)
	}
	upperTick, err := c.amm.PriceToTick(req.Pool, req.UpperPrice)
	if err != nil {
		return OpenResult{}, lperr.Wrap(lperr.CodeValidation, "upper price cannot be mapped to a tick", err)
	}
	tickLower, tickUpper := clmm.NormalizeTicks(lowerTick, upperTick)
	if tickLower == tickUpper {
		return OpenResult{}, ErrRangeTooNarrow
	}

	otherMax, err := c.amm.QuoteOtherAmount(req.Pool, req.BaseToken, baseAmount, tickLower, tickUpper, c.cfg.Slippage)
	if err != nil {
		if errors.Is(err, clmm.ErrBaseOutOfRange) {
			return OpenResult{}, lperr.Wrap(lperr.CodeValidation, fmt.Sprintf("%s is not deposited in this price range", req.BaseToken.Label()), err)
		}
		return OpenResult{}, classify(lperr.CodeUnavailable, "quote deposit", err)
	}

	key, err := c.signingKey(ctx, userID)
	if err != nil {
		return OpenResult{}, err
	}
	receipt, err := c.amm.OpenPosition(ctx, key, model.OpenOrder{
		Pool:           req.Pool,
		BaseToken:      req.BaseToken,
		BaseAmount:     baseAmount,
		OtherAmountMax: otherMax,
		TickLower:      tickLower,
		TickUpper:      tickUpper,
	})
	record := model.JournalRecord{
		UserID:    userID,
		Operation: model.OpOpen,
		PoolID:    req.Pool.ID,
		TickLower: tickLower,
		TickUpper: tickUpper,
		Amount:    req.Amount.String(),
	}
	if err != nil {
		record.Error = err.Error()
		c.record(ctx, record)
		return OpenResult{}, classify(lperr.CodeExecution, "open position", err)
	}
	record.Handle = receipt.Handle
	record.TxIDs = []string{receipt.TxHash}
	c.record(ctx, record)

	c.logger.Info("position opened",
		zap.Int64("user_id", userID),
		zap.String("pool", req.Pool.ID),
		zap.String("handle", receipt.Handle),
		zap.String("tx", receipt.TxHash),
		zap.Int32("tick_lower", tickLower),
		zap.Int32("tick_upper", tickUpper),
	)

	return OpenResult{
		TxID:           receipt.TxHash,
		Handle:         receipt.Handle,
		PoolID:         req.Pool.ID,
		TickLower:      tickLower,
		TickUpper:      tickUpper,
		BaseAmount:     baseAmount,
		OtherAmountMax: otherMax,
	}, nil
}

// List fetches the user's positions and makes them the current ordinal
// listing.
func (c *Coordinator) List(ctx context.Context, userID int64) (list positions.List, err error) {
	start := c.now()
	defer func() { c.observe("list", start, err) }()

	user, err := c.requireWallet(ctx, userID)
	if err != nil {
		return positions.List{}, err
	}
	items, err := c.amm.ListPositions(ctx, user.WalletAddress)
	if err != nil {
		return positions.List{}, classify(lperr.CodeUnavailable, "could not load positions", err)
	}
	return c.index.Replace(userID, items), nil
}

// Close removes all liquidity from the position at ordinal and burns it.
func (c *Coordinator) Close(ctx context.Context, userID int64, ordinal int) (res CloseResult, err error) {
	start := c.now()
	defer func() { c.observe(model.OpClose, start, err) }()

	live, err := c.resolveLive(ctx, userID, ordinal)
	if err != nil {
		return CloseResult{}, err
	}

	key, err := c.signingKey(ctx, userID)
	if err != nil {
		return CloseResult{}, err
	}
	txID, err := c.amm.ClosePosition(ctx, key, model.CloseOrder{
		Handle:     live.Handle,
		PoolID:     live.PoolID,
		Liquidity:  live.Liquidity,
		MinAmount0: new(big.Int),
		MinAmount1: new(big.Int),
		Burn:       true,
	})
	record := model.JournalRecord{
		UserID:    userID,
		Operation: model.OpClose,
		PoolID:    live.PoolID,
		Handle:    live.Handle,
	}
	if err != nil {
		record.Error = err.Error()
		c.record(ctx, record)
		return CloseResult{}, classify(lperr.CodeExecution, "close position", err)
	}
	record.TxIDs = []string{txID}
	c.record(ctx, record)

	c.logger.Info("position closed", zap.Int64("user_id", userID), zap.String("handle", live.Handle), zap.String("tx", txID))
	return CloseResult{TxID: txID, Handle: live.Handle, PoolID: live.PoolID}, nil
}

// Harvest collects the rewards owed to the position at ordinal. Nothing
// owed is a successful, empty result.
func (c *Coordinator) Harvest(ctx context.Context, userID int64, ordinal int) (res HarvestResult, err error) {
	start := c.now()
	defer func() { c.observe(model.OpHarvest, start, err) }()

	live, err := c.resolveLive(ctx, userID, ordinal)
	if err != nil {
		return HarvestResult{}, err
	}

	key, err := c.signingKey(ctx, userID)
	if err != nil {
		return HarvestResult{}, err
	}
	txIDs, err := c.amm.HarvestRewards(ctx, key, live.Handle)
	record := model.JournalRecord{
		UserID:    userID,
		Operation: model.OpHarvest,
		PoolID:    live.PoolID,
		Handle:    live.Handle,
		TxIDs:     txIDs,
	}
	if err != nil {
		record.Error = err.Error()
		c.record(ctx, record)
		return HarvestResult{}, classify(lperr.CodeExecution, "harvest rewards", err)
	}
	if len(txIDs) > 0 {
		c.record(ctx, record)
	}

	return HarvestResult{Handle: live.Handle, TxIDs: txIDs, Claimed: len(txIDs) > 0}, nil
}

// resolveLive maps ordinal through the current listing, then re-reads the
// position from chain. A handle that no longer resolves fails closed.
func (c *Coordinator) resolveLive(ctx context.Context, userID int64, ordinal int) (model.Position, error) {
	user, err := c.requireWallet(ctx, userID)
	if err != nil {
		return model.Position{}, err
	}
	listed, err := c.index.Resolve(userID, ordinal)
	if err != nil {
		return model.Position{}, err
	}
	if !listed.HasLiquidity() {
		return model.Position{}, ErrZeroLiquidity
	}

	current, err := c.amm.ListPositions(ctx, user.WalletAddress)
	if err != nil {
		return model.Position{}, classify(lperr.CodeUnavailable, "could not load positions", err)
	}
	for _, pos := range current {
		if pos.Handle != listed.Handle {
			continue
		}
		if !pos.HasLiquidity() {
			return model.Position{}, ErrZeroLiquidity
		}
		return pos, nil
	}
	return model.Position{}, ErrStalePosition
}

func (c *Coordinator) requireWallet(ctx context.Context, userID int64) (*model.User, error) {
	user, err := c.profiles.GetUser(ctx, userID)
	if err != nil {
		return nil, classify(lperr.CodeUnavailable, "profile store unavailable", err)
	}
	if !user.HasWallet() {
		return nil, ErrNoWallet
	}
	return user, nil
}

func (c *Coordinator) signingKey(ctx context.Context, userID int64) (*ecdsa.PrivateKey, error) {
	key, err := c.vault.SigningKey(ctx, userID)
	if err != nil {
		return nil, classify(lperr.CodeInternal, "could not unlock wallet", err)
	}
	return key, nil
}

func (c *Coordinator) record(ctx context.Context, record model.JournalRecord) {
	if c.journal == nil {
		return
	}
	record.Time = c.now().UTC()
	if err := c.journal.PutJournal(ctx, []model.JournalRecord{record}); err != nil {
		c.logger.Warn("journal write failed", zap.String("op", record.Operation), zap.Error(err))
	}
}

func (c *Coordinator) observe(op string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = lperr.CodeOf(err).String()
	}
	c.metrics.Operation(op, outcome, c.now().Sub(start))
}

func classify(code lperr.Code, message string, err error) error {
	if _, ok := lperr.As(err); ok {
		return err
	}
	return lperr.Wrap(code, message, err)
}
