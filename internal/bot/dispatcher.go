// Package bot routes chat events to the open-position workflow, the
// lifecycle coordinator and the wallet views.
package bot

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"liquidityPilot/internal/catalog"
	"liquidityPilot/internal/chat"
	"liquidityPilot/internal/lifecycle"
	"liquidityPilot/internal/lperr"
	"liquidityPilot/internal/metrics"
	"liquidityPilot/internal/model"
	"liquidityPilot/internal/positions"
	"liquidityPilot/internal/ratelimit"
	"liquidityPilot/internal/workflow"
)

// Callback data prefixes handled outside the workflow.
const (
	DataSelectPoolPrefix = "lp:"
	DataClosePrefix      = "close:"
	DataHarvestPrefix    = "harvest:"
	DataWalletExport     = "wallet:export"
	DataWalletRefresh    = "wallet:refresh"
	DataWalletClose      = "wallet:close"
)

// Workflow is the open-position conversation.
type Workflow interface {
	Handle(ctx context.Context, actor workflow.Actor, ev workflow.Event) bool
}

// Lifecycle manages existing positions.
type Lifecycle interface {
	List(ctx context.Context, userID int64) (positions.List, error)
	Close(ctx context.Context, userID int64, ordinal int) (lifecycle.CloseResult, error)
	Harvest(ctx context.Context, userID int64, ordinal int) (lifecycle.HarvestResult, error)
}

// Wallets provisions and reveals user wallets.
type Wallets interface {
	Provision(ctx context.Context, userID, chatID int64) (*model.User, bool, error)
	Address(ctx context.Context, userID int64) (string, error)
	ExportKey(ctx context.Context, userID int64) (string, error)
}

// Chain reads pools and balances for the informational views.
type Chain interface {
	FetchPoolSnapshot(ctx context.Context, poolID string) (model.PoolSnapshot, error)
	WalletBalance(ctx context.Context, address string) (decimal.Decimal, error)
}

type Config struct {
	ExplorerTxURL      string
	ExplorerAddressURL string
	NativeSymbol       string
	PoolListTimeout    time.Duration
}

type Deps struct {
	Workflow  Workflow
	Lifecycle Lifecycle
	Wallets   Wallets
	Chain     Chain
	Catalog   *catalog.Catalog
	Sender    chat.Sender
	Limiter   *ratelimit.Limiter
	Metrics   *metrics.Recorder
}

type Dispatcher struct {
	cfg       Config
	workflow  Workflow
	lifecycle Lifecycle
	wallets   Wallets
	chain     Chain
	catalog   *catalog.Catalog
	sender    chat.Sender
	limiter   *ratelimit.Limiter
	metrics   *metrics.Recorder
	logger    *zap.Logger
	now       func() time.Time
}

func NewDispatcher(cfg Config, deps Deps, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.NativeSymbol == "" {
		cfg.NativeSymbol = "BNB"
	}
	if cfg.PoolListTimeout <= 0 {
		cfg.PoolListTimeout = 15 * time.Second
	}
	return &Dispatcher{
		cfg:       cfg,
		workflow:  deps.Workflow,
		lifecycle: deps.Lifecycle,
		wallets:   deps.Wallets,
		chain:     deps.Chain,
		catalog:   deps.Catalog,
		sender:    deps.Sender,
		limiter:   deps.Limiter,
		metrics:   deps.Metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// Dispatch handles one inbound event. Failures become replies.
func (d *Dispatcher) Dispatch(ctx context.Context, ev chat.Event) {
	if !d.limiter.Allow(ev.UserID, d.now()) {
		d.metrics.RateLimited()
		d.logger.Warn("event rate limited", zap.Int64("user_id", ev.UserID), zap.Int64("chat_id", ev.ChatID))
		return
	}

	switch ev.Kind {
	case chat.EventCommand:
		d.command(ctx, ev)
	case chat.EventCallback:
		d.callback(ctx, ev)
	case chat.EventText:
		if d.workflow.Handle(ctx, actorOf(ev), workflow.Text{Body: ev.Text}) {
			return
		}
		// a bare pool address outside a flow shows the pool
		if text := strings.TrimSpace(ev.Text); common.IsHexAddress(text) {
			d.poolDetail(ctx, ev, text)
		}
	}
}

func (d *Dispatcher) command(ctx context.Context, ev chat.Event) {
	actor := actorOf(ev)
	switch ev.Command {
	case "start":
		d.start(ctx, ev)
	case "wallet":
		d.wallet(ctx, ev, nil)
	case "pools":
		d.featuredPools(ctx, ev)
	case "pool":
		if len(ev.Args) == 0 {
			d.say(ctx, ev.ChatID, "Usage: /pool &lt;pool address&gt;")
			return
		}
		d.poolDetail(ctx, ev, ev.Args[0])
	case "positions":
		d.positions(ctx, ev)
	case "close":
		if ordinal, ok := d.ordinalArg(ctx, ev, "close"); ok {
			d.closePosition(ctx, ev, ordinal)
		}
	case "harvest", "claim":
		if ordinal, ok := d.ordinalArg(ctx, ev, "harvest"); ok {
			d.harvest(ctx, ev, ordinal)
		}
	case "confirm":
		d.workflow.Handle(ctx, actor, workflow.ConfirmOpen{})
	case "cancel":
		if !d.workflow.Handle(ctx, actor, workflow.Cancel{}) {
			d.say(ctx, ev.ChatID, "Nothing to cancel.")
		}
	case "back":
		if !d.workflow.Handle(ctx, actor, workflow.Back{}) {
			d.say(ctx, ev.ChatID, "Nothing to go back to. Pick a pool with /pools.")
		}
	case "help":
		d.say(ctx, ev.ChatID, helpText)
	default:
		d.say(ctx, ev.ChatID, "Unknown command. Send /help to see what I can do.")
	}
}

func (d *Dispatcher) callback(ctx context.Context, ev chat.Event) {
	actor := actorOf(ev)
	data := strings.TrimSpace(ev.Data)
	switch {
	case strings.HasPrefix(data, DataSelectPoolPrefix):
		d.workflow.Handle(ctx, actor, workflow.SelectPool{PoolID: strings.TrimPrefix(data, DataSelectPoolPrefix)})
	case strings.HasPrefix(data, workflow.DataTokenPrefix):
		d.workflow.Handle(ctx, actor, workflow.ChooseToken{Address: strings.TrimPrefix(data, workflow.DataTokenPrefix)})
	case data == workflow.DataConfirm:
		d.workflow.Handle(ctx, actor, workflow.ConfirmOpen{})
	case data == workflow.DataCancel:
		d.workflow.Handle(ctx, actor, workflow.Cancel{})
	case data == workflow.DataBack:
		d.workflow.Handle(ctx, actor, workflow.Back{})
	case strings.HasPrefix(data, DataClosePrefix):
		if ordinal, err := strconv.Atoi(strings.TrimPrefix(data, DataClosePrefix)); err == nil {
			d.closePosition(ctx, ev, ordinal)
		}
	case strings.HasPrefix(data, DataHarvestPrefix):
		if ordinal, err := strconv.Atoi(strings.TrimPrefix(data, DataHarvestPrefix)); err == nil {
			d.harvest(ctx, ev, ordinal)
		}
	case data == DataWalletExport:
		d.exportKey(ctx, ev)
	case data == DataWalletRefresh:
		d.wallet(ctx, ev, &chat.MessageRef{ChatID: ev.ChatID, MessageID: ev.MessageID})
	case data == DataWalletClose:
		d.send(ctx, ev.ChatID, chat.Reply{
			Text: "👛 Wallet closed.",
			Edit: &chat.MessageRef{ChatID: ev.ChatID, MessageID: ev.MessageID},
		})
	default:
		d.logger.Debug("unknown callback", zap.Int64("user_id", ev.UserID), zap.String("data", data))
	}
}

func (d *Dispatcher) start(ctx context.Context, ev chat.Event) {
	user, created, err := d.wallets.Provision(ctx, ev.UserID, ev.ChatID)
	if err != nil {
		d.fail(ctx, ev, "provision wallet", err)
		return
	}
	d.send(ctx, ev.ChatID, chat.Reply{Text: welcomeText(ev.Username, user.WalletAddress, created), Choices: walletChoices()})
}

func (d *Dispatcher) wallet(ctx context.Context, ev chat.Event, edit *chat.MessageRef) {
	address, err := d.wallets.Address(ctx, ev.UserID)
	if err != nil {
		d.fail(ctx, ev, "wallet address", err)
		return
	}
	balance, err := d.chain.WalletBalance(ctx, address)
	if err != nil {
		d.logger.Warn("wallet balance failed", zap.Int64("user_id", ev.UserID), zap.Error(err))
	}
	d.send(ctx, ev.ChatID, chat.Reply{
		Text:    d.walletText(address, balance, err == nil),
		Choices: walletChoices(),
		Edit:    edit,
	})
}

func (d *Dispatcher) exportKey(ctx context.Context, ev chat.Event) {
	key, err := d.wallets.ExportKey(ctx, ev.UserID)
	if err != nil {
		d.fail(ctx, ev, "export key", err)
		return
	}
	d.logger.Info("private key exported", zap.Int64("user_id", ev.UserID))
	d.say(ctx, ev.ChatID, exportText(key))
}

func (d *Dispatcher) featuredPools(ctx context.Context, ev chat.Event) {
	pools := d.catalog.Pools()
	if len(pools) == 0 {
		d.say(ctx, ev.ChatID, "No featured pools are configured. Use /pool &lt;pool address&gt; to open any pool.")
		return
	}
	entries := d.loadPools(ctx, pools)
	d.send(ctx, ev.ChatID, chat.Reply{Text: poolListText(entries), Choices: poolListChoices(entries)})
}

func (d *Dispatcher) poolDetail(ctx context.Context, ev chat.Event, poolID string) {
	pool, err := d.chain.FetchPoolSnapshot(ctx, strings.TrimSpace(poolID))
	if err != nil {
		d.fail(ctx, ev, "fetch pool", err)
		return
	}
	d.send(ctx, ev.ChatID, chat.Reply{Text: poolDetailText(pool), Choices: poolDetailChoices(pool)})
}

func (d *Dispatcher) positions(ctx context.Context, ev chat.Event) {
	list, err := d.lifecycle.List(ctx, ev.UserID)
	if err != nil {
		d.fail(ctx, ev, "list positions", err)
		return
	}
	if list.Len() == 0 {
		d.say(ctx, ev.ChatID, "📭 You have no open positions. Pick a pool with /pools to create one.")
		return
	}
	d.send(ctx, ev.ChatID, chat.Reply{Text: positionsText(list), Choices: positionChoices(list)})
}

func (d *Dispatcher) closePosition(ctx context.Context, ev chat.Event, ordinal int) {
	d.say(ctx, ev.ChatID, "⏳ Closing position "+strconv.Itoa(ordinal)+"...")
	res, err := d.lifecycle.Close(ctx, ev.UserID, ordinal)
	if err != nil {
		d.fail(ctx, ev, "close position", err)
		return
	}
	d.say(ctx, ev.ChatID, "✅ <b>Position closed</b>\nLiquidity removed and fees collected.\n"+d.txLinks([]string{res.TxID}))
}

func (d *Dispatcher) harvest(ctx context.Context, ev chat.Event, ordinal int) {
	res, err := d.lifecycle.Harvest(ctx, ev.UserID, ordinal)
	if err != nil {
		d.fail(ctx, ev, "harvest rewards", err)
		return
	}
	if !res.Claimed {
		d.say(ctx, ev.ChatID, "ℹ️ Position "+strconv.Itoa(ordinal)+" has no rewards to claim yet.")
		return
	}
	d.say(ctx, ev.ChatID, "✅ <b>Rewards claimed</b>\n"+d.txLinks(res.TxIDs))
}

func (d *Dispatcher) ordinalArg(ctx context.Context, ev chat.Event, command string) (int, bool) {
	if len(ev.Args) == 0 {
		d.say(ctx, ev.ChatID, "Usage: /"+command+" &lt;position number&gt;. See /positions for numbers.")
		return 0, false
	}
	ordinal, err := strconv.Atoi(ev.Args[0])
	if err != nil {
		d.say(ctx, ev.ChatID, "❌ Invalid position number. See /positions for numbers.")
		return 0, false
	}
	return ordinal, true
}

func (d *Dispatcher) fail(ctx context.Context, ev chat.Event, op string, err error) {
	fields := []zap.Field{zap.Int64("user_id", ev.UserID), zap.String("op", op), zap.Error(err)}
	if lperr.CodeOf(err) == lperr.CodeInternal {
		d.logger.Error("chat operation failed", fields...)
	} else {
		d.logger.Info("chat operation rejected", fields...)
	}
	d.say(ctx, ev.ChatID, errorText(err))
}

func (d *Dispatcher) say(ctx context.Context, chatID int64, text string) {
	d.send(ctx, chatID, chat.Reply{Text: text})
}

func (d *Dispatcher) send(ctx context.Context, chatID int64, reply chat.Reply) {
	if _, err := d.sender.Send(ctx, chatID, reply); err != nil {
		d.logger.Warn("reply failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func actorOf(ev chat.Event) workflow.Actor {
	return workflow.Actor{UserID: ev.UserID, ChatID: ev.ChatID}
}
