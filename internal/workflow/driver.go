package workflow

import (
	"context"

	"go.uber.org/zap"

	"liquidityPilot/internal/chat"
	"liquidityPilot/internal/lifecycle"
	"liquidityPilot/internal/metrics"
	"liquidityPilot/internal/model"
	"liquidityPilot/internal/session"
)

// Pools fetches fresh pool snapshots.
type Pools interface {
	FetchPoolSnapshot(ctx context.Context, poolID string) (model.PoolSnapshot, error)
}

// Opener submits confirmed opens.
type Opener interface {
	Open(ctx context.Context, userID int64, req lifecycle.OpenRequest) (lifecycle.OpenResult, error)
}

// Driver applies transitions to the session store. Events for one user must
// be delivered serially.
type Driver struct {
	machine Machine
	store   *session.Store
	pools   Pools
	opener  Opener
	sender  chat.Sender
	metrics *metrics.Recorder
	logger  *zap.Logger
}

func NewDriver(machine Machine, store *session.Store, pools Pools, opener Opener, sender chat.Sender, rec *metrics.Recorder, logger *zap.Logger) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if store == nil {
		store = session.NewStore()
	}
	return &Driver{
		machine: machine,
		store:   store,
		pools:   pools,
		opener:  opener,
		sender:  sender,
		metrics: rec,
		logger:  logger,
	}
}

// Active reports whether the user has a flow in progress.
func (d *Driver) Active(userID int64) bool {
	return d.store.Get(userID) != nil
}

// Handle runs ev and every event its effects produce. It returns false when
// the initial event was not consumed by the workflow.
func (d *Driver) Handle(ctx context.Context, actor Actor, ev Event) bool {
	handled := false
	queue := []Event{ev}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]

		cur := d.store.Get(actor.UserID)
		tr := d.machine.Advance(actor, cur, next)
		d.metrics.Transition(stepLabel(cur), tr.Outcome)
		if tr.Ignored() {
			continue
		}
		handled = true

		state := tr.Next
		for _, eff := range tr.Effects {
			switch e := eff.(type) {
			case Reply:
				state = d.reply(ctx, actor, cur, state, e)
			case FetchPool:
				pool, err := d.pools.FetchPoolSnapshot(ctx, e.PoolID)
				if err != nil {
					d.logger.Warn("pool fetch failed", zap.Int64("user_id", actor.UserID), zap.String("pool", e.PoolID), zap.Error(err))
					queue = append(queue, PoolFetchFailed{Cause: e.Then, Err: err})
					continue
				}
				queue = append(queue, PoolObserved{Cause: e.Then, Pool: pool})
			case OpenPosition:
				res, err := d.opener.Open(ctx, actor.UserID, e.Request)
				if err != nil {
					d.logger.Warn("open position failed", zap.Int64("user_id", actor.UserID), zap.String("pool", e.Request.Pool.ID), zap.Error(err))
					queue = append(queue, OpenFailed{Err: err})
					continue
				}
				queue = append(queue, Opened{Result: res})
			}
		}

		d.store.Put(actor.UserID, state)
		d.logger.Debug("workflow transition",
			zap.Int64("user_id", actor.UserID),
			zap.String("from", stepLabel(cur)),
			zap.String("to", stepLabel(state)),
			zap.String("outcome", tr.Outcome),
		)
	}
	return handled
}

func (d *Driver) reply(ctx context.Context, actor Actor, cur, state session.State, r Reply) session.State {
	out := chat.Reply{Text: r.Text, Choices: r.Choices}
	if r.EditPrompt && cur != nil {
		if id := cur.Base().Prompt.MessageID; id != 0 {
			out.Edit = &chat.MessageRef{ChatID: actor.ChatID, MessageID: id}
		}
	}
	ref, err := d.sender.Send(ctx, actor.ChatID, out)
	if err != nil {
		d.logger.Warn("reply failed", zap.Int64("user_id", actor.UserID), zap.Error(err))
		return state
	}
	if r.RecordPrompt && state != nil {
		state = session.WithPrompt(state, session.PromptRef{MessageID: ref.MessageID, Text: chat.PlainText(r.Text)})
	}
	return state
}

func stepLabel(st session.State) string {
	if st == nil {
		return "none"
	}
	return st.Step().String()
}
