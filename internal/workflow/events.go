package workflow

import (
	"liquidityPilot/internal/chat"
	"liquidityPilot/internal/lifecycle"
	"liquidityPilot/internal/model"
	"liquidityPilot/internal/session"
)

// Actor identifies who an event belongs to.
type Actor struct {
	UserID int64
	ChatID int64
}

// Event is user input or the result of an effect fed back into the machine.
type Event interface {
	isEvent()
}

type SelectPool struct {
	PoolID string
}

type ChooseToken struct {
	Address string
}

type Text struct {
	Body string
}

type ConfirmOpen struct{}

type Cancel struct{}

type Back struct{}

// PoolObserved carries a fresh snapshot fetched on behalf of Cause.
type PoolObserved struct {
	Cause Event
	Pool  model.PoolSnapshot
}

type PoolFetchFailed struct {
	Cause Event
	Err   error
}

type Opened struct {
	Result lifecycle.OpenResult
}

type OpenFailed struct {
	Err error
}

func (SelectPool) isEvent()      {}
func (ChooseToken) isEvent()     {}
func (Text) isEvent()            {}
func (ConfirmOpen) isEvent()     {}
func (Cancel) isEvent()          {}
func (Back) isEvent()            {}
func (PoolObserved) isEvent()    {}
func (PoolFetchFailed) isEvent() {}
func (Opened) isEvent()          {}
func (OpenFailed) isEvent()      {}

// Effect is work the driver performs after a transition.
type Effect interface {
	isEffect()
}

// Reply sends a message. EditPrompt rewrites the last prompt in place when
// there is one. RecordPrompt makes the sent message the new last prompt.
type Reply struct {
	Text         string
	Choices      [][]chat.Choice
	EditPrompt   bool
	RecordPrompt bool
}

// FetchPool loads a fresh snapshot and re-enters with PoolObserved or
// PoolFetchFailed carrying Then as the cause.
type FetchPool struct {
	PoolID string
	Then   Event
}

// OpenPosition submits the request and re-enters with Opened or OpenFailed.
type OpenPosition struct {
	Request lifecycle.OpenRequest
}

func (Reply) isEffect()        {}
func (FetchPool) isEffect()    {}
func (OpenPosition) isEffect() {}

// Transition outcomes, also used as metric labels.
const (
	OutcomeIgnored     = "ignored"
	OutcomeFetch       = "fetch"
	OutcomeStarted     = "started"
	OutcomeAdvanced    = "advanced"
	OutcomeRejected    = "rejected"
	OutcomeUnavailable = "unavailable"
	OutcomeSubmitted   = "submitted"
	OutcomeOpened      = "opened"
	OutcomeFailed      = "failed"
	OutcomeCancelled   = "cancelled"
	OutcomeBack        = "back"
)

// Transition is the result of Advance. A nil Next clears the session.
type Transition struct {
	Next    session.State
	Effects []Effect
	Outcome string
}

// Ignored reports whether the event was not meant for the workflow.
func (t Transition) Ignored() bool {
	return t.Outcome == OutcomeIgnored
}
