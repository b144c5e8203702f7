package session

import (
	"github.com/shopspring/decimal"

	"liquidityPilot/internal/model"
)

// Step identifies where a user is in the open-position flow.
type Step int

const (
	TokenSelection Step = iota + 1
	AmountInput
	UpperPriceInput
	Confirm
)

func (s Step) String() string {
	switch s {
	case TokenSelection:
		return "token_selection"
	case AmountInput:
		return "amount_input"
	case UpperPriceInput:
		return "upper_price_input"
	case Confirm:
		return "confirm"
	default:
		return "unknown"
	}
}

// PromptRef points at the last prompt sent to the user so it can be edited
// and so echoes of it can be recognised. Text is the displayed plain text.
type PromptRef struct {
	MessageID int
	Text      string
}

// Header is carried by every step.
type Header struct {
	UserID int64
	ChatID int64
	PoolID string
	Tokens [2]model.Token
	Prompt PromptRef
}

// TokenByAddress finds one of the pool tokens.
func (h Header) TokenByAddress(address string) (model.Token, bool) {
	for _, tok := range h.Tokens {
		if tok.Is(address) {
			return tok, true
		}
	}
	return model.Token{}, false
}

// State is one of SelectingToken, EnteringAmount, EnteringUpperPrice or
// Confirming. Fields that belong to later steps cannot be set earlier.
type State interface {
	Step() Step
	Base() Header
	withPrompt(PromptRef) State
}

type SelectingToken struct {
	Header
}

type EnteringAmount struct {
	Header
	BaseToken model.Token
}

type EnteringUpperPrice struct {
	Header
	BaseToken model.Token
	Amount    decimal.Decimal
}

type Confirming struct {
	Header
	BaseToken  model.Token
	Amount     decimal.Decimal
	UpperPrice decimal.Decimal
}

func (s SelectingToken) Step() Step     { return TokenSelection }
func (s EnteringAmount) Step() Step     { return AmountInput }
func (s EnteringUpperPrice) Step() Step { return UpperPriceInput }
func (s Confirming) Step() Step         { return Confirm }

func (s SelectingToken) Base() Header     { return s.Header }
func (s EnteringAmount) Base() Header     { return s.Header }
func (s EnteringUpperPrice) Base() Header { return s.Header }
func (s Confirming) Base() Header         { return s.Header }

func (s SelectingToken) withPrompt(p PromptRef) State {
	s.Prompt = p
	return s
}

func (s EnteringAmount) withPrompt(p PromptRef) State {
	s.Prompt = p
	return s
}

func (s EnteringUpperPrice) withPrompt(p PromptRef) State {
	s.Prompt = p
	return s
}

func (s Confirming) withPrompt(p PromptRef) State {
	s.Prompt = p
	return s
}

// WithPrompt returns a copy of s that remembers p as its last prompt.
func WithPrompt(s State, p PromptRef) State {
	if s == nil {
		return nil
	}
	return s.withPrompt(p)
}
