// Package workflow drives the multi-step open-position conversation. Advance
// is a pure function of (state, event); the Driver performs its effects and
// feeds results back in as events.
package workflow

import (
	"strings"

	"github.com/shopspring/decimal"

	"liquidityPilot/internal/chat"
	"liquidityPilot/internal/lperr"
	"liquidityPilot/internal/session"
)

// Machine holds presentation settings for replies.
type Machine struct {
	// ExplorerTxURL is a fmt pattern with one %s for the transaction hash.
	ExplorerTxURL string
}

func (m Machine) Advance(actor Actor, cur session.State, ev Event) Transition {
	switch e := ev.(type) {
	case SelectPool:
		if strings.TrimSpace(e.PoolID) == "" {
			return reject(cur, "❌ Pool id is required.")
		}
		return fetch(cur, e.PoolID, e)
	case ChooseToken:
		return m.chooseToken(cur, e)
	case Text:
		return m.text(cur, e)
	case ConfirmOpen:
		return m.confirm(cur)
	case Cancel:
		return m.cancel(cur)
	case Back:
		return m.back(cur)
	case PoolObserved:
		return m.observed(actor, cur, e)
	case PoolFetchFailed:
		return m.fetchFailed(cur, e)
	case Opened:
		return Transition{
			Next:    nil,
			Effects: []Effect{Reply{Text: m.openedText(e.Result), EditPrompt: true}},
			Outcome: OutcomeOpened,
		}
	case OpenFailed:
		return Transition{
			Next:    cur,
			Effects: []Effect{Reply{Text: openFailedText(e.Err)}},
			Outcome: OutcomeFailed,
		}
	}
	return ignore(cur)
}

func (m Machine) chooseToken(cur session.State, e ChooseToken) Transition {
	st, ok := cur.(session.SelectingToken)
	if !ok {
		return ignore(cur)
	}
	tok, ok := st.TokenByAddress(e.Address)
	if !ok {
		return reject(cur, "❌ That token is not part of this pool.")
	}
	next := session.EnteringAmount{Header: st.Header, BaseToken: tok}
	return Transition{
		Next:    next,
		Effects: []Effect{Reply{Text: amountPrompt(tok), Choices: stepChoices(), RecordPrompt: true}},
		Outcome: OutcomeAdvanced,
	}
}

// text handles free-form input. Commands and echoes of the last prompt are
// never treated as answers.
func (m Machine) text(cur session.State, e Text) Transition {
	if cur == nil {
		return ignore(cur)
	}
	body := strings.TrimSpace(e.Body)
	if body == "" || strings.HasPrefix(body, "/") {
		return ignore(cur)
	}
	if isEcho(body, cur.Base().Prompt.Text) {
		return ignore(cur)
	}

	switch cur.(type) {
	case session.EnteringAmount:
		if _, ok := parsePositive(body); !ok {
			return reject(cur, "❌ Please enter a valid positive number.")
		}
		return fetch(cur, cur.Base().PoolID, Text{Body: body})
	case session.EnteringUpperPrice:
		return fetch(cur, cur.Base().PoolID, Text{Body: body})
	default:
		return ignore(cur)
	}
}

func (m Machine) confirm(cur session.State) Transition {
	if cur == nil {
		return reject(nil, "❌ Nothing to confirm. Pick a pool with /pools first.")
	}
	if _, ok := cur.(session.Confirming); !ok {
		return reject(cur, "❌ Finish the current step before confirming.")
	}
	return fetch(cur, cur.Base().PoolID, ConfirmOpen{})
}

func (m Machine) cancel(cur session.State) Transition {
	if cur == nil {
		return ignore(cur)
	}
	return Transition{
		Next:    nil,
		Effects: []Effect{Reply{Text: "❌ Position setup cancelled.", EditPrompt: true}},
		Outcome: OutcomeCancelled,
	}
}

func (m Machine) back(cur session.State) Transition {
	if cur == nil {
		return ignore(cur)
	}
	h := cur.Base()
	return Transition{
		Next:    session.SelectingToken{Header: h},
		Effects: []Effect{Reply{Text: tokenPrompt(h.Tokens, nil), Choices: tokenChoices(h.Tokens), RecordPrompt: true}},
		Outcome: OutcomeBack,
	}
}

func (m Machine) observed(actor Actor, cur session.State, e PoolObserved) Transition {
	switch cause := e.Cause.(type) {
	case SelectPool:
		if !e.Pool.Complete() {
			return Transition{
				Next:    cur,
				Effects: []Effect{Reply{Text: "❌ Pool token information is unavailable. Please try another pool."}},
				Outcome: OutcomeUnavailable,
			}
		}
		h := session.Header{
			UserID: actor.UserID,
			ChatID: actor.ChatID,
			PoolID: cause.PoolID,
			Tokens: e.Pool.Tokens(),
		}
		pool := e.Pool
		return Transition{
			Next:    session.SelectingToken{Header: h},
			Effects: []Effect{Reply{Text: tokenPrompt(h.Tokens, &pool), Choices: tokenChoices(h.Tokens), RecordPrompt: true}},
			Outcome: OutcomeStarted,
		}

	case Text:
		switch st := cur.(type) {
		case session.EnteringAmount:
			amount, ok := parsePositive(cause.Body)
			if !ok {
				return reject(cur, "❌ Please enter a valid positive number.")
			}
			next := session.EnteringUpperPrice{Header: st.Header, BaseToken: st.BaseToken, Amount: amount}
			return Transition{
				Next:    next,
				Effects: []Effect{Reply{Text: upperPricePrompt(next, e.Pool), Choices: stepChoices(), RecordPrompt: true}},
				Outcome: OutcomeAdvanced,
			}
		case session.EnteringUpperPrice:
			price, ok := parsePositive(cause.Body)
			if !ok || !price.GreaterThan(e.Pool.CurrentPrice) {
				return reject(cur, "❌ Please enter a valid price higher than the current price ("+formatPrice(e.Pool.CurrentPrice)+").")
			}
			next := session.Confirming{
				Header:     st.Header,
				BaseToken:  st.BaseToken,
				Amount:     st.Amount,
				UpperPrice: price,
			}
			return Transition{
				Next:    next,
				Effects: []Effect{Reply{Text: confirmPrompt(next, e.Pool), Choices: confirmChoices(), RecordPrompt: true}},
				Outcome: OutcomeAdvanced,
			}
		}
		return ignore(cur)

	case ConfirmOpen:
		st, ok := cur.(session.Confirming)
		if !ok {
			return reject(cur, "❌ Nothing to confirm. Pick a pool with /pools first.")
		}
		return Transition{
			Next: cur,
			Effects: []Effect{
				Reply{Text: "⏳ Creating position, this can take a minute..."},
				OpenPosition{Request: openRequest(st, e)},
			},
			Outcome: OutcomeSubmitted,
		}
	}
	return ignore(cur)
}

func (m Machine) fetchFailed(cur session.State, e PoolFetchFailed) Transition {
	text := "❌ Could not load the current pool price. Please try again."
	if _, ok := e.Cause.(SelectPool); ok {
		text = "❌ Failed to fetch pool information. Please try again."
	}
	return Transition{Next: cur, Effects: []Effect{Reply{Text: text}}, Outcome: OutcomeUnavailable}
}

// isEcho reports whether body is the prompt as the client displayed it.
// Surrounding whitespace and line endings are not significant.
func isEcho(body, prompt string) bool {
	prompt = chat.PlainText(prompt)
	if prompt == "" {
		return false
	}
	return normalizeLines(body) == normalizeLines(prompt)
}

func normalizeLines(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func fetch(cur session.State, poolID string, then Event) Transition {
	return Transition{
		Next:    cur,
		Effects: []Effect{FetchPool{PoolID: poolID, Then: then}},
		Outcome: OutcomeFetch,
	}
}

func reject(cur session.State, text string) Transition {
	return Transition{Next: cur, Effects: []Effect{Reply{Text: text}}, Outcome: OutcomeRejected}
}

func ignore(cur session.State) Transition {
	return Transition{Next: cur, Outcome: OutcomeIgnored}
}

// parsePositive accepts finite decimals strictly greater than zero. The
// input is kept exactly as entered.
func parsePositive(text string) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(strings.TrimSpace(text))
	if err != nil || d.Sign() <= 0 {
		return decimal.Decimal{}, false
	}
	return d, true
}

func openFailedText(err error) string {
	msg := lperr.Message(err)
	hint := "Use /back to adjust the position or /cancel to stop."
	if lperr.Retryable(err) {
		hint = "Send /confirm to retry or /cancel to stop."
	}
	return "❌ Failed to create position: " + msg + ".\n" + hint
}
