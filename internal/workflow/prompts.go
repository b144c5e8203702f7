package workflow

import (
	"fmt"
	"html"
	"strings"

	"github.com/shopspring/decimal"

	"liquidityPilot/internal/chat"
	"liquidityPilot/internal/lifecycle"
	"liquidityPilot/internal/model"
	"liquidityPilot/internal/session"
)

// Callback data understood by the chat layer.
const (
	DataTokenPrefix = "tok:"
	DataConfirm     = "confirm"
	DataCancel      = "cancel"
	DataBack        = "back"
)

func tokenPrompt(tokens [2]model.Token, pool *model.PoolSnapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🏊 <b>%s / %s</b>\n", esc(tokens[0].Label()), esc(tokens[1].Label()))
	if pool != nil {
		fmt.Fprintf(&b, "Fee tier: %s%%\n", pool.FeePercent().String())
		fmt.Fprintf(&b, "Current price: %s %s per %s\n", formatPrice(pool.CurrentPrice), esc(tokens[1].Label()), esc(tokens[0].Label()))
	}
	b.WriteString("\nWhich token do you want to deposit?")
	return b.String()
}

func amountPrompt(tok model.Token) string {
	return fmt.Sprintf("💰 Enter the amount of <b>%s</b> to deposit:", esc(tok.Label()))
}

func upperPricePrompt(st session.EnteringUpperPrice, pool model.PoolSnapshot) string {
	return fmt.Sprintf(
		"📈 Amount: %s %s\nCurrent price: %s\n\nEnter the upper price bound. It must be higher than the current price:",
		st.Amount.String(), esc(st.BaseToken.Label()), formatPrice(pool.CurrentPrice),
	)
}

func confirmPrompt(st session.Confirming, pool model.PoolSnapshot) string {
	return fmt.Sprintf(
		"📋 <b>Confirm position</b>\nPool: %s / %s\nDeposit: %s %s\nRange: %s to %s\n\nThe lower bound is set to the price at confirmation.",
		esc(st.Tokens[0].Label()), esc(st.Tokens[1].Label()),
		st.Amount.String(), esc(st.BaseToken.Label()),
		formatPrice(pool.CurrentPrice), st.UpperPrice.String(),
	)
}

func (m Machine) openedText(res lifecycle.OpenResult) string {
	var b strings.Builder
	b.WriteString("✅ <b>Position created!</b>\n")
	if res.Handle != "" {
		fmt.Fprintf(&b, "Position: #%s\n", esc(res.Handle))
	}
	fmt.Fprintf(&b, "Ticks: %d to %d\n", res.TickLower, res.TickUpper)
	if m.ExplorerTxURL != "" {
		fmt.Fprintf(&b, "<a href=\"%s\">View transaction</a>", esc(fmt.Sprintf(m.ExplorerTxURL, res.TxID)))
	} else {
		fmt.Fprintf(&b, "Tx: <code>%s</code>", esc(res.TxID))
	}
	return b.String()
}

func openRequest(st session.Confirming, e PoolObserved) lifecycle.OpenRequest {
	return lifecycle.OpenRequest{
		Pool:       e.Pool,
		BaseToken:  st.BaseToken,
		Amount:     st.Amount,
		LowerPrice: e.Pool.CurrentPrice,
		UpperPrice: st.UpperPrice,
	}
}

func tokenChoices(tokens [2]model.Token) [][]chat.Choice {
	return [][]chat.Choice{
		chat.Row(
			chat.Choice{Label: tokens[0].Label(), Data: DataTokenPrefix + tokens[0].Address},
			chat.Choice{Label: tokens[1].Label(), Data: DataTokenPrefix + tokens[1].Address},
		),
		chat.Row(chat.Choice{Label: "❌ Cancel", Data: DataCancel}),
	}
}

func stepChoices() [][]chat.Choice {
	return [][]chat.Choice{
		chat.Row(
			chat.Choice{Label: "⬅️ Back", Data: DataBack},
			chat.Choice{Label: "❌ Cancel", Data: DataCancel},
		),
	}
}

func confirmChoices() [][]chat.Choice {
	return [][]chat.Choice{
		chat.Row(
			chat.Choice{Label: "✅ Confirm", Data: DataConfirm},
			chat.Choice{Label: "❌ Cancel", Data: DataCancel},
		),
		chat.Row(chat.Choice{Label: "⬅️ Back", Data: DataBack}),
	}
}

func formatPrice(d decimal.Decimal) string {
	if d.Abs().GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return d.Round(6).String()
	}
	return d.Round(12).String()
}

func esc(s string) string {
	return html.EscapeString(s)
}
