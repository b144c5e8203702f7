package bot

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"liquidityPilot/internal/catalog"
	"liquidityPilot/internal/chat"
	"liquidityPilot/internal/lperr"
	"liquidityPilot/internal/model"
	"liquidityPilot/internal/positions"
)

const helpText = `🤖 <b>LiquidityPilot</b>

/start - create your wallet
/wallet - wallet address and balance
/pools - featured pools
/pool &lt;address&gt; - pool details
/positions - your open positions
/close &lt;n&gt; - close position n
/harvest &lt;n&gt; - claim rewards of position n
/confirm - confirm the position being created
/back - go back to token selection
/cancel - stop creating a position
/help - this message`

const poolFetchConcurrency = 4

func welcomeText(username, address string, created bool) string {
	var b strings.Builder
	if username != "" {
		fmt.Fprintf(&b, "👋 Welcome, %s!\n\n", esc(username))
	} else {
		b.WriteString("👋 Welcome!\n\n")
	}
	if created {
		b.WriteString("✅ A new wallet has been created for you.\n")
	}
	fmt.Fprintf(&b, "Your wallet: <code>%s</code>\n\n", esc(address))
	b.WriteString("Fund it with the pool tokens and some gas, then pick a pool with /pools.\nSend /help for all commands.")
	return b.String()
}

func (d *Dispatcher) walletText(address string, balance decimal.Decimal, balanceOK bool) string {
	var b strings.Builder
	b.WriteString("👛 <b>Your wallet</b>\n\n")
	if d.cfg.ExplorerAddressURL != "" {
		fmt.Fprintf(&b, "Address: <a href=\"%s\"><code>%s</code></a>\n", esc(fmt.Sprintf(d.cfg.ExplorerAddressURL, address)), esc(address))
	} else {
		fmt.Fprintf(&b, "Address: <code>%s</code>\n", esc(address))
	}
	if balanceOK {
		fmt.Fprintf(&b, "Balance: %s %s", formatAmount(balance), esc(d.cfg.NativeSymbol))
	} else {
		b.WriteString("Balance: unavailable")
	}
	return b.String()
}

func walletChoices() [][]chat.Choice {
	return [][]chat.Choice{
		chat.Row(chat.Choice{Label: "🔑 Export private key", Data: DataWalletExport}),
		chat.Row(
			chat.Choice{Label: "🔄 Refresh", Data: DataWalletRefresh},
			chat.Choice{Label: "✖️ Close", Data: DataWalletClose},
		),
	}
}

func exportText(key string) string {
	return "🔑 <b>Your private key</b>\n\n<code>" + esc(key) + "</code>\n\n⚠️ Anyone with this key controls your funds. Delete this message once you have stored it safely."
}

type poolEntry struct {
	listing catalog.Pool
	pool    model.PoolSnapshot
	err     error
}

// loadPools fetches every featured pool concurrently within PoolListTimeout.
// A pool that fails is listed as unavailable.
func (d *Dispatcher) loadPools(ctx context.Context, pools []catalog.Pool) []poolEntry {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.PoolListTimeout)
	defer cancel()

	entries := make([]poolEntry, len(pools))
	var g errgroup.Group
	g.SetLimit(poolFetchConcurrency)
	for i, listing := range pools {
		i, listing := i, listing
		g.Go(func() error {
			pool, err := d.chain.FetchPoolSnapshot(ctx, listing.ID)
			entries[i] = poolEntry{listing: listing, pool: pool, err: err}
			return nil
		})
	}
	_ = g.Wait()
	return entries
}

func poolListText(entries []poolEntry) string {
	var b strings.Builder
	b.WriteString("🏊 <b>Featured pools</b>\n")
	for i, e := range entries {
		fmt.Fprintf(&b, "\n<b>%d.</b> %s\n", i+1, esc(entryLabel(e)))
		if e.err != nil || !e.pool.Complete() {
			b.WriteString("   ⚠️ unavailable right now\n")
			continue
		}
		fmt.Fprintf(&b, "   Fee: %s%%  Price: %s\n", e.pool.FeePercent().String(), formatAmount(e.pool.CurrentPrice))
	}
	b.WriteString("\nTap a pool to add single-sided liquidity.")
	return b.String()
}

func poolListChoices(entries []poolEntry) [][]chat.Choice {
	rows := make([][]chat.Choice, 0, len(entries))
	for i, e := range entries {
		if e.err != nil || !e.pool.Complete() {
			continue
		}
		rows = append(rows, chat.Row(chat.Choice{
			Label: strconv.Itoa(i+1) + ". " + entryLabel(e),
			Data:  DataSelectPoolPrefix + e.listing.ID,
		}))
	}
	return rows
}

func entryLabel(e poolEntry) string {
	if e.listing.Label != "" {
		return e.listing.Label
	}
	if e.err == nil && e.pool.Complete() {
		return pairLabel(e.pool.Token0, e.pool.Token1)
	}
	return shortAddress(e.listing.ID)
}

func poolDetailText(pool model.PoolSnapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🏊 <b>%s</b>\n\n", esc(pairLabel(pool.Token0, pool.Token1)))
	fmt.Fprintf(&b, "Pool: <code>%s</code>\n", esc(pool.ID))
	fmt.Fprintf(&b, "Fee tier: %s%%\n", pool.FeePercent().String())
	fmt.Fprintf(&b, "Tick spacing: %d\n", pool.TickSpacing)
	fmt.Fprintf(&b, "Current price: %s %s per %s", formatAmount(pool.CurrentPrice), esc(pool.Token1.Label()), esc(pool.Token0.Label()))
	return b.String()
}

func poolDetailChoices(pool model.PoolSnapshot) [][]chat.Choice {
	if !pool.Complete() {
		return nil
	}
	return [][]chat.Choice{
		chat.Row(chat.Choice{Label: "➕ Single-sided LP", Data: DataSelectPoolPrefix + pool.ID}),
	}
}

func positionsText(list positions.List) string {
	var b strings.Builder
	b.WriteString("📊 <b>Your positions</b>\n")
	for i, pos := range list.Items() {
		status := "🟢 in range"
		if !pos.InRange {
			status = "🔴 out of range"
		}
		fmt.Fprintf(&b, "\n<b>%d.</b> %s (%s%%) %s\n", i+1, esc(pairLabel(pos.Token0, pos.Token1)), decimal.New(int64(pos.Fee), -4).String(), status)
		fmt.Fprintf(&b, "   Range: %s to %s\n", formatAmount(pos.PriceLower), formatAmount(pos.PriceUpper))
		fmt.Fprintf(&b, "   Pooled: %s %s + %s %s\n",
			formatAmount(pos.Amount0), esc(pos.Token0.Label()),
			formatAmount(pos.Amount1), esc(pos.Token1.Label()),
		)
		if len(pos.Rewards) > 0 {
			parts := make([]string, 0, len(pos.Rewards))
			for _, r := range pos.Rewards {
				parts = append(parts, formatAmount(r.Amount)+" "+esc(r.Token.Label()))
			}
			fmt.Fprintf(&b, "   Rewards: %s\n", strings.Join(parts, " + "))
		}
		if !pos.HasLiquidity() {
			b.WriteString("   ⚠️ no liquidity left\n")
		}
		fmt.Fprintf(&b, "   ID: #%s\n", esc(pos.Handle))
	}
	return b.String()
}

func positionChoices(list positions.List) [][]chat.Choice {
	rows := make([][]chat.Choice, 0, list.Len())
	for i := 1; i <= list.Len(); i++ {
		n := strconv.Itoa(i)
		rows = append(rows, chat.Row(
			chat.Choice{Label: "❌ Close " + n, Data: DataClosePrefix + n},
			chat.Choice{Label: "💰 Claim " + n, Data: DataHarvestPrefix + n},
		))
	}
	return rows
}

func (d *Dispatcher) txLinks(txIDs []string) string {
	lines := make([]string, 0, len(txIDs))
	for _, tx := range txIDs {
		if d.cfg.ExplorerTxURL != "" {
			lines = append(lines, fmt.Sprintf("<a href=\"%s\">View transaction</a>", esc(fmt.Sprintf(d.cfg.ExplorerTxURL, tx))))
			continue
		}
		lines = append(lines, "Tx: <code>"+esc(tx)+"</code>")
	}
	return strings.Join(lines, "\n")
}

func errorText(err error) string {
	msg := lperr.Message(err)
	if msg == "" {
		msg = "internal error"
	}
	text := "❌ " + esc(upperFirst(msg)) + "."
	if lperr.Retryable(err) {
		text += " Please try again."
	}
	return text
}

func pairLabel(a, b model.Token) string {
	return a.Label() + " / " + b.Label()
}

func shortAddress(address string) string {
	if len(address) <= 12 {
		return address
	}
	return address[:6] + "..." + address[len(address)-4:]
}

func formatAmount(d decimal.Decimal) string {
	if d.Abs().GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return d.Round(6).String()
	}
	return d.Round(12).String()
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func esc(s string) string {
	return html.EscapeString(s)
}
