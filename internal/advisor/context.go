package advisor

import (
	"fmt"
	"strings"

	"paisa/internal/core"
)

// ContextWindow is a bounded, newest-first slice of one account's history
// together with the balance it belongs to, ready to be formatted for a
// grounding call. Assembling it never mutates the ledger.
type ContextWindow struct {
	AccountName  string
	Balance      core.Money
	Transactions []core.Transaction // newest-first, already bounded
}

// NewContextWindow bounds the transaction slice to at most size entries.
func NewContextWindow(account core.Account, txs []core.Transaction, size int) ContextWindow {
	if len(txs) > size {
		txs = txs[:size]
	}
	return ContextWindow{
		AccountName:  account.Name,
		Balance:      account.Balance,
		Transactions: txs,
	}
}

// TrendLines renders the window in the compact form used by growth
// estimation, one transaction per line: "2026-09-01: +₹500.00 (Income)".
func (w ContextWindow) TrendLines() string {
	var b strings.Builder
	for _, tx := range w.Transactions {
		sign := "-"
		if tx.Direction == core.DirectionCredit {
			sign = "+"
		}
		fmt.Fprintf(&b, "%s: %s%s (%s)\n", tx.Date, sign, tx.Amount, tx.Category)
	}
	return strings.TrimRight(b.String(), "\n")
}

// DetailLines renders the window in the fuller form used for chat
// grounding, including direction and counterparty.
func (w ContextWindow) DetailLines() string {
	var b strings.Builder
	for _, tx := range w.Transactions {
		fmt.Fprintf(&b, "- %s: %s of %s for %s (to/from: %s)\n",
			tx.Date, tx.Direction, tx.Amount, tx.Category, tx.Counterparty)
	}
	return strings.TrimRight(b.String(), "\n")
}
