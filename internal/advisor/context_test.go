package advisor

import (
	"strings"
	"testing"

	"paisa/internal/core"
)

func windowFixture() ContextWindow {
	account := core.Account{Name: "Asha", Balance: core.Money{Paise: 420000}}
	txs := []core.Transaction{
		{
			Date:         core.NewDate(2026, 9, 1),
			Direction:    core.DirectionDebit,
			Amount:       core.Money{Paise: 150000},
			Category:     "Food",
			Counterparty: "Lunch",
		},
		{
			Date:         core.NewDate(2026, 8, 28),
			Direction:    core.DirectionCredit,
			Amount:       core.Money{Paise: 500000},
			Category:     "Income",
			Counterparty: "Deposit",
		},
	}
	return NewContextWindow(account, txs, 15)
}

func TestTrendLines(t *testing.T) {
	got := windowFixture().TrendLines()
	want := "2026-09-01: -₹1500.00 (Food)\n2026-08-28: +₹5000.00 (Income)"
	if got != want {
		t.Fatalf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestDetailLines(t *testing.T) {
	got := windowFixture().DetailLines()
	want := "- 2026-09-01: debit of ₹1500.00 for Food (to/from: Lunch)\n" +
		"- 2026-08-28: credit of ₹5000.00 for Income (to/from: Deposit)"
	if got != want {
		t.Fatalf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestNewContextWindowBounds(t *testing.T) {
	account := core.Account{Name: "Asha"}
	txs := make([]core.Transaction, 30)
	w := NewContextWindow(account, txs, ChatWindow)
	if len(w.Transactions) != ChatWindow {
		t.Fatalf("window size = %d, want %d", len(w.Transactions), ChatWindow)
	}

	w = NewContextWindow(account, nil, ChatWindow)
	if len(w.Transactions) != 0 {
		t.Fatalf("empty history window size = %d, want 0", len(w.Transactions))
	}
}

func TestGrowthPromptMentionsBalanceAndRules(t *testing.T) {
	prompt := growthPrompt(windowFixture())
	for _, want := range []string{"₹4200.00", "growthRate", "STRICT JSON", "2026-09-01: -₹1500.00 (Food)"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestChatPromptGroundsAndCarriesTurns(t *testing.T) {
	turns := []core.ChatTurn{
		{Role: core.RoleUser, Content: "How much did I spend on food?"},
		{Role: core.RoleAssistant, Content: "You spent ₹1500.00 on food."},
	}
	prompt := chatPrompt(windowFixture(), turns, "And on transport?")
	for _, want := range []string{
		"named Asha",
		"strictly on the provided transaction history",
		"- 2026-09-01: debit of ₹1500.00 for Food (to/from: Lunch)",
		"user: How much did I spend on food?",
		"USER QUESTION: And on transport?",
	} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
}
