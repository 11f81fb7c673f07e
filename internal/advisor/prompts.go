package advisor

import (
	"fmt"
	"strings"

	"paisa/internal/core"
)

// growthPrompt asks the model for a savings growth-rate estimate plus a
// short written analysis, as strict JSON with a fixed key set.
func growthPrompt(w ContextWindow) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Current Balance: %s\n", w.Balance)
	b.WriteString("Recent Transactions:\n")
	b.WriteString(w.TrendLines())
	b.WriteString("\n\n")

	b.WriteString("Analyze the user's financial health and estimate a monthly growth rate for their savings.\n")
	b.WriteString("- If they have good saving habits, give a positive decimal (e.g. 0.05 for 5% growth).\n")
	b.WriteString("- If they overspend, give a negative decimal (e.g. -0.03 for -3% loss).\n")
	b.WriteString("- Be realistic based on the transaction history.\n\n")

	b.WriteString("Output STRICT JSON only with exactly these 4 keys (no markdown, no code fences):\n")
	b.WriteString("1. \"analysis\": brief analysis of spending habits (max 1 sentence).\n")
	b.WriteString("2. \"tip\": a specific actionable savings tip.\n")
	b.WriteString("3. \"prediction\": a prediction for next month.\n")
	b.WriteString("4. \"growthRate\": a number with the estimated monthly growth rate (e.g. 0.04).\n")

	return b.String()
}

// chatPrompt builds the grounding instruction for a conversational turn.
// The model is restricted to answering strictly from the supplied
// transaction window; the reply is relayed verbatim.
func chatPrompt(w ContextWindow, turns []core.ChatTurn, message string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are a smart financial assistant for a user named %s.\n\n", w.AccountName)
	b.WriteString("USER CONTEXT:\n")
	fmt.Fprintf(&b, "- Current Balance: %s\n", w.Balance)
	fmt.Fprintf(&b, "- Recent Transactions (last %d):\n", len(w.Transactions))
	b.WriteString(w.DetailLines())
	b.WriteString("\n\n")

	b.WriteString("INSTRUCTIONS:\n")
	b.WriteString("- Answer the user's question based strictly on the provided transaction history.\n")
	b.WriteString("- If they ask about spending, calculate totals from the list above.\n")
	b.WriteString("- Be concise, friendly, and encouraging.\n")
	b.WriteString("- If the answer isn't in the data, say you don't see that record.\n\n")

	if len(turns) > 0 {
		b.WriteString("CONVERSATION SO FAR:\n")
		for _, turn := range turns {
			fmt.Fprintf(&b, "%s: %s\n", turn.Role, turn.Content)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "USER QUESTION: %s\n", message)

	return b.String()
}
