// Package advisor adapts the external reasoning service that grounds the
// forecast and chat views. The service is opaque and fallible: every call
// carries a timeout and its output is treated as untrusted structured data.
package advisor

import (
	"context"

	"github.com/shopspring/decimal"

	"paisa/internal/core"
)

// Window sizes for the two grounding call sites: the forecast needs just
// enough history to establish a trend, chat wants fuller context.
const (
	ForecastWindow = 15
	ChatWindow     = 20
)

// Advice is the structured reply of a growth estimation call. GrowthRate
// defaults to zero when the reply omits or malforms the field.
type Advice struct {
	Analysis   string
	Tip        string
	Prediction string
	GrowthRate decimal.Decimal
}

// Advisor is the capability boundary to the reasoning service, one method
// per use case. Implementations must never mutate ledger state.
type Advisor interface {
	// EstimateGrowth asks for a monthly growth-rate estimate plus a short
	// written analysis, grounded in the supplied transaction window.
	EstimateGrowth(ctx context.Context, window ContextWindow) (Advice, error)

	// Converse answers a free-form question strictly from the supplied
	// transaction window and prior session turns, relaying the reply
	// verbatim.
	Converse(ctx context.Context, window ContextWindow, turns []core.ChatTurn, message string) (string, error)
}
