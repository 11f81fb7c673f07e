package advisor

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Growth rates outside this range are treated as model noise and clamped.
var (
	minGrowthRate = decimal.NewFromInt(-1)
	maxGrowthRate = decimal.NewFromInt(1)
)

// parseAdvice decodes the structured growth-estimation reply. An
// unparsable reply is an error (the caller falls back); a parsable reply
// with a missing or malformed growthRate yields rate zero. The presence
// check is explicit so a legitimate 0 is not confused with "missing".
func parseAdvice(raw string) (Advice, error) {
	clean := cleanModelJSON(raw)
	if clean == "" {
		return Advice{}, fmt.Errorf("empty reply")
	}

	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(clean), &payload); err != nil {
		return Advice{}, fmt.Errorf("unmarshal reply: %w (raw: %.200s)", err, raw)
	}

	advice := Advice{
		Analysis:   stringField(payload, "analysis"),
		Tip:        stringField(payload, "tip"),
		Prediction: stringField(payload, "prediction"),
		GrowthRate: decimal.Zero,
	}

	if v, ok := payload["growthRate"]; ok {
		if f, ok := v.(float64); ok {
			advice.GrowthRate = clampRate(decimal.NewFromFloat(f))
		}
	}

	return advice, nil
}

func clampRate(rate decimal.Decimal) decimal.Decimal {
	if rate.LessThan(minGrowthRate) {
		return minGrowthRate
	}
	if rate.GreaterThan(maxGrowthRate) {
		return maxGrowthRate
	}
	return rate
}

func stringField(m map[string]interface{}, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// cleanModelJSON strips markdown fences and surrounding prose the model
// may emit despite instructions, keeping the outermost JSON object.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		// Drop the first line (``` or ```json).
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	s = strings.TrimSpace(s)

	// Keep only from the first '{' to the last '}' in case junk remains.
	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}

	return s
}
