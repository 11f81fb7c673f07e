package advisor

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestCleanModelJSON(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"fenced no lang", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"surrounding prose", "Here you go:\n{\"a\":1}\nHope that helps!", `{"a":1}`},
		{"whitespace", "  {\"a\":1}  ", `{"a":1}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := cleanModelJSON(tc.in); got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestParseAdvice(t *testing.T) {
	advice, err := parseAdvice(`{"analysis":"Spends a lot on food.","tip":"Cook at home.","prediction":"Slight growth.","growthRate":0.04}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if advice.Analysis != "Spends a lot on food." || advice.Tip != "Cook at home." {
		t.Fatalf("got %+v", advice)
	}
	if !advice.GrowthRate.Equal(decimal.NewFromFloat(0.04)) {
		t.Fatalf("rate = %s, want 0.04", advice.GrowthRate)
	}
}

func TestParseAdviceNegativeRate(t *testing.T) {
	advice, err := parseAdvice(`{"analysis":"a","tip":"t","prediction":"p","growthRate":-0.03}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !advice.GrowthRate.Equal(decimal.NewFromFloat(-0.03)) {
		t.Fatalf("rate = %s, want -0.03", advice.GrowthRate)
	}
}

func TestParseAdviceMissingRateDefaultsToZero(t *testing.T) {
	advice, err := parseAdvice(`{"analysis":"a","tip":"t","prediction":"p"}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !advice.GrowthRate.IsZero() {
		t.Fatalf("rate = %s, want 0", advice.GrowthRate)
	}
}

func TestParseAdviceMalformedRateDefaultsToZero(t *testing.T) {
	advice, err := parseAdvice(`{"analysis":"a","tip":"t","prediction":"p","growthRate":"four percent"}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !advice.GrowthRate.IsZero() {
		t.Fatalf("rate = %s, want 0", advice.GrowthRate)
	}
}

func TestParseAdviceExplicitZeroRate(t *testing.T) {
	// A legitimate zero must parse as zero, not be treated as missing.
	advice, err := parseAdvice(`{"analysis":"a","tip":"t","prediction":"p","growthRate":0}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !advice.GrowthRate.IsZero() {
		t.Fatalf("rate = %s, want 0", advice.GrowthRate)
	}
}

func TestParseAdviceClampsOutlierRates(t *testing.T) {
	advice, err := parseAdvice(`{"growthRate":25.0}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !advice.GrowthRate.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("rate = %s, want 1", advice.GrowthRate)
	}

	advice, err = parseAdvice(`{"growthRate":-9.5}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !advice.GrowthRate.Equal(decimal.NewFromInt(-1)) {
		t.Fatalf("rate = %s, want -1", advice.GrowthRate)
	}
}

func TestParseAdviceUnparsableReply(t *testing.T) {
	if _, err := parseAdvice("I cannot answer that."); err == nil {
		t.Fatalf("expected error for non-JSON reply")
	}
	if _, err := parseAdvice(""); err == nil {
		t.Fatalf("expected error for empty reply")
	}
}
