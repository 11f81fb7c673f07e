package advisor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/genai"

	"paisa/internal/core"
)

// Client talks to the Gemini API. It implements Advisor.
type Client struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

var _ Advisor = (*Client)(nil)

// NewClient builds a Gemini-backed advisor. Credentials come from the
// environment (GEMINI_API_KEY or application default credentials).
func NewClient(ctx context.Context, model string, timeout time.Duration) (*Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &Client{
		client:  client,
		model:   model,
		timeout: timeout,
	}, nil
}

// EstimateGrowth sends the trend window and parses the structured reply.
func (c *Client) EstimateGrowth(ctx context.Context, window ContextWindow) (Advice, error) {
	raw, err := c.generate(ctx, growthPrompt(window))
	if err != nil {
		return Advice{}, fmt.Errorf("estimate growth: %w", err)
	}

	advice, err := parseAdvice(raw)
	if err != nil {
		return Advice{}, fmt.Errorf("estimate growth: %w", err)
	}

	slog.DebugContext(ctx, "Growth estimate received",
		"growth_rate", advice.GrowthRate.String(),
		"window_size", len(window.Transactions))

	return advice, nil
}

// Converse sends the grounding instruction plus the user message and
// relays the reply text verbatim.
func (c *Client) Converse(ctx context.Context, window ContextWindow, turns []core.ChatTurn, message string) (string, error) {
	reply, err := c.generate(ctx, chatPrompt(window, turns, message))
	if err != nil {
		return "", fmt.Errorf("converse: %w", err)
	}
	return reply, nil
}

func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		},
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("empty response from model")
	}
	return text, nil
}
