package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"paisa/internal/advisor"
	"paisa/internal/core"
	"paisa/internal/log"
)

// Fallback texts when the advisor cannot be reached: the forecast is
// still served, just flat and unannotated.
const (
	fallbackAnalysis   = "Advice is temporarily unavailable; showing a flat projection."
	fallbackTip        = "Keep your spending below your deposits to grow your balance."
	fallbackPrediction = "Your balance is projected to stay at its current level."
)

// maxTranscriptTurns bounds the per-account chat transcript kept for the
// session. Turns are never persisted.
const maxTranscriptTurns = 20

// ForecastResult is the advice view: the written analysis plus the
// deterministic projection computed from the estimated growth rate.
type ForecastResult struct {
	Analysis   string
	Tip        string
	Prediction string
	Forecast   []core.ForecastPoint
}

// LedgerReader is the read surface the advice views need. One Snapshot
// call supplies both the balance and the grounding window, so a prompt
// never mixes two commit points.
type LedgerReader interface {
	Snapshot(ctx context.Context, accountID string) (core.AccountSnapshot, error)
}

// AdviceService derives the two AI-grounded views from ledger snapshots.
// It reads the ledger once before calling the advisor and never mutates
// it, so advisor latency and failures cannot touch ledger state.
type AdviceService struct {
	store   LedgerReader
	advisor advisor.Advisor
	now     func() time.Time

	mu          sync.Mutex
	transcripts map[string][]core.ChatTurn
}

func NewAdviceService(store LedgerReader, adv advisor.Advisor) *AdviceService {
	return &AdviceService{
		store:       store,
		advisor:     adv,
		now:         time.Now,
		transcripts: make(map[string][]core.ChatTurn),
	}
}

// Forecast produces the multi-month projection. An advisor failure of any
// kind degrades to a flat projection (rate zero) instead of failing the
// request: a forecast has a safe default where chat does not.
func (s *AdviceService) Forecast(ctx context.Context, accountID string) (ForecastResult, error) {
	snap, err := s.store.Snapshot(ctx, accountID)
	if err != nil {
		return ForecastResult{}, err
	}
	window := advisor.NewContextWindow(snap.Account, snap.Transactions, advisor.ForecastWindow)

	result := ForecastResult{
		Analysis:   fallbackAnalysis,
		Tip:        fallbackTip,
		Prediction: fallbackPrediction,
	}
	rate := decimal.Zero

	if s.advisor != nil {
		advice, err := s.advisor.EstimateGrowth(ctx, window)
		if err != nil {
			slog.WarnContext(ctx, "Growth estimation failed, falling back to flat projection",
				log.FieldOperation, log.OpForecast,
				log.FieldAccountID, accountID,
				log.FieldError, err)
		} else {
			result.Analysis = advice.Analysis
			result.Tip = advice.Tip
			result.Prediction = advice.Prediction
			rate = advice.GrowthRate
		}
	} else {
		slog.DebugContext(ctx, "No advisor configured, serving flat projection",
			log.FieldOperation, log.OpForecast,
			log.FieldAccountID, accountID)
	}

	result.Forecast = core.Project(snap.Account.Balance, rate, core.DefaultForecastPeriods, s.now())
	return result, nil
}

// Chat answers one conversational turn grounded in the account's history.
// Advisor failures surface as core.ErrAssistantUnavailable: there is no
// safe default answer to invent.
func (s *AdviceService) Chat(ctx context.Context, accountID, message string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", core.ErrEmptyMessage
	}

	snap, err := s.store.Snapshot(ctx, accountID)
	if err != nil {
		return "", err
	}

	if s.advisor == nil {
		return "", core.ErrAssistantUnavailable
	}
	window := advisor.NewContextWindow(snap.Account, snap.Transactions, advisor.ChatWindow)

	turns := s.transcript(accountID)
	reply, err := s.advisor.Converse(ctx, window, turns, message)
	if err != nil {
		slog.ErrorContext(ctx, "Chat turn failed",
			log.FieldOperation, log.OpChat,
			log.FieldAccountID, accountID,
			log.FieldError, err)
		return "", fmt.Errorf("%w: %v", core.ErrAssistantUnavailable, err)
	}

	s.remember(accountID, message, reply)
	return reply, nil
}

func (s *AdviceService) transcript(accountID string) []core.ChatTurn {
	s.mu.Lock()
	defer s.mu.Unlock()
	turns := s.transcripts[accountID]
	out := make([]core.ChatTurn, len(turns))
	copy(out, turns)
	return out
}

func (s *AdviceService) remember(accountID, message, reply string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	turns := append(s.transcripts[accountID],
		core.ChatTurn{Role: core.RoleUser, Content: message},
		core.ChatTurn{Role: core.RoleAssistant, Content: reply},
	)
	if len(turns) > maxTranscriptTurns {
		turns = turns[len(turns)-maxTranscriptTurns:]
	}
	s.transcripts[accountID] = turns
}
