package services

import (
	"errors"
	"sync"
	"time"
)

// SubmissionState is the expense-submission status a client session
// observes: idle → processing → success → idle, with failure dropping
// straight back to idle.
type SubmissionState string

const (
	SubmissionIdle       SubmissionState = "idle"
	SubmissionProcessing SubmissionState = "processing"
	SubmissionSuccess    SubmissionState = "success"
)

// DefaultSuccessHold is how long the success state is shown before the
// timer drops the session back to idle.
const DefaultSuccessHold = 2 * time.Second

var ErrSubmissionInFlight = errors.New("submission already in flight")

// allowedTransitions is the single source of truth for the state machine.
var allowedTransitions = map[SubmissionState][]SubmissionState{
	SubmissionIdle:       {SubmissionProcessing},
	SubmissionProcessing: {SubmissionSuccess, SubmissionIdle},
	SubmissionSuccess:    {SubmissionProcessing, SubmissionIdle},
}

// SubmissionGate serializes expense submissions per session: only one may
// be in flight at a time. The ledger's own atomicity keeps the books safe
// even if a client bypasses the gate; the gate exists for UX consistency.
type SubmissionGate struct {
	mu          sync.Mutex
	states      map[string]SubmissionState
	timers      map[string]*time.Timer
	successHold time.Duration
}

func NewSubmissionGate(successHold time.Duration) *SubmissionGate {
	if successHold <= 0 {
		successHold = DefaultSuccessHold
	}
	return &SubmissionGate{
		states:      make(map[string]SubmissionState),
		timers:      make(map[string]*time.Timer),
		successHold: successHold,
	}
}

// Begin moves the session to processing. A session already processing is
// rejected with ErrSubmissionInFlight.
func (g *SubmissionGate) Begin(session string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.transition(session, SubmissionProcessing) {
		return ErrSubmissionInFlight
	}
	g.cancelTimer(session)
	return nil
}

// Succeed marks the in-flight submission as successful; a timer returns
// the session to idle after the configured hold.
func (g *SubmissionGate) Succeed(session string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.transition(session, SubmissionSuccess) {
		return
	}
	g.cancelTimer(session)
	g.timers[session] = time.AfterFunc(g.successHold, func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		if g.states[session] == SubmissionSuccess {
			g.states[session] = SubmissionIdle
			delete(g.timers, session)
		}
	})
}

// Fail returns the session to idle immediately.
func (g *SubmissionGate) Fail(session string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.transition(session, SubmissionIdle)
	g.cancelTimer(session)
}

// State reports the session's current submission state.
func (g *SubmissionGate) State(session string) SubmissionState {
	g.mu.Lock()
	defer g.mu.Unlock()

	if s, ok := g.states[session]; ok {
		return s
	}
	return SubmissionIdle
}

func (g *SubmissionGate) transition(session string, to SubmissionState) bool {
	from, ok := g.states[session]
	if !ok {
		from = SubmissionIdle
	}
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			g.states[session] = to
			return true
		}
	}
	return false
}

func (g *SubmissionGate) cancelTimer(session string) {
	if t, ok := g.timers[session]; ok {
		t.Stop()
		delete(g.timers, session)
	}
}
