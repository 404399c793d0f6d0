// decision.go implements the alert decision state machine: thresholding
// plus the per-session debounce that keeps a sustained scream from flooding
// the notification channels.
package detection

import (
	"sync"
	"time"
)

// Clock abstracts time for the debounce window so tests can drive it.
type Clock interface {
	Now() time.Time
}

// SystemClock implements Clock using the real time.
type SystemClock struct{}

// Now returns the current time.
func (SystemClock) Now() time.Time { return time.Now() }

// Decision is the outcome of evaluating one probability against the
// threshold and the debounce state.
type Decision struct {
	IsScream  bool    // probability strictly exceeded the threshold
	Debounced bool    // positive detection suppressed by the cooldown window
	Threshold float64 // threshold in effect when the decision was made
}

// Dispatchable reports whether the decision should trigger alert fan-out.
func (d Decision) Dispatchable() bool {
	return d.IsScream && !d.Debounced
}

// sessionState tracks the debounce state for one monitoring session.
type sessionState struct {
	alerted   bool      // an unsuppressed alert fired and the window is open
	lastAbove time.Time // last time the probability exceeded the threshold
}

// Engine applies the threshold and the per-session debounce window.
// Sessions are independent; a detection in one never suppresses another.
type Engine struct {
	threshold float64
	cooldown  time.Duration
	clock     Clock

	mu       sync.Mutex
	sessions map[string]*sessionState
}

// NewEngine creates a decision engine. A zero cooldown disables debouncing
// entirely, every positive detection dispatches.
func NewEngine(threshold float64, cooldown time.Duration, clock Clock) *Engine {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Engine{
		threshold: threshold,
		cooldown:  cooldown,
		clock:     clock,
		sessions:  make(map[string]*sessionState),
	}
}

// Evaluate decides for one probability sample in the given session. The
// boundary is exclusive, a probability exactly at the threshold is not a
// scream. While the window is open, positives are marked debounced; the
// window re-arms once a full cooldown passes without any positive sample.
func (e *Engine) Evaluate(sessionID string, probability float64) Decision {
	decision := Decision{
		IsScream:  probability > e.threshold,
		Threshold: e.threshold,
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	state, ok := e.sessions[sessionID]
	if !ok {
		state = &sessionState{}
		e.sessions[sessionID] = state
	}

	now := e.clock.Now()
	if state.alerted && now.Sub(state.lastAbove) >= e.cooldown {
		state.alerted = false
	}

	if !decision.IsScream {
		return decision
	}

	decision.Debounced = state.alerted
	state.alerted = true
	state.lastAbove = now
	return decision
}

// Reset clears the debounce state for a session, used when a monitoring
// session ends.
func (e *Engine) Reset(sessionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.sessions, sessionID)
}
