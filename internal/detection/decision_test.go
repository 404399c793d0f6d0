package detection

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockClock is a mock implementation of the Clock interface for testing
type MockClock struct {
	mu          sync.Mutex
	currentTime time.Time
}

// NewMockClock creates a new MockClock with the specified initial time
func NewMockClock(initialTime time.Time) *MockClock {
	return &MockClock{currentTime: initialTime}
}

// Now returns the current mock time
func (m *MockClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentTime
}

// Advance moves the mock time forward by the specified duration
func (m *MockClock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentTime = m.currentTime.Add(d)
}

const segmentLen = 3 * time.Second

func TestEvaluateThresholdBoundary(t *testing.T) {
	clock := NewMockClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	engine := NewEngine(0.80, 15*time.Second, clock)

	// exactly at the threshold is not a detection
	decision := engine.Evaluate("s1", 0.80)
	assert.False(t, decision.IsScream)
	assert.False(t, decision.Debounced)

	decision = engine.Evaluate("s1", 0.8000001)
	assert.True(t, decision.IsScream)
	assert.False(t, decision.Debounced)

	assert.InDelta(t, 0.80, decision.Threshold, 1e-9)
}

func TestEvaluateDebounceSequence(t *testing.T) {
	clock := NewMockClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	// window covers five consecutive segments
	engine := NewEngine(0.80, 5*segmentLen, clock)

	probabilities := []float64{0.95, 0.96, 0.94, 0.93, 0.97, 0.10}
	var dispatched int
	for _, p := range probabilities {
		decision := engine.Evaluate("live", p)
		if decision.Dispatchable() {
			dispatched++
		}
		clock.Advance(segmentLen)
	}

	// only the first positive in the burst fans out
	require.Equal(t, 1, dispatched)
}

func TestEvaluateDebounceMarksPositives(t *testing.T) {
	clock := NewMockClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	engine := NewEngine(0.80, 5*segmentLen, clock)

	first := engine.Evaluate("live", 0.95)
	assert.True(t, first.IsScream)
	assert.False(t, first.Debounced)

	clock.Advance(segmentLen)
	second := engine.Evaluate("live", 0.96)
	assert.True(t, second.IsScream, "suppressed detections still report the raw verdict")
	assert.True(t, second.Debounced)
}

func TestEvaluateRearmsAfterQuietWindow(t *testing.T) {
	clock := NewMockClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	cooldown := 5 * segmentLen
	engine := NewEngine(0.80, cooldown, clock)

	require.True(t, engine.Evaluate("live", 0.95).Dispatchable())

	// positives inside the window stay suppressed
	clock.Advance(segmentLen)
	assert.True(t, engine.Evaluate("live", 0.91).Debounced)

	// the window restarts from the last positive, not the first
	clock.Advance(cooldown - segmentLen)
	assert.True(t, engine.Evaluate("live", 0.92).Debounced)

	// a full quiet window re-arms the session
	clock.Advance(cooldown)
	decision := engine.Evaluate("live", 0.93)
	assert.True(t, decision.Dispatchable())
}

func TestEvaluateSessionsAreIndependent(t *testing.T) {
	clock := NewMockClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	engine := NewEngine(0.80, time.Minute, clock)

	require.True(t, engine.Evaluate("a", 0.95).Dispatchable())
	assert.True(t, engine.Evaluate("b", 0.95).Dispatchable(),
		"a detection in one session must not suppress another")

	clock.Advance(time.Second)
	assert.True(t, engine.Evaluate("a", 0.95).Debounced)
}

func TestEvaluateZeroCooldownNeverDebounces(t *testing.T) {
	clock := NewMockClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	engine := NewEngine(0.80, 0, clock)

	for i := 0; i < 3; i++ {
		assert.True(t, engine.Evaluate("live", 0.99).Dispatchable())
		clock.Advance(segmentLen)
	}
}

func TestEvaluateNegativeNeverDebounced(t *testing.T) {
	clock := NewMockClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	engine := NewEngine(0.80, time.Minute, clock)

	require.True(t, engine.Evaluate("live", 0.95).IsScream)
	clock.Advance(time.Second)

	decision := engine.Evaluate("live", 0.20)
	assert.False(t, decision.IsScream)
	assert.False(t, decision.Debounced, "debounce only applies to positive detections")
}

func TestResetClearsSessionState(t *testing.T) {
	clock := NewMockClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	engine := NewEngine(0.80, time.Minute, clock)

	require.True(t, engine.Evaluate("live", 0.95).Dispatchable())
	engine.Reset("live")

	clock.Advance(time.Second)
	assert.True(t, engine.Evaluate("live", 0.95).Dispatchable())
}
