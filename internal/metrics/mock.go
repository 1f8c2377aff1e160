package metrics

import "sync"

// Mock is a mock implementation of the Metrics interface for testing.
// It is safe for concurrent use.
type Mock struct {
	mu                sync.Mutex
	matchesApplied    int
	matchesRolledBack int
	applyFailures     int
	applyDurations    []float64
	notifSent         int
	notifFailed       int
	startupTime       float64
}

// NewMock creates a new mock instance.
func NewMock() *Mock {
	return &Mock{
		applyDurations: make([]float64, 0),
	}
}

func (m *Mock) IncMatchesApplied() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.matchesApplied++
}

func (m *Mock) IncMatchesRolledBack() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.matchesRolledBack++
}

func (m *Mock) IncApplyFailures() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applyFailures++
}

func (m *Mock) ObserveApplyDuration(seconds float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applyDurations = append(m.applyDurations, seconds)
}

func (m *Mock) IncNotifSent() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifSent++
}

func (m *Mock) IncNotifFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifFailed++
}

func (m *Mock) SetStartupTime(seconds float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startupTime = seconds
}

// MatchesApplied returns the number of times IncMatchesApplied was called.
func (m *Mock) MatchesApplied() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.matchesApplied
}

// MatchesRolledBack returns the number of times IncMatchesRolledBack was called.
func (m *Mock) MatchesRolledBack() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.matchesRolledBack
}

// ApplyFailures returns the number of times IncApplyFailures was called.
func (m *Mock) ApplyFailures() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applyFailures
}

// ApplyDurations returns the recorded apply durations.
func (m *Mock) ApplyDurations() []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]float64(nil), m.applyDurations...)
}
