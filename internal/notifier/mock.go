package notifier

import (
	"sync"

	"github.com/atekkey/courtrank/internal/league"
)

// Mock is a mock implementation of the Notifier interface for testing.
// It is safe for concurrent use.
type Mock struct {
	mu sync.Mutex

	// Spies for method calls
	SendResultNotificationFunc   func(match *league.Match, winnerDeltas, loserDeltas map[string]int) error
	SendRollbackNotificationFunc func(match *league.Match) error
	SendLeaderboardFunc          func(leagueName string, entries []league.LeaderboardEntry) error

	// Call records
	SendResultNotificationCalls []struct {
		Match        *league.Match
		WinnerDeltas map[string]int
		LoserDeltas  map[string]int
	}
	SendRollbackNotificationCalls []struct{ Match *league.Match }
	SendLeaderboardCalls          []struct {
		LeagueName string
		Entries    []league.LeaderboardEntry
	}
}

// NewMock creates a new mock instance.
func NewMock() *Mock {
	return &Mock{}
}

// Reset clears all call records.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SendResultNotificationCalls = nil
	m.SendRollbackNotificationCalls = nil
	m.SendLeaderboardCalls = nil
}

func (m *Mock) SendResultNotification(match *league.Match, winnerDeltas, loserDeltas map[string]int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SendResultNotificationCalls = append(m.SendResultNotificationCalls, struct {
		Match        *league.Match
		WinnerDeltas map[string]int
		LoserDeltas  map[string]int
	}{match, winnerDeltas, loserDeltas})
	if m.SendResultNotificationFunc != nil {
		return m.SendResultNotificationFunc(match, winnerDeltas, loserDeltas)
	}
	return nil
}

func (m *Mock) SendRollbackNotification(match *league.Match) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SendRollbackNotificationCalls = append(m.SendRollbackNotificationCalls, struct{ Match *league.Match }{match})
	if m.SendRollbackNotificationFunc != nil {
		return m.SendRollbackNotificationFunc(match)
	}
	return nil
}

func (m *Mock) SendLeaderboard(leagueName string, entries []league.LeaderboardEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SendLeaderboardCalls = append(m.SendLeaderboardCalls, struct {
		LeagueName string
		Entries    []league.LeaderboardEntry
	}{leagueName, entries})
	if m.SendLeaderboardFunc != nil {
		return m.SendLeaderboardFunc(leagueName, entries)
	}
	return nil
}
