package league

import (
	"sync"
)

// MockStore is a mock implementation of the LeagueStore interface for testing.
// It is safe for concurrent use.
type MockStore struct {
	mu sync.Mutex

	// Spies for method calls
	CreateLeagueFunc     func(params CreateLeagueParams) (*League, error)
	GetLeagueFunc        func(leagueID string) (*League, error)
	ListLeaguesFunc      func() ([]*League, error)
	JoinLeagueFunc       func(leagueID, playerID string) error
	LeaderboardFunc      func(leagueID string) ([]LeaderboardEntry, error)
	UpsertPlayerFunc     func(player PlayerInfo) error
	GetPlayerFunc        func(playerID string) (*PlayerInfo, error)
	CreateMatchFunc      func(match *Match) error
	GetMatchFunc         func(matchID string) (*Match, error)
	GetLeagueMatchesFunc func(leagueID string, limit int, before int64) ([]*Match, error)
	RunInTxFunc          func(fn func(tx Tx) error) error

	// Call records
	CreateLeagueCalls []CreateLeagueParams
	JoinLeagueCalls   []struct {
		LeagueID string
		PlayerID string
	}
	CreateMatchCalls      []*Match
	GetMatchCalls         []string
	GetLeagueMatchesCalls []struct {
		LeagueID string
		Limit    int
		Before   int64
	}
	RunInTxCalls int
}

// NewMock creates a new mock instance.
func NewMock() *MockStore {
	return &MockStore{}
}

// Reset clears all call records.
func (m *MockStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreateLeagueCalls = nil
	m.JoinLeagueCalls = nil
	m.CreateMatchCalls = nil
	m.GetMatchCalls = nil
	m.GetLeagueMatchesCalls = nil
	m.RunInTxCalls = 0
}

func (m *MockStore) CreateLeague(params CreateLeagueParams) (*League, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreateLeagueCalls = append(m.CreateLeagueCalls, params)
	if m.CreateLeagueFunc != nil {
		return m.CreateLeagueFunc(params)
	}
	return nil, nil
}

func (m *MockStore) GetLeague(leagueID string) (*League, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetLeagueFunc != nil {
		return m.GetLeagueFunc(leagueID)
	}
	return nil, ErrLeagueNotFound
}

func (m *MockStore) ListLeagues() ([]*League, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListLeaguesFunc != nil {
		return m.ListLeaguesFunc()
	}
	return nil, nil
}

func (m *MockStore) JoinLeague(leagueID, playerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.JoinLeagueCalls = append(m.JoinLeagueCalls, struct {
		LeagueID string
		PlayerID string
	}{leagueID, playerID})
	if m.JoinLeagueFunc != nil {
		return m.JoinLeagueFunc(leagueID, playerID)
	}
	return nil
}

func (m *MockStore) Leaderboard(leagueID string) ([]LeaderboardEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LeaderboardFunc != nil {
		return m.LeaderboardFunc(leagueID)
	}
	return nil, nil
}

func (m *MockStore) UpsertPlayer(player PlayerInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpsertPlayerFunc != nil {
		return m.UpsertPlayerFunc(player)
	}
	return nil
}

func (m *MockStore) GetPlayer(playerID string) (*PlayerInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetPlayerFunc != nil {
		return m.GetPlayerFunc(playerID)
	}
	return nil, nil
}

func (m *MockStore) CreateMatch(match *Match) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreateMatchCalls = append(m.CreateMatchCalls, match)
	if m.CreateMatchFunc != nil {
		return m.CreateMatchFunc(match)
	}
	return nil
}

func (m *MockStore) GetMatch(matchID string) (*Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetMatchCalls = append(m.GetMatchCalls, matchID)
	if m.GetMatchFunc != nil {
		return m.GetMatchFunc(matchID)
	}
	return nil, ErrMatchNotFound
}

func (m *MockStore) GetLeagueMatches(leagueID string, limit int, before int64) ([]*Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetLeagueMatchesCalls = append(m.GetLeagueMatchesCalls, struct {
		LeagueID string
		Limit    int
		Before   int64
	}{leagueID, limit, before})
	if m.GetLeagueMatchesFunc != nil {
		return m.GetLeagueMatchesFunc(leagueID, limit, before)
	}
	return nil, nil
}

func (m *MockStore) RunInTx(fn func(tx Tx) error) error {
	m.mu.Lock()
	m.RunInTxCalls++
	m.mu.Unlock()
	if m.RunInTxFunc != nil {
		return m.RunInTxFunc(fn)
	}
	return nil
}
