package league

// LeagueStore defines the interface for interacting with league, ledger and
// match documents.
type LeagueStore interface {
	CreateLeague(params CreateLeagueParams) (*League, error)
	GetLeague(leagueID string) (*League, error)
	ListLeagues() ([]*League, error)
	JoinLeague(leagueID, playerID string) error
	Leaderboard(leagueID string) ([]LeaderboardEntry, error)

	UpsertPlayer(player PlayerInfo) error
	GetPlayer(playerID string) (*PlayerInfo, error)

	CreateMatch(match *Match) error
	GetMatch(matchID string) (*Match, error)
	GetLeagueMatches(leagueID string, limit int, before int64) ([]*Match, error)

	// RunInTx executes fn inside a single database transaction with
	// read-your-writes semantics. If fn returns an error the transaction is
	// rolled back and the error is returned unchanged; otherwise the
	// transaction commits atomically.
	RunInTx(fn func(tx Tx) error) error
}

// Tx is the transaction-scoped view of the store. Reads observe writes made
// earlier in the same transaction, and all writes commit or abort together.
type Tx interface {
	GetMatch(matchID string) (*Match, error)
	// GetLeague returns the league with its ledger loaded, or
	// ErrLeagueNotFound.
	GetLeague(leagueID string) (*League, error)
	PutLedgerEntry(leagueID, playerID string, entry *PlayerRatingEntry) error
	SetMatchFlags(matchID string, processed, rolledBack bool) error
}
