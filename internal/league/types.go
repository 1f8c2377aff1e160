package league

import (
	"database/sql"
	"errors"
	"sync"
)

var (
	// ErrLeagueNotFound is returned when a referenced league does not exist.
	ErrLeagueNotFound = errors.New("league not found")
	// ErrMatchNotFound is returned when a referenced match does not exist.
	ErrMatchNotFound = errors.New("match not found")
	// ErrAlreadyMember is returned when a player joins a league twice.
	ErrAlreadyMember = errors.New("player is already a member of this league")
	// ErrInviteRequired is returned when a player joins a private league
	// without being on its whitelist.
	ErrInviteRequired = errors.New("an invite is required to join this league")
)

// store handles all database operations for leagues, ledgers and matches.
type store struct {
	db *sql.DB
	mu sync.RWMutex
}

// PlayerRatingEntry is a single player's row in a league ledger.
// OpponentRatingSum is nil until the player has been scored in at least one
// match; it accumulates the average opposing-team rating per scored match.
type PlayerRatingEntry struct {
	Rating            int      `json:"rating"`
	Wins              int      `json:"wins"`
	Losses            int      `json:"losses"`
	OpponentRatingSum *float64 `json:"opponent_rating_sum,omitempty"`
}

// League is a competitive pool of players sharing one ledger and K-factor.
type League struct {
	ID             string                        `json:"league_id"`
	Name           string                        `json:"league_name"`
	AdminPID       string                        `json:"admin_pid"`
	KFactor        int                           `json:"k_factor"`
	StartingRating int                           `json:"starting_rating"`
	IsPublic       bool                          `json:"is_public"`
	Whitelist      []string                      `json:"whitelist_pids,omitempty"`
	CreatedAt      int64                         `json:"created_at"`
	Ledger         map[string]*PlayerRatingEntry `json:"ledger,omitempty"`
}

// TeamSnapshot is a player's state captured into a match document at creation
// time. Deltas are always computed from these snapshots, never from the live
// ledger, so rollback can recompute the exact same numbers.
type TeamSnapshot struct {
	Rating int `json:"rating"`
}

// Match is the unit of idempotency: Processed transitions false->true exactly
// once per forward application and true->false exactly once per rollback,
// each coupled atomically to the corresponding ledger mutation.
type Match struct {
	ID              string                  `json:"id"`
	LeagueID        string                  `json:"league_id"`
	KFactorOverride *int                    `json:"k_factor_override,omitempty"`
	WinningTeam     map[string]TeamSnapshot `json:"winning_team"`
	LosingTeam      map[string]TeamSnapshot `json:"losing_team"`
	Processed       bool                    `json:"processed"`
	RolledBack      bool                    `json:"rolled_back"`
	CreatedAt       int64                   `json:"created_at"`
}

// PlayerInfo is a player profile in the store.
type PlayerInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	CreatedAt int64  `json:"created_at"`
}

// LeaderboardEntry is a ledger row prepared for display, sorted by rating.
type LeaderboardEntry struct {
	PlayerID      string  `json:"player_id"`
	Rating        int     `json:"rating"`
	Wins          int     `json:"wins"`
	Losses        int     `json:"losses"`
	WinPercentage float64 `json:"win_percentage"`
}

// CreateLeagueParams carries the caller-supplied league configuration.
// Zero-valued KFactor and StartingRating fall back to the defaults (40, 800).
type CreateLeagueParams struct {
	Name           string   `json:"league_name"`
	AdminPID       string   `json:"admin_pid"`
	KFactor        int      `json:"k_factor"`
	StartingRating int      `json:"starting_rating"`
	IsPublic       bool     `json:"is_public"`
	Whitelist      []string `json:"whitelist_pids"`
}

const (
	// DefaultKFactor is the base K-factor for leagues that don't set one.
	DefaultKFactor = 40
	// DefaultStartingRating is the rating a player enters a ledger with.
	DefaultStartingRating = 800
)
