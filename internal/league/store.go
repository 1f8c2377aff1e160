package league

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// New creates a new LeagueStore backed by the given database.
func New(db *sql.DB) LeagueStore {
	return &store{
		db: db,
	}
}

// querier is satisfied by both *sql.DB and *sql.Tx, so row helpers can be
// shared between plain reads and transaction-scoped reads.
type querier interface {
	QueryRow(query string, args ...any) *sql.Row
	Query(query string, args ...any) (*sql.Rows, error)
	Exec(query string, args ...any) (sql.Result, error)
}

// CreateLeague inserts a new league and enrolls its admin into the ledger at
// the starting rating. Zero-valued KFactor and StartingRating take defaults.
func (s *store) CreateLeague(params CreateLeagueParams) (*League, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l := &League{
		ID:             uuid.New().String(),
		Name:           params.Name,
		AdminPID:       params.AdminPID,
		KFactor:        params.KFactor,
		StartingRating: params.StartingRating,
		IsPublic:       params.IsPublic,
		Whitelist:      params.Whitelist,
		CreatedAt:      time.Now().Unix(),
		Ledger:         map[string]*PlayerRatingEntry{},
	}
	if l.Name == "" {
		l.Name = "New League"
	}
	if l.KFactor <= 0 {
		l.KFactor = DefaultKFactor
	}
	if l.StartingRating <= 0 {
		l.StartingRating = DefaultStartingRating
	}

	whitelistJSON, err := json.Marshal(l.Whitelist)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal whitelist: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO leagues (id, name, admin_pid, k_factor, starting_rating, is_public, whitelist_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, l.ID, l.Name, l.AdminPID, l.KFactor, l.StartingRating, l.IsPublic, string(whitelistJSON), l.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert league: %w", err)
	}

	if l.AdminPID != "" {
		_, err = tx.Exec(`
			INSERT INTO league_ratings (league_id, player_id, rating, wins, losses, opponent_rating_sum)
			VALUES (?, ?, ?, 0, 0, NULL)
		`, l.ID, l.AdminPID, l.StartingRating)
		if err != nil {
			return nil, fmt.Errorf("failed to enroll league admin: %w", err)
		}
		l.Ledger[l.AdminPID] = &PlayerRatingEntry{Rating: l.StartingRating}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit league creation: %w", err)
	}

	log.Info("Created league", "leagueID", l.ID, "name", l.Name, "kFactor", l.KFactor)
	return l, nil
}

func (s *store) GetLeague(leagueID string) (*League, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getLeague(s.db, leagueID)
}

func getLeague(q querier, leagueID string) (*League, error) {
	var l League
	var whitelistJSON sql.NullString
	err := q.QueryRow(`
		SELECT id, name, admin_pid, k_factor, starting_rating, is_public, whitelist_json, created_at
		FROM leagues WHERE id = ?
	`, leagueID).Scan(&l.ID, &l.Name, &l.AdminPID, &l.KFactor, &l.StartingRating, &l.IsPublic, &whitelistJSON, &l.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrLeagueNotFound
		}
		return nil, fmt.Errorf("failed to get league %s: %w", leagueID, err)
	}

	if whitelistJSON.Valid && whitelistJSON.String != "" {
		if err := json.Unmarshal([]byte(whitelistJSON.String), &l.Whitelist); err != nil {
			log.Error("Failed to unmarshal whitelist_json", "error", err, "leagueID", leagueID)
		}
	}

	ledger, err := getLedger(q, leagueID)
	if err != nil {
		return nil, err
	}
	l.Ledger = ledger
	return &l, nil
}

func getLedger(q querier, leagueID string) (map[string]*PlayerRatingEntry, error) {
	rows, err := q.Query(`
		SELECT player_id, rating, wins, losses, opponent_rating_sum
		FROM league_ratings WHERE league_id = ?
	`, leagueID)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger for league %s: %w", leagueID, err)
	}
	defer rows.Close()

	ledger := make(map[string]*PlayerRatingEntry)
	for rows.Next() {
		var playerID string
		var entry PlayerRatingEntry
		var oppSum sql.NullFloat64
		if err := rows.Scan(&playerID, &entry.Rating, &entry.Wins, &entry.Losses, &oppSum); err != nil {
			return nil, fmt.Errorf("failed to scan ledger row: %w", err)
		}
		if oppSum.Valid {
			v := oppSum.Float64
			entry.OpponentRatingSum = &v
		}
		ledger[playerID] = &entry
	}
	return ledger, rows.Err()
}

// ListLeagues returns all leagues without their ledgers.
func (s *store) ListLeagues() ([]*League, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, name, admin_pid, k_factor, starting_rating, is_public, whitelist_json, created_at
		FROM leagues ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query leagues: %w", err)
	}
	defer rows.Close()

	var leagues []*League
	for rows.Next() {
		var l League
		var whitelistJSON sql.NullString
		if err := rows.Scan(&l.ID, &l.Name, &l.AdminPID, &l.KFactor, &l.StartingRating, &l.IsPublic, &whitelistJSON, &l.CreatedAt); err != nil {
			log.Error("Failed to scan league row", "error", err)
			continue
		}
		if whitelistJSON.Valid && whitelistJSON.String != "" {
			if err := json.Unmarshal([]byte(whitelistJSON.String), &l.Whitelist); err != nil {
				log.Error("Failed to unmarshal whitelist_json", "error", err, "leagueID", l.ID)
			}
		}
		leagues = append(leagues, &l)
	}
	return leagues, rows.Err()
}

// JoinLeague enrolls a player into a league's ledger at the starting rating.
// Private leagues require the player to be on the whitelist.
func (s *store) JoinLeague(leagueID, playerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	l, err := getLeague(tx, leagueID)
	if err != nil {
		return err
	}

	if !l.IsPublic {
		invited := false
		for _, pid := range l.Whitelist {
			if pid == playerID {
				invited = true
				break
			}
		}
		if !invited {
			return ErrInviteRequired
		}
	}

	if _, ok := l.Ledger[playerID]; ok {
		return ErrAlreadyMember
	}

	_, err = tx.Exec(`
		INSERT INTO league_ratings (league_id, player_id, rating, wins, losses, opponent_rating_sum)
		VALUES (?, ?, ?, 0, 0, NULL)
	`, leagueID, playerID, l.StartingRating)
	if err != nil {
		return fmt.Errorf("failed to insert ledger entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit league join: %w", err)
	}

	log.Info("Player joined league", "leagueID", leagueID, "playerID", playerID, "rating", l.StartingRating)
	return nil
}

// Leaderboard returns a league's ledger sorted by rating.
func (s *store) Leaderboard(leagueID string) ([]LeaderboardEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT player_id, rating, wins, losses
		FROM league_ratings
		WHERE league_id = ?
		ORDER BY rating DESC, wins DESC, player_id ASC
	`, leagueID)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []LeaderboardEntry
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.PlayerID, &e.Rating, &e.Wins, &e.Losses); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard row: %w", err)
		}
		if played := e.Wins + e.Losses; played > 0 {
			e.WinPercentage = (float64(e.Wins) / float64(played)) * 100
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *store) UpsertPlayer(player PlayerInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if player.CreatedAt == 0 {
		player.CreatedAt = time.Now().Unix()
	}
	_, err := s.db.Exec(`
		INSERT INTO players (id, name, email, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email;
	`, player.ID, player.Name, player.Email, player.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert player %s: %w", player.ID, err)
	}
	return nil
}

func (s *store) GetPlayer(playerID string) (*PlayerInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var p PlayerInfo
	var name, email sql.NullString
	err := s.db.QueryRow(`
		SELECT id, name, email, created_at FROM players WHERE id = ?
	`, playerID).Scan(&p.ID, &name, &email, &p.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("player %s not found", playerID)
		}
		return nil, fmt.Errorf("failed to get player %s: %w", playerID, err)
	}
	p.Name = name.String
	p.Email = email.String
	return &p, nil
}

// CreateMatch inserts a new, unprocessed match document. The team snapshots
// are immutable after this point; only the processed/rolled_back flags change.
func (s *store) CreateMatch(match *Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if match.ID == "" {
		match.ID = uuid.New().String()
	}
	if match.CreatedAt == 0 {
		match.CreatedAt = time.Now().Unix()
	}

	winJSON, err := json.Marshal(match.WinningTeam)
	if err != nil {
		return fmt.Errorf("failed to marshal winning team: %w", err)
	}
	lossJSON, err := json.Marshal(match.LosingTeam)
	if err != nil {
		return fmt.Errorf("failed to marshal losing team: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO matches (id, league_id, k_factor_override, win_team_json, loss_team_json, processed, rolled_back, created_at)
		VALUES (?, ?, ?, ?, ?, 0, 0, ?)
	`, match.ID, match.LeagueID, match.KFactorOverride, string(winJSON), string(lossJSON), match.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert match: %w", err)
	}

	log.Info("Created match", "matchID", match.ID, "leagueID", match.LeagueID)
	return nil
}

func (s *store) GetMatch(matchID string) (*Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getMatch(s.db, matchID)
}

func getMatch(q querier, matchID string) (*Match, error) {
	row := q.QueryRow(`
		SELECT id, league_id, k_factor_override, win_team_json, loss_team_json, processed, rolled_back, created_at
		FROM matches WHERE id = ?
	`, matchID)
	match, err := scanMatch(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to get match %s: %w", matchID, err)
	}
	return match, nil
}

// scanMatch is a helper to scan a single match row.
func scanMatch(scanner interface{ Scan(...any) error }) (*Match, error) {
	var match Match
	var kOverride sql.NullInt64
	var winJSON, lossJSON string

	err := scanner.Scan(
		&match.ID, &match.LeagueID, &kOverride, &winJSON, &lossJSON,
		&match.Processed, &match.RolledBack, &match.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if kOverride.Valid {
		v := int(kOverride.Int64)
		match.KFactorOverride = &v
	}
	if err := json.Unmarshal([]byte(winJSON), &match.WinningTeam); err != nil {
		return nil, fmt.Errorf("failed to unmarshal win_team_json for match %s: %w", match.ID, err)
	}
	if err := json.Unmarshal([]byte(lossJSON), &match.LosingTeam); err != nil {
		return nil, fmt.Errorf("failed to unmarshal loss_team_json for match %s: %w", match.ID, err)
	}
	return &match, nil
}

// GetLeagueMatches returns a page of a league's matches, newest first. A zero
// before cursor starts from the latest match; otherwise only matches created
// strictly before the cursor are returned. Ordering is deterministic even for
// equal timestamps.
func (s *store) GetLeagueMatches(leagueID string, limit int, before int64) ([]*Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(`
		SELECT id, league_id, k_factor_override, win_team_json, loss_team_json, processed, rolled_back, created_at
		FROM matches
		WHERE league_id = ? AND (? = 0 OR created_at < ?)
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, leagueID, before, before, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query league matches: %w", err)
	}
	defer rows.Close()

	var matches []*Match
	for rows.Next() {
		match, err := scanMatch(rows)
		if err != nil {
			log.Error("Failed to scan match row", "error", err)
			continue
		}
		matches = append(matches, match)
	}
	return matches, rows.Err()
}

// RunInTx executes fn inside a single transaction. The store-level lock
// serializes writers, so conflicting Apply/Rollback invocations for the same
// match observe each other's committed flags.
func (s *store) RunInTx(fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dbTx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(&sqlTx{tx: dbTx}); err != nil {
		dbTx.Rollback()
		return err
	}
	return dbTx.Commit()
}

// sqlTx is the transaction-scoped implementation of Tx.
type sqlTx struct {
	tx *sql.Tx
}

func (t *sqlTx) GetMatch(matchID string) (*Match, error) {
	return getMatch(t.tx, matchID)
}

func (t *sqlTx) GetLeague(leagueID string) (*League, error) {
	return getLeague(t.tx, leagueID)
}

func (t *sqlTx) PutLedgerEntry(leagueID, playerID string, entry *PlayerRatingEntry) error {
	var oppSum sql.NullFloat64
	if entry.OpponentRatingSum != nil {
		oppSum = sql.NullFloat64{Float64: *entry.OpponentRatingSum, Valid: true}
	}
	_, err := t.tx.Exec(`
		INSERT INTO league_ratings (league_id, player_id, rating, wins, losses, opponent_rating_sum)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(league_id, player_id) DO UPDATE SET
			rating = excluded.rating,
			wins = excluded.wins,
			losses = excluded.losses,
			opponent_rating_sum = excluded.opponent_rating_sum;
	`, leagueID, playerID, entry.Rating, entry.Wins, entry.Losses, oppSum)
	if err != nil {
		return fmt.Errorf("failed to put ledger entry for player %s: %w", playerID, err)
	}
	return nil
}

func (t *sqlTx) SetMatchFlags(matchID string, processed, rolledBack bool) error {
	_, err := t.tx.Exec(`
		UPDATE matches SET processed = ?, rolled_back = ? WHERE id = ?
	`, processed, rolledBack, matchID)
	if err != nil {
		return fmt.Errorf("failed to set match flags for %s: %w", matchID, err)
	}
	return nil
}
