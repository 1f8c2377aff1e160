package league_test

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/atekkey/courtrank/internal/database"
	"github.com/atekkey/courtrank/internal/league"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestDB creates a temporary in-memory SQLite database for testing.
func setupTestDB(t *testing.T) (league.LeagueStore, *sql.DB, func()) {
	t.Helper()

	db, dbTeardown, err := database.InitDB(":memory:", "", "", "../../migrations")
	require.NoError(t, err)

	store := league.New(db)
	teardown := func() {
		dbTeardown()
		db.Close()
	}

	return store, db, teardown
}

func TestCreateLeague(t *testing.T) {
	store, _, teardown := setupTestDB(t)
	defer teardown()

	t.Run("applies defaults and enrolls admin", func(t *testing.T) {
		l, err := store.CreateLeague(league.CreateLeagueParams{
			Name:     "Monday Night",
			AdminPID: "admin1",
			IsPublic: true,
		})
		require.NoError(t, err)
		assert.NotEmpty(t, l.ID)
		assert.Equal(t, league.DefaultKFactor, l.KFactor)
		assert.Equal(t, league.DefaultStartingRating, l.StartingRating)

		fetched, err := store.GetLeague(l.ID)
		require.NoError(t, err)
		require.Contains(t, fetched.Ledger, "admin1")
		assert.Equal(t, league.DefaultStartingRating, fetched.Ledger["admin1"].Rating)
		assert.Equal(t, 0, fetched.Ledger["admin1"].Wins)
		assert.Nil(t, fetched.Ledger["admin1"].OpponentRatingSum)
	})

	t.Run("honors explicit configuration", func(t *testing.T) {
		l, err := store.CreateLeague(league.CreateLeagueParams{
			Name:           "Invite Only",
			AdminPID:       "admin2",
			KFactor:        24,
			StartingRating: 1200,
			Whitelist:      []string{"p1", "p2"},
		})
		require.NoError(t, err)

		fetched, err := store.GetLeague(l.ID)
		require.NoError(t, err)
		assert.Equal(t, 24, fetched.KFactor)
		assert.Equal(t, 1200, fetched.StartingRating)
		assert.False(t, fetched.IsPublic)
		assert.Equal(t, []string{"p1", "p2"}, fetched.Whitelist)
	})
}

func TestGetLeague_NotFound(t *testing.T) {
	store, _, teardown := setupTestDB(t)
	defer teardown()

	_, err := store.GetLeague("nope")
	assert.ErrorIs(t, err, league.ErrLeagueNotFound)
}

func TestJoinLeague(t *testing.T) {
	store, _, teardown := setupTestDB(t)
	defer teardown()

	public, err := store.CreateLeague(league.CreateLeagueParams{
		Name: "Open", AdminPID: "admin1", IsPublic: true,
	})
	require.NoError(t, err)
	private, err := store.CreateLeague(league.CreateLeagueParams{
		Name: "Closed", AdminPID: "admin2", Whitelist: []string{"invited"},
	})
	require.NoError(t, err)

	t.Run("anyone can join a public league", func(t *testing.T) {
		require.NoError(t, store.JoinLeague(public.ID, "p1"))

		fetched, err := store.GetLeague(public.ID)
		require.NoError(t, err)
		require.Contains(t, fetched.Ledger, "p1")
		assert.Equal(t, league.DefaultStartingRating, fetched.Ledger["p1"].Rating)
	})

	t.Run("joining twice is rejected", func(t *testing.T) {
		err := store.JoinLeague(public.ID, "p1")
		assert.ErrorIs(t, err, league.ErrAlreadyMember)
	})

	t.Run("private league requires an invite", func(t *testing.T) {
		err := store.JoinLeague(private.ID, "stranger")
		assert.ErrorIs(t, err, league.ErrInviteRequired)

		require.NoError(t, store.JoinLeague(private.ID, "invited"))
	})

	t.Run("unknown league", func(t *testing.T) {
		err := store.JoinLeague("nope", "p1")
		assert.ErrorIs(t, err, league.ErrLeagueNotFound)
	})
}

func TestLeaderboard(t *testing.T) {
	store, db, teardown := setupTestDB(t)
	defer teardown()

	l, err := store.CreateLeague(league.CreateLeagueParams{
		Name: "Ranked", AdminPID: "admin1", IsPublic: true,
	})
	require.NoError(t, err)

	_, err = db.Exec(`
		INSERT INTO league_ratings (league_id, player_id, rating, wins, losses) VALUES
		(?, 'p1', 950, 3, 1),
		(?, 'p2', 1100, 4, 0),
		(?, 'p3', 700, 0, 4)
	`, l.ID, l.ID, l.ID)
	require.NoError(t, err)

	entries, err := store.Leaderboard(l.ID)
	require.NoError(t, err)
	require.Len(t, entries, 4)

	assert.Equal(t, "p2", entries[0].PlayerID)
	assert.Equal(t, "p1", entries[1].PlayerID)
	assert.Equal(t, "admin1", entries[2].PlayerID)
	assert.Equal(t, "p3", entries[3].PlayerID)

	assert.InDelta(t, 100.0, entries[0].WinPercentage, 1e-9)
	assert.InDelta(t, 75.0, entries[1].WinPercentage, 1e-9)
	assert.Zero(t, entries[2].WinPercentage)
}

func TestCreateAndGetMatch(t *testing.T) {
	store, _, teardown := setupTestDB(t)
	defer teardown()

	l, err := store.CreateLeague(league.CreateLeagueParams{
		Name: "Matches", AdminPID: "admin1", IsPublic: true,
	})
	require.NoError(t, err)

	kOverride := 24
	match := &league.Match{
		LeagueID:        l.ID,
		KFactorOverride: &kOverride,
		WinningTeam: map[string]league.TeamSnapshot{
			"p1": {Rating: 1000},
			"p2": {Rating: 1200},
		},
		LosingTeam: map[string]league.TeamSnapshot{
			"p3": {Rating: 1100},
		},
	}
	require.NoError(t, store.CreateMatch(match))
	assert.NotEmpty(t, match.ID)
	assert.NotZero(t, match.CreatedAt)

	fetched, err := store.GetMatch(match.ID)
	require.NoError(t, err)
	assert.Equal(t, match.WinningTeam, fetched.WinningTeam)
	assert.Equal(t, match.LosingTeam, fetched.LosingTeam)
	require.NotNil(t, fetched.KFactorOverride)
	assert.Equal(t, 24, *fetched.KFactorOverride)
	assert.False(t, fetched.Processed)
	assert.False(t, fetched.RolledBack)

	_, err = store.GetMatch("nope")
	assert.ErrorIs(t, err, league.ErrMatchNotFound)
}

func TestGetLeagueMatches_Pagination(t *testing.T) {
	store, _, teardown := setupTestDB(t)
	defer teardown()

	l, err := store.CreateLeague(league.CreateLeagueParams{
		Name: "History", AdminPID: "admin1", IsPublic: true,
	})
	require.NoError(t, err)

	teams := map[string]league.TeamSnapshot{"p1": {Rating: 800}}
	for i, id := range []string{"m1", "m2", "m3"} {
		require.NoError(t, store.CreateMatch(&league.Match{
			ID:          id,
			LeagueID:    l.ID,
			WinningTeam: teams,
			LosingTeam:  teams,
			CreatedAt:   int64(100 + i),
		}))
	}

	page, err := store.GetLeagueMatches(l.ID, 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "m3", page[0].ID)
	assert.Equal(t, "m2", page[1].ID)

	page, err = store.GetLeagueMatches(l.ID, 2, page[1].CreatedAt)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "m1", page[0].ID)
}

func TestRunInTx(t *testing.T) {
	store, _, teardown := setupTestDB(t)
	defer teardown()

	l, err := store.CreateLeague(league.CreateLeagueParams{
		Name: "Tx", AdminPID: "admin1", IsPublic: true,
	})
	require.NoError(t, err)
	require.NoError(t, store.JoinLeague(l.ID, "p1"))

	t.Run("commits on success", func(t *testing.T) {
		err := store.RunInTx(func(tx league.Tx) error {
			return tx.PutLedgerEntry(l.ID, "p1", &league.PlayerRatingEntry{
				Rating: 840, Wins: 1,
			})
		})
		require.NoError(t, err)

		fetched, err := store.GetLeague(l.ID)
		require.NoError(t, err)
		assert.Equal(t, 840, fetched.Ledger["p1"].Rating)
		assert.Equal(t, 1, fetched.Ledger["p1"].Wins)
	})

	t.Run("rolls back when fn errors", func(t *testing.T) {
		boom := errors.New("boom")
		err := store.RunInTx(func(tx league.Tx) error {
			if err := tx.PutLedgerEntry(l.ID, "p1", &league.PlayerRatingEntry{Rating: 9999}); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		fetched, err := store.GetLeague(l.ID)
		require.NoError(t, err)
		assert.Equal(t, 840, fetched.Ledger["p1"].Rating)
	})

	t.Run("reads observe earlier writes in the same transaction", func(t *testing.T) {
		match := &league.Match{
			LeagueID:    l.ID,
			WinningTeam: map[string]league.TeamSnapshot{"p1": {Rating: 840}},
			LosingTeam:  map[string]league.TeamSnapshot{"admin1": {Rating: 800}},
		}
		require.NoError(t, store.CreateMatch(match))

		err := store.RunInTx(func(tx league.Tx) error {
			if err := tx.SetMatchFlags(match.ID, true, false); err != nil {
				return err
			}
			m, err := tx.GetMatch(match.ID)
			if err != nil {
				return err
			}
			assert.True(t, m.Processed)
			return nil
		})
		require.NoError(t, err)
	})
}
