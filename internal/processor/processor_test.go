package processor_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atekkey/courtrank/internal/database"
	"github.com/atekkey/courtrank/internal/league"
	"github.com/atekkey/courtrank/internal/metrics"
	"github.com/atekkey/courtrank/internal/notifier"
	"github.com/atekkey/courtrank/internal/processor"
)

func setupProcessor(t *testing.T) (*processor.Processor, league.LeagueStore, *notifier.Mock, *metrics.Mock, func()) {
	t.Helper()

	db, dbTeardown, err := database.InitDB(":memory:", "", "", "../../migrations")
	require.NoError(t, err)

	store := league.New(db)
	mockNotifier := notifier.NewMock()
	mockMetrics := metrics.NewMock()
	proc := processor.New(store, mockNotifier, mockMetrics)

	teardown := func() {
		dbTeardown()
		db.Close()
	}
	return proc, store, mockNotifier, mockMetrics, teardown
}

// seedScenario builds the reference setup: a K=40 league with w1 rated 1000,
// w2 rated 1200 and l1 rated 1100, plus an unprocessed match where w1+w2 beat
// l1. Expected effective K is 31, deltas +20/+11 and -16.
func seedScenario(t *testing.T, store league.LeagueStore) (string, *league.Match) {
	t.Helper()

	l, err := store.CreateLeague(league.CreateLeagueParams{
		Name: "Scenario", AdminPID: "w1", IsPublic: true,
	})
	require.NoError(t, err)
	require.NoError(t, store.JoinLeague(l.ID, "w2"))
	require.NoError(t, store.JoinLeague(l.ID, "l1"))

	err = store.RunInTx(func(tx league.Tx) error {
		for pid, r := range map[string]int{"w1": 1000, "w2": 1200, "l1": 1100} {
			if err := tx.PutLedgerEntry(l.ID, pid, &league.PlayerRatingEntry{Rating: r}); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	match := &league.Match{
		LeagueID: l.ID,
		WinningTeam: map[string]league.TeamSnapshot{
			"w1": {Rating: 1000},
			"w2": {Rating: 1200},
		},
		LosingTeam: map[string]league.TeamSnapshot{
			"l1": {Rating: 1100},
		},
	}
	require.NoError(t, store.CreateMatch(match))
	return l.ID, match
}

func TestApplyMatch_Scenario(t *testing.T) {
	proc, store, mockNotifier, mockMetrics, teardown := setupProcessor(t)
	defer teardown()

	leagueID, match := seedScenario(t, store)

	result, err := proc.ApplyMatch(match.ID)
	require.NoError(t, err)
	assert.True(t, result.Applied)
	assert.Equal(t, 31, result.KFactor)
	assert.Equal(t, map[string]int{"w1": 20, "w2": 11}, result.WinnerDeltas)
	assert.Equal(t, map[string]int{"l1": -16}, result.LoserDeltas)

	l, err := store.GetLeague(leagueID)
	require.NoError(t, err)

	assert.Equal(t, 1020, l.Ledger["w1"].Rating)
	assert.Equal(t, 1, l.Ledger["w1"].Wins)
	assert.Equal(t, 0, l.Ledger["w1"].Losses)
	require.NotNil(t, l.Ledger["w1"].OpponentRatingSum)
	assert.InDelta(t, 1100, *l.Ledger["w1"].OpponentRatingSum, 1e-9)

	assert.Equal(t, 1211, l.Ledger["w2"].Rating)
	assert.Equal(t, 1, l.Ledger["w2"].Wins)

	assert.Equal(t, 1084, l.Ledger["l1"].Rating)
	assert.Equal(t, 1, l.Ledger["l1"].Losses)
	require.NotNil(t, l.Ledger["l1"].OpponentRatingSum)
	assert.InDelta(t, 1100, *l.Ledger["l1"].OpponentRatingSum, 1e-9)

	m, err := store.GetMatch(match.ID)
	require.NoError(t, err)
	assert.True(t, m.Processed)
	assert.False(t, m.RolledBack)

	assert.Equal(t, 1, mockMetrics.MatchesApplied())
	require.Len(t, mockNotifier.SendResultNotificationCalls, 1)
	assert.Equal(t, map[string]int{"w1": 20, "w2": 11}, mockNotifier.SendResultNotificationCalls[0].WinnerDeltas)
}

func TestApplyMatch_Idempotent(t *testing.T) {
	proc, store, mockNotifier, mockMetrics, teardown := setupProcessor(t)
	defer teardown()

	leagueID, match := seedScenario(t, store)

	first, err := proc.ApplyMatch(match.ID)
	require.NoError(t, err)
	require.True(t, first.Applied)

	second, err := proc.ApplyMatch(match.ID)
	require.NoError(t, err)
	assert.False(t, second.Applied)

	l, err := store.GetLeague(leagueID)
	require.NoError(t, err)
	assert.Equal(t, 1020, l.Ledger["w1"].Rating, "ledger should reflect exactly one application")
	assert.Equal(t, 1, l.Ledger["w1"].Wins)

	assert.Equal(t, 1, mockMetrics.MatchesApplied())
	assert.Len(t, mockNotifier.SendResultNotificationCalls, 1)
}

func TestApplyMatch_KFactorOverride(t *testing.T) {
	proc, store, _, _, teardown := setupProcessor(t)
	defer teardown()

	l, err := store.CreateLeague(league.CreateLeagueParams{
		Name: "Override", AdminPID: "a", IsPublic: true,
	})
	require.NoError(t, err)
	require.NoError(t, store.JoinLeague(l.ID, "b"))

	kOverride := 16
	match := &league.Match{
		LeagueID:        l.ID,
		KFactorOverride: &kOverride,
		WinningTeam:     map[string]league.TeamSnapshot{"a": {Rating: 800}},
		LosingTeam:      map[string]league.TeamSnapshot{"b": {Rating: 800}},
	}
	require.NoError(t, store.CreateMatch(match))

	result, err := proc.ApplyMatch(match.ID)
	require.NoError(t, err)
	assert.Equal(t, 16, result.KFactor)
	assert.Equal(t, map[string]int{"a": 8}, result.WinnerDeltas)
	assert.Equal(t, map[string]int{"b": -8}, result.LoserDeltas)
}

func TestApplyMatch_MissingLedgerEntrySkipped(t *testing.T) {
	proc, store, _, _, teardown := setupProcessor(t)
	defer teardown()

	leagueID, _ := seedScenario(t, store)

	match := &league.Match{
		LeagueID: leagueID,
		WinningTeam: map[string]league.TeamSnapshot{
			"w1":    {Rating: 1000},
			"ghost": {Rating: 900},
		},
		LosingTeam: map[string]league.TeamSnapshot{
			"l1": {Rating: 1100},
		},
	}
	require.NoError(t, store.CreateMatch(match))

	result, err := proc.ApplyMatch(match.ID)
	require.NoError(t, err)
	assert.True(t, result.Applied)
	assert.Contains(t, result.WinnerDeltas, "w1")
	assert.NotContains(t, result.WinnerDeltas, "ghost")

	l, err := store.GetLeague(leagueID)
	require.NoError(t, err)
	assert.NotContains(t, l.Ledger, "ghost")
	assert.Equal(t, 1, l.Ledger["w1"].Wins, "the rest of the match should still be scored")

	m, err := store.GetMatch(match.ID)
	require.NoError(t, err)
	assert.True(t, m.Processed)
}

func TestApplyMatch_LeagueNotFound(t *testing.T) {
	proc, store, _, _, teardown := setupProcessor(t)
	defer teardown()

	match := &league.Match{
		LeagueID:    "ghost-league",
		WinningTeam: map[string]league.TeamSnapshot{"a": {Rating: 800}},
		LosingTeam:  map[string]league.TeamSnapshot{"b": {Rating: 800}},
	}
	require.NoError(t, store.CreateMatch(match))

	_, err := proc.ApplyMatch(match.ID)
	assert.ErrorIs(t, err, league.ErrLeagueNotFound)

	m, err := store.GetMatch(match.ID)
	require.NoError(t, err)
	assert.False(t, m.Processed, "the match should stay unprocessed for a future retry")
}

func TestApplyMatch_NotFound(t *testing.T) {
	proc, _, _, _, teardown := setupProcessor(t)
	defer teardown()

	_, err := proc.ApplyMatch("nope")
	assert.ErrorIs(t, err, processor.ErrNotFound)
}

func TestRollbackMatch_RoundTrip(t *testing.T) {
	proc, store, mockNotifier, mockMetrics, teardown := setupProcessor(t)
	defer teardown()

	leagueID, match := seedScenario(t, store)

	_, err := proc.ApplyMatch(match.ID)
	require.NoError(t, err)

	result, err := proc.RollbackMatch(match.ID, "w1")
	require.NoError(t, err)
	assert.True(t, result.Success)

	l, err := store.GetLeague(leagueID)
	require.NoError(t, err)
	for pid, want := range map[string]int{"w1": 1000, "w2": 1200, "l1": 1100} {
		entry := l.Ledger[pid]
		assert.Equal(t, want, entry.Rating, "rating for %s should be restored", pid)
		assert.Zero(t, entry.Wins)
		assert.Zero(t, entry.Losses)
		require.NotNil(t, entry.OpponentRatingSum)
		assert.InDelta(t, 0, *entry.OpponentRatingSum, 1e-9)
	}

	m, err := store.GetMatch(match.ID)
	require.NoError(t, err)
	assert.False(t, m.Processed)
	assert.True(t, m.RolledBack)

	assert.Equal(t, 1, mockMetrics.MatchesRolledBack())
	assert.Len(t, mockNotifier.SendRollbackNotificationCalls, 1)

	t.Run("rolling back again fails the precondition", func(t *testing.T) {
		_, err := proc.RollbackMatch(match.ID, "w1")
		assert.ErrorIs(t, err, processor.ErrFailedPrecondition)
	})
}

func TestRollbackMatch_Authorization(t *testing.T) {
	proc, store, _, _, teardown := setupProcessor(t)
	defer teardown()

	_, match := seedScenario(t, store)
	_, err := proc.ApplyMatch(match.ID)
	require.NoError(t, err)

	t.Run("unauthenticated", func(t *testing.T) {
		_, err := proc.RollbackMatch(match.ID, "")
		assert.ErrorIs(t, err, processor.ErrUnauthenticated)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := proc.RollbackMatch("nope", "w1")
		assert.ErrorIs(t, err, processor.ErrNotFound)
	})

	t.Run("loser may not roll back", func(t *testing.T) {
		_, err := proc.RollbackMatch(match.ID, "l1")
		assert.ErrorIs(t, err, processor.ErrPermissionDenied)
	})

	t.Run("stranger may not roll back", func(t *testing.T) {
		_, err := proc.RollbackMatch(match.ID, "someone-else")
		assert.ErrorIs(t, err, processor.ErrPermissionDenied)
	})
}

func TestRollbackMatch_BeforeApply(t *testing.T) {
	proc, store, _, _, teardown := setupProcessor(t)
	defer teardown()

	_, match := seedScenario(t, store)

	_, err := proc.RollbackMatch(match.ID, "w1")
	assert.ErrorIs(t, err, processor.ErrFailedPrecondition)
}

func TestRollbackMatch_CountersFloorAtZero(t *testing.T) {
	proc, store, _, _, teardown := setupProcessor(t)
	defer teardown()

	leagueID, match := seedScenario(t, store)
	_, err := proc.ApplyMatch(match.ID)
	require.NoError(t, err)

	// Zero out w1's win counter to simulate a ledger touched by other
	// operations between apply and rollback.
	err = store.RunInTx(func(tx league.Tx) error {
		return tx.PutLedgerEntry(leagueID, "w1", &league.PlayerRatingEntry{Rating: 1020})
	})
	require.NoError(t, err)

	result, err := proc.RollbackMatch(match.ID, "w1")
	require.NoError(t, err)
	assert.True(t, result.Success)

	l, err := store.GetLeague(leagueID)
	require.NoError(t, err)
	assert.Equal(t, 1000, l.Ledger["w1"].Rating)
	assert.Zero(t, l.Ledger["w1"].Wins, "counter must floor at zero, not go negative")
}

func TestApplyMatch_StoreFailure(t *testing.T) {
	mockStore := league.NewMock()
	mockStore.GetMatchFunc = func(matchID string) (*league.Match, error) {
		return &league.Match{
			ID:          matchID,
			LeagueID:    "l1",
			WinningTeam: map[string]league.TeamSnapshot{"a": {Rating: 800}},
			LosingTeam:  map[string]league.TeamSnapshot{"b": {Rating: 800}},
		}, nil
	}
	dbErr := errors.New("database is offline")
	mockStore.RunInTxFunc = func(fn func(tx league.Tx) error) error {
		return dbErr
	}

	mockNotifier := notifier.NewMock()
	mockMetrics := metrics.NewMock()
	proc := processor.New(mockStore, mockNotifier, mockMetrics)

	_, err := proc.ApplyMatch("m1")
	require.Error(t, err)
	assert.ErrorIs(t, err, dbErr)

	assert.Equal(t, 1, mockStore.RunInTxCalls)
	assert.Equal(t, 1, mockMetrics.ApplyFailures())
	assert.Zero(t, mockMetrics.MatchesApplied())
	assert.Empty(t, mockNotifier.SendResultNotificationCalls)
}
