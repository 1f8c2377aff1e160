package metrics

import (
	"testing"

	"github.com/atekkey/courtrank/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestDB creates a temporary in-memory SQLite database for testing.
func setupTestDB(t *testing.T) (MetricsStore, func()) {
	t.Helper()

	db, dbTeardown, err := database.InitDB(":memory:", "", "", "../../migrations")
	require.NoError(t, err)

	store := New(db)
	teardown := func() {
		dbTeardown()
		db.Close()
	}

	return store, teardown
}

func TestIncrementAndGetAll(t *testing.T) {
	store, teardown := setupTestDB(t)
	defer teardown()

	// 1. Initially, there should be no counters
	counters, err := store.GetAll()
	require.NoError(t, err)
	assert.Empty(t, counters)

	// 2. Increment a new key
	store.Increment(KeyMatchesApplied)
	counters, err = store.GetAll()
	require.NoError(t, err)
	assert.Equal(t, map[string]int{KeyMatchesApplied: 1}, counters)

	// 3. Increment the same key again
	store.Increment(KeyMatchesApplied)
	counters, err = store.GetAll()
	require.NoError(t, err)
	assert.Equal(t, map[string]int{KeyMatchesApplied: 2}, counters)

	// 4. Increment a different key
	store.Increment(KeyMatchesRolledBack)
	counters, err = store.GetAll()
	require.NoError(t, err)
	assert.Equal(t, map[string]int{
		KeyMatchesApplied:    2,
		KeyMatchesRolledBack: 1,
	}, counters)
}
