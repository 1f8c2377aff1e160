package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitDB_CreatesTables(t *testing.T) {

	db, teardown, err := InitDB(":memory:", "", "", "../../migrations")
	require.NoError(t, err, "InitDB should not return an error")
	defer teardown()
	defer db.Close()

	for _, table := range []string{"players", "leagues", "league_ratings", "matches"} {
		var name string
		err = db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		require.NoError(t, err, "querying for %s table should not produce an error", table)
		assert.Equal(t, table, name, "the '%s' table should be created", table)
	}
}

func TestInitDB_SchemaDefaults(t *testing.T) {
	db, teardown, err := InitDB(":memory:", "", "", "../../migrations")
	require.NoError(t, err)
	defer teardown()
	defer db.Close()

	_, err = db.Exec(`INSERT INTO leagues (id, name, admin_pid, is_public, whitelist_json, created_at)
		VALUES ('l1', 'Test', 'p1', 1, '[]', 0)`)
	require.NoError(t, err)

	var kFactor, startingRating int
	err = db.QueryRow("SELECT k_factor, starting_rating FROM leagues WHERE id = 'l1'").Scan(&kFactor, &startingRating)
	require.NoError(t, err)
	assert.Equal(t, 40, kFactor)
	assert.Equal(t, 800, startingRating)
}
