package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	_ "github.com/tursodatabase/libsql-client-go/libsql"

	"github.com/atekkey/courtrank/internal/league"
)

// Simplified config loading for the script
func loadConfig() map[string]string {
	err := godotenv.Load()
	if err != nil {
		log.Warn("No .env file found, reading from environment variables")
	}

	config := make(map[string]string)
	required := []string{"TURSO_PRIMARY_URL", "TURSO_AUTH_TOKEN"}

	for _, key := range required {
		if value, ok := os.LookupEnv(key); ok {
			config[key] = value
		} else {
			log.Fatalf("Error: Required environment variable %s is not set.", key)
		}
	}
	return config
}

func main() {
	log.Info("Starting database seeder...")
	cfg := loadConfig()

	// Connect directly to the primary database
	dbURL := fmt.Sprintf("%s?authToken=%s", cfg["TURSO_PRIMARY_URL"], cfg["TURSO_AUTH_TOKEN"])
	db, err := sql.Open("libsql", dbURL)
	if err != nil {
		log.Fatalf("Failed to open primary database: %s", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to connect to primary database: %s", err)
	}

	log.Info("Successfully connected to the primary database.")

	// Create 4 dummy players to use in matches
	dummyPlayers := []league.PlayerInfo{
		{ID: "player-1", Name: "Seeder Player A"},
		{ID: "player-2", Name: "Seeder Player B"},
		{ID: "player-3", Name: "Seeder Player C"},
		{ID: "player-4", Name: "Seeder Player D"},
	}

	for _, p := range dummyPlayers {
		_, err := db.Exec("INSERT OR IGNORE INTO players (id, name, email, created_at) VALUES (?, ?, ?, ?)", p.ID, p.Name, "", time.Now().Unix())
		if err != nil {
			log.Fatalf("Failed to insert dummy player %s: %s", p.Name, err)
		}
	}
	log.Info("Ensured dummy players exist.")

	// Create one league and enroll all dummy players at the default rating.
	seedLeagueID := uuid.NewString()
	_, err = db.Exec(`
		INSERT INTO leagues (id, name, admin_pid, k_factor, starting_rating, is_public, whitelist_json, created_at)
		VALUES (?, ?, ?, ?, ?, 1, '[]', ?)
	`, seedLeagueID, "Seeded League", dummyPlayers[0].ID, league.DefaultKFactor, league.DefaultStartingRating, time.Now().Unix())
	if err != nil {
		log.Fatalf("Failed to insert seed league: %s", err)
	}
	for _, p := range dummyPlayers {
		_, err := db.Exec(`
			INSERT INTO league_ratings (league_id, player_id, rating, wins, losses, opponent_rating_sum)
			VALUES (?, ?, ?, 0, 0, NULL)
		`, seedLeagueID, p.ID, league.DefaultStartingRating)
		if err != nil {
			log.Fatalf("Failed to enroll dummy player %s: %s", p.ID, err)
		}
	}
	log.Info("Created seed league.", "leagueID", seedLeagueID)

	const batchSize = 100 // Insert 100 matches at a time
	const numMatches = 10000

	log.Info("Preparing to insert dummy matches...", "total", numMatches, "batch_size", batchSize)
	startTime := time.Now()

	tx, err := db.Begin()
	if err != nil {
		log.Fatalf("Failed to begin transaction: %s", err)
	}

	valueStrings := make([]string, 0, batchSize)
	valueArgs := make([]interface{}, 0, batchSize*8) // 8 columns per match

	for i := 0; i < numMatches; i++ {
		matchTime := time.Now().Add(-time.Duration(rand.Intn(365*24)) * time.Hour)
		winners := map[string]league.TeamSnapshot{
			dummyPlayers[0].ID: {Rating: league.DefaultStartingRating},
			dummyPlayers[1].ID: {Rating: league.DefaultStartingRating},
		}
		losers := map[string]league.TeamSnapshot{
			dummyPlayers[2].ID: {Rating: league.DefaultStartingRating},
			dummyPlayers[3].ID: {Rating: league.DefaultStartingRating},
		}
		winBlob, _ := json.Marshal(winners)
		lossBlob, _ := json.Marshal(losers)

		valueStrings = append(valueStrings, "(?, ?, ?, ?, ?, ?, ?, ?)")
		valueArgs = append(valueArgs,
			uuid.NewString(),
			seedLeagueID,
			nil, // k_factor_override
			string(winBlob),
			string(lossBlob),
			0, // processed
			0, // rolled_back
			matchTime.Unix(),
		)

		if (i+1)%batchSize == 0 || (i+1) == numMatches {
			stmt := fmt.Sprintf(`
				INSERT INTO matches (id, league_id, k_factor_override, win_team_json, loss_team_json, processed, rolled_back, created_at)
				VALUES %s;`, strings.Join(valueStrings, ","))

			_, err := tx.Exec(stmt, valueArgs...)
			if err != nil {
				tx.Rollback()
				log.Fatalf("Failed to execute batch insert: %s", err)
			}

			// Reset for the next batch
			valueStrings = make([]string, 0, batchSize)
			valueArgs = make([]interface{}, 0, batchSize*8)
			log.Info("Inserted batch", "completed", i+1, "total", numMatches)
		}
	}

	if err := tx.Commit(); err != nil {
		log.Fatalf("Failed to commit transaction: %s", err)
	}

	duration := time.Since(startTime)
	log.Info("Successfully inserted all dummy matches.", "duration", duration)
}
