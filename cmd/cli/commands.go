package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"
)

var (
	leagueID   string
	leagueName string
	isPublic   bool
	playerID   string
	winners    []string
	losers     []string
	matchID    string
	limit      int
	before     int64
)

func init() {
	createLeagueCmd.Flags().StringVar(&leagueName, "name", "", "Name of the league")
	createLeagueCmd.Flags().BoolVar(&isPublic, "public", true, "Whether anyone can join the league")

	joinCmd.Flags().StringVar(&leagueID, "league", "", "The league to join")
	joinCmd.MarkFlagRequired("league")

	leaderboardCmd.Flags().StringVar(&leagueID, "league", "", "The league to show")
	leaderboardCmd.MarkFlagRequired("league")

	announceCmd.Flags().StringVar(&leagueID, "league", "", "The league whose standings to announce")
	announceCmd.MarkFlagRequired("league")

	matchesCmd.Flags().StringVar(&leagueID, "league", "", "The league to list matches for")
	matchesCmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of matches to return")
	matchesCmd.Flags().Int64Var(&before, "before", 0, "Only return matches created before this unix timestamp")
	matchesCmd.MarkFlagRequired("league")

	createMatchCmd.Flags().StringVar(&leagueID, "league", "", "The league the match was played in")
	createMatchCmd.Flags().StringSliceVar(&winners, "winners", nil, "Player ids on the winning team")
	createMatchCmd.Flags().StringSliceVar(&losers, "losers", nil, "Player ids on the losing team")
	createMatchCmd.MarkFlagRequired("league")
	createMatchCmd.MarkFlagRequired("winners")
	createMatchCmd.MarkFlagRequired("losers")

	rollbackCmd.Flags().StringVar(&matchID, "match", "", "The match to roll back")
	rollbackCmd.MarkFlagRequired("match")

	playerCmd.Flags().StringVar(&playerID, "player", "", "The player id to look up")
	playerCmd.MarkFlagRequired("player")

	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(leaguesCmd)
	rootCmd.AddCommand(createLeagueCmd)
	rootCmd.AddCommand(joinCmd)
	rootCmd.AddCommand(leaderboardCmd)
	rootCmd.AddCommand(announceCmd)
	rootCmd.AddCommand(matchesCmd)
	rootCmd.AddCommand(createMatchCmd)
	rootCmd.AddCommand(rollbackCmd)
	rootCmd.AddCommand(playerCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(metricsCmd)
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the health of the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return performGetRequest("/health")
	},
}

var leaguesCmd = &cobra.Command{
	Use:   "leagues",
	Short: "List all leagues",
	RunE: func(cmd *cobra.Command, args []string) error {
		return performGetRequest("/leagues")
	},
}

var createLeagueCmd = &cobra.Command{
	Use:   "create-league",
	Short: "Create a new league with the caller as admin",
	RunE: func(cmd *cobra.Command, args []string) error {
		return performPostRequest("/leagues", map[string]any{
			"league_name": leagueName,
			"is_public":   isPublic,
		})
	},
}

var joinCmd = &cobra.Command{
	Use:   "join",
	Short: "Join a league as the caller",
	RunE: func(cmd *cobra.Command, args []string) error {
		return performPostRequest("/leagues/join", map[string]any{
			"league_id": leagueID,
		})
	},
}

var leaderboardCmd = &cobra.Command{
	Use:   "leaderboard",
	Short: "Show a league's leaderboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		return performGetRequest("/leaderboard?leagueID=" + url.QueryEscape(leagueID))
	},
}

var announceCmd = &cobra.Command{
	Use:   "announce",
	Short: "Queue a leaderboard announcement for a league",
	RunE: func(cmd *cobra.Command, args []string) error {
		return performPostRequest("/leaderboard?leagueID="+url.QueryEscape(leagueID), nil)
	},
}

var matchesCmd = &cobra.Command{
	Use:   "matches",
	Short: "List a league's matches, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		endpoint := "/matches?leagueID=" + url.QueryEscape(leagueID)
		if limit > 0 {
			endpoint += fmt.Sprintf("&limit=%d", limit)
		}
		if before > 0 {
			endpoint += fmt.Sprintf("&before=%d", before)
		}
		return performGetRequest(endpoint)
	},
}

var createMatchCmd = &cobra.Command{
	Use:   "create-match",
	Short: "Record a decided match and trigger scoring",
	RunE: func(cmd *cobra.Command, args []string) error {
		return performPostRequest("/matches", map[string]any{
			"league_id": leagueID,
			"winners":   winners,
			"losers":    losers,
		})
	},
}

var rollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Roll back a processed match as the caller",
	RunE: func(cmd *cobra.Command, args []string) error {
		return performPostRequest("/rollback?matchID="+url.QueryEscape(matchID), nil)
	},
}

var playerCmd = &cobra.Command{
	Use:   "player",
	Short: "Show a player profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		return performGetRequest("/players?playerID=" + url.QueryEscape(playerID))
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Get the persisted operational counters",
	RunE: func(cmd *cobra.Command, args []string) error {
		return performGetRequest("/stats")
	},
}

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Get application metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		return performGetRequest("/metrics")
	},
}

func performGetRequest(endpoint string) error {
	url := host + endpoint
	fmt.Printf("Making request to %s\n", url)

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	return performRequest(req)
}

func performPostRequest(endpoint string, body any) error {
	url := host + endpoint
	fmt.Printf("Making request to %s\n", url)

	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		payload = bytes.NewReader(data)
	}

	req, err := http.NewRequest(http.MethodPost, url, payload)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return performRequest(req)
}

func performRequest(req *http.Request) error {
	if caller != "" {
		req.Header.Set("X-Caller-ID", caller)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	fmt.Printf("Status Code: %d\n", resp.StatusCode)
	fmt.Println("Response Body:")
	fmt.Println(string(body))

	return nil
}
