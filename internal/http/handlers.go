package http

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"

	"github.com/atekkey/courtrank/internal/league"
	"github.com/atekkey/courtrank/internal/metrics"
	"github.com/atekkey/courtrank/internal/processor"
	"github.com/atekkey/courtrank/internal/pubsub"
)

func (s *Server) HealthCheckHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Debug("Received health check request")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "OK!")
	}
}

// StatsHandler serves the persisted operational counters.
func (s *Server) StatsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		counters, err := s.Counters.GetAll()
		if err != nil {
			http.Error(w, "Failed to get stats", http.StatusInternalServerError)
			log.Error("Failed to get counters from store", "error", err)
			return
		}
		respondJSON(w, http.StatusOK, counters)
	}
}

// ScoreMatchHandler is the pubsub push endpoint for match-created events.
// Delivery is at-least-once; the processor absorbs duplicates, so a redelivered
// event for an already-processed match still gets a 200.
func (s *Server) ScoreMatchHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bodyBytes, err := io.ReadAll(r.Body)
		if err != nil {
			log.Error("Failed to read request body", "error", err)
			http.Error(w, "Failed to read request body", http.StatusInternalServerError)
			return
		}
		log.Debug("Received score match message", "body", string(bodyBytes))
		rawData, err := decodePushPayload(bodyBytes)
		if err != nil {
			log.Error("Failed to decode push payload", "error", err)
			http.Error(w, "Invalid push payload", http.StatusBadRequest)
			return
		}

		event := pubsub.MatchCreatedEvent{}
		if err := s.pubsub.ProcessMessage(rawData, &event); err != nil {
			http.Error(w, "Invalid message payload", http.StatusBadRequest)
			return
		}

		result, err := s.Processor.ApplyMatch(event.MatchID)
		if err != nil {
			if errors.Is(err, processor.ErrNotFound) {
				// Nothing to retry against; ack the message so it is not
				// redelivered forever.
				log.Warn("Received event for unknown match", "matchID", event.MatchID)
				w.Write([]byte("OK"))
				return
			}
			// Non-2xx makes pubsub redeliver, which is what we want for e.g.
			// a league that does not exist yet.
			log.Error("Failed to apply match", "error", err, "matchID", event.MatchID)
			http.Error(w, "Failed to apply match", http.StatusInternalServerError)
			return
		}
		if result.Applied {
			s.Counters.Increment(metrics.KeyMatchesApplied)
		}
		w.Write([]byte("OK"))
	}
}

// decodePushPayload unwraps a pubsub push delivery: a JSON envelope whose
// message data field carries the base64-encoded MessagePack payload.
func decodePushPayload(bodyBytes []byte) ([]byte, error) {
	// Define a small struct to decode the incoming JSON's `data` field
	var pubsubMsg struct {
		Subscription string `json:"subscription"`
		Message      struct {
			Data string `json:"data"` // base64-encoded message payload
		} `json:"message"`
	}

	if err := json.Unmarshal(bodyBytes, &pubsubMsg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal wrapper JSON: %w", err)
	}
	rawData, err := base64.StdEncoding.DecodeString(pubsubMsg.Message.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64 data: %w", err)
	}
	return rawData, nil
}

// NotifyLeaderboardHandler is the pubsub push endpoint for notify-leaderboard
// events. It loads the league's standings and announces them via the notifier.
func (s *Server) NotifyLeaderboardHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bodyBytes, err := io.ReadAll(r.Body)
		if err != nil {
			log.Error("Failed to read request body", "error", err)
			http.Error(w, "Failed to read request body", http.StatusInternalServerError)
			return
		}
		rawData, err := decodePushPayload(bodyBytes)
		if err != nil {
			log.Error("Failed to decode push payload", "error", err)
			http.Error(w, "Invalid push payload", http.StatusBadRequest)
			return
		}

		event := pubsub.NotifyLeaderboardEvent{}
		if err := s.pubsub.ProcessMessage(rawData, &event); err != nil {
			http.Error(w, "Invalid message payload", http.StatusBadRequest)
			return
		}

		l, err := s.Store.GetLeague(event.LeagueID)
		if err != nil {
			if errors.Is(err, league.ErrLeagueNotFound) {
				// Nothing to announce; ack so the message is not redelivered.
				log.Warn("Received event for unknown league", "leagueID", event.LeagueID)
				w.Write([]byte("OK"))
				return
			}
			http.Error(w, "Failed to get league", http.StatusInternalServerError)
			log.Error("Failed to get league", "error", err, "leagueID", event.LeagueID)
			return
		}
		entries, err := s.Store.Leaderboard(event.LeagueID)
		if err != nil {
			http.Error(w, "Failed to get leaderboard", http.StatusInternalServerError)
			log.Error("Failed to get leaderboard from store", "error", err, "leagueID", event.LeagueID)
			return
		}

		if err := s.Notifier.SendLeaderboard(l.Name, entries); err != nil {
			log.Error("Failed to send leaderboard notification", "error", err, "leagueID", event.LeagueID)
			http.Error(w, "Failed to send leaderboard notification", http.StatusInternalServerError)
			return
		}
		w.Write([]byte("OK"))
	}
}

// RollbackHandler handles explicit rollback requests. The caller identity
// comes from the X-Caller-ID header.
func (s *Server) RollbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		matchID := r.URL.Query().Get("matchID")
		if matchID == "" {
			http.Error(w, "matchID is required", http.StatusBadRequest)
			return
		}

		result, err := s.Processor.RollbackMatch(matchID, callerFromContext(r))
		if err != nil {
			respondJSON(w, rollbackStatus(err), processor.RollbackResult{
				Success: false,
				Message: err.Error(),
			})
			return
		}

		s.Counters.Increment(metrics.KeyMatchesRolledBack)
		respondJSON(w, http.StatusOK, result)
	}
}

// rollbackStatus maps processor sentinel errors to HTTP status codes.
func rollbackStatus(err error) int {
	switch {
	case errors.Is(err, processor.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, processor.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, processor.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, processor.ErrFailedPrecondition):
		return http.StatusPreconditionFailed
	default:
		return http.StatusInternalServerError
	}
}

// createMatchRequest records a decided match. Team snapshots are taken from
// the league ledger at creation time.
type createMatchRequest struct {
	LeagueID        string   `json:"league_id"`
	Winners         []string `json:"winners"`
	Losers          []string `json:"losers"`
	KFactorOverride *int     `json:"k_factor_override,omitempty"`
}

func (s *Server) MatchesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			s.createMatch(w, r)
		case http.MethodGet:
			s.listMatches(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

func (s *Server) createMatch(w http.ResponseWriter, r *http.Request) {
	var req createMatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.LeagueID == "" || len(req.Winners) == 0 || len(req.Losers) == 0 {
		http.Error(w, "league_id, winners and losers are required", http.StatusBadRequest)
		return
	}

	l, err := s.Store.GetLeague(req.LeagueID)
	if err != nil {
		if errors.Is(err, league.ErrLeagueNotFound) {
			http.Error(w, "League not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to get league", http.StatusInternalServerError)
		log.Error("Failed to get league", "error", err, "leagueID", req.LeagueID)
		return
	}

	snapshot := func(pids []string) (map[string]league.TeamSnapshot, error) {
		team := make(map[string]league.TeamSnapshot, len(pids))
		for _, pid := range pids {
			entry, ok := l.Ledger[pid]
			if !ok {
				return nil, fmt.Errorf("player %s is not a member of league %s", pid, req.LeagueID)
			}
			team[pid] = league.TeamSnapshot{Rating: entry.Rating}
		}
		return team, nil
	}

	winningTeam, err := snapshot(req.Winners)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	losingTeam, err := snapshot(req.Losers)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	match := &league.Match{
		LeagueID:        req.LeagueID,
		KFactorOverride: req.KFactorOverride,
		WinningTeam:     winningTeam,
		LosingTeam:      losingTeam,
	}
	if err := s.Store.CreateMatch(match); err != nil {
		http.Error(w, "Failed to create match", http.StatusInternalServerError)
		log.Error("Failed to create match", "error", err, "leagueID", req.LeagueID)
		return
	}

	if err := s.pubsub.SendMessage(pubsub.EventMatchCreated, pubsub.MatchCreatedEvent{
		MatchID:  match.ID,
		LeagueID: match.LeagueID,
	}); err != nil {
		// The match document exists but no trigger fired; an operator can
		// re-publish via the CLI.
		log.Error("Failed to publish match-created event", "error", err, "matchID", match.ID)
	}

	respondJSON(w, http.StatusCreated, match)
}

func (s *Server) listMatches(w http.ResponseWriter, r *http.Request) {
	leagueID := r.URL.Query().Get("leagueID")
	if leagueID == "" {
		http.Error(w, "leagueID is required", http.StatusBadRequest)
		return
	}

	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}
	var before int64
	if beforeStr := r.URL.Query().Get("before"); beforeStr != "" {
		parsed, err := strconv.ParseInt(beforeStr, 10, 64)
		if err != nil {
			http.Error(w, "Invalid before cursor", http.StatusBadRequest)
			return
		}
		before = parsed
	}

	matches, err := s.Store.GetLeagueMatches(leagueID, limit, before)
	if err != nil {
		http.Error(w, "Failed to get matches", http.StatusInternalServerError)
		log.Error("Failed to get matches from store", "error", err, "leagueID", leagueID)
		return
	}
	if matches == nil {
		matches = []*league.Match{}
	}
	respondJSON(w, http.StatusOK, matches)
}

func (s *Server) LeaguesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			s.createLeague(w, r)
		case http.MethodGet:
			s.listLeagues(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

func (s *Server) createLeague(w http.ResponseWriter, r *http.Request) {
	var params league.CreateLeagueParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if params.AdminPID == "" {
		params.AdminPID = callerFromContext(r)
	}
	if params.AdminPID == "" {
		http.Error(w, "Caller identity is required", http.StatusUnauthorized)
		return
	}

	l, err := s.Store.CreateLeague(params)
	if err != nil {
		http.Error(w, "Failed to create league", http.StatusInternalServerError)
		log.Error("Failed to create league", "error", err)
		return
	}
	respondJSON(w, http.StatusCreated, l)
}

func (s *Server) listLeagues(w http.ResponseWriter, r *http.Request) {
	leagues, err := s.Store.ListLeagues()
	if err != nil {
		http.Error(w, "Failed to get leagues", http.StatusInternalServerError)
		log.Error("Failed to get leagues from store", "error", err)
		return
	}
	if leagues == nil {
		leagues = []*league.League{}
	}
	respondJSON(w, http.StatusOK, leagues)
}

type joinLeagueRequest struct {
	LeagueID string `json:"league_id"`
	PlayerID string `json:"player_id"`
}

func (s *Server) JoinLeagueHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req joinLeagueRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid JSON", http.StatusBadRequest)
			return
		}
		if req.PlayerID == "" {
			req.PlayerID = callerFromContext(r)
		}
		if req.PlayerID == "" {
			http.Error(w, "Caller identity is required", http.StatusUnauthorized)
			return
		}
		if req.LeagueID == "" {
			http.Error(w, "league_id is required", http.StatusBadRequest)
			return
		}

		err := s.Store.JoinLeague(req.LeagueID, req.PlayerID)
		switch {
		case errors.Is(err, league.ErrLeagueNotFound):
			http.Error(w, "League not found", http.StatusNotFound)
		case errors.Is(err, league.ErrInviteRequired):
			http.Error(w, "An invite is required to join this league", http.StatusForbidden)
		case errors.Is(err, league.ErrAlreadyMember):
			http.Error(w, "Already a member of this league", http.StatusConflict)
		case err != nil:
			http.Error(w, "Failed to join league", http.StatusInternalServerError)
			log.Error("Failed to join league", "error", err, "leagueID", req.LeagueID, "playerID", req.PlayerID)
		default:
			w.WriteHeader(http.StatusOK)
			fmt.Fprintf(w, "Joined league %s", req.LeagueID)
		}
	}
}

// LeaderboardHandler serves a league's ledger sorted by rating. A POST
// publishes a notify-leaderboard event so the standings get announced
// asynchronously.
func (s *Server) LeaderboardHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		leagueID := r.URL.Query().Get("leagueID")
		if leagueID == "" {
			http.Error(w, "leagueID is required", http.StatusBadRequest)
			return
		}

		if _, err := s.Store.GetLeague(leagueID); err != nil {
			if errors.Is(err, league.ErrLeagueNotFound) {
				http.Error(w, "League not found", http.StatusNotFound)
				return
			}
			http.Error(w, "Failed to get league", http.StatusInternalServerError)
			log.Error("Failed to get league", "error", err, "leagueID", leagueID)
			return
		}

		if r.Method == http.MethodPost {
			if err := s.pubsub.SendMessage(pubsub.EventNotifyLeaderboard, pubsub.NotifyLeaderboardEvent{
				LeagueID: leagueID,
			}); err != nil {
				http.Error(w, "Failed to publish leaderboard event", http.StatusInternalServerError)
				log.Error("Failed to publish notify-leaderboard event", "error", err, "leagueID", leagueID)
				return
			}
			w.WriteHeader(http.StatusAccepted)
			fmt.Fprintf(w, "Leaderboard announcement queued for league %s", leagueID)
			return
		}

		entries, err := s.Store.Leaderboard(leagueID)
		if err != nil {
			http.Error(w, "Failed to get leaderboard", http.StatusInternalServerError)
			log.Error("Failed to get leaderboard from store", "error", err, "leagueID", leagueID)
			return
		}
		if entries == nil {
			entries = []league.LeaderboardEntry{}
		}
		respondJSON(w, http.StatusOK, entries)
	}
}

func (s *Server) PlayersHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			var player league.PlayerInfo
			if err := json.NewDecoder(r.Body).Decode(&player); err != nil {
				http.Error(w, "Invalid JSON", http.StatusBadRequest)
				return
			}
			if player.ID == "" {
				http.Error(w, "id is required", http.StatusBadRequest)
				return
			}
			if err := s.Store.UpsertPlayer(player); err != nil {
				http.Error(w, "Failed to upsert player", http.StatusInternalServerError)
				log.Error("Failed to upsert player", "error", err, "playerID", player.ID)
				return
			}
			respondJSON(w, http.StatusOK, player)
		case http.MethodGet:
			playerID := r.URL.Query().Get("playerID")
			if playerID == "" {
				http.Error(w, "playerID is required", http.StatusBadRequest)
				return
			}
			player, err := s.Store.GetPlayer(playerID)
			if err != nil {
				http.Error(w, "Player not found", http.StatusNotFound)
				return
			}
			respondJSON(w, http.StatusOK, player)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

// respondJSON is a helper to write a JSON response with the given status.
func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("Failed to encode response to JSON", "error", err)
	}
}
