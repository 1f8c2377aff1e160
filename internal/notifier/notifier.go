package notifier

import (
	"github.com/atekkey/courtrank/internal/league"
)

// Notifier defines a high-level interface for sending notifications about business events.
// This decouples the rest of the application from the specific notification provider (e.g., Slack).
type Notifier interface {
	// For matches applied to a ledger
	SendResultNotification(match *league.Match, winnerDeltas, loserDeltas map[string]int) error
	// For matches reversed out of a ledger
	SendRollbackNotification(match *league.Match) error
	// For standings announcements
	SendLeaderboard(leagueName string, entries []league.LeaderboardEntry) error
}
