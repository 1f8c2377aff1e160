package processor

import (
	"github.com/atekkey/courtrank/internal/league"
)

// Store defines the database operations required by the processor.
type Store interface {
	GetMatch(matchID string) (*league.Match, error)
	RunInTx(fn func(tx league.Tx) error) error
}

// Notifier defines the notification operations required by the processor.
// Notification failures are logged, never fatal; the ledger commit has already
// happened by the time a notification goes out.
type Notifier interface {
	SendResultNotification(match *league.Match, winnerDeltas, loserDeltas map[string]int) error
	SendRollbackNotification(match *league.Match) error
}
