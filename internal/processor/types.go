package processor

import (
	"errors"

	"github.com/atekkey/courtrank/internal/metrics"
)

// Processor applies and rolls back match results against league ledgers.
type Processor struct {
	store    Store
	notifier Notifier
	metrics  metrics.Metrics
}

var (
	// ErrNotFound is returned when the referenced match or league does not exist.
	ErrNotFound = errors.New("match not found")
	// ErrUnauthenticated is returned when no caller identity is supplied.
	ErrUnauthenticated = errors.New("caller identity is required")
	// ErrPermissionDenied is returned when a rollback is requested by someone
	// who is not on the match's winning team.
	ErrPermissionDenied = errors.New("only a member of the winning team may roll back a match")
	// ErrFailedPrecondition is returned when the match is not in a state that
	// allows the requested transition.
	ErrFailedPrecondition = errors.New("match is not in a state that allows this operation")
)

// errAlreadySettled signals from inside a transaction that the match flags
// already reflect the requested transition. It never escapes this package;
// callers see a benign no-op result instead.
var errAlreadySettled = errors.New("match already settled")

// ApplyResult reports the outcome of a forward application. Applied is false
// when the match had already been processed and the ledger was left untouched.
type ApplyResult struct {
	Applied      bool           `json:"applied"`
	KFactor      int            `json:"k_factor,omitempty"`
	WinnerDeltas map[string]int `json:"winner_deltas,omitempty"`
	LoserDeltas  map[string]int `json:"loser_deltas,omitempty"`
}

// RollbackResult is the structured, user-facing outcome of a rollback request.
type RollbackResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
