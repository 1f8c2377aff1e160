package processor

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/charmbracelet/log"

	"github.com/atekkey/courtrank/internal/league"
	"github.com/atekkey/courtrank/internal/metrics"
	"github.com/atekkey/courtrank/internal/rating"
)

// New creates a new Processor.
func New(store Store, notifier Notifier, metrics metrics.Metrics) *Processor {
	return &Processor{
		store:    store,
		notifier: notifier,
		metrics:  metrics,
	}
}

// ApplyMatch applies a match result to its league's ledger exactly once.
//
// The initial processed check outside the transaction only avoids opening
// transactions for redelivered events; the re-check inside the transaction is
// the authoritative idempotency guard.
func (p *Processor) ApplyMatch(matchID string) (*ApplyResult, error) {
	start := time.Now()

	match, err := p.store.GetMatch(matchID)
	if err != nil {
		if errors.Is(err, league.ErrMatchNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if match.Processed {
		log.Info("Match already processed, skipping", "matchID", matchID)
		return &ApplyResult{Applied: false}, nil
	}

	result := &ApplyResult{
		WinnerDeltas: make(map[string]int),
		LoserDeltas:  make(map[string]int),
	}
	err = p.store.RunInTx(func(tx league.Tx) error {
		m, err := tx.GetMatch(matchID)
		if err != nil {
			return err
		}
		if m.Processed {
			return errAlreadySettled
		}

		l, err := tx.GetLeague(m.LeagueID)
		if err != nil {
			return err
		}

		o, err := computeOutcome(m, l.KFactor)
		if err != nil {
			return err
		}
		result.KFactor = o.kFactor

		for i, pid := range o.winIDs {
			entry, ok := l.Ledger[pid]
			if !ok {
				log.Warn("Winner missing from league ledger, skipping", "matchID", m.ID, "leagueID", m.LeagueID, "playerID", pid)
				continue
			}
			entry.Rating = o.winRatings[i] + o.winDeltas[i]
			entry.Wins++
			addOpponentAvg(entry, o.avgLose)
			if err := tx.PutLedgerEntry(m.LeagueID, pid, entry); err != nil {
				return err
			}
			result.WinnerDeltas[pid] = o.winDeltas[i]
		}
		for i, pid := range o.loseIDs {
			entry, ok := l.Ledger[pid]
			if !ok {
				log.Warn("Loser missing from league ledger, skipping", "matchID", m.ID, "leagueID", m.LeagueID, "playerID", pid)
				continue
			}
			entry.Rating = o.loseRatings[i] + o.loseDeltas[i]
			entry.Losses++
			addOpponentAvg(entry, o.avgWin)
			if err := tx.PutLedgerEntry(m.LeagueID, pid, entry); err != nil {
				return err
			}
			result.LoserDeltas[pid] = o.loseDeltas[i]
		}

		return tx.SetMatchFlags(m.ID, true, false)
	})
	if errors.Is(err, errAlreadySettled) {
		log.Info("Match was processed concurrently, skipping", "matchID", matchID)
		return &ApplyResult{Applied: false}, nil
	}
	if err != nil {
		p.metrics.IncApplyFailures()
		return nil, fmt.Errorf("failed to apply match %s: %w", matchID, err)
	}

	result.Applied = true
	p.metrics.IncMatchesApplied()
	p.metrics.ObserveApplyDuration(time.Since(start).Seconds())
	log.Info("Applied match", "matchID", matchID, "leagueID", match.LeagueID, "kFactor", result.KFactor)

	if p.notifier != nil {
		if err := p.notifier.SendResultNotification(match, result.WinnerDeltas, result.LoserDeltas); err != nil {
			log.Error("Failed to send result notification", "error", err, "matchID", matchID)
		}
	}
	return result, nil
}

// RollbackMatch reverses a previously applied match. Only a member of the
// winning team may request it. Rollback is an approximate inverse: win/loss
// counters floor at zero and the opponent rating sum is only subtracted when
// present, so a ledger touched by later matches may not return to its exact
// prior state.
func (p *Processor) RollbackMatch(matchID, callerID string) (*RollbackResult, error) {
	if callerID == "" {
		return nil, ErrUnauthenticated
	}

	match, err := p.store.GetMatch(matchID)
	if err != nil {
		if errors.Is(err, league.ErrMatchNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if _, ok := match.WinningTeam[callerID]; !ok {
		return nil, ErrPermissionDenied
	}
	if !match.Processed {
		return nil, fmt.Errorf("%w: match has not been processed", ErrFailedPrecondition)
	}

	err = p.store.RunInTx(func(tx league.Tx) error {
		m, err := tx.GetMatch(matchID)
		if err != nil {
			return err
		}
		if !m.Processed {
			return errAlreadySettled
		}

		l, err := tx.GetLeague(m.LeagueID)
		if err != nil {
			if errors.Is(err, league.ErrLeagueNotFound) {
				return ErrNotFound
			}
			return err
		}
		if len(l.Ledger) == 0 {
			return fmt.Errorf("%w: league %s has no ledger", ErrFailedPrecondition, m.LeagueID)
		}

		// Deltas are deterministic from the immutable match snapshot, so this
		// recomputes exactly what Apply committed.
		o, err := computeOutcome(m, l.KFactor)
		if err != nil {
			return err
		}

		for i, pid := range o.winIDs {
			entry, ok := l.Ledger[pid]
			if !ok {
				continue
			}
			entry.Rating -= o.winDeltas[i]
			if entry.Wins > 0 {
				entry.Wins--
			}
			subtractOpponentAvg(entry, o.avgLose)
			if err := tx.PutLedgerEntry(m.LeagueID, pid, entry); err != nil {
				return err
			}
		}
		for i, pid := range o.loseIDs {
			entry, ok := l.Ledger[pid]
			if !ok {
				continue
			}
			entry.Rating -= o.loseDeltas[i]
			if entry.Losses > 0 {
				entry.Losses--
			}
			subtractOpponentAvg(entry, o.avgWin)
			if err := tx.PutLedgerEntry(m.LeagueID, pid, entry); err != nil {
				return err
			}
		}

		return tx.SetMatchFlags(m.ID, false, true)
	})
	if errors.Is(err, errAlreadySettled) {
		log.Info("Match already rolled back", "matchID", matchID)
		return &RollbackResult{Success: true, Message: "Match already rolled back."}, nil
	}
	if err != nil {
		return nil, err
	}

	p.metrics.IncMatchesRolledBack()
	log.Info("Rolled back match", "matchID", matchID, "callerID", callerID)

	if p.notifier != nil {
		if err := p.notifier.SendRollbackNotification(match); err != nil {
			log.Error("Failed to send rollback notification", "error", err, "matchID", matchID)
		}
	}
	return &RollbackResult{Success: true, Message: "Match rolled back successfully."}, nil
}

// outcome holds everything derived from a match snapshot: team orderings,
// effective K-factor, per-player deltas and the opposing-team averages.
type outcome struct {
	winIDs, loseIDs         []string
	winRatings, loseRatings []int
	winDeltas, loseDeltas   []int
	avgWin, avgLose         float64
	kFactor                 int
}

func computeOutcome(m *league.Match, leagueK int) (*outcome, error) {
	baseK := leagueK
	if m.KFactorOverride != nil && *m.KFactorOverride > 0 {
		baseK = *m.KFactorOverride
	}

	winIDs, winRatings := teamPairs(m.WinningTeam)
	loseIDs, loseRatings := teamPairs(m.LosingTeam)

	k := rating.DynamicKFactor(winRatings, loseRatings, baseK)
	winDeltas, loseDeltas, err := rating.TeamDelta(winRatings, loseRatings, float64(k))
	if err != nil {
		return nil, fmt.Errorf("invalid match teams: %w", err)
	}

	return &outcome{
		winIDs:      winIDs,
		loseIDs:     loseIDs,
		winRatings:  winRatings,
		loseRatings: loseRatings,
		winDeltas:   winDeltas,
		loseDeltas:  loseDeltas,
		avgWin:      rating.Average(winRatings),
		avgLose:     rating.Average(loseRatings),
		kFactor:     k,
	}, nil
}

// teamPairs flattens a team snapshot into parallel id/rating slices in sorted
// player-id order.
func teamPairs(team map[string]league.TeamSnapshot) ([]string, []int) {
	ids := make([]string, 0, len(team))
	for pid := range team {
		ids = append(ids, pid)
	}
	sort.Strings(ids)

	ratings := make([]int, len(ids))
	for i, pid := range ids {
		ratings[i] = team[pid].Rating
	}
	return ids, ratings
}

func addOpponentAvg(entry *league.PlayerRatingEntry, avg float64) {
	if entry.OpponentRatingSum == nil {
		v := avg
		entry.OpponentRatingSum = &v
		return
	}
	*entry.OpponentRatingSum += avg
}

func subtractOpponentAvg(entry *league.PlayerRatingEntry, avg float64) {
	if entry.OpponentRatingSum != nil {
		*entry.OpponentRatingSum -= avg
	}
}
