// Package rating implements the pure rating math: logistic expected scores,
// team deltas against the opposing team average, and the spread-adjusted
// dynamic K-factor. It performs no I/O.
package rating

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrEmptyTeam is returned when a team has no players, which would make
	// the team average undefined.
	ErrEmptyTeam = errors.New("rating: team has no players")
	// ErrLengthMismatch is returned when ratings and deltas differ in length.
	ErrLengthMismatch = errors.New("rating: ratings and deltas length mismatch")
)

// ExpectedScore returns the logistic win probability of a player rated self
// against an opponent rated opponent. ExpectedScore(a, b) + ExpectedScore(b, a) == 1.
func ExpectedScore(self, opponent float64) float64 {
	return 1.0 / (1.0 + math.Pow(10, (opponent-self)/400.0))
}

// TeamDelta computes per-player rating deltas for a decided match. Team A is
// always the winning side. Each player's expected score is taken against the
// opposing team's average rating.
//
// Deltas are rounded half-to-even, so exact .5 products land on the nearest
// even integer. Tests pin this down; changing the rounding mode changes
// integer outputs near .5 boundaries.
func TeamDelta(teamA, teamB []int, kFactor float64) ([]int, []int, error) {
	if len(teamA) == 0 || len(teamB) == 0 {
		return nil, nil, ErrEmptyTeam
	}

	avgA := Average(teamA)
	avgB := Average(teamB)

	deltasA := make([]int, len(teamA))
	for i, r := range teamA {
		deltasA[i] = int(math.RoundToEven(kFactor * (1.0 - ExpectedScore(float64(r), avgB))))
	}
	deltasB := make([]int, len(teamB))
	for i, r := range teamB {
		deltasB[i] = int(math.RoundToEven(kFactor * (0.0 - ExpectedScore(float64(r), avgA))))
	}
	return deltasA, deltasB, nil
}

// ApplyDelta returns the element-wise sum of ratings and deltas.
func ApplyDelta(ratings, deltas []int) ([]int, error) {
	if len(ratings) != len(deltas) {
		return nil, fmt.Errorf("%w: %d ratings, %d deltas", ErrLengthMismatch, len(ratings), len(deltas))
	}
	out := make([]int, len(ratings))
	for i, r := range ratings {
		out[i] = r + deltas[i]
	}
	return out, nil
}

// Average returns the mean rating of a team. The caller must ensure the team
// is non-empty.
func Average(team []int) float64 {
	sum := 0
	for _, r := range team {
		sum += r
	}
	return float64(sum) / float64(len(team))
}

// DynamicKFactor scales the base K-factor down as team rating spread grows:
// lopsided teams produce noisier results, so each match should move ratings
// less. The result is clamped to [baseK/3, baseK].
//
// If the spread adjustment cannot be computed (empty team, non-finite
// arithmetic), the base K-factor is returned unchanged. A scoring anomaly must
// never block match processing, so availability wins over precision here.
func DynamicKFactor(teamA, teamB []int, baseK int) int {
	adj, err := spreadAdjustment(teamA, teamB)
	if err != nil {
		return baseK
	}

	k := int(math.Ceil(float64(baseK) * adj))
	if floor := baseK / 3; k < floor {
		k = floor
	}
	if k > baseK {
		k = baseK
	}
	return k
}

// spreadAdjustment computes 1.5 - sigmoid(highStd/100), where highStd is the
// larger of the two teams' population standard deviations. The adjustment
// decays from 1.0 toward 0.5 as spread grows.
func spreadAdjustment(teamA, teamB []int) (float64, error) {
	if len(teamA) == 0 || len(teamB) == 0 {
		return 0, ErrEmptyTeam
	}

	highStd := math.Max(stdDev(teamA), stdDev(teamB))
	adj := 1.5 - sigmoid(highStd/100.0)
	if math.IsNaN(adj) || math.IsInf(adj, 0) {
		return 0, fmt.Errorf("rating: non-finite spread adjustment for std %f", highStd)
	}
	return adj, nil
}

// stdDev returns the population standard deviation, so a single-player team
// has a spread of zero rather than an undefined one.
func stdDev(team []int) float64 {
	mean := Average(team)
	var sumSq float64
	for _, r := range team {
		d := float64(r) - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(team)))
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}
