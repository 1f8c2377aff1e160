package slack

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/slack-go/slack"

	"github.com/atekkey/courtrank/internal/league"
	"github.com/atekkey/courtrank/internal/metrics"
	"github.com/atekkey/courtrank/internal/notifier"
)

// slackClient is an interface that contains the methods from the slack.Client that we use.
// This allows for easy mocking in tests.
type slackClient interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

var _ notifier.Notifier = &Notifier{}

// Notifier handles sending notifications to Slack.
type Notifier struct {
	api       slackClient
	channelID string
	metrics   metrics.Metrics
}

// NewNotifier creates a new Notifier.
func NewNotifier(token, channelID string, metrics metrics.Metrics) *Notifier {
	api := slack.New(token)
	return &Notifier{
		api:       api,
		channelID: channelID,
		metrics:   metrics,
	}
}

// NewNotifierWithAPI creates a new Notifier with a specific slack client instance.
// Useful for tests that need to intercept API calls.
func NewNotifierWithAPI(api slackClient, channelID string, metrics metrics.Metrics) *Notifier {
	return &Notifier{
		api:       api,
		channelID: channelID,
		metrics:   metrics,
	}
}

func (s *Notifier) sendMessage(message slack.Message) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	channelID, timestamp, err := s.api.PostMessageContext(
		ctx,
		s.channelID,
		slack.MsgOptionBlocks(message.Blocks.BlockSet...),
		slack.MsgOptionAsUser(true),
	)
	if err != nil {
		s.metrics.IncNotifFailed()
		log.Error("Failed to send Slack message", "error", err, "channel", s.channelID)
		return fmt.Errorf("failed to post message: %w", err)
	}

	s.metrics.IncNotifSent()
	log.Info("Successfully sent Slack message", "channel", channelID, "timestamp", timestamp)
	return nil
}

// SendResultNotification announces a scored match with each player's rating change.
func (s *Notifier) SendResultNotification(match *league.Match, winnerDeltas, loserDeltas map[string]int) error {
	msg := s.formatResultNotification(match, winnerDeltas, loserDeltas)
	return s.sendMessage(msg)
}

// SendRollbackNotification announces that a match result has been reversed.
func (s *Notifier) SendRollbackNotification(match *league.Match) error {
	msg := s.formatRollbackNotification(match)
	return s.sendMessage(msg)
}

// SendLeaderboard posts the current standings of a league.
func (s *Notifier) SendLeaderboard(leagueName string, entries []league.LeaderboardEntry) error {
	msg := s.formatLeaderboard(leagueName, entries)
	return s.sendMessage(msg)
}

func (s *Notifier) formatResultNotification(match *league.Match, winnerDeltas, loserDeltas map[string]int) slack.Message {
	var sb strings.Builder
	sb.WriteString("*Winners*\n")
	for _, pid := range sortedIDs(match.WinningTeam) {
		if delta, ok := winnerDeltas[pid]; ok {
			fmt.Fprintf(&sb, "• %s  (%+d)\n", pid, delta)
		} else {
			fmt.Fprintf(&sb, "• %s  (not rated)\n", pid)
		}
	}
	sb.WriteString("*Losers*\n")
	for _, pid := range sortedIDs(match.LosingTeam) {
		if delta, ok := loserDeltas[pid]; ok {
			fmt.Fprintf(&sb, "• %s  (%+d)\n", pid, delta)
		} else {
			fmt.Fprintf(&sb, "• %s  (not rated)\n", pid)
		}
	}

	headerText := slack.NewTextBlockObject("plain_text", "🏆 Match Result", true, false)
	bodyText := slack.NewTextBlockObject("mrkdwn", sb.String(), false, false)

	return slack.NewBlockMessage(
		slack.NewHeaderBlock(headerText),
		slack.NewSectionBlock(bodyText, nil, nil),
	)
}

func (s *Notifier) formatRollbackNotification(match *league.Match) slack.Message {
	headerText := slack.NewTextBlockObject("plain_text", "↩️ Match Rolled Back", true, false)
	body := fmt.Sprintf(
		"The result of match `%s` has been reversed. Ratings for %s have been restored.",
		match.ID,
		strings.Join(append(sortedIDs(match.WinningTeam), sortedIDs(match.LosingTeam)...), ", "),
	)
	bodyText := slack.NewTextBlockObject("mrkdwn", body, false, false)

	return slack.NewBlockMessage(
		slack.NewHeaderBlock(headerText),
		slack.NewSectionBlock(bodyText, nil, nil),
	)
}

func (s *Notifier) formatLeaderboard(leagueName string, entries []league.LeaderboardEntry) slack.Message {
	var sb strings.Builder
	medals := []string{"🥇", "🥈", "🥉"}
	for i, entry := range entries {
		rank := fmt.Sprintf("%d.", i+1)
		if i < len(medals) {
			rank = medals[i]
		}
		fmt.Fprintf(&sb, "%s *%s* — %d  (%dW/%dL, %.0f%%)\n",
			rank, entry.PlayerID, entry.Rating, entry.Wins, entry.Losses, entry.WinPercentage)
	}
	if len(entries) == 0 {
		sb.WriteString("No rated players yet.")
	}

	headerText := slack.NewTextBlockObject("plain_text", fmt.Sprintf("📊 %s Standings", leagueName), true, false)
	bodyText := slack.NewTextBlockObject("mrkdwn", sb.String(), false, false)

	return slack.NewBlockMessage(
		slack.NewHeaderBlock(headerText),
		slack.NewSectionBlock(bodyText, nil, nil),
	)
}

func sortedIDs(team map[string]league.TeamSnapshot) []string {
	ids := make([]string, 0, len(team))
	for pid := range team {
		ids = append(ids, pid)
	}
	sort.Strings(ids)
	return ids
}
