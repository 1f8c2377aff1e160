package pubsub

import "cloud.google.com/go/pubsub"

type client struct {
	client   *pubsub.Client
	teardown func()
}

// EventType represents the type of event/message sent via pubsub.
type EventType string

const (
	// EventMatchCreated triggers scoring of a newly recorded match. Delivery
	// is at-least-once; the processor's idempotency guard absorbs duplicates.
	EventMatchCreated EventType = "match-created"
	// EventNotifyLeaderboard requests a standings announcement for a league.
	EventNotifyLeaderboard EventType = "notify-leaderboard"
)

// MatchCreatedEvent is the payload published when a match document is created.
type MatchCreatedEvent struct {
	MatchID  string `msgpack:"match_id"`
	LeagueID string `msgpack:"league_id"`
}

// NotifyLeaderboardEvent is the payload published when a league's standings
// should be announced.
type NotifyLeaderboardEvent struct {
	LeagueID string `msgpack:"league_id"`
}
