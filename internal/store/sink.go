package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Reader lookups for an unknown match
var ErrNotFound = errors.New("not found")

// Sink persists extracted records. Writes of empty record sets leave the
// destination untouched.
type Sink interface {
	// ScrapedMatchIDs returns the match IDs already persisted, used to
	// resume an interrupted batch.
	ScrapedMatchIDs(ctx context.Context) (map[string]bool, error)
	WriteScorecard(ctx context.Context, card *Scorecard) error
	WriteLeaderboard(ctx context.Context, rows []LeaderboardRow) error
	WriteResults(ctx context.Context, results []MatchResult) error
	Close() error
}

// Reader serves persisted records to the read API
type Reader interface {
	ListMatches(ctx context.Context, limit, offset int) ([]Match, error)
	GetMatch(ctx context.Context, matchID string) (*Match, error)
	BattingByMatch(ctx context.Context, matchID string) ([]BattingRecord, error)
	BowlingByMatch(ctx context.Context, matchID string) ([]BowlingRecord, error)
	FieldingByMatch(ctx context.Context, matchID string) ([]FieldingEvent, error)
	FielderTotals(ctx context.Context, limit int) ([]FielderTotals, error)
	Leaderboard(ctx context.Context, category LeaderboardCategory) ([]LeaderboardRow, error)
	HealthCheck(ctx context.Context) error
}

var (
	_ Sink   = (*CSVSink)(nil)
	_ Sink   = (*PostgresSink)(nil)
	_ Sink   = (*MultiSink)(nil)
	_ Reader = (*PostgresSink)(nil)
)
