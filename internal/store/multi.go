package store

import (
	"context"
	"errors"
)

// MultiSink fans writes out to several sinks. A match counts as persisted
// when any sink already holds it.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink combines sinks in the given order
func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

func (m *MultiSink) ScrapedMatchIDs(ctx context.Context) (map[string]bool, error) {
	ids := make(map[string]bool)
	for _, s := range m.sinks {
		got, err := s.ScrapedMatchIDs(ctx)
		if err != nil {
			return nil, err
		}
		for id := range got {
			ids[id] = true
		}
	}
	return ids, nil
}

func (m *MultiSink) WriteScorecard(ctx context.Context, card *Scorecard) error {
	var errs []error
	for _, s := range m.sinks {
		errs = append(errs, s.WriteScorecard(ctx, card))
	}
	return errors.Join(errs...)
}

func (m *MultiSink) WriteLeaderboard(ctx context.Context, rows []LeaderboardRow) error {
	var errs []error
	for _, s := range m.sinks {
		errs = append(errs, s.WriteLeaderboard(ctx, rows))
	}
	return errors.Join(errs...)
}

func (m *MultiSink) WriteResults(ctx context.Context, results []MatchResult) error {
	var errs []error
	for _, s := range m.sinks {
		errs = append(errs, s.WriteResults(ctx, results))
	}
	return errors.Join(errs...)
}

func (m *MultiSink) Close() error {
	var errs []error
	for _, s := range m.sinks {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}
