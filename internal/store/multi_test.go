package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memorySink struct {
	ids      map[string]bool
	cards    []*Scorecard
	rows     []LeaderboardRow
	results  []MatchResult
	writeErr error
	closed   bool
}

func (m *memorySink) ScrapedMatchIDs(ctx context.Context) (map[string]bool, error) {
	return m.ids, nil
}

func (m *memorySink) WriteScorecard(ctx context.Context, card *Scorecard) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	m.cards = append(m.cards, card)
	return nil
}

func (m *memorySink) WriteLeaderboard(ctx context.Context, rows []LeaderboardRow) error {
	m.rows = rows
	return m.writeErr
}

func (m *memorySink) WriteResults(ctx context.Context, results []MatchResult) error {
	m.results = results
	return m.writeErr
}

func (m *memorySink) Close() error {
	m.closed = true
	return nil
}

func TestMultiSink_ScrapedMatchIDsUnion(t *testing.T) {
	a := &memorySink{ids: map[string]bool{"1": true, "2": true}}
	b := &memorySink{ids: map[string]bool{"3": true}}

	ids, err := NewMultiSink(a, b).ScrapedMatchIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"1": true, "2": true, "3": true}, ids)
}

func TestMultiSink_WritesEverySink(t *testing.T) {
	boom := errors.New("disk full")
	a := &memorySink{writeErr: boom}
	b := &memorySink{}
	multi := NewMultiSink(a, b)

	err := multi.WriteScorecard(context.Background(), testScorecard("1", "A vs B"))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Len(t, b.cards, 1, "a failing sink must not stop the others")

	require.NoError(t, multi.Close())
	assert.True(t, a.closed)
	assert.True(t, b.closed)
}

func TestMultiSink_Empty(t *testing.T) {
	multi := NewMultiSink()

	ids, err := multi.ScrapedMatchIDs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.NoError(t, multi.WriteResults(context.Background(), nil))
}
