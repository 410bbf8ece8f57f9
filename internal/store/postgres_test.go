package store

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeaderboardPositions(t *testing.T) {
	rows := []LeaderboardRow{
		{Category: CategoryMostDismissalsWK, Player: "K1"},
		{Category: CategoryMostDismissalsWK, Player: "K2"},
		{Category: CategoryMostCatches, Player: "F1"},
		{Category: CategoryMostDismissalsWK, Player: "K3"},
		{Category: CategoryMostCatches, Player: "F2"},
	}

	assert.Equal(t, []int{0, 1, 0, 2, 1}, leaderboardPositions(rows))
	assert.Empty(t, leaderboardPositions(nil))
}

// newTestPostgresSink connects to SCOREBOOK_TEST_DSN, migrates and empties
// the scorecard tables. The test is skipped when the variable is unset.
func newTestPostgresSink(t *testing.T) *PostgresSink {
	t.Helper()

	dsn := os.Getenv("SCOREBOOK_TEST_DSN")
	if dsn == "" {
		t.Skip("SCOREBOOK_TEST_DSN not set")
	}

	ctx := context.Background()
	db, err := NewDatabase(ctx, dsn)
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations(ctx))

	_, err = db.DB().ExecContext(ctx, `
		TRUNCATE matches, batting_records, bowling_records, fielding_events,
			leaderboard_rows, match_results CASCADE
	`)
	require.NoError(t, err)

	sink := NewPostgresSink(db)
	t.Cleanup(func() { sink.Close() })
	return sink
}

func TestPostgresSink_Scorecards(t *testing.T) {
	sink := newTestPostgresSink(t)
	ctx := context.Background()

	ids, err := sink.ScrapedMatchIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	card := testScorecard("111", "A vs B")
	card.Fielding = append(card.Fielding, FieldingEvent{
		MatchIdentity: card.MatchIdentity, Fielder: "X", Mode: FieldingStumping, DismissedPlayer: "P3",
	})
	require.NoError(t, sink.WriteScorecard(ctx, card))
	require.NoError(t, sink.WriteScorecard(ctx, testScorecard("222", "C vs D")))

	// rewriting a page replaces its rows
	require.NoError(t, sink.WriteScorecard(ctx, card))

	ids, err = sink.ScrapedMatchIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"111": true, "222": true}, ids)

	match, err := sink.GetMatch(ctx, "111")
	require.NoError(t, err)
	assert.Equal(t, "A vs B", match.MatchTitle)
	assert.Equal(t, card.SourceURL, match.SourceURL)

	_, err = sink.GetMatch(ctx, "999")
	assert.ErrorIs(t, err, ErrNotFound)

	matches, err := sink.ListMatches(ctx, 10, 0)
	require.NoError(t, err)
	assert.Len(t, matches, 2)

	batting, err := sink.BattingByMatch(ctx, "111")
	require.NoError(t, err)
	assert.Equal(t, card.Batting, batting)

	bowling, err := sink.BowlingByMatch(ctx, "111")
	require.NoError(t, err)
	assert.Equal(t, card.Bowling, bowling)

	fielding, err := sink.FieldingByMatch(ctx, "111")
	require.NoError(t, err)
	assert.Equal(t, card.Fielding, fielding)

	totals, err := sink.FielderTotals(ctx, 5)
	require.NoError(t, err)
	require.Len(t, totals, 1)
	assert.Equal(t, FielderTotals{Fielder: "X", Catches: 2, Stumpings: 1, Matches: 2}, totals[0])

	require.NoError(t, sink.HealthCheck(ctx))
}

func TestPostgresSink_LeaderboardPositionsPerCategory(t *testing.T) {
	sink := newTestPostgresSink(t)
	ctx := context.Background()

	rows := []LeaderboardRow{
		{Category: CategoryMostDismissalsWK, Player: "K1", Span: "2023", Matches: "5", Catches: "9", Stumpings: "2"},
		{Category: CategoryMostCatches, Player: "F1", Span: "2023", Matches: "5", Catches: "7", Stumpings: NoStumpings},
		{Category: CategoryMostDismissalsWK, Player: "K2", Span: "2023", Matches: "4", Catches: "6", Stumpings: "1"},
		{Category: CategoryMostCatches, Player: "F2", Span: "2023", Matches: "5", Catches: "4", Stumpings: NoStumpings},
	}
	require.NoError(t, sink.WriteLeaderboard(ctx, rows))

	var positions []int
	dbRows, err := sink.db.DB().QueryContext(ctx,
		`SELECT position FROM leaderboard_rows WHERE category = $1 ORDER BY position`, string(CategoryMostCatches))
	require.NoError(t, err)
	defer dbRows.Close()
	for dbRows.Next() {
		var p int
		require.NoError(t, dbRows.Scan(&p))
		positions = append(positions, p)
	}
	require.NoError(t, dbRows.Err())
	assert.Equal(t, []int{0, 1}, positions)

	keepers, err := sink.Leaderboard(ctx, CategoryMostDismissalsWK)
	require.NoError(t, err)
	assert.Equal(t, []LeaderboardRow{rows[0], rows[2]}, keepers)

	// a write for one category leaves the other alone
	require.NoError(t, sink.WriteLeaderboard(ctx, []LeaderboardRow{rows[1]}))

	fielders, err := sink.Leaderboard(ctx, CategoryMostCatches)
	require.NoError(t, err)
	assert.Equal(t, []LeaderboardRow{rows[1]}, fielders)

	keepers, err = sink.Leaderboard(ctx, CategoryMostDismissalsWK)
	require.NoError(t, err)
	assert.Len(t, keepers, 2)
}

func TestPostgresSink_ResultsAreReplaced(t *testing.T) {
	sink := newTestPostgresSink(t)
	ctx := context.Background()

	first := []MatchResult{
		{MatchTitle: "1st Match", MatchID: "1", Team1: "A", Team2: "B", Winner: "A", Margin: "5 wickets"},
		{MatchTitle: "2nd Match", MatchID: "2", Team1: "C", Team2: "D", Winner: "D", Margin: "10 runs"},
	}
	require.NoError(t, sink.WriteResults(ctx, first))
	require.NoError(t, sink.WriteResults(ctx, first[1:]))

	var ids []string
	rows, err := sink.db.DB().QueryContext(ctx, `SELECT match_id FROM match_results ORDER BY position`)
	require.NoError(t, err)
	defer rows.Close()
	for rows.Next() {
		var id string
		require.NoError(t, rows.Scan(&id))
		ids = append(ids, id)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []string{"2"}, ids)
}
