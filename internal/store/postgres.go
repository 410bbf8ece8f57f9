package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PostgresSink stores scorecards in PostgreSQL and serves them back to the
// read API. Rewriting a page replaces everything previously stored for it.
type PostgresSink struct {
	db *Database
}

// NewPostgresSink creates a sink over an open database
func NewPostgresSink(db *Database) *PostgresSink {
	return &PostgresSink{db: db}
}

func (s *PostgresSink) ScrapedMatchIDs(ctx context.Context) (map[string]bool, error) {
	rows, err := s.db.DB().QueryContext(ctx, `SELECT DISTINCT match_id FROM matches`)
	if err != nil {
		return nil, fmt.Errorf("querying match ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning match id: %w", err)
		}
		ids[id] = true
	}
	return ids, rows.Err()
}

func (s *PostgresSink) WriteScorecard(ctx context.Context, card *Scorecard) error {
	if card.IsEmpty() {
		return nil
	}

	tx, err := s.db.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	// cascades to the record tables
	if _, err := tx.ExecContext(ctx, `DELETE FROM matches WHERE source_url = $1`, card.SourceURL); err != nil {
		return fmt.Errorf("clearing match %s: %w", card.MatchID, err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO matches (source_url, match_id, match_title, scraped_at)
		VALUES ($1, $2, $3, NOW())
	`, card.SourceURL, card.MatchID, card.MatchTitle); err != nil {
		return fmt.Errorf("inserting match %s: %w", card.MatchID, err)
	}

	for _, r := range card.Batting {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO batting_records (
				source_url, match_id, match_title, innings, team, player, dismissal,
				runs, balls_faced, fours, sixes, strike_rate
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		`, card.SourceURL, r.MatchID, r.MatchTitle, r.Innings, r.Team, r.Player, r.Dismissal,
			r.Runs, r.BallsFaced, r.Fours, r.Sixes, r.StrikeRate); err != nil {
			return fmt.Errorf("inserting batting record for %s: %w", r.Player, err)
		}
	}

	for _, r := range card.Bowling {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO bowling_records (
				source_url, match_id, match_title, innings, team, player,
				overs, maidens, runs_conceded, wickets, economy
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`, card.SourceURL, r.MatchID, r.MatchTitle, r.Innings, r.Team, r.Player,
			r.Overs, r.Maidens, r.RunsConceded, r.Wickets, r.Economy); err != nil {
			return fmt.Errorf("inserting bowling record for %s: %w", r.Player, err)
		}
	}

	for _, e := range card.Fielding {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO fielding_events (source_url, match_id, match_title, fielder, mode, dismissed_player)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, card.SourceURL, e.MatchID, e.MatchTitle, e.Fielder, string(e.Mode), e.DismissedPlayer); err != nil {
			return fmt.Errorf("inserting fielding event for %s: %w", e.Fielder, err)
		}
	}

	return tx.Commit()
}

// WriteLeaderboard replaces the stored rows of every category present in rows
func (s *PostgresSink) WriteLeaderboard(ctx context.Context, rows []LeaderboardRow) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.db.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	positions := leaderboardPositions(rows)
	cleared := make(map[LeaderboardCategory]bool)
	for i, r := range rows {
		if !cleared[r.Category] {
			if _, err := tx.ExecContext(ctx, `DELETE FROM leaderboard_rows WHERE category = $1`, string(r.Category)); err != nil {
				return fmt.Errorf("clearing leaderboard %s: %w", r.Category, err)
			}
			cleared[r.Category] = true
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO leaderboard_rows (category, position, player, span, matches, catches, stumpings)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, string(r.Category), positions[i], r.Player, r.Span, r.Matches, r.Catches, r.Stumpings); err != nil {
			return fmt.Errorf("inserting leaderboard row for %s: %w", r.Player, err)
		}
	}

	return tx.Commit()
}

// leaderboardPositions numbers each row within its own category, from 0
func leaderboardPositions(rows []LeaderboardRow) []int {
	next := make(map[LeaderboardCategory]int)
	positions := make([]int, len(rows))
	for i, r := range rows {
		positions[i] = next[r.Category]
		next[r.Category]++
	}
	return positions
}

func (s *PostgresSink) WriteResults(ctx context.Context, results []MatchResult) error {
	if len(results) == 0 {
		return nil
	}

	tx, err := s.db.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM match_results`); err != nil {
		return fmt.Errorf("clearing match results: %w", err)
	}

	for i, r := range results {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO match_results (
				position, match_title, match_id, team_1, team_2, winner,
				margin, ground, match_date, scorecard_link
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`, i, r.MatchTitle, r.MatchID, r.Team1, r.Team2, r.Winner,
			r.Margin, r.Ground, r.MatchDate, r.ScorecardLink); err != nil {
			return fmt.Errorf("inserting match result %s: %w", r.MatchID, err)
		}
	}

	return tx.Commit()
}

func (s *PostgresSink) Close() error {
	return s.db.Close()
}

func (s *PostgresSink) HealthCheck(ctx context.Context) error {
	return s.db.HealthCheck(ctx)
}

// ListMatches returns matches, most recently scraped first
func (s *PostgresSink) ListMatches(ctx context.Context, limit, offset int) ([]Match, error) {
	query := `
		SELECT match_id, match_title, source_url, scraped_at
		FROM matches
		ORDER BY scraped_at DESC, match_id
		LIMIT $1 OFFSET $2
	`

	rows, err := s.db.DB().QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("querying matches: %w", err)
	}
	defer rows.Close()

	matches := []Match{}
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.MatchID, &m.MatchTitle, &m.SourceURL, &m.ScrapedAt); err != nil {
			return nil, fmt.Errorf("scanning match: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// GetMatch finds the latest scrape of a match by its ESPNcricinfo id
func (s *PostgresSink) GetMatch(ctx context.Context, matchID string) (*Match, error) {
	query := `
		SELECT match_id, match_title, source_url, scraped_at
		FROM matches
		WHERE match_id = $1
		ORDER BY scraped_at DESC
		LIMIT 1
	`

	m := &Match{}
	err := s.db.DB().QueryRowContext(ctx, query, matchID).Scan(&m.MatchID, &m.MatchTitle, &m.SourceURL, &m.ScrapedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("match %s: %w", matchID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying match: %w", err)
	}
	return m, nil
}

func (s *PostgresSink) BattingByMatch(ctx context.Context, matchID string) ([]BattingRecord, error) {
	query := `
		SELECT match_id, match_title, innings, team, player, dismissal,
			runs, balls_faced, fours, sixes, strike_rate
		FROM batting_records
		WHERE match_id = $1
		ORDER BY id
	`

	rows, err := s.db.DB().QueryContext(ctx, query, matchID)
	if err != nil {
		return nil, fmt.Errorf("querying batting records: %w", err)
	}
	defer rows.Close()

	records := []BattingRecord{}
	for rows.Next() {
		var r BattingRecord
		if err := rows.Scan(&r.MatchID, &r.MatchTitle, &r.Innings, &r.Team, &r.Player, &r.Dismissal,
			&r.Runs, &r.BallsFaced, &r.Fours, &r.Sixes, &r.StrikeRate); err != nil {
			return nil, fmt.Errorf("scanning batting record: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *PostgresSink) BowlingByMatch(ctx context.Context, matchID string) ([]BowlingRecord, error) {
	query := `
		SELECT match_id, match_title, innings, team, player,
			overs, maidens, runs_conceded, wickets, economy
		FROM bowling_records
		WHERE match_id = $1
		ORDER BY id
	`

	rows, err := s.db.DB().QueryContext(ctx, query, matchID)
	if err != nil {
		return nil, fmt.Errorf("querying bowling records: %w", err)
	}
	defer rows.Close()

	records := []BowlingRecord{}
	for rows.Next() {
		var r BowlingRecord
		if err := rows.Scan(&r.MatchID, &r.MatchTitle, &r.Innings, &r.Team, &r.Player,
			&r.Overs, &r.Maidens, &r.RunsConceded, &r.Wickets, &r.Economy); err != nil {
			return nil, fmt.Errorf("scanning bowling record: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *PostgresSink) FieldingByMatch(ctx context.Context, matchID string) ([]FieldingEvent, error) {
	query := `
		SELECT match_id, match_title, fielder, mode, dismissed_player
		FROM fielding_events
		WHERE match_id = $1
		ORDER BY id
	`

	rows, err := s.db.DB().QueryContext(ctx, query, matchID)
	if err != nil {
		return nil, fmt.Errorf("querying fielding events: %w", err)
	}
	defer rows.Close()

	events := []FieldingEvent{}
	for rows.Next() {
		var e FieldingEvent
		var mode string
		if err := rows.Scan(&e.MatchID, &e.MatchTitle, &e.Fielder, &mode, &e.DismissedPlayer); err != nil {
			return nil, fmt.Errorf("scanning fielding event: %w", err)
		}
		e.Mode = FieldingMode(mode)
		events = append(events, e)
	}
	return events, rows.Err()
}

// FielderTotals aggregates fielding events across all stored matches,
// busiest fielders first
func (s *PostgresSink) FielderTotals(ctx context.Context, limit int) ([]FielderTotals, error) {
	query := `
		SELECT fielder,
			COUNT(*) FILTER (WHERE mode = 'Catch') AS catches,
			COUNT(*) FILTER (WHERE mode = 'Stumping') AS stumpings,
			COUNT(*) FILTER (WHERE mode = 'Run Out') AS run_outs,
			COUNT(DISTINCT match_id) AS matches
		FROM fielding_events
		GROUP BY fielder
		ORDER BY COUNT(*) DESC, fielder
		LIMIT $1
	`

	rows, err := s.db.DB().QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("querying fielder totals: %w", err)
	}
	defer rows.Close()

	totals := []FielderTotals{}
	for rows.Next() {
		var t FielderTotals
		if err := rows.Scan(&t.Fielder, &t.Catches, &t.Stumpings, &t.RunOuts, &t.Matches); err != nil {
			return nil, fmt.Errorf("scanning fielder totals: %w", err)
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

// Leaderboard returns the stored rows of one category in page order
func (s *PostgresSink) Leaderboard(ctx context.Context, category LeaderboardCategory) ([]LeaderboardRow, error) {
	query := `
		SELECT category, player, span, matches, catches, stumpings
		FROM leaderboard_rows
		WHERE category = $1
		ORDER BY position
	`

	rows, err := s.db.DB().QueryContext(ctx, query, string(category))
	if err != nil {
		return nil, fmt.Errorf("querying leaderboard: %w", err)
	}
	defer rows.Close()

	out := []LeaderboardRow{}
	for rows.Next() {
		var r LeaderboardRow
		var cat string
		if err := rows.Scan(&cat, &r.Player, &r.Span, &r.Matches, &r.Catches, &r.Stumpings); err != nil {
			return nil, fmt.Errorf("scanning leaderboard row: %w", err)
		}
		r.Category = LeaderboardCategory(cat)
		out = append(out, r)
	}
	return out, rows.Err()
}
