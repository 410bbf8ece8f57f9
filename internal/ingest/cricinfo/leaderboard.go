package cricinfo

import (
	"fmt"
	"io"

	"github.com/fortuna/scorebook/internal/store"
)

// LeaderboardReadySelector appears once a records table has rendered
const LeaderboardReadySelector = "table"

// leaderboardLayout maps a leaderboard page's columns onto LeaderboardRow
type leaderboardLayout struct {
	minCells     int
	catchesCol   int
	stumpingsCol int // -1 when the page has no stumpings column
}

var leaderboardLayouts = map[store.LeaderboardCategory]leaderboardLayout{
	store.CategoryMostDismissalsWK: {minCells: 7, catchesCol: 5, stumpingsCol: 6},
	store.CategoryMostCatches:      {minCells: 5, catchesCol: 4, stumpingsCol: -1},
}

// ParseLeaderboard extracts the rows of the first table on a tournament
// records page. Player, span and matches are always the first three columns.
func ParseLeaderboard(r io.Reader, category store.LeaderboardCategory) ([]store.LeaderboardRow, error) {
	layout, ok := leaderboardLayouts[category]
	if !ok {
		return nil, fmt.Errorf("unknown leaderboard category %q", category)
	}

	doc, err := ParseHTML(r, string(category))
	if err != nil {
		return nil, err
	}

	rows := []store.LeaderboardRow{}
	table := doc.Find("table").First()
	for _, cols := range rowCells(table.Find("tbody")) {
		if len(cols) < layout.minCells {
			continue
		}

		stumpings := store.NoStumpings
		if layout.stumpingsCol >= 0 {
			stumpings = cols[layout.stumpingsCol]
		}

		rows = append(rows, store.LeaderboardRow{
			Category:  category,
			Player:    cols[0],
			Span:      cols[1],
			Matches:   cols[2],
			Catches:   cols[layout.catchesCol],
			Stumpings: stumpings,
		})
	}

	return rows, nil
}

// LeaderboardPage pairs a leaderboard category with its records URL
type LeaderboardPage struct {
	Category store.LeaderboardCategory
	URL      string
}

// LeaderboardPages returns the wicketkeeping and fielding records pages of a
// tournament, e.g. slug "ranji-trophy-2022-23-14934".
func LeaderboardPages(baseURL, tournament string) []LeaderboardPage {
	return []LeaderboardPage{
		{
			Category: store.CategoryMostDismissalsWK,
			URL:      fmt.Sprintf("%s/records/tournament/keeping-most-dismissals-career/%s", baseURL, tournament),
		},
		{
			Category: store.CategoryMostCatches,
			URL:      fmt.Sprintf("%s/records/tournament/fielding-most-catches-career/%s", baseURL, tournament),
		},
	}
}

// ResultsURL returns the team match results index of a tournament
func ResultsURL(baseURL, tournament string) string {
	return fmt.Sprintf("%s/records/tournament/team-match-results/%s", baseURL, tournament)
}
