package cricinfo

import (
	"strings"
	"testing"

	"github.com/fortuna/scorebook/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const resultsPage = `<html><body><table>
<thead><tr><th>Team 1</th><th>Team 2</th><th>Winner</th><th>Margin</th><th>Ground</th><th>Match Date</th><th>Scorecard</th></tr></thead>
<tbody>
<tr><td>Assam</td><td>Hyderabad</td><td>Hyderabad</td><td>8 wickets</td><td>Guwahati</td><td>Dec 13-16, 2022</td><td><a href="/series/ranji-trophy-2022-23-1345678/assam-vs-hyderabad-group-b-1345700/full-scorecard">First-class 1</a></td></tr>
<tr><td>Kerala</td><td>Jharkhand</td><td>drawn</td><td>-</td><td>Thumba</td><td>Jan 3-6, 2023</td><td>no link</td></tr>
<tr><td>Bye</td></tr>
<tr><td>Tamil Nadu</td><td>Delhi</td><td>Tamil Nadu</td><td>inns &amp; 10 runs</td><td>Chennai</td><td>Jan 10-13, 2023</td><td><a href="https://www.espncricinfo.com/series/ranji-trophy-2022-23-1345678/tamil-nadu-vs-delhi-group-b-1345711/full-scorecard">FC 2</a></td></tr>
</tbody></table></body></html>`

func TestParseResults(t *testing.T) {
	results, err := ParseResults(strings.NewReader(resultsPage), "https://www.espncricinfo.com/records/tournament/team-match-results/ranji-trophy-2022-23-14934")
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, store.MatchResult{
		MatchTitle:    "Assam Vs Hyderabad Group B",
		MatchID:       "1345700",
		Team1:         "Assam",
		Team2:         "Hyderabad",
		Winner:        "Hyderabad",
		Margin:        "8 wickets",
		Ground:        "Guwahati",
		MatchDate:     "Dec 13-16, 2022",
		ScorecardLink: "https://www.espncricinfo.com/series/ranji-trophy-2022-23-1345678/assam-vs-hyderabad-group-b-1345700/full-scorecard",
	}, results[0])

	assert.Equal(t, "1345711", results[1].MatchID)
	assert.Equal(t, "Tamil Nadu Vs Delhi Group B", results[1].MatchTitle)
	assert.Equal(t, "inns & 10 runs", results[1].Margin)
}

func TestParseResults_NoTable(t *testing.T) {
	results, err := ParseResults(strings.NewReader(`<html><body><p>nothing</p></body></html>`), "")
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.NotNil(t, results)
}

func TestMatchInfoFromURL(t *testing.T) {
	tests := []struct {
		link      string
		wantTitle string
		wantID    string
	}{
		{
			link:      "https://www.espncricinfo.com/series/x-1/mumbai-vs-saurashtra-elite-group-b-1345801/full-scorecard",
			wantTitle: "Mumbai Vs Saurashtra Elite Group B",
			wantID:    "1345801",
		},
		{
			link:      "/series/x/india-vs-australia-1st-test-1348652/full-scorecard/",
			wantTitle: "India Vs Australia 1st Test",
			wantID:    "1348652",
		},
		{
			link:      "https://www.espncricinfo.com/series/x-1/match-results",
			wantTitle: store.UnknownMatchID,
			wantID:    store.UnknownMatchID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.wantTitle, func(t *testing.T) {
			title, id := MatchInfoFromURL(tt.link)
			assert.Equal(t, tt.wantTitle, title)
			assert.Equal(t, tt.wantID, id)
		})
	}
}
