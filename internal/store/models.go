package store

import "time"

// Sentinels substituted when a page does not expose its identity.
// Records carrying them should be reviewed by hand.
const (
	UnknownMatchID    = "Unknown"
	UnknownMatchTitle = "Unknown Match"
)

// MatchIdentity is attached to every record produced from one scorecard page
type MatchIdentity struct {
	MatchID    string `json:"match_id" db:"match_id"`
	MatchTitle string `json:"match_title" db:"match_title"`
}

// IsKnown reports whether both identity fields were extracted from the page.
func (m MatchIdentity) IsKnown() bool {
	return m.MatchID != UnknownMatchID && m.MatchTitle != UnknownMatchTitle
}

// InningsContext identifies one team's batting turn within a match
type InningsContext struct {
	Team    string `json:"team"`
	Innings int    `json:"innings"`
}

// BattingRecord is one batter's line in an innings.
// Figures are kept as printed on the page since cells may hold "-".
type BattingRecord struct {
	MatchIdentity
	Innings    int    `json:"innings" db:"innings"`
	Team       string `json:"team" db:"team"`
	Player     string `json:"player" db:"player"`
	Dismissal  string `json:"dismissal" db:"dismissal"`
	Runs       string `json:"runs" db:"runs"`
	BallsFaced string `json:"balls_faced" db:"balls_faced"`
	Fours      string `json:"fours" db:"fours"`
	Sixes      string `json:"sixes" db:"sixes"`
	StrikeRate string `json:"strike_rate" db:"strike_rate"`
}

// BowlingRecord is one bowler's figures in an innings. Team is the side
// named in the innings header, i.e. the batting side.
type BowlingRecord struct {
	MatchIdentity
	Innings      int    `json:"innings" db:"innings"`
	Team         string `json:"team" db:"team"`
	Player       string `json:"player" db:"player"`
	Overs        string `json:"overs" db:"overs"`
	Maidens      string `json:"maidens" db:"maidens"`
	RunsConceded string `json:"runs_conceded" db:"runs_conceded"`
	Wickets      string `json:"wickets" db:"wickets"`
	Economy      string `json:"economy" db:"economy"`
}

// FieldingMode is the way a fielder was credited with a dismissal
type FieldingMode string

const (
	FieldingCatch    FieldingMode = "Catch"
	FieldingStumping FieldingMode = "Stumping"
	FieldingRunOut   FieldingMode = "Run Out"
)

// FieldingEvent credits one fielder with one dismissal
type FieldingEvent struct {
	MatchIdentity
	Fielder         string       `json:"fielder" db:"fielder"`
	Mode            FieldingMode `json:"mode" db:"mode"`
	DismissedPlayer string       `json:"dismissed_player" db:"dismissed_player"`
}

// Scorecard is everything extracted from one match page
type Scorecard struct {
	MatchIdentity
	SourceURL string           `json:"source_url"`
	Batting   []BattingRecord  `json:"batting"`
	Bowling   []BowlingRecord  `json:"bowling"`
	Fielding  []FieldingEvent  `json:"fielding"`
	Innings   []InningsContext `json:"innings"`
}

// IsEmpty reports whether no records were extracted, which usually means
// the page was not rendered far enough.
func (s *Scorecard) IsEmpty() bool {
	return len(s.Batting) == 0 && len(s.Bowling) == 0 && len(s.Fielding) == 0
}

// LeaderboardCategory names a tournament-wide fielding leaderboard
type LeaderboardCategory string

const (
	CategoryMostDismissalsWK LeaderboardCategory = "Most Dismissals (Wicketkeepers)"
	CategoryMostCatches      LeaderboardCategory = "Most Catches (Fielders)"
)

// NoStumpings is the placeholder used where a leaderboard has no stumpings column
const NoStumpings = "-"

// LeaderboardRow is one player's line on a leaderboard page
type LeaderboardRow struct {
	Category  LeaderboardCategory `json:"category" db:"category"`
	Player    string              `json:"player" db:"player"`
	Span      string              `json:"span" db:"span"`
	Matches   string              `json:"matches" db:"matches"`
	Catches   string              `json:"catches" db:"catches"`
	Stumpings string              `json:"stumpings" db:"stumpings"`
}

// MatchResult is one row of the tournament results index
type MatchResult struct {
	MatchTitle    string `json:"match_title" db:"match_title"`
	MatchID       string `json:"match_id" db:"match_id"`
	Team1         string `json:"team_1" db:"team_1"`
	Team2         string `json:"team_2" db:"team_2"`
	Winner        string `json:"winner" db:"winner"`
	Margin        string `json:"margin" db:"margin"`
	Ground        string `json:"ground" db:"ground"`
	MatchDate     string `json:"match_date" db:"match_date"`
	ScorecardLink string `json:"scorecard_link" db:"scorecard_link"`
}

// Match is a persisted scorecard header, served by the read API
type Match struct {
	MatchIdentity
	SourceURL string    `json:"source_url" db:"source_url"`
	ScrapedAt time.Time `json:"scraped_at" db:"scraped_at"`
}

// FielderTotals aggregates fielding events per fielder
type FielderTotals struct {
	Fielder   string `json:"fielder" db:"fielder"`
	Catches   int    `json:"catches" db:"catches"`
	Stumpings int    `json:"stumpings" db:"stumpings"`
	RunOuts   int    `json:"run_outs" db:"run_outs"`
	Matches   int    `json:"matches" db:"matches"`
}
