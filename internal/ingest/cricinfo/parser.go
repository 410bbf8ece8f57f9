package cricinfo

import (
	"io"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/fortuna/scorebook/internal/store"
)

// Scorecard page layout. Each innings lives in a rounded panel holding a
// header plus the batting table and, last, the bowling table.
const (
	SectionSelector       = `div[class*="ds-rounded-lg"]`
	InningsHeaderSelector = "h2, span"
	InningsMarker         = "Innings"

	// ScorecardReadySelector appears once the scorecard has rendered
	ScorecardReadySelector = ".ds-text-title-s"

	minBattingCells = 8
	minBowlingCells = 8
)

var (
	matchIDPattern     = regexp.MustCompile(`(\d+)/full-scorecard`)
	targetPattern      = regexp.MustCompile(`\(T:\s*\d+\s*runs?\)`)
	ordinalPattern     = regexp.MustCompile(`\s*\b\d+(st|nd|rd|th)\b\s*`)
	inningsWordPattern = regexp.MustCompile(`(?i)\binnings\b`)
)

// ParseHTML converts raw HTML to a goquery Document for parsing
func ParseHTML(r io.Reader, source string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, &ParseError{Source: source, Err: err}
	}
	return doc, nil
}

// ExtractScorecard extracts batting, bowling and fielding records from the
// rendered markup of one full-scorecard page.
func ExtractScorecard(html, sourceURL string) (*store.Scorecard, error) {
	return ParseScorecard(strings.NewReader(html), sourceURL)
}

// ParseScorecard is ExtractScorecard over a reader. Sections it cannot
// locate produce no records; only unreadable markup is an error.
func ParseScorecard(r io.Reader, sourceURL string) (*store.Scorecard, error) {
	doc, err := ParseHTML(r, sourceURL)
	if err != nil {
		return nil, err
	}

	id := store.MatchIdentity{
		MatchID:    MatchIDFromURL(sourceURL),
		MatchTitle: matchTitle(doc),
	}

	card := &store.Scorecard{
		MatchIdentity: id,
		SourceURL:     sourceURL,
		Batting:       []store.BattingRecord{},
		Bowling:       []store.BowlingRecord{},
		Fielding:      []store.FieldingEvent{},
		Innings:       []store.InningsContext{},
	}

	inningsCount := make(map[string]int)

	for _, section := range inningsSections(doc) {
		team := NormalizeTeamName(section.header)
		inningsCount[team]++
		innings := store.InningsContext{Team: team, Innings: inningsCount[team]}
		card.Innings = append(card.Innings, innings)

		tables := section.sel.Find("table")
		if tables.Length() == 0 {
			continue
		}

		batting := parseBattingTable(tables.First(), id, innings)
		card.Batting = append(card.Batting, batting...)
		for _, rec := range batting {
			card.Fielding = append(card.Fielding, FieldingEvents(id, rec.Player, rec.Dismissal)...)
		}

		// A lone table is the batting card; never read it as bowling.
		if tables.Length() >= 2 {
			card.Bowling = append(card.Bowling, parseBowlingTable(tables.Last(), id, innings)...)
		}
	}

	return card, nil
}

// MatchIDFromURL returns the numeric id preceding /full-scorecard
func MatchIDFromURL(sourceURL string) string {
	if m := matchIDPattern.FindStringSubmatch(sourceURL); m != nil {
		return m[1]
	}
	return store.UnknownMatchID
}

func matchTitle(doc *goquery.Document) string {
	title := doc.Find("title").First()
	if title.Length() == 0 {
		return store.UnknownMatchTitle
	}

	text := title.Text()
	if idx := strings.Index(text, "|"); idx >= 0 {
		text = text[:idx]
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return store.UnknownMatchTitle
	}
	return text
}

// NormalizeTeamName reduces an innings header such as
// "India 2nd Innings (T: 150 runs)" to the team name.
func NormalizeTeamName(header string) string {
	name := targetPattern.ReplaceAllString(header, " ")
	name = ordinalPattern.ReplaceAllString(name, " ")
	name = inningsWordPattern.ReplaceAllString(name, " ")
	return strings.Join(strings.Fields(name), " ")
}

type inningsSection struct {
	sel    *goquery.Selection
	header string
}

// inningsSections returns the panels that carry an innings header, in page
// order. A panel wrapping other innings panels that hold tables is skipped,
// as is a table-less header box whose enclosing innings panel is itself a
// section, so an innings is never counted twice. A table-less panel that
// has not rendered yet still counts.
func inningsSections(doc *goquery.Document) []inningsSection {
	var sections []inningsSection

	doc.Find(SectionSelector).Each(func(i int, s *goquery.Selection) {
		header, ok := inningsHeader(s)
		if !ok || !isSection(s) {
			return
		}

		sections = append(sections, inningsSection{sel: s, header: header})
	})

	return sections
}

// isSection reports whether an innings-header panel is counted as an innings
func isSection(s *goquery.Selection) bool {
	if s.Find("table").Length() > 0 {
		return !anyInnings(s.Find(SectionSelector))
	}

	owner := nearestInningsPanel(s)
	return owner == nil || owner.Find("table").Length() == 0 || anyInnings(owner.Find(SectionSelector))
}

// nearestInningsPanel returns the closest enclosing panel with an innings
// header, or nil
func nearestInningsPanel(s *goquery.Selection) *goquery.Selection {
	var owner *goquery.Selection
	s.ParentsFiltered(SectionSelector).EachWithBreak(func(i int, p *goquery.Selection) bool {
		if _, ok := inningsHeader(p); ok {
			owner = p
			return false
		}
		return true
	})
	return owner
}

// anyInnings reports whether one of the panels carries an innings header
// and a table
func anyInnings(panels *goquery.Selection) bool {
	found := false
	panels.EachWithBreak(func(i int, p *goquery.Selection) bool {
		if _, ok := inningsHeader(p); !ok {
			return true
		}
		if p.Find("table").Length() == 0 {
			return true
		}
		found = true
		return false
	})
	return found
}

func inningsHeader(s *goquery.Selection) (string, bool) {
	header := s.Find(InningsHeaderSelector).FilterFunction(func(i int, h *goquery.Selection) bool {
		return strings.Contains(h.Text(), InningsMarker)
	}).First()

	if header.Length() == 0 {
		return "", false
	}
	return strings.TrimSpace(header.Text()), true
}

// rowCells returns the trimmed text of each td in every row of a table
func rowCells(table *goquery.Selection) [][]string {
	var rows [][]string
	table.Find("tr").Each(func(i int, row *goquery.Selection) {
		cells := row.ChildrenFiltered("td")
		if cells.Length() == 0 {
			return
		}
		texts := make([]string, 0, cells.Length())
		cells.Each(func(j int, cell *goquery.Selection) {
			texts = append(texts, strings.TrimSpace(cell.Text()))
		})
		rows = append(rows, texts)
	})
	return rows
}

func parseBattingTable(table *goquery.Selection, id store.MatchIdentity, innings store.InningsContext) []store.BattingRecord {
	var records []store.BattingRecord

	for _, cols := range rowCells(table) {
		if len(cols) < minBattingCells {
			continue
		}

		dismissal := cols[1]
		if dismissal == "" {
			dismissal = "not out"
		}

		// cols[4] is minutes batted, not exported
		records = append(records, store.BattingRecord{
			MatchIdentity: id,
			Innings:       innings.Innings,
			Team:          innings.Team,
			Player:        cols[0],
			Dismissal:     dismissal,
			Runs:          cols[2],
			BallsFaced:    cols[3],
			Fours:         cols[5],
			Sixes:         cols[6],
			StrikeRate:    cols[7],
		})
	}

	return records
}

func parseBowlingTable(table *goquery.Selection, id store.MatchIdentity, innings store.InningsContext) []store.BowlingRecord {
	var records []store.BowlingRecord

	for _, cols := range rowCells(table) {
		if len(cols) < minBowlingCells {
			continue
		}

		records = append(records, store.BowlingRecord{
			MatchIdentity: id,
			Innings:       innings.Innings,
			Team:          innings.Team,
			Player:        cols[0],
			Overs:         cols[1],
			Maidens:       cols[2],
			RunsConceded:  cols[3],
			Wickets:       cols[4],
			Economy:       cols[5],
		})
	}

	return records
}
