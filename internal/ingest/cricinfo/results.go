package cricinfo

import (
	"io"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/fortuna/scorebook/internal/store"
)

// ResultsReadySelector appears once the results table has rendered
const ResultsReadySelector = "table tbody"

const minResultCells = 7

var matchSlugPattern = regexp.MustCompile(`/([^/]+)-(\d+)/full-scorecard/?$`)

// ParseResults extracts the tournament results table. Rows without a
// scorecard link in the seventh cell are skipped.
func ParseResults(r io.Reader, baseURL string) ([]store.MatchResult, error) {
	doc, err := ParseHTML(r, baseURL)
	if err != nil {
		return nil, err
	}

	base, _ := url.Parse(baseURL)

	results := []store.MatchResult{}
	doc.Find("table tbody tr").Each(func(i int, row *goquery.Selection) {
		cells := row.ChildrenFiltered("td")
		if cells.Length() < minResultCells {
			return
		}

		text := func(idx int) string {
			return strings.TrimSpace(cells.Eq(idx).Text())
		}

		href, ok := cells.Eq(6).Find("a[href]").First().Attr("href")
		if !ok {
			return
		}
		link := resolveLink(base, strings.TrimSpace(href))
		title, id := MatchInfoFromURL(link)

		results = append(results, store.MatchResult{
			MatchTitle:    title,
			MatchID:       id,
			Team1:         text(0),
			Team2:         text(1),
			Winner:        text(2),
			Margin:        text(3),
			Ground:        text(4),
			MatchDate:     text(5),
			ScorecardLink: link,
		})
	})

	return results, nil
}

// MatchInfoFromURL derives a readable title and the match id from a
// scorecard link such as ".../assam-vs-hyderabad-group-b-1345678/full-scorecard".
func MatchInfoFromURL(link string) (title, id string) {
	id = MatchIDFromURL(link)
	title = store.UnknownMatchID

	path := link
	if u, err := url.Parse(link); err == nil && u.Path != "" {
		path = u.Path
	}

	if m := matchSlugPattern.FindStringSubmatch(path); m != nil {
		title = titleCase(strings.ReplaceAll(m[1], "-", " "))
	}
	return title, id
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(w)
		words[i] = strings.ToUpper(string(r[:1])) + strings.ToLower(string(r[1:]))
	}
	return strings.Join(words, " ")
}
