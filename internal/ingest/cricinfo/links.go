package cricinfo

import (
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	// ScorecardPathMarker is the path fragment shared by every match scorecard link
	ScorecardPathMarker = "/full-scorecard"

	// IndexReadySelector appears once the results index has rendered its links
	IndexReadySelector = `a[href*="/full-scorecard"]`

	// DefaultTrailingNoise is the number of navigation/footer scorecard links
	// that follow the real results on an index page.
	DefaultTrailingNoise = 3
)

// DiscoverLinks returns the scorecard links of a results index page in page
// order, resolved against baseURL. When more than trim links are found the
// last trim are dropped.
func DiscoverLinks(r io.Reader, baseURL string, trim int) ([]string, error) {
	doc, err := ParseHTML(r, baseURL)
	if err != nil {
		return nil, err
	}

	base, _ := url.Parse(baseURL)

	links := []string{}
	doc.Find("a[href]").Each(func(i int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		href = strings.TrimSpace(href)
		if !strings.Contains(href, ScorecardPathMarker) {
			return
		}
		links = append(links, resolveLink(base, href))
	})

	if trim > 0 && len(links) > trim {
		links = links[:len(links)-trim]
	}

	return links, nil
}

// resolveLink makes href absolute when a usable base is known
func resolveLink(base *url.URL, href string) string {
	if base == nil || base.Scheme == "" {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
