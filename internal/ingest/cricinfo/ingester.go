package cricinfo

import (
	"context"
	"strings"
	"time"

	"github.com/fortuna/scorebook/internal/store"
	log "github.com/sirupsen/logrus"
)

// PageCache keeps rendered pages between runs
type PageCache interface {
	GetPage(ctx context.Context, url string) (string, bool, error)
	SetPage(ctx context.Context, url, html string, ttl time.Duration) error
}

// Ingester fetches pages and runs the matching extractor over them
type Ingester struct {
	fetcher Fetcher
	cache   PageCache
	ttl     time.Duration
	logger  log.FieldLogger
}

// IngesterOption customises an Ingester
type IngesterOption func(*Ingester)

// WithPageCache serves previously rendered pages from cache for ttl
func WithPageCache(cache PageCache, ttl time.Duration) IngesterOption {
	return func(i *Ingester) {
		i.cache = cache
		i.ttl = ttl
	}
}

// WithLogger replaces the default component logger
func WithLogger(logger log.FieldLogger) IngesterOption {
	return func(i *Ingester) {
		i.logger = logger
	}
}

// NewIngester creates an ingester over the given fetcher
func NewIngester(fetcher Fetcher, opts ...IngesterOption) *Ingester {
	i := &Ingester{
		fetcher: fetcher,
		logger:  log.WithField("component", "cricinfo-ingester"),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Scorecard fetches and extracts one full-scorecard page
func (i *Ingester) Scorecard(ctx context.Context, url string) (*store.Scorecard, error) {
	html, err := i.page(ctx, PageRequest{URL: url, ReadySelector: ScorecardReadySelector})
	if err != nil {
		return nil, err
	}

	card, err := ExtractScorecard(html, url)
	if err != nil {
		return nil, err
	}

	i.logger.WithFields(log.Fields{
		"match_id": card.MatchID,
		"batting":  len(card.Batting),
		"bowling":  len(card.Bowling),
		"fielding": len(card.Fielding),
	}).Info("extracted scorecard")

	return card, nil
}

// Links discovers the scorecard links of a results index page
func (i *Ingester) Links(ctx context.Context, indexURL string, trim int) ([]string, error) {
	html, err := i.page(ctx, PageRequest{URL: indexURL, ReadySelector: IndexReadySelector})
	if err != nil {
		return nil, err
	}

	links, err := DiscoverLinks(strings.NewReader(html), indexURL, trim)
	if err != nil {
		return nil, err
	}

	i.logger.WithField("count", len(links)).Info("discovered scorecard links")
	return links, nil
}

// Results extracts the results table of a tournament index page
func (i *Ingester) Results(ctx context.Context, resultsURL string) ([]store.MatchResult, error) {
	html, err := i.page(ctx, PageRequest{URL: resultsURL, ReadySelector: ResultsReadySelector})
	if err != nil {
		return nil, err
	}

	results, err := ParseResults(strings.NewReader(html), resultsURL)
	if err != nil {
		return nil, err
	}

	i.logger.WithField("count", len(results)).Info("extracted match results")
	return results, nil
}

// Leaderboard extracts one tournament leaderboard page
func (i *Ingester) Leaderboard(ctx context.Context, page LeaderboardPage) ([]store.LeaderboardRow, error) {
	html, err := i.page(ctx, PageRequest{
		URL:            page.URL,
		ReadySelector:  LeaderboardReadySelector,
		ScrollToBottom: true,
	})
	if err != nil {
		return nil, err
	}

	rows, err := ParseLeaderboard(strings.NewReader(html), page.Category)
	if err != nil {
		return nil, err
	}

	i.logger.WithFields(log.Fields{
		"category": page.Category,
		"count":    len(rows),
	}).Info("extracted leaderboard")
	return rows, nil
}

// page returns rendered markup, from cache when possible. Only pages that
// reached their readiness marker are cached.
func (i *Ingester) page(ctx context.Context, req PageRequest) (string, error) {
	if i.cache != nil {
		html, ok, err := i.cache.GetPage(ctx, req.URL)
		if err != nil {
			i.logger.WithError(err).Warn("page cache lookup failed")
		} else if ok {
			i.logger.WithField("url", req.URL).Debug("using cached page")
			return html, nil
		}
	}

	page, err := i.fetcher.Fetch(ctx, req)
	if err != nil {
		return "", err
	}

	if i.cache != nil && page.Ready {
		if err := i.cache.SetPage(ctx, req.URL, page.HTML, i.ttl); err != nil {
			i.logger.WithError(err).Warn("page cache store failed")
		}
	}

	return page.HTML, nil
}
