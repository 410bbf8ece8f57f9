package backfill

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/cenkalti/backoff/v4"
	"github.com/fortuna/scorebook/internal/ingest/cricinfo"
	"github.com/fortuna/scorebook/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scorecardURL(id string) string {
	return fmt.Sprintf("https://www.espncricinfo.com/series/ranji-trophy-2022-23-1345678/a-vs-b-%s/full-scorecard", id)
}

func cardFor(url string) *store.Scorecard {
	ident := store.MatchIdentity{MatchID: cricinfo.MatchIDFromURL(url), MatchTitle: "A vs B"}
	return &store.Scorecard{
		MatchIdentity: ident,
		SourceURL:     url,
		Batting:       []store.BattingRecord{{MatchIdentity: ident, Innings: 1, Team: "A", Player: "P1", Dismissal: "not out"}},
	}
}

// fakeSource returns scripted results per URL, consuming errs first.
type fakeSource struct {
	errs  map[string][]error
	cards map[string]*store.Scorecard
	calls map[string]int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		errs:  make(map[string][]error),
		cards: make(map[string]*store.Scorecard),
		calls: make(map[string]int),
	}
}

func (f *fakeSource) Scorecard(ctx context.Context, url string) (*store.Scorecard, error) {
	f.calls[url]++
	if errs := f.errs[url]; len(errs) > 0 {
		f.errs[url] = errs[1:]
		return nil, errs[0]
	}
	if card, ok := f.cards[url]; ok {
		return card, nil
	}
	return cardFor(url), nil
}

type fakeSink struct {
	ids      map[string]bool
	written  []*store.Scorecard
	writeErr error
}

func (s *fakeSink) ScrapedMatchIDs(ctx context.Context) (map[string]bool, error) {
	ids := make(map[string]bool)
	for id := range s.ids {
		ids[id] = true
	}
	return ids, nil
}

func (s *fakeSink) WriteScorecard(ctx context.Context, card *store.Scorecard) error {
	if s.writeErr != nil {
		return s.writeErr
	}
	s.written = append(s.written, card)
	return nil
}

func (s *fakeSink) WriteLeaderboard(ctx context.Context, rows []store.LeaderboardRow) error { return nil }
func (s *fakeSink) WriteResults(ctx context.Context, results []store.MatchResult) error    { return nil }
func (s *fakeSink) Close() error                                                            { return nil }

type recordingReporter struct {
	started   int
	skipped   []string
	scraped   []string
	empty     []string
	failed    []string
	completed *Summary
	errs      []error
}

func (r *recordingReporter) OnJobStart(spec JobSpec)                       { r.started++ }
func (r *recordingReporter) OnMatchStart(url string, index int, total int) {}
func (r *recordingReporter) OnMatchSkipped(url string, matchID string)     { r.skipped = append(r.skipped, matchID) }
func (r *recordingReporter) OnMatchScraped(url string, card *store.Scorecard) {
	r.scraped = append(r.scraped, card.MatchID)
}
func (r *recordingReporter) OnMatchEmpty(url string)             { r.empty = append(r.empty, url) }
func (r *recordingReporter) OnMatchFailed(url string, err error) { r.failed = append(r.failed, url) }
func (r *recordingReporter) OnJobComplete(summary *Summary)      { r.completed = summary }
func (r *recordingReporter) OnJobError(err error)                { r.errs = append(r.errs, err) }

func newTestRunner(source ScorecardSource, sink store.Sink) *Runner {
	return NewRunner(source, sink, WithBackOff(func() backoff.BackOff { return &backoff.ZeroBackOff{} }))
}

func TestRunner_SkipsPersistedMatches(t *testing.T) {
	source := newFakeSource()
	sink := &fakeSink{ids: map[string]bool{"12345": true}}
	reporter := &recordingReporter{}

	urls := []string{scorecardURL("12345"), scorecardURL("67890")}
	summary, err := newTestRunner(source, sink).Run(context.Background(), JobSpec{URLs: urls, MaxRetries: 2}, reporter)
	require.NoError(t, err)

	assert.Zero(t, source.calls[urls[0]], "a persisted match must not be fetched")
	assert.Equal(t, []string{urls[0]}, summary.Skipped)
	assert.Equal(t, []string{urls[1]}, summary.Scraped)
	require.Len(t, sink.written, 1)
	assert.Equal(t, "67890", sink.written[0].MatchID)

	assert.Equal(t, 1, reporter.started)
	assert.Equal(t, []string{"12345"}, reporter.skipped)
	assert.Equal(t, []string{"67890"}, reporter.scraped)
	assert.Same(t, summary, reporter.completed)
	assert.NotEmpty(t, summary.RunID)
}

func TestRunner_DuplicateURLScrapedOnce(t *testing.T) {
	source := newFakeSource()
	sink := &fakeSink{}

	url := scorecardURL("111")
	summary, err := newTestRunner(source, sink).Run(context.Background(), JobSpec{URLs: []string{url, url}}, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, source.calls[url])
	assert.Len(t, summary.Scraped, 1)
	assert.Len(t, summary.Skipped, 1)
}

func TestRunner_RetriesFetchErrors(t *testing.T) {
	source := newFakeSource()
	url := scorecardURL("222")
	source.errs[url] = []error{
		&cricinfo.FetchError{URL: url, Err: errors.New("net::ERR_CONNECTION_RESET")},
		&cricinfo.FetchError{URL: url, Err: errors.New("timeout")},
	}
	sink := &fakeSink{}

	summary, err := newTestRunner(source, sink).Run(context.Background(), JobSpec{URLs: []string{url}, MaxRetries: 3}, nil)
	require.NoError(t, err)

	assert.Equal(t, 3, source.calls[url])
	assert.Equal(t, []string{url}, summary.Scraped)
	assert.Len(t, sink.written, 1)
}

func TestRunner_GivesUpAfterMaxRetries(t *testing.T) {
	source := newFakeSource()
	url := scorecardURL("333")
	next := scorecardURL("444")
	for i := 0; i < 5; i++ {
		source.errs[url] = append(source.errs[url], &cricinfo.FetchError{URL: url, Err: errors.New("down")})
	}
	reporter := &recordingReporter{}

	summary, err := newTestRunner(source, &fakeSink{}).Run(context.Background(), JobSpec{URLs: []string{url, next}, MaxRetries: 2}, reporter)
	require.NoError(t, err)

	assert.Equal(t, 3, source.calls[url])
	assert.Equal(t, []string{url}, summary.Failed)
	assert.Equal(t, []string{next}, summary.Scraped, "one bad page must not abort the batch")
	assert.Equal(t, []string{url}, reporter.failed)
}

func TestRunner_ParseErrorNotRetried(t *testing.T) {
	source := newFakeSource()
	url := scorecardURL("555")
	source.errs[url] = []error{&cricinfo.ParseError{Source: url, Err: errors.New("bad markup")}}

	summary, err := newTestRunner(source, &fakeSink{}).Run(context.Background(), JobSpec{URLs: []string{url}, MaxRetries: 3}, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, source.calls[url])
	assert.Equal(t, []string{url}, summary.Failed)
}

func TestRunner_EmptyScorecardNotPersisted(t *testing.T) {
	source := newFakeSource()
	url := scorecardURL("666")
	source.cards[url] = &store.Scorecard{MatchIdentity: store.MatchIdentity{MatchID: "666", MatchTitle: "A vs B"}}
	sink := &fakeSink{}
	reporter := &recordingReporter{}

	summary, err := newTestRunner(source, sink).Run(context.Background(), JobSpec{URLs: []string{url}}, reporter)
	require.NoError(t, err)

	assert.Empty(t, sink.written)
	assert.Equal(t, []string{url}, summary.Empty)
	assert.Equal(t, []string{url}, reporter.empty)
}

func TestRunner_UnknownIdentityFlagged(t *testing.T) {
	source := newFakeSource()
	url := "https://www.espncricinfo.com/series/x/some-page"
	card := cardFor(url)
	card.MatchTitle = store.UnknownMatchTitle
	source.cards[url] = card
	sink := &fakeSink{}

	summary, err := newTestRunner(source, sink).Run(context.Background(), JobSpec{URLs: []string{url, url}}, nil)
	require.NoError(t, err)

	// unknown ids are never treated as already scraped
	assert.Equal(t, 2, source.calls[url])
	assert.Equal(t, []string{url, url}, summary.Unknown)
	assert.Len(t, sink.written, 2)
}

func TestRunner_DryRunNeverWrites(t *testing.T) {
	source := newFakeSource()
	sink := &fakeSink{}

	urls := []string{scorecardURL("1"), scorecardURL("2")}
	summary, err := newTestRunner(source, sink).Run(context.Background(), JobSpec{URLs: urls, DryRun: true}, nil)
	require.NoError(t, err)

	assert.Empty(t, sink.written)
	assert.Len(t, summary.Scraped, 2)
	assert.True(t, summary.DryRun)
}

func TestRunner_SinkFailureAbortsRun(t *testing.T) {
	source := newFakeSource()
	boom := errors.New("disk full")
	sink := &fakeSink{writeErr: boom}

	urls := []string{scorecardURL("1"), scorecardURL("2")}
	summary, err := newTestRunner(source, sink).Run(context.Background(), JobSpec{URLs: urls}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	assert.Equal(t, []string{urls[0]}, summary.Failed)
	assert.Zero(t, source.calls[urls[1]])
}

func TestRunner_CancelledContext(t *testing.T) {
	source := newFakeSource()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	reporter := &recordingReporter{}

	_, err := newTestRunner(source, &fakeSink{}).Run(ctx, JobSpec{URLs: []string{scorecardURL("1")}}, reporter)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, source.calls)
	assert.Nil(t, reporter.completed)
	assert.Len(t, reporter.errs, 1)
}
