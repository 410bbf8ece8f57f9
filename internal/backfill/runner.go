package backfill

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/fortuna/scorebook/internal/ingest/cricinfo"
	"github.com/fortuna/scorebook/internal/store"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// DefaultMaxRetries bounds fetch retries per match.
const DefaultMaxRetries = 3

// ScorecardSource fetches and extracts one scorecard page.
type ScorecardSource interface {
	Scorecard(ctx context.Context, url string) (*store.Scorecard, error)
}

// Runner scrapes scorecard URLs one at a time into a sink, skipping matches
// the sink already holds.
type Runner struct {
	source     ScorecardSource
	sink       store.Sink
	logger     log.FieldLogger
	newBackOff func() backoff.BackOff
}

// RunnerOption customises a Runner.
type RunnerOption func(*Runner)

// WithRunnerLogger replaces the default component logger.
func WithRunnerLogger(logger log.FieldLogger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithBackOff sets the retry schedule used between fetch attempts.
func WithBackOff(newBackOff func() backoff.BackOff) RunnerOption {
	return func(r *Runner) {
		r.newBackOff = newBackOff
	}
}

// NewRunner constructs a runner over a scorecard source and sink.
func NewRunner(source ScorecardSource, sink store.Sink, opts ...RunnerOption) *Runner {
	r := &Runner{
		source: source,
		sink:   sink,
		logger: log.WithField("component", "batch-runner"),
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 5 * time.Second
			b.MaxInterval = time.Minute
			b.MaxElapsedTime = 0
			return b
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes the job spec, reporting progress via the Reporter if provided.
// A page that cannot be fetched or parsed is recorded as failed and the run
// moves on; cancellation and sink failures end the run with an error.
func (r *Runner) Run(ctx context.Context, spec JobSpec, reporter Reporter) (*Summary, error) {
	if spec.RunID == "" {
		spec.RunID = uuid.NewString()
	}
	if reporter == nil {
		reporter = MultiReporter{}
	}

	summary := &Summary{
		RunID:     spec.RunID,
		DryRun:    spec.DryRun,
		Total:     len(spec.URLs),
		Scraped:   []string{},
		Skipped:   []string{},
		Empty:     []string{},
		Failed:    []string{},
		Unknown:   []string{},
		StartedAt: time.Now(),
	}

	logger := r.logger.WithField("run_id", spec.RunID)
	reporter.OnJobStart(spec)

	done, err := r.sink.ScrapedMatchIDs(ctx)
	if err != nil {
		err = fmt.Errorf("load scraped match ids: %w", err)
		reporter.OnJobError(err)
		return summary, err
	}
	logger.WithField("persisted", len(done)).Info("loaded previously scraped matches")

	for idx, url := range spec.URLs {
		if err := ctx.Err(); err != nil {
			reporter.OnJobError(err)
			return summary, err
		}

		reporter.OnMatchStart(url, idx, len(spec.URLs))

		matchID := cricinfo.MatchIDFromURL(url)
		if matchID != store.UnknownMatchID && done[matchID] {
			logger.WithField("match_id", matchID).Info("match already scraped, skipping")
			summary.Skipped = append(summary.Skipped, url)
			reporter.OnMatchSkipped(url, matchID)
			continue
		}

		card, err := r.scrape(ctx, url, spec.MaxRetries)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				reporter.OnJobError(ctxErr)
				return summary, ctxErr
			}
			logger.WithError(err).WithField("url", url).Error("failed to scrape match")
			summary.Failed = append(summary.Failed, url)
			reporter.OnMatchFailed(url, err)
			continue
		}

		// nothing is written so the next run tries again
		if card.IsEmpty() {
			logger.WithField("url", url).Warn("no records extracted, page may not have rendered")
			summary.Empty = append(summary.Empty, url)
			reporter.OnMatchEmpty(url)
			continue
		}

		if !card.IsKnown() {
			logger.WithFields(log.Fields{
				"url":         url,
				"match_id":    card.MatchID,
				"match_title": card.MatchTitle,
			}).Warn("match identity not found on page, review by hand")
			summary.Unknown = append(summary.Unknown, url)
		}

		if !spec.DryRun {
			if err := r.sink.WriteScorecard(ctx, card); err != nil {
				err = fmt.Errorf("write match %s: %w", card.MatchID, err)
				summary.Failed = append(summary.Failed, url)
				reporter.OnMatchFailed(url, err)
				reporter.OnJobError(err)
				return summary, err
			}
			if card.MatchID != store.UnknownMatchID {
				done[card.MatchID] = true
			}
		}

		summary.Scraped = append(summary.Scraped, url)
		reporter.OnMatchScraped(url, card)
	}

	summary.FinishedAt = time.Now()
	logger.WithFields(log.Fields{
		"scraped": len(summary.Scraped),
		"skipped": len(summary.Skipped),
		"empty":   len(summary.Empty),
		"failed":  len(summary.Failed),
		"dry_run": spec.DryRun,
	}).Info("batch complete")

	reporter.OnJobComplete(summary)
	return summary, nil
}

// scrape retries fetch failures with backoff; a parse failure is final.
func (r *Runner) scrape(ctx context.Context, url string, maxRetries uint64) (*store.Scorecard, error) {
	var card *store.Scorecard
	attempt := 0

	operation := func() error {
		attempt++
		c, err := r.source.Scorecard(ctx, url)
		if err == nil {
			card = c
			return nil
		}

		var fetchErr *cricinfo.FetchError
		if errors.As(err, &fetchErr) && ctx.Err() == nil {
			return err
		}
		return backoff.Permanent(err)
	}

	notify := func(err error, wait time.Duration) {
		r.logger.WithError(err).WithFields(log.Fields{
			"url":     url,
			"attempt": attempt,
			"wait":    wait,
		}).Warn("fetch failed, retrying")
	}

	b := backoff.WithContext(backoff.WithMaxRetries(r.newBackOff(), maxRetries), ctx)
	if err := backoff.RetryNotify(operation, b, notify); err != nil {
		return nil, err
	}
	return card, nil
}
