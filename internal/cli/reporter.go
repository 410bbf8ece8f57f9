package cli

import (
	"time"

	"github.com/fortuna/scorebook/internal/backfill"
	"github.com/fortuna/scorebook/internal/store"
	log "github.com/sirupsen/logrus"
)

// consoleReporter logs batch progress
type consoleReporter struct {
	logger log.FieldLogger
}

func newConsoleReporter(logger log.FieldLogger) *consoleReporter {
	if logger == nil {
		logger = log.WithField("component", "batch")
	}
	return &consoleReporter{logger: logger}
}

func (r *consoleReporter) OnJobStart(spec backfill.JobSpec) {
	r.logger = r.logger.WithField("run_id", spec.RunID)
	r.logger.WithFields(log.Fields{
		"urls":    len(spec.URLs),
		"dry_run": spec.DryRun,
	}).Info("batch started")
}

func (r *consoleReporter) OnMatchStart(url string, index int, total int) {
	r.logger.WithField("url", url).Infof("scraping match %d/%d", index+1, total)
}

func (r *consoleReporter) OnMatchSkipped(url string, matchID string) {
	r.logger.WithField("match_id", matchID).Info("already scraped, skipping")
}

func (r *consoleReporter) OnMatchScraped(url string, card *store.Scorecard) {
	entry := r.logger.WithFields(log.Fields{
		"match_id": card.MatchID,
		"batting":  len(card.Batting),
		"bowling":  len(card.Bowling),
		"fielding": len(card.Fielding),
	})
	if !card.IsKnown() {
		entry.Warn("scraped match with unknown identity, review by hand")
		return
	}
	entry.Info("scraped match")
}

func (r *consoleReporter) OnMatchEmpty(url string) {
	r.logger.WithField("url", url).Warn("no records extracted")
}

func (r *consoleReporter) OnMatchFailed(url string, err error) {
	r.logger.WithError(err).WithField("url", url).Error("match failed")
}

func (r *consoleReporter) OnJobComplete(summary *backfill.Summary) {
	r.logger.WithFields(log.Fields{
		"scraped":  len(summary.Scraped),
		"skipped":  len(summary.Skipped),
		"empty":    len(summary.Empty),
		"failed":   len(summary.Failed),
		"unknown":  len(summary.Unknown),
		"duration": summary.FinishedAt.Sub(summary.StartedAt).Round(time.Second).String(),
	}).Info("batch complete")

	for _, url := range summary.Failed {
		r.logger.WithField("url", url).Warn("failed, rerun to retry")
	}
}

func (r *consoleReporter) OnJobError(err error) {
	r.logger.WithError(err).Error("batch aborted")
}

var _ backfill.Reporter = (*consoleReporter)(nil)
