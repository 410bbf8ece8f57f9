package backfill

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/fortuna/scorebook/internal/store"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// ErrQueueFull is returned by Enqueue when too many runs are waiting.
var ErrQueueFull = errors.New("batch queue is full")

const defaultQueueSize = 16

// Request represents a batch invocation request.
type Request struct {
	URLs   []string
	DryRun bool
}

// RunStore persists run state. *Repository is the PostgreSQL implementation.
type RunStore interface {
	CreateRun(ctx context.Context, run *Run) (*Run, error)
	UpdateStatus(ctx context.Context, runID string, status RunStatus, message string, lastErr error) error
	UpdateProgress(ctx context.Context, runID string, current, total int, message string) error
	UpdateCounts(ctx context.Context, runID string, s *Summary) error
	AppendEvent(ctx context.Context, runID, eventType, url, message string) error
	ResetStuckRuns(ctx context.Context) error
	GetRun(ctx context.Context, runID string) (*Run, error)
	GetActiveRun(ctx context.Context) (*Run, error)
	ListRecentRuns(ctx context.Context, limit int) ([]*Run, error)
}

// Service queues batch runs submitted over the API and executes them one at
// a time on a single worker.
type Service struct {
	repo      RunStore
	runner    *Runner
	reporters []Reporter

	maxRetries   uint64
	historyLimit int
	queue        chan *Run

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger log.FieldLogger
}

// NewService constructs a Service. Extra reporters receive every run's
// callbacks alongside the run store. Call Start to launch the worker.
func NewService(repo RunStore, runner *Runner, maxRetries uint64, reporters ...Reporter) *Service {
	ctx, cancel := context.WithCancel(context.Background())

	return &Service{
		repo:         repo,
		runner:       runner,
		reporters:    reporters,
		maxRetries:   maxRetries,
		historyLimit: 10,
		queue:        make(chan *Run, defaultQueueSize),
		ctx:          ctx,
		cancel:       cancel,
		logger:       log.WithField("component", "batch-service"),
	}
}

// Start launches the background worker loop.
func (s *Service) Start() {
	if err := s.repo.ResetStuckRuns(s.ctx); err != nil {
		s.logger.WithError(err).Warn("failed to reset runs")
	}

	s.wg.Add(1)
	go s.worker()
}

// Shutdown stops the worker and waits for it to finish.
func (s *Service) Shutdown(ctx context.Context) error {
	s.cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.wg.Wait()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// Enqueue records a new run and hands it to the worker.
func (s *Service) Enqueue(ctx context.Context, req Request) (*Run, error) {
	urls := make([]string, 0, len(req.URLs))
	for _, u := range req.URLs {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("run requires at least one scorecard url")
	}

	run := &Run{
		RunID:         uuid.NewString(),
		URLs:          urls,
		DryRun:        req.DryRun,
		Status:        RunStatusQueued,
		StatusMessage: sql.NullString{String: "Queued", Valid: true},
		ProgressTotal: len(urls),
	}

	stored, err := s.repo.CreateRun(ctx, run)
	if err != nil {
		return nil, err
	}

	select {
	case s.queue <- stored:
	default:
		_ = s.repo.UpdateStatus(ctx, stored.RunID, RunStatusCancelled, "Queue full", ErrQueueFull)
		return nil, ErrQueueFull
	}

	_ = s.repo.AppendEvent(ctx, stored.RunID, "queued", "", "Run queued")
	return stored, nil
}

// GetStatus returns the currently running run plus recent history.
func (s *Service) GetStatus(ctx context.Context) (*StatusSummary, error) {
	active, err := s.repo.GetActiveRun(ctx)
	if err != nil {
		return nil, err
	}

	history, err := s.repo.ListRecentRuns(ctx, s.historyLimit)
	if err != nil {
		return nil, err
	}

	return &StatusSummary{
		ActiveRun: active,
		History:   history,
	}, nil
}

// GetRun returns one run by id.
func (s *Service) GetRun(ctx context.Context, runID string) (*Run, error) {
	return s.repo.GetRun(ctx, runID)
}

func (s *Service) worker() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case run := <-s.queue:
			s.executeRun(run)
		}
	}
}

func (s *Service) executeRun(run *Run) {
	logger := s.logger.WithField("run_id", run.RunID)

	if err := s.repo.UpdateStatus(s.ctx, run.RunID, RunStatusRunning, "Starting run...", nil); err != nil {
		logger.WithError(err).Warn("failed to mark run running")
	}

	spec := JobSpec{
		RunID:      run.RunID,
		URLs:       run.URLs,
		DryRun:     run.DryRun,
		MaxRetries: s.maxRetries,
	}

	reporter := MultiReporter{&runReporter{ctx: s.ctx, repo: s.repo, runID: run.RunID, total: len(run.URLs)}}
	reporter = append(reporter, s.reporters...)

	summary, err := s.runner.Run(s.ctx, spec, reporter)
	if summary != nil {
		if cerr := s.repo.UpdateCounts(context.Background(), run.RunID, summary); cerr != nil {
			logger.WithError(cerr).Warn("failed to store run counts")
		}
	}

	switch {
	case err == nil:
		_ = s.repo.UpdateStatus(s.ctx, run.RunID, RunStatusCompleted, "Run completed", nil)
	case errors.Is(err, context.Canceled):
		// s.ctx is gone; record the cancellation on a fresh context
		_ = s.repo.UpdateStatus(context.Background(), run.RunID, RunStatusCancelled, "Run cancelled", err)
	default:
		logger.WithError(err).Error("run failed")
		_ = s.repo.UpdateStatus(s.ctx, run.RunID, RunStatusFailed, "Run failed", err)
	}
}

// runReporter mirrors runner callbacks into the run store.
type runReporter struct {
	ctx   context.Context
	repo  RunStore
	runID string
	total int
}

func (r *runReporter) OnJobStart(spec JobSpec) {
	_ = r.repo.UpdateProgress(r.ctx, r.runID, 0, r.total, "Run starting")
}

func (r *runReporter) OnMatchStart(url string, index int, total int) {
	msg := fmt.Sprintf("Scraping match %d/%d", index+1, total)
	_ = r.repo.UpdateProgress(r.ctx, r.runID, index, total, msg)
}

func (r *runReporter) OnMatchSkipped(url string, matchID string) {
	_ = r.repo.AppendEvent(r.ctx, r.runID, "skipped", url, fmt.Sprintf("Match %s already scraped", matchID))
}

func (r *runReporter) OnMatchScraped(url string, card *store.Scorecard) {
	msg := fmt.Sprintf("Match %s: %d batting, %d bowling, %d fielding",
		card.MatchID, len(card.Batting), len(card.Bowling), len(card.Fielding))
	_ = r.repo.AppendEvent(r.ctx, r.runID, "scraped", url, msg)
}

func (r *runReporter) OnMatchEmpty(url string) {
	_ = r.repo.AppendEvent(r.ctx, r.runID, "empty", url, "No records extracted")
}

func (r *runReporter) OnMatchFailed(url string, err error) {
	_ = r.repo.AppendEvent(r.ctx, r.runID, "failed", url, err.Error())
}

func (r *runReporter) OnJobComplete(summary *Summary) {
	_ = r.repo.UpdateProgress(r.ctx, r.runID, summary.Processed(), r.total, "Run complete")
}

func (r *runReporter) OnJobError(err error) {
	_ = r.repo.AppendEvent(r.ctx, r.runID, "error", "", err.Error())
}
