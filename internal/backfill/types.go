package backfill

import (
	"database/sql"
	"time"

	"github.com/fortuna/scorebook/internal/store"
	"github.com/lib/pq"
)

// RunStatus represents the lifecycle state for a batch run.
type RunStatus string

const (
	RunStatusQueued    RunStatus = "queued"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// Run models the database representation of a batch run.
type Run struct {
	RunID           string
	URLs            pq.StringArray
	DryRun          bool
	Status          RunStatus
	StatusMessage   sql.NullString
	ProgressCurrent int
	ProgressTotal   int
	Scraped         int
	Skipped         int
	Empty           int
	Failed          int
	LastError       sql.NullString
	CreatedAt       time.Time
	UpdatedAt       time.Time
	StartedAt       sql.NullTime
	CompletedAt     sql.NullTime
}

// JobSpec describes the work to be performed by the runner.
type JobSpec struct {
	RunID      string
	URLs       []string
	DryRun     bool
	MaxRetries uint64
}

// Reporter receives lifecycle callbacks from the runner.
type Reporter interface {
	OnJobStart(spec JobSpec)
	OnMatchStart(url string, index int, total int)
	OnMatchSkipped(url string, matchID string)
	OnMatchScraped(url string, card *store.Scorecard)
	OnMatchEmpty(url string)
	OnMatchFailed(url string, err error)
	OnJobComplete(summary *Summary)
	OnJobError(err error)
}

// MultiReporter fans callbacks out to every reporter in order.
type MultiReporter []Reporter

func (m MultiReporter) OnJobStart(spec JobSpec) {
	for _, r := range m {
		r.OnJobStart(spec)
	}
}

func (m MultiReporter) OnMatchStart(url string, index int, total int) {
	for _, r := range m {
		r.OnMatchStart(url, index, total)
	}
}

func (m MultiReporter) OnMatchSkipped(url string, matchID string) {
	for _, r := range m {
		r.OnMatchSkipped(url, matchID)
	}
}

func (m MultiReporter) OnMatchScraped(url string, card *store.Scorecard) {
	for _, r := range m {
		r.OnMatchScraped(url, card)
	}
}

func (m MultiReporter) OnMatchEmpty(url string) {
	for _, r := range m {
		r.OnMatchEmpty(url)
	}
}

func (m MultiReporter) OnMatchFailed(url string, err error) {
	for _, r := range m {
		r.OnMatchFailed(url, err)
	}
}

func (m MultiReporter) OnJobComplete(summary *Summary) {
	for _, r := range m {
		r.OnJobComplete(summary)
	}
}

func (m MultiReporter) OnJobError(err error) {
	for _, r := range m {
		r.OnJobError(err)
	}
}

// Summary lists what happened to every URL of a run.
type Summary struct {
	RunID      string    `json:"run_id"`
	DryRun     bool      `json:"dry_run"`
	Total      int       `json:"total"`
	Scraped    []string  `json:"scraped"`
	Skipped    []string  `json:"skipped"`
	Empty      []string  `json:"empty"`
	Failed     []string  `json:"failed"`
	Unknown    []string  `json:"unknown"` // scraped without an id or title
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Processed counts URLs that reached a final outcome.
func (s *Summary) Processed() int {
	return len(s.Scraped) + len(s.Skipped) + len(s.Empty) + len(s.Failed)
}

// StatusSummary is returned to API callers.
type StatusSummary struct {
	ActiveRun *Run   `json:"active_run,omitempty"`
	History   []*Run `json:"recent_runs,omitempty"`
}
