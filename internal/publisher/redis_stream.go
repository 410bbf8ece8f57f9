package publisher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/fortuna/scorebook/internal/backfill"
	"github.com/fortuna/scorebook/internal/store"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// DefaultStream carries batch progress events
const DefaultStream = "scorebook.batch.events"

// Event types published on the stream
const (
	EventRunStarted   = "run_started"
	EventMatchStarted = "match_started"
	EventMatchSkipped = "match_skipped"
	EventMatchScraped = "match_scraped"
	EventMatchEmpty   = "match_empty"
	EventMatchFailed  = "match_failed"
	EventRunCompleted = "run_completed"
	EventRunFailed    = "run_failed"
)

// Event is the JSON payload stored under the "data" field of a stream entry
type Event struct {
	Type     string            `json:"type"`
	RunID    string            `json:"run_id"`
	URL      string            `json:"url,omitempty"`
	MatchID  string            `json:"match_id,omitempty"`
	Index    int               `json:"index,omitempty"`
	Total    int               `json:"total,omitempty"`
	Batting  int               `json:"batting,omitempty"`
	Bowling  int               `json:"bowling,omitempty"`
	Fielding int               `json:"fielding,omitempty"`
	Error    string            `json:"error,omitempty"`
	Summary  *backfill.Summary `json:"summary,omitempty"`
}

// RedisPublisher publishes batch progress to a Redis stream. It implements
// backfill.Reporter; publish failures are logged and never stop a run.
type RedisPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
	logger log.FieldLogger

	timeout time.Duration
	runID   string
}

// NewRedisPublisher creates a publisher over an existing client. An empty
// stream selects DefaultStream.
func NewRedisPublisher(client *redis.Client, stream string) *RedisPublisher {
	if stream == "" {
		stream = DefaultStream
	}
	return &RedisPublisher{
		client: client,
		stream: stream,
		maxLen: 10000,
		logger: log.WithField("component", "redis-publisher"),

		timeout: 5 * time.Second,
	}
}

// Stream returns the stream name events are added to
func (rp *RedisPublisher) Stream() string {
	return rp.stream
}

// Publish adds one event to the stream
func (rp *RedisPublisher) Publish(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return rp.client.XAdd(ctx, &redis.XAddArgs{
		Stream: rp.stream,
		MaxLen: rp.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"type":      event.Type,
			"data":      string(data),
			"timestamp": time.Now().Unix(),
		},
	}).Err()
}

func (rp *RedisPublisher) publish(event Event) {
	event.RunID = rp.runID

	// detached from the run so cancellation is still reported
	ctx, cancel := context.WithTimeout(context.Background(), rp.timeout)
	defer cancel()

	if err := rp.Publish(ctx, event); err != nil {
		rp.logger.WithError(err).WithField("type", event.Type).Warn("failed to publish batch event")
	}
}

func (rp *RedisPublisher) OnJobStart(spec backfill.JobSpec) {
	rp.runID = spec.RunID
	rp.publish(Event{Type: EventRunStarted, Total: len(spec.URLs)})
}

func (rp *RedisPublisher) OnMatchStart(url string, index int, total int) {
	rp.publish(Event{Type: EventMatchStarted, URL: url, Index: index + 1, Total: total})
}

func (rp *RedisPublisher) OnMatchSkipped(url string, matchID string) {
	rp.publish(Event{Type: EventMatchSkipped, URL: url, MatchID: matchID})
}

func (rp *RedisPublisher) OnMatchScraped(url string, card *store.Scorecard) {
	rp.publish(Event{
		Type:     EventMatchScraped,
		URL:      url,
		MatchID:  card.MatchID,
		Batting:  len(card.Batting),
		Bowling:  len(card.Bowling),
		Fielding: len(card.Fielding),
	})
}

func (rp *RedisPublisher) OnMatchEmpty(url string) {
	rp.publish(Event{Type: EventMatchEmpty, URL: url})
}

func (rp *RedisPublisher) OnMatchFailed(url string, err error) {
	rp.publish(Event{Type: EventMatchFailed, URL: url, Error: err.Error()})
}

func (rp *RedisPublisher) OnJobComplete(summary *backfill.Summary) {
	rp.publish(Event{Type: EventRunCompleted, Total: summary.Total, Summary: summary})
}

func (rp *RedisPublisher) OnJobError(err error) {
	rp.publish(Event{Type: EventRunFailed, Error: err.Error()})
}

var _ backfill.Reporter = (*RedisPublisher)(nil)
