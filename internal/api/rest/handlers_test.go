package rest

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fortuna/scorebook/internal/backfill"
	"github.com/fortuna/scorebook/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	matches     []store.Match
	fielding    []store.FieldingEvent
	totals      []store.FielderTotals
	boards      map[store.LeaderboardCategory][]store.LeaderboardRow
	healthErr   error
	lastLimit   int
	lastOffset  int
	readErr     error
	boardsAsked []store.LeaderboardCategory
}

func (f *fakeReader) ListMatches(ctx context.Context, limit, offset int) ([]store.Match, error) {
	f.lastLimit, f.lastOffset = limit, offset
	return f.matches, f.readErr
}

func (f *fakeReader) GetMatch(ctx context.Context, matchID string) (*store.Match, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	for i := range f.matches {
		if f.matches[i].MatchID == matchID {
			return &f.matches[i], nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeReader) BattingByMatch(ctx context.Context, matchID string) ([]store.BattingRecord, error) {
	return nil, f.readErr
}

func (f *fakeReader) BowlingByMatch(ctx context.Context, matchID string) ([]store.BowlingRecord, error) {
	return nil, f.readErr
}

func (f *fakeReader) FieldingByMatch(ctx context.Context, matchID string) ([]store.FieldingEvent, error) {
	return f.fielding, f.readErr
}

func (f *fakeReader) FielderTotals(ctx context.Context, limit int) ([]store.FielderTotals, error) {
	f.lastLimit = limit
	return f.totals, f.readErr
}

func (f *fakeReader) Leaderboard(ctx context.Context, category store.LeaderboardCategory) ([]store.LeaderboardRow, error) {
	f.boardsAsked = append(f.boardsAsked, category)
	return f.boards[category], f.readErr
}

func (f *fakeReader) HealthCheck(ctx context.Context) error { return f.healthErr }

type fakeRunService struct {
	requests []backfill.Request
	err      error
	runs     map[string]*backfill.Run
	status   *backfill.StatusSummary
}

func (f *fakeRunService) Enqueue(ctx context.Context, req backfill.Request) (*backfill.Run, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &backfill.Run{RunID: "run-1", URLs: req.URLs, Status: backfill.RunStatusQueued, ProgressTotal: len(req.URLs)}, nil
}

func (f *fakeRunService) GetStatus(ctx context.Context) (*backfill.StatusSummary, error) {
	return f.status, f.err
}

func (f *fakeRunService) GetRun(ctx context.Context, runID string) (*backfill.Run, error) {
	if run, ok := f.runs[runID]; ok {
		return run, nil
	}
	return nil, store.ErrNotFound
}

func serve(t *testing.T, srv *Server, method, target, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	var payload map[string]interface{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	}
	return rec, payload
}

func sampleReader() *fakeReader {
	ident := store.MatchIdentity{MatchID: "1348652", MatchTitle: "1st Test, India v Australia"}
	return &fakeReader{
		matches: []store.Match{{MatchIdentity: ident, SourceURL: "https://example.test/1348652/full-scorecard"}},
		fielding: []store.FieldingEvent{
			{MatchIdentity: ident, Fielder: "Carey", Mode: store.FieldingCatch, DismissedPlayer: "Rohit Sharma"},
		},
		boards: map[store.LeaderboardCategory][]store.LeaderboardRow{
			store.CategoryMostCatches: {{Category: store.CategoryMostCatches, Player: "Smith", Catches: "9", Stumpings: store.NoStumpings}},
		},
	}
}

func TestHealthCheck(t *testing.T) {
	reader := sampleReader()
	srv := NewServer("0", reader, nil)

	rec, body := serve(t, srv, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])

	reader.healthErr = errors.New("connection refused")
	rec, body = serve(t, srv, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "unhealthy", body["status"])
}

func TestListMatches(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantLimit  int
		wantOffset int
	}{
		{"defaults", "", 50, 0},
		{"explicit", "?limit=10&offset=20", 10, 20},
		{"limit too large", "?limit=10000", 50, 0},
		{"garbage", "?limit=abc&offset=-3", 50, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := sampleReader()
			srv := NewServer("0", reader, nil)

			rec, body := serve(t, srv, http.MethodGet, "/api/v1/matches"+tt.query, "")
			require.Equal(t, http.StatusOK, rec.Code)
			assert.EqualValues(t, 1, body["count"])
			assert.Equal(t, tt.wantLimit, reader.lastLimit)
			assert.Equal(t, tt.wantOffset, reader.lastOffset)
		})
	}
}

func TestGetMatch(t *testing.T) {
	srv := NewServer("0", sampleReader(), nil)

	rec, body := serve(t, srv, http.MethodGet, "/api/v1/matches/1348652", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1st Test, India v Australia", body["match_title"])

	rec, body = serve(t, srv, http.MethodGet, "/api/v1/matches/999", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Match not found", body["error"])
}

func TestGetMatch_StoreFailure(t *testing.T) {
	reader := sampleReader()
	reader.readErr = errors.New("db down")
	srv := NewServer("0", reader, nil)

	rec, body := serve(t, srv, http.MethodGet, "/api/v1/matches/1348652", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "db down", body["details"])
}

func TestGetFielding(t *testing.T) {
	srv := NewServer("0", sampleReader(), nil)

	rec, body := serve(t, srv, http.MethodGet, "/api/v1/matches/1348652/fielding", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1348652", body["match_id"])
	assert.EqualValues(t, 1, body["count"])

	events := body["fielding"].([]interface{})
	first := events[0].(map[string]interface{})
	assert.Equal(t, "Carey", first["fielder"])
	assert.Equal(t, "Catch", first["mode"])
}

func TestGetFielderTotals(t *testing.T) {
	reader := sampleReader()
	srv := NewServer("0", reader, nil)

	rec, _ := serve(t, srv, http.MethodGet, "/api/v1/fielders?limit=5", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, reader.lastLimit)
}

func TestGetLeaderboards(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		wantCode  int
		wantAsked []store.LeaderboardCategory
	}{
		{"both by default", "", http.StatusOK, []store.LeaderboardCategory{store.CategoryMostDismissalsWK, store.CategoryMostCatches}},
		{"alias", "?category=fielders", http.StatusOK, []store.LeaderboardCategory{store.CategoryMostCatches}},
		{"short alias", "?category=WK", http.StatusOK, []store.LeaderboardCategory{store.CategoryMostDismissalsWK}},
		{"full name", "?category=Most+Catches+%28Fielders%29", http.StatusOK, []store.LeaderboardCategory{store.CategoryMostCatches}},
		{"unknown", "?category=bowlers", http.StatusBadRequest, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := sampleReader()
			srv := NewServer("0", reader, nil)

			rec, _ := serve(t, srv, http.MethodGet, "/api/v1/leaderboards"+tt.query, "")
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantAsked, reader.boardsAsked)
		})
	}
}

func TestRunRoutesAbsentWithoutService(t *testing.T) {
	srv := NewServer("0", sampleReader(), nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runs/status", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleRunRequest(t *testing.T) {
	runs := &fakeRunService{}
	srv := NewServer("0", sampleReader(), runs)

	rec, body := serve(t, srv, http.MethodPost, "/api/v1/runs",
		`{"urls":["https://example.test/1/full-scorecard"],"url":"https://example.test/2/full-scorecard","dry_run":true}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	require.Len(t, runs.requests, 1)
	assert.True(t, runs.requests[0].DryRun)
	assert.Equal(t, []string{"https://example.test/1/full-scorecard", "https://example.test/2/full-scorecard"}, runs.requests[0].URLs)

	run := body["run"].(map[string]interface{})
	assert.Equal(t, "run-1", run["run_id"])
	assert.Equal(t, "queued", run["status"])
	assert.EqualValues(t, 2, run["url_count"])
}

func TestHandleRunRequest_Errors(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		err       error
		wantCode  int
		wantError string
	}{
		{"bad json", `{`, nil, http.StatusBadRequest, "Invalid request body"},
		{"rejected", `{"urls":[]}`, errors.New("run requires at least one scorecard url"), http.StatusBadRequest, "Failed to enqueue run"},
		{"queue full", `{"url":"x"}`, backfill.ErrQueueFull, http.StatusServiceUnavailable, "Failed to enqueue run"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := NewServer("0", sampleReader(), &fakeRunService{err: tt.err})

			rec, body := serve(t, srv, http.MethodPost, "/api/v1/runs", tt.body)
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantError, body["error"])
		})
	}
}

func TestHandleRunStatus(t *testing.T) {
	active := &backfill.Run{
		RunID:         "run-2",
		Status:        backfill.RunStatusRunning,
		StatusMessage: sql.NullString{String: "Scraping match 3/10", Valid: true},
	}
	runs := &fakeRunService{status: &backfill.StatusSummary{
		ActiveRun: active,
		History:   []*backfill.Run{active, {RunID: "run-1", Status: backfill.RunStatusCompleted}},
	}}
	srv := NewServer("0", sampleReader(), runs)

	rec, body := serve(t, srv, http.MethodGet, "/api/v1/runs/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "running", body["status"])
	assert.Equal(t, "Scraping match 3/10", body["message"])
	assert.Len(t, body["history"], 2)

	runs.status = &backfill.StatusSummary{}
	_, body = serve(t, srv, http.MethodGet, "/api/v1/runs/status", "")
	assert.Equal(t, "idle", body["status"])
	assert.Empty(t, body["history"])
}

func TestHandleGetRun(t *testing.T) {
	runs := &fakeRunService{runs: map[string]*backfill.Run{
		"run-1": {RunID: "run-1", Status: backfill.RunStatusFailed, LastError: sql.NullString{String: "disk full", Valid: true}},
	}}
	srv := NewServer("0", sampleReader(), runs)

	rec, body := serve(t, srv, http.MethodGet, "/api/v1/runs/run-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	run := body["run"].(map[string]interface{})
	assert.Equal(t, "disk full", run["last_error"])

	rec, _ = serve(t, srv, http.MethodGet, "/api/v1/runs/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCORSHeaders(t *testing.T) {
	srv := NewServer("0", sampleReader(), nil)

	rec, _ := serve(t, srv, http.MethodGet, "/health", "")
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	preflight := httptest.NewRecorder()
	CORSMiddleware(http.NotFoundHandler()).ServeHTTP(preflight, httptest.NewRequest(http.MethodOptions, "/api/v1/runs", nil))
	assert.Equal(t, http.StatusNoContent, preflight.Code)
}

func TestRecoveryMiddleware(t *testing.T) {
	h := RecoveryMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
