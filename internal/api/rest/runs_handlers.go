package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fortuna/scorebook/internal/backfill"
	"github.com/gorilla/mux"
)

// RunService is the part of *backfill.Service the REST layer drives.
type RunService interface {
	Enqueue(ctx context.Context, req backfill.Request) (*backfill.Run, error)
	GetStatus(ctx context.Context) (*backfill.StatusSummary, error)
	GetRun(ctx context.Context, runID string) (*backfill.Run, error)
}

// RunHandler proxies API calls to the batch run service.
type RunHandler struct {
	service RunService
}

// NewRunHandler wires the REST layer to the batch run service.
func NewRunHandler(service RunService) *RunHandler {
	return &RunHandler{service: service}
}

type apiRunRequest struct {
	URL    string   `json:"url"`
	URLs   []string `json:"urls"`
	DryRun bool     `json:"dry_run"`
}

// HandleRunRequest handles POST /api/v1/runs
func (h *RunHandler) HandleRunRequest(w http.ResponseWriter, r *http.Request) {
	var req apiRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	runReq := backfill.Request{DryRun: req.DryRun}
	runReq.URLs = append(runReq.URLs, req.URLs...)
	if req.URL != "" {
		runReq.URLs = append(runReq.URLs, req.URL)
	}

	run, err := h.service.Enqueue(r.Context(), runReq)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, backfill.ErrQueueFull) {
			status = http.StatusServiceUnavailable
		}
		respondError(w, status, "Failed to enqueue run", err)
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"run": runPayload(run),
	})
}

// HandleRunStatus handles GET /api/v1/runs/status
func (h *RunHandler) HandleRunStatus(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.GetStatus(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch status", err)
		return
	}

	respondJSON(w, http.StatusOK, buildStatusPayload(summary))
}

// HandleGetRun handles GET /api/v1/runs/{runID}
func (h *RunHandler) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.service.GetRun(r.Context(), mux.Vars(r)["runID"])
	if err != nil {
		respondLookupError(w, "Run not found", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"run": runPayload(run),
	})
}

func buildStatusPayload(summary *backfill.StatusSummary) map[string]interface{} {
	response := map[string]interface{}{
		"status":  "idle",
		"message": "No active runs",
	}

	if summary.ActiveRun != nil {
		response["status"] = summary.ActiveRun.Status
		if summary.ActiveRun.StatusMessage.Valid {
			response["message"] = summary.ActiveRun.StatusMessage.String
		}
		response["active_run"] = runPayload(summary.ActiveRun)
	}

	history := make([]map[string]interface{}, 0, len(summary.History))
	for _, run := range summary.History {
		history = append(history, runPayload(run))
	}

	response["history"] = history
	return response
}

func runPayload(run *backfill.Run) map[string]interface{} {
	if run == nil {
		return nil
	}

	payload := map[string]interface{}{
		"run_id":           run.RunID,
		"status":           run.Status,
		"dry_run":          run.DryRun,
		"url_count":        len(run.URLs),
		"progress_current": run.ProgressCurrent,
		"progress_total":   run.ProgressTotal,
		"scraped":          run.Scraped,
		"skipped":          run.Skipped,
		"empty":            run.Empty,
		"failed":           run.Failed,
		"created_at":       run.CreatedAt,
		"updated_at":       run.UpdatedAt,
	}

	if run.StatusMessage.Valid {
		payload["status_message"] = run.StatusMessage.String
	}
	if run.StartedAt.Valid {
		payload["started_at"] = run.StartedAt.Time
	}
	if run.CompletedAt.Valid {
		payload["completed_at"] = run.CompletedAt.Time
	}
	if run.LastError.Valid {
		payload["last_error"] = run.LastError.String
	}

	return payload
}
