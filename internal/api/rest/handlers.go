package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/fortuna/scorebook/internal/store"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

// Handler contains dependencies for HTTP handlers
type Handler struct {
	reader store.Reader
}

// NewHandler creates a new handler
func NewHandler(reader store.Reader) *Handler {
	return &Handler{reader: reader}
}

// leaderboardAliases maps short query values onto leaderboard categories
var leaderboardAliases = map[string]store.LeaderboardCategory{
	"wicketkeepers": store.CategoryMostDismissalsWK,
	"wk":            store.CategoryMostDismissalsWK,
	"fielders":      store.CategoryMostCatches,
	"catches":       store.CategoryMostCatches,
}

// HealthCheck handles health check requests
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]string{
		"status":  "healthy",
		"service": "scorebook",
	}

	if err := h.reader.HealthCheck(r.Context()); err != nil {
		status = http.StatusServiceUnavailable
		body["status"] = "unhealthy"
		body["database"] = err.Error()
	}

	respondJSON(w, status, body)
}

// ListMatches returns scraped matches, newest first
func (h *Handler) ListMatches(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50, 500)
	offset := queryInt(r, "offset", 0, -1)

	matches, err := h.reader.ListMatches(r.Context(), limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch matches", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"matches": matches,
		"count":   len(matches),
	})
}

// GetMatch returns one match header by ESPNcricinfo id
func (h *Handler) GetMatch(w http.ResponseWriter, r *http.Request) {
	matchID := mux.Vars(r)["matchID"]

	match, err := h.reader.GetMatch(r.Context(), matchID)
	if err != nil {
		respondLookupError(w, "Match not found", err)
		return
	}

	respondJSON(w, http.StatusOK, match)
}

// GetBatting returns the batting records of a match
func (h *Handler) GetBatting(w http.ResponseWriter, r *http.Request) {
	matchID := mux.Vars(r)["matchID"]

	records, err := h.reader.BattingByMatch(r.Context(), matchID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch batting records", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"match_id": matchID,
		"batting":  records,
		"count":    len(records),
	})
}

// GetBowling returns the bowling records of a match
func (h *Handler) GetBowling(w http.ResponseWriter, r *http.Request) {
	matchID := mux.Vars(r)["matchID"]

	records, err := h.reader.BowlingByMatch(r.Context(), matchID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch bowling records", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"match_id": matchID,
		"bowling":  records,
		"count":    len(records),
	})
}

// GetFielding returns the fielding events of a match
func (h *Handler) GetFielding(w http.ResponseWriter, r *http.Request) {
	matchID := mux.Vars(r)["matchID"]

	events, err := h.reader.FieldingByMatch(r.Context(), matchID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch fielding events", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"match_id": matchID,
		"fielding": events,
		"count":    len(events),
	})
}

// GetFielderTotals returns per-fielder dismissal counts across stored matches
func (h *Handler) GetFielderTotals(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 25, 500)

	totals, err := h.reader.FielderTotals(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch fielder totals", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"fielders": totals,
		"count":    len(totals),
	})
}

// GetLeaderboards returns one leaderboard when ?category= is given, else both
func (h *Handler) GetLeaderboards(w http.ResponseWriter, r *http.Request) {
	categories := []store.LeaderboardCategory{store.CategoryMostDismissalsWK, store.CategoryMostCatches}

	if raw := strings.TrimSpace(r.URL.Query().Get("category")); raw != "" {
		category, ok := parseCategory(raw)
		if !ok {
			respondError(w, http.StatusBadRequest, "Unknown leaderboard category (use wicketkeepers or fielders)", nil)
			return
		}
		categories = []store.LeaderboardCategory{category}
	}

	boards := make(map[string][]store.LeaderboardRow, len(categories))
	for _, category := range categories {
		rows, err := h.reader.Leaderboard(r.Context(), category)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to fetch leaderboard", err)
			return
		}
		boards[string(category)] = rows
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"leaderboards": boards,
	})
}

func parseCategory(raw string) (store.LeaderboardCategory, bool) {
	if category, ok := leaderboardAliases[strings.ToLower(raw)]; ok {
		return category, true
	}
	switch store.LeaderboardCategory(raw) {
	case store.CategoryMostDismissalsWK, store.CategoryMostCatches:
		return store.LeaderboardCategory(raw), true
	}
	return "", false
}

// queryInt reads a non-negative integer query parameter; upper < 0 means unbounded
func queryInt(r *http.Request, name string, def, upper int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 || (upper >= 0 && v > upper) {
		return def
	}
	return v
}

// respondLookupError maps store.ErrNotFound to 404 and anything else to 500
func respondLookupError(w http.ResponseWriter, message string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, message, err)
		return
	}
	respondError(w, http.StatusInternalServerError, message, err)
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.WithError(err).Warn("failed to encode response")
	}
}

// respondError writes an error response
func respondError(w http.ResponseWriter, status int, message string, err error) {
	response := map[string]interface{}{
		"error":  message,
		"status": status,
	}

	if err != nil {
		response["details"] = err.Error()
	}

	respondJSON(w, status, response)
}
