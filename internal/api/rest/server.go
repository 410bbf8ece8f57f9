package rest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/fortuna/scorebook/internal/store"
	"github.com/gorilla/mux"
)

// Server represents the REST API server
type Server struct {
	port    string
	server  *http.Server
	handler *Handler
	router  *mux.Router
}

// NewServer creates a new REST API server. runs may be nil, in which case
// the batch endpoints are not registered.
func NewServer(port string, reader store.Reader, runs RunService) *Server {
	handler := NewHandler(reader)

	router := mux.NewRouter()

	// Apply middleware
	router.Use(RecoveryMiddleware)
	router.Use(LoggingMiddleware)
	router.Use(CORSMiddleware)

	// Health check
	router.HandleFunc("/health", handler.HealthCheck).Methods("GET")

	// API v1 routes
	api := router.PathPrefix("/api/v1").Subrouter()

	// Matches
	api.HandleFunc("/matches", handler.ListMatches).Methods("GET")
	api.HandleFunc("/matches/{matchID}", handler.GetMatch).Methods("GET")
	api.HandleFunc("/matches/{matchID}/batting", handler.GetBatting).Methods("GET")
	api.HandleFunc("/matches/{matchID}/bowling", handler.GetBowling).Methods("GET")
	api.HandleFunc("/matches/{matchID}/fielding", handler.GetFielding).Methods("GET")

	// Fielding aggregates
	api.HandleFunc("/fielders", handler.GetFielderTotals).Methods("GET")
	api.HandleFunc("/leaderboards", handler.GetLeaderboards).Methods("GET")

	// Batch runs
	if runs != nil {
		runHandler := NewRunHandler(runs)
		api.HandleFunc("/runs", runHandler.HandleRunRequest).Methods("POST")
		api.HandleFunc("/runs/status", runHandler.HandleRunStatus).Methods("GET")
		api.HandleFunc("/runs/{runID}", runHandler.HandleGetRun).Methods("GET")
	}

	return &Server{
		port:    port,
		handler: handler,
		router:  router,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%s", port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Handler returns the routed handler, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the REST API server
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
