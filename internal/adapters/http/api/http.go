// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/campuspulse/engage/internal/adapters/repository"
	"github.com/campuspulse/engage/internal/app"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	Bucket(ctx context.Context, term, courseKey string) (repository.Bucket, error)
	Terms(ctx context.Context) []string
	CourseKeys(ctx context.Context, term string) []string
	IsLoaded() bool
	ResetStatus() (failed bool, reason string)
	LastRefresh() time.Time
	ResolveUsername(key string) string
	TrendingTopics(ctx context.Context, courseKey string) ([]TrendingTopic, error)
	FirstResponders(ctx context.Context, courseKey string) ([]FirstResponder, error)
	GetStats() map[string]interface{}
}

// Read shapes returned by the insight endpoints.
type (
	TrendingTopic  = app.TrendingTopic
	FirstResponder = app.FirstResponder
)

// Server wires HTTP routes for the dashboard API.
type Server struct {
	healthHandler          *HealthHandler
	statusHandler          *StatusHandler
	termsHandler           *TermsHandler
	scoresHandler          *ScoresHandler
	trendingHandler        *TrendingHandler
	firstRespondersHandler *FirstRespondersHandler
	statsHandler           *StatsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies) *Server {
	return &Server{
		healthHandler:          NewHealthHandler(),
		statusHandler:          NewStatusHandler(deps),
		termsHandler:           NewTermsHandler(deps),
		scoresHandler:          NewScoresHandler(deps),
		trendingHandler:        NewTrendingHandler(deps),
		firstRespondersHandler: NewFirstRespondersHandler(deps),
		statsHandler:           NewStatsHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/loading-status", MetricsMiddleware(s.statusHandler.HandleLoadingStatus, "loading_status"))
	mux.HandleFunc("/reset-status", MetricsMiddleware(s.statusHandler.HandleResetStatus, "reset_status"))
	mux.HandleFunc("/terms", MetricsMiddleware(s.termsHandler.HandleGetTerms, "terms"))
	mux.HandleFunc("/scores/", MetricsMiddleware(s.scoresHandler.HandleGetScores, "scores"))
	mux.HandleFunc("/trending/", MetricsMiddleware(s.trendingHandler.HandleGetTrending, "trending"))
	mux.HandleFunc("/first-responders/", MetricsMiddleware(s.firstRespondersHandler.HandleGetFirstResponders, "first_responders"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
