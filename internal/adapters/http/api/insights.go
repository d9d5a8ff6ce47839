package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/campuspulse/engage/internal/adapters/repository"
	"github.com/campuspulse/engage/internal/app"
)

// TrendingDependencies defines the interface for the trending ranking.
type TrendingDependencies interface {
	TrendingTopics(ctx context.Context, courseKey string) ([]TrendingTopic, error)
}

// TrendingHandler handles trending topic requests.
type TrendingHandler struct {
	deps TrendingDependencies
}

// NewTrendingHandler creates a new trending handler.
func NewTrendingHandler(deps TrendingDependencies) *TrendingHandler {
	return &TrendingHandler{deps: deps}
}

// HandleGetTrending handles GET /trending/{course} requests.
func (h *TrendingHandler) HandleGetTrending(w http.ResponseWriter, r *http.Request) {
	course, ok := coursePathParam(w, r, "/trending/")
	if !ok {
		return
	}
	topics, err := h.deps.TrendingTopics(r.Context(), course)
	if err != nil {
		writeInsightError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, topics)
}

// FirstRespondersDependencies defines the interface for the first-responder
// ranking.
type FirstRespondersDependencies interface {
	FirstResponders(ctx context.Context, courseKey string) ([]FirstResponder, error)
}

// FirstRespondersHandler handles first responder requests.
type FirstRespondersHandler struct {
	deps FirstRespondersDependencies
}

// NewFirstRespondersHandler creates a new first responders handler.
func NewFirstRespondersHandler(deps FirstRespondersDependencies) *FirstRespondersHandler {
	return &FirstRespondersHandler{deps: deps}
}

// HandleGetFirstResponders handles GET /first-responders/{course} requests.
func (h *FirstRespondersHandler) HandleGetFirstResponders(w http.ResponseWriter, r *http.Request) {
	course, ok := coursePathParam(w, r, "/first-responders/")
	if !ok {
		return
	}
	responders, err := h.deps.FirstResponders(r.Context(), course)
	if err != nil {
		writeInsightError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, responders)
}

// coursePathParam extracts the single course segment after prefix,
// writing the error response itself when the path is unusable.
func coursePathParam(w http.ResponseWriter, r *http.Request, prefix string) (string, bool) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return "", false
	}
	course := strings.TrimPrefix(r.URL.Path, prefix)
	if course == "" || strings.Contains(course, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return "", false
	}
	return course, true
}

func writeInsightError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, app.ErrNoActivity):
		writeError(w, http.StatusNotFound, "no_activity", err)
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}
