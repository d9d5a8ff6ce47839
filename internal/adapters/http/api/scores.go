package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/campuspulse/engage/internal/adapters/repository"
	"github.com/campuspulse/engage/internal/domain/model"
	"github.com/campuspulse/engage/internal/domain/scoring"
	"github.com/campuspulse/engage/internal/domain/term"
)

// ScoresDependencies defines the interface for score table reads.
type ScoresDependencies interface {
	Bucket(ctx context.Context, term, courseKey string) (repository.Bucket, error)
	IsLoaded() bool
	ResolveUsername(key string) string
}

// ScoresHandler handles score table requests.
type ScoresHandler struct {
	deps ScoresDependencies
}

// NewScoresHandler creates a new scores handler.
func NewScoresHandler(deps ScoresDependencies) *ScoresHandler {
	return &ScoresHandler{deps: deps}
}

type scoresResponse struct {
	Term          string              `json:"term"`
	Course        string              `json:"course"`
	EventCount    int                 `json:"event_count"`
	RawMetrics    scoring.MetricTable `json:"raw_metrics"`
	Unnormalized  scoring.ScoreTable  `json:"unnormalized"`
	LogNormalized scoring.ScoreTable  `json:"log_normalized"`
}

// HandleGetScores handles GET /scores/{term}/{course} requests. For the
// overall bucket the row keys are user ids; they are resolved to usernames
// before the tables go out.
func (h *ScoresHandler) HandleGetScores(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/scores/")
	parts := strings.SplitN(path, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	termKey, courseKey := parts[0], parts[1]
	if _, err := term.Parse(termKey); err != nil {
		writeError(w, http.StatusBadRequest, "malformed_term", err)
		return
	}
	if !h.deps.IsLoaded() {
		writeError(w, http.StatusServiceUnavailable, "loading", ErrNotLoaded)
		return
	}
	bucket, err := h.deps.Bucket(r.Context(), termKey, courseKey)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	if courseKey == model.OverallKey {
		bucket.RawMetrics = resolveMetricKeys(bucket.RawMetrics, h.deps.ResolveUsername)
		bucket.Unnormalized = resolveScoreKeys(bucket.Unnormalized, h.deps.ResolveUsername)
		bucket.LogNormalized = resolveScoreKeys(bucket.LogNormalized, h.deps.ResolveUsername)
	}
	writeJSON(w, http.StatusOK, scoresResponse{
		Term:          termKey,
		Course:        courseKey,
		EventCount:    len(bucket.Events),
		RawMetrics:    bucket.RawMetrics,
		Unnormalized:  bucket.Unnormalized,
		LogNormalized: bucket.LogNormalized,
	})
}

func resolveMetricKeys(t scoring.MetricTable, resolve func(string) string) scoring.MetricTable {
	rows := make([]scoring.MetricRow, len(t.Rows))
	for i, row := range t.Rows {
		row.Key = resolve(row.Key)
		rows[i] = row
	}
	t.Rows = rows
	t.KeyColumn = "username"
	return t
}

func resolveScoreKeys(t scoring.ScoreTable, resolve func(string) string) scoring.ScoreTable {
	rows := make([]scoring.ScoreRow, len(t.Rows))
	for i, row := range t.Rows {
		row.Key = resolve(row.Key)
		rows[i] = row
	}
	t.Rows = rows
	t.KeyColumn = "username"
	return t
}
