package api

import (
	"net/http"
	"time"
)

// StatusDependencies defines the interface for lifecycle status reads.
type StatusDependencies interface {
	IsLoaded() bool
	ResetStatus() (failed bool, reason string)
	LastRefresh() time.Time
}

// StatusHandler handles loading-status and reset-status requests.
type StatusHandler struct {
	deps StatusDependencies
}

// NewStatusHandler creates a new status handler.
func NewStatusHandler(deps StatusDependencies) *StatusHandler {
	return &StatusHandler{deps: deps}
}

type loadingStatusResponse struct {
	Loaded      bool   `json:"loaded"`
	LastRefresh string `json:"last_refresh,omitempty"`
}

type resetStatusResponse struct {
	Failed bool   `json:"failed"`
	Reason string `json:"reason,omitempty"`
}

// HandleLoadingStatus handles GET /loading-status requests. The dashboard
// polls this until the background full load finishes.
func (h *StatusHandler) HandleLoadingStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	resp := loadingStatusResponse{Loaded: h.deps.IsLoaded()}
	if last := h.deps.LastRefresh(); !last.IsZero() {
		resp.LastRefresh = last.Format("02-01-2006")
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleResetStatus handles GET /reset-status requests.
func (h *StatusHandler) HandleResetStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	failed, reason := h.deps.ResetStatus()
	writeJSON(w, http.StatusOK, resetStatusResponse{Failed: failed, Reason: reason})
}
