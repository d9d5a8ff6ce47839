package api

import (
	"context"
	"net/http"
)

// TermsDependencies defines the interface for term catalog reads.
type TermsDependencies interface {
	Terms(ctx context.Context) []string
	CourseKeys(ctx context.Context, term string) []string
}

// TermsHandler handles term catalog requests.
type TermsHandler struct {
	deps TermsDependencies
}

// NewTermsHandler creates a new terms handler.
func NewTermsHandler(deps TermsDependencies) *TermsHandler {
	return &TermsHandler{deps: deps}
}

type termEntry struct {
	Term    string   `json:"term"`
	Courses []string `json:"courses"`
}

// HandleGetTerms handles GET /terms requests, listing held terms newest
// first with the course keys available under each.
func (h *TermsHandler) HandleGetTerms(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	terms := h.deps.Terms(r.Context())
	out := make([]termEntry, 0, len(terms))
	for _, t := range terms {
		out = append(out, termEntry{Term: t, Courses: h.deps.CourseKeys(r.Context(), t)})
	}
	writeJSON(w, http.StatusOK, out)
}
