package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/crucible-learn/crucible/internal/coach"
	"github.com/crucible-learn/crucible/internal/log"
)

// FeedbackProvider generates coach feedback. *coach.Coach satisfies it.
type FeedbackProvider interface {
	Feedback(ctx context.Context, req coach.Request) (string, error)
}

// CoachHandler handles the coach feedback endpoint.
type CoachHandler struct {
	coach  FeedbackProvider
	logger log.Logger
}

// NewCoachHandler creates a new coach handler.
func NewCoachHandler(c FeedbackProvider, logger log.Logger) *CoachHandler {
	return &CoachHandler{coach: c, logger: logger}
}

// RegisterRoutes registers coach routes on the given mux.
func (h *CoachHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/coach/feedback", h.feedback)
}

func (h *CoachHandler) feedback(w http.ResponseWriter, r *http.Request) {
	var req coach.Request
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.DesignText) == "" {
		writeError(w, http.StatusBadRequest, "invalid request", "design_text required")
		return
	}

	reply, err := h.coach.Feedback(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"feedback": reply})
}
