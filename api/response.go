package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/crucible-learn/crucible/internal/curriculum"
	"github.com/crucible-learn/crucible/internal/llm"
)

// writeJSON writes a JSON response with the given status code.
// Note: If encoding fails after WriteHeader is called, there's no way to
// notify the client since the status code is already sent. The error is
// logged for debugging but doesn't affect the response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// ErrorResponse represents a JSON error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, err string, message string) {
	writeJSON(w, status, ErrorResponse{Error: err, Message: message})
}

// writeDomainError maps pipeline sentinels to HTTP statuses: missing
// retrieval context is a temporary operational condition (503), a missing
// credential or unusable model output is a caller-visible configuration
// problem (400). Everything else is a 500 with the detail kept server-side.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, curriculum.ErrNoContext):
		writeError(w, http.StatusServiceUnavailable, "no context", err.Error())
	case errors.Is(err, llm.ErrNotConfigured), errors.Is(err, llm.ErrUnusableOutput):
		writeError(w, http.StatusBadRequest, "generation unavailable", err.Error())
	case errors.Is(err, curriculum.ErrNoQuiz):
		writeError(w, http.StatusNotFound, "no quiz", "No quiz found. Publish curriculum first.")
	case errors.Is(err, curriculum.ErrNoConcept):
		writeError(w, http.StatusNotFound, "no concept", "No concept found. Publish curriculum first.")
	default:
		slog.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error", "")
	}
}

// decodeJSON decodes a JSON request body, rejecting unknown payload shapes
// with a 400. Returns false after writing the error response.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return false
	}
	return true
}
