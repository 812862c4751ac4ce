package api

import (
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crucible-learn/crucible/internal/log"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	pool             *pgxpool.Pool
	retrievalEnabled bool
	logger           log.Logger
}

// NewHealthHandler creates a new health handler.
// pool is the database connection pool used for readiness checks;
// retrievalEnabled reports whether a provider credential is configured.
func NewHealthHandler(pool *pgxpool.Pool, retrievalEnabled bool, logger log.Logger) *HealthHandler {
	return &HealthHandler{pool: pool, retrievalEnabled: retrievalEnabled, logger: logger}
}

// RegisterRoutes registers health routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.liveness)
	mux.HandleFunc("GET /api/health", h.liveness)
	mux.HandleFunc("GET /ready", h.readiness)
}

// liveness reports that the process is alive and whether retrieval and
// generation run in degraded mode.
func (h *HealthHandler) liveness(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":            "ok",
		"retrieval_enabled": h.retrievalEnabled,
	})
}

// readiness is a readiness probe endpoint.
// Returns 200 OK if all dependencies are ready.
// Performs actual health check by pinging the database.
func (h *HealthHandler) readiness(w http.ResponseWriter, r *http.Request) {
	if h.pool == nil {
		http.Error(w, "database pool not configured", http.StatusServiceUnavailable)
		return
	}
	if err := h.pool.Ping(r.Context()); err != nil {
		h.logger.Error("readiness check failed", "error", err)
		http.Error(w, "database not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
