// Package api exposes the curriculum pipeline over HTTP.
//
// Endpoints:
//
//	Admin (operator actions):
//	  POST /api/admin/ingest/pdf           upload a PDF into the retrieval index
//	  POST /api/admin/ingest/urls          fetch and index web pages
//	  GET  /api/admin/ingest/sources       audit trail of ingested documents
//	  POST /api/admin/retrieval/query      inspect what the index retrieves for a question
//	  POST /api/admin/curriculum/generate  synthesize drafts from retrieved context
//	  GET  /api/admin/curriculum/drafts    list staged drafts
//	  POST /api/admin/curriculum/publish   publish selected drafts transactionally
//
//	Learner:
//	  GET  /api/content/concept            first lesson of the default track
//	  GET  /api/content/concept/{id}       lesson body by concept id
//	  GET  /api/content/quiz               first quiz of the default track
//	  GET  /api/content/quiz/{concept_id}  quiz for a concept
//	  GET  /api/curriculum/roadmap         all published concepts in order
//	  GET  /api/curriculum/me              progress + next recommendation
//	  POST /api/quiz/submit                score quiz answers
//	  POST /api/progress/complete          record a concept completion
//	  POST /api/coach/feedback             Socratic design feedback
//
//	Probes:
//	  GET  /api/health, /health            liveness
//	  GET  /ready                          readiness (database ping)
//
// Learner identity comes from the X-User-Id / X-Session-Id headers; resolving
// who a user actually is stays outside this service.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

const (
	// DefaultAddr is the default address for the HTTP server.
	DefaultAddr = "127.0.0.1:8000"

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout is the timeout for reading request headers.
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout is the maximum duration for reading the entire request.
	// PDF uploads are the largest request this server accepts.
	ReadTimeout = 60 * time.Second

	// WriteTimeout is the maximum duration for writing the response.
	// Generation calls wait on the model provider.
	WriteTimeout = 120 * time.Second

	// IdleTimeout is the maximum time to wait for the next request on
	// keep-alive connections.
	IdleTimeout = 120 * time.Second
)

// Server is the HTTP server for the curriculum pipeline API.
type Server struct {
	mux         *http.ServeMux
	corsOrigins []string

	health  *HealthHandler
	admin   *AdminHandler
	learner *LearnerHandler
	coach   *CoachHandler
}

// NewServer creates an HTTP server with all routes registered.
func NewServer(health *HealthHandler, admin *AdminHandler, learner *LearnerHandler, coach *CoachHandler, corsOrigins []string) *Server {
	mux := http.NewServeMux()

	s := &Server{
		mux:         mux,
		corsOrigins: corsOrigins,
		health:      health,
		admin:       admin,
		learner:     learner,
		coach:       coach,
	}

	s.health.RegisterRoutes(mux)
	s.admin.RegisterRoutes(mux)
	s.learner.RegisterRoutes(mux)
	s.coach.RegisterRoutes(mux)

	return s
}

// Handler returns the HTTP handler with middleware applied.
// Middleware order: recovery → logging → cors → handler
func (s *Server) Handler() http.Handler {
	return chain(s.mux, recoveryMiddleware, loggingMiddleware, corsMiddleware(s.corsOrigins))
}

// Run starts the HTTP server and blocks until the context is cancelled.
// It handles graceful shutdown when the context is done.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
