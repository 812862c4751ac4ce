package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/crucible-learn/crucible/internal/curriculum"
	"github.com/crucible-learn/crucible/internal/ingest"
	"github.com/crucible-learn/crucible/internal/log"
	"github.com/crucible-learn/crucible/internal/retrieval"
)

// MaxPDFUploadBytes caps accepted PDF uploads.
const MaxPDFUploadBytes = 32 << 20

// IngestService is the ingest capability the admin endpoints consume.
// *ingest.Service satisfies it.
type IngestService interface {
	IngestPDF(ctx context.Context, filename string, data []byte) (string, error)
	IngestURLs(ctx context.Context, urls []string) []ingest.URLResult
	ListSources(ctx context.Context) ([]ingest.Source, error)
}

// Generator synthesizes curriculum drafts. *curriculum.Generator satisfies it.
type Generator interface {
	Generate(ctx context.Context, topic string) ([]string, error)
}

// Retriever answers questions from the retrieval index.
// *retrieval.Gateway satisfies it.
type Retriever interface {
	Query(ctx context.Context, question string, mode retrieval.Mode, contextOnly bool) (string, error)
}

// DraftStore lists and publishes staged drafts. *curriculum.Store satisfies it.
type DraftStore interface {
	ListDrafts(ctx context.Context) ([]curriculum.Draft, error)
	PublishDrafts(ctx context.Context, ids []string) (curriculum.PublishResult, error)
}

// AdminHandler handles operator endpoints: ingest, generate, publish.
type AdminHandler struct {
	ingest    IngestService
	generator Generator
	drafts    DraftStore
	retriever Retriever
	logger    log.Logger
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(ingestSvc IngestService, generator Generator, drafts DraftStore, retriever Retriever, logger log.Logger) *AdminHandler {
	return &AdminHandler{ingest: ingestSvc, generator: generator, drafts: drafts, retriever: retriever, logger: logger}
}

// RegisterRoutes registers admin routes on the given mux.
func (h *AdminHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/admin/ingest/pdf", h.ingestPDF)
	mux.HandleFunc("POST /api/admin/ingest/urls", h.ingestURLs)
	mux.HandleFunc("GET /api/admin/ingest/sources", h.listSources)
	mux.HandleFunc("POST /api/admin/retrieval/query", h.retrievalQuery)
	mux.HandleFunc("POST /api/admin/curriculum/generate", h.generate)
	mux.HandleFunc("GET /api/admin/curriculum/drafts", h.listDrafts)
	mux.HandleFunc("POST /api/admin/curriculum/publish", h.publish)
}

// ingestPDF accepts a multipart upload under the "file" field.
func (h *AdminHandler) ingestPDF(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxPDFUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid upload", "multipart field \"file\" required")
		return
	}
	defer file.Close()

	if !strings.HasSuffix(strings.ToLower(header.Filename), ".pdf") {
		writeError(w, http.StatusBadRequest, "invalid upload", "PDF file required")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid upload", err.Error())
		return
	}

	docID, err := h.ingest.IngestPDF(r.Context(), header.Filename, data)
	if err != nil {
		if errors.Is(err, ingest.ErrNoText) {
			writeError(w, http.StatusBadRequest, "no text", err.Error())
			return
		}
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"doc_id": docID, "filename": header.Filename})
}

// IngestURLsRequest is the request body for batch URL ingest.
type IngestURLsRequest struct {
	URLs []string `json:"urls"`
}

func (h *AdminHandler) ingestURLs(w http.ResponseWriter, r *http.Request) {
	var req IngestURLsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.URLs) == 0 {
		writeError(w, http.StatusBadRequest, "invalid request", "urls required")
		return
	}
	results := h.ingest.IngestURLs(r.Context(), req.URLs)
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (h *AdminHandler) listSources(w http.ResponseWriter, r *http.Request) {
	sources, err := h.ingest.ListSources(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if sources == nil {
		sources = []ingest.Source{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sources": sources})
}

// RetrievalQueryRequest is the request body for inspecting the retrieval
// index. An unknown or empty mode falls back to hybrid. With context_only
// the raw retrieved context comes back instead of a generated answer.
type RetrievalQueryRequest struct {
	Question    string `json:"question"`
	Mode        string `json:"mode"`
	ContextOnly bool   `json:"context_only"`
}

// retrievalQuery lets an operator check what the index returns for a
// question before generating curriculum from it. An empty result means the
// index has nothing relevant (or retrieval runs disabled).
func (h *AdminHandler) retrievalQuery(w http.ResponseWriter, r *http.Request) {
	var req RetrievalQueryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "invalid request", "question required")
		return
	}

	mode := retrieval.ParseMode(req.Mode)
	result, err := h.retriever.Query(r.Context(), req.Question, mode, req.ContextOnly)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"mode": string(mode), "result": result})
}

// GenerateRequest is the request body for curriculum generation.
type GenerateRequest struct {
	Topic string `json:"topic"`
}

func (h *AdminHandler) generate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ids, err := h.generator.Generate(r.Context(), req.Topic)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"draft_ids": ids})
}

func (h *AdminHandler) listDrafts(w http.ResponseWriter, r *http.Request) {
	drafts, err := h.drafts.ListDrafts(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if drafts == nil {
		drafts = []curriculum.Draft{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"drafts": drafts})
}

// PublishRequest is the request body for publishing drafts.
type PublishRequest struct {
	DraftIDs []string `json:"draft_ids"`
}

func (h *AdminHandler) publish(w http.ResponseWriter, r *http.Request) {
	var req PublishRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.DraftIDs) == 0 {
		writeError(w, http.StatusBadRequest, "invalid request", "draft_ids required")
		return
	}

	result, err := h.drafts.PublishDrafts(r.Context(), req.DraftIDs)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if result.Published == nil {
		result.Published = []string{}
	}
	writeJSON(w, http.StatusOK, result)
}
