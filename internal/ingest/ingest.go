package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Inserter indexes extracted text. *retrieval.Gateway satisfies it; a
// disabled gateway returns ("", nil) and the service assigns a local id so
// the audit trail stays consistent.
type Inserter interface {
	Insert(ctx context.Context, text, docID string) (string, error)
}

// Auditor records and lists ingested documents. *Store satisfies it.
type Auditor interface {
	Record(ctx context.Context, docID, kind, name string, chars int) error
	List(ctx context.Context) ([]Source, error)
}

// Source is an audit record of one ingested document.
type Source struct {
	DocID      string    `json:"doc_id"`
	Kind       string    `json:"kind"` // "pdf" or "url"
	Name       string    `json:"name"` // filename or url
	Chars      int       `json:"chars"`
	IngestedAt time.Time `json:"ingested_at"`
}

// URLResult is the per-item outcome of a batch URL ingest. One bad url does
// not abort the batch.
type URLResult struct {
	URL   string `json:"url"`
	DocID string `json:"doc_id,omitempty"`
	Error string `json:"error,omitempty"`
}

// Service ties extraction, indexing, and the audit trail together.
type Service struct {
	inserter Inserter
	fetcher  *Fetcher
	audit    Auditor
	logger   *slog.Logger
}

// NewService creates an ingest Service.
func NewService(inserter Inserter, fetcher *Fetcher, audit Auditor, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		inserter: inserter,
		fetcher:  fetcher,
		audit:    audit,
		logger:   logger,
	}
}

// IngestPDF extracts and indexes an uploaded PDF, returning the document id.
func (s *Service) IngestPDF(ctx context.Context, filename string, data []byte) (string, error) {
	text, err := ExtractPDF(data)
	if err != nil {
		return "", err
	}
	return s.index(ctx, "pdf", filename, text)
}

// IngestURLs fetches and indexes each url in order, reporting per-item
// outcomes. Fetches are sequential; curriculum ingestion is an operator
// action, not a crawl.
func (s *Service) IngestURLs(ctx context.Context, urls []string) []URLResult {
	results := make([]URLResult, 0, len(urls))
	for _, u := range urls {
		result := URLResult{URL: u}
		text, err := s.fetcher.ExtractURL(ctx, u)
		if err == nil {
			result.DocID, err = s.index(ctx, "url", u, text)
		}
		if err != nil {
			result.Error = err.Error()
			s.logger.Warn("url ingest failed", "url", u, "error", err)
		}
		results = append(results, result)
	}
	return results
}

// index inserts text into the retrieval index and records the audit row.
// With retrieval disabled the gateway returns an empty id and the document
// is recorded under a locally generated one.
func (s *Service) index(ctx context.Context, kind, name, text string) (string, error) {
	docID, err := s.inserter.Insert(ctx, text, "")
	if err != nil {
		return "", err
	}
	if docID == "" {
		docID = uuid.NewString()
	}

	if err := s.audit.Record(ctx, docID, kind, name, len(text)); err != nil {
		return "", err
	}

	s.logger.Info("ingested document", "doc_id", docID, "kind", kind, "name", name, "chars", len(text))
	return docID, nil
}

// ListSources returns the audit trail, most recent first.
func (s *Service) ListSources(ctx context.Context) ([]Source, error) {
	return s.audit.List(ctx)
}

// Store persists the ingest audit trail in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates an ingest audit Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Record upserts the audit row for a document. Re-ingesting the same doc id
// refreshes the row instead of duplicating it.
func (s *Store) Record(ctx context.Context, docID, kind, name string, chars int) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO ingested_docs (doc_id, kind, name, chars)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (doc_id) DO UPDATE
		SET kind = EXCLUDED.kind, name = EXCLUDED.name,
		    chars = EXCLUDED.chars, ingested_at = now()`,
		docID, kind, name, chars)
	if err != nil {
		return fmt.Errorf("recording ingested document %q: %w", docID, err)
	}
	return nil
}

// List returns the audit trail, most recent first.
func (s *Store) List(ctx context.Context) ([]Source, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT doc_id, kind, name, chars, ingested_at
		FROM ingested_docs
		ORDER BY ingested_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing ingested documents: %w", err)
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		var src Source
		if err := rows.Scan(&src.DocID, &src.Kind, &src.Name, &src.Chars, &src.IngestedAt); err != nil {
			return nil, fmt.Errorf("scanning ingested document: %w", err)
		}
		sources = append(sources, src)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading ingested documents: %w", err)
	}
	return sources, nil
}
