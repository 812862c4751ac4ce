package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/crucible-learn/crucible/internal/llm"
)

// VectorDimension is the embedding dimension stored in pgvector.
// gemini-embedding-001 supports truncation to 768 via OutputDimensionality;
// the retrieval_chunks schema is declared as vector(768) to match.
const VectorDimension int32 = 768

// MaxChunkSize bounds a chunk so its content fits the embedding model's
// token limit; larger chunks would be silently truncated during embedding,
// making their tails unretrievable.
const MaxChunkSize = 8 * 1024

// contextSeparator joins retrieved chunks into one context string.
const contextSeparator = "\n\n---\n\n"

// answerSystem is the instruction used when a query wants a full answer
// rather than raw context.
const answerSystem = `You answer questions using only the provided context.
If the context does not contain the answer, say so briefly.`

// Embedder is the embedding capability the engine needs.
// *llm.Gemini satisfies it.
type Embedder interface {
	Embed(ctx context.Context, text string, dim int32) ([]float32, error)
}

// topK per mode: local goes deep (chunks regardless of document), global
// goes broad (one chunk per document), naive is a small flat search.
const (
	naiveTopK  = 5
	localTopK  = 8
	globalTopK = 6
)

// PGEngine is an Engine backed by PostgreSQL + pgvector with Gemini
// embeddings. Construct it through a Gateway, not directly, so the
// single-instance guarantee holds.
//
// PGEngine is safe for concurrent use by multiple goroutines.
type PGEngine struct {
	pool     *pgxpool.Pool
	embedder Embedder
	answerer llm.Provider
	logger   *slog.Logger
}

// NewPGEngine creates a PGEngine and verifies storage is reachable.
// The connectivity probe makes construction failures (storage I/O) surface
// here, where the gateway can retry them, instead of on first query.
func NewPGEngine(ctx context.Context, pool *pgxpool.Pool, embedder Embedder, answerer llm.Provider, logger *slog.Logger) (*PGEngine, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("retrieval storage unreachable: %w", err)
	}

	return &PGEngine{
		pool:     pool,
		embedder: embedder,
		answerer: answerer,
		logger:   logger,
	}, nil
}

// Insert implements Engine. Text is chunked on paragraph boundaries, each
// chunk embedded and upserted keyed by (docID, index), so re-inserting the
// same document id replaces its chunks in place.
func (e *PGEngine) Insert(ctx context.Context, text, docID string) error {
	chunks := SplitChunks(text, MaxChunkSize)
	if len(chunks) == 0 {
		return fmt.Errorf("document %q has no indexable text", docID)
	}

	for i, chunk := range chunks {
		vec, err := e.embedder.Embed(ctx, chunk, VectorDimension)
		if err != nil {
			return fmt.Errorf("embedding chunk %d of %q: %w", i, docID, err)
		}

		_, err = e.pool.Exec(ctx, `
			INSERT INTO retrieval_chunks (id, doc_id, chunk_index, content, embedding)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE
			SET content = EXCLUDED.content, embedding = EXCLUDED.embedding`,
			fmt.Sprintf("%s:%d", docID, i), docID, i, chunk, pgvector.NewVector(vec))
		if err != nil {
			return fmt.Errorf("storing chunk %d of %q: %w", i, docID, err)
		}
	}

	// A shrinking document would otherwise leave its old tail chunks
	// retrievable forever.
	_, err := e.pool.Exec(ctx, `
		DELETE FROM retrieval_chunks
		WHERE doc_id = $1 AND chunk_index >= $2`, docID, len(chunks))
	if err != nil {
		return fmt.Errorf("pruning stale chunks of %q: %w", docID, err)
	}

	e.logger.Debug("indexed document", "doc_id", docID, "chunks", len(chunks))
	return nil
}

// Query implements Engine.
func (e *PGEngine) Query(ctx context.Context, question string, mode Mode, contextOnly bool) (string, error) {
	vec, err := e.embedder.Embed(ctx, question, VectorDimension)
	if err != nil {
		return "", fmt.Errorf("embedding question: %w", err)
	}
	qv := pgvector.NewVector(vec)

	var chunks []string
	switch mode {
	case ModeNaive:
		chunks, err = e.searchChunks(ctx, qv, naiveTopK)
	case ModeLocal:
		chunks, err = e.searchChunks(ctx, qv, localTopK)
	case ModeGlobal:
		chunks, err = e.searchPerDocument(ctx, qv, globalTopK)
	default: // ModeHybrid
		chunks, err = e.searchHybrid(ctx, qv)
	}
	if err != nil {
		return "", err
	}
	if len(chunks) == 0 {
		return "", nil
	}

	retrieved := strings.Join(chunks, contextSeparator)
	if contextOnly {
		return retrieved, nil
	}
	if e.answerer == nil {
		return retrieved, nil
	}

	answer, err := e.answerer.GenerateText(ctx, answerSystem,
		fmt.Sprintf("Question: %s\n\nContext:\n%s", question, retrieved),
		llm.Options{MaxTokens: 1024, Temperature: 0.3})
	if err != nil {
		return "", fmt.Errorf("answering query: %w", err)
	}
	return answer, nil
}

// searchChunks returns the top-k most similar chunks.
func (e *PGEngine) searchChunks(ctx context.Context, qv pgvector.Vector, k int) ([]string, error) {
	rows, err := e.pool.Query(ctx, `
		SELECT content FROM retrieval_chunks
		ORDER BY embedding <=> $1
		LIMIT $2`, qv, k)
	if err != nil {
		return nil, fmt.Errorf("searching chunks: %w", err)
	}
	return collectContents(rows)
}

// searchPerDocument returns the best chunk of each of the k nearest
// documents, spreading context across sources.
func (e *PGEngine) searchPerDocument(ctx context.Context, qv pgvector.Vector, k int) ([]string, error) {
	rows, err := e.pool.Query(ctx, `
		SELECT content FROM (
			SELECT DISTINCT ON (doc_id) doc_id, content, embedding <=> $1 AS distance
			FROM retrieval_chunks
			ORDER BY doc_id, embedding <=> $1
		) best
		ORDER BY distance
		LIMIT $2`, qv, k)
	if err != nil {
		return nil, fmt.Errorf("searching documents: %w", err)
	}
	return collectContents(rows)
}

// searchHybrid merges local and global results, deduplicated, local first.
func (e *PGEngine) searchHybrid(ctx context.Context, qv pgvector.Vector) ([]string, error) {
	local, err := e.searchChunks(ctx, qv, localTopK)
	if err != nil {
		return nil, err
	}
	global, err := e.searchPerDocument(ctx, qv, globalTopK)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(local))
	merged := make([]string, 0, len(local)+len(global))
	for _, c := range local {
		if !seen[c] {
			seen[c] = true
			merged = append(merged, c)
		}
	}
	for _, c := range global {
		if !seen[c] {
			seen[c] = true
			merged = append(merged, c)
		}
	}
	return merged, nil
}

func collectContents(rows pgx.Rows) ([]string, error) {
	defer rows.Close()

	var contents []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		contents = append(contents, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading chunks: %w", err)
	}
	return contents, nil
}

// SplitChunks splits text into chunks of at most maxSize bytes, preferring
// blank-line boundaries. A single paragraph larger than maxSize is split
// mid-paragraph. Empty paragraphs are dropped.
func SplitChunks(text string, maxSize int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var chunks []string
	var b strings.Builder

	flush := func() {
		if s := strings.TrimSpace(b.String()); s != "" {
			chunks = append(chunks, s)
		}
		b.Reset()
	}

	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		// Oversized paragraph: hard-split on its own.
		if len(para) > maxSize {
			flush()
			for len(para) > maxSize {
				chunks = append(chunks, para[:maxSize])
				para = para[maxSize:]
			}
			if para != "" {
				chunks = append(chunks, para)
			}
			continue
		}

		if b.Len() > 0 && b.Len()+2+len(para) > maxSize {
			flush()
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(para)
	}
	flush()

	return chunks
}
