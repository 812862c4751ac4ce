// Package retrieval implements the retrieval engine and its gateway.
//
// The gateway owns the single shared engine instance. The engine is expensive
// to construct (opens working storage, may call the generation provider), so
// it is built lazily, at most once, under a double-checked initialization
// lock. A failed construction is never cached: the next caller retries.
//
// Without a provider credential the gateway is permanently disabled:
// Insert returns no id (callers fall back to a locally generated one) and
// Query returns an empty string, which callers must treat as "no knowledge
// available" rather than an error.
//
// The concrete engine chunks text, embeds chunks via Gemini, and stores them
// in PostgreSQL + pgvector. Query modes change how retrieved context is
// scoped:
//
//	naive   — flat top-k chunk similarity
//	local   — top-k chunks, favors depth within documents
//	global  — best chunk per document, favors breadth across documents
//	hybrid  — local and global merged (default)
package retrieval
