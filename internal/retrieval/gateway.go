package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Mode selects the retrieval scoping strategy for a query.
type Mode string

// Supported query modes.
const (
	ModeNaive  Mode = "naive"
	ModeLocal  Mode = "local"
	ModeGlobal Mode = "global"
	ModeHybrid Mode = "hybrid"
)

// ParseMode returns the Mode for s, defaulting to ModeHybrid for anything
// unrecognized or empty.
func ParseMode(s string) Mode {
	switch Mode(s) {
	case ModeNaive, ModeLocal, ModeGlobal, ModeHybrid:
		return Mode(s)
	default:
		return ModeHybrid
	}
}

// Engine is the retrieval capability consumed through the gateway.
// Implementations must be safe for concurrent use once constructed.
type Engine interface {
	// Insert indexes text under the given document id.
	Insert(ctx context.Context, text, docID string) error

	// Query answers a natural-language question. With contextOnly it
	// returns the retrieved context verbatim; otherwise a model-generated
	// answer over that context. An empty string means no knowledge.
	Query(ctx context.Context, question string, mode Mode, contextOnly bool) (string, error)
}

// BuildFunc constructs the underlying engine. Called at most once
// successfully; called again only after a failed construction.
type BuildFunc func(ctx context.Context) (Engine, error)

// Gateway owns the single shared engine handle.
//
// Concurrency: ready is an unsynchronized fast-path flag; mu serializes
// construction. The flag is set only after the engine field is published, so
// no caller ever observes a partially-constructed engine. A caller whose
// construction attempt fails leaves ready unset and the next caller retries.
type Gateway struct {
	mu     sync.Mutex
	ready  atomic.Bool
	engine Engine

	build    BuildFunc
	disabled bool
	logger   *slog.Logger
}

// NewGateway creates a gateway around build. With disabled set (no provider
// credential) the engine is never constructed and all operations report the
// degraded outcomes documented on Insert and Query.
func NewGateway(build BuildFunc, disabled bool, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		build:    build,
		disabled: disabled,
		logger:   logger,
	}
}

// Disabled reports whether the gateway runs without an engine.
func (g *Gateway) Disabled() bool {
	return g.disabled
}

// Insert indexes text and returns the document id used. An empty id gets a
// generated one. When the gateway is disabled it returns ("", nil); the
// caller falls back to a locally generated id.
func (g *Gateway) Insert(ctx context.Context, text, docID string) (string, error) {
	if g.disabled {
		return "", nil
	}

	eng, err := g.get(ctx)
	if err != nil {
		return "", err
	}

	if docID == "" {
		docID = uuid.NewString()
	}
	if err := eng.Insert(ctx, text, docID); err != nil {
		return "", fmt.Errorf("inserting document %q: %w", docID, err)
	}
	return docID, nil
}

// Query answers a question. When the gateway is disabled it returns
// ("", nil): empty context means "no knowledge available", not an error.
func (g *Gateway) Query(ctx context.Context, question string, mode Mode, contextOnly bool) (string, error) {
	if g.disabled {
		return "", nil
	}

	eng, err := g.get(ctx)
	if err != nil {
		return "", err
	}
	return eng.Query(ctx, question, mode, contextOnly)
}

// get returns the engine, constructing it on first use.
//
// Double-checked locking: the unsynchronized ready check avoids the lock on
// the hot path; the re-check under the lock handles the race where another
// caller finished construction while this one waited.
func (g *Gateway) get(ctx context.Context) (Engine, error) {
	if g.ready.Load() {
		return g.engine, nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.ready.Load() {
		return g.engine, nil
	}

	g.logger.Info("constructing retrieval engine")
	eng, err := g.build(ctx)
	if err != nil {
		// Not cached: the next call retries construction.
		return nil, fmt.Errorf("constructing retrieval engine: %w", err)
	}

	g.engine = eng
	g.ready.Store(true)
	return eng, nil
}
