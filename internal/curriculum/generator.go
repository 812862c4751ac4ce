package curriculum

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/crucible-learn/crucible/internal/llm"
	"github.com/crucible-learn/crucible/internal/retrieval"
)

// DefaultTopic is used when generation is requested with a blank topic.
const DefaultTopic = "system design fundamentals"

// maxContextChars bounds the retrieved context passed to the model.
const maxContextChars = 30000

// generationSystem is the fixed instruction describing the exact JSON shape
// the model must produce, including the cross-reference rule for quizzes and
// failure facts.
const generationSystem = `You are a curriculum designer for system design learning.

Given retrieved context from a knowledge base, output a JSON object with exactly these keys:
- "concepts": array of objects with: id (string, slug), title, body, tags (array), track ("system_design" or "ml_ops"), phase ("fundamentals"|"patterns"|"tradeoffs"|"failure_modes"|"advanced"), sort_order (int), prerequisite_concept_ids (array of concept ids)
- "quizzes": array of objects with: id (string), conceptId (string, must match a concept id), questions (array of { id, text, options: [{ id, text, correct: boolean }] }), optional difficulty_tier
- "failure_facts": array of objects with: id (string), concept_id (string, optional; null = global), tags, keywords (array), fact, promptHint, optional difficulty_tier

Every quiz's conceptId and every failure fact's concept_id must name a concept in this same output or one already published.
Output only valid JSON, no markdown or explanation. Use the context to create 1-3 concepts, 0-1 quiz per concept, and 0-2 failure_facts per concept where relevant.`

// ContextSource supplies retrieved context for a question.
// *retrieval.Gateway satisfies it.
type ContextSource interface {
	Query(ctx context.Context, question string, mode retrieval.Mode, contextOnly bool) (string, error)
}

// DraftUpserter stages generated items. *Store satisfies it.
type DraftUpserter interface {
	UpsertDraft(ctx context.Context, id string, typ DraftType, payload json.RawMessage) error
}

// Generator runs the curriculum generation workflow:
// topic → retrieval question → context → structured generation → drafts.
type Generator struct {
	source   ContextSource
	provider llm.Provider
	drafts   DraftUpserter
	logger   *slog.Logger
}

// NewGenerator creates a Generator.
func NewGenerator(source ContextSource, provider llm.Provider, drafts DraftUpserter, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		source:   source,
		provider: provider,
		drafts:   drafts,
		logger:   logger,
	}
}

// generationBatch is the model output shape. Items stay raw: draft payloads
// are untyped at staging time and validated only at publish.
type generationBatch struct {
	Concepts     []json.RawMessage `json:"concepts"`
	Quizzes      []json.RawMessage `json:"quizzes"`
	FailureFacts []json.RawMessage `json:"failure_facts"`
}

// Generate synthesizes curriculum drafts for a topic and returns the staged
// draft ids in batch order (concepts, quizzes, failure facts).
//
// Returns ErrNoContext when retrieval has nothing for the topic; the
// generation provider is never invoked with empty context. Staging is
// last-write-wins per id: a regenerated item reusing a previous id silently
// overwrites that draft.
func (g *Generator) Generate(ctx context.Context, topic string) ([]string, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		topic = DefaultTopic
	}

	question := fmt.Sprintf("What are the key concepts and tradeoffs for %s?", topic)
	retrieved, err := g.source.Query(ctx, question, retrieval.ModeHybrid, true)
	if err != nil {
		return nil, fmt.Errorf("querying retrieval engine: %w", err)
	}
	if strings.TrimSpace(retrieved) == "" {
		return nil, ErrNoContext
	}
	retrieved = truncateOnRune(retrieved, maxContextChars)

	user := fmt.Sprintf("Topic focus: %s\n\nRetrieved context:\n%s", topic, retrieved)
	raw, err := g.provider.GenerateJSON(ctx, generationSystem, user, llm.Options{
		MaxTokens:   4096,
		Temperature: 0.3,
	})
	if err != nil {
		return nil, fmt.Errorf("generating curriculum for %q: %w", topic, err)
	}

	var batch generationBatch
	if err := json.Unmarshal(raw, &batch); err != nil {
		return nil, fmt.Errorf("%w: unexpected batch shape: %v", llm.ErrUnusableOutput, err)
	}

	var ids []string
	stage := func(items []json.RawMessage, typ DraftType) error {
		for _, item := range items {
			id, payload, err := ensureItemID(item)
			if err != nil {
				return fmt.Errorf("%w: %s item: %v", llm.ErrUnusableOutput, typ, err)
			}
			if err := g.drafts.UpsertDraft(ctx, id, typ, payload); err != nil {
				return fmt.Errorf("staging %s draft %q: %w", typ, id, err)
			}
			ids = append(ids, id)
		}
		return nil
	}

	if err := stage(batch.Concepts, DraftConcept); err != nil {
		return nil, err
	}
	if err := stage(batch.Quizzes, DraftQuiz); err != nil {
		return nil, err
	}
	if err := stage(batch.FailureFacts, DraftFailure); err != nil {
		return nil, err
	}

	g.logger.Info("staged curriculum drafts", "topic", topic,
		"concepts", len(batch.Concepts), "quizzes", len(batch.Quizzes),
		"failure_facts", len(batch.FailureFacts))
	return ids, nil
}

// truncateOnRune caps s at max bytes without splitting a multi-byte rune:
// the cut backs up to the nearest rune start so the prompt stays valid UTF-8.
func truncateOnRune(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// ensureItemID extracts the item's id, assigning a fresh uuid when missing
// or blank, and returns the (possibly rewritten) payload.
func ensureItemID(item json.RawMessage) (string, json.RawMessage, error) {
	var fields map[string]any
	if err := json.Unmarshal(item, &fields); err != nil {
		return "", nil, fmt.Errorf("not an object: %w", err)
	}

	if id, ok := fields["id"].(string); ok && strings.TrimSpace(id) != "" {
		return id, item, nil
	}

	id := uuid.NewString()
	fields["id"] = id
	payload, err := json.Marshal(fields)
	if err != nil {
		return "", nil, fmt.Errorf("rewriting id: %w", err)
	}
	return id, payload, nil
}
