package curriculum

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crucible-learn/crucible/db"
	"github.com/crucible-learn/crucible/internal/log"
)

// testStore connects to the database named by TEST_DATABASE_URL, applies
// migrations, and truncates the curriculum tables. Tests are skipped when
// the variable is unset.
func testStore(t *testing.T) *Store {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}

	if err := db.Migrate(url, log.NewNop()); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}

	pool, err := pgxpool.New(context.Background(), url)
	if err != nil {
		t.Fatalf("connecting to test database: %v", err)
	}
	t.Cleanup(pool.Close)

	_, err = pool.Exec(context.Background(),
		`TRUNCATE curriculum_drafts, concepts, quizzes, failure_facts, concept_completions`)
	if err != nil {
		t.Fatalf("truncating tables: %v", err)
	}

	store, err := NewStore(pool, log.NewNop())
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	return store
}

func TestStorePublishRoundTrip(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	conceptPayload := json.RawMessage(`{"title": "Caching Basics", "body": "b", "tags": ["cache"]}`)
	quizPayload := json.RawMessage(`{"conceptId": "caching-basics",
		"questions": [{"id":"q1","text":"?","options":[{"id":"a","text":"yes","correct":true}]}]}`)

	if err := store.UpsertDraft(ctx, "caching-basics", DraftConcept, conceptPayload); err != nil {
		t.Fatalf("UpsertDraft(concept) error = %v", err)
	}
	if err := store.UpsertDraft(ctx, "quiz-1", DraftQuiz, quizPayload); err != nil {
		t.Fatalf("UpsertDraft(quiz) error = %v", err)
	}

	result, err := store.PublishDrafts(ctx, []string{"caching-basics", "quiz-1", "nope"})
	if err != nil {
		t.Fatalf("PublishDrafts() error = %v", err)
	}
	if len(result.Published) != 2 {
		t.Errorf("Published = %v, want 2 entries", result.Published)
	}
	if len(result.Skipped) != 1 || result.Skipped[0].ID != "nope" {
		t.Errorf("Skipped = %v, want [nope]", result.Skipped)
	}

	concepts, err := store.ConceptsByTrackPhase(ctx, DefaultTrack, DefaultPhase)
	if err != nil {
		t.Fatalf("ConceptsByTrackPhase() error = %v", err)
	}
	if len(concepts) != 1 || concepts[0].Title != "Caching Basics" {
		t.Fatalf("published concepts = %+v", concepts)
	}

	concept, err := store.ConceptByID(ctx, "caching-basics")
	if err != nil {
		t.Fatalf("ConceptByID() error = %v", err)
	}
	if concept.Body != "b" {
		t.Errorf("concept body = %q, want %q", concept.Body, "b")
	}
	if _, err := store.ConceptByID(ctx, "missing"); !errors.Is(err, ErrNoConcept) {
		t.Errorf("ConceptByID(missing) error = %v, want ErrNoConcept", err)
	}
	first, err := store.FirstDefaultConcept(ctx)
	if err != nil {
		t.Fatalf("FirstDefaultConcept() error = %v", err)
	}
	if first.ID != "caching-basics" {
		t.Errorf("first concept = %q, want caching-basics", first.ID)
	}

	quiz, err := store.QuizByConceptID(ctx, "caching-basics")
	if err != nil {
		t.Fatalf("QuizByConceptID() error = %v", err)
	}
	if len(quiz.Questions) != 1 {
		t.Errorf("quiz questions = %d, want 1", len(quiz.Questions))
	}

	// Republishing is idempotent.
	if _, err := store.PublishDrafts(ctx, []string{"caching-basics", "quiz-1"}); err != nil {
		t.Fatalf("republish error = %v", err)
	}
	concepts, err = store.ConceptsByTrackPhase(ctx, DefaultTrack, DefaultPhase)
	if err != nil {
		t.Fatalf("ConceptsByTrackPhase() error = %v", err)
	}
	if len(concepts) != 1 {
		t.Errorf("concepts after republish = %d, want 1", len(concepts))
	}

	// Drafts survive publishing.
	drafts, err := store.ListDrafts(ctx)
	if err != nil {
		t.Fatalf("ListDrafts() error = %v", err)
	}
	if len(drafts) != 2 {
		t.Errorf("drafts after publish = %d, want 2", len(drafts))
	}
}

func TestStoreDraftOverwrite(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	if err := store.UpsertDraft(ctx, "c1", DraftConcept, json.RawMessage(`{"title": "Old"}`)); err != nil {
		t.Fatalf("UpsertDraft() error = %v", err)
	}
	if err := store.UpsertDraft(ctx, "c1", DraftConcept, json.RawMessage(`{"title": "New"}`)); err != nil {
		t.Fatalf("UpsertDraft() error = %v", err)
	}

	drafts, err := store.ListDrafts(ctx)
	if err != nil {
		t.Fatalf("ListDrafts() error = %v", err)
	}
	if len(drafts) != 1 {
		t.Fatalf("drafts = %d, want 1", len(drafts))
	}
	var payload map[string]any
	if err := json.Unmarshal(drafts[0].Payload, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload["title"] != "New" {
		t.Errorf("payload title = %v, want New", payload["title"])
	}
}

func TestStoreCompletions(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	id := Identity{SessionID: "sess-1"}
	score := 2
	if err := store.AddCompletion(ctx, Completion{Identity: id, ConceptID: "c1", QuizScore: &score}); err != nil {
		t.Fatalf("AddCompletion() error = %v", err)
	}
	// Duplicate completion of the same concept collapses to one id.
	if err := store.AddCompletion(ctx, Completion{Identity: id, ConceptID: "c1", DesignSubmitted: true}); err != nil {
		t.Fatalf("AddCompletion() error = %v", err)
	}

	ids, err := store.CompletedConceptIDs(ctx, id)
	if err != nil {
		t.Fatalf("CompletedConceptIDs() error = %v", err)
	}
	if len(ids) != 1 || ids[0] != "c1" {
		t.Errorf("CompletedConceptIDs() = %v, want [c1]", ids)
	}

	other, err := store.CompletedConceptIDs(ctx, Identity{SessionID: "sess-2"})
	if err != nil {
		t.Fatalf("CompletedConceptIDs() error = %v", err)
	}
	if len(other) != 0 {
		t.Errorf("other identity sees %v, want nothing", other)
	}

	if err := store.AddCompletion(ctx, Completion{ConceptID: "c1"}); err == nil {
		t.Error("AddCompletion() accepted an anonymous identity")
	}
	anon, err := store.CompletedConceptIDs(ctx, Identity{})
	if err != nil || anon != nil {
		t.Errorf("anonymous completions = %v, %v; want nil, nil", anon, err)
	}
}
