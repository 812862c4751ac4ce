package curriculum

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestConceptFromDraftDefaults(t *testing.T) {
	d := Draft{
		ID:      "caching-basics",
		Type:    DraftConcept,
		Payload: json.RawMessage(`{"title": "Caching Basics", "body": "..."}`),
	}
	entity, err := transformDraft(d)
	if err != nil {
		t.Fatalf("transformDraft() error = %v", err)
	}
	c := entity.concept
	if c == nil {
		t.Fatal("transformDraft() produced no concept")
	}
	if c.ID != "caching-basics" {
		t.Errorf("ID = %q, want draft id", c.ID)
	}
	if c.Track != DefaultTrack {
		t.Errorf("Track = %q, want %q", c.Track, DefaultTrack)
	}
	if c.Phase != DefaultPhase {
		t.Errorf("Phase = %q, want %q", c.Phase, DefaultPhase)
	}
	if c.SortOrder != 1 {
		t.Errorf("SortOrder = %d, want 1", c.SortOrder)
	}
	if c.PrerequisiteConceptIDs == nil || c.Tags == nil {
		t.Error("slice fields must default to empty, not nil")
	}
}

func TestConceptFromDraftRequiresTitle(t *testing.T) {
	d := Draft{ID: "x", Type: DraftConcept, Payload: json.RawMessage(`{"body": "no title"}`)}
	if _, err := transformDraft(d); err == nil {
		t.Fatal("transformDraft() accepted a concept without a title")
	}
}

func TestQuizFromDraftKeySpellings(t *testing.T) {
	questions := `[{"id":"q1","text":"?","options":[{"id":"a","text":"yes","correct":true}]}]`
	camel := Draft{ID: "quiz-1", Type: DraftQuiz,
		Payload: json.RawMessage(`{"conceptId": "caching-basics", "questions": ` + questions + `}`)}
	snake := Draft{ID: "quiz-1", Type: DraftQuiz,
		Payload: json.RawMessage(`{"concept_id": "caching-basics", "questions": ` + questions + `}`)}

	eCamel, err := transformDraft(camel)
	if err != nil {
		t.Fatalf("camelCase payload: %v", err)
	}
	eSnake, err := transformDraft(snake)
	if err != nil {
		t.Fatalf("snake_case payload: %v", err)
	}
	if !reflect.DeepEqual(eCamel.quiz, eSnake.quiz) {
		t.Errorf("key spellings produced different quizzes:\ncamel: %+v\nsnake: %+v", eCamel.quiz, eSnake.quiz)
	}
	if eCamel.quiz.ConceptID != "caching-basics" {
		t.Errorf("ConceptID = %q, want caching-basics", eCamel.quiz.ConceptID)
	}
}

func TestQuizFromDraftValidation(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"missing concept reference", `{"questions": [{"id":"q1","text":"?","options":[]}]}`},
		{"no questions", `{"conceptId": "c1", "questions": []}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Draft{ID: "quiz-1", Type: DraftQuiz, Payload: json.RawMessage(tt.payload)}
			if _, err := transformDraft(d); err == nil {
				t.Error("transformDraft() accepted an invalid quiz")
			}
		})
	}
}

func TestFailureFactFromDraft(t *testing.T) {
	d := Draft{ID: "ff-1", Type: DraftFailure,
		Payload: json.RawMessage(`{"fact": "cache stampedes overload origins", "prompt_hint": "ask about stampedes"}`)}
	entity, err := transformDraft(d)
	if err != nil {
		t.Fatalf("transformDraft() error = %v", err)
	}
	f := entity.fact
	if f.PromptHint != "ask about stampedes" {
		t.Errorf("PromptHint = %q, snake_case key was not accepted", f.PromptHint)
	}
	if f.ConceptID != nil {
		t.Errorf("ConceptID = %v, want nil for a global fact", *f.ConceptID)
	}
	if f.Tags == nil || f.Keywords == nil {
		t.Error("slice fields must default to empty, not nil")
	}

	bad := Draft{ID: "ff-2", Type: DraftFailure, Payload: json.RawMessage(`{"promptHint": "hint only"}`)}
	if _, err := transformDraft(bad); err == nil {
		t.Error("transformDraft() accepted a failure fact without fact text")
	}
}

func TestTransformDraftDeterministic(t *testing.T) {
	d := Draft{ID: "c1", Type: DraftConcept,
		Payload: json.RawMessage(`{"title": "T", "tags": ["a"], "sort_order": 3}`)}
	first, err := transformDraft(d)
	if err != nil {
		t.Fatalf("transformDraft() error = %v", err)
	}
	second, err := transformDraft(d)
	if err != nil {
		t.Fatalf("transformDraft() error = %v", err)
	}
	if !reflect.DeepEqual(first.concept, second.concept) {
		t.Error("transformDraft() is not deterministic for the same draft")
	}
}

func TestPreparePublishSkipReporting(t *testing.T) {
	found := []Draft{
		{ID: "good", Type: DraftConcept, Payload: json.RawMessage(`{"title": "Good"}`)},
		{ID: "bad", Type: DraftConcept, Payload: json.RawMessage(`{"body": "no title"}`)},
	}
	requested := []string{"good", "bad", "missing"}

	entities, result := preparePublish(requested, found)
	if len(entities) != 1 {
		t.Fatalf("preparePublish() produced %d entities, want 1", len(entities))
	}
	if len(result.Published) != 1 || result.Published[0] != "good" {
		t.Errorf("Published = %v, want [good]", result.Published)
	}
	if len(result.Skipped) != 2 {
		t.Fatalf("Skipped = %v, want 2 entries", result.Skipped)
	}
	reasons := map[string]string{}
	for _, s := range result.Skipped {
		reasons[s.ID] = s.Reason
	}
	if reasons["missing"] != "draft not found" {
		t.Errorf("missing draft reason = %q", reasons["missing"])
	}
	if reasons["bad"] == "" {
		t.Error("invalid draft skipped without a reason")
	}
}
