package curriculum

import (
	"encoding/json"
	"fmt"
	"strings"
)

// PublishResult reports what a publish call did. Requested ids that did not
// resolve to a draft, and drafts whose payload failed validation, appear in
// Skipped with a reason instead of being silently dropped.
type PublishResult struct {
	Published []string       `json:"published"`
	Skipped   []SkippedDraft `json:"skipped,omitempty"`
}

// SkippedDraft explains why a requested draft was not published.
type SkippedDraft struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// publishEntity is a canonical entity produced from one draft, ready to be
// upserted inside the publish transaction.
type publishEntity struct {
	concept *Concept
	quiz    *Quiz
	fact    *FailureFact
}

// conceptPayload mirrors the generation shape for a concept draft.
type conceptPayload struct {
	Track                  string   `json:"track"`
	Phase                  string   `json:"phase"`
	SortOrder              int      `json:"sort_order"`
	PrerequisiteConceptIDs []string `json:"prerequisite_concept_ids"`
	Title                  string   `json:"title"`
	Body                   string   `json:"body"`
	Tags                   []string `json:"tags"`
}

// quizPayload accepts the concept reference under either key spelling the
// model has been observed to emit; ConceptID canonicalizes to camelCase.
type quizPayload struct {
	ConceptIDCamel string     `json:"conceptId"`
	ConceptIDSnake string     `json:"concept_id"`
	Questions      []Question `json:"questions"`
	DifficultyTier *string    `json:"difficulty_tier"`
}

// failurePayload accepts the prompt hint under either key spelling.
type failurePayload struct {
	ConceptID       *string  `json:"concept_id"`
	Tags            []string `json:"tags"`
	Keywords        []string `json:"keywords"`
	Fact            string   `json:"fact"`
	PromptHintCamel string   `json:"promptHint"`
	PromptHintSnake string   `json:"prompt_hint"`
	DifficultyTier  *string  `json:"difficulty_tier"`
}

// transformDraft validates a draft payload into its canonical entity,
// applying defaults. The draft's own id is authoritative; an id inside the
// payload is ignored (the payload was staged under this id).
func transformDraft(d Draft) (publishEntity, error) {
	switch d.Type {
	case DraftConcept:
		c, err := conceptFromDraft(d)
		return publishEntity{concept: c}, err
	case DraftQuiz:
		q, err := quizFromDraft(d)
		return publishEntity{quiz: q}, err
	case DraftFailure:
		f, err := failureFactFromDraft(d)
		return publishEntity{fact: f}, err
	default:
		return publishEntity{}, fmt.Errorf("unknown draft type %q", d.Type)
	}
}

func conceptFromDraft(d Draft) (*Concept, error) {
	var p conceptPayload
	if err := json.Unmarshal(d.Payload, &p); err != nil {
		return nil, fmt.Errorf("invalid concept payload: %w", err)
	}
	if strings.TrimSpace(p.Title) == "" {
		return nil, fmt.Errorf("concept is missing a title")
	}

	c := &Concept{
		ID:                     d.ID,
		Track:                  p.Track,
		Phase:                  p.Phase,
		SortOrder:              p.SortOrder,
		PrerequisiteConceptIDs: p.PrerequisiteConceptIDs,
		Title:                  p.Title,
		Body:                   p.Body,
		Tags:                   p.Tags,
	}
	if c.Track == "" {
		c.Track = DefaultTrack
	}
	if c.Phase == "" {
		c.Phase = DefaultPhase
	}
	if c.SortOrder == 0 {
		c.SortOrder = 1
	}
	if c.PrerequisiteConceptIDs == nil {
		c.PrerequisiteConceptIDs = []string{}
	}
	if c.Tags == nil {
		c.Tags = []string{}
	}
	return c, nil
}

func quizFromDraft(d Draft) (*Quiz, error) {
	var p quizPayload
	if err := json.Unmarshal(d.Payload, &p); err != nil {
		return nil, fmt.Errorf("invalid quiz payload: %w", err)
	}

	conceptID := p.ConceptIDCamel
	if conceptID == "" {
		conceptID = p.ConceptIDSnake
	}
	if strings.TrimSpace(conceptID) == "" {
		return nil, fmt.Errorf("quiz is missing a concept reference")
	}
	if len(p.Questions) == 0 {
		return nil, fmt.Errorf("quiz has no questions")
	}

	return &Quiz{
		ID:             d.ID,
		ConceptID:      conceptID,
		Questions:      p.Questions,
		DifficultyTier: p.DifficultyTier,
	}, nil
}

func failureFactFromDraft(d Draft) (*FailureFact, error) {
	var p failurePayload
	if err := json.Unmarshal(d.Payload, &p); err != nil {
		return nil, fmt.Errorf("invalid failure fact payload: %w", err)
	}
	if strings.TrimSpace(p.Fact) == "" {
		return nil, fmt.Errorf("failure fact is missing its fact text")
	}

	hint := p.PromptHintCamel
	if hint == "" {
		hint = p.PromptHintSnake
	}

	f := &FailureFact{
		ID:             d.ID,
		ConceptID:      p.ConceptID,
		Tags:           p.Tags,
		Keywords:       p.Keywords,
		Fact:           p.Fact,
		PromptHint:     hint,
		DifficultyTier: p.DifficultyTier,
	}
	if f.Tags == nil {
		f.Tags = []string{}
	}
	if f.Keywords == nil {
		f.Keywords = []string{}
	}
	return f, nil
}

// preparePublish transforms the drafts found for the requested ids into
// canonical entities plus the skip list. Requested ids with no draft and
// drafts failing validation are skipped with a reason; the remainder is
// applied atomically by the store.
func preparePublish(requested []string, found []Draft) ([]publishEntity, PublishResult) {
	byID := make(map[string]Draft, len(found))
	for _, d := range found {
		byID[d.ID] = d
	}

	var entities []publishEntity
	var result PublishResult
	for _, id := range requested {
		d, ok := byID[id]
		if !ok {
			result.Skipped = append(result.Skipped, SkippedDraft{ID: id, Reason: "draft not found"})
			continue
		}
		entity, err := transformDraft(d)
		if err != nil {
			result.Skipped = append(result.Skipped, SkippedDraft{ID: id, Reason: err.Error()})
			continue
		}
		entities = append(entities, entity)
		result.Published = append(result.Published, id)
	}
	return entities, result
}
