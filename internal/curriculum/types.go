// Package curriculum implements the curriculum synthesis and publishing
// pipeline: LLM-generated drafts staged from retrieved context, operator
// publishing into the canonical store, quiz scoring, and the
// prerequisite-gated progress engine.
package curriculum

import (
	"encoding/json"
	"time"
)

// Default classification for published concepts and progress queries.
const (
	DefaultTrack = "system_design"
	DefaultPhase = "fundamentals"
)

// DraftType tags a staged curriculum item.
type DraftType string

// Draft item types.
const (
	DraftConcept DraftType = "concept"
	DraftQuiz    DraftType = "quiz"
	DraftFailure DraftType = "failure"
)

// Concept is an atomic curriculum unit. Published concepts are upserted by
// id and never hard-deleted by the pipeline.
type Concept struct {
	ID                     string    `json:"id"`
	Track                  string    `json:"track"`
	Phase                  string    `json:"phase"`
	SortOrder              int       `json:"sort_order"`
	PrerequisiteConceptIDs []string  `json:"prerequisite_concept_ids"`
	Title                  string    `json:"title"`
	Body                   string    `json:"body"`
	Tags                   []string  `json:"tags"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// Option is a quiz question option. Only options with Correct set count
// toward scoring.
type Option struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

// Question is a single quiz question with its ordered options.
type Question struct {
	ID      string   `json:"id"`
	Text    string   `json:"text"`
	Options []Option `json:"options"`
}

// Quiz belongs to a concept. Questions are stored as JSONB in order.
type Quiz struct {
	ID             string     `json:"id"`
	ConceptID      string     `json:"conceptId"`
	Questions      []Question `json:"questions"`
	DifficultyTier *string    `json:"difficulty_tier,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// FailureFact is coach-prompt material. A nil ConceptID means the fact is
// globally applicable. PromptHint is shown to the generation provider, never
// to the learner verbatim.
type FailureFact struct {
	ID             string    `json:"id"`
	ConceptID      *string   `json:"concept_id"`
	Tags           []string  `json:"tags"`
	Keywords       []string  `json:"keywords"`
	Fact           string    `json:"fact"`
	PromptHint     string    `json:"promptHint"`
	DifficultyTier *string   `json:"difficulty_tier,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Draft is a staged curriculum item. The payload is untyped at staging time
// and validated into its canonical shape only at publish time.
type Draft struct {
	ID        string          `json:"id"`
	Type      DraftType       `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Identity is the opaque learner identity from the routing layer: exactly
// one of UserID (authenticated) or SessionID (anonymous) is set.
type Identity struct {
	UserID    string
	SessionID string
}

// Anonymous reports whether the identity carries no key at all.
func (id Identity) Anonymous() bool {
	return id.UserID == "" && id.SessionID == ""
}

// Completion is an append-only record of a learner finishing a concept.
type Completion struct {
	Identity        Identity
	ConceptID       string
	QuizScore       *int
	DesignSubmitted bool
	CompletedAt     time.Time
}
