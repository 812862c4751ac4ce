package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/crucible-learn/crucible/internal/curriculum"
	"github.com/crucible-learn/crucible/internal/log"
)

// CurriculumStore is the read/progress capability the learner endpoints
// consume. *curriculum.Store satisfies it.
type CurriculumStore interface {
	AllConcepts(ctx context.Context) ([]curriculum.Concept, error)
	ConceptsByTrackPhase(ctx context.Context, track, phase string) ([]curriculum.Concept, error)
	ConceptByID(ctx context.Context, id string) (*curriculum.Concept, error)
	FirstDefaultConcept(ctx context.Context) (*curriculum.Concept, error)
	CompletedConceptIDs(ctx context.Context, id curriculum.Identity) ([]string, error)
	AddCompletion(ctx context.Context, c curriculum.Completion) error
	QuizByConceptID(ctx context.Context, conceptID string) (*curriculum.Quiz, error)
	FirstQuizForDefaultTrack(ctx context.Context) (*curriculum.Quiz, error)
}

// LearnerHandler handles content, roadmap, progress, and quiz endpoints.
type LearnerHandler struct {
	store  CurriculumStore
	logger log.Logger
}

// NewLearnerHandler creates a new learner handler.
func NewLearnerHandler(store CurriculumStore, logger log.Logger) *LearnerHandler {
	return &LearnerHandler{store: store, logger: logger}
}

// RegisterRoutes registers learner routes on the given mux. The bare
// content routes are the legacy single-concept surface: first concept and
// first quiz of the default track.
func (h *LearnerHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/content/concept", h.firstConcept)
	mux.HandleFunc("GET /api/content/concept/{id}", h.conceptByID)
	mux.HandleFunc("GET /api/content/quiz", h.firstQuiz)
	mux.HandleFunc("GET /api/content/quiz/{concept_id}", h.quizByConcept)
	mux.HandleFunc("GET /api/curriculum/roadmap", h.roadmap)
	mux.HandleFunc("GET /api/curriculum/me", h.progress)
	mux.HandleFunc("POST /api/quiz/submit", h.submitQuiz)
	mux.HandleFunc("POST /api/progress/complete", h.complete)
}

// identityFrom reads the opaque learner identity headers. Authenticated user
// id wins over the anonymous session id.
func identityFrom(r *http.Request) curriculum.Identity {
	return curriculum.Identity{
		UserID:    strings.TrimSpace(r.Header.Get("X-User-Id")),
		SessionID: strings.TrimSpace(r.Header.Get("X-Session-Id")),
	}
}

// ConceptContent is the lesson response for the content endpoints: the body
// plus display metadata, without ordering fields.
type ConceptContent struct {
	ID    string   `json:"id"`
	Title string   `json:"title"`
	Body  string   `json:"body"`
	Tags  []string `json:"tags"`
}

// QuizContent is the quiz response for the content endpoints.
type QuizContent struct {
	ID        string                `json:"id"`
	ConceptID string                `json:"conceptId"`
	Questions []curriculum.Question `json:"questions"`
}

func (h *LearnerHandler) firstConcept(w http.ResponseWriter, r *http.Request) {
	c, err := h.store.FirstDefaultConcept(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conceptContent(c))
}

func (h *LearnerHandler) conceptByID(w http.ResponseWriter, r *http.Request) {
	c, err := h.store.ConceptByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conceptContent(c))
}

func (h *LearnerHandler) firstQuiz(w http.ResponseWriter, r *http.Request) {
	q, err := h.store.FirstQuizForDefaultTrack(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quizContent(q))
}

func (h *LearnerHandler) quizByConcept(w http.ResponseWriter, r *http.Request) {
	q, err := h.store.QuizByConceptID(r.Context(), r.PathValue("concept_id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quizContent(q))
}

func conceptContent(c *curriculum.Concept) ConceptContent {
	tags := c.Tags
	if tags == nil {
		tags = []string{}
	}
	return ConceptContent{ID: c.ID, Title: c.Title, Body: c.Body, Tags: tags}
}

func quizContent(q *curriculum.Quiz) QuizContent {
	questions := q.Questions
	if questions == nil {
		questions = []curriculum.Question{}
	}
	return QuizContent{ID: q.ID, ConceptID: q.ConceptID, Questions: questions}
}

// RoadmapItem is one concept in the roadmap response. The body stays out;
// the roadmap is an overview, not the lesson content.
type RoadmapItem struct {
	ID                     string   `json:"id"`
	Title                  string   `json:"title"`
	Track                  string   `json:"track"`
	Phase                  string   `json:"phase"`
	SortOrder              int      `json:"sort_order"`
	PrerequisiteConceptIDs []string `json:"prerequisite_concept_ids"`
}

func (h *LearnerHandler) roadmap(w http.ResponseWriter, r *http.Request) {
	concepts, err := h.store.AllConcepts(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	items := make([]RoadmapItem, 0, len(concepts))
	for _, c := range concepts {
		items = append(items, RoadmapItem{
			ID:                     c.ID,
			Title:                  c.Title,
			Track:                  c.Track,
			Phase:                  c.Phase,
			SortOrder:              c.SortOrder,
			PrerequisiteConceptIDs: c.PrerequisiteConceptIDs,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"concepts": items})
}

// ProgressResponse reports a learner's completions and the next
// recommendation.
type ProgressResponse struct {
	CompletedConceptIDs      []string `json:"completedConceptIds"`
	NextRecommendedConceptID *string  `json:"nextRecommendedConceptId"`
	CurrentTrack             string   `json:"currentTrack"`
}

func (h *LearnerHandler) progress(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r)

	completed, err := h.store.CompletedConceptIDs(r.Context(), identity)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	ordered, err := h.store.ConceptsByTrackPhase(r.Context(), curriculum.DefaultTrack, curriculum.DefaultPhase)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := ProgressResponse{
		CompletedConceptIDs: completed,
		CurrentTrack:        curriculum.DefaultTrack,
	}
	if resp.CompletedConceptIDs == nil {
		resp.CompletedConceptIDs = []string{}
	}
	if next := curriculum.NextConcept(ordered, curriculum.CompletedSet(completed)); next != "" {
		resp.NextRecommendedConceptID = &next
	}
	writeJSON(w, http.StatusOK, resp)
}

// QuizSubmitRequest is the request body for quiz submission. Without a
// concept id the first quiz of the default track is scored.
type QuizSubmitRequest struct {
	ConceptID string              `json:"concept_id"`
	Answers   []curriculum.Answer `json:"answers"`
}

func (h *LearnerHandler) submitQuiz(w http.ResponseWriter, r *http.Request) {
	var req QuizSubmitRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var quiz *curriculum.Quiz
	var err error
	if req.ConceptID != "" {
		quiz, err = h.store.QuizByConceptID(r.Context(), req.ConceptID)
	} else {
		quiz, err = h.store.FirstQuizForDefaultTrack(r.Context())
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, curriculum.ScoreQuiz(*quiz, req.Answers))
}

// CompleteRequest is the request body for recording a concept completion.
type CompleteRequest struct {
	ConceptID       string `json:"concept_id"`
	QuizScore       *int   `json:"quiz_score,omitempty"`
	DesignSubmitted bool   `json:"design_submitted,omitempty"`
}

func (h *LearnerHandler) complete(w http.ResponseWriter, r *http.Request) {
	var req CompleteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.ConceptID) == "" {
		writeError(w, http.StatusBadRequest, "invalid request", "concept_id required")
		return
	}

	identity := identityFrom(r)
	if identity.Anonymous() {
		writeError(w, http.StatusBadRequest, "invalid request", "X-User-Id or X-Session-Id header required")
		return
	}

	err := h.store.AddCompletion(r.Context(), curriculum.Completion{
		Identity:        identity,
		ConceptID:       req.ConceptID,
		QuizScore:       req.QuizScore,
		DesignSubmitted: req.DesignSubmitted,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"recorded": true})
}
