package curriculum

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is the common interface satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// conceptCols is the standard SELECT column list for scanConcepts.
const conceptCols = `id, track, phase, sort_order, prerequisite_concept_ids,
	title, body, tags, created_at, updated_at`

// Store persists drafts and the canonical curriculum in PostgreSQL.
// Upserts rely on the database's row-level locking; the only additional
// coordination is the single transaction wrapping a publish batch.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore creates a curriculum Store.
func NewStore(pool *pgxpool.Pool, logger *slog.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}, nil
}

// UpsertDraft stages a draft, last-write-wins per id.
func (s *Store) UpsertDraft(ctx context.Context, id string, typ DraftType, payload json.RawMessage) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO curriculum_drafts (id, type, payload)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET type = EXCLUDED.type, payload = EXCLUDED.payload, updated_at = now()`,
		id, string(typ), payload)
	if err != nil {
		return fmt.Errorf("upserting draft %q: %w", id, err)
	}
	return nil
}

// ListDrafts returns all drafts, most recently updated first.
func (s *Store) ListDrafts(ctx context.Context) ([]Draft, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, type, payload, updated_at
		FROM curriculum_drafts
		ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing drafts: %w", err)
	}
	return scanDrafts(rows)
}

// DraftsByIDs returns the drafts whose ids are in the given set.
func (s *Store) DraftsByIDs(ctx context.Context, ids []string) ([]Draft, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, type, payload, updated_at
		FROM curriculum_drafts
		WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("loading drafts: %w", err)
	}
	return scanDrafts(rows)
}

// PublishDrafts transforms the selected drafts into canonical entities and
// upserts them in a single transaction: either every publishable draft in
// the selection is applied or none is. Drafts stay in place afterwards, so
// republishing the same ids is idempotent. Unknown ids and invalid payloads
// are reported in the result's Skipped list.
func (s *Store) PublishDrafts(ctx context.Context, ids []string) (PublishResult, error) {
	drafts, err := s.DraftsByIDs(ctx, ids)
	if err != nil {
		return PublishResult{}, err
	}

	entities, result := preparePublish(ids, drafts)
	if len(entities) == 0 {
		return result, nil
	}

	s.warnDanglingPrerequisites(ctx, entities)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return PublishResult{}, fmt.Errorf("beginning publish transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.logger.Warn("publish rollback failed", "error", rbErr)
		}
	}()

	for _, e := range entities {
		switch {
		case e.concept != nil:
			err = upsertConcept(ctx, tx, e.concept)
		case e.quiz != nil:
			err = upsertQuiz(ctx, tx, e.quiz)
		case e.fact != nil:
			err = upsertFailureFact(ctx, tx, e.fact)
		}
		if err != nil {
			return PublishResult{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return PublishResult{}, fmt.Errorf("committing publish: %w", err)
	}

	s.logger.Info("published drafts", "published", len(result.Published), "skipped", len(result.Skipped))
	return result, nil
}

// warnDanglingPrerequisites logs prerequisite ids that resolve neither to a
// published concept nor to a concept in this batch. Dangling references are
// accepted — publish order across batches must not matter — but they block
// recommendation of the referencing concept until the prerequisite appears.
func (s *Store) warnDanglingPrerequisites(ctx context.Context, entities []publishEntity) {
	inBatch := make(map[string]bool)
	var prereqs []string
	for _, e := range entities {
		if e.concept == nil {
			continue
		}
		inBatch[e.concept.ID] = true
		prereqs = append(prereqs, e.concept.PrerequisiteConceptIDs...)
	}
	if len(prereqs) == 0 {
		return
	}

	rows, err := s.pool.Query(ctx, `SELECT id FROM concepts WHERE id = ANY($1)`, prereqs)
	if err != nil {
		s.logger.Warn("prerequisite check failed", "error", err)
		return
	}
	defer rows.Close()

	existing := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			s.logger.Warn("prerequisite check failed", "error", err)
			return
		}
		existing[id] = true
	}

	for _, e := range entities {
		if e.concept == nil {
			continue
		}
		for _, pid := range e.concept.PrerequisiteConceptIDs {
			if !inBatch[pid] && !existing[pid] {
				s.logger.Warn("concept references unknown prerequisite",
					"concept_id", e.concept.ID, "prerequisite_id", pid)
			}
		}
	}
}

func upsertConcept(ctx context.Context, q querier, c *Concept) error {
	_, err := q.Exec(ctx, `
		INSERT INTO concepts (id, track, phase, sort_order, prerequisite_concept_ids, title, body, tags)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE
		SET track = EXCLUDED.track, phase = EXCLUDED.phase,
		    sort_order = EXCLUDED.sort_order,
		    prerequisite_concept_ids = EXCLUDED.prerequisite_concept_ids,
		    title = EXCLUDED.title, body = EXCLUDED.body,
		    tags = EXCLUDED.tags, updated_at = now()`,
		c.ID, c.Track, c.Phase, c.SortOrder, c.PrerequisiteConceptIDs, c.Title, c.Body, c.Tags)
	if err != nil {
		return fmt.Errorf("upserting concept %q: %w", c.ID, err)
	}
	return nil
}

func upsertQuiz(ctx context.Context, q querier, quiz *Quiz) error {
	questions, err := json.Marshal(quiz.Questions)
	if err != nil {
		return fmt.Errorf("encoding questions for quiz %q: %w", quiz.ID, err)
	}
	_, err = q.Exec(ctx, `
		INSERT INTO quizzes (id, concept_id, questions, difficulty_tier)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET concept_id = EXCLUDED.concept_id, questions = EXCLUDED.questions,
		    difficulty_tier = EXCLUDED.difficulty_tier, updated_at = now()`,
		quiz.ID, quiz.ConceptID, questions, quiz.DifficultyTier)
	if err != nil {
		return fmt.Errorf("upserting quiz %q: %w", quiz.ID, err)
	}
	return nil
}

func upsertFailureFact(ctx context.Context, q querier, f *FailureFact) error {
	_, err := q.Exec(ctx, `
		INSERT INTO failure_facts (id, concept_id, tags, keywords, fact, prompt_hint, difficulty_tier)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE
		SET concept_id = EXCLUDED.concept_id, tags = EXCLUDED.tags,
		    keywords = EXCLUDED.keywords, fact = EXCLUDED.fact,
		    prompt_hint = EXCLUDED.prompt_hint,
		    difficulty_tier = EXCLUDED.difficulty_tier, updated_at = now()`,
		f.ID, f.ConceptID, f.Tags, f.Keywords, f.Fact, f.PromptHint, f.DifficultyTier)
	if err != nil {
		return fmt.Errorf("upserting failure fact %q: %w", f.ID, err)
	}
	return nil
}

// ConceptsByTrackPhase returns the concepts of one track/phase ordered by
// sort_order — the input the progress engine consumes.
func (s *Store) ConceptsByTrackPhase(ctx context.Context, track, phase string) ([]Concept, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+conceptCols+`
		FROM concepts
		WHERE track = $1 AND phase = $2
		ORDER BY sort_order`, track, phase)
	if err != nil {
		return nil, fmt.Errorf("loading concepts for %s/%s: %w", track, phase, err)
	}
	return scanConcepts(rows)
}

// AllConcepts returns every concept ordered by track, phase, sort_order
// (roadmap order).
func (s *Store) AllConcepts(ctx context.Context) ([]Concept, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+conceptCols+`
		FROM concepts
		ORDER BY track, phase, sort_order`)
	if err != nil {
		return nil, fmt.Errorf("loading concepts: %w", err)
	}
	return scanConcepts(rows)
}

// ConceptByID returns one concept, or ErrNoConcept.
func (s *Store) ConceptByID(ctx context.Context, id string) (*Concept, error) {
	return scanConceptRow(s.pool.QueryRow(ctx, `
		SELECT `+conceptCols+`
		FROM concepts
		WHERE id = $1`, id))
}

// FirstDefaultConcept returns the first concept of the default track/phase
// by sort_order, or ErrNoConcept. Serves the legacy single-concept content
// endpoint.
func (s *Store) FirstDefaultConcept(ctx context.Context) (*Concept, error) {
	return scanConceptRow(s.pool.QueryRow(ctx, `
		SELECT `+conceptCols+`
		FROM concepts
		WHERE track = $1 AND phase = $2
		ORDER BY sort_order
		LIMIT 1`, DefaultTrack, DefaultPhase))
}

func scanConceptRow(row pgx.Row) (*Concept, error) {
	var c Concept
	err := row.Scan(&c.ID, &c.Track, &c.Phase, &c.SortOrder,
		&c.PrerequisiteConceptIDs, &c.Title, &c.Body, &c.Tags,
		&c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoConcept
	}
	if err != nil {
		return nil, fmt.Errorf("loading concept: %w", err)
	}
	return &c, nil
}

// QuizByConceptID returns the quiz for a concept, or ErrNoQuiz.
func (s *Store) QuizByConceptID(ctx context.Context, conceptID string) (*Quiz, error) {
	return s.scanQuizRow(s.pool.QueryRow(ctx, `
		SELECT id, concept_id, questions, difficulty_tier, created_at, updated_at
		FROM quizzes
		WHERE concept_id = $1
		LIMIT 1`, conceptID))
}

// FirstQuizForDefaultTrack returns the quiz of the first concept in the
// default track/phase, or ErrNoQuiz.
func (s *Store) FirstQuizForDefaultTrack(ctx context.Context) (*Quiz, error) {
	return s.scanQuizRow(s.pool.QueryRow(ctx, `
		SELECT q.id, q.concept_id, q.questions, q.difficulty_tier, q.created_at, q.updated_at
		FROM quizzes q
		JOIN concepts c ON c.id = q.concept_id
		WHERE c.track = $1 AND c.phase = $2
		ORDER BY c.sort_order
		LIMIT 1`, DefaultTrack, DefaultPhase))
}

func (s *Store) scanQuizRow(row pgx.Row) (*Quiz, error) {
	var q Quiz
	var questions []byte
	err := row.Scan(&q.ID, &q.ConceptID, &questions, &q.DifficultyTier, &q.CreatedAt, &q.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoQuiz
	}
	if err != nil {
		return nil, fmt.Errorf("loading quiz: %w", err)
	}
	if err := json.Unmarshal(questions, &q.Questions); err != nil {
		return nil, fmt.Errorf("decoding questions for quiz %q: %w", q.ID, err)
	}
	return &q, nil
}

// FailureFacts returns up to limit facts for coach hints: facts scoped to
// the concept plus global facts (nil concept_id); with an empty conceptID,
// global facts only.
func (s *Store) FailureFacts(ctx context.Context, conceptID string, limit int) ([]FailureFact, error) {
	var rows pgx.Rows
	var err error
	if conceptID != "" {
		rows, err = s.pool.Query(ctx, `
			SELECT id, concept_id, tags, keywords, fact, prompt_hint, difficulty_tier, created_at, updated_at
			FROM failure_facts
			WHERE concept_id = $1 OR concept_id IS NULL
			ORDER BY id
			LIMIT $2`, conceptID, limit)
	} else {
		rows, err = s.pool.Query(ctx, `
			SELECT id, concept_id, tags, keywords, fact, prompt_hint, difficulty_tier, created_at, updated_at
			FROM failure_facts
			WHERE concept_id IS NULL
			ORDER BY id
			LIMIT $1`, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("loading failure facts: %w", err)
	}
	defer rows.Close()

	var facts []FailureFact
	for rows.Next() {
		var f FailureFact
		var hint *string
		if err := rows.Scan(&f.ID, &f.ConceptID, &f.Tags, &f.Keywords, &f.Fact,
			&hint, &f.DifficultyTier, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning failure fact: %w", err)
		}
		if hint != nil {
			f.PromptHint = *hint
		}
		facts = append(facts, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading failure facts: %w", err)
	}
	return facts, nil
}

// AddCompletion appends a completion event. Events are never updated.
func (s *Store) AddCompletion(ctx context.Context, c Completion) error {
	if c.Identity.Anonymous() {
		return fmt.Errorf("completion requires a user or session identity")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO concept_completions (user_id, session_id, concept_id, quiz_score, design_submitted)
		VALUES ($1, $2, $3, $4, $5)`,
		nullable(c.Identity.UserID), nullable(c.Identity.SessionID),
		c.ConceptID, c.QuizScore, c.DesignSubmitted)
	if err != nil {
		return fmt.Errorf("recording completion of %q: %w", c.ConceptID, err)
	}
	return nil
}

// CompletedConceptIDs returns the distinct concept ids the identity has
// completed. An anonymous identity has completed nothing.
func (s *Store) CompletedConceptIDs(ctx context.Context, id Identity) ([]string, error) {
	if id.Anonymous() {
		return nil, nil
	}

	var rows pgx.Rows
	var err error
	if id.UserID != "" {
		rows, err = s.pool.Query(ctx, `
			SELECT DISTINCT concept_id FROM concept_completions WHERE user_id = $1`, id.UserID)
	} else {
		rows, err = s.pool.Query(ctx, `
			SELECT DISTINCT concept_id FROM concept_completions WHERE session_id = $1`, id.SessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("loading completions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var cid string
		if err := rows.Scan(&cid); err != nil {
			return nil, fmt.Errorf("scanning completion: %w", err)
		}
		ids = append(ids, cid)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading completions: %w", err)
	}
	return ids, nil
}

func scanDrafts(rows pgx.Rows) ([]Draft, error) {
	defer rows.Close()

	var drafts []Draft
	for rows.Next() {
		var d Draft
		var typ string
		if err := rows.Scan(&d.ID, &typ, &d.Payload, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning draft: %w", err)
		}
		d.Type = DraftType(typ)
		drafts = append(drafts, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading drafts: %w", err)
	}
	return drafts, nil
}

func scanConcepts(rows pgx.Rows) ([]Concept, error) {
	defer rows.Close()

	var concepts []Concept
	for rows.Next() {
		var c Concept
		if err := rows.Scan(&c.ID, &c.Track, &c.Phase, &c.SortOrder,
			&c.PrerequisiteConceptIDs, &c.Title, &c.Body, &c.Tags,
			&c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning concept: %w", err)
		}
		concepts = append(concepts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading concepts: %w", err)
	}
	return concepts, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
