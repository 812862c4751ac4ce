package curriculum

import "errors"

var (
	// ErrNoContext indicates retrieval returned nothing for the topic.
	// The fix is operational — ingest content first — so callers surface
	// it as an actionable message, not a generic failure.
	ErrNoContext = errors.New("retrieval returned no context, ingest content first")

	// ErrNoQuiz indicates no quiz exists for the requested concept.
	ErrNoQuiz = errors.New("no quiz found")

	// ErrNoConcept indicates the requested concept does not exist.
	ErrNoConcept = errors.New("no concept found")
)
