// Package coach generates Socratic feedback on learner designs, pressured by
// curated failure facts when the design touches a concept that has them.
package coach

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/crucible-learn/crucible/internal/curriculum"
	"github.com/crucible-learn/crucible/internal/llm"
)

// fallbackConcept scopes the challenge snippet when a pressure test is
// requested without a topic.
const fallbackConcept = "caching-basics"

// factLimit caps the failure facts woven into one prompt.
const factLimit = 2

// maxTurnChars truncates each conversation turn passed to the model.
const maxTurnChars = 500

const coachSystem = `You are a System Design Coach. Your only job is to deepen the learner's thinking.

Rules:
- Never give full solutions or implement for them.
- Reply with at most 2 short Socratic questions. No long explanations.
- Focus on tradeoffs, assumptions, and edge cases.
- If you receive [CHALLENGE] facts below, use them to question or pressure-test their design. Do not quote the facts verbatim or reveal their source.

[CHALLENGE]
%s`

// FactSource supplies failure facts for a concept. *curriculum.Store
// satisfies it.
type FactSource interface {
	FailureFacts(ctx context.Context, conceptID string, limit int) ([]curriculum.FailureFact, error)
}

// Turn is one prior exchange in the coaching conversation.
type Turn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Request is one feedback invocation.
type Request struct {
	DesignText   string `json:"design_text"`
	Topic        string `json:"topic,omitempty"`
	PressureTest bool   `json:"pressure_test,omitempty"`
	Conversation []Turn `json:"conversation_context,omitempty"`
}

// Coach turns designs into Socratic questions.
type Coach struct {
	facts    FactSource
	provider llm.Provider
	logger   *slog.Logger
}

// New creates a Coach.
func New(facts FactSource, provider llm.Provider, logger *slog.Logger) *Coach {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coach{facts: facts, provider: provider, logger: logger}
}

// Feedback generates coach feedback for a design. Without a credential the
// provider returns its fixed degraded message; fact lookup failures degrade
// to an unchallenged prompt rather than failing the request.
func (c *Coach) Feedback(ctx context.Context, req Request) (string, error) {
	snippet := c.challengeSnippet(ctx, req.Topic, req.PressureTest)

	system := fmt.Sprintf(coachSystem, orNone(snippet))
	user := buildUserContent(req.DesignText, req.Conversation)

	return c.provider.GenerateText(ctx, system, user, llm.Options{
		MaxTokens:   256,
		Temperature: 0.7,
	})
}

// challengeSnippet renders failure facts as challenge lines. Empty unless a
// topic is given or a pressure test is requested; a pressure test without a
// topic falls back to a well-known concept so it always has material.
func (c *Coach) challengeSnippet(ctx context.Context, topic string, pressureTest bool) string {
	if topic == "" && !pressureTest {
		return ""
	}
	conceptID := topic
	if conceptID == "" {
		conceptID = fallbackConcept
	}

	facts, err := c.facts.FailureFacts(ctx, conceptID, factLimit)
	if err != nil {
		c.logger.Warn("failure fact lookup failed", "concept_id", conceptID, "error", err)
		return ""
	}

	lines := make([]string, 0, len(facts))
	for _, f := range facts {
		lines = append(lines, fmt.Sprintf("- %s (Fact: %s)", f.PromptHint, f.Fact))
	}
	return strings.Join(lines, "\n")
}

func buildUserContent(design string, turns []Turn) string {
	var b strings.Builder
	b.WriteString("Learner's design:\n\n")
	b.WriteString(design)
	if len(turns) > 0 {
		b.WriteString("\n\nRecent conversation:")
		for _, t := range turns {
			text := t.Text
			if len(text) > maxTurnChars {
				text = text[:maxTurnChars]
			}
			role := t.Role
			if role == "" {
				role = "user"
			}
			fmt.Fprintf(&b, "\n%s: %s", role, text)
		}
	}
	return b.String()
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
