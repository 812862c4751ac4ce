package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crucible-learn/crucible/internal/coach"
	"github.com/crucible-learn/crucible/internal/llm"
	"github.com/crucible-learn/crucible/internal/log"
)

type stubCoach struct {
	reply string
	last  coach.Request
}

func (s *stubCoach) Feedback(_ context.Context, req coach.Request) (string, error) {
	s.last = req
	return s.reply, nil
}

func TestCoachFeedbackEndpoint(t *testing.T) {
	stub := &stubCoach{reply: "What happens when the cache is cold?"}
	mux := http.NewServeMux()
	NewCoachHandler(stub, log.NewNop()).RegisterRoutes(mux)

	req := httptest.NewRequest(http.MethodPost, "/api/coach/feedback", strings.NewReader(`{
		"design_text": "Cache in front of the database.",
		"topic": "caching-basics",
		"pressure_test": true,
		"conversation_context": [{"role": "user", "text": "earlier question"}]
	}`))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, stub.reply, resp["feedback"])

	assert.Equal(t, "caching-basics", stub.last.Topic)
	assert.True(t, stub.last.PressureTest)
	require.Len(t, stub.last.Conversation, 1)
	assert.Equal(t, "earlier question", stub.last.Conversation[0].Text)
}

func TestCoachFeedbackEndpointRequiresDesign(t *testing.T) {
	mux := http.NewServeMux()
	NewCoachHandler(&stubCoach{}, log.NewNop()).RegisterRoutes(mux)

	req := httptest.NewRequest(http.MethodPost, "/api/coach/feedback", strings.NewReader(`{"topic": "x"}`))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// A degraded provider is not an HTTP failure: the fixed message is carried
// through as a normal reply.
func TestCoachFeedbackDegradedMessage(t *testing.T) {
	stub := &stubCoach{reply: llm.MsgNotConfigured}
	mux := http.NewServeMux()
	NewCoachHandler(stub, log.NewNop()).RegisterRoutes(mux)

	req := httptest.NewRequest(http.MethodPost, "/api/coach/feedback",
		strings.NewReader(`{"design_text": "d"}`))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "GEMINI_API_KEY")
}
