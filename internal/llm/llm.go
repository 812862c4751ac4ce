// Package llm provides the generation provider abstraction for crucible.
//
// The rest of the system talks to a single Provider interface with two
// operations: plain text generation (coach feedback) and schema-guided JSON
// generation (curriculum synthesis). One concrete implementation exists per
// backing model provider; the implementation is selected by configuration at
// process start.
//
// Error semantics differ by method on purpose:
//   - GenerateText never fails for "no credential" or "empty response"; both
//     are normal user-facing outcomes reported as short human-readable
//     strings.
//   - GenerateJSON fails hard: a missing credential is ErrNotConfigured, an
//     empty or unparseable model response is ErrUnusableOutput. Neither is
//     retried here; callers own retry policy.
package llm

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	// ErrNotConfigured indicates the provider credential is absent.
	// Callers degrade instead of crashing: generation features report a
	// fixed explanatory message and retrieval runs disabled.
	ErrNotConfigured = errors.New("generation provider is not configured")

	// ErrUnusableOutput indicates the model produced empty or unparseable
	// output. Not retried internally.
	ErrUnusableOutput = errors.New("generation produced unusable output")
)

// Fixed user-facing strings for GenerateText degraded outcomes.
// The first is a control-plane outcome (our configuration), the second a
// content-plane outcome (the model's generation).
const (
	MsgNotConfigured = "Set GEMINI_API_KEY to enable the coach."
	MsgEmptyResponse = "The coach could not generate a response."
)

// Options control a single generation call.
type Options struct {
	MaxTokens   int32
	Temperature float32
}

// Provider generates text and JSON from a backing model.
type Provider interface {
	// GenerateText generates a plain text response. It never returns an
	// error for a missing credential or an empty generation; those come
	// back as MsgNotConfigured / MsgEmptyResponse.
	GenerateText(ctx context.Context, systemInstruction, userContent string, opts Options) (string, error)

	// GenerateJSON generates a structured response. The returned bytes are
	// guaranteed to be valid JSON (fenced code blocks stripped
	// defensively). Returns ErrNotConfigured or ErrUnusableOutput-wrapped
	// errors; transport failures are wrapped and propagate as retryable
	// conditions for the caller.
	GenerateJSON(ctx context.Context, systemInstruction, userContent string, opts Options) (json.RawMessage, error)
}
