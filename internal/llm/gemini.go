package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"google.golang.org/genai"
)

// Gemini is the Gemini-backed Provider using the google.golang.org/genai
// client. A Gemini with no credential is valid: it reports the degraded
// outcomes defined in llm.go instead of failing at construction, so the
// hosting process starts without an API key.
//
// Gemini is safe for concurrent use by multiple goroutines.
type Gemini struct {
	client        *genai.Client // nil when no credential is configured
	model         string
	embedderModel string
	logger        *slog.Logger
}

// GeminiConfig configures a Gemini provider.
type GeminiConfig struct {
	APIKey        string
	Model         string
	EmbedderModel string
}

// NewGemini creates a Gemini provider.
// An empty APIKey yields a degraded provider rather than an error.
func NewGemini(ctx context.Context, cfg GeminiConfig, logger *slog.Logger) (*Gemini, error) {
	if logger == nil {
		logger = slog.Default()
	}

	g := &Gemini{
		model:         cfg.Model,
		embedderModel: cfg.EmbedderModel,
		logger:        logger,
	}

	if cfg.APIKey == "" {
		logger.Warn("GEMINI_API_KEY not set, generation and retrieval run degraded")
		return g, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	g.client = client
	return g, nil
}

// Configured reports whether a credential is available.
func (g *Gemini) Configured() bool {
	return g.client != nil
}

// GenerateText implements Provider.
func (g *Gemini) GenerateText(ctx context.Context, systemInstruction, userContent string, opts Options) (string, error) {
	if g.client == nil {
		return MsgNotConfigured, nil
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model,
		genai.Text(userContent),
		g.generateConfig(systemInstruction, opts, false))
	if err != nil {
		return "", fmt.Errorf("generating text: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return MsgEmptyResponse, nil
	}
	return text, nil
}

// GenerateJSON implements Provider.
// Structured output is requested from the model; a surrounding fenced code
// block is stripped anyway in case the model ignores the instruction.
func (g *Gemini) GenerateJSON(ctx context.Context, systemInstruction, userContent string, opts Options) (json.RawMessage, error) {
	if g.client == nil {
		return nil, ErrNotConfigured
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model,
		genai.Text(userContent),
		g.generateConfig(systemInstruction, opts, true))
	if err != nil {
		return nil, fmt.Errorf("generating JSON: %w", err)
	}

	raw, err := ParseJSONResponse(resp.Text())
	if err != nil {
		return nil, err
	}

	g.logger.Debug("generated JSON", "model", g.model, "bytes", len(raw))
	return raw, nil
}

// Embed generates a vector embedding for the given text, truncated to dim
// dimensions. Used by the retrieval engine; not part of the Provider
// interface because only the engine needs it.
func (g *Gemini) Embed(ctx context.Context, text string, dim int32) ([]float32, error) {
	if g.client == nil {
		return nil, ErrNotConfigured
	}

	resp, err := g.client.Models.EmbedContent(ctx, g.embedderModel,
		genai.Text(text),
		&genai.EmbedContentConfig{OutputDimensionality: &dim})
	if err != nil {
		return nil, fmt.Errorf("embedding text: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("%w: empty embedding response", ErrUnusableOutput)
	}
	return resp.Embeddings[0].Values, nil
}

func (g *Gemini) generateConfig(systemInstruction string, opts Options, jsonOutput bool) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
		MaxOutputTokens:   opts.MaxTokens,
		Temperature:       genai.Ptr(opts.Temperature),
	}
	if jsonOutput {
		cfg.ResponseMIMEType = "application/json"
	}
	return cfg
}

// fencedBlock matches a ```json ... ``` (or bare ```) code fence.
var fencedBlock = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)```")

// ParseJSONResponse validates a model response as JSON, stripping a
// surrounding fenced code block first. Returns ErrUnusableOutput-wrapped
// errors for empty or unparseable text.
func ParseJSONResponse(text string) (json.RawMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: model returned no text", ErrUnusableOutput)
	}

	if strings.Contains(text, "```") {
		if m := fencedBlock.FindStringSubmatch(text); m != nil {
			text = strings.TrimSpace(m[1])
		}
	}

	if !json.Valid([]byte(text)) {
		return nil, fmt.Errorf("%w: response is not valid JSON", ErrUnusableOutput)
	}
	return json.RawMessage(text), nil
}
