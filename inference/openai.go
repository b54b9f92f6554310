// Package inference provides core.Endpoint implementations: an
// OpenAI-compatible provider, a deterministic mock for tests and local
// runs, and a circuit-breaker decorator shared by both.
package inference

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/agent0/coevolve/core"
)

// ErrLogprobsUnsupported is returned by OpenAIEndpoint.GenerateWithLogprobs:
// the chat completions API this endpoint targets does not expose per-token
// log-probabilities, so callers always fall through to the self-critique
// uncertainty path.
var ErrLogprobsUnsupported = errors.New("inference: logprobs not supported by this endpoint")

// OpenAIEndpoint implements core.Endpoint against an OpenAI-compatible chat
// completions API.
type OpenAIEndpoint struct {
	client *openai.Client
	model  string
	host   string
}

// NewOpenAIEndpoint builds an endpoint for model, optionally against a
// custom host (empty uses the default OpenAI API base URL).
func NewOpenAIEndpoint(apiKey, model, host string) *OpenAIEndpoint {
	config := openai.DefaultConfig(apiKey)
	if host != "" {
		config.BaseURL = host
	}
	return &OpenAIEndpoint{
		client: openai.NewClientWithConfig(config),
		model:  model,
		host:   host,
	}
}

// Generate produces free text for prompt.
func (e *OpenAIEndpoint) Generate(ctx context.Context, prompt string, opts core.GenerateOptions) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: float32(opts.Temperature),
		TopP:        float32(opts.TopP),
		MaxTokens:   opts.MaxTokens,
	}
	if opts.Seed != nil {
		seed := int(*opts.Seed)
		req.Seed = &seed
	}

	resp, err := e.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("inference: openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("inference: openai returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// GenerateWithLogprobs always returns ErrLogprobsUnsupported: the chat
// completions surface this endpoint targets does not carry per-token
// log-probabilities in the form the uncertainty estimator needs.
func (e *OpenAIEndpoint) GenerateWithLogprobs(ctx context.Context, prompt string, opts core.GenerateOptions) (string, core.LogProbs, error) {
	return "", core.LogProbs{}, ErrLogprobsUnsupported
}

// Embed produces a vector embedding for text.
func (e *OpenAIEndpoint) Embed(ctx context.Context, text string) ([]float64, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, fmt.Errorf("inference: openai embeddings: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("inference: openai returned no embeddings")
	}
	raw := resp.Data[0].Embedding
	vec := make([]float64, len(raw))
	for i, v := range raw {
		vec[i] = float64(v)
	}
	return vec, nil
}

// Model returns the configured model identifier.
func (e *OpenAIEndpoint) Model() string { return e.model }

var _ core.Endpoint = (*OpenAIEndpoint)(nil)
