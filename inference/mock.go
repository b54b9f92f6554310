package inference

import (
	"context"
	"os"

	"github.com/agent0/coevolve/core"
)

// MockEndpoint implements core.Endpoint with a fixed canned response,
// useful for local runs and tests with no API key configured.
type MockEndpoint struct {
	mode   string
	answer string
}

// NewMockEndpoint builds a mock endpoint. The mode is read from MOCK_MODE
// (default "mock") purely for observability; behavior does not depend on
// task content.
func NewMockEndpoint() *MockEndpoint {
	mode := os.Getenv("MOCK_MODE")
	if mode == "" {
		mode = "mock"
	}
	return &MockEndpoint{mode: mode, answer: "0"}
}

// Generate always returns a canned reasoning trace ending in a fixed
// answer, regardless of the prompt.
func (m *MockEndpoint) Generate(ctx context.Context, prompt string, opts core.GenerateOptions) (string, error) {
	return "Thought: using mock endpoint, no live inference configured.\nAnswer: " + m.answer, nil
}

// GenerateWithLogprobs always reports unsupported, forcing the
// self-critique fallback path.
func (m *MockEndpoint) GenerateWithLogprobs(ctx context.Context, prompt string, opts core.GenerateOptions) (string, core.LogProbs, error) {
	return "", core.LogProbs{}, ErrLogprobsUnsupported
}

// Embed returns a fixed-length zero vector; callers needing real
// similarity structure should configure embed.FallbackEmbedder instead.
func (m *MockEndpoint) Embed(ctx context.Context, text string) ([]float64, error) {
	return make([]float64, 32), nil
}

// Model reports the mock model identifier.
func (m *MockEndpoint) Model() string { return "mock-" + m.mode }

var _ core.Endpoint = (*MockEndpoint)(nil)
