// Package tokens counts prompt/completion tokens for inference calls so
// the solver can log usage; no token budget is enforced here.
package tokens

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// Encoder counts and round-trips tokens for one model's tokenization.
type Encoder interface {
	Encode(text string) ([]int, error)
	Decode(tokens []int) (string, error)
	Count(text string) (int, error)
}

// TiktokenEncoder wraps a tiktoken-go BPE encoding, used for OpenAI-backed
// endpoints where exact prompt-length accounting matters.
type TiktokenEncoder struct {
	encoding *tiktoken.Tiktoken
}

// NewTiktokenEncoder loads the named encoding (e.g. "cl100k_base").
func NewTiktokenEncoder(encodingName string) (*TiktokenEncoder, error) {
	encoding, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("tokens: get encoding %s: %w", encodingName, err)
	}

	return &TiktokenEncoder{
		encoding: encoding,
	}, nil
}

// Encode converts text to tokens.
func (e *TiktokenEncoder) Encode(text string) ([]int, error) {
	return e.encoding.Encode(text, nil, nil), nil
}

// Decode converts tokens back to text.
func (e *TiktokenEncoder) Decode(tokens []int) (string, error) {
	return e.encoding.Decode(tokens), nil
}

// Count returns the number of tokens in text.
func (e *TiktokenEncoder) Count(text string) (int, error) {
	tokens := e.encoding.Encode(text, nil, nil)
	return len(tokens), nil
}

// MockEncoder estimates tokens as one per four characters, for local
// backends and mock endpoints with no real tokenizer to call.
type MockEncoder struct{}

// NewMockEncoder builds the character-based estimator.
func NewMockEncoder() *MockEncoder {
	return &MockEncoder{}
}

// Encode returns placeholder token IDs, as many as Count reports for
// non-empty text; for empty text it returns none while Count reports 1.
func (e *MockEncoder) Encode(text string) ([]int, error) {
	count := len(text) / 4
	if count < 1 && len(text) > 0 {
		count = 1
	}

	tokens := make([]int, count)
	for i := 0; i < count; i++ {
		tokens[i] = i
	}
	return tokens, nil
}

// Decode is unsupported: the mock encoding is not invertible.
func (e *MockEncoder) Decode(tokens []int) (string, error) {
	return "", fmt.Errorf("tokens: mock encoder cannot decode")
}

// Count estimates token count at roughly four characters per token.
func (e *MockEncoder) Count(text string) (int, error) {
	count := len(text) / 4
	if count < 1 {
		count = 1
	}
	return count, nil
}
