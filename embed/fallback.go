package embed

import (
	"context"
	"hash/fnv"
	"math"
	"strings"

	"github.com/agent0/coevolve/core"
)

// FallbackEmbedder produces deterministic, length-normalized vectors from
// character n-grams when no external embedding provider is configured. It
// requires no corpus state, unlike a TF-IDF embedder, satisfying the
// requirement that a single text always maps to the same vector.
type FallbackEmbedder struct {
	dimension int
	n         int
}

// NewFallbackEmbedder builds a fallback embedder with the given output
// dimension and n-gram size.
func NewFallbackEmbedder(dimension, n int) *FallbackEmbedder {
	if dimension <= 0 {
		dimension = 256
	}
	if n <= 0 {
		n = 3
	}
	return &FallbackEmbedder{dimension: dimension, n: n}
}

// Embed hashes every character n-gram of text into a fixed-size bucket
// vector, then L2-normalizes it.
func (f *FallbackEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	vec := make([]float64, f.dimension)
	normalized := strings.ToLower(strings.TrimSpace(text))
	runes := []rune(normalized)

	if len(runes) == 0 {
		return vec, nil
	}

	for i := 0; i <= len(runes)-f.n || i == 0; i++ {
		end := i + f.n
		if end > len(runes) {
			end = len(runes)
		}
		gram := string(runes[i:end])

		h := fnv.New32a()
		_, _ = h.Write([]byte(gram))
		idx := int(h.Sum32() % uint32(f.dimension))
		vec[idx]++

		if end == len(runes) {
			break
		}
	}

	normalize(vec)
	return vec, nil
}

func normalize(vec []float64) {
	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] /= norm
	}
}

var _ core.EmbeddingProvider = (*FallbackEmbedder)(nil)
