// Package novelty implements the bounded recent-prompt embedding store and
// max-similarity query (C4).
package novelty

import (
	"context"
	"math"
	"sync"

	"github.com/agent0/coevolve/core"
)

const capacity = 200

// Index is a flat, FIFO-evicted, in-memory cosine-similarity store. A flat
// scan is used in place of an ANN structure since capacity is bounded to
// 200 entries.
type Index struct {
	mu       sync.Mutex
	embedder core.EmbeddingProvider
	vectors  [][]float64
	next     int
}

// NewIndex builds an empty index backed by embedder.
func NewIndex(embedder core.EmbeddingProvider) *Index {
	return &Index{embedder: embedder}
}

// Embed delegates to the configured embedding provider.
func (idx *Index) Embed(ctx context.Context, text string) ([]float64, error) {
	return idx.embedder.Embed(ctx, text)
}

// MaxSimilarity returns the highest cosine similarity between vec and any
// stored vector, or 0 on an empty index.
func (idx *Index) MaxSimilarity(vec []float64) float64 {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	best := 0.0
	for _, stored := range idx.vectors {
		if sim := cosineSimilarity(vec, stored); sim > best {
			best = sim
		}
	}
	return best
}

// Add inserts vec, evicting the oldest entry once capacity is reached.
func (idx *Index) Add(vec []float64) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if len(idx.vectors) < capacity {
		idx.vectors = append(idx.vectors, vec)
		return
	}
	idx.vectors[idx.next] = vec
	idx.next = (idx.next + 1) % capacity
}

// Len returns the current number of stored vectors.
func (idx *Index) Len() int {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return len(idx.vectors)
}

func cosineSimilarity(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

var _ core.NoveltyIndex = (*Index)(nil)
