package novelty

import (
	"context"
	"fmt"
	"testing"

	"github.com/agent0/coevolve/embed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndex_MaxSimilarityOnEmptyIsZero(t *testing.T) {
	idx := NewIndex(embed.NewFallbackEmbedder(64, 3))
	assert.Equal(t, 0.0, idx.MaxSimilarity([]float64{1, 0, 0}))
}

func TestIndex_FindsHighSimilarityForRepeatedText(t *testing.T) {
	embedder := embed.NewFallbackEmbedder(64, 3)
	idx := NewIndex(embedder)

	vec, err := idx.Embed(context.Background(), "solve for x in 2x+3=11")
	require.NoError(t, err)
	idx.Add(vec)

	repeat, err := idx.Embed(context.Background(), "solve for x in 2x+3=11")
	require.NoError(t, err)

	assert.InDelta(t, 1.0, idx.MaxSimilarity(repeat), 1e-9)
}

func TestIndex_CapacityAndFIFOEviction(t *testing.T) {
	embedder := embed.NewFallbackEmbedder(64, 3)
	idx := NewIndex(embedder)

	var first []float64
	for i := 0; i < 201; i++ {
		vec, err := idx.Embed(context.Background(), fmt.Sprintf("distinct prompt number %d", i))
		require.NoError(t, err)
		if i == 0 {
			first = vec
		}
		idx.Add(vec)
	}

	assert.Equal(t, 200, idx.Len())

	// The 201st add evicted the 1st; similarity to the very first vector
	// should no longer be a perfect match against any stored entry.
	assert.NotEqual(t, 1.0, idx.MaxSimilarity(first))
}

func TestIndex_NeverExceedsCapacity(t *testing.T) {
	embedder := embed.NewFallbackEmbedder(32, 3)
	idx := NewIndex(embedder)

	for i := 0; i < 500; i++ {
		vec, _ := idx.Embed(context.Background(), fmt.Sprintf("prompt %d", i))
		idx.Add(vec)
		assert.LessOrEqual(t, idx.Len(), 200)
	}
}
