package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/onboardqa/internal/store"
)

func TestFuseWeightedCombination(t *testing.T) {
	f := NewWeightedFusion(0.7, 0.3)

	bm25 := []*store.BM25Result{
		{DocID: "a", Score: 10},
		{DocID: "b", Score: 5},
	}
	vec := []*store.VectorResult{
		{ID: "a", Score: 0.9},
		{ID: "b", Score: 0.5},
	}

	results := f.Fuse(bm25, vec)
	require.Len(t, results, 2)

	// "a" tops both sides: normalized 1.0 on each, fused 0.7+0.3
	assert.Equal(t, "a", results[0].ChunkID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
	assert.True(t, results[0].InBothLists)

	// "b" is the minimum on both sides: normalized 0
	assert.Equal(t, "b", results[1].ChunkID)
	assert.InDelta(t, 0.0, results[1].Score, 1e-9)
}

func TestFuseMissingSideContributesZero(t *testing.T) {
	f := NewWeightedFusion(0.7, 0.3)

	bm25 := []*store.BM25Result{
		{DocID: "kw_only", Score: 8},
	}
	vec := []*store.VectorResult{
		{ID: "sem_only", Score: 0.8},
	}

	results := f.Fuse(bm25, vec)
	require.Len(t, results, 2)

	// Semantic side carries more weight, so the semantic-only chunk wins
	assert.Equal(t, "sem_only", results[0].ChunkID)
	assert.InDelta(t, 0.7, results[0].Score, 1e-9)
	assert.False(t, results[0].InBothLists)

	assert.Equal(t, "kw_only", results[1].ChunkID)
	assert.InDelta(t, 0.3, results[1].Score, 1e-9)
}

func TestFuseTieBreaksBySemanticThenID(t *testing.T) {
	f := NewWeightedFusion(0.5, 0.5)

	// Same fused score, differing raw semantic score
	vec := []*store.VectorResult{
		{ID: "x", Score: 0.9},
		{ID: "y", Score: 0.9},
	}

	results := f.Fuse(nil, vec)
	require.Len(t, results, 2)
	assert.Equal(t, "x", results[0].ChunkID) // equal scores: lexicographic
	assert.Equal(t, "y", results[1].ChunkID)
}

func TestFuseEmptyInputs(t *testing.T) {
	f := NewWeightedFusion(0.7, 0.3)
	results := f.Fuse(nil, nil)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestFuseSingleCandidate(t *testing.T) {
	f := NewWeightedFusion(0.7, 0.3)

	results := f.Fuse(
		[]*store.BM25Result{{DocID: "only", Score: 3}},
		[]*store.VectorResult{{ID: "only", Score: 0.6}},
	)
	require.Len(t, results, 1)
	// Degenerate range on both sides maps the nonzero scores to 1
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
}

func TestFuseBM25OnlyMode(t *testing.T) {
	f := NewWeightedFusion(0.7, 0.3)

	bm25 := []*store.BM25Result{
		{DocID: "a", Score: 10, MatchedTerms: []string{"vpn"}},
		{DocID: "b", Score: 4},
	}

	results := f.Fuse(bm25, nil)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].ChunkID)
	assert.Equal(t, []string{"vpn"}, results[0].MatchedTerms)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestCacheKey(t *testing.T) {
	// Case and surrounding whitespace do not change the key
	assert.Equal(t, cacheKey("VPN Setup", "IT", 5), cacheKey("  vpn setup ", "IT", 5))

	// Department and k are part of the key
	assert.NotEqual(t, cacheKey("vpn", "IT", 5), cacheKey("vpn", "", 5))
	assert.NotEqual(t, cacheKey("vpn", "IT", 5), cacheKey("vpn", "IT", 10))

	// Empty department aliases to "all"
	assert.Equal(t, cacheKey("vpn", "", 5), cacheKey("vpn", "all", 5))
}
