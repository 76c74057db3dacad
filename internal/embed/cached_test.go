package embed

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingEmbedder wraps StaticEmbedder and counts inner calls.
type countingEmbedder struct {
	*StaticEmbedder
	mu         sync.Mutex
	embedCalls int
	batchTexts int
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.mu.Lock()
	c.embedCalls++
	c.mu.Unlock()
	return c.StaticEmbedder.Embed(ctx, text)
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.mu.Lock()
	c.batchTexts += len(texts)
	c.mu.Unlock()
	return c.StaticEmbedder.EmbedBatch(ctx, texts)
}

func TestCachedEmbedderHit(t *testing.T) {
	inner := &countingEmbedder{StaticEmbedder: NewStaticEmbedder()}
	cached := NewCachedEmbedder(inner, 10)

	ctx := context.Background()
	a, err := cached.Embed(ctx, "pto policy")
	require.NoError(t, err)
	b, err := cached.Embed(ctx, "pto policy")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, 1, inner.embedCalls)
}

func TestCachedEmbedderBatchPartialHit(t *testing.T) {
	inner := &countingEmbedder{StaticEmbedder: NewStaticEmbedder()}
	cached := NewCachedEmbedder(inner, 10)

	ctx := context.Background()
	_, err := cached.Embed(ctx, "vpn setup")
	require.NoError(t, err)

	vecs, err := cached.EmbedBatch(ctx, []string{"vpn setup", "badge access"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)

	// Only the uncached text should reach the inner embedder
	assert.Equal(t, 1, inner.batchTexts)
}

func TestCachedEmbedderEviction(t *testing.T) {
	inner := &countingEmbedder{StaticEmbedder: NewStaticEmbedder()}
	cached := NewCachedEmbedder(inner, 1)

	ctx := context.Background()
	_, err := cached.Embed(ctx, "first")
	require.NoError(t, err)
	_, err = cached.Embed(ctx, "second")
	require.NoError(t, err)
	_, err = cached.Embed(ctx, "first") // evicted, recomputed
	require.NoError(t, err)

	assert.Equal(t, 3, inner.embedCalls)
}

func TestCachedEmbedderPassthrough(t *testing.T) {
	cached := NewCachedEmbedder(NewStaticEmbedder(), 0)

	assert.Equal(t, StaticDimensions, cached.Dimensions())
	assert.Equal(t, "static", cached.ModelName())
	assert.True(t, cached.Available(context.Background()))
	assert.NoError(t, cached.Close())
}
