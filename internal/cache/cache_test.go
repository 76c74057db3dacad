package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/onboardqa/internal/agent"
	"github.com/Aman-CERP/onboardqa/internal/embed"
)

func newTestStore(t *testing.T, embedder embed.Embedder, config Config) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "cache.db"), embedder, config, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func hrSources() []agent.Source {
	return []agent.Source{{Document: "hr_policies.md", Section: "Leave", Department: "HR"}}
}

func TestExactHitRoundTrip(t *testing.T) {
	s := newTestStore(t, nil, DefaultConfig())
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "How much PTO do I get?", "25 days.", hrSources(), "HR", 0.9))

	hit, err := s.Get(ctx, "How much PTO do I get?")
	require.NoError(t, err)
	require.NotNil(t, hit)
	assert.Equal(t, HitExact, hit.Type)
	assert.InDelta(t, 1.0, hit.Similarity, 1e-9)
	assert.Equal(t, "25 days.", hit.Entry.Response)
	assert.Equal(t, hrSources(), hit.Entry.Sources)
	assert.Equal(t, "HR", hit.Entry.Department)
}

func TestExactHitNormalizesQuery(t *testing.T) {
	s := newTestStore(t, nil, DefaultConfig())
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "how much pto do i get?", "25 days.", nil, "HR", 0.9))

	hit, err := s.Get(ctx, "  HOW MUCH PTO DO I GET?  ")
	require.NoError(t, err)
	require.NotNil(t, hit)
	assert.Equal(t, HitExact, hit.Type)
}

func TestMissReturnsNil(t *testing.T) {
	s := newTestStore(t, nil, DefaultConfig())

	hit, err := s.Get(context.Background(), "never asked")
	require.NoError(t, err)
	assert.Nil(t, hit)
}

func TestHitCountIncrements(t *testing.T) {
	s := newTestStore(t, nil, DefaultConfig())
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "q", "a", nil, "HR", 0.9))

	first, err := s.Get(ctx, "q")
	require.NoError(t, err)
	second, err := s.Get(ctx, "q")
	require.NoError(t, err)

	assert.Equal(t, int64(1), first.Entry.HitCount)
	assert.Equal(t, int64(2), second.Entry.HitCount)
}

func TestExpiredEntriesMiss(t *testing.T) {
	s := newTestStore(t, nil, DefaultConfig())
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "q", "a", nil, "HR", 0.9))

	s.now = func() time.Time { return time.Now().Add(25 * time.Hour) }
	hit, err := s.Get(ctx, "q")
	require.NoError(t, err)
	assert.Nil(t, hit)
}

func TestSemanticHit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SimilarityThreshold = 0.5
	s := newTestStore(t, embed.NewStaticEmbedder(), cfg)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "how do I configure the vpn client", "Install GlobalProtect.", nil, "IT", 0.8))

	hit, err := s.Get(ctx, "how do I configure the vpn client today")
	require.NoError(t, err)
	require.NotNil(t, hit)
	assert.Equal(t, HitSemantic, hit.Type)
	assert.GreaterOrEqual(t, hit.Similarity, 0.5)
	assert.Less(t, hit.Similarity, 1.0)
	assert.Equal(t, "Install GlobalProtect.", hit.Entry.Response)
}

func TestSemanticMissBelowThreshold(t *testing.T) {
	s := newTestStore(t, embed.NewStaticEmbedder(), DefaultConfig())
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "how do I configure the vpn client", "Install GlobalProtect.", nil, "IT", 0.8))

	hit, err := s.Get(ctx, "what is the parental leave policy")
	require.NoError(t, err)
	assert.Nil(t, hit)
}

func TestSemanticTierDisabledWithoutEmbedder(t *testing.T) {
	s := newTestStore(t, nil, DefaultConfig())
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "vpn setup", "answer", nil, "IT", 0.8))

	hit, err := s.Get(ctx, "vpn setup please")
	require.NoError(t, err)
	assert.Nil(t, hit)
}

func TestInvalidateByDepartment(t *testing.T) {
	s := newTestStore(t, nil, DefaultConfig())
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "hr question", "hr answer", nil, "HR", 0.9))
	require.NoError(t, s.Put(ctx, "it question", "it answer", nil, "IT", 0.9))

	require.NoError(t, s.Invalidate(ctx, "HR"))

	hit, err := s.Get(ctx, "hr question")
	require.NoError(t, err)
	assert.Nil(t, hit)

	hit, err = s.Get(ctx, "it question")
	require.NoError(t, err)
	require.NotNil(t, hit)
	assert.Equal(t, "it answer", hit.Entry.Response)
}

func TestInvalidateAll(t *testing.T) {
	s := newTestStore(t, nil, DefaultConfig())
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "a", "1", nil, "HR", 0.9))
	require.NoError(t, s.Put(ctx, "b", "2", nil, "IT", 0.9))
	require.NoError(t, s.Invalidate(ctx, ""))

	n, err := s.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCleanupExpired(t *testing.T) {
	s := newTestStore(t, nil, DefaultConfig())
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "keep", "1", nil, "HR", 0.9))
	require.NoError(t, s.Put(ctx, "drop", "2", nil, "IT", 0.9))
	require.NoError(t, s.Invalidate(ctx, "IT"))

	removed, err := s.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	n, err := s.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPutOverwritesSameQuery(t *testing.T) {
	s := newTestStore(t, nil, DefaultConfig())
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "q", "old", nil, "HR", 0.5))
	require.NoError(t, s.Put(ctx, "q", "new", nil, "HR", 0.9))

	hit, err := s.Get(ctx, "q")
	require.NoError(t, err)
	require.NotNil(t, hit)
	assert.Equal(t, "new", hit.Entry.Response)

	n, err := s.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPutAsyncEventuallyVisible(t *testing.T) {
	s := newTestStore(t, nil, DefaultConfig())
	ctx := context.Background()

	s.PutAsync("async question", "async answer", nil, "HR", 0.9)

	require.Eventually(t, func() bool {
		hit, err := s.Get(ctx, "async question")
		return err == nil && hit != nil
	}, 2*time.Second, 10*time.Millisecond)

	assert.Zero(t, s.Dropped())
}

func TestVectorCodecRoundTrip(t *testing.T) {
	vec := []float32{0.5, -1.25, 0, 3.75}
	assert.Equal(t, vec, decodeVector(encodeVector(vec)))
	assert.Nil(t, encodeVector(nil))
}
