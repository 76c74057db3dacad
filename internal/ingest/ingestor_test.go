package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/onboardqa/internal/embed"
	qaerrors "github.com/Aman-CERP/onboardqa/internal/errors"
	"github.com/Aman-CERP/onboardqa/internal/store"
)

// flakyEmbedder fails the first failCount EmbedBatch calls, then delegates.
type flakyEmbedder struct {
	embed.Embedder
	failCount int
	calls     int
}

func (f *flakyEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.calls <= f.failCount {
		return nil, errors.New("embedder unavailable")
	}
	return f.Embedder.EmbedBatch(ctx, texts)
}

type ingestFixture struct {
	ingestor *Ingestor
	vectors  *store.HNSWStore
	bm25     *store.BleveBM25Index
	meta     *store.SQLiteMetadataStore
	embedder embed.Embedder
}

func newIngestFixture(t *testing.T, embedder embed.Embedder) *ingestFixture {
	t.Helper()
	if embedder == nil {
		embedder = embed.NewStaticEmbedder()
	}

	vectors, err := store.NewHNSWStore(store.DefaultVectorStoreConfig(embedder.Dimensions()))
	require.NoError(t, err)

	bm25, err := store.NewBleveBM25Index(filepath.Join(t.TempDir(), "bm25.bleve"), store.DefaultBM25Config())
	require.NoError(t, err)
	t.Cleanup(func() { _ = bm25.Close() })

	meta, err := store.NewSQLiteMetadataStore(filepath.Join(t.TempDir(), "meta.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = meta.Close() })

	return &ingestFixture{
		ingestor: NewIngestor(embedder, vectors, bm25, meta, nil),
		vectors:  vectors,
		bm25:     bm25,
		meta:     meta,
		embedder: embedder,
	}
}

func writePolicies(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func TestIngestDirectory(t *testing.T) {
	dir := writePolicies(t, map[string]string{
		"hr_policies.md": "# Leave\n\nAnnual leave is 25 days per year.\n\n# Benefits\n\nHealth insurance starts on day one.",
		"it_policies.md": "# VPN\n\nInstall the VPN client from the portal.",
	})

	fx := newIngestFixture(t, nil)
	result, err := fx.ingestor.IngestDirectory(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Files["hr_policies.md"])
	assert.Equal(t, 1, result.Files["it_policies.md"])
	assert.Equal(t, 3, result.TotalChunks)

	count, err := fx.meta.CountChunks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.Equal(t, 3, fx.vectors.Count())
	assert.Equal(t, 3, fx.bm25.Stats().DocumentCount)

	chunk, err := fx.meta.GetChunk(context.Background(), "hr_policies_0")
	require.NoError(t, err)
	assert.Equal(t, store.DeptHR, chunk.Department)
	assert.Equal(t, "Leave", chunk.Section)
}

func TestIngestRecordsState(t *testing.T) {
	dir := writePolicies(t, map[string]string{
		"hr_policies.md": "# Leave\n\nAnnual leave is 25 days.",
	})

	fx := newIngestFixture(t, nil)
	_, err := fx.ingestor.IngestDirectory(context.Background(), dir)
	require.NoError(t, err)

	ctx := context.Background()
	model, err := fx.meta.GetState(ctx, store.StateKeyIndexModel)
	require.NoError(t, err)
	assert.Equal(t, fx.embedder.ModelName(), model)

	dim, err := fx.meta.GetState(ctx, store.StateKeyIndexDimension)
	require.NoError(t, err)
	assert.Equal(t, "256", dim)

	version, err := fx.meta.GetState(ctx, store.StateKeyCorpusVersion)
	require.NoError(t, err)
	assert.NotEmpty(t, version)

	ingestedAt, err := fx.meta.GetState(ctx, store.StateKeyIngestedAt)
	require.NoError(t, err)
	assert.NotEmpty(t, ingestedAt)
}

func TestIngestMissingDirectory(t *testing.T) {
	fx := newIngestFixture(t, nil)
	_, err := fx.ingestor.IngestDirectory(context.Background(), filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Equal(t, qaerrors.ErrCodeCorpusNotFound, qaerrors.GetCode(err))
}

func TestIngestEmptyDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not markdown"), 0o644))

	fx := newIngestFixture(t, nil)
	_, err := fx.ingestor.IngestDirectory(context.Background(), dir)
	require.Error(t, err)
	assert.Equal(t, qaerrors.ErrCodeCorpusNotFound, qaerrors.GetCode(err))
}

func TestIngestLocked(t *testing.T) {
	dir := writePolicies(t, map[string]string{
		"hr_policies.md": "# Leave\n\nAnnual leave is 25 days.",
	})

	lock := NewFileLock(dir)
	ok, err := lock.TryLock()
	require.NoError(t, err)
	require.True(t, ok)
	defer func() { _ = lock.Unlock() }()

	fx := newIngestFixture(t, nil)
	_, err = fx.ingestor.IngestDirectory(context.Background(), dir)
	require.Error(t, err)
	assert.Equal(t, qaerrors.ErrCodeIngestLocked, qaerrors.GetCode(err))
}

func TestIngestRetriesFailedFileOnce(t *testing.T) {
	dir := writePolicies(t, map[string]string{
		"hr_policies.md": "# Leave\n\nAnnual leave is 25 days.",
	})

	flaky := &flakyEmbedder{Embedder: embed.NewStaticEmbedder(), failCount: 1}
	fx := newIngestFixture(t, flaky)

	result, err := fx.ingestor.IngestDirectory(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 1, result.TotalChunks)
	assert.Equal(t, 2, flaky.calls)
}

func TestIngestFailsAfterRetry(t *testing.T) {
	dir := writePolicies(t, map[string]string{
		"hr_policies.md": "# Leave\n\nAnnual leave is 25 days.",
	})

	flaky := &flakyEmbedder{Embedder: embed.NewStaticEmbedder(), failCount: 10}
	fx := newIngestFixture(t, flaky)

	_, err := fx.ingestor.IngestDirectory(context.Background(), dir)
	require.Error(t, err)
	assert.Equal(t, qaerrors.ErrCodeIngestFailed, qaerrors.GetCode(err))
}

func TestIngestOverwritesDuplicateIDs(t *testing.T) {
	dir := writePolicies(t, map[string]string{
		"hr_policies.md": "# Leave\n\nAnnual leave is 25 days.",
	})

	fx := newIngestFixture(t, nil)
	ctx := context.Background()

	_, err := fx.ingestor.IngestDirectory(ctx, dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "hr_policies.md"),
		[]byte("# Leave\n\nAnnual leave is 30 days."), 0o644))

	_, err = fx.ingestor.IngestDirectory(ctx, dir)
	require.NoError(t, err)

	count, err := fx.meta.CountChunks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	chunk, err := fx.meta.GetChunk(ctx, "hr_policies_0")
	require.NoError(t, err)
	assert.Contains(t, chunk.Content, "30 days")
}

func TestResetClearsAllStores(t *testing.T) {
	dir := writePolicies(t, map[string]string{
		"hr_policies.md": "# Leave\n\nAnnual leave is 25 days.",
		"it_policies.md": "# VPN\n\nInstall the VPN client.",
	})

	fx := newIngestFixture(t, nil)
	ctx := context.Background()

	_, err := fx.ingestor.IngestDirectory(ctx, dir)
	require.NoError(t, err)
	require.Equal(t, 2, fx.vectors.Count())

	require.NoError(t, fx.ingestor.Reset(ctx))

	count, err := fx.meta.CountChunks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.Equal(t, 0, fx.vectors.Count())
	assert.Equal(t, 0, fx.bm25.Stats().DocumentCount)

	version, err := fx.meta.GetState(ctx, store.StateKeyCorpusVersion)
	require.NoError(t, err)
	assert.Empty(t, version)
}

func TestResetRemovesOrphanedChunks(t *testing.T) {
	dir := writePolicies(t, map[string]string{
		"hr_policies.md": "# Leave\n\nAnnual leave is 25 days.",
		"it_policies.md": "# VPN\n\nInstall the VPN client.",
	})

	fx := newIngestFixture(t, nil)
	ctx := context.Background()

	_, err := fx.ingestor.IngestDirectory(ctx, dir)
	require.NoError(t, err)

	// A deleted policy file leaves its chunks behind in the indexes.
	require.NoError(t, os.Remove(filepath.Join(dir, "it_policies.md")))

	require.NoError(t, fx.ingestor.Reset(ctx))
	_, err = fx.ingestor.IngestDirectory(ctx, dir)
	require.NoError(t, err)

	ids, err := fx.bm25.AllIDs()
	require.NoError(t, err)
	assert.Equal(t, []string{"hr_policies_0"}, ids)
	assert.Equal(t, []string{"hr_policies_0"}, fx.vectors.AllIDs())

	count, err := fx.meta.CountChunks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestIngestProgressCallback(t *testing.T) {
	dir := writePolicies(t, map[string]string{
		"hr_policies.md": "# Leave\n\nAnnual leave is 25 days.",
		"it_policies.md": "# VPN\n\nInstall the VPN client.",
	})

	var calls int
	fx := newIngestFixture(t, nil)
	ing := NewIngestor(fx.embedder, fx.vectors, fx.bm25, fx.meta, nil,
		WithProgress(func(stage string, done, total int) {
			calls++
			assert.Equal(t, "files", stage)
			assert.Equal(t, 2, total)
		}))

	_, err := ing.IngestDirectory(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestListMarkdownFilesSorted(t *testing.T) {
	dir := writePolicies(t, map[string]string{
		"it_policies.md": "x",
		"hr_policies.md": "y",
		"skip.txt":       "z",
	})

	files, err := listMarkdownFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"hr_policies.md", "it_policies.md"}, files)
}
