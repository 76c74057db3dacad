package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/onboardqa/internal/config"
	"github.com/Aman-CERP/onboardqa/internal/store"
)

func TestCollectStatus(t *testing.T) {
	// Given: a data dir with an index and a policies dir with two files
	cfg := config.NewConfig()
	cfg.Paths.DataDir = t.TempDir()
	cfg.Paths.PoliciesDir = t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(cfg.Paths.PoliciesDir, "hr_leave.md"), []byte("# Leave"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Paths.PoliciesDir, "it_vpn.md"), []byte("# VPN"), 0o644))

	ctx := context.Background()
	ingestedAt := time.Now().UTC().Truncate(time.Second)

	metadata, err := store.NewSQLiteMetadataStore(filepath.Join(cfg.Paths.DataDir, "metadata.db"))
	require.NoError(t, err)
	now := time.Now()
	require.NoError(t, metadata.SaveChunks(ctx, []*store.Chunk{
		{ID: "hr_leave_0", FilePath: "hr_leave.md", Department: store.DeptHR, Content: "Leave accrues monthly.", CreatedAt: now, UpdatedAt: now},
		{ID: "it_vpn_0", FilePath: "it_vpn.md", Department: store.DeptIT, Content: "Install the VPN client.", CreatedAt: now, UpdatedAt: now},
	}))
	require.NoError(t, metadata.SetState(ctx, store.StateKeyIngestedAt, ingestedAt.Format(time.RFC3339)))
	require.NoError(t, metadata.SetState(ctx, store.StateKeyIndexModel, "nomic-embed-text"))
	require.NoError(t, metadata.Close())

	// When: collecting status
	info, err := collectStatus(ctx, cfg)
	require.NoError(t, err)

	// Then: counts, state, and sizes are reported
	assert.Equal(t, cfg.Paths.PoliciesDir, info.CorpusPath)
	assert.Equal(t, 2, info.TotalFiles)
	assert.Equal(t, 2, info.TotalChunks)
	assert.Equal(t, 1, info.Departments[store.DeptHR])
	assert.Equal(t, 1, info.Departments[store.DeptIT])
	assert.True(t, ingestedAt.Equal(info.LastIndexed))
	assert.Equal(t, "nomic-embed-text", info.EmbedderModel)
	assert.Equal(t, "auto", info.EmbedderType)
	assert.Greater(t, info.MetadataSize, int64(0))
	assert.Equal(t, 0, info.CacheEntries)
}

func TestCountPolicyFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hr_leave.md"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "IT_VPN.MD"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden.md"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "archive.md"), 0o755))

	assert.Equal(t, 2, countPolicyFiles(dir))
	assert.Equal(t, 0, countPolicyFiles(filepath.Join(dir, "missing")))
}

func TestGetFileSizeAndDirSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.bin")
	require.NoError(t, os.WriteFile(path, make([]byte, 128), 0o644))

	assert.Equal(t, int64(128), getFileSize(path))
	assert.Equal(t, int64(0), getFileSize(filepath.Join(dir, "missing")))
	assert.Equal(t, int64(128), getDirSize(dir))
}
