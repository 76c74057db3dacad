package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/onboardqa/internal/cache"
	"github.com/Aman-CERP/onboardqa/internal/config"
	"github.com/Aman-CERP/onboardqa/internal/store"
	"github.com/Aman-CERP/onboardqa/internal/ui"
)

func newStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index health and status",
		Long: `Display information about the current index including:
  - Number of ingested policy files and chunks
  - Per-department chunk counts
  - Last ingest time
  - Storage sizes (metadata, BM25, vectors)
  - Embedder configuration
  - Response cache entries`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context(), cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runStatus(ctx context.Context, cmd *cobra.Command, jsonOutput bool) error {
	cfg, err := config.Load(".")
	if err != nil {
		cfg = config.NewConfig()
	}

	metadataPath := filepath.Join(cfg.Paths.DataDir, "metadata.db")
	if !fileExists(metadataPath) {
		return fmt.Errorf("no index found in %s\nRun 'onboardqa ingest' to create one", cfg.Paths.DataDir)
	}

	info, err := collectStatus(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to collect status: %w", err)
	}

	renderer := ui.NewStatusRenderer(cmd.OutOrStdout(), ui.DetectNoColor())
	if jsonOutput {
		return renderer.RenderJSON(info)
	}
	return renderer.Render(info)
}

func collectStatus(ctx context.Context, cfg *config.Config) (ui.StatusInfo, error) {
	info := ui.StatusInfo{
		CorpusPath:    cfg.Paths.PoliciesDir,
		WatcherStatus: "n/a",
	}

	metadataPath := filepath.Join(cfg.Paths.DataDir, "metadata.db")
	metadata, err := store.NewSQLiteMetadataStore(metadataPath)
	if err != nil {
		return info, fmt.Errorf("failed to open metadata store: %w", err)
	}
	defer func() { _ = metadata.Close() }()

	if count, err := metadata.CountChunks(ctx); err == nil {
		info.TotalChunks = count
	}
	if byDept, err := metadata.CountChunksByDepartment(ctx); err == nil {
		info.Departments = byDept
	}
	if ingestedAt, err := metadata.GetState(ctx, store.StateKeyIngestedAt); err == nil && ingestedAt != "" {
		if ts, err := time.Parse(time.RFC3339, ingestedAt); err == nil {
			info.LastIndexed = ts
		}
	}
	info.TotalFiles = countPolicyFiles(cfg.Paths.PoliciesDir)

	info.MetadataSize = getFileSize(metadataPath)
	info.BM25Size = getDirSize(filepath.Join(cfg.Paths.DataDir, "bm25.bleve"))
	info.VectorSize = getFileSize(filepath.Join(cfg.Paths.DataDir, "vectors.hnsw"))
	info.TotalSize = info.MetadataSize + info.BM25Size + info.VectorSize

	info.EmbedderType = cfg.Embeddings.Provider
	if info.EmbedderType == "" {
		info.EmbedderType = "auto"
	}
	info.EmbedderStatus = "ready"
	if model, err := metadata.GetState(ctx, store.StateKeyIndexModel); err == nil && model != "" {
		info.EmbedderModel = model
	} else {
		info.EmbedderModel = cfg.Embeddings.Model
	}

	info.CacheEntries = countCacheEntries(ctx, cfg)

	return info, nil
}

// countCacheEntries opens the response cache read-only. A missing or
// unreadable cache reports zero.
func countCacheEntries(ctx context.Context, cfg *config.Config) int {
	cachePath := filepath.Join(cfg.Paths.DataDir, "cache.db")
	if !fileExists(cachePath) {
		return 0
	}
	c, err := cache.NewStore(cachePath, nil, cache.DefaultConfig(), nil)
	if err != nil {
		return 0
	}
	defer func() { _ = c.Close() }()

	n, err := c.Len(ctx)
	if err != nil {
		return 0
	}
	return n
}

// countPolicyFiles counts markdown files in the policies directory.
func countPolicyFiles(dir string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	count := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if strings.EqualFold(filepath.Ext(name), ".md") {
			count++
		}
	}
	return count
}

// getFileSize returns the size of a file in bytes.
func getFileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// getDirSize returns the total size of all files in a directory.
func getDirSize(path string) int64 {
	var size int64

	_ = filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})

	return size
}
