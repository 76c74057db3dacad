package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/onboardqa/internal/cache"
	"github.com/Aman-CERP/onboardqa/internal/config"
	"github.com/Aman-CERP/onboardqa/internal/ingest"
	"github.com/Aman-CERP/onboardqa/internal/logging"
	"github.com/Aman-CERP/onboardqa/internal/ui"
)

// ingestOptions holds CLI flags for ingest.
type ingestOptions struct {
	noTUI    bool
	force    bool
	policies string
	quiet    bool // suppress renderer entirely (smart default before MCP stdio)
}

func newIngestCmd() *cobra.Command {
	var opts ingestOptions

	cmd := &cobra.Command{
		Use:   "ingest [path]",
		Short: "Ingest the policy corpus into the search index",
		Long: `Chunk every markdown policy document, embed the chunks, and build
the BM25 and vector indexes.

The path argument overrides the configured policies directory.

Examples:
  onboardqa ingest
  onboardqa ingest ./data/policies
  onboardqa ingest --force --no-tui`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := config.Load(".")
			if err != nil {
				cfg = config.NewConfig()
			}
			if len(args) > 0 {
				opts.policies = args[0]
			}
			return runIngestWithOptions(ctx, cmd, cfg, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.noTUI, "no-tui", false, "Disable the progress TUI, use plain output")
	cmd.Flags().BoolVar(&opts.force, "force", false, "Re-ingest even if the corpus is unchanged")

	return cmd
}

func runIngestWithOptions(ctx context.Context, cmd *cobra.Command, cfg *config.Config, opts ingestOptions) error {
	// File-only logging: the TUI owns the terminal during ingest.
	logCfg := logging.DefaultConfig()
	logCfg.WriteToStderr = false
	if logger, cleanup, err := logging.Setup(logCfg); err == nil {
		slog.SetDefault(logger)
		defer cleanup()
	}

	policiesDir := cfg.Paths.PoliciesDir
	if opts.policies != "" {
		policiesDir = opts.policies
	}

	info, err := os.Stat(policiesDir)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("policies directory not found: %s", policiesDir)
	}

	if err := os.MkdirAll(cfg.Paths.DataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	slog.Info("ingest_started",
		slog.String("policies", policiesDir),
		slog.String("data_dir", cfg.Paths.DataDir),
		slog.Bool("force", opts.force))

	var renderer ui.Renderer
	if !opts.quiet {
		uiCfg := ui.NewConfig(cmd.OutOrStdout(),
			ui.WithForcePlain(opts.noTUI),
			ui.WithPoliciesDir(policiesDir))
		renderer = ui.NewRenderer(uiCfg)
		if err := renderer.Start(ctx); err != nil {
			return fmt.Errorf("failed to start renderer: %w", err)
		}
		defer func() { _ = renderer.Stop() }()
	}

	deps, err := openPipeline(ctx, cfg, pipelineOptions{createVectors: true})
	if err != nil {
		return err
	}
	defer deps.Close()

	var ingestOpts []ingest.Option
	if renderer != nil {
		ingestOpts = append(ingestOpts, ingest.WithProgress(func(stage string, done, total int) {
			renderer.UpdateProgress(ui.ProgressEvent{
				Stage:   ui.StageIndexing,
				Current: done,
				Total:   total,
				Message: stage,
			})
		}))
	}

	ingestor := ingest.NewIngestor(deps.Embedder, deps.Vectors, deps.BM25, deps.Metadata, slog.Default(), ingestOpts...)

	if opts.force {
		if err := ingestor.Reset(ctx); err != nil {
			return fmt.Errorf("failed to reset index: %w", err)
		}
		invalidateResponseCache(ctx, cfg)
	}

	start := time.Now()
	result, err := ingestor.IngestDirectory(ctx, policiesDir)
	if err != nil {
		if renderer != nil {
			renderer.AddError(ui.ErrorEvent{Err: err})
			renderer.Complete(ui.CompletionStats{Duration: time.Since(start), Errors: 1})
		}
		return fmt.Errorf("ingest failed: %w", err)
	}

	if err := deps.SaveVectors(); err != nil {
		return fmt.Errorf("failed to persist vector index: %w", err)
	}

	slog.Info("ingest_complete",
		slog.Int("files", len(result.Files)),
		slog.Int("chunks", result.TotalChunks),
		slog.Duration("duration", result.Duration))

	if renderer != nil {
		renderer.Complete(ui.CompletionStats{
			Files:    len(result.Files),
			Chunks:   result.TotalChunks,
			Duration: result.Duration,
			Embedder: ui.EmbedderInfo{
				Backend:    string(deps.EmbedderProvider),
				Model:      deps.Embedder.ModelName(),
				Dimensions: deps.Embedder.Dimensions(),
			},
		})
	}

	return nil
}

// invalidateResponseCache drops cached answers after a forced rebuild.
// The cache is an optimization, so failures only log.
func invalidateResponseCache(ctx context.Context, cfg *config.Config) {
	path := filepath.Join(cfg.Paths.DataDir, "cache.db")
	if _, err := os.Stat(path); err != nil {
		return
	}

	c, err := cache.NewStore(path, nil, cache.Config{}, slog.Default())
	if err != nil {
		slog.Warn("cache_invalidate_open_failed", slog.String("error", err.Error()))
		return
	}
	defer func() { _ = c.Close() }()

	if err := c.Invalidate(ctx, ""); err != nil {
		slog.Warn("cache_invalidate_failed", slog.String("error", err.Error()))
	}
}
