package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/onboardqa/internal/config"
	"github.com/Aman-CERP/onboardqa/internal/ingest"
	"github.com/Aman-CERP/onboardqa/internal/logging"
	"github.com/Aman-CERP/onboardqa/internal/mcp"
	"github.com/Aman-CERP/onboardqa/internal/telemetry"
	"github.com/Aman-CERP/onboardqa/internal/watcher"
)

func newServeCmd() *cobra.Command {
	var transport string
	var watch bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the Model Context Protocol server.

The server exposes the ask, search, ingest_status and stats tools plus
policy documents as resources. With --watch enabled, changes to the
policies directory trigger an automatic re-ingest.

stdout is reserved for MCP JSON-RPC; all logging goes to the log file.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := config.Load(".")
			if err != nil {
				cfg = config.NewConfig()
			}
			if cmd.Flags().Changed("watch") {
				cfg.Watcher.Enabled = watch
			}
			if transport != "" {
				cfg.Server.Transport = transport
			}
			return runServe(ctx, cfg, cfg.Server.Transport)
		},
	}

	cmd.Flags().StringVarP(&transport, "transport", "t", "", "Transport: stdio (default from config)")
	cmd.Flags().BoolVar(&watch, "watch", false, "Re-ingest when policy files change")

	return cmd
}

// runServe wires the full pipeline and blocks serving MCP until the
// context is cancelled.
func runServe(ctx context.Context, cfg *config.Config, transport string) error {
	// stdout carries JSON-RPC frames; logging must never touch it.
	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Server.LogLevel
	logCfg.WriteToStderr = false
	logger := slog.Default()
	if l, cleanup, err := logging.Setup(logCfg); err == nil {
		logger = l
		slog.SetDefault(l)
		defer cleanup()
	}

	svc, err := buildService(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	srv, err := mcp.NewServer(svc.Orchestrator, svc.Engine, svc.Metadata, svc.Embedder, cfg, cfg.Paths.PoliciesDir)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}
	defer func() { _ = srv.Close() }()

	metrics, err := setupTelemetry(svc)
	if err != nil {
		logger.Warn("telemetry unavailable", slog.String("error", err.Error()))
	} else {
		srv.SetMetrics(metrics)
		defer func() { _ = metrics.Close() }()
	}

	if err := srv.RegisterResources(ctx); err != nil {
		logger.Warn("policy resources unavailable", slog.String("error", err.Error()))
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Watcher.Enabled {
		reindexer, w, err := setupWatcher(cfg, svc, logger)
		if err != nil {
			logger.Warn("watcher unavailable", slog.String("error", err.Error()))
		} else {
			g.Go(func() error {
				defer func() { _ = w.Stop() }()
				return w.Start(gctx, cfg.Paths.PoliciesDir)
			})
			g.Go(func() error {
				err := reindexer.Run(gctx)
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})
			logger.Info("watcher_started", slog.String("dir", cfg.Paths.PoliciesDir))
		}
	}

	g.Go(func() error {
		logger.Info("mcp_server_started", slog.String("transport", transport))
		return srv.Serve(gctx, transport)
	})

	err = g.Wait()

	m := svc.Engine.Metrics()
	logger.Info("search_metrics",
		slog.Int64("queries", m.Queries),
		slog.Int64("cache_hits", m.CacheHits),
		slog.Float64("cache_hit_rate", m.CacheHitRate),
		slog.Float64("avg_semantic_ms", m.AvgSemanticMS),
		slog.Float64("avg_bm25_ms", m.AvgBM25MS),
		slog.Float64("avg_total_ms", m.AvgTotalMS))

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// setupTelemetry creates the metrics collector on the shared metadata
// database so stats survive restarts.
func setupTelemetry(svc *qaService) (*telemetry.Metrics, error) {
	db := svc.Metadata.DB()
	if err := telemetry.InitTelemetrySchema(db); err != nil {
		return nil, err
	}
	metricsStore, err := telemetry.NewSQLiteMetricsStore(db)
	if err != nil {
		return nil, err
	}
	return telemetry.NewWithConfig(metricsStore, telemetry.DefaultConfig()), nil
}

// setupWatcher wires the policies-directory watcher to the ingestor
// and response cache.
func setupWatcher(cfg *config.Config, svc *qaService, logger *slog.Logger) (*watcher.Reindexer, watcher.Watcher, error) {
	opts := watcher.DefaultOptions()
	if d, err := time.ParseDuration(cfg.Watcher.Debounce); err == nil && d > 0 {
		opts.DebounceWindow = d
	}
	if d, err := time.ParseDuration(cfg.Watcher.PollPeriod); err == nil && d > 0 {
		opts.PollInterval = d
	}

	w, err := watcher.NewHybridWatcher(opts)
	if err != nil {
		return nil, nil, err
	}

	ingestor := ingest.NewIngestor(svc.Embedder, svc.Vectors, svc.BM25, svc.Metadata, logger)

	var invalidator watcher.Invalidator
	if svc.Cache != nil {
		invalidator = svc.Cache
	}
	reindexer := watcher.NewReindexer(w, &savingIngester{ingestor: ingestor, svc: svc}, invalidator, cfg.Paths.PoliciesDir, logger)
	return reindexer, w, nil
}

// savingIngester persists the vector index and drops the engine's
// query cache after every watcher-triggered re-ingest.
type savingIngester struct {
	ingestor *ingest.Ingestor
	svc      *qaService
}

func (s *savingIngester) IngestDirectory(ctx context.Context, path string) (*ingest.Result, error) {
	result, err := s.ingestor.IngestDirectory(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := s.svc.SaveVectors(); err != nil {
		return nil, err
	}
	s.svc.Engine.InvalidateCache()
	return result, nil
}
