// Package cmd provides the CLI commands for onboardqa.
package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/onboardqa/internal/config"
	"github.com/Aman-CERP/onboardqa/internal/logging"
	"github.com/Aman-CERP/onboardqa/internal/preflight"
	"github.com/Aman-CERP/onboardqa/internal/profiling"
	"github.com/Aman-CERP/onboardqa/pkg/version"
)

// Profiling flags.
var (
	profileCPU   string
	profileMem   string
	profileTrace string
	profiler     = profiling.NewProfiler()
	cpuCleanup   func()
	traceCleanup func()
)

// Debug logging flag.
var (
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the onboardqa CLI.
func NewRootCmd() *cobra.Command {
	var reingest bool

	cmd := &cobra.Command{
		Use:   "onboardqa",
		Short: "Onboarding Q&A service over company policy documents",
		Long: `OnboardQA answers new-hire questions from a markdown policy corpus
using hybrid retrieval (BM25 + semantic) and per-department agents.

Running 'onboardqa' with no arguments ingests the corpus if needed and
starts the MCP server on stdio.`,
		Version: version.Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return cmd.Help()
			}
			return runSmartDefault(cmd.Context(), cmd, reingest)
		},
	}

	cmd.SetVersionTemplate("onboardqa version {{.Version}}\n")

	cmd.Flags().BoolVar(&reingest, "reingest", false, "Force re-ingest even if an index exists")

	cmd.PersistentFlags().StringVar(&profileCPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&profileMem, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&profileTrace, "profile-trace", "", "Write execution trace to file")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to the data directory")

	cmd.PersistentPreRunE = startProfilingAndLogging
	cmd.PersistentPostRunE = stopProfilingAndLogging

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newIngestCmd())
	cmd.AddCommand(newAskCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startProfilingAndLogging starts CPU/trace profiling and debug logging if flags are set.
func startProfilingAndLogging(_ *cobra.Command, _ []string) error {
	var err error

	if debugMode {
		logger, cleanup, err := logging.Setup(logging.DebugConfig())
		if err != nil {
			return fmt.Errorf("failed to setup debug logging: %w", err)
		}
		loggingCleanup = cleanup
		slog.SetDefault(logger)
		slog.Info("Debug logging enabled",
			slog.String("log_file", logging.DefaultLogPath()))
	}

	if profileCPU != "" {
		cpuCleanup, err = profiler.StartCPU(profileCPU)
		if err != nil {
			return fmt.Errorf("failed to start CPU profile: %w", err)
		}
	}

	if profileTrace != "" {
		traceCleanup, err = profiler.StartTrace(profileTrace)
		if err != nil {
			if cpuCleanup != nil {
				cpuCleanup()
			}
			return fmt.Errorf("failed to start trace: %w", err)
		}
	}

	return nil
}

// stopProfilingAndLogging stops profiling and logging, writes memory profile if requested.
func stopProfilingAndLogging(_ *cobra.Command, _ []string) error {
	if cpuCleanup != nil {
		cpuCleanup()
		cpuCleanup = nil
	}

	if traceCleanup != nil {
		traceCleanup()
		traceCleanup = nil
	}

	if profileMem != "" {
		if err := profiler.WriteHeap(profileMem); err != nil {
			return fmt.Errorf("failed to write memory profile: %w", err)
		}
	}

	if loggingCleanup != nil {
		slog.Info("Debug logging stopped")
		loggingCleanup()
		loggingCleanup = nil
	}

	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// runSmartDefault ingests the corpus when no index exists, then starts
// the MCP server on stdio. The MCP protocol owns stdout, so nothing is
// printed before the server starts; diagnostics go to the log file.
func runSmartDefault(ctx context.Context, cmd *cobra.Command, reingest bool) error {
	cfg, err := config.Load(".")
	if err != nil {
		cfg = config.NewConfig()
	}

	// Run preflight checks silently; results go to the log file.
	if preflight.NeedsCheck(cfg.Paths.DataDir) {
		checker := preflight.New(preflight.WithOutput(io.Discard))
		results := checker.RunAll(ctx, cfg)

		if checker.HasCriticalFailures(results) {
			slog.Error("System check failed - run 'onboardqa doctor' for diagnostics")
			return fmt.Errorf("system check failed")
		}

		if err := preflight.MarkPassed(cfg.Paths.DataDir); err != nil {
			slog.Debug("Failed to record preflight result", slog.String("error", err.Error()))
		}
	}

	metadataPath := filepath.Join(cfg.Paths.DataDir, "metadata.db")
	needsIngest := reingest || !fileExists(metadataPath)

	if needsIngest {
		slog.Info("Index not found, ingesting corpus",
			slog.String("policies", cfg.Paths.PoliciesDir))

		if err := runIngestInternal(ctx, cmd, cfg); err != nil {
			slog.Error("Ingest failed", slog.String("error", err.Error()))
			return fmt.Errorf("ingest failed: %w", err)
		}
		slog.Info("Ingest complete")
	} else {
		slog.Debug("Index found", slog.String("path", metadataPath))
	}

	return runServe(ctx, cfg, "stdio")
}

// fileExists checks if a file exists.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// runIngestInternal runs the ingest command logic without creating a new command.
func runIngestInternal(ctx context.Context, cmd *cobra.Command, cfg *config.Config) error {
	return runIngestWithOptions(ctx, cmd, cfg, ingestOptions{noTUI: true, quiet: true})
}
