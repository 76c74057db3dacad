package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/onboardqa/internal/config"
	"github.com/Aman-CERP/onboardqa/internal/store"
	"github.com/Aman-CERP/onboardqa/internal/telemetry"
)

func newStatsCmd() *cobra.Command {
	var jsonOutput bool
	var days int

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show query statistics and telemetry",
		Long: `Display query telemetry persisted by the MCP server:
  - Per-department and per-language query counts
  - Top query terms
  - Zero-result queries
  - Latency distribution`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(cmd.Context(), cmd, jsonOutput, days)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().IntVar(&days, "days", 7, "Number of days to include")

	return cmd
}

// StatsOutput is the JSON output format for query stats.
type StatsOutput struct {
	DepartmentCounts    map[string]int64 `json:"department_counts"`
	LanguageCounts      map[string]int64 `json:"language_counts"`
	TopTerms            []StatsTermCount `json:"top_terms"`
	ZeroResultQueries   []string         `json:"zero_result_queries"`
	LatencyDistribution map[string]int64 `json:"latency_distribution"`
}

// StatsTermCount represents a term and its frequency.
type StatsTermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

func runStats(ctx context.Context, cmd *cobra.Command, jsonOutput bool, days int) error {
	cfg, err := config.Load(".")
	if err != nil {
		cfg = config.NewConfig()
	}

	metadataPath := filepath.Join(cfg.Paths.DataDir, "metadata.db")
	if !fileExists(metadataPath) {
		return fmt.Errorf("no index found in %s\nRun 'onboardqa ingest' to create one", cfg.Paths.DataDir)
	}

	metadata, err := store.NewSQLiteMetadataStore(metadataPath)
	if err != nil {
		return fmt.Errorf("failed to open metadata store: %w", err)
	}
	defer func() { _ = metadata.Close() }()

	// Telemetry tables share the metadata database.
	db := metadata.DB()
	if err := telemetry.InitTelemetrySchema(db); err != nil {
		return fmt.Errorf("failed to init telemetry schema: %w", err)
	}
	metricsStore, err := telemetry.NewSQLiteMetricsStore(db)
	if err != nil {
		return fmt.Errorf("failed to open metrics store: %w", err)
	}

	output, err := getQueryStats(metricsStore, days)
	if err != nil {
		return fmt.Errorf("failed to get query stats: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(output)
	}

	return printStatsFormatted(cmd, output)
}

func getQueryStats(metricsStore *telemetry.SQLiteMetricsStore, days int) (*StatsOutput, error) {
	if days <= 0 {
		days = 7
	}
	to := time.Now().Format("2006-01-02")
	from := time.Now().AddDate(0, 0, -days).Format("2006-01-02")

	deptCounts, err := metricsStore.GetDepartmentCounts(from, to)
	if err != nil {
		return nil, fmt.Errorf("get department counts: %w", err)
	}

	langCounts, err := metricsStore.GetLanguageCounts(from, to)
	if err != nil {
		return nil, fmt.Errorf("get language counts: %w", err)
	}

	topTerms, err := metricsStore.GetTopTerms(10)
	if err != nil {
		return nil, fmt.Errorf("get top terms: %w", err)
	}

	zeroResults, err := metricsStore.GetZeroResultQueries(10)
	if err != nil {
		return nil, fmt.Errorf("get zero-result queries: %w", err)
	}

	latency, err := metricsStore.GetLatencyCounts(from, to)
	if err != nil {
		return nil, fmt.Errorf("get latency counts: %w", err)
	}

	output := &StatsOutput{
		DepartmentCounts:    deptCounts,
		LanguageCounts:      langCounts,
		TopTerms:            make([]StatsTermCount, 0, len(topTerms)),
		ZeroResultQueries:   zeroResults,
		LatencyDistribution: make(map[string]int64, len(latency)),
	}

	for _, tc := range topTerms {
		output.TopTerms = append(output.TopTerms, StatsTermCount{Term: tc.Term, Count: tc.Count})
	}
	for bucket, count := range latency {
		output.LatencyDistribution[string(bucket)] = count
	}

	return output, nil
}

func printStatsFormatted(cmd *cobra.Command, output *StatsOutput) error {
	w := cmd.OutOrStdout()

	fmt.Fprintln(w, "Query Statistics")
	fmt.Fprintln(w, "================")
	fmt.Fprintln(w)

	if len(output.DepartmentCounts) > 0 {
		fmt.Fprintln(w, "Queries by Department:")
		for dept, count := range output.DepartmentCounts {
			fmt.Fprintf(w, "  %s: %d\n", dept, count)
		}
		fmt.Fprintln(w)
	} else {
		fmt.Fprintln(w, "Queries by Department: (none recorded yet)")
		fmt.Fprintln(w)
	}

	if len(output.LanguageCounts) > 0 {
		fmt.Fprintln(w, "Queries by Language:")
		for lang, count := range output.LanguageCounts {
			fmt.Fprintf(w, "  %s: %d\n", lang, count)
		}
		fmt.Fprintln(w)
	}

	if len(output.TopTerms) > 0 {
		fmt.Fprintln(w, "Top Query Terms:")
		for i, tc := range output.TopTerms {
			fmt.Fprintf(w, "  %d. %s (%d)\n", i+1, tc.Term, tc.Count)
		}
		fmt.Fprintln(w)
	}

	if len(output.ZeroResultQueries) > 0 {
		fmt.Fprintln(w, "Recent Zero-Result Queries:")
		for _, q := range output.ZeroResultQueries {
			fmt.Fprintf(w, "  - %q\n", q)
		}
		fmt.Fprintln(w)
	} else {
		fmt.Fprintln(w, "Recent Zero-Result Queries: (none)")
		fmt.Fprintln(w)
	}

	if len(output.LatencyDistribution) > 0 {
		fmt.Fprintln(w, "Latency Distribution:")
		buckets := []string{"p10", "p50", "p100", "p500", "p1000"}
		labels := map[string]string{
			"p10":   "<10ms",
			"p50":   "10-50ms",
			"p100":  "50-100ms",
			"p500":  "100-500ms",
			"p1000": ">=500ms",
		}
		for _, b := range buckets {
			if count, ok := output.LatencyDistribution[b]; ok {
				fmt.Fprintf(w, "  %s: %d\n", labels[b], count)
			}
		}
	}

	return nil
}
