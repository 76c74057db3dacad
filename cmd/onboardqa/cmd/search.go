package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/onboardqa/internal/config"
	"github.com/Aman-CERP/onboardqa/internal/logging"
	"github.com/Aman-CERP/onboardqa/internal/output"
	"github.com/Aman-CERP/onboardqa/internal/search"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	limit      int
	department string
	format     string // "text", "json"
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the policy corpus",
		Long: `Search the indexed policy corpus using hybrid retrieval.

Combines BM25 (keyword) and semantic (embedding) search with weighted
score fusion.

Examples:
  onboardqa search "vacation accrual"
  onboardqa search "vpn setup" --department IT --limit 3
  onboardqa search "expense deadline" --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return runSearch(cmd.Context(), cmd, query, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of results (default from config)")
	cmd.Flags().StringVarP(&opts.department, "department", "d", "", "Filter by department (HR, IT, Security, Finance)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts searchOptions) error {
	logCfg := logging.DefaultConfig()
	logCfg.WriteToStderr = false
	logger := slog.Default()
	if l, cleanup, err := logging.Setup(logCfg); err == nil {
		logger = l
		defer cleanup()
	}

	logger.Info("search_started", slog.String("query", query), slog.Int("limit", opts.limit))
	out := output.New(cmd.OutOrStdout())

	cfg, err := config.Load(".")
	if err != nil {
		cfg = config.NewConfig()
	}

	p, err := openPipeline(ctx, cfg, pipelineOptions{requireIndex: true})
	if err != nil {
		return err
	}
	defer p.Close()

	engine, err := p.newSearchEngine(logger)
	if err != nil {
		return fmt.Errorf("failed to create search engine: %w", err)
	}

	resp, err := engine.Query(ctx, query, search.SearchOptions{
		Department: opts.department,
		Limit:      opts.limit,
	})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	logger.Info("search_complete",
		slog.Int("results", len(resp.Results)),
		slog.Bool("cache_hit", resp.CacheHit),
		slog.Int64("semantic_ms", resp.SemanticTime.Milliseconds()),
		slog.Int64("bm25_ms", resp.BM25Time.Milliseconds()))

	if len(resp.Results) == 0 {
		out.Status("", fmt.Sprintf("No results found for %q", query))
		return nil
	}

	switch opts.format {
	case "json":
		return formatJSON(cmd, resp)
	default:
		return formatText(out, query, resp)
	}
}

// formatText outputs results in human-readable format.
func formatText(out *output.Writer, query string, resp *search.Response) error {
	results := resp.Results
	out.Statusf("🔍", "Found %d results for %q:", len(results), query)
	out.Newline()

	for i, r := range results {
		if r.Chunk == nil {
			continue
		}

		location := r.Chunk.FilePath
		if r.Chunk.Section != "" {
			location = fmt.Sprintf("%s § %s", r.Chunk.FilePath, r.Chunk.Section)
		}

		out.Statusf("", "%d. %s (score: %.2f, %s)", i+1, location, r.Score, r.Chunk.Department)

		// Show snippet (first 3 lines)
		snippet := getSnippet(r.Chunk.Content, 3)
		for _, line := range snippet {
			out.Status("", "   "+line)
		}
		out.Newline()
	}

	if resp.CacheHit {
		out.Statusf("", "Served from cache in %dms", resp.TotalTime.Milliseconds())
	} else {
		out.Statusf("", "Took %dms (semantic %dms, keyword %dms)",
			resp.TotalTime.Milliseconds(),
			resp.SemanticTime.Milliseconds(),
			resp.BM25Time.Milliseconds())
	}

	return nil
}

// formatJSON outputs results in JSON format.
func formatJSON(cmd *cobra.Command, resp *search.Response) error {
	type jsonResult struct {
		Document   string  `json:"document"`
		Section    string  `json:"section,omitempty"`
		Department string  `json:"department"`
		Score      float64 `json:"score"`
		Content    string  `json:"content"`
	}
	type jsonResponse struct {
		Results    []jsonResult `json:"results"`
		CacheHit   bool         `json:"cache_hit"`
		SemanticMS int64        `json:"semantic_time_ms"`
		BM25MS     int64        `json:"bm25_time_ms"`
		TotalMS    int64        `json:"total_time_ms"`
	}

	out := jsonResponse{
		Results:    make([]jsonResult, 0, len(resp.Results)),
		CacheHit:   resp.CacheHit,
		SemanticMS: resp.SemanticTime.Milliseconds(),
		BM25MS:     resp.BM25Time.Milliseconds(),
		TotalMS:    resp.TotalTime.Milliseconds(),
	}
	for _, r := range resp.Results {
		if r.Chunk == nil {
			continue
		}
		out.Results = append(out.Results, jsonResult{
			Document:   r.Chunk.FilePath,
			Section:    r.Chunk.Section,
			Department: r.Chunk.Department,
			Score:      r.Score,
			Content:    r.Chunk.Content,
		})
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// getSnippet returns the first n lines of content.
func getSnippet(content string, n int) []string {
	lines := strings.Split(content, "\n")
	if len(lines) > n {
		lines = lines[:n]
	}
	// Trim trailing empty lines
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
