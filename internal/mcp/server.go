package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/onboardqa/internal/config"
	"github.com/Aman-CERP/onboardqa/internal/embed"
	"github.com/Aman-CERP/onboardqa/internal/orchestrate"
	"github.com/Aman-CERP/onboardqa/internal/search"
	"github.com/Aman-CERP/onboardqa/internal/store"
	"github.com/Aman-CERP/onboardqa/internal/telemetry"
	"github.com/Aman-CERP/onboardqa/internal/validation"
	"github.com/Aman-CERP/onboardqa/pkg/version"
)

// Answerer runs the full QA pipeline for one question.
type Answerer interface {
	Process(ctx context.Context, req orchestrate.Request) *orchestrate.Response
}

// Searcher executes raw hybrid retrieval without answer generation.
type Searcher interface {
	Search(ctx context.Context, query string, opts search.SearchOptions) ([]*search.SearchResult, error)
	Stats(ctx context.Context) *search.EngineStats
}

// Server is the MCP server for onboardqa.
// It bridges AI clients with the onboarding QA pipeline.
type Server struct {
	mcp      *mcp.Server
	answerer Answerer
	searcher Searcher
	metadata store.MetadataStore
	embedder embed.Embedder // Embedder for capability signaling
	config   *config.Config
	logger   *slog.Logger

	// Policies directory for corpus inspection and document resources
	policiesDir string

	// Query telemetry (optional, set via SetMetrics)
	metrics *telemetry.Metrics

	mu sync.RWMutex
}

// ToolInfo contains information about a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

// ResourceInfo contains information about a resource.
type ResourceInfo struct {
	URI      string
	Name     string
	MIMEType string
}

// NewServer creates a new MCP server.
// The embedder parameter is used for capability signaling - AI clients can
// query the actual embedder state to judge semantic retrieval quality.
// policiesDir is used for corpus inspection and policy document resources.
func NewServer(answerer Answerer, searcher Searcher, metadata store.MetadataStore, embedder embed.Embedder, cfg *config.Config, policiesDir string) (*Server, error) {
	if answerer == nil {
		return nil, errors.New("answerer is required")
	}
	if searcher == nil {
		return nil, errors.New("searcher is required")
	}
	if metadata == nil {
		return nil, errors.New("metadata store is required")
	}
	if cfg == nil {
		cfg = config.NewConfig()
	}

	s := &Server{
		answerer:    answerer,
		searcher:    searcher,
		metadata:    metadata,
		embedder:    embedder, // May be nil - will report as unavailable
		config:      cfg,
		policiesDir: policiesDir,
		logger:      slog.Default(),
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "onboardqa",
			Version: version.Version,
		},
		nil, // ServerOptions - capabilities are inferred from registered tools/resources
	)

	s.registerTools()

	return s, nil
}

// SetMetrics sets the query metrics collector for telemetry.
// When set, ask calls are recorded and a query_metrics resource is registered.
func (s *Server) SetMetrics(m *telemetry.Metrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = m

	if m != nil {
		s.registerQueryMetricsResource()
	}
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Info returns the server name and version.
func (s *Server) Info() (name, ver string) {
	return "onboardqa", version.Version
}

// Capabilities returns whether tools and resources are enabled.
func (s *Server) Capabilities() (hasTools, hasResources bool) {
	return true, true
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	return []ToolInfo{
		{
			Name:        "ask",
			Description: "Answer an onboarding question using company policies. Routes to the right department, retrieves relevant policy text, and returns a sourced answer with confidence and escalation info.",
		},
		{
			Name:        "search",
			Description: "Raw hybrid retrieval over the policy corpus. Returns ranked policy chunks without answer generation. Use when you want the policy text itself rather than a synthesized answer.",
		},
		{
			Name:        "ingest_status",
			Description: "Check the policy corpus and index state: files on disk, chunks indexed per department, and which embedder is active. Use before asking to verify the corpus is ingested.",
		},
		{
			Name:        "stats",
			Description: "Query telemetry for the current session: per-department and per-language counts, cache hit rate, escalations, zero-result queries, and latency distribution.",
		},
	}
}

// CallTool invokes a tool by name with the given arguments.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch name {
	case "ask":
		return s.handleAskTool(ctx, args)
	case "search":
		return s.handleSearchTool(ctx, args)
	case "ingest_status":
		return s.handleIngestStatusTool(ctx)
	case "stats":
		return s.handleStatsTool(ctx)
	default:
		return nil, NewMethodNotFoundError(name)
	}
}

// handleAskTool handles the ask tool invocation.
// Returns markdown-formatted answer with sources and routing info.
func (s *Server) handleAskTool(ctx context.Context, args map[string]any) (string, error) {
	start := time.Now()
	requestID := generateRequestID()

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return "", NewInvalidParamsError("query parameter is required and must be a non-empty string")
	}
	if err := validation.ValidateQuery(query); err != nil {
		return "", MapError(err)
	}

	req := orchestrate.Request{
		Message: query,
	}
	if id, ok := args["user_id"].(float64); ok {
		req.UserID = int64(id)
	}
	if name, ok := args["user_name"].(string); ok {
		req.Profile.Name = name
	}
	if role, ok := args["user_role"].(string); ok {
		req.Profile.Role = role
	}
	if dept, ok := args["user_department"].(string); ok {
		req.Profile.Department = dept
	}

	s.logger.Info("ask started",
		slog.String("request_id", requestID),
		slog.Int64("user_id", req.UserID))

	resp := s.answerer.Process(ctx, req)
	duration := time.Since(start)

	s.recordQuery(query, resp)

	s.logger.Info("ask completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", duration),
		slog.String("department", resp.Routing.FinalDepartment),
		slog.Int("source_count", len(resp.Sources)))

	return FormatAnswer(resp), nil
}

// handleSearchTool handles the search tool invocation.
// Returns markdown-formatted retrieval results.
func (s *Server) handleSearchTool(ctx context.Context, args map[string]any) (string, error) {
	start := time.Now()
	requestID := generateRequestID()

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return "", NewInvalidParamsError("query parameter is required and must be a non-empty string")
	}
	if err := validation.ValidateQuery(query); err != nil {
		return "", MapError(err)
	}

	limit := clampLimit(0, search.DefaultTopK, 1, 20)
	if l, ok := args["limit"].(float64); ok {
		limit = clampLimit(int(l), search.DefaultTopK, 1, 20)
	}

	opts := search.SearchOptions{
		Limit: limit,
	}
	if dept, ok := args["department"].(string); ok {
		opts.Department = dept
	}

	s.logger.Info("search started",
		slog.String("request_id", requestID),
		slog.String("department", opts.Department),
		slog.Int("limit", limit))

	results, err := s.searcher.Search(ctx, query, opts)
	duration := time.Since(start)

	if err != nil {
		s.logger.Error("search failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return "", MapError(err)
	}

	s.logger.Info("search completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", duration),
		slog.Int("result_count", len(results)))

	return FormatSearchResults(query, results), nil
}

// handleIngestStatusTool handles the ingest_status tool invocation.
// Returns corpus, index, and embedder state so clients can tell whether
// the corpus is ingested and how good semantic retrieval will be.
func (s *Server) handleIngestStatusTool(ctx context.Context) (*IngestStatusOutput, error) {
	start := time.Now()
	requestID := generateRequestID()

	s.logger.Info("ingest_status started",
		slog.String("request_id", requestID))

	detector := NewCorpusDetector(s.policiesDir, s.logger)
	corpus := detector.Detect()

	output := &IngestStatusOutput{
		Corpus:     *corpus,
		Embeddings: s.embeddingInfo(ctx),
	}

	if stats := s.searcher.Stats(ctx); stats != nil {
		output.Index.ChunkCount = stats.ChunkCount
		output.Index.BM25Documents = stats.BM25Documents
		output.Index.VectorCount = stats.VectorCount
		output.Index.QueryCacheLength = stats.CacheEntries
	}

	if counts, err := s.metadata.CountChunksByDepartment(ctx); err == nil && len(counts) > 0 {
		output.Index.ChunksByDept = counts
	}
	if v, err := s.metadata.GetState(ctx, store.StateKeyCorpusVersion); err == nil {
		output.Index.CorpusVersion = v
	}
	if v, err := s.metadata.GetState(ctx, store.StateKeyIngestedAt); err == nil {
		output.Index.LastIngestedAt = v
	}

	duration := time.Since(start)
	s.logger.Info("ingest_status completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", duration),
		slog.Int("corpus_files", corpus.FileCount),
		slog.Int("chunk_count", output.Index.ChunkCount))

	return output, nil
}

// embeddingInfo reports the configured and actual embedder state.
func (s *Server) embeddingInfo(ctx context.Context) EmbeddingInfo {
	info := EmbeddingInfo{
		Provider: s.config.Embeddings.Provider,
		Model:    s.config.Embeddings.Model,
	}

	if s.embedder == nil {
		info.Status = "unavailable"
		info.ActualModel = "none"
		info.IsFallbackActive = true
		info.SemanticQuality = "none"
		return info
	}

	info.ActualModel = s.embedder.ModelName()
	info.Dimensions = s.embedder.Dimensions()
	info.IsFallbackActive = info.ActualModel == "static" || info.Dimensions == embed.StaticDimensions
	if info.IsFallbackActive {
		info.SemanticQuality = "low"
	} else {
		info.SemanticQuality = "high"
	}

	if s.embedder.Available(ctx) {
		info.Status = "ready"
	} else {
		info.Status = "unavailable"
	}
	return info
}

// handleStatsTool handles the stats tool invocation.
func (s *Server) handleStatsTool(_ context.Context) (*StatsOutput, error) {
	metrics := s.metrics
	if metrics == nil {
		return nil, &MCPError{
			Code:    ErrCodeInternalError,
			Message: "telemetry is not enabled",
		}
	}
	return toStatsOutput(metrics.Snapshot()), nil
}

// toStatsOutput converts a telemetry snapshot to the tool output shape.
func toStatsOutput(snap *telemetry.Snapshot) *StatsOutput {
	out := &StatsOutput{
		TotalQueries:        snap.TotalQueries,
		CacheHits:           snap.CacheHits,
		CacheHitRate:        snap.CacheHitRate(),
		Escalations:         snap.Escalations,
		ZeroResultCount:     snap.ZeroResultCount,
		ZeroResultPct:       snap.ZeroResultPercentage(),
		AverageLatencyMS:    snap.AverageLatencyMS,
		DepartmentCounts:    snap.DepartmentCounts,
		LanguageCounts:      snap.LanguageCounts,
		ZeroResultQueries:   snap.ZeroResultQueries,
		TopTerms:            make([]TermCountOut, 0, len(snap.TopTerms)),
		LatencyDistribution: make(map[string]int64, len(snap.LatencyDistribution)),
		Since:               snap.Since.Format(time.RFC3339),
	}
	for _, tc := range snap.TopTerms {
		out.TopTerms = append(out.TopTerms, TermCountOut{Term: tc.Term, Count: tc.Count})
	}
	for bucket, count := range snap.LatencyDistribution {
		out.LatencyDistribution[string(bucket)] = count
	}
	return out
}

// recordQuery feeds one answered question into telemetry.
func (s *Server) recordQuery(query string, resp *orchestrate.Response) {
	metrics := s.metrics
	if metrics == nil || resp == nil {
		return
	}
	metrics.Record(telemetry.QueryEvent{
		Query:       query,
		Department:  resp.Routing.FinalDepartment,
		Language:    resp.Routing.DetectedLanguage,
		CacheType:   resp.Routing.CacheType,
		ResultCount: len(resp.Sources),
		Escalated:   resp.Escalation != nil && resp.Escalation.ShouldEscalate,
		Latency:     time.Duration(resp.TotalTimeMS) * time.Millisecond,
	})
}

// registerTools registers all tools with the MCP server.
func (s *Server) registerTools() {
	s.logger.Debug("Registering MCP tools")

	for _, t := range s.ListTools() {
		tool := &mcp.Tool{Name: t.Name, Description: t.Description}
		switch t.Name {
		case "ask":
			mcp.AddTool(s.mcp, tool, s.mcpAskHandler)
		case "search":
			mcp.AddTool(s.mcp, tool, s.mcpSearchHandler)
		case "ingest_status":
			mcp.AddTool(s.mcp, tool, s.mcpIngestStatusHandler)
		case "stats":
			mcp.AddTool(s.mcp, tool, s.mcpStatsHandler)
		}
		s.logger.Debug("Registered tool", slog.String("name", t.Name))
	}

	s.logger.Info("MCP tools registered", slog.Int("count", len(s.ListTools())))
}

// mcpAskHandler is the MCP SDK handler for the ask tool.
func (s *Server) mcpAskHandler(ctx context.Context, _ *mcp.CallToolRequest, input AskInput) (
	*mcp.CallToolResult,
	*orchestrate.Response,
	error,
) {
	if input.Query == "" {
		return nil, nil, NewInvalidParamsError("query parameter is required")
	}
	if err := validation.ValidateQuery(input.Query); err != nil {
		return nil, nil, MapError(err)
	}

	resp := s.answerer.Process(ctx, orchestrate.Request{
		UserID:  input.UserID,
		Message: input.Query,
		Profile: orchestrate.Profile{
			Name:       input.UserName,
			Role:       input.UserRole,
			Department: input.UserDepartment,
		},
	})

	s.recordQuery(input.Query, resp)

	return nil, resp, nil
}

// mcpSearchHandler is the MCP SDK handler for the search tool.
func (s *Server) mcpSearchHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult,
	SearchOutput,
	error,
) {
	if input.Query == "" {
		return nil, SearchOutput{}, NewInvalidParamsError("query parameter is required")
	}
	if err := validation.ValidateQuery(input.Query); err != nil {
		return nil, SearchOutput{}, MapError(err)
	}

	opts := search.SearchOptions{
		Department: input.Department,
		Limit:      clampLimit(input.Limit, search.DefaultTopK, 1, 20),
	}

	results, err := s.searcher.Search(ctx, input.Query, opts)
	if err != nil {
		return nil, SearchOutput{}, MapError(err)
	}

	output := SearchOutput{
		Results: make([]SearchResultOutput, 0, len(results)),
	}
	for _, r := range results {
		if r != nil && r.Chunk != nil {
			output.Results = append(output.Results, ToSearchResultOutput(r))
		}
	}

	return nil, output, nil
}

// mcpIngestStatusHandler is the MCP SDK handler for the ingest_status tool.
func (s *Server) mcpIngestStatusHandler(ctx context.Context, _ *mcp.CallToolRequest, _ IngestStatusInput) (
	*mcp.CallToolResult,
	*IngestStatusOutput,
	error,
) {
	output, err := s.handleIngestStatusTool(ctx)
	if err != nil {
		return nil, nil, MapError(err)
	}
	return nil, output, nil
}

// mcpStatsHandler is the MCP SDK handler for the stats tool.
func (s *Server) mcpStatsHandler(ctx context.Context, _ *mcp.CallToolRequest, _ StatsInput) (
	*mcp.CallToolResult,
	*StatsOutput,
	error,
) {
	return nil, s.handleStatsOrEmpty(ctx), nil
}

// handleStatsOrEmpty returns telemetry stats, or a zero snapshot when
// telemetry is disabled so clients get a well-formed answer either way.
func (s *Server) handleStatsOrEmpty(ctx context.Context) *StatsOutput {
	output, err := s.handleStatsTool(ctx)
	if err != nil {
		return &StatsOutput{
			DepartmentCounts:    map[string]int64{},
			LanguageCounts:      map[string]int64{},
			TopTerms:            []TermCountOut{},
			ZeroResultQueries:   []string{},
			LatencyDistribution: map[string]int64{},
		}
	}
	return output
}

// Serve starts the server with the specified transport.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("Starting MCP server",
		slog.String("transport", transport))

	switch transport {
	case "stdio":
		s.logger.Debug("Using stdio transport for JSON-RPC")
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && err != context.Canceled {
			s.logger.Error("MCP server stopped with error",
				slog.String("error", err.Error()))
		} else {
			s.logger.Info("MCP server stopped gracefully")
		}
		return err
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

// Close releases server resources.
func (s *Server) Close() error {
	// The MCP server doesn't have a Close method - it stops when context is canceled
	return nil
}

// generateRequestID creates a short unique request ID for log correlation.
func generateRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
