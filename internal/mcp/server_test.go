package mcp

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/onboardqa/internal/config"
	"github.com/Aman-CERP/onboardqa/internal/orchestrate"
	"github.com/Aman-CERP/onboardqa/internal/search"
	"github.com/Aman-CERP/onboardqa/internal/store"
	"github.com/Aman-CERP/onboardqa/internal/telemetry"
)

// MockAnswerer implements Answerer for testing.
type MockAnswerer struct {
	ProcessFn func(ctx context.Context, req orchestrate.Request) *orchestrate.Response
}

func (m *MockAnswerer) Process(ctx context.Context, req orchestrate.Request) *orchestrate.Response {
	if m.ProcessFn != nil {
		return m.ProcessFn(ctx, req)
	}
	return &orchestrate.Response{Content: "mock answer"}
}

var _ Answerer = (*MockAnswerer)(nil)

// MockSearcher implements Searcher for testing.
type MockSearcher struct {
	SearchFn func(ctx context.Context, query string, opts search.SearchOptions) ([]*search.SearchResult, error)
	StatsFn  func(ctx context.Context) *search.EngineStats
}

func (m *MockSearcher) Search(ctx context.Context, query string, opts search.SearchOptions) ([]*search.SearchResult, error) {
	if m.SearchFn != nil {
		return m.SearchFn(ctx, query, opts)
	}
	return []*search.SearchResult{}, nil
}

func (m *MockSearcher) Stats(ctx context.Context) *search.EngineStats {
	if m.StatsFn != nil {
		return m.StatsFn(ctx)
	}
	return &search.EngineStats{}
}

var _ Searcher = (*MockSearcher)(nil)

func newTestMetadata(t *testing.T) *store.SQLiteMetadataStore {
	t.Helper()
	meta, err := store.NewSQLiteMetadataStore(filepath.Join(t.TempDir(), "meta.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = meta.Close() })
	return meta
}

func newTestServer(t *testing.T, answerer Answerer, searcher Searcher) *Server {
	t.Helper()
	if answerer == nil {
		answerer = &MockAnswerer{}
	}
	if searcher == nil {
		searcher = &MockSearcher{}
	}
	srv, err := NewServer(answerer, searcher, newTestMetadata(t), nil, config.NewConfig(), t.TempDir())
	require.NoError(t, err)
	return srv
}

func TestNewServer_RequiresAnswerer(t *testing.T) {
	_, err := NewServer(nil, &MockSearcher{}, newTestMetadata(t), nil, nil, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "answerer")
}

func TestNewServer_RequiresSearcher(t *testing.T) {
	_, err := NewServer(&MockAnswerer{}, nil, newTestMetadata(t), nil, nil, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "searcher")
}

func TestNewServer_RequiresMetadata(t *testing.T) {
	_, err := NewServer(&MockAnswerer{}, &MockSearcher{}, nil, nil, nil, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "metadata")
}

func TestNewServer_NilConfigUsesDefaults(t *testing.T) {
	srv, err := NewServer(&MockAnswerer{}, &MockSearcher{}, newTestMetadata(t), nil, nil, "")
	require.NoError(t, err)
	require.NotNil(t, srv.config)
}

func TestServer_Info(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	name, _ := srv.Info()
	assert.Equal(t, "onboardqa", name)
}

func TestServer_ListTools(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	tools := srv.ListTools()
	require.Len(t, tools, 4)

	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		names = append(names, tool.Name)
		assert.NotEmpty(t, tool.Description)
	}
	assert.Equal(t, []string{"ask", "search", "ingest_status", "stats"}, names)
}

func TestServer_CallTool_UnknownTool(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	_, err := srv.CallTool(context.Background(), "nonexistent", nil)
	require.Error(t, err)

	mcpErr, ok := err.(*MCPError)
	require.True(t, ok)
	assert.Equal(t, ErrCodeMethodNotFound, mcpErr.Code)
}

func TestServer_Ask_ReturnsFormattedAnswer(t *testing.T) {
	answerer := &MockAnswerer{
		ProcessFn: func(_ context.Context, req orchestrate.Request) *orchestrate.Response {
			assert.Equal(t, "How many vacation days do I get?", req.Message)
			assert.Equal(t, int64(7), req.UserID)
			return &orchestrate.Response{
				Content: "You accrue 20 days per year.",
				Routing: orchestrate.Routing{FinalDepartment: "HR", DetectedLanguage: "en"},
			}
		},
	}
	srv := newTestServer(t, answerer, nil)

	result, err := srv.CallTool(context.Background(), "ask", map[string]any{
		"query":   "How many vacation days do I get?",
		"user_id": float64(7),
	})
	require.NoError(t, err)

	text, ok := result.(string)
	require.True(t, ok)
	assert.Contains(t, text, "20 days per year")
	assert.Contains(t, text, "**Department:** HR")
}

func TestServer_Ask_ForwardsProfile(t *testing.T) {
	var got orchestrate.Request
	answerer := &MockAnswerer{
		ProcessFn: func(_ context.Context, req orchestrate.Request) *orchestrate.Response {
			got = req
			return &orchestrate.Response{Content: "ok"}
		},
	}
	srv := newTestServer(t, answerer, nil)

	_, err := srv.CallTool(context.Background(), "ask", map[string]any{
		"query":           "How do I set up the VPN?",
		"user_name":       "Sara",
		"user_role":       "engineer",
		"user_department": "Engineering",
	})
	require.NoError(t, err)

	assert.Equal(t, "Sara", got.Profile.Name)
	assert.Equal(t, "engineer", got.Profile.Role)
	assert.Equal(t, "Engineering", got.Profile.Department)
}

func TestServer_Ask_MissingQuery(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	_, err := srv.CallTool(context.Background(), "ask", map[string]any{})
	require.Error(t, err)

	mcpErr, ok := err.(*MCPError)
	require.True(t, ok)
	assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
}

func TestServer_Ask_RejectsOverlongQuery(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	long := make([]byte, 2001)
	for i := range long {
		long[i] = 'a'
	}

	_, err := srv.CallTool(context.Background(), "ask", map[string]any{
		"query": string(long),
	})
	require.Error(t, err)

	mcpErr, ok := err.(*MCPError)
	require.True(t, ok)
	assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
}

func TestServer_Ask_RecordsTelemetry(t *testing.T) {
	answerer := &MockAnswerer{
		ProcessFn: func(_ context.Context, _ orchestrate.Request) *orchestrate.Response {
			return &orchestrate.Response{
				Content:     "answer",
				TotalTimeMS: 12,
				Routing: orchestrate.Routing{
					FinalDepartment:  "IT",
					DetectedLanguage: "en",
				},
			}
		},
	}
	srv := newTestServer(t, answerer, nil)

	metrics := telemetry.NewWithConfig(nil, telemetry.Config{FlushInterval: 0})
	defer func() { _ = metrics.Close() }()
	srv.SetMetrics(metrics)

	_, err := srv.CallTool(context.Background(), "ask", map[string]any{
		"query": "vpn setup help",
	})
	require.NoError(t, err)

	snap := metrics.Snapshot()
	assert.Equal(t, int64(1), snap.TotalQueries)
	assert.Equal(t, int64(1), snap.DepartmentCounts["IT"])
}

func TestServer_Search_ReturnsResults(t *testing.T) {
	searcher := &MockSearcher{
		SearchFn: func(_ context.Context, query string, opts search.SearchOptions) ([]*search.SearchResult, error) {
			assert.Equal(t, "vpn", query)
			assert.Equal(t, "IT", opts.Department)
			return []*search.SearchResult{
				{
					Chunk: &store.Chunk{
						ID:         "it_security_0",
						FilePath:   "it_security.md",
						Department: "IT",
						Section:    "VPN Setup",
						Content:    "Install the VPN client from the portal.",
					},
					Score:        0.92,
					MatchedTerms: []string{"vpn"},
					InBothLists:  true,
				},
			}, nil
		},
	}
	srv := newTestServer(t, nil, searcher)

	result, err := srv.CallTool(context.Background(), "search", map[string]any{
		"query":      "vpn",
		"department": "IT",
	})
	require.NoError(t, err)

	text, ok := result.(string)
	require.True(t, ok)
	assert.Contains(t, text, "it_security.md")
	assert.Contains(t, text, "VPN Setup")
	assert.Contains(t, text, "Install the VPN client")
	assert.Contains(t, text, "matched: vpn")
}

func TestServer_Search_ClampsLimit(t *testing.T) {
	var gotLimit int
	searcher := &MockSearcher{
		SearchFn: func(_ context.Context, _ string, opts search.SearchOptions) ([]*search.SearchResult, error) {
			gotLimit = opts.Limit
			return nil, nil
		},
	}
	srv := newTestServer(t, nil, searcher)

	_, err := srv.CallTool(context.Background(), "search", map[string]any{
		"query": "laptop",
		"limit": float64(500),
	})
	require.NoError(t, err)
	assert.Equal(t, 20, gotLimit)
}

func TestServer_Search_MapsEngineError(t *testing.T) {
	searcher := &MockSearcher{
		SearchFn: func(_ context.Context, _ string, _ search.SearchOptions) ([]*search.SearchResult, error) {
			return nil, context.DeadlineExceeded
		},
	}
	srv := newTestServer(t, nil, searcher)

	_, err := srv.CallTool(context.Background(), "search", map[string]any{
		"query": "benefits",
	})
	require.Error(t, err)

	mcpErr, ok := err.(*MCPError)
	require.True(t, ok)
	assert.Equal(t, ErrCodeTimeout, mcpErr.Code)
}

func TestServer_IngestStatus(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hr_leave.md"), []byte("# Leave"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "it_security.md"), []byte("# Security"), 0o644))

	meta := newTestMetadata(t)
	now := time.Now().UTC()
	require.NoError(t, meta.SaveChunks(context.Background(), []*store.Chunk{
		{ID: "hr_leave_0", FilePath: "hr_leave.md", Department: "HR", Ordinal: 0, Content: "x", CreatedAt: now, UpdatedAt: now},
		{ID: "it_security_0", FilePath: "it_security.md", Department: "IT", Ordinal: 0, Content: "y", CreatedAt: now, UpdatedAt: now},
	}))
	require.NoError(t, meta.SetState(context.Background(), store.StateKeyIngestedAt, "2026-08-20T10:00:00Z"))

	searcher := &MockSearcher{
		StatsFn: func(_ context.Context) *search.EngineStats {
			return &search.EngineStats{ChunkCount: 2, BM25Documents: 2, VectorCount: 2}
		},
	}
	srv, err := NewServer(&MockAnswerer{}, searcher, meta, nil, config.NewConfig(), dir)
	require.NoError(t, err)

	result, err := srv.CallTool(context.Background(), "ingest_status", nil)
	require.NoError(t, err)

	output, ok := result.(*IngestStatusOutput)
	require.True(t, ok)
	assert.Equal(t, 2, output.Corpus.FileCount)
	assert.Equal(t, 1, output.Corpus.Departments["HR"])
	assert.Equal(t, 2, output.Index.ChunkCount)
	assert.Equal(t, 1, output.Index.ChunksByDept["IT"])
	assert.Equal(t, "2026-08-20T10:00:00Z", output.Index.LastIngestedAt)
	assert.Equal(t, "unavailable", output.Embeddings.Status)
	assert.True(t, output.Embeddings.IsFallbackActive)
}

func TestServer_Stats_WithoutTelemetry(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	_, err := srv.CallTool(context.Background(), "stats", nil)
	require.Error(t, err)

	mcpErr, ok := err.(*MCPError)
	require.True(t, ok)
	assert.Equal(t, ErrCodeInternalError, mcpErr.Code)
}

func TestServer_Stats_WithTelemetry(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	metrics := telemetry.NewWithConfig(nil, telemetry.Config{FlushInterval: 0})
	defer func() { _ = metrics.Close() }()
	srv.SetMetrics(metrics)

	metrics.Record(telemetry.QueryEvent{
		Query:       "vacation days policy",
		Department:  "HR",
		Language:    "en",
		ResultCount: 3,
		Latency:     25 * time.Millisecond,
	})

	result, err := srv.CallTool(context.Background(), "stats", nil)
	require.NoError(t, err)

	output, ok := result.(*StatsOutput)
	require.True(t, ok)
	assert.Equal(t, int64(1), output.TotalQueries)
	assert.Equal(t, int64(1), output.DepartmentCounts["HR"])
	assert.Equal(t, int64(1), output.LanguageCounts["en"])
	assert.NotEmpty(t, output.Since)
}

func TestServer_Serve_UnknownTransport(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	err := srv.Serve(context.Background(), "sse")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown transport")
}

func TestServer_Capabilities(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	hasTools, hasResources := srv.Capabilities()
	assert.True(t, hasTools)
	assert.True(t, hasResources)
}
