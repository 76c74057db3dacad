package mcp

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/onboardqa/internal/telemetry"
)

func writePolicy(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestRegisterResources_PolicyDocuments(t *testing.T) {
	dir := t.TempDir()
	writePolicy(t, dir, "hr_leave.md", "# Leave Policy")
	writePolicy(t, dir, "it_security.md", "# Security Policy")
	writePolicy(t, dir, "notes.txt", "not a policy")
	writePolicy(t, dir, ".hidden.md", "ignored")

	srv, err := NewServer(&MockAnswerer{}, &MockSearcher{}, newTestMetadata(t), nil, nil, dir)
	require.NoError(t, err)

	require.NoError(t, srv.RegisterResources(context.Background()))
}

func TestRegisterResources_MissingDir(t *testing.T) {
	srv, err := NewServer(&MockAnswerer{}, &MockSearcher{}, newTestMetadata(t), nil, nil, "/nonexistent/policies")
	require.NoError(t, err)

	require.Error(t, srv.RegisterResources(context.Background()))
}

func TestRegisterResources_EmptyDirConfigured(t *testing.T) {
	srv, err := NewServer(&MockAnswerer{}, &MockSearcher{}, newTestMetadata(t), nil, nil, "")
	require.NoError(t, err)

	err = srv.RegisterResources(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "policies directory")
}

func TestHandleReadPolicy(t *testing.T) {
	dir := t.TempDir()
	writePolicy(t, dir, "hr_leave.md", "# Leave Policy\n\nTwenty days per year.")

	srv, err := NewServer(&MockAnswerer{}, &MockSearcher{}, newTestMetadata(t), nil, nil, dir)
	require.NoError(t, err)

	result, err := srv.handleReadPolicy(context.Background(), "hr_leave.md")
	require.NoError(t, err)
	require.Len(t, result.Contents, 1)

	assert.Equal(t, "policy://hr_leave.md", result.Contents[0].URI)
	assert.Equal(t, "text/markdown", result.Contents[0].MIMEType)
	assert.Contains(t, result.Contents[0].Text, "Twenty days per year.")
}

func TestHandleReadPolicy_NotFound(t *testing.T) {
	srv, err := NewServer(&MockAnswerer{}, &MockSearcher{}, newTestMetadata(t), nil, nil, t.TempDir())
	require.NoError(t, err)

	_, err = srv.handleReadPolicy(context.Background(), "missing.md")
	require.Error(t, err)

	mcpErr, ok := err.(*MCPError)
	require.True(t, ok)
	assert.Equal(t, ErrCodeMethodNotFound, mcpErr.Code)
}

func TestHandleReadPolicy_RejectsTraversal(t *testing.T) {
	srv, err := NewServer(&MockAnswerer{}, &MockSearcher{}, newTestMetadata(t), nil, nil, t.TempDir())
	require.NoError(t, err)

	for _, name := range []string{
		"",
		"..",
		"../secret.md",
		"sub/policy.md",
		`..\windows.md`,
		"/etc/passwd",
		"C:\\policies\\x.md",
	} {
		_, err := srv.handleReadPolicy(context.Background(), name)
		require.Error(t, err, "name %q should be rejected", name)

		mcpErr, ok := err.(*MCPError)
		require.True(t, ok)
		assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code, "name %q", name)
	}
}

func TestHandleReadPolicy_TooLarge(t *testing.T) {
	dir := t.TempDir()
	big := make([]byte, MaxResourceSize+1)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hr_huge.md"), big, 0o644))

	srv, err := NewServer(&MockAnswerer{}, &MockSearcher{}, newTestMetadata(t), nil, nil, dir)
	require.NoError(t, err)

	_, err = srv.handleReadPolicy(context.Background(), "hr_huge.md")
	require.Error(t, err)

	mcpErr, ok := err.(*MCPError)
	require.True(t, ok)
	assert.Equal(t, ErrCodeInvalidRequest, mcpErr.Code)
	assert.Contains(t, mcpErr.Message, "too large")
}

func TestQueryMetricsResource(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	metrics := telemetry.NewWithConfig(nil, telemetry.Config{FlushInterval: 0})
	defer func() { _ = metrics.Close() }()
	srv.SetMetrics(metrics)

	metrics.Record(telemetry.QueryEvent{
		Query:      "vpn help",
		Department: "IT",
		Language:   "en",
		Latency:    10 * time.Millisecond,
	})

	handler := srv.makeQueryMetricsHandler()
	result, err := handler(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, result.Contents, 1)

	assert.Equal(t, "application/json", result.Contents[0].MIMEType)
	assert.Contains(t, result.Contents[0].Text, `"total_queries": 1`)
	assert.Contains(t, result.Contents[0].Text, `"IT"`)
}

func TestQueryMetricsResource_NoMetrics(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	handler := srv.makeQueryMetricsHandler()
	_, err := handler(context.Background(), nil)
	require.Error(t, err)
}

func TestHumanSize(t *testing.T) {
	assert.Equal(t, "100 B", humanSize(100))
	assert.Equal(t, "1.0 KB", humanSize(1024))
	assert.Equal(t, "2.5 MB", humanSize(5*1024*1024/2))
	assert.Equal(t, "1.0 GB", humanSize(1024*1024*1024))
}
