package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/onboardqa/internal/ingest"
)

// MaxResourceSize is the maximum file size for resources (1MB).
const MaxResourceSize = 1024 * 1024

// RegisterResources lists the policy corpus and registers each document
// as an MCP resource. This should be called after the server is created
// and before serving.
func (s *Server) RegisterResources(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.policiesDir == "" {
		return fmt.Errorf("policies directory must be set before registering resources")
	}

	entries, err := os.ReadDir(s.policiesDir)
	if err != nil {
		return fmt.Errorf("failed to list policies: %w", err)
	}

	count := 0
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if !strings.EqualFold(filepath.Ext(entry.Name()), ".md") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		s.registerPolicyResource(entry.Name(), info.Size())
		count++
	}

	s.logger.Info("registered resources", "count", count)
	return nil
}

// registerPolicyResource registers a single policy document as an MCP resource.
func (s *Server) registerPolicyResource(name string, size int64) {
	uri := fmt.Sprintf("policy://%s", name)
	s.mcp.AddResource(
		&mcp.Resource{
			Name:        name,
			URI:         uri,
			Description: fmt.Sprintf("%s policy document %s (%s)", ingest.DepartmentForFile(name), name, humanSize(size)),
			MIMEType:    MimeTypeForPath(name),
		},
		s.makePolicyHandler(name),
	)
}

// makePolicyHandler creates a read handler for a specific policy document.
func (s *Server) makePolicyHandler(name string) mcp.ResourceHandler {
	return func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		return s.handleReadPolicy(ctx, name)
	}
}

// handleReadPolicy reads a policy document with path validation.
func (s *Server) handleReadPolicy(_ context.Context, name string) (*mcp.ReadResourceResult, error) {
	if !s.isValidPolicyName(name) {
		return nil, NewInvalidParamsError(fmt.Sprintf("invalid policy name: %s", name))
	}

	fullPath := filepath.Join(s.policiesDir, name)

	info, err := os.Stat(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, NewResourceNotFoundError(fmt.Sprintf("policy://%s", name))
		}
		return nil, MapError(err)
	}

	if info.Size() > MaxResourceSize {
		return nil, &MCPError{
			Code:    ErrCodeInvalidRequest,
			Message: fmt.Sprintf("policy too large: %d bytes (max %d)", info.Size(), MaxResourceSize),
		}
	}

	content, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, MapError(err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      fmt.Sprintf("policy://%s", name),
				MIMEType: MimeTypeForPath(name),
				Text:     string(content),
			},
		},
	}, nil
}

// isValidPolicyName validates that a resource name is a bare filename.
// Returns false for path traversal attempts, separators, or absolute paths.
func (s *Server) isValidPolicyName(name string) bool {
	if name == "" {
		return false
	}
	if filepath.IsAbs(name) {
		return false
	}
	// Windows drive letters
	if len(name) >= 2 && name[1] == ':' {
		return false
	}
	if strings.ContainsAny(name, `/\`) {
		return false
	}
	if name == "." || name == ".." {
		return false
	}
	return true
}

// humanSize formats bytes as a human-readable string.
func humanSize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// registerQueryMetricsResource registers the query_metrics resource.
func (s *Server) registerQueryMetricsResource() {
	s.mcp.AddResource(
		&mcp.Resource{
			Name:        "query_metrics",
			URI:         "onboardqa://query_metrics",
			Description: "Query pattern telemetry for the current session",
			MIMEType:    "application/json",
		},
		s.makeQueryMetricsHandler(),
	)
}

// makeQueryMetricsHandler creates a handler for the query_metrics resource.
func (s *Server) makeQueryMetricsHandler() mcp.ResourceHandler {
	return func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		metrics := s.metrics
		if metrics == nil {
			return nil, NewInvalidParamsError("query metrics not available")
		}

		content, err := json.MarshalIndent(toStatsOutput(metrics.Snapshot()), "", "  ")
		if err != nil {
			return nil, MapError(err)
		}

		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{
				{
					URI:      "onboardqa://query_metrics",
					MIMEType: "application/json",
					Text:     string(content),
				},
			},
		}, nil
	}
}
