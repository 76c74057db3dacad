package mcp

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCorpusDetector_CountsByDepartment(t *testing.T) {
	dir := t.TempDir()
	writePolicy(t, dir, "hr_leave.md", "# Leave")
	writePolicy(t, dir, "hr_benefits.md", "# Benefits")
	writePolicy(t, dir, "it_security.md", "# Security")
	writePolicy(t, dir, "finance_expenses.md", "# Expenses")
	writePolicy(t, dir, "handbook.md", "# Handbook")

	info := NewCorpusDetector(dir, nil).Detect()

	assert.Equal(t, dir, info.Path)
	assert.Equal(t, 5, info.FileCount)
	assert.Equal(t, 2, info.Departments["HR"])
	assert.Equal(t, 1, info.Departments["IT"])
	assert.Equal(t, 1, info.Departments["Finance"])
	assert.Equal(t, 1, info.Departments["General"])
}

func TestCorpusDetector_IgnoresNonPolicyFiles(t *testing.T) {
	dir := t.TempDir()
	writePolicy(t, dir, "hr_leave.md", "# Leave")
	writePolicy(t, dir, "notes.txt", "scratch")
	writePolicy(t, dir, ".draft.md", "hidden")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "archive"), 0o755))

	info := NewCorpusDetector(dir, nil).Detect()

	assert.Equal(t, 1, info.FileCount)
}

func TestCorpusDetector_MissingDirectory(t *testing.T) {
	info := NewCorpusDetector("/nonexistent/policies", nil).Detect()

	assert.Equal(t, 0, info.FileCount)
	assert.Empty(t, info.Departments)
}

func TestCorpusDetector_CaseInsensitiveExtension(t *testing.T) {
	dir := t.TempDir()
	writePolicy(t, dir, "security_mfa.MD", "# MFA")

	info := NewCorpusDetector(dir, nil).Detect()
	assert.Equal(t, 1, info.FileCount)
	assert.Equal(t, 1, info.Departments["Security"])
}
