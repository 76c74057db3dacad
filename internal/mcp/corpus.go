package mcp

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Aman-CERP/onboardqa/internal/ingest"
)

// CorpusDetector inspects the on-disk policy corpus.
type CorpusDetector struct {
	dir    string
	logger *slog.Logger
}

// NewCorpusDetector creates a new corpus detector.
func NewCorpusDetector(dir string, logger *slog.Logger) *CorpusDetector {
	if logger == nil {
		logger = slog.Default()
	}
	return &CorpusDetector{
		dir:    dir,
		logger: logger,
	}
}

// Detect returns corpus information read from the policies directory.
// A missing or unreadable directory yields an empty corpus, not an
// error: ingest_status must still answer when nothing is ingested yet.
func (d *CorpusDetector) Detect() *CorpusInfo {
	info := &CorpusInfo{
		Path:        d.dir,
		Departments: make(map[string]int),
	}

	entries, err := os.ReadDir(d.dir)
	if err != nil {
		d.logger.Debug("corpus directory not readable",
			slog.String("path", d.dir),
			slog.String("error", err.Error()))
		return info
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if !strings.EqualFold(filepath.Ext(name), ".md") {
			continue
		}
		info.FileCount++
		info.Departments[ingest.DepartmentForFile(name)]++
	}

	return info
}
