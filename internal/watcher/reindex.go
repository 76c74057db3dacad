package watcher

import (
	"context"
	"log/slog"
	"sort"

	"github.com/Aman-CERP/onboardqa/internal/ingest"
)

// Ingester re-indexes the policy directory.
type Ingester interface {
	IngestDirectory(ctx context.Context, path string) (*ingest.Result, error)
}

// Invalidator marks cached responses stale for a department. An empty
// department invalidates everything.
type Invalidator interface {
	Invalidate(ctx context.Context, department string) error
}

// Reindexer consumes watcher batches and keeps the index and response
// cache in sync with the policy directory.
type Reindexer struct {
	watcher  Watcher
	ingester Ingester
	cache    Invalidator
	dir      string
	logger   *slog.Logger
}

// NewReindexer wires a watcher to the ingestor and cache. A nil cache
// skips invalidation.
func NewReindexer(w Watcher, ingester Ingester, cache Invalidator, dir string, logger *slog.Logger) *Reindexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reindexer{
		watcher:  w,
		ingester: ingester,
		cache:    cache,
		dir:      dir,
		logger:   logger,
	}
}

// Run processes watcher batches until the context is cancelled or the
// watcher stops. Each batch triggers one re-ingest; cached responses
// for the affected departments are invalidated first so readers never
// see answers built from deleted policy text.
func (r *Reindexer) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case batch, ok := <-r.watcher.Events():
			if !ok {
				return nil
			}
			r.handleBatch(ctx, batch)
		case err, ok := <-r.watcher.Errors():
			if !ok {
				return nil
			}
			r.logger.Warn("watcher_error", slog.String("error", err.Error()))
		}
	}
}

func (r *Reindexer) handleBatch(ctx context.Context, batch []FileEvent) {
	departments := affectedDepartments(batch)
	if len(departments) == 0 {
		return
	}

	r.logger.Info("policy_change_detected",
		slog.Int("files", len(batch)),
		slog.Any("departments", departments),
	)

	if r.cache != nil {
		for _, dept := range departments {
			if err := r.cache.Invalidate(ctx, dept); err != nil {
				r.logger.Warn("cache_invalidate_failed",
					slog.String("department", dept),
					slog.String("error", err.Error()),
				)
			}
		}
	}

	result, err := r.ingester.IngestDirectory(ctx, r.dir)
	if err != nil {
		r.logger.Error("reingest_failed", slog.String("error", err.Error()))
		return
	}

	r.logger.Info("reingest_complete",
		slog.Int("files", len(result.Files)),
		slog.Int("chunks", result.TotalChunks),
	)
}

// affectedDepartments maps changed files to their departments,
// deduplicated and sorted.
func affectedDepartments(batch []FileEvent) []string {
	seen := make(map[string]struct{})
	for _, event := range batch {
		if event.IsDir {
			continue
		}
		seen[ingest.DepartmentForFile(event.Path)] = struct{}{}
	}

	departments := make([]string, 0, len(seen))
	for dept := range seen {
		departments = append(departments, dept)
	}
	sort.Strings(departments)
	return departments
}
