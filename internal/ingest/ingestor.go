package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Aman-CERP/onboardqa/internal/embed"
	qaerrors "github.com/Aman-CERP/onboardqa/internal/errors"
	"github.com/Aman-CERP/onboardqa/internal/store"
)

// Progress reports ingest progress to the caller (CLI progress bar).
type Progress func(stage string, done, total int)

// Result summarizes one ingest run.
type Result struct {
	Files       map[string]int // filename -> chunk count
	TotalChunks int
	Duration    time.Duration
}

// Ingestor loads a policies directory into all three stores.
type Ingestor struct {
	embedder embed.Embedder
	vectors  store.VectorStore
	bm25     store.BM25Index
	meta     store.MetadataStore
	chunker  *Chunker
	logger   *slog.Logger
	progress Progress
}

// Option configures an Ingestor.
type Option func(*Ingestor)

// WithProgress registers a progress callback.
func WithProgress(p Progress) Option {
	return func(i *Ingestor) { i.progress = p }
}

// WithChunker overrides the default chunker.
func WithChunker(c *Chunker) Option {
	return func(i *Ingestor) { i.chunker = c }
}

// NewIngestor wires an ingestor over the given stores.
func NewIngestor(embedder embed.Embedder, vectors store.VectorStore, bm25 store.BM25Index, meta store.MetadataStore, logger *slog.Logger, opts ...Option) *Ingestor {
	ing := &Ingestor{
		embedder: embedder,
		vectors:  vectors,
		bm25:     bm25,
		meta:     meta,
		chunker:  NewChunker(ChunkerOptions{}),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(ing)
	}
	if ing.logger == nil {
		ing.logger = slog.Default()
	}
	return ing
}

// IngestDirectory ingests every markdown file under path.
// The run takes a cross-process file lock; a second concurrent ingest
// fails fast. On partial index failure the affected file is reset and
// retried once before the run errors out.
func (i *Ingestor) IngestDirectory(ctx context.Context, path string) (*Result, error) {
	start := time.Now()

	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return nil, qaerrors.CorpusNotFound(path)
	}

	lock := NewFileLock(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, qaerrors.New(qaerrors.ErrCodeIngestLocked, "failed to acquire ingest lock", err)
	}
	if !ok {
		return nil, qaerrors.New(qaerrors.ErrCodeIngestLocked, "another ingest is already running", nil)
	}
	defer func() { _ = lock.Unlock() }()

	files, err := listMarkdownFiles(path)
	if err != nil {
		return nil, qaerrors.New(qaerrors.ErrCodeIngestFailed, "failed to list policy files", err)
	}
	if len(files) == 0 {
		return nil, qaerrors.CorpusNotFound(path).
			WithDetail("reason", "no markdown files found")
	}

	result := &Result{Files: make(map[string]int, len(files))}

	for n, relPath := range files {
		i.report("files", n, len(files))

		count, err := i.ingestFile(ctx, path, relPath)
		if err != nil {
			// Reset the file's entries and retry once
			i.logger.Warn("ingest_retry",
				slog.String("file", relPath),
				slog.String("error", err.Error()))
			if resetErr := i.resetFile(ctx, relPath); resetErr != nil {
				return nil, qaerrors.New(qaerrors.ErrCodeIngestFailed, "failed to reset after partial ingest", resetErr)
			}
			count, err = i.ingestFile(ctx, path, relPath)
			if err != nil {
				return nil, qaerrors.New(qaerrors.ErrCodeIngestFailed,
					fmt.Sprintf("failed to ingest %s", relPath), err)
			}
		}

		result.Files[relPath] = count
		result.TotalChunks += count
	}
	i.report("files", len(files), len(files))

	if err := i.recordState(ctx, path); err != nil {
		return nil, err
	}

	result.Duration = time.Since(start)
	i.logger.Info("ingest_complete",
		slog.Int("files", len(files)),
		slog.Int("chunks", result.TotalChunks),
		slog.Duration("duration", result.Duration))

	return result, nil
}

// ingestFile chunks, embeds, and indexes one policy file.
// Duplicate filenames overwrite previous chunk ids.
func (i *Ingestor) ingestFile(ctx context.Context, root, relPath string) (int, error) {
	data, err := os.ReadFile(filepath.Join(root, relPath))
	if err != nil {
		return 0, fmt.Errorf("read: %w", err)
	}

	chunks := i.chunker.Chunk(relPath, string(data))
	if len(chunks) == 0 {
		return 0, nil
	}

	texts := make([]string, len(chunks))
	ids := make([]string, len(chunks))
	depts := make([]string, len(chunks))
	docs := make([]*store.Document, len(chunks))
	for n, c := range chunks {
		texts[n] = c.Content
		ids[n] = c.ID
		depts[n] = c.Department
		docs[n] = &store.Document{ID: c.ID, Content: c.Content, Department: c.Department}
	}

	vectors, err := i.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed: %w", err)
	}

	if err := i.vectors.Add(ctx, ids, vectors, depts); err != nil {
		return 0, fmt.Errorf("vector index: %w", err)
	}
	if err := i.bm25.Index(ctx, docs); err != nil {
		return 0, fmt.Errorf("bm25 index: %w", err)
	}
	if err := i.meta.SaveChunks(ctx, chunks); err != nil {
		return 0, fmt.Errorf("metadata: %w", err)
	}

	return len(chunks), nil
}

// Reset clears every chunk from the vector store, the BM25 index, and
// the metadata database, and drops the corpus fingerprint so the next
// ingest rebuilds from scratch. Each store is cleared from its own ID
// list, so entries orphaned by deleted policy files go too.
func (i *Ingestor) Reset(ctx context.Context) error {
	if ids := i.vectors.AllIDs(); len(ids) > 0 {
		if err := i.vectors.Delete(ctx, ids); err != nil {
			return fmt.Errorf("reset vector store: %w", err)
		}
	}

	ids, err := i.bm25.AllIDs()
	if err != nil {
		return fmt.Errorf("reset bm25 index: %w", err)
	}
	if len(ids) > 0 {
		if err := i.bm25.Delete(ctx, ids); err != nil {
			return fmt.Errorf("reset bm25 index: %w", err)
		}
	}

	if err := i.meta.DeleteAllChunks(ctx); err != nil {
		return fmt.Errorf("reset metadata: %w", err)
	}
	if err := i.meta.SetState(ctx, store.StateKeyCorpusVersion, ""); err != nil {
		return fmt.Errorf("reset corpus version: %w", err)
	}

	i.logger.Info("index_reset")
	return nil
}

// resetFile removes a file's chunks from all stores.
func (i *Ingestor) resetFile(ctx context.Context, relPath string) error {
	stem := fileStem(relPath)

	allIDs, err := i.meta.ListChunkIDs(ctx)
	if err != nil {
		return err
	}
	var ids []string
	for _, id := range allIDs {
		if strings.HasPrefix(id, stem+"_") {
			ids = append(ids, id)
		}
	}

	if err := i.vectors.Delete(ctx, ids); err != nil {
		return err
	}
	if err := i.bm25.Delete(ctx, ids); err != nil {
		return err
	}
	return i.meta.DeleteChunksByFile(ctx, relPath)
}

// recordState stores the corpus fingerprint and embedder identity so a
// later startup can detect stale or incompatible indexes.
func (i *Ingestor) recordState(ctx context.Context, path string) error {
	fingerprint, err := corpusFingerprint(path)
	if err != nil {
		return qaerrors.New(qaerrors.ErrCodeIngestFailed, "failed to fingerprint corpus", err)
	}

	states := map[string]string{
		store.StateKeyCorpusVersion:  fingerprint,
		store.StateKeyIngestedAt:     time.Now().UTC().Format(time.RFC3339),
		store.StateKeyIndexModel:     i.embedder.ModelName(),
		store.StateKeyIndexDimension: strconv.Itoa(i.embedder.Dimensions()),
	}
	for k, v := range states {
		if err := i.meta.SetState(ctx, k, v); err != nil {
			return qaerrors.New(qaerrors.ErrCodeIngestFailed, "failed to record ingest state", err)
		}
	}
	return nil
}

func (i *Ingestor) report(stage string, done, total int) {
	if i.progress != nil {
		i.progress(stage, done, total)
	}
}

// listMarkdownFiles returns sorted relative paths of .md files directly
// under root and one level of subdirectories.
func listMarkdownFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), ".md") {
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			files = append(files, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// corpusFingerprint hashes file names, sizes, and mtimes so any corpus
// change produces a new version string.
func corpusFingerprint(root string) (string, error) {
	files, err := listMarkdownFiles(root)
	if err != nil {
		return "", err
	}

	h := sha256.New()
	for _, rel := range files {
		info, err := os.Stat(filepath.Join(root, rel))
		if err != nil {
			return "", err
		}
		fmt.Fprintf(h, "%s|%d|%d\n", rel, info.Size(), info.ModTime().UnixNano())
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
