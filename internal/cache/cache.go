// Package cache implements the two-tier response cache: an exact
// hash lookup over normalized queries layered above a semantic
// similarity scan over recently cached embeddings. Entries live in
// SQLite next to the rest of the service state.
package cache

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/Aman-CERP/onboardqa/internal/agent"
	"github.com/Aman-CERP/onboardqa/internal/embed"
	qaerrors "github.com/Aman-CERP/onboardqa/internal/errors"
	"github.com/Aman-CERP/onboardqa/internal/store"
)

// Defaults.
const (
	DefaultTTL                 = 24 * time.Hour
	DefaultSimilarityThreshold = 0.92
	DefaultScanLimit           = 100
	DefaultQueueSize           = 256
)

// Hit types.
const (
	HitExact    = "exact"
	HitSemantic = "semantic"
)

// Config tunes the cache.
type Config struct {
	TTL                 time.Duration
	SimilarityThreshold float64
	ScanLimit           int
	QueueSize           int
}

// DefaultConfig returns the standard cache settings.
func DefaultConfig() Config {
	return Config{
		TTL:                 DefaultTTL,
		SimilarityThreshold: DefaultSimilarityThreshold,
		ScanLimit:           DefaultScanLimit,
		QueueSize:           DefaultQueueSize,
	}
}

// Entry is one cached response.
type Entry struct {
	Query      string
	QueryHash  string
	Response   string
	Sources    []agent.Source
	Department string
	Confidence float64
	HitCount   int64
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

// Hit is a successful lookup. Similarity is 1 for exact hits.
type Hit struct {
	Entry      *Entry
	Type       string
	Similarity float64
}

// Store is the SQLite-backed two-tier cache. Safe for concurrent use;
// the database handle serializes writes.
type Store struct {
	db       *sql.DB
	embedder embed.Embedder // nil disables the semantic tier
	config   Config
	logger   *slog.Logger
	writer   *asyncWriter
	now      func() time.Time
}

// NewStore opens (or creates) the cache database and starts the
// background write worker.
func NewStore(path string, embedder embed.Embedder, config Config, logger *slog.Logger) (*Store, error) {
	if config.TTL <= 0 {
		config.TTL = DefaultTTL
	}
	if config.SimilarityThreshold <= 0 {
		config.SimilarityThreshold = DefaultSimilarityThreshold
	}
	if config.ScanLimit <= 0 {
		config.ScanLimit = DefaultScanLimit
	}
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultQueueSize
	}
	if logger == nil {
		logger = slog.Default()
	}

	db, err := store.OpenSQLite(path)
	if err != nil {
		return nil, qaerrors.CacheError("failed to open cache database", err)
	}
	if _, err := db.Exec(cacheSchema); err != nil {
		_ = db.Close()
		return nil, qaerrors.CacheError("failed to create cache schema", err)
	}

	s := &Store{
		db:       db,
		embedder: embedder,
		config:   config,
		logger:   logger,
		now:      time.Now,
	}
	s.writer = newAsyncWriter(s, config.QueueSize, logger)
	return s, nil
}

const cacheSchema = `
CREATE TABLE IF NOT EXISTS response_cache (
	query_hash    TEXT PRIMARY KEY,
	query         TEXT NOT NULL,
	response      TEXT NOT NULL,
	sources       TEXT NOT NULL DEFAULT '[]',
	department    TEXT NOT NULL DEFAULT 'General',
	confidence    REAL NOT NULL DEFAULT 0,
	embedding     BLOB,
	hit_count     INTEGER NOT NULL DEFAULT 0,
	created_at    INTEGER NOT NULL,
	last_accessed INTEGER NOT NULL,
	expires_at    INTEGER NOT NULL,
	is_valid      INTEGER NOT NULL DEFAULT 1
);
CREATE INDEX IF NOT EXISTS idx_cache_recent
	ON response_cache (is_valid, last_accessed DESC);
CREATE INDEX IF NOT EXISTS idx_cache_department
	ON response_cache (department);
`

// normalizeQuery canonicalizes a query for exact-tier hashing.
func normalizeQuery(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

// QueryHash returns the exact-tier key for a query.
func QueryHash(query string) string {
	sum := sha256.Sum256([]byte(normalizeQuery(query)))
	return hex.EncodeToString(sum[:])
}

// Get looks a query up in both tiers. A miss returns (nil, nil);
// backend failures return a CacheBackendError the caller treats as a
// miss.
func (s *Store) Get(ctx context.Context, query string) (*Hit, error) {
	hit, err := s.getExact(ctx, query)
	if err != nil {
		return nil, err
	}
	if hit != nil {
		return hit, nil
	}
	if s.embedder == nil {
		return nil, nil
	}
	return s.getSemantic(ctx, query)
}

func (s *Store) getExact(ctx context.Context, query string) (*Hit, error) {
	hash := QueryHash(query)
	now := s.now().Unix()

	entry, _, err := s.scanEntry(s.db.QueryRowContext(ctx, `
		SELECT query, query_hash, response, sources, department, confidence,
		       NULL, hit_count, created_at, expires_at
		FROM response_cache
		WHERE query_hash = ? AND is_valid = 1 AND expires_at > ?`,
		hash, now))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, qaerrors.CacheError("cache lookup failed", err)
	}

	s.touch(ctx, hash)
	entry.HitCount++
	return &Hit{Entry: entry, Type: HitExact, Similarity: 1.0}, nil
}

// getSemantic scans recent valid entries with stored embeddings for
// the nearest cached query. A linear scan is fine at this scale.
func (s *Store) getSemantic(ctx context.Context, query string) (*Hit, error) {
	queryVec, err := s.embedder.Embed(ctx, normalizeQuery(query))
	if err != nil {
		s.logger.Warn("semantic_cache_embed_failed", slog.String("error", err.Error()))
		return nil, nil
	}

	now := s.now().Unix()
	rows, err := s.db.QueryContext(ctx, `
		SELECT query, query_hash, response, sources, department, confidence,
		       embedding, hit_count, created_at, expires_at
		FROM response_cache
		WHERE is_valid = 1 AND expires_at > ? AND embedding IS NOT NULL
		ORDER BY last_accessed DESC
		LIMIT ?`,
		now, s.config.ScanLimit)
	if err != nil {
		return nil, qaerrors.CacheError("semantic cache scan failed", err)
	}
	defer rows.Close()

	var (
		best     *Entry
		bestSim  float64
	)
	for rows.Next() {
		entry, vec, err := s.scanEntry(rows)
		if err != nil {
			return nil, qaerrors.CacheError("semantic cache scan failed", err)
		}
		sim := cosineSimilarity(queryVec, vec)
		if sim > bestSim {
			best, bestSim = entry, sim
		}
	}
	if err := rows.Err(); err != nil {
		return nil, qaerrors.CacheError("semantic cache scan failed", err)
	}

	if best == nil || bestSim < s.config.SimilarityThreshold {
		return nil, nil
	}

	s.touch(ctx, best.QueryHash)
	best.HitCount++
	return &Hit{Entry: best, Type: HitSemantic, Similarity: bestSim}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanEntry(row rowScanner) (*Entry, []float32, error) {
	var (
		entry      Entry
		sourcesRaw string
		blob       []byte
		createdAt  int64
		expiresAt  int64
	)
	if err := row.Scan(&entry.Query, &entry.QueryHash, &entry.Response, &sourcesRaw,
		&entry.Department, &entry.Confidence, &blob, &entry.HitCount,
		&createdAt, &expiresAt); err != nil {
		return nil, nil, err
	}
	if err := json.Unmarshal([]byte(sourcesRaw), &entry.Sources); err != nil {
		return nil, nil, fmt.Errorf("decode cached sources: %w", err)
	}
	entry.CreatedAt = time.Unix(createdAt, 0)
	entry.ExpiresAt = time.Unix(expiresAt, 0)

	var vec []float32
	if len(blob) > 0 {
		vec = decodeVector(blob)
	}
	return &entry, vec, nil
}

// touch bumps hit accounting. Failures only log: a read must not fail
// because its bookkeeping write did.
func (s *Store) touch(ctx context.Context, hash string) {
	if _, err := s.db.ExecContext(ctx, `
		UPDATE response_cache
		SET hit_count = hit_count + 1, last_accessed = ?
		WHERE query_hash = ?`,
		s.now().Unix(), hash); err != nil {
		s.logger.Warn("cache_touch_failed", slog.String("error", err.Error()))
	}
}

// Put writes one entry synchronously, replacing any previous entry for
// the same normalized query. The embedding for the semantic tier is
// computed here when an embedder is present.
func (s *Store) Put(ctx context.Context, query, response string, sources []agent.Source, department string, confidence float64) error {
	if sources == nil {
		sources = []agent.Source{}
	}
	sourcesRaw, err := json.Marshal(sources)
	if err != nil {
		return qaerrors.CacheError("failed to encode sources", err)
	}

	var blob []byte
	if s.embedder != nil {
		if vec, err := s.embedder.Embed(ctx, normalizeQuery(query)); err == nil {
			blob = encodeVector(vec)
		} else {
			s.logger.Warn("cache_embed_failed", slog.String("error", err.Error()))
		}
	}

	now := s.now()
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO response_cache
			(query_hash, query, response, sources, department, confidence,
			 embedding, hit_count, created_at, last_accessed, expires_at, is_valid)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?, 1)
		ON CONFLICT(query_hash) DO UPDATE SET
			query = excluded.query,
			response = excluded.response,
			sources = excluded.sources,
			department = excluded.department,
			confidence = excluded.confidence,
			embedding = excluded.embedding,
			created_at = excluded.created_at,
			last_accessed = excluded.last_accessed,
			expires_at = excluded.expires_at,
			is_valid = 1`,
		QueryHash(query), normalizeQuery(query), response, string(sourcesRaw),
		department, confidence, blob,
		now.Unix(), now.Unix(), now.Add(s.config.TTL).Unix()); err != nil {
		return qaerrors.CacheError("cache write failed", err)
	}
	return nil
}

// PutAsync enqueues a write on the background worker. Full queues drop
// the write and bump the drop counter.
func (s *Store) PutAsync(query, response string, sources []agent.Source, department string, confidence float64) {
	s.writer.enqueue(putRequest{
		query:      query,
		response:   response,
		sources:    sources,
		department: department,
		confidence: confidence,
	})
}

// Dropped reports how many async writes were discarded on queue
// overflow.
func (s *Store) Dropped() uint64 {
	return s.writer.dropped()
}

// Invalidate soft-marks entries invalid. An empty department clears
// everything.
func (s *Store) Invalidate(ctx context.Context, department string) error {
	var err error
	if department == "" {
		_, err = s.db.ExecContext(ctx, `UPDATE response_cache SET is_valid = 0`)
	} else {
		_, err = s.db.ExecContext(ctx,
			`UPDATE response_cache SET is_valid = 0 WHERE department = ?`, department)
	}
	if err != nil {
		return qaerrors.CacheError("cache invalidation failed", err)
	}
	return nil
}

// CleanupExpired removes expired and invalidated entries.
func (s *Store) CleanupExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM response_cache WHERE expires_at <= ? OR is_valid = 0`,
		s.now().Unix())
	if err != nil {
		return 0, qaerrors.CacheError("cache cleanup failed", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Len counts live entries.
func (s *Store) Len(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM response_cache
		WHERE is_valid = 1 AND expires_at > ?`,
		s.now().Unix()).Scan(&n)
	if err != nil {
		return 0, qaerrors.CacheError("cache count failed", err)
	}
	return n, nil
}

// Close drains the write queue and closes the database.
func (s *Store) Close() error {
	s.writer.close()
	return s.db.Close()
}

// cosineSimilarity over float32 vectors; zero when either is empty or
// lengths differ.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
