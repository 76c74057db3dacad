package telemetry

import (
	"database/sql"
	"fmt"
	"time"
)

// SQLiteMetricsStore implements MetricsStore on a shared SQLite handle.
type SQLiteMetricsStore struct {
	db *sql.DB
}

// NewSQLiteMetricsStore creates a SQLite-backed metrics store. The
// telemetry tables must already exist, see InitTelemetrySchema.
func NewSQLiteMetricsStore(db *sql.DB) (*SQLiteMetricsStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	return &SQLiteMetricsStore{db: db}, nil
}

// InitTelemetrySchema creates the telemetry tables if missing. Called
// by the metadata store migration path.
func InitTelemetrySchema(db *sql.DB) error {
	schema := `
	-- Per-department query counts, aggregated daily
	CREATE TABLE IF NOT EXISTS department_query_stats (
		date TEXT NOT NULL,
		department TEXT NOT NULL,
		count INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (date, department)
	);

	-- Per-language query counts, aggregated daily
	CREATE TABLE IF NOT EXISTS language_query_stats (
		date TEXT NOT NULL,
		language TEXT NOT NULL,
		count INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (date, language)
	);

	-- Top query terms with frequency
	CREATE TABLE IF NOT EXISTS query_terms (
		term TEXT PRIMARY KEY,
		count INTEGER NOT NULL DEFAULT 1,
		last_seen TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_query_terms_count ON query_terms(count DESC);

	-- Queries that found no policy documents, capped at 100
	CREATE TABLE IF NOT EXISTS zero_result_queries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		query TEXT NOT NULL,
		timestamp TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	-- Latency histogram (buckets: <10ms, 10-50ms, 50-100ms, 100-500ms, >=500ms)
	CREATE TABLE IF NOT EXISTS query_latency_stats (
		date TEXT NOT NULL,
		bucket TEXT NOT NULL,
		count INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (date, bucket)
	);
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("create telemetry schema: %w", err)
	}
	return nil
}

// SaveDepartmentCounts upserts daily per-department counts.
func (s *SQLiteMetricsStore) SaveDepartmentCounts(date string, counts map[string]int64) error {
	return s.upsertDailyCounts(
		`INSERT INTO department_query_stats (date, department, count)
		 VALUES (?, ?, ?)
		 ON CONFLICT(date, department) DO UPDATE SET count = count + excluded.count`,
		date, counts)
}

// GetDepartmentCounts retrieves per-department counts for a date range.
func (s *SQLiteMetricsStore) GetDepartmentCounts(from, to string) (map[string]int64, error) {
	return s.queryDailyCounts(
		`SELECT department, SUM(count) FROM department_query_stats
		 WHERE date >= ? AND date <= ? GROUP BY department`,
		from, to)
}

// SaveLanguageCounts upserts daily per-language counts.
func (s *SQLiteMetricsStore) SaveLanguageCounts(date string, counts map[string]int64) error {
	return s.upsertDailyCounts(
		`INSERT INTO language_query_stats (date, language, count)
		 VALUES (?, ?, ?)
		 ON CONFLICT(date, language) DO UPDATE SET count = count + excluded.count`,
		date, counts)
}

// GetLanguageCounts retrieves per-language counts for a date range.
func (s *SQLiteMetricsStore) GetLanguageCounts(from, to string) (map[string]int64, error) {
	return s.queryDailyCounts(
		`SELECT language, SUM(count) FROM language_query_stats
		 WHERE date >= ? AND date <= ? GROUP BY language`,
		from, to)
}

func (s *SQLiteMetricsStore) upsertDailyCounts(query, date string, counts map[string]int64) error {
	if len(counts) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(query)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for key, count := range counts {
		if _, err := stmt.Exec(date, key, count); err != nil {
			return fmt.Errorf("upsert count: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *SQLiteMetricsStore) queryDailyCounts(query, from, to string) (map[string]int64, error) {
	rows, err := s.db.Query(query, from, to)
	if err != nil {
		return nil, fmt.Errorf("query counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var key string
		var count int64
		if err := rows.Scan(&key, &count); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		counts[key] = count
	}
	return counts, rows.Err()
}

// UpsertTermCounts updates term frequency counts.
func (s *SQLiteMetricsStore) UpsertTermCounts(terms map[string]int64) error {
	if len(terms) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
		INSERT INTO query_terms (term, count, last_seen)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(term) DO UPDATE SET
			count = count + excluded.count,
			last_seen = CURRENT_TIMESTAMP
	`)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for term, count := range terms {
		if _, err := stmt.Exec(term, count); err != nil {
			return fmt.Errorf("upsert term count: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// GetTopTerms retrieves the top N terms by frequency.
func (s *SQLiteMetricsStore) GetTopTerms(limit int) ([]TermCount, error) {
	rows, err := s.db.Query(`
		SELECT term, count
		FROM query_terms
		ORDER BY count DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query top terms: %w", err)
	}
	defer rows.Close()

	var terms []TermCount
	for rows.Next() {
		var tc TermCount
		if err := rows.Scan(&tc.Term, &tc.Count); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		terms = append(terms, tc)
	}
	return terms, rows.Err()
}

// AddZeroResultQuery records a zero-result query, keeping at most the
// newest 100 entries.
func (s *SQLiteMetricsStore) AddZeroResultQuery(query string, timestamp time.Time) error {
	_, err := s.db.Exec(`
		INSERT INTO zero_result_queries (query, timestamp)
		VALUES (?, ?)
	`, query, timestamp)
	if err != nil {
		return fmt.Errorf("insert zero-result query: %w", err)
	}

	_, err = s.db.Exec(`
		DELETE FROM zero_result_queries
		WHERE id NOT IN (
			SELECT id FROM zero_result_queries
			ORDER BY id DESC
			LIMIT 100
		)
	`)
	if err != nil {
		return fmt.Errorf("trim zero-result queries: %w", err)
	}

	return nil
}

// GetZeroResultQueries retrieves recent zero-result queries.
func (s *SQLiteMetricsStore) GetZeroResultQueries(limit int) ([]string, error) {
	rows, err := s.db.Query(`
		SELECT query
		FROM zero_result_queries
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query zero-result queries: %w", err)
	}
	defer rows.Close()

	var queries []string
	for rows.Next() {
		var q string
		if err := rows.Scan(&q); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		queries = append(queries, q)
	}
	return queries, rows.Err()
}

// SaveLatencyCounts upserts daily latency histogram counts.
func (s *SQLiteMetricsStore) SaveLatencyCounts(date string, counts map[LatencyBucket]int64) error {
	raw := make(map[string]int64, len(counts))
	for bucket, count := range counts {
		raw[string(bucket)] = count
	}
	return s.upsertDailyCounts(
		`INSERT INTO query_latency_stats (date, bucket, count)
		 VALUES (?, ?, ?)
		 ON CONFLICT(date, bucket) DO UPDATE SET count = count + excluded.count`,
		date, raw)
}

// GetLatencyCounts retrieves the latency distribution for a date range.
func (s *SQLiteMetricsStore) GetLatencyCounts(from, to string) (map[LatencyBucket]int64, error) {
	raw, err := s.queryDailyCounts(
		`SELECT bucket, SUM(count) FROM query_latency_stats
		 WHERE date >= ? AND date <= ? GROUP BY bucket`,
		from, to)
	if err != nil {
		return nil, err
	}

	counts := make(map[LatencyBucket]int64, len(raw))
	for bucket, count := range raw {
		counts[LatencyBucket(bucket)] = count
	}
	return counts, nil
}

// Close releases resources. The db handle is shared and stays open.
func (s *SQLiteMetricsStore) Close() error {
	return nil
}
