package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// ErrNotFound indicates a missing row.
var ErrNotFound = errors.New("not found")

// SQLiteMetadataStore persists chunks, messages, routing logs, and
// index state in a single SQLite database.
type SQLiteMetadataStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	closed bool
}

var _ MetadataStore = (*SQLiteMetadataStore)(nil)

const metadataSchema = `
CREATE TABLE IF NOT EXISTS chunks (
	id          TEXT PRIMARY KEY,
	file_path   TEXT NOT NULL,
	department  TEXT NOT NULL,
	section     TEXT NOT NULL DEFAULT '',
	ordinal     INTEGER NOT NULL,
	content     TEXT NOT NULL,
	created_at  TIMESTAMP NOT NULL,
	updated_at  TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chunks_file ON chunks(file_path);
CREATE INDEX IF NOT EXISTS idx_chunks_department ON chunks(department);

CREATE TABLE IF NOT EXISTS messages (
	id          TEXT PRIMARY KEY,
	user_id     INTEGER NOT NULL,
	role        TEXT NOT NULL,
	content     TEXT NOT NULL,
	agent       TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_user ON messages(user_id, created_at);

CREATE TABLE IF NOT EXISTS routing_logs (
	id                    INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id               INTEGER NOT NULL,
	query                 TEXT NOT NULL,
	predicted_department  TEXT NOT NULL,
	prediction_confidence REAL NOT NULL,
	final_department      TEXT NOT NULL,
	was_overridden        INTEGER NOT NULL,
	override_reason       TEXT NOT NULL DEFAULT '',
	language              TEXT NOT NULL DEFAULT 'en',
	total_time_ms         INTEGER NOT NULL DEFAULT 0,
	created_at            TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_routing_user ON routing_logs(user_id, created_at);

CREATE TABLE IF NOT EXISTS state (
	key    TEXT PRIMARY KEY,
	value  TEXT NOT NULL
);
`

// NewSQLiteMetadataStore opens (or creates) the metadata database.
func NewSQLiteMetadataStore(path string) (*SQLiteMetadataStore, error) {
	db, err := OpenSQLite(path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(metadataSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteMetadataStore{db: db}, nil
}

// SaveChunks upserts chunks in a single transaction.
func (s *SQLiteMetadataStore) SaveChunks(ctx context.Context, chunks []*Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, file_path, department, section, ordinal, content, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			file_path = excluded.file_path,
			department = excluded.department,
			section = excluded.section,
			ordinal = excluded.ordinal,
			content = excluded.content,
			updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	now := time.Now().UTC()
	for _, c := range chunks {
		created := c.CreatedAt
		if created.IsZero() {
			created = now
		}
		if _, err := stmt.ExecContext(ctx, c.ID, c.FilePath, c.Department, c.Section, c.Ordinal, c.Content, created, now); err != nil {
			return fmt.Errorf("failed to save chunk %s: %w", c.ID, err)
		}
	}

	return tx.Commit()
}

// GetChunk returns one chunk by ID.
func (s *SQLiteMetadataStore) GetChunk(ctx context.Context, id string) (*Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, file_path, department, section, ordinal, content, created_at, updated_at
		FROM chunks WHERE id = ?`, id)

	c := &Chunk{}
	err := row.Scan(&c.ID, &c.FilePath, &c.Department, &c.Section, &c.Ordinal, &c.Content, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get chunk: %w", err)
	}
	return c, nil
}

// GetChunks batch-fetches chunks by ID, preserving the input order.
// Missing IDs are silently skipped.
func (s *SQLiteMetadataStore) GetChunks(ctx context.Context, ids []string) ([]*Chunk, error) {
	if len(ids) == 0 {
		return []*Chunk{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, file_path, department, section, ordinal, content, created_at, updated_at
		FROM chunks WHERE id IN (%s)`, placeholders), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	byID := make(map[string]*Chunk, len(ids))
	for rows.Next() {
		c := &Chunk{}
		if err := rows.Scan(&c.ID, &c.FilePath, &c.Department, &c.Section, &c.Ordinal, &c.Content, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		byID[c.ID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result := make([]*Chunk, 0, len(ids))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			result = append(result, c)
		}
	}
	return result, nil
}

// DeleteChunksByFile removes every chunk belonging to a file.
func (s *SQLiteMetadataStore) DeleteChunksByFile(ctx context.Context, filePath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	_, err := s.db.ExecContext(ctx, "DELETE FROM chunks WHERE file_path = ?", filePath)
	if err != nil {
		return fmt.Errorf("failed to delete chunks for %s: %w", filePath, err)
	}
	return nil
}

// DeleteAllChunks removes every chunk. Used by a full index reset.
func (s *SQLiteMetadataStore) DeleteAllChunks(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	_, err := s.db.ExecContext(ctx, "DELETE FROM chunks")
	if err != nil {
		return fmt.Errorf("failed to delete all chunks: %w", err)
	}
	return nil
}

// ListChunkIDs returns all chunk IDs.
func (s *SQLiteMetadataStore) ListChunkIDs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	rows, err := s.db.QueryContext(ctx, "SELECT id FROM chunks ORDER BY file_path, ordinal")
	if err != nil {
		return nil, fmt.Errorf("failed to list chunk ids: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CountChunks returns the number of stored chunks.
func (s *SQLiteMetadataStore) CountChunks(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, fmt.Errorf("store is closed")
	}

	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return count, nil
}

// CountChunksByDepartment returns per-department chunk counts.
func (s *SQLiteMetadataStore) CountChunksByDepartment(ctx context.Context) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	rows, err := s.db.QueryContext(ctx, "SELECT department, COUNT(*) FROM chunks GROUP BY department")
	if err != nil {
		return nil, fmt.Errorf("failed to count chunks by department: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[string]int)
	for rows.Next() {
		var dept string
		var count int
		if err := rows.Scan(&dept, &count); err != nil {
			return nil, fmt.Errorf("failed to scan department count: %w", err)
		}
		counts[dept] = count
	}
	return counts, rows.Err()
}

// SaveMessage persists a chat message. Content must be redacted before
// it reaches this layer.
func (s *SQLiteMetadataStore) SaveMessage(ctx context.Context, msg *Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	created := msg.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, user_id, role, content, agent, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.UserID, msg.Role, msg.Content, msg.Agent, created)
	if err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}
	return nil
}

// RecentMessages returns the most recent messages for a user, newest first.
func (s *SQLiteMetadataStore) RecentMessages(ctx context.Context, userID int64, limit int) ([]*Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, role, content, agent, created_at
		FROM messages WHERE user_id = ?
		ORDER BY created_at DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var msgs []*Message
	for rows.Next() {
		m := &Message{}
		if err := rows.Scan(&m.ID, &m.UserID, &m.Role, &m.Content, &m.Agent, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// SaveRoutingLog persists one routing decision.
func (s *SQLiteMetadataStore) SaveRoutingLog(ctx context.Context, log *RoutingLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	created := log.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO routing_logs
			(user_id, query, predicted_department, prediction_confidence,
			 final_department, was_overridden, override_reason, language, total_time_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		log.UserID, log.Query, log.PredictedDepartment, log.PredictionConfidence,
		log.FinalDepartment, log.WasOverridden, log.OverrideReason, log.Language, log.TotalTimeMS, created)
	if err != nil {
		return fmt.Errorf("failed to save routing log: %w", err)
	}
	return nil
}

// GetState returns the value for a state key, or ErrNotFound.
func (s *SQLiteMetadataStore) GetState(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return "", fmt.Errorf("store is closed")
	}

	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM state WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get state %s: %w", key, err)
	}
	return value, nil
}

// SetState upserts a state key.
func (s *SQLiteMetadataStore) SetState(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO state (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set state %s: %w", key, err)
	}
	return nil
}

// DB exposes the underlying handle so telemetry tables can share it.
func (s *SQLiteMetadataStore) DB() *sql.DB {
	return s.db
}

// Close checkpoints the WAL and closes the database. Idempotent.
func (s *SQLiteMetadataStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}
