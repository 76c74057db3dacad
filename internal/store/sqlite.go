package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure Go SQLite driver
)

// validateSQLiteIntegrity runs PRAGMA integrity_check on an existing
// database. A corrupted file (crash mid-write, partial copy) is removed
// together with its -wal and -shm siblings so it can be rebuilt.
func validateSQLiteIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil // Fresh database, nothing to validate
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return removeCorrupted(path, fmt.Errorf("cannot open: %w", err))
	}
	defer func() { _ = db.Close() }()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return removeCorrupted(path, fmt.Errorf("integrity check failed: %w", err))
	}
	if result != "ok" {
		return removeCorrupted(path, fmt.Errorf("integrity check returned %q", result))
	}

	return nil
}

// removeCorrupted deletes a corrupted database and its WAL files.
func removeCorrupted(path string, cause error) error {
	slog.Warn("sqlite_corrupted",
		slog.String("path", path),
		slog.String("error", cause.Error()))

	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("sqlite corrupted at %s and cannot remove: %w (cause: %v)", path, err, cause)
		}
	}

	slog.Info("sqlite_cleared", slog.String("path", path))
	return nil
}

// OpenSQLite opens (or creates) a SQLite database with the pragmas used
// across the service: WAL journaling, busy timeout, and an in-memory
// temp store. The pool is capped at one connection because modernc's
// driver serializes writes anyway and a single writer avoids
// SQLITE_BUSY churn.
func OpenSQLite(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	if err := validateSQLiteIntegrity(path); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -65536",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	db.SetMaxOpenConns(1)

	return db, nil
}
