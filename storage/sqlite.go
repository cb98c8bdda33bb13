package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLite holds the SQLite database connections for case-management storage.
// Separate read and write pools leverage WAL mode's concurrent read capability:
// WAL supports unlimited concurrent readers plus exactly one writer.
type SQLite struct {
	WriteDB *sql.DB // Write-only pool (MaxOpenConns=1 for WAL single writer)
	ReadDB  *sql.DB // Read-only pool for concurrent SELECTs
	Path    string
	logger  *zap.SugaredLogger
}

// configureConnection applies the standard SQLite settings to a pool:
// WAL journal, enforced foreign keys, and a busy timeout.
func configureConnection(db *sql.DB, logger *zap.SugaredLogger, dbPath, poolType string) error {
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// SQLite disables foreign keys by default; referential integrity between
	// cases and their tasks/IOCs depends on this pragma.
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	var fkEnabled int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&fkEnabled); err != nil {
		return fmt.Errorf("failed to verify foreign keys: %w", err)
	}
	if fkEnabled != 1 {
		return fmt.Errorf("foreign keys not enabled (got: %d)", fkEnabled)
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		return fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	// In-memory databases report "memory" journal mode, not "wal".
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to query journal mode: %w", err)
	}
	if dbPath != ":memory:" && journalMode != "wal" {
		return fmt.Errorf("WAL mode not enabled (got: %s)", journalMode)
	}
	logger.Infow("SQLite pool configured", "pool", poolType, "journal_mode", journalMode)

	return nil
}

// NewSQLite opens the read and write connection pools for the given path.
func NewSQLite(dbPath string, logger *zap.SugaredLogger) (*SQLite, error) {
	dir := filepath.Dir(dbPath)
	if dbPath != ":memory:" && dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// For in-memory databases use shared cache mode so both pools see the
	// same database; separate sql.Open(":memory:") calls would otherwise
	// create independent empty databases.
	actualPath := dbPath
	if dbPath == ":memory:" {
		actualPath = "file::memory:?cache=shared"
	}

	writeDB, err := sql.Open("sqlite", actualPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite write database: %w", err)
	}
	if err := configureConnection(writeDB, logger, dbPath, "write"); err != nil {
		_ = writeDB.Close()
		return nil, fmt.Errorf("failed to configure write connection: %w", err)
	}
	writeDB.SetMaxOpenConns(1)
	writeDB.SetMaxIdleConns(1)
	writeDB.SetConnMaxLifetime(0)
	writeDB.SetConnMaxIdleTime(10 * time.Minute)

	readDB, err := sql.Open("sqlite", actualPath)
	if err != nil {
		_ = writeDB.Close()
		return nil, fmt.Errorf("failed to open SQLite read database: %w", err)
	}
	if err := configureConnection(readDB, logger, dbPath, "read"); err != nil {
		_ = writeDB.Close()
		_ = readDB.Close()
		return nil, fmt.Errorf("failed to configure read connection: %w", err)
	}
	readDB.SetMaxOpenConns(10)
	readDB.SetMaxIdleConns(5)
	readDB.SetConnMaxLifetime(5 * time.Minute)
	readDB.SetConnMaxIdleTime(10 * time.Minute)

	return &SQLite{
		WriteDB: writeDB,
		ReadDB:  readDB,
		Path:    dbPath,
		logger:  logger,
	}, nil
}

// Close closes both connection pools.
func (s *SQLite) Close() error {
	var firstErr error
	if s.WriteDB != nil {
		if err := s.WriteDB.Close(); err != nil {
			firstErr = err
		}
	}
	if s.ReadDB != nil {
		if err := s.ReadDB.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// queryTimeout bounds every single storage operation.
const queryTimeout = 5 * time.Second
