package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"casetrack/core"

	"go.uber.org/zap"
)

// SQLiteActivityStorage implements core.ActivityStorage using SQLite.
// The activities table carries no foreign key on case_id so the audit
// trail survives case deletion.
type SQLiteActivityStorage struct {
	sqlite *SQLite
	logger *zap.SugaredLogger
}

// NewSQLiteActivityStorage creates a new activity storage instance.
func NewSQLiteActivityStorage(sqlite *SQLite, logger *zap.SugaredLogger) (*SQLiteActivityStorage, error) {
	s := &SQLiteActivityStorage{sqlite: sqlite, logger: logger}
	if err := s.ensureTables(); err != nil {
		return nil, fmt.Errorf("failed to ensure activity tables: %w", err)
	}
	return s, nil
}

func (s *SQLiteActivityStorage) ensureTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS activities (
		id TEXT PRIMARY KEY,
		case_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		message TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_activities_case ON activities(case_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_activities_user ON activities(user_id);
	`

	if _, err := s.sqlite.WriteDB.Exec(schema); err != nil {
		return fmt.Errorf("failed to create activity tables: %w", err)
	}
	return nil
}

// Allowed sort columns for activity listing.
var allowedActivitySortFields = map[string]string{
	"created_at": "created_at",
	"user_id":    "user_id",
}

// AppendActivity records a new audit entry. Rows are never updated or
// deleted afterwards.
func (s *SQLiteActivityStorage) AppendActivity(ctx context.Context, entry *core.ActivityEntry) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.sqlite.WriteDB.ExecContext(ctx,
		`INSERT INTO activities (id, case_id, user_id, message, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		entry.ID, entry.CaseID, entry.UserID, entry.Message, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append activity: %w", err)
	}
	return nil
}

// ListActivitiesByCase returns a filtered, sorted window of a case's audit
// trail plus the total count. Newest entries come first by default.
func (s *SQLiteActivityStorage) ListActivitiesByCase(ctx context.Context, caseID string, filters *core.ActivityFilters) ([]*core.ActivityEntry, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	where := []string{"case_id = ?"}
	args := []any{caseID}

	if filters.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, filters.UserID)
	}
	if filters.Since != nil {
		where = append(where, "created_at >= ?")
		args = append(args, filters.Since.UTC())
	}
	if filters.Until != nil {
		where = append(where, "created_at <= ?")
		args = append(args, filters.Until.UTC())
	}

	whereClause := " WHERE " + strings.Join(where, " AND ")

	var total int64
	if err := s.sqlite.ReadDB.QueryRowContext(ctx, "SELECT COUNT(*) FROM activities"+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count activities: %w", err)
	}

	sortDir := filters.SortDir
	if filters.SortBy == "" && sortDir == "" {
		sortDir = "desc"
	}
	order, err := orderClause(allowedActivitySortFields, filters.SortBy, sortDir, "created_at")
	if err != nil {
		return nil, 0, err
	}

	query := "SELECT id, case_id, user_id, message, created_at FROM activities" +
		whereClause + order + " LIMIT ? OFFSET ?"
	args = append(args, filters.PerPage, filters.Offset())

	rows, err := s.sqlite.ReadDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list activities: %w", err)
	}
	defer rows.Close()

	var entries []*core.ActivityEntry
	for rows.Next() {
		var e core.ActivityEntry
		if err := rows.Scan(&e.ID, &e.CaseID, &e.UserID, &e.Message, &e.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan activity: %w", err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate activities: %w", err)
	}

	return entries, total, nil
}
