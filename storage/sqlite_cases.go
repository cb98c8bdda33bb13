package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"casetrack/core"

	"go.uber.org/zap"
)

// SQLiteCaseStorage implements core.CaseStorage using SQLite.
type SQLiteCaseStorage struct {
	sqlite *SQLite
	logger *zap.SugaredLogger
}

// NewSQLiteCaseStorage creates a new case storage instance.
func NewSQLiteCaseStorage(sqlite *SQLite, logger *zap.SugaredLogger) (*SQLiteCaseStorage, error) {
	s := &SQLiteCaseStorage{sqlite: sqlite, logger: logger}
	if err := s.ensureTables(); err != nil {
		return nil, fmt.Errorf("failed to ensure case tables: %w", err)
	}
	return s, nil
}

func (s *SQLiteCaseStorage) ensureTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS cases (
		id TEXT PRIMARY KEY,
		uuid TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		description TEXT DEFAULT '',
		classification TEXT DEFAULT '',
		soc_id TEXT DEFAULT '',
		status TEXT NOT NULL DEFAULT 'open' CHECK(status IN ('open','closed')),
		owner_id TEXT DEFAULT '',
		created_by TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		closed_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_cases_status ON cases(status);
	CREATE INDEX IF NOT EXISTS idx_cases_owner ON cases(owner_id);
	CREATE INDEX IF NOT EXISTS idx_cases_classification ON cases(classification);
	CREATE INDEX IF NOT EXISTS idx_cases_created_at ON cases(created_at);
	`

	if _, err := s.sqlite.WriteDB.Exec(schema); err != nil {
		return fmt.Errorf("failed to create case tables: %w", err)
	}
	return nil
}

// Allowed sort columns for case listing. ORDER BY is assembled from this
// allowlist only, never from caller input.
var allowedCaseSortFields = map[string]string{
	"name":       "name",
	"status":     "status",
	"soc_id":     "soc_id",
	"created_at": "created_at",
	"updated_at": "updated_at",
	"closed_at":  "closed_at",
}

func orderClause(allowed map[string]string, sortBy, sortDir, fallback string) (string, error) {
	if sortBy == "" {
		sortBy = fallback
	}
	col, ok := allowed[sortBy]
	if !ok {
		return "", fmt.Errorf("invalid sort field: %s", sortBy)
	}
	dir := "ASC"
	if strings.EqualFold(sortDir, "desc") {
		dir = "DESC"
	}
	return fmt.Sprintf(" ORDER BY %s %s", col, dir), nil
}

// CreateCase stores a new case.
func (s *SQLiteCaseStorage) CreateCase(ctx context.Context, c *core.Case) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		INSERT INTO cases (id, uuid, name, description, classification, soc_id,
			status, owner_id, created_by, created_at, updated_at, closed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.sqlite.WriteDB.ExecContext(ctx, query,
		c.ID, c.UUID, c.Name, c.Description, c.Classification, c.SocID,
		c.Status, c.OwnerID, c.CreatedBy, c.CreatedAt, c.UpdatedAt, c.ClosedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create case: %w", err)
	}

	s.logger.Infow("Case created", "case_id", c.ID, "name", c.Name, "created_by", c.CreatedBy)
	return nil
}

func (s *SQLiteCaseStorage) scanCase(row *sql.Row) (*core.Case, error) {
	var c core.Case
	var closedAt sql.NullTime
	err := row.Scan(
		&c.ID, &c.UUID, &c.Name, &c.Description, &c.Classification, &c.SocID,
		&c.Status, &c.OwnerID, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt, &closedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCaseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get case: %w", err)
	}
	if closedAt.Valid {
		c.ClosedAt = &closedAt.Time
	}
	return &c, nil
}

// GetCase retrieves a case by ID.
func (s *SQLiteCaseStorage) GetCase(ctx context.Context, id string) (*core.Case, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		SELECT id, uuid, name, description, classification, soc_id,
			status, owner_id, created_by, created_at, updated_at, closed_at
		FROM cases WHERE id = ?
	`
	return s.scanCase(s.sqlite.ReadDB.QueryRowContext(ctx, query, id))
}

// UpdateCase updates an existing case.
func (s *SQLiteCaseStorage) UpdateCase(ctx context.Context, c *core.Case) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	c.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE cases SET name = ?, description = ?, classification = ?, soc_id = ?,
			status = ?, owner_id = ?, updated_at = ?, closed_at = ?
		WHERE id = ?
	`
	res, err := s.sqlite.WriteDB.ExecContext(ctx, query,
		c.Name, c.Description, c.Classification, c.SocID,
		c.Status, c.OwnerID, c.UpdatedAt, c.ClosedAt, c.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update case: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rows == 0 {
		return ErrCaseNotFound
	}
	return nil
}

// DeleteCase removes a case; tasks and IOCs cascade via foreign keys.
func (s *SQLiteCaseStorage) DeleteCase(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := s.sqlite.WriteDB.ExecContext(ctx, "DELETE FROM cases WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete case: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if rows == 0 {
		return ErrCaseNotFound
	}

	s.logger.Infow("Case deleted", "case_id", id)
	return nil
}

// CaseExists reports whether a case row exists.
func (s *SQLiteCaseStorage) CaseExists(ctx context.Context, id string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var one int
	err := s.sqlite.ReadDB.QueryRowContext(ctx, "SELECT 1 FROM cases WHERE id = ?", id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check case existence: %w", err)
	}
	return true, nil
}

// ListCases returns a filtered, sorted window of cases plus the total count.
// Only explicitly supplied filters contribute predicates.
func (s *SQLiteCaseStorage) ListCases(ctx context.Context, filters *core.CaseFilters) ([]*core.Case, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	where := []string{"1=1"}
	args := []any{}

	if filters.Name != "" {
		where = append(where, "name LIKE ?")
		args = append(args, "%"+filters.Name+"%")
	}
	if filters.Classification != "" {
		where = append(where, "classification = ?")
		args = append(args, filters.Classification)
	}
	if filters.SocID != "" {
		where = append(where, "soc_id = ?")
		args = append(args, filters.SocID)
	}
	if filters.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filters.Status)
	}
	if filters.OwnerID != "" {
		where = append(where, "owner_id = ?")
		args = append(args, filters.OwnerID)
	}
	if filters.VisibleToUserID != "" {
		where = append(where, `id IN (
			SELECT case_id FROM access_grants
			WHERE level >= 1 AND (
				(subject_type = 'user' AND subject_id = ?)
				OR (subject_type = 'group' AND subject_id IN (
					SELECT group_id FROM group_members WHERE user_id = ?
				))
			)
		)`)
		args = append(args, filters.VisibleToUserID, filters.VisibleToUserID)
	}

	whereClause := " WHERE " + strings.Join(where, " AND ")

	var total int64
	if err := s.sqlite.ReadDB.QueryRowContext(ctx, "SELECT COUNT(*) FROM cases"+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count cases: %w", err)
	}

	order, err := orderClause(allowedCaseSortFields, filters.SortBy, filters.SortDir, "created_at")
	if err != nil {
		return nil, 0, err
	}

	query := `
		SELECT id, uuid, name, description, classification, soc_id,
			status, owner_id, created_by, created_at, updated_at, closed_at
		FROM cases` + whereClause + order + " LIMIT ? OFFSET ?"
	args = append(args, filters.PerPage, filters.Offset())

	rows, err := s.sqlite.ReadDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list cases: %w", err)
	}
	defer rows.Close()

	var cases []*core.Case
	for rows.Next() {
		var c core.Case
		var closedAt sql.NullTime
		if err := rows.Scan(
			&c.ID, &c.UUID, &c.Name, &c.Description, &c.Classification, &c.SocID,
			&c.Status, &c.OwnerID, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt, &closedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan case: %w", err)
		}
		if closedAt.Valid {
			c.ClosedAt = &closedAt.Time
		}
		cases = append(cases, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate cases: %w", err)
	}

	return cases, total, nil
}
