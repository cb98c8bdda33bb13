package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"casetrack/core"

	"go.uber.org/zap"
)

// SQLiteIOCStorage implements core.IOCStorage using SQLite.
type SQLiteIOCStorage struct {
	sqlite *SQLite
	logger *zap.SugaredLogger
}

// NewSQLiteIOCStorage creates a new IOC storage instance and seeds the
// IOC type and TLP registries on first start.
func NewSQLiteIOCStorage(sqlite *SQLite, logger *zap.SugaredLogger) (*SQLiteIOCStorage, error) {
	s := &SQLiteIOCStorage{sqlite: sqlite, logger: logger}
	if err := s.ensureTables(); err != nil {
		return nil, fmt.Errorf("failed to ensure IOC tables: %w", err)
	}
	if err := s.seedReferenceData(); err != nil {
		return nil, fmt.Errorf("failed to seed IOC reference data: %w", err)
	}
	return s, nil
}

func (s *SQLiteIOCStorage) ensureTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS ioc_types (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		description TEXT DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS tlps (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS iocs (
		id TEXT PRIMARY KEY,
		uuid TEXT NOT NULL UNIQUE,
		case_id TEXT NOT NULL REFERENCES cases(id) ON DELETE CASCADE,
		value TEXT NOT NULL,
		type_id INTEGER NOT NULL REFERENCES ioc_types(id),
		tlp_id INTEGER REFERENCES tlps(id),
		description TEXT DEFAULT '',
		tags TEXT DEFAULT '[]',
		created_by TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_iocs_case ON iocs(case_id);
	CREATE INDEX IF NOT EXISTS idx_iocs_type ON iocs(type_id);
	CREATE INDEX IF NOT EXISTS idx_iocs_value ON iocs(value);
	CREATE INDEX IF NOT EXISTS idx_iocs_created_at ON iocs(created_at);
	`

	if _, err := s.sqlite.WriteDB.Exec(schema); err != nil {
		return fmt.Errorf("failed to create IOC tables: %w", err)
	}
	return nil
}

func (s *SQLiteIOCStorage) seedReferenceData() error {
	for _, t := range core.DefaultIOCTypes {
		_, err := s.sqlite.WriteDB.Exec(
			"INSERT OR IGNORE INTO ioc_types (id, name, description) VALUES (?, ?, ?)",
			t.ID, t.Name, t.Description,
		)
		if err != nil {
			return fmt.Errorf("failed to seed IOC type %q: %w", t.Name, err)
		}
	}
	for _, tlp := range core.DefaultTlps {
		_, err := s.sqlite.WriteDB.Exec(
			"INSERT OR IGNORE INTO tlps (id, name) VALUES (?, ?)",
			tlp.ID, tlp.Name,
		)
		if err != nil {
			return fmt.Errorf("failed to seed TLP %q: %w", tlp.Name, err)
		}
	}
	return nil
}

// Allowed sort columns for IOC listing.
var allowedIOCSortFields = map[string]string{
	"value":      "i.value",
	"type_id":    "i.type_id",
	"tlp_id":     "i.tlp_id",
	"created_at": "i.created_at",
	"updated_at": "i.updated_at",
}

// CreateIOC stores a new IOC.
func (s *SQLiteIOCStorage) CreateIOC(ctx context.Context, ioc *core.IOC) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tagsJSON, _ := json.Marshal(ioc.Tags)

	query := `
		INSERT INTO iocs (id, uuid, case_id, value, type_id, tlp_id,
			description, tags, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.sqlite.WriteDB.ExecContext(ctx, query,
		ioc.ID, ioc.UUID, ioc.CaseID, ioc.Value, ioc.TypeID, ioc.TlpID,
		ioc.Description, string(tagsJSON), ioc.CreatedBy, ioc.CreatedAt, ioc.UpdatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return ErrConstraintViolation
		}
		return fmt.Errorf("failed to create IOC: %w", err)
	}

	s.logger.Infow("IOC created",
		"ioc_id", ioc.ID,
		"case_id", ioc.CaseID,
		"type_id", ioc.TypeID,
		"created_by", ioc.CreatedBy,
	)
	return nil
}

const iocSelectColumns = `
	SELECT i.id, i.uuid, i.case_id, i.value, i.type_id, t.name, i.tlp_id,
		i.description, i.tags, i.created_by, i.created_at, i.updated_at
	FROM iocs i JOIN ioc_types t ON t.id = i.type_id
`

func scanIOC(scan func(dest ...any) error) (*core.IOC, error) {
	var ioc core.IOC
	var tagsJSON string
	var tlpID sql.NullInt64
	err := scan(
		&ioc.ID, &ioc.UUID, &ioc.CaseID, &ioc.Value, &ioc.TypeID, &ioc.TypeName, &tlpID,
		&ioc.Description, &tagsJSON, &ioc.CreatedBy, &ioc.CreatedAt, &ioc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if tlpID.Valid {
		ioc.TlpID = &tlpID.Int64
	}
	if tagsJSON != "" && tagsJSON != "null" {
		if err := json.Unmarshal([]byte(tagsJSON), &ioc.Tags); err != nil {
			return nil, fmt.Errorf("failed to parse IOC tags: %w", err)
		}
	}
	return &ioc, nil
}

// GetIOC retrieves an IOC by ID.
func (s *SQLiteIOCStorage) GetIOC(ctx context.Context, id string) (*core.IOC, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	row := s.sqlite.ReadDB.QueryRowContext(ctx, iocSelectColumns+" WHERE i.id = ?", id)
	ioc, err := scanIOC(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrIOCNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get IOC: %w", err)
	}
	return ioc, nil
}

// UpdateIOC updates an existing IOC. The owning case never changes.
func (s *SQLiteIOCStorage) UpdateIOC(ctx context.Context, ioc *core.IOC) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	ioc.UpdatedAt = time.Now().UTC()
	tagsJSON, _ := json.Marshal(ioc.Tags)

	query := `
		UPDATE iocs SET value = ?, type_id = ?, tlp_id = ?, description = ?,
			tags = ?, updated_at = ?
		WHERE id = ?
	`
	res, err := s.sqlite.WriteDB.ExecContext(ctx, query,
		ioc.Value, ioc.TypeID, ioc.TlpID, ioc.Description,
		string(tagsJSON), ioc.UpdatedAt, ioc.ID,
	)
	if err != nil {
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return ErrConstraintViolation
		}
		return fmt.Errorf("failed to update IOC: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rows == 0 {
		return ErrIOCNotFound
	}
	return nil
}

// DeleteIOC removes an IOC by ID.
func (s *SQLiteIOCStorage) DeleteIOC(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := s.sqlite.WriteDB.ExecContext(ctx, "DELETE FROM iocs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete IOC: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if rows == 0 {
		return ErrIOCNotFound
	}

	s.logger.Infow("IOC deleted", "ioc_id", id)
	return nil
}

// ListIOCs returns a filtered, sorted window of one case's IOCs plus the
// total count. Only explicitly supplied filters contribute predicates.
func (s *SQLiteIOCStorage) ListIOCs(ctx context.Context, caseID string, filters *core.IOCFilters) ([]*core.IOC, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	where := []string{"i.case_id = ?"}
	args := []any{caseID}

	if filters.Value != "" {
		where = append(where, "i.value LIKE ?")
		args = append(args, "%"+filters.Value+"%")
	}
	if filters.TypeID > 0 {
		where = append(where, "i.type_id = ?")
		args = append(args, filters.TypeID)
	}
	if filters.TlpID > 0 {
		where = append(where, "i.tlp_id = ?")
		args = append(args, filters.TlpID)
	}
	if filters.Description != "" {
		where = append(where, "i.description LIKE ?")
		args = append(args, "%"+filters.Description+"%")
	}
	if filters.Tag != "" {
		where = append(where, "i.tags LIKE ?")
		args = append(args, "%"+filters.Tag+"%")
	}

	whereClause := " WHERE " + strings.Join(where, " AND ")

	var total int64
	countQuery := "SELECT COUNT(*) FROM iocs i" + whereClause
	if err := s.sqlite.ReadDB.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count IOCs: %w", err)
	}

	order, err := orderClause(allowedIOCSortFields, filters.SortBy, filters.SortDir, "created_at")
	if err != nil {
		return nil, 0, err
	}

	query := iocSelectColumns + whereClause + order + " LIMIT ? OFFSET ?"
	args = append(args, filters.PerPage, filters.Offset())

	rows, err := s.sqlite.ReadDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list IOCs: %w", err)
	}
	defer rows.Close()

	var iocs []*core.IOC
	for rows.Next() {
		ioc, err := scanIOC(rows.Scan)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan IOC: %w", err)
		}
		iocs = append(iocs, ioc)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate IOCs: %w", err)
	}

	return iocs, total, nil
}

// CountIOCsByCase returns the number of IOCs attached to a case.
func (s *SQLiteIOCStorage) CountIOCsByCase(ctx context.Context, caseID string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var count int64
	err := s.sqlite.ReadDB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM iocs WHERE case_id = ?", caseID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count IOCs: %w", err)
	}
	return count, nil
}

// IOCTypeExists reports whether a type code is present in the registry.
func (s *SQLiteIOCStorage) IOCTypeExists(ctx context.Context, typeID int64) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var one int
	err := s.sqlite.ReadDB.QueryRowContext(ctx, "SELECT 1 FROM ioc_types WHERE id = ?", typeID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check IOC type: %w", err)
	}
	return true, nil
}

// TlpExists reports whether a TLP code is present in the registry.
func (s *SQLiteIOCStorage) TlpExists(ctx context.Context, tlpID int64) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var one int
	err := s.sqlite.ReadDB.QueryRowContext(ctx, "SELECT 1 FROM tlps WHERE id = ?", tlpID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check TLP: %w", err)
	}
	return true, nil
}

// ListIOCTypes returns the full type registry.
func (s *SQLiteIOCStorage) ListIOCTypes(ctx context.Context) ([]core.IOCType, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := s.sqlite.ReadDB.QueryContext(ctx,
		"SELECT id, name, description FROM ioc_types ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list IOC types: %w", err)
	}
	defer rows.Close()

	var types []core.IOCType
	for rows.Next() {
		var t core.IOCType
		if err := rows.Scan(&t.ID, &t.Name, &t.Description); err != nil {
			return nil, fmt.Errorf("failed to scan IOC type: %w", err)
		}
		types = append(types, t)
	}
	return types, rows.Err()
}
