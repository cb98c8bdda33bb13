package storage

import (
	"context"
	"fmt"
	"time"

	"casetrack/core"

	"go.uber.org/zap"
)

// SQLiteGrantStorage implements core.GrantStorage using SQLite.
type SQLiteGrantStorage struct {
	sqlite *SQLite
	logger *zap.SugaredLogger
}

// NewSQLiteGrantStorage creates a new grant storage instance.
func NewSQLiteGrantStorage(sqlite *SQLite, logger *zap.SugaredLogger) (*SQLiteGrantStorage, error) {
	s := &SQLiteGrantStorage{sqlite: sqlite, logger: logger}
	if err := s.ensureTables(); err != nil {
		return nil, fmt.Errorf("failed to ensure grant tables: %w", err)
	}
	return s, nil
}

func (s *SQLiteGrantStorage) ensureTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS groups (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		description TEXT DEFAULT '',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS group_members (
		group_id TEXT NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL,
		added_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (group_id, user_id)
	);
	CREATE INDEX IF NOT EXISTS idx_group_members_user ON group_members(user_id);

	-- Access levels are stored as their ordinal (0 none, 1 read_only,
	-- 2 full_access) so MAX() resolves the effective level directly.
	CREATE TABLE IF NOT EXISTS access_grants (
		id TEXT NOT NULL,
		subject_type TEXT NOT NULL CHECK(subject_type IN ('user','group')),
		subject_id TEXT NOT NULL,
		case_id TEXT NOT NULL REFERENCES cases(id) ON DELETE CASCADE,
		level INTEGER NOT NULL CHECK(level IN (0,1,2)),
		granted_by TEXT DEFAULT '',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (subject_type, subject_id, case_id)
	);
	CREATE INDEX IF NOT EXISTS idx_access_grants_case ON access_grants(case_id);
	CREATE INDEX IF NOT EXISTS idx_access_grants_subject ON access_grants(subject_id);
	`

	if _, err := s.sqlite.WriteDB.Exec(schema); err != nil {
		return fmt.Errorf("failed to create grant tables: %w", err)
	}
	return nil
}

// EffectiveAccessLevel resolves the highest level reachable by the user for
// the case: the direct user grant and any grant held by a group the user is
// a member of, combined with MAX. No grant at all resolves to none.
func (s *SQLiteGrantStorage) EffectiveAccessLevel(ctx context.Context, userID, caseID string) (core.AccessLevel, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		SELECT COALESCE(MAX(level), 0) FROM access_grants
		WHERE case_id = ?
		  AND (
			(subject_type = 'user' AND subject_id = ?)
			OR (subject_type = 'group' AND subject_id IN (
				SELECT group_id FROM group_members WHERE user_id = ?
			))
		  )
	`
	var level int
	if err := s.sqlite.ReadDB.QueryRowContext(ctx, query, caseID, userID, userID).Scan(&level); err != nil {
		return core.AccessLevelNone, fmt.Errorf("failed to resolve effective access level: %w", err)
	}

	lvl := core.AccessLevel(level)
	if !lvl.IsValid() {
		return core.AccessLevelNone, fmt.Errorf("invalid access level in storage: %d", level)
	}
	return lvl, nil
}

// UpsertGrant inserts or replaces the grant for a (subject, case) pair.
func (s *SQLiteGrantStorage) UpsertGrant(ctx context.Context, grant *core.AccessGrant) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	now := time.Now().UTC()
	if grant.CreatedAt.IsZero() {
		grant.CreatedAt = now
	}
	grant.UpdatedAt = now

	query := `
		INSERT INTO access_grants (id, subject_type, subject_id, case_id, level,
			granted_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(subject_type, subject_id, case_id)
		DO UPDATE SET level = excluded.level, granted_by = excluded.granted_by,
			updated_at = excluded.updated_at
	`
	_, err := s.sqlite.WriteDB.ExecContext(ctx, query,
		grant.ID, grant.SubjectType, grant.SubjectID, grant.CaseID, int(grant.Level),
		grant.GrantedBy, grant.CreatedAt, grant.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert grant: %w", err)
	}

	s.logger.Infow("Access grant set",
		"subject_type", grant.SubjectType,
		"subject_id", grant.SubjectID,
		"case_id", grant.CaseID,
		"level", grant.Level.String(),
	)
	return nil
}

// DeleteGrant removes the grant for a (subject, case) pair.
func (s *SQLiteGrantStorage) DeleteGrant(ctx context.Context, subjectType core.SubjectType, subjectID, caseID string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := s.sqlite.WriteDB.ExecContext(ctx,
		"DELETE FROM access_grants WHERE subject_type = ? AND subject_id = ? AND case_id = ?",
		subjectType, subjectID, caseID)
	if err != nil {
		return fmt.Errorf("failed to delete grant: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if rows == 0 {
		return ErrGrantNotFound
	}
	return nil
}

func (s *SQLiteGrantStorage) listGrants(ctx context.Context, where string, args ...any) ([]*core.AccessGrant, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		SELECT id, subject_type, subject_id, case_id, level, granted_by,
			created_at, updated_at
		FROM access_grants ` + where + " ORDER BY created_at"

	rows, err := s.sqlite.ReadDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list grants: %w", err)
	}
	defer rows.Close()

	var grants []*core.AccessGrant
	for rows.Next() {
		var g core.AccessGrant
		var level int
		if err := rows.Scan(&g.ID, &g.SubjectType, &g.SubjectID, &g.CaseID,
			&level, &g.GrantedBy, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan grant: %w", err)
		}
		g.Level = core.AccessLevel(level)
		grants = append(grants, &g)
	}
	return grants, rows.Err()
}

// ListGrantsByCase returns all grants attached to a case.
func (s *SQLiteGrantStorage) ListGrantsByCase(ctx context.Context, caseID string) ([]*core.AccessGrant, error) {
	return s.listGrants(ctx, "WHERE case_id = ?", caseID)
}

// ListGrantsForUser returns a user's direct grants.
func (s *SQLiteGrantStorage) ListGrantsForUser(ctx context.Context, userID string) ([]*core.AccessGrant, error) {
	return s.listGrants(ctx, "WHERE subject_type = 'user' AND subject_id = ?", userID)
}

// CreateGroup stores a new group.
func (s *SQLiteGrantStorage) CreateGroup(ctx context.Context, group *core.Group) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	now := time.Now().UTC()
	if group.CreatedAt.IsZero() {
		group.CreatedAt = now
	}
	group.UpdatedAt = now

	_, err := s.sqlite.WriteDB.ExecContext(ctx,
		"INSERT INTO groups (id, name, description, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
		group.ID, group.Name, group.Description, group.CreatedAt, group.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create group: %w", err)
	}
	return nil
}

// DeleteGroup removes a group; memberships cascade.
func (s *SQLiteGrantStorage) DeleteGroup(ctx context.Context, groupID string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := s.sqlite.WriteDB.ExecContext(ctx, "DELETE FROM groups WHERE id = ?", groupID)
	if err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if rows == 0 {
		return ErrGroupNotFound
	}
	return nil
}

// AddGroupMember adds a user to a group; adding twice is a no-op.
func (s *SQLiteGrantStorage) AddGroupMember(ctx context.Context, groupID, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := s.sqlite.WriteDB.ExecContext(ctx,
		"INSERT OR IGNORE INTO group_members (group_id, user_id) VALUES (?, ?)",
		groupID, userID)
	if err != nil {
		return fmt.Errorf("failed to add group member: %w", err)
	}
	return nil
}

// RemoveGroupMember removes a user from a group.
func (s *SQLiteGrantStorage) RemoveGroupMember(ctx context.Context, groupID, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := s.sqlite.WriteDB.ExecContext(ctx,
		"DELETE FROM group_members WHERE group_id = ? AND user_id = ?",
		groupID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove group member: %w", err)
	}
	return nil
}

// ListGroupMembers returns the user IDs in a group.
func (s *SQLiteGrantStorage) ListGroupMembers(ctx context.Context, groupID string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := s.sqlite.ReadDB.QueryContext(ctx,
		"SELECT user_id FROM group_members WHERE group_id = ? ORDER BY added_at", groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list group members: %w", err)
	}
	defer rows.Close()

	var members []string
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("failed to scan group member: %w", err)
		}
		members = append(members, userID)
	}
	return members, rows.Err()
}
