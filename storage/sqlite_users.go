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

// SQLiteUserStorage implements core.UserStorage using SQLite.
type SQLiteUserStorage struct {
	sqlite *SQLite
	logger *zap.SugaredLogger
}

// NewSQLiteUserStorage creates a new user storage instance.
func NewSQLiteUserStorage(sqlite *SQLite, logger *zap.SugaredLogger) (*SQLiteUserStorage, error) {
	s := &SQLiteUserStorage{sqlite: sqlite, logger: logger}
	if err := s.ensureTables(); err != nil {
		return nil, fmt.Errorf("failed to ensure user tables: %w", err)
	}
	return s, nil
}

func (s *SQLiteUserStorage) ensureTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		permissions TEXT NOT NULL DEFAULT '[]',
		active INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_users_username ON users(username);
	`

	if _, err := s.sqlite.WriteDB.Exec(schema); err != nil {
		return fmt.Errorf("failed to create user tables: %w", err)
	}
	return nil
}

// CreateUser stores a new user.
func (s *SQLiteUserStorage) CreateUser(ctx context.Context, user *core.User) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	permsJSON, _ := json.Marshal(user.Permissions)

	_, err := s.sqlite.WriteDB.ExecContext(ctx,
		`INSERT INTO users (id, username, password_hash, permissions, active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Username, user.PasswordHash, string(permsJSON),
		user.Active, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Infow("User created", "user_id", user.ID, "username", user.Username)
	return nil
}

func scanUser(scan func(dest ...any) error) (*core.User, error) {
	var u core.User
	var permsJSON string
	err := scan(&u.ID, &u.Username, &u.PasswordHash, &permsJSON,
		&u.Active, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if permsJSON != "" && permsJSON != "null" {
		if err := json.Unmarshal([]byte(permsJSON), &u.Permissions); err != nil {
			return nil, fmt.Errorf("failed to parse user permissions: %w", err)
		}
	}
	return &u, nil
}

const userSelectColumns = `
	SELECT id, username, password_hash, permissions, active, created_at, updated_at
	FROM users
`

// GetUser retrieves a user by ID.
func (s *SQLiteUserStorage) GetUser(ctx context.Context, id string) (*core.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	row := s.sqlite.ReadDB.QueryRowContext(ctx, userSelectColumns+" WHERE id = ?", id)
	u, err := scanUser(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// GetUserByUsername retrieves a user by username.
func (s *SQLiteUserStorage) GetUserByUsername(ctx context.Context, username string) (*core.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	row := s.sqlite.ReadDB.QueryRowContext(ctx, userSelectColumns+" WHERE username = ?", username)
	u, err := scanUser(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// UpdateUser updates an existing user.
func (s *SQLiteUserStorage) UpdateUser(ctx context.Context, user *core.User) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	user.UpdatedAt = time.Now().UTC()
	permsJSON, _ := json.Marshal(user.Permissions)

	res, err := s.sqlite.WriteDB.ExecContext(ctx,
		`UPDATE users SET username = ?, password_hash = ?, permissions = ?,
			active = ?, updated_at = ?
		 WHERE id = ?`,
		user.Username, user.PasswordHash, string(permsJSON),
		user.Active, user.UpdatedAt, user.ID)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rows == 0 {
		return ErrUserNotFound
	}
	return nil
}

// DeleteUser removes a user by ID.
func (s *SQLiteUserStorage) DeleteUser(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := s.sqlite.WriteDB.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if rows == 0 {
		return ErrUserNotFound
	}
	return nil
}

// ListUsers returns all users ordered by username.
func (s *SQLiteUserStorage) ListUsers(ctx context.Context) ([]*core.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := s.sqlite.ReadDB.QueryContext(ctx, userSelectColumns+" ORDER BY username")
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*core.User
	for rows.Next() {
		u, err := scanUser(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
