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

// SQLiteTaskStorage implements core.TaskStorage using SQLite.
type SQLiteTaskStorage struct {
	sqlite *SQLite
	logger *zap.SugaredLogger
}

// NewSQLiteTaskStorage creates a new task storage instance.
func NewSQLiteTaskStorage(sqlite *SQLite, logger *zap.SugaredLogger) (*SQLiteTaskStorage, error) {
	s := &SQLiteTaskStorage{sqlite: sqlite, logger: logger}
	if err := s.ensureTables(); err != nil {
		return nil, fmt.Errorf("failed to ensure task tables: %w", err)
	}
	return s, nil
}

func (s *SQLiteTaskStorage) ensureTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		uuid TEXT NOT NULL UNIQUE,
		case_id TEXT NOT NULL REFERENCES cases(id) ON DELETE CASCADE,
		title TEXT NOT NULL,
		description TEXT DEFAULT '',
		status TEXT NOT NULL DEFAULT 'todo' CHECK(status IN ('todo','in_progress','done','canceled')),
		tags TEXT DEFAULT '[]',
		assignee_id TEXT DEFAULT '',
		created_by TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_case ON tasks(case_id);
	CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
	CREATE INDEX IF NOT EXISTS idx_tasks_assignee ON tasks(assignee_id);
	CREATE INDEX IF NOT EXISTS idx_tasks_created_at ON tasks(created_at);
	`

	if _, err := s.sqlite.WriteDB.Exec(schema); err != nil {
		return fmt.Errorf("failed to create task tables: %w", err)
	}
	return nil
}

// Allowed sort columns for task listing.
var allowedTaskSortFields = map[string]string{
	"title":      "title",
	"status":     "status",
	"created_at": "created_at",
	"updated_at": "updated_at",
}

// CreateTask stores a new task.
func (s *SQLiteTaskStorage) CreateTask(ctx context.Context, t *core.Task) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tagsJSON, _ := json.Marshal(t.Tags)

	query := `
		INSERT INTO tasks (id, uuid, case_id, title, description, status,
			tags, assignee_id, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.sqlite.WriteDB.ExecContext(ctx, query,
		t.ID, t.UUID, t.CaseID, t.Title, t.Description, t.Status,
		string(tagsJSON), t.AssigneeID, t.CreatedBy, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return ErrConstraintViolation
		}
		return fmt.Errorf("failed to create task: %w", err)
	}

	s.logger.Infow("Task created", "task_id", t.ID, "case_id", t.CaseID, "created_by", t.CreatedBy)
	return nil
}

func scanTask(scan func(dest ...any) error) (*core.Task, error) {
	var t core.Task
	var tagsJSON string
	err := scan(
		&t.ID, &t.UUID, &t.CaseID, &t.Title, &t.Description, &t.Status,
		&tagsJSON, &t.AssigneeID, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if tagsJSON != "" && tagsJSON != "null" {
		if err := json.Unmarshal([]byte(tagsJSON), &t.Tags); err != nil {
			return nil, fmt.Errorf("failed to parse task tags: %w", err)
		}
	}
	return &t, nil
}

const taskSelectColumns = `
	SELECT id, uuid, case_id, title, description, status,
		tags, assignee_id, created_by, created_at, updated_at
	FROM tasks
`

// GetTask retrieves a task by ID.
func (s *SQLiteTaskStorage) GetTask(ctx context.Context, id string) (*core.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	row := s.sqlite.ReadDB.QueryRowContext(ctx, taskSelectColumns+" WHERE id = ?", id)
	t, err := scanTask(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return t, nil
}

// UpdateTask updates an existing task. The owning case never changes.
func (s *SQLiteTaskStorage) UpdateTask(ctx context.Context, t *core.Task) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	t.UpdatedAt = time.Now().UTC()
	tagsJSON, _ := json.Marshal(t.Tags)

	query := `
		UPDATE tasks SET title = ?, description = ?, status = ?, tags = ?,
			assignee_id = ?, updated_at = ?
		WHERE id = ?
	`
	res, err := s.sqlite.WriteDB.ExecContext(ctx, query,
		t.Title, t.Description, t.Status, string(tagsJSON),
		t.AssigneeID, t.UpdatedAt, t.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rows == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// DeleteTask removes a task by ID.
func (s *SQLiteTaskStorage) DeleteTask(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := s.sqlite.WriteDB.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if rows == 0 {
		return ErrTaskNotFound
	}

	s.logger.Infow("Task deleted", "task_id", id)
	return nil
}

// ListTasks returns a filtered, sorted window of one case's tasks plus the
// total count.
func (s *SQLiteTaskStorage) ListTasks(ctx context.Context, caseID string, filters *core.TaskFilters) ([]*core.Task, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	where := []string{"case_id = ?"}
	args := []any{caseID}

	if filters.Title != "" {
		where = append(where, "title LIKE ?")
		args = append(args, "%"+filters.Title+"%")
	}
	if filters.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filters.Status)
	}
	if filters.AssigneeID != "" {
		where = append(where, "assignee_id = ?")
		args = append(args, filters.AssigneeID)
	}
	if filters.Tag != "" {
		where = append(where, "tags LIKE ?")
		args = append(args, "%"+filters.Tag+"%")
	}

	whereClause := " WHERE " + strings.Join(where, " AND ")

	var total int64
	if err := s.sqlite.ReadDB.QueryRowContext(ctx, "SELECT COUNT(*) FROM tasks"+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count tasks: %w", err)
	}

	order, err := orderClause(allowedTaskSortFields, filters.SortBy, filters.SortDir, "created_at")
	if err != nil {
		return nil, 0, err
	}

	query := taskSelectColumns + whereClause + order + " LIMIT ? OFFSET ?"
	args = append(args, filters.PerPage, filters.Offset())

	rows, err := s.sqlite.ReadDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*core.Task
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate tasks: %w", err)
	}

	return tasks, total, nil
}

// CountTasksByCase returns the number of tasks attached to a case.
func (s *SQLiteTaskStorage) CountTasksByCase(ctx context.Context, caseID string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var count int64
	err := s.sqlite.ReadDB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM tasks WHERE case_id = ?", caseID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count tasks: %w", err)
	}
	return count, nil
}
