package core

import (
	"context"
	"time"
)

// =============================================================================
// Task Types and Constants
// =============================================================================

// TaskStatus represents the workflow state of a case task.
type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusDone       TaskStatus = "done"
	TaskStatusCanceled   TaskStatus = "canceled"
)

// AllTaskStatuses returns all valid task statuses.
var AllTaskStatuses = []TaskStatus{
	TaskStatusTodo, TaskStatusInProgress, TaskStatusDone, TaskStatusCanceled,
}

// IsValid checks if the task status is valid.
func (s TaskStatus) IsValid() bool {
	for _, valid := range AllTaskStatuses {
		if s == valid {
			return true
		}
	}
	return false
}

// Task is a unit of investigative work scoped to exactly one case.
// CaseID is immutable once created.
type Task struct {
	ID          string     `json:"id"`
	UUID        string     `json:"uuid"`
	CaseID      string     `json:"case_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      TaskStatus `json:"status"`
	Tags        []string   `json:"tags,omitempty"`
	AssigneeID  string     `json:"assignee_id,omitempty"`
	CreatedBy   string     `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// =============================================================================
// Task Requests and Filters
// =============================================================================

// TaskCreateRequest is the proposed input for adding a task to a case.
type TaskCreateRequest struct {
	Title       string   `json:"title" validate:"required,max=256"`
	Description string   `json:"description" validate:"max=4000"`
	Status      string   `json:"status" validate:"omitempty,oneof=todo in_progress done canceled"`
	Tags        []string `json:"tags" validate:"max=50,dive,max=100"`
	AssigneeID  string   `json:"assignee_id" validate:"omitempty,uuid"`
}

// TaskUpdateRequest carries partial fields merged onto an existing task.
type TaskUpdateRequest struct {
	Title       *string   `json:"title" validate:"omitempty,min=1,max=256"`
	Description *string   `json:"description" validate:"omitempty,max=4000"`
	Status      *string   `json:"status" validate:"omitempty,oneof=todo in_progress done canceled"`
	Tags        *[]string `json:"tags" validate:"omitempty,max=50,dive,max=100"`
	AssigneeID  *string   `json:"assignee_id" validate:"omitempty,uuid"`
}

// TaskFilters defines the independent-AND predicate set for listing tasks
// within one case. Zero-valued fields impose no constraint.
type TaskFilters struct {
	Title      string
	Status     TaskStatus
	AssigneeID string
	Tag        string
	Pagination
}

// TaskStorage defines the persistence port for tasks.
type TaskStorage interface {
	CreateTask(ctx context.Context, t *Task) error
	GetTask(ctx context.Context, id string) (*Task, error)
	UpdateTask(ctx context.Context, t *Task) error
	DeleteTask(ctx context.Context, id string) error
	ListTasks(ctx context.Context, caseID string, filters *TaskFilters) ([]*Task, int64, error)
	CountTasksByCase(ctx context.Context, caseID string) (int64, error)
}
