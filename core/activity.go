package core

import (
	"context"
	"time"
)

// ActivityEntry is one immutable record in the per-case audit trail. Entries
// are appended only after the triggering mutation has durably committed.
type ActivityEntry struct {
	ID        string    `json:"id"`
	CaseID    string    `json:"case_id"`
	UserID    string    `json:"user_id"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// ActivityFilters defines the predicate set for reading a case's audit trail.
type ActivityFilters struct {
	UserID string
	Since  *time.Time
	Until  *time.Time
	Pagination
}

// ActivityStorage defines the append-only persistence port for the audit trail.
// There is deliberately no update or delete operation.
type ActivityStorage interface {
	AppendActivity(ctx context.Context, entry *ActivityEntry) error
	ListActivitiesByCase(ctx context.Context, caseID string, filters *ActivityFilters) ([]*ActivityEntry, int64, error)
}
