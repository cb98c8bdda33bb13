package core

import (
	"context"
	"time"
)

// =============================================================================
// Case Types and Constants
// =============================================================================

// CaseStatus represents the lifecycle status of a case.
type CaseStatus string

const (
	CaseStatusOpen   CaseStatus = "open"
	CaseStatusClosed CaseStatus = "closed"
)

// AllCaseStatuses returns all valid case statuses.
var AllCaseStatuses = []CaseStatus{CaseStatusOpen, CaseStatusClosed}

// IsValid checks if the case status is valid.
func (s CaseStatus) IsValid() bool {
	for _, valid := range AllCaseStatuses {
		if s == valid {
			return true
		}
	}
	return false
}

// Maximum lengths for case fields.
const (
	MaxCaseNameLength        = 256
	MaxCaseDescriptionLength = 4000
)

// Case is the root container every investigative record belongs to.
type Case struct {
	ID             string     `json:"id"`
	UUID           string     `json:"uuid"`
	Name           string     `json:"name"`
	Description    string     `json:"description,omitempty"`
	Classification string     `json:"classification,omitempty"`
	SocID          string     `json:"soc_id,omitempty"`
	Status         CaseStatus `json:"status"`
	OwnerID        string     `json:"owner_id,omitempty"`
	CreatedBy      string     `json:"created_by"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	ClosedAt       *time.Time `json:"closed_at,omitempty"`
}

// IsClosed reports whether the case has been closed.
func (c *Case) IsClosed() bool {
	return c.Status == CaseStatusClosed
}

// =============================================================================
// Case Requests and Filters
// =============================================================================

// CaseCreateRequest is the proposed input for creating a case.
type CaseCreateRequest struct {
	Name           string `json:"name" validate:"required,max=256"`
	Description    string `json:"description" validate:"max=4000"`
	Classification string `json:"classification" validate:"max=128"`
	SocID          string `json:"soc_id" validate:"max=128"`
	OwnerID        string `json:"owner_id" validate:"omitempty,uuid"`
}

// CaseUpdateRequest carries partial fields merged onto an existing case.
// Nil fields impose no change.
type CaseUpdateRequest struct {
	Name           *string `json:"name" validate:"omitempty,min=1,max=256"`
	Description    *string `json:"description" validate:"omitempty,max=4000"`
	Classification *string `json:"classification" validate:"omitempty,max=128"`
	SocID          *string `json:"soc_id" validate:"omitempty,max=128"`
	OwnerID        *string `json:"owner_id" validate:"omitempty,uuid"`
}

// CaseFilters defines the independent-AND predicate set for listing cases.
// Zero-valued fields impose no constraint.
type CaseFilters struct {
	Name           string
	Classification string
	SocID          string
	Status         CaseStatus
	OwnerID        string
	// VisibleToUserID restricts results to cases the user can read through a
	// direct or group grant. Server administrators list without it.
	VisibleToUserID string
	Pagination
}

// CaseStorage defines the persistence port for cases.
type CaseStorage interface {
	CreateCase(ctx context.Context, c *Case) error
	GetCase(ctx context.Context, id string) (*Case, error)
	UpdateCase(ctx context.Context, c *Case) error
	DeleteCase(ctx context.Context, id string) error
	ListCases(ctx context.Context, filters *CaseFilters) ([]*Case, int64, error)
	CaseExists(ctx context.Context, id string) (bool, error)
}
