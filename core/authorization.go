package core

import (
	"context"
	"time"
)

// =============================================================================
// Global Permissions
// =============================================================================

// Permission represents a platform-wide capability flag, independent of any
// specific case.
type Permission string

const (
	PermStandardUser        Permission = "standard_user"
	PermServerAdministrator Permission = "server_administrator"
)

// AllPermissions returns all valid permissions for validation.
var AllPermissions = []Permission{
	PermStandardUser,
	PermServerAdministrator,
}

// IsValid checks if the permission is part of the closed set.
func (p Permission) IsValid() bool {
	for _, valid := range AllPermissions {
		if p == valid {
			return true
		}
	}
	return false
}

// =============================================================================
// Case Access Levels
// =============================================================================

// AccessLevel is the ordered per-case grant level. The numeric values carry
// the total order none < read_only < full_access; comparisons must go through
// Satisfies rather than ad hoc integer checks.
type AccessLevel int

const (
	AccessLevelNone AccessLevel = iota
	AccessLevelReadOnly
	AccessLevelFullAccess
)

// ParseAccessLevel converts a wire/config string into an AccessLevel.
func ParseAccessLevel(s string) (AccessLevel, bool) {
	switch s {
	case "none":
		return AccessLevelNone, true
	case "read_only":
		return AccessLevelReadOnly, true
	case "full_access":
		return AccessLevelFullAccess, true
	}
	return AccessLevelNone, false
}

func (l AccessLevel) String() string {
	switch l {
	case AccessLevelNone:
		return "none"
	case AccessLevelReadOnly:
		return "read_only"
	case AccessLevelFullAccess:
		return "full_access"
	}
	return "none"
}

// IsValid checks if the level is one of the closed set.
func (l AccessLevel) IsValid() bool {
	return l == AccessLevelNone || l == AccessLevelReadOnly || l == AccessLevelFullAccess
}

// Satisfies reports whether holding this level meets a requirement set.
// The requirement is met iff the held level is greater than or equal to the
// minimum level present in required, so full_access always also satisfies a
// read_only requirement. An empty requirement set is never satisfied.
func (l AccessLevel) Satisfies(required []AccessLevel) bool {
	if len(required) == 0 {
		return false
	}
	min := required[0]
	for _, r := range required[1:] {
		if r < min {
			min = r
		}
	}
	return l >= min
}

// =============================================================================
// Grants and Groups
// =============================================================================

// SubjectType discriminates who an access grant applies to.
type SubjectType string

const (
	SubjectUser  SubjectType = "user"
	SubjectGroup SubjectType = "group"
)

// IsValid checks if the subject type is valid.
func (t SubjectType) IsValid() bool {
	return t == SubjectUser || t == SubjectGroup
}

// AccessGrant binds a user or group to a case at a given access level.
// At most one grant per (subject, case) pair is stored; the effective level
// for a user is the highest of their direct grant and any group grants.
type AccessGrant struct {
	ID          string      `json:"id"`
	SubjectType SubjectType `json:"subject_type"`
	SubjectID   string      `json:"subject_id"`
	CaseID      string      `json:"case_id"`
	Level       AccessLevel `json:"level"`
	GrantedBy   string      `json:"granted_by"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Group is a named collection of users used to assign case access in bulk.
type Group struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// GrantStorage defines the persistence port for access grants and groups.
type GrantStorage interface {
	// EffectiveAccessLevel resolves the highest level reachable by the user
	// for the case, across the direct grant and all group memberships.
	// Returns AccessLevelNone when no grant exists.
	EffectiveAccessLevel(ctx context.Context, userID, caseID string) (AccessLevel, error)

	UpsertGrant(ctx context.Context, grant *AccessGrant) error
	DeleteGrant(ctx context.Context, subjectType SubjectType, subjectID, caseID string) error
	ListGrantsByCase(ctx context.Context, caseID string) ([]*AccessGrant, error)
	ListGrantsForUser(ctx context.Context, userID string) ([]*AccessGrant, error)

	CreateGroup(ctx context.Context, group *Group) error
	DeleteGroup(ctx context.Context, groupID string) error
	AddGroupMember(ctx context.Context, groupID, userID string) error
	RemoveGroupMember(ctx context.Context, groupID, userID string) error
	ListGroupMembers(ctx context.Context, groupID string) ([]string, error)
}
