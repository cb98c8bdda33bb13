package core

import (
	"context"
	"time"
)

// User represents a platform user. The core only reads users; they are
// created and maintained by the identity surface (login handler, admin CLI).
type User struct {
	ID           string       `json:"id"`
	Username     string       `json:"username"`
	PasswordHash string       `json:"-"` // bcrypt hash, never serialized
	Permissions  []Permission `json:"permissions"`
	Active       bool         `json:"active"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// HasPermission checks membership of a global permission flag.
func (u *User) HasPermission(perm Permission) bool {
	for _, p := range u.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// IsServerAdministrator reports whether the user holds the global override.
func (u *User) IsServerAdministrator() bool {
	return u.HasPermission(PermServerAdministrator)
}

// UserStorage defines the persistence port for users.
type UserStorage interface {
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	UpdateUser(ctx context.Context, user *User) error
	DeleteUser(ctx context.Context, id string) error
	ListUsers(ctx context.Context) ([]*User, error)
}
