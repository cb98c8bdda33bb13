package storage

import "errors"

// Storage error constants
var (
	// ErrCaseNotFound is returned when a case is not found
	ErrCaseNotFound = errors.New("case not found")

	// ErrTaskNotFound is returned when a task is not found
	ErrTaskNotFound = errors.New("task not found")

	// ErrIOCNotFound is returned when an IOC is not found
	ErrIOCNotFound = errors.New("ioc not found")

	// ErrUserNotFound is returned when a user is not found
	ErrUserNotFound = errors.New("user not found")

	// ErrGrantNotFound is returned when an access grant is not found
	ErrGrantNotFound = errors.New("access grant not found")

	// ErrGroupNotFound is returned when a group is not found
	ErrGroupNotFound = errors.New("group not found")

	// Generic storage errors

	// ErrNotFound is a generic "not found" error
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when a uniqueness constraint is violated
	ErrDuplicate = errors.New("already exists")

	// ErrDatabaseClosed is returned when attempting to use a closed database connection
	ErrDatabaseClosed = errors.New("database is closed")

	// ErrConstraintViolation is returned when a database constraint is violated
	ErrConstraintViolation = errors.New("constraint violation")
)
