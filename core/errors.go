package core

import (
	"errors"
	"fmt"
)

// =============================================================================
// Business Error Taxonomy
// =============================================================================
//
// Every layer of the operation pipeline communicates outcomes through this
// shared set of error kinds. They are raised at the point of detection and
// mapped exactly once, at the API boundary, to a response class.

// ValidationError reports schema/field-level validation failures.
// FieldErrors maps the offending field name to a human-readable message.
type ValidationError struct {
	Message     string
	FieldErrors map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.FieldErrors) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (%d field errors)", e.Message, len(e.FieldErrors))
}

// NewValidationError creates a ValidationError with the given field errors.
func NewValidationError(message string, fieldErrors map[string]string) *ValidationError {
	return &ValidationError{Message: message, FieldErrors: fieldErrors}
}

// ObjectNotFoundError reports that an entity or case does not exist,
// or is not reachable through the case the caller addressed it by.
type ObjectNotFoundError struct {
	Entity string
	ID     string
}

func (e *ObjectNotFoundError) Error() string {
	if e.Entity == "" {
		return "object not found"
	}
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.Entity)
	}
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// NewObjectNotFoundError creates an ObjectNotFoundError for the given entity kind.
func NewObjectNotFoundError(entity, id string) *ObjectNotFoundError {
	return &ObjectNotFoundError{Entity: entity, ID: id}
}

// AccessDeniedError reports an authorization denial. Kept distinct from
// ObjectNotFoundError so the boundary can choose its information-leak policy.
type AccessDeniedError struct {
	CaseID string
}

func (e *AccessDeniedError) Error() string {
	if e.CaseID == "" {
		return "access denied"
	}
	return fmt.Sprintf("access denied to case %s", e.CaseID)
}

// NewAccessDeniedError creates an AccessDeniedError scoped to a case.
func NewAccessDeniedError(caseID string) *AccessDeniedError {
	return &AccessDeniedError{CaseID: caseID}
}

// BusinessProcessingError reports a domain rule violation. Data optionally
// carries structured detail for the caller (e.g. hook abort context).
type BusinessProcessingError struct {
	Message string
	Data    any
}

func (e *BusinessProcessingError) Error() string {
	return e.Message
}

// NewBusinessError creates a BusinessProcessingError with a plain message.
func NewBusinessError(message string) *BusinessProcessingError {
	return &BusinessProcessingError{Message: message}
}

// NewBusinessErrorWithData creates a BusinessProcessingError carrying detail.
func NewBusinessErrorWithData(message string, data any) *BusinessProcessingError {
	return &BusinessProcessingError{Message: message, Data: data}
}

// UnexpectedError wraps any uncaught failure. The boundary logs the full
// context and surfaces only a generic message to the caller.
type UnexpectedError struct {
	Err error
}

func (e *UnexpectedError) Error() string {
	return fmt.Sprintf("unexpected error: %v", e.Err)
}

func (e *UnexpectedError) Unwrap() error {
	return e.Err
}

// WrapUnexpected wraps err as an UnexpectedError unless it already belongs
// to the taxonomy, in which case it is returned unchanged.
func WrapUnexpected(err error) error {
	if err == nil {
		return nil
	}
	var (
		ve *ValidationError
		nf *ObjectNotFoundError
		ad *AccessDeniedError
		be *BusinessProcessingError
		ue *UnexpectedError
	)
	if errors.As(err, &ve) || errors.As(err, &nf) || errors.As(err, &ad) ||
		errors.As(err, &be) || errors.As(err, &ue) {
		return err
	}
	return &UnexpectedError{Err: err}
}
