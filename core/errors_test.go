package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationErrorMessage(t *testing.T) {
	err := NewValidationError("Data error", map[string]string{"value": "value is required"})
	assert.Contains(t, err.Error(), "Data error")
	assert.Contains(t, err.Error(), "1 field errors")

	bare := NewValidationError("Data error", nil)
	assert.Equal(t, "Data error", bare.Error())
}

func TestErrorTaxonomyAs(t *testing.T) {
	var nf *ObjectNotFoundError
	wrapped := fmt.Errorf("fetch failed: %w", NewObjectNotFoundError("ioc", "abc"))
	assert.True(t, errors.As(wrapped, &nf))
	assert.Equal(t, "ioc", nf.Entity)

	var ad *AccessDeniedError
	assert.False(t, errors.As(wrapped, &ad))
}

func TestWrapUnexpectedPassthrough(t *testing.T) {
	// Taxonomy errors must pass through unchanged.
	be := NewBusinessError("not a valid IOC type")
	assert.Same(t, error(be), WrapUnexpected(be))

	deny := NewAccessDeniedError("case-1")
	assert.Same(t, error(deny), WrapUnexpected(deny))

	// Anything else is wrapped.
	raw := errors.New("disk full")
	wrapped := WrapUnexpected(raw)
	var ue *UnexpectedError
	assert.True(t, errors.As(wrapped, &ue))
	assert.True(t, errors.Is(wrapped, raw))

	assert.Nil(t, WrapUnexpected(nil))
}

func TestBusinessErrorData(t *testing.T) {
	err := NewBusinessErrorWithData("Data error", map[string]string{"type_id": "unknown"})
	assert.Equal(t, "Data error", err.Error())
	assert.NotNil(t, err.Data)
}
