package apperr

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestKindStatus(t *testing.T) {
	tests := []struct {
		kind   Kind
		status int
		code   string
	}{
		{KindUnauthorized, http.StatusUnauthorized, "UNAUTHORIZED"},
		{KindInvalidToken, http.StatusUnauthorized, "INVALID_TOKEN"},
		{KindNotFound, http.StatusNotFound, "NOT_FOUND"},
		{KindInvalidInput, http.StatusBadRequest, "INVALID_INPUT"},
		{KindConflict, http.StatusBadRequest, "CONFLICT"},
		{KindInternal, http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.status, tt.kind.Status())
			assert.Equal(t, tt.code, tt.kind.String())
		})
	}
}

func TestKindOfWrapped(t *testing.T) {
	err := fmt.Errorf("handler: %w", NotFound("Customer not found"))

	assert.Equal(t, KindNotFound, KindOf(err))
	assert.True(t, Is(err, KindNotFound))
	assert.Equal(t, "Customer not found", Message(err))
}

func TestUnclassifiedIsInternal(t *testing.T) {
	err := errors.New("disk on fire")

	assert.Equal(t, KindInternal, KindOf(err))
	assert.Equal(t, "Internal Server Error", Message(err))
}

func TestInternalKeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Internal(cause, "Failed to save customer")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "Failed to save customer", Message(err))
	assert.Contains(t, err.Error(), "connection reset")
}
