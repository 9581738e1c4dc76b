package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/taskrelay/taskrelay/internal/service"
	"github.com/taskrelay/taskrelay/internal/store"
)

func TestMapErrorToStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{
			name: "task not found",
			err:  service.ErrTaskNotFound,
			want: http.StatusNotFound,
		},
		{
			name: "wrapped task not found",
			err:  fmt.Errorf("lookup: %w", service.ErrTaskNotFound),
			want: http.StatusNotFound,
		},
		{
			name: "store task not found",
			err:  store.ErrTaskNotFound,
			want: http.StatusNotFound,
		},
		{
			name: "not cancellable",
			err:  fmt.Errorf("%w: status is COMPLETED", service.ErrTaskNotCancellable),
			want: http.StatusBadRequest,
		},
		{
			name: "invalid entity",
			err:  store.ErrInvalidEntity,
			want: http.StatusUnprocessableEntity,
		},
		{
			name: "unknown error",
			err:  errors.New("boom"),
			want: http.StatusInternalServerError,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, MapErrorToStatusCode(tc.err))
		})
	}
}

func TestGetSafeErrorMessage(t *testing.T) {
	assert.Equal(t, "Task not found", GetSafeErrorMessage(service.ErrTaskNotFound))
	assert.Equal(t,
		"Task cannot be cancelled in its current status",
		GetSafeErrorMessage(fmt.Errorf("%w: status is FAILED", service.ErrTaskNotCancellable)))
	assert.Equal(t, "An unexpected error occurred", GetSafeErrorMessage(errors.New("pq: internal detail")))
	assert.Equal(t, "An unexpected error occurred", GetSafeErrorMessage(nil))
}

func TestSanitizeValidationError(t *testing.T) {
	t.Run("extracts field and tag from validator errors", func(t *testing.T) {
		err := errors.New(
			"Key: 'CreateTaskRequest.Name' Error:Field validation for 'Name' failed on the 'required' tag")
		assert.Equal(t, "Invalid Name: required field", SanitizeValidationError(err))
	})

	t.Run("falls back to a generic message", func(t *testing.T) {
		assert.Equal(t, "Validation error", SanitizeValidationError(errors.New("something else")))
	})
}
