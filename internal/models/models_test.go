package models

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"validation", NewValidationError("bad"), http.StatusBadRequest},
		{"field validation", NewFieldValidationError("title", "is required"), http.StatusBadRequest},
		{"invalid query", NewInvalidQueryError("empty"), http.StatusBadRequest},
		{"not found", NewNotFoundError("Post", 1), http.StatusNotFound},
		{"forbidden", NewForbiddenError("no"), http.StatusForbidden},
		{"unauthorized", NewUnauthorizedError("who"), http.StatusUnauthorized},
		{"conflict", NewConflictError("taken", nil), http.StatusConflict},
		{"lock timeout", NewLockTimeoutError("Post 1", errors.New("wait")), http.StatusConflict},
		{"internal", NewInternalError(errors.New("boom")), http.StatusInternalServerError},
		{"plain error", errors.New("boom"), http.StatusInternalServerError},
		{"wrapped app error", fmt.Errorf("update: %w", NewForbiddenError("no")), http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, HTTPStatus(tt.err))
		})
	}
}

func TestAppError_ErrorAndUnwrap(t *testing.T) {
	cause := errors.New("unique violation")
	err := NewConflictError("Slug already taken", cause)

	assert.Equal(t, "Slug already taken: unique violation", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, CodeConflict, ErrorCode(err))
}

func TestNewFieldValidationError(t *testing.T) {
	err := NewFieldValidationError("excerpt", "must not exceed 200 characters")
	assert.Equal(t, map[string]string{"excerpt": "must not exceed 200 characters"}, err.Fields)
	assert.Equal(t, CodeValidation, err.Code)
}

func TestPost_NextCommentID(t *testing.T) {
	p := &Post{}
	assert.Equal(t, uint(1), p.NextCommentID())

	p.Comments = []Comment{{ID: 1}, {ID: 2}, {ID: 3}}
	assert.Equal(t, uint(4), p.NextCommentID())
}

func TestCaller(t *testing.T) {
	assert.False(t, Anonymous.IsAuthenticated())
	assert.False(t, Anonymous.IsAdmin())
	assert.False(t, Caller{Role: RoleAdmin}.IsAdmin())
	assert.True(t, Caller{UserID: 3, Role: RoleAdmin}.IsAdmin())
	assert.False(t, Caller{UserID: 3, Role: RoleUser}.IsAdmin())
}
