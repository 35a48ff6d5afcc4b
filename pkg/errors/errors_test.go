package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", NotFound("role features", nil), http.StatusNotFound},
		{"bad request", BadRequest("failed to load permissions", fmt.Errorf("boom")), http.StatusBadRequest},
		{"unauthorized", Unauthorized(nil), http.StatusUnauthorized},
		{"forbidden", Forbidden("feature hidden"), http.StatusForbidden},
		{"internal", Internal(fmt.Errorf("boom")), http.StatusInternalServerError},
		{"wrapped", fmt.Errorf("resolve: %w", NotFound("user", nil)), http.StatusNotFound},
		{"plain", fmt.Errorf("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestHasCode(t *testing.T) {
	err := fmt.Errorf("lookup: %w", NotFound("role features", nil))
	assert.True(t, HasCode(err, ErrNotFound))
	assert.False(t, HasCode(err, ErrBadRequest))
	assert.False(t, HasCode(fmt.Errorf("boom"), ErrNotFound))
}

func TestAppErrorMessage(t *testing.T) {
	err := BadRequest("failed to load permissions", fmt.Errorf("cursor closed"))
	assert.Equal(t, "failed to load permissions: cursor closed", err.Error())
	assert.Equal(t, "role not found", NotFound("role", nil).Error())
}
