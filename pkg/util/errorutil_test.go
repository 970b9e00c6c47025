package util

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDomainError(t *testing.T) {
	t.Run("keeps domain errors", func(t *testing.T) {
		original := NewStateConflict("ticket already resolved", nil)
		wrapped := fmt.Errorf("resolve: %w", original)

		got := ToDomainError(wrapped)
		require.NotNil(t, got)
		assert.Equal(t, "STATE_CONFLICT", got.Code)
		assert.Equal(t, CategoryStateConflict, got.Category)
		assert.Equal(t, http.StatusConflict, got.HTTPStatus)
	})

	t.Run("maps missing rows to not found", func(t *testing.T) {
		got := ToDomainError(fmt.Errorf("query: %w", pgx.ErrNoRows))
		assert.Equal(t, "NOT_FOUND", got.Code)
		assert.Equal(t, http.StatusNotFound, got.HTTPStatus)
	})

	t.Run("hides unknown errors", func(t *testing.T) {
		cause := errors.New("connection reset")
		got := ToDomainError(cause)
		assert.Equal(t, "INTERNAL_ERROR", got.Code)
		assert.Equal(t, "internal server error", got.Message)
		assert.ErrorIs(t, got, cause)
	})

	t.Run("nil stays nil", func(t *testing.T) {
		assert.Nil(t, ToDomainError(nil))
		assert.NoError(t, MapError(nil))
	})
}

func TestIsCategory(t *testing.T) {
	assert.True(t, IsCategory(NewForbidden("nope"), CategoryAuthorization))
	assert.True(t, IsCategory(NewFieldError("new_agent_id", "required"), CategoryValidation))
	assert.False(t, IsCategory(NewForbidden("nope"), CategoryValidation))
	assert.False(t, IsCategory(errors.New("plain"), CategoryValidation))
}
