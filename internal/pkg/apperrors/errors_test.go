package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusMapping(t *testing.T) {
	cases := map[ErrorType]int{
		ErrInvalidConfig:  http.StatusBadRequest,
		ErrValidation:     http.StatusBadRequest,
		ErrUnmatchedRoute: http.StatusNotFound,
		ErrSchemaInvalid:  http.StatusInternalServerError,
		ErrRateLimited:    http.StatusTooManyRequests,
		ErrForbidden:      http.StatusForbidden,
	}
	for typ, status := range cases {
		assert.Equal(t, status, New(typ, "x", nil).HTTPStatus, typ)
	}
}

func TestWrapKeepsAppError(t *testing.T) {
	orig := NewNotFound("entity not found")
	wrapped := fmt.Errorf("lookup: %w", orig)

	assert.Same(t, orig, Wrap(wrapped))
	assert.True(t, IsType(wrapped, ErrNotFound))

	plain := Wrap(errors.New("boom"))
	assert.Equal(t, ErrInternal, plain.Type)
	assert.Nil(t, Wrap(nil))
}
