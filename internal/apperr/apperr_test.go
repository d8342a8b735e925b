package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindStatus(t *testing.T) {
	cases := map[Kind]int{
		KindNotFound:      http.StatusNotFound,
		KindValidation:    http.StatusBadRequest,
		KindConfiguration: http.StatusServiceUnavailable,
		KindUnauthorized:  http.StatusUnauthorized,
		KindForbidden:     http.StatusForbidden,
		KindInternal:      http.StatusInternalServerError,
	}
	for kind, want := range cases {
		assert.Equal(t, want, kind.Status(), string(kind))
	}
}

func TestErrorsIsMatchesKind(t *testing.T) {
	err := fmt.Errorf("appointments: get: %w", NotFound("appointment"))
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrValidation))
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.Equal(t, "appointment not found", PublicMessage(err))
}

func TestInternalErrorsAreHidden(t *testing.T) {
	err := errors.New("pq: connection refused")
	assert.Equal(t, KindInternal, KindOf(err))
	assert.Equal(t, "internal server error", PublicMessage(err))
}

func TestValidationFormatting(t *testing.T) {
	err := Validation("cannot mark %s appointment as no-show", "completed")
	assert.Equal(t, "cannot mark completed appointment as no-show", err.Message)
	assert.Equal(t, "validation: cannot mark completed appointment as no-show", err.Error())
}
