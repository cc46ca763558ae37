package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  *Error
		want int
	}{
		{ValidationError("bad"), http.StatusBadRequest},
		{UnauthorizedError("no"), http.StatusUnauthorized},
		{NotFoundError("gone"), http.StatusNotFound},
		{InternalError("boom", nil), http.StatusInternalServerError},
		{UnavailableError("down", nil), http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(string(tt.err.Type), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.HTTPStatus())
		})
	}
}

func TestError_MessageIncludesCause(t *testing.T) {
	err := InternalError("failed to compute", errors.New("db down"))
	assert.Equal(t, "internal: failed to compute: db down", err.Error())
	assert.Equal(t, "not_found: Industry not found", NotFoundError("Industry not found").Error())
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root")
	err := InternalError("wrapped", cause)
	assert.ErrorIs(t, err, cause)
}

func TestWithField_ShowsInResponse(t *testing.T) {
	resp := NotFoundError("Industry not found").WithField("industry", "Tech").ToResponse()

	assert.Equal(t, "Industry not found", resp.Error)
	assert.Equal(t, TypeNotFound, resp.Type)
	assert.Equal(t, "Tech", resp.Context["industry"])
}

func TestToResponse_OmitsEmptyContext(t *testing.T) {
	assert.Nil(t, ValidationError("bad").ToResponse().Context)
}

func TestAsStructuredError(t *testing.T) {
	assert.Nil(t, AsStructuredError(nil))

	original := NotFoundError("missing")
	wrapped := fmt.Errorf("handler: %w", original)
	assert.Same(t, original, AsStructuredError(wrapped))

	plain := AsStructuredError(errors.New("plain"))
	assert.Equal(t, TypeInternal, plain.Type)
	assert.Equal(t, "internal server error", plain.Message)
}
