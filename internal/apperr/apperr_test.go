package apperr

import (
	"context"
	"net/http"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatus(t *testing.T) {
	cases := map[Kind]int{
		KindClient:       http.StatusBadRequest,
		KindConflict:     http.StatusConflict,
		KindUnauthorized: http.StatusUnauthorized,
		KindForbidden:    http.StatusForbidden,
		KindConsistency:  http.StatusInternalServerError,
		KindServer:       http.StatusInternalServerError,
		KindTimeout:      http.StatusServiceUnavailable,
	}
	for k, want := range cases {
		assert.Equal(t, want, HTTPStatus(k), k.String())
	}
}

func TestFromDB_DeadlineBecomesTimeout(t *testing.T) {
	err := FromDB("Database query failed", errors.Wrap(context.DeadlineExceeded, "acquire"))
	assert.Equal(t, KindTimeout, err.Kind)
	assert.Equal(t, TimeoutMessage, err.Message)

	err = FromDB("Database query failed", errors.New("connection refused"))
	assert.Equal(t, KindServer, err.Kind)
	assert.Equal(t, "Database query failed", err.Message)
}

func TestAs(t *testing.T) {
	assert.Nil(t, As(nil))

	orig := Client("bad")
	wrapped := errors.Wrap(orig, "handler")
	got := As(wrapped)
	require.NotNil(t, got)
	assert.Same(t, orig, got)

	plain := As(errors.New("boom"))
	assert.Equal(t, KindServer, plain.Kind)
	assert.Equal(t, "Internal server error", plain.Message)
	assert.True(t, Is(wrapped, KindClient))
	assert.False(t, Is(wrapped, KindServer))
}

func TestError_MessageAndUnwrap(t *testing.T) {
	cause := errors.New("duplicate entry")
	err := Conflict("Email has already been taken", cause)
	assert.Equal(t, "Email has already been taken: duplicate entry", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "bad", Client("bad").Error())
}
