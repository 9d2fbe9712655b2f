package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Format(t *testing.T) {
	err := NewError(ErrUpstreamError, "stream failed")
	assert.Equal(t, "[UPSTREAM_ERROR] stream failed", err.Error())

	cause := errors.New("connection reset")
	withCause := NewError(ErrUpstreamError, "stream failed").WithCause(cause)
	assert.Equal(t, "[UPSTREAM_ERROR] stream failed: connection reset", withCause.Error())
	assert.ErrorIs(t, withCause, cause)
}

func TestError_Builders(t *testing.T) {
	err := NewError(ErrUpstreamTimeout, "timed out").
		WithHTTPStatus(504).
		WithRetryable(true)

	assert.Equal(t, 504, err.HTTPStatus)
	assert.True(t, IsRetryable(err))
	assert.Equal(t, ErrUpstreamTimeout, GetErrorCode(err))
}

func TestError_Helpers(t *testing.T) {
	assert.False(t, IsRetryable(errors.New("plain")))
	assert.Equal(t, ErrorCode(""), GetErrorCode(errors.New("plain")))
}
