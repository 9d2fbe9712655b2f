package ctxkeys

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestID(t *testing.T) {
	ctx := context.Background()

	_, ok := RequestID(ctx)
	assert.False(t, ok)

	ctx = WithRequestID(ctx, "trace-42")
	id, ok := RequestID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "trace-42", id)

	// 空值视为未设置。
	_, ok = RequestID(WithRequestID(context.Background(), ""))
	assert.False(t, ok)
}

func TestSessionID(t *testing.T) {
	ctx := WithSessionID(context.Background(), "a1b2c3d4e5f6")
	id, ok := SessionID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "a1b2c3d4e5f6", id)
}
