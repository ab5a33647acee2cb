package observability

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextWithLoggerAndLoggerFromContext(t *testing.T) {
	lg := slog.Default()
	base := context.Background()

	withLogger := ContextWithLogger(base, lg)
	assert.NotEqual(t, base, withLogger)
	assert.Same(t, lg, LoggerFromContext(withLogger))

	assert.Equal(t, base, ContextWithLogger(base, nil))
	assert.NotNil(t, LoggerFromContext(context.Background()))
	//nolint:staticcheck // nil context is part of the contract
	assert.NotNil(t, LoggerFromContext(nil))
}

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := ContextWithRequestID(context.Background(), "req-123")
	assert.Equal(t, "req-123", RequestIDFromContext(ctx))
	assert.Equal(t, "", RequestIDFromContext(context.Background()))

	base := context.Background()
	assert.Equal(t, base, ContextWithRequestID(base, ""))
}

func TestContextWithUserID_TagsLogger(t *testing.T) {
	var buf bytes.Buffer
	ctx := ContextWithLogger(context.Background(), slog.New(slog.NewJSONHandler(&buf, nil)))
	ctx = ContextWithUserID(ctx, "user-7")

	assert.Equal(t, "user-7", UserIDFromContext(ctx))
	LoggerFromContext(ctx).Info("hello")
	assert.Contains(t, buf.String(), `"user_id":"user-7"`)
	assert.Equal(t, "", UserIDFromContext(context.Background()))
}
