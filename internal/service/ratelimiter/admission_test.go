package ratelimiter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-career-coach/internal/domain"
)

type failingStore struct{}

func (failingStore) Check(context.Context, string, int, time.Duration) (domain.RateDecision, error) {
	return domain.RateDecision{}, errors.New("boom")
}

func TestController_ValidatesArguments(t *testing.T) {
	c := NewController(NewMemoryStore())
	_, err := c.Check(context.Background(), "", 1, time.Second)
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
	_, err = c.Check(context.Background(), "k", 0, time.Second)
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
	_, err = c.Check(context.Background(), "k", 1, 0)
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestController_DeniesAfterLimit(t *testing.T) {
	c := NewController(NewMemoryStore())
	ctx := context.Background()
	key := Key("analysis", "u1")
	for i := 0; i < 2; i++ {
		d, err := c.Check(ctx, key, 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	}
	d, err := c.Check(ctx, key, 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Greater(t, d.RetryAfter(time.Now()), time.Duration(0))
}

func TestController_FailsOpenOnStoreError(t *testing.T) {
	c := NewController(failingStore{})
	d, err := c.Check(context.Background(), "k", 5, time.Minute)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 4, d.Remaining)
}

func TestController_NilStoreAdmits(t *testing.T) {
	d, err := NewController(nil).Check(context.Background(), "k", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestScopeOf(t *testing.T) {
	assert.Equal(t, "analysis", scopeOf("analysis:u1"))
	assert.Equal(t, "plain", scopeOf("plain"))
}
