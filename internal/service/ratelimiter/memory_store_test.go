package ratelimiter

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestMemoryStore() (*MemoryStore, *fakeClock) {
	clk := &fakeClock{t: time.UnixMilli(1_700_000_000_000)}
	s := NewMemoryStore()
	s.now = clk.Now
	return s, clk
}

func TestMemoryStore_FixedWindow(t *testing.T) {
	ctx := context.Background()
	s, clk := newTestMemoryStore()
	start := clk.Now()

	for i := 1; i <= 3; i++ {
		d, err := s.Check(ctx, "k", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, d.Allowed, "call %d", i)
		assert.Equal(t, 3-i, d.Remaining)
		assert.Equal(t, start.Add(time.Minute), d.ResetTime)
	}

	d, err := s.Check(ctx, "k", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)

	// Exactly at resetTime the window is still closed.
	clk.Advance(time.Minute)
	d, _ = s.Check(ctx, "k", 3, time.Minute)
	assert.False(t, d.Allowed)

	clk.Advance(time.Millisecond)
	d, _ = s.Check(ctx, "k", 3, time.Minute)
	assert.True(t, d.Allowed)
	assert.Equal(t, 2, d.Remaining)
	assert.Equal(t, clk.Now().Add(time.Minute), d.ResetTime)
}

func TestMemoryStore_KeysAreIndependent(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestMemoryStore()
	d, _ := s.Check(ctx, "a", 1, time.Minute)
	assert.True(t, d.Allowed)
	d, _ = s.Check(ctx, "a", 1, time.Minute)
	assert.False(t, d.Allowed)
	d, _ = s.Check(ctx, "b", 1, time.Minute)
	assert.True(t, d.Allowed)
}

func TestMemoryStore_ConcurrentCallsNeverExceedLimit(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestMemoryStore()
	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, _ := s.Check(ctx, "hot", 10, time.Minute)
			if d.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 10, allowed)
}

func TestMemoryStore_Prune(t *testing.T) {
	ctx := context.Background()
	s, clk := newTestMemoryStore()
	_, _ = s.Check(ctx, "short", 5, time.Second)
	_, _ = s.Check(ctx, "long", 5, time.Hour)
	clk.Advance(2 * time.Second)
	assert.Equal(t, 1, s.Prune())
	assert.Equal(t, 1, s.len())
}

func TestMemoryStore_RunStopsOnCancel(t *testing.T) {
	s, _ := newTestMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx, time.Millisecond)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
