package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrkeshav-05/learning-backend/cache"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestStoreGetSetDelete(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, cache.ErrNotFound)

	require.NoError(t, s.Set(ctx, "k", []byte("v"), 0))
	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	got[0] = 'x'
	again, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), again, "returned slices must not alias stored data")

	require.NoError(t, s.Delete(ctx, "k"))
	assert.ErrorIs(t, s.Delete(ctx, "k"), cache.ErrNotFound)
}

func TestStoreExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	s := NewStore(WithNow(clock.Now))
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Minute))
	clock.Advance(59 * time.Second)
	_, err := s.Get(ctx, "k")
	require.NoError(t, err)

	clock.Advance(time.Second)
	_, err = s.Get(ctx, "k")
	assert.ErrorIs(t, err, cache.ErrNotFound)
	assert.Equal(t, 0, s.Len())

	ok, err := s.SetNX(ctx, "k", []byte("again"), 0)
	require.NoError(t, err)
	assert.True(t, ok, "expired keys can be claimed again")
}

func TestStoreSetNX(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	ok, err := s.SetNX(ctx, "k", []byte("first"), 0)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.SetNX(ctx, "k", []byte("second"), 0)
	require.NoError(t, err)
	assert.False(t, ok)

	got, _ := s.Get(ctx, "k")
	assert.Equal(t, "first", string(got))
}

func TestStoreCompareAndSwap(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	ok, err := s.CompareAndSwap(ctx, "k", []byte("a"), []byte("b"), 0)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "k", []byte("a"), 0))
	ok, err = s.CompareAndSwap(ctx, "k", []byte("z"), []byte("b"), 0)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.CompareAndSwap(ctx, "k", []byte("a"), []byte("b"), 0)
	require.NoError(t, err)
	assert.True(t, ok)

	got, _ := s.Get(ctx, "k")
	assert.Equal(t, "b", string(got))
}

func TestStoreCompareAndSwapConcurrent(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "k", []byte("v0"), 0))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := s.CompareAndSwap(ctx, "k", []byte("v0"), []byte("v1"), 0); ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestStoreHonoursCanceledContext(t *testing.T) {
	s := NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, s.Set(ctx, "k", []byte("v"), 0), context.Canceled)
	_, err := s.Get(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStoreSweep(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	s := NewStore(WithNow(clock.Now))
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "short", []byte("v"), time.Second))
	require.NoError(t, s.Set(ctx, "long", []byte("v"), time.Hour))
	require.NoError(t, s.Set(ctx, "forever", []byte("v"), 0))

	assert.Equal(t, 0, s.Sweep())
	clock.Advance(2 * time.Second)
	assert.Equal(t, 1, s.Sweep())
	assert.Equal(t, 2, s.Len())
}

func TestStoreRunJanitorStopsOnCancel(t *testing.T) {
	s := NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.RunJanitor(ctx, time.Millisecond) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}
}
