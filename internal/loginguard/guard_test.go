package loginguard

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	mu     sync.Mutex
	counts map[string]int64
	err    error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{counts: map[string]int64{}}
}

func (s *memoryStore) Count(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[key], s.err
}

func (s *memoryStore) Incr(_ context.Context, key string, _ time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	s.counts[key]++
	return s.counts[key], nil
}

func (s *memoryStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.counts, key)
	return s.err
}

func TestLimiter_ThrottlesAfterMaxFailures(t *testing.T) {
	ctx := context.Background()
	guard := New(newMemoryStore(), Options{MaxFailures: 3}, nil)

	for i := 0; i < 3; i++ {
		require.NoError(t, guard.Check(ctx, "10.0.0.1"))
		guard.Failed(ctx, "10.0.0.1")
	}
	require.ErrorIs(t, guard.Check(ctx, "10.0.0.1"), ErrThrottled)
	require.NoError(t, guard.Check(ctx, "10.0.0.2"), "other clients are unaffected")
}

func TestLimiter_SuccessResets(t *testing.T) {
	ctx := context.Background()
	guard := New(newMemoryStore(), Options{MaxFailures: 2}, nil)

	guard.Failed(ctx, "c")
	guard.Succeeded(ctx, "c")
	guard.Failed(ctx, "c")
	require.NoError(t, guard.Check(ctx, "c"))
}

func TestLimiter_FailsOpen(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	store.err = errors.New("connection refused")
	guard := New(store, Options{MaxFailures: 1}, nil)

	guard.Failed(ctx, "c")
	require.NoError(t, guard.Check(ctx, "c"))
}

func TestLimiter_Defaults(t *testing.T) {
	guard := New(newMemoryStore(), Options{}, nil)
	require.Equal(t, int64(DefaultMaxFailures), guard.opts.MaxFailures)
	require.Equal(t, DefaultWindow, guard.opts.Window)
}

func TestNop(t *testing.T) {
	var guard Guard = Nop{}
	for i := 0; i < 100; i++ {
		guard.Failed(context.Background(), "c")
	}
	require.NoError(t, guard.Check(context.Background(), "c"))
}

// Runs against a real server when BATCHFLOW_TEST_REDIS_URL is set.
func TestRedisStore(t *testing.T) {
	url := os.Getenv("BATCHFLOW_TEST_REDIS_URL")
	if url == "" {
		t.Skip("BATCHFLOW_TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	client, err := Connect(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	store := NewRedisStore(client)
	key := "test:" + uuid.NewString()
	t.Cleanup(func() { _ = store.Reset(ctx, key) })

	n, err := store.Count(ctx, key)
	require.NoError(t, err)
	require.Zero(t, n)

	n, err = store.Incr(ctx, key, time.Minute)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
	n, err = store.Incr(ctx, key, time.Minute)
	require.NoError(t, err)
	require.Equal(t, int64(2), n)

	ttl, err := client.TTL(ctx, key).Result()
	require.NoError(t, err)
	require.Greater(t, ttl, time.Duration(0))

	require.NoError(t, store.Reset(ctx, key))
	n, err = store.Count(ctx, key)
	require.NoError(t, err)
	require.Zero(t, n)
}
