package ratelimiter

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(t *testing.T, rate, burst int) (*RateLimiter, *fakeClock) {
	t.Helper()

	cache := NewInMemory(context.Background(), InMemoryOptions{})
	t.Cleanup(func() { _ = cache.Close() })

	rl, err := New(Options{MaxRatePerSecond: rate, MaxBurst: burst, Cache: cache, CacheTTL: time.Hour})
	require.NoError(t, err)

	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	rl.now = clock.now
	return rl, clock
}

func TestTokenBucketBurstThenDeny(t *testing.T) {
	rl, _ := newTestLimiter(t, 1, 3)

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("1.2.3.4"), "request %d", i)
	}
	assert.False(t, rl.Allow("1.2.3.4"))
	assert.Equal(t, 0, rl.Remaining("1.2.3.4"))

	// Other sources have their own bucket
	assert.True(t, rl.Allow("5.6.7.8"))
}

func TestTokenBucketRefill(t *testing.T) {
	rl, clock := newTestLimiter(t, 2, 2)

	assert.True(t, rl.Allow("k"))
	assert.True(t, rl.Allow("k"))
	assert.False(t, rl.Allow("k"))

	clock.advance(250 * time.Millisecond)
	assert.False(t, rl.Allow("k"), "half a token is not enough")

	clock.advance(250 * time.Millisecond)
	assert.True(t, rl.Allow("k"))
	assert.False(t, rl.Allow("k"))

	clock.advance(10 * time.Second)
	assert.Equal(t, 2, rl.Remaining("k"), "refill is capped at burst")
}

func TestNewRejectsZeroRate(t *testing.T) {
	_, err := New(Options{})
	assert.ErrorIs(t, err, ErrInvalidOptions)
}

func TestGetSourceKey(t *testing.T) {
	rl, _ := newTestLimiter(t, 1, 1)
	rl.sourceHeaderKey = "X-Forwarded-For"

	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.1:5555"
	assert.Equal(t, "10.0.0.1", rl.GetSourceKey(r))

	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", rl.GetSourceKey(r))
}

func TestFixedWindow(t *testing.T) {
	rl := NewFixedWindowRateLimiter(2, time.Hour, "")
	t.Cleanup(func() { _ = rl.Close() })

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.Equal(t, 0, rl.Remaining("a"))

	ok, retry := rl.AllowWithRetry("a")
	assert.False(t, ok)
	assert.Greater(t, retry, time.Duration(0))

	assert.Equal(t, 2, rl.Remaining("b"))
	assert.Equal(t, 2, rl.GetMaxBurst())
}

func TestInMemoryExpiry(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	store := NewInMemory(context.Background(), InMemoryOptions{SweepInterval: time.Hour, Now: clock.now})
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.SetWithExpiration("k", 7, time.Second))
	require.NoError(t, store.Set("p", 1))

	v, err := store.Get("k")
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	clock.advance(2 * time.Second)
	_, err = store.Get("k")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.Equal(t, 2, store.Len(), "lazy expiry keeps the key until a sweep")

	assert.Equal(t, 1, store.dropExpired())
	assert.Equal(t, 1, store.Len())
	v, err = store.Get("p")
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestInMemorySweeperStops(t *testing.T) {
	t.Run("close", func(t *testing.T) {
		store := NewInMemory(context.Background(), InMemoryOptions{SweepInterval: time.Millisecond})
		require.NoError(t, store.Close())
		require.NoError(t, store.Close())

		select {
		case <-store.Done():
		default:
			t.Fatal("sweeper still running after Close")
		}
	})

	t.Run("context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		store := NewInMemory(ctx, InMemoryOptions{SweepInterval: time.Hour})
		cancel()

		select {
		case <-store.Done():
		case <-time.After(time.Second):
			t.Fatal("sweeper ignored cancellation")
		}
		require.NoError(t, store.Close())
	})
}

func TestInMemorySweeperDropsExpired(t *testing.T) {
	store := NewInMemory(context.Background(), InMemoryOptions{SweepInterval: 5 * time.Millisecond})
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.SetWithExpiration("k", 1, time.Millisecond))
	assert.Eventually(t, func() bool { return store.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestNewRequiresCache(t *testing.T) {
	_, err := New(Options{MaxRatePerSecond: 1})
	assert.ErrorIs(t, err, ErrMissingCache)
}

func TestRedisUnavailableFailsOpen(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	store := NewRedis(client, "test:")
	t.Cleanup(func() { _ = store.Close() })

	_, err := store.Get("k")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)

	rl, err := New(Options{MaxRatePerSecond: 1, MaxBurst: 1, Cache: store})
	require.NoError(t, err)
	assert.True(t, rl.Allow("k"))
}
