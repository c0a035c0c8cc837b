package ratelimiter

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// FixedWindowRateLimiter admits up to limit requests per source in each
// aligned window. State is process-local.
type FixedWindowRateLimiter struct {
	counts          sync.Map // string -> *clientData
	limit           int64
	window          time.Duration
	sourceHeaderKey string
	cleanupTick     *time.Ticker
	done            chan struct{}
	closeOnce       sync.Once
}

type clientData struct {
	count   int64        // atomic
	resetAt atomic.Value // stores time.Time
	mu      sync.Mutex   // only for reset (rare)
}

func NewFixedWindowRateLimiter(limit int, window time.Duration, sourceHeaderKey string) *FixedWindowRateLimiter {
	if window <= 0 {
		window = time.Minute
	}
	if sourceHeaderKey == "" {
		sourceHeaderKey = defaultSourceKey
	}

	rl := &FixedWindowRateLimiter{
		limit:           int64(limit),
		window:          window,
		sourceHeaderKey: sourceHeaderKey,
		cleanupTick:     time.NewTicker(window),
		done:            make(chan struct{}),
	}
	go rl.startCleanup()
	return rl
}

func (rl *FixedWindowRateLimiter) Allow(sourceKey string) bool {
	ok, _ := rl.AllowWithRetry(sourceKey)
	return ok
}

// AllowWithRetry also reports how long until the window resets when denied.
func (rl *FixedWindowRateLimiter) AllowWithRetry(sourceKey string) (bool, time.Duration) {
	now := time.Now()
	nextReset := now.Truncate(rl.window).Add(rl.window)

	val, _ := rl.counts.LoadOrStore(sourceKey, &clientData{})
	data := val.(*clientData)

	data.mu.Lock()
	if data.resetAt.Load() == nil {
		data.resetAt.Store(nextReset)
		atomic.StoreInt64(&data.count, 1)
		data.mu.Unlock()
		return true, 0
	}
	data.mu.Unlock()

	currentReset := data.resetAt.Load().(time.Time)

	if now.Before(currentReset) {
		newCount := atomic.AddInt64(&data.count, 1)
		if newCount-1 >= rl.limit {
			atomic.AddInt64(&data.count, -1) // rollback
			return false, time.Until(currentReset)
		}
		return true, 0
	}

	data.mu.Lock()
	defer data.mu.Unlock()

	// Another goroutine may have reset the window already
	if currentReset := data.resetAt.Load().(time.Time); now.Before(currentReset) {
		newCount := atomic.AddInt64(&data.count, 1)
		if newCount-1 >= rl.limit {
			atomic.AddInt64(&data.count, -1)
			return false, time.Until(currentReset)
		}
		return true, 0
	}

	atomic.StoreInt64(&data.count, 1)
	data.resetAt.Store(nextReset)
	return true, 0
}

func (rl *FixedWindowRateLimiter) Remaining(sourceKey string) int {
	val, ok := rl.counts.Load(sourceKey)
	if !ok {
		return int(rl.limit)
	}

	data := val.(*clientData)
	resetAt, _ := data.resetAt.Load().(time.Time)
	if !time.Now().Before(resetAt) {
		return int(rl.limit)
	}

	remaining := rl.limit - atomic.LoadInt64(&data.count)
	if remaining < 0 {
		return 0
	}
	return int(remaining)
}

func (rl *FixedWindowRateLimiter) GetMaxBurst() int {
	return int(rl.limit)
}

func (rl *FixedWindowRateLimiter) GetSourceKey(r *http.Request) string {
	return sourceKey(r, rl.sourceHeaderKey)
}

func (rl *FixedWindowRateLimiter) startCleanup() {
	for {
		select {
		case <-rl.cleanupTick.C:
			rl.cleanup()
		case <-rl.done:
			return
		}
	}
}

func (rl *FixedWindowRateLimiter) cleanup() {
	now := time.Now()
	rl.counts.Range(func(key, value any) bool {
		data := value.(*clientData)
		if resetAt := data.resetAt.Load(); resetAt != nil {
			if now.After(resetAt.(time.Time)) {
				rl.counts.Delete(key)
			}
		}
		return true
	})
}

func (rl *FixedWindowRateLimiter) Close() error {
	rl.closeOnce.Do(func() {
		close(rl.done)
		rl.cleanupTick.Stop()
	})
	return nil
}
