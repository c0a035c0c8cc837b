package ratelimiter

import (
	"context"
	"sync"
	"time"
)

const defaultSweepInterval = time.Minute

type InMemoryOptions struct {
	// SweepInterval is how often expired buckets are dropped. The signaling
	// server passes ratelimiter.window so stale client keys live at most one
	// extra window.
	SweepInterval time.Duration
	Now           func() time.Time
}

type counter struct {
	value    int
	deadline time.Time
}

func (c counter) expired(now time.Time) bool {
	return !c.deadline.IsZero() && now.After(c.deadline)
}

// InMemory keeps limiter counters in process. A background sweeper drops
// expired counters until ctx is cancelled or Close is called.
type InMemory struct {
	mu       sync.RWMutex
	counters map[string]counter
	now      func() time.Time

	stop     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
}

func NewInMemory(ctx context.Context, opts InMemoryOptions) *InMemory {
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = defaultSweepInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	store := &InMemory{
		counters: make(map[string]counter),
		now:      opts.Now,
		stop:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go store.sweep(ctx, opts.SweepInterval)

	return store
}

func (s *InMemory) Get(key string) (int, error) {
	s.mu.RLock()
	c, ok := s.counters[key]
	s.mu.RUnlock()

	if !ok || c.expired(s.now()) {
		return 0, ErrCacheMiss
	}
	return c.value, nil
}

func (s *InMemory) Set(key string, value int) error {
	return s.SetWithExpiration(key, value, 0)
}

func (s *InMemory) SetWithExpiration(key string, value int, expiration time.Duration) error {
	c := counter{value: value}
	if expiration > 0 {
		c.deadline = s.now().Add(expiration)
	}

	s.mu.Lock()
	s.counters[key] = c
	s.mu.Unlock()

	return nil
}

// Len counts stored keys, expired or not.
func (s *InMemory) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.counters)
}

func (s *InMemory) sweep(ctx context.Context, every time.Duration) {
	defer close(s.stopped)

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.dropExpired()
		case <-s.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *InMemory) dropExpired() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	dropped := 0
	for key, c := range s.counters {
		if c.expired(now) {
			delete(s.counters, key)
			dropped++
		}
	}
	return dropped
}

// Done is closed once the sweeper has exited.
func (s *InMemory) Done() <-chan struct{} {
	return s.stopped
}

// Close stops the sweeper and waits for it to exit.
func (s *InMemory) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.stopped
	return nil
}
