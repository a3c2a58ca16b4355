// Package locks serializes mutations on a single resource across requests and
// replicas. Redis is used when available; otherwise a keyed in-process mutex.
package locks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"scribe/internal/middleware"
	"scribe/internal/observability"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrTimeout is returned when a lock could not be acquired within the wait budget.
var ErrTimeout = errors.New("lock wait timed out")

// Release gives a lock back. It is safe to call more than once.
type Release func()

// Locker acquires exclusive, bounded-wait locks on string keys.
type Locker interface {
	Acquire(ctx context.Context, key string) (Release, error)
}

// New returns a Redis-backed locker when client is non-nil, otherwise a
// process-local one.
func New(client *redis.Client, ttl, wait time.Duration) Locker {
	if client == nil {
		return NewLocalLocker(wait)
	}
	return NewRedisLocker(client, ttl, wait)
}

// PostKey is the lock key guarding a single post.
func PostKey(id uint) string {
	return fmt.Sprintf("post:%d", id)
}

// SlugKey is the lock key guarding allocation of slugs with a common base.
func SlugKey(base string) string {
	return "slug:" + base
}

// CategoryKey guards category deletion against concurrent post writes.
func CategoryKey(id uint) string {
	return fmt.Sprintf("category:%d", id)
}

const retryInterval = 20 * time.Millisecond

// releaseScript deletes the key only while it still holds our token, so an
// expired lock taken over by another holder is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements Locker with SET NX PX and token-checked release.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
	wait   time.Duration
	prefix string
}

// NewRedisLocker creates a Redis locker. ttl bounds how long a crashed holder
// can block others; wait bounds how long Acquire blocks.
func NewRedisLocker(client *redis.Client, ttl, wait time.Duration) *RedisLocker {
	return &RedisLocker{client: client, ttl: ttl, wait: wait, prefix: "scribe:lock:"}
}

// Acquire blocks until key is free, the wait budget is spent or ctx ends.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (Release, error) {
	ctx, span := observability.StartLockSpan(ctx, "redis", key)
	start := time.Now()

	release, err := l.acquire(ctx, l.prefix+key)
	observeWait("redis", start, err)
	observability.EndSpan(span, err)
	return release, err
}

func (l *RedisLocker) acquire(ctx context.Context, key string) (Release, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("acquire %s: %w", key, err)
	}
	token := uuid.NewString()

	waitCtx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()

	ticker := time.NewTicker(retryInterval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(waitCtx, key, token, l.ttl).Result()
		if err != nil {
			if waitCtx.Err() != nil && ctx.Err() == nil {
				return nil, fmt.Errorf("acquire %s: %w", key, ErrTimeout)
			}
			return nil, fmt.Errorf("acquire %s: %w", key, err)
		}
		if ok {
			return l.releaser(key, token), nil
		}

		select {
		case <-ticker.C:
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return nil, fmt.Errorf("acquire %s: %w", key, ctx.Err())
			}
			return nil, fmt.Errorf("acquire %s: %w", key, ErrTimeout)
		}
	}
}

func (l *RedisLocker) releaser(key, token string) Release {
	var once sync.Once
	return func() {
		once.Do(func() {
			// Release must run even when the request context is already cancelled.
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
				middleware.Logger.Warn("failed to release lock",
					slog.String("key", key), slog.String("error", err.Error()))
			}
		})
	}
}

// LocalLocker implements Locker with one channel semaphore per key.
// Entries are dropped once no goroutine holds or waits for them.
type LocalLocker struct {
	mu    sync.Mutex
	wait  time.Duration
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewLocalLocker creates a process-local locker.
func NewLocalLocker(wait time.Duration) *LocalLocker {
	return &LocalLocker{wait: wait, slots: make(map[string]*slot)}
}

// Acquire blocks until key is free, the wait budget is spent or ctx ends.
func (l *LocalLocker) Acquire(ctx context.Context, key string) (Release, error) {
	_, span := observability.StartLockSpan(ctx, "local", key)
	start := time.Now()

	release, err := l.acquire(ctx, key)
	observeWait("local", start, err)
	observability.EndSpan(span, err)
	return release, err
}

func (l *LocalLocker) acquire(ctx context.Context, key string) (Release, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("acquire %s: %w", key, err)
	}

	l.mu.Lock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	l.mu.Unlock()

	timer := time.NewTimer(l.wait)
	defer timer.Stop()

	select {
	case s.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-s.ch
				l.unref(key, s)
			})
		}, nil
	case <-timer.C:
		l.unref(key, s)
		return nil, fmt.Errorf("acquire %s: %w", key, ErrTimeout)
	case <-ctx.Done():
		l.unref(key, s)
		return nil, fmt.Errorf("acquire %s: %w", key, ctx.Err())
	}
}

func (l *LocalLocker) unref(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

func observeWait(backend string, start time.Time, err error) {
	result := "acquired"
	switch {
	case errors.Is(err, ErrTimeout):
		result = "timeout"
	case err != nil:
		result = "error"
	}
	middleware.LockWaitSeconds.WithLabelValues(backend, result).Observe(time.Since(start).Seconds())
}
