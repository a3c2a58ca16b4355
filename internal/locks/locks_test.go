package locks

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisLocker(t *testing.T, ttl, wait time.Duration) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLocker(client, ttl, wait), mr
}

func lockers(t *testing.T) map[string]Locker {
	redisLocker, _ := newRedisLocker(t, 5*time.Second, 200*time.Millisecond)
	return map[string]Locker{
		"redis": redisLocker,
		"local": NewLocalLocker(200 * time.Millisecond),
	}
}

func TestLocker_MutualExclusion(t *testing.T) {
	for name, locker := range lockers(t) {
		t.Run(name, func(t *testing.T) {
			var inside, maxInside int32
			var wg sync.WaitGroup

			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					var release Release
					var err error
					// Keep retrying past the short wait budget.
					for {
						release, err = locker.Acquire(context.Background(), "post:1")
						if err == nil {
							break
						}
					}
					n := atomic.AddInt32(&inside, 1)
					for {
						m := atomic.LoadInt32(&maxInside)
						if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
							break
						}
					}
					time.Sleep(5 * time.Millisecond)
					atomic.AddInt32(&inside, -1)
					release()
				}()
			}
			wg.Wait()
			assert.Equal(t, int32(1), maxInside)
		})
	}
}

func TestLocker_TimesOut(t *testing.T) {
	for name, locker := range lockers(t) {
		t.Run(name, func(t *testing.T) {
			release, err := locker.Acquire(context.Background(), "post:2")
			require.NoError(t, err)
			defer release()

			start := time.Now()
			_, err = locker.Acquire(context.Background(), "post:2")
			assert.ErrorIs(t, err, ErrTimeout)
			assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
		})
	}
}

func TestLocker_IndependentKeys(t *testing.T) {
	for name, locker := range lockers(t) {
		t.Run(name, func(t *testing.T) {
			r1, err := locker.Acquire(context.Background(), PostKey(1))
			require.NoError(t, err)
			defer r1()

			r2, err := locker.Acquire(context.Background(), PostKey(2))
			require.NoError(t, err)
			r2()
		})
	}
}

func TestLocker_ReleaseIsIdempotent(t *testing.T) {
	for name, locker := range lockers(t) {
		t.Run(name, func(t *testing.T) {
			release, err := locker.Acquire(context.Background(), "k")
			require.NoError(t, err)
			release()
			release()

			again, err := locker.Acquire(context.Background(), "k")
			require.NoError(t, err)
			again()
		})
	}
}

func TestLocker_ContextCancelled(t *testing.T) {
	for name, locker := range lockers(t) {
		t.Run(name, func(t *testing.T) {
			release, err := locker.Acquire(context.Background(), "busy")
			require.NoError(t, err)
			defer release()

			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			_, err = locker.Acquire(ctx, "busy")
			assert.ErrorIs(t, err, context.Canceled)
		})
	}
}

func TestRedisLocker_ExpiredLockIsNotReleasedByOldHolder(t *testing.T) {
	locker, mr := newRedisLocker(t, time.Second, 100*time.Millisecond)

	stale, err := locker.Acquire(context.Background(), "post:9")
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)

	fresh, err := locker.Acquire(context.Background(), "post:9")
	require.NoError(t, err)
	defer fresh()

	stale()
	assert.True(t, mr.Exists("scribe:lock:post:9"))
}

func TestLocalLocker_DropsIdleSlots(t *testing.T) {
	locker := NewLocalLocker(time.Second)
	release, err := locker.Acquire(context.Background(), "a")
	require.NoError(t, err)
	release()

	locker.mu.Lock()
	defer locker.mu.Unlock()
	assert.Empty(t, locker.slots)
}

func TestNew(t *testing.T) {
	assert.IsType(t, &LocalLocker{}, New(nil, time.Second, time.Second))

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	assert.IsType(t, &RedisLocker{}, New(client, time.Second, time.Second))
}
