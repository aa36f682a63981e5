// Package lock serializes the check-then-write section of appointment
// creation and rescheduling per professional. Without it two concurrent
// creates for the same professional could both pass the overlap check before
// either writes.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned when the professional's lock is already held.
var ErrNotAcquired = errors.New("professional lock not acquired")

// Locker guards a critical section keyed by professional id.
type Locker interface {
	WithProfessionalLock(ctx context.Context, doctorID uuid.UUID, fn func(ctx context.Context) error) error
}

// ---------------------------------------------------------------------------
// In-process keyed mutex
// ---------------------------------------------------------------------------

// KeyedMutexLocker is the single-instance default: one mutex per professional,
// allocated on first use and never reclaimed. The per-entry footprint is a
// bare mutex, so the map stays small relative to the roster.
type KeyedMutexLocker struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

// NewKeyedMutexLocker creates an empty in-process locker.
func NewKeyedMutexLocker() *KeyedMutexLocker {
	return &KeyedMutexLocker{locks: make(map[uuid.UUID]*sync.Mutex)}
}

func (l *KeyedMutexLocker) lockFor(doctorID uuid.UUID) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[doctorID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[doctorID] = m
	}
	return m
}

// WithProfessionalLock runs fn while holding the professional's mutex.
func (l *KeyedMutexLocker) WithProfessionalLock(ctx context.Context, doctorID uuid.UUID, fn func(ctx context.Context) error) error {
	m := l.lockFor(doctorID)
	m.Lock()
	defer m.Unlock()
	return fn(ctx)
}

// ---------------------------------------------------------------------------
// Redis locker
// ---------------------------------------------------------------------------

// RedisLocker guards the section with a per-professional Redis key, for
// deployments running more than one server instance against the same store.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisLocker creates a locker using SET NX with the given lease TTL.
func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	return &RedisLocker{client: client, ttl: ttl}
}

// NewRedisClient connects and pings a Redis instance at the given URL.
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// unlockScript deletes the lock key only if it still holds our token, so an
// expired lease cannot release a lock later acquired by someone else.
var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

// WithProfessionalLock acquires the professional's lock, runs fn under a
// deadline matching the lease, and releases the lock. Returns ErrNotAcquired
// when another holder has the lock; callers surface that as a retryable
// conflict.
func (l *RedisLocker) WithProfessionalLock(ctx context.Context, doctorID uuid.UUID, fn func(ctx context.Context) error) error {
	key := "lock:professional:" + doctorID.String()
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire professional lock: %w", err)
	}
	if !ok {
		return ErrNotAcquired
	}
	defer func() {
		_, _ = unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	}()

	leaseCtx, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()
	return fn(leaseCtx)
}
