package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/containerflow/pkg/instance"
)

const defaultLockTTL = 30 * time.Minute

// Lock coordinates exclusive job runs across worker replicas.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// LockFactory builds a fresh lock for one run of the named job.
type LockFactory func(job string) (Lock, error)

// redisStore defines the operations used by RedisLock.
type redisStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

// RedisLock implements Lock using Redis SETNX with an owner token and TTL.
// The TTL bounds how long a crashed worker can block the job; while the
// holder is alive the TTL is refreshed every third of its length.
type RedisLock struct {
	client redisStore
	key    string
	ttl    time.Duration
	owner  string

	stopRenew context.CancelFunc
	renewDone chan struct{}
}

// NewRedisLock constructs a Redis-backed lock.
func NewRedisLock(client redisStore, key string, ttl time.Duration) (*RedisLock, error) {
	if client == nil {
		return nil, errors.New("redis client required for lock")
	}
	if key == "" {
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{client: client, key: key, ttl: ttl}, nil
}

// NewRedisLockFactory returns a LockFactory keyed by keyFor(job).
func NewRedisLockFactory(client redisStore, keyFor func(job string) string, ttl time.Duration) LockFactory {
	return func(job string) (Lock, error) {
		return NewRedisLock(client, keyFor(job), ttl)
	}
}

// Acquire tries to own the lock for the configured TTL.
func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	owner := instance.ID() + ":" + uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, owner, l.ttl)
	if err != nil {
		return false, fmt.Errorf("setnx %s: %w", l.key, err)
	}
	if ok {
		l.owner = owner
		l.startRenewal(ctx)
	}
	return ok, nil
}

func (l *RedisLock) startRenewal(ctx context.Context) {
	interval := l.ttl / 3
	if interval <= 0 {
		interval = l.ttl
	}
	renewCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	l.stopRenew = cancel
	l.renewDone = done

	owner := l.owner
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-renewCtx.Done():
				return
			case <-ticker.C:
				if !l.renew(renewCtx, owner) {
					return
				}
			}
		}
	}()
}

// renew extends the TTL while owner still holds the key. It reports false
// once ownership is lost.
func (l *RedisLock) renew(ctx context.Context, owner string) bool {
	value, err := l.client.Get(ctx, l.key)
	if err != nil {
		return !errors.Is(err, redis.Nil)
	}
	if value != owner {
		return false
	}
	ok, err := l.client.Expire(ctx, l.key, l.ttl)
	return err != nil || ok
}

func (l *RedisLock) stopRenewal() {
	if l.stopRenew == nil {
		return
	}
	l.stopRenew()
	<-l.renewDone
	l.stopRenew = nil
	l.renewDone = nil
}

// Release frees the lock only if this instance still owns it.
func (l *RedisLock) Release(ctx context.Context) error {
	l.stopRenewal()
	if l.owner == "" {
		return nil
	}
	value, err := l.client.Get(ctx, l.key)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			l.owner = ""
			return nil
		}
		return fmt.Errorf("read lock owner: %w", err)
	}
	if value != l.owner {
		l.owner = ""
		return nil
	}
	if err := l.client.Del(ctx, l.key); err != nil {
		return fmt.Errorf("delete lock: %w", err)
	}
	l.owner = ""
	return nil
}
