package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	pkgredis "github.com/mylittlestore/pos-backend/pkg/redis"
)

const defaultLockTTL = 50 * time.Minute

// Lock keeps maintenance cycles exclusive across worker replicas.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

type leaser interface {
	AcquireLock(ctx context.Context, scope string, ttl time.Duration) (string, bool, error)
	ReleaseLock(ctx context.Context, scope, token string) error
}

// RedisLock holds one Redis lease per maintenance cycle. The lease outlives
// a crashed holder by at most its TTL.
type RedisLock struct {
	leases leaser
	scope  string
	ttl    time.Duration
	token  string
}

func NewRedisLock(leases leaser, scope string, ttl time.Duration) (*RedisLock, error) {
	if leases == nil {
		return nil, errors.New("redis client required for lock")
	}
	if scope == "" {
		return nil, errors.New("lock scope is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{leases: leases, scope: scope, ttl: ttl}, nil
}

func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	token, ok, err := l.leases.AcquireLock(ctx, l.scope, l.ttl)
	if err != nil {
		return false, err
	}
	if ok {
		l.token = token
	}
	return ok, nil
}

// Release is a no-op once the lease has expired or was never taken.
func (l *RedisLock) Release(ctx context.Context) error {
	if l.token == "" {
		return nil
	}
	err := l.leases.ReleaseLock(ctx, l.scope, l.token)
	l.token = ""
	if err != nil && !errors.Is(err, pkgredis.ErrLockNotHeld) {
		return fmt.Errorf("release %s: %w", l.scope, err)
	}
	return nil
}
