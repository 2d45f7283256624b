package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockNotHeld is returned when releasing a lease that expired or was taken
// over by another holder.
var ErrLockNotHeld = errors.New("lock not held")

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// AcquireLock takes the lease on scope for ttl. The returned token must be
// handed back to ReleaseLock.
func (c *Client) AcquireLock(ctx context.Context, scope string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := c.SetNX(ctx, c.LockKey(scope), token, ttl)
	if err != nil {
		return "", false, fmt.Errorf("acquire lock %s: %w", scope, err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// ReleaseLock frees scope if token still owns it.
func (c *Client) ReleaseLock(ctx context.Context, scope, token string) error {
	if c.store == nil {
		return errNotInitialized
	}
	if token == "" {
		return ErrLockNotHeld
	}
	n, err := releaseScript.Run(ctx, c.store, []string{c.LockKey(scope)}, token).Int64()
	if err != nil {
		return fmt.Errorf("release lock %s: %w", scope, err)
	}
	if n == 0 {
		return ErrLockNotHeld
	}
	return nil
}
