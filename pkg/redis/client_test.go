package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/mylittlestore/pos-backend/pkg/config"
)

func TestFixedWindowAllow(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}

	win, err := client.FixedWindowAllow(ctx, "member:m-1", 2, time.Second)
	require.NoError(t, err)
	require.Equal(t, Window{Allowed: true, Count: 1, ResetIn: time.Second}, win)
	require.Equal(t, int64(1000), mock.expiry["mls:rate_limit:member:m-1"])

	mock.expiry["mls:rate_limit:member:m-1"] = 400
	win, err = client.FixedWindowAllow(ctx, "member:m-1", 2, time.Second)
	require.NoError(t, err)
	require.True(t, win.Allowed)
	require.EqualValues(t, 2, win.Count)
	require.Equal(t, 400*time.Millisecond, win.ResetIn)

	win, err = client.FixedWindowAllow(ctx, "member:m-1", 2, time.Second)
	require.NoError(t, err)
	require.False(t, win.Allowed)
}

func TestLockIsOwnedByToken(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}

	token, ok, err := client.AcquireLock(ctx, "charge:pm-1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotEmpty(t, token)

	_, ok, err = client.AcquireLock(ctx, "charge:pm-1", time.Minute)
	require.NoError(t, err)
	require.False(t, ok)

	require.ErrorIs(t, client.ReleaseLock(ctx, "charge:pm-1", "someone-else"), ErrLockNotHeld)
	require.Contains(t, mock.data, "mls:lock:charge:pm-1")

	require.NoError(t, client.ReleaseLock(ctx, "charge:pm-1", token))
	_, err = client.Get(ctx, client.LockKey("charge:pm-1"))
	require.ErrorIs(t, err, redis.Nil)

	require.ErrorIs(t, client.ReleaseLock(ctx, "charge:pm-1", token), ErrLockNotHeld)
}

func TestSwapRequiresExpectedValue(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}

	ok, err := client.SetNX(ctx, "k", "pending", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	swapped, err := client.Swap(ctx, "k", "other", "done", time.Hour)
	require.NoError(t, err)
	require.False(t, swapped)

	swapped, err = client.Swap(ctx, "k", "pending", "done", time.Hour)
	require.NoError(t, err)
	require.True(t, swapped)
	require.Equal(t, "done", mock.data["k"])
	require.Equal(t, time.Hour.Milliseconds(), mock.expiry["k"])
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	require.Equal(t, "mls:idempotency:scope:id", client.IdempotencyKey("scope", "id"))
	require.Equal(t, "mls:rate_limit:scope", client.RateLimitKey("scope"))
	require.Equal(t, "mls:lock:charge:abc", client.LockKey("charge:abc"))
	require.Equal(t, "mls:idempotency:scope", client.IdempotencyKey("scope", " "))
}

func TestUninitialisedClient(t *testing.T) {
	client := &Client{}
	_, err := client.Get(context.Background(), "k")
	require.ErrorIs(t, err, errNotInitialized)
	_, err = client.FixedWindowAllow(context.Background(), "s", 1, time.Second)
	require.ErrorIs(t, err, errNotInitialized)
	require.NoError(t, client.Close())
}

func TestOptionsFromConfig(t *testing.T) {
	_, err := optionsFromConfig(config.RedisConfig{})
	require.Error(t, err)

	opts, err := optionsFromConfig(config.RedisConfig{URL: "redis://:secret@cache:6380/0", DB: 3, PoolSize: 20, DialTimeout: 2 * time.Second})
	require.NoError(t, err)
	require.Equal(t, "cache:6380", opts.Addr)
	require.Equal(t, "secret", opts.Password)
	require.Equal(t, 3, opts.DB)
	require.Equal(t, 20, opts.PoolSize)
	require.Equal(t, 2*time.Second, opts.DialTimeout)

	opts, err = optionsFromConfig(config.RedisConfig{Address: "localhost:6379", DB: 1})
	require.NoError(t, err)
	require.Equal(t, "localhost:6379", opts.Addr)
	require.Equal(t, 1, opts.DB)
}

// mockCmdable keeps keys in memory and runs the package scripts natively,
// keyed by their SHA.
type mockCmdable struct {
	data   map[string]string
	counts map[string]int64
	expiry map[string]int64
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{
		data:   map[string]string{},
		counts: map[string]int64{},
		expiry: map[string]int64{},
	}
}

func (m *mockCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCmdable) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockCmdable) SetNX(_ context.Context, key string, value any, _ time.Duration) *redis.BoolCmd {
	if _, exists := m.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(m.data, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func (m *mockCmdable) EvalSha(_ context.Context, sha string, keys []string, args ...any) *redis.Cmd {
	switch sha {
	case windowScript.Hash():
		m.counts[keys[0]]++
		if m.counts[keys[0]] == 1 {
			m.expiry[keys[0]] = args[0].(int64)
		}
		return redis.NewCmdResult([]any{m.counts[keys[0]], m.expiry[keys[0]]}, nil)
	case swapScript.Hash():
		if m.data[keys[0]] != args[0] {
			return redis.NewCmdResult(int64(0), nil)
		}
		m.data[keys[0]] = fmt.Sprint(args[1])
		m.expiry[keys[0]] = args[2].(int64)
		return redis.NewCmdResult(int64(1), nil)
	case releaseScript.Hash():
		if m.data[keys[0]] == args[0] {
			delete(m.data, keys[0])
			return redis.NewCmdResult(int64(1), nil)
		}
		return redis.NewCmdResult(int64(0), nil)
	}
	return redis.NewCmdResult(nil, fmt.Errorf("unknown script %s", sha))
}

func (m *mockCmdable) Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd {
	return redis.NewCmdResult(nil, fmt.Errorf("eval not supported"))
}

func (m *mockCmdable) EvalRO(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd {
	return m.Eval(ctx, script, keys, args...)
}

func (m *mockCmdable) EvalShaRO(ctx context.Context, sha string, keys []string, args ...any) *redis.Cmd {
	return m.EvalSha(ctx, sha, keys, args...)
}

func (m *mockCmdable) ScriptExists(_ context.Context, hashes ...string) *redis.BoolSliceCmd {
	return redis.NewBoolSliceResult(make([]bool, len(hashes)), nil)
}

func (m *mockCmdable) ScriptLoad(_ context.Context, script string) *redis.StringCmd {
	return redis.NewStringResult("", nil)
}
