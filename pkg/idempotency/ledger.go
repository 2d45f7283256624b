// Package idempotency records which deliveries a consumer has already
// applied, so that at-least-once transports (Pub/Sub, Square webhooks) apply
// each message once.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mylittlestore/pos-backend/pkg/redis"
)

// Ledger claims delivery ids under one scope. A claim lives for the ledger
// TTL; Release gives it back when the delivery failed and should be retried.
type Ledger struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	scope string
}

func NewLedger(store redis.IdempotencyStore, ttl time.Duration, scope string) (*Ledger, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	scope = strings.TrimSpace(scope)
	if scope == "" {
		return nil, errors.New("ledger scope is required")
	}
	return &Ledger{store: store, ttl: ttl, scope: scope}, nil
}

// ConsumerScope is the scope used for events processed by a named consumer.
func ConsumerScope(consumer string) string {
	return "evt:processed:" + consumer
}

// Claim reports true when id had not been claimed before and now is.
func (l *Ledger) Claim(ctx context.Context, id string) (bool, error) {
	key, err := l.key(id)
	if err != nil {
		return false, err
	}
	claimed, err := l.store.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), l.ttl)
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", key, err)
	}
	return claimed, nil
}

func (l *Ledger) Release(ctx context.Context, id string) error {
	key, err := l.key(id)
	if err != nil {
		return err
	}
	return l.store.Del(ctx, key)
}

func (l *Ledger) key(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", errors.New("delivery id is required")
	}
	return l.store.IdempotencyKey(l.scope, id), nil
}
