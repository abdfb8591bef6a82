package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redsync/redsync/v4"
	rsgoredis "github.com/go-redsync/redsync/v4/redis/goredis/v9"
	goredis "github.com/redis/go-redis/v9"
)

// KeyLocker implements ports.KeyLocker with the Redlock algorithm.
// Concurrent creates with the same idempotency key serialize on it.
type KeyLocker struct {
	rs         *redsync.Redsync
	prefix     string
	tries      int
	retryDelay time.Duration
}

// NewKeyLocker wraps client in a redsync pool.
func NewKeyLocker(client goredis.UniversalClient) *KeyLocker {
	return &KeyLocker{
		rs:         redsync.New(rsgoredis.NewPool(client)),
		prefix:     "ledger:lock:",
		tries:      100,
		retryDelay: 50 * time.Millisecond,
	}
}

// Acquire blocks until the lock is held, retries run out or ctx ends.
func (l *KeyLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	mutex := l.rs.NewMutex(
		l.prefix+key,
		redsync.WithExpiry(ttl),
		redsync.WithTries(l.tries),
		redsync.WithRetryDelay(l.retryDelay),
	)
	if err := mutex.LockContext(ctx); err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", key, err)
	}

	return func(ctx context.Context) error {
		if ok, err := mutex.UnlockContext(ctx); err != nil {
			return fmt.Errorf("release lock %s: %w", key, err)
		} else if !ok {
			return fmt.Errorf("release lock %s: lock expired", key)
		}
		return nil
	}, nil
}
