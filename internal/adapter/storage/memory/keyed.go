package memory

import (
	"context"
	"sync"
	"time"
)

// KeyLocker implements ports.KeyLocker for a single process. The ttl is
// ignored; a lock is held until released.
type KeyLocker struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

// NewKeyLocker returns an empty locker.
func NewKeyLocker() *KeyLocker {
	return &KeyLocker{locks: make(map[string]chan struct{})}
}

// Acquire blocks until key is free or ctx is done.
func (l *KeyLocker) Acquire(ctx context.Context, key string, _ time.Duration) (func(context.Context) error, error) {
	for {
		l.mu.Lock()
		held, busy := l.locks[key]
		if !busy {
			ch := make(chan struct{})
			l.locks[key] = ch
			l.mu.Unlock()

			var once sync.Once
			return func(context.Context) error {
				once.Do(func() {
					l.mu.Lock()
					delete(l.locks, key)
					l.mu.Unlock()
					close(ch)
				})
				return nil
			}, nil
		}
		l.mu.Unlock()

		select {
		case <-held:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

type entry struct {
	value   []byte
	expires time.Time
}

// expiringMap is a TTL map shared by the cache and nonce store.
type expiringMap struct {
	mu    sync.Mutex
	now   func() time.Time
	items map[string]entry
}

func newExpiringMap() expiringMap {
	return expiringMap{now: time.Now, items: make(map[string]entry)}
}

func (m *expiringMap) get(key string) ([]byte, bool) {
	e, ok := m.items[key]
	if !ok {
		return nil, false
	}
	if !e.expires.IsZero() && !m.now().Before(e.expires) {
		delete(m.items, key)
		return nil, false
	}
	return e.value, true
}

func (m *expiringMap) set(key string, value []byte, ttl time.Duration) {
	e := entry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}
	m.items[key] = e
}

// IdempotencyCache implements ports.IdempotencyCache in process memory.
type IdempotencyCache struct {
	m expiringMap
}

func NewIdempotencyCache() *IdempotencyCache {
	return &IdempotencyCache{m: newExpiringMap()}
}

// Get returns nil, nil on a miss.
func (c *IdempotencyCache) Get(_ context.Context, key string) ([]byte, error) {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	v, ok := c.m.get(key)
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

func (c *IdempotencyCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	c.m.set(key, value, ttl)
	return nil
}

// NonceStore implements ports.NonceStore in process memory.
type NonceStore struct {
	m expiringMap
}

func NewNonceStore() *NonceStore {
	return &NonceStore{m: newExpiringMap()}
}

func (s *NonceStore) CheckAndSet(_ context.Context, scope, nonce string, ttl time.Duration) (bool, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	key := scope + ":" + nonce
	if _, used := s.m.get(key); used {
		return false, nil
	}
	s.m.set(key, []byte{1}, ttl)
	return true, nil
}
