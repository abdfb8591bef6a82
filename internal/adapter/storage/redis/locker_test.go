package redis

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyLocker_AcquireRelease(t *testing.T) {
	s, client := newTestClient(t)
	locker := NewKeyLocker(client)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "sender:key", 5*time.Second)
	require.NoError(t, err)
	assert.True(t, s.Exists("ledger:lock:sender:key"))

	require.NoError(t, release(ctx))
	assert.False(t, s.Exists("ledger:lock:sender:key"))
}

func TestKeyLocker_Contended(t *testing.T) {
	_, client := newTestClient(t)
	locker := NewKeyLocker(client)
	locker.tries = 2
	locker.retryDelay = time.Millisecond
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "busy", 5*time.Second)
	require.NoError(t, err)
	defer release(ctx) //nolint:errcheck

	_, err = locker.Acquire(ctx, "busy", 5*time.Second)
	assert.ErrorContains(t, err, "acquire lock busy")
}

func TestKeyLocker_MutualExclusion(t *testing.T) {
	_, client := newTestClient(t)
	locker := NewKeyLocker(client)
	locker.retryDelay = 5 * time.Millisecond
	ctx := context.Background()

	var inside, overlaps int32
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locker.Acquire(ctx, "shared", 5*time.Second)
			if !assert.NoError(t, err) {
				return
			}
			if atomic.AddInt32(&inside, 1) > 1 {
				atomic.AddInt32(&overlaps, 1)
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
			assert.NoError(t, release(ctx))
		}()
	}
	wg.Wait()
	assert.Zero(t, overlaps)
}
