package result

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// keyedLock is a set of per-exam mutexes whose waits are bounded.
type keyedLock struct {
	mu   sync.Mutex
	sems map[int64]*semaphore.Weighted
}

func newKeyedLock() *keyedLock {
	return &keyedLock{sems: make(map[int64]*semaphore.Weighted)}
}

func (k *keyedLock) get(key int64) *semaphore.Weighted {
	k.mu.Lock()
	defer k.mu.Unlock()
	sem, ok := k.sems[key]
	if !ok {
		sem = semaphore.NewWeighted(1)
		k.sems[key] = sem
	}
	return sem
}

func (k *keyedLock) acquire(ctx context.Context, key int64, timeout time.Duration) (func(), error) {
	sem := k.get(key)
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := sem.Acquire(waitCtx, 1); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: exam %d lock wait exceeded %s", ErrStorageContention, key, timeout)
	}
	return func() { sem.Release(1) }, nil
}
