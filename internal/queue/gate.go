package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/semaphore"
)

const lockRetryDelay = 50 * time.Millisecond

// Gate bounds how many whole operations run against one source at a time.
// A writable source gets a capacity of 1 so reads never observe a half
// applied batch of writes.
type Gate struct {
	sem  *semaphore.Weighted
	lock *flock.Flock
}

// NewGate returns a gate admitting capacity concurrent operations, at least 1.
// A non-empty lockFile additionally serializes operations across processes.
func NewGate(capacity int, lockFile string) *Gate {
	if capacity < 1 {
		capacity = 1
	}
	g := &Gate{sem: semaphore.NewWeighted(int64(capacity))}
	if lockFile != "" {
		g.lock = flock.New(lockFile)
	}
	return g
}

// Enter runs fn once the gate admits it. It returns ctx.Err() if ctx is done
// first.
func (g *Gate) Enter(ctx context.Context, fn func() error) error {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer g.sem.Release(1)

	if g.lock != nil {
		ok, err := g.lock.TryLockContext(ctx, lockRetryDelay)
		if err != nil {
			return fmt.Errorf("lock %s: %w", g.lock.Path(), err)
		}
		if !ok {
			return fmt.Errorf("lock %s: not acquired", g.lock.Path())
		}
		defer g.lock.Unlock()
	}
	return fn()
}
