package workers

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Pool bounds the number of goroutines running work submitted through its
// groups. Work submitted to a pool must not itself submit to the same pool,
// or a full pool can deadlock.
type Pool struct {
	sem  *semaphore.Weighted
	size int
}

// NewPool creates a pool with size slots. Sizes below 1 are raised to 1.
func NewPool(size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size)), size: size}
}

// Size returns the number of slots.
func (p *Pool) Size() int {
	return p.size
}

// Group tracks a batch of tasks on a shared pool so a caller can wait for
// just its own work.
type Group struct {
	pool *Pool
	wg   sync.WaitGroup
}

// Group starts a new batch.
func (p *Pool) Group() *Group {
	return &Group{pool: p}
}

// Go blocks until a slot is free, then runs fn on its own goroutine. It only
// fails when ctx is done before a slot frees up, in which case fn never runs.
func (g *Group) Go(ctx context.Context, fn func()) error {
	if err := g.pool.sem.Acquire(ctx, 1); err != nil {
		return err
	}

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer g.pool.sem.Release(1)
		fn()
	}()
	return nil
}

// Wait blocks until every task started through this group has returned.
func (g *Group) Wait() {
	g.wg.Wait()
}
