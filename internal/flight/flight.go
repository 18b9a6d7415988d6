// Package flight deduplicates concurrent resolutions of the same query
// key: one producer runs, every concurrent caller for that key receives
// the producer's result or error.
//
// Unlike golang.org/x/sync/singleflight, a waiter abandoning its wait
// does not orphan an uncancellable producer: the producer's context is
// cancelled once the last interested waiter has gone, and otherwise the
// producer runs to completion for the benefit of remaining waiters.
package flight

import (
	"context"
	"sync"
)

// call is one in-flight resolution shared by all waiters for a key.
type call[V any] struct {
	// done is closed when the producer finishes.
	done chan struct{}

	// cancel aborts the producer; invoked only when the waiter count
	// reaches zero before completion.
	cancel context.CancelFunc

	// waiters counts callers still interested in the outcome.
	// Guarded by the group mutex.
	waiters int

	// shared records whether more than one caller joined this call.
	shared bool

	val V
	err error
}

// Group coordinates single-flight resolution per key. The zero value is
// not usable; construct with NewGroup.
type Group[V any] struct {
	mu    sync.Mutex
	calls map[string]*call[V]
}

// NewGroup creates an empty coordinator.
func NewGroup[V any]() *Group[V] {
	return &Group[V]{
		calls: make(map[string]*call[V]),
	}
}

// Do returns the result of producer for key, running it exactly once no
// matter how many callers arrive while the resolution is outstanding.
// The boolean reports whether the result was shared with other callers.
//
// The producer receives a context that carries ctx's values but not its
// cancellation: a single caller's deadline only detaches that caller.
// Completed calls are forgotten immediately, so a later caller triggers
// a fresh resolution; failures are never negatively cached.
func (g *Group[V]) Do(ctx context.Context, key string,
	producer func(ctx context.Context) (V, error)) (V, bool, error) {

	g.mu.Lock()

	if c, ok := g.calls[key]; ok {
		c.waiters++
		c.shared = true
		g.mu.Unlock()

		return g.wait(ctx, key, c)
	}

	prodCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c := &call[V]{
		done:    make(chan struct{}),
		cancel:  cancel,
		waiters: 1,
	}
	g.calls[key] = c
	g.mu.Unlock()

	go func() {
		val, err := producer(prodCtx)

		g.mu.Lock()
		c.val, c.err = val, err
		// Forget the key before broadcasting so a caller arriving
		// after completion starts a fresh resolution.
		if g.calls[key] == c {
			delete(g.calls, key)
		}
		g.mu.Unlock()

		close(c.done)
		cancel()
	}()

	return g.wait(ctx, key, c)
}

// wait blocks until the call completes or ctx is done. A departing
// waiter that was the last one cancels the producer.
func (g *Group[V]) wait(ctx context.Context, key string,
	c *call[V]) (V, bool, error) {

	select {
	case <-c.done:
		g.mu.Lock()
		shared := c.shared
		g.mu.Unlock()

		return c.val, shared, c.err

	case <-ctx.Done():
		g.mu.Lock()
		c.waiters--
		abandon := c.waiters == 0
		if abandon && g.calls[key] == c {
			delete(g.calls, key)
		}
		g.mu.Unlock()

		if abandon {
			c.cancel()
		}

		var zero V
		return zero, false, ctx.Err()
	}
}

// Pending returns the number of keys with an outstanding resolution.
func (g *Group[V]) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return len(g.calls)
}
