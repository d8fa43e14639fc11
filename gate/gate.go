// Package gate provides a counting admission primitive that limits how many
// units of work may be in flight at once, with first-come-first-served
// fairness among blocked callers.
//
// Unlike a buffered-channel semaphore, a released permit is handed directly
// to the oldest waiter instead of being returned to a shared pool, so no
// late arrival can overtake a caller that is already queued.
package gate

import (
	"context"
	"sync"
)

// Gate admits at most N concurrent holders. The zero value is not usable;
// construct with New.
type Gate struct {
	mu      sync.Mutex
	permits int
	waiters []chan struct{}
}

// New returns a Gate admitting at most limit concurrent holders.
// A limit below 1 is clamped to 1.
func New(limit int) *Gate {
	if limit < 1 {
		limit = 1
	}
	return &Gate{permits: limit}
}

// Acquire obtains a permit, blocking until one is available or ctx is done.
// Callers are admitted in strict arrival order. Every successful Acquire
// must be paired with exactly one Release, including on failure paths of
// the work it guards.
func (g *Gate) Acquire(ctx context.Context) error {
	g.mu.Lock()
	if g.permits > 0 {
		g.permits--
		g.mu.Unlock()
		return nil
	}

	ready := make(chan struct{})
	g.waiters = append(g.waiters, ready)
	g.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		g.mu.Lock()
		select {
		case <-ready:
			// Release granted us the permit before we observed the
			// cancellation. Pass it on so it is not lost.
			g.mu.Unlock()
			g.Release()
		default:
			for i, w := range g.waiters {
				if w == ready {
					g.waiters = append(g.waiters[:i], g.waiters[i+1:]...)
					break
				}
			}
			g.mu.Unlock()
		}
		return ctx.Err()
	}
}

// Release returns a permit. If callers are waiting, the permit is handed
// directly to the oldest waiter; otherwise the available count grows.
func (g *Gate) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.waiters) > 0 {
		// The close happens under the lock so a waiter cancelling at the
		// same moment either observes the grant or is still in the queue.
		ready := g.waiters[0]
		g.waiters = g.waiters[1:]
		close(ready)
		return
	}
	g.permits++
}

// Available reports the number of permits that can be acquired without
// blocking. Intended for status output and tests; the value may be stale
// as soon as it is read.
func (g *Gate) Available() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.permits
}
