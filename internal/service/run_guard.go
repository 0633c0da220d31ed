package service

import (
	"context"
	"sync"
)

// ExportedRunGuard lets _test packages exercise the guard.
type ExportedRunGuard = runGuard

// ─────────────────────────────────────────────────────────────
// runGuard: one live run per workspace
// ─────────────────────────────────────────────────────────────

// runGuard admits a single run per workspace id, whether the run came from
// a user, a cron entry or a file watch. The zero value is ready to use.
type runGuard struct {
	mu   sync.Mutex
	live map[string]chan struct{}
	wg   sync.WaitGroup
}

// Acquire claims id. It returns false while another run holds it.
func (g *runGuard) Acquire(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.live == nil {
		g.live = make(map[string]chan struct{})
	}
	if _, busy := g.live[id]; busy {
		return false
	}
	g.live[id] = make(chan struct{})
	g.wg.Add(1)
	return true
}

// Release frees id. Releasing an id that is not held does nothing.
func (g *runGuard) Release(id string) {
	g.mu.Lock()
	done, ok := g.live[id]
	delete(g.live, id)
	g.mu.Unlock()
	if ok {
		close(done)
		g.wg.Done()
	}
}

// Busy reports whether id is held.
func (g *runGuard) Busy(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.live[id]
	return ok
}

// Done returns a channel closed once id is released. For an id that is not
// held the channel is already closed.
func (g *runGuard) Done(id string) <-chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	if done, ok := g.live[id]; ok {
		return done
	}
	closed := make(chan struct{})
	close(closed)
	return closed
}

// WaitAll blocks until every held id is released or ctx is cancelled.
func (g *runGuard) WaitAll(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}
