// Package gate bounds simultaneous adapter invocations per platform tag.
package gate

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Gate is the process-wide registry of per-platform semaphores. Permit
// counts are fixed at construction; acquisition blocks until a permit frees
// up or the context is cancelled. A slot covers the full work unit (adapter
// call plus commit), not just the network fetch.
type Gate struct {
	permits func(tag string) int

	mu   sync.Mutex
	sems map[string]*semaphore.Weighted
}

// New builds a Gate. permits maps a tag to its permit count; tags it has
// never seen get 1 permit. overrides (from the platform tuning file) win
// over permits.
func New(tags []string, permits func(tag string) int, overrides map[string]int) *Gate {
	if permits == nil {
		permits = func(string) int { return 1 }
	}
	g := &Gate{
		permits: func(tag string) int {
			if n, ok := overrides[tag]; ok {
				return n
			}
			if n := permits(tag); n > 0 {
				return n
			}
			return 1
		},
		sems: make(map[string]*semaphore.Weighted, len(tags)),
	}
	for _, tag := range tags {
		g.sems[tag] = semaphore.NewWeighted(int64(g.permits(tag)))
	}
	return g
}

// Acquire blocks until a permit for tag is available or ctx is cancelled.
func (g *Gate) Acquire(ctx context.Context, tag string) error {
	return g.sem(tag).Acquire(ctx, 1)
}

// Release returns the permit for tag.
func (g *Gate) Release(tag string) {
	g.sem(tag).Release(1)
}

// sem returns the semaphore for tag, creating one with the default permit
// count on first sight of an unknown tag. Known tags are all seeded at
// construction, so steady state never takes the slow path.
func (g *Gate) sem(tag string) *semaphore.Weighted {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.sems[tag]
	if !ok {
		s = semaphore.NewWeighted(int64(g.permits(tag)))
		g.sems[tag] = s
	}
	return s
}
