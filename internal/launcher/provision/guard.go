package provision

import (
	"context"
	"sync"
)

// Guard serializes work per profile id. The coordinator and the
// maintenance service share one instance.
type Guard struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

func NewGuard() *Guard {
	return &Guard{slots: make(map[string]*slot)}
}

func (g *Guard) acquire(id string) *slot {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.slots == nil {
		g.slots = make(map[string]*slot)
	}
	s, ok := g.slots[id]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		g.slots[id] = s
	}
	s.refs++
	return s
}

func (g *Guard) release(id string, s *slot) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(g.slots, id)
	}
}

// Lock waits for the profile to be free and returns its unlock function.
func (g *Guard) Lock(ctx context.Context, id string) (func(), error) {
	s := g.acquire(id)
	select {
	case s.ch <- struct{}{}:
		return g.unlocker(id, s), nil
	case <-ctx.Done():
		g.release(id, s)
		return nil, ctx.Err()
	}
}

// TryLock is Lock without waiting.
func (g *Guard) TryLock(id string) (func(), bool) {
	s := g.acquire(id)
	select {
	case s.ch <- struct{}{}:
		return g.unlocker(id, s), true
	default:
		g.release(id, s)
		return nil, false
	}
}

func (g *Guard) unlocker(id string, s *slot) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			g.release(id, s)
		})
	}
}
