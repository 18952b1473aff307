package provision

import (
	"context"
	"sync"
)

// Barrier joins a set of named tasks that is only known at runtime. It is
// complete once every name it was created with has signaled, in any order.
type Barrier struct {
	mu      sync.Mutex
	flags   map[string]bool
	pending int
	err     error
	done    chan struct{}
}

func NewBarrier(names []string) *Barrier {
	b := &Barrier{
		flags: make(map[string]bool, len(names)),
		done:  make(chan struct{}),
	}
	for _, name := range names {
		if _, ok := b.flags[name]; !ok {
			b.flags[name] = false
			b.pending++
		}
	}
	if b.pending == 0 {
		close(b.done)
	}
	return b
}

// Signal marks name as finished. The first non-nil error is kept. It
// returns false for names the barrier does not know or that already
// signaled.
func (b *Barrier) Signal(name string, err error) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	done, ok := b.flags[name]
	if !ok || done {
		return false
	}
	b.flags[name] = true
	if err != nil && b.err == nil {
		b.err = err
	}
	b.pending--
	if b.pending == 0 {
		close(b.done)
	}
	return true
}

func (b *Barrier) Size() int {
	return len(b.flags)
}

func (b *Barrier) Complete() bool {
	select {
	case <-b.done:
		return true
	default:
		return false
	}
}

// Wait blocks until every task signaled and returns the first error any of
// them reported.
func (b *Barrier) Wait(ctx context.Context) error {
	select {
	case <-b.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}
