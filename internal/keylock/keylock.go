package keylock

import (
	"context"
	"sort"
	"sync"
)

// Keyed serializes critical sections over named shared resources. At most
// one section holding a given name runs at a time; sections over disjoint
// names run concurrently.
//
// Multi-name acquisition is all-or-nothing: names are locked in a single
// global (sorted) order and released in reverse, so two callers can never
// each hold a disjoint subset of the other's names and deadlock.
type Keyed struct {
	mu   sync.Mutex
	sems map[string]chan struct{}
}

// New returns a ready-to-use Keyed lock.
func New() *Keyed {
	return &Keyed{sems: make(map[string]chan struct{})}
}

// Do runs fn while holding every name in names. It blocks until all names
// are acquired or ctx is cancelled; on cancellation any names acquired so
// far are released and ctx.Err() is returned.
//
// If fn returns an error the names are still released and the error
// propagates unmodified. fn is never retried.
func (k *Keyed) Do(ctx context.Context, fn func() error, names ...string) error {
	ordered := make([]string, len(names))
	copy(ordered, names)
	sort.Strings(ordered)

	held := make([]chan struct{}, 0, len(ordered))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			<-held[i]
		}
	}

	for i, name := range ordered {
		// Skip duplicate names so Do(ctx, fn, "a", "a") cannot self-deadlock.
		if i > 0 && name == ordered[i-1] {
			continue
		}
		sem := k.sem(name)
		select {
		case sem <- struct{}{}:
			held = append(held, sem)
		case <-ctx.Done():
			release()
			return ctx.Err()
		}
	}

	defer release()
	return fn()
}

// sem returns the capacity-1 semaphore channel for name, creating it on
// first use. A buffered send acquires; a receive releases. Blocked senders
// are woken in arrival order.
func (k *Keyed) sem(name string) chan struct{} {
	k.mu.Lock()
	defer k.mu.Unlock()
	sem, ok := k.sems[name]
	if !ok {
		sem = make(chan struct{}, 1)
		k.sems[name] = sem
	}
	return sem
}
