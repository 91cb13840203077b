package keylock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestDo_RunsSection(t *testing.T) {
	k := New()
	ran := false
	err := k.Do(context.Background(), func() error {
		ran = true
		return nil
	}, "activity")
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if !ran {
		t.Fatal("critical section did not run")
	}
}

func TestDo_ErrorPropagatesAndReleases(t *testing.T) {
	k := New()
	boom := errors.New("boom")

	err := k.Do(context.Background(), func() error { return boom }, "activity")
	if !errors.Is(err, boom) {
		t.Fatalf("error: got %v, want boom", err)
	}

	// The name must be free again.
	done := make(chan struct{})
	go func() {
		k.Do(context.Background(), func() error { return nil }, "activity") //nolint:errcheck
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("lock was not released after section error")
	}
}

func TestDo_SameNameNeverOverlaps(t *testing.T) {
	k := New()
	const workers = 16

	var active, maxActive int
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			k.Do(context.Background(), func() error { //nolint:errcheck
				mu.Lock()
				active++
				if active > maxActive {
					maxActive = active
				}
				mu.Unlock()

				time.Sleep(time.Millisecond)

				mu.Lock()
				active--
				mu.Unlock()
				return nil
			}, "tabTimes")
		}()
	}
	wg.Wait()

	if maxActive != 1 {
		t.Errorf("max concurrent holders: got %d, want 1", maxActive)
	}
}

func TestDo_DisjointNamesRunConcurrently(t *testing.T) {
	k := New()

	aHeld := make(chan struct{})
	release := make(chan struct{})
	go func() {
		k.Do(context.Background(), func() error { //nolint:errcheck
			close(aHeld)
			<-release
			return nil
		}, "a")
	}()
	<-aHeld

	// A section over a different name must not wait for "a".
	done := make(chan struct{})
	go func() {
		k.Do(context.Background(), func() error { return nil }, "b") //nolint:errcheck
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("disjoint name blocked behind unrelated holder")
	}
	close(release)
}

func TestDo_MultiNameInverseOrderNoDeadlock(t *testing.T) {
	k := New()
	const rounds = 50

	var wg sync.WaitGroup
	done := make(chan struct{})
	go func() {
		for i := 0; i < rounds; i++ {
			wg.Add(2)
			go func() {
				defer wg.Done()
				k.Do(context.Background(), func() error { return nil }, "tabTimes", "settings") //nolint:errcheck
			}()
			go func() {
				defer wg.Done()
				k.Do(context.Background(), func() error { return nil }, "settings", "tabTimes") //nolint:errcheck
			}()
		}
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("inverse-order multi-name acquisition deadlocked")
	}
}

func TestDo_DuplicateNames(t *testing.T) {
	k := New()
	done := make(chan struct{})
	go func() {
		k.Do(context.Background(), func() error { return nil }, "a", "a") //nolint:errcheck
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("duplicate names self-deadlocked")
	}
}

func TestDo_ContextCancelledWhileWaiting(t *testing.T) {
	k := New()

	// Hold "b" so a waiter asking for both acquires "a" first (sorted
	// order) and then blocks.
	held := make(chan struct{})
	release := make(chan struct{})
	go func() {
		k.Do(context.Background(), func() error { //nolint:errcheck
			close(held)
			<-release
			return nil
		}, "b")
	}()
	<-held

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- k.Do(ctx, func() error { return nil }, "a", "b")
	}()

	// Give the waiter a moment to grab "a" and park on "b", then cancel.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("error: got %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled waiter did not return")
	}

	// "a" must have been released by the aborted waiter.
	done := make(chan struct{})
	go func() {
		k.Do(context.Background(), func() error { return nil }, "a") //nolint:errcheck
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("aborted waiter leaked a held name")
	}
	close(release)
}
