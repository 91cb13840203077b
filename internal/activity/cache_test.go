package activity

import (
	"context"
	"testing"
	"time"
)

// recordingStore captures SaveActivity calls for assertions.
type recordingStore struct {
	saves    int
	tabTimes map[int]time.Time
	urlTimes map[string]time.Time
	err      error
}

func (r *recordingStore) SaveActivity(_ context.Context, tabTimes map[int]time.Time, urlTimes map[string]time.Time) error {
	if r.err != nil {
		return r.err
	}
	r.saves++
	r.tabTimes = tabTimes
	r.urlTimes = urlTimes
	return nil
}

func TestTimes_BeforeInitReturnsEmpty(t *testing.T) {
	c := New(&recordingStore{})

	if got := c.Times(); len(got) != 0 {
		t.Errorf("Times before Init: got %d entries, want 0", len(got))
	}
	if got := c.URLTimes(); len(got) != 0 {
		t.Errorf("URLTimes before Init: got %d entries, want 0", len(got))
	}
	if c.Initialized() {
		t.Error("Initialized: got true before Init")
	}
}

func TestInit_SeedsAndCopies(t *testing.T) {
	c := New(&recordingStore{})
	base := time.Now()

	seed := map[int]time.Time{1: base}
	c.Init(seed, map[string]time.Time{"https://a": base})
	seed[2] = base // mutation of the caller's map must not leak in

	got := c.Times()
	if len(got) != 1 {
		t.Fatalf("Times: got %d entries, want 1", len(got))
	}
	if !got[1].Equal(base) {
		t.Errorf("Times[1]: got %v, want %v", got[1], base)
	}
}

func TestTimes_ReturnsCopy(t *testing.T) {
	c := New(&recordingStore{})
	base := time.Now()
	c.Init(map[int]time.Time{1: base}, nil)

	got := c.Times()
	got[1] = base.Add(time.Hour)

	if !c.Times()[1].Equal(base) {
		t.Error("mutating the returned map leaked into the cache")
	}
}

func TestSetSilent_NoStorageWrite(t *testing.T) {
	store := &recordingStore{}
	c := New(store)
	c.Init(nil, nil)

	c.SetSilent(1, time.Now())
	c.SetURLSilent("https://a", time.Now())

	if store.saves != 0 {
		t.Errorf("silent writes hit storage %d times, want 0", store.saves)
	}
}

func TestSetURLSilent_IgnoresEmptyURL(t *testing.T) {
	c := New(&recordingStore{})
	c.Init(nil, nil)

	c.SetURLSilent("", time.Now())

	if got := c.URLTimes(); len(got) != 0 {
		t.Errorf("empty URL was recorded: %v", got)
	}
}

func TestRemove_KeepsURLEntry(t *testing.T) {
	c := New(&recordingStore{})
	base := time.Now()
	c.Init(map[int]time.Time{1: base}, map[string]time.Time{"https://a": base})

	c.Remove(1)

	if _, ok := c.Times()[1]; ok {
		t.Error("Remove: id entry still present")
	}
	if _, ok := c.URLTimes()["https://a"]; !ok {
		t.Error("Remove: url survival entry was dropped")
	}
}

func TestPruneToAlive(t *testing.T) {
	c := New(&recordingStore{})
	base := time.Now()
	c.Init(map[int]time.Time{1: base, 2: base, 3: base}, nil)

	c.PruneToAlive([]int{2})

	got := c.Times()
	if len(got) != 1 {
		t.Fatalf("Times after prune: got %d entries, want 1", len(got))
	}
	if _, ok := got[2]; !ok {
		t.Error("live id 2 was pruned")
	}
}

func TestPruneURLsToAlive(t *testing.T) {
	c := New(&recordingStore{})
	base := time.Now()
	c.Init(nil, map[string]time.Time{"https://a": base, "https://b": base})

	c.PruneURLsToAlive([]string{"https://b"})

	got := c.URLTimes()
	if len(got) != 1 {
		t.Fatalf("URLTimes after prune: got %d entries, want 1", len(got))
	}
	if _, ok := got["https://b"]; !ok {
		t.Error("live url was pruned")
	}
}

func TestForceSync_WritesBothMaps(t *testing.T) {
	store := &recordingStore{}
	c := New(store)
	base := time.Now()
	c.Init(map[int]time.Time{7: base}, map[string]time.Time{"https://a": base})

	if err := c.ForceSync(context.Background()); err != nil {
		t.Fatalf("ForceSync: %v", err)
	}

	if store.saves != 1 {
		t.Fatalf("saves: got %d, want 1", store.saves)
	}
	if !store.tabTimes[7].Equal(base) {
		t.Errorf("persisted tab time: got %v, want %v", store.tabTimes[7], base)
	}
	if !store.urlTimes["https://a"].Equal(base) {
		t.Errorf("persisted url time: got %v, want %v", store.urlTimes["https://a"], base)
	}
}

func TestForceSync_Idempotent(t *testing.T) {
	store := &recordingStore{}
	c := New(store)
	c.Init(map[int]time.Time{1: time.Now()}, nil)

	if err := c.ForceSync(context.Background()); err != nil {
		t.Fatalf("first ForceSync: %v", err)
	}
	if err := c.ForceSync(context.Background()); err != nil {
		t.Fatalf("second ForceSync: %v", err)
	}
	if store.saves != 2 {
		t.Errorf("saves: got %d, want 2", store.saves)
	}
	if len(store.tabTimes) != 1 {
		t.Errorf("second sync payload: got %d entries, want 1", len(store.tabTimes))
	}
}

func TestReplaceSilent(t *testing.T) {
	c := New(&recordingStore{})
	base := time.Now()
	c.Init(map[int]time.Time{1: base}, map[string]time.Time{"https://a": base})

	c.ReplaceSilent(map[int]time.Time{9: base})
	c.ReplaceURLsSilent(map[string]time.Time{"https://z": base})

	if _, ok := c.Times()[1]; ok {
		t.Error("ReplaceSilent kept the old map")
	}
	if _, ok := c.Times()[9]; !ok {
		t.Error("ReplaceSilent dropped the new entry")
	}
	if _, ok := c.URLTimes()["https://z"]; !ok {
		t.Error("ReplaceURLsSilent dropped the new entry")
	}
}
