package activity

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Store is the durable mirror the cache syncs to. Satisfied by
// *storage.Store; tests inject a recording fake.
type Store interface {
	SaveActivity(ctx context.Context, tabTimes map[int]time.Time, urlTimes map[string]time.Time) error
}

// Cache is the in-memory last-activity record: one map keyed by tab id and
// one keyed by URL. The id map mirrors the live tab set; the URL map is a
// survival index that may carry entries for tabs that are no longer open,
// so a restarted browser's tabs can resume their countdowns.
//
// While the process is alive the cache is the source of truth; durable
// storage is a mirror refreshed at explicit sync points. Mutations are
// split into cheap in-memory writes (SetSilent) plus one ForceSync per
// evaluation cycle, because writing storage per touched tab would cost an
// I/O round trip for every live tab on every tick.
//
// All exported methods are safe for concurrent use.
type Cache struct {
	store Store

	mu          sync.Mutex
	tabTimes    map[int]time.Time
	urlTimes    map[string]time.Time
	initialized bool
}

// New returns an uninitialized Cache. Init must run (startup migration)
// before reads return data.
func New(store Store) *Cache {
	return &Cache{
		store:    store,
		tabTimes: make(map[int]time.Time),
		urlTimes: make(map[string]time.Time),
	}
}

// Init seeds the in-memory state from a durable snapshot and marks the
// cache ready. The maps are copied.
func (c *Cache) Init(tabTimes map[int]time.Time, urlTimes map[string]time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tabTimes = make(map[int]time.Time, len(tabTimes))
	for id, t := range tabTimes {
		c.tabTimes[id] = t
	}
	c.urlTimes = make(map[string]time.Time, len(urlTimes))
	for u, t := range urlTimes {
		c.urlTimes[u] = t
	}
	c.initialized = true
}

// Initialized reports whether Init has run.
func (c *Cache) Initialized() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initialized
}

// Times returns a copy of the id-keyed map. Reading before Init is a
// defect: it is logged and an empty map is returned rather than crashing.
func (c *Cache) Times() map[int]time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.initialized {
		slog.Error("activity: Times read before Init")
		return map[int]time.Time{}
	}
	out := make(map[int]time.Time, len(c.tabTimes))
	for id, t := range c.tabTimes {
		out[id] = t
	}
	return out
}

// URLTimes returns a copy of the url-keyed map, with the same
// init-before-read contract as Times.
func (c *Cache) URLTimes() map[string]time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.initialized {
		slog.Error("activity: URLTimes read before Init")
		return map[string]time.Time{}
	}
	out := make(map[string]time.Time, len(c.urlTimes))
	for u, t := range c.urlTimes {
		out[u] = t
	}
	return out
}

// SetSilent records a tab's last-activity time in memory only.
func (c *Cache) SetSilent(id int, t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tabTimes[id] = t
}

// SetURLSilent records a URL's last-activity time in memory only.
func (c *Cache) SetURLSilent(url string, t time.Time) {
	if url == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.urlTimes[url] = t
}

// Remove drops a single tab id, used when the browser reports the tab
// closed. Its URL entry is intentionally kept for the survival index.
func (c *Cache) Remove(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tabTimes, id)
}

// PruneToAlive removes id entries whose tab is not in the live set.
func (c *Cache) PruneToAlive(alive []int) {
	set := make(map[int]struct{}, len(alive))
	for _, id := range alive {
		set[id] = struct{}{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for id := range c.tabTimes {
		if _, ok := set[id]; !ok {
			delete(c.tabTimes, id)
		}
	}
}

// PruneURLsToAlive removes url entries not in the live set.
func (c *Cache) PruneURLsToAlive(alive []string) {
	set := make(map[string]struct{}, len(alive))
	for _, u := range alive {
		set[u] = struct{}{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for u := range c.urlTimes {
		if _, ok := set[u]; !ok {
			delete(c.urlTimes, u)
		}
	}
}

// ReplaceSilent swaps the id-keyed map wholesale, in memory only. Used by
// the evaluation cycle when it rebuilds the record from a live snapshot.
func (c *Cache) ReplaceSilent(tabTimes map[int]time.Time) {
	cp := make(map[int]time.Time, len(tabTimes))
	for id, t := range tabTimes {
		cp[id] = t
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tabTimes = cp
}

// ReplaceURLsSilent swaps the url-keyed map wholesale, in memory only.
func (c *Cache) ReplaceURLsSilent(urlTimes map[string]time.Time) {
	cp := make(map[string]time.Time, len(urlTimes))
	for u, t := range urlTimes {
		cp[u] = t
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.urlTimes = cp
}

// ForceSync writes both maps to durable storage unconditionally, in a
// single transaction. Idempotent; safe from a shutdown hook.
func (c *Cache) ForceSync(ctx context.Context) error {
	c.mu.Lock()
	tabTimes := make(map[int]time.Time, len(c.tabTimes))
	for id, t := range c.tabTimes {
		tabTimes[id] = t
	}
	urlTimes := make(map[string]time.Time, len(c.urlTimes))
	for u, t := range c.urlTimes {
		urlTimes[u] = t
	}
	c.mu.Unlock()

	return c.store.SaveActivity(ctx, tabTimes, urlTimes)
}
