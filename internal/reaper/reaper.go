package reaper

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/tabreaper/tabreaper/internal/activity"
	"github.com/tabreaper/tabreaper/internal/browser"
	"github.com/tabreaper/tabreaper/internal/config"
	"github.com/tabreaper/tabreaper/internal/keylock"
	"github.com/tabreaper/tabreaper/internal/metrics"
	"github.com/tabreaper/tabreaper/internal/policy"
	"github.com/tabreaper/tabreaper/internal/wrangler"
)

// lockActivity names the critical section guarding the shared activity
// maps. Event handlers, the startup migration and the evaluation cycle all
// acquire it, so their read-modify-write sequences never interleave.
const lockActivity = "activity"

// Store is the slice of the storage layer the reaper itself needs.
type Store interface {
	LoadActivity(ctx context.Context) (map[int]time.Time, map[string]time.Time, error)
	NextWake(ctx context.Context, name string) (time.Time, error)
	SetNextWake(ctx context.Context, name string, t time.Time) error
}

// Reaper owns the reclamation lifecycle: the startup identity migration,
// the periodic evaluation cycle, the durable-alarm scheduler, and the
// browser event intake.
type Reaper struct {
	lock     *keylock.Keyed
	cache    *activity.Cache
	client   browser.Client
	store    Store
	eval     *policy.Evaluator
	wrangler *wrangler.Wrangler
	metrics  *metrics.Metrics
	settings func() config.ReaperConfig
	now      func() time.Time // injectable for deterministic tests

	// started flips once the startup migration has written the reconciled
	// maps. Created/activated events arriving earlier are dropped so a
	// restored tab's carried-over countdown is not clobbered.
	started atomic.Bool
}

// New wires a Reaper. settings is read at every cycle so hot-reloaded
// configuration takes effect without restart.
func New(lock *keylock.Keyed, cache *activity.Cache, client browser.Client, store Store,
	wr *wrangler.Wrangler, m *metrics.Metrics, settings func() config.ReaperConfig) *Reaper {
	return &Reaper{
		lock:     lock,
		cache:    cache,
		client:   client,
		store:    store,
		eval:     policy.New(),
		wrangler: wr,
		metrics:  m,
		settings: settings,
		now:      time.Now,
	}
}

// Startup runs the restart identity-migration protocol under the activity
// lock: tab ids are reassigned across restarts, so stale id-keyed
// timestamps are reconciled against the url-keyed survival index. A live
// tab keeps its id timestamp if one exists (same-session reuse), else
// adopts its URL's timestamp (restart carried the countdown forward), else
// starts fresh at now.
//
// Ordinary new-tab events are suppressed until Startup completes.
func (r *Reaper) Startup(ctx context.Context) error {
	return r.lock.Do(ctx, func() error {
		tabTimes, urlTimes, err := r.store.LoadActivity(ctx)
		if err != nil {
			return fmt.Errorf("startup: load activity: %w", err)
		}
		tabs, err := r.client.Tabs(ctx)
		if err != nil {
			return fmt.Errorf("startup: enumerate tabs: %w", err)
		}

		now := r.now()
		var kept, adopted, fresh int
		reconciled := make(map[int]time.Time, len(tabs))
		for _, tab := range tabs {
			if tab.ID == 0 {
				continue
			}
			if t, ok := tabTimes[tab.ID]; ok {
				reconciled[tab.ID] = t
				kept++
				continue
			}
			if t, ok := urlTimes[tab.URL]; ok && tab.URL != "" {
				reconciled[tab.ID] = t
				adopted++
				continue
			}
			reconciled[tab.ID] = now
			fresh++
		}

		// Rebuild the survival index from the reconciled state so only
		// live URLs remain, oldest timestamp winning on duplicates.
		idMap, urlMap := r.eval.Rebuild(tabs, reconciled, now)
		r.cache.Init(idMap, urlMap)
		if err := r.cache.ForceSync(ctx); err != nil {
			return fmt.Errorf("startup: persist reconciled maps: %w", err)
		}

		r.started.Store(true)
		slog.Info("reaper: startup migration complete",
			"tabs", len(tabs), "kept", kept, "adopted_by_url", adopted, "fresh", fresh)
		return nil
	}, lockActivity)
}

// Started reports whether the startup migration has completed.
func (r *Reaper) Started() bool {
	return r.started.Load()
}

// Cycle runs one evaluation under the activity lock. Transient failures
// abort the cycle; the cache stays intact in memory and the next scheduled
// tick retries naturally.
func (r *Reaper) Cycle(ctx context.Context) error {
	start := r.now()
	r.metrics.Cycles.Inc()

	err := r.lock.Do(ctx, func() error {
		return r.cycle(ctx)
	}, lockActivity)

	r.metrics.CycleDuration.Observe(r.now().Sub(start).Seconds())
	if err != nil {
		r.metrics.CycleErrors.Inc()
	}
	return err
}

func (r *Reaper) cycle(ctx context.Context) error {
	set := r.settings()

	windows, err := r.client.Windows(ctx)
	if err != nil {
		return fmt.Errorf("cycle: enumerate windows: %w", err)
	}
	var tabs []browser.Tab
	for _, w := range windows {
		tabs = append(tabs, w.Tabs...)
	}
	r.metrics.OpenTabs.Set(float64(len(tabs)))

	times := r.cache.Times()
	now := r.now()

	var candidates []browser.Tab
	if set.Paused {
		slog.Debug("reaper: paused — skipping evaluation")
	} else {
		out := r.eval.Evaluate(policy.Input{
			Windows:  windows,
			Times:    times,
			Settings: set,
		}, now)
		for id, t := range out.Refresh {
			times[id] = t
			r.cache.SetSilent(id, t)
		}
		candidates = out.Candidates
	}

	// Recompute both maps from the live snapshot, prune to live keys and
	// persist once.
	idMap, urlMap := r.eval.Rebuild(tabs, times, now)
	r.cache.ReplaceSilent(idMap)
	r.cache.ReplaceURLsSilent(urlMap)
	if err := r.cache.ForceSync(ctx); err != nil {
		return fmt.Errorf("cycle: persist activity: %w", err)
	}

	if len(candidates) == 0 {
		return nil
	}

	total, err := r.wrangler.Wrangle(ctx, set, candidates)
	if err != nil {
		return fmt.Errorf("cycle: wrangle: %w", err)
	}
	r.metrics.Wrangled.Add(float64(len(candidates)))
	slog.Info("reaper: cycle wrangled tabs",
		"count", len(candidates), "lifetime_total", total)
	return nil
}

// Shutdown flushes the in-memory cache to durable storage, best effort.
// Called on the way out so an ungraceful platform kill right after loses
// nothing.
func (r *Reaper) Shutdown(ctx context.Context) {
	if !r.cache.Initialized() {
		return
	}
	if err := r.cache.ForceSync(ctx); err != nil {
		slog.Error("reaper: shutdown flush failed", "err", err)
	}
}
