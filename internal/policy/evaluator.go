package policy

import (
	"sort"
	"time"

	"github.com/tabreaper/tabreaper/internal/browser"
	"github.com/tabreaper/tabreaper/internal/config"
)

// Input is one cycle's view of the world: the live tabs grouped by window,
// a copy of the activity cache's id-keyed map, and the current settings.
type Input struct {
	Windows  []browser.Window
	Times    map[int]time.Time
	Settings config.ReaperConfig
}

// Output is the evaluator's verdict for the cycle.
type Output struct {
	// Candidates are the tabs to wrangle, oldest first within each group.
	Candidates []browser.Tab

	// Refresh holds timestamps the caller must write back to the cache
	// silently: exemption refreshes (active/audible), locked tabs that
	// would otherwise have been reaped, and floor-protected focused
	// groups.
	Refresh map[int]time.Time
}

// Evaluator computes which tabs are eligible for closure this cycle. It is
// pure — no I/O, no cache mutation — so the whole policy is testable with
// literal inputs.
type Evaluator struct{}

// New returns a ready-to-use Evaluator.
func New() *Evaluator {
	return &Evaluator{}
}

// Evaluate applies the eviction policy to one snapshot.
//
// A tab becomes a candidate when its cached timestamp is older than
// now-StayOpen, it passes the exclusion filter (not pinned, whitelisted,
// locked, grouped-when-filtered, audible-when-filtered), and removing it
// would not take its group below the MinTabs floor. When a whole group is
// floor-protected and holds the user's attention, every member's timer is
// reset so tabs don't expire merely because the group briefly dipped to
// the floor.
//
// Exemption refreshes (active and audible tabs) are computed against the
// incoming timestamps: a refresh takes the tab out of the cut set on the
// next cycle, not retroactively on this one.
//
// now is passed explicitly so callers (and tests) control the clock
// without sleeping. Use time.Now() in production.
func (e *Evaluator) Evaluate(in Input, now time.Time) Output {
	out := Output{Refresh: make(map[int]time.Time)}
	set := in.Settings

	// Cut set from the timestamps as they were at cycle start. A zero
	// window disables cutting entirely.
	toCut := make(map[int]struct{})
	if set.StayOpen > 0 {
		cutoff := now.Add(-set.StayOpen)
		for id, t := range in.Times {
			if t.Before(cutoff) {
				toCut[id] = struct{}{}
			}
		}
	}

	// Exemption refresh: the active tab always, audible tabs when the
	// audio filter is on. Takes effect next cycle.
	for _, w := range in.Windows {
		for _, tab := range w.Tabs {
			if tab.ID == 0 {
				continue
			}
			if tab.Active || (set.FilterAudio && tab.Audible) {
				out.Refresh[tab.ID] = now
			}
		}
	}

	for _, group := range groups(in.Windows, set.MinTabsStrategy) {
		e.evaluateGroup(group, toCut, in.Times, set, now, &out)
	}

	return out
}

// group is one floor-evaluation unit of tabs.
type group struct {
	tabs []browser.Tab
	// focused marks the group holding the user's active tab; a
	// floor-protected focused group gets its timers reset.
	focused bool
}

// groups partitions the live tabs per the configured strategy.
func groups(windows []browser.Window, strategy string) []group {
	if strategy == config.StrategyAllWindows {
		g := group{}
		for _, w := range windows {
			g.tabs = append(g.tabs, w.Tabs...)
			if windowFocused(w) {
				g.focused = true
			}
		}
		return []group{g}
	}

	out := make([]group, 0, len(windows))
	for _, w := range windows {
		out = append(out, group{tabs: w.Tabs, focused: windowFocused(w)})
	}
	return out
}

func windowFocused(w browser.Window) bool {
	if w.Focused {
		return true
	}
	for _, tab := range w.Tabs {
		if tab.Active {
			return true
		}
	}
	return false
}

func (e *Evaluator) evaluateGroup(g group, toCut map[int]struct{}, times map[int]time.Time, set config.ReaperConfig, now time.Time, out *Output) {
	var candidates []browser.Tab
	for _, tab := range g.tabs {
		if tab.ID == 0 {
			continue
		}
		if _, cut := toCut[tab.ID]; !cut {
			continue
		}
		if set.Locked(tab.ID) {
			// Never reaped, but the timer is refreshed so the tab is
			// not re-examined every cycle while it stays locked.
			out.Refresh[tab.ID] = now
			continue
		}
		if !closeable(tab, set) {
			continue
		}
		candidates = append(candidates, tab)
	}

	// Floor enforcement.
	budget := len(g.tabs) - set.MinTabs
	if budget <= 0 {
		if g.focused {
			// The user's context dipped to the floor; reset every timer
			// so nothing expires out from under them later.
			for _, tab := range g.tabs {
				if tab.ID != 0 {
					out.Refresh[tab.ID] = now
				}
			}
		}
		return
	}

	// Oldest first; ties keep enumeration order.
	sort.SliceStable(candidates, func(i, j int) bool {
		return times[candidates[i].ID].Before(times[candidates[j].ID])
	})
	if len(candidates) > budget {
		candidates = candidates[:budget]
	}

	out.Candidates = append(out.Candidates, candidates...)
}

// closeable is the should-be-closed predicate: pinned, whitelisted,
// grouped (when filtered) and audible (when filtered) tabs are exempt.
func closeable(tab browser.Tab, set config.ReaperConfig) bool {
	switch {
	case tab.Pinned:
		return false
	case set.Whitelisted(tab.URL):
		return false
	case set.FilterGrouped && tab.GroupID != 0:
		return false
	case set.FilterAudio && tab.Audible:
		return false
	}
	return true
}

// Rebuild recomputes the full id and url maps from a live snapshot:
// existing timestamps are carried forward (refreshes already applied by
// the caller), missing ones default to now, and URL collisions between
// duplicate tabs keep the oldest timestamp so the record closer to expiry
// wins. The returned maps contain only live keys.
func (e *Evaluator) Rebuild(tabs []browser.Tab, times map[int]time.Time, now time.Time) (map[int]time.Time, map[string]time.Time) {
	tabTimes := make(map[int]time.Time, len(tabs))
	urlTimes := make(map[string]time.Time, len(tabs))

	for _, tab := range tabs {
		if tab.ID == 0 {
			continue
		}
		t, ok := times[tab.ID]
		if !ok {
			t = now
		}
		tabTimes[tab.ID] = t

		if tab.URL == "" {
			continue
		}
		if prev, ok := urlTimes[tab.URL]; !ok || t.Before(prev) {
			urlTimes[tab.URL] = t
		}
	}

	return tabTimes, urlTimes
}
