// Package policy decides which tabs are too old to live.
//
// Evaluator.Evaluate takes a snapshot (windows, activity timestamps,
// settings) and returns the wrangle candidates plus the timestamp
// refreshes the cycle must write back: the active tab, audible tabs when
// filtered, locked tabs that would otherwise have been reaped, and whole
// focused groups protected by the MinTabs floor.
//
// Evaluator.Rebuild recomputes both activity maps from a live snapshot at
// the end of a cycle, defaulting unseen tabs to now and keeping the oldest
// timestamp when duplicate tabs share a URL.
package policy
