package storage

import "time"

// ArchiveEntry is a snapshot of one wrangled (archived and closed) tab,
// kept so the user can recover it later. Entries are ordered newest-first
// and the list is capped at the configured maximum.
type ArchiveEntry struct {
	ID       string
	TabID    int
	URL      string
	Title    string
	Pinned   bool
	WindowID int
	ClosedAt time.Time
}

// Counter names persisted in the counters table.
const (
	// CounterWrangled is the monotonically increasing total of tabs ever
	// wrangled by this installation.
	CounterWrangled = "total_wrangled"
)

// Schedule names persisted in the schedule table.
const (
	// ScheduleReap is the durable next-wake time of the eviction scheduler.
	ScheduleReap = "reap"
)
