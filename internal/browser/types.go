package browser

import (
	"context"
	"time"
)

// Tab is the normalized view of one browser tab.
//
// ID is a session-local numeric id: stable while this process runs,
// reassigned after a restart. URL is the stable attribute the restart
// migration keys on. A Tab with ID 0 has no usable identity and is never
// considered for reaping.
type Tab struct {
	ID           int
	TargetID     string
	URL          string
	Title        string
	Pinned       bool
	Audible      bool
	Active       bool
	GroupID      int
	WindowID     int
	LastAccessed time.Time
}

// Window groups the tabs that share one browser window.
type Window struct {
	ID      int
	Focused bool
	Tabs    []Tab
}

// Client enumerates and removes live tabs. Implementations are thin I/O
// wrappers over the hosting browser; all policy lives elsewhere.
type Client interface {
	// Tabs returns a snapshot of every live tab. At most one tab has
	// Active set.
	Tabs(ctx context.Context) ([]Tab, error)

	// Windows returns the live tabs grouped by window.
	Windows(ctx context.Context) ([]Window, error)

	// Close removes the given tabs by id. Unknown ids are skipped.
	Close(ctx context.Context, ids ...int) error
}

// EventType classifies a tab lifecycle event.
type EventType string

const (
	// EventCreated fires when a new tab appears.
	EventCreated EventType = "created"
	// EventActivated fires when an existing tab sees user attention.
	EventActivated EventType = "activated"
	// EventUpdated fires when a tab navigates to a new URL.
	EventUpdated EventType = "updated"
	// EventRemoved fires when a tab is closed.
	EventRemoved EventType = "removed"
)

// Event is one tab lifecycle notification from the browser.
type Event struct {
	Type EventType
	Tab  Tab
}
