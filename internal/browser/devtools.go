package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/tabreaper/tabreaper/internal/config"
)

const defaultHTTPTimeout = 10 * time.Second

// devToolsTarget is one entry of the DevTools /json/list response.
type devToolsTarget struct {
	ID                   string `json:"id"`
	Type                 string `json:"type"`
	Title                string `json:"title"`
	URL                  string `json:"url"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// DevTools is a Client backed by a browser's DevTools HTTP endpoint.
//
// DevTools target ids are opaque strings; DevTools assigns each one a
// session-local numeric id in discovery order. The assignment lives only
// in memory, so ids are reassigned whenever this process restarts — the
// restart migration reconciles the old ids back onto URLs.
//
// The wire protocol does not expose window topology, pin state or audio
// state, so those fields are zero-valued here; policy treats absent
// attributes as non-exempt. Browsers that surface richer metadata can
// provide their own Client.
type DevTools struct {
	endpoint string
	client   *http.Client

	mu      sync.Mutex
	ids     map[string]int // target id → session-local numeric id
	targets map[int]string // reverse mapping for Close
	next    int
}

// NewDevTools returns a DevTools client for the configured endpoint.
func NewDevTools(cfg config.BrowserConfig) *DevTools {
	return &DevTools{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		client:   &http.Client{Timeout: defaultHTTPTimeout},
		ids:      make(map[string]int),
		targets:  make(map[int]string),
		next:     1,
	}
}

// Tabs returns every live page target. DevTools orders the target list
// most-recently-focused first, so the first page target is marked Active.
func (d *DevTools) Tabs(ctx context.Context) ([]Tab, error) {
	targets, err := d.list(ctx)
	if err != nil {
		return nil, err
	}

	tabs := make([]Tab, 0, len(targets))
	for _, t := range targets {
		if t.Type != "page" {
			continue
		}
		tabs = append(tabs, Tab{
			ID:       d.numericID(t.ID),
			TargetID: t.ID,
			URL:      t.URL,
			Title:    t.Title,
			Active:   len(tabs) == 0,
		})
	}

	d.pruneAssignments(targets)
	return tabs, nil
}

// Windows returns the live tabs as a single window: the DevTools wire
// protocol has no window topology, so the perWindow strategy degrades to
// one group over this client.
func (d *DevTools) Windows(ctx context.Context) ([]Window, error) {
	tabs, err := d.Tabs(ctx)
	if err != nil {
		return nil, err
	}
	return []Window{{ID: 1, Focused: true, Tabs: tabs}}, nil
}

// Close removes the given tabs via /json/close. Ids with no known target
// (already closed, or assigned by a previous run) are skipped.
func (d *DevTools) Close(ctx context.Context, ids ...int) error {
	for _, id := range ids {
		targetID, ok := d.targetOf(id)
		if !ok {
			continue
		}
		if err := d.get(ctx, "/json/close/"+targetID, nil); err != nil {
			return fmt.Errorf("close tab %d: %w", id, err)
		}
	}
	return nil
}

// list fetches and decodes /json/list.
func (d *DevTools) list(ctx context.Context) ([]devToolsTarget, error) {
	var targets []devToolsTarget
	if err := d.get(ctx, "/json/list", &targets); err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	return targets, nil
}

// get issues a GET against the endpoint and optionally decodes JSON into out.
// DevTools management endpoints respond to GET, including close.
func (d *DevTools) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.endpoint+path, nil)
	if err != nil {
		return err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("devtools %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// numericID returns the session-local id for a target, assigning the next
// one on first sight.
func (d *DevTools) numericID(targetID string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if id, ok := d.ids[targetID]; ok {
		return id
	}
	id := d.next
	d.next++
	d.ids[targetID] = id
	d.targets[id] = targetID
	return id
}

// targetOf resolves a numeric id back to its DevTools target id.
func (d *DevTools) targetOf(id int) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.targets[id]
	return t, ok
}

// pruneAssignments drops id assignments for targets no longer reported,
// so the maps do not grow without bound across long sessions.
func (d *DevTools) pruneAssignments(targets []devToolsTarget) {
	alive := make(map[string]struct{}, len(targets))
	for _, t := range targets {
		alive[t.ID] = struct{}{}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for targetID, id := range d.ids {
		if _, ok := alive[targetID]; !ok {
			delete(d.ids, targetID)
			delete(d.targets, id)
		}
	}
}
