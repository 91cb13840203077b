package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeTimeout is the deadline for a single write to the browser socket.
	writeTimeout = 10 * time.Second

	backoffInitial    = 1 * time.Second
	backoffMax        = 60 * time.Second
	backoffMultiplier = 2.0
)

// version is the DevTools /json/version response.
type version struct {
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// cdpMessage is the envelope of one DevTools protocol event.
type cdpMessage struct {
	Method string `json:"method"`
	Params struct {
		TargetID   string `json:"targetId"`
		TargetInfo struct {
			TargetID string `json:"targetId"`
			Type     string `json:"type"`
			Title    string `json:"title"`
			URL      string `json:"url"`
		} `json:"targetInfo"`
	} `json:"params"`
}

// Subscriber streams tab lifecycle events from the browser's DevTools
// websocket. It reconnects with exponential backoff when the connection is
// lost; events that occurred while disconnected are not replayed — the next
// evaluation cycle's full snapshot covers the gap.
type Subscriber struct {
	dt *DevTools

	mu      sync.Mutex
	lastURL map[string]string // target id → last seen URL, to split updates from attention
}

// NewSubscriber returns a Subscriber bound to the same DevTools client the
// reaper enumerates through, so numeric tab ids agree between the event
// stream and snapshots.
func NewSubscriber(dt *DevTools) *Subscriber {
	return &Subscriber{dt: dt, lastURL: make(map[string]string)}
}

// Run connects to the browser and forwards events to out until ctx is
// cancelled. Connection failures are logged and retried with backoff.
func (s *Subscriber) Run(ctx context.Context, out chan<- Event) error {
	bo := newBackoff()

	for {
		if ctx.Err() != nil {
			return nil
		}

		err := s.stream(ctx, out)
		if ctx.Err() != nil {
			return nil
		}

		wait := bo.next()
		slog.Warn("browser: event stream lost, will reconnect",
			"endpoint", s.dt.endpoint, "err", err, "retry_in", wait)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

// stream opens one websocket session and pumps events until it fails.
func (s *Subscriber) stream(ctx context.Context, out chan<- Event) error {
	var v version
	if err := s.dt.get(ctx, "/json/version", &v); err != nil {
		return fmt.Errorf("resolve debugger url: %w", err)
	}
	if v.WebSocketDebuggerURL == "" {
		return fmt.Errorf("browser exposes no webSocketDebuggerUrl")
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, v.WebSocketDebuggerURL, nil)
	if err != nil {
		return fmt.Errorf("dial debugger: %w", err)
	}
	defer conn.Close()

	// Unblock the read loop when ctx is cancelled.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	subscribe := `{"id":1,"method":"Target.setDiscoverTargets","params":{"discover":true}}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(subscribe)); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	slog.Info("browser: event stream connected", "endpoint", s.dt.endpoint)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var msg cdpMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Warn("browser: skipping malformed event", "err", err)
			continue
		}

		ev, ok := s.translate(msg)
		if !ok {
			continue
		}
		select {
		case out <- ev:
		case <-ctx.Done():
			return nil
		}
	}
}

// translate maps a DevTools message onto a tab Event. Non-page targets and
// unknown methods are dropped. An info change that did not navigate is
// treated as user attention (EventActivated); a URL change is EventUpdated.
func (s *Subscriber) translate(msg cdpMessage) (Event, bool) {
	info := msg.Params.TargetInfo

	switch msg.Method {
	case "Target.targetCreated":
		if info.Type != "page" {
			return Event{}, false
		}
		s.setLastURL(info.TargetID, info.URL)
		return Event{
			Type: EventCreated,
			Tab:  Tab{ID: s.dt.numericID(info.TargetID), TargetID: info.TargetID, URL: info.URL, Title: info.Title},
		}, true

	case "Target.targetInfoChanged":
		if info.Type != "page" {
			return Event{}, false
		}
		prev, known := s.swapLastURL(info.TargetID, info.URL)
		typ := EventActivated
		if known && prev != info.URL {
			typ = EventUpdated
		}
		return Event{
			Type: typ,
			Tab:  Tab{ID: s.dt.numericID(info.TargetID), TargetID: info.TargetID, URL: info.URL, Title: info.Title},
		}, true

	case "Target.targetDestroyed":
		targetID := msg.Params.TargetID
		if _, known := s.swapLastURL(targetID, ""); !known {
			return Event{}, false
		}
		s.forget(targetID)
		return Event{
			Type: EventRemoved,
			Tab:  Tab{ID: s.dt.numericID(targetID), TargetID: targetID},
		}, true
	}

	return Event{}, false
}

func (s *Subscriber) setLastURL(targetID, url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastURL[targetID] = url
}

// swapLastURL records url for targetID and returns the previous value and
// whether the target was known.
func (s *Subscriber) swapLastURL(targetID, url string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, known := s.lastURL[targetID]
	if known {
		s.lastURL[targetID] = url
	}
	return prev, known
}

func (s *Subscriber) forget(targetID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.lastURL, targetID)
}

// backoff implements truncated exponential backoff with jitter.
type backoff struct {
	current time.Duration
}

func newBackoff() *backoff {
	return &backoff{current: backoffInitial}
}

// next returns the current backoff duration and advances the internal state.
func (b *backoff) next() time.Duration {
	d := b.current
	// Apply ±25 % jitter.
	jitter := time.Duration(float64(b.current) * 0.25 * (rand.Float64()*2 - 1)) //nolint:gosec // not crypto
	d += jitter
	if d < 0 {
		d = 0
	}

	b.current = time.Duration(float64(b.current) * backoffMultiplier)
	if b.current > backoffMax {
		b.current = backoffMax
	}
	return d
}
