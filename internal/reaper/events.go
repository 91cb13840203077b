package reaper

import (
	"context"
	"log/slog"

	"github.com/tabreaper/tabreaper/internal/browser"
)

// HandleEvents consumes browser lifecycle events until ctx is cancelled.
// All timestamp mutations happen under the activity lock so they cannot
// interleave with a running evaluation cycle.
func (r *Reaper) HandleEvents(ctx context.Context, events <-chan browser.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			r.handleEvent(ctx, ev)
		}
	}
}

func (r *Reaper) handleEvent(ctx context.Context, ev browser.Event) {
	if ev.Tab.ID == 0 && ev.Type != browser.EventRemoved {
		return
	}

	switch ev.Type {
	case browser.EventCreated, browser.EventActivated, browser.EventUpdated:
		if !r.started.Load() {
			// The migration has not reconciled the survival index yet; a
			// reset now would clobber a restored tab's countdown.
			slog.Debug("reaper: dropping pre-startup event",
				"type", ev.Type, "tab", ev.Tab.ID)
			return
		}
		err := r.lock.Do(ctx, func() error {
			now := r.now()
			r.cache.SetSilent(ev.Tab.ID, now)
			if ev.Type != browser.EventActivated {
				r.cache.SetURLSilent(ev.Tab.URL, now)
			}
			return nil
		}, lockActivity)
		if err != nil {
			slog.Warn("reaper: event update skipped", "type", ev.Type, "err", err)
		}

	case browser.EventRemoved:
		err := r.lock.Do(ctx, func() error {
			r.cache.Remove(ev.Tab.ID)
			return nil
		}, lockActivity)
		if err != nil {
			slog.Warn("reaper: event update skipped", "type", ev.Type, "err", err)
		}
	}
}
