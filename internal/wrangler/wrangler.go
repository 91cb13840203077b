package wrangler

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/tabreaper/tabreaper/internal/browser"
	"github.com/tabreaper/tabreaper/internal/config"
	"github.com/tabreaper/tabreaper/internal/storage"
)

// Store is the slice of the storage layer the wrangler needs.
type Store interface {
	LoadArchive(ctx context.Context) ([]storage.ArchiveEntry, error)
	SaveArchive(ctx context.Context, entries []storage.ArchiveEntry) error
	AddCounter(ctx context.Context, name string, delta int64) (int64, error)
}

// Wrangler archives eviction candidates and closes the underlying tabs.
type Wrangler struct {
	store  Store
	client browser.Client
	now    func() time.Time // injectable for deterministic tests
	newID  func() string
}

// New returns a Wrangler writing to store and closing tabs via client.
func New(store Store, client browser.Client) *Wrangler {
	return &Wrangler{
		store:  store,
		client: client,
		now:    time.Now,
		newID:  func() string { return uuid.NewString() },
	}
}

// Wrangle archives tabs newest-first, bumps the lifetime counter, triggers
// physical closure, and trims the archive to the configured cap.
//
// Closure is fire-and-forget: callers must not assume the tabs are gone
// when Wrangle returns. It returns the new lifetime total.
func (w *Wrangler) Wrangle(ctx context.Context, set config.ReaperConfig, tabs []browser.Tab) (int64, error) {
	if len(tabs) == 0 {
		total, err := w.store.AddCounter(ctx, storage.CounterWrangled, 0)
		return total, err
	}

	archive, err := w.store.LoadArchive(ctx)
	if err != nil {
		return 0, fmt.Errorf("wrangle: %w", err)
	}

	now := w.now()
	for _, tab := range tabs {
		archive = w.dedupe(archive, set.Dedupe, tab)
		entry := storage.ArchiveEntry{
			ID:       w.newID(),
			TabID:    tab.ID,
			URL:      tab.URL,
			Title:    tab.Title,
			Pinned:   tab.Pinned,
			WindowID: tab.WindowID,
			ClosedAt: now,
		}
		archive = append([]storage.ArchiveEntry{entry}, archive...)
	}

	total, err := w.store.AddCounter(ctx, storage.CounterWrangled, int64(len(tabs)))
	if err != nil {
		return 0, fmt.Errorf("wrangle: %w", err)
	}

	// Physical removal is not awaited; the archive entry is already the
	// durable record even if the process dies mid-close.
	ids := make([]int, 0, len(tabs))
	for _, tab := range tabs {
		ids = append(ids, tab.ID)
	}
	closeCtx := context.WithoutCancel(ctx)
	go func() {
		if err := w.client.Close(closeCtx, ids...); err != nil {
			slog.Warn("wrangler: close failed", "tabs", ids, "err", err)
		}
	}()

	if limit := set.MaxArchive; limit > 0 && len(archive) > limit {
		trimmed := archive[limit:]
		archive = archive[:limit]
		for _, e := range trimmed {
			slog.Info("wrangler: trimmed archive entry",
				"url", e.URL, "closed_at", e.ClosedAt)
		}
	}

	if err := w.store.SaveArchive(ctx, archive); err != nil {
		return 0, fmt.Errorf("wrangle: %w", err)
	}

	slog.Info("wrangler: wrangled tabs", "count", len(tabs), "lifetime_total", total)
	return total, nil
}

// dedupe removes archive entries that match tab under the configured
// strategy, so re-wrangling a tab does not pile up duplicates.
func (w *Wrangler) dedupe(archive []storage.ArchiveEntry, strategy string, tab browser.Tab) []storage.ArchiveEntry {
	var match func(storage.ArchiveEntry) bool
	switch strategy {
	case config.DedupeExactURL:
		match = func(e storage.ArchiveEntry) bool { return e.URL == tab.URL }
	case config.DedupeHostnameAndTitle:
		host := hostname(tab.URL)
		match = func(e storage.ArchiveEntry) bool {
			return hostname(e.URL) == host && e.Title == tab.Title
		}
	default: // withDupes
		return archive
	}

	out := archive[:0]
	for _, e := range archive {
		if !match(e) {
			out = append(out, e)
		}
	}
	return out
}

func hostname(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
