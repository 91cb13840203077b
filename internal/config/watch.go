package config

import (
	"context"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceWindow coalesces the event bursts editors emit on save (write,
// chmod, rename) into a single reload.
const debounceWindow = 250 * time.Millisecond

// Watch monitors the settings file and calls onChange with a freshly
// loaded Config after each change. The settings file is a read-only
// input to the daemon; nothing is ever written back to it.
//
// A reload that fails to parse or validate is logged and discarded, so
// the settings active before the edit stay in force. Watch runs until
// ctx is cancelled.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return err
	}

	slog.Info("config: watching for changes", "path", path)

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			pending = time.After(debounceWindow)

		case <-pending:
			pending = nil
			reload(path, onChange)
			// Atomic saves replace the inode; re-arm the watch on the
			// new file so the next edit is still seen.
			if err := watcher.Add(path); err != nil {
				slog.Warn("config: re-watch failed", "path", path, "err", err)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("config: watcher error", "err", err)
		}
	}
}

func reload(path string, onChange func(*Config)) {
	cfg, err := Load(path)
	if err != nil {
		slog.Error("config: reload failed, keeping previous settings",
			"path", path, "err", err)
		return
	}
	slog.Info("config: reloaded",
		"stay_open", cfg.Reaper.StayOpen,
		"min_tabs", cfg.Reaper.MinTabs,
		"paused", cfg.Reaper.Paused)
	onChange(cfg)
}
