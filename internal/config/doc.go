// Package config loads and watches the reaper configuration file.
//
// Top-level types:
//   - Config{Reaper, Browser, Storage, Metrics} — full config tree parsed
//     from YAML
//   - ReaperConfig — stay_open window, min_tabs floor and strategy,
//     archive cap, locked ids, whitelist, audio/group filters, pause flag,
//     archive dedupe option
//   - BrowserConfig — DevTools endpoint of the browser to manage
//   - StorageConfig, MetricsConfig — sqlite path and optional /metrics addr
//
// Load(path) reads the YAML file, applies defaults (20m window, floor of 5,
// archive cap 100, perWindow strategy), then validates enums and ranges.
//
// Watch(ctx, path, onChange) uses fsnotify to detect file changes and calls
// onChange with the newly parsed Config. It handles the rename→create
// pattern used by atomic-save editors by re-adding the watch after the file
// is replaced. The reaper picks up the new settings on its next cycle.
package config
