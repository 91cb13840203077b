package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultStayOpen   = 20 * time.Minute
	DefaultMinTabs    = 5
	DefaultMaxArchive = 100
	DefaultEndpoint   = "http://127.0.0.1:9222"
	DefaultDBPath     = "tabreaper.db"
)

// Strategy values for reaper.min_tabs_strategy.
const (
	StrategyPerWindow  = "perWindow"
	StrategyAllWindows = "allWindows"
)

// Dedupe values for reaper.dedupe.
const (
	DedupeNone             = "withDupes"
	DedupeExactURL         = "exactURLMatch"
	DedupeHostnameAndTitle = "hostnameAndTitleMatch"
)

// Config is the top-level daemon configuration.
// Fields map 1:1 to config.example.yaml.
type Config struct {
	Reaper  ReaperConfig  `yaml:"reaper"`
	Browser BrowserConfig `yaml:"browser"`
	Storage StorageConfig `yaml:"storage"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// ReaperConfig holds the eviction policy settings. This core treats the
// settings file as a read-only provider; nothing here is written back.
type ReaperConfig struct {
	// StayOpen is the inactivity window. A tab whose last activity is
	// older than now-StayOpen is eligible for closure. Zero disables
	// cutting entirely (the cache is still maintained).
	StayOpen time.Duration `yaml:"stay_open"`

	// MinTabs is the floor: no group is ever reaped below this count.
	MinTabs int `yaml:"min_tabs"`

	// MinTabsStrategy is perWindow (floor applies to each window
	// independently) or allWindows (one floor across every tab).
	MinTabsStrategy string `yaml:"min_tabs_strategy"`

	// MaxArchive caps the closed-tab archive; oldest entries are trimmed.
	MaxArchive int `yaml:"max_archive"`

	// LockedIDs are tab ids the user explicitly exempted from reaping.
	LockedIDs []int `yaml:"locked_ids"`

	// Whitelist is an ordered list of substrings; a tab whose URL
	// contains any of them is never reaped. First match wins.
	Whitelist []string `yaml:"whitelist"`

	// FilterAudio exempts audible tabs and keeps their timers fresh.
	FilterAudio bool `yaml:"filter_audio"`

	// FilterGrouped exempts tabs that belong to a tab group.
	FilterGrouped bool `yaml:"filter_grouped"`

	// Paused stops evaluation cycles from reaping; scheduling continues.
	Paused bool `yaml:"paused"`

	// Dedupe selects how the archive de-duplicates re-wrangled tabs:
	// exactURLMatch | hostnameAndTitleMatch | withDupes.
	Dedupe string `yaml:"dedupe"`

	// ShowBadgeCount seeds the wrangled-total metric from the persisted
	// counter at startup.
	ShowBadgeCount bool `yaml:"show_badge_count"`
}

// BrowserConfig points at the browser's DevTools endpoint.
type BrowserConfig struct {
	// Endpoint is the DevTools base URL, e.g. http://127.0.0.1:9222.
	Endpoint string `yaml:"endpoint"`
}

// StorageConfig configures the sqlite database.
type StorageConfig struct {
	// Path is the filesystem path for the SQLite database file.
	Path string `yaml:"path"`
}

// MetricsConfig configures the optional Prometheus listener.
type MetricsConfig struct {
	// Addr is the listen address for /metrics (e.g. ":9099").
	// Empty disables the listener.
	Addr string `yaml:"addr"`
}

// Whitelisted reports whether url matches the whitelist. Matching is
// substring containment in list order; the first hit wins.
func (r ReaperConfig) Whitelisted(url string) bool {
	for _, w := range r.Whitelist {
		if w == "" {
			continue
		}
		if strings.Contains(url, w) {
			return true
		}
	}
	return false
}

// Locked reports whether id is in the locked set.
func (r ReaperConfig) Locked(id int) bool {
	for _, l := range r.LockedIDs {
		if l == id {
			return true
		}
	}
	return false
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with sensible defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Reaper: ReaperConfig{
			StayOpen:        DefaultStayOpen,
			MinTabs:         DefaultMinTabs,
			MinTabsStrategy: StrategyPerWindow,
			MaxArchive:      DefaultMaxArchive,
			Dedupe:          DedupeNone,
			ShowBadgeCount:  true,
		},
		Browser: BrowserConfig{Endpoint: DefaultEndpoint},
		Storage: StorageConfig{Path: DefaultDBPath},
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	if cfg.Reaper.StayOpen < 0 {
		return fmt.Errorf("reaper.stay_open must not be negative")
	}
	if cfg.Reaper.MinTabs < 0 {
		return fmt.Errorf("reaper.min_tabs must not be negative")
	}
	if cfg.Reaper.MaxArchive <= 0 {
		return fmt.Errorf("reaper.max_archive must be positive")
	}
	switch cfg.Reaper.MinTabsStrategy {
	case StrategyPerWindow, StrategyAllWindows:
	default:
		return fmt.Errorf("reaper.min_tabs_strategy: unknown strategy %q", cfg.Reaper.MinTabsStrategy)
	}
	switch cfg.Reaper.Dedupe {
	case DedupeNone, DedupeExactURL, DedupeHostnameAndTitle:
	default:
		return fmt.Errorf("reaper.dedupe: unknown option %q", cfg.Reaper.Dedupe)
	}
	if cfg.Browser.Endpoint == "" {
		return fmt.Errorf("browser.endpoint is required")
	}
	if cfg.Storage.Path == "" {
		return fmt.Errorf("storage.path is required")
	}
	return nil
}
