package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// loadFromString writes yaml to a temp file and loads it, failing the test
// on error.
func loadFromString(t *testing.T, yaml string) *Config {
	t.Helper()
	cfg, err := loadStringErr(t, yaml)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return cfg
}

func loadStringErr(t *testing.T, yaml string) (*Config, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return Load(path)
}

func TestLoad_Valid(t *testing.T) {
	yaml := `
reaper:
  stay_open: 30m
  min_tabs: 3
  min_tabs_strategy: allWindows
  max_archive: 50
  locked_ids: [7, 12]
  whitelist: ["mail.google.com", "docs"]
  filter_audio: true
  dedupe: exactURLMatch
browser:
  endpoint: http://localhost:9222
storage:
  path: /tmp/reaper.db
`
	cfg := loadFromString(t, yaml)

	if cfg.Reaper.StayOpen != 30*time.Minute {
		t.Errorf("stay_open: got %v", cfg.Reaper.StayOpen)
	}
	if cfg.Reaper.MinTabs != 3 {
		t.Errorf("min_tabs: got %d", cfg.Reaper.MinTabs)
	}
	if cfg.Reaper.MinTabsStrategy != StrategyAllWindows {
		t.Errorf("strategy: got %q", cfg.Reaper.MinTabsStrategy)
	}
	if len(cfg.Reaper.LockedIDs) != 2 || cfg.Reaper.LockedIDs[0] != 7 {
		t.Errorf("locked_ids: got %v", cfg.Reaper.LockedIDs)
	}
	if !cfg.Reaper.FilterAudio {
		t.Error("filter_audio: got false, want true")
	}
	if cfg.Reaper.Dedupe != DedupeExactURL {
		t.Errorf("dedupe: got %q", cfg.Reaper.Dedupe)
	}
	if cfg.Browser.Endpoint != "http://localhost:9222" {
		t.Errorf("endpoint: got %q", cfg.Browser.Endpoint)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg := loadFromString(t, "reaper: {}\n")

	if cfg.Reaper.StayOpen != DefaultStayOpen {
		t.Errorf("default stay_open: got %v, want %v", cfg.Reaper.StayOpen, DefaultStayOpen)
	}
	if cfg.Reaper.MinTabs != DefaultMinTabs {
		t.Errorf("default min_tabs: got %d, want %d", cfg.Reaper.MinTabs, DefaultMinTabs)
	}
	if cfg.Reaper.MinTabsStrategy != StrategyPerWindow {
		t.Errorf("default strategy: got %q", cfg.Reaper.MinTabsStrategy)
	}
	if cfg.Reaper.MaxArchive != DefaultMaxArchive {
		t.Errorf("default max_archive: got %d, want %d", cfg.Reaper.MaxArchive, DefaultMaxArchive)
	}
	if cfg.Reaper.Dedupe != DedupeNone {
		t.Errorf("default dedupe: got %q", cfg.Reaper.Dedupe)
	}
	if cfg.Browser.Endpoint != DefaultEndpoint {
		t.Errorf("default endpoint: got %q", cfg.Browser.Endpoint)
	}
	if cfg.Storage.Path != DefaultDBPath {
		t.Errorf("default storage path: got %q", cfg.Storage.Path)
	}
}

func TestLoad_ZeroStayOpenAllowed(t *testing.T) {
	cfg := loadFromString(t, "reaper:\n  stay_open: 0s\n")
	if cfg.Reaper.StayOpen != 0 {
		t.Errorf("stay_open: got %v, want 0", cfg.Reaper.StayOpen)
	}
}

func TestLoad_UnknownStrategy(t *testing.T) {
	_, err := loadStringErr(t, "reaper:\n  min_tabs_strategy: perTab\n")
	if err == nil {
		t.Fatal("expected error for unknown strategy")
	}
}

func TestLoad_UnknownDedupe(t *testing.T) {
	_, err := loadStringErr(t, "reaper:\n  dedupe: fuzzyMatch\n")
	if err == nil {
		t.Fatal("expected error for unknown dedupe option")
	}
}

func TestLoad_NegativeMinTabs(t *testing.T) {
	_, err := loadStringErr(t, "reaper:\n  min_tabs: -1\n")
	if err == nil {
		t.Fatal("expected error for negative min_tabs")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestWhitelisted_FirstMatchWins(t *testing.T) {
	r := ReaperConfig{Whitelist: []string{"docs", "mail"}}

	if !r.Whitelisted("https://docs.example.com/page") {
		t.Error("docs url should be whitelisted")
	}
	if !r.Whitelisted("https://mail.example.com") {
		t.Error("mail url should be whitelisted")
	}
	if r.Whitelisted("https://news.example.com") {
		t.Error("news url should not be whitelisted")
	}
}

func TestWhitelisted_EmptyEntryIgnored(t *testing.T) {
	r := ReaperConfig{Whitelist: []string{""}}
	if r.Whitelisted("https://anything.example.com") {
		t.Error("empty whitelist entry must not match everything")
	}
}

func TestLocked(t *testing.T) {
	r := ReaperConfig{LockedIDs: []int{4, 9}}
	if !r.Locked(9) {
		t.Error("9 should be locked")
	}
	if r.Locked(5) {
		t.Error("5 should not be locked")
	}
}
