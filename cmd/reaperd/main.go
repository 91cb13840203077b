package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/tabreaper/tabreaper/internal/activity"
	"github.com/tabreaper/tabreaper/internal/browser"
	"github.com/tabreaper/tabreaper/internal/config"
	"github.com/tabreaper/tabreaper/internal/keylock"
	"github.com/tabreaper/tabreaper/internal/metrics"
	"github.com/tabreaper/tabreaper/internal/reaper"
	"github.com/tabreaper/tabreaper/internal/storage"
	"github.com/tabreaper/tabreaper/internal/wrangler"
)

const shutdownFlushTimeout = 5 * time.Second

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	logLevel := flag.String("log-level", "info", "log level: debug|info|warn|error")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(*logLevel)}))
	slog.SetDefault(logger)

	slog.Info("reaperd starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	slog.Info("config loaded",
		"browser_endpoint", cfg.Browser.Endpoint,
		"stay_open", cfg.Reaper.StayOpen,
		"min_tabs", cfg.Reaper.MinTabs,
		"strategy", cfg.Reaper.MinTabsStrategy,
	)

	// Settings are swapped atomically on hot reload; every cycle reads the
	// current pointer.
	var current atomic.Pointer[config.Config]
	current.Store(cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := storage.Open(ctx, cfg.Storage.Path)
	if err != nil {
		slog.Error("failed to open storage", "path", cfg.Storage.Path, "err", err)
		os.Exit(1)
	}
	defer store.Close()

	client := browser.NewDevTools(cfg.Browser)
	m := metrics.New()

	if cfg.Reaper.ShowBadgeCount {
		if total, err := store.Counter(ctx, storage.CounterWrangled); err == nil {
			m.Wrangled.Add(float64(total))
		} else {
			slog.Warn("could not seed wrangled total", "err", err)
		}
	}

	lock := keylock.New()
	cache := activity.New(store)
	wr := wrangler.New(store, client)
	rp := reaper.New(lock, cache, client, store, wr, m,
		func() config.ReaperConfig { return current.Load().Reaper })

	// Watch the settings file for hot reload.
	go func() {
		if err := config.Watch(ctx, *configPath, func(updated *config.Config) {
			current.Store(updated)
		}); err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	// Optional Prometheus listener.
	if addr := cfg.Metrics.Addr; addr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", m.Handler())
			slog.Info("metrics listening", "addr", addr)
			if err := http.ListenAndServe(addr, mux); err != nil {
				slog.Error("metrics listener stopped", "err", err)
			}
		}()
	}

	// Event intake starts before the migration: pre-startup events are
	// dropped by the reaper's guard, not lost in a channel nobody reads.
	events := make(chan browser.Event, 64)
	go func() {
		if err := browser.NewSubscriber(client).Run(ctx, events); err != nil {
			slog.Error("event subscriber stopped", "err", err)
		}
	}()
	go rp.HandleEvents(ctx, events)

	if err := rp.Startup(ctx); err != nil {
		slog.Error("startup migration failed", "err", err)
		os.Exit(1)
	}

	go func() {
		if err := rp.Run(ctx); err != nil {
			slog.Error("scheduler stopped", "err", err)
		}
	}()

	<-ctx.Done()
	slog.Info("reaperd shutting down")

	flushCtx, flushCancel := context.WithTimeout(context.Background(), shutdownFlushTimeout)
	defer flushCancel()
	rp.Shutdown(flushCtx)
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
