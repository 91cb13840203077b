package reaper

import (
	"context"
	"log/slog"
	"time"

	"github.com/tabreaper/tabreaper/internal/storage"
)

const (
	// minInterval is the platform floor on the check cadence; short
	// inactivity windows must not busy-poll the browser.
	minInterval = 30 * time.Second

	// maxInterval caps the cadence so very long windows still get
	// checked often enough to feel responsive.
	maxInterval = 15 * time.Minute

	// intervalDivisor derives the cadence from the inactivity window:
	// roughly one check per twentieth of the window.
	intervalDivisor = 20
)

// Interval returns the current check cadence, proportional to the
// configured inactivity window and clamped to [minInterval, maxInterval].
func (r *Reaper) Interval() time.Duration {
	return clampInterval(r.settings().StayOpen)
}

func clampInterval(stayOpen time.Duration) time.Duration {
	iv := stayOpen / intervalDivisor
	if iv < minInterval {
		return minInterval
	}
	if iv > maxInterval {
		return maxInterval
	}
	return iv
}

// Run drives the scheduler until ctx is cancelled.
//
// The next wake time lives in durable storage, not in an in-process timer:
// if the platform suspends the process past its deadline, the alarm fires
// immediately on resume instead of silently restarting its countdown.
//
// Invariant: every firing reschedules, success or failure — one bad cycle
// must never stop the reaper from ticking. Cycles never overlap because
// the next wake is only persisted after the previous cycle has fully
// resolved.
func (r *Reaper) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		wake, err := r.store.NextWake(ctx, storage.ScheduleReap)
		if err != nil {
			slog.Warn("reaper: reading next wake failed, rescheduling", "err", err)
			wake = time.Time{}
		}

		now := r.now()
		if wake.IsZero() {
			// Fresh installation (or lost schedule row): arm the first
			// alarm one interval out rather than reaping at boot.
			r.reschedule(ctx)
			continue
		}

		if wait := wake.Sub(now); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil
			case <-timer.C:
			}
		}

		r.fire(ctx)
	}
}

// fire runs one cycle and unconditionally reschedules afterwards.
func (r *Reaper) fire(ctx context.Context) {
	defer r.reschedule(ctx)

	start := r.now()
	if err := r.Cycle(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		slog.Warn("reaper: cycle failed — next tick retries", "err", err)
	}

	if elapsed := r.now().Sub(start); elapsed > r.Interval() {
		slog.Warn("reaper: cycle overran its tick budget",
			"elapsed", elapsed, "interval", r.Interval())
	}
}

// reschedule persists the next wake time. It deliberately survives ctx
// cancellation so a shutdown mid-cycle still leaves a valid alarm behind.
func (r *Reaper) reschedule(ctx context.Context) {
	next := r.now().Add(r.Interval())
	if err := r.store.SetNextWake(context.WithoutCancel(ctx), storage.ScheduleReap, next); err != nil {
		slog.Warn("reaper: persisting next wake failed", "err", err)
	}
}
