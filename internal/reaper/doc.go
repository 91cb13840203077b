// Package reaper orchestrates the reclamation engine.
//
// Lifecycle: Startup runs the restart identity-migration protocol (tab ids
// are reassigned across restarts; countdowns are recovered by URL), then
// Run drives evaluation cycles on a durable alarm whose next wake time is
// persisted in storage, so process suspension delays a tick instead of
// losing it. HandleEvents folds browser lifecycle events into the activity
// cache. Everything that touches the shared activity maps goes through the
// "activity" named lock.
//
// Failure posture: a cycle that errors is logged and retried by the next
// tick; rescheduling is unconditional. Nothing in this package is allowed
// to stop the clock.
package reaper
