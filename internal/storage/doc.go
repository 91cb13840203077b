// Package storage persists the reaper's durable state in SQLite: the two
// activity maps (tab id → last active, url → last active, always written
// together in one transaction), the capped closed-tab archive, running
// counters, and the scheduler's durable next-wake time.
//
// Schema changes are append-only revisions applied at Open; the database
// runs in WAL mode.
package storage
