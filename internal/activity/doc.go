// Package activity owns the in-memory last-activity maps (tab id → time,
// url → time) and their explicit sync points against durable storage.
//
// The cache must be initialized by the startup migration before reads;
// reading earlier is logged as a defect and returns empty data. Writes in
// hot per-tab loops go through SetSilent/SetURLSilent (no I/O); each
// evaluation cycle ends with exactly one ForceSync.
package activity
