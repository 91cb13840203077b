// Package keylock provides named critical sections for the shared persisted
// state ("activity", "settings"). Event handlers and the evaluation cycle
// all funnel their reads-then-writes of the same durable maps through
// Keyed.Do so they cannot interleave.
package keylock
