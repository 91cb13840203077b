// Package wrangler consumes the eviction candidates each cycle produces:
// it de-duplicates and prepends them onto the capped closed-tab archive,
// bumps the lifetime counter, fires the physical close without awaiting
// it, and trims archive overflow oldest-first.
package wrangler
