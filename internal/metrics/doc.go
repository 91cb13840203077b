// Package metrics exposes the reaper's operational counters over
// Prometheus. It replaces a browser badge as the "how many tabs has this
// thing eaten" surface.
package metrics
