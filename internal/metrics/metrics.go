package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the daemon's Prometheus instruments on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	Cycles        prometheus.Counter
	CycleErrors   prometheus.Counter
	Wrangled      prometheus.Counter
	OpenTabs      prometheus.Gauge
	CycleDuration prometheus.Histogram
}

// New creates and registers all instruments.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.Cycles = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tabreaper_cycles_total",
		Help: "Evaluation cycles run.",
	})
	m.CycleErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tabreaper_cycle_errors_total",
		Help: "Evaluation cycles that ended in an error.",
	})
	m.Wrangled = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tabreaper_wrangled_total",
		Help: "Tabs archived and closed since this process started, seeded from the persisted lifetime total.",
	})
	m.OpenTabs = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tabreaper_open_tabs",
		Help: "Live tabs observed at the last evaluation cycle.",
	})
	m.CycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "tabreaper_cycle_duration_seconds",
		Help:    "Wall time of one evaluation cycle.",
		Buckets: prometheus.DefBuckets,
	})

	m.registry.MustRegister(m.Cycles, m.CycleErrors, m.Wrangled, m.OpenTabs, m.CycleDuration)
	return m
}

// Handler returns the /metrics HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
