// Package metrics holds the Prometheus counters of the switcher.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Lookup results
const (
	Hit   = "hit"
	Miss  = "miss"
	Stale = "stale"
	Error = "error"
)

// Fetch origins and results
const (
	OriginPrefetch   = "prefetch"
	OriginNavigation = "navigation"

	FetchOK        = "ok"
	FetchStatus    = "status"
	FetchTransport = "transport"
)

// Navigation outcomes
const (
	Swapped  = "swapped"
	Fallback = "fallback"
)

// Write results
const (
	WriteOK    = "ok"
	WriteError = "error"
)

// Metrics holds the counters. The zero value is not usable, use New.
type Metrics struct {
	Lookups     *prometheus.CounterVec
	Fetches     *prometheus.CounterVec
	Writes      *prometheus.CounterVec
	Navigations *prometheus.CounterVec
}

// New creates the counters and registers them with reg.
// If reg is nil, the counters are created but not registered.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Lookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "switcher_cache_lookups_total",
				Help: "Total number of cache lookups by result",
			},
			[]string{"result"},
		),
		Fetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "switcher_fetches_total",
				Help: "Total number of network fetches by origin and result",
			},
			[]string{"origin", "result"},
		),
		Writes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "switcher_cache_writes_total",
				Help: "Total number of cache writes by result",
			},
			[]string{"result"},
		),
		Navigations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "switcher_navigations_total",
				Help: "Total number of intercepted navigations by outcome",
			},
			[]string{"outcome"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.Lookups, m.Fetches, m.Writes, m.Navigations)
	}
	return m
}

func (m *Metrics) Lookup(result string) {
	m.Lookups.WithLabelValues(result).Inc()
}

func (m *Metrics) Fetch(origin, result string) {
	m.Fetches.WithLabelValues(origin, result).Inc()
}

func (m *Metrics) Write(result string) {
	m.Writes.WithLabelValues(result).Inc()
}

func (m *Metrics) Navigation(outcome string) {
	m.Navigations.WithLabelValues(outcome).Inc()
}
