// Package prom exports cmap metrics to Prometheus.
package prom

import (
	"github.com/IvanBrykalov/cmap/cmap"
	"github.com/prometheus/client_golang/prometheus"
)

// Adapter implements cmap.Metrics and exports Prometheus counters/gauges.
// Safe for concurrent use; all Prometheus metric types are goroutine-safe.
type Adapter struct {
	hits     prometheus.Counter
	misses   prometheus.Counter
	removals *prometheus.CounterVec
	entries  prometheus.Gauge
}

// New constructs a Prometheus metrics adapter.
//   - reg:          registry to register metrics with (nil => prometheus.DefaultRegisterer)
//   - ns, sub:      Prometheus namespace and subsystem
//   - constLabels:  static labels applied to all metrics (may be nil)
func New(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *Adapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	a := &Adapter{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "hits_total",
			Help:        "Map lookups that found the key",
			ConstLabels: constLabels,
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "misses_total",
			Help:        "Map lookups that missed",
			ConstLabels: constLabels,
		}),
		removals: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   sub,
				Name:        "removals_total",
				Help:        "Entries removed, by reason",
				ConstLabels: constLabels,
			},
			[]string{"reason"},
		),
		entries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "size_entries",
			Help:        "Number of live entries",
			ConstLabels: constLabels,
		}),
	}
	reg.MustRegister(a.hits, a.misses, a.removals, a.entries)
	return a
}

// Hit increments the hit counter.
func (a *Adapter) Hit() { a.hits.Inc() }

// Miss increments the miss counter.
func (a *Adapter) Miss() { a.misses.Inc() }

// Remove increments the removal counter with a reason label.
func (a *Adapter) Remove(r cmap.RemoveReason) {
	a.removals.WithLabelValues(reason(r)).Inc()
}

// Size updates the live entry gauge.
func (a *Adapter) Size(entries int) {
	a.entries.Set(float64(entries))
}

// reason maps RemoveReason to a stable label value.
func reason(r cmap.RemoveReason) string {
	switch r {
	case cmap.RemoveDeleted:
		return "deleted"
	case cmap.RemoveCleared:
		return "cleared"
	default:
		return "evicted"
	}
}

// Compile-time check: ensure Adapter implements cmap.Metrics.
var _ cmap.Metrics = (*Adapter)(nil)
