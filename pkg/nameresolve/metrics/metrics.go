// Package metrics exposes resolution metrics through Prometheus.
//
// A nil *Metrics is valid and records nothing, so collection is enabled by
// constructing one with New and disabled by leaving it nil.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the resolver's Prometheus collectors.
type Metrics struct {
	lookups        *prometheus.CounterVec
	lookupDuration *prometheus.HistogramVec
	cacheRequests  *prometheus.CounterVec
	transactions   *prometheus.CounterVec
	retransmits    prometheus.Counter
	winsDead       prometheus.Counter
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		lookups: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "nbresolve_lookups_total",
				Help: "Total number of backend lookups by backend and result",
			},
			[]string{"backend", "result"}, // result: "ok", "not_found", "error"
		),
		lookupDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nbresolve_lookup_duration_seconds",
				Help:    "Duration of backend lookups in seconds",
				Buckets: []float64{.001, .005, .025, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"backend"},
		),
		cacheRequests: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "nbresolve_cache_requests_total",
				Help: "Total number of cache requests by cache and result",
			},
			[]string{"cache", "result"}, // result: "hit", "negative", "miss"
		),
		transactions: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "nbresolve_transactions_total",
				Help: "Total number of NetBIOS transactions by result",
			},
			[]string{"result"},
		),
		retransmits: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "nbresolve_retransmits_total",
				Help: "Total number of NetBIOS request retransmissions",
			},
		),
		winsDead: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "nbresolve_wins_server_dead_total",
				Help: "Total number of times a WINS server was marked dead",
			},
		),
	}
}

// ObserveLookup records one backend lookup.
func (m *Metrics) ObserveLookup(backend, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.lookups.WithLabelValues(backend, result).Inc()
	m.lookupDuration.WithLabelValues(backend).Observe(d.Seconds())
}

// CacheRequest records a cache lookup.
func (m *Metrics) CacheRequest(cache, result string) {
	if m == nil {
		return
	}
	m.cacheRequests.WithLabelValues(cache, result).Inc()
}

// Transaction records the end of a NetBIOS transaction.
func (m *Metrics) Transaction(result string) {
	if m == nil {
		return
	}
	m.transactions.WithLabelValues(result).Inc()
}

// Retransmit records a resent request.
func (m *Metrics) Retransmit() {
	if m == nil {
		return
	}
	m.retransmits.Inc()
}

// WINSServerDead records a WINS server being marked dead.
func (m *Metrics) WINSServerDead() {
	if m == nil {
		return
	}
	m.winsDead.Inc()
}
