// Package metrics exposes process-level Prometheus metrics for the node
// registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the registry process
type Metrics struct {
	// Fleet metrics
	NodesByStatus        prometheus.GaugeVec
	HeartbeatsTotal      prometheus.CounterVec
	HeartbeatDuration    prometheus.Histogram
	RegistrationsTotal   prometheus.Counter
	DeregistrationsTotal prometheus.Counter

	// Store metrics
	StoreHealthy prometheus.Gauge

	// System metrics
	MemoryUsageBytes prometheus.Gauge
	GoroutinesTotal  prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics on the given
// registerer
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		NodesByStatus: *factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "daig",
			Subsystem: "registry",
			Name:      "nodes",
			Help:      "Number of nodes in this process by status",
		}, []string{"status"}),
		HeartbeatsTotal: *factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "daig",
			Subsystem: "registry",
			Name:      "heartbeats_total",
			Help:      "Total number of heartbeats by result",
		}, []string{"result"}),
		HeartbeatDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "daig",
			Subsystem: "registry",
			Name:      "heartbeat_duration_seconds",
			Help:      "Histogram of heartbeat persistence durations",
			Buckets:   prometheus.DefBuckets,
		}),
		RegistrationsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "daig",
			Subsystem: "registry",
			Name:      "registrations_total",
			Help:      "Total number of successful node registrations",
		}),
		DeregistrationsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "daig",
			Subsystem: "registry",
			Name:      "deregistrations_total",
			Help:      "Total number of node deregistrations",
		}),
		StoreHealthy: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "daig",
			Subsystem: "store",
			Name:      "healthy",
			Help:      "Whether the shared store handle is healthy (1) or not (0)",
		}),
		MemoryUsageBytes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "daig",
			Subsystem: "system",
			Name:      "memory_usage_bytes",
			Help:      "Current memory usage in bytes",
		}),
		GoroutinesTotal: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "daig",
			Subsystem: "system",
			Name:      "goroutines_total",
			Help:      "Current number of goroutines",
		}),
	}
}

// RecordHeartbeat records one heartbeat attempt
func (m *Metrics) RecordHeartbeat(result string, duration float64) {
	m.HeartbeatsTotal.WithLabelValues(result).Inc()
	m.HeartbeatDuration.Observe(duration)
}

// RecordRegistration counts one successful registration
func (m *Metrics) RecordRegistration() {
	m.RegistrationsTotal.Inc()
}

// RecordDeregistration counts one deregistration
func (m *Metrics) RecordDeregistration() {
	m.DeregistrationsTotal.Inc()
}

// SetStoreHealthy publishes the store handle health
func (m *Metrics) SetStoreHealthy(healthy bool) {
	if healthy {
		m.StoreHealthy.Set(1)
	} else {
		m.StoreHealthy.Set(0)
	}
}

// SetNodeStatus updates the per-status fleet gauge
func (m *Metrics) SetNodeStatus(status string, count int) {
	m.NodesByStatus.WithLabelValues(status).Set(float64(count))
}

// UpdateSystemStats updates process-level statistics
func (m *Metrics) UpdateSystemStats(memoryUsage int64, goroutines int) {
	m.MemoryUsageBytes.Set(float64(memoryUsage))
	m.GoroutinesTotal.Set(float64(goroutines))
}
