package session

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks session lifecycle counts for the /metrics endpoint
// (cmd/sandboxctl serve), grounded on the pack's own per-subsystem
// promauto.NewGauge/NewCounter shape (e.g.
// haasonsaas-nexus/internal/canvas/metrics.go).
type Metrics struct {
	ActiveSessions  prometheus.Gauge
	SessionsCreated prometheus.Counter
	SessionsStarted prometheus.Counter
}

var (
	metricsOnce     sync.Once
	metricsInstance *Metrics
)

// NewMetrics returns the process-wide session metrics, registering them
// with the default Prometheus registry exactly once.
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		metricsInstance = &Metrics{
			ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "sandboxy_sessions_active",
				Help: "Current number of live interactive sessions",
			}),
			SessionsCreated: promauto.NewCounter(prometheus.CounterOpts{
				Name: "sandboxy_sessions_created_total",
				Help: "Total number of interactive sessions created",
			}),
			SessionsStarted: promauto.NewCounter(prometheus.CounterOpts{
				Name: "sandboxy_sessions_started_total",
				Help: "Total number of interactive sessions started",
			}),
		}
	})
	return metricsInstance
}

func (m *Metrics) SessionCreated() {
	if m == nil {
		return
	}
	m.ActiveSessions.Inc()
	m.SessionsCreated.Inc()
}

func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.SessionsStarted.Inc()
}

func (m *Metrics) SessionDeleted() {
	if m == nil {
		return
	}
	m.ActiveSessions.Dec()
}
