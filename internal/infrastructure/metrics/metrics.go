// Package metrics exposes node counters in Prometheus format.
//
// Diagnostics are counted by kind and severity as they are recorded. The
// remaining series are read from the agent's status snapshot at scrape time,
// so the control loop never touches Prometheus types.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/homesync/node-agent/internal/agent"
	"github.com/homesync/node-agent/internal/diag"
)

const namespace = "homesync"

// StatusFunc returns the latest agent snapshot, or nil before the first one.
type StatusFunc func() *agent.Status

// Metrics owns a private registry with every node series registered on it.
type Metrics struct {
	registry    *prometheus.Registry
	diagnostics *prometheus.CounterVec

	mu     sync.RWMutex
	status StatusFunc
}

// New creates the registry and registers all collectors on it.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		diagnostics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "diagnostics_total",
			Help:      "Diagnostics recorded, by kind and severity.",
		}, []string{"kind", "severity"}),
	}

	m.registry.MustRegister(
		m.diagnostics,
		m.gauge("connected", "1 when the broker session is connected.", func(s *agent.Status) float64 {
			return boolValue(s.Connected)
		}),
		m.gauge("relay_on", "1 when the relay is energised.", func(s *agent.Status) float64 {
			return boolValue(s.Relay)
		}),
		m.gauge("uptime_seconds", "Seconds since the agent started.", func(s *agent.Status) float64 {
			return s.Uptime.Seconds()
		}),
		m.counter("reconnect_attempts_total", "Broker connection attempts.", func(s *agent.Status) uint64 {
			return s.ReconnectAttempts
		}),
		m.counter("reconnect_failures_total", "Failed broker connection attempts.", func(s *agent.Status) uint64 {
			return s.ReconnectFailures
		}),
		m.counter("telemetry_cycles_total", "Telemetry cycles run.", func(s *agent.Status) uint64 {
			return s.TelemetryCycles
		}),
		m.counter("telemetry_skipped_total", "Telemetry cycles not published while disconnected.", func(s *agent.Status) uint64 {
			return s.TelemetrySkipped
		}),
		m.counter("published_total", "Messages accepted by the broker client.", func(s *agent.Status) uint64 {
			return s.Published
		}),
		m.counter("publish_failed_total", "Publishes that failed.", func(s *agent.Status) uint64 {
			return s.PublishFailed
		}),
		m.counter("commands_applied_total", "Relay commands applied.", func(s *agent.Status) uint64 {
			return s.CommandsApplied
		}),
		m.counter("commands_ignored_total", "Messages on the command topic that were not commands.", func(s *agent.Status) uint64 {
			return s.CommandsIgnored
		}),
		m.counter("inbox_dropped_total", "Inbound messages dropped because the inbox was full.", func(s *agent.Status) uint64 {
			return s.InboxDropped
		}),
	)
	return m
}

// SetStatusSource binds the snapshot the status-derived series read from.
func (m *Metrics) SetStatusSource(fn StatusFunc) {
	m.mu.Lock()
	m.status = fn
	m.mu.Unlock()
}

// ArchiveCounts is implemented by the telemetry archive.
type ArchiveCounts interface {
	Written() uint64
	Failed() uint64
}

// RegisterArchive adds the archive's point counters. Call at most once.
func (m *Metrics) RegisterArchive(a ArchiveCounts) {
	m.registry.MustRegister(
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "archive",
			Name:      "points_written_total",
			Help:      "Points handed to the InfluxDB write API.",
		}, func() float64 { return float64(a.Written()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "archive",
			Name:      "write_errors_total",
			Help:      "Asynchronous InfluxDB write errors.",
		}, func() float64 { return float64(a.Failed()) }),
	)
}

// Record implements diag.Recorder.
func (m *Metrics) Record(e diag.Event) {
	m.diagnostics.WithLabelValues(string(e.Kind), e.Severity.String()).Inc()
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) snapshot() *agent.Status {
	m.mu.RLock()
	fn := m.status
	m.mu.RUnlock()
	if fn == nil {
		return nil
	}
	return fn()
}

func (m *Metrics) gauge(name, help string, value func(*agent.Status) float64) prometheus.GaugeFunc {
	return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, func() float64 {
		s := m.snapshot()
		if s == nil {
			return 0
		}
		return value(s)
	})
}

func (m *Metrics) counter(name, help string, value func(*agent.Status) uint64) prometheus.CounterFunc {
	return prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, func() float64 {
		s := m.snapshot()
		if s == nil {
			return 0
		}
		return float64(value(s))
	})
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
