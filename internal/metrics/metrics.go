// Package metrics exposes Prometheus instrumentation for the session
// server, grounded on opd-ai-goldbox-rpg/pkg/server/metrics.go: a private
// registry constructed fresh (rather than using the global default
// registry) and registered with a project-specific metric-name prefix.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles every counter/gauge this server exports.
type Metrics struct {
	registry *prometheus.Registry

	ConnectedSeats      prometheus.Gauge
	ConnectionsOpened   prometheus.Counter
	ConnectionsClosed   prometheus.Counter
	ActionsAccepted     prometheus.Counter
	ActionsRejected     *prometheus.CounterVec
	SessionVersion      prometheus.Gauge
	PersistenceFailures prometheus.Counter
}

// New constructs a Metrics bundle registered against a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		ConnectedSeats: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "boardgo_connected_seats",
			Help: "Number of websocket connections currently open, counted from upgrade to close; whether a connection has joined a seat is not tracked.",
		}),
		ConnectionsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "boardgo_connections_opened_total",
			Help: "Total websocket connections accepted.",
		}),
		ConnectionsClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "boardgo_connections_closed_total",
			Help: "Total websocket connections closed.",
		}),
		ActionsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "boardgo_actions_accepted_total",
			Help: "Total ACTION frames that passed the full pipeline.",
		}),
		ActionsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "boardgo_actions_rejected_total",
			Help: "Total ACTION frames rejected, labeled by rejection code.",
		}, []string{"code"}),
		SessionVersion: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "boardgo_session_version",
			Help: "Current GameSessionState.Version.",
		}),
		PersistenceFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "boardgo_persistence_failures_total",
			Help: "Total persistence.Store.Save calls that returned an error.",
		}),
	}

	registry.MustRegister(
		m.ConnectedSeats,
		m.ConnectionsOpened,
		m.ConnectionsClosed,
		m.ActionsAccepted,
		m.ActionsRejected,
		m.SessionVersion,
		m.PersistenceFailures,
	)

	return m
}

// Handler exposes the registry for scraping, e.g. mounted at /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ConnectionOpened/ConnectionClosed/ActionAccepted/ActionRejected are
// convenience helpers so callers don't reach into the struct fields
// directly; m may be nil (metrics are optional), in which case these are
// no-ops.

func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.ConnectionsOpened.Inc()
	m.ConnectedSeats.Inc()
}

func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.ConnectionsClosed.Inc()
	m.ConnectedSeats.Dec()
}

func (m *Metrics) ActionAccepted() {
	if m == nil {
		return
	}
	m.ActionsAccepted.Inc()
}

func (m *Metrics) ActionRejected(code string) {
	if m == nil {
		return
	}
	m.ActionsRejected.WithLabelValues(code).Inc()
}

func (m *Metrics) ObserveSessionVersion(v int64) {
	if m == nil {
		return
	}
	m.SessionVersion.Set(float64(v))
}

func (m *Metrics) PersistenceFailure() {
	if m == nil {
		return
	}
	m.PersistenceFailures.Inc()
}
