// Package metrics provides Prometheus metrics for the live feed
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/medkit/livefeed/internal/biz/domain"
)

var phases = []domain.ConnectionPhase{
	domain.PhaseIdle,
	domain.PhaseConnecting,
	domain.PhaseOpen,
	domain.PhaseClosed,
	domain.PhaseReconnecting,
}

// Metrics holds all Prometheus metrics for the live feed.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	EventsTotal         *prometheus.CounterVec
	MalformedLinesTotal prometheus.Counter
	HandlerFaultsTotal  *prometheus.CounterVec
	ReconnectsTotal     prometheus.Counter
	ConnectionPhase     *prometheus.GaugeVec
	UnreadNotifications prometheus.Gauge
	PersistFailures     *prometheus.CounterVec
}

// New creates all metrics on a private registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		EventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "livefeed_events_total",
				Help: "Feed events dispatched, by kind",
			},
			[]string{"kind"},
		),
		MalformedLinesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "livefeed_malformed_lines_total",
				Help: "Feed lines dropped because their JSON did not parse",
			},
		),
		HandlerFaultsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "livefeed_handler_faults_total",
				Help: "Event handler errors and panics caught by the dispatcher",
			},
			[]string{"kind"},
		),
		ReconnectsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "livefeed_reconnects_total",
				Help: "Reconnect attempts scheduled by the supervisor",
			},
		),
		ConnectionPhase: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "livefeed_connection_phase",
				Help: "1 for the current connection phase, 0 otherwise",
			},
			[]string{"phase"},
		),
		UnreadNotifications: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "livefeed_unread_notifications",
				Help: "Unread notifications in the session",
			},
		),
		PersistFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "livefeed_persist_failures_total",
				Help: "Durable store reads/writes that failed",
			},
			[]string{"op"},
		),
	}
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) EventDispatched(kind string) {
	if m == nil {
		return
	}
	m.EventsTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) MalformedLine() {
	if m == nil {
		return
	}
	m.MalformedLinesTotal.Inc()
}

func (m *Metrics) HandlerFault(kind string) {
	if m == nil {
		return
	}
	m.HandlerFaultsTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) Reconnect() {
	if m == nil {
		return
	}
	m.ReconnectsTotal.Inc()
}

// SetPhase marks phase as current
func (m *Metrics) SetPhase(phase domain.ConnectionPhase) {
	if m == nil {
		return
	}
	for _, p := range phases {
		v := 0.0
		if p == phase {
			v = 1
		}
		m.ConnectionPhase.WithLabelValues(string(p)).Set(v)
	}
}

func (m *Metrics) SetUnread(n int) {
	if m == nil {
		return
	}
	m.UnreadNotifications.Set(float64(n))
}

func (m *Metrics) PersistFailure(op string) {
	if m == nil {
		return
	}
	m.PersistFailures.WithLabelValues(op).Inc()
}
