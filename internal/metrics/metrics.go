// Package metrics holds the Prometheus collectors of the bot.
//
// A nil *Metrics is valid; every method is a no-op on nil so components can be
// built without instrumentation in tests.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "uptimeninja"

type Metrics struct {
	Registry *prometheus.Registry

	sweeps        *prometheus.CounterVec
	sweepDuration *prometheus.HistogramVec
	probes        *prometheus.CounterVec
	transitions   *prometheus.CounterVec
	certAlerts    prometheus.Counter
	notifications *prometheus.CounterVec
	sessions      prometheus.Gauge
	sessionEnds   *prometheus.CounterVec
	commands      *prometheus.CounterVec
	restarts      *prometheus.CounterVec
}

// New creates a registry with process and Go runtime collectors plus the bot's own.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		sweeps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweeps_total",
			Help:      "Completed sweeps by kind (liveness, certificate).",
		}, []string{"kind"}),
		sweepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sweep_duration_seconds",
			Help:      "Wall time of a sweep by kind.",
			Buckets:   []float64{.05, .1, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"kind"}),
		probes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probes_total",
			Help:      "Liveness probes by classification.",
		}, []string{"result"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_transitions_total",
			Help:      "Persisted endpoint status transitions by target status.",
		}, []string{"to"}),
		certAlerts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "certificate_alerts_total",
			Help:      "Certificate expiry warnings emitted.",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Outbound notifications by channel and result.",
		}, []string{"channel", "result"}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Conversation sessions currently awaiting input.",
		}),
		sessionEnds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_ended_total",
			Help:      "Ended conversation sessions by reason.",
		}, []string{"reason"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Handled chat commands.",
		}, []string{"command"}),
		restarts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "goroutine_restarts_total",
			Help:      "Supervised loop restarts by name.",
		}, []string{"name"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.sweeps, m.sweepDuration, m.probes, m.transitions, m.certAlerts,
		m.notifications, m.sessions, m.sessionEnds, m.commands, m.restarts,
	)
	return m
}

func (m *Metrics) ObserveSweep(kind string, d time.Duration) {
	if m == nil {
		return
	}
	m.sweeps.WithLabelValues(kind).Inc()
	m.sweepDuration.WithLabelValues(kind).Observe(d.Seconds())
}

func (m *Metrics) Probe(up bool) {
	if m == nil {
		return
	}
	res := "down"
	if up {
		res = "up"
	}
	m.probes.WithLabelValues(res).Inc()
}

func (m *Metrics) Transition(to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(to).Inc()
}

func (m *Metrics) CertificateAlert() {
	if m == nil {
		return
	}
	m.certAlerts.Inc()
}

// Notification counts a notifier outcome: queued, sent, failed or dropped.
func (m *Metrics) Notification(channel, result string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(channel, result).Inc()
}

func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.sessions.Inc()
}

// SessionEnded records why a session left the store (done, canceled, timeout).
func (m *Metrics) SessionEnded(reason string) {
	if m == nil {
		return
	}
	m.sessions.Dec()
	m.sessionEnds.WithLabelValues(reason).Inc()
}

func (m *Metrics) Command(name string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(name).Inc()
}

// Restart counts a supervised loop restart.
func (m *Metrics) Restart(name string) {
	if m == nil {
		return
	}
	m.restarts.WithLabelValues(name).Inc()
}
