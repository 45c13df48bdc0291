package realtime

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "notifykit"

// metrics is nil-safe: a Client built without WithMetrics records nothing.
type metrics struct {
	attempts   prometheus.Counter
	reconnects *prometheus.CounterVec
	connected  prometheus.Gauge
	events     *prometheus.CounterVec
	commands   *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		attempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "realtime",
			Name:      "connect_attempts_total",
			Help:      "Explicit connect attempts that reached the dial stage.",
		}),
		reconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "realtime",
			Name:      "reconnects_total",
			Help:      "Automatic reconnect cycles by outcome.",
		}, []string{"result"}),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "realtime",
			Name:      "connected",
			Help:      "1 while the stream is connected.",
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "realtime",
			Name:      "events_received_total",
			Help:      "Frames received by event name; undecodable frames count as \"invalid\".",
		}, []string{"event"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "realtime",
			Name:      "commands_total",
			Help:      "Outgoing commands by name and result (sent, dropped, failed).",
		}, []string{"command", "result"}),
	}

	if reg != nil {
		m.attempts = register(reg, m.attempts)
		m.reconnects = register(reg, m.reconnects)
		m.connected = register(reg, m.connected)
		m.events = register(reg, m.events)
		m.commands = register(reg, m.commands)
	}
	return m
}

// register returns the already registered collector when an identical one
// exists, so several clients can share a registry.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return c
}

func (m *metrics) connectAttempt() {
	if m != nil {
		m.attempts.Inc()
	}
}

func (m *metrics) reconnect(result string) {
	if m != nil {
		m.reconnects.WithLabelValues(result).Inc()
	}
}

func (m *metrics) setConnected(up bool) {
	if m == nil {
		return
	}
	if up {
		m.connected.Set(1)
	} else {
		m.connected.Set(0)
	}
}

func (m *metrics) event(name string) {
	if m != nil {
		m.events.WithLabelValues(name).Inc()
	}
}

func (m *metrics) command(name CommandName, result string) {
	if m != nil {
		m.commands.WithLabelValues(string(name), result).Inc()
	}
}
