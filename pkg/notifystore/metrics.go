package notifystore

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/storedesk/notifykit/pkg/notification"
)

type metrics struct {
	addedTotal prometheus.Counter
	duplicates prometheus.Counter
	seeds      *prometheus.CounterVec
	active     *prometheus.GaugeVec
	connected  prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		addedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "notifykit",
			Subsystem: "store",
			Name:      "notifications_added_total",
			Help:      "Pushed notifications added to the collection.",
		}),
		duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "notifykit",
			Subsystem: "store",
			Name:      "duplicates_suppressed_total",
			Help:      "Pushed notifications ignored because their id was already present.",
		}),
		seeds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "notifykit",
			Subsystem: "store",
			Name:      "seeds_total",
			Help:      "Wholesale replacements of the collection by source.",
		}, []string{"source"}),
		active: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "notifykit",
			Subsystem: "store",
			Name:      "notifications",
			Help:      "Notifications currently held, by severity (\"total\" for all).",
		}, []string{"severity"}),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "notifykit",
			Subsystem: "store",
			Name:      "stream_connected",
			Help:      "1 while the store sees the stream as connected.",
		}),
	}
	if reg != nil {
		m.addedTotal = register(reg, m.addedTotal)
		m.duplicates = register(reg, m.duplicates)
		m.seeds = register(reg, m.seeds)
		m.active = register(reg, m.active)
		m.connected = register(reg, m.connected)
	}
	return m
}

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

func (m *metrics) seeded(source string, c notification.Counts) {
	if m == nil {
		return
	}
	m.seeds.WithLabelValues(source).Inc()
	m.setCounts(c)
}

func (m *metrics) added(c notification.Counts) {
	if m == nil {
		return
	}
	m.addedTotal.Inc()
	m.setCounts(c)
}

func (m *metrics) duplicate() {
	if m != nil {
		m.duplicates.Inc()
	}
}

func (m *metrics) setCounts(c notification.Counts) {
	if m == nil {
		return
	}
	m.active.WithLabelValues("total").Set(float64(c.Total))
	m.active.WithLabelValues(string(notification.SeverityCritical)).Set(float64(c.Critical))
	m.active.WithLabelValues(string(notification.SeverityHigh)).Set(float64(c.High))
	m.active.WithLabelValues(string(notification.SeverityWarning)).Set(float64(c.Warning))
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
