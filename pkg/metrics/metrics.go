// Package metrics exposes device counters to prometheus.
//
// All methods are safe on a nil *Metrics, so loops can run without metrics.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/robotalks/tagrelay/pkg/arena"
	"github.com/robotalks/tagrelay/pkg/link"
)

const namespace = "tagrelay"

// Metrics holds the collectors of one device.
type Metrics struct {
	Registry *prometheus.Registry

	framesRead    prometheus.Counter
	readErrors    prometheus.Counter
	deliveries    *prometheus.CounterVec
	linkStates    *prometheus.GaugeVec
	connects      *prometheus.CounterVec
	logBytes      prometheus.Counter
	logSendErrors prometheus.Counter
}

// New creates Metrics registered on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		framesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reader",
			Name:      "frames_total",
			Help:      "Tag frames read from the serial line.",
		}),
		readErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reader",
			Name:      "errors_total",
			Help:      "Serial read failures.",
		}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "delivery",
			Name:      "sends_total",
			Help:      "Tag sends to the collector by result.",
		}, []string{"result"}),
		linkStates: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "link",
			Name:      "state",
			Help:      "Current link state (0 disconnected, 1 connecting, 2 connected, 3 sending, 4 forwarding).",
		}, []string{"link"}),
		connects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "link",
			Name:      "connect_attempts_total",
			Help:      "Connect attempts per link.",
		}, []string{"link"}),
		logBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "netlog",
			Name:      "shipped_bytes_total",
			Help:      "Log bytes shipped to the collector.",
		}),
		logSendErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "netlog",
			Name:      "send_errors_total",
			Help:      "Failed log chunk sends.",
		}),
	}
	m.Registry.MustRegister(
		m.framesRead, m.readErrors, m.deliveries,
		m.linkStates, m.connects, m.logBytes, m.logSendErrors,
	)
	return m
}

// FrameRead counts a decoded frame.
func (m *Metrics) FrameRead() {
	if m != nil {
		m.framesRead.Inc()
	}
}

// ReadFailed counts a serial read failure.
func (m *Metrics) ReadFailed() {
	if m != nil {
		m.readErrors.Inc()
	}
}

// Delivered counts a delivery attempt.
func (m *Metrics) Delivered(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.deliveries.WithLabelValues(result).Inc()
}

// LogShipped counts shipped log bytes, or a failed chunk when err is set.
func (m *Metrics) LogShipped(n int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.logSendErrors.Inc()
		return
	}
	m.logBytes.Add(float64(n))
}

// StateChanged implements link.StateNotifier.
func (m *Metrics) StateChanged(_ context.Context, name string, state link.State) {
	if m == nil {
		return
	}
	m.linkStates.WithLabelValues(name).Set(float64(state))
	if state == link.Connecting {
		m.connects.WithLabelValues(name).Inc()
	}
}

// WatchArena exports arena usage.
func (m *Metrics) WatchArena(a *arena.Arena) {
	if m == nil {
		return
	}
	m.Registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "arena",
			Name:      "cursor_bytes",
			Help:      "Arena cursor offset.",
		}, func() float64 { return float64(a.Stats().Cursor) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "arena",
			Name:      "capacity_bytes",
			Help:      "Arena region size.",
		}, func() float64 { return float64(a.Stats().Capacity) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "arena",
			Name:      "live_blocks",
			Help:      "Outstanding arena blocks.",
		}, func() float64 { return float64(a.Stats().Live) }),
	)
}

// WatchDropped exports a counter of dropped log bytes.
func (m *Metrics) WatchDropped(dropped func() uint64) {
	if m == nil {
		return
	}
	m.Registry.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "netlog",
		Name:      "dropped_bytes_total",
		Help:      "Log bytes dropped because the buffer was full.",
	}, func() float64 { return float64(dropped()) }))
}
