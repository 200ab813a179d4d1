// Package prometheus exposes dispatch metrics through Prometheus.
package prometheus

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DefaultRegistry is the registry used when none is supplied
	DefaultRegistry = prometheus.NewRegistry()

	// DefaultRegisterer wraps DefaultRegistry with the service label
	DefaultRegisterer = prometheus.WrapRegistererWith(prometheus.Labels{"service": "dispatch"}, DefaultRegistry)

	metricsOnce sync.Once
	metrics     *Metrics
)

// Metrics holds the dispatcher's Prometheus metrics.
type Metrics struct {
	// Dispatch metrics
	EventsPostedTotal    *prometheus.CounterVec
	EventsCancelledTotal *prometheus.CounterVec
	HandlerPanicsTotal   *prometheus.CounterVec
	DispatchDuration     *prometheus.HistogramVec

	// Registry metrics
	HandlersRegistered prometheus.Gauge
	Specializations    prometheus.Gauge

	// Custom metrics registry
	customCounters map[string]*prometheus.CounterVec
	customGauges   map[string]*prometheus.GaugeVec
	customMu       sync.RWMutex
}

// GetMetrics returns the global metrics instance.
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		metrics = NewMetrics(DefaultRegisterer)
	})
	return metrics
}

// NewMetrics creates a metrics collection registered with registerer.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = DefaultRegisterer
	}

	return &Metrics{
		EventsPostedTotal: promauto.With(registerer).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dispatch_events_posted_total",
				Help: "Total number of events posted",
			},
			[]string{"event"},
		),
		EventsCancelledTotal: promauto.With(registerer).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dispatch_events_cancelled_total",
				Help: "Total number of events that ended in the cancelled state",
			},
			[]string{"event"},
		),
		HandlerPanicsTotal: promauto.With(registerer).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dispatch_handler_panics_total",
				Help: "Total number of handler invocations that raised an error",
			},
			[]string{"event"},
		),
		DispatchDuration: promauto.With(registerer).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dispatch_post_duration_seconds",
				Help:    "Duration of a full post across all phases and types",
				Buckets: []float64{.000001, .00001, .0001, .001, .01, .1, 1},
			},
			[]string{"event"},
		),
		HandlersRegistered: promauto.With(registerer).NewGauge(
			prometheus.GaugeOpts{
				Name: "dispatch_handlers_registered",
				Help: "Number of currently registered handlers",
			},
		),
		Specializations: promauto.With(registerer).NewGauge(
			prometheus.GaugeOpts{
				Name: "dispatch_handler_specializations",
				Help: "Number of cached handler specializations",
			},
		),

		customCounters: make(map[string]*prometheus.CounterVec),
		customGauges:   make(map[string]*prometheus.GaugeVec),
	}
}

// RecordPost records one completed post.
func (m *Metrics) RecordPost(event string, cancelled bool, duration time.Duration) {
	m.EventsPostedTotal.WithLabelValues(event).Inc()
	if cancelled {
		m.EventsCancelledTotal.WithLabelValues(event).Inc()
	}
	m.DispatchDuration.WithLabelValues(event).Observe(duration.Seconds())
}

// RecordHandlerPanic records a recovered handler error.
func (m *Metrics) RecordHandlerPanic(event string) {
	m.HandlerPanicsTotal.WithLabelValues(event).Inc()
}

// SetHandlersRegistered updates the registered-handler gauge.
func (m *Metrics) SetHandlersRegistered(n float64) {
	m.HandlersRegistered.Set(n)
}

// SetSpecializations updates the specialization-cache gauge.
func (m *Metrics) SetSpecializations(n float64) {
	m.Specializations.Set(n)
}

// Counter creates or returns a custom counter metric.
func (m *Metrics) Counter(name, help string, labels ...string) *prometheus.CounterVec {
	m.customMu.RLock()
	if c, ok := m.customCounters[name]; ok {
		m.customMu.RUnlock()
		return c
	}
	m.customMu.RUnlock()

	m.customMu.Lock()
	defer m.customMu.Unlock()

	// Double-check after acquiring the write lock
	if c, ok := m.customCounters[name]; ok {
		return c
	}

	c := promauto.With(DefaultRegisterer).NewCounterVec(
		prometheus.CounterOpts{Name: name, Help: help},
		labels,
	)
	m.customCounters[name] = c
	return c
}

// Gauge creates or returns a custom gauge metric.
func (m *Metrics) Gauge(name, help string, labels ...string) *prometheus.GaugeVec {
	m.customMu.RLock()
	if g, ok := m.customGauges[name]; ok {
		m.customMu.RUnlock()
		return g
	}
	m.customMu.RUnlock()

	m.customMu.Lock()
	defer m.customMu.Unlock()

	if g, ok := m.customGauges[name]; ok {
		return g
	}

	g := promauto.With(DefaultRegisterer).NewGaugeVec(
		prometheus.GaugeOpts{Name: name, Help: help},
		labels,
	)
	m.customGauges[name] = g
	return g
}
