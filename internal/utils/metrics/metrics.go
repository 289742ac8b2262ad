package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/uniedit/imagegen/internal/model"
	"github.com/uniedit/imagegen/internal/port/outbound"
)

// MaxModelLabels bounds the distinct model label values. Models seen after
// the limit is reached are recorded as OtherModelLabel.
const MaxModelLabels = 32

// OtherModelLabel is the model label for models beyond MaxModelLabels.
const OtherModelLabel = "other"

// Metrics holds all application metrics.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Generation metrics
	GenerationsTotal   *prometheus.CounterVec
	GenerationDuration *prometheus.HistogramVec
	WaitTimeoutsTotal  prometheus.Counter

	modelsMu sync.Mutex
	models   map[string]struct{}
}

// New creates a new Metrics instance registered on the default registry.
func New(namespace string) *Metrics {
	return NewWithRegistry(namespace, prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a new Metrics instance registered on reg.
func NewWithRegistry(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "imagegen"
	}
	factory := promauto.With(reg)

	return &Metrics{
		models: make(map[string]struct{}),

		// HTTP metrics
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_in_flight",
				Help:      "Current number of HTTP requests being processed",
			},
		),

		// Generation metrics
		GenerationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "generation",
				Name:      "tasks_total",
				Help:      "Total number of finished generation tasks",
			},
			[]string{"model", "state", "error_kind"},
		),
		GenerationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "generation",
				Name:      "duration_seconds",
				Help:      "Generation task duration in seconds",
				Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"model"},
		),
		WaitTimeoutsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "generation",
				Name:      "wait_timeouts_total",
				Help:      "Total number of waits that ran out of budget",
			},
		),
	}
}

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, statusCodeToString(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordGeneration records a finished generation task.
func (m *Metrics) RecordGeneration(modelID string, state model.TaskState, errorKind string, duration time.Duration) {
	if errorKind == "" {
		errorKind = "none"
	}
	label := m.modelLabel(modelID)
	m.GenerationsTotal.WithLabelValues(label, state.String(), errorKind).Inc()
	m.GenerationDuration.WithLabelValues(label).Observe(duration.Seconds())
}

// modelLabel returns modelID while fewer than MaxModelLabels models have
// been seen. The model id comes from request options.
func (m *Metrics) modelLabel(modelID string) string {
	m.modelsMu.Lock()
	defer m.modelsMu.Unlock()

	if _, ok := m.models[modelID]; ok {
		return modelID
	}
	if len(m.models) >= MaxModelLabels {
		return OtherModelLabel
	}
	m.models[modelID] = struct{}{}
	return modelID
}

// RecordWaitTimeout records a wait that ran out of budget.
func (m *Metrics) RecordWaitTimeout() {
	m.WaitTimeoutsTotal.Inc()
}

// statusCodeToString converts an HTTP status code to a string category.
func statusCodeToString(code int) string {
	switch {
	case code >= 100 && code < 600:
		return strconv.Itoa(code/100) + "xx"
	default:
		return "unknown"
	}
}

var _ outbound.GenerationRecorderPort = (*Metrics)(nil)
