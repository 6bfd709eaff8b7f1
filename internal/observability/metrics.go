// Package observability exposes the Prometheus metrics of the workout engine.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lockedin"

// Metrics records workout engine events on its own registry.
type Metrics struct {
	registry       *prometheus.Registry
	workoutsLogged *prometheus.CounterVec
	milestones     *prometheus.CounterVec
	rejections     *prometheus.CounterVec
	latency        *prometheus.HistogramVec
	requests       *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them together with the Go runtime and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		workoutsLogged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workouts",
			Name:      "logged_total",
			Help:      "Number of workouts logged, split by whether they were logged retroactively.",
		}, []string{"kind"}),
		milestones: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "milestones",
			Name:      "awarded_total",
			Help:      "Number of milestones awarded per category.",
		}, []string{"category"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workouts",
			Name:      "rejections_total",
			Help:      "Number of rejected workout operations per operation and reason.",
		}, []string{"operation", "reason"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "workouts",
			Name:      "operation_duration_seconds",
			Help:      "Duration of workout operations including the database transaction.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Number of handled HTTP requests per method and status code.",
		}, []string{"method", "code"}),
	}
	m.registry.MustRegister(
		m.workoutsLogged,
		m.milestones,
		m.rejections,
		m.latency,
		m.requests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}), //nolint:exhaustruct // Defaults.
	)
	return m
}

// WorkoutLogged counts one successfully logged workout.
func (m *Metrics) WorkoutLogged(retroactive bool) {
	kind := "today"
	if retroactive {
		kind = "retroactive"
	}
	m.workoutsLogged.WithLabelValues(kind).Inc()
}

// MilestoneAwarded counts one newly achieved milestone.
func (m *Metrics) MilestoneAwarded(category string) {
	m.milestones.WithLabelValues(category).Inc()
}

// Rejected counts a failed operation. reason is the failure category.
func (m *Metrics) Rejected(operation, reason string) {
	m.rejections.WithLabelValues(operation, reason).Inc()
}

// ObserveDuration records how long an operation took.
func (m *Metrics) ObserveDuration(operation string, d time.Duration) {
	m.latency.WithLabelValues(operation).Observe(d.Seconds())
}

// RequestHandled counts one HTTP response.
func (m *Metrics) RequestHandled(method string, statusCode int) {
	m.requests.WithLabelValues(method, strconv.Itoa(statusCode)).Inc()
}

// Registry is the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}) //nolint:exhaustruct // Defaults.
}
