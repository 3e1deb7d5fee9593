package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "quantmcp"

// Metrics holds the collectors for tool calls and upstream API traffic.
type Metrics struct {
	registry     *prometheus.Registry
	toolCalls    *prometheus.CounterVec
	toolDuration *prometheus.HistogramVec
	apiErrors    *prometheus.CounterVec
	apiRetries   *prometheus.CounterVec
}

var defaultMetrics = NewMetrics()

// NewMetrics builds collectors on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		toolCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tool_calls_total",
				Help:      "Tool calls by tool and outcome.",
			},
			[]string{"tool", "outcome"},
		),
		toolDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "tool_duration_seconds",
				Help:      "Tool call latency.",
				Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"tool"},
		),
		apiErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_errors_total",
				Help:      "Non-success responses from the platform API.",
			},
			[]string{"endpoint", "status"},
		),
		apiRetries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_retries_total",
				Help:      "Platform API requests that were retried.",
			},
			[]string{"endpoint"},
		),
	}
	m.registry.MustRegister(m.toolCalls, m.toolDuration, m.apiErrors, m.apiRetries)
	return m
}

// Default returns the process-wide metrics.
func Default() *Metrics { return defaultMetrics }

func (m *Metrics) IncToolCall(toolName, outcome string) {
	m.toolCalls.WithLabelValues(toolName, outcome).Inc()
}

func (m *Metrics) ObserveToolDuration(toolName string, d time.Duration) {
	m.toolDuration.WithLabelValues(toolName).Observe(d.Seconds())
}

// ObserveToolCall records one finished call.
func (m *Metrics) ObserveToolCall(toolName, outcome string, d time.Duration) {
	m.IncToolCall(toolName, outcome)
	m.ObserveToolDuration(toolName, d)
}

func (m *Metrics) IncAPIError(endpoint string, statusCode int) {
	m.apiErrors.WithLabelValues(endpoint, strconv.Itoa(statusCode)).Inc()
}

func (m *Metrics) IncAPIRetry(endpoint string) {
	m.apiRetries.WithLabelValues(endpoint).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func IncToolCall(toolName, outcome string) { defaultMetrics.IncToolCall(toolName, outcome) }

func ObserveToolDuration(toolName string, d time.Duration) {
	defaultMetrics.ObserveToolDuration(toolName, d)
}

func IncAPIError(endpoint string, statusCode int) { defaultMetrics.IncAPIError(endpoint, statusCode) }

func IncAPIRetry(endpoint string) { defaultMetrics.IncAPIRetry(endpoint) }

// Handler serves the process-wide metrics.
func Handler() http.Handler { return defaultMetrics.Handler() }
