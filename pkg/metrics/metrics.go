package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type ServerMetrics struct {
	Requests     *prometheus.CounterVec
	LatencyMS    *prometheus.HistogramVec
	GatewayCalls *prometheus.CounterVec
}

// NewServerMetrics registers the storefront collectors on reg.
func NewServerMetrics(reg prometheus.Registerer, service string) *ServerMetrics {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "velvet",
		Subsystem: service,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"handler", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "velvet",
		Subsystem: service,
		Name:      "http_request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"handler"})
	gateway := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "velvet",
		Subsystem: service,
		Name:      "gateway_calls_total",
		Help:      "Total number of payment gateway calls by operation and outcome.",
	}, []string{"operation", "outcome"})

	reg.MustRegister(requests, latency, gateway)
	return &ServerMetrics{Requests: requests, LatencyMS: latency, GatewayCalls: gateway}
}

// Observe records one finished request. A nil receiver is a no-op.
func (m *ServerMetrics) Observe(handler string, code int, start time.Time) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(handler, strconv.Itoa(code)).Inc()
	m.LatencyMS.WithLabelValues(handler).Observe(float64(time.Since(start).Milliseconds()))
}

func (m *ServerMetrics) Gateway(operation string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.GatewayCalls.WithLabelValues(operation, outcome).Inc()
}

func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
