package httpx

import (
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var histogramBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5}

// routeMetrics are shared by every router in the process; the default registry
// accepts each collector once.
type routeMetrics struct {
	requestTotal   *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
	rateLimitHits  *prometheus.CounterVec
	writes         *prometheus.CounterVec
	wsConnections  prometheus.Gauge
}

var (
	metricsOnce sync.Once
	metrics     *routeMetrics
)

func initMetrics() *routeMetrics {
	metricsOnce.Do(func() {
		m := &routeMetrics{
			requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "postboard",
				Subsystem: "api",
				Name:      "http_requests_total",
				Help:      "Count of processed HTTP requests",
			}, []string{"method", "route", "status"}),
			requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "postboard",
				Subsystem: "api",
				Name:      "http_request_duration_seconds",
				Help:      "Latency distribution of HTTP handlers",
				Buckets:   histogramBuckets,
			}, []string{"method", "route", "status"}),
			rateLimitHits: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "postboard",
				Subsystem: "api",
				Name:      "rate_limit_hits_total",
				Help:      "Number of rate-limited responses",
			}, []string{"route", "class"}),
			writes: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "postboard",
				Subsystem: "api",
				Name:      "writes_total",
				Help:      "Successful mutations by resource and operation",
			}, []string{"resource", "op"}),
			wsConnections: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "postboard",
				Subsystem: "api",
				Name:      "websocket_connections",
				Help:      "Open change-event websocket connections",
			}),
		}
		m.requestTotal = registerOrExisting(m.requestTotal)
		m.requestLatency = registerOrExisting(m.requestLatency)
		m.rateLimitHits = registerOrExisting(m.rateLimitHits)
		m.writes = registerOrExisting(m.writes)
		m.wsConnections = registerOrExisting(m.wsConnections)
		metrics = m
	})
	return metrics
}

func registerOrExisting[T prometheus.Collector](c T) T {
	if err := prometheus.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
	}
	return c
}

func (r *Router) recordRequestMetrics(method, route string, status int, duration time.Duration) {
	labels := prometheus.Labels{
		"method": method,
		"route":  route,
		"status": strconv.Itoa(status),
	}
	r.metrics.requestTotal.With(labels).Inc()
	r.metrics.requestLatency.With(labels).Observe(duration.Seconds())
}

func (r *Router) recordRateLimitHit(route, class string) {
	r.metrics.rateLimitHits.With(prometheus.Labels{"route": route, "class": class}).Inc()
}

func (r *Router) recordWrite(resource, op string) {
	r.metrics.writes.With(prometheus.Labels{"resource": resource, "op": op}).Inc()
}
