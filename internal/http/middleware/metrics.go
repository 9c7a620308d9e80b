package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// UnmatchedPath is the route label for requests no route matched, so probes
// for random URLs cannot grow label cardinality.
const UnmatchedPath = "unmatched"

type httpCollectors struct {
	requests  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	inflight  prometheus.Gauge
	respSize  *prometheus.HistogramVec
	throttled *prometheus.CounterVec
	replayed  *prometheus.CounterVec
}

func newHTTPCollectors() *httpCollectors {
	return &httpCollectors{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "path", "status"}),
		// Payment checks wait on the ledger, so the upper buckets reach
		// past the outbound client timeout.
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by method and route.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 20},
		}, []string{"method", "path"}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_requests_inflight",
			Help: "Requests currently being served.",
		}),
		respSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "Response body size by method and route.",
			Buckets: prometheus.ExponentialBuckets(256, 4, 8), // 256B .. 4MiB
		}, []string{"method", "path"}),
		throttled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_rate_limited_total",
			Help: "Requests rejected by the rate limiter, by route.",
		}, []string{"path"}),
		replayed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_idempotent_replays_total",
			Help: "Requests whose Idempotency-Key matched a stored result, by route.",
		}, []string{"path"}),
	}
}

func (m *httpCollectors) collectors() []prometheus.Collector {
	return []prometheus.Collector{m.requests, m.duration, m.inflight, m.respSize, m.throttled, m.replayed}
}

var httpMetrics = newHTTPCollectors()

func init() {
	prometheus.MustRegister(httpMetrics.collectors()...)
}

// routeLabel is the matched route template or UnmatchedPath.
func routeLabel(c *gin.Context) string {
	if p := c.FullPath(); p != "" {
		return p
	}
	return UnmatchedPath
}

// Metrics records request count, latency, response size and in-flight
// requests on the default Prometheus registry, labelled by route template.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		httpMetrics.inflight.Inc()
		defer httpMetrics.inflight.Dec()

		c.Next()

		path := routeLabel(c)
		method := c.Request.Method
		httpMetrics.requests.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpMetrics.duration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
		// Size is -1 when nothing was written.
		if n := c.Writer.Size(); n >= 0 {
			httpMetrics.respSize.WithLabelValues(method, path).Observe(float64(n))
		}
	}
}
