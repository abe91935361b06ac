package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/emilythestrangee/reddit-clone/voteledger/internal/votes"
)

// Metrics owns a private Prometheus registry for the API process.
type Metrics struct {
	registry *prometheus.Registry

	voteOps       *prometheus.HistogramVec
	voteConflicts *prometheus.CounterVec
	voteRetries   *prometheus.CounterVec

	apiRequests *prometheus.HistogramVec
	apiInflight prometheus.Gauge
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		voteOps: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "voteledger",
			Name:      "vote_operation_duration_seconds",
			Help:      "Duration of vote engine operations by outcome.",
			Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"operation", "status"}),
		voteConflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voteledger",
			Name:      "vote_conflicts_total",
			Help:      "Vote operations that ended in a conflict after retries.",
		}, []string{"operation"}),
		voteRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voteledger",
			Name:      "vote_retries_total",
			Help:      "Transaction attempts re-run after a transient failure or conflict.",
		}, []string{"operation"}),
		apiRequests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "voteledger",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		apiInflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "voteledger",
			Name:      "http_requests_inflight",
			Help:      "HTTP requests currently being served.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.voteOps,
		m.voteConflicts,
		m.voteRetries,
		m.apiRequests,
		m.apiInflight,
	)
	return m
}

// Registry exposes the private registry for gathering outside the handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// GinMiddleware records latency per matched route.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		m.apiInflight.Inc()
		defer m.apiInflight.Dec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.apiRequests.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}

type voteHooks struct {
	metrics *Metrics
}

// NewVoteHooks adapts Metrics to the vote engine's hook interface.
func NewVoteHooks(metrics *Metrics) votes.Hooks {
	return &voteHooks{metrics: metrics}
}

func (h *voteHooks) ObserveOperation(name, status string, dur time.Duration) {
	if h == nil || h.metrics == nil {
		return
	}
	h.metrics.voteOps.WithLabelValues(strings.TrimSpace(name), strings.TrimSpace(status)).Observe(dur.Seconds())
}

func (h *voteHooks) IncConflict(name string) {
	if h == nil || h.metrics == nil {
		return
	}
	h.metrics.voteConflicts.WithLabelValues(strings.TrimSpace(name)).Inc()
}

func (h *voteHooks) IncRetry(name string) {
	if h == nil || h.metrics == nil {
		return
	}
	h.metrics.voteRetries.WithLabelValues(strings.TrimSpace(name)).Inc()
}
