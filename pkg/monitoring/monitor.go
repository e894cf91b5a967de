package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	// 声学流式评分会话
	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "phonetic_active_sessions",
			Help: "Streaming sessions currently holding a slot",
		},
	)

	WaitingSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "phonetic_waiting_sessions",
			Help: "Sessions queued in the waiting room",
		},
	)

	// 语义评分队列
	SemanticJobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "semantic_jobs_total",
			Help: "Semantic scoring jobs by outcome",
		},
		[]string{"outcome"}, // ok / retry / dead / poison / orphan / stale
	)

	SemanticQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "semantic_queue_depth",
			Help: "Pending entries in the semantic job stream",
		},
	)

	RateBudgetWaits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "semantic_rate_budget_waits_total",
			Help: "Times a worker blocked waiting for the shared rate budget",
		},
	)

	AttemptsByStatus = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attempts_transitions_total",
			Help: "Attempt state transitions",
		},
		[]string{"to"},
	)
)

func Init() {
	prometheus.MustRegister(RequestCounter)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(ActiveSessions)
	prometheus.MustRegister(WaitingSessions)
	prometheus.MustRegister(SemanticJobsTotal)
	prometheus.MustRegister(SemanticQueueDepth)
	prometheus.MustRegister(RateBudgetWaits)
	prometheus.MustRegister(AttemptsByStatus)
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
