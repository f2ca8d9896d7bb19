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

	ActiveExamSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "exam_sessions_active",
			Help: "Number of live in-progress exam sessions",
		},
	)

	AutoSubmitTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exam_auto_submit_total",
			Help: "Auto-submitted exam sessions by trigger",
		},
		[]string{"trigger"}, // countdown, sweeper
	)

	AnswerPersistFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "exam_answer_persist_failures_total",
			Help: "Best-effort answer writes that failed and were retained in the buffer",
		},
	)
)

func Init() {
	prometheus.MustRegister(RequestCounter)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(ActiveExamSessions)
	prometheus.MustRegister(AutoSubmitTotal)
	prometheus.MustRegister(AnswerPersistFailures)
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
