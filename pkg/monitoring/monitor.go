package monitoring

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "osian",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "osian",
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests",
			Buckets:   []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "endpoint"},
	)

	InFlightRequests = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "osian",
			Name:      "http_requests_in_flight",
			Help:      "HTTP requests currently being served",
		},
	)

	// 被限流拒绝的请求，route 为匹配到的路由
	RateLimited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "osian",
			Name:      "rate_limited_requests_total",
			Help:      "Requests rejected by the rate limiter",
		},
		[]string{"route"},
	)

	// 按成绩状态（pending / graded）统计提交次数
	QuizSubmissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "osian",
			Name:      "quiz_submissions_total",
			Help:      "Total number of accepted quiz submissions",
		},
		[]string{"status"},
	)

	QuizCacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "osian",
			Name:      "quiz_cache_lookups_total",
			Help:      "Quiz definition cache lookups by result",
		},
		[]string{"result"},
	)
)

var initOnce sync.Once

func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			RequestCounter,
			RequestDuration,
			InFlightRequests,
			RateLimited,
			QuizSubmissions,
			QuizCacheLookups,
		)
	})
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		InFlightRequests.Inc()
		defer InFlightRequests.Dec()

		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}

		RequestCounter.WithLabelValues(
			c.Request.Method,
			endpoint,
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			endpoint,
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
