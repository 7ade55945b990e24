// Package metrics 提供 Prometheus 指标
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultNamespace = "villa_booking"

// Metrics HTTP 与预订流程的指标
type Metrics struct {
	httpRequests           *prometheus.CounterVec
	httpDuration           *prometheus.HistogramVec
	httpInFlight           prometheus.Gauge
	cacheHits              *prometheus.CounterVec
	cacheMisses            *prometheus.CounterVec
	bookingSubmissions     *prometheus.CounterVec
	bookingTransitions     *prometheus.CounterVec
	bookingCommitDuration  prometheus.Histogram
	notificationsPublished *prometheus.CounterVec
}

// Init 创建指标并注册到默认注册表，只应调用一次
func Init(namespace string) *Metrics {
	return New(namespace, prometheus.DefaultRegisterer)
}

// New 创建指标并注册到 reg，同一注册表重复注册会 panic
func New(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = defaultNamespace
	}
	f := promauto.With(reg)
	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return f.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help}, labels)
	}

	return &Metrics{
		httpRequests: counter("http_requests_total", "HTTP requests by route and status", "method", "path", "status"),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		httpInFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "HTTP requests currently being processed",
		}),
		cacheHits:          counter("cache_hits_total", "Cache hits", "cache"),
		cacheMisses:        counter("cache_misses_total", "Cache misses", "cache"),
		bookingSubmissions: counter("booking_submissions_total", "Booking submissions by result", "result"),
		bookingTransitions: counter("booking_transitions_total", "Booking status transitions", "to"),
		// 行锁内的提交事务，正常应在几十毫秒内
		bookingCommitDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "booking_commit_duration_seconds",
			Help:      "Duration of the locked booking commit transaction",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}),
		notificationsPublished: counter("notifications_published_total", "Booking notifications by sink and result", "sink", "result"),
	}
}

// Middleware 按路由模板记录请求数与耗时，未匹配的路由归为 unknown
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()
		m.httpInFlight.Inc()
		defer m.httpInFlight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unknown"
		}
		m.httpRequests.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// Handler 暴露默认注册表
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

func (m *Metrics) RecordCacheHit(cache string)  { m.cacheHits.WithLabelValues(cache).Inc() }
func (m *Metrics) RecordCacheMiss(cache string) { m.cacheMisses.WithLabelValues(cache).Inc() }

// RecordBookingSubmission result 为 accepted 或错误类别
func (m *Metrics) RecordBookingSubmission(result string) {
	m.bookingSubmissions.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordBookingTransition(to string) {
	m.bookingTransitions.WithLabelValues(to).Inc()
}

func (m *Metrics) ObserveBookingCommit(d time.Duration) {
	m.bookingCommitDuration.Observe(d.Seconds())
}

// RecordNotification result 为 ok 或 error
func (m *Metrics) RecordNotification(sink, result string) {
	m.notificationsPublished.WithLabelValues(sink, result).Inc()
}
