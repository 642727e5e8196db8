// Package metrics 暴露习惯事件、洞察刷新与 HTTP 请求的 Prometheus 指标。
package metrics

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 持有所有指标，注册在独立的 Registry 上，便于测试中重复创建
type Metrics struct {
	registry *prometheus.Registry

	HabitEvents       *prometheus.CounterVec
	InsightRefreshes  prometheus.Counter
	InsightsAvailable prometheus.Gauge
	HTTPRequests      *prometheus.CounterVec
	HTTPDuration      *prometheus.HistogramVec
}

// New 创建并注册全部指标
//
//   - habitlog_habit_events_total{event}
//   - habitlog_insight_refreshes_total
//   - habitlog_insights_available
//   - habitlog_http_requests_total{method,route,status}
//   - habitlog_http_request_duration_seconds{method,route}
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		HabitEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "habitlog_habit_events_total",
				Help: "Total number of habit mutations by event",
			},
			[]string{"event"},
		),
		InsightRefreshes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "habitlog_insight_refreshes_total",
			Help: "Total number of background insight refreshes",
		}),
		InsightsAvailable: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "habitlog_insights_available",
			Help: "Number of insights in the latest snapshot",
		}),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "habitlog_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "habitlog_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}

	reg.MustRegister(
		m.HabitEvents,
		m.InsightRefreshes,
		m.InsightsAvailable,
		m.HTTPRequests,
		m.HTTPDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// HabitEvent 记录一次习惯变更
func (m *Metrics) HabitEvent(event string) {
	m.HabitEvents.WithLabelValues(event).Inc()
}

// InsightsRefreshed 记录一次洞察刷新以及快照中的条数
func (m *Metrics) InsightsRefreshed(count int) {
	m.InsightRefreshes.Inc()
	m.InsightsAvailable.Set(float64(count))
}

// Middleware 统计请求数与耗时，未匹配路由记为 unmatched
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		timer := prometheus.NewTimer(prometheus.ObserverFunc(func(seconds float64) {
			m.HTTPDuration.WithLabelValues(c.Request.Method, routeLabel(c)).Observe(seconds)
		}))
		c.Next()
		timer.ObserveDuration()
		m.HTTPRequests.WithLabelValues(c.Request.Method, routeLabel(c), strconv.Itoa(c.Writer.Status())).Inc()
	}
}

// Handler 返回 /metrics 的处理器
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Gatherer 暴露底层 Registry，供测试读取
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

func routeLabel(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return "unmatched"
}
