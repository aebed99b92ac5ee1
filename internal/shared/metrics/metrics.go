// Package metrics Prometheus 指标定义
//
// 所有方法对 nil *Metrics 安全，未注入指标的组件（多见于单元测试）直接跳过记录。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 包含所有服务指标
type Metrics struct {
	// HTTP 请求指标
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// 对象存储指标
	StorageOpsTotal    *prometheus.CounterVec
	StorageOpDuration  *prometheus.HistogramVec
	StorageUploadBytes prometheus.Counter
	SignedURLsResolved *prometheus.CounterVec

	// GIF 任务指标
	GifJobsTotal     *prometheus.CounterVec
	GifJobDuration   *prometheus.HistogramVec
	GifJobsInFlight  prometheus.Gauge
	GifFramesEncoded prometheus.Counter
	GifWaitTimeouts  prometheus.Counter

	// WebSocket 指标
	WSConnectionsActive prometheus.Gauge
}

// NewMetrics 创建指标实例并注册到 reg（nil 时使用默认注册表）
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Current number of HTTP requests being processed",
			},
		),
		StorageOpsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "storage_operations_total",
				Help:      "Object storage operations by provider, operation and result",
			},
			[]string{"provider", "op", "result"},
		),
		StorageOpDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "storage_operation_duration_seconds",
				Help:      "Object storage operation duration in seconds (single attempt)",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"provider", "op"},
		),
		StorageUploadBytes: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "storage_upload_bytes_total",
				Help:      "Bytes successfully uploaded to object storage",
			},
		),
		SignedURLsResolved: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "signed_urls_resolved_total",
				Help:      "Signed URL resolutions by result",
			},
			[]string{"result"},
		),
		GifJobsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "gif_jobs_total",
				Help:      "GIF jobs by flow and final status",
			},
			[]string{"flow", "status"},
		),
		GifJobDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "gif_job_duration_seconds",
				Help:      "GIF job duration in seconds",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"flow"},
		),
		GifJobsInFlight: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "gif_jobs_in_flight",
				Help:      "GIF jobs currently running",
			},
		),
		GifFramesEncoded: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "gif_frames_encoded_total",
				Help:      "Frames written into GIF output",
			},
		),
		GifWaitTimeouts: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "gif_wait_timeouts_total",
				Help:      "Callers that stopped waiting for a deferred GIF job",
			},
		),
		WSConnectionsActive: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "websocket_connections_active",
				Help:      "Active WebSocket connections",
			},
		),
	}
}

// MetricsMiddleware 创建 HTTP 指标中间件
//
// path 使用 ServeMux 匹配到的路由模式，避免 Report ID 造成高基数。
func (m *Metrics) MetricsMiddleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.HTTPRequestsInFlight.Inc()
		defer m.HTTPRequestsInFlight.Dec()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		path := r.Pattern
		if path == "" {
			path = "unmatched"
		}
		m.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// responseWriter 包装 http.ResponseWriter 以捕获状态码
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap 供 http.ResponseController 与 websocket 升级访问底层连接
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Handler 返回 Prometheus HTTP Handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// HandlerFor 返回指定注册表的 Prometheus HTTP Handler
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// RecordStorageOp 记录一次对象存储操作（单次尝试）
func (m *Metrics) RecordStorageOp(provider, op string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.StorageOpsTotal.WithLabelValues(provider, op, result).Inc()
	m.StorageOpDuration.WithLabelValues(provider, op).Observe(duration.Seconds())
}

// RecordUploadBytes 记录上传成功的字节数
func (m *Metrics) RecordUploadBytes(n int) {
	if m == nil {
		return
	}
	m.StorageUploadBytes.Add(float64(n))
}

// RecordSignedURL 记录签名 URL 解析结果
func (m *Metrics) RecordSignedURL(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.SignedURLsResolved.WithLabelValues("success").Inc()
	} else {
		m.SignedURLsResolved.WithLabelValues("error").Inc()
	}
}

// GifJobStarted 记录任务开始
func (m *Metrics) GifJobStarted() {
	if m == nil {
		return
	}
	m.GifJobsInFlight.Inc()
}

// GifJobFinished 记录任务结束
func (m *Metrics) GifJobFinished(flow, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.GifJobsInFlight.Dec()
	m.GifJobsTotal.WithLabelValues(flow, status).Inc()
	m.GifJobDuration.WithLabelValues(flow).Observe(duration.Seconds())
}

// RecordFramesEncoded 记录写入 GIF 的帧数
func (m *Metrics) RecordFramesEncoded(n int) {
	if m == nil {
		return
	}
	m.GifFramesEncoded.Add(float64(n))
}

// RecordWaitTimeout 记录调用方等待超时
func (m *Metrics) RecordWaitTimeout() {
	if m == nil {
		return
	}
	m.GifWaitTimeouts.Inc()
}

// WSConnected WebSocket 连接建立/断开
func (m *Metrics) WSConnected(delta int) {
	if m == nil {
		return
	}
	m.WSConnectionsActive.Add(float64(delta))
}
