package server

import (
	"net/http"
	"time"

	"report-media/internal/shared/metrics"
	"report-media/pkg/logging"
)

// Router 返回配置好的 HTTP 路由
//
// 路由规则：
//
// 健康检查与指标:
//   - GET /health
//   - GET /metrics
//
// 报告媒体 (Report):
//   - GET    /api/v1/reports/{id}              - 获取报告（附带签名 URL）
//   - POST   /api/v1/reports/{id}/bitmaps      - 上传原始帧并合成 GIF
//   - GET    /api/v1/reports/{id}/generate-gif - 用已上传的中间帧合成 GIF
//   - GET    /api/v1/reports/{id}/gif-status   - 查询合成状态
//   - DELETE /api/v1/reports/{id}/gif          - 删除已生成的 GIF
//   - POST   /api/v1/reports/{id}/media        - 上传附件
//
// 内存对象存储（仅 memory 后端）:
//   - GET    /blobs/{object...}                - 校验签名后下载
//
// WebSocket:
//   - GET    /ws/reports/{id}/gif-status       - 合成状态实时推送
func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.Health)

	if h.gatherer != nil {
		mux.Handle("GET /metrics", metrics.HandlerFor(h.gatherer))
	} else {
		mux.Handle("GET /metrics", metrics.Handler())
	}

	h.reports.RegisterRoutes(mux)

	if h.blobs != nil {
		mux.Handle("GET "+BlobPrefix+"/", h.blobs)
	}

	apiHandler := h.metrics.MetricsMiddleware(mux)
	corsHandler := corsMiddleware(requestLogMiddleware(h.logger, apiHandler))

	// WebSocket 绕过 metrics 中间件（长连接会拉高请求耗时分布）
	topMux := http.NewServeMux()
	h.reports.RegisterWSRoutes(topMux)
	topMux.Handle("/", corsHandler)

	return topMux
}

// corsMiddleware 添加 CORS 头支持跨域请求
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// requestLogMiddleware 记录每个请求的方法、路由、状态码与耗时
func requestLogMiddleware(l *logging.Logger, next http.Handler) http.Handler {
	if l == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		path := r.Pattern
		if path == "" {
			path = r.URL.Path
		}
		l.HTTPRequestLog(r.Method, path, rec.status, time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
