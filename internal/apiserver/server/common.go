// Package server HTTP 服务入口
//
// 本包组装各领域 Handler 并提供公共中间件：
//   - common.go: Handler 定义与健康检查
//   - handler.go: 路由与中间件
package server

import (
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"report-media/internal/apiserver/report"
	"report-media/internal/shared/metrics"
	"report-media/pkg/logging"
)

// BlobPrefix 内存对象存储的签名 URL 路径前缀
const BlobPrefix = "/blobs"

// Handler API 处理器
//
// 依赖说明：
//   - reports: 报告媒体领域接口（REST + WebSocket）
//   - metrics: Prometheus 指标（为 nil 时跳过 HTTP 指标）
//   - gatherer: /metrics 输出的注册表（为 nil 时使用默认注册表）
//   - blobs: 内存对象存储的下载处理器，仅 memory 后端时挂载
//   - logger: 请求日志（为 nil 时不记录）
type Handler struct {
	reports  *report.Handler
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	blobs    http.Handler
	logger   *logging.Logger
}

// NewHandler 创建 Handler 实例
func NewHandler(reports *report.Handler, m *metrics.Metrics) *Handler {
	return &Handler{reports: reports, metrics: m}
}

// SetGatherer 设置 /metrics 使用的注册表
func (h *Handler) SetGatherer(g prometheus.Gatherer) {
	h.gatherer = g
}

// SetLogger 设置请求日志器
func (h *Handler) SetLogger(l *logging.Logger) {
	h.logger = l
}

// SetBlobHandler 挂载签名 URL 下载处理器（路径前缀 BlobPrefix）
func (h *Handler) SetBlobHandler(blobs http.Handler) {
	h.blobs = blobs
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Health 健康检查接口
//
// 路由: GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
