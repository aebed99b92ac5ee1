// Package report 缺陷报告媒体领域 - HTTP 处理
//
// 文件组织：
//   - handler.go: Handler 定义、路由与错误映射
//   - gif.go: GIF 合成相关接口（直接流程、延迟流程、状态、删除）
//   - media.go: 单个附件上传
//   - websocket.go: GIF 状态实时推送
//   - util.go: 响应与 multipart 读取工具
package report

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"report-media/internal/apiserver/enrich"
	"report-media/internal/apiserver/gifjob"
	"report-media/internal/gif"
	"report-media/internal/shared/cache"
	"report-media/internal/shared/eventbus"
	"report-media/internal/shared/metrics"
	"report-media/internal/shared/model"
	"report-media/internal/shared/objstore"
	"report-media/internal/shared/storage"
)

// GifJobs handler 需要的合成任务能力
type GifJobs interface {
	ProcessFrames(ctx context.Context, reportID string, frames []gifjob.Frame, opts ...gifjob.RunOption) (*gifjob.Result, error)
	StartDeferred(reportID string, opts ...gifjob.RunOption) *gifjob.Future
	DeleteGif(ctx context.Context, reportID string) error
}

// Deps Handler 依赖
//
// Cache 与 Events 可为 nil，此时状态查询只读存储层，WebSocket 只推送一次快照。
type Deps struct {
	Reports  storage.ReportStore
	Records  storage.MediaRecordStore
	Objects  objstore.ObjectStore
	Jobs     GifJobs
	Enricher *enrich.Enricher
	Cache    cache.JobStateCache
	Events   eventbus.JobEventBus
	Metrics  *metrics.Metrics
}

// Handler 报告媒体 HTTP 处理器
type Handler struct {
	reports  storage.ReportStore
	records  storage.MediaRecordStore
	objects  objstore.ObjectStore
	jobs     GifJobs
	enricher *enrich.Enricher
	cache    cache.JobStateCache
	events   eventbus.JobEventBus
	metrics  *metrics.Metrics

	maxUploadBytes int64
	waitTimeout    time.Duration // <= 0 时使用任务配置的等待时长
}

// NewHandler 创建处理器
func NewHandler(deps Deps) *Handler {
	h := &Handler{
		reports:        deps.Reports,
		records:        deps.Records,
		objects:        deps.Objects,
		jobs:           deps.Jobs,
		enricher:       deps.Enricher,
		cache:          deps.Cache,
		events:         deps.Events,
		metrics:        deps.Metrics,
		maxUploadBytes: DefaultMaxUploadBytes,
	}
	if h.enricher == nil {
		h.enricher = enrich.New(deps.Objects, nil)
	}
	return h
}

// SetMaxUploadBytes 设置单次请求体上限
func (h *Handler) SetMaxUploadBytes(n int64) {
	if n > 0 {
		h.maxUploadBytes = n
	}
}

// SetWaitTimeout 覆盖 generate-gif 的等待时长
func (h *Handler) SetWaitTimeout(d time.Duration) {
	h.waitTimeout = d
}

// RegisterRoutes 注册 REST 路由
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/reports/{id}", h.Get)
	mux.HandleFunc("POST /api/v1/reports/{id}/bitmaps", h.UploadBitmaps)
	mux.HandleFunc("GET /api/v1/reports/{id}/generate-gif", h.GenerateGif)
	mux.HandleFunc("GET /api/v1/reports/{id}/gif-status", h.GifStatus)
	mux.HandleFunc("DELETE /api/v1/reports/{id}/gif", h.DeleteGif)
	mux.HandleFunc("POST /api/v1/reports/{id}/media", h.UploadMedia)
}

// RegisterWSRoutes 注册 WebSocket 路由（需挂在 metrics 中间件之外）
func (h *Handler) RegisterWSRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws/reports/{id}/gif-status", h.HandleGifStatusWS)
}

// Get 获取 Report，媒体与中间帧附带签名 URL
// GET /api/v1/reports/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	report, err := h.reports.GetReport(r.Context(), id)
	if err != nil {
		h.writeFailure(w, "report.get", id, err)
		return
	}
	h.enricher.EnrichReport(r.Context(), report)
	writeJSON(w, http.StatusOK, report)
}

// statusFor 将领域错误映射为 HTTP 状态码
func statusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, gifjob.ErrWaitTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, gifjob.ErrJobInProgress),
		errors.Is(err, storage.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, gif.ErrInvalidFrame),
		errors.Is(err, gif.ErrNoFrames),
		errors.Is(err, gif.ErrInvalidDelay),
		errors.Is(err, model.ErrUnsupportedMediaType),
		errors.Is(err, gifjob.ErrNoFrames),
		errors.Is(err, gifjob.ErrNoGif),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeFailure 按错误类型写响应，5xx 不向调用方暴露内部细节
func (h *Handler) writeFailure(w http.ResponseWriter, op, reportID string, err error) {
	status := statusFor(err)
	log.Printf("[%s.failed] report_id=%s status=%d error=%v", op, reportID, status, err)
	if status == http.StatusInternalServerError {
		writeError(w, status, op+" failed")
		return
	}
	writeError(w, status, err.Error())
}
