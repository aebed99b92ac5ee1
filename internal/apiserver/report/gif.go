package report

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"report-media/internal/apiserver/gifjob"
	"report-media/internal/shared/cache"
	"report-media/internal/shared/model"
)

// 状态来源
const (
	sourceCache = "cache"
	sourceStore = "store"
)

// GifStatusResponse GIF 合成状态
//
// 缓存中有任务运行时状态时附带阶段与进度，否则只有存储层的状态。
type GifStatusResponse struct {
	ReportID    string          `json:"report_id"`
	Status      model.GifStatus `json:"status"`
	Phase       string          `json:"phase,omitempty"`
	Flow        string          `json:"flow,omitempty"`
	FramesDone  int             `json:"frames_done,omitempty"`
	FramesTotal int             `json:"frames_total,omitempty"`
	Error       string          `json:"error,omitempty"`
	Gif         *model.MediaRef `json:"gif,omitempty"`
	Source      string          `json:"source"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// UploadBitmaps 直接流程：上传原始帧并同步合成 GIF
// POST /api/v1/reports/{id}/bitmaps
//
// multipart 字段 bitmaps 可重复，按出现顺序作为帧顺序。
// 查询参数 delay 为帧间隔（百分之一秒），缺省使用配置值。
func (h *Handler) UploadBitmaps(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	delay, err := queryDelay(r)
	if err != nil {
		h.writeFailure(w, "report.bitmaps", id, err)
		return
	}
	if err := h.parseMultipart(w, r); err != nil {
		h.writeFailure(w, "report.bitmaps", id, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["bitmaps"]
	frames := make([]gifjob.Frame, 0, len(headers))
	for i, fh := range headers {
		u, err := readUpload(fh)
		if err != nil {
			h.writeFailure(w, "report.bitmaps", id, fmt.Errorf("%w: bitmap %d: %v", errBadRequest, i, err))
			return
		}
		frames = append(frames, gifjob.Frame{Filename: u.Filename, MimeType: u.MimeType, Data: u.Data})
	}
	log.Printf("[report.bitmaps.start] report_id=%s frames=%d delay=%d", id, len(frames), delay)

	res, err := h.jobs.ProcessFrames(r.Context(), id, frames, gifjob.WithDelay(delay))
	if err != nil {
		h.writeFailure(w, "report.bitmaps", id, err)
		return
	}
	h.resolveResult(r.Context(), res)
	log.Printf("[report.bitmaps.complete] report_id=%s already_processed=%t", id, res.AlreadyProcessed)
	writeJSON(w, http.StatusOK, res)
}

// GenerateGif 延迟流程：用已上传的中间帧合成 GIF
// GET /api/v1/reports/{id}/generate-gif
//
// 调用方最多等待配置的时长，超时返回 504，任务在后台继续执行。
// 调用方断开连接同样不影响任务。
func (h *Handler) GenerateGif(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	delay, err := queryDelay(r)
	if err != nil {
		h.writeFailure(w, "report.generate_gif", id, err)
		return
	}

	log.Printf("[report.generate_gif.start] report_id=%s", id)
	future := h.jobs.StartDeferred(id, gifjob.WithDelay(delay))
	res, err := future.Wait(r.Context(), h.waitTimeout)
	if err != nil {
		h.writeFailure(w, "report.generate_gif", id, err)
		return
	}
	h.resolveResult(r.Context(), res)
	log.Printf("[report.generate_gif.complete] report_id=%s already_processed=%t", id, res.AlreadyProcessed)
	writeJSON(w, http.StatusOK, res)
}

// GifStatus 查询 GIF 合成状态
// GET /api/v1/reports/{id}/gif-status
func (h *Handler) GifStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	status, err := h.currentStatus(r.Context(), id)
	if err != nil {
		h.writeFailure(w, "report.gif_status", id, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// DeleteGif 删除已生成的 GIF
// DELETE /api/v1/reports/{id}/gif
func (h *Handler) DeleteGif(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.jobs.DeleteGif(r.Context(), id); err != nil {
		h.writeFailure(w, "report.delete_gif", id, err)
		return
	}
	log.Printf("[report.delete_gif.complete] report_id=%s", id)
	writeJSON(w, http.StatusOK, map[string]string{"report_id": id, "status": string(model.GifStatusDeleted)})
}

// currentStatus 以存储层状态为准，缓存只补充进度与失败原因
//
// 存储层为 PROCESSING 时才采用缓存中的阶段与帧进度，缓存里残留的
// PROCESSING 不会覆盖已落库的终态。Report 不存在时返回 ErrNotFound。
func (h *Handler) currentStatus(ctx context.Context, id string) (*GifStatusResponse, error) {
	report, err := h.reports.GetReport(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := &GifStatusResponse{
		ReportID:  id,
		Status:    report.CurrentGifStatus(),
		Source:    sourceStore,
		UpdatedAt: report.GifStatusUpdatedAt,
	}

	switch resp.Status {
	case model.GifStatusProcessing:
		if state := h.jobState(ctx, id); state != nil && model.GifStatus(state.Status) == model.GifStatusProcessing {
			resp.Phase = state.Phase
			resp.Flow = state.Flow
			resp.FramesDone = state.FramesDone
			resp.FramesTotal = state.FramesTotal
			resp.Source = sourceCache
			resp.UpdatedAt = state.UpdatedAt
		}
	case model.GifStatusCompleted:
		if g := report.GifMedia(); g != nil {
			ref := *g
			ref.ResolvedURL = h.enricher.Resolve(ctx, []string{ref.ObjectName})[ref.ObjectName]
			resp.Gif = &ref
		}
	case model.GifStatusFailed:
		// 失败原因只保存在缓存中
		if state := h.jobState(ctx, id); state != nil && model.GifStatus(state.Status) == model.GifStatusFailed {
			resp.Phase = state.Phase
			resp.Error = state.Error
		}
	}
	return resp, nil
}

// jobState 读取缓存中的运行时状态，缓存不可用时返回 nil
func (h *Handler) jobState(ctx context.Context, id string) *cache.JobState {
	if h.cache == nil {
		return nil
	}
	state, err := h.cache.GetJobState(ctx, id)
	if err != nil {
		log.Printf("[report.gif_status.cache.failed] report_id=%s error=%v", id, err)
		return nil
	}
	return state
}

// resolveResult 为结果中的 GIF 填充签名 URL
func (h *Handler) resolveResult(ctx context.Context, res *gifjob.Result) {
	if res == nil || res.Gif == nil {
		return
	}
	urls := h.enricher.Resolve(ctx, []string{res.Gif.ObjectName})
	res.Gif.ResolvedURL = urls[res.Gif.ObjectName]
}
