package report

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"report-media/internal/shared/model"
	"report-media/internal/shared/objstore"
)

// UploadMedia 上传单个附件并追加到 Report.Media
// POST /api/v1/reports/{id}/media
//
// multipart 字段 media。GIF 只能由合成任务生成，image/gif 附件返回 400。
func (h *Handler) UploadMedia(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	report, err := h.reports.GetReport(ctx, id)
	if err != nil {
		h.writeFailure(w, "report.media", id, err)
		return
	}
	if err := h.parseMultipart(w, r); err != nil {
		h.writeFailure(w, "report.media", id, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["media"]
	if len(headers) != 1 {
		h.writeFailure(w, "report.media", id, fmt.Errorf("%w: expected exactly one media file, got %d", errBadRequest, len(headers)))
		return
	}
	u, err := readUpload(headers[0])
	if err != nil {
		h.writeFailure(w, "report.media", id, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}

	category, err := model.ClassifyMIME(u.MimeType)
	if err != nil {
		h.writeFailure(w, "report.media", id, err)
		return
	}
	if category == model.MediaGIF {
		h.writeFailure(w, "report.media", id, fmt.Errorf("%w: gif attachments are generated from bitmaps", model.ErrUnsupportedMediaType))
		return
	}

	name := objstore.ObjectName(objstore.NamespaceOf(report), category, u.Filename, u.MimeType)
	if err := h.objects.Upload(ctx, u.Data, name, u.MimeType); err != nil {
		h.writeFailure(w, "report.media", id, err)
		return
	}

	rec := &model.MediaRecord{
		ID:         uuid.NewString(),
		ReportID:   id,
		ObjectName: name,
		Category:   category,
		MimeType:   u.MimeType,
		Size:       int64(len(u.Data)),
		Role:       model.MediaRoleMedia,
		CreatedAt:  time.Now(),
	}
	if err := h.records.CreateMediaRecord(ctx, rec); err != nil {
		h.writeFailure(w, "report.media", id, err)
		return
	}
	ref := rec.Ref()
	if err := h.reports.AppendMedia(ctx, id, ref); err != nil {
		h.writeFailure(w, "report.media", id, err)
		return
	}
	log.Printf("[report.media.complete] report_id=%s object=%s category=%s size=%d", id, name, category, rec.Size)

	ref.ResolvedURL = h.enricher.Resolve(ctx, []string{name})[name]
	writeJSON(w, http.StatusCreated, ref)
}
