package gifjob

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"report-media/internal/gif"
	"report-media/internal/shared/model"
	"report-media/internal/shared/objstore"
	"report-media/internal/shared/storage"
)

// gifFilename 用于推导 GIF 对象扩展名
const gifFilename = "animation.gif"

// ProcessFrames 直接流程：调用方提供原始帧
//
// 帧先作为中间帧上传并记录到 Report，再校验、合成、上传 GIF。
// Report 已 COMPLETED 时不做任何处理，返回 AlreadyProcessed。
func (o *Orchestrator) ProcessFrames(ctx context.Context, reportID string, frames []Frame, opts ...RunOption) (*Result, error) {
	if err := o.sem.Acquire(ctx, 1); err != nil {
		return nil, wrap(reportID, PhaseStart, err)
	}
	defer o.sem.Release(1)

	j, done, err := o.begin(ctx, reportID, FlowDirect, opts)
	if err != nil || done != nil {
		return done, err
	}
	j.total = len(frames)

	if len(frames) == 0 {
		return nil, j.fail(ctx, PhaseUploadFrames, ErrNoFrames)
	}

	j.phase(ctx, PhaseUploadFrames)
	refs, err := j.uploadFrames(ctx, frames)
	if err != nil {
		return nil, j.fail(ctx, PhaseUploadFrames, err)
	}

	data := make([][]byte, len(frames))
	for i := range frames {
		data[i] = frames[i].Data
	}
	return j.encodeAndLink(ctx, data, refs)
}

// uploadFrames 上传中间帧并写入 Report.IntermediateFrames
func (j *job) uploadFrames(ctx context.Context, frames []Frame) ([]model.MediaRef, error) {
	ns := objstore.NamespaceOf(j.report)
	refs := make([]model.MediaRef, 0, len(frames))

	for i, f := range frames {
		category, err := model.ClassifyMIME(f.MimeType)
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}
		name := objstore.ObjectName(ns, category, f.Filename, f.MimeType)
		if err := j.o.objects.Upload(ctx, f.Data, name, f.MimeType); err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}

		rec := &model.MediaRecord{
			ID:         uuid.NewString(),
			ReportID:   j.report.ID,
			ObjectName: name,
			Category:   category,
			MimeType:   f.MimeType,
			Size:       int64(len(f.Data)),
			Role:       model.MediaRoleFrame,
			CreatedAt:  j.o.now(),
		}
		if err := j.o.records.CreateMediaRecord(ctx, rec); err != nil {
			return nil, fmt.Errorf("record frame %d: %w", i, err)
		}
		refs = append(refs, rec.Ref())
	}

	if err := j.o.reports.SetIntermediateFrames(ctx, j.report.ID, refs); err != nil {
		return nil, fmt.Errorf("save intermediate frames: %w", err)
	}
	j.report.IntermediateFrames = refs
	return refs, nil
}

// encodeAndLink 两个流程共用的后半段：校验 → 合成 → 上传 GIF → 清理中间帧 → 关联 → COMPLETED
func (j *job) encodeAndLink(ctx context.Context, data [][]byte, frameRefs []model.MediaRef) (*Result, error) {
	o := j.o

	j.phase(ctx, PhaseValidate)
	if err := o.encoder.Validate(data); err != nil {
		return nil, j.fail(ctx, PhaseValidate, err)
	}

	j.phase(ctx, PhaseEncode)
	encoded, err := o.encoder.Encode(ctx, data, j.delay, gif.WithProgress(j.progress(ctx)))
	// 原始帧在合成后不再使用
	clear(data)
	if err != nil {
		return nil, j.fail(ctx, PhaseEncode, err)
	}
	o.metrics.RecordFramesEncoded(encoded.FrameCount)

	j.phase(ctx, PhaseUploadGif)
	gifRef, err := j.uploadGif(ctx, encoded.Bytes)
	if err != nil {
		return nil, j.fail(ctx, PhaseUploadGif, err)
	}

	j.phase(ctx, PhaseCleanup)
	j.deleteFrames(ctx, frameRefs)

	j.phase(ctx, PhaseLink)
	if err := j.link(ctx, gifRef); err != nil {
		return nil, j.fail(ctx, PhaseLink, err)
	}

	return j.complete(ctx, gifRef)
}

func (j *job) uploadGif(ctx context.Context, content []byte) (model.MediaRef, error) {
	const mimeType = "image/gif"
	name := objstore.ObjectName(objstore.NamespaceOf(j.report), model.MediaGIF, gifFilename, mimeType)
	if err := j.o.objects.Upload(ctx, content, name, mimeType); err != nil {
		return model.MediaRef{}, err
	}

	rec := &model.MediaRecord{
		ID:         uuid.NewString(),
		ReportID:   j.report.ID,
		ObjectName: name,
		Category:   model.MediaGIF,
		MimeType:   mimeType,
		Size:       int64(len(content)),
		Role:       model.MediaRoleMedia,
		CreatedAt:  j.o.now(),
	}
	if err := j.o.records.CreateMediaRecord(ctx, rec); err != nil {
		return model.MediaRef{}, fmt.Errorf("record gif: %w", err)
	}
	return rec.Ref(), nil
}

// deleteFrames 删除中间帧 Blob 及其记录，失败只记日志
func (j *job) deleteFrames(ctx context.Context, refs []model.MediaRef) {
	for _, ref := range refs {
		j.o.removeBlob(ctx, j.report.ID, ref.ObjectName)
	}
}

// link 把 GIF 关联到 Report 并清空中间帧
//
// Report 上遗留的旧 GIF 先移除，保证 COMPLETED 时只有一个 GIF 媒体。
func (j *job) link(ctx context.Context, gifRef model.MediaRef) error {
	if old := j.report.GifMedia(); old != nil && old.ObjectName != gifRef.ObjectName {
		if err := j.o.reports.RemoveMedia(ctx, j.report.ID, old.ObjectName); err != nil {
			return fmt.Errorf("remove previous gif: %w", err)
		}
		j.o.removeBlob(ctx, j.report.ID, old.ObjectName)
	}
	if err := j.o.reports.AppendMedia(ctx, j.report.ID, gifRef); err != nil {
		return fmt.Errorf("append gif media: %w", err)
	}
	if err := j.o.reports.ClearIntermediateFrames(ctx, j.report.ID); err != nil {
		return fmt.Errorf("clear intermediate frames: %w", err)
	}
	return nil
}

// removeBlob 删除 Blob 及其记录，失败只记日志
func (o *Orchestrator) removeBlob(ctx context.Context, reportID, objectName string) {
	log := o.logger.WithReportID(reportID)
	if err := o.objects.Delete(ctx, objectName); err != nil {
		log.WithError(err).Warn("Failed to delete blob", "object", objectName)
		return
	}
	if err := o.records.DeleteMediaRecord(ctx, objectName); err != nil && !errors.Is(err, storage.ErrNotFound) {
		log.WithError(err).Warn("Failed to delete media record", "object", objectName)
	}
}
