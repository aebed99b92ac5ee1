package gifjob

import (
	"context"

	"report-media/internal/shared/eventbus"
	"report-media/internal/shared/model"
)

// DeleteGif 删除已生成的 GIF：移除媒体引用、Blob 与记录，状态迁移到 DELETED
func (o *Orchestrator) DeleteGif(ctx context.Context, reportID string) error {
	report, err := o.reports.GetReport(ctx, reportID)
	if err != nil {
		return wrap(reportID, PhaseLoad, err)
	}

	status := report.CurrentGifStatus()
	if !status.CanTransitionTo(model.GifStatusDeleted) {
		if status == model.GifStatusProcessing {
			return wrap(reportID, PhaseDelete, ErrJobInProgress)
		}
		return wrap(reportID, PhaseDelete, ErrNoGif)
	}

	// 先迁移状态，避免与重新发起的任务交错
	if _, err := o.reports.UpdateGifStatus(ctx, reportID, status, report.GifVersion, model.GifStatusDeleted); err != nil {
		return wrap(reportID, PhaseDelete, casError(err))
	}

	if ref := report.GifMedia(); ref != nil {
		if err := o.reports.RemoveMedia(ctx, reportID, ref.ObjectName); err != nil {
			return wrap(reportID, PhaseDelete, err)
		}
		o.removeBlob(ctx, reportID, ref.ObjectName)
	}

	o.logger.WithReportID(reportID).Info("GIF deleted")
	if err := o.cache.DeleteJobState(ctx, reportID); err != nil {
		o.logger.WithReportID(reportID).WithError(err).Warn("Failed to clear job state")
	}
	o.publish(ctx, reportID, eventbus.EventStatusChanged, map[string]interface{}{"status": string(model.GifStatusDeleted)})
	return nil
}
