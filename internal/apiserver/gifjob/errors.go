package gifjob

import (
	"errors"
	"fmt"
)

var (
	// ErrJobInProgress 已有进行中的任务，或并发启动时条件写失败
	ErrJobInProgress = errors.New("gif job already in progress")

	// ErrWaitTimeout 调用方等待超时（任务仍在后台继续）
	ErrWaitTimeout = errors.New("timed out waiting for gif job")

	// ErrNoFrames 没有可合成的帧
	ErrNoFrames = errors.New("no frames to process")

	// ErrNoGif Report 没有已生成的 GIF
	ErrNoGif = errors.New("report has no generated gif")
)

// Phase 任务阶段
type Phase string

const (
	PhaseLoad         Phase = "load"
	PhaseStart        Phase = "start"
	PhaseUploadFrames Phase = "upload_frames"
	PhaseFetchFrames  Phase = "fetch_frames"
	PhaseValidate     Phase = "validate"
	PhaseEncode       Phase = "encode"
	PhaseUploadGif    Phase = "upload_gif"
	PhaseCleanup      Phase = "cleanup"
	PhaseLink         Phase = "link"
	PhaseComplete     Phase = "complete"
	PhaseWait         Phase = "wait"
	PhaseDelete       Phase = "delete"
)

// JobError 携带 Report ID 与失败阶段的任务错误
type JobError struct {
	ReportID string
	Phase    Phase
	Err      error
}

func (e *JobError) Error() string {
	return fmt.Sprintf("gif job %s failed at %s: %v", e.ReportID, e.Phase, e.Err)
}

func (e *JobError) Unwrap() error { return e.Err }

func wrap(reportID string, phase Phase, err error) error {
	if err == nil {
		return nil
	}
	var je *JobError
	if errors.As(err, &je) {
		return err
	}
	return &JobError{ReportID: reportID, Phase: phase, Err: err}
}
