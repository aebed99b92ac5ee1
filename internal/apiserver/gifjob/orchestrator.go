// Package gifjob GIF 合成任务编排
//
// Orchestrator 负责把一组截图帧变成 Report 上的一个 GIF 媒体：
//
//	校验 Report → PROCESSING → 上传/下载帧 → 合成 → 上传 GIF
//	→ 删除中间帧 → 关联到 Report → COMPLETED
//
// 任一步骤失败时迁移到 FAILED 并返回 *JobError。
// 状态迁移均为 (status, version) 条件写，同一 Report 上只有一个任务能进入 PROCESSING。
// 已上传的中间帧或 GIF 在后续步骤失败时不做回滚。
package gifjob

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"report-media/internal/gif"
	"report-media/internal/shared/cache"
	"report-media/internal/shared/eventbus"
	"report-media/internal/shared/metrics"
	"report-media/internal/shared/model"
	"report-media/internal/shared/objstore"
	"report-media/internal/shared/storage"
	"report-media/pkg/logging"
)

// 任务入口
const (
	FlowDirect   = "direct"
	FlowDeferred = "deferred"
)

// FrameEncoder 帧合成能力
type FrameEncoder interface {
	Validate(frames [][]byte) error
	Encode(ctx context.Context, frames [][]byte, delayCentiseconds int, opts ...gif.EncodeOption) (*gif.EncodedGIF, error)
}

// FrameFetcher 通过签名 URL 下载对象
type FrameFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Frame 调用方上传的一帧原始数据
type Frame struct {
	Filename string
	MimeType string
	Data     []byte
}

// Result 任务结果
type Result struct {
	ReportID         string          `json:"report_id"`
	Status           model.GifStatus `json:"gif_status"`
	Gif              *model.MediaRef `json:"gif,omitempty"`
	FrameCount       int             `json:"frame_count"`
	AlreadyProcessed bool            `json:"already_processed"`
}

// Deps 编排器依赖
type Deps struct {
	Reports storage.ReportStore
	Records storage.MediaRecordStore
	Objects objstore.ObjectStore
	Fetcher FrameFetcher
	Encoder FrameEncoder
	Cache   cache.JobStateCache  // 可为 nil
	Events  eventbus.JobEventBus // 可为 nil
	Metrics *metrics.Metrics     // 可为 nil
	Logger  *logging.Logger      // 可为 nil
}

// Option 编排器可选项
type Option func(*Orchestrator)

// WithClock 替换时钟（测试中用于模拟 PROCESSING 过期）
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// Orchestrator GIF 合成任务编排器
type Orchestrator struct {
	cfg     *Config
	reports storage.ReportStore
	records storage.MediaRecordStore
	objects objstore.ObjectStore
	fetcher FrameFetcher
	encoder FrameEncoder
	cache   cache.JobStateCache
	events  eventbus.JobEventBus
	metrics *metrics.Metrics
	logger  *logging.Logger
	now     func() time.Time

	sem      *semaphore.Weighted
	inflight sync.WaitGroup // 后台任务
}

// New 创建编排器
func New(deps Deps, cfg *Config, opts ...Option) *Orchestrator {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	cfg.Validate()

	o := &Orchestrator{
		cfg:     cfg,
		reports: deps.Reports,
		records: deps.Records,
		objects: deps.Objects,
		fetcher: deps.Fetcher,
		encoder: deps.Encoder,
		cache:   deps.Cache,
		events:  deps.Events,
		metrics: deps.Metrics,
		logger:  deps.Logger,
		now:     time.Now,
		sem:     semaphore.NewWeighted(int64(cfg.Workers)),
	}
	if o.encoder == nil {
		o.encoder = gif.NewEncoder()
	}
	if o.fetcher == nil {
		o.fetcher = objstore.NewFetcher(nil)
	}
	if o.cache == nil {
		o.cache = cache.NewNoOpCache()
	}
	if o.events == nil {
		o.events = eventbus.NewNoOpEventBus()
	}
	if o.logger == nil {
		o.logger = logging.Default("gifjob")
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Config 返回当前配置
func (o *Orchestrator) Config() *Config {
	return o.cfg
}

// Shutdown 等待后台任务结束，ctx 结束时提前返回
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ============================================================================
// 任务生命周期
// ============================================================================

// job 一次合成任务的运行时上下文
type job struct {
	o        *Orchestrator
	report   *model.Report
	version  int64
	flow     string
	start    time.Time
	total    int
	delay    int
	log      *logging.Logger
	finished bool
}

// RunOption 单次任务的可选项
type RunOption func(*job)

// WithDelay 覆盖帧间隔（百分之一秒），cs <= 0 时沿用配置值
//
// 超过 gif.MaxDelay 的值在任务开始前被拒绝，Report 状态保持不变。
func WithDelay(cs int) RunOption {
	return func(j *job) {
		if cs > 0 {
			j.delay = cs
		}
	}
}

func (j *job) apply(opts []RunOption) {
	for _, opt := range opts {
		opt(j)
	}
}

// begin 校验任务选项，加载 Report 并迁移到 PROCESSING
//
// 已 COMPLETED 时返回 (nil, result, nil)，调用方直接返回该结果。
func (o *Orchestrator) begin(ctx context.Context, reportID, flow string, opts []RunOption) (*job, *Result, error) {
	j := &job{o: o, flow: flow, delay: o.cfg.DelayCentiseconds}
	j.apply(opts)
	if j.delay > gif.MaxDelay {
		return nil, nil, wrap(reportID, PhaseStart, fmt.Errorf("%w: %d", gif.ErrInvalidDelay, j.delay))
	}

	report, err := o.reports.GetReport(ctx, reportID)
	if err != nil {
		return nil, nil, wrap(reportID, PhaseLoad, err)
	}

	status := report.CurrentGifStatus()
	version := report.GifVersion
	log := o.logger.WithReportID(reportID)

	switch {
	case status == model.GifStatusCompleted:
		log.Info("GIF already generated, skipping", "flow", flow)
		return nil, completedResult(report), nil

	case status == model.GifStatusProcessing:
		if !report.IsStaleProcessing(o.now(), o.cfg.StaleAfter) {
			return nil, nil, wrap(reportID, PhaseStart, ErrJobInProgress)
		}
		// 上一个任务所在进程已退出，先标记失败再重新开始
		log.Warn("Recovering stale PROCESSING job", "since", report.GifStatusUpdatedAt)
		if version, err = o.reports.UpdateGifStatus(ctx, reportID, status, version, model.GifStatusFailed); err != nil {
			return nil, nil, wrap(reportID, PhaseStart, casError(err))
		}
		status = model.GifStatusFailed

	case !status.CanTransitionTo(model.GifStatusProcessing):
		return nil, nil, wrap(reportID, PhaseStart, errors.New("cannot start gif job from status "+string(status)))
	}

	version, err = o.reports.UpdateGifStatus(ctx, reportID, status, version, model.GifStatusProcessing)
	if err != nil {
		return nil, nil, wrap(reportID, PhaseStart, casError(err))
	}
	report.GifStatus = model.GifStatusProcessing
	report.GifVersion = version

	j.report = report
	j.version = version
	j.start = o.now()
	j.log = log.WithField("flow", flow)
	o.metrics.GifJobStarted()
	j.publishStatus(ctx, model.GifStatusProcessing, "")
	return j, nil, nil
}

// casError 条件写失败说明有并发任务
func casError(err error) error {
	if errors.Is(err, storage.ErrConflict) {
		return ErrJobInProgress
	}
	return err
}

func completedResult(r *model.Report) *Result {
	return &Result{
		ReportID:         r.ID,
		Status:           model.GifStatusCompleted,
		Gif:              r.GifMedia(),
		AlreadyProcessed: true,
	}
}

// phase 记录进入新阶段
func (j *job) phase(ctx context.Context, p Phase) {
	j.log.Debug("Phase started", "phase", string(p))
	j.setState(ctx, model.GifStatusProcessing, p, 0, "")
	j.o.publish(ctx, j.report.ID, eventbus.EventPhaseStarted, map[string]interface{}{"phase": string(p)})
}

// progress 合成进度回调
func (j *job) progress(ctx context.Context) gif.ProgressFunc {
	return func(done, total int) {
		j.setState(ctx, model.GifStatusProcessing, PhaseEncode, done, "")
		j.o.publish(ctx, j.report.ID, eventbus.EventProgress, map[string]interface{}{
			"frames_done":  done,
			"frames_total": total,
		})
	}
}

// fail 迁移到 FAILED 并返回包装后的错误
//
// 状态写入不受调用方 ctx 取消影响。
func (j *job) fail(ctx context.Context, p Phase, cause error) error {
	err := wrap(j.report.ID, p, cause)
	if j.finished {
		return err
	}
	j.finished = true

	wctx := context.WithoutCancel(ctx)
	if _, uerr := j.o.reports.UpdateGifStatus(wctx, j.report.ID, model.GifStatusProcessing, j.version, model.GifStatusFailed); uerr != nil {
		j.log.WithError(uerr).Error("Failed to mark job FAILED")
	}
	j.log.WithPhase(string(p)).WithError(cause).Error("GIF job failed")
	j.o.metrics.GifJobFinished(j.flow, string(model.GifStatusFailed), j.o.now().Sub(j.start))
	j.setState(wctx, model.GifStatusFailed, p, 0, err.Error())
	j.publishStatus(wctx, model.GifStatusFailed, err.Error())
	return err
}

// complete 迁移到 COMPLETED
func (j *job) complete(ctx context.Context, gifRef model.MediaRef) (*Result, error) {
	wctx := context.WithoutCancel(ctx)
	if _, err := j.o.reports.UpdateGifStatus(wctx, j.report.ID, model.GifStatusProcessing, j.version, model.GifStatusCompleted); err != nil {
		return nil, j.fail(ctx, PhaseComplete, err)
	}
	j.finished = true

	elapsed := j.o.now().Sub(j.start)
	j.log.WithDuration(elapsed).Info("GIF job completed", "frames", j.total, "object", gifRef.ObjectName)
	j.o.metrics.GifJobFinished(j.flow, string(model.GifStatusCompleted), elapsed)
	j.setState(wctx, model.GifStatusCompleted, PhaseComplete, j.total, "")
	j.publishStatus(wctx, model.GifStatusCompleted, "")

	return &Result{
		ReportID:   j.report.ID,
		Status:     model.GifStatusCompleted,
		Gif:        &gifRef,
		FrameCount: j.total,
	}, nil
}

func (j *job) setState(ctx context.Context, status model.GifStatus, p Phase, done int, errMsg string) {
	state := &cache.JobState{
		ReportID:    j.report.ID,
		Status:      string(status),
		Phase:       string(p),
		Flow:        j.flow,
		FramesDone:  done,
		FramesTotal: j.total,
		Error:       errMsg,
		UpdatedAt:   j.o.now(),
	}
	if err := j.o.cache.SetJobState(ctx, j.report.ID, state); err != nil {
		j.log.WithError(err).Warn("Failed to cache job state")
	}
}

func (j *job) publishStatus(ctx context.Context, status model.GifStatus, errMsg string) {
	data := map[string]interface{}{"status": string(status)}
	if errMsg != "" {
		data["error"] = errMsg
	}
	j.o.publish(ctx, j.report.ID, eventbus.EventStatusChanged, data)
}

func (o *Orchestrator) publish(ctx context.Context, reportID, typ string, data map[string]interface{}) {
	err := o.events.PublishJobEvent(ctx, reportID, &eventbus.JobEvent{
		Type:      typ,
		Timestamp: o.now(),
		Data:      data,
	})
	if err != nil {
		o.logger.WithReportID(reportID).WithError(err).Warn("Failed to publish job event")
	}
}
