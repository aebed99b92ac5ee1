package gifjob

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// GenerateFromStored 延迟流程：Report 已有中间帧，通过签名 URL 下载后合成
func (o *Orchestrator) GenerateFromStored(ctx context.Context, reportID string, opts ...RunOption) (*Result, error) {
	if err := o.sem.Acquire(ctx, 1); err != nil {
		return nil, wrap(reportID, PhaseStart, err)
	}
	defer o.sem.Release(1)

	j, done, err := o.begin(ctx, reportID, FlowDeferred, opts)
	if err != nil || done != nil {
		return done, err
	}

	refs := j.report.IntermediateFrames
	j.total = len(refs)
	if len(refs) == 0 {
		return nil, j.fail(ctx, PhaseFetchFrames, ErrNoFrames)
	}

	j.phase(ctx, PhaseFetchFrames)
	data := make([][]byte, len(refs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)
	for i, ref := range refs {
		g.Go(func() error {
			url, err := o.objects.SignedURL(gctx, ref.ObjectName)
			if err != nil {
				return fmt.Errorf("frame %d: %w", i, err)
			}
			b, err := o.fetcher.Fetch(gctx, url)
			if err != nil {
				return fmt.Errorf("frame %d: %w", i, err)
			}
			data[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, j.fail(ctx, PhaseFetchFrames, err)
	}

	return j.encodeAndLink(ctx, data, refs)
}

// Future 后台任务句柄
type Future struct {
	reportID  string
	timeout   time.Duration
	done      chan struct{}
	result    *Result
	err       error
	onTimeout func()
}

// StartDeferred 在后台启动延迟流程
//
// 任务与调用方的 ctx 无关，调用方超时或断开后任务仍会执行完并推进状态。
func (o *Orchestrator) StartDeferred(reportID string, opts ...RunOption) *Future {
	f := &Future{
		reportID:  reportID,
		timeout:   o.cfg.WaitTimeout,
		done:      make(chan struct{}),
		onTimeout: o.metrics.RecordWaitTimeout,
	}

	o.inflight.Add(1)
	go func() {
		defer o.inflight.Done()
		defer close(f.done)
		f.result, f.err = o.GenerateFromStored(context.Background(), reportID, opts...)
	}()
	return f
}

// Done 任务结束时关闭
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Wait 等待任务结束
//
// timeout <= 0 时使用配置的 WaitTimeout。超时只影响调用方，
// 返回 ErrWaitTimeout 后任务继续在后台运行。
func (f *Future) Wait(ctx context.Context, timeout time.Duration) (*Result, error) {
	if timeout <= 0 {
		timeout = f.timeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-f.done:
		return f.result, f.err
	case <-timer.C:
		f.onTimeout()
		return nil, wrap(f.reportID, PhaseWait, ErrWaitTimeout)
	case <-ctx.Done():
		return nil, wrap(f.reportID, PhaseWait, ctx.Err())
	}
}
