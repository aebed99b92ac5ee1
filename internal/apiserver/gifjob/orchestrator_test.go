package gifjob

import (
	"bytes"
	"context"
	"errors"
	stdgif "image/gif"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"report-media/internal/gif"
	"report-media/internal/shared/eventbus"
	"report-media/internal/shared/model"
	"report-media/internal/shared/objstore"
	"report-media/internal/shared/storage"
)

var gifObjectRe = regexp.MustCompile(`^acme/shop/media/[0-9a-f-]{36}\.gif$`)

func TestProcessFrames_FiveJPEGFrames(t *testing.T) {
	h := newHarness(t)
	h.seed(t, &model.Report{ID: "R1"})
	ctx := context.Background()

	res, err := h.orch.ProcessFrames(ctx, "R1", jpegFrames(t, 5))
	require.NoError(t, err)
	assert.Equal(t, model.GifStatusCompleted, res.Status)
	assert.Equal(t, 5, res.FrameCount)
	assert.False(t, res.AlreadyProcessed)
	require.NotNil(t, res.Gif)
	assert.Regexp(t, gifObjectRe, res.Gif.ObjectName)

	r := h.report(t, "R1")
	assert.Equal(t, model.GifStatusCompleted, r.GifStatus)
	require.Len(t, r.Media, 1)
	assert.Equal(t, model.MediaGIF, r.Media[0].Category)
	assert.Empty(t, r.IntermediateFrames)

	// 中间帧已删除，只剩 GIF
	assert.Equal(t, 1, h.backend.Len())
	data, ok := h.backend.Get(res.Gif.ObjectName)
	require.True(t, ok)
	g, err := stdgif.DecodeAll(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Len(t, g.Image, 5)
	assert.Equal(t, 0, g.LoopCount)
	assert.Equal(t, DefaultDelayCentiseconds, g.Delay[0])

	// 上传第一次即成功
	assert.Equal(t, 6, h.backend.putCount())
	assert.Empty(t, h.sleeps)

	records, err := h.store.ListMediaRecords(ctx, "R1", "")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, model.MediaRoleMedia, records[0].Role)

	state, err := h.cache.GetJobState(ctx, "R1")
	require.NoError(t, err)
	assert.Equal(t, string(model.GifStatusCompleted), state.Status)
	assert.Equal(t, 5, state.FramesDone)

	var statuses []string
	events, _ := h.events.GetJobEvents(ctx, "R1", "", 0)
	for _, ev := range events {
		if s := ev.Status(); s != "" {
			statuses = append(statuses, s)
		}
	}
	assert.Equal(t, []string{"PROCESSING", "COMPLETED"}, statuses)
}

func TestProcessFrames_DelayOverride(t *testing.T) {
	h := newHarness(t)
	h.seed(t, &model.Report{ID: "R1d"})

	res, err := h.orch.ProcessFrames(context.Background(), "R1d", jpegFrames(t, 2), WithDelay(40))
	require.NoError(t, err)

	data, ok := h.backend.Get(res.Gif.ObjectName)
	require.True(t, ok)
	g, err := stdgif.DecodeAll(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, []int{40, 40}, g.Delay)
}

func TestRun_DelayOutOfRangeLeavesStatus(t *testing.T) {
	h := newHarness(t)
	h.seed(t, &model.Report{ID: "R1e"})
	frames := jpegFrames(t, 2)
	h.seedStoredFrames(t, "R1e", [][]byte{frames[0].Data, frames[1].Data})

	_, err := h.orch.ProcessFrames(context.Background(), "R1e", frames, WithDelay(gif.MaxDelay+1))
	assert.ErrorIs(t, err, gif.ErrInvalidDelay)

	_, err = h.orch.GenerateFromStored(context.Background(), "R1e", WithDelay(70000))
	assert.ErrorIs(t, err, gif.ErrInvalidDelay)

	r := h.report(t, "R1e")
	assert.Equal(t, model.GifStatusNotInitiated, r.CurrentGifStatus())
	assert.Equal(t, 0, h.backend.putCount())
}

func TestProcessFrames_CorruptFrame(t *testing.T) {
	h := newHarness(t)
	h.seed(t, &model.Report{ID: "R2"})

	frames := jpegFrames(t, 5)
	frames[3].Data = []byte("corrupted bytes")

	res, err := h.orch.ProcessFrames(context.Background(), "R2", frames)
	assert.Nil(t, res)
	require.Error(t, err)
	assert.ErrorIs(t, err, gif.ErrInvalidFrame)

	var ife *gif.InvalidFrameError
	require.True(t, errors.As(err, &ife))
	assert.Equal(t, 3, ife.Index)

	var je *JobError
	require.True(t, errors.As(err, &je))
	assert.Equal(t, "R2", je.ReportID)
	assert.Equal(t, PhaseValidate, je.Phase)

	r := h.report(t, "R2")
	assert.Equal(t, model.GifStatusFailed, r.GifStatus)
	assert.Nil(t, r.GifMedia())
	// 已上传的中间帧不回滚
	assert.Len(t, r.IntermediateFrames, 5)
	assert.Equal(t, 5, h.backend.Len())

	state, _ := h.cache.GetJobState(context.Background(), "R2")
	require.NotNil(t, state)
	assert.Equal(t, string(model.GifStatusFailed), state.Status)
	assert.Contains(t, state.Error, "invalid frame 3")
}

func TestProcessFrames_AlreadyCompleted(t *testing.T) {
	h := newHarness(t)
	existing := model.MediaRef{ObjectName: "acme/shop/media/old.gif", Category: model.MediaGIF}
	h.seed(t, &model.Report{ID: "R3", GifStatus: model.GifStatusCompleted, Media: []model.MediaRef{existing}})

	res, err := h.orch.ProcessFrames(context.Background(), "R3", jpegFrames(t, 2))
	require.NoError(t, err)
	assert.True(t, res.AlreadyProcessed)
	assert.Equal(t, model.GifStatusCompleted, res.Status)
	require.NotNil(t, res.Gif)
	assert.Equal(t, existing.ObjectName, res.Gif.ObjectName)
	assert.Equal(t, 0, h.backend.putCount(), "no upload for completed report")

	res, err = h.orch.GenerateFromStored(context.Background(), "R3")
	require.NoError(t, err)
	assert.True(t, res.AlreadyProcessed)
	assert.Equal(t, 0, h.backend.putCount())
}

func TestProcessFrames_TransientUploadFailures(t *testing.T) {
	h := newHarness(t)
	h.backend.failPuts = 2
	h.seed(t, &model.Report{ID: "R4"})

	res, err := h.orch.ProcessFrames(context.Background(), "R4", jpegFrames(t, 1))
	require.NoError(t, err)
	assert.Equal(t, model.GifStatusCompleted, res.Status)

	// 帧上传 3 次尝试 + GIF 上传 1 次
	assert.Equal(t, 4, h.backend.putCount())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, h.sleeps)
}

func TestProcessFrames_StorageUnavailable(t *testing.T) {
	h := newHarness(t)
	h.backend.alwaysFail = true
	h.seed(t, &model.Report{ID: "R5"})

	_, err := h.orch.ProcessFrames(context.Background(), "R5", jpegFrames(t, 2))
	require.Error(t, err)
	assert.ErrorIs(t, err, objstore.ErrStorageUnavailable)

	var je *JobError
	require.True(t, errors.As(err, &je))
	assert.Equal(t, PhaseUploadFrames, je.Phase)

	assert.Equal(t, objstore.MaxRetries, h.backend.putCount())
	assert.Equal(t, model.GifStatusFailed, h.report(t, "R5").GifStatus)
}

func TestProcessFrames_UnsupportedMediaType(t *testing.T) {
	h := newHarness(t)
	h.seed(t, &model.Report{ID: "R6"})

	frames := jpegFrames(t, 2)
	frames[1].MimeType = "application/zip"

	_, err := h.orch.ProcessFrames(context.Background(), "R6", frames)
	assert.ErrorIs(t, err, model.ErrUnsupportedMediaType)
	assert.Equal(t, model.GifStatusFailed, h.report(t, "R6").GifStatus)
}

func TestProcessFrames_NoFrames(t *testing.T) {
	h := newHarness(t)
	h.seed(t, &model.Report{ID: "R7"})

	_, err := h.orch.ProcessFrames(context.Background(), "R7", nil)
	assert.ErrorIs(t, err, ErrNoFrames)
	assert.Equal(t, model.GifStatusFailed, h.report(t, "R7").GifStatus)
}

func TestProcessFrames_ReportNotFound(t *testing.T) {
	h := newHarness(t)

	_, err := h.orch.ProcessFrames(context.Background(), "missing", jpegFrames(t, 1))
	assert.ErrorIs(t, err, storage.ErrNotFound)

	var je *JobError
	require.True(t, errors.As(err, &je))
	assert.Equal(t, PhaseLoad, je.Phase)
}

func TestProcessFrames_InProgress(t *testing.T) {
	h := newHarness(t)
	h.seed(t, &model.Report{ID: "R8", GifStatus: model.GifStatusProcessing, GifStatusUpdatedAt: time.Now()})

	_, err := h.orch.ProcessFrames(context.Background(), "R8", jpegFrames(t, 1))
	assert.ErrorIs(t, err, ErrJobInProgress)
	assert.Equal(t, model.GifStatusProcessing, h.report(t, "R8").GifStatus)
	assert.Equal(t, 0, h.backend.putCount())
}

func TestProcessFrames_RecoversStaleProcessing(t *testing.T) {
	h := newHarness(t)
	h.seed(t, &model.Report{ID: "R9", GifStatus: model.GifStatusProcessing, GifStatusUpdatedAt: time.Now().Add(-time.Hour)})

	res, err := h.orch.ProcessFrames(context.Background(), "R9", jpegFrames(t, 2))
	require.NoError(t, err)
	assert.Equal(t, model.GifStatusCompleted, res.Status)

	r := h.report(t, "R9")
	assert.Equal(t, model.GifStatusCompleted, r.GifStatus)
	// PROCESSING→FAILED→PROCESSING→COMPLETED
	assert.Equal(t, int64(3), r.GifVersion)
}

func TestProcessFrames_RetryAfterFailure(t *testing.T) {
	h := newHarness(t)
	h.seed(t, &model.Report{ID: "R10", GifStatus: model.GifStatusFailed})

	res, err := h.orch.ProcessFrames(context.Background(), "R10", jpegFrames(t, 3))
	require.NoError(t, err)
	assert.Equal(t, model.GifStatusCompleted, res.Status)
}

func TestProcessFrames_ConcurrentStartSingleWinner(t *testing.T) {
	enc := newGatedEncoder()
	h := newHarness(t, withEncoder(enc))
	h.seed(t, &model.Report{ID: "R11"})

	type outcome struct {
		res *Result
		err error
	}
	frames := jpegFrames(t, 2)
	first := make(chan outcome, 1)
	go func() {
		res, err := h.orch.ProcessFrames(context.Background(), "R11", frames)
		first <- outcome{res, err}
	}()

	select {
	case <-enc.started:
	case <-time.After(5 * time.Second):
		t.Fatal("first job did not reach encode")
	}

	_, err := h.orch.ProcessFrames(context.Background(), "R11", frames)
	assert.ErrorIs(t, err, ErrJobInProgress)

	close(enc.release)
	out := <-first
	require.NoError(t, out.err)
	assert.Equal(t, model.GifStatusCompleted, out.res.Status)

	r := h.report(t, "R11")
	require.Len(t, r.Media, 1)
}

func TestGenerateFromStored(t *testing.T) {
	h := newHarness(t)
	h.seed(t, &model.Report{ID: "D1"})
	refs := h.seedStoredFrames(t, "D1", frameBytes(jpegFrames(t, 3)))

	f := h.orch.StartDeferred("D1")
	res, err := f.Wait(context.Background(), 10*time.Second)
	require.NoError(t, err)
	assert.Equal(t, model.GifStatusCompleted, res.Status)
	assert.Equal(t, 3, res.FrameCount)

	r := h.report(t, "D1")
	assert.Equal(t, model.GifStatusCompleted, r.GifStatus)
	assert.Empty(t, r.IntermediateFrames)
	require.NotNil(t, r.GifMedia())

	for _, ref := range refs {
		assert.False(t, h.backend.Has(ref.ObjectName), "frame %s deleted", ref.ObjectName)
	}
	records, _ := h.store.ListMediaRecords(context.Background(), "D1", model.MediaRoleFrame)
	assert.Empty(t, records)

	data, ok := h.backend.Get(r.GifMedia().ObjectName)
	require.True(t, ok)
	g, err := stdgif.DecodeAll(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Len(t, g.Image, 3)
}

func TestGenerateFromStored_NoFrames(t *testing.T) {
	h := newHarness(t)
	h.seed(t, &model.Report{ID: "D2"})

	_, err := h.orch.GenerateFromStored(context.Background(), "D2")
	assert.ErrorIs(t, err, ErrNoFrames)
	assert.Equal(t, model.GifStatusFailed, h.report(t, "D2").GifStatus)
}

func TestGenerateFromStored_MissingBlob(t *testing.T) {
	h := newHarness(t)
	h.seed(t, &model.Report{ID: "D3"})
	refs := h.seedStoredFrames(t, "D3", frameBytes(jpegFrames(t, 2)))
	require.NoError(t, h.backend.Remove(context.Background(), refs[1].ObjectName))

	_, err := h.orch.GenerateFromStored(context.Background(), "D3")
	require.Error(t, err)

	var je *JobError
	require.True(t, errors.As(err, &je))
	assert.Equal(t, PhaseFetchFrames, je.Phase)
	assert.Equal(t, model.GifStatusFailed, h.report(t, "D3").GifStatus)
}

// 等待超时只影响调用方，任务继续执行并推进状态
func TestStartDeferred_WaitTimeoutDetachesWaiter(t *testing.T) {
	enc := newGatedEncoder()
	h := newHarness(t, withEncoder(enc))
	h.seed(t, &model.Report{ID: "D4"})
	h.seedStoredFrames(t, "D4", frameBytes(jpegFrames(t, 2)))

	f := h.orch.StartDeferred("D4")
	<-enc.started

	res, err := f.Wait(context.Background(), 20*time.Millisecond)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrWaitTimeout)
	assert.Equal(t, model.GifStatusProcessing, h.report(t, "D4").GifStatus)

	close(enc.release)
	select {
	case <-f.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("job did not finish")
	}
	assert.Equal(t, model.GifStatusCompleted, h.report(t, "D4").GifStatus)

	// 结束后再次等待直接得到结果
	res, err = f.Wait(context.Background(), time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, model.GifStatusCompleted, res.Status)

	require.NoError(t, h.orch.Shutdown(context.Background()))
}

func TestStartDeferred_CallerCancel(t *testing.T) {
	enc := newGatedEncoder()
	h := newHarness(t, withEncoder(enc))
	h.seed(t, &model.Report{ID: "D5"})
	h.seedStoredFrames(t, "D5", frameBytes(jpegFrames(t, 1)))

	f := h.orch.StartDeferred("D5")
	<-enc.started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.Wait(ctx, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)

	close(enc.release)
	<-f.Done()
	assert.Equal(t, model.GifStatusCompleted, h.report(t, "D5").GifStatus)
}

func TestDeleteGif(t *testing.T) {
	h := newHarness(t)
	h.seed(t, &model.Report{ID: "X1"})
	ctx := context.Background()

	res, err := h.orch.ProcessFrames(ctx, "X1", jpegFrames(t, 2))
	require.NoError(t, err)
	gifName := res.Gif.ObjectName

	require.NoError(t, h.orch.DeleteGif(ctx, "X1"))

	r := h.report(t, "X1")
	assert.Equal(t, model.GifStatusDeleted, r.GifStatus)
	assert.Nil(t, r.GifMedia())
	assert.False(t, h.backend.Has(gifName))
	records, _ := h.store.ListMediaRecords(ctx, "X1", "")
	assert.Empty(t, records)

	events, _ := h.events.GetJobEvents(ctx, "X1", "", 0)
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, eventbus.EventStatusChanged, last.Type)
	assert.Equal(t, "DELETED", last.Status())

	// DELETED 后可以重新生成
	res, err = h.orch.ProcessFrames(ctx, "X1", jpegFrames(t, 2))
	require.NoError(t, err)
	assert.False(t, res.AlreadyProcessed)
	assert.Len(t, h.report(t, "X1").Media, 1)
}

func TestDeleteGif_NotCompleted(t *testing.T) {
	h := newHarness(t)
	h.seed(t, &model.Report{ID: "X2"})
	h.seed(t, &model.Report{ID: "X3", GifStatus: model.GifStatusProcessing, GifStatusUpdatedAt: time.Now()})

	assert.ErrorIs(t, h.orch.DeleteGif(context.Background(), "X2"), ErrNoGif)
	assert.ErrorIs(t, h.orch.DeleteGif(context.Background(), "X3"), ErrJobInProgress)
	assert.ErrorIs(t, h.orch.DeleteGif(context.Background(), "missing"), storage.ErrNotFound)
}

func TestLinkReplacesLegacyGif(t *testing.T) {
	h := newHarness(t)
	legacy := model.MediaRef{ObjectName: "acme/shop/media/legacy.gif", Category: model.MediaGIF}
	require.NoError(t, h.backend.Backend.Put(context.Background(), legacy.ObjectName, []byte("GIF89a"), "image/gif"))
	h.seed(t, &model.Report{ID: "X4", GifStatus: model.GifStatusFailed, Media: []model.MediaRef{
		{ObjectName: "acme/shop/media/shot.png", Category: model.MediaImage},
		legacy,
	}})

	_, err := h.orch.ProcessFrames(context.Background(), "X4", jpegFrames(t, 1))
	require.NoError(t, err)

	r := h.report(t, "X4")
	require.Len(t, r.Media, 2)
	assert.Equal(t, model.MediaImage, r.Media[0].Category)
	assert.NotEqual(t, legacy.ObjectName, r.GifMedia().ObjectName)
	assert.False(t, h.backend.Has(legacy.ObjectName))
}

func TestJobError(t *testing.T) {
	err := wrap("R1", PhaseEncode, gif.ErrInvalidFrame)
	assert.EqualError(t, err, "gif job R1 failed at encode: invalid frame")
	assert.ErrorIs(t, err, gif.ErrInvalidFrame)

	// 已包装的错误保持原阶段
	again := wrap("R1", PhaseLink, err)
	var je *JobError
	require.True(t, errors.As(again, &je))
	assert.Equal(t, PhaseEncode, je.Phase)

	assert.NoError(t, wrap("R1", PhaseLoad, nil))
}

func TestConfig_Validate(t *testing.T) {
	cfg := &Config{Workers: 2}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultDelayCentiseconds, cfg.DelayCentiseconds)
	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, DefaultStaleAfter, cfg.StaleAfter)
	assert.Equal(t, DefaultWaitTimeout, cfg.WaitTimeout)
}
