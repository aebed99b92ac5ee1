package memstore

import (
	"context"
	"testing"
	"time"

	"report-media/internal/shared/model"
	"report-media/internal/shared/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportGifStatusCAS(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	require.NoError(t, s.CreateReport(ctx, &model.Report{ID: "r1"}))
	assert.ErrorIs(t, s.CreateReport(ctx, &model.Report{ID: "r1"}), storage.ErrDuplicate)

	v, err := s.UpdateGifStatus(ctx, "r1", model.GifStatusNotInitiated, 0, model.GifStatusProcessing)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	// 旧版本号必须冲突
	_, err = s.UpdateGifStatus(ctx, "r1", model.GifStatusNotInitiated, 0, model.GifStatusProcessing)
	assert.ErrorIs(t, err, storage.ErrConflict)
	_, err = s.UpdateGifStatus(ctx, "r1", model.GifStatusProcessing, 0, model.GifStatusCompleted)
	assert.ErrorIs(t, err, storage.ErrConflict)

	_, err = s.UpdateGifStatus(ctx, "missing", model.GifStatusNotInitiated, 0, model.GifStatusProcessing)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	got, err := s.GetReport(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, model.GifStatusProcessing, got.GifStatus)
	assert.False(t, got.GifStatusUpdatedAt.IsZero())
}

func TestReportMediaLists(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	require.NoError(t, s.CreateReport(ctx, &model.Report{ID: "r1"}))

	frames := []model.MediaRef{{ObjectName: "f1", Category: model.MediaImage}, {ObjectName: "f2", Category: model.MediaImage}}
	require.NoError(t, s.SetIntermediateFrames(ctx, "r1", frames))
	require.NoError(t, s.AppendMedia(ctx, "r1", model.MediaRef{ObjectName: "g1", Category: model.MediaGIF, ResolvedURL: "x"}))

	got, err := s.GetReport(ctx, "r1")
	require.NoError(t, err)
	assert.Len(t, got.IntermediateFrames, 2)
	require.Len(t, got.Media, 1)
	assert.Empty(t, got.Media[0].ResolvedURL)

	// 返回值是拷贝
	got.Media[0].ObjectName = "mutated"
	again, _ := s.GetReport(ctx, "r1")
	assert.Equal(t, "g1", again.Media[0].ObjectName)

	require.NoError(t, s.ClearIntermediateFrames(ctx, "r1"))
	require.NoError(t, s.RemoveMedia(ctx, "r1", "g1"))
	require.NoError(t, s.RemoveMedia(ctx, "r1", "not-there"))
	again, _ = s.GetReport(ctx, "r1")
	assert.Empty(t, again.IntermediateFrames)
	assert.Empty(t, again.Media)

	assert.ErrorIs(t, s.AppendMedia(ctx, "missing", model.MediaRef{}), storage.ErrNotFound)
}

func TestMediaRecords(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	base := time.Now()

	for i, name := range []string{"b", "a", "c"} {
		role := model.MediaRoleFrame
		if name == "c" {
			role = model.MediaRoleMedia
		}
		require.NoError(t, s.CreateMediaRecord(ctx, &model.MediaRecord{
			ID: name, ReportID: "r1", ObjectName: name, Role: role, CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}
	assert.ErrorIs(t, s.CreateMediaRecord(ctx, &model.MediaRecord{ObjectName: "a"}), storage.ErrDuplicate)

	frames, err := s.ListMediaRecords(ctx, "r1", model.MediaRoleFrame)
	require.NoError(t, err)
	require.Len(t, frames, 2)
	assert.Equal(t, "b", frames[0].ObjectName)
	assert.Equal(t, "a", frames[1].ObjectName)

	all, err := s.ListMediaRecords(ctx, "r1", "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	require.NoError(t, s.DeleteMediaRecord(ctx, "a"))
	assert.ErrorIs(t, s.DeleteMediaRecord(ctx, "a"), storage.ErrNotFound)

	none, err := s.ListMediaRecords(ctx, "other", "")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}
