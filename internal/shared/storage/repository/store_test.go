// Package repository SQLite 集成测试
//
// 使用 SQLite 内存数据库验证 repository 层所有存储接口的正确性。
// 无需外部数据库依赖，可在任何环境下运行。
package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"report-media/internal/shared/model"
	"report-media/internal/shared/storage"
	"report-media/internal/shared/storage/dbutil"
	sqlitedriver "report-media/internal/shared/storage/driver/sqlite"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStore 创建用于测试的 SQLite 内存数据库 Store
func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sqlitedriver.Open(":memory:")
	require.NoError(t, err)
	dialect := sqlitedriver.NewDialect()
	require.NoError(t, dialect.AutoMigrate(db))
	store := NewStore(db, dialect)
	t.Cleanup(func() { store.Close() })
	return store
}

func seedReport(t *testing.T, s *Store, id string) *model.Report {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Second)
	r := &model.Report{
		ID: id, AppID: "app-1", Organisation: "acme", AppName: "shop",
		Title: "Button does nothing", CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, s.CreateReport(context.Background(), r))
	return r
}

// ============================================================================
// Dialect 基础测试
// ============================================================================

func TestDialectTypes(t *testing.T) {
	d := sqlitedriver.NewDialect()
	assert.Equal(t, dbutil.DriverSQLite, d.DriverType())
	assert.Empty(t, d.ForUpdateClause())
}

func TestRebind(t *testing.T) {
	d := sqlitedriver.NewDialect()
	assert.Equal(t, "SELECT * FROM t WHERE id = ? AND name = ?",
		d.Rebind("SELECT * FROM t WHERE id = $1 AND name = $2"))
	assert.Equal(t, "UPDATE t SET status = ? WHERE id = ?",
		d.Rebind("UPDATE t SET status = $1::varchar WHERE id = $2"))
}

// ============================================================================
// Report 测试
// ============================================================================

func TestReportCreateGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedReport(t, s, "r1")

	err := s.CreateReport(ctx, &model.Report{ID: "r1"})
	assert.ErrorIs(t, err, storage.ErrDuplicate)

	got, err := s.GetReport(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "acme", got.Organisation)
	assert.Equal(t, "shop", got.AppName)
	assert.Equal(t, model.GifStatusNotInitiated, got.GifStatus)
	assert.Equal(t, int64(0), got.GifVersion)
	assert.Nil(t, got.Media)
	assert.Nil(t, got.IntermediateFrames)

	_, err = s.GetReport(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestUpdateGifStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedReport(t, s, "r1")

	v, err := s.UpdateGifStatus(ctx, "r1", model.GifStatusNotInitiated, 0, model.GifStatusProcessing)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	// 版本不匹配
	_, err = s.UpdateGifStatus(ctx, "r1", model.GifStatusProcessing, 0, model.GifStatusCompleted)
	assert.ErrorIs(t, err, storage.ErrConflict)
	// 状态不匹配
	_, err = s.UpdateGifStatus(ctx, "r1", model.GifStatusFailed, 1, model.GifStatusProcessing)
	assert.ErrorIs(t, err, storage.ErrConflict)
	// 不存在
	_, err = s.UpdateGifStatus(ctx, "missing", model.GifStatusNotInitiated, 0, model.GifStatusProcessing)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	v, err = s.UpdateGifStatus(ctx, "r1", model.GifStatusProcessing, 1, model.GifStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)

	got, err := s.GetReport(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, model.GifStatusCompleted, got.GifStatus)
	assert.Equal(t, int64(2), got.GifVersion)
	assert.False(t, got.GifStatusUpdatedAt.IsZero())
}

// 同一版本并发迁移只有一个成功
func TestUpdateGifStatus_SingleWinner(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedReport(t, s, "r1")

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.UpdateGifStatus(ctx, "r1", model.GifStatusNotInitiated, 0, model.GifStatusProcessing); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestReportMediaLists(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedReport(t, s, "r1")
	now := time.Now().UTC().Truncate(time.Second)

	frames := []model.MediaRef{
		{ObjectName: "acme/shop/media/1.png", Category: model.MediaImage, CreatedAt: now},
		{ObjectName: "acme/shop/media/2.png", Category: model.MediaImage, CreatedAt: now},
	}
	require.NoError(t, s.SetIntermediateFrames(ctx, "r1", frames))
	require.NoError(t, s.AppendMedia(ctx, "r1", model.MediaRef{
		ObjectName: "acme/shop/media/g.gif", Category: model.MediaGIF, CreatedAt: now, ResolvedURL: "https://signed",
	}))

	got, err := s.GetReport(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, got.IntermediateFrames, 2)
	assert.Equal(t, "acme/shop/media/1.png", got.IntermediateFrames[0].ObjectName)
	require.Len(t, got.Media, 1)
	assert.Equal(t, model.MediaGIF, got.Media[0].Category)
	assert.Empty(t, got.Media[0].ResolvedURL, "signed URL must not be persisted")

	require.NoError(t, s.ClearIntermediateFrames(ctx, "r1"))
	require.NoError(t, s.RemoveMedia(ctx, "r1", "acme/shop/media/g.gif"))
	got, err = s.GetReport(ctx, "r1")
	require.NoError(t, err)
	assert.Empty(t, got.IntermediateFrames)
	assert.Empty(t, got.Media)

	assert.ErrorIs(t, s.AppendMedia(ctx, "missing", model.MediaRef{}), storage.ErrNotFound)
}

// ============================================================================
// MediaRecord 测试
// ============================================================================

func TestMediaRecordCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)

	recs := []*model.MediaRecord{
		{ID: "m1", ReportID: "r1", ObjectName: "o/1.png", Category: model.MediaImage, MimeType: "image/png", Size: 10, Role: model.MediaRoleFrame, CreatedAt: base},
		{ID: "m2", ReportID: "r1", ObjectName: "o/2.png", Category: model.MediaImage, MimeType: "image/png", Size: 20, Role: model.MediaRoleFrame, CreatedAt: base.Add(time.Second)},
		{ID: "m3", ReportID: "r1", ObjectName: "o/log.txt", Category: model.MediaCrash, MimeType: "text/plain", Size: 5, Role: model.MediaRoleMedia, CreatedAt: base.Add(2 * time.Second)},
		{ID: "m4", ReportID: "r2", ObjectName: "o/other.png", Category: model.MediaImage, MimeType: "image/png", Role: model.MediaRoleFrame, CreatedAt: base},
	}
	for _, r := range recs {
		require.NoError(t, s.CreateMediaRecord(ctx, r))
	}
	dup := *recs[0]
	dup.ID = "m9"
	assert.ErrorIs(t, s.CreateMediaRecord(ctx, &dup), storage.ErrDuplicate)

	frames, err := s.ListMediaRecords(ctx, "r1", model.MediaRoleFrame)
	require.NoError(t, err)
	require.Len(t, frames, 2)
	assert.Equal(t, "o/1.png", frames[0].ObjectName)
	assert.Equal(t, int64(20), frames[1].Size)

	all, err := s.ListMediaRecords(ctx, "r1", "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, model.MediaCrash, all[2].Category)

	require.NoError(t, s.DeleteMediaRecord(ctx, "o/1.png"))
	assert.ErrorIs(t, s.DeleteMediaRecord(ctx, "o/1.png"), storage.ErrNotFound)

	empty, err := s.ListMediaRecords(ctx, "nobody", "")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}
