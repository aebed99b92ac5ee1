package mongostore

import (
	"context"
	"time"

	"report-media/internal/shared/model"
	"report-media/internal/shared/storage"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// CreateReport 创建 Report
//
// nil 切片写成空数组，否则后续 $push 会因字段为 null 失败。
func (s *Store) CreateReport(ctx context.Context, report *model.Report) error {
	doc := *report
	if doc.GifStatus == "" {
		doc.GifStatus = model.GifStatusNotInitiated
	}
	if doc.Media == nil {
		doc.Media = []model.MediaRef{}
	}
	if doc.IntermediateFrames == nil {
		doc.IntermediateFrames = []model.MediaRef{}
	}
	return insertOne(ctx, s.reports, &doc)
}

// GetReport 获取 Report
func (s *Store) GetReport(ctx context.Context, id string) (*model.Report, error) {
	return findOne[model.Report](ctx, s.reports, byID(id))
}

// UpdateGifStatus 以 (gif_status, gif_version) 为条件更新状态
//
// 旧文档可能缺少这两个字段，缺失值分别视为 NOT_INITIATED 与 0。
func (s *Store) UpdateGifStatus(ctx context.Context, id string, from model.GifStatus, version int64, to model.GifStatus) (int64, error) {
	var statusCond interface{} = from
	if from == model.GifStatusNotInitiated {
		statusCond = bson.D{{Key: "$in", Value: bson.A{from, "", nil}}}
	}
	var versionCond interface{} = version
	if version == 0 {
		versionCond = bson.D{{Key: "$in", Value: bson.A{int64(0), nil}}}
	}

	filter := bson.D{
		{Key: "_id", Value: id},
		{Key: "gif_status", Value: statusCond},
		{Key: "gif_version", Value: versionCond},
	}
	now := time.Now()
	update := bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "gif_status", Value: to},
			{Key: "gif_status_updated_at", Value: now},
			{Key: "updated_at", Value: now},
		}},
		{Key: "$inc", Value: bson.D{{Key: "gif_version", Value: int64(1)}}},
	}

	res, err := s.reports.UpdateOne(ctx, filter, update)
	if err != nil {
		return 0, wrapError(err)
	}
	if res.MatchedCount == 0 {
		ok, err := exists(ctx, s.reports, id)
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, storage.ErrNotFound
		}
		return 0, storage.ErrConflict
	}
	return version + 1, nil
}

// SetIntermediateFrames 覆盖中间帧列表
func (s *Store) SetIntermediateFrames(ctx context.Context, id string, frames []model.MediaRef) error {
	if frames == nil {
		frames = []model.MediaRef{}
	}
	return updateByID(ctx, s.reports, id, bson.D{{Key: "$set", Value: bson.D{
		{Key: "intermediate_frames", Value: frames},
		{Key: "updated_at", Value: time.Now()},
	}}})
}

// ClearIntermediateFrames 清空中间帧列表
func (s *Store) ClearIntermediateFrames(ctx context.Context, id string) error {
	return s.SetIntermediateFrames(ctx, id, nil)
}

// AppendMedia 追加媒体引用
func (s *Store) AppendMedia(ctx context.Context, id string, media model.MediaRef) error {
	return updateByID(ctx, s.reports, id, bson.D{
		{Key: "$push", Value: bson.D{{Key: "media", Value: media}}},
		{Key: "$set", Value: bson.D{{Key: "updated_at", Value: time.Now()}}},
	})
}

// RemoveMedia 按对象名移除媒体引用
func (s *Store) RemoveMedia(ctx context.Context, id string, objectName string) error {
	return updateByID(ctx, s.reports, id, bson.D{
		{Key: "$pull", Value: bson.D{{Key: "media", Value: bson.D{{Key: "object_name", Value: objectName}}}}},
		{Key: "$set", Value: bson.D{{Key: "updated_at", Value: time.Now()}}},
	})
}
