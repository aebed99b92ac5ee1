package mongostore

import (
	"context"

	"report-media/internal/shared/model"
	"report-media/internal/shared/storage"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// CreateMediaRecord 创建媒体记录
func (s *Store) CreateMediaRecord(ctx context.Context, record *model.MediaRecord) error {
	return insertOne(ctx, s.records, record)
}

// ListMediaRecords 查询 Report 的媒体记录
func (s *Store) ListMediaRecords(ctx context.Context, reportID string, role model.MediaRole) ([]*model.MediaRecord, error) {
	filter := bson.D{{Key: "report_id", Value: reportID}}
	if role != "" {
		filter = append(filter, bson.E{Key: "role", Value: role})
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "object_name", Value: 1}})
	return findMany[model.MediaRecord](ctx, s.records, filter, opts)
}

// DeleteMediaRecord 按对象名删除媒体记录
func (s *Store) DeleteMediaRecord(ctx context.Context, objectName string) error {
	res, err := s.records.DeleteOne(ctx, bson.D{{Key: "object_name", Value: objectName}})
	if err != nil {
		return wrapError(err)
	}
	if res.DeletedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}
