// Package mongostore MongoDB 实现的 storage.PersistentStore
//
// reports 以报告 ID 为 _id，media_records 以对象名唯一索引防止重复登记。
// gif_status + gif_version 组成乐观锁，见 UpdateGifStatus。
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"report-media/internal/shared/storage"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Collection 名称
const (
	ColReports      = "reports"
	ColMediaRecords = "media_records"
)

const (
	connectTimeout    = 10 * time.Second
	disconnectTimeout = 5 * time.Second
)

// Store MongoDB 存储
type Store struct {
	client  *mongo.Client
	db      *mongo.Database
	reports *mongo.Collection
	records *mongo.Collection
}

var _ storage.PersistentStore = (*Store)(nil)

// NewStore 连接 uri 并使用数据库 dbName
//
// 索引创建失败只记录告警，不阻止启动。
func NewStore(uri, dbName string) (*Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	client, err := mongo.Connect(options.Client().ApplyURI(uri).SetAppName("report-media"))
	if err != nil {
		return nil, fmt.Errorf("mongostore: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongostore: ping: %w", err)
	}

	db := client.Database(dbName)
	s := &Store{
		client:  client,
		db:      db,
		reports: db.Collection(ColReports),
		records: db.Collection(ColMediaRecords),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		log.Printf("[mongostore] WARNING: ensure indexes failed: %v", err)
	}
	return s, nil
}

// Close 断开连接
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	reportIdx := []mongo.IndexModel{
		{Keys: bson.D{{Key: "app_id", Value: 1}}, Options: options.Index().SetName("app_id")},
		{Keys: bson.D{{Key: "gif_status", Value: 1}}, Options: options.Index().SetName("gif_status")},
	}
	if _, err := s.reports.Indexes().CreateMany(ctx, reportIdx); err != nil {
		return fmt.Errorf("reports indexes: %w", err)
	}

	recordIdx := []mongo.IndexModel{
		{Keys: bson.D{{Key: "object_name", Value: 1}}, Options: options.Index().SetName("object_name_unique").SetUnique(true)},
		{Keys: bson.D{{Key: "report_id", Value: 1}, {Key: "created_at", Value: 1}}, Options: options.Index().SetName("report_created")},
	}
	if _, err := s.records.Indexes().CreateMany(ctx, recordIdx); err != nil {
		return fmt.Errorf("media_records indexes: %w", err)
	}
	return nil
}

// wrapError 把驱动错误映射为 storage 包的领域错误
func wrapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return storage.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return storage.ErrDuplicate
	default:
		return err
	}
}
