// Package storage 定义持久化存储层抽象接口
//
// 设计原则：依赖倒置 (DIP)
//   - 调用方只依赖接口，不知道具体实现
//   - 具体实现在子包中：mongostore/, repository/（SQLite、PostgreSQL）, memstore/
//   - 初始化时通过 factory.NewPersistentStore 按配置创建并注入
package storage

import (
	"context"

	"report-media/internal/shared/model"
)

// ReportStore Report 存储接口
//
// 媒体派生流程只读写 Report 的 GIF 状态与媒体列表，
// Report 的创建由上游服务负责，CreateReport 仅用于初始化数据与测试。
type ReportStore interface {
	CreateReport(ctx context.Context, report *model.Report) error

	// GetReport 不存在时返回 ErrNotFound
	GetReport(ctx context.Context, id string) (*model.Report, error)

	// UpdateGifStatus 条件更新 GIF 状态
	//
	// 仅当当前状态为 from 且版本号为 version 时写入 to，返回新版本号；
	// 条件不满足返回 ErrConflict，Report 不存在返回 ErrNotFound。
	UpdateGifStatus(ctx context.Context, id string, from model.GifStatus, version int64, to model.GifStatus) (int64, error)

	// SetIntermediateFrames 覆盖中间帧列表
	SetIntermediateFrames(ctx context.Context, id string, frames []model.MediaRef) error

	// ClearIntermediateFrames 清空中间帧列表
	ClearIntermediateFrames(ctx context.Context, id string) error

	// AppendMedia 追加一个媒体引用
	AppendMedia(ctx context.Context, id string, media model.MediaRef) error

	// RemoveMedia 按对象名移除媒体引用，对象名不在列表中时不报错
	RemoveMedia(ctx context.Context, id string, objectName string) error
}

// MediaRecordStore Blob 元数据存储接口
type MediaRecordStore interface {
	CreateMediaRecord(ctx context.Context, record *model.MediaRecord) error

	// ListMediaRecords 按 Report 查询，role 为空时返回全部，按创建时间升序
	ListMediaRecords(ctx context.Context, reportID string, role model.MediaRole) ([]*model.MediaRecord, error)

	// DeleteMediaRecord 按对象名删除，不存在时返回 ErrNotFound
	DeleteMediaRecord(ctx context.Context, objectName string) error
}

// PersistentStore 持久化存储统一接口
type PersistentStore interface {
	ReportStore
	MediaRecordStore

	Close() error
}
