// Package cache 缓存层抽象接口
//
// 提供临时状态的存取能力，当前由 Redis 实现；未配置 Redis 时使用进程内实现。
package cache

import (
	"context"
)

// ============================================================================
// 缓存接口定义
// ============================================================================

// JobStateCache GIF 合成任务状态缓存接口
//
// 数据库中只记录状态机的状态，任务执行到哪一阶段、已处理多少帧等
// 中间信息写入该缓存，供状态查询接口和 WebSocket 推送使用。
// 未命中时 GetJobState 返回 (nil, nil)。
type JobStateCache interface {
	SetJobState(ctx context.Context, reportID string, state *JobState) error
	GetJobState(ctx context.Context, reportID string) (*JobState, error)
	DeleteJobState(ctx context.Context, reportID string) error
}

// ============================================================================
// 组合接口
// ============================================================================

// Cache 缓存组合接口
type Cache interface {
	JobStateCache
	Close() error
}
