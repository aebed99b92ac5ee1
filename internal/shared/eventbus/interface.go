// Package eventbus 事件总线抽象接口
//
// 提供事件的发布/订阅能力，当前由 Redis Streams 实现；未配置 Redis 时使用进程内实现。
package eventbus

import (
	"context"
)

// ============================================================================
// 事件总线接口定义
// ============================================================================

// JobEventBus GIF 合成任务事件总线接口
//
// SubscribeJobEvents 只投递订阅之后发布的事件，需要补齐历史时先调用 GetJobEvents。
// 返回的 channel 在 ctx 结束时关闭。
type JobEventBus interface {
	PublishJobEvent(ctx context.Context, reportID string, event *JobEvent) error
	GetJobEvents(ctx context.Context, reportID string, fromID string, count int64) ([]*JobEvent, error)
	SubscribeJobEvents(ctx context.Context, reportID string) (<-chan *JobEvent, error)
	DeleteJobEvents(ctx context.Context, reportID string) error
}

// ============================================================================
// 组合接口
// ============================================================================

// EventBus 事件总线组合接口
type EventBus interface {
	JobEventBus
	Close() error
}
