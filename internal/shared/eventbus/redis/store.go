// Package redis 基于 Redis Streams 的 GIF 任务事件总线
//
// 每个报告一个 Stream（键 eventbus.KeyGifJobEvents + reportID），
// 写入时按近似长度裁剪，订阅通过阻塞 XREAD 实现。
package redis

import (
	"github.com/redis/go-redis/v9"

	"report-media/internal/shared/eventbus"
)

// Store 任务事件总线
type Store struct {
	client *redis.Client
	maxLen int64
}

// Option Store 可选项
type Option func(*Store)

// WithMaxLen 覆盖单个 Stream 保留的事件条数上限（<=0 时忽略）
func WithMaxLen(n int64) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxLen = n
		}
	}
}

// New 基于共享客户端创建事件总线，连接生命周期由调用方管理
func New(client *redis.Client, opts ...Option) *Store {
	s := &Store{client: client, maxLen: eventbus.MaxStreamLength}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close 关闭底层客户端
func (s *Store) Close() error {
	return s.client.Close()
}
