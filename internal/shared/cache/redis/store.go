// Package redis 基于 Redis Hash 的 GIF 任务状态缓存
//
// 每个报告一个 Hash（键 cache.KeyGifJobState + reportID），
// 每次写入整体覆盖并刷新过期时间。
package redis

import (
	"time"

	"github.com/redis/go-redis/v9"

	"report-media/internal/shared/cache"
)

// Store 任务状态缓存
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// Option Store 可选项
type Option func(*Store)

// WithTTL 覆盖状态键的过期时间（<=0 时忽略）
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// New 基于共享客户端创建缓存，连接生命周期由调用方管理
func New(client *redis.Client, opts ...Option) *Store {
	s := &Store{client: client, ttl: cache.TTLGifJobState}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close 关闭底层客户端
func (s *Store) Close() error {
	return s.client.Close()
}
