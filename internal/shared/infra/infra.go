// Package infra 基础设施聚合层
//
// 提供统一的基础设施初始化和依赖注入，包括：
//   - Storage：持久化存储（MongoDB / PostgreSQL / SQLite / 内存）
//   - Cache：GIF 任务状态缓存（Redis 或进程内）
//   - EventBus：GIF 任务事件总线（Redis Streams 或进程内）
package infra

import (
	"context"
	"fmt"
	"log"

	"report-media/internal/config"
	"report-media/internal/shared/cache"
	"report-media/internal/shared/eventbus"
	"report-media/internal/shared/storage"
	"report-media/internal/shared/storage/dbutil"
	"report-media/internal/shared/storage/factory"
)

// Infrastructure 基础设施聚合结构
type Infrastructure struct {
	// Storage 持久化存储
	Storage storage.PersistentStore

	// Cache 任务状态缓存
	Cache cache.Cache

	// EventBus 任务事件总线
	EventBus eventbus.EventBus
}

// New 按配置初始化全部基础设施
//
// Redis 未启用时 Cache 与 EventBus 退化为进程内实现，仅适用于单实例部署。
func New(cfg *config.Config) (*Infrastructure, error) {
	store, err := factory.NewPersistentStore(dbutil.DriverType(cfg.DatabaseDriver), cfg.DatabaseURL, cfg.DatabaseDBName)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	if !cfg.RedisEnabled {
		log.Printf("[infra] Redis disabled, using in-process job state cache and event bus")
		return &Infrastructure{
			Storage:  store,
			Cache:    cache.NewMemoryCache(),
			EventBus: eventbus.NewMemoryEventBus(),
		}, nil
	}

	ri, err := NewRedisInfra(context.Background(), cfg)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("init redis: %w", err)
	}
	return &Infrastructure{Storage: store, Cache: ri, EventBus: ri}, nil
}

// Close 关闭所有基础设施连接
func (i *Infrastructure) Close() error {
	var lastErr error

	if i.Storage != nil {
		if err := i.Storage.Close(); err != nil {
			lastErr = err
		}
	}

	if i.Cache != nil {
		if err := i.Cache.Close(); err != nil {
			lastErr = err
		}
	}

	// RedisInfra 同时充当 Cache 与 EventBus，只关闭一次
	if i.EventBus != nil && any(i.EventBus) != any(i.Cache) {
		if err := i.EventBus.Close(); err != nil {
			lastErr = err
		}
	}

	return lastErr
}
