// Package cache 缓存 mock 与进程内实现
package cache

import (
	"context"
	"sync"
)

// ============================================================================
// NoOpCache - 空操作的 Cache 实现（用于测试）
// ============================================================================

// NoOpCache 是一个不做任何操作的 Cache 实现
type NoOpCache struct{}

// NewNoOpCache 创建 NoOpCache 实例
func NewNoOpCache() *NoOpCache {
	return &NoOpCache{}
}

func (c *NoOpCache) Close() error { return nil }

func (c *NoOpCache) SetJobState(ctx context.Context, reportID string, state *JobState) error {
	return nil
}
func (c *NoOpCache) GetJobState(ctx context.Context, reportID string) (*JobState, error) {
	return nil, nil
}
func (c *NoOpCache) DeleteJobState(ctx context.Context, reportID string) error {
	return nil
}

// ============================================================================
// MemoryCache - 进程内实现（单实例部署或未启用 Redis 时使用）
// ============================================================================

// MemoryCache 进程内任务状态缓存，不做过期处理
type MemoryCache struct {
	mu     sync.RWMutex
	states map[string]JobState
}

// NewMemoryCache 创建 MemoryCache 实例
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{states: make(map[string]JobState)}
}

func (c *MemoryCache) Close() error { return nil }

func (c *MemoryCache) SetJobState(ctx context.Context, reportID string, state *JobState) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := *state
	s.ReportID = reportID
	c.states[reportID] = s
	return nil
}

func (c *MemoryCache) GetJobState(ctx context.Context, reportID string) (*JobState, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.states[reportID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (c *MemoryCache) DeleteJobState(ctx context.Context, reportID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.states, reportID)
	return nil
}

// 确保实现了 Cache 接口
var (
	_ Cache = (*NoOpCache)(nil)
	_ Cache = (*MemoryCache)(nil)
)
