// Package eventbus 事件总线 mock 与进程内实现
package eventbus

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// ============================================================================
// NoOpEventBus - 空操作的 EventBus 实现（用于测试）
// ============================================================================

// NoOpEventBus 是一个不做任何操作的 EventBus 实现
type NoOpEventBus struct{}

// NewNoOpEventBus 创建 NoOpEventBus 实例
func NewNoOpEventBus() *NoOpEventBus {
	return &NoOpEventBus{}
}

// Close 关闭事件总线
func (e *NoOpEventBus) Close() error {
	return nil
}

func (e *NoOpEventBus) PublishJobEvent(ctx context.Context, reportID string, event *JobEvent) error {
	return nil
}
func (e *NoOpEventBus) GetJobEvents(ctx context.Context, reportID string, fromID string, count int64) ([]*JobEvent, error) {
	return []*JobEvent{}, nil
}
func (e *NoOpEventBus) SubscribeJobEvents(ctx context.Context, reportID string) (<-chan *JobEvent, error) {
	ch := make(chan *JobEvent)
	close(ch)
	return ch, nil
}
func (e *NoOpEventBus) DeleteJobEvents(ctx context.Context, reportID string) error {
	return nil
}

// ============================================================================
// MemoryEventBus - 进程内实现
// ============================================================================

// MemoryEventBus 进程内事件总线
//
// 每个 Report 保留最近 MaxStreamLength 条事件；订阅者消费过慢时丢弃新事件。
type MemoryEventBus struct {
	mu     sync.Mutex
	seq    int64
	events map[string][]*JobEvent
	subs   map[string]map[chan *JobEvent]struct{}
}

// NewMemoryEventBus 创建 MemoryEventBus 实例
func NewMemoryEventBus() *MemoryEventBus {
	return &MemoryEventBus{
		events: make(map[string][]*JobEvent),
		subs:   make(map[string]map[chan *JobEvent]struct{}),
	}
}

func (e *MemoryEventBus) Close() error { return nil }

func (e *MemoryEventBus) PublishJobEvent(ctx context.Context, reportID string, event *JobEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.seq++
	ev := *event
	ev.ID = strconv.FormatInt(e.seq, 10)
	ev.ReportID = reportID
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	list := append(e.events[reportID], &ev)
	if len(list) > MaxStreamLength {
		list = list[len(list)-MaxStreamLength:]
	}
	e.events[reportID] = list
	ev.Seq = len(list)

	for ch := range e.subs[reportID] {
		select {
		case ch <- &ev:
		default:
		}
	}
	return nil
}

// GetJobEvents fromID 为空时从头开始，否则返回 ID 大于 fromID 的事件
func (e *MemoryEventBus) GetJobEvents(ctx context.Context, reportID string, fromID string, count int64) ([]*JobEvent, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var after int64
	if fromID != "" {
		after, _ = strconv.ParseInt(fromID, 10, 64)
	}
	var out []*JobEvent
	for _, ev := range e.events[reportID] {
		id, _ := strconv.ParseInt(ev.ID, 10, 64)
		if id <= after {
			continue
		}
		out = append(out, ev)
		if count > 0 && int64(len(out)) >= count {
			break
		}
	}
	return out, nil
}

func (e *MemoryEventBus) SubscribeJobEvents(ctx context.Context, reportID string) (<-chan *JobEvent, error) {
	ch := make(chan *JobEvent, 100)

	e.mu.Lock()
	if e.subs[reportID] == nil {
		e.subs[reportID] = make(map[chan *JobEvent]struct{})
	}
	e.subs[reportID][ch] = struct{}{}
	e.mu.Unlock()

	go func() {
		<-ctx.Done()
		e.mu.Lock()
		delete(e.subs[reportID], ch)
		if len(e.subs[reportID]) == 0 {
			delete(e.subs, reportID)
		}
		close(ch)
		e.mu.Unlock()
	}()

	return ch, nil
}

func (e *MemoryEventBus) DeleteJobEvents(ctx context.Context, reportID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.events, reportID)
	return nil
}

// 确保实现了 EventBus 接口
var (
	_ EventBus = (*NoOpEventBus)(nil)
	_ EventBus = (*MemoryEventBus)(nil)
)
