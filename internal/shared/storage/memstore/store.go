// Package memstore 实现基于内存的 PersistentStore
//
// 用于单元测试与 database.driver=memory 的本地调试，进程退出即丢失数据。
// 读写均返回深拷贝，调用方修改返回值不会影响存储内容。
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"report-media/internal/shared/model"
	"report-media/internal/shared/storage"
)

// Store 内存存储
type Store struct {
	mu      sync.RWMutex
	reports map[string]*model.Report
	records map[string]*model.MediaRecord // key: object name
	now     func() time.Time
}

var _ storage.PersistentStore = (*Store)(nil)

// NewStore 创建内存存储
func NewStore() *Store {
	return &Store{
		reports: make(map[string]*model.Report),
		records: make(map[string]*model.MediaRecord),
		now:     time.Now,
	}
}

// Close 无需释放资源
func (s *Store) Close() error {
	return nil
}

// CreateReport 创建 Report
func (s *Store) CreateReport(_ context.Context, report *model.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reports[report.ID]; ok {
		return storage.ErrDuplicate
	}
	r := cloneReport(report)
	if r.GifStatus == "" {
		r.GifStatus = model.GifStatusNotInitiated
	}
	s.reports[report.ID] = r
	return nil
}

// GetReport 获取 Report
func (s *Store) GetReport(_ context.Context, id string) (*model.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reports[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneReport(r), nil
}

// UpdateGifStatus 条件更新 GIF 状态
func (s *Store) UpdateGifStatus(_ context.Context, id string, from model.GifStatus, version int64, to model.GifStatus) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[id]
	if !ok {
		return 0, storage.ErrNotFound
	}
	if r.CurrentGifStatus() != from || r.GifVersion != version {
		return 0, storage.ErrConflict
	}
	now := s.now()
	r.GifStatus = to
	r.GifVersion++
	r.GifStatusUpdatedAt = now
	r.UpdatedAt = now
	return r.GifVersion, nil
}

// SetIntermediateFrames 覆盖中间帧列表
func (s *Store) SetIntermediateFrames(_ context.Context, id string, frames []model.MediaRef) error {
	return s.mutate(id, func(r *model.Report) {
		r.IntermediateFrames = cloneRefs(frames)
	})
}

// ClearIntermediateFrames 清空中间帧列表
func (s *Store) ClearIntermediateFrames(_ context.Context, id string) error {
	return s.mutate(id, func(r *model.Report) {
		r.IntermediateFrames = nil
	})
}

// AppendMedia 追加媒体引用
func (s *Store) AppendMedia(_ context.Context, id string, media model.MediaRef) error {
	media.ResolvedURL = ""
	return s.mutate(id, func(r *model.Report) {
		r.Media = append(r.Media, media)
	})
}

// RemoveMedia 按对象名移除媒体引用
func (s *Store) RemoveMedia(_ context.Context, id string, objectName string) error {
	return s.mutate(id, func(r *model.Report) {
		kept := r.Media[:0]
		for _, m := range r.Media {
			if m.ObjectName != objectName {
				kept = append(kept, m)
			}
		}
		r.Media = kept
	})
}

func (s *Store) mutate(id string, fn func(r *model.Report)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[id]
	if !ok {
		return storage.ErrNotFound
	}
	fn(r)
	r.UpdatedAt = s.now()
	return nil
}

// CreateMediaRecord 创建媒体记录
func (s *Store) CreateMediaRecord(_ context.Context, record *model.MediaRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[record.ObjectName]; ok {
		return storage.ErrDuplicate
	}
	rec := *record
	s.records[record.ObjectName] = &rec
	return nil
}

// ListMediaRecords 查询媒体记录
func (s *Store) ListMediaRecords(_ context.Context, reportID string, role model.MediaRole) ([]*model.MediaRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := []*model.MediaRecord{}
	for _, rec := range s.records {
		if rec.ReportID != reportID || (role != "" && rec.Role != role) {
			continue
		}
		c := *rec
		result = append(result, &c)
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ObjectName < result[j].ObjectName
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// DeleteMediaRecord 删除媒体记录
func (s *Store) DeleteMediaRecord(_ context.Context, objectName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[objectName]; !ok {
		return storage.ErrNotFound
	}
	delete(s.records, objectName)
	return nil
}

func cloneReport(r *model.Report) *model.Report {
	c := *r
	c.Media = cloneRefs(r.Media)
	c.IntermediateFrames = cloneRefs(r.IntermediateFrames)
	return &c
}

func cloneRefs(refs []model.MediaRef) []model.MediaRef {
	if refs == nil {
		return nil
	}
	out := make([]model.MediaRef, len(refs))
	for i, ref := range refs {
		ref.ResolvedURL = ""
		out[i] = ref
	}
	return out
}
