// Package model 定义核心数据模型
//
// report.go 包含 Report 及其 GIF 合成状态机：
//   - GifStatus：合成状态枚举与合法迁移
//   - Report：缺陷报告（仅包含媒体派生相关字段）
package model

import "time"

// ============================================================================
// GifStatus - GIF 合成状态
// ============================================================================

// GifStatus 表示 Report 的 GIF 合成状态
//
// 状态流转：
//
//	NOT_INITIATED → PROCESSING → COMPLETED → DELETED
//	                     ↓
//	                  FAILED
//
// FAILED 与 DELETED 可以重新进入 PROCESSING（新的一次合成任务）。
type GifStatus string

const (
	GifStatusNotInitiated GifStatus = "NOT_INITIATED"
	GifStatusProcessing   GifStatus = "PROCESSING"
	GifStatusCompleted    GifStatus = "COMPLETED"
	GifStatusFailed       GifStatus = "FAILED"
	GifStatusDeleted      GifStatus = "DELETED"
)

var gifTransitions = map[GifStatus][]GifStatus{
	GifStatusNotInitiated: {GifStatusProcessing},
	GifStatusProcessing:   {GifStatusCompleted, GifStatusFailed},
	GifStatusCompleted:    {GifStatusDeleted},
	GifStatusFailed:       {GifStatusProcessing},
	GifStatusDeleted:      {GifStatusProcessing},
}

// CanTransitionTo 判断是否允许迁移到 next
func (s GifStatus) CanTransitionTo(next GifStatus) bool {
	for _, allowed := range gifTransitions[s.normalize()] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal 判断是否为单次任务的终态
func (s GifStatus) IsTerminal() bool {
	switch s {
	case GifStatusCompleted, GifStatusFailed, GifStatusDeleted:
		return true
	default:
		return false
	}
}

// IsValid 判断是否为已知状态
func (s GifStatus) IsValid() bool {
	_, ok := gifTransitions[s]
	return ok
}

// normalize 空状态视为 NOT_INITIATED（旧数据没有该字段）
func (s GifStatus) normalize() GifStatus {
	if s == "" {
		return GifStatusNotInitiated
	}
	return s
}

// ============================================================================
// Report - 缺陷报告
// ============================================================================

// Report 缺陷报告
//
// 仅 GIF 合成任务会修改 GifStatus / Media / IntermediateFrames。
// Organisation 与 AppName 用于生成对象存储路径前缀。
//
// GifVersion 每次状态迁移自增，状态更新以 (GifStatus, GifVersion) 做条件写，
// 保证同一 Report 上并发启动的任务只有一个能进入 PROCESSING。
type Report struct {
	ID                 string     `json:"id" bson:"_id" db:"id"`
	AppID              string     `json:"app_id" bson:"app_id" db:"app_id"`
	Organisation       string     `json:"organisation" bson:"organisation" db:"organisation"`
	AppName            string     `json:"app_name" bson:"app_name" db:"app_name"`
	Title              string     `json:"title" bson:"title" db:"title"`
	GifStatus          GifStatus  `json:"gif_status" bson:"gif_status" db:"gif_status"`
	GifVersion         int64      `json:"gif_version" bson:"gif_version" db:"gif_version"`
	GifStatusUpdatedAt time.Time  `json:"gif_status_updated_at" bson:"gif_status_updated_at" db:"gif_status_updated_at"`
	Media              []MediaRef `json:"list_of_media" bson:"media" db:"media"`
	IntermediateFrames []MediaRef `json:"list_of_gif" bson:"intermediate_frames" db:"intermediate_frames"`
	CreatedAt          time.Time  `json:"created_at" bson:"created_at" db:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at" bson:"updated_at" db:"updated_at"`
}

// CurrentGifStatus 返回当前状态（空值视为 NOT_INITIATED）
func (r *Report) CurrentGifStatus() GifStatus {
	return r.GifStatus.normalize()
}

// GifMedia 返回已生成的 GIF 媒体（不存在时返回 nil）
func (r *Report) GifMedia() *MediaRef {
	for i := range r.Media {
		if r.Media[i].Category == MediaGIF {
			return &r.Media[i]
		}
	}
	return nil
}

// ObjectNames 返回 Report 引用的全部对象名（Media 在前，中间帧在后）
func (r *Report) ObjectNames() []string {
	names := make([]string, 0, len(r.Media)+len(r.IntermediateFrames))
	for _, m := range r.Media {
		names = append(names, m.ObjectName)
	}
	for _, f := range r.IntermediateFrames {
		names = append(names, f.ObjectName)
	}
	return names
}

// IsStaleProcessing 判断 PROCESSING 状态是否已超过 staleAfter 未更新（任务进程可能已崩溃）
func (r *Report) IsStaleProcessing(now time.Time, staleAfter time.Duration) bool {
	if r.CurrentGifStatus() != GifStatusProcessing || staleAfter <= 0 {
		return false
	}
	return now.Sub(r.GifStatusUpdatedAt) > staleAfter
}
