// Package cache 缓存层类型定义
package cache

import (
	"time"
)

// ============================================================================
// 缓存数据类型
// ============================================================================

// JobState GIF 合成任务运行时状态
type JobState struct {
	ReportID    string    `json:"report_id" redis:"report_id"`
	Status      string    `json:"status" redis:"status"`
	Phase       string    `json:"phase" redis:"phase"`
	Flow        string    `json:"flow" redis:"flow"`
	FramesDone  int       `json:"frames_done" redis:"frames_done"`
	FramesTotal int       `json:"frames_total" redis:"frames_total"`
	Error       string    `json:"error,omitempty" redis:"error"`
	UpdatedAt   time.Time `json:"updated_at" redis:"updated_at"`
}

// ============================================================================
// Key 前缀和 TTL 常量
// ============================================================================

const (
	// Key 前缀
	KeyGifJobState = "gif_job_state:"

	// TTL 常量
	TTLGifJobState = 1 * time.Hour
)
