// Package eventbus 事件总线类型定义
package eventbus

import (
	"time"
)

// ============================================================================
// 事件类型
// ============================================================================

// JobEvent GIF 合成任务事件
type JobEvent struct {
	ID        string                 `json:"id"`
	Seq       int                    `json:"seq"`
	Type      string                 `json:"type"`
	ReportID  string                 `json:"report_id"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// 事件类型
const (
	EventStatusChanged = "status_changed" // 状态机迁移，Data: status / error
	EventPhaseStarted  = "phase_started"  // 进入新阶段，Data: phase
	EventProgress      = "progress"       // 合成进度，Data: frames_done / frames_total
)

// Status 返回 status_changed 事件携带的状态
func (e *JobEvent) Status() string {
	if e.Type != EventStatusChanged {
		return ""
	}
	s, _ := e.Data["status"].(string)
	return s
}

// ============================================================================
// Key 前缀和常量
// ============================================================================

const (
	// Key 前缀
	KeyGifJobEvents = "gif_job_events:"

	// Stream 最大长度
	MaxStreamLength = 1000
)
