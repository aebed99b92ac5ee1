// Package redis GIF 任务状态缓存操作
package redis

import (
	"context"
	"strconv"
	"time"

	"report-media/internal/shared/cache"
)

// SetJobState 写入任务状态（整体覆盖并刷新 TTL）
func (s *Store) SetJobState(ctx context.Context, reportID string, state *cache.JobState) error {
	key := cache.KeyGifJobState + reportID

	updatedAt := state.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	data := map[string]interface{}{
		"report_id":    reportID,
		"status":       state.Status,
		"phase":        state.Phase,
		"flow":         state.Flow,
		"frames_done":  state.FramesDone,
		"frames_total": state.FramesTotal,
		"error":        state.Error,
		"updated_at":   updatedAt.UTC().Format(time.RFC3339Nano),
	}

	pipe := s.client.Pipeline()
	pipe.HSet(ctx, key, data)
	pipe.Expire(ctx, key, s.ttl)
	_, err := pipe.Exec(ctx)

	return err
}

// GetJobState 获取任务状态
func (s *Store) GetJobState(ctx context.Context, reportID string) (*cache.JobState, error) {
	key := cache.KeyGifJobState + reportID

	result, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, err
	}

	if len(result) == 0 {
		return nil, nil
	}

	state := &cache.JobState{
		ReportID: reportID,
		Status:   result["status"],
		Phase:    result["phase"],
		Flow:     result["flow"],
		Error:    result["error"],
	}
	if n, err := strconv.Atoi(result["frames_done"]); err == nil {
		state.FramesDone = n
	}
	if n, err := strconv.Atoi(result["frames_total"]); err == nil {
		state.FramesTotal = n
	}
	if t, err := time.Parse(time.RFC3339Nano, result["updated_at"]); err == nil {
		state.UpdatedAt = t
	}

	return state, nil
}

// DeleteJobState 删除任务状态
func (s *Store) DeleteJobState(ctx context.Context, reportID string) error {
	return s.client.Del(ctx, cache.KeyGifJobState+reportID).Err()
}
