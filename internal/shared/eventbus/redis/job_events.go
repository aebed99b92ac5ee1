// Package redis GIF 任务事件总线操作
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"report-media/internal/shared/eventbus"
)

// PublishJobEvent 发布任务事件
func (s *Store) PublishJobEvent(ctx context.Context, reportID string, event *eventbus.JobEvent) error {
	key := eventbus.KeyGifJobEvents + reportID

	dataJSON, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}
	ts := event.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	args := &redis.XAddArgs{
		Stream: key,
		MaxLen: s.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"type":      event.Type,
			"timestamp": ts.UTC().Format(time.RFC3339Nano),
			"data":      string(dataJSON),
		},
	}

	id, err := s.client.XAdd(ctx, args).Result()
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	log.Printf("[Redis/EventBus] Published event: report=%s seq=%s type=%s", reportID, id, event.Type)
	return nil
}

// GetJobEvents 获取任务事件列表（fromID 为空时从头读取，否则不包含 fromID 本身）
func (s *Store) GetJobEvents(ctx context.Context, reportID string, fromID string, count int64) ([]*eventbus.JobEvent, error) {
	key := eventbus.KeyGifJobEvents + reportID

	start := "-"
	if fromID != "" {
		start = fromID
	}

	msgs, err := s.client.XRange(ctx, key, start, "+").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}

	var events []*eventbus.JobEvent
	for i, msg := range msgs {
		if msg.ID == fromID {
			continue
		}
		event := decodeMessage(reportID, msg)
		event.Seq = i + 1
		events = append(events, event)

		if count > 0 && int64(len(events)) >= count {
			break
		}
	}

	return events, nil
}

// SubscribeJobEvents 订阅任务事件
func (s *Store) SubscribeJobEvents(ctx context.Context, reportID string) (<-chan *eventbus.JobEvent, error) {
	key := eventbus.KeyGifJobEvents + reportID
	ch := make(chan *eventbus.JobEvent, 100)

	// 订阅起点在返回前确定，调用方随后读取快照时不会漏掉中间的事件
	lastID := "0-0"
	latest, err := s.client.XRevRangeN(ctx, key, "+", "-", 1).Result()
	if err != nil {
		return nil, fmt.Errorf("resolve stream tail: %w", err)
	}
	if len(latest) > 0 {
		lastID = latest[0].ID
	}

	go func() {
		defer close(ch)

		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			streams, err := s.client.XRead(ctx, &redis.XReadArgs{
				Streams: []string{key, lastID},
				Count:   10,
				Block:   5 * time.Second,
			}).Result()

			if err != nil {
				if err == redis.Nil {
					continue
				}
				if ctx.Err() == nil {
					log.Printf("[Redis/EventBus] Event subscription error: %v", err)
				}
				return
			}

			for _, stream := range streams {
				for _, msg := range stream.Messages {
					select {
					case ch <- decodeMessage(reportID, msg):
						lastID = msg.ID
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	return ch, nil
}

// DeleteJobEvents 删除任务事件流
func (s *Store) DeleteJobEvents(ctx context.Context, reportID string) error {
	return s.client.Del(ctx, eventbus.KeyGifJobEvents+reportID).Err()
}

func decodeMessage(reportID string, msg redis.XMessage) *eventbus.JobEvent {
	event := &eventbus.JobEvent{ID: msg.ID, ReportID: reportID}
	if typ, ok := msg.Values["type"].(string); ok {
		event.Type = typ
	}
	if ts, ok := msg.Values["timestamp"].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			event.Timestamp = t
		}
	}
	if dataStr, ok := msg.Values["data"].(string); ok {
		var data map[string]interface{}
		if err := json.Unmarshal([]byte(dataStr), &data); err == nil {
			event.Data = data
		}
	}
	return event
}
