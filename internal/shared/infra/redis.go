package infra

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"report-media/internal/config"
	"report-media/internal/shared/cache"
	cacheredis "report-media/internal/shared/cache/redis"
	"report-media/internal/shared/eventbus"
	eventbusredis "report-media/internal/shared/eventbus/redis"
)

// redisDialTimeout 启动时 PING 的超时
const redisDialTimeout = 5 * time.Second

// RedisInfra 共享一个连接的任务状态缓存与事件总线
type RedisInfra struct {
	client *redis.Client
	states *cacheredis.Store
	events *eventbusredis.Store
}

var (
	_ cache.Cache       = (*RedisInfra)(nil)
	_ eventbus.EventBus = (*RedisInfra)(nil)
)

// NewRedisInfra 解析 cfg.RedisURL 并确认连接可用
func NewRedisInfra(ctx context.Context, cfg *config.Config) (*RedisInfra, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, redisDialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}
	log.Printf("[infra.redis] connected addr=%s db=%d", opts.Addr, opts.DB)

	return &RedisInfra{
		client: client,
		states: cacheredis.New(client, cacheredis.WithTTL(cfg.Redis.StateTTL)),
		events: eventbusredis.New(client, eventbusredis.WithMaxLen(cfg.Redis.StreamMaxLen)),
	}, nil
}

// Close 关闭共享连接
func (r *RedisInfra) Close() error {
	return r.client.Close()
}

func (r *RedisInfra) SetJobState(ctx context.Context, reportID string, state *cache.JobState) error {
	return r.states.SetJobState(ctx, reportID, state)
}

func (r *RedisInfra) GetJobState(ctx context.Context, reportID string) (*cache.JobState, error) {
	return r.states.GetJobState(ctx, reportID)
}

func (r *RedisInfra) DeleteJobState(ctx context.Context, reportID string) error {
	return r.states.DeleteJobState(ctx, reportID)
}

func (r *RedisInfra) PublishJobEvent(ctx context.Context, reportID string, event *eventbus.JobEvent) error {
	return r.events.PublishJobEvent(ctx, reportID, event)
}

func (r *RedisInfra) GetJobEvents(ctx context.Context, reportID, fromID string, count int64) ([]*eventbus.JobEvent, error) {
	return r.events.GetJobEvents(ctx, reportID, fromID, count)
}

func (r *RedisInfra) SubscribeJobEvents(ctx context.Context, reportID string) (<-chan *eventbus.JobEvent, error) {
	return r.events.SubscribeJobEvents(ctx, reportID)
}

func (r *RedisInfra) DeleteJobEvents(ctx context.Context, reportID string) error {
	return r.events.DeleteJobEvents(ctx, reportID)
}
