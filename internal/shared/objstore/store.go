// Package objstore 提供与云厂商无关的对象存储抽象
//
// Store 在 Backend 之上实现统一语义：
//   - Upload：最多 MaxRetries 次尝试，第 n 次失败后等待 n 秒（线性退避）
//   - Delete：幂等，对象不存在视为成功
//   - SignedURL：只读签名 URL，有效期固定为 SignedURLTTL
//
// 具体厂商实现在子包 s3 / gcs / azblob / minio 中，由 provider 包按配置选择。
package objstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"report-media/internal/shared/metrics"
	"report-media/pkg/logging"
)

const (
	// MaxRetries 上传最大尝试次数
	MaxRetries = 3

	// RetryBaseDelay 线性退避基数，第 n 次失败后等待 n × RetryBaseDelay
	RetryBaseDelay = time.Second

	// SignedURLTTL 签名 URL 有效期
	SignedURLTTL = 7 * 24 * time.Hour
)

// ErrStorageUnavailable 重试耗尽后上传仍失败
var ErrStorageUnavailable = errors.New("object storage unavailable")

// ObjectStore 对象存储接口（调用方只依赖该接口）
type ObjectStore interface {
	Upload(ctx context.Context, content []byte, objectName, mimeType string) error
	Delete(ctx context.Context, objectName string) error
	SignedURL(ctx context.Context, objectName string) (string, error)
}

// Backend 厂商实现需要提供的最小能力
//
// Put 只做一次尝试，重试由 Store 负责；Remove 对不存在的对象返回 nil；
// Presign 应当是纯本地签名，不发起网络请求。
type Backend interface {
	Name() string
	Put(ctx context.Context, objectName string, content []byte, mimeType string) error
	Remove(ctx context.Context, objectName string) error
	Presign(ctx context.Context, objectName string, ttl time.Duration) (string, error)
}

// Store 带重试的对象存储
type Store struct {
	backend    Backend
	maxRetries int
	baseDelay  time.Duration
	sleep      func(time.Duration)
	logger     *logging.Logger
	metrics    *metrics.Metrics
}

var _ ObjectStore = (*Store)(nil)

// Option Store 可选项
type Option func(*Store)

// WithSleep 替换退避等待函数（测试中用于记录等待时长而不真正睡眠）
func WithSleep(sleep func(time.Duration)) Option {
	return func(s *Store) { s.sleep = sleep }
}

// WithLogger 设置日志器
func WithLogger(l *logging.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithMetrics 设置指标
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// NewStore 创建对象存储
func NewStore(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend:    backend,
		maxRetries: MaxRetries,
		baseDelay:  RetryBaseDelay,
		sleep:      time.Sleep,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.Default("objstore")
	}
	return s
}

// Provider 返回后端名称
func (s *Store) Provider() string {
	return s.backend.Name()
}

// Close 释放后端持有的连接（如 GCS 客户端），后端无需释放时直接返回
func (s *Store) Close() error {
	if c, ok := s.backend.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Upload 上传对象
//
// 退避期间不检查 ctx，单次尝试是否受 ctx 约束由后端决定。
func (s *Store) Upload(ctx context.Context, content []byte, objectName, mimeType string) error {
	var lastErr error
	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		start := time.Now()
		err := s.backend.Put(ctx, objectName, content, mimeType)
		elapsed := time.Since(start)
		s.metrics.RecordStorageOp(s.backend.Name(), "put", err, elapsed)
		s.logger.StorageOpLog("put", objectName, attempt, elapsed, err)
		if err == nil {
			s.metrics.RecordUploadBytes(len(content))
			return nil
		}
		lastErr = err
		if attempt < s.maxRetries {
			s.sleep(time.Duration(attempt) * s.baseDelay)
		}
	}
	return fmt.Errorf("%w: upload %s after %d attempts: %v", ErrStorageUnavailable, objectName, s.maxRetries, lastErr)
}

// Delete 删除对象（不重试）
func (s *Store) Delete(ctx context.Context, objectName string) error {
	start := time.Now()
	err := s.backend.Remove(ctx, objectName)
	elapsed := time.Since(start)
	s.metrics.RecordStorageOp(s.backend.Name(), "delete", err, elapsed)
	s.logger.StorageOpLog("delete", objectName, 1, elapsed, err)
	if err != nil {
		return fmt.Errorf("delete %s: %w", objectName, err)
	}
	return nil
}

// SignedURL 生成只读签名 URL
func (s *Store) SignedURL(ctx context.Context, objectName string) (string, error) {
	url, err := s.backend.Presign(ctx, objectName, SignedURLTTL)
	s.metrics.RecordSignedURL(err == nil)
	if err != nil {
		return "", fmt.Errorf("sign %s: %w", objectName, err)
	}
	return url, nil
}
