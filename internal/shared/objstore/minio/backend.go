// Package minio 封装 MinIO 对象存储客户端
package minio

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"report-media/internal/config"
)

// Backend MinIO 后端
type Backend struct {
	mc     *minio.Client
	bucket string
}

// NewBackend 创建 MinIO 后端
func NewBackend(cfg config.MinIOConfig) (*Backend, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio endpoint is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("minio access_key and secret_key are required")
	}

	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	bucket := cfg.Bucket
	if bucket == "" {
		bucket = "report-media"
	}

	return &Backend{mc: mc, bucket: bucket}, nil
}

func (b *Backend) Name() string { return "minio" }

// EnsureBucket 确保 bucket 存在
func (b *Backend) EnsureBucket(ctx context.Context) error {
	exists, err := b.mc.BucketExists(ctx, b.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := b.mc.MakeBucket(ctx, b.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket: %w", err)
		}
		log.Printf("[minio] Created bucket: %s", b.bucket)
	}
	return nil
}

// Put 上传对象
func (b *Backend) Put(ctx context.Context, objectName string, content []byte, mimeType string) error {
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	_, err := b.mc.PutObject(ctx, b.bucket, objectName, bytes.NewReader(content), int64(len(content)), minio.PutObjectOptions{
		ContentType: mimeType,
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", objectName, err)
	}
	return nil
}

// Remove 删除对象（MinIO 对不存在的 key 返回成功）
func (b *Backend) Remove(ctx context.Context, objectName string) error {
	err := b.mc.RemoveObject(ctx, b.bucket, objectName, minio.RemoveObjectOptions{})
	if err != nil && minio.ToErrorResponse(err).Code != "NoSuchKey" {
		return fmt.Errorf("delete %s: %w", objectName, err)
	}
	return nil
}

// Presign 生成 GET 预签名 URL
//
// 配置了 Region 时为纯本地签名；否则 minio-go 首次签名前会查询一次 bucket 所在区域。
func (b *Backend) Presign(ctx context.Context, objectName string, ttl time.Duration) (string, error) {
	u, err := b.mc.PresignedGetObject(ctx, b.bucket, objectName, ttl, nil)
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", objectName, err)
	}
	return u.String(), nil
}
