// Package gcs Google Cloud Storage 对象存储后端
package gcs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// Config GCS 后端配置
//
// 签名 URL 使用服务账号私钥在本地做 V4 签名，因此 ClientEmail / PrivateKey 必填。
type Config struct {
	Bucket          string
	ClientEmail     string
	PrivateKey      string // PEM
	CredentialsJSON string // 可选，留空时使用 ADC
}

// Backend GCS 后端
type Backend struct {
	client      *storage.Client
	bucket      string
	clientEmail string
	privateKey  []byte
}

// NewBackend 创建 GCS 后端
func NewBackend(ctx context.Context, cfg Config) (*Backend, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("gcs bucket is required")
	}
	if cfg.ClientEmail == "" || cfg.PrivateKey == "" {
		return nil, fmt.Errorf("gcs client email and private key are required for signed URLs")
	}

	var opts []option.ClientOption
	if cfg.CredentialsJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gcs client: %w", err)
	}

	return &Backend{
		client:      client,
		bucket:      cfg.Bucket,
		clientEmail: cfg.ClientEmail,
		privateKey:  []byte(cfg.PrivateKey),
	}, nil
}

func (b *Backend) Name() string { return "gcp" }

// Close 关闭客户端
func (b *Backend) Close() error {
	return b.client.Close()
}

// Put 上传对象
func (b *Backend) Put(ctx context.Context, objectName string, content []byte, mimeType string) error {
	w := b.client.Bucket(b.bucket).Object(objectName).NewWriter(ctx)
	w.ContentType = mimeType
	if _, err := w.Write(content); err != nil {
		w.Close()
		return fmt.Errorf("gcs write %s: %w", objectName, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("gcs put %s: %w", objectName, err)
	}
	return nil
}

// Remove 删除对象，对象不存在视为成功
func (b *Backend) Remove(ctx context.Context, objectName string) error {
	err := b.client.Bucket(b.bucket).Object(objectName).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("gcs delete %s: %w", objectName, err)
	}
	return nil
}

// Presign 生成 V4 签名 URL
func (b *Backend) Presign(_ context.Context, objectName string, ttl time.Duration) (string, error) {
	url, err := storage.SignedURL(b.bucket, objectName, signOptions(b.clientEmail, b.privateKey, ttl))
	if err != nil {
		return "", fmt.Errorf("gcs sign %s: %w", objectName, err)
	}
	return url, nil
}

func signOptions(email string, key []byte, ttl time.Duration) *storage.SignedURLOptions {
	return &storage.SignedURLOptions{
		GoogleAccessID: email,
		PrivateKey:     key,
		Method:         "GET",
		Expires:        time.Now().Add(ttl),
		Scheme:         storage.SigningSchemeV4,
	}
}
