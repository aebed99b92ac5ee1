// Package provider 按配置选择对象存储后端
package provider

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"report-media/internal/config"
	"report-media/internal/shared/objstore"
	"report-media/internal/shared/objstore/azblob"
	"report-media/internal/shared/objstore/gcs"
	"report-media/internal/shared/objstore/memory"
	"report-media/internal/shared/objstore/minio"
	"report-media/internal/shared/objstore/s3"
)

// 支持的后端名称
const (
	ProviderAWS    = "aws"
	ProviderGCP    = "gcp"
	ProviderAzure  = "azure"
	ProviderMinIO  = "minio"
	ProviderMemory = "memory"
)

// NewBackend 根据 cfg.Provider 创建后端
//
// memory 后端的签名 URL 以 baseURL 为前缀，调用方需把它挂载到 HTTP 路由上。
func NewBackend(ctx context.Context, cfg config.StorageConfig, baseURL string) (objstore.Backend, error) {
	switch strings.ToLower(cfg.Provider) {
	case ProviderAWS:
		b, err := s3.NewBackend(ctx, s3.Config{
			Region:          cfg.AWS.Region,
			Bucket:          cfg.AWS.Bucket,
			Endpoint:        cfg.AWS.Endpoint,
			AccessKeyID:     cfg.AWS.AccessKeyID,
			SecretAccessKey: cfg.AWS.SecretAccessKey,
			UsePathStyle:    cfg.AWS.UsePathStyle,
		})
		if err != nil {
			return nil, err
		}
		return b, nil
	case ProviderGCP:
		gcfg := gcs.Config{
			Bucket:      cfg.GCP.Bucket,
			ClientEmail: cfg.GCP.ClientEmail,
			PrivateKey:  cfg.GCP.PrivateKey,
		}
		if cfg.GCP.CredentialsFile != "" {
			data, err := os.ReadFile(cfg.GCP.CredentialsFile)
			if err != nil {
				return nil, fmt.Errorf("read gcp credentials file: %w", err)
			}
			gcfg.CredentialsJSON = string(data)
		}
		b, err := gcs.NewBackend(ctx, gcfg)
		if err != nil {
			return nil, err
		}
		return b, nil
	case ProviderAzure:
		b, err := azblob.NewBackend(azblob.Config{
			AccountName: cfg.Azure.AccountName,
			AccountKey:  cfg.Azure.AccountKey,
			Container:   cfg.Azure.Container,
			ServiceURL:  cfg.Azure.ServiceURL,
		})
		if err != nil {
			return nil, err
		}
		return b, nil
	case ProviderMinIO:
		b, err := minio.NewBackend(cfg.MinIO)
		if err != nil {
			return nil, err
		}
		if err := b.EnsureBucket(ctx); err != nil {
			log.Printf("[objstore] WARNING: ensure bucket failed: %v", err)
		}
		return b, nil
	case ProviderMemory:
		return memory.NewBackend(baseURL), nil
	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.Provider)
	}
}

// New 创建带重试语义的对象存储
func New(ctx context.Context, cfg config.StorageConfig, baseURL string, opts ...objstore.Option) (*objstore.Store, error) {
	backend, err := NewBackend(ctx, cfg, baseURL)
	if err != nil {
		return nil, fmt.Errorf("init %s storage: %w", cfg.Provider, err)
	}
	log.Printf("[objstore] Using %s backend", backend.Name())
	return objstore.NewStore(backend, opts...), nil
}
