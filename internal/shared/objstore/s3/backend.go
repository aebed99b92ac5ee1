// Package s3 AWS S3 对象存储后端
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// defaultRegion 未配置区域时的回退值
const defaultRegion = "us-east-1"

// Config S3 后端配置
//
// AccessKeyID / SecretAccessKey 为空时走默认凭证链（环境变量、实例角色、IRSA）。
type Config struct {
	Region          string
	Bucket          string
	Endpoint        string // 兼容 S3 协议的自建服务，留空使用 AWS
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

// Backend S3 后端
type Backend struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
}

// NewBackend 创建 S3 后端，凭证或配置错误在此处返回
func NewBackend(ctx context.Context, cfg Config) (*Backend, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	region := cfg.Region
	if region == "" {
		region = defaultRegion
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKeyID != "" || cfg.SecretAccessKey != "" {
		if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
			return nil, fmt.Errorf("s3 access key id and secret access key must be set together")
		}
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &Backend{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  cfg.Bucket,
	}, nil
}

func (b *Backend) Name() string { return "aws" }

// Put 上传对象
func (b *Backend) Put(ctx context.Context, objectName string, content []byte, mimeType string) error {
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(b.bucket),
		Key:           aws.String(objectName),
		Body:          bytes.NewReader(content),
		ContentLength: aws.Int64(int64(len(content))),
		ContentType:   aws.String(mimeType),
	})
	if err != nil {
		return fmt.Errorf("s3 put %s: %w", objectName, err)
	}
	return nil
}

// Remove 删除对象
//
// S3 DeleteObject 对不存在的 key 本身返回成功，这里只额外兼容 NoSuchKey。
func (b *Backend) Remove(ctx context.Context, objectName string) error {
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(objectName),
	})
	var nsk *types.NoSuchKey
	if err != nil && !errors.As(err, &nsk) {
		return fmt.Errorf("s3 delete %s: %w", objectName, err)
	}
	return nil
}

// Presign 生成 GET 预签名 URL（本地 SigV4 签名，不发起请求）
func (b *Backend) Presign(ctx context.Context, objectName string, ttl time.Duration) (string, error) {
	req, err := b.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(objectName),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("s3 presign %s: %w", objectName, err)
	}
	return req.URL, nil
}
