// Package azblob Azure Blob Storage 对象存储后端
package azblob

import (
	"context"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/sas"
)

// Config Azure Blob 后端配置
type Config struct {
	AccountName string
	AccountKey  string
	Container   string
	ServiceURL  string // 留空时为 https://{account}.blob.core.windows.net/
}

// Backend Azure Blob 后端
type Backend struct {
	client    *azblob.Client
	container string
}

// NewBackend 使用共享密钥创建 Azure Blob 后端（SAS 签名需要共享密钥）
func NewBackend(cfg Config) (*Backend, error) {
	if cfg.AccountName == "" || cfg.AccountKey == "" {
		return nil, fmt.Errorf("azure account name and key are required")
	}
	if cfg.Container == "" {
		return nil, fmt.Errorf("azure container is required")
	}
	serviceURL := cfg.ServiceURL
	if serviceURL == "" {
		serviceURL = fmt.Sprintf("https://%s.blob.core.windows.net/", cfg.AccountName)
	}

	cred, err := azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
	if err != nil {
		return nil, fmt.Errorf("invalid azure shared key: %w", err)
	}
	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create azure blob client: %w", err)
	}
	return &Backend{client: client, container: cfg.Container}, nil
}

func (b *Backend) Name() string { return "azure" }

// Put 上传对象
func (b *Backend) Put(ctx context.Context, objectName string, content []byte, mimeType string) error {
	_, err := b.client.UploadBuffer(ctx, b.container, objectName, content, &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: to.Ptr(mimeType)},
	})
	if err != nil {
		return fmt.Errorf("azure put %s: %w", objectName, err)
	}
	return nil
}

// Remove 删除对象，BlobNotFound 视为成功
func (b *Backend) Remove(ctx context.Context, objectName string) error {
	_, err := b.client.DeleteBlob(ctx, b.container, objectName, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.BlobNotFound) {
		return fmt.Errorf("azure delete %s: %w", objectName, err)
	}
	return nil
}

// Presign 生成只读 blob SAS URL
func (b *Backend) Presign(_ context.Context, objectName string, ttl time.Duration) (string, error) {
	blobClient := b.client.ServiceClient().NewContainerClient(b.container).NewBlobClient(objectName)
	url, err := blobClient.GetSASURL(sas.BlobPermissions{Read: true}, time.Now().Add(ttl), nil)
	if err != nil {
		return "", fmt.Errorf("azure sign %s: %w", objectName, err)
	}
	return url, nil
}
