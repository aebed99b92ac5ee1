package objstore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxFetchBytes 单个对象下载上限
const maxFetchBytes = 64 << 20

// Fetcher 通过签名 URL 下载对象
type Fetcher struct {
	client *http.Client
}

// NewFetcher 创建下载器，client 为 nil 时使用 60 秒超时的默认客户端
func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &Fetcher{client: client}
}

// Fetch 下载 url 指向的对象内容
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch object: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("fetch object: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read object: %w", err)
	}
	if len(data) > maxFetchBytes {
		return nil, fmt.Errorf("fetch object: body exceeds %d bytes", maxFetchBytes)
	}
	return data, nil
}
