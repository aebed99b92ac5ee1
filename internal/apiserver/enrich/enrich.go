// Package enrich 为返回给调用方的媒体批量生成签名 URL
package enrich

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"report-media/internal/shared/model"
	"report-media/pkg/logging"
)

// URLSigner 生成只读签名 URL
type URLSigner interface {
	SignedURL(ctx context.Context, objectName string) (string, error)
}

// Enricher 签名 URL 解析器
type Enricher struct {
	signer URLSigner
	logger *logging.Logger
}

// New 创建解析器，logger 为 nil 时使用默认日志器
func New(signer URLSigner, logger *logging.Logger) *Enricher {
	if logger == nil {
		logger = logging.Default("enrich")
	}
	return &Enricher{signer: signer, logger: logger}
}

// Resolve 并发为每个不同的对象名生成签名 URL
//
// 签名失败的对象不出现在结果中，调用方需要容忍缺失项。
func (e *Enricher) Resolve(ctx context.Context, names []string) map[string]string {
	urls := make(map[string]string, len(names))
	if len(names) == 0 {
		return urls
	}

	var mu sync.Mutex
	var g errgroup.Group
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}

		g.Go(func() error {
			url, err := e.signer.SignedURL(ctx, name)
			if err != nil {
				e.logger.WithError(err).Warn("Failed to sign object", "object", name)
				return nil
			}
			mu.Lock()
			urls[name] = url
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return urls
}

// EnrichReport 为 Report 的媒体与中间帧填充 ResolvedURL
func (e *Enricher) EnrichReport(ctx context.Context, r *model.Report) {
	if r == nil {
		return
	}
	urls := e.Resolve(ctx, r.ObjectNames())
	for i := range r.Media {
		r.Media[i].ResolvedURL = urls[r.Media[i].ObjectName]
	}
	for i := range r.IntermediateFrames {
		r.IntermediateFrames[i].ResolvedURL = urls[r.IntermediateFrames[i].ObjectName]
	}
}
