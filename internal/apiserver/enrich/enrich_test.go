package enrich

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"

	"report-media/internal/shared/model"
	"report-media/pkg/logging"
)

type fakeSigner struct {
	mu    sync.Mutex
	calls map[string]int
	total atomic.Int32
}

func (s *fakeSigner) SignedURL(_ context.Context, name string) (string, error) {
	s.total.Add(1)
	s.mu.Lock()
	if s.calls == nil {
		s.calls = map[string]int{}
	}
	s.calls[name]++
	s.mu.Unlock()
	if strings.HasPrefix(name, "bad/") {
		return "", errors.New("signing key revoked")
	}
	return "https://signed/" + name, nil
}

func TestResolve(t *testing.T) {
	signer := &fakeSigner{}
	e := New(signer, logging.Discard())

	got := e.Resolve(context.Background(), []string{"a", "b", "a", "bad/c", ""})
	assert.Equal(t, map[string]string{
		"a": "https://signed/a",
		"b": "https://signed/b",
	}, got)

	// 每个不同的名称只签名一次
	assert.Equal(t, int32(3), signer.total.Load())
	assert.Equal(t, 1, signer.calls["a"])
}

func TestResolve_Empty(t *testing.T) {
	e := New(&fakeSigner{}, logging.Discard())
	assert.Empty(t, e.Resolve(context.Background(), nil))
}

func TestEnrichReport(t *testing.T) {
	e := New(&fakeSigner{}, logging.Discard())
	r := &model.Report{
		Media: []model.MediaRef{
			{ObjectName: "o/a/media/1.gif", Category: model.MediaGIF},
			{ObjectName: "bad/o/a/media/2.png", Category: model.MediaImage},
		},
		IntermediateFrames: []model.MediaRef{{ObjectName: "o/a/media/f.jpg"}},
	}

	e.EnrichReport(context.Background(), r)
	assert.Equal(t, "https://signed/o/a/media/1.gif", r.Media[0].ResolvedURL)
	assert.Empty(t, r.Media[1].ResolvedURL)
	assert.Equal(t, "https://signed/o/a/media/f.jpg", r.IntermediateFrames[0].ResolvedURL)

	e.EnrichReport(context.Background(), nil)
}
