package gifjob

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"report-media/internal/gif"
	"report-media/internal/shared/cache"
	"report-media/internal/shared/eventbus"
	"report-media/internal/shared/model"
	"report-media/internal/shared/objstore"
	"report-media/internal/shared/objstore/memory"
	"report-media/internal/shared/storage/memstore"
	"report-media/pkg/logging"
)

// faultyBackend 前 failPuts 次 Put 失败，alwaysFail 时全部失败
type faultyBackend struct {
	*memory.Backend

	mu         sync.Mutex
	failPuts   int
	alwaysFail bool
	puts       int
}

func (b *faultyBackend) Put(ctx context.Context, name string, content []byte, mimeType string) error {
	b.mu.Lock()
	b.puts++
	fail := b.alwaysFail || b.puts <= b.failPuts
	b.mu.Unlock()
	if fail {
		return errors.New("connection reset by peer")
	}
	return b.Backend.Put(ctx, name, content, mimeType)
}

func (b *faultyBackend) putCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.puts
}

// gatedEncoder 在 Encode 中阻塞直到 release 关闭
type gatedEncoder struct {
	*gif.Encoder
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func newGatedEncoder() *gatedEncoder {
	return &gatedEncoder{
		Encoder: gif.NewEncoder(),
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (e *gatedEncoder) Encode(ctx context.Context, frames [][]byte, delay int, opts ...gif.EncodeOption) (*gif.EncodedGIF, error) {
	e.once.Do(func() { close(e.started) })
	<-e.release
	return e.Encoder.Encode(ctx, frames, delay, opts...)
}

type harness struct {
	store   *memstore.Store
	backend *faultyBackend
	cache   *cache.MemoryCache
	events  *eventbus.MemoryEventBus
	orch    *Orchestrator

	mu     sync.Mutex
	sleeps []time.Duration
}

type harnessOption func(*Deps, *Config)

func withEncoder(enc FrameEncoder) harnessOption {
	return func(d *Deps, _ *Config) { d.Encoder = enc }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	mem := memory.NewBackend("")
	srv := httptest.NewServer(mem)
	t.Cleanup(srv.Close)
	mem.SetBaseURL(srv.URL)

	h := &harness{
		store:   memstore.NewStore(),
		backend: &faultyBackend{Backend: mem},
		cache:   cache.NewMemoryCache(),
		events:  eventbus.NewMemoryEventBus(),
	}
	objects := objstore.NewStore(h.backend,
		objstore.WithLogger(logging.Discard()),
		objstore.WithSleep(func(d time.Duration) {
			h.mu.Lock()
			h.sleeps = append(h.sleeps, d)
			h.mu.Unlock()
		}),
	)

	deps := Deps{
		Reports: h.store,
		Records: h.store,
		Objects: objects,
		Fetcher: objstore.NewFetcher(srv.Client()),
		Cache:   h.cache,
		Events:  h.events,
		Logger:  logging.Discard(),
	}
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&deps, cfg)
	}
	h.orch = New(deps, cfg)
	return h
}

func (h *harness) seed(t *testing.T, r *model.Report) {
	t.Helper()
	if r.Organisation == "" {
		r.Organisation = "acme"
	}
	if r.AppName == "" {
		r.AppName = "shop"
	}
	require.NoError(t, h.store.CreateReport(context.Background(), r))
}

func (h *harness) report(t *testing.T, id string) *model.Report {
	t.Helper()
	r, err := h.store.GetReport(context.Background(), id)
	require.NoError(t, err)
	return r
}

// seedStoredFrames 模拟之前已上传的中间帧
func (h *harness) seedStoredFrames(t *testing.T, reportID string, frames [][]byte) []model.MediaRef {
	t.Helper()
	ctx := context.Background()
	refs := make([]model.MediaRef, len(frames))
	for i, data := range frames {
		name := objstore.ObjectName(objstore.Namespace{Organisation: "acme", App: "shop"}, model.MediaImage, "frame.jpg", "image/jpeg")
		require.NoError(t, h.backend.Backend.Put(ctx, name, data, "image/jpeg"))
		rec := &model.MediaRecord{
			ID: name, ReportID: reportID, ObjectName: name,
			Category: model.MediaImage, MimeType: "image/jpeg", Role: model.MediaRoleFrame,
			CreatedAt: time.Now(),
		}
		require.NoError(t, h.store.CreateMediaRecord(ctx, rec))
		refs[i] = rec.Ref()
	}
	require.NoError(t, h.store.SetIntermediateFrames(ctx, reportID, refs))
	return refs
}

func jpegFrames(t *testing.T, n int) []Frame {
	t.Helper()
	frames := make([]Frame, n)
	for i := range frames {
		img := image.NewRGBA(image.Rect(0, 0, 16, 12))
		c := color.RGBA{R: uint8(50 * i), G: 80, B: 160, A: 255}
		for y := 0; y < 12; y++ {
			for x := 0; x < 16; x++ {
				img.Set(x, y, c)
			}
		}
		var buf bytes.Buffer
		require.NoError(t, jpeg.Encode(&buf, img, nil))
		frames[i] = Frame{Filename: "frame.jpg", MimeType: "image/jpeg", Data: buf.Bytes()}
	}
	return frames
}

func frameBytes(frames []Frame) [][]byte {
	out := make([][]byte, len(frames))
	for i, f := range frames {
		out[i] = f.Data
	}
	return out
}
