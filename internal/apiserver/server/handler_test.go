package server

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"report-media/internal/apiserver/gifjob"
	"report-media/internal/apiserver/report"
	"report-media/internal/shared/eventbus"
	"report-media/internal/shared/metrics"
	"report-media/internal/shared/model"
	"report-media/internal/shared/objstore"
	"report-media/internal/shared/objstore/memory"
	"report-media/internal/shared/storage/memstore"
	"report-media/pkg/logging"
)

type testServer struct {
	srv     *httptest.Server
	store   *memstore.Store
	backend *memory.Backend
	objects *objstore.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	ts := &testServer{store: memstore.NewStore()}
	ts.backend = memory.NewBackend("")
	ts.objects = objstore.NewStore(ts.backend, objstore.WithLogger(logging.Discard()))

	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics("report_media", reg)

	jobs := gifjob.New(gifjob.Deps{
		Reports: ts.store,
		Records: ts.store,
		Objects: ts.objects,
		Logger:  logging.Discard(),
	}, nil)
	reports := report.NewHandler(report.Deps{
		Reports: ts.store,
		Records: ts.store,
		Objects: ts.objects,
		Jobs:    jobs,
		Events:  eventbus.NewMemoryEventBus(),
		Metrics: m,
	})

	h := NewHandler(reports, m)
	h.SetGatherer(reg)
	h.SetBlobHandler(ts.backend)

	ts.srv = httptest.NewServer(h.Router())
	t.Cleanup(ts.srv.Close)
	ts.backend.SetBaseURL(ts.srv.URL + BlobPrefix)
	return ts
}

func (ts *testServer) get(t *testing.T, path string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(ts.srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	resp, body := ts.get(t, "/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, body)
}

func TestMetrics_RecordsRoutePattern(t *testing.T) {
	ts := newTestServer(t)
	require.NoError(t, ts.store.CreateReport(context.Background(), &model.Report{ID: "R1", Organisation: "acme", AppName: "shop"}))

	resp, _ := ts.get(t, "/api/v1/reports/R1")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	_, body := ts.get(t, "/metrics")
	assert.Contains(t, body, "report_media_http_requests_total")
	assert.Contains(t, body, `path="GET /api/v1/reports/{id}"`)
	assert.NotContains(t, body, "/api/v1/reports/R1")
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t)
	req, _ := http.NewRequest(http.MethodOptions, ts.srv.URL+"/api/v1/reports/R1/media", nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

// 内存后端的签名 URL 通过同一个服务下载
func TestBlobDownload(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	require.NoError(t, ts.objects.Upload(ctx, []byte("panic: boom"), "acme/shop/crashlogs/x.txt", "text/plain"))

	url, err := ts.objects.SignedURL(ctx, "acme/shop/crashlogs/x.txt")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, ts.srv.URL+BlobPrefix+"/"), url)

	resp, body := ts.get(t, strings.TrimPrefix(url, ts.srv.URL))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "panic: boom", body)

	// 篡改签名
	resp, _ = ts.get(t, strings.TrimPrefix(url, ts.srv.URL)+"0")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestWebSocketRoute(t *testing.T) {
	ts := newTestServer(t)
	require.NoError(t, ts.store.CreateReport(context.Background(), &model.Report{
		ID: "W1", Organisation: "acme", AppName: "shop", GifStatus: model.GifStatusCompleted,
	}))

	url := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + "/ws/reports/W1/gif-status"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var msg map[string]interface{}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "snapshot", msg["type"])
}

func TestRequestLogMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWithWriter(&buf, slog.LevelInfo, "json", "api-server")

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/reports/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	rec := httptest.NewRecorder()
	requestLogMiddleware(logger, mux).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/reports/R9", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	out := buf.String()
	assert.Contains(t, out, `"path":"GET /api/v1/reports/{id}"`)
	assert.Contains(t, out, `"status":404`)
	assert.NotContains(t, out, "R9")
}
