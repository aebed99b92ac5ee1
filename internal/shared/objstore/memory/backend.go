// Package memory 基于进程内存的对象存储后端
//
// 用于本地调试（storage.provider=memory）和测试。
// 签名 URL 使用 HMAC-SHA256 生成，Backend 本身实现 http.Handler，
// 挂载后可以像真实对象存储一样通过签名 URL 读取对象。
package memory

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

type object struct {
	data        []byte
	contentType string
}

// Backend 内存对象存储
type Backend struct {
	mu      sync.RWMutex
	objects map[string]object
	baseURL string
	secret  []byte
	now     func() time.Time
}

// NewBackend 创建内存后端，baseURL 为签名 URL 的前缀（如 http://localhost:8080/blobs）
func NewBackend(baseURL string) *Backend {
	secret := make([]byte, 32)
	_, _ = rand.Read(secret)
	return &Backend{
		objects: make(map[string]object),
		baseURL: strings.TrimRight(baseURL, "/"),
		secret:  secret,
		now:     time.Now,
	}
}

// SetBaseURL 设置签名 URL 前缀（httptest.Server 启动后才知道地址）
func (b *Backend) SetBaseURL(baseURL string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.baseURL = strings.TrimRight(baseURL, "/")
}

func (b *Backend) Name() string { return "memory" }

// Put 保存对象副本
func (b *Backend) Put(_ context.Context, objectName string, content []byte, mimeType string) error {
	data := make([]byte, len(content))
	copy(data, content)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[objectName] = object{data: data, contentType: mimeType}
	return nil
}

// Remove 删除对象，不存在时不报错
func (b *Backend) Remove(_ context.Context, objectName string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, objectName)
	return nil
}

// Presign 生成签名 URL
func (b *Backend) Presign(_ context.Context, objectName string, ttl time.Duration) (string, error) {
	b.mu.RLock()
	base := b.baseURL
	b.mu.RUnlock()

	expires := strconv.FormatInt(b.now().Add(ttl).Unix(), 10)
	q := url.Values{}
	q.Set("expires", expires)
	q.Set("sig", b.sign(objectName, expires))
	return base + "/" + escapePath(objectName) + "?" + q.Encode(), nil
}

// escapePath 逐段转义对象名，保留 "/" 分隔符
func escapePath(objectName string) string {
	segs := strings.Split(objectName, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.Join(segs, "/")
}

// Has 判断对象是否存在
func (b *Backend) Has(objectName string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.objects[objectName]
	return ok
}

// Get 读取对象内容
func (b *Backend) Get(objectName string) ([]byte, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	obj, ok := b.objects[objectName]
	return obj.data, ok
}

// Len 返回对象数量
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.objects)
}

func (b *Backend) sign(objectName, expires string) string {
	mac := hmac.New(sha256.New, b.secret)
	mac.Write([]byte(objectName))
	mac.Write([]byte{0})
	mac.Write([]byte(expires))
	return hex.EncodeToString(mac.Sum(nil))
}

// ServeHTTP 校验签名后返回对象内容
//
// 请求路径（已解码）去掉 baseURL 的路径部分后即为对象名。
func (b *Backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	b.mu.RLock()
	base := b.baseURL
	b.mu.RUnlock()
	prefix := ""
	if u, err := url.Parse(base); err == nil {
		prefix = u.Path
	}
	name := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, prefix), "/")

	expires := r.URL.Query().Get("expires")
	sig := r.URL.Query().Get("sig")
	exp, err := strconv.ParseInt(expires, 10, 64)
	if err != nil || !hmac.Equal([]byte(sig), []byte(b.sign(name, expires))) {
		http.Error(w, "invalid signature", http.StatusForbidden)
		return
	}
	if b.now().Unix() > exp {
		http.Error(w, "signature expired", http.StatusForbidden)
		return
	}

	b.mu.RLock()
	obj, ok := b.objects[name]
	b.mu.RUnlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	if obj.contentType != "" {
		w.Header().Set("Content-Type", obj.contentType)
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(obj.data)))
	w.Write(obj.data)
}
