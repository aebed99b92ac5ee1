package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"report-media/internal/gif"
)

const (
	// DefaultMaxUploadBytes 单次请求体上限
	DefaultMaxUploadBytes = 64 << 20

	// multipartMemory 解析 multipart 时保留在内存中的上限，超出部分落临时文件
	multipartMemory = 32 << 20
)

// errBadRequest 请求参数错误
var errBadRequest = errors.New("bad request")

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// upload 一个 multipart 文件
type upload struct {
	Filename string
	MimeType string
	Data     []byte
}

// parseMultipart 限制请求体大小并解析 multipart 表单
func (h *Handler) parseMultipart(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return fmt.Errorf("%w: invalid multipart form: %v", errBadRequest, err)
	}
	return nil
}

// readUpload 读取文件内容，缺少 Content-Type 时按内容嗅探
func readUpload(fh *multipart.FileHeader) (upload, error) {
	f, err := fh.Open()
	if err != nil {
		return upload{}, fmt.Errorf("open %s: %w", fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return upload{}, fmt.Errorf("read %s: %w", fh.Filename, err)
	}
	mimeType := fh.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}
	return upload{Filename: fh.Filename, MimeType: mimeType, Data: data}, nil
}

// queryDelay 读取帧间隔参数，0 表示沿用配置值
func queryDelay(r *http.Request) (int, error) {
	delay, err := queryInt(r, "delay")
	if err != nil {
		return 0, err
	}
	if delay > gif.MaxDelay {
		return 0, fmt.Errorf("%w: delay must not exceed %d", errBadRequest, gif.MaxDelay)
	}
	return delay, nil
}

// queryInt 读取非负整数查询参数，缺省返回 0
func queryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", errBadRequest, key)
	}
	return n, nil
}
