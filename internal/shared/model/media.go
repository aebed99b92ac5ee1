// Package model 定义核心数据模型
//
// media.go 包含媒体相关的数据模型定义：
//   - MediaCategory：媒体类别枚举与 MIME 分类
//   - MediaRef：Report 引用的对象存储 Blob
//   - MediaRecord：已上传 Blob 的元数据记录
package model

import (
	"errors"
	"fmt"
	"mime"
	"strings"
	"time"
)

// ============================================================================
// MediaCategory - 媒体类别
// ============================================================================

// MediaCategory 媒体类别
type MediaCategory string

const (
	MediaImage MediaCategory = "IMAGE"
	MediaVideo MediaCategory = "VIDEO"
	MediaAudio MediaCategory = "AUDIO"
	MediaPDF   MediaCategory = "PDF"
	MediaGIF   MediaCategory = "GIF"
	MediaCrash MediaCategory = "CRASH" // 崩溃日志（text/plain）
)

// ErrUnsupportedMediaType MIME 类型不在白名单内
var ErrUnsupportedMediaType = errors.New("unsupported media type")

// mimeCategories MIME 白名单
var mimeCategories = map[string]MediaCategory{
	"image/jpeg":      MediaImage,
	"image/png":       MediaImage,
	"image/*":         MediaImage,
	"image/gif":       MediaGIF,
	"video/mp4":       MediaVideo,
	"video/avi":       MediaVideo,
	"audio/mpeg":      MediaAudio,
	"audio/wav":       MediaAudio,
	"audio/aac":       MediaAudio,
	"audio/ogg":       MediaAudio,
	"audio/webm":      MediaAudio,
	"application/pdf": MediaPDF,
	"text/plain":      MediaCrash,
}

// ClassifyMIME 将 MIME 类型映射为媒体类别
//
// 参数部分（如 "; charset=utf-8"）会被忽略，大小写不敏感。
// 不在白名单内的类型返回 ErrUnsupportedMediaType。
func ClassifyMIME(mimeType string) (MediaCategory, error) {
	base := strings.ToLower(strings.TrimSpace(mimeType))
	if mt, _, err := mime.ParseMediaType(base); err == nil {
		base = mt
	}
	if c, ok := mimeCategories[base]; ok {
		return c, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedMediaType, mimeType)
}

// StorageFolder 返回该类别在对象存储中的目录名
func (c MediaCategory) StorageFolder() string {
	if c == MediaCrash {
		return "crashlogs"
	}
	return "media"
}

// ============================================================================
// MediaRef - Report 引用的媒体
// ============================================================================

// MediaRef 指向对象存储中的一个 Blob
//
// ResolvedURL 仅在返回给调用方时由签名 URL 填充，不落库。
type MediaRef struct {
	ObjectName  string        `json:"object_name" bson:"object_name"`
	Category    MediaCategory `json:"media_type" bson:"media_type"`
	CreatedAt   time.Time     `json:"created_at" bson:"created_at"`
	ResolvedURL string        `json:"media_url,omitempty" bson:"-"`
}

// ============================================================================
// MediaRecord - Blob 元数据
// ============================================================================

// MediaRole Blob 在 Report 中的角色
type MediaRole string

const (
	MediaRoleFrame MediaRole = "frame" // 待合成的中间帧
	MediaRoleMedia MediaRole = "media" // 用户可见的附件
)

// MediaRecord 已上传 Blob 的元数据记录
type MediaRecord struct {
	ID         string        `json:"id" bson:"_id" db:"id"`
	ReportID   string        `json:"report_id" bson:"report_id" db:"report_id"`
	ObjectName string        `json:"object_name" bson:"object_name" db:"object_name"`
	Category   MediaCategory `json:"media_type" bson:"media_type" db:"media_type"`
	MimeType   string        `json:"mime_type" bson:"mime_type" db:"mime_type"`
	Size       int64         `json:"size" bson:"size" db:"size"`
	Role       MediaRole     `json:"role" bson:"role" db:"role"`
	CreatedAt  time.Time     `json:"created_at" bson:"created_at" db:"created_at"`
}

// Ref 转换为 MediaRef
func (r *MediaRecord) Ref() MediaRef {
	return MediaRef{
		ObjectName: r.ObjectName,
		Category:   r.Category,
		CreatedAt:  r.CreatedAt,
	}
}
