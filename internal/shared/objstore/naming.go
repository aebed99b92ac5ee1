package objstore

import (
	"strings"

	"report-media/internal/shared/model"

	"github.com/google/uuid"
)

// Namespace 对象名前缀
type Namespace struct {
	Organisation string
	App          string
}

// unknownSegment 组织或应用名缺失时使用的路径段
const unknownSegment = "unknown"

// NamespaceOf 从 Report 取对象名前缀
func NamespaceOf(r *model.Report) Namespace {
	return Namespace{Organisation: r.Organisation, App: r.AppName}
}

// ObjectName 生成对象名
//
// 格式：{organisation}/{app}/{media|crashlogs}/{uuid}{ext}
// ext 取原始文件名最后一个 "." 之后的部分（含 "."），audio/mpeg 固定为 .mp3。
// 组织或应用名为空时该段写作 "unknown"，名字中的 "/" 替换为 "-"。
func ObjectName(ns Namespace, category model.MediaCategory, filename, mimeType string) string {
	return segment(ns.Organisation) + "/" + segment(ns.App) + "/" + category.StorageFolder() + "/" + uuid.NewString() + Extension(filename, mimeType)
}

func segment(s string) string {
	s = strings.ReplaceAll(strings.TrimSpace(s), "/", "-")
	if s == "" {
		return unknownSegment
	}
	return s
}

// Extension 推导对象扩展名
func Extension(filename, mimeType string) string {
	if strings.EqualFold(strings.TrimSpace(mimeType), "audio/mpeg") {
		return ".mp3"
	}
	if i := strings.LastIndex(filename, "."); i >= 0 {
		return filename[i:]
	}
	return ""
}
