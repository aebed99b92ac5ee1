package storage

import "errors"

// 驱动（repository / mongostore / memstore）负责把底层错误映射为下面的哨兵错误，
// 上层只用 errors.Is 判断。
var (
	// ErrNotFound 报告或媒体记录不存在
	ErrNotFound = errors.New("storage: not found")

	// ErrConflict gif_status/gif_version 条件不满足，状态已被其他请求修改
	ErrConflict = errors.New("storage: gif status changed concurrently")

	// ErrDuplicate 主键或对象名重复
	ErrDuplicate = errors.New("storage: duplicate key")
)
