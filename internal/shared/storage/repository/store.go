// Package repository 数据库无关的业务逻辑存储层
//
// 通过 dbutil.Dialect 接口屏蔽不同数据库的 SQL 差异，
// 所有 SQL 以 PostgreSQL 风格编写，运行时由 Dialect.Rebind() 转换。
package repository

import (
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"report-media/internal/shared/model"
	"report-media/internal/shared/storage"
	"report-media/internal/shared/storage/dbutil"

	"github.com/jackc/pgx/v5/pgconn"
)

// Store 通用存储实现
// 实现了 storage.PersistentStore 接口
type Store struct {
	db      *sql.DB
	dialect dbutil.Dialect
}

var _ storage.PersistentStore = (*Store)(nil)

// NewStore 创建通用存储
func NewStore(db *sql.DB, dialect dbutil.Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

// Close 关闭数据库连接
func (s *Store) Close() error {
	return s.db.Close()
}

// DB 返回底层数据库连接（仅用于测试）
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect 返回当前方言
func (s *Store) Dialect() dbutil.Dialect {
	return s.dialect
}

// rebind 快捷方法：将 PG 风格 SQL 转换为当前方言
func (s *Store) rebind(query string) string {
	return s.dialect.Rebind(query)
}

// wrapError 将驱动错误转换为领域错误
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return storage.ErrDuplicate
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return storage.ErrDuplicate
	}
	return err
}

// encodeRefs 序列化媒体引用列表，ResolvedURL 不落库
func encodeRefs(refs []model.MediaRef) (string, error) {
	clean := make([]model.MediaRef, len(refs))
	for i, r := range refs {
		r.ResolvedURL = ""
		clean[i] = r
	}
	data, err := json.Marshal(clean)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// decodeRefs 反序列化媒体引用列表，NULL 或空值返回 nil
func decodeRefs(data []byte) ([]model.MediaRef, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var refs []model.MediaRef
	if err := json.Unmarshal(data, &refs); err != nil {
		return nil, err
	}
	if len(refs) == 0 {
		return nil, nil
	}
	return refs, nil
}
