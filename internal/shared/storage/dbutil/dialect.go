// Package dbutil SQL 方言与驱动类型
//
// repository 中的 SQL 统一按 PostgreSQL 语法书写（$N 占位符、::jsonb 转换），
// SQLite 在执行前经 Rebind 改写。
package dbutil

import (
	"database/sql"
	"regexp"
)

// DriverType 持久化驱动
type DriverType string

const (
	DriverPostgres DriverType = "postgres"
	DriverSQLite   DriverType = "sqlite"
	DriverMongoDB  DriverType = "mongodb"
	DriverMemory   DriverType = "memory"
)

// Dialect SQL 驱动差异
type Dialect interface {
	DriverType() DriverType

	// Rebind 把 PostgreSQL 语法的语句改写为本方言可执行的形式
	Rebind(query string) string

	// ForUpdateClause 读取后需 CAS 写回时追加的行锁子句，不支持时为空
	ForUpdateClause() string

	// AutoMigrate 建表（幂等）
	AutoMigrate(db *sql.DB) error
}

var (
	placeholderRe = regexp.MustCompile(`\$\d+`)
	castRe        = regexp.MustCompile(`::\w+`)
)

// RebindToQuestion $N → ?
//
// 要求每个占位符按编号顺序恰好出现一次。
func RebindToQuestion(query string) string {
	return placeholderRe.ReplaceAllString(query, "?")
}

// StripPgCasts 去掉 ::type 转换
func StripPgCasts(query string) string {
	return castRe.ReplaceAllString(query, "")
}
