// Package postgres PostgreSQL 数据库驱动
//
// 提供 PostgreSQL 连接管理、方言实现和 Schema 初始化。
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"report-media/internal/shared/storage/dbutil"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
)

// Dialect PostgreSQL 方言实现
type Dialect struct{}

var _ dbutil.Dialect = (*Dialect)(nil)

func (d *Dialect) DriverType() dbutil.DriverType {
	return dbutil.DriverPostgres
}

// Rebind 原样返回，SQL 本身就是 PostgreSQL 语法
func (d *Dialect) Rebind(query string) string {
	return query
}

func (d *Dialect) ForUpdateClause() string {
	return "FOR UPDATE"
}

func (d *Dialect) AutoMigrate(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}

// 连接池参数
const (
	maxOpenConns    = 25
	maxIdleConns    = 5
	connMaxLifetime = 5 * time.Minute
	pingTimeout     = 5 * time.Second
)

// Open 解析 databaseURL 并建立连接池
func Open(databaseURL string) (*sql.DB, error) {
	connCfg, err := pgx.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse postgres url: %w", err)
	}
	if connCfg.RuntimeParams == nil {
		connCfg.RuntimeParams = map[string]string{}
	}
	connCfg.RuntimeParams["application_name"] = "report-media"

	db := stdlib.OpenDB(*connCfg)
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres %s: %w", connCfg.Host, err)
	}
	return db, nil
}

// NewDialect 创建 PostgreSQL 方言
func NewDialect() *Dialect {
	return &Dialect{}
}

const schema = `
CREATE TABLE IF NOT EXISTS reports (
    id VARCHAR(64) PRIMARY KEY,
    app_id VARCHAR(64),
    organisation VARCHAR(200),
    app_name VARCHAR(200),
    title TEXT,
    gif_status VARCHAR(32) NOT NULL DEFAULT 'NOT_INITIATED',
    gif_version BIGINT NOT NULL DEFAULT 0,
    gif_status_updated_at TIMESTAMPTZ,
    media JSONB NOT NULL DEFAULT '[]',
    intermediate_frames JSONB NOT NULL DEFAULT '[]',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_reports_app_id ON reports(app_id);

CREATE TABLE IF NOT EXISTS media_records (
    id VARCHAR(64) PRIMARY KEY,
    report_id VARCHAR(64) NOT NULL,
    object_name VARCHAR(512) NOT NULL UNIQUE,
    media_type VARCHAR(32),
    mime_type VARCHAR(128),
    size BIGINT NOT NULL DEFAULT 0,
    role VARCHAR(16),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_media_records_report ON media_records(report_id, created_at);
`
