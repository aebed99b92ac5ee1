// Package factory 按驱动类型创建持久化存储
//
// storage 包只定义接口，各驱动（mongostore / repository）依赖 storage 的领域错误，
// 因此创建逻辑放在独立的包中以避免循环导入。
package factory

import (
	"fmt"
	"log"

	"report-media/internal/shared/storage"
	"report-media/internal/shared/storage/dbutil"
	pgdriver "report-media/internal/shared/storage/driver/postgres"
	sqlitedriver "report-media/internal/shared/storage/driver/sqlite"
	"report-media/internal/shared/storage/memstore"
	"report-media/internal/shared/storage/mongostore"
	"report-media/internal/shared/storage/repository"
)

// NewSQLiteStore 创建 SQLite 存储（含自动建表）
func NewSQLiteStore(dsn string) (*repository.Store, error) {
	db, err := sqlitedriver.Open(dsn)
	if err != nil {
		return nil, err
	}
	dialect := sqlitedriver.NewDialect()
	if err := dialect.AutoMigrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite auto-migrate failed: %w", err)
	}
	return repository.NewStore(db, dialect), nil
}

// NewPostgresStore 创建 PostgreSQL 存储（含自动建表）
func NewPostgresStore(databaseURL string) (*repository.Store, error) {
	db, err := pgdriver.Open(databaseURL)
	if err != nil {
		return nil, err
	}
	dialect := pgdriver.NewDialect()
	if err := dialect.AutoMigrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres auto-migrate failed: %w", err)
	}
	return repository.NewStore(db, dialect), nil
}

// NewPersistentStore 根据驱动类型创建持久化存储
//
// 支持的驱动类型：mongodb, postgres, sqlite, memory
// dbName 仅 mongodb 使用。
func NewPersistentStore(driver dbutil.DriverType, url, dbName string) (storage.PersistentStore, error) {
	var (
		store storage.PersistentStore
		err   error
	)
	switch driver {
	case dbutil.DriverMongoDB, "":
		var s *mongostore.Store
		if s, err = mongostore.NewStore(url, dbName); err == nil {
			store = s
		}
	case dbutil.DriverPostgres:
		var s *repository.Store
		if s, err = NewPostgresStore(url); err == nil {
			store = s
		}
	case dbutil.DriverSQLite:
		var s *repository.Store
		if s, err = NewSQLiteStore(url); err == nil {
			store = s
		}
	case dbutil.DriverMemory:
		log.Printf("WARNING: using in-memory store, data is lost on restart")
		store = memstore.NewStore()
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}
	if err != nil {
		return nil, err
	}
	log.Printf("[storage] Using %s driver", driver)
	return store, nil
}

