package sqlite

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/mutusfa/Neurodeck/backend/go/internal/config"
)

var (
	dbInstance *gorm.DB
	once       sync.Once
	initErr    error
)

// GetDB 使用单例模式初始化并返回一个基于 SQLite 的 GORM 数据库实例。
// 驱动是纯 Go 实现，不依赖 cgo，是单机部署的默认存储。
func GetDB(cfg *config.SQLiteConfig) (*gorm.DB, error) {
	once.Do(func() {
		path := cfg.Path
		if path == "" {
			path = "neurodeck.db"
		}

		db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
		if err != nil {
			initErr = fmt.Errorf("无法打开 SQLite 数据库 '%s': %w", path, err)
			return
		}

		// 单文件数据库不需要连接池，写入串行化可以避免 SQLITE_BUSY。
		sqlDB, err := db.DB()
		if err != nil {
			initErr = fmt.Errorf("无法获取底层 SQL DB 实例: %w", err)
			return
		}
		sqlDB.SetMaxOpenConns(1)

		log.Println("✅ 成功打开 SQLite 数据库!")
		dbInstance = db
	})

	return dbInstance, initErr
}

// Close 安全地关闭单例的数据库连接。
func Close() error {
	if dbInstance != nil {
		sqlDB, err := dbInstance.DB()
		if err != nil {
			return fmt.Errorf("❌ 获取底层 SQL DB 实例失败: %w", err)
		}
		return sqlDB.Close()
	}
	return nil
}

// HealthCheck 检查数据库连接的健康状况。
func HealthCheck(ctx context.Context) error {
	if dbInstance == nil {
		return fmt.Errorf("数据库连接未初始化")
	}
	sqlDB, err := dbInstance.DB()
	if err != nil {
		return fmt.Errorf("无法获取底层 SQL DB 实例进行健康检查: %w", err)
	}
	return sqlDB.PingContext(ctx)
}
