// Package database 提供数据库连接和迁移
package database

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/dumeirei/villa-booking-backend/internal/common/config"
	"github.com/dumeirei/villa-booking-backend/internal/common/logger"
	"github.com/dumeirei/villa-booking-backend/internal/models"
)

// Init 按配置打开数据库连接并校验连通性
func Init(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                                   newGormLogger(logger.GetLogger(), cfg),
		DisableForeignKeyConstraintWhenMigrating: true,
		PrepareStmt:                              true,
		TranslateError:                           true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	// SQLite 只允许一个写连接，预订提交依赖它串行化
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	if cfg.Driver == "sqlite" {
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err = sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// dialectorFor 根据驱动选择方言
func dialectorFor(cfg *config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "", "postgres":
		return postgres.Open(cfg.DSN()), nil
	case "sqlite":
		return sqlite.Open(cfg.Name), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
}

// Migrate 自动迁移全部模型
func Migrate(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(models.AllModels()...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// zapWriter 把 gorm 日志写入 zap
type zapWriter struct {
	sugar *zap.SugaredLogger
}

// Printf 实现 gormlogger.Writer
func (w zapWriter) Printf(format string, args ...interface{}) {
	w.sugar.Infof(format, args...)
}

func newGormLogger(l *zap.Logger, cfg *config.DatabaseConfig) gormlogger.Interface {
	return gormlogger.New(
		zapWriter{sugar: l.Named("gorm").Sugar()},
		gormlogger.Config{
			SlowThreshold:             time.Duration(cfg.SlowThreshold) * time.Millisecond,
			LogLevel:                  getLogLevel(cfg.LogMode),
			IgnoreRecordNotFoundError: true,
		},
	)
}

// getLogLevel 关闭 SQL 日志时仍记录慢查询
func getLogLevel(logMode bool) gormlogger.LogLevel {
	if logMode {
		return gormlogger.Info
	}
	return gormlogger.Warn
}
