package resource

import (
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"video-assembly-service/pkg/config"
)

// MysqlResource 任务归档库连接
type MysqlResource struct {
	cfg config.DatabaseConfig
	db  *gorm.DB
}

func NewMysqlResource(cfg config.DatabaseConfig) *MysqlResource {
	return &MysqlResource{cfg: cfg}
}

func (r *MysqlResource) Name() string {
	return "mysql"
}

// MustOpen 建立连接并配置连接池，失败时 panic
func (r *MysqlResource) MustOpen() {
	if r.db != nil {
		return
	}
	db, err := gorm.Open(mysql.Open(r.cfg.GetDSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		panic("failed to connect mysql: " + err.Error())
	}
	sqlDB, err := db.DB()
	if err != nil {
		panic("failed to get mysql handle: " + err.Error())
	}
	if r.cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(r.cfg.MaxIdleConns)
	}
	if r.cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(r.cfg.MaxOpenConns)
	}
	lifetime := r.cfg.ConnMaxLifetime
	if lifetime <= 0 {
		lifetime = time.Hour
	}
	sqlDB.SetConnMaxLifetime(lifetime)
	r.db = db
}

func (r *MysqlResource) Close() {
	if r.db == nil {
		return
	}
	if sqlDB, err := r.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	r.db = nil
}

// MainDB 返回 gorm 句柄
func (r *MysqlResource) MainDB() *gorm.DB {
	return r.db
}
