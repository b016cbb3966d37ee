package database

import (
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"smart-menu-go/internal/model"
	"smart-menu-go/pkg/log"
)

var DB *gorm.DB

// InitMySQL 初始化 MySQL 数据库连接并迁移目录表。
func InitMySQL(dsn string) {
	var err error
	DB, err = gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect database", err)
	}

	// 配置连接池
	sqlDB, err := DB.DB()
	if err != nil {
		log.Fatal("failed to get sql.DB", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := DB.AutoMigrate(&model.CatalogItem{}); err != nil {
		log.Fatal("failed to migrate catalog_items", err)
	}

	log.Info("MySQL database connected successfully")
}
