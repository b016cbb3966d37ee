package database

import (
	"context"

	"github.com/go-redis/redis/v8"

	"smart-menu-go/pkg/log"
)

var RDB *redis.Client

// InitRedis 初始化 Redis 客户端连接。
// 连接失败不会中止进程：记忆与缓存层会自行降级到进程内存储。
func InitRedis(addr, password string, db int) {
	RDB = redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	if err := RDB.Ping(ctx).Err(); err != nil {
		log.Warnw("[Redis] 连接失败，记忆与缓存将以降级模式运行", "addr", addr, "error", err)
		return
	}

	log.Info("Redis client connected successfully")
}
