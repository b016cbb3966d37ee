// Package kvstore 提供了对话记忆与语义缓存共用的 KV 存储抽象。
// 核心逻辑只依赖 Store 接口，不依赖具体的 Redis 单例，
// 测试中可直接替换为进程内实现。
package kvstore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound 表示 key 不存在或已过期。
var ErrNotFound = errors.New("kvstore: key not found")

// Store 定义了引擎对后端存储的全部要求。
// 并发写同一 key 采用 last-write-wins 语义。
type Store interface {
	// Get 返回 key 对应的值；key 不存在时返回 ErrNotFound。
	Get(ctx context.Context, key string) ([]byte, error)
	// SetWithTTL 写入值并设置过期时间，覆盖旧值并重置 TTL。
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete 删除 key，key 不存在时不算错误。
	Delete(ctx context.Context, key string) error
}
