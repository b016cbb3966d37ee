package kvstore

import (
	"context"
	"errors"
	"time"

	"smart-menu-go/pkg/log"
)

// fallbackStore 优先使用共享后端（Redis），后端故障时
// 透明切换到进程内存储，保证存储层故障不会向上传播。
type fallbackStore struct {
	primary Store
	local   Store
}

// NewFallbackStore 将 primary 包装为带进程内后备的 Store。
func NewFallbackStore(primary Store) Store {
	return &fallbackStore{primary: primary, local: NewMemoryStore()}
}

func (s *fallbackStore) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.primary.Get(ctx, key)
	if err == nil || errors.Is(err, ErrNotFound) {
		return val, err
	}
	log.Warnw("[KVStore] 共享存储读取失败，降级到进程内存储", "key", key, "error", err)
	return s.local.Get(ctx, key)
}

func (s *fallbackStore) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.primary.SetWithTTL(ctx, key, value, ttl); err != nil {
		log.Warnw("[KVStore] 共享存储写入失败，降级到进程内存储", "key", key, "error", err)
		return s.local.SetWithTTL(ctx, key, value, ttl)
	}
	// 主存储恢复后以主存储为准，本地副本仅作故障期间的后备
	return nil
}

func (s *fallbackStore) Delete(ctx context.Context, key string) error {
	if err := s.primary.Delete(ctx, key); err != nil {
		log.Warnw("[KVStore] 共享存储删除失败，降级到进程内存储", "key", key, "error", err)
		return s.local.Delete(ctx, key)
	}
	_ = s.local.Delete(ctx, key)
	return nil
}
