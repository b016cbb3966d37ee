package repository

import (
	"context"
	"sync"

	"smart-menu-go/internal/model"
)

// memoryCatalogRepository 是 CatalogRepository 的进程内实现。
// 用于未配置 MySQL 的部署形态，以及测试替身。
type memoryCatalogRepository struct {
	mu    sync.RWMutex
	items map[string][]model.CatalogItem // merchantID -> items
}

// NewMemoryCatalogRepository 创建一个进程内目录存储。
func NewMemoryCatalogRepository() CatalogRepository {
	return &memoryCatalogRepository{items: make(map[string][]model.CatalogItem)}
}

func (r *memoryCatalogRepository) ReplaceMerchantItems(_ context.Context, merchantID string, items []model.CatalogItem) error {
	rows := make([]model.CatalogItem, len(items))
	for i, item := range items {
		item.MerchantID = merchantID
		rows[i] = item
	}
	r.mu.Lock()
	r.items[merchantID] = rows
	r.mu.Unlock()
	return nil
}

func (r *memoryCatalogRepository) FindByMerchant(_ context.Context, merchantID string) ([]model.CatalogItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rows := r.items[merchantID]
	out := make([]model.CatalogItem, len(rows))
	copy(out, rows)
	return out, nil
}

func (r *memoryCatalogRepository) FindAvailableByMerchant(_ context.Context, merchantID string) ([]model.CatalogItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []model.CatalogItem
	for _, item := range r.items[merchantID] {
		if item.Available {
			out = append(out, item)
		}
	}
	return out, nil
}

func (r *memoryCatalogRepository) CountByMerchant(_ context.Context, merchantID string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.items[merchantID])), nil
}
