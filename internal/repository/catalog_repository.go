// Package repository 提供了数据访问层的实现。
package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"smart-menu-go/internal/model"
)

// CatalogRepository 定义了商品元数据的操作接口。
// 元数据是校验器和饮食过滤的基准事实来源。
type CatalogRepository interface {
	// ReplaceMerchantItems 在一个事务里整体替换商家的全部商品记录。
	ReplaceMerchantItems(ctx context.Context, merchantID string, items []model.CatalogItem) error
	// FindByMerchant 返回商家的全部商品（含不可售）。
	FindByMerchant(ctx context.Context, merchantID string) ([]model.CatalogItem, error)
	// FindAvailableByMerchant 返回商家当前可售的商品。
	FindAvailableByMerchant(ctx context.Context, merchantID string) ([]model.CatalogItem, error)
	// CountByMerchant 返回商家的商品数量。
	CountByMerchant(ctx context.Context, merchantID string) (int64, error)
}

type mysqlCatalogRepository struct {
	db *gorm.DB
}

// NewCatalogRepository 创建一个新的 CatalogRepository 实例。
func NewCatalogRepository(db *gorm.DB) CatalogRepository {
	return &mysqlCatalogRepository{db: db}
}

// ReplaceMerchantItems 先删后插，保证 reindex 后不残留孤儿记录。
func (r *mysqlCatalogRepository) ReplaceMerchantItems(ctx context.Context, merchantID string, items []model.CatalogItem) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("merchant_id = ?", merchantID).Delete(&model.CatalogItem{}).Error; err != nil {
			return fmt.Errorf("failed to clear merchant items: %w", err)
		}
		if len(items) == 0 {
			return nil
		}
		rows := make([]model.CatalogItem, len(items))
		for i, item := range items {
			item.ID = 0
			item.MerchantID = merchantID
			rows[i] = item
		}
		if err := tx.CreateInBatches(rows, 100).Error; err != nil {
			return fmt.Errorf("failed to insert merchant items: %w", err)
		}
		return nil
	})
}

func (r *mysqlCatalogRepository) FindByMerchant(ctx context.Context, merchantID string) ([]model.CatalogItem, error) {
	var items []model.CatalogItem
	if err := r.db.WithContext(ctx).Where("merchant_id = ?", merchantID).Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to query merchant items: %w", err)
	}
	return items, nil
}

func (r *mysqlCatalogRepository) FindAvailableByMerchant(ctx context.Context, merchantID string) ([]model.CatalogItem, error) {
	var items []model.CatalogItem
	if err := r.db.WithContext(ctx).
		Where("merchant_id = ? AND available = ?", merchantID, true).
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to query available merchant items: %w", err)
	}
	return items, nil
}

func (r *mysqlCatalogRepository) CountByMerchant(ctx context.Context, merchantID string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.CatalogItem{}).
		Where("merchant_id = ?", merchantID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count merchant items: %w", err)
	}
	return count, nil
}
