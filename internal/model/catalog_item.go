// Package model 包含了应用的数据模型定义。
package model

// CatalogItem 对应于数据库中的 catalog_items 表，
// 是商品元数据的唯一事实来源，向量部分存储在 Elasticsearch。
// 每次 reindex 会整体替换对应商家的全部记录。
type CatalogItem struct {
	ID          uint    `gorm:"primaryKey;autoIncrement" json:"-"`
	MerchantID  string  `gorm:"type:varchar(64);not null;uniqueIndex:uk_merchant_item;column:merchant_id" json:"merchantId"`
	ItemID      string  `gorm:"type:varchar(64);not null;uniqueIndex:uk_merchant_item;column:item_id" json:"itemId"`
	Name        string  `gorm:"type:varchar(255);not null" json:"name"`
	Description string  `gorm:"type:text" json:"description"`
	Price       float64 `gorm:"type:decimal(10,2);not null" json:"price"`
	Category    string  `gorm:"type:varchar(64)" json:"category"`
	Tags        string  `gorm:"type:text" json:"tags"` // 逗号分隔的配料/标签
	Available   bool    `gorm:"not null;default:true" json:"available"`
}

func (CatalogItem) TableName() string {
	return "catalog_items"
}

// EsCatalogDoc 代表存储在 Elasticsearch 中的商品向量文档。
type EsCatalogDoc struct {
	DocID        string    `json:"doc_id"` // merchantId + itemId
	MerchantID   string    `json:"merchant_id"`
	ItemID       string    `json:"item_id"`
	Name         string    `json:"name"`
	SearchText   string    `json:"search_text"`
	Price        float64   `json:"price"`
	Category     string    `json:"category"`
	Tags         string    `json:"tags"`
	Available    bool      `json:"available"`
	Vector       []float32 `json:"vector"`
	ModelVersion string    `json:"model_version"`
}

// ScoredItem 是一次相似度检索的单条结果。
type ScoredItem struct {
	Item       CatalogItem `json:"item"`
	Similarity float64     `json:"similarity"`
}
