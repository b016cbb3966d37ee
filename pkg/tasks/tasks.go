// Package tasks defines the payloads exchanged over Kafka.
package tasks

import (
	"time"

	"smart-menu-go/internal/model"
)

// CatalogSyncTask 是外部目录系统推送的商品全量列表。
// 一条消息对应一个商家的完整目录，引擎据此做整体 reindex。
type CatalogSyncTask struct {
	MerchantID string              `json:"merchant_id"`
	Items      []model.CatalogItem `json:"items"`
}

// DriftEvent 记录一次校验器发现的内容漂移：
// 价格被纠正，或生成文本提到了目录中不存在的商品（幻觉候选）。
type DriftEvent struct {
	MerchantID     string    `json:"merchant_id"`
	Mention        string    `json:"mention"`
	MentionedPrice float64   `json:"mentioned_price,omitempty"`
	CatalogPrice   float64   `json:"catalog_price,omitempty"`
	Reason         string    `json:"reason"` // "price_corrected" | "unmatched_item"
	Timestamp      time.Time `json:"timestamp"`
}
