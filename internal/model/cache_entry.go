package model

import "time"

// CacheEntry 代表语义缓存中的一条 (查询, 应答) 记录。
// 命中按查询向量的余弦相似度判定，而不是按文本精确匹配。
type CacheEntry struct {
	ID         string    `json:"id"`
	MerchantID string    `json:"merchantId"`
	Query      string    `json:"query"`
	Embedding  []float32 `json:"embedding"`
	Response   string    `json:"response"`
	QueryType  QueryType `json:"queryType"`
	Tier       string    `json:"tier,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Age 返回条目距创建时刻的时长。
func (e CacheEntry) Age(now time.Time) time.Duration {
	return now.Sub(e.CreatedAt)
}
