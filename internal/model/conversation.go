package model

import "time"

// ConversationTurn 代表存储在 KV 存储中的单轮问答。
// 以 (merchantId, customerId) 为作用域，最多保留最近 N 轮。
type ConversationTurn struct {
	Query          string    `json:"query"`
	Response       string    `json:"response"`
	Timestamp      time.Time `json:"timestamp"`
	MentionedItems []string  `json:"mentionedItems,omitempty"`
	QueryType      QueryType `json:"queryType"`
}

// CustomerProfile 是从对话历史中派生出的顾客画像，
// 不单独持久化，随历史的 TTL 一起过期。
type CustomerProfile struct {
	Name        string   `json:"name,omitempty"`
	DietaryTags []string `json:"dietaryTags,omitempty"`
	Topics      []string `json:"topics,omitempty"`
}

// HasSignals 返回画像中是否存在可用于个性化的信息。
func (p CustomerProfile) HasSignals() bool {
	return p.Name != "" || len(p.DietaryTags) > 0 || len(p.Topics) > 0
}
