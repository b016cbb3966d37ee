package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"smart-menu-go/internal/config"
	"smart-menu-go/internal/model"
	"smart-menu-go/pkg/kvstore"
	"smart-menu-go/pkg/log"
)

// ConversationMemory 定义了短期对话记忆的操作接口。
// 历史以 (merchantId, customerId) 为键，最多保留最近 N 轮，
// 整个键在不活跃窗口之后过期。
type ConversationMemory interface {
	// Remember 追加一轮对话并重置整个键的 TTL。
	Remember(ctx context.Context, merchantID, customerID string, turn model.ConversationTurn) error
	// Recall 返回从旧到新的对话历史；存储故障时返回空历史，不返回错误。
	Recall(ctx context.Context, merchantID, customerID string) []model.ConversationTurn
	// Profile 通过扫描历史轮次重新计算顾客画像。
	Profile(ctx context.Context, merchantID, customerID string) model.CustomerProfile
	// ShouldClarify 判断是否需要让用户先把指代说清楚，而不是去猜。
	ShouldClarify(ctx context.Context, merchantID, customerID, newQuery string) bool
}

type conversationMemory struct {
	store       kvstore.Store
	maxTurns    int
	ttl         time.Duration
	staleWindow time.Duration
}

// NewConversationMemory 创建一个新的 ConversationMemory 实例。
func NewConversationMemory(store kvstore.Store, cfg config.EngineConfig) ConversationMemory {
	return &conversationMemory{
		store:       store,
		maxTurns:    cfg.MemoryMaxTurns,
		ttl:         time.Duration(cfg.MemoryTTLHours) * time.Hour,
		staleWindow: time.Duration(cfg.ClarifyStaleMinutes) * time.Minute,
	}
}

func memoryKey(merchantID, customerID string) string {
	return fmt.Sprintf("conv:%s:%s", merchantID, customerID)
}

// Remember 追加一轮对话，截断到最近 N 轮，并重置 TTL。
// 写失败只记录日志：记忆是尽力而为的，不能影响应答链路。
func (m *conversationMemory) Remember(ctx context.Context, merchantID, customerID string, turn model.ConversationTurn) error {
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now()
	}

	turns := m.Recall(ctx, merchantID, customerID)
	turns = append(turns, turn)
	if len(turns) > m.maxTurns {
		turns = turns[len(turns)-m.maxTurns:]
	}

	data, err := json.Marshal(turns)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation turns: %w", err)
	}
	if err := m.store.SetWithTTL(ctx, memoryKey(merchantID, customerID), data, m.ttl); err != nil {
		log.Warnw("[ConversationMemory] 写入对话历史失败",
			"merchant", merchantID, "customer", customerID, "error", err)
		return nil
	}
	return nil
}

// Recall 返回从旧到新的历史。后端故障等同于无历史。
func (m *conversationMemory) Recall(ctx context.Context, merchantID, customerID string) []model.ConversationTurn {
	data, err := m.store.Get(ctx, memoryKey(merchantID, customerID))
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil
	}
	if err != nil {
		log.Warnw("[ConversationMemory] 读取对话历史失败，按空历史处理",
			"merchant", merchantID, "customer", customerID, "error", err)
		return nil
	}
	var turns []model.ConversationTurn
	if err := json.Unmarshal(data, &turns); err != nil {
		log.Warnw("[ConversationMemory] 对话历史反序列化失败，按空历史处理",
			"merchant", merchantID, "customer", customerID, "error", err)
		return nil
	}
	return turns
}

var namePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:[Mm]y name is|[Cc]all me)\s+([A-Z][A-Za-z]+)`),
	regexp.MustCompile(`(?:I'?m|I am)\s+([A-Z][A-Za-z]+)\b`),
	regexp.MustCompile(`我叫([\p{Han}]{1,4})`),
}

var topicKeywords = []string{
	"pizza", "pasta", "sushi", "burger", "dessert", "drink", "coffee",
	"breakfast", "lunch", "dinner", "spicy", "seafood",
	"披萨", "寿司", "甜点", "咖啡", "早餐", "午餐", "晚餐", "辣",
}

// Profile 扫描已存储的轮次计算画像：姓名自报、饮食偏好、话题兴趣。
// 画像不单独持久化，随历史的 TTL 一起消失。
func (m *conversationMemory) Profile(ctx context.Context, merchantID, customerID string) model.CustomerProfile {
	var profile model.CustomerProfile
	seenDietary := make(map[string]struct{})
	seenTopics := make(map[string]struct{})

	for _, turn := range m.Recall(ctx, merchantID, customerID) {
		for _, p := range namePatterns {
			if match := p.FindStringSubmatch(turn.Query); match != nil {
				profile.Name = match[1]
				break
			}
		}
		lower := strings.ToLower(turn.Query)
		for _, kw := range dietaryKeywords {
			if strings.Contains(lower, kw) {
				if _, ok := seenDietary[kw]; !ok {
					seenDietary[kw] = struct{}{}
					profile.DietaryTags = append(profile.DietaryTags, kw)
				}
			}
		}
		for _, kw := range allergyKeywords {
			if strings.Contains(lower, kw) {
				if _, ok := seenDietary[kw]; !ok {
					seenDietary[kw] = struct{}{}
					profile.DietaryTags = append(profile.DietaryTags, kw)
				}
			}
		}
		for _, kw := range topicKeywords {
			if strings.Contains(lower, kw) {
				if _, ok := seenTopics[kw]; !ok {
					seenTopics[kw] = struct{}{}
					profile.Topics = append(profile.Topics, kw)
				}
			}
		}
	}
	return profile
}

// ShouldClarify 对含模糊回指的查询判定是否需要反问：
// 近期没有提到过任何商品，或距上一轮已超过陈旧窗口时，
// 猜测指代对象只会放大错误，不如直接请用户说明。
func (m *conversationMemory) ShouldClarify(ctx context.Context, merchantID, customerID, newQuery string) bool {
	if !hasBackReference(strings.ToLower(newQuery)) {
		return false
	}

	turns := m.Recall(ctx, merchantID, customerID)
	if len(turns) == 0 {
		return true
	}

	last := turns[len(turns)-1]
	if time.Since(last.Timestamp) > m.staleWindow {
		return true
	}

	for i := len(turns) - 1; i >= 0; i-- {
		if len(turns[i].MentionedItems) > 0 {
			return false
		}
	}
	return true
}
