package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"smart-menu-go/internal/config"
	"smart-menu-go/internal/model"
	"smart-menu-go/pkg/embedding"
	"smart-menu-go/pkg/kvstore"
	"smart-menu-go/pkg/log"
)

// SemanticCache 定义了按向量相似度去重的应答缓存。
// 命中条件：查询向量与缓存条目的余弦相似度达到阈值且条目未过期。
// 缓存是纯建议性的：任何读写失败都静默落回完整链路。
type SemanticCache interface {
	// Lookup 返回相似度最高且达标的条目；未命中时第二个返回值为 false。
	Lookup(ctx context.Context, merchantID, query string) (*model.CacheEntry, bool)
	// Store 写入一条 (查询, 应答) 记录，超出容量时按 FIFO 淘汰最旧条目。
	Store(ctx context.Context, merchantID, query, response string, queryType model.QueryType, tier model.Tier)
}

type semanticCache struct {
	store      kvstore.Store
	embedder   embedding.Client
	similarity float64
	ttl        time.Duration
	maxEntries int
}

// NewSemanticCache 创建一个新的 SemanticCache 实例。
func NewSemanticCache(store kvstore.Store, embedder embedding.Client, cfg config.EngineConfig) SemanticCache {
	return &semanticCache{
		store:      store,
		embedder:   embedder,
		similarity: cfg.CacheSimilarity,
		ttl:        time.Duration(cfg.CacheTTLHours) * time.Hour,
		maxEntries: cfg.CacheMaxEntries,
	}
}

func cacheKey(merchantID string) string {
	return fmt.Sprintf("semcache:%s", merchantID)
}

func (c *semanticCache) Lookup(ctx context.Context, merchantID, query string) (*model.CacheEntry, bool) {
	queryVec, err := c.embedQuery(ctx, query)
	if err != nil {
		return nil, false
	}

	entries := c.load(ctx, merchantID)
	if len(entries) == 0 {
		return nil, false
	}

	now := time.Now()
	var best *model.CacheEntry
	var bestSim float64
	for i := range entries {
		if entries[i].Age(now) >= c.ttl {
			continue
		}
		sim := embedding.Cosine(queryVec, entries[i].Embedding)
		if sim >= c.similarity && sim > bestSim {
			best = &entries[i]
			bestSim = sim
		}
	}
	if best == nil {
		return nil, false
	}

	log.Infow("[SemanticCache] 缓存命中，跳过生成",
		"merchant", merchantID, "query", query,
		"cachedQuery", best.Query, "similarity", bestSim)
	return best, true
}

func (c *semanticCache) Store(ctx context.Context, merchantID, query, response string, queryType model.QueryType, tier model.Tier) {
	queryVec, err := c.embedQuery(ctx, query)
	if err != nil {
		return
	}

	now := time.Now()
	entries := c.load(ctx, merchantID)

	// 顺带清理已过期条目，避免列表无限增长
	kept := entries[:0]
	for _, e := range entries {
		if e.Age(now) < c.ttl {
			kept = append(kept, e)
		}
	}
	entries = kept

	entries = append(entries, model.CacheEntry{
		ID:         uuid.NewString(),
		MerchantID: merchantID,
		Query:      query,
		Embedding:  queryVec,
		Response:   response,
		QueryType:  queryType,
		Tier:       string(tier),
		CreatedAt:  now,
	})

	// FIFO：精确的按相似度的 LRU 在这里不值得，最旧的先走
	if len(entries) > c.maxEntries {
		entries = entries[len(entries)-c.maxEntries:]
	}

	data, err := json.Marshal(entries)
	if err != nil {
		log.Warnw("[SemanticCache] 序列化缓存条目失败", "merchant", merchantID, "error", err)
		return
	}
	if err := c.store.SetWithTTL(ctx, cacheKey(merchantID), data, c.ttl); err != nil {
		log.Warnw("[SemanticCache] 写入缓存失败", "merchant", merchantID, "error", err)
	}
}

// embedQuery 向量化查询；Embedding 服务失败时退回本地确定性向量，
// 保证缓存层永远不会把错误抛给调用方。
func (c *semanticCache) embedQuery(ctx context.Context, query string) ([]float32, error) {
	vec, err := c.embedder.CreateEmbedding(ctx, query)
	if err != nil {
		log.Warnw("[SemanticCache] 查询向量化失败，使用本地确定性向量", "error", err)
		return embedding.Deterministic(query, c.embedder.Dimensions()), nil
	}
	return vec, nil
}

func (c *semanticCache) load(ctx context.Context, merchantID string) []model.CacheEntry {
	data, err := c.store.Get(ctx, cacheKey(merchantID))
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil
	}
	if err != nil {
		log.Warnw("[SemanticCache] 读取缓存失败，视为未命中", "merchant", merchantID, "error", err)
		return nil
	}
	var entries []model.CacheEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		log.Warnw("[SemanticCache] 缓存条目反序列化失败，视为未命中", "merchant", merchantID, "error", err)
		return nil
	}
	return entries
}
