package service

import (
	"context"
	"fmt"
	"strings"

	"smart-menu-go/internal/config"
	"smart-menu-go/internal/model"
	"smart-menu-go/internal/repository"
	"smart-menu-go/pkg/embedding"
	"smart-menu-go/pkg/log"
)

// VectorStore 定义了目录向量的存取能力。
// 生产环境由 Elasticsearch 实现，测试与无 ES 部署使用进程内实现。
type VectorStore interface {
	Upsert(ctx context.Context, docs []model.EsCatalogDoc) error
	DeleteMerchant(ctx context.Context, merchantID string) error
	Search(ctx context.Context, merchantID string, vector []float32, k int) ([]model.ScoredItem, error)
}

// CatalogIndex 定义了商品目录的索引与相似度检索接口。
// IndexItems 是目录的唯一变更入口。
type CatalogIndex interface {
	// IndexItems 整体重建商家目录（先清空旧条目），返回已索引的数量。
	IndexItems(ctx context.Context, merchantID string, items []model.CatalogItem) (int, error)
	// Search 按余弦相似度返回不超过 k 条、且相似度不低于 minSimilarity 的结果。
	// 空结果是正常的"无可信匹配"，不是错误。
	Search(ctx context.Context, merchantID, query string, k int, minSimilarity float64) ([]model.ScoredItem, error)
	// HasCatalog 返回商家是否有已索引的目录。
	HasCatalog(ctx context.Context, merchantID string) bool
}

type catalogIndex struct {
	embedder    embedding.Client
	vectorStore VectorStore
	catalogRepo repository.CatalogRepository
	modelName   string
}

// NewCatalogIndex 创建一个新的 CatalogIndex 实例。
func NewCatalogIndex(embedder embedding.Client, vectorStore VectorStore, catalogRepo repository.CatalogRepository, embCfg config.EmbeddingConfig) CatalogIndex {
	return &catalogIndex{
		embedder:    embedder,
		vectorStore: vectorStore,
		catalogRepo: catalogRepo,
		modelName:   embCfg.Model,
	}
}

// IndexItems 重建商家目录：拼装可检索文本、批量向量化、整体替换。
func (s *catalogIndex) IndexItems(ctx context.Context, merchantID string, items []model.CatalogItem) (int, error) {
	log.Infof("[CatalogIndex] 开始重建目录, merchant: %s, items: %d", merchantID, len(items))

	texts := make([]string, len(items))
	for i, item := range items {
		texts[i] = buildSearchText(item)
	}

	vectors, degraded := s.embedBatch(ctx, texts)

	docs := make([]model.EsCatalogDoc, len(items))
	for i, item := range items {
		docs[i] = model.EsCatalogDoc{
			DocID:        fmt.Sprintf("%s_%s", merchantID, item.ItemID),
			MerchantID:   merchantID,
			ItemID:       item.ItemID,
			Name:         item.Name,
			SearchText:   texts[i],
			Price:        item.Price,
			Category:     item.Category,
			Tags:         item.Tags,
			Available:    item.Available,
			Vector:       vectors[i],
			ModelVersion: s.modelName,
		}
	}

	// 元数据与向量都整体替换，reindex 后不残留旧条目
	if err := s.catalogRepo.ReplaceMerchantItems(ctx, merchantID, items); err != nil {
		return 0, fmt.Errorf("failed to replace catalog metadata: %w", err)
	}
	if err := s.vectorStore.DeleteMerchant(ctx, merchantID); err != nil {
		return 0, fmt.Errorf("failed to clear merchant vectors: %w", err)
	}
	if len(docs) > 0 {
		if err := s.vectorStore.Upsert(ctx, docs); err != nil {
			return 0, fmt.Errorf("failed to upsert catalog vectors: %w", err)
		}
	}

	log.Infow("[CatalogIndex] 目录重建完成",
		"merchant", merchantID, "indexed", len(docs), "degradedEmbedding", degraded)
	return len(docs), nil
}

func (s *catalogIndex) Search(ctx context.Context, merchantID, query string, k int, minSimilarity float64) ([]model.ScoredItem, error) {
	if k <= 0 {
		k = 5
	}

	queryVec, err := s.embedder.CreateEmbedding(ctx, query)
	if err != nil {
		// Embedding 服务不可用时用本地确定性向量兜底，检索降级但不失败
		log.Warnw("[CatalogIndex] 查询向量化失败，降级到本地确定性向量",
			"merchant", merchantID, "query", query, "error", err)
		queryVec = embedding.Deterministic(query, s.embedder.Dimensions())
	}

	results, err := s.vectorStore.Search(ctx, merchantID, queryVec, k)
	if err != nil {
		return nil, fmt.Errorf("catalog vector search failed: %w", err)
	}

	filtered := make([]model.ScoredItem, 0, len(results))
	for _, r := range results {
		if r.Similarity >= minSimilarity {
			filtered = append(filtered, r)
		}
	}
	if len(filtered) > k {
		filtered = filtered[:k]
	}

	log.Infof("[CatalogIndex] 检索完成, merchant: %s, query: '%s', 命中 %d 条", merchantID, query, len(filtered))
	return filtered, nil
}

func (s *catalogIndex) HasCatalog(ctx context.Context, merchantID string) bool {
	count, err := s.catalogRepo.CountByMerchant(ctx, merchantID)
	if err != nil {
		log.Warnw("[CatalogIndex] 查询目录数量失败", "merchant", merchantID, "error", err)
		return false
	}
	return count > 0
}

// embedBatch 批量向量化，失败时逐条换成本地确定性向量。
// 返回向量列表和是否发生了降级。
func (s *catalogIndex) embedBatch(ctx context.Context, texts []string) ([][]float32, bool) {
	if len(texts) == 0 {
		return nil, false
	}
	vectors, err := s.embedder.CreateEmbeddings(ctx, texts)
	if err == nil {
		return vectors, false
	}

	log.Warnw("[CatalogIndex] 批量向量化失败，降级到本地确定性向量", "batch", len(texts), "error", err)
	vectors = make([][]float32, len(texts))
	for i, t := range texts {
		vectors[i] = embedding.Deterministic(t, s.embedder.Dimensions())
	}
	return vectors, true
}

// buildSearchText 为单个商品拼装用于向量化的复合文本。
func buildSearchText(item model.CatalogItem) string {
	var b strings.Builder
	b.WriteString(item.Name)
	if item.Description != "" {
		b.WriteString(". ")
		b.WriteString(item.Description)
	}
	if item.Category != "" {
		b.WriteString(". Category: ")
		b.WriteString(item.Category)
	}
	if item.Tags != "" {
		b.WriteString(". Ingredients: ")
		b.WriteString(item.Tags)
	}
	b.WriteString(fmt.Sprintf(". Price: %.2f", item.Price))
	return b.String()
}
