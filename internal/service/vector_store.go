package service

import (
	"context"
	"sort"
	"sync"

	"smart-menu-go/internal/model"
	"smart-menu-go/pkg/embedding"
)

// memoryVectorStore 是 VectorStore 的进程内暴力检索实现。
// 用于未启用 Elasticsearch 的部署形态和测试。
type memoryVectorStore struct {
	mu   sync.RWMutex
	docs map[string][]model.EsCatalogDoc // merchantID -> docs
}

// NewMemoryVectorStore 创建一个进程内向量存储。
func NewMemoryVectorStore() VectorStore {
	return &memoryVectorStore{docs: make(map[string][]model.EsCatalogDoc)}
}

func (s *memoryVectorStore) Upsert(_ context.Context, docs []model.EsCatalogDoc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, doc := range docs {
		existing := s.docs[doc.MerchantID]
		replaced := false
		for i := range existing {
			if existing[i].DocID == doc.DocID {
				existing[i] = doc
				replaced = true
				break
			}
		}
		if !replaced {
			existing = append(existing, doc)
		}
		s.docs[doc.MerchantID] = existing
	}
	return nil
}

func (s *memoryVectorStore) DeleteMerchant(_ context.Context, merchantID string) error {
	s.mu.Lock()
	delete(s.docs, merchantID)
	s.mu.Unlock()
	return nil
}

// Search 对商家的全部文档做暴力余弦排序，返回前 k 条。
func (s *memoryVectorStore) Search(_ context.Context, merchantID string, vector []float32, k int) ([]model.ScoredItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]model.ScoredItem, 0, len(s.docs[merchantID]))
	for _, doc := range s.docs[merchantID] {
		if !doc.Available {
			continue
		}
		results = append(results, model.ScoredItem{
			Item: model.CatalogItem{
				MerchantID:  doc.MerchantID,
				ItemID:      doc.ItemID,
				Name:        doc.Name,
				Description: doc.SearchText,
				Price:       doc.Price,
				Category:    doc.Category,
				Tags:        doc.Tags,
				Available:   doc.Available,
			},
			Similarity: embedding.Cosine(vector, doc.Vector),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}
