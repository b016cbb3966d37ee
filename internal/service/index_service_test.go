package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smart-menu-go/internal/config"
	"smart-menu-go/internal/model"
	"smart-menu-go/internal/repository"
)

// topicEmbedder 按文本中出现的菜名关键词给出固定向量，
// 让检索相似度在测试里完全可预测。
func topicEmbedder() *fakeEmbedder {
	return &fakeEmbedder{
		dims: 3,
		fn: func(text string) []float32 {
			lower := strings.ToLower(text)
			switch {
			case strings.Contains(lower, "pizza"):
				return []float32{1, 0, 0}
			case strings.Contains(lower, "salad"):
				return []float32{0, 1, 0}
			default:
				return []float32{0, 0, 1}
			}
		},
	}
}

func newTestIndex(embedder *fakeEmbedder) (CatalogIndex, repository.CatalogRepository) {
	repo := repository.NewMemoryCatalogRepository()
	index := NewCatalogIndex(embedder, NewMemoryVectorStore(), repo, config.EmbeddingConfig{Model: "test-model"})
	return index, repo
}

func TestCatalogIndex_IndexAndSearch(t *testing.T) {
	index, _ := newTestIndex(topicEmbedder())
	ctx := context.Background()

	count, err := index.IndexItems(ctx, "m1", []model.CatalogItem{
		{MerchantID: "m1", ItemID: "i1", Name: "Margherita Pizza", Price: 12, Available: true},
		{MerchantID: "m1", ItemID: "i2", Name: "Caesar Salad", Price: 9.5, Available: true},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	results, err := index.Search(ctx, "m1", "any pizza today?", 5, 0.5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Margherita Pizza", results[0].Item.Name)
	assert.GreaterOrEqual(t, results[0].Similarity, 0.5)
}

func TestCatalogIndex_SearchHonorsKAndThreshold(t *testing.T) {
	index, _ := newTestIndex(topicEmbedder())
	ctx := context.Background()

	items := []model.CatalogItem{
		{MerchantID: "m1", ItemID: "i1", Name: "Margherita Pizza", Price: 12, Available: true},
		{MerchantID: "m1", ItemID: "i2", Name: "Pepperoni Pizza", Price: 14, Available: true},
		{MerchantID: "m1", ItemID: "i3", Name: "Hawaiian Pizza", Price: 13, Available: true},
	}
	_, err := index.IndexItems(ctx, "m1", items)
	require.NoError(t, err)

	minSimilarity := 0.3
	results, err := index.Search(ctx, "m1", "pizza", 2, minSimilarity)
	require.NoError(t, err)

	assert.LessOrEqual(t, len(results), 2)
	for _, r := range results {
		assert.GreaterOrEqual(t, r.Similarity, minSimilarity)
	}
}

func TestCatalogIndex_NoConfidentMatchIsEmptyNotError(t *testing.T) {
	index, _ := newTestIndex(topicEmbedder())
	ctx := context.Background()

	_, err := index.IndexItems(ctx, "m1", []model.CatalogItem{
		{MerchantID: "m1", ItemID: "i1", Name: "Margherita Pizza", Price: 12, Available: true},
	})
	require.NoError(t, err)

	// 查询与目录完全不相关：向量正交，相似度 0
	results, err := index.Search(ctx, "m1", "do you deliver on weekends?", 5, 0.3)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestCatalogIndex_ReindexReplacesCatalog(t *testing.T) {
	index, repo := newTestIndex(topicEmbedder())
	ctx := context.Background()

	_, err := index.IndexItems(ctx, "m1", []model.CatalogItem{
		{MerchantID: "m1", ItemID: "i1", Name: "Margherita Pizza", Price: 12, Available: true},
	})
	require.NoError(t, err)

	// 第二次 reindex 整体替换，旧条目不残留
	_, err = index.IndexItems(ctx, "m1", []model.CatalogItem{
		{MerchantID: "m1", ItemID: "i2", Name: "Caesar Salad", Price: 9.5, Available: true},
	})
	require.NoError(t, err)

	stored, err := repo.FindByMerchant(ctx, "m1")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "Caesar Salad", stored[0].Name)

	results, err := index.Search(ctx, "m1", "pizza", 5, 0.3)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestCatalogIndex_UnavailableItemsNotSearchable(t *testing.T) {
	index, _ := newTestIndex(topicEmbedder())
	ctx := context.Background()

	_, err := index.IndexItems(ctx, "m1", []model.CatalogItem{
		{MerchantID: "m1", ItemID: "i1", Name: "Margherita Pizza", Price: 12, Available: true},
		{MerchantID: "m1", ItemID: "i2", Name: "Pepperoni Pizza", Price: 14, Available: false},
	})
	require.NoError(t, err)

	results, err := index.Search(ctx, "m1", "pizza", 5, 0.3)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Margherita Pizza", results[0].Item.Name)
}

func TestCatalogIndex_MerchantIsolation(t *testing.T) {
	index, _ := newTestIndex(topicEmbedder())
	ctx := context.Background()

	_, err := index.IndexItems(ctx, "m1", []model.CatalogItem{
		{MerchantID: "m1", ItemID: "i1", Name: "Margherita Pizza", Price: 12, Available: true},
	})
	require.NoError(t, err)

	results, err := index.Search(ctx, "m2", "pizza", 5, 0.3)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.False(t, index.HasCatalog(ctx, "m2"))
	assert.True(t, index.HasCatalog(ctx, "m1"))
}

func TestCatalogIndex_DegradedEmbeddingStillWorks(t *testing.T) {
	embedder := &fakeEmbedder{dims: 64, err: assert.AnError, batchErr: assert.AnError}
	index, _ := newTestIndex(embedder)
	ctx := context.Background()

	// Embedding 服务完全不可用：索引与检索都退回本地确定性向量，而不是失败
	count, err := index.IndexItems(ctx, "m1", []model.CatalogItem{
		{MerchantID: "m1", ItemID: "i1", Name: "Margherita Pizza", Price: 12, Available: true},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	results, err := index.Search(ctx, "m1", "anything", 5, -1)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}
