package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smart-menu-go/internal/model"
	"smart-menu-go/internal/repository"
)

func newTestValidator(t *testing.T, items []model.CatalogItem) ResponseValidator {
	t.Helper()
	repo := repository.NewMemoryCatalogRepository()
	if len(items) > 0 {
		require.NoError(t, repo.ReplaceMerchantItems(context.Background(), "m1", items))
	}
	return NewResponseValidator(repo)
}

func pizzaCatalog() []model.CatalogItem {
	return []model.CatalogItem{
		{MerchantID: "m1", ItemID: "i1", Name: "Margherita Pizza", Price: 12.00, Available: true},
		{MerchantID: "m1", ItemID: "i2", Name: "Caesar Salad", Price: 9.50, Available: true},
	}
}

func TestResponseValidator_CorrectsPriceDrift(t *testing.T) {
	v := newTestValidator(t, pizzaCatalog())

	text := "Here are our pizzas:\n- Margherita Pizza ($14)\nEnjoy!"
	got, corrected := v.Validate(context.Background(), "m1", text)

	assert.True(t, corrected)
	assert.Contains(t, got, "$12")
	assert.NotContains(t, got, "$14")
	// 只改写价格数字，其余文本保持原样
	assert.Contains(t, got, "Here are our pizzas:")
	assert.Contains(t, got, "Enjoy!")
}

func TestResponseValidator_WithinToleranceUnchanged(t *testing.T) {
	v := newTestValidator(t, pizzaCatalog())

	text := "- Caesar Salad ($9.99)"
	got, corrected := v.Validate(context.Background(), "m1", text)

	assert.False(t, corrected)
	assert.Equal(t, text, got)
}

func TestResponseValidator_FuzzyNameMatch(t *testing.T) {
	v := newTestValidator(t, pizzaCatalog())

	// 部分名称也应命中目录条目
	got, corrected := v.Validate(context.Background(), "m1", "- Margherita ($20)")

	assert.True(t, corrected)
	assert.Contains(t, got, "$12")
}

func TestResponseValidator_UnmatchedItemPassesThrough(t *testing.T) {
	v := newTestValidator(t, pizzaCatalog())

	// 目录中不存在的商品：不拦截、不改写，只记录事件
	text := "- Truffle Burger ($20)"
	got, corrected := v.Validate(context.Background(), "m1", text)

	assert.False(t, corrected)
	assert.Equal(t, text, got)
}

func TestResponseValidator_PlainTextPassesThrough(t *testing.T) {
	v := newTestValidator(t, pizzaCatalog())

	text := "We open at 11am and the Margherita Pizza is our signature dish."
	got, corrected := v.Validate(context.Background(), "m1", text)

	assert.False(t, corrected)
	assert.Equal(t, text, got)
}

func TestResponseValidator_EmptyCatalogPassesThrough(t *testing.T) {
	v := newTestValidator(t, nil)

	text := "- Margherita Pizza ($14)"
	got, corrected := v.Validate(context.Background(), "m1", text)

	assert.False(t, corrected)
	assert.Equal(t, text, got)
}

func TestResponseValidator_ChinesePriceStyle(t *testing.T) {
	v := newTestValidator(t, []model.CatalogItem{
		{MerchantID: "m1", ItemID: "i1", Name: "宫保鸡丁", Price: 38, Available: true},
	})

	got, corrected := v.Validate(context.Background(), "m1", "- 宫保鸡丁 45元")

	assert.True(t, corrected)
	assert.Contains(t, got, "38元")
	assert.NotContains(t, got, "45元")
}

func TestResponseValidator_DecimalStylePreserved(t *testing.T) {
	v := newTestValidator(t, pizzaCatalog())

	got, corrected := v.Validate(context.Background(), "m1", "- Margherita Pizza ($14.50)")

	assert.True(t, corrected)
	assert.Contains(t, got, "$12.00")
}
