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
	"smart-menu-go/pkg/kvstore"
)

type assemblerFixture struct {
	assembler ContextAssembler
	memory    ConversationMemory
	index     CatalogIndex
	repo      repository.CatalogRepository
}

func newAssemblerFixture(t *testing.T, items []model.CatalogItem) *assemblerFixture {
	t.Helper()
	repo := repository.NewMemoryCatalogRepository()
	index := NewCatalogIndex(topicEmbedder(), NewMemoryVectorStore(), repo, config.EmbeddingConfig{Model: "test-model"})
	memory := NewConversationMemory(kvstore.NewMemoryStore(), testEngineConfig())
	if len(items) > 0 {
		_, err := index.IndexItems(context.Background(), "m1", items)
		require.NoError(t, err)
	}
	return &assemblerFixture{
		assembler: NewContextAssembler(memory, index, repo, testEngineConfig()),
		memory:    memory,
		index:     index,
		repo:      repo,
	}
}

func sectionLabels(sections []model.ContextSection) []string {
	labels := make([]string, len(sections))
	for i, s := range sections {
		labels[i] = s.Label
	}
	return labels
}

func findSection(sections []model.ContextSection, label string) (model.ContextSection, bool) {
	for _, s := range sections {
		if s.Label == label {
			return s, true
		}
	}
	return model.ContextSection{}, false
}

func TestContextAssembler_LightTierIsInstructionsOnly(t *testing.T) {
	f := newAssemblerFixture(t, pizzaCatalog())

	cls := Classify("Hi")
	sections, mentioned := f.assembler.BuildContext(context.Background(), "m1", "c1", "Hi", cls, model.TierLight)

	assert.Equal(t, []string{sectionInstruct}, sectionLabels(sections))
	assert.Empty(t, mentioned)
}

func TestContextAssembler_GreetingSkipsCatalogRetrieval(t *testing.T) {
	f := newAssemblerFixture(t, pizzaCatalog())

	cls := Classify("你好")
	sections, mentioned := f.assembler.BuildContext(context.Background(), "m1", "c1", "你好", cls, model.TierMemoryAware)

	_, hasCatalog := findSection(sections, sectionCatalog)
	assert.False(t, hasCatalog)
	assert.Empty(t, mentioned)
}

func TestContextAssembler_CatalogSectionWithMentions(t *testing.T) {
	f := newAssemblerFixture(t, pizzaCatalog())

	query := "what pizza do you have?"
	cls := Classify(query)
	sections, mentioned := f.assembler.BuildContext(context.Background(), "m1", "c1", query, cls, model.TierMemoryAware)

	sec, ok := findSection(sections, sectionCatalog)
	require.True(t, ok)
	assert.Contains(t, sec.Content, "Margherita Pizza")
	assert.Contains(t, sec.Content, "$12.00")
	assert.Contains(t, mentioned, "Margherita Pizza")
}

func TestContextAssembler_HeavyTierIncludesProfileAndHistory(t *testing.T) {
	f := newAssemblerFixture(t, pizzaCatalog())
	ctx := context.Background()

	_ = f.memory.Remember(ctx, "m1", "c1", model.ConversationTurn{
		Query:    "My name is Alice, I love pizza",
		Response: "Nice to meet you, Alice!",
	})

	query := "what pizza do you have?"
	sections, _ := f.assembler.BuildContext(ctx, "m1", "c1", query, Classify(query), model.TierHeavy)

	labels := sectionLabels(sections)
	require.Contains(t, labels, sectionPersonal)
	require.Contains(t, labels, sectionHistory)

	// 固定顺序：个性化在历史之前，指令永远在最后
	personal, ok := findSection(sections, sectionPersonal)
	require.True(t, ok)
	assert.Contains(t, personal.Content, "Alice")
	assert.Equal(t, sectionPersonal, labels[0])
	assert.Equal(t, sectionInstruct, labels[len(labels)-1])
}

func TestContextAssembler_MemoryAwareTierOmitsProfile(t *testing.T) {
	f := newAssemblerFixture(t, pizzaCatalog())
	ctx := context.Background()

	_ = f.memory.Remember(ctx, "m1", "c1", model.ConversationTurn{
		Query:    "My name is Alice",
		Response: "Hi Alice!",
	})

	query := "what pizza do you have?"
	sections, _ := f.assembler.BuildContext(ctx, "m1", "c1", query, Classify(query), model.TierMemoryAware)

	labels := sectionLabels(sections)
	assert.NotContains(t, labels, sectionPersonal)
	assert.Contains(t, labels, sectionHistory)
}

func TestContextAssembler_HistoryCappedAtRecentTurns(t *testing.T) {
	f := newAssemblerFixture(t, pizzaCatalog())
	ctx := context.Background()

	queries := []string{"turn one", "turn two", "turn three", "turn four", "turn five"}
	for _, q := range queries {
		_ = f.memory.Remember(ctx, "m1", "c1", model.ConversationTurn{Query: q, Response: "ok"})
	}

	query := "what pizza do you have?"
	sections, _ := f.assembler.BuildContext(ctx, "m1", "c1", query, Classify(query), model.TierMemoryAware)

	sec, ok := findSection(sections, sectionHistory)
	require.True(t, ok)
	assert.NotContains(t, sec.Content, "turn one")
	assert.NotContains(t, sec.Content, "turn two")
	assert.Contains(t, sec.Content, "turn three")
	assert.Contains(t, sec.Content, "turn five")
}

func TestContextAssembler_DietaryFilterExcludesRestricted(t *testing.T) {
	f := newAssemblerFixture(t, []model.CatalogItem{
		{MerchantID: "m1", ItemID: "i1", Name: "Veggie Wrap", Price: 8, Tags: "lettuce, tomato, hummus", Available: true},
		{MerchantID: "m1", ItemID: "i2", Name: "Club Sandwich", Price: 10, Tags: "chicken, bacon, lettuce", Available: true},
	})

	query := "any vegetarian options?"
	cls := Classify(query)
	require.Contains(t, cls.Signals, SignalDietary)

	sections, _ := f.assembler.BuildContext(context.Background(), "m1", "c1", query, cls, model.TierHeavy)

	sec, ok := findSection(sections, sectionDietary)
	require.True(t, ok)
	assert.Contains(t, sec.Content, "Veggie Wrap")
	assert.NotContains(t, sec.Content, "Club Sandwich")
}

func TestContextAssembler_RenderWrapsSections(t *testing.T) {
	f := newAssemblerFixture(t, nil)

	rendered := f.assembler.Render([]model.ContextSection{
		{Label: sectionCatalog, Content: "- Margherita Pizza ($12.00)"},
		{Label: sectionInstruct, Content: "be brief"},
	})

	assert.Contains(t, rendered, "<<REF>>")
	assert.Contains(t, rendered, "<<END>>")
	assert.Contains(t, rendered, "## CatalogItems")
	assert.Contains(t, rendered, "## Instructions")
	// 引用资料必须在包裹符之间
	assert.Less(t, strings.Index(rendered, "<<REF>>"), strings.Index(rendered, "- Margherita Pizza"))
	assert.Less(t, strings.Index(rendered, "- Margherita Pizza"), strings.Index(rendered, "<<END>>"))
}
