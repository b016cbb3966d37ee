package embedding

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeterministic_StableAcrossCalls(t *testing.T) {
	a := Deterministic("what pizzas do you have", 64)
	b := Deterministic("what pizzas do you have", 64)
	assert.Equal(t, a, b)
}

func TestDeterministic_UnitNorm(t *testing.T) {
	vec := Deterministic("margherita pizza with basil", 128)
	require.Len(t, vec, 128)

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)
}

func TestDeterministic_SharedTokensOverlap(t *testing.T) {
	a := Deterministic("spicy chicken pizza", 256)
	b := Deterministic("spicy chicken burger", 256)
	c := Deterministic("quarterly revenue report", 256)

	// 共享词汇的文本相似度应高于完全无关的文本
	assert.Greater(t, Cosine(a, b), Cosine(a, c))
}

func TestDeterministic_EmptyText(t *testing.T) {
	vec := Deterministic("", 32)
	require.Len(t, vec, 32)

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	assert.Greater(t, norm, 0.0)
}

func TestCosine(t *testing.T) {
	a := []float32{1, 0, 0}
	b := []float32{0, 1, 0}

	assert.InDelta(t, 1.0, Cosine(a, a), 1e-9)
	assert.InDelta(t, 0.0, Cosine(a, b), 1e-9)
	assert.Equal(t, 0.0, Cosine(a, []float32{1, 0}))
	assert.Equal(t, 0.0, Cosine(nil, nil))
}

func TestLocalClient_ImplementsClient(t *testing.T) {
	client := NewLocalClient(16)
	ctx := context.Background()

	assert.Equal(t, 16, client.Dimensions())

	vec, err := client.CreateEmbedding(ctx, "pizza")
	require.NoError(t, err)
	assert.Len(t, vec, 16)

	vecs, err := client.CreateEmbeddings(ctx, []string{"pizza", "salad"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, vec, vecs[0])
}
