package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// localClient 是本地确定性向量实现：不依赖任何外部服务，
// 同一文本永远得到同一向量。语义质量远低于真实模型，
// 仅用于 Embedding 服务不可用时让检索保持可用（降级模式）。
type localClient struct {
	dims int
}

// NewLocalClient 创建本地确定性 embedding 实现。
func NewLocalClient(dims int) Client {
	if dims <= 0 {
		dims = 1024
	}
	return &localClient{dims: dims}
}

func (c *localClient) Dimensions() int {
	return c.dims
}

func (c *localClient) CreateEmbedding(_ context.Context, text string) ([]float32, error) {
	return Deterministic(text, c.dims), nil
}

func (c *localClient) CreateEmbeddings(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, t := range texts {
		vectors[i] = Deterministic(t, c.dims)
	}
	return vectors, nil
}

// Deterministic 将文本散列为固定维度的单位向量。
// 按小写分词后把每个 token 散列到若干维度上累加，最后做 L2 归一化，
// 因此共享词汇的文本之间仍有非零相似度。
func Deterministic(text string, dims int) []float32 {
	vec := make([]float32, dims)
	tokens := strings.Fields(strings.ToLower(text))
	if len(tokens) == 0 {
		tokens = []string{text}
	}
	for _, tok := range tokens {
		h := fnv.New64a()
		_, _ = h.Write([]byte(tok))
		seed := h.Sum64()
		// 每个 token 投影到 4 个维度，正负号由散列位决定
		for j := 0; j < 4; j++ {
			seed = seed*6364136223846793005 + 1442695040888963407
			idx := int(seed % uint64(dims))
			if seed&(1<<63) != 0 {
				vec[idx] -= 1
			} else {
				vec[idx] += 1
			}
		}
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	inv := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= inv
	}
	return vec
}

// Cosine 计算两个向量的余弦相似度，维度不一致时返回 0。
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
