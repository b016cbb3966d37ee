package service

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"smart-menu-go/internal/config"
	"smart-menu-go/pkg/embedding"
	"smart-menu-go/pkg/llm"
	"smart-menu-go/pkg/log"
)

func TestMain(m *testing.M) {
	log.InitDefault()
	os.Exit(m.Run())
}

// testEngineConfig 返回测试用的引擎配置，阈值与生产默认一致。
func testEngineConfig() config.EngineConfig {
	return config.EngineConfig{
		RetrievalTopK:       5,
		RetrievalMinScore:   0.30,
		CacheSimilarity:     0.90,
		CacheTTLHours:       48,
		CacheMaxEntries:     200,
		MemoryTTLHours:      4,
		MemoryMaxTurns:      10,
		ClarifyStaleMinutes: 5,
		HeavyComplexity:     3,
		Replies: config.ReplyConfig{
			Apology:   "抱歉，当前服务繁忙，请稍后重试。",
			NoCatalog: "该商家的菜单暂时不可用，请稍后再试。",
			Clarify:   "您指的是哪一个商品呢？麻烦说一下名称，我帮您查。",
		},
	}
}

// fakeEmbedder 是可控的 embedding.Client 实现。
// fn 为空时退回确定性向量；err/batchErr 用于模拟服务故障。
type fakeEmbedder struct {
	dims     int
	fn       func(text string) []float32
	err      error
	batchErr error
}

func (f *fakeEmbedder) Dimensions() int {
	if f.dims <= 0 {
		return 8
	}
	return f.dims
}

func (f *fakeEmbedder) CreateEmbedding(_ context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.fn != nil {
		return f.fn(text), nil
	}
	return embedding.Deterministic(text, f.Dimensions()), nil
}

func (f *fakeEmbedder) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if f.batchErr != nil {
		return nil, f.batchErr
	}
	vectors := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := f.CreateEmbedding(ctx, t)
		if err != nil {
			return nil, err
		}
		vectors[i] = v
	}
	return vectors, nil
}

// fakeLLM 记录调用并返回固定应答；failFirst 控制前几次调用失败。
type fakeLLM struct {
	reply      string
	err        error
	failFirst  int
	calls      int
	lastSystem string
}

func (f *fakeLLM) Generate(_ context.Context, messages []llm.Message, _ *llm.GenerationParams) (string, error) {
	f.calls++
	for _, m := range messages {
		if m.Role == "system" {
			f.lastSystem = m.Content
		}
	}
	if f.err != nil {
		return "", f.err
	}
	if f.calls <= f.failFirst {
		return "", errors.New("generation backend unavailable")
	}
	return f.reply, nil
}

// failingStore 模拟完全不可用的 KV 后端。
type failingStore struct{}

func (failingStore) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("store unavailable")
}

func (failingStore) SetWithTTL(context.Context, string, []byte, time.Duration) error {
	return errors.New("store unavailable")
}

func (failingStore) Delete(context.Context, string) error {
	return errors.New("store unavailable")
}
