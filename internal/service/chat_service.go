package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"smart-menu-go/internal/config"
	"smart-menu-go/internal/model"
	"smart-menu-go/pkg/llm"
	"smart-menu-go/pkg/log"
)

// ChatService 是对话引擎的编排入口：
// 分类 → 缓存查询 → 检索与上下文装配 → 生成 → 校验 → 落记忆与缓存。
// 任何内部错误都不会原样抛给调用方，最坏情况是一条固定话术。
type ChatService interface {
	Answer(ctx context.Context, merchantID, customerID, query string) (model.ChatAnswer, error)
}

type chatService struct {
	index     CatalogIndex
	memory    ConversationMemory
	cache     SemanticCache
	assembler ContextAssembler
	validator ResponseValidator
	llmClient llm.Client
	engineCfg config.EngineConfig
	llmCfg    config.LLMConfig
}

// NewChatService 创建一个新的 ChatService 实例。
func NewChatService(
	index CatalogIndex,
	memory ConversationMemory,
	cache SemanticCache,
	assembler ContextAssembler,
	validator ResponseValidator,
	llmClient llm.Client,
	engineCfg config.EngineConfig,
	llmCfg config.LLMConfig,
) ChatService {
	return &chatService{
		index:     index,
		memory:    memory,
		cache:     cache,
		assembler: assembler,
		validator: validator,
		llmClient: llmClient,
		engineCfg: engineCfg,
		llmCfg:    llmCfg,
	}
}

var errEmptyCompletion = errors.New("generation returned empty result")

// cacheableQuery 判断一次查询是否可以参与商户级语义缓存。
// 寒暄的答案可能是个性化的开场白；含回指的查询（"它辣不辣"）的答案
// 取决于这位顾客刚刚聊到的商品。两者跨顾客复用都会答非所问，
// 甚至把一位顾客的对话内容泄露给另一位。
func cacheableQuery(cls model.ClassificationResult) bool {
	return cls.Type != model.QueryGreeting && !cls.HasSignal(SignalBackReference)
}

// Answer 处理一轮用户查询。
func (s *chatService) Answer(ctx context.Context, merchantID, customerID, query string) (model.ChatAnswer, error) {
	start := time.Now()

	cls := Classify(query)
	log.Infow("[ChatService] 查询分类完成",
		"merchant", merchantID, "customer", customerID,
		"type", cls.Type, "complexity", cls.Complexity, "signals", cls.Signals)

	// 缺失目录是配置问题，不是崩溃理由；寒暄不需要目录
	if cls.Type != model.QueryGreeting && !s.index.HasCatalog(ctx, merchantID) {
		log.Warnw("[ChatService] 商家目录缺失", "merchant", merchantID)
		return s.finish(start, model.ChatAnswer{
			Reply:     s.engineCfg.Replies.NoCatalog,
			QueryType: cls.Type,
		}), nil
	}

	// 语义缓存：相似问句直接复用应答，完全跳过生成。
	// 缓存是商户级的，只收容与单个顾客上下文无关的应答：
	// 寒暄和含回指的查询的答案依赖这位顾客的对话，不进缓存。
	if cacheableQuery(cls) {
		if entry, hit := s.cache.Lookup(ctx, merchantID, query); hit {
			s.rememberTurn(merchantID, customerID, query, entry.Response, nil, cls.Type)
			return s.finish(start, model.ChatAnswer{
				Reply:     entry.Response,
				Tier:      model.Tier(entry.Tier),
				QueryType: cls.Type,
				Cached:    true,
			}), nil
		}
	}

	// 指代不清且无从推断时，反问比猜测更可靠
	if s.memory.ShouldClarify(ctx, merchantID, customerID, query) {
		log.Infow("[ChatService] 回指无法消解，返回澄清话术",
			"merchant", merchantID, "customer", customerID, "query", query)
		s.rememberTurn(merchantID, customerID, query, s.engineCfg.Replies.Clarify, nil, cls.Type)
		return s.finish(start, model.ChatAnswer{
			Reply:     s.engineCfg.Replies.Clarify,
			QueryType: cls.Type,
		}), nil
	}

	history := s.memory.Recall(ctx, merchantID, customerID)
	profile := s.memory.Profile(ctx, merchantID, customerID)
	mem := MemoryPresence{
		HasHistory: len(history) > 0,
		HasProfile: profile.HasSignals(),
	}

	tier := Route(cls, mem, s.engineCfg.HeavyComplexity)
	log.Infow("[ChatService] 路由决策完成",
		"merchant", merchantID, "customer", customerID,
		"tier", tier, "hasHistory", mem.HasHistory, "hasProfile", mem.HasProfile)

	reply, mentioned, err := s.executeTier(ctx, merchantID, customerID, query, cls, tier)
	usedTier := tier
	if err != nil {
		// 降档重试一次；链条最多两次尝试，保证最坏延迟有界
		if safer, ok := NextSaferTier(tier); ok {
			log.Warnw("[ChatService] 档位执行失败，降档重试一次",
				"merchant", merchantID, "customer", customerID,
				"failedTier", tier, "retryTier", safer, "error", err)
			reply, mentioned, err = s.executeTier(ctx, merchantID, customerID, query, cls, safer)
			usedTier = safer
		}
	}
	if err != nil {
		log.Errorf("[ChatService] 全部档位执行失败, merchant=%s, customer=%s: %v", merchantID, customerID, err)
		return s.finish(start, model.ChatAnswer{
			Reply:     s.engineCfg.Replies.Apology,
			Tier:      usedTier,
			QueryType: cls.Type,
		}), nil
	}

	validated, corrected := s.validator.Validate(ctx, merchantID, reply)

	// 使用后台上下文：即使请求被取消，成功生成的结果也应当留存。
	// 记忆与缓存写入都是幂等的，重复写无害。
	s.rememberTurn(merchantID, customerID, query, validated, mentioned, cls.Type)
	// Heavy 档位带画像生成的应答可能包含顾客姓名与偏好，同样不进缓存
	if cacheableQuery(cls) && !(usedTier == model.TierHeavy && profile.HasSignals()) {
		s.cache.Store(context.Background(), merchantID, query, validated, cls.Type, usedTier)
	}

	return s.finish(start, model.ChatAnswer{
		Reply:     validated,
		Tier:      usedTier,
		QueryType: cls.Type,
		Corrected: corrected,
	}), nil
}

// executeTier 以指定档位装配上下文并调用生成服务。
func (s *chatService) executeTier(ctx context.Context, merchantID, customerID, query string, cls model.ClassificationResult, tier model.Tier) (string, []string, error) {
	sections, mentioned := s.assembler.BuildContext(ctx, merchantID, customerID, query, cls, tier)
	systemMsg := s.assembler.Render(sections)

	messages := []llm.Message{
		{Role: "system", Content: systemMsg},
		{Role: "user", Content: query},
	}

	genCtx, cancel := context.WithTimeout(ctx, s.llmCfg.GenerationTimeout())
	defer cancel()

	reply, err := s.llmClient.Generate(genCtx, messages, s.generationParams(tier))
	if err != nil {
		return "", nil, err
	}
	if strings.TrimSpace(reply) == "" {
		return "", nil, errEmptyCompletion
	}
	return reply, mentioned, nil
}

// generationParams 按档位控制生成预算：档位越轻，token 预算越小。
func (s *chatService) generationParams(tier model.Tier) *llm.GenerationParams {
	maxTokens := s.llmCfg.Generation.MaxTokens
	if maxTokens == 0 {
		maxTokens = 500
	}
	switch tier {
	case model.TierLight:
		maxTokens = 120
	case model.TierMemoryAware:
		if maxTokens > 300 {
			maxTokens = 300
		}
	}
	gp := llm.GenerationParams{MaxTokens: &maxTokens}
	if s.llmCfg.Generation.Temperature != 0 {
		t := s.llmCfg.Generation.Temperature
		gp.Temperature = &t
	}
	if s.llmCfg.Generation.TopP != 0 {
		p := s.llmCfg.Generation.TopP
		gp.TopP = &p
	}
	return &gp
}

func (s *chatService) rememberTurn(merchantID, customerID, query, response string, mentioned []string, queryType model.QueryType) {
	_ = s.memory.Remember(context.Background(), merchantID, customerID, model.ConversationTurn{
		Query:          query,
		Response:       response,
		Timestamp:      time.Now(),
		MentionedItems: mentioned,
		QueryType:      queryType,
	})
}

func (s *chatService) finish(start time.Time, answer model.ChatAnswer) model.ChatAnswer {
	answer.ElapsedMs = time.Since(start).Milliseconds()
	return answer
}
