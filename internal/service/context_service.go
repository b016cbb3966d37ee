package service

import (
	"context"
	"fmt"
	"strings"

	"smart-menu-go/internal/config"
	"smart-menu-go/internal/model"
	"smart-menu-go/internal/repository"
	"smart-menu-go/pkg/log"
)

// 各上下文片段的固定上限，保证提示词总长度是确定有界的。
const (
	maxHistoryTurns = 3
	maxCatalogItems = 10
	sectionPersonal = "Personalization"
	sectionHistory  = "History"
	sectionCatalog  = "CatalogItems"
	sectionDietary  = "DietaryFilter"
	sectionInstruct = "Instructions"
)

// ContextAssembler 负责把检索结果、记忆与目录数据装配成
// 有界、带标签、顺序固定的提示词片段。
type ContextAssembler interface {
	// BuildContext 返回按固定顺序排列的片段，以及检索命中的商品名
	// （供对话记忆记录本轮提到的商品）。
	BuildContext(ctx context.Context, merchantID, customerID, query string, cls model.ClassificationResult, tier model.Tier) ([]model.ContextSection, []string)
	// Render 把片段拼装成最终的 system 提示词。
	Render(sections []model.ContextSection) string
}

type contextAssembler struct {
	memory      ConversationMemory
	index       CatalogIndex
	catalogRepo repository.CatalogRepository
	topK        int
	minScore    float64
	prompt      config.PromptConfig
}

// NewContextAssembler 创建一个新的 ContextAssembler 实例。
func NewContextAssembler(memory ConversationMemory, index CatalogIndex, catalogRepo repository.CatalogRepository, cfg config.EngineConfig) ContextAssembler {
	return &contextAssembler{
		memory:      memory,
		index:       index,
		catalogRepo: catalogRepo,
		topK:        cfg.RetrievalTopK,
		minScore:    cfg.RetrievalMinScore,
		prompt:      cfg.Prompt,
	}
}

// BuildContext 装配上下文。候选片段按固定顺序：
// Personalization、History、CatalogItems、DietaryFilter、Instructions。
// 各片段是否进入由查询类别、信号与执行档位共同决定。
func (a *contextAssembler) BuildContext(ctx context.Context, merchantID, customerID, query string, cls model.ClassificationResult, tier model.Tier) ([]model.ContextSection, []string) {
	var sections []model.ContextSection
	var mentioned []string

	// Light 档位只带指令：纯寒暄不值得做任何检索
	if tier == model.TierLight {
		sections = append(sections, a.instructionsSection())
		return sections, nil
	}

	if tier == model.TierHeavy {
		if profile := a.memory.Profile(ctx, merchantID, customerID); profile.HasSignals() {
			sections = append(sections, personalizationSection(profile))
		}
	}

	if history := a.memory.Recall(ctx, merchantID, customerID); len(history) > 0 {
		sections = append(sections, historySection(history))
	}

	// 目录检索只对非平凡类别执行；寒暄不碰目录
	if cls.Type != model.QueryGreeting {
		k := maxCatalogItems
		if a.topK < k {
			k = a.topK
		}
		results, err := a.index.Search(ctx, merchantID, query, k, a.minScore)
		if err != nil {
			log.Warnw("[ContextAssembler] 目录检索失败，跳过 CatalogItems 片段",
				"merchant", merchantID, "error", err)
		} else if len(results) > 0 {
			sections = append(sections, catalogSection(results))
			for _, r := range results {
				mentioned = append(mentioned, r.Item.Name)
			}
		}
	}

	// 饮食过滤与相似度检索是两条路：这里按配料文本做排除扫描
	if cls.HasSignal(SignalDietary) || cls.HasSignal(SignalAllergy) {
		if sec, ok := a.dietarySection(ctx, merchantID, query); ok {
			sections = append(sections, sec)
		}
	}

	sections = append(sections, a.instructionsSection())
	return sections, mentioned
}

// Render 把片段按顺序拼装进引用包裹符之间。
func (a *contextAssembler) Render(sections []model.ContextSection) string {
	rules := a.prompt.Rules
	if rules == "" {
		rules = "你是商家的点单助手。只依据参考资料回答，资料里没有的商品和价格不要编造。"
	}
	refStart := a.prompt.RefStart
	if refStart == "" {
		refStart = "<<REF>>"
	}
	refEnd := a.prompt.RefEnd
	if refEnd == "" {
		refEnd = "<<END>>"
	}

	var b strings.Builder
	b.WriteString(rules)
	b.WriteString("\n\n")
	b.WriteString(refStart)
	b.WriteString("\n")
	for _, sec := range sections {
		b.WriteString("## ")
		b.WriteString(sec.Label)
		b.WriteString("\n")
		b.WriteString(sec.Content)
		b.WriteString("\n")
	}
	b.WriteString(refEnd)
	return b.String()
}

func personalizationSection(profile model.CustomerProfile) model.ContextSection {
	var parts []string
	if profile.Name != "" {
		parts = append(parts, "Customer name: "+profile.Name)
	}
	if len(profile.DietaryTags) > 0 {
		parts = append(parts, "Dietary preferences: "+strings.Join(profile.DietaryTags, ", "))
	}
	if len(profile.Topics) > 0 {
		parts = append(parts, "Topics of interest: "+strings.Join(profile.Topics, ", "))
	}
	return model.ContextSection{Label: sectionPersonal, Content: strings.Join(parts, "\n")}
}

func historySection(turns []model.ConversationTurn) model.ContextSection {
	if len(turns) > maxHistoryTurns {
		turns = turns[len(turns)-maxHistoryTurns:]
	}
	var b strings.Builder
	for _, t := range turns {
		b.WriteString("Customer: ")
		b.WriteString(t.Query)
		b.WriteString("\nAssistant: ")
		b.WriteString(t.Response)
		b.WriteString("\n")
	}
	return model.ContextSection{Label: sectionHistory, Content: strings.TrimRight(b.String(), "\n")}
}

func catalogSection(results []model.ScoredItem) model.ContextSection {
	if len(results) > maxCatalogItems {
		results = results[:maxCatalogItems]
	}
	var b strings.Builder
	for _, r := range results {
		b.WriteString(fmt.Sprintf("- %s ($%.2f)", r.Item.Name, r.Item.Price))
		if r.Item.Category != "" {
			b.WriteString(" [" + r.Item.Category + "]")
		}
		if r.Item.Tags != "" {
			b.WriteString(" ingredients: " + r.Item.Tags)
		}
		b.WriteString("\n")
	}
	return model.ContextSection{Label: sectionCatalog, Content: strings.TrimRight(b.String(), "\n")}
}

// restrictedSubstances 把查询中的饮食信号映射为需要排除的配料子串。
var restrictedSubstances = map[string][]string{
	"vegetarian": {"chicken", "beef", "pork", "lamb", "fish", "shrimp", "meat", "bacon", "ham"},
	"vegan":      {"chicken", "beef", "pork", "lamb", "fish", "shrimp", "meat", "bacon", "ham", "cheese", "milk", "cream", "butter", "egg", "honey"},
	"gluten":     {"wheat", "flour", "bread", "pasta", "noodle"},
	"dairy":      {"milk", "cheese", "cream", "butter", "yogurt"},
	"lactose":    {"milk", "cheese", "cream", "butter", "yogurt"},
	"nut":        {"nut", "peanut", "almond", "cashew", "walnut", "pistachio"},
	"peanut":     {"peanut"},
	"shellfish":  {"shrimp", "crab", "lobster", "clam", "oyster", "mussel"},
	"素食":         {"鸡", "牛", "猪", "羊", "鱼", "虾", "肉"},
	"过敏":         {},
}

// dietarySection 对目录做排除式扫描：剔除配料文本命中受限物质的商品。
func (a *contextAssembler) dietarySection(ctx context.Context, merchantID, query string) (model.ContextSection, bool) {
	items, err := a.catalogRepo.FindAvailableByMerchant(ctx, merchantID)
	if err != nil {
		log.Warnw("[ContextAssembler] 饮食过滤读取目录失败，跳过 DietaryFilter 片段",
			"merchant", merchantID, "error", err)
		return model.ContextSection{}, false
	}

	lower := strings.ToLower(query)
	var exclusions []string
	for trigger, substances := range restrictedSubstances {
		if strings.Contains(lower, trigger) {
			exclusions = append(exclusions, substances...)
		}
	}
	if len(exclusions) == 0 {
		return model.ContextSection{}, false
	}

	var safe []model.CatalogItem
	for _, item := range items {
		ingredients := strings.ToLower(item.Tags + " " + item.Description + " " + item.Name)
		blocked := false
		for _, sub := range exclusions {
			if strings.Contains(ingredients, sub) {
				blocked = true
				break
			}
		}
		if !blocked {
			safe = append(safe, item)
		}
	}
	if len(safe) > maxCatalogItems {
		safe = safe[:maxCatalogItems]
	}

	var b strings.Builder
	b.WriteString("Items compatible with the stated dietary restriction:\n")
	for _, item := range safe {
		b.WriteString(fmt.Sprintf("- %s ($%.2f)\n", item.Name, item.Price))
	}
	if len(safe) == 0 {
		b.WriteString("(no compatible items found)\n")
	}
	return model.ContextSection{Label: sectionDietary, Content: strings.TrimRight(b.String(), "\n")}, true
}

func (a *contextAssembler) instructionsSection() model.ContextSection {
	return model.ContextSection{
		Label:   sectionInstruct,
		Content: "回答要简短友好。提到商品时必须使用参考资料中的名称和价格，不确定时如实说明。",
	}
}
