// Package service 包含了应用的业务逻辑层。
package service

import (
	"regexp"
	"strings"

	"smart-menu-go/internal/model"
)

// 分类器产出的信号类别。复杂度得分 = 命中的不同信号类别数。
const (
	SignalGreeting       = "greeting_exact"
	SignalDietary        = "dietary_keyword"
	SignalAllergy        = "allergy_keyword"
	SignalPrice          = "price_keyword"
	SignalBackReference  = "back_reference"
	SignalRecommendation = "recommendation_keyword"
	SignalSpecificItem   = "specific_item"
	SignalMenu           = "menu_keyword"
	SignalPersonal       = "personal_reference"
	SignalMultiPart      = "multi_part"
	SignalMultiQuestion  = "multi_question"
	SignalLongMessage    = "long_message"
	SignalMultiSentence  = "multi_sentence"
)

var (
	greetingForms = map[string]struct{}{
		"hi": {}, "hello": {}, "hey": {}, "hiya": {}, "yo": {},
		"good morning": {}, "good afternoon": {}, "good evening": {},
		"你好": {}, "您好": {}, "嗨": {}, "哈喽": {}, "在吗": {},
	}

	dietaryKeywords = []string{
		"vegetarian", "vegan", "gluten", "halal", "kosher", "dairy",
		"lactose", "pescatarian", "keto", "sugar-free", "sugar free",
		"素食", "纯素", "清真", "无麸质", "乳糖",
	}

	allergyKeywords = []string{
		"allergic", "allergy", "allergies", "nut", "nuts", "peanut",
		"shellfish", "intolerant", "intolerance", "过敏", "花生", "坚果",
	}

	priceKeywords = []string{
		"how much", "price", "prices", "cost", "costs", "expensive", "cheap",
		"多少钱", "价格", "价钱", "贵不贵",
	}

	backReferences = []string{
		"it", "that", "those", "them", "this one", "that one", "the same",
		"another one", "那个", "这个", "同样的", "一样的", "刚才",
	}

	recommendationKeywords = []string{
		"recommend", "recommendation", "suggest", "suggestion", "what should",
		"best", "popular", "favorite", "推荐", "招牌", "哪个好",
	}

	specificItemPatterns = []string{
		"do you have", "do you sell", "is there", "有没有", "有卖",
	}

	menuKeywords = []string{
		"menu", "what do you have", "what do you offer", "hours", "open",
		"location", "address", "菜单", "营业时间", "地址", "在哪",
	}

	personalPhrases = []string{
		"my name", "i'm called", "i am called", "call me", "for me",
		"我叫", "我是", "我的",
	}

	sentenceSplit = regexp.MustCompile(`[.!?。！？]+`)
)

// Classify 对单条用户查询做确定性的规则分类。
// 纯函数：相同输入必然得到相同输出，无任何外部状态或副作用。
// 规则按从最具体到最不具体的顺序排列，第一条命中的规则决定类别；
// 复杂度为命中的不同信号类别的数量。
func Classify(text string) model.ClassificationResult {
	normalized := strings.ToLower(strings.TrimSpace(text))
	trimmed := strings.Trim(normalized, "!！.。~～ ")

	var signals []string
	addSignal := func(s string) {
		for _, existing := range signals {
			if existing == s {
				return
			}
		}
		signals = append(signals, s)
	}

	_, isGreeting := greetingForms[trimmed]
	if isGreeting {
		addSignal(SignalGreeting)
	}
	if containsAny(normalized, dietaryKeywords) {
		addSignal(SignalDietary)
	}
	if containsAny(normalized, allergyKeywords) {
		addSignal(SignalAllergy)
	}
	if containsAny(normalized, priceKeywords) {
		addSignal(SignalPrice)
	}
	if hasBackReference(normalized) {
		addSignal(SignalBackReference)
	}
	if containsAny(normalized, recommendationKeywords) {
		addSignal(SignalRecommendation)
	}
	if containsAny(normalized, specificItemPatterns) {
		addSignal(SignalSpecificItem)
	}
	if containsAny(normalized, menuKeywords) {
		addSignal(SignalMenu)
	}
	if hasPersonalReference(normalized) {
		addSignal(SignalPersonal)
	}
	if strings.Contains(normalized, " but ") || strings.Contains(normalized, " and also ") ||
		strings.Contains(normalized, "但是") || strings.Contains(normalized, "另外") {
		addSignal(SignalMultiPart)
	}

	// 结构性启发：多问号、长消息、多句
	if strings.Count(text, "?")+strings.Count(text, "？") > 1 {
		addSignal(SignalMultiQuestion)
	}
	if len([]rune(text)) > 120 {
		addSignal(SignalLongMessage)
	}
	if countSentences(text) > 1 {
		addSignal(SignalMultiSentence)
	}

	result := model.ClassificationResult{
		Signals:    signals,
		Complexity: len(signals),
	}

	// 有序规则链：第一条命中的规则决定类别
	switch {
	case isGreeting:
		result.Type = model.QueryGreeting
	case result.HasSignal(SignalDietary) || result.HasSignal(SignalAllergy):
		result.Type = model.QueryDietary
	case result.HasSignal(SignalPrice):
		result.Type = model.QueryPrice
	case result.HasSignal(SignalBackReference):
		result.Type = model.QueryFollowUp
	case result.HasSignal(SignalSpecificItem):
		result.Type = model.QuerySpecificItem
	case result.HasSignal(SignalRecommendation):
		result.Type = model.QueryRecommendation
	case result.HasSignal(SignalMenu):
		result.Type = model.QueryMenu
	default:
		result.Type = model.QueryGeneral
		if result.Complexity < 2 {
			// 无任何规则命中时按中等复杂度处理
			result.Complexity = 2
		}
	}

	return result
}

// containsAny 判断文本是否包含任一关键词。
func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// splitWords 把归一化后的文本切成单词集合，用于单词级的信号匹配。
func splitWords(normalized string) map[string]struct{} {
	words := strings.FieldsFunc(normalized, func(r rune) bool {
		return r == ' ' || r == ',' || r == '?' || r == '!' || r == '.'
	})
	wordSet := make(map[string]struct{}, len(words))
	for _, w := range words {
		wordSet[w] = struct{}{}
	}
	return wordSet
}

// hasBackReference 判断文本是否包含指代不明的回指。
// 单词级匹配，避免 "italian" 误命中 "it" 这类子串。
func hasBackReference(normalized string) bool {
	wordSet := splitWords(normalized)
	for _, ref := range backReferences {
		if strings.Contains(ref, " ") || len([]rune(ref)) > 0 && ref[0] >= 0x80 {
			// 短语和中文回指用子串匹配
			if strings.Contains(normalized, ref) {
				return true
			}
			continue
		}
		if _, ok := wordSet[ref]; ok {
			return true
		}
	}
	return false
}

// hasPersonalReference 判断文本是否出现个人/社交指涉。
// 单独的 "my" 按词匹配，避免 "yummy" 这类子串误命中。
func hasPersonalReference(normalized string) bool {
	if containsAny(normalized, personalPhrases) {
		return true
	}
	_, ok := splitWords(normalized)["my"]
	return ok
}

// countSentences 粗略统计句子数量。
func countSentences(text string) int {
	parts := sentenceSplit.Split(strings.TrimSpace(text), -1)
	count := 0
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			count++
		}
	}
	return count
}
