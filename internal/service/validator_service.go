package service

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"smart-menu-go/internal/model"
	"smart-menu-go/internal/repository"
	"smart-menu-go/pkg/kafka"
	"smart-menu-go/pkg/log"
	"smart-menu-go/pkg/tasks"
)

// 价格偏差超过该比例才改写，避免对四舍五入级别的差异过度修正。
const priceTolerance = 0.10

// ResponseValidator 对生成文本做事后校验：
// 用目录事实纠正价格与名称漂移，发现目录中不存在的商品时
// 记录幻觉候选事件。刻意保守：只改写数字，从不删句子。
type ResponseValidator interface {
	// Validate 返回纠正后的文本，以及是否发生过改写。
	Validate(ctx context.Context, merchantID, responseText string) (string, bool)
}

type responseValidator struct {
	catalogRepo repository.CatalogRepository
}

// NewResponseValidator 创建一个新的 ResponseValidator 实例。
func NewResponseValidator(catalogRepo repository.CatalogRepository) ResponseValidator {
	return &responseValidator{catalogRepo: catalogRepo}
}

var (
	listLineRe = regexp.MustCompile(`^\s*[-*•]\s*(.+)$`)
	priceRe    = regexp.MustCompile(`[\$￥]\s*(\d+(?:\.\d{1,2})?)|(\d+(?:\.\d{1,2})?)\s*元`)
	normRe     = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
)

func (v *responseValidator) Validate(ctx context.Context, merchantID, responseText string) (string, bool) {
	items, err := v.catalogRepo.FindByMerchant(ctx, merchantID)
	if err != nil || len(items) == 0 {
		// 没有基准事实就没有可校验的内容，原样放行
		if err != nil {
			log.Warnw("[ResponseValidator] 读取目录失败，跳过校验", "merchant", merchantID, "error", err)
		}
		return responseText, false
	}

	lines := strings.Split(responseText, "\n")
	corrected := false

	for i, line := range lines {
		m := listLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		candidate := m[1]

		priceLoc := priceRe.FindStringSubmatchIndex(candidate)
		namePart := candidate
		var mentionedPrice float64
		hasPrice := false
		if priceLoc != nil {
			namePart = candidate[:priceLoc[0]]
			priceStr := extractPriceGroup(candidate, priceLoc)
			if p, perr := strconv.ParseFloat(priceStr, 64); perr == nil {
				mentionedPrice = p
				hasPrice = true
			}
		}

		name := strings.Trim(strings.TrimSpace(namePart), "()（）[]:：,，-")
		if name == "" {
			continue
		}

		matched, ok := matchCatalogItem(name, items)
		if !ok {
			// 目录里找不到：不拦截、不删改，只记录幻觉候选供离线观测
			log.Warnw("[ResponseValidator] 发现幻觉候选商品",
				"merchant", merchantID, "mention", name)
			kafka.PublishDriftEvent(tasks.DriftEvent{
				MerchantID: merchantID,
				Mention:    name,
				Reason:     "unmatched_item",
				Timestamp:  time.Now(),
			})
			continue
		}

		if hasPrice && matched.Price > 0 {
			drift := math.Abs(mentionedPrice-matched.Price) / matched.Price
			if drift > priceTolerance {
				oldToken := candidate[priceLoc[0]:priceLoc[1]]
				newToken := rewritePriceToken(oldToken, matched.Price)
				lines[i] = strings.Replace(line, oldToken, newToken, 1)
				corrected = true
				log.Infow("[ResponseValidator] 已纠正价格漂移",
					"merchant", merchantID, "item", matched.Name,
					"mentioned", mentionedPrice, "actual", matched.Price)
				kafka.PublishDriftEvent(tasks.DriftEvent{
					MerchantID:     merchantID,
					Mention:        matched.Name,
					MentionedPrice: mentionedPrice,
					CatalogPrice:   matched.Price,
					Reason:         "price_corrected",
					Timestamp:      time.Now(),
				})
			}
		}
	}

	return strings.Join(lines, "\n"), corrected
}

// extractPriceGroup 取出命中的数字分组（$ 前缀或"元"后缀两种形式）。
func extractPriceGroup(s string, loc []int) string {
	if loc[2] >= 0 {
		return s[loc[2]:loc[3]]
	}
	return s[loc[4]:loc[5]]
}

// matchCatalogItem 按规范化名称做模糊匹配：
// 先做大小写/标点不敏感的整名匹配，失败后退回词重叠匹配。
func matchCatalogItem(mention string, items []model.CatalogItem) (model.CatalogItem, bool) {
	normMention := normalizeName(mention)
	if normMention == "" {
		return model.CatalogItem{}, false
	}

	for _, item := range items {
		if normalizeName(item.Name) == normMention {
			return item, true
		}
	}

	// 词重叠兜底："Margherita" 应当能命中 "Margherita Pizza"
	mentionWords := strings.Fields(normMention)
	var best model.CatalogItem
	bestScore := 0.0
	for _, item := range items {
		itemWords := strings.Fields(normalizeName(item.Name))
		overlap := wordOverlap(mentionWords, itemWords)
		if overlap > bestScore {
			bestScore = overlap
			best = item
		}
	}
	if bestScore >= 0.5 {
		return best, true
	}
	return model.CatalogItem{}, false
}

func normalizeName(s string) string {
	s = strings.ToLower(s)
	s = normRe.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

// wordOverlap 返回交集占较小词集的比例。
func wordOverlap(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(a))
	for _, w := range a {
		set[w] = struct{}{}
	}
	common := 0
	for _, w := range b {
		if _, ok := set[w]; ok {
			common++
		}
	}
	shorter := len(a)
	if len(b) < shorter {
		shorter = len(b)
	}
	return float64(common) / float64(shorter)
}

// rewritePriceToken 用目录真实价格重写价格子串，保留原有的书写风格。
func rewritePriceToken(oldToken string, actual float64) string {
	hadDecimals := strings.Contains(oldToken, ".")
	var priceStr string
	if !hadDecimals && actual == math.Trunc(actual) {
		priceStr = strconv.FormatInt(int64(actual), 10)
	} else {
		priceStr = fmt.Sprintf("%.2f", actual)
	}
	if strings.Contains(oldToken, "元") {
		return priceStr + "元"
	}
	prefix := "$"
	if strings.Contains(oldToken, "￥") {
		prefix = "￥"
	}
	return prefix + priceStr
}
