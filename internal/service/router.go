package service

import "smart-menu-go/internal/model"

// MemoryPresence 汇总路由决策所需的记忆侧事实。
type MemoryPresence struct {
	HasHistory   bool
	HasProfile   bool
	NeedsClarify bool
}

// Route 根据分类结果与记忆状态选择执行档位。
// 纯函数：不读取任何隐藏状态，这是它可以被穷举测试的前提。
//
// 策略：平凡的精确模式（纯寒暄、单一的菜单/营业时间问法）且无记忆需求
// 走 Light；出现个人/社交指涉、多段诉求、饮食组合信号或需要反问澄清时
// 走 Heavy；其余按复杂度阈值判定，默认 MemoryAware。
func Route(cls model.ClassificationResult, mem MemoryPresence, heavyThreshold int) model.Tier {
	if mem.NeedsClarify {
		return model.TierHeavy
	}

	dietary := cls.HasSignal(SignalDietary) || cls.HasSignal(SignalAllergy)
	if cls.HasSignal(SignalPersonal) || cls.HasSignal(SignalMultiPart) {
		return model.TierHeavy
	}
	if dietary && cls.Complexity >= 2 {
		// 饮食限制叠加其他信号：答错的代价最高，上最重的档位
		return model.TierHeavy
	}

	if cls.Type == model.QueryGreeting && !mem.HasProfile {
		return model.TierLight
	}
	if cls.Type == model.QueryMenu && cls.Complexity <= 1 && !mem.HasHistory {
		return model.TierLight
	}

	if cls.Complexity >= heavyThreshold {
		return model.TierHeavy
	}
	return model.TierMemoryAware
}

// NextSaferTier 返回降档链 Heavy → MemoryAware → Light 中的下一档。
// Light 已是最安全档位，没有更低的档可降。
func NextSaferTier(t model.Tier) (model.Tier, bool) {
	switch t {
	case model.TierHeavy:
		return model.TierMemoryAware, true
	case model.TierMemoryAware:
		return model.TierLight, true
	default:
		return "", false
	}
}
