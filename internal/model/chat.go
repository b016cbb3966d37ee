package model

// Tier 是路由器可选择的执行档位，按上下文丰富度递增。
type Tier string

const (
	TierLight       Tier = "light"
	TierMemoryAware Tier = "memory_aware"
	TierHeavy       Tier = "heavy"
)

// ChatRequest 是聊天接口的请求体。
type ChatRequest struct {
	MerchantID string `json:"merchantId" binding:"required"`
	CustomerID string `json:"customerId" binding:"required"`
	Message    string `json:"message" binding:"required"`
}

// ChatAnswer 是引擎对一次查询的最终应答及决策元信息。
type ChatAnswer struct {
	Reply     string    `json:"reply"`
	Tier      Tier      `json:"tier,omitempty"`
	QueryType QueryType `json:"queryType"`
	Cached    bool      `json:"cached"`
	Corrected bool      `json:"corrected"`
	ElapsedMs int64     `json:"elapsedMs"`
}

// ContextSection 是上下文装配器产出的一个带标签的提示片段。
type ContextSection struct {
	Label   string `json:"label"`
	Content string `json:"content"`
}
