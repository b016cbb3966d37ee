package model

// QueryType 是查询分类器输出的类别标签。
type QueryType string

const (
	QueryGreeting       QueryType = "greeting"
	QueryMenu           QueryType = "menu_query"
	QuerySpecificItem   QueryType = "specific_item"
	QueryRecommendation QueryType = "recommendation"
	QueryDietary        QueryType = "dietary"
	QueryFollowUp       QueryType = "follow_up"
	QueryPrice          QueryType = "price_inquiry"
	QueryGeneral        QueryType = "general"
)

// ClassificationResult 是分类器对单条查询的完整判定：
// 类别、复杂度得分（命中的信号类别数）以及命中的信号列表。
type ClassificationResult struct {
	Type       QueryType `json:"type"`
	Complexity int       `json:"complexity"`
	Signals    []string  `json:"signals"`
}

// HasSignal 返回是否命中了指定信号。
func (c ClassificationResult) HasSignal(name string) bool {
	for _, s := range c.Signals {
		if s == name {
			return true
		}
	}
	return false
}
