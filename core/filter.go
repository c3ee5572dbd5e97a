package core

// Filter 是从自然语言查询中抽取出的结构化过滤条件。
// 字段集合是封闭的：只支持类目、品牌与价格区间；nil 表示不约束。
type Filter struct {
	Category   *string     `json:"category,omitempty"`
	Brand      *string     `json:"brand,omitempty"`
	PriceRange *PriceRange `json:"price_range,omitempty"`
}

// PriceRange 价格区间，两端均可选，闭区间。
type PriceRange struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// IsEmpty 报告过滤条件是否不产生任何约束。
func (f Filter) IsEmpty() bool {
	return f.Category == nil && f.Brand == nil &&
		(f.PriceRange == nil || (f.PriceRange.Min == nil && f.PriceRange.Max == nil))
}
