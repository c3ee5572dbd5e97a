package filter

import (
	"strconv"
	"strings"

	"github.com/rushteam/shoprank/core"
)

// MetadataQuery 序列化为 Pinecone/Mongo 风格的 metadata 过滤：
//
//	{"category": {"$eq": "Luxury"}, "price": {"$gte": 10, "$lte": 200}}
//
// 空过滤返回 nil，表示不传 filter。
func MetadataQuery(f core.Filter) map[string]any {
	if f.IsEmpty() {
		return nil
	}
	out := make(map[string]any, 3)
	if f.Category != nil {
		out["category"] = map[string]any{"$eq": *f.Category}
	}
	if f.Brand != nil {
		out["brand"] = map[string]any{"$eq": *f.Brand}
	}
	if pr := f.PriceRange; pr != nil && (pr.Min != nil || pr.Max != nil) {
		ops := make(map[string]any, 2)
		if pr.Min != nil {
			ops["$gte"] = *pr.Min
		}
		if pr.Max != nil {
			ops["$lte"] = *pr.Max
		}
		out["price"] = ops
	}
	return out
}

// CEL 序列化为 pkg/dsl 可求值的表达式，空过滤返回 ""。
func CEL(f core.Filter) string {
	if f.IsEmpty() {
		return ""
	}
	var parts []string
	if f.Category != nil {
		parts = append(parts, `has(meta.category) && meta.category == `+strconv.Quote(*f.Category))
	}
	if f.Brand != nil {
		parts = append(parts, `has(meta.brand) && meta.brand == `+strconv.Quote(*f.Brand))
	}
	if pr := f.PriceRange; pr != nil {
		if pr.Min != nil {
			parts = append(parts, `has(meta.price) && double(meta.price) >= `+celDouble(*pr.Min))
		}
		if pr.Max != nil {
			parts = append(parts, `has(meta.price) && double(meta.price) <= `+celDouble(*pr.Max))
		}
	}
	return strings.Join(parts, " && ")
}

// celDouble 保证字面量是 double（CEL 中 10 与 10.0 类型不同）。
func celDouble(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}
