package core

import "github.com/rushteam/shoprank/pkg/utils"

// Candidate 是召回阶段返回的候选商品：相似度 + 元信息。
// 一经返回即视为只读，排序阶段只会基于它生成新的 RankedResult。
type Candidate struct {
	ID         string         `json:"id"`
	Similarity float64        `json:"similarity"` // 向量相似度，[0,1]
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Category 返回 metadata.category，缺省为 DefaultCategory。
func (c Candidate) Category() string {
	if c.Metadata != nil {
		if s, ok := c.Metadata["category"].(string); ok && s != "" {
			return s
		}
	}
	return DefaultCategory
}

// DefaultCategory 是 metadata 中没有类目时使用的兜底类目。
const DefaultCategory = "General"

// RankedResult 是排序输出：候选 + 融合分数（+ 可选的模型分数）。
// Labels 用于解释与观测（打分器、是否走了兜底召回等）。
type RankedResult struct {
	Candidate
	RankScore float64                `json:"rank_score"`
	MLScore   *float64               `json:"ml_score,omitempty"`
	Labels    map[string]utils.Label `json:"labels,omitempty"`
}

// PutLabel 写入 Label；若已存在同名 key，则按默认 Merge 规则累积。
func (r *RankedResult) PutLabel(key string, lbl utils.Label) {
	if r.Labels == nil {
		r.Labels = make(map[string]utils.Label)
	}
	if old, ok := r.Labels[key]; ok {
		r.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	r.Labels[key] = lbl
}

// Clone 返回一份浅拷贝，Labels 独立，避免并发请求之间共享同一个 map。
func (r RankedResult) Clone() RankedResult {
	out := r
	if r.Labels != nil {
		out.Labels = make(map[string]utils.Label, len(r.Labels))
		for k, v := range r.Labels {
			out.Labels[k] = v
		}
	}
	if r.MLScore != nil {
		s := *r.MLScore
		out.MLScore = &s
	}
	return out
}
