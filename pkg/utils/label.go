package utils

// Label 是排序链路中的解释信息：可追踪、可透传。
// Value 与 Source 的语义由调用方约定，例如 {Value: "heuristic", Source: "rank"}。
type Label struct {
	Value  string `json:"value"`
	Source string `json:"source"` // recall / rank / rerank
}

// MergeLabel 用于合并同名 Label，保留历史：
// - Value: 以 '|' 累积
// - Source: 以 ',' 累积
func MergeLabel(existing Label, incoming Label) Label {
	if existing.Value == "" {
		return incoming
	}
	if incoming.Value == "" {
		return existing
	}

	merged := existing
	merged.Value = existing.Value + "|" + incoming.Value
	switch {
	case existing.Source == "":
		merged.Source = incoming.Source
	case incoming.Source == "":
		merged.Source = existing.Source
	default:
		merged.Source = existing.Source + "," + incoming.Source
	}
	return merged
}
