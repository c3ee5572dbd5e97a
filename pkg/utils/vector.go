package utils

import "math"

// Cosine 计算两个向量的余弦相似度，维度不一致或存在零向量时返回 0。
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Similarity01 把余弦相似度截断到 [0,1]，作为候选的 similarity 信号。
func Similarity01(cos float64) float64 {
	switch {
	case math.IsNaN(cos) || cos < 0:
		return 0
	case cos > 1:
		return 1
	}
	return cos
}
