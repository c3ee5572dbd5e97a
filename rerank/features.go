package rerank

import (
	"time"

	"github.com/rushteam/shoprank/core"
	"github.com/rushteam/shoprank/model"
)

// buildFeatures 为每个结果构造一行特征。
func buildFeatures(results []core.RankedResult, q core.QueryContext, now time.Time) [][]float64 {
	rows := make([][]float64, len(results))
	for i, r := range results {
		rows[i] = model.FeatureVector(r.Candidate, q, now)
	}
	return rows
}
