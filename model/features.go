package model

import (
	"strings"
	"time"

	"github.com/rushteam/shoprank/core"
	"github.com/rushteam/shoprank/pkg/conv"
)

// FeatureNames 特征顺序，与训练脚本保持一致。
var FeatureNames = []string{
	"vector_similarity",
	"price",
	"hours_to_departure",
	"cabin_ordinal",
	"loyalty_ordinal",
}

var cabinOrdinals = map[string]float64{
	"economy":         0,
	"premium economy": 1,
	"business":        2,
	"first":           3,
}

var loyaltyOrdinals = map[string]float64{
	"blue":     0,
	"silver":   1,
	"gold":     2,
	"platinum": 3,
}

// CabinOrdinal 舱位序数编码，未知为 0。
func CabinOrdinal(cabin string) float64 {
	return cabinOrdinals[strings.ToLower(strings.TrimSpace(cabin))]
}

// LoyaltyOrdinal 会员等级序数编码，未知为 0。
func LoyaltyOrdinal(tier string) float64 {
	return loyaltyOrdinals[strings.ToLower(strings.TrimSpace(tier))]
}

// FeatureVector 构造单个候选的特征行。price 取自 metadata，缺失为 0。
func FeatureVector(c core.Candidate, q core.QueryContext, now time.Time) []float64 {
	return []float64{
		c.Similarity,
		conv.Float64(c.Metadata, "price", 0),
		float64(q.Trip.HoursToDeparture(now)),
		CabinOrdinal(q.Cabin),
		LoyaltyOrdinal(q.LoyaltyTier),
	}
}
