package rank

import (
	"github.com/rushteam/shoprank/core"
	"github.com/rushteam/shoprank/rules"
)

// MerchantBoost 计算商户的类目/航线/舱位乘数。
//
//  1. base = category_boosts[category]，缺失为 1.0
//  2. 每条命中的 trip_rule（航线包含出发地与目的地且 boost_category == category）依次相乘，不短路
//  3. 给定舱位时乘以 cabin_rules[lower(cabin)].luxury_category_boost，缺失为 1.0
//
// 未配置的商户直接返回 1.0；任何缺失的 key 都不会报错。
func MerchantBoost(snap *rules.Snapshot, merchantID, category string, trip *core.Trip, cabin string) float64 {
	set, ok := snap.Get(merchantID)
	if !ok {
		return 1.0
	}

	boost := set.CategoryBoost(category)

	if trip != nil {
		for _, rule := range set.TripRules {
			if rule.BoostCategory == category && rule.Matches(trip) {
				boost *= rule.Weight
			}
		}
	}

	if cabin != "" {
		if cr, ok := set.Cabin(cabin); ok {
			boost *= cr.Luxury()
		}
	}
	return boost
}
