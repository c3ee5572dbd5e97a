package rules

func f64(v float64) *float64 { return &v }

// Builtin 返回两个参考商户（airlinex、dnata_shop）的规则，未提供规则文件时使用。
func Builtin() *Snapshot {
	snap, err := NewSnapshot(map[string]MerchantRuleSet{
		"airlinex": {
			BlendWeights: BlendWeights{ML: 0.6, Boost: 0.3, Similarity: 0.1},
			CategoryBoosts: map[string]float64{
				"Fragrance & Beauty": 1.2,
				"Electronics":        1.1,
				"Baby & Kids":        1.05,
				"Luxury":             1.3,
				"Comfort":            1.0,
			},
			TripRules: []TripRule{
				{Route: []string{"DXB", "CDG"}, BoostCategory: "Fragrance & Beauty", Weight: 1.25},
				{Route: []string{"DXB", "LHR"}, BoostCategory: "Luxury", Weight: 1.3},
			},
			CabinRules: map[string]CabinRule{
				"business": {LuxuryCategoryBoost: f64(1.2), ComfortCategoryBoost: f64(1.1)},
				"first":    {LuxuryCategoryBoost: f64(1.4), ComfortCategoryBoost: f64(1.2)},
				"economy":  {ComfortCategoryBoost: f64(1.0)},
			},
			LoyaltyWeights: map[string]float64{"silver": 1.0, "gold": 1.1, "platinum": 1.2},
		},
		"dnata_shop": {
			BlendWeights: BlendWeights{ML: 0.5, Boost: 0.4, Similarity: 0.1},
			CategoryBoosts: map[string]float64{
				"Travel Essentials": 1.2,
				"Gadgets":           1.1,
			},
			CabinRules: map[string]CabinRule{
				"business": {LuxuryCategoryBoost: f64(1.15)},
				"economy":  {ComfortCategoryBoost: f64(1.0)},
			},
			LoyaltyWeights: map[string]float64{"silver": 1.0, "gold": 1.05, "platinum": 1.1},
		},
	})
	if err != nil {
		panic(err)
	}
	return snap
}
