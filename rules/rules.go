// Package rules 是商户排序规则的只读快照。
//
// 规则在启动时加载一次（YAML/JSON 文件或 Redis），之后只读，可无锁并发访问。
// 未知商户解析为中性默认值：权重 {ml:0.6, boost:0.3, similarity:0.1}，所有乘数为 1.0。
package rules

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rushteam/shoprank/core"
)

// BlendWeights 是融合公式的系数，不要求和为 1。
type BlendWeights struct {
	ML         float64 `yaml:"ml" json:"ml"`
	Boost      float64 `yaml:"boost" json:"boost"`
	Similarity float64 `yaml:"similarity" json:"similarity"`
}

// DefaultBlendWeights 未配置商户使用的权重。
func DefaultBlendWeights() BlendWeights {
	return BlendWeights{ML: 0.6, Boost: 0.3, Similarity: 0.1}
}

// TripRule 航线规则：出发地与目的地都在 Route 中且类目命中时乘以 Weight。
// 地点比较不区分大小写（"dxb" 与 "DXB" 视为同一机场），也不区分方向。
type TripRule struct {
	Route         []string `yaml:"route" json:"route"`
	BoostCategory string   `yaml:"boost_category" json:"boost_category"`
	Weight        float64  `yaml:"weight" json:"weight"`
}

// Matches 报告行程是否落在该航线上（不区分大小写）。
func (r TripRule) Matches(trip *core.Trip) bool {
	if trip == nil {
		return false
	}
	return r.hasLocation(trip.From) && r.hasLocation(trip.To)
}

func (r TripRule) hasLocation(loc string) bool {
	if loc == "" {
		return false
	}
	for _, l := range r.Route {
		if strings.EqualFold(l, loc) {
			return true
		}
	}
	return false
}

// CabinRule 舱位乘数，缺失字段按 1.0 处理。
type CabinRule struct {
	LuxuryCategoryBoost  *float64 `yaml:"luxury_category_boost,omitempty" json:"luxury_category_boost,omitempty"`
	ComfortCategoryBoost *float64 `yaml:"comfort_category_boost,omitempty" json:"comfort_category_boost,omitempty"`
}

// Luxury 返回奢侈品乘数，未配置为 1.0。
func (c CabinRule) Luxury() float64 {
	if c.LuxuryCategoryBoost == nil {
		return 1.0
	}
	return *c.LuxuryCategoryBoost
}

// Comfort 返回舒适类乘数，未配置为 1.0。
func (c CabinRule) Comfort() float64 {
	if c.ComfortCategoryBoost == nil {
		return 1.0
	}
	return *c.ComfortCategoryBoost
}

// MerchantRuleSet 单个商户的全部规则。
type MerchantRuleSet struct {
	BlendWeights   BlendWeights         `yaml:"blend_weights" json:"blend_weights"`
	CategoryBoosts map[string]float64   `yaml:"category_boosts" json:"category_boosts"`
	TripRules      []TripRule           `yaml:"trip_rules" json:"trip_rules"`
	CabinRules     map[string]CabinRule `yaml:"cabin_rules" json:"cabin_rules"` // key 为小写舱位
	LoyaltyWeights map[string]float64   `yaml:"loyalty_weights" json:"loyalty_weights"`
}

// DefaultRuleSet 中性规则：默认权重，无任何 boost。
func DefaultRuleSet() MerchantRuleSet {
	return MerchantRuleSet{BlendWeights: DefaultBlendWeights()}
}

// CategoryBoost 类目乘数，缺失为 1.0。
func (m MerchantRuleSet) CategoryBoost(category string) float64 {
	if b, ok := m.CategoryBoosts[category]; ok {
		return b
	}
	return 1.0
}

// Cabin 按小写舱位查找规则。
func (m MerchantRuleSet) Cabin(cabin string) (CabinRule, bool) {
	r, ok := m.CabinRules[strings.ToLower(cabin)]
	return r, ok
}

// LoyaltyWeight 会员等级乘数，缺失为 1.0。
func (m MerchantRuleSet) LoyaltyWeight(tier string) float64 {
	if w, ok := m.LoyaltyWeights[strings.ToLower(tier)]; ok {
		return w
	}
	return 1.0
}

// Validate 拒绝负数权重/乘数以及不是两个地点的航线。
func (m MerchantRuleSet) Validate() error {
	w := m.BlendWeights
	if w.ML < 0 || w.Boost < 0 || w.Similarity < 0 {
		return fmt.Errorf("blend_weights must be non-negative: %+v", w)
	}
	for cat, b := range m.CategoryBoosts {
		if b < 0 {
			return fmt.Errorf("category_boosts[%s] must be non-negative, got %v", cat, b)
		}
	}
	for i, r := range m.TripRules {
		if len(r.Route) != 2 {
			return fmt.Errorf("trip_rules[%d]: route must have exactly 2 locations, got %d", i, len(r.Route))
		}
		if r.Weight < 0 {
			return fmt.Errorf("trip_rules[%d]: weight must be non-negative, got %v", i, r.Weight)
		}
	}
	cabins := make(map[string]string, len(m.CabinRules))
	for cabin, c := range m.CabinRules {
		if c.Luxury() < 0 || c.Comfort() < 0 {
			return fmt.Errorf("cabin_rules[%s]: boosts must be non-negative", cabin)
		}
		if err := checkFoldedKey(cabins, "cabin_rules", cabin); err != nil {
			return err
		}
	}
	tiers := make(map[string]string, len(m.LoyaltyWeights))
	for tier, w := range m.LoyaltyWeights {
		if w < 0 {
			return fmt.Errorf("loyalty_weights[%s] must be non-negative, got %v", tier, w)
		}
		if err := checkFoldedKey(tiers, "loyalty_weights", tier); err != nil {
			return err
		}
	}
	return nil
}

// checkFoldedKey 拒绝转小写后重复的 key（如 "Business" 与 "business"），否则快照只会保留其中一个。
func checkFoldedKey(seen map[string]string, field, key string) error {
	folded := strings.ToLower(key)
	if prev, ok := seen[folded]; ok {
		a, b := prev, key
		if a > b {
			a, b = b, a
		}
		return fmt.Errorf("%s: keys %q and %q collide when lower-cased", field, a, b)
	}
	seen[folded] = key
	return nil
}

// clone 深拷贝，保证快照不与加载方共享 map/slice。
func (m MerchantRuleSet) clone() MerchantRuleSet {
	out := MerchantRuleSet{BlendWeights: m.BlendWeights}
	if m.CategoryBoosts != nil {
		out.CategoryBoosts = make(map[string]float64, len(m.CategoryBoosts))
		for k, v := range m.CategoryBoosts {
			out.CategoryBoosts[k] = v
		}
	}
	for _, r := range m.TripRules {
		r.Route = append([]string(nil), r.Route...)
		out.TripRules = append(out.TripRules, r)
	}
	if m.CabinRules != nil {
		out.CabinRules = make(map[string]CabinRule, len(m.CabinRules))
		for k, v := range m.CabinRules {
			out.CabinRules[strings.ToLower(k)] = v
		}
	}
	if m.LoyaltyWeights != nil {
		out.LoyaltyWeights = make(map[string]float64, len(m.LoyaltyWeights))
		for k, v := range m.LoyaltyWeights {
			out.LoyaltyWeights[strings.ToLower(k)] = v
		}
	}
	return out
}

// Snapshot 是商户规则的只读快照，构建后不再修改，nil 快照等价于空快照。
type Snapshot struct {
	merchants map[string]MerchantRuleSet
}

// NewSnapshot 校验并深拷贝规则，构建只读快照。
func NewSnapshot(sets map[string]MerchantRuleSet) (*Snapshot, error) {
	merchants := make(map[string]MerchantRuleSet, len(sets))
	for id, set := range sets {
		if id == "" {
			return nil, fmt.Errorf("merchant id must not be empty")
		}
		if err := set.Validate(); err != nil {
			return nil, fmt.Errorf("merchant %s: %w", id, err)
		}
		merchants[id] = set.clone()
	}
	return &Snapshot{merchants: merchants}, nil
}

// Get 返回商户规则；未配置时 ok 为 false。
func (s *Snapshot) Get(merchantID string) (MerchantRuleSet, bool) {
	if s == nil {
		return MerchantRuleSet{}, false
	}
	set, ok := s.merchants[merchantID]
	return set, ok
}

// Resolve 返回商户规则，未配置商户返回 DefaultRuleSet。
func (s *Snapshot) Resolve(merchantID string) MerchantRuleSet {
	if set, ok := s.Get(merchantID); ok {
		return set
	}
	return DefaultRuleSet()
}

// MerchantIDs 返回已配置的商户（排序）。
func (s *Snapshot) MerchantIDs() []string {
	if s == nil {
		return nil
	}
	ids := make([]string, 0, len(s.merchants))
	for id := range s.merchants {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len 返回商户数量。
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.merchants)
}
