package rules

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rushteam/shoprank/core"
)

// StoreKeyPrefix 是规则在 KV 存储中的 key 前缀：merchant_rules:<merchantID>。
const StoreKeyPrefix = "merchant_rules:"

// File 是规则文件结构（支持 YAML/JSON）。
type File struct {
	Version   string                       `yaml:"version" json:"version"`
	Merchants map[string]merchantRuleEntry `yaml:"merchants" json:"merchants"`
}

// merchantRuleEntry 是文件中的单个商户。权重使用指针，以便区分"未配置"与"配置为 0"。
type merchantRuleEntry struct {
	BlendWeights   *blendWeightsEntry   `yaml:"blend_weights" json:"blend_weights"`
	CategoryBoosts map[string]float64   `yaml:"category_boosts" json:"category_boosts"`
	TripRules      []TripRule           `yaml:"trip_rules" json:"trip_rules"`
	CabinRules     map[string]CabinRule `yaml:"cabin_rules" json:"cabin_rules"`
	LoyaltyWeights map[string]float64   `yaml:"loyalty_weights" json:"loyalty_weights"`
}

type blendWeightsEntry struct {
	ML         *float64 `yaml:"ml" json:"ml"`
	Boost      *float64 `yaml:"boost" json:"boost"`
	Similarity *float64 `yaml:"similarity" json:"similarity"`
}

// toRuleSet 把部分配置与默认值合并，记录被默认值补齐的字段。
func (e merchantRuleEntry) toRuleSet(merchantID string) MerchantRuleSet {
	set := MerchantRuleSet{
		BlendWeights:   DefaultBlendWeights(),
		CategoryBoosts: e.CategoryBoosts,
		TripRules:      e.TripRules,
		CabinRules:     e.CabinRules,
		LoyaltyWeights: e.LoyaltyWeights,
	}
	var defaulted []string
	if e.BlendWeights == nil {
		defaulted = append(defaulted, "ml", "boost", "similarity")
	} else {
		if e.BlendWeights.ML != nil {
			set.BlendWeights.ML = *e.BlendWeights.ML
		} else {
			defaulted = append(defaulted, "ml")
		}
		if e.BlendWeights.Boost != nil {
			set.BlendWeights.Boost = *e.BlendWeights.Boost
		} else {
			defaulted = append(defaulted, "boost")
		}
		if e.BlendWeights.Similarity != nil {
			set.BlendWeights.Similarity = *e.BlendWeights.Similarity
		} else {
			defaulted = append(defaulted, "similarity")
		}
	}
	if len(defaulted) > 0 {
		slog.Info("merchant blend weights partially configured, using defaults",
			"merchant", merchantID,
			"defaulted", defaulted)
	}
	return set
}

// LoadYAML 从 YAML 文件加载规则快照。
func LoadYAML(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	return f.Snapshot()
}

// LoadJSON 从 JSON 文件加载规则快照。
func LoadJSON(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	return f.Snapshot()
}

// LoadFile 按扩展名选择 YAML 或 JSON。
func LoadFile(path string) (*Snapshot, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return LoadJSON(path)
	default:
		return LoadYAML(path)
	}
}

// Snapshot 把文件内容转换为只读快照。
func (f *File) Snapshot() (*Snapshot, error) {
	sets := make(map[string]MerchantRuleSet, len(f.Merchants))
	for id, entry := range f.Merchants {
		sets[id] = entry.toRuleSet(id)
	}
	snap, err := NewSnapshot(sets)
	if err != nil {
		return nil, err
	}
	slog.Info("loaded merchant rules", "version", f.Version, "merchants", snap.MerchantIDs())
	return snap, nil
}

// LoadFromStore 从 KV 存储读取 merchant_rules:<id> 的 JSON（单个商户结构），构建快照。
// 缺失的商户跳过并记录日志，查询时解析为默认规则。
func LoadFromStore(ctx context.Context, store core.Store, merchantIDs []string) (*Snapshot, error) {
	if store == nil {
		return nil, fmt.Errorf("store is nil")
	}
	keys := make([]string, 0, len(merchantIDs))
	for _, id := range merchantIDs {
		keys = append(keys, StoreKeyPrefix+id)
	}
	values, err := store.BatchGet(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("batch get %s: %w", store.Name(), err)
	}

	sets := make(map[string]MerchantRuleSet, len(values))
	for _, id := range merchantIDs {
		data, ok := values[StoreKeyPrefix+id]
		if !ok {
			slog.Warn("merchant rules not found in store, default rules apply",
				"merchant", id,
				"store", store.Name())
			continue
		}
		var entry merchantRuleEntry
		if err := json.Unmarshal(data, &entry); err != nil {
			return nil, fmt.Errorf("parse merchant %s: %w", id, err)
		}
		sets[id] = entry.toRuleSet(id)
	}
	return NewSnapshot(sets)
}

// SaveToStore 把快照写回 KV 存储（用于规则下发与测试数据准备）。
func SaveToStore(ctx context.Context, store core.Store, snap *Snapshot) error {
	for _, id := range snap.MerchantIDs() {
		set, _ := snap.Get(id)
		data, err := json.Marshal(set)
		if err != nil {
			return fmt.Errorf("marshal merchant %s: %w", id, err)
		}
		if err := store.Set(ctx, StoreKeyPrefix+id, data); err != nil {
			return fmt.Errorf("save merchant %s: %w", id, err)
		}
	}
	return nil
}
