package vector

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/rushteam/shoprank/core"
	"github.com/rushteam/shoprank/filter"
	"github.com/rushteam/shoprank/pkg/dsl"
	"github.com/rushteam/shoprank/pkg/utils"
)

// Memory 是内存实现的向量检索，暴力计算余弦相似度。
// 用于测试、本地开发和 CLI 演示；过滤条件通过 CEL 表达式在 metadata 上求值。
type Memory struct {
	mu    sync.RWMutex
	items map[string]memoryItem
	order []string // 插入顺序，保证同分时结果稳定
}

type memoryItem struct {
	vector   []float32
	metadata map[string]any
}

// Document 是内存索引中的一条商品。
type Document struct {
	ID       string         `json:"id"`
	Vector   []float32      `json:"vector"`
	Metadata map[string]any `json:"metadata"`
}

func NewMemory() *Memory {
	return &Memory{items: make(map[string]memoryItem)}
}

// LoadMemory 从 JSON 数组文件加载商品：[{"id": "...", "vector": [...], "metadata": {...}}]。
func LoadMemory(path string) (*Memory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	var docs []Document
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	m := NewMemory()
	for _, d := range docs {
		if err := m.Upsert(d); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Upsert 插入或覆盖一条商品。
func (m *Memory) Upsert(d Document) error {
	if d.ID == "" {
		return core.NewDomainError(core.ModuleVector, core.ErrorCodeInvalidInput, "document id is empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[d.ID]; !ok {
		m.order = append(m.order, d.ID)
	}
	m.items[d.ID] = memoryItem{vector: d.Vector, metadata: d.Metadata}
	return nil
}

// Len 返回商品数。
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

func (m *Memory) Query(ctx context.Context, vector []float32, topK int, f *core.Filter) ([]core.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if topK <= 0 {
		return []core.Candidate{}, nil
	}

	var matcher *dsl.Matcher
	if f != nil && !f.IsEmpty() {
		var err error
		if matcher, err = dsl.Compile(filter.CEL(*f)); err != nil {
			return nil, core.NewDomainError(core.ModuleVector, core.ErrorCodeInvalidInput, "compile filter").Wrap(err)
		}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]core.Candidate, 0, len(m.items))
	for _, id := range m.order {
		it := m.items[id]
		if matcher != nil {
			ok, err := matcher.Match(it.metadata)
			if err != nil || !ok {
				continue
			}
		}
		out = append(out, core.Candidate{
			ID:         id,
			Similarity: utils.Similarity01(utils.Cosine(vector, it.vector)),
			Metadata:   copyMeta(it.metadata),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Similarity > out[j].Similarity
	})
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

func copyMeta(meta map[string]any) map[string]any {
	out := make(map[string]any, len(meta))
	for k, v := range meta {
		out[k] = v
	}
	return out
}
