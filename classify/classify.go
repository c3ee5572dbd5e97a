// Package classify 把查询归到一个固定的商品类目：查询向量与各类目向量做余弦相似度，取最大者。
//
// 类目列表是静态有序的，相似度相同时取列表中靠前的类目。类目数量很小，线性扫描即可。
package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/rushteam/shoprank/core"
	"github.com/rushteam/shoprank/pkg/utils"
)

// DefaultCategories 默认类目，顺序即平局时的优先级。
var DefaultCategories = []string{
	"Fragrance & Beauty",
	"Electronics",
	"Comfort",
	"Food & Beverage",
	"Connectivity",
	"Travel Essentials",
	"Baby & Kids",
	"Luxury Goods",
}

// Classifier 只读，可并发使用。
type Classifier struct {
	categories []string
	vectors    [][]float32
	embedder   core.Embedder
}

// New 用预先计算好的类目向量创建分类器，categories 中每个类目都必须有向量。
func New(categories []string, embeddings map[string][]float32, embedder core.Embedder) (*Classifier, error) {
	if len(categories) == 0 {
		return nil, fmt.Errorf("no categories")
	}
	c := &Classifier{
		categories: append([]string(nil), categories...),
		vectors:    make([][]float32, len(categories)),
		embedder:   embedder,
	}
	for i, name := range categories {
		v, ok := embeddings[name]
		if !ok || len(v) == 0 {
			return nil, fmt.Errorf("missing embedding for category %q", name)
		}
		c.vectors[i] = v
	}
	return c, nil
}

// NewFromEmbedder 启动时并发计算类目向量，并发度由 concurrency 限制（<=0 表示 4）。
func NewFromEmbedder(ctx context.Context, embedder core.Embedder, categories []string, concurrency int) (*Classifier, error) {
	embeddings, err := EmbedCategories(ctx, embedder, categories, concurrency)
	if err != nil {
		return nil, err
	}
	return New(categories, embeddings, embedder)
}

// EmbedCategories 并发计算类目向量。
func EmbedCategories(ctx context.Context, embedder core.Embedder, categories []string, concurrency int) (map[string][]float32, error) {
	if concurrency <= 0 {
		concurrency = 4
	}
	vectors := make([][]float32, len(categories))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, name := range categories {
		g.Go(func() error {
			v, err := embedder.Embed(gctx, name)
			if err != nil {
				return fmt.Errorf("embed category %q: %w", name, err)
			}
			vectors[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string][]float32, len(categories))
	for i, name := range categories {
		out[name] = vectors[i]
	}
	return out, nil
}

// LoadEmbeddings 读取离线生成的类目向量文件：{"Electronics": [0.1, ...], ...}。
func LoadEmbeddings(path string) (map[string][]float32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	var out map[string][]float32
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse embeddings: %w", err)
	}
	return out, nil
}

// SaveEmbeddings 写出类目向量文件。
func SaveEmbeddings(path string, embeddings map[string][]float32) error {
	data, err := json.MarshalIndent(embeddings, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Categories 返回类目列表副本。
func (c *Classifier) Categories() []string {
	return append([]string(nil), c.categories...)
}

// Classify 向量化查询后分类。未配置 Embedder 时返回 core.ErrorCodeNotSupported。
func (c *Classifier) Classify(ctx context.Context, query string) (string, error) {
	if c.embedder == nil {
		return "", core.NewDomainError(core.ModuleRecall, core.ErrorCodeNotSupported, "classifier has no embedder")
	}
	v, err := c.embedder.Embed(ctx, query)
	if err != nil {
		return "", fmt.Errorf("embed query: %w", err)
	}
	return c.ClassifyVector(v), nil
}

// ClassifyVector 对已有的查询向量分类。只有严格更大的相似度才会替换当前最优，平局保留靠前的类目。
func (c *Classifier) ClassifyVector(v []float32) string {
	best, bestScore := 0, utils.Cosine(v, c.vectors[0])
	for i := 1; i < len(c.vectors); i++ {
		if s := utils.Cosine(v, c.vectors[i]); s > bestScore {
			best, bestScore = i, s
		}
	}
	return c.categories[best]
}
