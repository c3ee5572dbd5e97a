// Package vector 提供 core.VectorRetriever 的实现：Qdrant 与内存暴力检索。
package vector

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/qdrant/go-client/qdrant"

	"github.com/rushteam/shoprank/core"
	"github.com/rushteam/shoprank/pkg/utils"
)

// DefaultCollectionPrefix 商户 collection 名前缀，collection = prefix + merchantID。
const DefaultCollectionPrefix = "products_"

// Qdrant 持有 Qdrant 连接，按商户派生检索器。
type Qdrant struct {
	client *qdrant.Client
	prefix string
}

// NewQdrant 连接 Qdrant gRPC 端口，addr 形如 "localhost:6334"，缺省端口 6334。
func NewQdrant(addr, collectionPrefix string) (*Qdrant, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
		portStr = "6334"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid port in qdrant addr: %w", err)
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}
	if collectionPrefix == "" {
		collectionPrefix = DefaultCollectionPrefix
	}
	return &Qdrant{client: client, prefix: collectionPrefix}, nil
}

func (q *Qdrant) Close() error {
	return q.client.Close()
}

// Retriever 返回商户对应 collection 的检索器。
func (q *Qdrant) Retriever(merchantID string) core.VectorRetriever {
	return &QdrantRetriever{client: q.client, Collection: q.prefix + merchantID}
}

// QdrantRetriever 在单个 collection 上做检索。
type QdrantRetriever struct {
	client     *qdrant.Client
	Collection string
}

func (r *QdrantRetriever) Query(ctx context.Context, vector []float32, topK int, filter *core.Filter) ([]core.Candidate, error) {
	if topK <= 0 {
		return []core.Candidate{}, nil
	}
	req := &qdrant.QueryPoints{
		CollectionName: r.Collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
		Filter:         QdrantFilter(filter),
	}
	points, err := r.client.Query(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("qdrant query %s: %w", r.Collection, err)
	}

	out := make([]core.Candidate, 0, len(points))
	for _, p := range points {
		out = append(out, core.Candidate{
			ID:         pointID(p.GetId()),
			Similarity: utils.Similarity01(float64(p.GetScore())),
			Metadata:   PayloadToMap(p.GetPayload()),
		})
	}
	return out, nil
}

// QdrantFilter 把过滤条件转换为 Qdrant 的 must 条件，空过滤返回 nil。
func QdrantFilter(f *core.Filter) *qdrant.Filter {
	if f == nil || f.IsEmpty() {
		return nil
	}
	var must []*qdrant.Condition
	if f.Category != nil {
		must = append(must, qdrant.NewMatch("category", *f.Category))
	}
	if f.Brand != nil {
		must = append(must, qdrant.NewMatch("brand", *f.Brand))
	}
	if pr := f.PriceRange; pr != nil && (pr.Min != nil || pr.Max != nil) {
		must = append(must, qdrant.NewRange("price", &qdrant.Range{Gte: pr.Min, Lte: pr.Max}))
	}
	if len(must) == 0 {
		return nil
	}
	return &qdrant.Filter{Must: must}
}

func pointID(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	if u := id.GetUuid(); u != "" {
		return u
	}
	return strconv.FormatUint(id.GetNum(), 10)
}

// PayloadToMap 把 Qdrant payload 还原为普通 Go 值（数字统一为 float64）。
func PayloadToMap(payload map[string]*qdrant.Value) map[string]any {
	if len(payload) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = fromValue(v)
	}
	return out
}

func fromValue(v *qdrant.Value) any {
	if v == nil {
		return nil
	}
	switch kind := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return kind.StringValue
	case *qdrant.Value_DoubleValue:
		return kind.DoubleValue
	case *qdrant.Value_IntegerValue:
		return float64(kind.IntegerValue)
	case *qdrant.Value_BoolValue:
		return kind.BoolValue
	case *qdrant.Value_ListValue:
		vals := kind.ListValue.GetValues()
		list := make([]any, len(vals))
		for i, item := range vals {
			list[i] = fromValue(item)
		}
		return list
	case *qdrant.Value_StructValue:
		return PayloadToMap(kind.StructValue.GetFields())
	default:
		return nil
	}
}
