package core

import "context"

// VectorRetriever 是近似最近邻检索的领域接口，由 vector 包实现（Qdrant、内存等）。
//
// 约定：
//   - 返回结果按相似度降序，Similarity 位于 [0,1]
//   - filter 为 nil 或空时不做任何约束
type VectorRetriever interface {
	Query(ctx context.Context, vector []float32, topK int, filter *Filter) ([]Candidate, error)
}

// Embedder 把查询文本转成向量（外部服务，例如 OpenAI embedding）。
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// RetrieverProvider 按商户返回检索器（每个商户一个 collection）。
type RetrieverProvider interface {
	Retriever(merchantID string) VectorRetriever
}

// SharedRetriever 让所有商户共用同一个检索器。
type SharedRetriever struct {
	VectorRetriever
}

func (s SharedRetriever) Retriever(string) VectorRetriever { return s.VectorRetriever }
