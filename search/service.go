// Package search 串起一次商品搜索：解析过滤条件、向量化查询、类目识别、召回、融合排序、
// 可选的学习重排，以及异步记录曝光事件。
package search

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rushteam/shoprank/core"
	"github.com/rushteam/shoprank/filter"
	"github.com/rushteam/shoprank/metrics"
	"github.com/rushteam/shoprank/recall"
	"github.com/rushteam/shoprank/rerank"
	"github.com/rushteam/shoprank/telemetry"
)

// Classifier 对查询向量做类目识别（仅用于诊断，不参与打分）。
type Classifier interface {
	ClassifyVector(v []float32) string
}

// Ranker 融合排序。
type Ranker interface {
	Rank(ctx context.Context, candidates []core.Candidate, merchantID string, q core.QueryContext) []core.RankedResult
}

// Recorder 接收曝光事件，不得阻塞。
type Recorder interface {
	Record(events ...telemetry.Event) int
}

// Request 一次搜索请求。RawFilter 是上游（LLM）抽取出的过滤条件 JSON，可为空。
type Request struct {
	Query      string            `json:"query"`
	MerchantID string            `json:"merchant_id"`
	Offset     int               `json:"offset"`
	Limit      int               `json:"limit"`
	RawFilter  []byte            `json:"-"`
	Context    core.QueryContext `json:"context"`
}

// Pagination 分页信息。
type Pagination struct {
	Offset   int `json:"offset"`
	Limit    int `json:"limit"`
	Returned int `json:"returned"`
	Fetched  int `json:"fetched"` // 切片前从索引取回的条数
}

// Response 搜索结果。Degraded 表示检索失败后返回了空结果。
type Response struct {
	Query         string              `json:"query"`
	MerchantID    string              `json:"merchant_id"`
	Results       []core.RankedResult `json:"results"`
	AppliedFilter core.Filter         `json:"interpreted_filters"`
	Category      string              `json:"category,omitempty"`
	FellBack      bool                `json:"fell_back"`
	Degraded      bool                `json:"degraded"`
	Reranker      string              `json:"reranker"`
	Pagination    Pagination          `json:"pagination"`
}

// Service 无请求间可变状态，可并发调用 Search。
type Service struct {
	Embedder   core.Embedder
	Retrievers core.RetrieverProvider
	Classifier Classifier // 可选
	Ranker     Ranker
	Reranker   rerank.Reranker // nil 时不重排
	Telemetry  Recorder        // 可选
	Metrics    *metrics.Metrics
	Logger     *slog.Logger

	// Now 可注入的时钟，nil 时使用 time.Now
	Now func() time.Time
}

// Search 执行一次搜索。
// 只有查询向量化失败或请求被取消时返回错误；过滤条件非法、检索失败、重排失败都会降级继续。
func (s *Service) Search(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	logger := s.logger().With("merchant", req.MerchantID)

	f, err := filter.ParseOrEmpty(req.RawFilter, logger)
	if err != nil {
		s.Metrics.IncFilterInvalid()
	}

	vec, err := s.Embedder.Embed(ctx, req.Query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	var category string
	if s.Classifier != nil {
		category = s.Classifier.ClassifyVector(vec)
	}

	orch := recall.NewOrchestrator(s.Retrievers.Retriever(req.MerchantID), s.Metrics, logger)
	rr := recall.Request{Vector: vec, Offset: req.Offset, Limit: req.Limit, Filter: f}
	res, err := orch.Retrieve(ctx, rr)
	degraded := false
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		degraded = true
		res.AppliedFilter = f
	}

	results := s.Ranker.Rank(ctx, res.Candidates, req.MerchantID, req.Context)
	rerankerName := "none"
	if s.Reranker != nil {
		results = s.Reranker.Rerank(ctx, results, req.Context)
		rerankerName = s.Reranker.Name()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if s.Telemetry != nil {
		s.Telemetry.Record(telemetry.EventsFromResults(req.Query, req.MerchantID, req.Context, results, s.now())...)
	}

	offset, limit := rr.Window()
	logger.Info("search completed",
		"category", category,
		"returned", len(results),
		"fell_back", res.FellBack,
		"degraded", degraded)

	return &Response{
		Query:         req.Query,
		MerchantID:    req.MerchantID,
		Results:       results,
		AppliedFilter: res.AppliedFilter,
		Category:      category,
		FellBack:      res.FellBack,
		Degraded:      degraded,
		Reranker:      rerankerName,
		Pagination: Pagination{
			Offset:   offset,
			Limit:    limit,
			Returned: len(results),
			Fetched:  res.Fetched,
		},
	}, nil
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
