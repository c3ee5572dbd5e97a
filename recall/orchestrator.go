// Package recall 负责向量召回编排：带过滤条件检索，必要时降级为无过滤检索，
// 并在召回序列上做 offset/limit 分页切片。
package recall

import (
	"context"
	"log/slog"

	"github.com/rushteam/shoprank/core"
	"github.com/rushteam/shoprank/metrics"
)

// DefaultLimit 未指定 limit 时的分页大小。
const DefaultLimit = 10

// Request 一次召回请求。
type Request struct {
	Vector []float32
	Offset int
	Limit  int
	Filter core.Filter
}

// Window 归一化分页参数：offset < 0 视为 0，limit <= 0 使用 DefaultLimit。
func (r Request) Window() (offset, limit int) {
	offset, limit = r.Offset, r.Limit
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	return offset, limit
}

// Result 召回结果。
type Result struct {
	Candidates    []core.Candidate
	AppliedFilter core.Filter // 实际生效的过滤条件，降级后为空
	FellBack      bool        // 是否发生了无过滤降级
	Fetched       int         // 切片前从索引取回的条数
}

// Orchestrator 编排一次召回，最多两次顺序调用（主查询 + 一次降级）。
type Orchestrator struct {
	Retriever core.VectorRetriever
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

// NewOrchestrator 创建编排器。
func NewOrchestrator(r core.VectorRetriever, m *metrics.Metrics, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{Retriever: r, Metrics: m, Logger: logger}
}

// Retrieve 执行召回。
// 带过滤的主查询无结果且过滤条件非空时，去掉过滤条件再查一次，不会再重试。
// 检索失败返回空候选集和 core.ErrRetrieval 包装的错误，调用方应降级而不是中断排序。
func (o *Orchestrator) Retrieve(ctx context.Context, req Request) (Result, error) {
	offset, limit := req.Window()
	topK := offset + limit

	var filter *core.Filter
	if !req.Filter.IsEmpty() {
		f := req.Filter
		filter = &f
	}

	res := Result{AppliedFilter: req.Filter}
	o.Metrics.IncRetrievalCall(metrics.CallPrimary)
	cands, err := o.Retriever.Query(ctx, req.Vector, topK, filter)
	if err != nil {
		return o.fail(err)
	}

	if len(cands) == 0 && filter != nil {
		o.logger().Info("filtered retrieval returned no matches, retrying without filter",
			"top_k", topK)
		o.Metrics.IncRetrievalCall(metrics.CallFallback)
		cands, err = o.Retriever.Query(ctx, req.Vector, topK, nil)
		if err != nil {
			return o.fail(err)
		}
		res.AppliedFilter = core.Filter{}
		res.FellBack = true
	}

	res.Fetched = len(cands)
	res.Candidates = window(cands, offset, limit)
	return res, nil
}

func (o *Orchestrator) fail(err error) (Result, error) {
	o.Metrics.IncRetrievalError()
	o.logger().Error("vector retrieval failed", "error", err)
	return Result{Candidates: []core.Candidate{}}, core.ErrRetrieval.Wrap(err)
}

func (o *Orchestrator) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// window 返回 [offset, offset+limit) 切片的副本，越界时截断。
func window(cands []core.Candidate, offset, limit int) []core.Candidate {
	if offset >= len(cands) {
		return []core.Candidate{}
	}
	end := offset + limit
	if end > len(cands) {
		end = len(cands)
	}
	out := make([]core.Candidate, end-offset)
	copy(out, cands[offset:end])
	return out
}
