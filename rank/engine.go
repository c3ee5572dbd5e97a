package rank

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/rushteam/shoprank/core"
	"github.com/rushteam/shoprank/metrics"
	"github.com/rushteam/shoprank/pkg/utils"
	"github.com/rushteam/shoprank/rules"
)

// Engine 融合向量相似度、上下文信号与商户乘数，输出按 rank_score 降序的新结果。
//
//	raw        = w.ml*signal + w.boost*boost + w.similarity*similarity
//	rank_score = round(clamp(raw, 0, 1), 4)
//
// Engine 无可变状态，可在多个请求间并发复用；输入切片不会被修改。
type Engine struct {
	Rules   *rules.Snapshot
	Scorer  SignalScorer // nil 时使用 ContextScorer
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// NewEngine 使用启发式打分创建 Engine。
func NewEngine(snap *rules.Snapshot, logger *slog.Logger) *Engine {
	return &Engine{Rules: snap, Scorer: ContextScorer{}, Logger: logger}
}

// Rank 对候选打分并稳定排序（同分保持输入顺序）。
// Scorer 实现 BatchScorer 时整页只打一次分，ctx 透传给它。
func (e *Engine) Rank(ctx context.Context, candidates []core.Candidate, merchantID string, q core.QueryContext) []core.RankedResult {
	start := time.Now()
	defer func() { e.Metrics.ObserveRankDuration(time.Since(start).Seconds()) }()

	scorer := e.scorer()
	weights := e.Rules.Resolve(merchantID).BlendWeights
	logger := e.logger()

	signals := scoreAll(ctx, scorer, candidates, q)

	out := make([]core.RankedResult, 0, len(candidates))
	for i, c := range candidates {
		category := c.Category()
		signal := signals[i]
		boost := MerchantBoost(e.Rules, merchantID, category, q.Trip, q.Cabin)

		raw := weights.ML*signal + weights.Boost*boost + weights.Similarity*c.Similarity
		score := round4(clamp01(raw))

		r := core.RankedResult{Candidate: c, RankScore: score}
		r.PutLabel("rank_scorer", utils.Label{Value: scorer.Name(), Source: "rank"})
		out = append(out, r)

		logger.Debug("rank",
			"merchant", merchantID,
			"id", c.ID,
			"category", category,
			"signal", signal,
			"boost", boost,
			"similarity", c.Similarity,
			"raw", raw,
			"rank_score", score)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RankScore > out[j].RankScore
	})
	return out
}

func scoreAll(ctx context.Context, scorer SignalScorer, candidates []core.Candidate, q core.QueryContext) []float64 {
	if bs, ok := scorer.(BatchScorer); ok {
		if signals := bs.ScoreBatch(ctx, candidates, q); len(signals) == len(candidates) {
			return signals
		}
	}
	signals := make([]float64, len(candidates))
	for i, c := range candidates {
		signals[i] = scorer.Score(c, q)
	}
	return signals
}

func (e *Engine) scorer() SignalScorer {
	if e.Scorer == nil {
		return ContextScorer{}
	}
	return e.Scorer
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

// clamp01 把分数截断到 [0,1]，NaN 视为 0。
func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
