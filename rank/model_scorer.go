package rank

import (
	"context"
	"log/slog"
	"time"

	"github.com/rushteam/shoprank/core"
	"github.com/rushteam/shoprank/metrics"
	"github.com/rushteam/shoprank/model"
)

// ModelScorer 用学习模型的输出作为融合公式中的信号分（LTR_MODE=signal）。
// Engine 通过 ScoreBatch 一次性对整页候选推理；模型输出截断到 [0,1]。
// 推理失败（含 panic、条数不符、请求取消）时整批退回 Fallback。
type ModelScorer struct {
	Model    model.LearnedModel
	Fallback SignalScorer // nil 时使用 ContextScorer
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
	Now      func() time.Time
}

func (s *ModelScorer) Name() string { return "learned:" + s.Model.Name() }

// Score 单个候选打分，没有请求上下文时使用。
func (s *ModelScorer) Score(c core.Candidate, q core.QueryContext) float64 {
	return s.ScoreBatch(context.Background(), []core.Candidate{c}, q)[0]
}

// ScoreBatch 对全部候选做一次批量推理，返回与输入一一对应的信号分。
func (s *ModelScorer) ScoreBatch(ctx context.Context, candidates []core.Candidate, q core.QueryContext) []float64 {
	out := make([]float64, len(candidates))
	if len(candidates) == 0 {
		return out
	}

	now := s.now()
	rows := make([][]float64, len(candidates))
	for i, c := range candidates {
		rows[i] = model.FeatureVector(c, q, now)
	}

	scores, err := model.PredictChecked(ctx, s.Model, rows)
	if err != nil {
		s.Metrics.IncPrediction(metrics.StatusFailure)
		s.logger().Warn("model signal failed, using fallback scorer",
			"model", s.Model.Name(), "count", len(candidates), "error", core.ErrPrediction.Wrap(err))
		fb := s.fallback()
		for i, c := range candidates {
			out[i] = fb.Score(c, q)
		}
		return out
	}
	s.Metrics.IncPrediction(metrics.StatusSuccess)
	for i, v := range scores {
		out[i] = clamp01(v)
	}
	return out
}

func (s *ModelScorer) fallback() SignalScorer {
	if s.Fallback == nil {
		return ContextScorer{Now: s.Now}
	}
	return s.Fallback
}

func (s *ModelScorer) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *ModelScorer) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}
