package rerank

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/rushteam/shoprank/core"
	"github.com/rushteam/shoprank/metrics"
	"github.com/rushteam/shoprank/model"
	"github.com/rushteam/shoprank/pkg/utils"
)

// Learned 用学习排序模型重排。Model 只读，可被并发请求共享。
type Learned struct {
	Model   model.LearnedModel
	Logger  *slog.Logger
	Metrics *metrics.Metrics

	// Now 可注入的时钟，nil 时使用 time.Now
	Now func() time.Time
}

func (l *Learned) Name() string { return "learned" }

// Rerank 打分并按 MLScore 降序稳定排序，返回新切片。
// 推理失败（包括模型 panic）时返回原始输入（融合排序的顺序），错误只记录不传播。
func (l *Learned) Rerank(ctx context.Context, results []core.RankedResult, q core.QueryContext) []core.RankedResult {
	if len(results) == 0 {
		return results
	}

	out, err := l.rerank(ctx, results, q)
	if err != nil {
		l.Metrics.IncPrediction(metrics.StatusFailure)
		l.logger().Error("learned rerank failed, keeping blended order",
			"model", l.Model.Name(), "count", len(results), "error", core.ErrPrediction.Wrap(err))
		return results
	}
	l.Metrics.IncPrediction(metrics.StatusSuccess)
	return out
}

func (l *Learned) rerank(ctx context.Context, results []core.RankedResult, q core.QueryContext) (out []core.RankedResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("attach scores: %v", r)
		}
	}()

	scores, err := model.PredictChecked(ctx, l.Model, buildFeatures(results, q, l.now()))
	if err != nil {
		return nil, err
	}

	out = make([]core.RankedResult, len(results))
	for i, r := range results {
		c := r.Clone()
		s := scores[i]
		c.MLScore = &s
		c.PutLabel("reranker", utils.Label{Value: l.Model.Name(), Source: "rerank"})
		out[i] = c
	}
	sort.SliceStable(out, func(i, j int) bool {
		return *out[i].MLScore > *out[j].MLScore
	})
	return out, nil
}

func (l *Learned) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}

func (l *Learned) logger() *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return slog.Default()
}
