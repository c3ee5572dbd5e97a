package rank

import (
	"context"
	"strings"
	"time"

	"github.com/rushteam/shoprank/core"
)

// SignalScorer 产出融合公式中的上下文信号分，取值 [0,1]。
type SignalScorer interface {
	Name() string
	Score(c core.Candidate, q core.QueryContext) float64
}

// BatchScorer 是可以一次对整页候选打分的 SignalScorer（例如远程模型）。
// Engine 优先使用 ScoreBatch，返回值必须与 candidates 等长。
type BatchScorer interface {
	SignalScorer
	ScoreBatch(ctx context.Context, candidates []core.Candidate, q core.QueryContext) []float64
}

// 启发式打分的常量。
const (
	contextBase       = 0.5
	businessBonus     = 0.2
	firstBonus        = 0.3
	goldBonus         = 0.1
	imminentBonus     = 0.05
	imminentDays      = 3
	hoursPerDay       = 24
	contextScoreLimit = 1.0
)

// ContextScorer 是默认的启发式上下文打分：
//   - 空上下文返回 0.5
//   - 舱位包含 "business" 加 0.2，否则包含 "first" 加 0.3（互斥，先判 business）
//   - 会员等级包含 "gold" 加 0.1（"platinum" 不命中）
//   - 出发时间可解析且距出发不足 3 天加 0.05
//
// 结果上限 1.0。
type ContextScorer struct {
	// Now 可注入的时钟，nil 时使用 time.Now
	Now func() time.Time
}

func (s ContextScorer) Name() string { return "heuristic" }

func (s ContextScorer) Score(_ core.Candidate, q core.QueryContext) float64 {
	score := contextBase
	if q.IsEmpty() {
		return score
	}

	cabin := strings.ToLower(q.Cabin)
	if strings.Contains(cabin, "business") {
		score += businessBonus
	} else if strings.Contains(cabin, "first") {
		score += firstBonus
	}

	if strings.Contains(strings.ToLower(q.LoyaltyTier), "gold") {
		score += goldBonus
	}

	if days, ok := daysUntil(q.Trip, s.now()); ok && days < imminentDays {
		score += imminentBonus
	}

	if score > contextScoreLimit {
		score = contextScoreLimit
	}
	return score
}

func (s ContextScorer) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// daysUntil 返回距出发的整天数（向下取整，过去的时间记为 0）。
func daysUntil(trip *core.Trip, now time.Time) (int, bool) {
	dep, ok := trip.DepartureTime()
	if !ok {
		return 0, false
	}
	hours := dep.Sub(now).Hours()
	if hours <= 0 {
		return 0, true
	}
	return int(hours / hoursPerDay), true
}
