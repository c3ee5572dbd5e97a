// Package telemetry 异步记录搜索交互事件（每个返回结果一行），作为学习排序的训练样本。
//
// 记录是 fire-and-forget：Record 从不阻塞调用方，缓冲区满时直接丢弃并计数，
// 落盘失败只记录日志，不会影响排序结果的返回。
package telemetry

import (
	"time"

	"github.com/rushteam/shoprank/core"
)

// Event 一次曝光。字段与训练脚本读取的列一致，Clicked/Purchased 由下游回填。
type Event struct {
	Query            string    `json:"query"`
	MerchantID       string    `json:"merchant_id"`
	ProductID        string    `json:"product_id"`
	Rank             int       `json:"rank"`
	VectorSimilarity float64   `json:"vector_similarity"`
	RankScore        float64   `json:"rank_score"`
	MLScore          *float64  `json:"ml_score,omitempty"`
	Category         string    `json:"category,omitempty"`
	Cabin            string    `json:"cabin,omitempty"`
	LoyaltyTier      string    `json:"loyalty_tier,omitempty"`
	UserIDHash       string    `json:"user_id_hash,omitempty"`
	TripFrom         string    `json:"trip_from,omitempty"`
	TripTo           string    `json:"trip_to,omitempty"`
	HoursToDeparture int       `json:"hours_to_departure"`
	Clicked          bool      `json:"clicked"`
	Purchased        bool      `json:"purchased"`
	Timestamp        time.Time `json:"timestamp"`
}

// EventsFromResults 为一次请求的返回结果生成事件，Rank 从 1 开始。
func EventsFromResults(query, merchantID string, q core.QueryContext, results []core.RankedResult, now time.Time) []Event {
	if len(results) == 0 {
		return nil
	}
	var from, to string
	if q.Trip != nil {
		from, to = q.Trip.From, q.Trip.To
	}
	hours := q.Trip.HoursToDeparture(now)

	events := make([]Event, len(results))
	for i, r := range results {
		events[i] = Event{
			Query:            query,
			MerchantID:       merchantID,
			ProductID:        r.ID,
			Rank:             i + 1,
			VectorSimilarity: r.Similarity,
			RankScore:        r.RankScore,
			MLScore:          r.MLScore,
			Category:         r.Category(),
			Cabin:            q.Cabin,
			LoyaltyTier:      q.LoyaltyTier,
			UserIDHash:       q.UserIDHash,
			TripFrom:         from,
			TripTo:           to,
			HoursToDeparture: hours,
			Timestamp:        now.UTC(),
		}
	}
	return events
}
