package core

import (
	"math"
	"strings"
	"time"
)

// QueryContext 是单次请求的个性化上下文，只在请求内有效。
type QueryContext struct {
	Cabin       string `json:"cabin,omitempty"`
	LoyaltyTier string `json:"loyalty_tier,omitempty"`
	Trip        *Trip  `json:"trip,omitempty"`
	UserIDHash  string `json:"user_id_hash,omitempty"`
}

// Trip 是旅客行程。Departure 为 ISO-8601 文本，由上游原样透传。
type Trip struct {
	From      string `json:"from,omitempty"`
	To        string `json:"to,omitempty"`
	Departure string `json:"departure,omitempty"`
}

// IsEmpty 报告上下文是否不含任何个性化信号。
func (q QueryContext) IsEmpty() bool {
	return q.Cabin == "" && q.LoyaltyTier == "" && q.Trip == nil && q.UserIDHash == ""
}

var departureLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// DepartureTime 解析出发时间。没有时区的时间按 UTC 处理。
func (t *Trip) DepartureTime() (time.Time, bool) {
	if t == nil {
		return time.Time{}, false
	}
	s := strings.TrimSpace(t.Departure)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range departureLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// HoursToDeparture 距出发的整小时数（向下取整）。缺失、无法解析或已出发均为 0。
func (t *Trip) HoursToDeparture(now time.Time) int {
	dep, ok := t.DepartureTime()
	if !ok {
		return 0
	}
	h := int(math.Floor(dep.Sub(now).Hours()))
	if h < 0 {
		return 0
	}
	return h
}
