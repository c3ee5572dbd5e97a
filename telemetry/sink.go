package telemetry

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rushteam/shoprank/core"
)

// DefaultListKey 事件列表的默认 key。
const DefaultListKey = "search_interactions"

// Sink 事件落盘目标。
type Sink interface {
	Write(ctx context.Context, events []Event) error
}

// NopSink 丢弃所有事件。
type NopSink struct{}

func (NopSink) Write(context.Context, []Event) error { return nil }

// StoreSink 把事件序列化为 JSON 追加到列表（生产为 Redis RPUSH）。
type StoreSink struct {
	Store core.ListStore
	Key   string
}

func NewStoreSink(s core.ListStore, key string) *StoreSink {
	if key == "" {
		key = DefaultListKey
	}
	return &StoreSink{Store: s, Key: key}
}

func (s *StoreSink) Write(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}
	values := make([][]byte, 0, len(events))
	for _, e := range events {
		b, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal event: %w", err)
		}
		values = append(values, b)
	}
	return s.Store.RPush(ctx, s.Key, values...)
}

// ReadEvents 读取列表中 [start, stop] 区间的事件，用于导出训练数据。
func ReadEvents(ctx context.Context, s core.ListStore, key string, start, stop int64) ([]Event, error) {
	if key == "" {
		key = DefaultListKey
	}
	raw, err := s.LRange(ctx, key, start, stop)
	if err != nil {
		return nil, err
	}
	events := make([]Event, 0, len(raw))
	for i, b := range raw {
		var e Event
		if err := json.Unmarshal(b, &e); err != nil {
			return nil, fmt.Errorf("decode event %d: %w", start+int64(i), err)
		}
		events = append(events, e)
	}
	return events, nil
}
