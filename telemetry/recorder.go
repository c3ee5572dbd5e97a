package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rushteam/shoprank/metrics"
)

// Recorder 后台批量落盘事件。
type Recorder struct {
	sink    Sink
	logger  *slog.Logger
	metrics *metrics.Metrics

	ch     chan Event
	mu     sync.RWMutex
	closed bool
	done   chan struct{}

	batchSize     int
	flushInterval time.Duration
	writeTimeout  time.Duration
}

// Option 配置 Recorder。
type Option func(*Recorder)

func WithBatchSize(n int) Option {
	return func(r *Recorder) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

func WithFlushInterval(d time.Duration) Option {
	return func(r *Recorder) {
		if d > 0 {
			r.flushInterval = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Recorder) {
		if l != nil {
			r.logger = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Recorder) { r.metrics = m }
}

// NewRecorder 创建并启动后台 goroutine，buffer 为缓冲事件数（<=0 时 1024）。
func NewRecorder(sink Sink, buffer int, opts ...Option) *Recorder {
	if sink == nil {
		sink = NopSink{}
	}
	if buffer <= 0 {
		buffer = 1024
	}
	r := &Recorder{
		sink:          sink,
		logger:        slog.Default(),
		ch:            make(chan Event, buffer),
		done:          make(chan struct{}),
		batchSize:     100,
		flushInterval: time.Second,
		writeTimeout:  5 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	go r.run()
	return r
}

// Record 非阻塞入队，返回实际入队数量。缓冲区满或已关闭时丢弃。
func (r *Recorder) Record(events ...Event) int {
	if r == nil {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	accepted := 0
	for _, e := range events {
		if r.closed {
			r.metrics.IncTelemetryDropped()
			continue
		}
		select {
		case r.ch <- e:
			accepted++
		default:
			r.metrics.IncTelemetryDropped()
		}
	}
	if dropped := len(events) - accepted; dropped > 0 {
		r.logger.Warn("telemetry events dropped", "dropped", dropped)
	}
	return accepted
}

// Close 停止接收并等待缓冲区中的事件全部落盘。可重复调用。
func (r *Recorder) Close() error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.ch)
	}
	r.mu.Unlock()
	<-r.done
	return nil
}

func (r *Recorder) run() {
	defer close(r.done)

	ticker := time.NewTicker(r.flushInterval)
	defer ticker.Stop()

	buffer := make([]Event, 0, r.batchSize)
	flush := func() {
		if len(buffer) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), r.writeTimeout)
		defer cancel()
		if err := r.sink.Write(ctx, buffer); err != nil {
			r.logger.Error("telemetry write failed", "events", len(buffer), "error", err)
		}
		buffer = make([]Event, 0, r.batchSize)
	}

	for {
		select {
		case e, ok := <-r.ch:
			if !ok {
				flush()
				return
			}
			buffer = append(buffer, e)
			if len(buffer) >= r.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
