// Package metrics 定义排序链路的 Prometheus 指标。
// 所有方法对 nil *Metrics 安全，未注入指标的组件无需判空。
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "shoprank"

// 指标名（不含 namespace）。
const (
	MetricRetrievalCallsTotal    = "retrieval_calls_total"
	MetricRetrievalErrorsTotal   = "retrieval_errors_total"
	MetricRerankPredictionsTotal = "rerank_predictions_total"
	MetricFilterInvalidTotal     = "filter_invalid_total"
	MetricTelemetryDroppedTotal  = "telemetry_dropped_total"
	MetricRankDurationSeconds    = "rank_duration_seconds"
)

// 召回调用类型。
const (
	CallPrimary  = "primary"
	CallFallback = "fallback"
)

// 推理状态。
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Metrics 汇总所有采集器，线程安全。
type Metrics struct {
	retrievalCalls  *prometheus.CounterVec
	retrievalErrors prometheus.Counter
	predictions     *prometheus.CounterVec
	filterInvalid   prometheus.Counter
	telemetryDrops  prometheus.Counter
	rankDuration    prometheus.Histogram
}

// New 创建指标（未注册），调用 Register 注册到指定 registry。
func New() *Metrics {
	return &Metrics{
		retrievalCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      MetricRetrievalCallsTotal,
				Help:      "Vector retrieval calls by kind (primary or unfiltered fallback)",
			},
			[]string{"kind"},
		),
		retrievalErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      MetricRetrievalErrorsTotal,
			Help:      "Vector retrieval failures that degraded to an empty candidate set",
		}),
		predictions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      MetricRerankPredictionsTotal,
				Help:      "Learned reranker predictions by status",
			},
			[]string{"status"},
		),
		filterInvalid: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      MetricFilterInvalidTotal,
			Help:      "Extracted filters rejected by validation and replaced by an empty filter",
		}),
		telemetryDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      MetricTelemetryDroppedTotal,
			Help:      "Interaction events dropped because the telemetry buffer was full",
		}),
		rankDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      MetricRankDurationSeconds,
			Help:      "Time spent blending and sorting candidates",
			Buckets:   []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05},
		}),
	}
}

// Collectors 返回全部采集器。
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.retrievalCalls,
		m.retrievalErrors,
		m.predictions,
		m.filterInvalid,
		m.telemetryDrops,
		m.rankDuration,
	}
}

// Register 注册到 registry。
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) IncRetrievalCall(kind string) {
	if m == nil {
		return
	}
	m.retrievalCalls.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncRetrievalError() {
	if m == nil {
		return
	}
	m.retrievalErrors.Inc()
}

func (m *Metrics) IncPrediction(status string) {
	if m == nil {
		return
	}
	m.predictions.WithLabelValues(status).Inc()
}

func (m *Metrics) IncFilterInvalid() {
	if m == nil {
		return
	}
	m.filterInvalid.Inc()
}

func (m *Metrics) IncTelemetryDropped() {
	if m == nil {
		return
	}
	m.telemetryDrops.Inc()
}

func (m *Metrics) ObserveRankDuration(seconds float64) {
	if m == nil {
		return
	}
	m.rankDuration.Observe(seconds)
}

// 以下访问器用于在其他包的测试中读取计数。

func (m *Metrics) RetrievalCallsCounter(kind string) prometheus.Counter {
	return m.retrievalCalls.WithLabelValues(kind)
}

func (m *Metrics) RetrievalErrorsCounter() prometheus.Counter { return m.retrievalErrors }

func (m *Metrics) PredictionsCounter(status string) prometheus.Counter {
	return m.predictions.WithLabelValues(status)
}

func (m *Metrics) FilterInvalidCounter() prometheus.Counter { return m.filterInvalid }

func (m *Metrics) TelemetryDroppedCounter() prometheus.Counter { return m.telemetryDrops }
