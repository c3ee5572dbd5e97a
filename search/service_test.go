package search

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/shoprank/classify"
	"github.com/rushteam/shoprank/core"
	"github.com/rushteam/shoprank/metrics"
	"github.com/rushteam/shoprank/rank"
	"github.com/rushteam/shoprank/rerank"
	"github.com/rushteam/shoprank/rules"
	"github.com/rushteam/shoprank/store"
	"github.com/rushteam/shoprank/telemetry"
	"github.com/rushteam/shoprank/vector"
)

var (
	quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))
	fixedNow    = time.Date(2024, 10, 1, 12, 0, 0, 0, time.UTC)
)

type fakeEmbedder struct {
	err error
}

func (f fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	switch text {
	case "something to sleep on the plane":
		return []float32{0, 1, 0}, nil
	default:
		return []float32{1, 0.05, 0}, nil
	}
}

type failingRetriever struct{ calls int }

func (f *failingRetriever) Query(context.Context, []float32, int, *core.Filter) ([]core.Candidate, error) {
	f.calls++
	return nil, errors.New("index unreachable")
}

func catalog(t *testing.T) *vector.Memory {
	t.Helper()
	m := vector.NewMemory()
	docs := []vector.Document{
		{ID: "perfume", Vector: []float32{1, 0, 0}, Metadata: map[string]any{"category": "Fragrance & Beauty", "brand": "Dior", "price": 120.0}},
		{ID: "headphones", Vector: []float32{0.9, 0.1, 0}, Metadata: map[string]any{"category": "Electronics", "brand": "Sony", "price": 299.0}},
		{ID: "charger", Vector: []float32{0.7, 0.7, 0}, Metadata: map[string]any{"category": "Electronics", "brand": "Anker", "price": 40.0}},
		{ID: "pillow", Vector: []float32{0.1, 1, 0}, Metadata: map[string]any{"category": "Comfort", "price": 25.0}},
		{ID: "watch", Vector: []float32{0.6, 0, 0.8}, Metadata: map[string]any{"category": "Luxury", "brand": "Tissot", "price": 780.0}},
	}
	for _, d := range docs {
		require.NoError(t, m.Upsert(d))
	}
	return m
}

func classifier(t *testing.T) *classify.Classifier {
	t.Helper()
	c, err := classify.New(
		[]string{"Fragrance & Beauty", "Comfort", "Luxury Goods"},
		map[string][]float32{
			"Fragrance & Beauty": {1, 0, 0},
			"Comfort":            {0, 1, 0},
			"Luxury Goods":       {0, 0, 1},
		},
		nil,
	)
	require.NoError(t, err)
	return c
}

type fixture struct {
	svc     *Service
	metrics *metrics.Metrics
	events  *store.MemoryStore
	rec     *telemetry.Recorder
}

func newFixture(t *testing.T, retriever core.VectorRetriever) *fixture {
	t.Helper()
	m := metrics.New()
	events := store.NewMemoryStore()
	t.Cleanup(func() { _ = events.Close() })
	rec := telemetry.NewRecorder(telemetry.NewStoreSink(events, ""), 64,
		telemetry.WithLogger(quietLogger), telemetry.WithMetrics(m))
	t.Cleanup(func() { _ = rec.Close() })

	engine := rank.NewEngine(rules.Builtin(), quietLogger)
	engine.Scorer = rank.ContextScorer{Now: func() time.Time { return fixedNow }}

	return &fixture{
		svc: &Service{
			Embedder:   fakeEmbedder{},
			Retrievers: core.SharedRetriever{VectorRetriever: retriever},
			Classifier: classifier(t),
			Ranker:     engine,
			Reranker:   rerank.Passthrough{},
			Telemetry:  rec,
			Metrics:    m,
			Logger:     quietLogger,
			Now:        func() time.Time { return fixedNow },
		},
		metrics: m,
		events:  events,
		rec:     rec,
	}
}

func (f *fixture) recorded(t *testing.T) []telemetry.Event {
	t.Helper()
	require.NoError(t, f.rec.Close())
	events, err := telemetry.ReadEvents(context.Background(), f.events, "", 0, -1)
	require.NoError(t, err)
	return events
}

func assertNonIncreasing(t *testing.T, results []core.RankedResult) {
	t.Helper()
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].RankScore, results[i].RankScore)
	}
	for _, r := range results {
		assert.GreaterOrEqual(t, r.RankScore, 0.0)
		assert.LessOrEqual(t, r.RankScore, 1.0)
	}
}

func resultIDs(rs []core.RankedResult) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.ID
	}
	return out
}

func TestSearch_FilteredHit(t *testing.T) {
	f := newFixture(t, catalog(t))
	resp, err := f.svc.Search(context.Background(), Request{
		Query:      "noise cancelling headphones",
		MerchantID: "airlinex",
		Limit:      10,
		RawFilter:  []byte(`{"category": "Electronics", "notes": "for a long flight"}`),
		Context:    core.QueryContext{Cabin: "business", LoyaltyTier: "gold"},
	})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"headphones", "charger"}, resultIDs(resp.Results))
	assertNonIncreasing(t, resp.Results)
	require.NotNil(t, resp.AppliedFilter.Category)
	assert.Equal(t, "Electronics", *resp.AppliedFilter.Category)
	assert.False(t, resp.FellBack)
	assert.False(t, resp.Degraded)
	assert.Equal(t, "Fragrance & Beauty", resp.Category)
	assert.Equal(t, "passthrough", resp.Reranker)
	assert.Equal(t, Pagination{Offset: 0, Limit: 10, Returned: 2, Fetched: 2}, resp.Pagination)

	events := f.recorded(t)
	require.Len(t, events, 2)
	assert.Equal(t, resp.Results[0].ID, events[0].ProductID)
	assert.Equal(t, 1, events[0].Rank)
	assert.Equal(t, "business", events[0].Cabin)
	assert.Equal(t, "airlinex", events[0].MerchantID)
}

func TestSearch_FilteredMissFallsBack(t *testing.T) {
	f := newFixture(t, catalog(t))
	resp, err := f.svc.Search(context.Background(), Request{
		Query:      "something to sleep on the plane",
		MerchantID: "airlinex",
		Limit:      3,
		RawFilter:  []byte(`{"brand": "Nobody"}`),
	})
	require.NoError(t, err)
	assert.True(t, resp.FellBack)
	assert.True(t, resp.AppliedFilter.IsEmpty())
	assert.Len(t, resp.Results, 3)
	assert.Equal(t, "Comfort", resp.Category)
	assertNonIncreasing(t, resp.Results)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.RetrievalCallsCounter(metrics.CallFallback)))
}

func TestSearch_InvalidFilterTreatedAsEmpty(t *testing.T) {
	f := newFixture(t, catalog(t))
	resp, err := f.svc.Search(context.Background(), Request{
		Query:      "gift",
		MerchantID: "dnata_shop",
		RawFilter:  []byte(`{"price_range": {"min": 500, "max": 10}}`),
	})
	require.NoError(t, err)
	assert.True(t, resp.AppliedFilter.IsEmpty())
	assert.False(t, resp.FellBack)
	assert.Len(t, resp.Results, 5)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.FilterInvalidCounter()))
}

func TestSearch_Pagination(t *testing.T) {
	f := newFixture(t, catalog(t))
	resp, err := f.svc.Search(context.Background(), Request{
		Query:      "gift",
		MerchantID: "unknown_merchant",
		Offset:     1,
		Limit:      2,
	})
	require.NoError(t, err)
	// 分页在召回序列上切片：相似度第 2、3 名
	assert.ElementsMatch(t, []string{"headphones", "charger"}, resultIDs(resp.Results))
	assert.Equal(t, Pagination{Offset: 1, Limit: 2, Returned: 2, Fetched: 3}, resp.Pagination)
}

func TestSearch_RetrievalFailureDegrades(t *testing.T) {
	r := &failingRetriever{}
	f := newFixture(t, r)
	resp, err := f.svc.Search(context.Background(), Request{
		Query:      "perfume",
		MerchantID: "airlinex",
		RawFilter:  []byte(`{"category": "Fragrance & Beauty"}`),
	})
	require.NoError(t, err)
	assert.True(t, resp.Degraded)
	assert.Empty(t, resp.Results)
	assert.Equal(t, 1, r.calls)
	require.NotNil(t, resp.AppliedFilter.Category)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.RetrievalErrorsCounter()))
	assert.Empty(t, f.recorded(t))
}

func TestSearch_EmbeddingFailureIsHardError(t *testing.T) {
	f := newFixture(t, catalog(t))
	f.svc.Embedder = fakeEmbedder{err: errors.New("quota exceeded")}
	resp, err := f.svc.Search(context.Background(), Request{Query: "perfume", MerchantID: "airlinex"})
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestSearch_Cancelled(t *testing.T) {
	f := newFixture(t, catalog(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.svc.Search(ctx, Request{Query: "perfume", MerchantID: "airlinex"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSearch_WithoutOptionalCollaborators(t *testing.T) {
	f := newFixture(t, catalog(t))
	f.svc.Classifier = nil
	f.svc.Reranker = nil
	f.svc.Telemetry = nil
	resp, err := f.svc.Search(context.Background(), Request{Query: "perfume", MerchantID: "airlinex", Limit: 2})
	require.NoError(t, err)
	assert.Empty(t, resp.Category)
	assert.Equal(t, "none", resp.Reranker)
	assert.Len(t, resp.Results, 2)
	for _, r := range resp.Results {
		assert.Nil(t, r.MLScore)
	}
}
