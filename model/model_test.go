package model

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/shoprank/core"
)

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		kind Kind
		path string
	}{
		{"empty path", KindLightGBM, ""},
		{"missing lightgbm file", KindLightGBM, "testdata/missing.txt"},
		{"corrupt lightgbm file", KindLightGBM, "testdata/corrupt_model.txt"},
		{"missing lr file", KindLR, "testdata/missing.json"},
		{"unknown kind", Kind("xgboost"), "testdata/lr_model.json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Load(tt.kind, tt.path, 0)
			require.Error(t, err)
			assert.Nil(t, m)
			assert.True(t, core.IsModelLoadError(err))
		})
	}
}

func TestLightGBM_Predict(t *testing.T) {
	m, err := Load(KindLightGBM, "testdata/ltr_model.txt", 0)
	require.NoError(t, err)
	assert.Equal(t, "lightgbm", m.Name())

	lgb, ok := m.(*LightGBM)
	require.True(t, ok)
	assert.Equal(t, len(FeatureNames), lgb.NFeatures())

	tests := []struct {
		name string
		row  []float64
		want float64
	}{
		// tree0: similarity <= 0.5 ? -0.2 : 0.4
		// tree1: cabin <= 1.5 ? 0 : (price <= 100 ? 0.1 : 0.3)
		{"low similarity business cheap", []float64{0.42, 19.99, 48, 2, 1}, -0.1},
		{"high similarity first expensive", []float64{0.8, 250, 0, 3, 3}, 0.7},
		{"high similarity economy", []float64{0.9, 10, 0, 0, 0}, 0.4},
		{"threshold goes left", []float64{0.5, 100, 0, 1.5, 0}, -0.2},
	}
	rows := make([][]float64, 0, len(tests))
	for _, tt := range tests {
		rows = append(rows, tt.row)
	}
	scores, err := m.Predict(context.Background(), rows)
	require.NoError(t, err)
	require.Len(t, scores, len(tests))
	for i, tt := range tests {
		assert.InDelta(t, tt.want, scores[i], 1e-9, tt.name)
	}

	// 单行结果与批量结果一致
	one, err := m.Predict(context.Background(), rows[1:2])
	require.NoError(t, err)
	assert.InDelta(t, scores[1], one[0], 1e-12)
}

func TestLightGBM_PredictRejectsWrongWidth(t *testing.T) {
	m, err := LoadLightGBM("testdata/ltr_model.txt")
	require.NoError(t, err)

	_, err = m.Predict(context.Background(), [][]float64{{0.4, 10, 0, 2}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "want 5")

	_, err = m.Predict(context.Background(), [][]float64{{0.4, 10, 0, 2, 1}, {0.4}})
	assert.Error(t, err)

	scores, err := m.Predict(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, scores)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.Predict(ctx, [][]float64{{0.4, 10, 0, 2, 1}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLRModel_Predict(t *testing.T) {
	m, err := Load(KindLR, "testdata/lr_model.json", 0)
	require.NoError(t, err)
	assert.Equal(t, "lr", m.Name())

	scores, err := m.Predict(context.Background(), [][]float64{
		{0.5, 100, 0, 0, 0},
		{1.0, 100, 0, 3, 3},
	})
	require.NoError(t, err)
	require.Len(t, scores, 2)
	assert.InDelta(t, 0.5, scores[0], 1e-9) // z = -1 + 1 = 0
	assert.InDelta(t, 1/(1+math.Exp(-2.5)), scores[1], 1e-9)
	assert.Greater(t, scores[1], scores[0])

	_, err = m.Predict(context.Background(), [][]float64{{1, 2}})
	assert.Error(t, err, "ragged rows are rejected")
}

func TestLRModel_CancelledContext(t *testing.T) {
	m := &LRModel{Weights: []float64{1}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := m.Predict(ctx, [][]float64{{1}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRPCModel_Predict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Instances [][]float64 `json:"instances"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		scores := make([]float64, len(req.Instances))
		for i, row := range req.Instances {
			scores[i] = row[0]
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"scores": scores})
	}))
	defer srv.Close()

	m, err := Load(KindRPC, srv.URL, time.Second)
	require.NoError(t, err)
	scores, err := m.Predict(context.Background(), [][]float64{{0.9, 1}, {0.1, 2}})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.9, 0.1}, scores)

	empty, err := m.Predict(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestRPCModel_Errors(t *testing.T) {
	t.Run("status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		defer srv.Close()
		_, err := NewRPCModel("rpc", srv.URL, time.Second).Predict(context.Background(), [][]float64{{1}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status=500")
	})
	t.Run("count mismatch", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"scores": [1, 2, 3]}`))
		}))
		defer srv.Close()
		_, err := NewRPCModel("rpc", srv.URL, time.Second).Predict(context.Background(), [][]float64{{1}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "mismatch")
	})
}

type brokenModel struct {
	panics bool
	scores []float64
}

func (b brokenModel) Name() string { return "broken" }

func (b brokenModel) Predict(context.Context, [][]float64) ([]float64, error) {
	if b.panics {
		var leaves []float64
		_ = leaves[3]
	}
	return b.scores, nil
}

func TestPredictChecked(t *testing.T) {
	rows := [][]float64{{0.1, 0, 0, 0, 0}, {0.2, 0, 0, 0, 0}}

	scores, err := PredictChecked(context.Background(), brokenModel{scores: []float64{1, 2}}, rows)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, scores)

	var out []float64
	require.NotPanics(t, func() {
		out, err = PredictChecked(context.Background(), brokenModel{panics: true}, rows)
	})
	require.Error(t, err)
	assert.Nil(t, out)
	assert.Contains(t, err.Error(), "broken panicked")

	_, err = PredictChecked(context.Background(), brokenModel{scores: []float64{1}}, rows)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 scores for 2 rows")
}
