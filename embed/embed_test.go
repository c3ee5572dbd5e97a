package embed

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPEmbedder_EmbedBatch(t *testing.T) {
	var gotAuth string
	var gotReq struct {
		Model string   `json:"model"`
		Input []string `json:"input"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		// 乱序返回，客户端按 index 归位
		_, _ = w.Write([]byte(`{"data": [
			{"index": 1, "embedding": [0, 1]},
			{"index": 0, "embedding": [1, 0]}
		]}`))
	}))
	defer srv.Close()

	e := NewHTTPEmbedder(Config{BaseURL: srv.URL + "/v1/", APIKey: "test-key"})
	got, err := e.EmbedBatch(context.Background(), []string{"perfume", "headphones"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, got)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, DefaultModel, gotReq.Model)
	assert.Equal(t, []string{"perfume", "headphones"}, gotReq.Input)
}

func TestHTTPEmbedder_Errors(t *testing.T) {
	t.Run("status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "rate limited", http.StatusTooManyRequests)
		}))
		defer srv.Close()
		_, err := NewHTTPEmbedder(Config{BaseURL: srv.URL}).Embed(context.Background(), "x")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "429")
	})
	t.Run("missing row", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"data": []}`))
		}))
		defer srv.Close()
		_, err := NewHTTPEmbedder(Config{BaseURL: srv.URL}).Embed(context.Background(), "x")
		assert.Error(t, err)
	})
	t.Run("empty input", func(t *testing.T) {
		_, err := NewHTTPEmbedder(Config{}).EmbedBatch(context.Background(), nil)
		assert.Error(t, err)
	})
}

type countingEmbedder struct {
	calls int
	err   error
}

func (c *countingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return []float32{float32(len(text))}, nil
}

func TestCached(t *testing.T) {
	next := &countingEmbedder{}
	c, err := NewCached(next, 2)
	require.NoError(t, err)

	ctx := context.Background()
	v1, err := c.Embed(ctx, "pillow")
	require.NoError(t, err)
	v2, err := c.Embed(ctx, "  pillow ")
	require.NoError(t, err)
	assert.Equal(t, v1, v2)
	assert.Equal(t, 1, next.calls)

	_, _ = c.Embed(ctx, "a")
	_, _ = c.Embed(ctx, "b")
	assert.Equal(t, 2, c.Len())
	_, _ = c.Embed(ctx, "pillow")
	assert.Equal(t, 4, next.calls, "evicted entry is fetched again")
}

func TestCached_ErrorsNotCached(t *testing.T) {
	next := &countingEmbedder{err: errors.New("unavailable")}
	c, err := NewCached(next, 0)
	require.NoError(t, err)
	_, err = c.Embed(context.Background(), "q")
	assert.Error(t, err)
	_, err = c.Embed(context.Background(), "q")
	assert.Error(t, err)
	assert.Equal(t, 2, next.calls)
	assert.Equal(t, 0, c.Len())
}
