package core

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/rushteam/shoprank/pkg/utils"
)

func TestTrip_DepartureTime(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"2024-10-02T08:30:00Z", time.Date(2024, 10, 2, 8, 30, 0, 0, time.UTC), true},
		{"2024-10-02T12:30:00+04:00", time.Date(2024, 10, 2, 8, 30, 0, 0, time.UTC), true},
		{"2024-10-02T08:30:00", time.Date(2024, 10, 2, 8, 30, 0, 0, time.UTC), true},
		{"2024-10-02 08:30:00", time.Date(2024, 10, 2, 8, 30, 0, 0, time.UTC), true},
		{"2024-10-02", time.Date(2024, 10, 2, 0, 0, 0, 0, time.UTC), true},
		{"next tuesday", time.Time{}, false},
		{"", time.Time{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := (&Trip{Departure: tt.in}).DepartureTime()
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, tt.want.Equal(got), "got %s", got)
			}
		})
	}

	var nilTrip *Trip
	_, ok := nilTrip.DepartureTime()
	assert.False(t, ok)
}

func TestTrip_HoursToDeparture(t *testing.T) {
	now := time.Date(2024, 10, 1, 12, 0, 0, 0, time.UTC)
	var nilTrip *Trip
	assert.Equal(t, 0, nilTrip.HoursToDeparture(now))
	assert.Equal(t, 0, (&Trip{Departure: "soon"}).HoursToDeparture(now))
	assert.Equal(t, 0, (&Trip{Departure: "2024-09-30T12:00:00Z"}).HoursToDeparture(now))
	assert.Equal(t, 1, (&Trip{Departure: "2024-10-01T13:59:59Z"}).HoursToDeparture(now))
	assert.Equal(t, 48, (&Trip{Departure: "2024-10-03T12:00:00"}).HoursToDeparture(now))
}

func TestQueryContext_IsEmpty(t *testing.T) {
	assert.True(t, QueryContext{}.IsEmpty())
	assert.False(t, QueryContext{Cabin: "economy"}.IsEmpty())
	assert.False(t, QueryContext{Trip: &Trip{}}.IsEmpty())
}

func TestCandidate_Category(t *testing.T) {
	assert.Equal(t, DefaultCategory, Candidate{}.Category())
	assert.Equal(t, DefaultCategory, Candidate{Metadata: map[string]any{"category": ""}}.Category())
	assert.Equal(t, DefaultCategory, Candidate{Metadata: map[string]any{"category": 3}}.Category())
	assert.Equal(t, "Comfort", Candidate{Metadata: map[string]any{"category": "Comfort"}}.Category())
}

func TestRankedResult_CloneIsolatesLabels(t *testing.T) {
	s := 0.5
	r := RankedResult{Candidate: Candidate{ID: "a"}, MLScore: &s}
	r.PutLabel("rank_scorer", utils.Label{Value: "heuristic", Source: "rank"})

	c := r.Clone()
	c.PutLabel("rank_scorer", utils.Label{Value: "learned", Source: "rerank"})
	*c.MLScore = 0.9

	assert.Equal(t, "heuristic", r.Labels["rank_scorer"].Value)
	assert.Equal(t, "heuristic|learned", c.Labels["rank_scorer"].Value)
	assert.Equal(t, 0.5, *r.MLScore)
}

func TestDomainError_Is(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := fmt.Errorf("query: %w", ErrRetrieval.Wrap(cause))

	assert.True(t, IsRetrievalError(err))
	assert.False(t, IsModelLoadError(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "retrieval failed: dial tcp")

	de := GetDomainError(err)
	if assert.NotNil(t, de) {
		assert.Equal(t, ModuleRecall, de.Module)
		assert.Equal(t, ErrorCodeRetrievalFailed, de.Code)
	}

	assert.True(t, IsFilterValidationError(ErrFilterValidation.Wrap(nil)))
	assert.True(t, IsStoreNotFound(ErrStoreNotFound))
	assert.False(t, IsDomainError(cause))
}
