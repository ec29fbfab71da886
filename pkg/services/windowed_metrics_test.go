package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/luyangsi/semiconductors-data-platform/pkg/apperrors"
)

func newTestMetrics() WindowedMetricsService {
	return NewWindowedMetricsService(zap.NewNop())
}

func TestTrailingAverages(t *testing.T) {
	svc := newTestMetrics()

	t.Run("window grows from the start", func(t *testing.T) {
		got, err := svc.TrailingAverages([]float64{10, 20, 30, 40, 50}, 3)
		require.NoError(t, err)

		want := []float64{10, 15, 20, 30, 40}
		require.Len(t, got, len(want))
		for i := range want {
			assert.InDelta(t, want[i], got[i], 1e-9, "position %d", i)
		}
	})

	t.Run("window of one is the identity", func(t *testing.T) {
		got, err := svc.TrailingAverages([]float64{5, 7, 9}, 1)
		require.NoError(t, err)
		assert.Equal(t, []float64{5, 7, 9}, got)
	})

	t.Run("window larger than series", func(t *testing.T) {
		got, err := svc.TrailingAverages([]float64{10, 20}, 7)
		require.NoError(t, err)
		assert.InDelta(t, 10, got[0], 1e-9)
		assert.InDelta(t, 15, got[1], 1e-9)
	})

	t.Run("empty series", func(t *testing.T) {
		got, err := svc.TrailingAverages(nil, 7)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("invalid window", func(t *testing.T) {
		_, err := svc.TrailingAverages([]float64{1}, 0)
		assert.ErrorIs(t, err, apperrors.ErrInvalidWindow)
	})
}

func TestMean(t *testing.T) {
	svc := newTestMetrics()

	assert.Nil(t, svc.Mean(nil))

	m := svc.Mean([]float64{2, 4, 6})
	require.NotNil(t, m)
	assert.InDelta(t, 4, *m, 1e-9)
}

func TestStdDev(t *testing.T) {
	svc := newTestMetrics()

	assert.Nil(t, svc.StdDev(nil))
	assert.Nil(t, svc.StdDev([]float64{42}), "single observation has no spread")

	sd := svc.StdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	require.NotNil(t, sd)
	assert.InDelta(t, 2.138, *sd, 0.001)

	sd = svc.StdDev([]float64{3, 3, 3})
	require.NotNil(t, sd)
	assert.InDelta(t, 0, *sd, 1e-9)
}

func TestLag1Pairs(t *testing.T) {
	svc := newTestMetrics()

	assert.Nil(t, svc.Lag1Pairs(nil))
	assert.Nil(t, svc.Lag1Pairs([]float64{1}), "a single value has no predecessor")

	pairs := svc.Lag1Pairs([]float64{1, 2, 3})
	require.Len(t, pairs, 2)
	assert.Equal(t, LagPair{Curr: 2, Prev: 1}, pairs[0])
	assert.Equal(t, LagPair{Curr: 3, Prev: 2}, pairs[1])
}

func TestPearson(t *testing.T) {
	svc := newTestMetrics()

	t.Run("perfect positive correlation", func(t *testing.T) {
		r := svc.Pearson([]float64{1, 2, 3, 4}, []float64{10, 20, 30, 40})
		require.NotNil(t, r)
		assert.InDelta(t, 1, *r, 1e-9)
	})

	t.Run("perfect negative correlation", func(t *testing.T) {
		r := svc.Pearson([]float64{1, 2, 3, 4}, []float64{8, 6, 4, 2})
		require.NotNil(t, r)
		assert.InDelta(t, -1, *r, 1e-9)
	})

	t.Run("zero variance is undefined", func(t *testing.T) {
		assert.Nil(t, svc.Pearson([]float64{5, 5, 5}, []float64{1, 2, 3}))
		assert.Nil(t, svc.Pearson([]float64{1, 2, 3}, []float64{5, 5, 5}))
	})

	t.Run("length mismatch", func(t *testing.T) {
		assert.Nil(t, svc.Pearson([]float64{1, 2}, []float64{1, 2, 3}))
	})

	t.Run("too few points", func(t *testing.T) {
		assert.Nil(t, svc.Pearson([]float64{1}, []float64{2}))
	})

	t.Run("result stays within bounds", func(t *testing.T) {
		xs := []float64{1, 2, 3, 4, 5, 6, 7, 8}
		ys := []float64{2.1, 3.9, 6.2, 7.8, 10.1, 11.9, 14.2, 15.8}
		r := svc.Pearson(xs, ys)
		require.NotNil(t, r)
		assert.LessOrEqual(t, *r, 1.0)
		assert.Greater(t, *r, 0.99)
	})
}
