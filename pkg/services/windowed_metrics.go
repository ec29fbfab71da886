package services

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/luyangsi/semiconductors-data-platform/pkg/apperrors"
)

// WindowedMetricsService computes the statistical primitives every report is
// built from: trailing moving averages, partition means, bucket standard
// deviations, lag-1 pairing and Pearson correlation. All methods are pure;
// an undefined statistic is a nil pointer, never zero and never a panic.
type WindowedMetricsService interface {
	// TrailingAverages returns, for each position, the mean of the last
	// window values inclusive of the current one. The window grows from the
	// start of the sequence: position i < window-1 averages the i+1 values
	// available so far rather than being dropped.
	TrailingAverages(values []float64, window int) ([]float64, error)

	// Mean is the partition-wide mean over the full observed range, used as
	// a drift baseline. Nil for an empty partition.
	Mean(values []float64) *float64

	// StdDev is the sample standard deviation of one bucket. Nil when the
	// bucket holds fewer than two observations.
	StdDev(values []float64) *float64

	// Lag1Pairs pairs each value with its predecessor within the partition.
	// The first value has no predecessor and produces no pair.
	Lag1Pairs(values []float64) []LagPair

	// Pearson is the correlation coefficient between two equal-length
	// series. Nil when fewer than two points or when either series has zero
	// variance.
	Pearson(xs, ys []float64) *float64
}

// LagPair is one (current, previous) observation pair within a partition.
type LagPair struct {
	Curr float64
	Prev float64
}

type windowedMetricsService struct {
	logger *zap.Logger
}

// NewWindowedMetricsService creates a new windowed metrics service.
func NewWindowedMetricsService(logger *zap.Logger) WindowedMetricsService {
	return &windowedMetricsService{
		logger: logger.Named("windowed-metrics"),
	}
}

var _ WindowedMetricsService = (*windowedMetricsService)(nil)

func (s *windowedMetricsService) TrailingAverages(values []float64, window int) ([]float64, error) {
	if window < 1 {
		return nil, fmt.Errorf("trailing average window %d: %w", window, apperrors.ErrInvalidWindow)
	}

	out := make([]float64, len(values))
	var sum float64
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}
		n := i + 1
		if n > window {
			n = window
		}
		out[i] = sum / float64(n)
	}
	return out, nil
}

func (s *windowedMetricsService) Mean(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	m := sum / float64(len(values))
	return &m
}

func (s *windowedMetricsService) StdDev(values []float64) *float64 {
	if len(values) < 2 {
		return nil
	}
	mean := *s.Mean(values)
	var ss float64
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	sd := math.Sqrt(ss / float64(len(values)-1))
	return &sd
}

func (s *windowedMetricsService) Lag1Pairs(values []float64) []LagPair {
	if len(values) < 2 {
		return nil
	}
	pairs := make([]LagPair, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		pairs = append(pairs, LagPair{Curr: values[i], Prev: values[i-1]})
	}
	return pairs
}

func (s *windowedMetricsService) Pearson(xs, ys []float64) *float64 {
	n := len(xs)
	if n != len(ys) {
		s.logger.Warn("Pearson input length mismatch",
			zap.Int("xs", len(xs)), zap.Int("ys", len(ys)))
		return nil
	}
	if n < 2 {
		return nil
	}

	var sumX, sumY float64
	for i := 0; i < n; i++ {
		sumX += xs[i]
		sumY += ys[i]
	}
	meanX := sumX / float64(n)
	meanY := sumY / float64(n)

	var cov, varX, varY float64
	for i := 0; i < n; i++ {
		dx := xs[i] - meanX
		dy := ys[i] - meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 || varY == 0 {
		// Zero-variance input: correlation is undefined, not zero.
		return nil
	}
	r := cov / math.Sqrt(varX*varY)
	// Guard against float drift past the mathematical range.
	if r > 1 {
		r = 1
	}
	if r < -1 {
		r = -1
	}
	return &r
}
