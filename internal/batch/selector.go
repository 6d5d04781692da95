package batch

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Predictor is a fitted surrogate that exposes its joint posterior predictive
// distribution over a set of points.
type Predictor interface {
	PredictiveMoments(points [][]float64) (mean []float64, cov mat.Symmetric, err error)
}

// Selector chooses grid indices by Thompson sampling. It holds no state
// besides its sampler, so separate Selectors with separately seeded samplers
// can run concurrently.
type Selector struct {
	Sampler Sampler
}

// NewSelector returns a Selector drawing with s. A nil sampler selects an
// EigenSampler seeded with 0.
func NewSelector(s Sampler) *Selector {
	if s == nil {
		s = NewEigenSampler(0)
	}
	return &Selector{Sampler: s}
}

// SelectBatch draws npoints realisations from Normal(mean, cov) after
// repairing cov and returns the argmax index of each draw, in draw order.
// Indices may repeat.
func (s *Selector) SelectBatch(mean []float64, cov mat.Matrix, npoints int) ([]int, error) {
	if npoints <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCount, npoints)
	}
	r, c := cov.Dims()
	if r != c {
		return nil, fmt.Errorf("%w: got %dx%d", ErrShape, r, c)
	}
	if len(mean) != r {
		return nil, fmt.Errorf("%w: mean has %d entries, covariance is %dx%d", ErrDimensionMismatch, len(mean), r, c)
	}

	repaired, _, err := RepairCovariance(cov)
	if err != nil {
		return nil, err
	}

	draws, err := s.Sampler.Sample(mean, repaired, npoints)
	if err != nil {
		if errors.Is(err, ErrSampling) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrSampling, err)
	}

	ids := make([]int, npoints)
	for i := range ids {
		ids[i] = floats.MaxIdx(draws.RawRowView(i))
	}
	return ids, nil
}

// SelectFromModel predicts over points with model and selects npoints
// indices into points.
func (s *Selector) SelectFromModel(model Predictor, points [][]float64, npoints int) ([]int, error) {
	mean, cov, err := model.PredictiveMoments(points)
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}
	return s.SelectBatch(mean, cov, npoints)
}
