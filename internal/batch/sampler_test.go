package batch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

func TestEigenSampler_Moments(t *testing.T) {
	mean := []float64{1, -2}
	cov := mat.NewSymDense(2, []float64{2, 0.8, 0.8, 1})

	draws, err := NewEigenSampler(2024).Sample(mean, cov, 20000)
	require.NoError(t, err)

	r, c := draws.Dims()
	require.Equal(t, 20000, r)
	require.Equal(t, 2, c)

	var got mat.SymDense
	stat.CovarianceMatrix(&got, draws, nil)
	for j := 0; j < 2; j++ {
		col := mat.Col(nil, j, draws)
		assert.InDelta(t, mean[j], stat.Mean(col, nil), 0.05)
	}
	assert.InDelta(t, 2.0, got.At(0, 0), 0.1)
	assert.InDelta(t, 0.8, got.At(0, 1), 0.1)
	assert.InDelta(t, 1.0, got.At(1, 1), 0.1)
}

func TestEigenSampler_SingularCovariance(t *testing.T) {
	// Rank one: both coordinates move together.
	cov := mat.NewSymDense(2, []float64{1, 1, 1, 1})
	draws, err := NewEigenSampler(5).Sample([]float64{0, 0}, cov, 50)
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		assert.InDelta(t, draws.At(i, 0), draws.At(i, 1), 1e-9)
	}
}

func TestEigenSampler_RejectsNegativeDefinite(t *testing.T) {
	cov := mat.NewSymDense(2, []float64{1, 0, 0, -0.5})
	_, err := NewEigenSampler(5).Sample([]float64{0, 0}, cov, 3)
	assert.ErrorIs(t, err, ErrSampling)
}

func TestEigenSampler_ToleratesResidue(t *testing.T) {
	cov := mat.NewSymDense(2, []float64{1, 0, 0, -1e-12})
	_, err := NewEigenSampler(5).Sample([]float64{0, 0}, cov, 3)
	assert.NoError(t, err)
}

func TestSamplers_DimensionMismatch(t *testing.T) {
	cov := mat.NewSymDense(2, []float64{1, 0, 0, 1})
	for _, s := range []Sampler{NewEigenSampler(1), NewCholeskySampler(1)} {
		_, err := s.Sample([]float64{0, 0, 0}, cov, 2)
		assert.ErrorIs(t, err, ErrDimensionMismatch)
	}
}

func TestCholeskySampler_RejectsSingular(t *testing.T) {
	cov := mat.NewSymDense(2, []float64{1, 1, 1, 1})
	_, err := NewCholeskySampler(1).Sample([]float64{0, 0}, cov, 2)
	assert.ErrorIs(t, err, ErrSampling)
}
