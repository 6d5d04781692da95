package batch

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
	"gonum.org/v1/gonum/stat/distuv"
)

// DefaultTolerance is the relative tolerance below zero that an eigenvalue
// may reach and still be treated as zero by EigenSampler.
const DefaultTolerance = 1e-8

// Sampler draws independent samples from Normal(mean, cov). Each row of the
// returned matrix is one draw of length len(mean).
//
// Implementations own a random source and are not safe for concurrent use.
type Sampler interface {
	Sample(mean []float64, cov mat.Symmetric, n int) (*mat.Dense, error)
}

// NewSource returns a seeded PCG source. Equal seeds give equal streams.
func NewSource(seed uint64) rand.Source {
	return rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
}

// EigenSampler draws x = mean + V·√Λ·z with z ~ N(0, I), where cov = V·Λ·Vᵀ.
// Unlike a Cholesky factor this accepts singular PSD matrices, which is what
// eigenvalue clipping produces.
type EigenSampler struct {
	normal distuv.Normal

	// Tolerance is the relative slack for negative eigenvalues, scaled by
	// max(1, |λ|max). Anything more negative is rejected with ErrSampling.
	Tolerance float64
}

// NewEigenSampler returns an EigenSampler seeded with seed.
func NewEigenSampler(seed uint64) *EigenSampler {
	return NewEigenSamplerFromSource(NewSource(seed))
}

// NewEigenSamplerFromSource returns an EigenSampler drawing from src.
func NewEigenSamplerFromSource(src rand.Source) *EigenSampler {
	return &EigenSampler{
		normal:    distuv.Normal{Mu: 0, Sigma: 1, Src: src},
		Tolerance: DefaultTolerance,
	}
}

// Sample implements Sampler.
func (s *EigenSampler) Sample(mean []float64, cov mat.Symmetric, n int) (*mat.Dense, error) {
	m := cov.SymmetricDim()
	if len(mean) != m {
		return nil, fmt.Errorf("%w: mean has %d entries, covariance is %dx%d", ErrDimensionMismatch, len(mean), m, m)
	}
	if n <= 0 {
		return nil, ErrInvalidCount
	}

	var eig mat.EigenSym
	if !eig.Factorize(cov, true) {
		return nil, fmt.Errorf("%w: eigendecomposition did not converge", ErrSampling)
	}
	vals := eig.Values(nil)

	scale := 1.0
	for _, v := range vals {
		scale = math.Max(scale, math.Abs(v))
	}
	tol := s.Tolerance * scale
	for i, v := range vals {
		switch {
		case v < -tol:
			return nil, fmt.Errorf("%w: eigenvalue %g below tolerance %g", ErrSampling, v, -tol)
		case v < 0:
			vals[i] = 0
		}
	}

	// factor = V·diag(√λ), so cov = factor·factorᵀ.
	var factor mat.Dense
	eig.VectorsTo(&factor)
	for j, v := range vals {
		root := math.Sqrt(v)
		for i := 0; i < m; i++ {
			factor.Set(i, j, factor.At(i, j)*root)
		}
	}

	z := mat.NewDense(n, m, nil)
	for i := 0; i < n; i++ {
		row := z.RawRowView(i)
		for j := range row {
			row[j] = s.normal.Rand()
		}
	}

	out := mat.NewDense(n, m, nil)
	out.Mul(z, factor.T())
	for i := 0; i < n; i++ {
		row := out.RawRowView(i)
		for j := range row {
			row[j] += mean[j]
		}
	}
	return out, nil
}

// CholeskySampler draws with gonum's distmv.Normal. It requires a strictly
// positive definite covariance, so singular matrices fail with ErrSampling.
type CholeskySampler struct {
	src rand.Source
}

// NewCholeskySampler returns a CholeskySampler seeded with seed.
func NewCholeskySampler(seed uint64) *CholeskySampler {
	return &CholeskySampler{src: NewSource(seed)}
}

// Sample implements Sampler.
func (s *CholeskySampler) Sample(mean []float64, cov mat.Symmetric, n int) (*mat.Dense, error) {
	m := cov.SymmetricDim()
	if len(mean) != m {
		return nil, fmt.Errorf("%w: mean has %d entries, covariance is %dx%d", ErrDimensionMismatch, len(mean), m, m)
	}
	if n <= 0 {
		return nil, ErrInvalidCount
	}

	dist, ok := distmv.NewNormal(mean, cov, s.src)
	if !ok {
		return nil, fmt.Errorf("%w: covariance is not positive definite", ErrSampling)
	}

	out := mat.NewDense(n, m, nil)
	for i := 0; i < n; i++ {
		dist.Rand(out.RawRowView(i))
	}
	return out, nil
}
