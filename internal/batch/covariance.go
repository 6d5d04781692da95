// Package batch selects the next batch of grid points to simulate by
// Thompson sampling from a surrogate model's posterior predictive
// distribution.
package batch

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/zombies.report/internal/monitoring"
)

var (
	// ErrDimensionMismatch is returned when the mean length differs from the
	// covariance size.
	ErrDimensionMismatch = errors.New("batch: dimension mismatch")
	// ErrShape is returned when the covariance matrix is not square.
	ErrShape = errors.New("batch: covariance matrix is not square")
	// ErrSampling is returned when the multivariate normal sampler rejects
	// the covariance.
	ErrSampling = errors.New("batch: sampling failed")
	// ErrInvalidCount is returned when fewer than one point is requested.
	ErrInvalidCount = errors.New("batch: npoints must be positive")
)

// RepairCovariance symmetrises cov as 0.5*(cov+covᵀ) and, if the result has
// negative eigenvalues, clips them to zero and rebuilds V·diag(λ)·Vᵀ.
//
// The returned bool reports whether clipping changed the matrix. When it did
// not, the symmetrised matrix is returned as is and no notice is logged.
func RepairCovariance(cov mat.Matrix) (*mat.SymDense, bool, error) {
	r, c := cov.Dims()
	if r != c {
		return nil, false, fmt.Errorf("%w: got %dx%d", ErrShape, r, c)
	}
	if r == 0 {
		return nil, false, fmt.Errorf("%w: empty matrix", ErrShape)
	}
	n := r

	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sym.SetSym(i, j, 0.5*(cov.At(i, j)+cov.At(j, i)))
		}
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(sym, true); !ok {
		return nil, false, fmt.Errorf("%w: eigendecomposition did not converge", ErrSampling)
	}
	vals := eig.Values(nil)

	clipped := 0
	minEig := math.Inf(1)
	for i, v := range vals {
		if v < minEig {
			minEig = v
		}
		if v < 0 {
			vals[i] = 0
			clipped++
		}
	}
	monitoring.Covariance.RecordCheck(clipped, minEig)
	if clipped == 0 {
		return sym, false, nil
	}

	monitoring.Noticef("batch", "covariance matrix is not positive semidefinite: clipping %d negative eigenvalues (min %.3g)", clipped, minEig)

	var vecs mat.Dense
	eig.VectorsTo(&vecs)
	return reconstruct(&vecs, vals), true, nil
}

// reconstruct returns V·diag(vals)·Vᵀ as an exactly symmetric matrix.
func reconstruct(vecs *mat.Dense, vals []float64) *mat.SymDense {
	n, _ := vecs.Dims()
	scaled := mat.DenseCopyOf(vecs)
	for j, v := range vals {
		for i := 0; i < n; i++ {
			scaled.Set(i, j, scaled.At(i, j)*v)
		}
	}

	var full mat.Dense
	full.Mul(scaled, vecs.T())

	out := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			out.SetSym(i, j, 0.5*(full.At(i, j)+full.At(j, i)))
		}
	}
	return out
}

// IsPSD reports whether the symmetric matrix a has no eigenvalue below -tol.
func IsPSD(a mat.Symmetric, tol float64) bool {
	var eig mat.EigenSym
	if !eig.Factorize(a, false) {
		return false
	}
	for _, v := range eig.Values(nil) {
		if v < -tol {
			return false
		}
	}
	return true
}
