package surrogate

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Prediction is the joint posterior over a set of query points on the
// standardised output scale.
type Prediction struct {
	Mean []float64
	Cov  *mat.SymDense
	// SD2 is the pointwise posterior variance, the diagonal of Cov floored
	// at zero.
	SD2 []float64

	YMean  float64
	YStd   float64
	Logged bool
}

// Predict returns the posterior mean and full covariance at points. The
// covariance is that of the latent function and excludes observation noise.
func (gp *GP) Predict(points [][]float64) (*Prediction, error) {
	if !gp.fitted {
		return nil, ErrNotFitted
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("surrogate: no query points")
	}
	dims := len(gp.hp.Lengthscales)
	for i, p := range points {
		if len(p) != dims {
			return nil, fmt.Errorf("surrogate: query point %d has %d dims, want %d", i, len(p), dims)
		}
	}

	m, n := len(points), len(gp.x)
	kStar := mat.NewDense(m, n, nil)
	for i, p := range points {
		for j, x := range gp.x {
			kStar.Set(i, j, gp.opts.Kernel.eval(gp.hp, p, x))
		}
	}

	mean := make([]float64, m)
	mat.NewVecDense(m, mean).MulVec(kStar, gp.alpha)

	// cov = K** - K* K⁻¹ K*ᵀ
	var w mat.Dense
	if err := gp.chol.SolveTo(&w, kStar.T()); err != nil {
		return nil, fmt.Errorf("surrogate: solve: %w", err)
	}
	var reduction mat.Dense
	reduction.Mul(kStar, &w)

	cov := mat.NewSymDense(m, nil)
	sd2 := make([]float64, m)
	for i := 0; i < m; i++ {
		for j := i; j < m; j++ {
			prior := gp.opts.Kernel.eval(gp.hp, points[i], points[j])
			cov.SetSym(i, j, prior-0.5*(reduction.At(i, j)+reduction.At(j, i)))
		}
		sd2[i] = math.Max(cov.At(i, i), 0)
	}

	return &Prediction{
		Mean:   mean,
		Cov:    cov,
		SD2:    sd2,
		YMean:  gp.yMean,
		YStd:   gp.yStd,
		Logged: gp.opts.LogOutputs,
	}, nil
}

// PredictiveMoments returns the posterior mean and covariance at points. It
// lets a GP be passed straight to batch.Selector.SelectFromModel.
func (gp *GP) PredictiveMoments(points [][]float64) ([]float64, mat.Symmetric, error) {
	p, err := gp.Predict(points)
	if err != nil {
		return nil, nil, err
	}
	return p.Mean, p.Cov, nil
}

// NativeMean returns the predicted mean in observation units, undoing
// standardisation and, for log models, the log(1+y) transform.
func (p *Prediction) NativeMean() []float64 {
	out := make([]float64, len(p.Mean))
	for i, m := range p.Mean {
		v := m*p.YStd + p.YMean
		if p.Logged {
			v = math.Expm1(v)
		}
		out[i] = v
	}
	return out
}

// NativeSD returns the pointwise posterior standard deviation rescaled by
// the output standard deviation. For log models it stays on the log scale.
func (p *Prediction) NativeSD() []float64 {
	out := make([]float64, len(p.SD2))
	for i, v := range p.SD2 {
		out[i] = math.Sqrt(v) * p.YStd
	}
	return out
}
