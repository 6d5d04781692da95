package surrogate

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/zombies.report/internal/monitoring"
)

// ErrNotFitted is returned by Predict before a successful Fit.
var ErrNotFitted = errors.New("surrogate: model has not been fitted")

// jitters are added to the kernel diagonal in turn until Cholesky succeeds.
var jitters = []float64{0, 1e-8, 1e-6, 1e-4}

// Options configures a GP.
type Options struct {
	Kernel      Kernel
	Hyperparams Hyperparams

	// Heteroskedastic uses each design point's empirical replicate variance
	// (floored at NoiseVariance) instead of the pooled noise variance.
	Heteroskedastic bool
	// Optimize fits hyperparameters by maximising the log marginal likelihood.
	Optimize bool
	// MaxIterations bounds the Nelder-Mead search. Zero means 200.
	MaxIterations int
	// LogOutputs models log(1+y) instead of y.
	LogOutputs bool
}

// GP is a Gaussian-process regression model with replicate-aware noise.
type GP struct {
	opts Options
	hp   Hyperparams

	x     [][]float64 // unique design points
	reps  []int
	ybar  []float64 // standardised replicate means
	s2    []float64 // standardised replicate variances (0 if a single replicate)
	noise []float64

	yMean, yStd float64

	chol   mat.Cholesky
	alpha  *mat.VecDense
	lml    float64
	fitted bool
}

// New returns an unfitted GP.
func New(opts Options) *GP {
	if opts.Kernel == "" {
		opts.Kernel = Matern52
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = 200
	}
	return &GP{opts: opts, hp: opts.Hyperparams.clone()}
}

// Fit conditions the model on observations y at design points X. Repeated
// design points are pooled into one point whose noise shrinks with the
// replicate count.
func (gp *GP) Fit(X [][]float64, y []float64) error {
	if len(X) == 0 {
		return fmt.Errorf("surrogate: no observations")
	}
	if len(X) != len(y) {
		return fmt.Errorf("surrogate: %d design points but %d outputs", len(X), len(y))
	}
	dims := len(X[0])
	if len(gp.hp.Lengthscales) == 0 {
		gp.hp = DefaultHyperparams(dims)
	}
	if err := gp.hp.Validate(dims); err != nil {
		return fmt.Errorf("surrogate: %w", err)
	}

	yt := make([]float64, len(y))
	for i, v := range y {
		if len(X[i]) != dims {
			return fmt.Errorf("surrogate: point %d has %d dims, want %d", i, len(X[i]), dims)
		}
		if gp.opts.LogOutputs {
			if v <= -1 {
				return fmt.Errorf("surrogate: output %d = %g cannot be log transformed", i, v)
			}
			v = math.Log1p(v)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("surrogate: output %d is not finite", i)
		}
		yt[i] = v
	}

	gp.yMean, gp.yStd = stat.PopMeanStdDev(yt, nil)
	if !(gp.yStd > 0) {
		gp.yStd = 1
	}
	for i := range yt {
		yt[i] = (yt[i] - gp.yMean) / gp.yStd
	}
	gp.groupReplicates(X, yt)

	if gp.opts.Optimize && len(gp.x) > 1 {
		gp.optimizeHyperparams()
	}
	if err := gp.factorize(); err != nil {
		gp.fitted = false
		return err
	}
	gp.fitted = true
	return nil
}

// groupReplicates pools identical design points in first-seen order.
func (gp *GP) groupReplicates(X [][]float64, y []float64) {
	index := make(map[string]int)
	var groups [][]float64
	gp.x = gp.x[:0]
	for i, p := range X {
		key := pointKey(p)
		g, ok := index[key]
		if !ok {
			g = len(gp.x)
			index[key] = g
			gp.x = append(gp.x, append([]float64(nil), p...))
			groups = append(groups, nil)
		}
		groups[g] = append(groups[g], y[i])
	}

	n := len(gp.x)
	gp.reps = make([]int, n)
	gp.ybar = make([]float64, n)
	gp.s2 = make([]float64, n)
	for g, vals := range groups {
		gp.reps[g] = len(vals)
		if len(vals) > 1 {
			gp.ybar[g], gp.s2[g] = stat.MeanVariance(vals, nil)
		} else {
			gp.ybar[g] = vals[0]
		}
	}
}

func pointKey(p []float64) string {
	parts := make([]string, len(p))
	for i, v := range p {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strings.Join(parts, ",")
}

// noiseFor returns the per-point noise variances for hyperparameters hp.
func (gp *GP) noiseFor(hp Hyperparams) []float64 {
	out := make([]float64, len(gp.x))
	for i, a := range gp.reps {
		v := hp.NoiseVariance
		if gp.opts.Heteroskedastic && a > 1 {
			v = math.Max(gp.s2[i], hp.NoiseVariance)
		}
		out[i] = v / float64(a)
	}
	return out
}

// kernelMatrix builds K(X,X) + diag(noise) + jitter·I.
func (gp *GP) kernelMatrix(hp Hyperparams, noise []float64, jitter float64) *mat.SymDense {
	n := len(gp.x)
	k := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := gp.opts.Kernel.eval(hp, gp.x[i], gp.x[j])
			if i == j {
				v += noise[i] + jitter
			}
			k.SetSym(i, j, v)
		}
	}
	return k
}

// logMarginal returns log p(ybar | X, hp) or -Inf if the kernel matrix
// cannot be factorised.
func (gp *GP) logMarginal(hp Hyperparams) float64 {
	var chol mat.Cholesky
	if !gp.cholesky(&chol, hp) {
		return math.Inf(-1)
	}
	y := mat.NewVecDense(len(gp.ybar), append([]float64(nil), gp.ybar...))
	var alpha mat.VecDense
	if err := chol.SolveVecTo(&alpha, y); err != nil {
		return math.Inf(-1)
	}
	n := float64(len(gp.ybar))
	return -0.5*mat.Dot(y, &alpha) - 0.5*chol.LogDet() - 0.5*n*math.Log(2*math.Pi)
}

func (gp *GP) cholesky(chol *mat.Cholesky, hp Hyperparams) bool {
	noise := gp.noiseFor(hp)
	for _, j := range jitters {
		if chol.Factorize(gp.kernelMatrix(hp, noise, j)) {
			return true
		}
	}
	return false
}

func (gp *GP) factorize() error {
	if !gp.cholesky(&gp.chol, gp.hp) {
		return fmt.Errorf("surrogate: kernel matrix is not positive definite even with jitter")
	}
	gp.noise = gp.noiseFor(gp.hp)
	y := mat.NewVecDense(len(gp.ybar), append([]float64(nil), gp.ybar...))
	gp.alpha = mat.NewVecDense(len(gp.ybar), nil)
	if err := gp.chol.SolveVecTo(gp.alpha, y); err != nil {
		return fmt.Errorf("surrogate: solve: %w", err)
	}
	n := float64(len(gp.ybar))
	gp.lml = -0.5*mat.Dot(y, gp.alpha) - 0.5*gp.chol.LogDet() - 0.5*n*math.Log(2*math.Pi)
	return nil
}

// Search box for hyperparameters on the unit cube with standardised outputs.
const (
	minLengthscale = 1e-2
	maxLengthscale = 1e1
	minSignal      = 1e-2
	maxSignal      = 1e2
	minNoise       = 1e-6
	maxNoise       = 1e1
)

// optimizeHyperparams runs Nelder-Mead on the negative log marginal
// likelihood over log hyperparameters, keeping the start point if the search
// does not improve on it.
func (gp *GP) optimizeHyperparams() {
	dims := len(gp.hp.Lengthscales)
	toHP := func(theta []float64) Hyperparams {
		hp := Hyperparams{Lengthscales: make([]float64, dims)}
		for d := 0; d < dims; d++ {
			hp.Lengthscales[d] = clampExp(theta[d], minLengthscale, maxLengthscale)
		}
		hp.SignalVariance = clampExp(theta[dims], minSignal, maxSignal)
		hp.NoiseVariance = clampExp(theta[dims+1], minNoise, maxNoise)
		return hp
	}

	init := make([]float64, dims+2)
	for d, l := range gp.hp.Lengthscales {
		init[d] = math.Log(l)
	}
	init[dims] = math.Log(gp.hp.SignalVariance)
	init[dims+1] = math.Log(math.Max(gp.hp.NoiseVariance, minNoise))

	problem := optimize.Problem{
		Func: func(theta []float64) float64 {
			lml := gp.logMarginal(toHP(theta))
			if math.IsInf(lml, -1) || math.IsNaN(lml) {
				return 1e10
			}
			return -lml
		},
	}
	settings := &optimize.Settings{
		MajorIterations: gp.opts.MaxIterations,
		FuncEvaluations: 20 * gp.opts.MaxIterations,
	}

	start := gp.logMarginal(gp.hp)
	result, err := optimize.Minimize(problem, init, settings, &optimize.NelderMead{})
	if result == nil || math.IsNaN(result.F) {
		monitoring.Noticef("surrogate", "hyperparameter search failed: %v", err)
		return
	}
	if -result.F > start {
		gp.hp = toHP(result.X)
	}
}

func clampExp(v, lo, hi float64) float64 {
	return math.Min(math.Max(math.Exp(v), lo), hi)
}

// Hyperparams returns a copy of the fitted hyperparameters.
func (gp *GP) Hyperparams() Hyperparams { return gp.hp.clone() }

// LogMarginalLikelihood returns the log evidence of the fitted model.
func (gp *GP) LogMarginalLikelihood() float64 { return gp.lml }

// NumUnique returns the number of distinct design points.
func (gp *GP) NumUnique() int { return len(gp.x) }

// Replicates returns the replicate count per distinct design point, keyed by
// the point's comma-joined coordinates.
func (gp *GP) Replicates() map[string]int {
	out := make(map[string]int, len(gp.x))
	for i, p := range gp.x {
		out[pointKey(p)] = gp.reps[i]
	}
	return out
}

// Design returns the distinct design points sorted lexicographically.
func (gp *GP) Design() [][]float64 {
	out := make([][]float64, len(gp.x))
	for i, p := range gp.x {
		out[i] = append([]float64(nil), p...)
	}
	sort.Slice(out, func(a, b int) bool {
		for d := range out[a] {
			if out[a][d] != out[b][d] {
				return out[a][d] < out[b][d]
			}
		}
		return false
	})
	return out
}
