// Package surrogate implements the Gaussian-process model fitted to
// simulation outcomes. It supplies the joint posterior mean and covariance
// over a candidate grid that the batch selector samples from.
package surrogate

import (
	"fmt"
	"math"
)

// Kernel selects the covariance function.
type Kernel string

const (
	// Matern52 is the Matérn ν=5/2 kernel. It is the default because it is
	// less smooth than the squared exponential and copes better with noisy
	// survivor counts.
	Matern52 Kernel = "matern52"
	// SquaredExponential is the RBF kernel.
	SquaredExponential Kernel = "sqexp"
)

// Hyperparams holds kernel and noise hyperparameters on the standardised
// output scale.
type Hyperparams struct {
	// Lengthscales has one entry per input dimension (ARD).
	Lengthscales []float64 `json:"lengthscales" yaml:"lengthscales"`
	// SignalVariance is σ_f², the prior variance of the latent function.
	SignalVariance float64 `json:"signal_variance" yaml:"signal_variance"`
	// NoiseVariance is σ_n², the per-observation noise. In heteroskedastic
	// mode it is the floor under empirical replicate variances.
	NoiseVariance float64 `json:"noise_variance" yaml:"noise_variance"`
}

// DefaultHyperparams returns starting values for a unit-cube design.
func DefaultHyperparams(dims int) Hyperparams {
	ls := make([]float64, dims)
	for i := range ls {
		ls[i] = 0.3
	}
	return Hyperparams{
		Lengthscales:   ls,
		SignalVariance: 1,
		NoiseVariance:  0.01,
	}
}

// Validate checks the hyperparameters against a design dimension.
func (hp Hyperparams) Validate(dims int) error {
	if len(hp.Lengthscales) != dims {
		return fmt.Errorf("got %d lengthscales for %d input dimensions", len(hp.Lengthscales), dims)
	}
	for i, l := range hp.Lengthscales {
		if !(l > 0) {
			return fmt.Errorf("lengthscale[%d] must be positive, got %g", i, l)
		}
	}
	if !(hp.SignalVariance > 0) {
		return fmt.Errorf("signal variance must be positive, got %g", hp.SignalVariance)
	}
	if hp.NoiseVariance < 0 || math.IsNaN(hp.NoiseVariance) {
		return fmt.Errorf("noise variance must be non-negative, got %g", hp.NoiseVariance)
	}
	return nil
}

func (hp Hyperparams) clone() Hyperparams {
	out := hp
	out.Lengthscales = append([]float64(nil), hp.Lengthscales...)
	return out
}

// eval returns k(x1, x2) for the given kernel.
func (k Kernel) eval(hp Hyperparams, x1, x2 []float64) float64 {
	var r2 float64
	for d := range x1 {
		diff := (x1[d] - x2[d]) / hp.Lengthscales[d]
		r2 += diff * diff
	}

	switch k {
	case SquaredExponential:
		return hp.SignalVariance * math.Exp(-0.5*r2)
	default:
		// k(r) = σ² (1 + √5 r + 5r²/3) exp(-√5 r)
		s5r := math.Sqrt(5 * r2)
		return hp.SignalVariance * (1 + s5r + 5*r2/3) * math.Exp(-s5r)
	}
}

// ParseKernel maps a config string to a Kernel. Empty selects Matern52.
func ParseKernel(s string) (Kernel, error) {
	switch Kernel(s) {
	case "", Matern52:
		return Matern52, nil
	case SquaredExponential:
		return SquaredExponential, nil
	}
	return "", fmt.Errorf("unknown kernel %q (want %q or %q)", s, Matern52, SquaredExponential)
}
