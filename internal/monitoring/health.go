package monitoring

import (
	"sync"
	"time"
)

// CovarianceHealth accumulates statistics about posterior covariance matrices
// that needed eigenvalue clipping before sampling. A rising repair rate points
// at an ill-conditioned surrogate (too short lengthscales, too little noise).
type CovarianceHealth struct {
	mu            sync.Mutex
	checks        int64
	repairs       int64
	clipped       int64
	minEigenvalue float64
	lastRepair    time.Time
}

// HealthSnapshot is a point-in-time copy of CovarianceHealth. MinEigenvalue
// is zero until the first repair.
type HealthSnapshot struct {
	Checks        int64     `json:"checks"`
	Repairs       int64     `json:"repairs"`
	Clipped       int64     `json:"clipped_eigenvalues"`
	MinEigenvalue float64   `json:"min_eigenvalue"`
	LastRepair    time.Time `json:"last_repair,omitempty"`
}

// Covariance is the process-wide covariance health recorder.
var Covariance = &CovarianceHealth{}

// RecordCheck notes that a covariance matrix was inspected. clipped is the
// number of negative eigenvalues set to zero (0 when no repair happened) and
// minEig the smallest eigenvalue before clipping.
func (h *CovarianceHealth) RecordCheck(clipped int, minEig float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.checks++
	if clipped == 0 {
		return
	}
	h.repairs++
	h.clipped += int64(clipped)
	if h.repairs == 1 || minEig < h.minEigenvalue {
		h.minEigenvalue = minEig
	}
	h.lastRepair = time.Now()
}

// RepairRate returns the fraction of checked matrices that needed clipping.
func (h *CovarianceHealth) RepairRate() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.checks == 0 {
		return 0
	}
	return float64(h.repairs) / float64(h.checks)
}

// Snapshot returns a copy of the current counters.
func (h *CovarianceHealth) Snapshot() HealthSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return HealthSnapshot{
		Checks:        h.checks,
		Repairs:       h.repairs,
		Clipped:       h.clipped,
		MinEigenvalue: h.minEigenvalue,
		LastRepair:    h.lastRepair,
	}
}

// Reset clears all counters.
func (h *CovarianceHealth) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks = 0
	h.repairs = 0
	h.clipped = 0
	h.minEigenvalue = 0
	h.lastRepair = time.Time{}
}
