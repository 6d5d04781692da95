package grid

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// RangeSpec defines a floating-point range for an axis or a seed list.
type RangeSpec struct {
	Min  float64
	Max  float64
	Step float64
}

// maxValues limits generated ranges so a typo cannot allocate millions of points.
const maxValues = 10000

// ParseRangeSpec parses a "min:max:step" string into a RangeSpec.
func ParseRangeSpec(s string) (RangeSpec, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return RangeSpec{}, fmt.Errorf("invalid range format %q: expected min:max:step", s)
	}

	vals := make([]float64, 3)
	for i, name := range []string{"min", "max", "step"} {
		v, err := strconv.ParseFloat(strings.TrimSpace(parts[i]), 64)
		if err != nil {
			return RangeSpec{}, fmt.Errorf("invalid %s value %q: %w", name, parts[i], err)
		}
		vals[i] = v
	}

	if vals[2] <= 0 {
		return RangeSpec{}, fmt.Errorf("step must be positive, got %f", vals[2])
	}
	return RangeSpec{Min: vals[0], Max: vals[1], Step: vals[2]}, nil
}

// Values expands the range from Min to Max inclusive. Returns nil if Min > Max
// or the range would exceed maxValues entries.
func (r RangeSpec) Values() []float64 {
	if r.Step <= 0 || r.Min > r.Max {
		return nil
	}
	expected := int((r.Max-r.Min)/r.Step) + 1
	if expected > maxValues || expected < 0 {
		return nil
	}

	out := make([]float64, 0, expected)
	for i := 0; i < expected+1; i++ {
		// Round to avoid floating point accumulation errors
		v := math.Round((r.Min+float64(i)*r.Step)*1e9) / 1e9
		if v > r.Max+r.Step/1000 {
			break
		}
		out = append(out, v)
	}
	return out
}

// ParseAxis parses either a "min:max:step" range or a comma-separated list of
// floats. Empty input yields nil, nil.
func ParseAxis(s string) ([]float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if strings.Contains(s, ":") {
		spec, err := ParseRangeSpec(s)
		if err != nil {
			return nil, err
		}
		return spec.Values(), nil
	}

	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid float '%s': %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// ParseSeeds parses a seed list: "0:9:1" or "3,5,8". Seeds must be integers.
func ParseSeeds(s string) ([]int64, error) {
	vals, err := ParseAxis(s)
	if err != nil {
		return nil, err
	}
	out := make([]int64, len(vals))
	for i, v := range vals {
		if v != math.Trunc(v) {
			return nil, fmt.Errorf("seed %g is not an integer", v)
		}
		out[i] = int64(v)
	}
	return out, nil
}
