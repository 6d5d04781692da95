package grid

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestParseRangeSpec(t *testing.T) {
	testCases := []struct {
		name      string
		input     string
		expected  RangeSpec
		expectErr bool
	}{
		{"valid_range", "1.0:5.0:0.5", RangeSpec{Min: 1.0, Max: 5.0, Step: 0.5}, false},
		{"with_spaces", " 1.0 : 5.0 : 0.5 ", RangeSpec{Min: 1.0, Max: 5.0, Step: 0.5}, false},
		{"missing_parts", "1.0:5.0", RangeSpec{}, true},
		{"invalid_min", "abc:5.0:0.5", RangeSpec{}, true},
		{"invalid_step", "1.0:5.0:abc", RangeSpec{}, true},
		{"zero_step", "1.0:5.0:0", RangeSpec{}, true},
		{"negative_step", "1.0:5.0:-0.5", RangeSpec{}, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := ParseRangeSpec(tc.input)
			if tc.expectErr {
				if err == nil {
					t.Errorf("Expected error for input %q, got nil", tc.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if result != tc.expected {
				t.Errorf("Expected %+v, got %+v", tc.expected, result)
			}
		})
	}
}

func TestParseAxis(t *testing.T) {
	testCases := []struct {
		name      string
		input     string
		expected  []float64
		expectErr bool
	}{
		{"empty", "", nil, false},
		{"list", "0.1, 0.5,1", []float64{0.1, 0.5, 1}, false},
		{"range", "0:1:0.25", []float64{0, 0.25, 0.5, 0.75, 1}, false},
		{"inexact_step", "0.1:0.3:0.1", []float64{0.1, 0.2, 0.3}, false},
		{"inverted_range", "1:0:0.5", []float64{}, false},
		{"bad_value", "0.1,x", nil, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseAxis(tc.input)
			if tc.expectErr {
				if err == nil {
					t.Errorf("Expected error for input %q", tc.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if diff := cmp.Diff(tc.expected, got, cmpopts.EquateApprox(0, 1e-9), cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("ParseAxis(%q) mismatch (-want +got):\n%s", tc.input, diff)
			}
		})
	}
}

func TestParseSeeds(t *testing.T) {
	seeds, err := ParseSeeds("0:4:1")
	if err != nil {
		t.Fatalf("ParseSeeds: %v", err)
	}
	if diff := cmp.Diff([]int64{0, 1, 2, 3, 4}, seeds); diff != "" {
		t.Errorf("seeds mismatch (-want +got):\n%s", diff)
	}

	if _, err := ParseSeeds("1.5,2"); err == nil {
		t.Error("expected error for fractional seed")
	}
}
