package monitoring

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func captureLogs(t *testing.T) *[]string {
	t.Helper()
	original := Logf
	t.Cleanup(func() { Logf = original })

	var lines []string
	SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, v...))
	})
	return &lines
}

func TestSetLogger_Capture(t *testing.T) {
	lines := captureLogs(t)
	Logf("fitted %d points", 12)
	assert.Equal(t, []string{"fitted 12 points"}, *lines)
}

func TestSetLogger_NilMutes(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	SetLogger(nil)
	assert.NotPanics(t, func() { Logf("dropped %s", "notice") })
}

func TestNoticef_TagsComponent(t *testing.T) {
	lines := captureLogs(t)

	testCases := []struct {
		component string
		format    string
		args      []interface{}
		want      string
	}{
		{"batch", "clipped %d eigenvalues", []interface{}{3}, "[batch] clipped 3 eigenvalues"},
		{"sim", "model exited: %v", []interface{}{"status 1"}, "[sim] model exited: status 1"},
		{"bo", "no observations", nil, "[bo] no observations"},
	}
	for _, tc := range testCases {
		Noticef(tc.component, tc.format, tc.args...)
	}

	want := make([]string, len(testCases))
	for i, tc := range testCases {
		want[i] = tc.want
	}
	assert.Equal(t, want, *lines)
}
