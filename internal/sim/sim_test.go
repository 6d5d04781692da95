package sim

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/zombies.report/internal/monitoring"
)

func TestParams_Payload(t *testing.T) {
	p := MakeParams(1.5, 0.4, 7)
	p.CountsFile = "tmp/cnts.txt"
	payload, err := p.Payload()
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(payload), &got))
	want := map[string]interface{}{
		"random.seed":      7.0,
		"stop.at":          50.0,
		"human.count":      4000.0,
		"zombie.count":     200.0,
		"world.width":      200.0,
		"world.height":     200.0,
		"run.number":       1.0,
		"counts_file":      "tmp/cnts.txt",
		"zombie_step_size": 0.4,
		"human_step_size":  1.5,
	}
	assert.Equal(t, want, got)
}

func TestParams_Validate(t *testing.T) {
	assert.NoError(t, DefaultParams().Validate())

	testCases := []struct {
		name string
		mod  func(*Params)
	}{
		{"stop", func(p *Params) { p.StopAt = 0 }},
		{"world", func(p *Params) { p.WorldHeight = 0 }},
		{"humans", func(p *Params) { p.HumanCount = -1 }},
		{"step", func(p *Params) { p.ZombieStepSize = -0.1 }},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := DefaultParams()
			tc.mod(&p)
			assert.Error(t, p.Validate())
		})
	}
}

func TestParseCounts(t *testing.T) {
	testCases := []struct {
		name    string
		input   string
		want    int
		wantErr bool
	}{
		{"last row", "tick,humans,zombies\n0,4000,200\n50,1234,999\n", 1234, false},
		{"trailing blank lines", "0,4000,200\n50,17,3\n\n\n", 17, false},
		{"spaces", "50, 88, 12\n", 88, false},
		{"float count", "50.0,3200.0,10.0\n", 3200, false},
		{"zero survivors", "50,0,4200\n", 0, false},
		{"empty", "", 0, true},
		{"one column", "50\n", 0, true},
		{"header only", "tick,humans\n", 0, true},
		{"fractional", "50,12.5,3\n", 0, true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseCounts(strings.NewReader(tc.input))
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	_, err := ParseCounts(strings.NewReader("\n\n"))
	assert.ErrorIs(t, err, ErrNoCounts)
}

func TestMeanOverTrials(t *testing.T) {
	var seeds []int64
	var runs []int
	runner := RunnerFunc(func(_ context.Context, p Params) (int, error) {
		seeds = append(seeds, p.RandomSeed)
		runs = append(runs, p.RunNumber)
		return int(100 * p.RandomSeed), nil
	})

	res, err := MeanOverTrials(context.Background(), runner, MakeParams(1, 0.5, 0), 4, 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3, 4, 5}, seeds)
	assert.Equal(t, []int{1, 2, 3, 4}, runs)
	assert.Equal(t, []int{200, 300, 400, 500}, res.Counts)
	assert.InDelta(t, 350, res.Mean, 1e-12)
}

func TestMeanOverTrials_Errors(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	runner := RunnerFunc(func(context.Context, Params) (int, error) {
		calls++
		if calls == 2 {
			return 0, boom
		}
		return 1, nil
	})
	_, err := MeanOverTrials(context.Background(), runner, DefaultParams(), 5, 0)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, calls)

	_, err = MeanOverTrials(context.Background(), runner, DefaultParams(), 0, 0)
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = MeanOverTrials(ctx, runner, DefaultParams(), 1, 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "model.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0755))
	return path
}

func muteLogs(t *testing.T) {
	original := monitoring.Logf
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.Logf = original })
}

func TestCommandRunner_Run(t *testing.T) {
	// $1 payload, $2 project root, $3 instance dir.
	script := writeScript(t, `
case "$1" in
  *'"human_step_size":1.5'*) ;;
  *) echo "unexpected payload $1" >&2; exit 2 ;;
esac
printf 'tick,humans,zombies\n0,4000,200\n50,321,1000\n' > "$3/counts.csv"
`)
	root := t.TempDir()
	instances := filepath.Join(root, "instances")
	r := &CommandRunner{Command: []string{"sh", script}, ProjectRoot: root, InstanceRoot: instances}

	humans, err := r.Run(context.Background(), MakeParams(1.5, 0.5, 3))
	require.NoError(t, err)
	assert.Equal(t, 321, humans)

	entries, err := os.ReadDir(instances)
	require.NoError(t, err)
	assert.Empty(t, entries, "instance dir should be removed after a successful run")
}

func TestCommandRunner_ExplicitCountsFile(t *testing.T) {
	root := t.TempDir()
	counts := filepath.Join(root, "cnts.txt")
	require.NoError(t, os.WriteFile(counts, []byte("50,999,1\n"), 0644)) // stale
	script := writeScript(t, `printf '50,42,7\n' > "`+counts+`"`)

	r := &CommandRunner{Command: []string{"sh", script}, ProjectRoot: root, InstanceRoot: root, KeepInstances: true}
	p := MakeParams(1, 1, 1)
	p.CountsFile = counts
	humans, err := r.Run(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, 42, humans)
	assert.NoFileExists(t, counts)

	matches, err := filepath.Glob(filepath.Join(root, "instance_*", "out.txt"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestCommandRunner_Failures(t *testing.T) {
	muteLogs(t)
	root := t.TempDir()

	t.Run("non-zero exit", func(t *testing.T) {
		r := &CommandRunner{Command: []string{"sh", writeScript(t, "exit 3")}, ProjectRoot: root, InstanceRoot: root}
		_, err := r.Run(context.Background(), DefaultParams())
		assert.ErrorContains(t, err, "model exited")
	})

	t.Run("no counts file", func(t *testing.T) {
		r := &CommandRunner{Command: []string{"sh", writeScript(t, "exit 0")}, ProjectRoot: root, InstanceRoot: root}
		_, err := r.Run(context.Background(), DefaultParams())
		assert.ErrorContains(t, err, "open counts file")
	})

	t.Run("timeout", func(t *testing.T) {
		r := &CommandRunner{
			Command:      []string{"sh", writeScript(t, "sleep 5")},
			ProjectRoot:  root,
			InstanceRoot: root,
			Timeout:      50 * time.Millisecond,
		}
		_, err := r.Run(context.Background(), DefaultParams())
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("invalid params", func(t *testing.T) {
		r := NewCommandRunner(root, root)
		p := DefaultParams()
		p.StopAt = -1
		_, err := r.Run(context.Background(), p)
		assert.Error(t, err)
	})

	t.Run("no command", func(t *testing.T) {
		_, err := (&CommandRunner{}).Run(context.Background(), DefaultParams())
		assert.Error(t, err)
	})
}
