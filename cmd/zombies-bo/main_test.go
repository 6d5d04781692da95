package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/zombies.report/internal/bo"
	"github.com/banshee-data/zombies.report/internal/config"
	"github.com/banshee-data/zombies.report/internal/db"
	"github.com/banshee-data/zombies.report/internal/sim"
)

func TestNewHandler_MountsAPIAndDebug(t *testing.T) {
	database, err := db.NewDB(filepath.Join(t.TempDir(), "cmd.db"))
	require.NoError(t, err)
	defer database.Close()

	_, err = database.CreateExperiment("cmd", []byte(`{}`))
	require.NoError(t, err)

	h := newHandler(database, func() bo.State { return bo.State{Status: bo.StatusIdle} }, "")

	testCases := []struct {
		path string
		code int
	}{
		{"/api/experiments", http.StatusOK},
		{"/api/state", http.StatusOK},
		{"/api/experiments/missing", http.StatusNotFound},
	}
	for _, tc := range testCases {
		t.Run(tc.path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			req.RemoteAddr = "127.0.0.1:1234"
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tc.code, rec.Code)
		})
	}

	// The debug handlers sit behind tsweb's access check; only their
	// registration is asserted here.
	req := httptest.NewRequest(http.MethodGet, "/debug/covariance", nil)
	req.RemoteAddr = "127.0.0.1:1234"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.NotEqual(t, http.StatusNotFound, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/experiments", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var exps []db.Experiment
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&exps))
	assert.Len(t, exps, 1)
}

func TestDescribeTrials(t *testing.T) {
	got := describeTrials(config.EmptyExperimentConfig(), 0.1, 0, sim.Trials{Counts: []int{10, 20}, Mean: 15})
	assert.Equal(t, "zombie_step=0.1 human_step=0 runs=2 mean=15.00 sd=7.07 counts=[10 20] nearest_grid=0 (0.1000, 0.0000)", got)

	got = describeTrials(config.EmptyExperimentConfig(), 1, 3, sim.Trials{Counts: []int{42}, Mean: 42})
	assert.Contains(t, got, "sd=0.00")
	assert.Contains(t, got, "nearest_grid=899 (1.0000, 3.0000)")
}
