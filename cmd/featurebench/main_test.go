package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/featurebench/internal/db"
	"github.com/banshee-data/featurebench/internal/report"
	"github.com/banshee-data/featurebench/internal/testutil"
	"github.com/banshee-data/featurebench/internal/version"
)

// writeFrames writes n PNG frames of a square moving right and returns
// the config file describing them.
func writeFrames(t *testing.T, n int) string {
	t.Helper()
	dir := t.TempDir()
	for i := 0; i < n; i++ {
		f, err := os.Create(filepath.Join(dir, fmt.Sprintf("frame_%03d.png", i)))
		require.NoError(t, err)
		require.NoError(t, png.Encode(f, testutil.SquareImage(160, 120, 50+3*i, 40, 40)))
		require.NoError(t, f.Close())
	}

	cfg := map[string]any{
		"image_base_path":   dir + string(filepath.Separator),
		"image_prefix":      "frame_",
		"image_file_type":   ".png",
		"image_fill_width":  3,
		"image_start_index": 0,
		"image_end_index":   n - 1,
		"detector_types":    []string{"FAST"},
		"descriptor_types":  []string{"BRIEF"},
		"focus_on_vehicle":  false,
	}
	data, err := json.Marshal(cfg)
	require.NoError(t, err)
	path := filepath.Join(dir, "bench.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestRunVersion(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	code := run([]string{"-version"}, &stdout, &stderr)
	assert.Equal(t, 0, code)
	assert.Equal(t, version.String()+"\n", stdout.String())
}

func TestRunInvalidFlags(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	assert.Equal(t, 2, run([]string{"run", "-log-level", "loud"}, &stdout, &stderr))
	assert.Equal(t, 2, run([]string{"-no-such-flag"}, &stdout, &stderr))
}

func TestRunBenchmark(t *testing.T) {
	t.Parallel()

	cfgPath := writeFrames(t, 3)
	out := t.TempDir()
	dbPath := filepath.Join(out, "results.db")

	var stdout, stderr bytes.Buffer
	code := run([]string{"run", "-config", cfgPath, "-db", dbPath, "-report-dir", out, "-log-level", "debug"}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	require.Len(t, lines, 1)
	assert.True(t, strings.HasPrefix(lines[0], "FAST, BRIEF, "), lines[0])
	assert.Contains(t, stderr.String(), "detect keypoints")

	for _, name := range []string{"report.json", "charts.html", report.KeypointsPlotFile, report.MatchesPlotFile} {
		assert.FileExists(t, filepath.Join(out, name))
	}

	store, err := db.NewDB(dbPath, nil)
	require.NoError(t, err)
	defer store.Close()
	summaries, err := store.Summaries(0)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, 3, summaries[0].Frames)
	assert.Len(t, summaries[0].NumMatches, 2)
}

func TestRunMissingImages(t *testing.T) {
	t.Parallel()

	cfgPath := writeFrames(t, 2)
	dir := filepath.Dir(cfgPath)
	require.NoError(t, os.Remove(filepath.Join(dir, "frame_001.png")))

	var stdout, stderr bytes.Buffer
	assert.Equal(t, 1, run([]string{"-config", cfgPath}, &stdout, &stderr))
	assert.Empty(t, stdout.String())
}

func TestServeMux(t *testing.T) {
	t.Parallel()

	store, err := db.NewDB(filepath.Join(t.TempDir(), "results.db"), nil)
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.Write(testutil.SampleSummary("ORB", "ORB")))

	mux, err := newServeMux(store, nil)
	require.NoError(t, err)

	t.Run("summaries", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, testutil.NewTestRequest(http.MethodGet, "/api/summaries"))
		testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

		var got []report.SummaryJSON
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
		require.Len(t, got, 1)
		assert.Equal(t, "ORB", got[0].Detector)
		assert.InDelta(t, 12.5, got[0].AvgDetectionMs, 1e-9)
	})

	t.Run("bad limit", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, testutil.NewTestRequest(http.MethodGet, "/api/summaries?limit=-1"))
		testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)
	})

	t.Run("charts", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, testutil.NewTestRequest(http.MethodGet, "/charts"))
		testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
		assert.Contains(t, rec.Body.String(), "ORB/ORB")
	})

	t.Run("method not allowed", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, testutil.NewTestRequest(http.MethodPost, "/charts"))
		testutil.AssertStatusCode(t, rec.Code, http.StatusMethodNotAllowed)
	})
}

func TestRunRejectsJSONOutsideReportDir(t *testing.T) {
	t.Parallel()

	cfgPath := writeFrames(t, 2)
	var stdout, stderr bytes.Buffer
	code := run([]string{"-config", cfgPath, "-report-dir", t.TempDir(), "-json", "../escape.json"}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "path traversal")
}

func TestOpenSinks_InvalidJSONOpensNothing(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "results.db")
	opts := runOptions{dbPath: dbPath, reportDir: t.TempDir(), jsonName: "../escape.json"}
	sink, err := openSinks(opts, &bytes.Buffer{}, nil)
	require.Error(t, err)
	assert.Nil(t, sink)
	assert.Contains(t, err.Error(), "invalid -json")

	_, statErr := os.Stat(dbPath)
	assert.True(t, os.IsNotExist(statErr), "database must not be opened")
}
