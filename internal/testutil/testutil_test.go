package testutil

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAssertStatusCode(t *testing.T) {
	t.Parallel()

	AssertStatusCode(t, http.StatusOK, http.StatusOK)
	AssertStatusCode(t, http.StatusNotFound, http.StatusNotFound)
}

// recordingTB captures Errorf calls instead of failing the running test.
type recordingTB struct {
	testing.TB
	errors []string
}

func (r *recordingTB) Helper() {}

func (r *recordingTB) Errorf(format string, args ...any) {
	r.errors = append(r.errors, fmt.Sprintf(format, args...))
}

func TestAssertStatusCode_Mismatch(t *testing.T) {
	t.Parallel()

	rec := &recordingTB{TB: t}
	AssertStatusCode(rec, http.StatusOK, http.StatusBadRequest)
	assert.Equal(t, []string{"status code = 200, want 400"}, rec.errors)

	rec = &recordingTB{TB: t}
	AssertStatusCode(rec, http.StatusNotFound, http.StatusNotFound)
	assert.Empty(t, rec.errors)
}

func TestNewTestRequest(t *testing.T) {
	t.Parallel()

	req := NewTestRequest(http.MethodPost, "/api/summaries")
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/api/summaries", req.URL.Path)
}

func TestSquareImage(t *testing.T) {
	t.Parallel()

	img := SquareImage(20, 10, 15, 5, 10)
	assert.Equal(t, 20, img.Bounds().Dx())
	assert.Equal(t, uint8(0), img.GrayAt(14, 5).Y)
	assert.Equal(t, uint8(255), img.GrayAt(15, 5).Y)
	assert.Equal(t, uint8(255), img.GrayAt(19, 9).Y)
}

func TestSampleSummary(t *testing.T) {
	t.Parallel()

	s := SampleSummary("FAST", "BRIEF")
	assert.Equal(t, "FAST", s.Detector)
	assert.Equal(t, s.Frames, len(s.NumKeypoints))
	assert.Equal(t, s.Frames-1, len(s.NumMatches))
	assert.Equal(t, 33, s.TotalKeypoints())
}
