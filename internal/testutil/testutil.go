// Package testutil provides shared test utilities and fixtures.
package testutil

import (
	"image"
	"image/color"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/banshee-data/featurebench/internal/runstats"
)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t testing.TB, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// NewTestRequest creates a test HTTP request.
func NewTestRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}

// SquareImage returns a w x h black image with a white filled square of the
// given side whose top-left corner is at (x, y).
func SquareImage(w, h, x, y, side int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for yy := y; yy < y+side && yy < h; yy++ {
		for xx := x; xx < x+side && xx < w; xx++ {
			if xx >= 0 && yy >= 0 {
				img.SetGray(xx, yy, color.Gray{Y: 255})
			}
		}
	}
	return img
}

// SampleSummary returns a deterministic finalized summary for the given
// configuration.
func SampleSummary(detector, descriptor string) runstats.Summary {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return runstats.Summary{
		RunID:                "00000000-0000-4000-8000-000000000001",
		Detector:             detector,
		Descriptor:           descriptor,
		Matcher:              "MAT_BF",
		Selector:             "SEL_KNN",
		Frames:               3,
		AvgDetection:         12500 * time.Microsecond,
		AvgDescription:       3250 * time.Microsecond,
		NeighborhoodMean:     4,
		NeighborhoodVariance: 8.0 / 3.0,
		NumKeypoints:         []int{10, 12, 11},
		NumMatches:           []int{9, 10},
		StartedAt:            start,
		FinishedAt:           start.Add(2 * time.Second),
	}
}
