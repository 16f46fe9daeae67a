package visualize

import (
	"bytes"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/featurebench/internal/features"
	"github.com/banshee-data/featurebench/internal/framebuf"
)

func testPair() (*framebuf.Frame, *framebuf.Frame) {
	prev := &framebuf.Frame{
		Index:     3,
		Image:     image.NewGray(image.Rect(0, 0, 40, 30)),
		Keypoints: []features.Keypoint{{X: 10, Y: 10, Size: 7}},
	}
	curr := &framebuf.Frame{
		Index:     4,
		Image:     image.NewGray(image.Rect(0, 0, 40, 30)),
		Keypoints: []features.Keypoint{{X: 12, Y: 20, Size: 7}},
		Matches:   []features.Match{{QueryIdx: 0, TrainIdx: 0}},
	}
	return prev, curr
}

func TestRender_SideBySide(t *testing.T) {
	t.Parallel()
	prev, curr := testPair()
	prev.Image.SetGray(0, 0, color.Gray{Y: 200})

	canvas := Render(prev, curr)
	assert.Equal(t, image.Rect(0, 0, 80, 30), canvas.Bounds())
	assert.Equal(t, uint8(200), canvas.RGBAAt(0, 0).R)

	// The match line passes through the midpoint of the two keypoints.
	mid := canvas.RGBAAt((10+52)/2, 15)
	assert.NotEqual(t, color.RGBA{A: 255}, mid)
}

func TestPNG_ShowWritesFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	v := NewPNG(dir, false, nil)
	v.Begin("FAST/BRIEF")

	prev, curr := testPair()
	require.NoError(t, v.Show(prev, curr))

	_, err := os.Stat(filepath.Join(dir, "FAST_BRIEF_0003_0004.png"))
	assert.NoError(t, err)
}

func TestPNG_InteractiveWaitsForEnter(t *testing.T) {
	t.Parallel()
	var out bytes.Buffer
	v := NewPNG(t.TempDir(), true, nil)
	v.In = strings.NewReader("\n")
	v.Out = &out

	prev, curr := testPair()
	require.NoError(t, v.Show(prev, curr))
	assert.Contains(t, out.String(), "press Enter")

	// EOF on input does not fail the run.
	require.NoError(t, v.Show(prev, curr))
}

func TestPNG_NilFramesIgnored(t *testing.T) {
	t.Parallel()
	v := NewPNG(t.TempDir(), false, nil)
	assert.NoError(t, v.Show(nil, nil))
}
