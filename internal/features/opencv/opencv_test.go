//go:build opencv
// +build opencv

package opencv

import (
	"image"
	"image/color"
	"testing"

	"gocv.io/x/gocv"

	"github.com/banshee-data/featurebench/internal/features"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func checkerboard(size, cell int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if (x/cell+y/cell)%2 == 0 {
				img.SetGray(x, y, color.Gray{Y: 230})
			} else {
				img.SetGray(x, y, color.Gray{Y: 20})
			}
		}
	}
	return img
}

func TestStrategies_RowPerKeypoint(t *testing.T) {
	reg := features.NewRegistry()
	Register(reg)
	img := checkerboard(256, 32)

	for _, kind := range []features.DetectorKind{features.DetSIFT, features.DetBRISK, features.DetAKAZE} {
		t.Run(kind.String(), func(t *testing.T) {
			det, err := reg.NewDetector(kind)
			require.NoError(t, err)
			defer features.CloseIfCloser(det)

			kps, err := det.Detect(img)
			require.NoError(t, err)

			ext, err := reg.NewExtractor(features.DescriptorKind(kind))
			require.NoError(t, err)
			defer features.CloseIfCloser(ext)

			desc, err := ext.Extract(kps, img)
			require.NoError(t, err)
			assert.Equal(t, len(kps), desc.Rows())
		})
	}
}

func TestSIFT_FloatDescriptors(t *testing.T) {
	reg := features.NewRegistry()
	Register(reg)
	ext, err := reg.NewExtractor(features.DescSIFT)
	require.NoError(t, err)
	defer features.CloseIfCloser(ext)

	assert.Equal(t, features.FamilyHistogram, ext.Family())
	kps := []features.Keypoint{{X: 64, Y: 64, Size: 16, Angle: 0}}
	desc, err := ext.Extract(kps, checkerboard(128, 16))
	require.NoError(t, err)
	assert.Equal(t, features.ElemFloat32, desc.Elem())
	assert.Equal(t, 128, desc.Cols())
}

func TestRealign(t *testing.T) {
	in := []features.Keypoint{{X: 1, Y: 1}, {X: 2, Y: 2}, {X: 3, Y: 3}}
	out := []gocv.KeyPoint{{X: 1, Y: 1}, {X: 3, Y: 3}}
	assert.Equal(t, []int{0, 2}, realign(in, out))
}

func TestMarkMissing(t *testing.T) {
	res := features.NewBinaryDescriptors(4, 64)
	markMissing(res, []int{2, -1, 0})
	assert.Equal(t, []int{0, 2}, res.Present())

	none := features.NewFloatDescriptors(3, widths[features.DescSIFT])
	markMissing(none, nil)
	assert.Empty(t, none.Present())
	assert.Equal(t, 128, none.Cols())
}

func TestBRISK_BorderKeypointsAreMissing(t *testing.T) {
	reg := features.NewRegistry()
	Register(reg)
	ext, err := reg.NewExtractor(features.DescBRISK)
	require.NoError(t, err)
	defer features.CloseIfCloser(ext)

	kps := []features.Keypoint{{X: 0, Y: 0, Size: 12}, {X: 1, Y: 1, Size: 12}}
	desc, err := ext.Extract(kps, checkerboard(128, 16))
	require.NoError(t, err)
	assert.Equal(t, len(kps), desc.Rows())
	assert.Equal(t, 64, desc.Cols())
	assert.Empty(t, desc.Present())
}
