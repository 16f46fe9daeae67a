package native

import (
	"image"
	"math"
	"math/rand"

	"github.com/banshee-data/featurebench/internal/features"
)

const (
	briefBytes     = 32
	briefPatchSize = 48
	briefSigma     = 2.0
	briefSeed      = 0x0b21ef
)

// BRIEF computes binary intensity tests between Gaussian-distributed point
// pairs around each keypoint on a pre-smoothed image.
type BRIEF struct {
	pattern []samplePair
}

// NewBRIEF returns a 32-byte BRIEF extractor over a 48px patch.
func NewBRIEF() *BRIEF {
	return &BRIEF{pattern: gaussianPattern(briefBytes*8, briefPatchSize, briefSeed)}
}

// gaussianPattern draws isotropic Gaussian pairs with sigma = patch/5,
// clamped inside the patch.
func gaussianPattern(n, patch int, seed int64) []samplePair {
	rng := rand.New(rand.NewSource(seed))
	half := float64(patch/2 - 1)
	sigma := float64(patch) / 5
	draw := func() float64 {
		v := math.Round(rng.NormFloat64() * sigma)
		return math.Max(-half, math.Min(half, v))
	}
	out := make([]samplePair, n)
	for i := range out {
		out[i] = samplePair{draw(), draw(), draw(), draw()}
	}
	return out
}

func (e *BRIEF) Kind() features.DescriptorKind { return features.DescBRIEF }
func (e *BRIEF) Family() features.Family       { return features.FamilyBinary }

func (e *BRIEF) Extract(kps []features.Keypoint, img *image.Gray) (*features.Descriptors, error) {
	desc := features.NewBinaryDescriptors(len(kps), briefBytes)
	if len(kps) == 0 {
		return desc, nil
	}
	blurred := smooth(img, briefSigma)
	for i, kp := range kps {
		cx, cy := int(math.Round(kp.X)), int(math.Round(kp.Y))
		row := desc.BinaryRow(i)
		for bit, p := range e.pattern {
			a := grayAt(blurred, cx+int(p.x1), cy+int(p.y1))
			b := grayAt(blurred, cx+int(p.x2), cy+int(p.y2))
			if a < b {
				row[bit/8] |= 1 << uint(bit%8)
			}
		}
	}
	return desc, nil
}
