package native

import (
	"image"
	"math"
	"math/rand"
	"sort"

	"github.com/banshee-data/featurebench/internal/features"
)

const (
	orbPatchSize     = 31
	orbHalfPatch     = orbPatchSize / 2
	orbHarrisBlock   = 7
	orbHarrisK       = 0.04
	orbFastThreshold = 20
	orbBytes         = 32
	orbPatternSeed   = 0x0b5
)

// ORB detects oriented FAST corners over a scale pyramid, ranked by Harris
// response.
type ORB struct {
	Features    int
	Levels      int
	ScaleFactor float64
}

// NewORB returns a detector with 500 features over 8 levels at scale 1.2.
func NewORB() *ORB {
	return &ORB{Features: 500, Levels: 8, ScaleFactor: 1.2}
}

func (d *ORB) Kind() features.DetectorKind { return features.DetORB }

func (d *ORB) Detect(img *image.Gray) ([]features.Keypoint, error) {
	levels := pyramid(img, d.Levels, d.ScaleFactor)
	quota := d.levelQuota(len(levels))

	var kps []features.Keypoint
	for l, lvl := range levels {
		corners := fastCorners(lvl, orbFastThreshold, orbHalfPatch+1)
		for i := range corners {
			corners[i].score = harrisAt(lvl, corners[i].x, corners[i].y)
		}
		sort.SliceStable(corners, func(i, j int) bool { return corners[i].score > corners[j].score })
		if len(corners) > quota[l] {
			corners = corners[:quota[l]]
		}

		scale := math.Pow(d.ScaleFactor, float64(l))
		for _, c := range corners {
			kps = append(kps, features.Keypoint{
				X:        float64(c.x) * scale,
				Y:        float64(c.y) * scale,
				Size:     orbPatchSize * scale,
				Response: c.score,
				Angle:    centroidAngle(lvl, c.x, c.y, orbHalfPatch),
				Octave:   l,
			})
		}
	}
	return kps, nil
}

// levelQuota spreads Features over the levels in a geometric series so
// that each level gets a share proportional to its area.
func (d *ORB) levelQuota(n int) []int {
	quota := make([]int, n)
	if n == 0 {
		return quota
	}
	factor := 1 / d.ScaleFactor
	desired := float64(d.Features) * (1 - factor) / (1 - math.Pow(factor, float64(n)))
	total := 0
	for l := 0; l < n-1; l++ {
		quota[l] = int(math.Round(desired))
		total += quota[l]
		desired *= factor
	}
	quota[n-1] = max(d.Features-total, 0)
	return quota
}

// harrisAt computes the Harris response over a 7x7 block centred on (x, y).
func harrisAt(img *image.Gray, x, y int) float64 {
	var a, b, c float64
	r := orbHarrisBlock / 2
	for v := -r; v <= r; v++ {
		for u := -r; u <= r; u++ {
			px, py := x+u, y+v
			gx := float64(grayAt(img, px+1, py-1)) + 2*float64(grayAt(img, px+1, py)) + float64(grayAt(img, px+1, py+1)) -
				float64(grayAt(img, px-1, py-1)) - 2*float64(grayAt(img, px-1, py)) - float64(grayAt(img, px-1, py+1))
			gy := float64(grayAt(img, px-1, py+1)) + 2*float64(grayAt(img, px, py+1)) + float64(grayAt(img, px+1, py+1)) -
				float64(grayAt(img, px-1, py-1)) - 2*float64(grayAt(img, px, py-1)) - float64(grayAt(img, px+1, py-1))
			a += gx * gx
			b += gx * gy
			c += gy * gy
		}
	}
	return a*c - b*b - orbHarrisK*(a+c)*(a+c)
}

// samplePair is one intensity comparison of a binary test pattern.
type samplePair struct {
	x1, y1, x2, y2 float64
}

// uniformPattern draws n pairs uniformly from a square patch.
func uniformPattern(n int, half float64, seed int64) []samplePair {
	rng := rand.New(rand.NewSource(seed))
	draw := func() float64 { return math.Round(rng.Float64()*2*half - half) }
	out := make([]samplePair, n)
	for i := range out {
		out[i] = samplePair{draw(), draw(), draw(), draw()}
	}
	return out
}

// ORBExtractor computes rotated BRIEF descriptors steered by keypoint angle.
type ORBExtractor struct {
	pattern []samplePair
}

// NewORBExtractor returns a 32-byte rBRIEF extractor over a 31px patch.
func NewORBExtractor() *ORBExtractor {
	return &ORBExtractor{pattern: uniformPattern(orbBytes*8, orbHalfPatch-2, orbPatternSeed)}
}

func (e *ORBExtractor) Kind() features.DescriptorKind { return features.DescORB }
func (e *ORBExtractor) Family() features.Family       { return features.FamilyBinary }

// Extract uses the keypoint angle when defined and the intensity centroid
// of the patch otherwise.
func (e *ORBExtractor) Extract(kps []features.Keypoint, img *image.Gray) (*features.Descriptors, error) {
	desc := features.NewBinaryDescriptors(len(kps), orbBytes)
	if len(kps) == 0 {
		return desc, nil
	}
	blurred := smooth(img, 2)
	for i, kp := range kps {
		cx, cy := int(math.Round(kp.X)), int(math.Round(kp.Y))
		angle := kp.Angle
		if angle == features.UndefinedAngle {
			angle = centroidAngle(blurred, cx, cy, orbHalfPatch)
		}
		sin, cos := math.Sincos(angle * math.Pi / 180)
		row := desc.BinaryRow(i)
		for bit, p := range e.pattern {
			x1 := int(math.Round(p.x1*cos - p.y1*sin))
			y1 := int(math.Round(p.x1*sin + p.y1*cos))
			x2 := int(math.Round(p.x2*cos - p.y2*sin))
			y2 := int(math.Round(p.x2*sin + p.y2*cos))
			if grayAt(blurred, cx+x1, cy+y1) < grayAt(blurred, cx+x2, cy+y2) {
				row[bit/8] |= 1 << uint(bit%8)
			}
		}
	}
	return desc, nil
}
