package native

import (
	"image"
	"math"

	"github.com/banshee-data/featurebench/internal/features"
)

const (
	freakRings        = 8
	freakPoints       = 43
	freakPairs        = 512
	freakBytes        = freakPairs / 8
	freakPatternScale = 22.0
	freakBaseSize     = 7.0
)

// freakPoint is a receptive field of the retina pattern in unit radius.
type freakPoint struct {
	x, y, sigma float64
}

// FREAK compares box-filtered receptive fields of a retina-like sampling
// pattern: seven rings of six fields with growing radius and overlap, plus
// the centre.
type FREAK struct {
	pattern [freakPoints]freakPoint
	pairs   [freakPairs][2]int
}

// NewFREAK returns a 64-byte FREAK extractor.
func NewFREAK() *FREAK {
	e := &FREAK{}

	const bigR, smallR = 2.0 / 3.0, 2.0 / 24.0
	unit := (bigR - smallR) / 21
	radius := [freakRings]float64{bigR, bigR - 6*unit, bigR - 11*unit, bigR - 15*unit, bigR - 18*unit, bigR - 20*unit, smallR, 0}
	count := [freakRings]int{6, 6, 6, 6, 6, 6, 6, 1}

	n := 0
	for r := 0; r < freakRings; r++ {
		sigma := radius[r] / 2
		if r == freakRings-1 {
			sigma = radius[r-1] / 2
		}
		beta := 0.0
		if r%2 == 1 {
			beta = math.Pi / float64(count[r])
		}
		for k := 0; k < count[r]; k++ {
			alpha := float64(k)*2*math.Pi/float64(count[r]) + beta
			e.pattern[n] = freakPoint{x: radius[r] * math.Cos(alpha), y: radius[r] * math.Sin(alpha), sigma: sigma}
			n++
		}
	}

	// Coarse-to-fine: pairs between outer fields come first.
	p := 0
	for i := 1; i < freakPoints && p < freakPairs; i++ {
		for j := 0; j < i && p < freakPairs; j++ {
			e.pairs[p] = [2]int{i, j}
			p++
		}
	}
	return e
}

func (e *FREAK) Kind() features.DescriptorKind { return features.DescFREAK }
func (e *FREAK) Family() features.Family       { return features.FamilyBinary }

func (e *FREAK) Extract(kps []features.Keypoint, img *image.Gray) (*features.Descriptors, error) {
	desc := features.NewBinaryDescriptors(len(kps), freakBytes)
	if len(kps) == 0 {
		return desc, nil
	}
	ii := newIntegral(img)
	var means [freakPoints]float64
	for i, kp := range kps {
		scale := freakPatternScale * math.Max(1, kp.Size/freakBaseSize)
		angle := 0.0
		if kp.Angle != features.UndefinedAngle {
			angle = kp.Angle * math.Pi / 180
		}
		sin, cos := math.Sincos(angle)
		for j, pt := range e.pattern {
			x := kp.X + scale*(pt.x*cos-pt.y*sin)
			y := kp.Y + scale*(pt.x*sin+pt.y*cos)
			half := max(int(math.Round(scale*pt.sigma)), 1)
			means[j] = ii.mean(int(math.Round(x)), int(math.Round(y)), half)
		}
		row := desc.BinaryRow(i)
		for bit, pr := range e.pairs {
			if means[pr[0]] > means[pr[1]] {
				row[bit/8] |= 1 << uint(bit%8)
			}
		}
	}
	return desc, nil
}
