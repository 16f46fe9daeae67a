//go:build opencv
// +build opencv

package opencv

import (
	"fmt"
	"image"
	"math"

	"gocv.io/x/gocv"

	"github.com/banshee-data/featurebench/internal/features"
)

// Enabled reports whether this build links OpenCV.
const Enabled = true

// algorithm is the subset of the gocv Feature2D types used here.
type algorithm interface {
	Detect(src gocv.Mat) []gocv.KeyPoint
	Compute(src gocv.Mat, mask gocv.Mat, kps []gocv.KeyPoint) ([]gocv.KeyPoint, gocv.Mat)
	Close() error
}

// Strategy wraps one gocv algorithm as both a detector and an extractor.
// It holds native memory and must be closed.
type Strategy struct {
	alg      algorithm
	detKind  features.DetectorKind
	descKind features.DescriptorKind
}

func newSIFT() *Strategy {
	a := gocv.NewSIFT()
	return &Strategy{alg: &a, detKind: features.DetSIFT, descKind: features.DescSIFT}
}

func newBRISK() *Strategy {
	a := gocv.NewBRISK()
	return &Strategy{alg: &a, detKind: features.DetBRISK, descKind: features.DescBRISK}
}

func newAKAZE() *Strategy {
	a := gocv.NewAKAZE()
	return &Strategy{alg: &a, detKind: features.DetAKAZE, descKind: features.DescAKAZE}
}

func (s *Strategy) Kind() features.DetectorKind { return s.detKind }

// Family returns the metric family of the descriptors this algorithm computes.
func (s *Strategy) Family() features.Family { return s.descKind.Family() }

func (s *Strategy) Close() error { return s.alg.Close() }

func (s *Strategy) Detect(img *image.Gray) ([]features.Keypoint, error) {
	mat, err := toMat(img)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	raw := s.alg.Detect(mat)
	kps := make([]features.Keypoint, len(raw))
	for i, k := range raw {
		kps[i] = features.Keypoint{X: k.X, Y: k.Y, Size: k.Size, Response: k.Response, Angle: k.Angle, Octave: k.Octave}
	}
	return kps, nil
}

// extractor adapts a Strategy to features.Extractor, whose Kind method
// returns the descriptor kind.
type extractor struct{ *Strategy }

func (e extractor) Kind() features.DescriptorKind { return e.descKind }

// widths is the descriptor length of each kind with default parameters,
// used when OpenCV describes none of the keypoints.
var widths = map[features.DescriptorKind]int{
	features.DescSIFT:  128,
	features.DescBRISK: 64,
	features.DescAKAZE: 61,
}

// Extract computes descriptors and realigns them with the input keypoints.
// OpenCV may drop keypoints it cannot describe; their rows are zero and
// marked missing.
func (e extractor) Extract(kps []features.Keypoint, img *image.Gray) (*features.Descriptors, error) {
	if e.descKind.Family() == features.FamilyHistogram {
		return e.compute(kps, img, features.NewFloatDescriptors)
	}
	return e.compute(kps, img, features.NewBinaryDescriptors)
}

func (e extractor) compute(kps []features.Keypoint, img *image.Gray, alloc func(rows, cols int) *features.Descriptors) (*features.Descriptors, error) {
	if len(kps) == 0 {
		return alloc(0, 0), nil
	}
	mat, err := toMat(img)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	in := make([]gocv.KeyPoint, len(kps))
	for i, k := range kps {
		in[i] = gocv.KeyPoint{X: k.X, Y: k.Y, Size: k.Size, Angle: k.Angle, Response: k.Response, Octave: k.Octave, ClassID: -1}
	}
	mask := gocv.NewMat()
	defer mask.Close()
	out, desc := e.alg.Compute(mat, mask, in)
	defer desc.Close()

	if desc.Empty() {
		res := alloc(len(kps), widths[e.descKind])
		markMissing(res, nil)
		return res, nil
	}
	res := alloc(len(kps), desc.Cols())
	rows := realign(kps, out)
	for r := desc.Rows(); r < len(rows); r++ {
		rows[r] = -1
	}
	markMissing(res, rows)
	for r, target := range rows {
		if target < 0 {
			continue
		}
		switch desc.Type() {
		case gocv.MatTypeCV32F:
			if res.Elem() != features.ElemFloat32 {
				return nil, fmt.Errorf("%s returned float descriptors for a binary kind", e.descKind)
			}
			row := res.FloatRow(target)
			for c := range row {
				row[c] = desc.GetFloatAt(r, c)
			}
		case gocv.MatTypeCV8U:
			if res.Elem() != features.ElemUint8 {
				return nil, fmt.Errorf("%s returned binary descriptors for a float kind", e.descKind)
			}
			row := res.BinaryRow(target)
			for c := range row {
				row[c] = desc.GetUCharAt(r, c)
			}
		default:
			return nil, fmt.Errorf("%s returned unsupported descriptor type %v", e.descKind, desc.Type())
		}
	}
	return res, nil
}

// realign maps each output keypoint to the index of the unused input
// keypoint at the same position, or -1.
func realign(in []features.Keypoint, out []gocv.KeyPoint) []int {
	const eps = 1e-3
	used := make([]bool, len(in))
	rows := make([]int, len(out))
	next := 0
	for r, k := range out {
		rows[r] = -1
		for n := 0; n < len(in); n++ {
			i := (next + n) % len(in)
			if used[i] || math.Abs(in[i].X-k.X) > eps || math.Abs(in[i].Y-k.Y) > eps {
				continue
			}
			used[i] = true
			rows[r] = i
			next = i + 1
			break
		}
	}
	return rows
}

// markMissing flags every row of res that no realigned output row fills.
func markMissing(res *features.Descriptors, rows []int) {
	filled := make([]bool, res.Rows())
	for _, target := range rows {
		if target >= 0 {
			filled[target] = true
		}
	}
	for i, ok := range filled {
		if !ok {
			res.MarkMissing(i)
		}
	}
}

func toMat(img *image.Gray) (gocv.Mat, error) {
	mat, err := gocv.ImageGrayToMatGray(img)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("failed to convert image: %w", err)
	}
	return mat, nil
}

var strategies = []struct {
	det  features.DetectorKind
	desc features.DescriptorKind
	ctor func() *Strategy
}{
	{features.DetSIFT, features.DescSIFT, newSIFT},
	{features.DetBRISK, features.DescBRISK, newBRISK},
	{features.DetAKAZE, features.DescAKAZE, newAKAZE},
}

// Register installs SIFT, BRISK and AKAZE into reg.
func Register(reg *features.Registry) {
	for _, s := range strategies {
		ctor := s.ctor
		reg.RegisterDetector(s.det, func() (features.Detector, error) { return ctor(), nil })
		reg.RegisterExtractor(s.desc, func() (features.Extractor, error) { return extractor{ctor()}, nil })
	}
}
