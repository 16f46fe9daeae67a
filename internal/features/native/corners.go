package native

import (
	"image"
	"math"
	"sort"

	"github.com/banshee-data/featurebench/internal/features"
)

// ShiTomasi detects corners by the minimum eigenvalue of the structure
// tensor ("good features to track").
type ShiTomasi struct {
	BlockSize    int
	MinDistance  float64
	QualityLevel float64
	// MaxCorners caps the result; zero derives rows*cols/MinDistance.
	MaxCorners int
}

// NewShiTomasi returns a detector with the benchmark defaults.
func NewShiTomasi() *ShiTomasi {
	return &ShiTomasi{BlockSize: 4, MinDistance: 4, QualityLevel: 0.01}
}

func (d *ShiTomasi) Kind() features.DetectorKind { return features.DetShiTomasi }

// Detect returns corners ordered by descending quality.
func (d *ShiTomasi) Detect(img *image.Gray) ([]features.Keypoint, error) {
	p := planeFromGray(img)
	if p.w == 0 || p.h == 0 {
		return nil, nil
	}
	dx, dy := sobel(p)
	a, b, c := structureTensor(dx, dy, d.BlockSize)

	eig := newPlane(p.w, p.h)
	var maxVal float64
	for i := range eig.pix {
		half := (a.pix[i] + c.pix[i]) / 2
		diff := (a.pix[i] - c.pix[i]) / 2
		v := half - math.Sqrt(diff*diff+b.pix[i]*b.pix[i])
		eig.pix[i] = v
		if v > maxVal {
			maxVal = v
		}
	}
	if maxVal <= 0 {
		return nil, nil
	}
	threshold := maxVal * d.QualityLevel

	type cand struct {
		x, y int
		v    float64
	}
	var cands []cand
	for y := 0; y < p.h; y++ {
		for x := 0; x < p.w; x++ {
			v := eig.pix[y*p.w+x]
			if v > threshold && eig.isLocalMax(x, y) {
				cands = append(cands, cand{x, y, v})
			}
		}
	}
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].v > cands[j].v })

	maxCorners := d.MaxCorners
	if maxCorners <= 0 {
		maxCorners = int(float64(p.w*p.h) / math.Max(d.MinDistance, 1))
	}
	minDist2 := d.MinDistance * d.MinDistance

	var kps []features.Keypoint
	for _, cd := range cands {
		if len(kps) >= maxCorners {
			break
		}
		x, y := float64(cd.x), float64(cd.y)
		tooClose := false
		for _, kp := range kps {
			ddx, ddy := kp.X-x, kp.Y-y
			if ddx*ddx+ddy*ddy < minDist2 {
				tooClose = true
				break
			}
		}
		if tooClose {
			continue
		}
		kps = append(kps, features.Keypoint{
			X:        x,
			Y:        y,
			Size:     float64(d.BlockSize),
			Response: cd.v,
			Angle:    features.UndefinedAngle,
		})
	}
	return kps, nil
}

// Harris detects corners with the Harris response det(M) - k*trace(M)^2,
// normalized to [0, 255] before thresholding.
type Harris struct {
	BlockSize   int
	Aperture    int
	K           float64
	MinResponse float64
}

// NewHarris returns a detector with the benchmark defaults.
func NewHarris() *Harris {
	return &Harris{BlockSize: 2, Aperture: 3, K: 0.04, MinResponse: 100}
}

func (d *Harris) Kind() features.DetectorKind { return features.DetHarris }

// Detect scans the normalized response and suppresses overlapping corners,
// keeping the stronger one.
func (d *Harris) Detect(img *image.Gray) ([]features.Keypoint, error) {
	p := planeFromGray(img)
	if p.w == 0 || p.h == 0 {
		return nil, nil
	}
	dx, dy := sobel(p)
	a, b, c := structureTensor(dx, dy, d.BlockSize)

	resp := newPlane(p.w, p.h)
	minV, maxV := math.Inf(1), math.Inf(-1)
	for i := range resp.pix {
		det := a.pix[i]*c.pix[i] - b.pix[i]*b.pix[i]
		tr := a.pix[i] + c.pix[i]
		v := det - d.K*tr*tr
		resp.pix[i] = v
		minV = math.Min(minV, v)
		maxV = math.Max(maxV, v)
	}
	if maxV <= 0 || maxV == minV {
		return nil, nil
	}

	size := float64(2 * d.Aperture)
	var kps []features.Keypoint
	for y := 0; y < p.h; y++ {
		for x := 0; x < p.w; x++ {
			raw := resp.pix[y*p.w+x]
			if raw <= 0 {
				continue
			}
			norm := (raw - minV) / (maxV - minV) * 255
			if norm <= d.MinResponse {
				continue
			}
			kp := features.Keypoint{
				X:        float64(x),
				Y:        float64(y),
				Size:     size,
				Response: norm,
				Angle:    features.UndefinedAngle,
			}
			kps = suppressOverlap(kps, kp)
		}
	}
	return kps, nil
}

// suppressOverlap adds kp unless it overlaps a stronger keypoint. A weaker
// overlapping keypoint is replaced in place.
func suppressOverlap(kps []features.Keypoint, kp features.Keypoint) []features.Keypoint {
	for i, other := range kps {
		ddx, ddy := other.X-kp.X, other.Y-kp.Y
		r := (other.Size + kp.Size) / 2
		if ddx*ddx+ddy*ddy >= r*r {
			continue
		}
		if kp.Response > other.Response {
			kps[i] = kp
		}
		return kps
	}
	return append(kps, kp)
}
