package native

import (
	"image"

	"github.com/banshee-data/featurebench/internal/features"
)

// Bresenham circle of radius 3, clockwise from the top.
var fastCircle = [16][2]int{
	{0, -3}, {1, -3}, {2, -2}, {3, -1}, {3, 0}, {3, 1}, {2, 2}, {1, 3},
	{0, 3}, {-1, 3}, {-2, 2}, {-3, 1}, {-3, 0}, {-3, -1}, {-2, -2}, {-1, -3},
}

const fastArc = 9

type corner struct {
	x, y  int
	score float64
}

// fastCorners runs the 9-of-16 segment test on every pixel at least border
// pixels away from the edge and keeps 3x3 score maxima.
func fastCorners(img *image.Gray, threshold, border int) []corner {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if border < 3 {
		border = 3
	}
	scores := newPlane(w, h)
	var found []corner
	for y := border; y < h-border; y++ {
		for x := border; x < w-border; x++ {
			if s, ok := segmentTest(img, x, y, threshold); ok {
				scores.pix[y*w+x] = s
				found = append(found, corner{x: x, y: y, score: s})
			}
		}
	}

	out := found[:0]
	for _, c := range found {
		if scores.isLocalMax(c.x, c.y) && !tieBefore(scores, c) {
			out = append(out, c)
		}
	}
	return out
}

// tieBefore breaks plateaus of equal scores in favour of the first pixel in
// scan order.
func tieBefore(scores *plane, c corner) bool {
	for _, o := range [4][2]int{{-1, -1}, {0, -1}, {1, -1}, {-1, 0}} {
		x, y := c.x+o[0], c.y+o[1]
		if x < 0 || y < 0 || x >= scores.w {
			continue
		}
		if scores.pix[y*scores.w+x] == c.score {
			return true
		}
	}
	return false
}

// segmentTest reports whether at least nine contiguous circle pixels are all
// brighter than centre+t or all darker than centre-t. The score is the sum
// of absolute differences beyond t over the winning side.
func segmentTest(img *image.Gray, x, y, t int) (float64, bool) {
	c := int(grayAt(img, x, y))
	var state [16]int8
	var diff [16]int
	for i, o := range fastCircle {
		v := int(grayAt(img, x+o[0], y+o[1]))
		diff[i] = v - c
		switch {
		case v > c+t:
			state[i] = 1
		case v < c-t:
			state[i] = -1
		}
	}
	// Any arc of nine contains pixel 0 or pixel 8.
	if state[0] == 0 && state[8] == 0 {
		return 0, false
	}

	bright, dark := hasArc(&state, 1), hasArc(&state, -1)
	if !bright && !dark {
		return 0, false
	}
	var sb, sd float64
	for i, d := range diff {
		switch state[i] {
		case 1:
			sb += float64(d - t)
		case -1:
			sd += float64(-d - t)
		}
	}
	switch {
	case bright && dark:
		return max(sb, sd), true
	case bright:
		return sb, true
	default:
		return sd, true
	}
}

func hasArc(state *[16]int8, want int8) bool {
	run := 0
	for i := 0; i < 16+fastArc-1; i++ {
		if state[i%16] == want {
			run++
			if run >= fastArc {
				return true
			}
		} else {
			run = 0
		}
	}
	return false
}

// FAST is the features-from-accelerated-segment-test detector.
type FAST struct {
	Threshold int
	Size      float64
}

// NewFAST returns a detector with threshold 10 and keypoint size 7.
func NewFAST() *FAST {
	return &FAST{Threshold: 10, Size: 7}
}

func (d *FAST) Kind() features.DetectorKind { return features.DetFAST }

func (d *FAST) Detect(img *image.Gray) ([]features.Keypoint, error) {
	corners := fastCorners(img, d.Threshold, 3)
	kps := make([]features.Keypoint, 0, len(corners))
	for _, c := range corners {
		kps = append(kps, features.Keypoint{
			X:        float64(c.x),
			Y:        float64(c.y),
			Size:     d.Size,
			Response: c.score,
			Angle:    features.UndefinedAngle,
		})
	}
	return kps, nil
}
