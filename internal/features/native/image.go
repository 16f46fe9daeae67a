package native

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
)

// plane is a float copy of a grayscale image with origin at (0, 0).
type plane struct {
	w, h int
	pix  []float64
}

func newPlane(w, h int) *plane {
	return &plane{w: w, h: h, pix: make([]float64, w*h)}
}

func planeFromGray(img *image.Gray) *plane {
	b := img.Bounds()
	p := newPlane(b.Dx(), b.Dy())
	for y := 0; y < p.h; y++ {
		off := img.PixOffset(b.Min.X, b.Min.Y+y)
		for x, v := range img.Pix[off : off+p.w] {
			p.pix[y*p.w+x] = float64(v)
		}
	}
	return p
}

// at returns the value at (x, y) with coordinates clamped into the plane.
func (p *plane) at(x, y int) float64 {
	return p.pix[clampInt(y, 0, p.h-1)*p.w+clampInt(x, 0, p.w-1)]
}

// grayAt reads a pixel of img relative to its origin, clamping into bounds.
func grayAt(img *image.Gray, x, y int) uint8 {
	b := img.Bounds()
	x = clampInt(x, 0, b.Dx()-1)
	y = clampInt(y, 0, b.Dy()-1)
	return img.Pix[img.PixOffset(b.Min.X+x, b.Min.Y+y)]
}

// sobel returns the 3x3 Sobel derivatives of p with replicated borders.
func sobel(p *plane) (dx, dy *plane) {
	dx, dy = newPlane(p.w, p.h), newPlane(p.w, p.h)
	for y := 0; y < p.h; y++ {
		for x := 0; x < p.w; x++ {
			tl, t, tr := p.at(x-1, y-1), p.at(x, y-1), p.at(x+1, y-1)
			l, r := p.at(x-1, y), p.at(x+1, y)
			bl, bm, br := p.at(x-1, y+1), p.at(x, y+1), p.at(x+1, y+1)
			dx.pix[y*p.w+x] = (tr + 2*r + br) - (tl + 2*l + bl)
			dy.pix[y*p.w+x] = (bl + 2*bm + br) - (tl + 2*t + tr)
		}
	}
	return dx, dy
}

// structureTensor sums the gradient products over a block x block window
// anchored at the window centre.
func structureTensor(dx, dy *plane, block int) (a, b, c *plane) {
	w, h := dx.w, dx.h
	xx, xy, yy := newPlane(w, h), newPlane(w, h), newPlane(w, h)
	for i := range dx.pix {
		gx, gy := dx.pix[i], dy.pix[i]
		xx.pix[i], xy.pix[i], yy.pix[i] = gx*gx, gx*gy, gy*gy
	}
	return boxSum(xx, block), boxSum(xy, block), boxSum(yy, block)
}

func boxSum(p *plane, block int) *plane {
	lo := -(block / 2)
	hi := lo + block - 1
	out := newPlane(p.w, p.h)
	for y := 0; y < p.h; y++ {
		for x := 0; x < p.w; x++ {
			var s float64
			for j := lo; j <= hi; j++ {
				for i := lo; i <= hi; i++ {
					s += p.at(x+i, y+j)
				}
			}
			out.pix[y*p.w+x] = s
		}
	}
	return out
}

// isLocalMax reports whether (x, y) is not smaller than any 8-neighbour.
func (p *plane) isLocalMax(x, y int) bool {
	v := p.pix[y*p.w+x]
	for j := -1; j <= 1; j++ {
		for i := -1; i <= 1; i++ {
			if i == 0 && j == 0 {
				continue
			}
			xx, yy := x+i, y+j
			if xx < 0 || yy < 0 || xx >= p.w || yy >= p.h {
				continue
			}
			if p.pix[yy*p.w+xx] > v {
				return false
			}
		}
	}
	return true
}

// integral is a summed-area table with one extra leading row and column.
type integral struct {
	w, h int
	sum  []int64
}

func newIntegral(img *image.Gray) *integral {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	ii := &integral{w: w, h: h, sum: make([]int64, (w+1)*(h+1))}
	for y := 0; y < h; y++ {
		var row int64
		for x := 0; x < w; x++ {
			row += int64(grayAt(img, x, y))
			ii.sum[(y+1)*(w+1)+x+1] = ii.sum[y*(w+1)+x+1] + row
		}
	}
	return ii
}

// mean returns the average intensity of the box centred on (cx, cy) with the
// given half width, clipped to the image.
func (ii *integral) mean(cx, cy, half int) float64 {
	x0 := clampInt(cx-half, 0, ii.w-1)
	y0 := clampInt(cy-half, 0, ii.h-1)
	x1 := clampInt(cx+half, 0, ii.w-1) + 1
	y1 := clampInt(cy+half, 0, ii.h-1) + 1
	s := ii.sum[y1*(ii.w+1)+x1] - ii.sum[y0*(ii.w+1)+x1] - ii.sum[y1*(ii.w+1)+x0] + ii.sum[y0*(ii.w+1)+x0]
	return float64(s) / float64((x1-x0)*(y1-y0))
}

// smooth returns a Gaussian-blurred grayscale copy of img.
func smooth(img *image.Gray, sigma float64) *image.Gray {
	blurred := imaging.Blur(img, sigma)
	b := blurred.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			out.Pix[y*out.Stride+x] = blurred.Pix[blurred.PixOffset(b.Min.X+x, b.Min.Y+y)]
		}
	}
	return out
}

// pyramid builds nlevels images, each 1/scale the size of the previous one.
func pyramid(img *image.Gray, nlevels int, scale float64) []*image.Gray {
	levels := make([]*image.Gray, 0, nlevels)
	b := img.Bounds()
	levels = append(levels, img)
	for l := 1; l < nlevels; l++ {
		f := math.Pow(scale, float64(l))
		w := int(math.Round(float64(b.Dx()) / f))
		h := int(math.Round(float64(b.Dy()) / f))
		if w < 1 || h < 1 {
			break
		}
		dst := image.NewGray(image.Rect(0, 0, w, h))
		draw.BiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
		levels = append(levels, dst)
	}
	return levels
}

// centroidAngle returns the intensity-centroid orientation of the circular
// patch of the given radius around (cx, cy), in degrees within [0, 360).
func centroidAngle(img *image.Gray, cx, cy, radius int) float64 {
	var m01, m10 float64
	r2 := radius * radius
	for v := -radius; v <= radius; v++ {
		for u := -radius; u <= radius; u++ {
			if u*u+v*v > r2 {
				continue
			}
			val := float64(grayAt(img, cx+u, cy+v))
			m10 += float64(u) * val
			m01 += float64(v) * val
		}
	}
	deg := math.Atan2(m01, m10) * 180 / math.Pi
	if deg < 0 {
		deg += 360
	}
	return deg
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
