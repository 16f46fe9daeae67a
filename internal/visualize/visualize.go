// Package visualize renders keypoints and matches of consecutive frames.
package visualize

import (
	"bufio"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"golang.org/x/image/draw"
	"golang.org/x/image/vector"

	"github.com/banshee-data/featurebench/internal/features"
	"github.com/banshee-data/featurebench/internal/framebuf"
	"github.com/banshee-data/featurebench/internal/security"
)

// Visualizer receives every matched frame pair of a configuration.
type Visualizer interface {
	// Begin announces a new configuration, e.g. "FAST_BRIEF".
	Begin(label string)
	Show(prev, curr *framebuf.Frame) error
}

var (
	keypointColor = color.RGBA{R: 0, G: 200, B: 255, A: 255}
	matchColor    = color.RGBA{R: 255, G: 64, B: 32, A: 255}
)

// PNG writes a side-by-side image per frame pair into Dir: the previous
// frame on the left, the current frame on the right, keypoints as circles
// and matches as lines between them.
type PNG struct {
	Dir string
	// Interactive blocks after each image until a line is read from In.
	Interactive bool
	In          io.Reader
	Out         io.Writer

	logger *slog.Logger
	label  string
	reader *bufio.Reader
}

// NewPNG returns a PNG visualizer writing into dir.
func NewPNG(dir string, interactive bool, logger *slog.Logger) *PNG {
	if logger == nil {
		logger = slog.Default()
	}
	return &PNG{Dir: dir, Interactive: interactive, In: os.Stdin, Out: os.Stdout, logger: logger}
}

func (v *PNG) Begin(label string) { v.label = label }

// Show renders and saves one frame pair.
func (v *PNG) Show(prev, curr *framebuf.Frame) error {
	if prev == nil || curr == nil {
		return nil
	}
	canvas := Render(prev, curr)

	if err := os.MkdirAll(v.Dir, 0o755); err != nil {
		return fmt.Errorf("failed to create visualization dir: %w", err)
	}
	name := fmt.Sprintf("%s_%04d_%04d.png", security.SanitizeFilename(v.label), prev.Index, curr.Index)
	path := filepath.Join(v.Dir, name)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := png.Encode(f, canvas); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	v.logger.Debug("wrote match visualization", "path", path, "matches", len(curr.Matches))

	if v.Interactive {
		if v.reader == nil {
			v.reader = bufio.NewReader(v.In)
		}
		fmt.Fprintf(v.Out, "%s: press Enter to continue\n", path)
		if _, err := v.reader.ReadString('\n'); err != nil && err != io.EOF {
			return fmt.Errorf("failed to read from input: %w", err)
		}
	}
	return nil
}

// Render draws the pair onto a new RGBA canvas.
func Render(prev, curr *framebuf.Frame) *image.RGBA {
	pb, cb := prev.Image.Bounds(), curr.Image.Bounds()
	w := pb.Dx() + cb.Dx()
	h := max(pb.Dy(), cb.Dy())
	canvas := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(canvas, image.Rect(0, 0, pb.Dx(), pb.Dy()), prev.Image, pb.Min, draw.Src)
	draw.Draw(canvas, image.Rect(pb.Dx(), 0, w, cb.Dy()), curr.Image, cb.Min, draw.Src)

	offset := float32(pb.Dx())
	z := vector.NewRasterizer(w, h)
	for _, kp := range prev.Keypoints {
		ring(z, float32(kp.X), float32(kp.Y), radius(kp))
	}
	for _, kp := range curr.Keypoints {
		ring(z, float32(kp.X)+offset, float32(kp.Y), radius(kp))
	}
	z.Draw(canvas, canvas.Bounds(), image.NewUniform(keypointColor), image.Point{})

	z.Reset(w, h)
	for _, m := range curr.Matches {
		if m.QueryIdx >= len(prev.Keypoints) || m.TrainIdx >= len(curr.Keypoints) {
			continue
		}
		a, b := prev.Keypoints[m.QueryIdx], curr.Keypoints[m.TrainIdx]
		line(z, float32(a.X), float32(a.Y), float32(b.X)+offset, float32(b.Y), 1)
	}
	z.Draw(canvas, canvas.Bounds(), image.NewUniform(matchColor), image.Point{})
	return canvas
}

func radius(kp features.Keypoint) float32 {
	return float32(math.Max(kp.Size/2, 2))
}

// ring adds a one pixel wide circle outline. The inner contour runs the
// opposite way so it cuts a hole.
func ring(z *vector.Rasterizer, cx, cy, r float32) {
	const n = 16
	polygon := func(rad float32, dir float64) {
		for i := 0; i <= n; i++ {
			a := dir * 2 * math.Pi * float64(i) / n
			x := cx + rad*float32(math.Cos(a))
			y := cy + rad*float32(math.Sin(a))
			if i == 0 {
				z.MoveTo(x, y)
			} else {
				z.LineTo(x, y)
			}
		}
		z.ClosePath()
	}
	polygon(r+0.5, 1)
	polygon(r-0.5, -1)
}

// line adds a segment of the given width as a quad.
func line(z *vector.Rasterizer, x0, y0, x1, y1, width float32) {
	dx, dy := x1-x0, y1-y0
	l := float32(math.Hypot(float64(dx), float64(dy)))
	if l == 0 {
		return
	}
	nx, ny := -dy/l*width/2, dx/l*width/2
	z.MoveTo(x0+nx, y0+ny)
	z.LineTo(x1+nx, y1+ny)
	z.LineTo(x1-nx, y1-ny)
	z.LineTo(x0-nx, y0-ny)
	z.ClosePath()
}
