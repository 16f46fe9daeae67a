// Package imagesource loads numbered camera frames as grayscale images.
package imagesource

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Source yields the frame with the given image index.
type Source interface {
	Load(index int) (*image.Gray, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(index int) (*image.Gray, error)

// Load calls f(index).
func (f SourceFunc) Load(index int) (*image.Gray, error) { return f(index) }

// FileSource reads frames named BaseDir + Prefix + zero-padded index + Ext,
// for example "../images/KITTI/2011_09_26/image_00/data/0000000007.png".
type FileSource struct {
	BaseDir   string
	Prefix    string
	FillWidth int
	Ext       string
}

// Path returns the file name of the frame with the given index.
func (s FileSource) Path(index int) string {
	return fmt.Sprintf("%s%s%0*d%s", s.BaseDir, s.Prefix, s.FillWidth, index, s.Ext)
}

// Load decodes the frame and converts it to grayscale.
func (s FileSource) Load(index int) (*image.Gray, error) {
	path := s.Path(index)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image %d: %w", index, err)
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", path, err)
	}
	if format == "" {
		return nil, fmt.Errorf("unknown image format: %s", path)
	}
	return ToGray(img), nil
}

// ToGray converts img to 8-bit grayscale with BT.601 luma weights. The
// result always has its origin at (0, 0).
func ToGray(img image.Image) *image.Gray {
	b := img.Bounds()
	if g, ok := img.(*image.Gray); ok && b.Min == (image.Point{}) {
		return g
	}
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}
