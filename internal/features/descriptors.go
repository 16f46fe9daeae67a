package features

import (
	"fmt"
	"math"
)

// ElemType is the element type of a descriptor matrix.
type ElemType uint8

const (
	ElemUint8 ElemType = iota
	ElemFloat32
)

func (e ElemType) String() string {
	switch e {
	case ElemUint8:
		return "uint8"
	case ElemFloat32:
		return "float32"
	default:
		return fmt.Sprintf("ElemType(%d)", uint8(e))
	}
}

// Descriptors is a row-major matrix with one row per keypoint. Exactly one
// of the backing slices is used, depending on the element type. A nil
// *Descriptors is a valid empty set.
//
// A row can be marked missing when the extractor could not describe its
// keypoint. Missing rows keep their place so row i still belongs to
// keypoint i, but they never take part in matching.
type Descriptors struct {
	elem    ElemType
	rows    int
	cols    int
	u8      []uint8
	f32     []float32
	missing []bool
}

// NewBinaryDescriptors allocates a zeroed uint8 matrix.
func NewBinaryDescriptors(rows, cols int) *Descriptors {
	return &Descriptors{elem: ElemUint8, rows: rows, cols: cols, u8: make([]uint8, rows*cols)}
}

// NewFloatDescriptors allocates a zeroed float32 matrix.
func NewFloatDescriptors(rows, cols int) *Descriptors {
	return &Descriptors{elem: ElemFloat32, rows: rows, cols: cols, f32: make([]float32, rows*cols)}
}

// Elem returns the element type.
func (d *Descriptors) Elem() ElemType {
	if d == nil {
		return ElemUint8
	}
	return d.elem
}

// Rows returns the number of descriptors.
func (d *Descriptors) Rows() int {
	if d == nil {
		return 0
	}
	return d.rows
}

// Cols returns the length of each descriptor in elements.
func (d *Descriptors) Cols() int {
	if d == nil {
		return 0
	}
	return d.cols
}

// MarkMissing flags row i as undescribed.
func (d *Descriptors) MarkMissing(i int) {
	if d.missing == nil {
		d.missing = make([]bool, d.rows)
	}
	d.missing[i] = true
}

// Missing reports whether row i was flagged by MarkMissing.
func (d *Descriptors) Missing(i int) bool {
	return d != nil && d.missing != nil && d.missing[i]
}

// Present returns the indices of the rows that are not missing, in order.
func (d *Descriptors) Present() []int {
	out := make([]int, 0, d.Rows())
	for i := 0; i < d.Rows(); i++ {
		if !d.Missing(i) {
			out = append(out, i)
		}
	}
	return out
}

// BinaryRow returns row i of a uint8 matrix. The slice aliases the matrix.
func (d *Descriptors) BinaryRow(i int) []uint8 {
	return d.u8[i*d.cols : (i+1)*d.cols]
}

// FloatRow returns row i of a float32 matrix. The slice aliases the matrix.
func (d *Descriptors) FloatRow(i int) []float32 {
	return d.f32[i*d.cols : (i+1)*d.cols]
}

// Float64Row copies row i into dst as float64 values, whatever the element
// type, and returns dst resized to Cols().
func (d *Descriptors) Float64Row(i int, dst []float64) []float64 {
	if cap(dst) < d.cols {
		dst = make([]float64, d.cols)
	}
	dst = dst[:d.cols]
	switch d.elem {
	case ElemFloat32:
		for j, v := range d.FloatRow(i) {
			dst[j] = float64(v)
		}
	default:
		for j, v := range d.BinaryRow(i) {
			dst[j] = float64(v)
		}
	}
	return dst
}

// SaturateUint8 returns a uint8 copy of the matrix. Float elements are
// rounded half to even and clamped to [0, 255]. A uint8 matrix is returned
// unchanged.
func (d *Descriptors) SaturateUint8() *Descriptors {
	if d == nil || d.elem == ElemUint8 {
		return d
	}
	out := NewBinaryDescriptors(d.rows, d.cols)
	for i, v := range d.f32 {
		out.u8[i] = saturateUint8(float64(v))
	}
	if d.missing != nil {
		out.missing = append([]bool(nil), d.missing...)
	}
	return out
}

func saturateUint8(v float64) uint8 {
	if math.IsNaN(v) {
		return 0
	}
	r := math.RoundToEven(v)
	switch {
	case r <= 0:
		return 0
	case r >= 255:
		return 255
	default:
		return uint8(r)
	}
}
