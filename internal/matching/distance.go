package matching

import (
	"github.com/steakknife/hamming"
	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/featurebench/internal/features"
)

// distanceFunc measures source row q against reference row r.
type distanceFunc func(q, r int) float64

func hammingDistance(src, ref *features.Descriptors) distanceFunc {
	return func(q, r int) float64 {
		return float64(hamming.Bytes(src.BinaryRow(q), ref.BinaryRow(r)))
	}
}

// l2Distance converts both matrices to float64 once up front.
func l2Distance(src, ref *features.Descriptors) distanceFunc {
	s, r := toFloat64Rows(src), toFloat64Rows(ref)
	return func(q, i int) float64 {
		return floats.Distance(s[q], r[i], 2)
	}
}

func toFloat64Rows(d *features.Descriptors) [][]float64 {
	rows := make([][]float64, d.Rows())
	for i := range rows {
		rows[i] = d.Float64Row(i, nil)
	}
	return rows
}
