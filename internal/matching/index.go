package matching

import (
	"math/rand"
	"sort"

	"github.com/banshee-data/featurebench/internal/features"
)

type neighbor struct {
	idx  int
	dist float64
}

// index answers k-nearest-neighbour queries for source rows against the
// reference set.
type index interface {
	search(q, k int) []neighbor
}

// closest returns the k candidates with the smallest distance, ties broken
// by reference index.
func closest(q, k int, cands []int, dist distanceFunc) []neighbor {
	nn := make([]neighbor, 0, len(cands))
	for _, r := range cands {
		nn = append(nn, neighbor{idx: r, dist: dist(q, r)})
	}
	sort.Slice(nn, func(i, j int) bool {
		if nn[i].dist != nn[j].dist {
			return nn[i].dist < nn[j].dist
		}
		return nn[i].idx < nn[j].idx
	})
	if len(nn) > k {
		nn = nn[:k]
	}
	return nn
}

// bruteForce compares every query against every listed reference row.
type bruteForce struct {
	rows []int
	dist distanceFunc
}

func (b *bruteForce) search(q, k int) []neighbor {
	return closest(q, k, b.rows, b.dist)
}

const (
	lshTables  = 12
	lshKeyBits = 20
)

// lsh hashes every reference row into lshTables buckets. Binary rows are
// hashed by sampling bits, float rows by the sign of random projections
// around the reference mean. Queries look up their own bucket and every
// bucket one bit flip away.
type lsh struct {
	hashSrc func(table, q int) uint32
	buckets [lshTables]map[uint32][]int
	brute   *bruteForce
	dist    distanceFunc
}

func newLSH(src, ref *features.Descriptors, refRows []int, family features.Family, dist distanceFunc, seed int64) *lsh {
	rng := rand.New(rand.NewSource(seed))
	l := &lsh{dist: dist, brute: &bruteForce{rows: refRows, dist: dist}}

	var hashRef func(table, r int) uint32
	if family == features.FamilyBinary {
		bits := src.Cols() * 8
		var sample [lshTables][lshKeyBits]int
		for t := range sample {
			for b := range sample[t] {
				sample[t][b] = rng.Intn(bits)
			}
		}
		hash := func(d *features.Descriptors, t, row int) uint32 {
			data := d.BinaryRow(row)
			var key uint32
			for b, bit := range sample[t] {
				if data[bit/8]&(1<<uint(bit%8)) != 0 {
					key |= 1 << uint(b)
				}
			}
			return key
		}
		hashRef = func(t, r int) uint32 { return hash(ref, t, r) }
		l.hashSrc = func(t, q int) uint32 { return hash(src, t, q) }
	} else {
		srcVecs, refVecs := toFloat64Rows(src), toFloat64Rows(ref)
		dim := src.Cols()
		mean := make([]float64, dim)
		for _, r := range refRows {
			for i, v := range refVecs[r] {
				mean[i] += v / float64(len(refRows))
			}
		}
		var planes [lshTables][lshKeyBits][]float64
		for t := range planes {
			for b := range planes[t] {
				p := make([]float64, dim)
				for i := range p {
					p[i] = rng.NormFloat64()
				}
				planes[t][b] = p
			}
		}
		hash := func(row []float64, t int) uint32 {
			var key uint32
			for b, p := range planes[t] {
				var dot float64
				for i, v := range row {
					dot += (v - mean[i]) * p[i]
				}
				if dot > 0 {
					key |= 1 << uint(b)
				}
			}
			return key
		}
		hashRef = func(t, r int) uint32 { return hash(refVecs[r], t) }
		l.hashSrc = func(t, q int) uint32 { return hash(srcVecs[q], t) }
	}

	for t := range l.buckets {
		l.buckets[t] = make(map[uint32][]int)
		for _, r := range refRows {
			key := hashRef(t, r)
			l.buckets[t][key] = append(l.buckets[t][key], r)
		}
	}
	return l
}

func (l *lsh) search(q, k int) []neighbor {
	seen := make(map[int]struct{})
	var cands []int
	add := func(rows []int) {
		for _, r := range rows {
			if _, ok := seen[r]; !ok {
				seen[r] = struct{}{}
				cands = append(cands, r)
			}
		}
	}
	for t := range l.buckets {
		key := l.hashSrc(t, q)
		add(l.buckets[t][key])
		for b := 0; b < lshKeyBits; b++ {
			add(l.buckets[t][key^(1<<uint(b))])
		}
	}
	if len(cands) < k {
		return l.brute.search(q, k)
	}
	return closest(q, k, cands, l.dist)
}
