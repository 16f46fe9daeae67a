package matching

import (
	"math"
	"math/rand"
	"testing"

	"github.com/steakknife/hamming"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/featurebench/internal/features"
)

func randomBinary(rng *rand.Rand, rows, cols int) *features.Descriptors {
	d := features.NewBinaryDescriptors(rows, cols)
	for i := 0; i < rows; i++ {
		rng.Read(d.BinaryRow(i))
	}
	return d
}

func randomFloat(rng *rand.Rand, rows, cols int) *features.Descriptors {
	d := features.NewFloatDescriptors(rows, cols)
	for i := 0; i < rows; i++ {
		row := d.FloatRow(i)
		for j := range row {
			row[j] = float32(rng.Intn(200))
		}
	}
	return d
}

func request(src, ref *features.Descriptors, family features.Family, b Backend, s Selector) Request {
	return Request{
		SourceKeypoints: make([]features.Keypoint, src.Rows()),
		RefKeypoints:    make([]features.Keypoint, ref.Rows()),
		Source:          src,
		Ref:             ref,
		Family:          family,
		Backend:         b,
		Selector:        s,
	}
}

// shuffledCopy returns ref and perm such that ref row perm[i] equals src row i.
func shuffledCopy(rng *rand.Rand, src *features.Descriptors) (*features.Descriptors, []int) {
	perm := rng.Perm(src.Rows())
	var ref *features.Descriptors
	if src.Elem() == features.ElemFloat32 {
		ref = features.NewFloatDescriptors(src.Rows(), src.Cols())
		for i, p := range perm {
			copy(ref.FloatRow(p), src.FloatRow(i))
		}
	} else {
		ref = features.NewBinaryDescriptors(src.Rows(), src.Cols())
		for i, p := range perm {
			copy(ref.BinaryRow(p), src.BinaryRow(i))
		}
	}
	return ref, perm
}

func TestMatch_NNOnePerSourceRow(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewSource(3))
	src := randomBinary(rng, 40, 32)
	ref := randomBinary(rng, 25, 32)
	m := NewMatcher(nil)

	for _, b := range []Backend{BackendBF, BackendFLANN} {
		got, err := m.Match(request(src, ref, features.FamilyBinary, b, SelectNN))
		require.NoError(t, err, b)
		require.Len(t, got, src.Rows(), b)
		for i, mt := range got {
			assert.Equal(t, i, mt.QueryIdx)
			assert.GreaterOrEqual(t, mt.TrainIdx, 0)
			assert.Less(t, mt.TrainIdx, ref.Rows())
		}
	}
}

func TestMatch_NNBruteForceIsExact(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewSource(5))
	src := randomBinary(rng, 10, 32)
	ref := randomBinary(rng, 30, 32)

	got, err := NewMatcher(nil).Match(request(src, ref, features.FamilyBinary, BackendBF, SelectNN))
	require.NoError(t, err)
	for _, mt := range got {
		best := math.Inf(1)
		for r := 0; r < ref.Rows(); r++ {
			best = math.Min(best, float64(hamming.Bytes(src.BinaryRow(mt.QueryIdx), ref.BinaryRow(r))))
		}
		assert.Equal(t, best, mt.Distance)
	}
}

func TestMatch_KNNRatioNeverReachesThreshold(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewSource(11))
	src := randomBinary(rng, 60, 32)
	ref, _ := shuffledCopy(rng, src)
	// Perturb half of the reference rows so only some matches are unambiguous.
	for i := 0; i < ref.Rows(); i += 2 {
		rng.Read(ref.BinaryRow(i)[:20])
	}

	got, err := NewMatcher(nil).Match(request(src, ref, features.FamilyBinary, BackendBF, SelectKNN))
	require.NoError(t, err)
	require.NotEmpty(t, got)

	for _, mt := range got {
		second := math.Inf(1)
		for r := 0; r < ref.Rows(); r++ {
			d := float64(hamming.Bytes(src.BinaryRow(mt.QueryIdx), ref.BinaryRow(r)))
			if r != mt.TrainIdx && d < second {
				second = d
			}
		}
		assert.Less(t, mt.Distance/second, RatioThreshold, "query %d", mt.QueryIdx)
	}
}

func TestMatch_KNNRejectsAmbiguous(t *testing.T) {
	t.Parallel()
	src := features.NewBinaryDescriptors(2, 1)
	ref := features.NewBinaryDescriptors(3, 1)
	copy(src.BinaryRow(0), []byte{0x00})
	copy(src.BinaryRow(1), []byte{0x0f})
	copy(ref.BinaryRow(0), []byte{0x01}) // d=1 from row 0
	copy(ref.BinaryRow(1), []byte{0x02}) // d=1 from row 0
	copy(ref.BinaryRow(2), []byte{0x0f}) // exact for row 1

	got, err := NewMatcher(nil).Match(request(src, ref, features.FamilyBinary, BackendBF, SelectKNN))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, features.Match{QueryIdx: 1, TrainIdx: 2, Distance: 0}, got[0])
}

func TestMatch_KNNNeedsTwoCandidates(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewSource(1))
	src := randomBinary(rng, 4, 32)
	ref := randomBinary(rng, 1, 32)

	for _, b := range []Backend{BackendBF, BackendFLANN} {
		got, err := NewMatcher(nil).Match(request(src, ref, features.FamilyBinary, b, SelectKNN))
		require.NoError(t, err)
		assert.Empty(t, got, b)

		nn, err := NewMatcher(nil).Match(request(src, ref, features.FamilyBinary, b, SelectNN))
		require.NoError(t, err)
		assert.Len(t, nn, 4, b)
	}
}

func TestMatch_EmptySets(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewSource(2))
	src := randomBinary(rng, 4, 32)
	m := NewMatcher(nil)

	got, err := m.Match(request(src, features.NewBinaryDescriptors(0, 32), features.FamilyBinary, BackendBF, SelectNN))
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = m.Match(Request{Family: features.FamilyBinary, Backend: BackendFLANN, Selector: SelectKNN})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMatch_ShapeMismatch(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewSource(4))
	m := NewMatcher(nil)

	_, err := m.Match(request(randomBinary(rng, 3, 32), randomBinary(rng, 3, 64), features.FamilyBinary, BackendBF, SelectNN))
	assert.ErrorIs(t, err, ErrShapeMismatch)

	req := request(randomBinary(rng, 3, 32), randomBinary(rng, 3, 32), features.FamilyBinary, BackendBF, SelectNN)
	req.SourceKeypoints = req.SourceKeypoints[:2]
	_, err = m.Match(req)
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestMatch_ZeroWidthSideIsEmpty(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewSource(6))
	m := NewMatcher(nil)

	for _, b := range []Backend{BackendBF, BackendFLANN} {
		got, err := m.Match(request(features.NewBinaryDescriptors(3, 0), randomBinary(rng, 3, 61), features.FamilyBinary, b, SelectNN))
		require.NoError(t, err, b)
		assert.Empty(t, got, b)

		got, err = m.Match(request(randomFloat(rng, 3, 128), features.NewFloatDescriptors(5, 0), features.FamilyHistogram, b, SelectKNN))
		require.NoError(t, err, b)
		assert.Empty(t, got, b)
	}
}

func TestMatch_SkipsMissingRows(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewSource(12))
	src := randomBinary(rng, 6, 32)
	ref, perm := shuffledCopy(rng, src)

	// Two undescribed zero rows would otherwise pair at distance 0.
	for i := range src.BinaryRow(0) {
		src.BinaryRow(0)[i] = 0
		ref.BinaryRow(perm[0])[i] = 0
	}
	src.MarkMissing(0)
	ref.MarkMissing(perm[0])

	for _, b := range []Backend{BackendBF, BackendFLANN} {
		for _, s := range []Selector{SelectNN, SelectKNN} {
			got, err := NewMatcher(nil).Match(request(src, ref, features.FamilyBinary, b, s))
			require.NoError(t, err)
			require.Len(t, got, src.Rows()-1, "%s/%s", b, s)
			for _, mt := range got {
				assert.NotEqual(t, 0, mt.QueryIdx)
				assert.NotEqual(t, perm[0], mt.TrainIdx)
				assert.Equal(t, perm[mt.QueryIdx], mt.TrainIdx)
			}
		}
	}
}

func TestMatch_HistogramUsesL2(t *testing.T) {
	t.Parallel()
	src := features.NewFloatDescriptors(1, 2)
	ref := features.NewFloatDescriptors(2, 2)
	copy(src.FloatRow(0), []float32{0, 0})
	copy(ref.FloatRow(0), []float32{3, 4})
	copy(ref.FloatRow(1), []float32{6, 8})

	got, err := NewMatcher(nil).Match(request(src, ref, features.FamilyHistogram, BackendBF, SelectKNN))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 0, got[0].TrainIdx)
	assert.InDelta(t, 5.0, got[0].Distance, 1e-9)
}

func TestMatch_FLANNFindsExactCopies(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewSource(9))
	tests := []struct {
		name   string
		src    *features.Descriptors
		family features.Family
	}{
		{"binary", randomBinary(rng, 50, 32), features.FamilyBinary},
		{"histogram", randomFloat(rng, 50, 128), features.FamilyHistogram},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, perm := shuffledCopy(rng, tt.src)
			got, err := NewMatcher(nil).Match(request(tt.src, ref, tt.family, BackendFLANN, SelectNN))
			require.NoError(t, err)
			require.Len(t, got, tt.src.Rows())
			for i, mt := range got {
				assert.Equal(t, perm[i], mt.TrainIdx)
				assert.Equal(t, 0.0, mt.Distance)
			}
		})
	}
}

func TestMatch_CoercesFloatForHamming(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewSource(21))
	src := randomFloat(rng, 8, 128)
	ref, perm := shuffledCopy(rng, src)

	for _, b := range []Backend{BackendBF, BackendFLANN} {
		got, err := NewMatcher(nil).Match(request(src, ref, features.FamilyBinary, b, SelectKNN))
		require.NoError(t, err, b)
		require.Len(t, got, src.Rows(), b)
		for _, mt := range got {
			assert.Equal(t, perm[mt.QueryIdx], mt.TrainIdx)
		}
	}
}

func TestParseBackendAndSelector(t *testing.T) {
	t.Parallel()
	b, err := ParseBackend("mat_flann")
	require.NoError(t, err)
	assert.Equal(t, BackendFLANN, b)

	s, err := ParseSelector("SEL_KNN")
	require.NoError(t, err)
	assert.Equal(t, SelectKNN, s)

	_, err = ParseBackend("MAT_KD")
	assert.ErrorIs(t, err, features.ErrUnknownKind)
	_, err = ParseSelector("SEL_RADIUS")
	assert.ErrorIs(t, err, features.ErrUnknownKind)
}
