// Package matching pairs descriptors of the previous frame with descriptors
// of the current frame.
package matching

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/banshee-data/featurebench/internal/features"
)

// RatioThreshold is the maximum accepted d1/d2 ratio of the kNN selector.
const RatioThreshold = 0.8

// ErrShapeMismatch is returned when source and reference descriptors cannot
// be compared, or a matrix does not have one row per keypoint.
var ErrShapeMismatch = errors.New("descriptor shape mismatch")

// Request is one matching call between two consecutive frames.
type Request struct {
	SourceKeypoints []features.Keypoint
	RefKeypoints    []features.Keypoint
	Source          *features.Descriptors
	Ref             *features.Descriptors
	Family          features.Family
	Backend         Backend
	Selector        Selector
}

// Matcher runs descriptor matching requests.
type Matcher struct {
	logger *slog.Logger
	// Seed drives the random projections of the LSH index.
	Seed int64
}

// NewMatcher returns a Matcher logging to logger, or slog.Default() when nil.
func NewMatcher(logger *slog.Logger) *Matcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Matcher{logger: logger, Seed: 1}
}

// Match returns the accepted matches in ascending QueryIdx order. The metric
// follows the descriptor family alone: Hamming for binary descriptors, L2
// for histogram descriptors.
func (m *Matcher) Match(req Request) ([]features.Match, error) {
	src, ref := req.Source, req.Ref
	if src.Rows() != len(req.SourceKeypoints) || ref.Rows() != len(req.RefKeypoints) {
		return nil, fmt.Errorf("%w: %d/%d source rows, %d/%d reference rows",
			ErrShapeMismatch, src.Rows(), len(req.SourceKeypoints), ref.Rows(), len(req.RefKeypoints))
	}
	// A zero-width matrix means the extractor described none of its
	// keypoints; like an empty frame it simply has nothing to match.
	if src.Rows() == 0 || ref.Rows() == 0 || src.Cols() == 0 || ref.Cols() == 0 {
		return []features.Match{}, nil
	}
	if src.Cols() != ref.Cols() {
		return nil, fmt.Errorf("%w: %d source columns, %d reference columns", ErrShapeMismatch, src.Cols(), ref.Cols())
	}

	family := req.Family
	if family == "" {
		family = features.FamilyBinary
	}

	// A float matrix handed to the Hamming metric happens when a histogram
	// descriptor is configured with the binary family. Both sides are
	// saturated to bytes so the popcount sees comparable data.
	if family == features.FamilyBinary && (src.Elem() == features.ElemFloat32 || ref.Elem() == features.ElemFloat32) {
		m.logger.Debug("coercing float descriptors for hamming metric",
			"source_elem", src.Elem().String(), "ref_elem", ref.Elem().String())
		src, ref = src.SaturateUint8(), ref.SaturateUint8()
	}

	var metric distanceFunc
	switch family {
	case features.FamilyBinary:
		metric = hammingDistance(src, ref)
	case features.FamilyHistogram:
		metric = l2Distance(src, ref)
	default:
		return nil, fmt.Errorf("descriptor family %q: %w", family, features.ErrUnknownKind)
	}

	k := 1
	switch req.Selector {
	case SelectNN, "":
	case SelectKNN:
		k = 2
	default:
		return nil, fmt.Errorf("selector %q: %w", req.Selector, features.ErrUnknownKind)
	}

	refRows := ref.Present()
	var idx index
	switch req.Backend {
	case BackendBF, "":
		idx = &bruteForce{rows: refRows, dist: metric}
	case BackendFLANN:
		idx = newLSH(src, ref, refRows, family, metric, m.Seed)
	default:
		return nil, fmt.Errorf("matcher %q: %w", req.Backend, features.ErrUnknownKind)
	}

	matches := make([]features.Match, 0, src.Rows())
	for _, q := range src.Present() {
		nn := idx.search(q, k)
		if len(nn) == 0 {
			continue
		}
		if k == 2 {
			if len(nn) < 2 || !(nn[0].dist < RatioThreshold*nn[1].dist) {
				continue
			}
		}
		matches = append(matches, features.Match{QueryIdx: q, TrainIdx: nn[0].idx, Distance: nn[0].dist})
	}
	return matches, nil
}
