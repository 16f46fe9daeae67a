package features

import (
	"fmt"
	"image"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/banshee-data/featurebench/internal/timeutil"
)

// Detector finds keypoints in a grayscale image. Implementations must be
// deterministic: the same image always yields the same keypoints in the
// same order.
type Detector interface {
	Kind() DetectorKind
	Detect(img *image.Gray) ([]Keypoint, error)
}

// Extractor computes one descriptor row per keypoint. Implementations never
// drop keypoints, so Rows() of the result equals len(kps).
type Extractor interface {
	Kind() DescriptorKind
	Family() Family
	Extract(kps []Keypoint, img *image.Gray) (*Descriptors, error)
}

// DetectorFactory builds a fresh detector. Detectors holding native
// resources also implement io.Closer.
type DetectorFactory func() (Detector, error)

// ExtractorFactory builds a fresh extractor.
type ExtractorFactory func() (Extractor, error)

// Registry maps kinds to the factories available in this build.
type Registry struct {
	mu         sync.RWMutex
	detectors  map[DetectorKind]DetectorFactory
	extractors map[DescriptorKind]ExtractorFactory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		detectors:  make(map[DetectorKind]DetectorFactory),
		extractors: make(map[DescriptorKind]ExtractorFactory),
	}
}

// RegisterDetector installs or replaces the factory for kind.
func (r *Registry) RegisterDetector(kind DetectorKind, f DetectorFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.detectors[kind] = f
}

// RegisterExtractor installs or replaces the factory for kind.
func (r *Registry) RegisterExtractor(kind DescriptorKind, f ExtractorFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.extractors[kind] = f
}

// HasDetector reports whether kind can be built.
func (r *Registry) HasDetector(kind DetectorKind) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.detectors[kind]
	return ok
}

// HasExtractor reports whether kind can be built.
func (r *Registry) HasExtractor(kind DescriptorKind) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.extractors[kind]
	return ok
}

// NewDetector builds a detector of the given kind.
func (r *Registry) NewDetector(kind DetectorKind) (Detector, error) {
	r.mu.RLock()
	f, ok := r.detectors[kind]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("detector %s: %w", kind, ErrUnavailable)
	}
	d, err := f()
	if err != nil {
		return nil, fmt.Errorf("failed to create detector %s: %w", kind, err)
	}
	return d, nil
}

// NewExtractor builds an extractor of the given kind.
func (r *Registry) NewExtractor(kind DescriptorKind) (Extractor, error) {
	r.mu.RLock()
	f, ok := r.extractors[kind]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("descriptor %s: %w", kind, ErrUnavailable)
	}
	e, err := f()
	if err != nil {
		return nil, fmt.Errorf("failed to create descriptor %s: %w", kind, err)
	}
	return e, nil
}

// Detectors lists the registered detector kinds in name order.
func (r *Registry) Detectors() []DetectorKind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]DetectorKind, 0, len(r.detectors))
	for k := range r.detectors {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Extractors lists the registered descriptor kinds in name order.
func (r *Registry) Extractors() []DescriptorKind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]DescriptorKind, 0, len(r.extractors))
	for k := range r.extractors {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// TimedDetect runs d on img and reports how long the detection alone took.
func TimedDetect(clock timeutil.Clock, d Detector, img *image.Gray) ([]Keypoint, time.Duration, error) {
	sw := timeutil.StartStopwatch(clock)
	kps, err := d.Detect(img)
	elapsed := sw.Elapsed()
	if err != nil {
		return nil, elapsed, fmt.Errorf("%s detection: %w", d.Kind(), err)
	}
	return kps, elapsed, nil
}

// TimedExtract runs e on kps and reports how long the extraction alone took.
func TimedExtract(clock timeutil.Clock, e Extractor, kps []Keypoint, img *image.Gray) (*Descriptors, time.Duration, error) {
	sw := timeutil.StartStopwatch(clock)
	desc, err := e.Extract(kps, img)
	elapsed := sw.Elapsed()
	if err != nil {
		return nil, elapsed, fmt.Errorf("%s extraction: %w", e.Kind(), err)
	}
	if desc.Rows() != len(kps) {
		return nil, elapsed, fmt.Errorf("%s extraction returned %d rows for %d keypoints", e.Kind(), desc.Rows(), len(kps))
	}
	return desc, elapsed, nil
}

// CloseIfCloser releases v when it holds native resources.
func CloseIfCloser(v any) error {
	if c, ok := v.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
