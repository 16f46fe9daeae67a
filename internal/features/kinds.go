package features

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrUnknownKind is returned when a strategy name is not part of the closed set.
	ErrUnknownKind = errors.New("unknown kind")
	// ErrUnavailable is returned when a known kind has no implementation in this build.
	ErrUnavailable = errors.New("kind not available in this build")
)

// DetectorKind names a keypoint detection strategy.
type DetectorKind string

const (
	DetShiTomasi DetectorKind = "SHITOMASI"
	DetHarris    DetectorKind = "HARRIS"
	DetFAST      DetectorKind = "FAST"
	DetBRISK     DetectorKind = "BRISK"
	DetORB       DetectorKind = "ORB"
	DetAKAZE     DetectorKind = "AKAZE"
	DetSIFT      DetectorKind = "SIFT"
)

var detectorKinds = map[string]DetectorKind{
	"SHITOMASI": DetShiTomasi,
	"HARRIS":    DetHarris,
	"FAST":      DetFAST,
	"BRISK":     DetBRISK,
	"ORB":       DetORB,
	"AKAZE":     DetAKAZE,
	"SIFT":      DetSIFT,
}

// ParseDetectorKind maps a name to a DetectorKind. Matching is case-insensitive.
func ParseDetectorKind(s string) (DetectorKind, error) {
	k, ok := detectorKinds[strings.ToUpper(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("detector %q: %w (one of %s)", s, ErrUnknownKind, JoinKinds(DetectorKinds()))
	}
	return k, nil
}

// DetectorKinds returns every detector kind in name order.
func DetectorKinds() []DetectorKind {
	out := make([]DetectorKind, 0, len(detectorKinds))
	for _, k := range detectorKinds {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (k DetectorKind) String() string { return string(k) }

// JoinKinds renders kinds as a comma separated list, or "none".
func JoinKinds[K ~string](kinds []K) string {
	if len(kinds) == 0 {
		return "none"
	}
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}

// Family groups descriptor kinds by the distance metric they need.
type Family string

const (
	// FamilyBinary descriptors are bit strings compared with Hamming distance.
	FamilyBinary Family = "DES_BINARY"
	// FamilyHistogram descriptors are float vectors compared with L2 distance.
	FamilyHistogram Family = "DES_HOG"
)

var families = map[string]Family{
	"DES_BINARY": FamilyBinary,
	"BINARY":     FamilyBinary,
	"DES_HOG":    FamilyHistogram,
	"HOG":        FamilyHistogram,
	"HISTOGRAM":  FamilyHistogram,
}

// ParseFamily maps a name to a Family.
func ParseFamily(s string) (Family, error) {
	f, ok := families[strings.ToUpper(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("descriptor family %q: %w", s, ErrUnknownKind)
	}
	return f, nil
}

func (f Family) String() string { return string(f) }

// DescriptorKind names a descriptor extraction strategy.
type DescriptorKind string

const (
	DescBRISK DescriptorKind = "BRISK"
	DescBRIEF DescriptorKind = "BRIEF"
	DescORB   DescriptorKind = "ORB"
	DescFREAK DescriptorKind = "FREAK"
	DescAKAZE DescriptorKind = "AKAZE"
	DescSIFT  DescriptorKind = "SIFT"
)

var descriptorKinds = map[string]DescriptorKind{
	"BRISK": DescBRISK,
	"BRIEF": DescBRIEF,
	"ORB":   DescORB,
	"FREAK": DescFREAK,
	"AKAZE": DescAKAZE,
	"SIFT":  DescSIFT,
}

// ParseDescriptorKind maps a name to a DescriptorKind. Matching is case-insensitive.
func ParseDescriptorKind(s string) (DescriptorKind, error) {
	k, ok := descriptorKinds[strings.ToUpper(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("descriptor %q: %w (one of %s)", s, ErrUnknownKind, JoinKinds(DescriptorKinds()))
	}
	return k, nil
}

// DescriptorKinds returns every descriptor kind in name order.
func DescriptorKinds() []DescriptorKind {
	out := make([]DescriptorKind, 0, len(descriptorKinds))
	for _, k := range descriptorKinds {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Family returns the metric family of the descriptor: histogram for SIFT,
// binary for everything else.
func (k DescriptorKind) Family() Family {
	if k == DescSIFT {
		return FamilyHistogram
	}
	return FamilyBinary
}

func (k DescriptorKind) String() string { return string(k) }
