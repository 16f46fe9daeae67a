package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/featurebench/internal/features"
	"github.com/banshee-data/featurebench/internal/matching"
)

// DefaultConfigPath is the path to the canonical benchmark defaults file.
const DefaultConfigPath = "config/featurebench.defaults.json"

// ErrIncompatible is returned for strategy combinations that cannot run
// together, such as the AKAZE descriptor on non-AKAZE keypoints.
var ErrIncompatible = errors.New("incompatible strategy combination")

// BenchConfig is the root benchmark configuration. Every field is optional;
// the Get* accessors supply the defaults.
type BenchConfig struct {
	// Image source
	ImageBasePath   *string `json:"image_base_path,omitempty"`
	ImagePrefix     *string `json:"image_prefix,omitempty"`
	ImageFileType   *string `json:"image_file_type,omitempty"`
	ImageFillWidth  *int    `json:"image_fill_width,omitempty"`
	ImageStartIndex *int    `json:"image_start_index,omitempty"`
	ImageEndIndex   *int    `json:"image_end_index,omitempty"`

	// Pipeline
	BufferCapacity *int `json:"buffer_capacity,omitempty"`

	// Strategies; every detector is run with every descriptor.
	DetectorTypes   []string `json:"detector_types,omitempty"`
	DescriptorTypes []string `json:"descriptor_types,omitempty"`
	// DescriptorFamily overrides the family derived from the descriptor
	// kind. "DES_BINARY" with SIFT exercises the float-to-byte coercion.
	DescriptorFamily *string `json:"descriptor_family,omitempty"`
	MatcherType      *string `json:"matcher_type,omitempty"`
	SelectorType     *string `json:"selector_type,omitempty"`
	LSHSeed          *int64  `json:"lsh_seed,omitempty"`

	// Keypoint filtering
	FocusOnVehicle *bool          `json:"focus_on_vehicle,omitempty"`
	FocusRect      *features.Rect `json:"focus_rect,omitempty"`
	LimitKeypoints *bool          `json:"limit_keypoints,omitempty"`
	MaxKeypoints   *int           `json:"max_keypoints,omitempty"`

	Visualize *bool `json:"visualize,omitempty"`
}

// Combination is one detector/descriptor pair to benchmark.
type Combination struct {
	Detector   features.DetectorKind
	Descriptor features.DescriptorKind
	Family     features.Family
}

// Label returns "DETECTOR_DESCRIPTOR".
func (c Combination) Label() string {
	return fmt.Sprintf("%s_%s", c.Detector, c.Descriptor)
}

// EmptyBenchConfig returns a BenchConfig with all fields unset.
func EmptyBenchConfig() *BenchConfig {
	return &BenchConfig{}
}

// LoadBenchConfig loads a BenchConfig from a JSON file.
// The file must have a .json extension and be under 1MB. Omitted fields
// fall back to the defaults of the Get* accessors.
func LoadBenchConfig(path string) (*BenchConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyBenchConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents. Panics if the file cannot be loaded, intended
// for test setup.
func MustLoadDefaultConfig() *BenchConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/features/native/
		"../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadBenchConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks value ranges and that every strategy name is known.
// Whether a kind is available in this build is checked by the pipeline.
func (c *BenchConfig) Validate() error {
	if c.ImageFillWidth != nil && *c.ImageFillWidth < 0 {
		return fmt.Errorf("image_fill_width must be non-negative, got %d", *c.ImageFillWidth)
	}
	if c.ImageStartIndex != nil && *c.ImageStartIndex < 0 {
		return fmt.Errorf("image_start_index must be non-negative, got %d", *c.ImageStartIndex)
	}
	if c.GetImageEndIndex() < c.GetImageStartIndex() {
		return fmt.Errorf("image_end_index %d is before image_start_index %d", c.GetImageEndIndex(), c.GetImageStartIndex())
	}
	if c.BufferCapacity != nil && *c.BufferCapacity < 1 {
		return fmt.Errorf("buffer_capacity must be positive, got %d", *c.BufferCapacity)
	}
	if c.MaxKeypoints != nil && *c.MaxKeypoints < 1 {
		return fmt.Errorf("max_keypoints must be positive, got %d", *c.MaxKeypoints)
	}
	if c.FocusRect != nil && c.FocusRect.Empty() {
		return fmt.Errorf("focus_rect must have positive width and height, got %+v", *c.FocusRect)
	}
	if _, err := c.Combinations(); err != nil {
		return err
	}
	if _, err := c.GetMatcherType(); err != nil {
		return err
	}
	if _, err := c.GetSelectorType(); err != nil {
		return err
	}
	return nil
}

// Combinations returns every detector x descriptor pair in configuration
// order.
func (c *BenchConfig) Combinations() ([]Combination, error) {
	var override features.Family
	if c.DescriptorFamily != nil && *c.DescriptorFamily != "" {
		f, err := features.ParseFamily(*c.DescriptorFamily)
		if err != nil {
			return nil, err
		}
		override = f
	}

	var out []Combination
	for _, dn := range c.GetDetectorTypes() {
		det, err := features.ParseDetectorKind(dn)
		if err != nil {
			return nil, err
		}
		for _, sn := range c.GetDescriptorTypes() {
			desc, err := features.ParseDescriptorKind(sn)
			if err != nil {
				return nil, err
			}
			if desc == features.DescAKAZE && det != features.DetAKAZE {
				return nil, fmt.Errorf("%s descriptor on %s keypoints: %w", desc, det, ErrIncompatible)
			}
			family := desc.Family()
			if override != "" {
				family = override
			}
			out = append(out, Combination{Detector: det, Descriptor: desc, Family: family})
		}
	}
	return out, nil
}

// GetImageBasePath returns the image_base_path value or the default.
func (c *BenchConfig) GetImageBasePath() string {
	if c.ImageBasePath == nil {
		return "../images/"
	}
	return *c.ImageBasePath
}

// GetImagePrefix returns the image_prefix value or the default.
func (c *BenchConfig) GetImagePrefix() string {
	if c.ImagePrefix == nil {
		return "KITTI/2011_09_26/image_00/data/000000"
	}
	return *c.ImagePrefix
}

// GetImageFileType returns the image_file_type value or the default.
func (c *BenchConfig) GetImageFileType() string {
	if c.ImageFileType == nil {
		return ".png"
	}
	return *c.ImageFileType
}

// GetImageFillWidth returns the image_fill_width value or the default.
func (c *BenchConfig) GetImageFillWidth() int {
	if c.ImageFillWidth == nil {
		return 4
	}
	return *c.ImageFillWidth
}

// GetImageStartIndex returns the image_start_index value or the default.
func (c *BenchConfig) GetImageStartIndex() int {
	if c.ImageStartIndex == nil {
		return 0
	}
	return *c.ImageStartIndex
}

// GetImageEndIndex returns the image_end_index value or the default.
func (c *BenchConfig) GetImageEndIndex() int {
	if c.ImageEndIndex == nil {
		return 9
	}
	return *c.ImageEndIndex
}

// GetBufferCapacity returns the buffer_capacity value or the default.
func (c *BenchConfig) GetBufferCapacity() int {
	if c.BufferCapacity == nil {
		return 2
	}
	return *c.BufferCapacity
}

// GetDetectorTypes returns the detector_types value or the default.
func (c *BenchConfig) GetDetectorTypes() []string {
	if len(c.DetectorTypes) == 0 {
		return []string{string(features.DetSIFT)}
	}
	return c.DetectorTypes
}

// GetDescriptorTypes returns the descriptor_types value or the default.
func (c *BenchConfig) GetDescriptorTypes() []string {
	if len(c.DescriptorTypes) == 0 {
		return []string{string(features.DescORB)}
	}
	return c.DescriptorTypes
}

// GetMatcherType returns the parsed matcher_type or MAT_BF.
func (c *BenchConfig) GetMatcherType() (matching.Backend, error) {
	if c.MatcherType == nil {
		return matching.BackendBF, nil
	}
	return matching.ParseBackend(*c.MatcherType)
}

// GetSelectorType returns the parsed selector_type or SEL_KNN.
func (c *BenchConfig) GetSelectorType() (matching.Selector, error) {
	if c.SelectorType == nil {
		return matching.SelectKNN, nil
	}
	return matching.ParseSelector(*c.SelectorType)
}

// GetLSHSeed returns the lsh_seed value or the default.
func (c *BenchConfig) GetLSHSeed() int64 {
	if c.LSHSeed == nil {
		return 1
	}
	return *c.LSHSeed
}

// GetFocusOnVehicle returns the focus_on_vehicle value or the default.
func (c *BenchConfig) GetFocusOnVehicle() bool {
	if c.FocusOnVehicle == nil {
		return true
	}
	return *c.FocusOnVehicle
}

// GetFocusRect returns the focus_rect value or the preceding-vehicle box.
func (c *BenchConfig) GetFocusRect() features.Rect {
	if c.FocusRect == nil {
		return features.DefaultFocusRect
	}
	return *c.FocusRect
}

// GetLimitKeypoints returns the limit_keypoints value or the default.
func (c *BenchConfig) GetLimitKeypoints() bool {
	if c.LimitKeypoints == nil {
		return false
	}
	return *c.LimitKeypoints
}

// GetMaxKeypoints returns the max_keypoints value or the default.
func (c *BenchConfig) GetMaxKeypoints() int {
	if c.MaxKeypoints == nil {
		return 50
	}
	return *c.MaxKeypoints
}

// GetVisualize returns the visualize value or the default.
func (c *BenchConfig) GetVisualize() bool {
	if c.Visualize == nil {
		return false
	}
	return *c.Visualize
}
