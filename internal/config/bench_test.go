package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/featurebench/internal/features"
	"github.com/banshee-data/featurebench/internal/matching"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestEmptyBenchConfig_Defaults(t *testing.T) {
	cfg := EmptyBenchConfig()

	assert.Equal(t, "../images/", cfg.GetImageBasePath())
	assert.Equal(t, "KITTI/2011_09_26/image_00/data/000000", cfg.GetImagePrefix())
	assert.Equal(t, ".png", cfg.GetImageFileType())
	assert.Equal(t, 4, cfg.GetImageFillWidth())
	assert.Equal(t, 0, cfg.GetImageStartIndex())
	assert.Equal(t, 9, cfg.GetImageEndIndex())
	assert.Equal(t, 2, cfg.GetBufferCapacity())
	assert.True(t, cfg.GetFocusOnVehicle())
	assert.Equal(t, features.DefaultFocusRect, cfg.GetFocusRect())
	assert.False(t, cfg.GetLimitKeypoints())
	assert.Equal(t, 50, cfg.GetMaxKeypoints())
	assert.False(t, cfg.GetVisualize())

	m, err := cfg.GetMatcherType()
	require.NoError(t, err)
	assert.Equal(t, matching.BackendBF, m)
	s, err := cfg.GetSelectorType()
	require.NoError(t, err)
	assert.Equal(t, matching.SelectKNN, s)

	combos, err := cfg.Combinations()
	require.NoError(t, err)
	assert.Equal(t, []Combination{{features.DetSIFT, features.DescORB, features.FamilyBinary}}, combos)
	assert.Equal(t, "SIFT_ORB", combos[0].Label())
	assert.NoError(t, cfg.Validate())
}

func TestLoadBenchConfig(t *testing.T) {
	path := writeConfig(t, "bench.json", `{
  "image_start_index": 2,
  "image_end_index": 5,
  "buffer_capacity": 3,
  "detector_types": ["FAST", "harris"],
  "descriptor_types": ["BRIEF", "SIFT"],
  "matcher_type": "MAT_FLANN",
  "selector_type": "SEL_NN",
  "focus_rect": {"x": 1, "y": 2, "w": 3, "h": 4},
  "limit_keypoints": true,
  "max_keypoints": 10
}`)

	cfg, err := LoadBenchConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.GetImageStartIndex())
	assert.Equal(t, 5, cfg.GetImageEndIndex())
	assert.Equal(t, 3, cfg.GetBufferCapacity())
	assert.Equal(t, features.Rect{X: 1, Y: 2, W: 3, H: 4}, cfg.GetFocusRect())
	assert.True(t, cfg.GetLimitKeypoints())
	assert.Equal(t, 10, cfg.GetMaxKeypoints())

	combos, err := cfg.Combinations()
	require.NoError(t, err)
	require.Len(t, combos, 4)
	assert.Equal(t, Combination{features.DetFAST, features.DescBRIEF, features.FamilyBinary}, combos[0])
	assert.Equal(t, Combination{features.DetFAST, features.DescSIFT, features.FamilyHistogram}, combos[1])
	assert.Equal(t, features.DetHarris, combos[2].Detector)
}

func TestLoadBenchConfig_FamilyOverride(t *testing.T) {
	path := writeConfig(t, "coerce.json", `{"detector_types": ["SIFT"], "descriptor_types": ["SIFT"], "descriptor_family": "DES_BINARY"}`)
	cfg, err := LoadBenchConfig(path)
	require.NoError(t, err)

	combos, err := cfg.Combinations()
	require.NoError(t, err)
	assert.Equal(t, features.FamilyBinary, combos[0].Family)
	assert.Equal(t, features.DescSIFT, combos[0].Descriptor)
}

func TestLoadBenchConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"unknown detector", `{"detector_types": ["SURF"]}`, "unknown kind"},
		{"unknown descriptor", `{"descriptor_types": ["DAISY"]}`, "unknown kind"},
		{"unknown matcher", `{"matcher_type": "MAT_KD"}`, "unknown kind"},
		{"unknown selector", `{"selector_type": "SEL_RADIUS"}`, "unknown kind"},
		{"unknown family", `{"descriptor_family": "DES_FLOAT"}`, "unknown kind"},
		{"akaze mismatch", `{"detector_types": ["FAST"], "descriptor_types": ["AKAZE"]}`, "incompatible"},
		{"reversed range", `{"image_start_index": 5, "image_end_index": 2}`, "before image_start_index"},
		{"empty buffer", `{"buffer_capacity": 0}`, "buffer_capacity"},
		{"bad limit", `{"max_keypoints": 0}`, "max_keypoints"},
		{"empty rect", `{"focus_rect": {"x": 0, "y": 0, "w": 0, "h": 5}}`, "focus_rect"},
		{"bad json", `{"buffer_capacity": }`, "failed to parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadBenchConfig(writeConfig(t, "c.json", tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadBenchConfig_AkazePairIsAllowed(t *testing.T) {
	cfg, err := LoadBenchConfig(writeConfig(t, "a.json", `{"detector_types": ["AKAZE"], "descriptor_types": ["AKAZE"]}`))
	require.NoError(t, err)
	combos, err := cfg.Combinations()
	require.NoError(t, err)
	assert.Len(t, combos, 1)
}

func TestLoadBenchConfig_FileChecks(t *testing.T) {
	_, err := LoadBenchConfig(writeConfig(t, "c.yaml", `{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), ".json extension")

	_, err = LoadBenchConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	big := `{"image_prefix": "` + strings.Repeat("x", 1024*1024) + `"}`
	_, err = LoadBenchConfig(writeConfig(t, "big.json", big))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}

func TestErrIncompatible(t *testing.T) {
	cfg := &BenchConfig{DetectorTypes: []string{"ORB"}, DescriptorTypes: []string{"AKAZE"}}
	_, err := cfg.Combinations()
	assert.ErrorIs(t, err, ErrIncompatible)
}

func TestMustLoadDefaultConfig(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	assert.Equal(t, 2, cfg.GetBufferCapacity())
	assert.Equal(t, features.DefaultFocusRect, cfg.GetFocusRect())
	assert.NoError(t, cfg.Validate())
}
