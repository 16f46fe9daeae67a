//go:build !opencv
// +build !opencv

package opencv

import "github.com/banshee-data/featurebench/internal/features"

// Enabled reports whether this build links OpenCV.
const Enabled = false

// Register is a no-op when OpenCV support is disabled.
// Build with -tags=opencv to enable SIFT, BRISK and AKAZE.
func Register(*features.Registry) {}
