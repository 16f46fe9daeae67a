package native

import "github.com/banshee-data/featurebench/internal/features"

// Register installs every native detector and extractor into reg.
func Register(reg *features.Registry) {
	reg.RegisterDetector(features.DetShiTomasi, func() (features.Detector, error) { return NewShiTomasi(), nil })
	reg.RegisterDetector(features.DetHarris, func() (features.Detector, error) { return NewHarris(), nil })
	reg.RegisterDetector(features.DetFAST, func() (features.Detector, error) { return NewFAST(), nil })
	reg.RegisterDetector(features.DetORB, func() (features.Detector, error) { return NewORB(), nil })

	reg.RegisterExtractor(features.DescBRIEF, func() (features.Extractor, error) { return NewBRIEF(), nil })
	reg.RegisterExtractor(features.DescORB, func() (features.Extractor, error) { return NewORBExtractor(), nil })
	reg.RegisterExtractor(features.DescFREAK, func() (features.Extractor, error) { return NewFREAK(), nil })
}
