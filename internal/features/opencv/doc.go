// Package opencv provides the SIFT, BRISK and AKAZE strategies through
// gocv. It is compiled only with -tags=opencv; the default build registers
// nothing and those kinds report features.ErrUnavailable.
package opencv
