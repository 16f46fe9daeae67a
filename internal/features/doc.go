// Package features owns the shared vocabulary of the benchmark: keypoints,
// descriptor matrices, matches, the closed sets of detector and descriptor
// kinds, and the region and count filters applied between detection and
// description.
//
// Concrete detectors and extractors live in the native and opencv
// subpackages and are made available to the pipeline through a Registry.
package features
