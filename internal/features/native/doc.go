// Package native implements keypoint detectors and binary descriptor
// extractors in pure Go so the benchmark runs without OpenCV.
//
// Detectors: SHITOMASI, HARRIS, FAST and ORB. Extractors: BRIEF, ORB and
// FREAK. All sampling near the image border is clamped to the nearest valid
// pixel, so every extractor returns exactly one row per input keypoint.
package native
