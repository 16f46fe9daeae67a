package features

import "sort"

// FilterRegion returns the keypoints whose coordinates fall inside r, in
// their original order. The input slice is not modified.
func FilterRegion(kps []Keypoint, r Rect) []Keypoint {
	out := make([]Keypoint, 0, len(kps))
	for _, kp := range kps {
		if r.Contains(kp.X, kp.Y) {
			out = append(out, kp)
		}
	}
	return out
}

// LimitKeypoints keeps the n strongest keypoints. SHITOMASI output is
// already ordered by corner quality, so it is truncated to the first n.
// For every other kind the cut is made at the n-th strongest response and
// every keypoint tied with it survives too, so the result can exceed n.
// Survivors stay in their original relative order. n <= 0 disables the
// limit.
func LimitKeypoints(kps []Keypoint, n int, kind DetectorKind) []Keypoint {
	if n <= 0 || len(kps) <= n {
		return kps
	}
	if kind == DetShiTomasi {
		return append([]Keypoint(nil), kps[:n]...)
	}

	responses := make([]float64, len(kps))
	for i, kp := range kps {
		responses[i] = kp.Response
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(responses)))
	cut := responses[n-1]

	out := make([]Keypoint, 0, n)
	for _, kp := range kps {
		if kp.Response >= cut {
			out = append(out, kp)
		}
	}
	return out
}
