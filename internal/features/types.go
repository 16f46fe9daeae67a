package features

// UndefinedAngle marks a keypoint whose orientation was not computed.
const UndefinedAngle = -1.0

// Keypoint is a 2D point of interest with sub-pixel coordinates.
type Keypoint struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Size     float64 `json:"size"` // diameter of the meaningful neighborhood
	Response float64 `json:"response"`
	Angle    float64 `json:"angle"` // degrees, UndefinedAngle when not computed
	Octave   int     `json:"octave"`
}

// Match pairs a descriptor row of the source (previous) frame with a row of
// the reference (current) frame.
type Match struct {
	QueryIdx int     `json:"query_idx"`
	TrainIdx int     `json:"train_idx"`
	Distance float64 `json:"distance"`
}

// Rect is an axis-aligned rectangle in pixel coordinates.
type Rect struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// DefaultFocusRect covers the preceding vehicle in the KITTI sequence.
var DefaultFocusRect = Rect{X: 535, Y: 180, W: 180, H: 150}

// Contains reports whether (x, y) lies inside the half-open rectangle
// [X, X+W) x [Y, Y+H).
func (r Rect) Contains(x, y float64) bool {
	return x >= float64(r.X) && x < float64(r.X+r.W) &&
		y >= float64(r.Y) && y < float64(r.Y+r.H)
}

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool {
	return r.W <= 0 || r.H <= 0
}
