// Package runstats accumulates timing and quality statistics for one
// detector/descriptor configuration and finalizes them into a Summary.
package runstats

import (
	"math"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/featurebench/internal/features"
	"github.com/banshee-data/featurebench/internal/timeutil"
)

// Summary is the finalized result of one configuration run.
type Summary struct {
	RunID      string `json:"run_id"`
	Detector   string `json:"detector"`
	Descriptor string `json:"descriptor"`
	Matcher    string `json:"matcher,omitempty"`
	Selector   string `json:"selector,omitempty"`
	Frames     int    `json:"frames"`

	// Average stage time per frame.
	AvgDetection   time.Duration `json:"avg_detection_ns"`
	AvgDescription time.Duration `json:"avg_description_ns"`

	// Population mean and variance of keypoint neighborhood sizes. NaN when
	// no keypoint was observed.
	NeighborhoodMean     float64 `json:"-"`
	NeighborhoodVariance float64 `json:"-"`

	NumKeypoints []int `json:"num_keypoints"`
	NumMatches   []int `json:"num_matches"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// TotalKeypoints returns the sum of per-frame keypoint counts.
func (s Summary) TotalKeypoints() int {
	n := 0
	for _, k := range s.NumKeypoints {
		n += k
	}
	return n
}

// TotalMatches returns the sum of per-pair match counts.
func (s Summary) TotalMatches() int {
	n := 0
	for _, m := range s.NumMatches {
		n += m
	}
	return n
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithClock sets the clock used for the start and finish timestamps.
func WithClock(c timeutil.Clock) Option {
	return func(a *Aggregator) { a.clock = c }
}

// WithMatching records the matcher and selector names in the summary.
func WithMatching(matcher, selector string) Option {
	return func(a *Aggregator) { a.matcher, a.selector = matcher, selector }
}

// Aggregator collects statistics for a single configuration. It is not
// safe for concurrent use and must not be reused across configurations.
type Aggregator struct {
	detector   string
	descriptor string
	matcher    string
	selector   string
	clock      timeutil.Clock
	started    time.Time

	detection   time.Duration
	description time.Duration
	keypoints   []int
	matches     []int
	sizes       []float64
}

// New starts an aggregator for the given configuration.
func New(detector, descriptor string, opts ...Option) *Aggregator {
	a := &Aggregator{detector: detector, descriptor: descriptor, clock: timeutil.RealClock{}}
	for _, opt := range opts {
		opt(a)
	}
	a.started = a.clock.Now()
	return a
}

// ObserveKeypoints records the keypoint count of one frame and every
// keypoint's neighborhood size.
func (a *Aggregator) ObserveKeypoints(kps []features.Keypoint) {
	a.keypoints = append(a.keypoints, len(kps))
	for _, kp := range kps {
		a.sizes = append(a.sizes, kp.Size)
	}
}

// ObserveMatches records the match count of one frame pair.
func (a *Aggregator) ObserveMatches(n int) {
	a.matches = append(a.matches, n)
}

// AddDetection adds one detection call to the cumulative time.
func (a *Aggregator) AddDetection(d time.Duration) { a.detection += d }

// AddDescription adds one extraction call to the cumulative time.
func (a *Aggregator) AddDescription(d time.Duration) { a.description += d }

// Finalize computes the summary. Average times divide by the number of
// observed frames and are zero when there were none.
func (a *Aggregator) Finalize() Summary {
	s := Summary{
		RunID:        uuid.NewString(),
		Detector:     a.detector,
		Descriptor:   a.descriptor,
		Matcher:      a.matcher,
		Selector:     a.selector,
		Frames:       len(a.keypoints),
		NumKeypoints: append([]int{}, a.keypoints...),
		NumMatches:   append([]int{}, a.matches...),
		StartedAt:    a.started,
		FinishedAt:   a.clock.Now(),
	}
	if s.Frames > 0 {
		s.AvgDetection = a.detection / time.Duration(s.Frames)
		s.AvgDescription = a.description / time.Duration(s.Frames)
	}
	s.NeighborhoodMean, s.NeighborhoodVariance = meanVariance(a.sizes)
	return s
}

func meanVariance(x []float64) (float64, float64) {
	if len(x) == 0 {
		return math.NaN(), math.NaN()
	}
	return stat.PopMeanVariance(x, nil)
}
