package report

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/banshee-data/featurebench/internal/fsutil"
	"github.com/banshee-data/featurebench/internal/runstats"
	"github.com/banshee-data/featurebench/internal/version"
)

// Document is the JSON report written by the JSON sink.
type Document struct {
	GeneratedAt time.Time     `json:"generated_at"`
	Version     string        `json:"version"`
	Runs        []SummaryJSON `json:"runs"`
}

// SummaryJSON is the JSON-safe form of runstats.Summary. Times are in
// milliseconds and NaN statistics become null.
type SummaryJSON struct {
	RunID                string    `json:"run_id"`
	Detector             string    `json:"detector"`
	Descriptor           string    `json:"descriptor"`
	Matcher              string    `json:"matcher,omitempty"`
	Selector             string    `json:"selector,omitempty"`
	Frames               int       `json:"frames"`
	AvgDetectionMs       float64   `json:"avg_detection_ms"`
	AvgDescriptionMs     float64   `json:"avg_description_ms"`
	NeighborhoodMean     *float64  `json:"neighborhood_mean"`
	NeighborhoodVariance *float64  `json:"neighborhood_variance"`
	NumKeypoints         []int     `json:"num_keypoints"`
	NumMatches           []int     `json:"num_matches"`
	StartedAt            time.Time `json:"started_at"`
	FinishedAt           time.Time `json:"finished_at"`
}

// ToJSON converts a summary to its JSON form.
func ToJSON(s runstats.Summary) SummaryJSON {
	return SummaryJSON{
		RunID:                s.RunID,
		Detector:             s.Detector,
		Descriptor:           s.Descriptor,
		Matcher:              s.Matcher,
		Selector:             s.Selector,
		Frames:               s.Frames,
		AvgDetectionMs:       Millis(s.AvgDetection),
		AvgDescriptionMs:     Millis(s.AvgDescription),
		NeighborhoodMean:     finite(s.NeighborhoodMean),
		NeighborhoodVariance: finite(s.NeighborhoodVariance),
		NumKeypoints:         nonNil(s.NumKeypoints),
		NumMatches:           nonNil(s.NumMatches),
		StartedAt:            s.StartedAt,
		FinishedAt:           s.FinishedAt,
	}
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func nonNil(v []int) []int {
	if v == nil {
		return []int{}
	}
	return v
}

// JSON collects summaries and writes a Document to Path on Close.
type JSON struct {
	Path string
	fs   fsutil.FileSystem
	now  func() time.Time
	runs []SummaryJSON
}

// NewJSON returns a JSON sink writing to path through fs (the OS when nil).
func NewJSON(fs fsutil.FileSystem, path string) *JSON {
	if fs == nil {
		fs = fsutil.OSFileSystem{}
	}
	return &JSON{Path: path, fs: fs, now: time.Now}
}

func (j *JSON) Write(s runstats.Summary) error {
	j.runs = append(j.runs, ToJSON(s))
	return nil
}

func (j *JSON) Close() error {
	f, err := fsutil.CreateAll(j.fs, j.Path)
	if err != nil {
		return fmt.Errorf("failed to create JSON report: %w", err)
	}

	doc := Document{GeneratedAt: j.now().UTC(), Version: version.Version, Runs: j.runs}
	if doc.Runs == nil {
		doc.Runs = []SummaryJSON{}
	}
	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(doc); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode JSON report: %w", err)
	}
	return f.Close()
}
