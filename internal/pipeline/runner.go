// Package pipeline drives the benchmark: for every detector/descriptor
// combination it loads the configured frames in order, detects, filters
// and describes keypoints, matches each frame against its predecessor and
// finalizes the statistics.
package pipeline

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/banshee-data/featurebench/internal/config"
	"github.com/banshee-data/featurebench/internal/features"
	"github.com/banshee-data/featurebench/internal/framebuf"
	"github.com/banshee-data/featurebench/internal/imagesource"
	"github.com/banshee-data/featurebench/internal/matching"
	"github.com/banshee-data/featurebench/internal/runstats"
	"github.com/banshee-data/featurebench/internal/timeutil"
	"github.com/banshee-data/featurebench/internal/visualize"
)

// ErrIncompatible is returned for combinations that cannot run together.
var ErrIncompatible = config.ErrIncompatible

// FrameEvent describes one processed frame.
type FrameEvent struct {
	Combination  config.Combination
	Index        int
	BufferLen    int
	Matched      bool
	NumKeypoints int
	NumMatches   int
}

// SummaryWriter receives each finalized configuration summary.
type SummaryWriter interface {
	Write(runstats.Summary) error
}

// Runner executes benchmark configurations sequentially.
type Runner struct {
	cfg      *config.BenchConfig
	registry *features.Registry
	source   imagesource.Source
	matcher  *matching.Matcher
	backend  matching.Backend
	selector matching.Selector
	logger   *slog.Logger

	// Clock times detection and description. Defaults to the real clock.
	Clock timeutil.Clock
	// Visualizer, when set, is shown every matched frame pair.
	Visualizer visualize.Visualizer
	onFrame    func(FrameEvent)
}

// NewRunner validates cfg and returns a Runner reading frames from src.
func NewRunner(cfg *config.BenchConfig, reg *features.Registry, src imagesource.Source, logger *slog.Logger) (*Runner, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	backend, err := cfg.GetMatcherType()
	if err != nil {
		return nil, err
	}
	selector, err := cfg.GetSelectorType()
	if err != nil {
		return nil, err
	}
	m := matching.NewMatcher(logger)
	m.Seed = cfg.GetLSHSeed()
	return &Runner{
		cfg:      cfg,
		registry: reg,
		source:   src,
		matcher:  m,
		backend:  backend,
		selector: selector,
		logger:   logger,
		Clock:    timeutil.RealClock{},
	}, nil
}

// SetOnFrame registers a callback invoked after every frame.
func (r *Runner) SetOnFrame(fn func(FrameEvent)) {
	r.onFrame = fn
}

// Check reports every combination this build cannot run. It loads no frame.
func (r *Runner) Check() error {
	combos, err := r.cfg.Combinations()
	if err != nil {
		return err
	}
	var errs []error
	for _, c := range combos {
		if !r.registry.HasDetector(c.Detector) {
			errs = append(errs, fmt.Errorf("detector %s: %w (available: %s)",
				c.Detector, features.ErrUnavailable, features.JoinKinds(r.registry.Detectors())))
		}
		if !r.registry.HasExtractor(c.Descriptor) {
			errs = append(errs, fmt.Errorf("descriptor %s: %w (available: %s)",
				c.Descriptor, features.ErrUnavailable, features.JoinKinds(r.registry.Extractors())))
		}
	}
	return errors.Join(errs...)
}

// RunAll runs every combination in order and hands each summary to w.
// Configuration errors stop before any frame is loaded. A failing
// combination does not stop the others; all failures are returned joined.
func (r *Runner) RunAll(w SummaryWriter) ([]runstats.Summary, error) {
	if err := r.Check(); err != nil {
		return nil, err
	}
	combos, err := r.cfg.Combinations()
	if err != nil {
		return nil, err
	}

	var (
		summaries []runstats.Summary
		errs      []error
	)
	for _, c := range combos {
		s, err := r.Run(c)
		if err != nil {
			r.logger.Error("configuration failed", "config", c.Label(), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", c.Label(), err))
			continue
		}
		summaries = append(summaries, s)
		if w != nil {
			if err := w.Write(s); err != nil {
				errs = append(errs, fmt.Errorf("%s: failed to write summary: %w", c.Label(), err))
			}
		}
	}
	return summaries, errors.Join(errs...)
}

// Run benchmarks one combination with a fresh frame buffer and aggregator.
func (r *Runner) Run(c config.Combination) (runstats.Summary, error) {
	det, err := r.registry.NewDetector(c.Detector)
	if err != nil {
		return runstats.Summary{}, err
	}
	defer features.CloseIfCloser(det)

	ext, err := r.registry.NewExtractor(c.Descriptor)
	if err != nil {
		return runstats.Summary{}, err
	}
	defer features.CloseIfCloser(ext)

	log := r.logger.With("config", c.Label())
	buf := framebuf.NewBuffer(r.cfg.GetBufferCapacity())
	agg := runstats.New(c.Detector.String(), c.Descriptor.String(),
		runstats.WithClock(r.Clock),
		runstats.WithMatching(r.backend.String(), r.selector.String()))
	if r.Visualizer != nil {
		r.Visualizer.Begin(c.Label())
	}

	for idx := r.cfg.GetImageStartIndex(); idx <= r.cfg.GetImageEndIndex(); idx++ {
		if err := r.step(c, idx, det, ext, buf, agg, log); err != nil {
			return runstats.Summary{}, err
		}
	}

	s := agg.Finalize()
	log.Info("configuration complete",
		"frames", s.Frames,
		"keypoints", s.TotalKeypoints(),
		"matches", s.TotalMatches(),
		"avg_detection", s.AvgDetection,
		"avg_description", s.AvgDescription)
	return s, nil
}

func (r *Runner) step(c config.Combination, idx int, det features.Detector, ext features.Extractor,
	buf *framebuf.Buffer, agg *runstats.Aggregator, log *slog.Logger) error {
	img, err := r.source.Load(idx)
	if err != nil {
		return fmt.Errorf("failed to load frame %d: %w", idx, err)
	}
	frame := &framebuf.Frame{Index: idx, Image: img}
	buf.Push(frame)
	log.Debug("load image into buffer", "index", idx, "buffer_len", buf.Len())

	kps, elapsed, err := features.TimedDetect(r.Clock, det, img)
	if err != nil {
		return fmt.Errorf("frame %d: %w", idx, err)
	}
	agg.AddDetection(elapsed)
	if r.cfg.GetFocusOnVehicle() {
		kps = features.FilterRegion(kps, r.cfg.GetFocusRect())
	}
	agg.ObserveKeypoints(kps)
	if r.cfg.GetLimitKeypoints() {
		kps = features.LimitKeypoints(kps, r.cfg.GetMaxKeypoints(), c.Detector)
	}
	frame.Keypoints = kps
	log.Debug("detect keypoints", "index", idx, "keypoints", len(kps), "elapsed", elapsed)

	desc, elapsed, err := features.TimedExtract(r.Clock, ext, kps, img)
	if err != nil {
		return fmt.Errorf("frame %d: %w", idx, err)
	}
	agg.AddDescription(elapsed)
	frame.Descriptors = desc
	log.Debug("extract descriptors", "index", idx, "rows", desc.Rows(), "elapsed", elapsed)

	ev := FrameEvent{Combination: c, Index: idx, BufferLen: buf.Len(), NumKeypoints: len(kps)}
	if prev := buf.Previous(); prev != nil {
		matches, err := r.matcher.Match(matching.Request{
			SourceKeypoints: prev.Keypoints,
			RefKeypoints:    frame.Keypoints,
			Source:          prev.Descriptors,
			Ref:             frame.Descriptors,
			Family:          c.Family,
			Backend:         r.backend,
			Selector:        r.selector,
		})
		if err != nil {
			return fmt.Errorf("frame %d: failed to match: %w", idx, err)
		}
		frame.Matches = matches
		agg.ObserveMatches(len(matches))
		ev.Matched, ev.NumMatches = true, len(matches)
		log.Debug("match descriptors", "index", idx, "matches", len(matches))

		if r.Visualizer != nil {
			if err := r.Visualizer.Show(prev, frame); err != nil {
				return fmt.Errorf("frame %d: %w", idx, err)
			}
		}
	}

	if r.onFrame != nil {
		r.onFrame(ev)
	}
	return nil
}
