package report

import (
	"fmt"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/featurebench/internal/fsutil"
	"github.com/banshee-data/featurebench/internal/runstats"
)

// Plot file names written by the Plots sink.
const (
	KeypointsPlotFile = "keypoints.png"
	MatchesPlotFile   = "matches.png"
)

// Plots collects summaries and saves per-frame line plots on Close.
type Plots struct {
	Dir       string
	fs        fsutil.FileSystem
	summaries []runstats.Summary
}

// NewPlots returns a plot sink writing PNG files into dir.
func NewPlots(fs fsutil.FileSystem, dir string) *Plots {
	if fs == nil {
		fs = fsutil.OSFileSystem{}
	}
	return &Plots{Dir: dir, fs: fs}
}

func (p *Plots) Write(s runstats.Summary) error {
	p.summaries = append(p.summaries, s)
	return nil
}

func (p *Plots) Close() error {
	if len(p.summaries) == 0 {
		return nil
	}
	kp, err := countsPlot("Keypoints per frame", "frame", "keypoints", p.summaries,
		func(s runstats.Summary) []int { return s.NumKeypoints })
	if err != nil {
		return err
	}
	if err := p.save(kp, KeypointsPlotFile); err != nil {
		return err
	}
	mp, err := countsPlot("Matches per frame pair", "frame pair", "matches", p.summaries,
		func(s runstats.Summary) []int { return s.NumMatches })
	if err != nil {
		return err
	}
	return p.save(mp, MatchesPlotFile)
}

func (p *Plots) save(pl *plot.Plot, name string) error {
	wt, err := pl.WriterTo(14*vg.Inch, 6*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}
	f, err := fsutil.CreateAll(p.fs, filepath.Join(p.Dir, name))
	if err != nil {
		return err
	}
	if _, err := wt.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return f.Close()
}

func countsPlot(title, xlabel, ylabel string, summaries []runstats.Summary, series func(runstats.Summary) []int) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xlabel
	p.Y.Label.Text = ylabel
	p.Legend.Top = true

	for i, s := range summaries {
		values := series(s)
		if len(values) == 0 {
			continue
		}
		pts := make(plotter.XYs, len(values))
		for j, v := range values {
			pts[j].X = float64(j)
			pts[j].Y = float64(v)
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, fmt.Errorf("failed to build line for %s: %w", Label(s), err)
		}
		line.Color = plotutil.Color(i)
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(Label(s), line)
	}
	return p, nil
}
