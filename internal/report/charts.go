package report

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/featurebench/internal/fsutil"
	"github.com/banshee-data/featurebench/internal/runstats"
)

// Label returns "DETECTOR/DESCRIPTOR" for chart axes and legends.
func Label(s runstats.Summary) string {
	return s.Detector + "/" + s.Descriptor
}

// RenderCharts writes an HTML page comparing the summaries: average stage
// times, average keypoints and matches, and matches per frame pair.
func RenderCharts(w io.Writer, summaries []runstats.Summary) error {
	labels := make([]string, len(summaries))
	det := make([]opts.BarData, len(summaries))
	desc := make([]opts.BarData, len(summaries))
	kps := make([]opts.BarData, len(summaries))
	matches := make([]opts.BarData, len(summaries))
	for i, s := range summaries {
		labels[i] = Label(s)
		det[i] = opts.BarData{Value: round3(Millis(s.AvgDetection))}
		desc[i] = opts.BarData{Value: round3(Millis(s.AvgDescription))}
		kps[i] = opts.BarData{Value: average(s.NumKeypoints)}
		matches[i] = opts.BarData{Value: average(s.NumMatches)}
	}

	times := charts.NewBar()
	times.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Feature benchmark", Width: "1200px", Height: "520px"}),
		charts.WithTitleOpts(opts.Title{Title: "Average stage time", Subtitle: fmt.Sprintf("configurations=%d", len(summaries))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10%"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "ms", NameLocation: "middle", NameGap: 40}),
	)
	times.SetXAxis(labels).
		AddSeries("detection", det).
		AddSeries("description", desc)

	counts := charts.NewBar()
	counts.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "1200px", Height: "520px"}),
		charts.WithTitleOpts(opts.Title{Title: "Keypoints and matches per frame"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10%"}),
	)
	counts.SetXAxis(labels).
		AddSeries("keypoints", kps).
		AddSeries("matches", matches)

	longest := 0
	for _, s := range summaries {
		longest = max(longest, len(s.NumMatches))
	}
	pairs := make([]string, longest)
	for i := range pairs {
		pairs[i] = fmt.Sprintf("%d-%d", i, i+1)
	}
	perPair := charts.NewLine()
	perPair.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "1200px", Height: "520px"}),
		charts.WithTitleOpts(opts.Title{Title: "Matches per frame pair"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10%"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "frames", NameLocation: "middle", NameGap: 25}),
	)
	perPair.SetXAxis(pairs)
	for _, s := range summaries {
		data := make([]opts.LineData, len(s.NumMatches))
		for i, n := range s.NumMatches {
			data[i] = opts.LineData{Value: n}
		}
		perPair.AddSeries(Label(s), data)
	}

	page := components.NewPage()
	page.SetPageTitle("Feature benchmark")
	page.AddCharts(times, counts, perPair)
	return page.Render(w)
}

func average(v []int) float64 {
	if len(v) == 0 {
		return 0
	}
	sum := 0
	for _, n := range v {
		sum += n
	}
	return round3(float64(sum) / float64(len(v)))
}

func round3(v float64) float64 {
	return float64(int64(v*1000+0.5)) / 1000
}

// ECharts collects summaries and renders them to an HTML file on Close.
type ECharts struct {
	Path      string
	fs        fsutil.FileSystem
	summaries []runstats.Summary
}

// NewECharts returns a chart sink writing to path through fs (the OS when nil).
func NewECharts(fs fsutil.FileSystem, path string) *ECharts {
	if fs == nil {
		fs = fsutil.OSFileSystem{}
	}
	return &ECharts{Path: path, fs: fs}
}

func (e *ECharts) Write(s runstats.Summary) error {
	e.summaries = append(e.summaries, s)
	return nil
}

func (e *ECharts) Close() error {
	if len(e.summaries) == 0 {
		return nil
	}
	f, err := fsutil.CreateAll(e.fs, e.Path)
	if err != nil {
		return fmt.Errorf("failed to create chart file: %w", err)
	}
	if err := RenderCharts(f, e.summaries); err != nil {
		f.Close()
		return fmt.Errorf("failed to render charts: %w", err)
	}
	return f.Close()
}
