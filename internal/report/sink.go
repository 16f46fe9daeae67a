// Package report writes finalized benchmark summaries: the classic
// comma-separated line, a JSON document, go-echarts HTML and gonum/plot
// PNG charts, or any combination through Multi.
package report

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/featurebench/internal/runstats"
)

// Sink consumes summaries as configurations finish. Close flushes anything
// buffered.
type Sink interface {
	Write(runstats.Summary) error
	Close() error
}

type multi []Sink

// Multi fans every summary out to all sinks. Errors of individual sinks are
// joined; a failing sink does not stop the others.
func Multi(sinks ...Sink) Sink {
	var out multi
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (m multi) Write(s runstats.Summary) error {
	var errs []error
	for _, sink := range m {
		if err := sink.Write(s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m multi) Close() error {
	var errs []error
	for _, sink := range m {
		if err := sink.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Millis converts a duration to fractional milliseconds.
func Millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// FormatLine renders a summary as
//
//	DET, DESC, avgDetMs, avgDescMs, mean, variance, [ k0 k1 ... ], [ m0 ... ]
func FormatLine(s runstats.Summary) string {
	return fmt.Sprintf("%s, %s, %.4f, %.4f, %.4f, %.4f, %s, %s",
		s.Detector, s.Descriptor,
		Millis(s.AvgDetection), Millis(s.AvgDescription),
		s.NeighborhoodMean, s.NeighborhoodVariance,
		formatInts(s.NumKeypoints), formatInts(s.NumMatches))
}

func formatInts(v []int) string {
	var b strings.Builder
	b.WriteString("[ ")
	for _, n := range v {
		b.WriteString(strconv.Itoa(n))
		b.WriteByte(' ')
	}
	b.WriteByte(']')
	return b.String()
}

// Text writes one FormatLine per summary.
type Text struct {
	w io.Writer
}

// NewText returns a Text sink writing to w.
func NewText(w io.Writer) *Text { return &Text{w: w} }

func (t *Text) Write(s runstats.Summary) error {
	_, err := fmt.Fprintln(t.w, FormatLine(s))
	return err
}

func (t *Text) Close() error { return nil }
