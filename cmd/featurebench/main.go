// Command featurebench benchmarks keypoint detector and descriptor
// combinations over a sequence of frames.
//
//	featurebench [run] -config config/featurebench.defaults.json [-db results.db] [-report-dir out]
//	featurebench serve -db results.db [-listen :8080]
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/lmittmann/tint"

	"github.com/banshee-data/featurebench/internal/config"
	"github.com/banshee-data/featurebench/internal/db"
	"github.com/banshee-data/featurebench/internal/features"
	"github.com/banshee-data/featurebench/internal/features/native"
	"github.com/banshee-data/featurebench/internal/features/opencv"
	"github.com/banshee-data/featurebench/internal/imagesource"
	"github.com/banshee-data/featurebench/internal/pipeline"
	"github.com/banshee-data/featurebench/internal/report"
	"github.com/banshee-data/featurebench/internal/security"
	"github.com/banshee-data/featurebench/internal/version"
	"github.com/banshee-data/featurebench/internal/visualize"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) > 0 {
		switch args[0] {
		case "serve":
			return serveCmd(args[1:], stdout, stderr)
		case "run":
			args = args[1:]
		}
	}
	return runCmd(args, stdout, stderr)
}

// newLogger builds the tint handler used by every subcommand.
func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      lvl,
		TimeFormat: "15:04:05",
	})), nil
}

// newRegistry returns every strategy this build provides.
func newRegistry() *features.Registry {
	reg := features.NewRegistry()
	native.Register(reg)
	opencv.Register(reg)
	return reg
}

type runOptions struct {
	configPath  string
	dbPath      string
	reportDir   string
	jsonName    string
	visualize   string
	interactive bool
	logLevel    string
	showVersion bool
}

func runCmd(args []string, stdout, stderr io.Writer) int {
	var opts runOptions
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.configPath, "config", config.DefaultConfigPath, "Benchmark configuration (JSON)")
	fs.StringVar(&opts.dbPath, "db", "", "Record summaries in this sqlite database")
	fs.StringVar(&opts.reportDir, "report-dir", "", "Write JSON, HTML and PNG reports into this directory")
	fs.StringVar(&opts.jsonName, "json", "report.json", "JSON report file name inside -report-dir")
	fs.StringVar(&opts.visualize, "visualize", "", "Write match visualizations into this directory")
	fs.BoolVar(&opts.interactive, "interactive", false, "Wait for Enter after each visualization")
	fs.StringVar(&opts.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	fs.BoolVar(&opts.showVersion, "version", false, "Print version and exit")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if opts.showVersion {
		fmt.Fprintln(stdout, version.String())
		return 0
	}

	logger, err := newLogger(stderr, opts.logLevel)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	if err := runBenchmark(opts, stdout, logger); err != nil {
		logger.Error("benchmark failed", "err", err)
		return 1
	}
	return 0
}

func runBenchmark(opts runOptions, stdout io.Writer, logger *slog.Logger) error {
	cfg, err := config.LoadBenchConfig(opts.configPath)
	if err != nil {
		return err
	}

	src := imagesource.FileSource{
		BaseDir:   cfg.GetImageBasePath(),
		Prefix:    cfg.GetImagePrefix(),
		FillWidth: cfg.GetImageFillWidth(),
		Ext:       cfg.GetImageFileType(),
	}
	runner, err := pipeline.NewRunner(cfg, newRegistry(), src, logger)
	if err != nil {
		return err
	}

	visDir := opts.visualize
	if visDir == "" && cfg.GetVisualize() {
		visDir = "visualize"
	}
	if visDir != "" {
		runner.Visualizer = visualize.NewPNG(visDir, opts.interactive, logger)
	}

	sink, err := openSinks(opts, stdout, logger)
	if err != nil {
		return err
	}

	summaries, runErr := runner.RunAll(sink)
	closeErr := sink.Close()
	logger.Info("benchmark complete", "configurations", len(summaries))
	return errors.Join(runErr, closeErr)
}

// openSinks always includes the text line on stdout and adds the sinks
// enabled by flags. Flags are validated before anything is opened.
func openSinks(opts runOptions, stdout io.Writer, logger *slog.Logger) (report.Sink, error) {
	jsonPath := filepath.Join(opts.reportDir, opts.jsonName)
	if opts.reportDir != "" {
		if err := security.ValidatePathWithinDirectory(jsonPath, opts.reportDir); err != nil {
			return nil, fmt.Errorf("invalid -json: %w", err)
		}
	}

	sinks := []report.Sink{report.NewText(stdout)}
	if opts.dbPath != "" {
		store, err := db.NewDB(opts.dbPath, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open results database: %w", err)
		}
		sinks = append(sinks, store)
	}
	if opts.reportDir != "" {
		sinks = append(sinks,
			report.NewJSON(nil, jsonPath),
			report.NewECharts(nil, filepath.Join(opts.reportDir, "charts.html")),
			report.NewPlots(nil, opts.reportDir),
		)
	}
	return report.Multi(sinks...), nil
}
