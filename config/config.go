// Package config holds the explicit parameters of a pipeline run.
package config

import (
	"errors"
	"fmt"

	"github.com/TFMV/salesdash/cleaner"
	"github.com/TFMV/salesdash/storage"
	"github.com/docopt/docopt.go"
	"go.uber.org/zap/zapcore"
)

const Version = "1.0.0"

// Usage is the docopt command-line description. Every option has a
// default, so running with no arguments uses the standard layout.
const Usage = `salesdash: sales revenue report.

Usage:
  salesdash [--data=<path>] [--output-dir=<dir>] [--snapshot=<path>] [--snapshot-compression=<codec>] [--metrics=<path>] [--log-level=<level>]
  salesdash (-h | --help)
  salesdash --version

Options:
  -h --help                       Show this screen.
  --version                       Show version.
  --data=<path>                   Input CSV file [default: ./data/sales_data.csv].
  --output-dir=<dir>              Directory for the chart images [default: ./output/figures].
  --snapshot=<path>               Also write the cleaned table as an Arrow IPC file.
  --snapshot-compression=<codec>  Snapshot buffer codec: none, lz4 or zstd [default: zstd].
  --metrics=<path>                Also write run metrics in Prometheus text format.
  --log-level=<level>             One of debug, info, warn, error [default: info].
`

const (
	DefaultDataPath  = "./data/sales_data.csv"
	DefaultOutputDir = "./output/figures"
)

// Config is passed to every stage; no stage reads global paths.
type Config struct {
	DataPath     string
	OutputDir    string
	SnapshotPath string
	MetricsPath  string
	LogLevel     string

	SnapshotCompression storage.Compression

	DateCacheSize int
	BloomFPRate   float64
}

// Default returns the standard configuration.
func Default() Config {
	return Config{
		DataPath:            DefaultDataPath,
		OutputDir:           DefaultOutputDir,
		LogLevel:            "info",
		SnapshotCompression: storage.CompressionZstd,
		DateCacheSize:       cleaner.DefaultCacheSize,
		BloomFPRate:         cleaner.DefaultBloomFPRate,
	}
}

// Parse parses argv (without the program name) against Usage. Help and
// version requests come back as the "--help" and "--version" flags; the
// parser never prints or exits.
func Parse(argv []string) (docopt.Opts, error) {
	if argv == nil {
		argv = []string{}
	}
	parser := &docopt.Parser{
		HelpHandler:   docopt.NoHelpHandler,
		SkipHelpFlags: true,
	}
	return parser.ParseArgs(Usage, argv, "")
}

// FromOpts overlays parsed command-line options on Default.
func FromOpts(opts docopt.Opts) (Config, error) {
	cfg := Default()

	if v, err := opts.String("--data"); err == nil {
		cfg.DataPath = v
	}
	if v, err := opts.String("--output-dir"); err == nil {
		cfg.OutputDir = v
	}
	if v, err := opts.String("--snapshot"); err == nil {
		cfg.SnapshotPath = v
	}
	if v, err := opts.String("--snapshot-compression"); err == nil {
		cfg.SnapshotCompression = storage.Compression(v)
	}
	if v, err := opts.String("--metrics"); err == nil {
		cfg.MetricsPath = v
	}
	if v, err := opts.String("--log-level"); err == nil {
		cfg.LogLevel = v
	}

	return cfg, cfg.Validate()
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	if c.DataPath == "" {
		return errors.New("data path must not be empty")
	}
	if c.OutputDir == "" {
		return errors.New("output directory must not be empty")
	}
	if c.DateCacheSize < 0 {
		return fmt.Errorf("date cache size must not be negative, got %d", c.DateCacheSize)
	}
	if c.BloomFPRate <= 0 || c.BloomFPRate >= 1 {
		return fmt.Errorf("bloom false-positive rate must be in (0, 1), got %v", c.BloomFPRate)
	}
	if _, err := storage.ParseCompression(string(c.SnapshotCompression)); err != nil {
		return err
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level returns the configured log level.
func (c Config) Level() (zapcore.Level, error) {
	lvl, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return zapcore.InfoLevel, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return lvl, nil
}
