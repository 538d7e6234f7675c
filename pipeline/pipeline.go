// Package pipeline runs the load, clean, aggregate and render stages in
// order.
package pipeline

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/TFMV/salesdash/aggregate"
	"github.com/TFMV/salesdash/chart"
	"github.com/TFMV/salesdash/cleaner"
	"github.com/TFMV/salesdash/config"
	"github.com/TFMV/salesdash/loader"
	"github.com/TFMV/salesdash/metrics"
	"github.com/TFMV/salesdash/storage"
	"go.uber.org/zap"
)

// Result describes a finished run. When LoadErr is set the run stopped
// after loading and nothing else is populated.
type Result struct {
	LoadErr    error
	CleanStats cleaner.Stats
	Summary    *aggregate.Summary
	Artifacts  *chart.Artifacts
}

// Run executes one pipeline pass with cfg, writing the text report to out.
// A loader failure is not an error: it is logged and reported through
// Result.LoadErr. Any later failure is returned.
func Run(cfg config.Config, logger *zap.Logger, out io.Writer) (*Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	began := time.Now()
	start := began
	raw, err := loader.Load(cfg.DataPath, loader.WithLogger(logger))
	if err != nil {
		var loadErr *loader.Error
		if errors.As(err, &loadErr) {
			logger.Error("Failed to load dataset",
				zap.String("path", loadErr.Path),
				zap.Stringer("kind", loadErr.Kind),
				zap.Error(loadErr.Err))
			return &Result{LoadErr: loadErr}, nil
		}
		return nil, err
	}
	defer raw.Release()
	metrics.ObserveStage(metrics.StageLoad, start)
	metrics.AddRows(metrics.StageLoad, raw.NumRows())

	res := &Result{}

	logger.Info("Cleaning data")
	start = time.Now()
	cleaned, err := cleaner.Clean(raw,
		cleaner.WithCacheSize(cfg.DateCacheSize),
		cleaner.WithBloomFPRate(cfg.BloomFPRate),
		cleaner.WithStats(&res.CleanStats))
	if err != nil {
		return nil, fmt.Errorf("failed to clean dataset: %w", err)
	}
	defer cleaned.Release()
	metrics.ObserveStage(metrics.StageClean, start)
	metrics.AddRows(metrics.StageClean, cleaned.NumRows())
	metrics.AddDropped(metrics.ReasonNull, res.CleanStats.NullRows)
	metrics.AddDropped(metrics.ReasonBadDate, res.CleanStats.BadDates)
	metrics.AddDropped(metrics.ReasonDuplicate, res.CleanStats.Duplicates)
	logger.Info("Data cleaning complete")

	if cfg.SnapshotPath != "" {
		if err := storage.SaveTable(cfg.SnapshotPath, cleaned,
			storage.WithCompression(cfg.SnapshotCompression)); err != nil {
			return nil, err
		}
		logger.Debug("Snapshot written", zap.String("path", cfg.SnapshotPath))
	}

	logger.Info("Analyzing data")
	start = time.Now()
	summary, err := aggregate.Aggregate(cleaned)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate dataset: %w", err)
	}
	metrics.ObserveStage(metrics.StageAggregate, start)
	metrics.AddRows(metrics.StageAggregate, cleaned.NumRows())
	metrics.RevenueTotal.Set(summary.Total)
	res.Summary = summary

	if err := summary.Print(out); err != nil {
		return nil, fmt.Errorf("failed to write report: %w", err)
	}

	logger.Info("Visualizing data")
	start = time.Now()
	chartCfg := chart.DefaultConfig(cfg.OutputDir)
	chartCfg.Logger = logger
	artifacts, err := chart.Render(chartCfg, summary.ByProduct, summary.ByMonth)
	if err != nil {
		return nil, err
	}
	metrics.ObserveStage(metrics.StageRender, start)
	res.Artifacts = artifacts

	if cfg.MetricsPath != "" {
		if err := metrics.WriteTextfile(cfg.MetricsPath); err != nil {
			return nil, fmt.Errorf("failed to write metrics to %q: %w", cfg.MetricsPath, err)
		}
	}

	logger.Info("Pipeline completed",
		zap.Int("rows", cleaned.NumRows()),
		zap.Duration("elapsed", time.Since(began)))
	return res, nil
}
