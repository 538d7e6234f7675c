package config

import (
	"testing"

	"github.com/TFMV/salesdash/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestFromOptsDefaults(t *testing.T) {
	opts, err := Parse(nil)
	require.NoError(t, err)

	cfg, err := FromOpts(opts)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, "./data/sales_data.csv", cfg.DataPath)
	assert.Equal(t, "./output/figures", cfg.OutputDir)
	assert.Empty(t, cfg.SnapshotPath)
	assert.Empty(t, cfg.MetricsPath)
}

func TestFromOptsOverrides(t *testing.T) {
	opts, err := Parse([]string{
		"--data=in.csv",
		"--output-dir=charts",
		"--snapshot=clean.arrow",
		"--snapshot-compression=lz4",
		"--metrics=run.prom",
		"--log-level=debug",
	})
	require.NoError(t, err)

	cfg, err := FromOpts(opts)
	require.NoError(t, err)
	assert.Equal(t, "in.csv", cfg.DataPath)
	assert.Equal(t, "charts", cfg.OutputDir)
	assert.Equal(t, "clean.arrow", cfg.SnapshotPath)
	assert.Equal(t, "run.prom", cfg.MetricsPath)
	assert.Equal(t, storage.CompressionLZ4, cfg.SnapshotCompression)

	lvl, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, zapcore.DebugLevel, lvl)
}

func TestFromOptsInvalidLevel(t *testing.T) {
	opts, err := Parse([]string{"--log-level=loud"})
	require.NoError(t, err)

	_, err = FromOpts(opts)
	assert.Error(t, err)
}

func TestParseVersionAndHelp(t *testing.T) {
	opts, err := Parse([]string{"--version"})
	require.NoError(t, err)
	v, _ := opts.Bool("--version")
	assert.True(t, v)

	opts, err = Parse([]string{"-h"})
	require.NoError(t, err)
	h, _ := opts.Bool("--help")
	assert.True(t, h)
}

func TestParseRejectsUnknownFlag(t *testing.T) {
	_, err := Parse([]string{"--bogus"})
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty data path", func(c *Config) { c.DataPath = "" }},
		{"empty output dir", func(c *Config) { c.OutputDir = "" }},
		{"negative cache", func(c *Config) { c.DateCacheSize = -1 }},
		{"zero bloom rate", func(c *Config) { c.BloomFPRate = 0 }},
		{"bloom rate of one", func(c *Config) { c.BloomFPRate = 1 }},
		{"unknown codec", func(c *Config) { c.SnapshotCompression = "gzip" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	assert.NoError(t, Default().Validate())
}
