// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "perfbench.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 100, cfg.Benchmark.MeasurementIterations)
	assert.Equal(t, 0.95, cfg.Benchmark.ConfidenceLevel)
	assert.Equal(t, BackendMemory, cfg.Store.Backend)
	assert.Equal(t, 2.0, cfg.Detector.CriticalThreshold)
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
benchmark:
  measurement_iterations: 250
detector:
  critical_threshold: 3.0
store:
  backend: badger
  path: /tmp/perfbench
server:
  address: localhost:9090
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 250, cfg.Benchmark.MeasurementIterations)
	assert.Equal(t, 3.0, cfg.Detector.CriticalThreshold)
	assert.Equal(t, BackendBadger, cfg.Store.Backend)
	assert.Equal(t, "localhost:9090", cfg.Server.Address)
	// Untouched sections keep their defaults.
	assert.Equal(t, 10, cfg.Benchmark.WarmupIterations)
	assert.Equal(t, 1.2, cfg.Detector.MinorThreshold)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name     string
		contents string
	}{
		{"unknown backend", "store:\n  backend: etcd\n"},
		{"zero iterations", "benchmark:\n  measurement_iterations: 0\n"},
		{"confidence out of range", "benchmark:\n  confidence_level: 1.5\n"},
		{"descending thresholds", "detector:\n  major_threshold: 1.1\n"},
		{"badger without path", "store:\n  backend: badger\n  in_memory: false\n"},
		{"bad influx url", "telemetry:\n  influx:\n    url: not-a-url\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.contents))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestRunOptions(t *testing.T) {
	opts := Default().Benchmark.RunOptions()
	assert.Len(t, opts, 6)
}

func TestDetectorConfigConversion(t *testing.T) {
	cfg := Default().Detector.DetectorConfig()
	assert.Equal(t, 10, cfg.MinSampleSize)
	assert.Equal(t, 1.5, cfg.MajorThreshold)
	assert.NoError(t, cfg.Validate())
}
