// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads and validates the application configuration for the
// perfbench CLI and server.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/perfbench/benchmark"
	"github.com/AleutianAI/perfbench/regression"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendBadger = "badger"
)

// Config is the top-level application configuration.
//
// Thread Safety: Safe to read concurrently. Not safe to modify after load.
type Config struct {
	// Benchmark contains benchmark engine defaults.
	Benchmark BenchmarkConfig `yaml:"benchmark"`

	// Detector contains regression detection thresholds.
	Detector DetectorConfig `yaml:"detector"`

	// Store selects and configures the result/baseline store.
	Store StoreConfig `yaml:"store"`

	// Telemetry configures the metrics sinks.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Server configures the read-only HTTP API.
	Server ServerConfig `yaml:"server"`
}

// BenchmarkConfig contains benchmark engine defaults.
type BenchmarkConfig struct {
	WarmupIterations       int           `yaml:"warmup_iterations" validate:"gte=0"`
	MeasurementIterations  int           `yaml:"measurement_iterations" validate:"gte=1"`
	MaxDuration            time.Duration `yaml:"max_duration" validate:"gt=0"`
	OutlierThresholdStdDev float64       `yaml:"outlier_threshold_std_dev" validate:"gt=0"`
	MinValidSamples        int           `yaml:"min_valid_samples" validate:"gte=1"`
	ConfidenceLevel        float64       `yaml:"confidence_level" validate:"gt=0,lt=1"`
}

// DetectorConfig contains regression detection thresholds.
type DetectorConfig struct {
	MinSampleSize     int     `yaml:"min_sample_size" validate:"gte=2"`
	MinorThreshold    float64 `yaml:"minor_threshold" validate:"gt=1"`
	MajorThreshold    float64 `yaml:"major_threshold" validate:"gtefield=MinorThreshold"`
	CriticalThreshold float64 `yaml:"critical_threshold" validate:"gtefield=MajorThreshold"`
	MinEffectSize     float64 `yaml:"min_effect_size" validate:"gte=0"`
	PValueThreshold   float64 `yaml:"p_value_threshold" validate:"gt=0,lt=1"`
	RetentionDays     int     `yaml:"retention_days" validate:"gte=1"`
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Backend string `yaml:"backend" validate:"oneof=memory badger"`

	// Path is the BadgerDB directory. Required for the badger backend
	// unless InMemory is set.
	Path string `yaml:"path" validate:"required_if=Backend badger InMemory false"`

	// InMemory runs BadgerDB without disk persistence.
	InMemory bool `yaml:"in_memory"`

	// SyncWrites forces fsync on every write.
	SyncWrites bool `yaml:"sync_writes"`
}

// TelemetryConfig configures the metrics sinks. Disabled sinks are not
// constructed.
type TelemetryConfig struct {
	Prometheus PrometheusConfig `yaml:"prometheus"`
	Influx     InfluxConfig     `yaml:"influx"`
}

// PrometheusConfig configures the Prometheus sink and /metrics endpoint.
type PrometheusConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace" validate:"required_with=Enabled"`
}

// InfluxConfig configures the InfluxDB sink.
type InfluxConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url" validate:"omitempty,url"`
	Token   string `yaml:"token"`
	Org     string `yaml:"org"`
	Bucket  string `yaml:"bucket"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Address string `yaml:"address" validate:"required,hostname_port"`
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	return &Config{
		Benchmark: BenchmarkConfig{
			WarmupIterations:       10,
			MeasurementIterations:  100,
			MaxDuration:            time.Minute,
			OutlierThresholdStdDev: 2.0,
			MinValidSamples:        10,
			ConfidenceLevel:        0.95,
		},
		Detector: DetectorConfig{
			MinSampleSize:     10,
			MinorThreshold:    1.2,
			MajorThreshold:    1.5,
			CriticalThreshold: 2.0,
			MinEffectSize:     0.5,
			PValueThreshold:   0.05,
			RetentionDays:     90,
		},
		Store: StoreConfig{
			Backend:  BackendMemory,
			InMemory: true,
		},
		Telemetry: TelemetryConfig{
			Prometheus: PrometheusConfig{Namespace: "perfbench"},
		},
		Server: ServerConfig{
			Address: "localhost:8080",
		},
	}
}

// Load reads a YAML configuration file over the defaults and validates
// the result. An empty path returns the validated defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration against its struct constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// RunOptions converts the benchmark section into engine run options.
func (c BenchmarkConfig) RunOptions() []benchmark.RunOption {
	return []benchmark.RunOption{
		benchmark.WithWarmup(c.WarmupIterations),
		benchmark.WithIterations(c.MeasurementIterations),
		benchmark.WithMaxDuration(c.MaxDuration),
		benchmark.WithOutlierThreshold(c.OutlierThresholdStdDev),
		benchmark.WithMinValidSamples(c.MinValidSamples),
		benchmark.WithConfidenceLevel(c.ConfidenceLevel),
	}
}

// DetectorConfig converts the detector section into detection thresholds.
func (c DetectorConfig) DetectorConfig() regression.DetectorConfig {
	cfg := regression.DefaultDetectorConfig()
	cfg.MinSampleSize = c.MinSampleSize
	cfg.MinorThreshold = c.MinorThreshold
	cfg.MajorThreshold = c.MajorThreshold
	cfg.CriticalThreshold = c.CriticalThreshold
	cfg.MinEffectSize = c.MinEffectSize
	cfg.PValueThreshold = c.PValueThreshold
	return cfg
}
