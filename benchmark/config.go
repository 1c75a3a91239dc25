// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package benchmark

import (
	"errors"
	"fmt"
	"time"
)

// -----------------------------------------------------------------------------
// Configuration
// -----------------------------------------------------------------------------

// Config controls a single benchmark run.
//
// Thread Safety: Not safe to modify after the run starts. Each Run builds
// its own Config from defaults plus options.
type Config struct {
	// WarmupIterations is the number of discarded warmup calls. Warmup
	// failures are logged, never fatal.
	WarmupIterations int

	// MeasurementIterations is the maximum number of measured calls.
	MeasurementIterations int

	// MaxDuration is the advisory wall-clock budget for the measurement
	// phase. It is checked between iterations, never preemptively; an
	// in-flight iteration runs to completion.
	MaxDuration time.Duration

	// OutlierThresholdStdDev is the outlier band half-width in standard
	// deviations.
	OutlierThresholdStdDev float64

	// MinValidSamples is the minimum number of successfully measured
	// iterations. Below this the run fails with ErrInsufficientSamples.
	MinValidSamples int

	// ConfidenceLevel selects the confidence interval width, e.g. 0.95.
	ConfidenceLevel float64

	// TargetAvgMs, TargetP95Ms, and TargetP99Ms are optional latency
	// targets in milliseconds. Zero means "no target". When no target is
	// configured the run grades "N/A" and meets targets by default.
	TargetAvgMs float64
	TargetP95Ms float64
	TargetP99Ms float64
}

// DefaultConfig returns the standard run configuration.
func DefaultConfig() *Config {
	return &Config{
		WarmupIterations:       10,
		MeasurementIterations:  100,
		MaxDuration:            60 * time.Second,
		OutlierThresholdStdDev: 2.0,
		MinValidSamples:        10,
		ConfidenceLevel:        0.95,
	}
}

// Validate checks the configuration for usable values.
func (c *Config) Validate() error {
	if c.WarmupIterations < 0 {
		return fmt.Errorf("warmup iterations must be >= 0, got %d", c.WarmupIterations)
	}
	if c.MeasurementIterations <= 0 {
		return fmt.Errorf("measurement iterations must be > 0, got %d", c.MeasurementIterations)
	}
	if c.MaxDuration <= 0 {
		return errors.New("max duration must be positive")
	}
	if c.OutlierThresholdStdDev <= 0 {
		return fmt.Errorf("outlier threshold must be > 0, got %v", c.OutlierThresholdStdDev)
	}
	if c.MinValidSamples <= 0 {
		return fmt.Errorf("min valid samples must be > 0, got %d", c.MinValidSamples)
	}
	if c.ConfidenceLevel <= 0 || c.ConfidenceLevel >= 1 {
		return fmt.Errorf("confidence level must be in (0, 1), got %v", c.ConfidenceLevel)
	}
	if c.TargetAvgMs < 0 || c.TargetP95Ms < 0 || c.TargetP99Ms < 0 {
		return errors.New("latency targets must be >= 0")
	}
	return nil
}

// hasTargets reports whether any latency target is configured.
func (c *Config) hasTargets() bool {
	return c.TargetAvgMs > 0 || c.TargetP95Ms > 0 || c.TargetP99Ms > 0
}

// -----------------------------------------------------------------------------
// Run Options
// -----------------------------------------------------------------------------

// RunOption configures a benchmark run.
//
// Description:
//
//	RunOption functions modify the run Config. They are applied in order,
//	so later options override earlier ones.
type RunOption func(*Config)

// WithWarmup sets the number of warmup iterations.
//
// Inputs:
//   - n: Number of warmup iterations. Negative values are ignored.
func WithWarmup(n int) RunOption {
	return func(c *Config) {
		if n >= 0 {
			c.WarmupIterations = n
		}
	}
}

// WithIterations sets the number of measured iterations.
//
// Inputs:
//   - n: Number of iterations. Non-positive values are ignored.
func WithIterations(n int) RunOption {
	return func(c *Config) {
		if n > 0 {
			c.MeasurementIterations = n
		}
	}
}

// WithMaxDuration sets the advisory wall-clock budget for measurement.
//
// Inputs:
//   - d: Budget. Non-positive values are ignored.
func WithMaxDuration(d time.Duration) RunOption {
	return func(c *Config) {
		if d > 0 {
			c.MaxDuration = d
		}
	}
}

// WithOutlierThreshold sets the outlier band half-width in standard
// deviations. Common values: 2.0 (default), 3.0 (extreme only).
//
// Inputs:
//   - threshold: Band half-width. Non-positive values are ignored.
func WithOutlierThreshold(threshold float64) RunOption {
	return func(c *Config) {
		if threshold > 0 {
			c.OutlierThresholdStdDev = threshold
		}
	}
}

// WithMinValidSamples sets the minimum number of successful measurements.
//
// Inputs:
//   - n: Minimum sample count. Non-positive values are ignored.
func WithMinValidSamples(n int) RunOption {
	return func(c *Config) {
		if n > 0 {
			c.MinValidSamples = n
		}
	}
}

// WithConfidenceLevel sets the confidence interval level.
//
// Inputs:
//   - level: Confidence level in (0, 1). Out-of-range values are ignored.
func WithConfidenceLevel(level float64) RunOption {
	return func(c *Config) {
		if level > 0 && level < 1 {
			c.ConfidenceLevel = level
		}
	}
}

// WithTargets sets the optional latency targets in milliseconds.
// A zero value leaves the corresponding target unset.
//
// Example:
//
//	engine.Run(ctx, "checkout", op,
//	    benchmark.WithTargets(50, 120, 0),  // avg 50ms, p95 120ms, no p99 target
//	)
func WithTargets(avgMs, p95Ms, p99Ms float64) RunOption {
	return func(c *Config) {
		if avgMs >= 0 {
			c.TargetAvgMs = avgMs
		}
		if p95Ms >= 0 {
			c.TargetP95Ms = p95Ms
		}
		if p99Ms >= 0 {
			c.TargetP99Ms = p99Ms
		}
	}
}
