// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package regression

import (
	"time"

	"github.com/AleutianAI/perfbench/stats"
	"github.com/AleutianAI/perfbench/store"
)

// baselineKeyPrefix namespaces persisted baselines in the store.
const baselineKeyPrefix = "baseline/"

// Baseline is a recorded performance reference for one operation.
//
// A baseline is immutable once created. "Updating" a baseline means
// creating a new one, which becomes the current reference for the
// operation; older baselines are retained until cleanup.
type Baseline struct {
	// ID uniquely identifies this baseline.
	ID string `json:"id"`

	// Operation is the benchmarked operation name.
	Operation string `json:"operation"`

	// CreatedAt is when the baseline was recorded (UTC).
	CreatedAt time.Time `json:"created_at"`

	// Latency summarizes the recorded duration samples in milliseconds.
	// Baselines are computed from raw samples; no outlier removal.
	Latency stats.Summary `json:"latency"`

	// AvgCPUPercent is the mean process CPU usage during recording,
	// zero when not supplied.
	AvgCPUPercent float64 `json:"avg_cpu_percent,omitempty"`

	// AvgMemoryMB is the mean resident memory during recording,
	// zero when not supplied.
	AvgMemoryMB float64 `json:"avg_memory_mb,omitempty"`

	// Environment names where the baseline was recorded (e.g. "ci", "prod").
	Environment string `json:"environment,omitempty"`

	// Version is the software version the baseline was recorded against.
	Version string `json:"version,omitempty"`

	// Tags carries free-form metadata.
	Tags map[string]string `json:"tags,omitempty"`
}

// BaselineKey builds the storage key for a baseline.
func BaselineKey(b *Baseline) string {
	return baselineKeyPrefix + b.Operation + "/" + store.TimeKey(b.CreatedAt) + "/" + b.ID
}

// BaselineOption annotates a baseline at creation time.
type BaselineOption func(*Baseline)

// WithEnvironment records the environment the baseline was captured in.
func WithEnvironment(env string) BaselineOption {
	return func(b *Baseline) { b.Environment = env }
}

// WithVersion records the software version under test.
func WithVersion(version string) BaselineOption {
	return func(b *Baseline) { b.Version = version }
}

// WithTags attaches free-form metadata to the baseline.
func WithTags(tags map[string]string) BaselineOption {
	return func(b *Baseline) {
		if len(tags) == 0 {
			return
		}
		b.Tags = make(map[string]string, len(tags))
		for k, v := range tags {
			b.Tags[k] = v
		}
	}
}

// WithResourceUsage records the mean CPU and memory cost observed while
// the baseline samples were gathered.
func WithResourceUsage(cpuPercent, memoryMB float64) BaselineOption {
	return func(b *Baseline) {
		b.AvgCPUPercent = cpuPercent
		b.AvgMemoryMB = memoryMB
	}
}

// WithResourceSamples records per-iteration CPU and memory observations,
// reduced to their means. Either slice may be empty.
func WithResourceSamples(cpuPercents, memoryMBs []float64) BaselineOption {
	return func(b *Baseline) {
		if len(cpuPercents) > 0 {
			b.AvgCPUPercent = stats.Mean(cpuPercents)
		}
		if len(memoryMBs) > 0 {
			b.AvgMemoryMB = stats.Mean(memoryMBs)
		}
	}
}
