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
	"time"

	"github.com/AleutianAI/perfbench/stats"
)

// -----------------------------------------------------------------------------
// Trend
// -----------------------------------------------------------------------------

// Trend labels a result's movement relative to the immediately preceding
// result for the same operation.
type Trend string

const (
	// TrendUnknown means no previous result exists to compare against.
	TrendUnknown Trend = "unknown"

	// TrendStable means the mean moved less than 5% in either direction.
	TrendStable Trend = "stable"

	// TrendImproving means the mean decreased by 5% or more.
	TrendImproving Trend = "improving"

	// TrendDegrading means the mean increased by 5% or more.
	TrendDegrading Trend = "degrading"
)

// trendStableBand is the relative change below which a run counts as stable.
const trendStableBand = 0.05

// -----------------------------------------------------------------------------
// Result
// -----------------------------------------------------------------------------

// Result is the immutable summary of one benchmark run for one operation.
//
// Description:
//
//	Result carries the full statistical reduction of the run's valid
//	samples plus grading and trend context. It serializes losslessly to
//	JSON (timestamps in RFC 3339 form) so results survive persistence and
//	reload across restarts.
//
// Thread Safety: Immutable after creation; safe for concurrent read access.
type Result struct {
	// Operation is the benchmarked operation's name.
	Operation string `json:"operation"`

	// RunID uniquely identifies this run.
	RunID string `json:"run_id"`

	// Timestamp is when the run completed.
	Timestamp time.Time `json:"timestamp"`

	// Latency is the statistical reduction of the valid samples, in
	// milliseconds.
	Latency stats.Summary `json:"latency"`

	// RawSampleCount is the number of successfully measured iterations
	// before outlier removal.
	RawSampleCount int `json:"raw_sample_count"`

	// ValidSampleCount is the number of samples after outlier removal.
	ValidSampleCount int `json:"valid_sample_count"`

	// OutliersRemoved is RawSampleCount - ValidSampleCount.
	OutliersRemoved int `json:"outliers_removed"`

	// FailedIterations is the number of iterations dropped because the
	// target operation returned an error.
	FailedIterations int `json:"failed_iterations"`

	// AvgCPUPercent is the mean per-iteration CPU utilization, when the
	// resource sampler was available.
	AvgCPUPercent float64 `json:"avg_cpu_percent"`

	// AvgMemoryMB is the mean per-iteration resident memory in megabytes,
	// when the resource sampler was available.
	AvgMemoryMB float64 `json:"avg_memory_mb"`

	// MeetsTargets is true when every configured latency target was met.
	// Defaults to true when no targets are configured.
	MeetsTargets bool `json:"meets_targets"`

	// Grade is the letter grade A-F against configured targets, or "N/A"
	// when no targets are configured.
	Grade string `json:"grade"`

	// Trend labels this run against the previous run for the operation.
	Trend Trend `json:"trend"`

	// TrendChangePercent is the mean's relative change driving the trend,
	// in percent. Zero when Trend is unknown.
	TrendChangePercent float64 `json:"trend_change_percent"`
}

// -----------------------------------------------------------------------------
// Grading
// -----------------------------------------------------------------------------

// GradeNA is the grade reported when no latency targets are configured.
const GradeNA = "N/A"

// targetScore maps an observed/target ratio onto a 0-100 score.
func targetScore(observed, target float64) float64 {
	ratio := observed / target
	switch {
	case ratio <= 1.0:
		return 100
	case ratio <= 1.2:
		return 80
	case ratio <= 1.5:
		return 60
	case ratio <= 2.0:
		return 40
	default:
		return 20
	}
}

// letterGrade maps an averaged score to a letter.
func letterGrade(score float64) string {
	switch {
	case score >= 90:
		return "A"
	case score >= 80:
		return "B"
	case score >= 70:
		return "C"
	case score >= 60:
		return "D"
	default:
		return "F"
	}
}

// gradeTargets scores the reduction against the configured targets.
//
// Returns the letter grade ("N/A" when no targets are configured) and
// whether every configured target was met outright.
func gradeTargets(latency stats.Summary, cfg *Config) (grade string, meetsTargets bool) {
	if !cfg.hasTargets() {
		return GradeNA, true
	}

	meetsTargets = true
	var total float64
	var scored int

	check := func(observed, target float64) {
		if target <= 0 {
			return
		}
		total += targetScore(observed, target)
		scored++
		if observed > target {
			meetsTargets = false
		}
	}
	check(latency.Mean, cfg.TargetAvgMs)
	check(latency.P95, cfg.TargetP95Ms)
	check(latency.P99, cfg.TargetP99Ms)

	return letterGrade(total / float64(scored)), meetsTargets
}

// trendAgainst labels the mean's movement relative to a previous result.
func trendAgainst(previous *Result, currentMean float64) (Trend, float64) {
	if previous == nil || previous.Latency.Mean == 0 {
		return TrendUnknown, 0
	}
	change := (currentMean - previous.Latency.Mean) / previous.Latency.Mean
	switch {
	case change >= trendStableBand:
		return TrendDegrading, change * 100
	case change <= -trendStableBand:
		return TrendImproving, change * 100
	default:
		return TrendStable, change * 100
	}
}
