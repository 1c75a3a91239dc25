// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package stats provides the statistical reduction shared by the benchmark
// engine and the regression detector.
//
// All functions operate on float64 sample arrays (durations are expressed in
// milliseconds by callers). The reduction is deliberately simple: population
// standard deviation, order-statistic percentiles with floor indexing, and a
// normal-approximation confidence interval. Both engines must reduce samples
// identically, which is why this lives in one package.
package stats

import (
	"math"
	"sort"
)

// -----------------------------------------------------------------------------
// Summary
// -----------------------------------------------------------------------------

// Summary is the statistical reduction of one sample array.
//
// Thread Safety: Immutable after creation; safe for concurrent read access.
type Summary struct {
	// Mean is the arithmetic mean.
	Mean float64 `json:"mean"`

	// Median is the 50th percentile.
	Median float64 `json:"median"`

	// P95 is the 95th percentile.
	P95 float64 `json:"p95"`

	// P99 is the 99th percentile. For fewer than 100 samples this falls
	// back to the maximum value rather than interpolating.
	P99 float64 `json:"p99"`

	// Min is the smallest sample.
	Min float64 `json:"min"`

	// Max is the largest sample.
	Max float64 `json:"max"`

	// StdDev is the population standard deviation.
	StdDev float64 `json:"std_dev"`

	// CILow and CIHigh bound the confidence interval around the mean.
	CILow  float64 `json:"ci_low"`
	CIHigh float64 `json:"ci_high"`

	// SampleCount is the number of samples reduced.
	SampleCount int `json:"sample_count"`
}

// CIMargin returns the half-width of the confidence interval.
func (s Summary) CIMargin() float64 {
	return (s.CIHigh - s.CILow) / 2
}

// Overlaps reports whether this summary's confidence interval overlaps
// the other's.
func (s Summary) Overlaps(other Summary) bool {
	return s.CILow <= other.CIHigh && other.CILow <= s.CIHigh
}

// -----------------------------------------------------------------------------
// Reduction
// -----------------------------------------------------------------------------

// zScores maps supported confidence levels to normal-approximation critical
// values. The normal constant is used even for small n; there is no
// t-distribution adjustment.
var zScores = map[float64]float64{
	0.90: 1.645,
	0.95: 1.96,
	0.99: 2.576,
}

// ZScore returns the critical value for the given confidence level.
// Unrecognized levels fall back to 1.96 (95%).
func ZScore(confidenceLevel float64) float64 {
	if z, ok := zScores[confidenceLevel]; ok {
		return z
	}
	return 1.96
}

// Mean returns the arithmetic mean, or 0 for an empty array.
func Mean(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s
	}
	return sum / float64(len(samples))
}

// StdDev returns the population standard deviation, or 0 for fewer than
// two samples.
func StdDev(samples []float64) float64 {
	if len(samples) < 2 {
		return 0
	}
	mean := Mean(samples)
	var sumSq float64
	for _, s := range samples {
		diff := s - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(len(samples)))
}

// Percentile returns the pth percentile (0 < p <= 1) of a sorted array
// using order statistics with floor indexing: index = floor(p * n).
//
// Inputs:
//   - sorted: Samples in ascending order. Must not be empty.
//   - p: Percentile as a fraction, e.g. 0.95.
//
// This is an approximation, not interpolation; it matches the reduction
// used when the baselines were recorded, so it must not change.
func Percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Floor(p * float64(len(sorted))))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	if idx < 0 {
		idx = 0
	}
	return sorted[idx]
}

// Summarize reduces a sample array to a Summary.
//
// Description:
//
//	Computes mean, median, p95, p99, min, max, population standard
//	deviation, and a confidence interval mean ± z*stddev/sqrt(n) where z
//	is the normal critical value for the given confidence level.
//
//	P99 requires at least 100 samples to be meaningful with floor
//	indexing; below that it falls back to the maximum observed value.
//
// Inputs:
//   - samples: Raw samples. The input slice is not modified.
//   - confidenceLevel: Confidence level for the interval, e.g. 0.95.
//
// Outputs:
//   - Summary: The reduction. Zero value for an empty input.
//
// Thread Safety: Stateless function; safe for concurrent use.
func Summarize(samples []float64, confidenceLevel float64) Summary {
	n := len(samples)
	if n == 0 {
		return Summary{}
	}

	sorted := make([]float64, n)
	copy(sorted, samples)
	sort.Float64s(sorted)

	mean := Mean(sorted)
	stdDev := StdDev(sorted)
	margin := ZScore(confidenceLevel) * stdDev / math.Sqrt(float64(n))

	p99 := sorted[n-1]
	if n >= 100 {
		p99 = Percentile(sorted, 0.99)
	}

	return Summary{
		Mean:        mean,
		Median:      Percentile(sorted, 0.50),
		P95:         Percentile(sorted, 0.95),
		P99:         p99,
		Min:         sorted[0],
		Max:         sorted[n-1],
		StdDev:      stdDev,
		CILow:       mean - margin,
		CIHigh:      mean + margin,
		SampleCount: n,
	}
}

// -----------------------------------------------------------------------------
// Outlier Removal
// -----------------------------------------------------------------------------

// RemoveOutliers filters samples farther than thresholdStdDev standard
// deviations from the mean.
//
// Description:
//
//	Computes mean and standard deviation of the input and keeps samples
//	within the threshold band. If filtering would discard more than 50% of
//	the samples the unfiltered input is returned instead: a degenerate
//	small-n distribution must not be reduced to a handful of points.
//
//	Arrays with fewer than 3 samples, or with zero variance, are returned
//	unchanged.
//
// Inputs:
//   - samples: Raw samples. The input slice is not modified.
//   - thresholdStdDev: Band half-width in standard deviations, e.g. 2.0.
//
// Outputs:
//   - []float64: Retained samples (a new slice when filtering occurred).
//   - int: Number of samples removed.
//
// Thread Safety: Stateless function; safe for concurrent use.
func RemoveOutliers(samples []float64, thresholdStdDev float64) ([]float64, int) {
	if len(samples) < 3 || thresholdStdDev <= 0 {
		return samples, 0
	}

	mean := Mean(samples)
	stdDev := StdDev(samples)
	if stdDev == 0 {
		return samples, 0
	}

	band := thresholdStdDev * stdDev
	kept := make([]float64, 0, len(samples))
	for _, s := range samples {
		if math.Abs(s-mean) <= band {
			kept = append(kept, s)
		}
	}

	removed := len(samples) - len(kept)
	if len(kept) < (len(samples)+1)/2 {
		// Retained fraction fell below 50%; revert to the unfiltered set.
		return samples, 0
	}
	return kept, removed
}

// -----------------------------------------------------------------------------
// Effect Size
// -----------------------------------------------------------------------------

// CohensD returns the pooled-variance Cohen's d effect size between two
// distributions described by mean and standard deviation.
//
// Description:
//
//	d = |mean1 - mean2| / sqrt((std1² + std2²) / 2)
//
//	Returns 0 when the pooled standard deviation is 0 (identical constant
//	distributions have no measurable effect size).
//
// Thread Safety: Stateless function; safe for concurrent use.
func CohensD(mean1, std1, mean2, std2 float64) float64 {
	pooled := math.Sqrt((std1*std1 + std2*std2) / 2)
	if pooled == 0 {
		return 0
	}
	return math.Abs(mean1-mean2) / pooled
}
