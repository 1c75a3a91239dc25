// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package stats

import (
	"math"
	"testing"
)

func almostEqual(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}

func TestMean(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		if got := Mean(nil); got != 0 {
			t.Errorf("Mean(nil) = %v, want 0", got)
		}
	})

	t.Run("simple", func(t *testing.T) {
		if got := Mean([]float64{1, 2, 3, 4}); got != 2.5 {
			t.Errorf("Mean = %v, want 2.5", got)
		}
	})
}

func TestStdDev(t *testing.T) {
	t.Run("fewer than two samples", func(t *testing.T) {
		if got := StdDev([]float64{5}); got != 0 {
			t.Errorf("StdDev = %v, want 0", got)
		}
	})

	t.Run("population stddev", func(t *testing.T) {
		// Samples 2,4,4,4,5,5,7,9 have population stddev exactly 2.
		got := StdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9})
		if !almostEqual(got, 2.0, 1e-9) {
			t.Errorf("StdDev = %v, want 2.0", got)
		}
	})

	t.Run("zero variance", func(t *testing.T) {
		if got := StdDev([]float64{3, 3, 3}); got != 0 {
			t.Errorf("StdDev = %v, want 0", got)
		}
	})
}

func TestPercentileMonotonic(t *testing.T) {
	// For any sample array, p99 >= p95 >= median.
	arrays := [][]float64{
		{1},
		{1, 2},
		{5, 1, 9, 3, 7},
		{100, 100, 100, 100},
		{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 50, 200},
	}
	for _, samples := range arrays {
		s := Summarize(samples, 0.95)
		if s.P99 < s.P95 {
			t.Errorf("p99 (%v) < p95 (%v) for %v", s.P99, s.P95, samples)
		}
		if s.P95 < s.Median {
			t.Errorf("p95 (%v) < median (%v) for %v", s.P95, s.Median, samples)
		}
	}
}

func TestSummarize(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		s := Summarize(nil, 0.95)
		if s.SampleCount != 0 {
			t.Errorf("SampleCount = %d, want 0", s.SampleCount)
		}
	})

	t.Run("p99 falls back to max below 100 samples", func(t *testing.T) {
		samples := make([]float64, 50)
		for i := range samples {
			samples[i] = float64(i + 1)
		}
		s := Summarize(samples, 0.95)
		if s.P99 != 50 {
			t.Errorf("P99 = %v, want max (50)", s.P99)
		}
	})

	t.Run("p99 uses order statistic at 100 samples", func(t *testing.T) {
		samples := make([]float64, 100)
		for i := range samples {
			samples[i] = float64(i + 1)
		}
		s := Summarize(samples, 0.95)
		// floor(0.99 * 100) = 99 -> sorted[99] = 100
		if s.P99 != 100 {
			t.Errorf("P99 = %v, want 100", s.P99)
		}
		// floor(0.95 * 100) = 95 -> sorted[95] = 96
		if s.P95 != 96 {
			t.Errorf("P95 = %v, want 96", s.P95)
		}
	})

	t.Run("confidence interval brackets the mean", func(t *testing.T) {
		samples := []float64{10, 12, 11, 13, 9, 10, 11, 12}
		s := Summarize(samples, 0.95)
		if s.CILow > s.Mean || s.CIHigh < s.Mean {
			t.Errorf("CI [%v, %v] does not bracket mean %v", s.CILow, s.CIHigh, s.Mean)
		}
		wantMargin := 1.96 * s.StdDev / math.Sqrt(float64(len(samples)))
		if !almostEqual(s.CIMargin(), wantMargin, 1e-9) {
			t.Errorf("CIMargin = %v, want %v", s.CIMargin(), wantMargin)
		}
	})

	t.Run("does not modify input", func(t *testing.T) {
		samples := []float64{3, 1, 2}
		Summarize(samples, 0.95)
		if samples[0] != 3 || samples[1] != 1 || samples[2] != 2 {
			t.Errorf("input modified: %v", samples)
		}
	})
}

func TestZScore(t *testing.T) {
	if got := ZScore(0.95); got != 1.96 {
		t.Errorf("ZScore(0.95) = %v, want 1.96", got)
	}
	if got := ZScore(0.99); got != 2.576 {
		t.Errorf("ZScore(0.99) = %v, want 2.576", got)
	}
	if got := ZScore(0.1234); got != 1.96 {
		t.Errorf("ZScore fallback = %v, want 1.96", got)
	}
}

func TestRemoveOutliers(t *testing.T) {
	t.Run("drops single extreme outlier", func(t *testing.T) {
		// 50 samples uniformly spread in [95, 105] plus one 5000ms outlier.
		samples := make([]float64, 0, 51)
		for i := 0; i < 50; i++ {
			samples = append(samples, 95+float64(i)*10.0/49.0)
		}
		samples = append(samples, 5000)

		kept, removed := RemoveOutliers(samples, 2.0)
		if removed != 1 {
			t.Fatalf("removed = %d, want 1", removed)
		}
		mean := Mean(kept)
		if mean < 95 || mean > 105 {
			t.Errorf("filtered mean = %v, want within [95, 105]", mean)
		}
	})

	t.Run("idempotent", func(t *testing.T) {
		samples := []float64{10, 11, 12, 10, 11, 13, 12, 11, 10, 500}
		once, _ := RemoveOutliers(samples, 2.0)
		twice, removedAgain := RemoveOutliers(once, 2.0)
		if len(twice) > len(once) {
			t.Errorf("reapplication grew the set: %d -> %d", len(once), len(twice))
		}
		// Output must still satisfy the >= 50%-retained guard.
		if len(twice) < (len(once)+1)/2 {
			t.Errorf("retained fraction guard violated: %d of %d", len(twice), len(once))
		}
		_ = removedAgain
	})

	t.Run("reverts when over half would be discarded", func(t *testing.T) {
		// Bimodal: half at 1, half at 1000, tiny threshold.
		samples := []float64{1, 1, 1, 1000, 1000, 1000}
		kept, removed := RemoveOutliers(samples, 0.1)
		if removed != 0 || len(kept) != len(samples) {
			t.Errorf("expected revert to unfiltered set, got kept=%d removed=%d", len(kept), removed)
		}
	})

	t.Run("fewer than three samples unchanged", func(t *testing.T) {
		kept, removed := RemoveOutliers([]float64{1, 99999}, 2.0)
		if removed != 0 || len(kept) != 2 {
			t.Errorf("small arrays must pass through, got kept=%d removed=%d", len(kept), removed)
		}
	})

	t.Run("zero variance unchanged", func(t *testing.T) {
		kept, removed := RemoveOutliers([]float64{7, 7, 7, 7}, 2.0)
		if removed != 0 || len(kept) != 4 {
			t.Errorf("constant arrays must pass through, got kept=%d removed=%d", len(kept), removed)
		}
	})
}

func TestCohensD(t *testing.T) {
	t.Run("zero pooled stddev", func(t *testing.T) {
		if got := CohensD(100, 0, 250, 0); got != 0 {
			t.Errorf("CohensD = %v, want 0", got)
		}
	})

	t.Run("known value", func(t *testing.T) {
		// |100-250| / sqrt((5^2+5^2)/2) = 150 / 5 = 30
		got := CohensD(100, 5, 250, 5)
		if !almostEqual(got, 30, 1e-9) {
			t.Errorf("CohensD = %v, want 30", got)
		}
	})

	t.Run("symmetric", func(t *testing.T) {
		a := CohensD(100, 5, 120, 8)
		b := CohensD(120, 8, 100, 5)
		if !almostEqual(a, b, 1e-12) {
			t.Errorf("CohensD not symmetric: %v vs %v", a, b)
		}
	})
}
