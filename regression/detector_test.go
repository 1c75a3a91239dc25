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
	"context"
	"errors"
	"testing"
	"time"

	"github.com/AleutianAI/perfbench/stats"
	"github.com/AleutianAI/perfbench/store"
)

// samplesAround builds n samples alternating around a center, giving a
// small nonzero spread.
func samplesAround(center float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		if i%2 == 0 {
			out[i] = center - 1
		} else {
			out[i] = center + 1
		}
	}
	return out
}

func TestCreateBaseline(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects nine samples", func(t *testing.T) {
		d := NewDetector()
		_, err := d.CreateBaseline(ctx, "checkout", samplesAround(100, 9))
		if !errors.Is(err, ErrInsufficientSamples) {
			t.Errorf("err = %v, want ErrInsufficientSamples", err)
		}
	})

	t.Run("accepts ten samples", func(t *testing.T) {
		d := NewDetector()
		b, err := d.CreateBaseline(ctx, "checkout", samplesAround(100, 10))
		if err != nil {
			t.Fatalf("CreateBaseline: %v", err)
		}
		if b.ID == "" {
			t.Error("baseline ID is empty")
		}
		if b.Latency.Mean != 100 {
			t.Errorf("mean = %v, want 100", b.Latency.Mean)
		}
		if b.Latency.SampleCount != 10 {
			t.Errorf("sample count = %d, want 10", b.Latency.SampleCount)
		}
	})

	t.Run("rejects slash in operation name", func(t *testing.T) {
		d := NewDetector()
		_, err := d.CreateBaseline(ctx, "bad/name", samplesAround(100, 10))
		if err == nil {
			t.Error("expected an error for a slash in the operation name")
		}
	})

	t.Run("no outlier removal", func(t *testing.T) {
		d := NewDetector()
		samples := append(samplesAround(100, 19), 5000)
		b, err := d.CreateBaseline(ctx, "spiky", samples)
		if err != nil {
			t.Fatalf("CreateBaseline: %v", err)
		}
		if b.Latency.SampleCount != 20 {
			t.Errorf("sample count = %d, want all 20 retained", b.Latency.SampleCount)
		}
		if b.Latency.Max != 5000 {
			t.Errorf("max = %v, want 5000", b.Latency.Max)
		}
	})

	t.Run("metadata options", func(t *testing.T) {
		d := NewDetector()
		b, err := d.CreateBaseline(ctx, "checkout", samplesAround(100, 10),
			WithEnvironment("ci"), WithVersion("v1.4.0"),
			WithTags(map[string]string{"branch": "main"}),
			WithResourceUsage(10, 128))
		if err != nil {
			t.Fatalf("CreateBaseline: %v", err)
		}
		if b.Environment != "ci" || b.Version != "v1.4.0" {
			t.Errorf("metadata = (%q, %q), want (ci, v1.4.0)", b.Environment, b.Version)
		}
		if b.Tags["branch"] != "main" {
			t.Errorf("tags = %v, want branch=main", b.Tags)
		}
		if b.AvgCPUPercent != 10 || b.AvgMemoryMB != 128 {
			t.Errorf("usage = (%v, %v), want (10, 128)", b.AvgCPUPercent, b.AvgMemoryMB)
		}
	})
}

func TestDetectRegression(t *testing.T) {
	ctx := context.Background()

	t.Run("critical slowdown", func(t *testing.T) {
		d := NewDetector()
		if _, err := d.CreateBaseline(ctx, "checkout", samplesAround(100, 10)); err != nil {
			t.Fatalf("CreateBaseline: %v", err)
		}
		result, err := d.DetectRegression(ctx, "checkout", samplesAround(250, 10))
		if err != nil {
			t.Fatalf("DetectRegression: %v", err)
		}
		if result.Severity != SeverityCritical {
			t.Errorf("severity = %q, want critical", result.Severity)
		}
		if !result.HasRegression {
			t.Error("HasRegression = false for a 2.5x slowdown")
		}
		if !result.Significant {
			t.Error("Significant = false with separated confidence intervals")
		}
		if result.EffectSize < 0.5 {
			t.Errorf("effect size = %v, want >= 0.5", result.EffectSize)
		}
		if result.Confidence < 0.9 {
			t.Errorf("confidence = %v, want >= 0.9", result.Confidence)
		}
		if result.PercentChange < 140 || result.PercentChange > 160 {
			t.Errorf("percent change = %v, want ~150", result.PercentChange)
		}
		if len(result.Recommendations) == 0 {
			t.Error("no recommendations for a critical regression")
		}
	})

	t.Run("small drift is not a regression", func(t *testing.T) {
		d := NewDetector()
		if _, err := d.CreateBaseline(ctx, "checkout", samplesAround(100, 10)); err != nil {
			t.Fatalf("CreateBaseline: %v", err)
		}
		result, err := d.DetectRegression(ctx, "checkout", samplesAround(102, 10))
		if err != nil {
			t.Fatalf("DetectRegression: %v", err)
		}
		if result.Severity != SeverityNone {
			t.Errorf("severity = %q, want none", result.Severity)
		}
		if result.HasRegression {
			t.Error("HasRegression = true for a 2% drift")
		}
	})

	t.Run("severity tiers", func(t *testing.T) {
		tests := []struct {
			name string
			mean float64
			want Severity
		}{
			{"below minor", 115, SeverityNone},
			{"minor", 125, SeverityMinor},
			{"major", 160, SeverityMajor},
			{"critical", 210, SeverityCritical},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				d := NewDetector()
				if _, err := d.CreateBaseline(ctx, "tiered", samplesAround(100, 10)); err != nil {
					t.Fatalf("CreateBaseline: %v", err)
				}
				result, err := d.DetectRegression(ctx, "tiered", samplesAround(tt.mean, 10))
				if err != nil {
					t.Fatalf("DetectRegression: %v", err)
				}
				if result.Severity != tt.want {
					t.Errorf("severity at mean %v = %q, want %q", tt.mean, result.Severity, tt.want)
				}
			})
		}
	})

	t.Run("cpu blowup without latency change", func(t *testing.T) {
		d := NewDetector()
		if _, err := d.CreateBaseline(ctx, "steady", samplesAround(100, 10),
			WithResourceUsage(10, 100)); err != nil {
			t.Fatalf("CreateBaseline: %v", err)
		}
		result, err := d.DetectRegression(ctx, "steady", samplesAround(100, 10),
			WithCurrentUsage(30, 100))
		if err != nil {
			t.Fatalf("DetectRegression: %v", err)
		}
		if result.HasRegression {
			t.Error("HasRegression = true with flat latency")
		}
		found := false
		for _, m := range result.FailingMetrics {
			if m == "cpu_usage" {
				found = true
			}
			if m == "memory_usage" {
				t.Error("memory_usage flagged without exceeding its threshold")
			}
		}
		if !found {
			t.Errorf("failing metrics = %v, want cpu_usage present", result.FailingMetrics)
		}
	})

	t.Run("resource sample sets reduce to means", func(t *testing.T) {
		d := NewDetector()
		if _, err := d.CreateBaseline(ctx, "sampled", samplesAround(100, 10),
			WithResourceSamples([]float64{8, 12}, []float64{90, 110})); err != nil {
			t.Fatalf("CreateBaseline: %v", err)
		}
		result, err := d.DetectRegression(ctx, "sampled", samplesAround(100, 10),
			WithCurrentUsageSamples([]float64{28, 32}, nil))
		if err != nil {
			t.Fatalf("DetectRegression: %v", err)
		}
		found := false
		for _, m := range result.FailingMetrics {
			if m == "cpu_usage" {
				found = true
			}
		}
		if !found {
			t.Errorf("failing metrics = %v, want cpu_usage from 10 -> 30 means", result.FailingMetrics)
		}
	})

	t.Run("insufficient samples", func(t *testing.T) {
		d := NewDetector()
		if _, err := d.CreateBaseline(ctx, "checkout", samplesAround(100, 10)); err != nil {
			t.Fatalf("CreateBaseline: %v", err)
		}
		_, err := d.DetectRegression(ctx, "checkout", samplesAround(100, 9))
		if !errors.Is(err, ErrInsufficientSamples) {
			t.Errorf("err = %v, want ErrInsufficientSamples", err)
		}
	})

	t.Run("no baseline", func(t *testing.T) {
		d := NewDetector()
		_, err := d.DetectRegression(ctx, "unknown", samplesAround(100, 10))
		if !errors.Is(err, ErrNoBaselineFound) {
			t.Errorf("err = %v, want ErrNoBaselineFound", err)
		}
	})
}

func TestBaselineResolution(t *testing.T) {
	ctx := context.Background()

	t.Run("newest persisted baseline wins for a fresh detector", func(t *testing.T) {
		mem := store.NewMemoryStore()
		writer := NewDetector(WithStore(mem))
		if _, err := writer.CreateBaseline(ctx, "checkout", samplesAround(100, 10)); err != nil {
			t.Fatalf("CreateBaseline: %v", err)
		}
		time.Sleep(time.Millisecond) // distinct time keys
		newer, err := writer.CreateBaseline(ctx, "checkout", samplesAround(200, 10))
		if err != nil {
			t.Fatalf("CreateBaseline: %v", err)
		}

		reader := NewDetector(WithStore(mem))
		result, err := reader.DetectRegression(ctx, "checkout", samplesAround(200, 10))
		if err != nil {
			t.Fatalf("DetectRegression: %v", err)
		}
		if result.BaselineID != newer.ID {
			t.Errorf("baseline = %q, want newest %q", result.BaselineID, newer.ID)
		}
		if result.HasRegression {
			t.Error("HasRegression = true against a matching baseline")
		}
	})

	t.Run("explicit baseline id overrides current", func(t *testing.T) {
		mem := store.NewMemoryStore()
		d := NewDetector(WithStore(mem))
		old, err := d.CreateBaseline(ctx, "checkout", samplesAround(100, 10))
		if err != nil {
			t.Fatalf("CreateBaseline: %v", err)
		}
		time.Sleep(time.Millisecond)
		if _, err := d.CreateBaseline(ctx, "checkout", samplesAround(200, 10)); err != nil {
			t.Fatalf("CreateBaseline: %v", err)
		}

		result, err := d.DetectRegression(ctx, "checkout", samplesAround(250, 10),
			WithBaselineID(old.ID))
		if err != nil {
			t.Fatalf("DetectRegression: %v", err)
		}
		if result.BaselineID != old.ID {
			t.Errorf("baseline = %q, want pinned %q", result.BaselineID, old.ID)
		}
		if result.Severity != SeverityCritical {
			t.Errorf("severity = %q, want critical against the 100ms baseline", result.Severity)
		}
	})

	t.Run("unknown baseline id", func(t *testing.T) {
		mem := store.NewMemoryStore()
		d := NewDetector(WithStore(mem))
		if _, err := d.CreateBaseline(ctx, "checkout", samplesAround(100, 10)); err != nil {
			t.Fatalf("CreateBaseline: %v", err)
		}
		_, err := d.DetectRegression(ctx, "checkout", samplesAround(100, 10),
			WithBaselineID("missing"))
		if !errors.Is(err, ErrNoBaselineFound) {
			t.Errorf("err = %v, want ErrNoBaselineFound", err)
		}
	})
}

func TestListBaselines(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	d := NewDetector(WithStore(mem))

	first, err := d.CreateBaseline(ctx, "alpha", samplesAround(100, 10))
	if err != nil {
		t.Fatalf("CreateBaseline: %v", err)
	}
	time.Sleep(time.Millisecond)
	second, err := d.CreateBaseline(ctx, "alpha", samplesAround(110, 10))
	if err != nil {
		t.Fatalf("CreateBaseline: %v", err)
	}
	if _, err := d.CreateBaseline(ctx, "beta", samplesAround(50, 10)); err != nil {
		t.Fatalf("CreateBaseline: %v", err)
	}

	t.Run("per operation newest first", func(t *testing.T) {
		baselines, err := d.ListBaselines(ctx, "alpha")
		if err != nil {
			t.Fatalf("ListBaselines: %v", err)
		}
		if len(baselines) != 2 {
			t.Fatalf("baselines = %d, want 2", len(baselines))
		}
		if baselines[0].ID != second.ID || baselines[1].ID != first.ID {
			t.Errorf("order = [%s, %s], want newest first", baselines[0].ID, baselines[1].ID)
		}
	})

	t.Run("all operations", func(t *testing.T) {
		baselines, err := d.ListBaselines(ctx, "")
		if err != nil {
			t.Fatalf("ListBaselines: %v", err)
		}
		if len(baselines) != 3 {
			t.Errorf("baselines = %d, want 3", len(baselines))
		}
	})
}

func TestCleanupOldBaselines(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	d := NewDetector(WithStore(mem))

	current, err := d.CreateBaseline(ctx, "checkout", samplesAround(100, 10))
	if err != nil {
		t.Fatalf("CreateBaseline: %v", err)
	}

	// A stale baseline persisted before the retention window.
	stale := &Baseline{
		ID:        "stale-1",
		Operation: "legacy",
		CreatedAt: time.Now().UTC().AddDate(0, 0, -90),
		Latency:   stats.Summary{Mean: 80, SampleCount: 10},
	}
	if err := mem.Put(ctx, BaselineKey(stale), stale); err != nil {
		t.Fatalf("Put: %v", err)
	}

	removed, err := d.CleanupOldBaselines(ctx, 30)
	if err != nil {
		t.Fatalf("CleanupOldBaselines: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}

	remaining, err := d.ListBaselines(ctx, "")
	if err != nil {
		t.Fatalf("ListBaselines: %v", err)
	}
	if len(remaining) != 1 || remaining[0].ID != current.ID {
		t.Errorf("remaining = %v, want only the fresh baseline", remaining)
	}

	t.Run("rejects non-positive retention", func(t *testing.T) {
		if _, err := d.CleanupOldBaselines(ctx, 0); err == nil {
			t.Error("expected an error for zero retention days")
		}
	})
}

func TestRecommendations(t *testing.T) {
	recs := recommendations(SeverityCritical, []string{"average_duration", "cpu_usage"})
	if len(recs) != 3 {
		t.Fatalf("recommendations = %d, want 3", len(recs))
	}
	same := recommendations(SeverityCritical, []string{"average_duration", "cpu_usage"})
	for i := range recs {
		if recs[i] != same[i] {
			t.Errorf("recommendations are not deterministic at index %d", i)
		}
	}
	if n := len(recommendations(SeverityNone, nil)); n != 0 {
		t.Errorf("recommendations for a clean result = %d, want 0", n)
	}
}
