// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestSink(t *testing.T) (*PrometheusSink, *prometheus.Registry) {
	t.Helper()
	registry := prometheus.NewRegistry()
	config := DefaultPrometheusConfig()
	config.Registry = registry
	sink, err := NewPrometheusSink(config)
	if err != nil {
		t.Fatalf("NewPrometheusSink: %v", err)
	}
	return sink, registry
}

func TestPrometheusSink_Emit(t *testing.T) {
	t.Run("records gauge with labels", func(t *testing.T) {
		sink, registry := newTestSink(t)

		labels := map[string]string{"operation": "checkout"}
		if err := sink.Emit(context.Background(), "avg_duration_ms", 12.5, labels, time.Now()); err != nil {
			t.Fatalf("Emit: %v", err)
		}

		count, err := testutil.GatherAndCount(registry, "perfbench_benchmark_avg_duration_ms")
		if err != nil {
			t.Fatalf("gather: %v", err)
		}
		if count != 1 {
			t.Errorf("gathered %d series, want 1", count)
		}
	})

	t.Run("updates existing gauge", func(t *testing.T) {
		sink, _ := newTestSink(t)

		labels := map[string]string{"operation": "checkout"}
		ctx := context.Background()
		if err := sink.Emit(ctx, "p95_duration_ms", 10, labels, time.Now()); err != nil {
			t.Fatalf("first Emit: %v", err)
		}
		if err := sink.Emit(ctx, "p95_duration_ms", 20, labels, time.Now()); err != nil {
			t.Fatalf("second Emit: %v", err)
		}

		gauge := sink.gauges["p95_duration_ms"]
		if got := testutil.ToFloat64(gauge.WithLabelValues("checkout")); got != 20 {
			t.Errorf("gauge = %v, want 20 (latest value)", got)
		}
	})

	t.Run("sanitizes metric names", func(t *testing.T) {
		if got := sanitizeMetricName("avg.duration/ms"); got != "avg_duration_ms" {
			t.Errorf("sanitized = %q, want avg_duration_ms", got)
		}
	})

	t.Run("nil context rejected", func(t *testing.T) {
		sink, _ := newTestSink(t)
		if err := sink.Emit(nil, "m", 1, nil, time.Now()); !errors.Is(err, ErrNilContext) { //nolint:staticcheck
			t.Errorf("expected ErrNilContext, got %v", err)
		}
	})

	t.Run("closed sink rejected", func(t *testing.T) {
		sink, _ := newTestSink(t)
		if err := sink.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
		if err := sink.Emit(context.Background(), "m", 1, nil, time.Now()); !errors.Is(err, ErrSinkClosed) {
			t.Errorf("expected ErrSinkClosed, got %v", err)
		}
	})
}

func TestPrometheusSink_CardinalityCap(t *testing.T) {
	registry := prometheus.NewRegistry()
	config := DefaultPrometheusConfig()
	config.Registry = registry
	config.MaxLabelCardinality = 3
	sink, err := NewPrometheusSink(config)
	if err != nil {
		t.Fatalf("NewPrometheusSink: %v", err)
	}

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		labels := map[string]string{"operation": fmt.Sprintf("op_%d", i)}
		if err := sink.Emit(ctx, "avg_duration_ms", float64(i), labels, time.Now()); err != nil {
			t.Fatalf("Emit %d: %v", i, err)
		}
	}

	// 3 tracked combinations plus the shared overflow series.
	count, err := testutil.GatherAndCount(registry, "perfbench_benchmark_avg_duration_ms")
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if count != 4 {
		t.Errorf("gathered %d series, want 4 (cap + _other)", count)
	}
}

func TestPrometheusConfig_Validate(t *testing.T) {
	config := &PrometheusConfig{}
	if err := config.Validate(); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}
