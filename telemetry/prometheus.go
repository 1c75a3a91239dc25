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
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ErrInvalidConfig is returned when the Prometheus configuration is invalid.
var ErrInvalidConfig = errors.New("invalid prometheus configuration")

// -----------------------------------------------------------------------------
// Configuration
// -----------------------------------------------------------------------------

// PrometheusConfig configures the Prometheus sink.
//
// Thread Safety: Immutable after creation; safe for concurrent read access.
type PrometheusConfig struct {
	// Namespace is the metrics namespace (e.g., "perfbench").
	// Required.
	Namespace string

	// Subsystem is the metrics subsystem (e.g., "benchmark").
	// Required.
	Subsystem string

	// Registry is the Prometheus registerer to use.
	// If nil, uses prometheus.DefaultRegisterer.
	Registry prometheus.Registerer

	// MaxLabelCardinality is the maximum number of unique label-value
	// combinations tracked per metric. When exceeded, new combinations
	// are mapped to "_other". Default: 1000.
	MaxLabelCardinality int
}

// DefaultPrometheusConfig returns a configuration with sensible defaults.
func DefaultPrometheusConfig() *PrometheusConfig {
	return &PrometheusConfig{
		Namespace:           "perfbench",
		Subsystem:           "benchmark",
		MaxLabelCardinality: 1000,
	}
}

// Validate checks that required fields are set.
func (c *PrometheusConfig) Validate() error {
	if c.Namespace == "" {
		return errors.Join(ErrInvalidConfig, errors.New("namespace is required"))
	}
	if c.Subsystem == "" {
		return errors.Join(ErrInvalidConfig, errors.New("subsystem is required"))
	}
	return nil
}

// -----------------------------------------------------------------------------
// Prometheus Sink
// -----------------------------------------------------------------------------

// PrometheusSink exports observations as Prometheus gauges.
//
// Description:
//
//	Gauges are created on demand, one GaugeVec per metric path, with the
//	label names seen on the first observation of that path. Prometheus
//	scrapes the latest value, so the observation timestamp is not used.
//
// Thread Safety: Safe for concurrent use.
type PrometheusSink struct {
	config *PrometheusConfig

	mu          sync.Mutex
	gauges      map[string]*prometheus.GaugeVec
	labelNames  map[string][]string
	cardinality map[string]map[string]struct{}
	closed      bool
}

// NewPrometheusSink creates a Prometheus sink.
//
// Inputs:
//   - config: Sink configuration. If nil, uses defaults.
//
// Outputs:
//   - *PrometheusSink: The new sink. Never nil on success.
//   - error: Non-nil if the configuration is invalid.
func NewPrometheusSink(config *PrometheusConfig) (*PrometheusSink, error) {
	if config == nil {
		config = DefaultPrometheusConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.MaxLabelCardinality <= 0 {
		config.MaxLabelCardinality = 1000
	}
	return &PrometheusSink{
		config:      config,
		gauges:      make(map[string]*prometheus.GaugeVec),
		labelNames:  make(map[string][]string),
		cardinality: make(map[string]map[string]struct{}),
	}, nil
}

// Emit implements Sink.
func (p *PrometheusSink) Emit(ctx context.Context, metric string, value float64, labels map[string]string, _ time.Time) error {
	if ctx == nil {
		return ErrNilContext
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrSinkClosed
	}

	gauge, err := p.gaugeLocked(metric, labels)
	if err != nil {
		return err
	}

	values := p.labelValuesLocked(metric, labels)
	gauge.WithLabelValues(values...).Set(value)
	return nil
}

// Flush is a no-op: Prometheus pulls on scrape.
func (p *PrometheusSink) Flush(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// Close marks the sink closed. Registered collectors stay registered so a
// final scrape still sees the last values.
func (p *PrometheusSink) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// gaugeLocked returns the GaugeVec for a metric path, creating and
// registering it on first use. Caller must hold p.mu.
func (p *PrometheusSink) gaugeLocked(metric string, labels map[string]string) (*prometheus.GaugeVec, error) {
	if gauge, ok := p.gauges[metric]; ok {
		return gauge, nil
	}

	names := make([]string, 0, len(labels))
	for name := range labels {
		names = append(names, name)
	}
	sort.Strings(names)

	gauge := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: p.config.Namespace,
		Subsystem: p.config.Subsystem,
		Name:      sanitizeMetricName(metric),
		Help:      "perfbench benchmark metric " + metric,
	}, names)

	registry := p.config.Registry
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	if err := registry.Register(gauge); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(*prometheus.GaugeVec); ok {
				gauge = existing
			}
		} else {
			return nil, err
		}
	}

	p.gauges[metric] = gauge
	p.labelNames[metric] = names
	p.cardinality[metric] = make(map[string]struct{})
	return gauge, nil
}

// labelValuesLocked orders label values to match the registered label names
// and enforces the cardinality cap. Caller must hold p.mu.
func (p *PrometheusSink) labelValuesLocked(metric string, labels map[string]string) []string {
	names := p.labelNames[metric]
	values := make([]string, len(names))
	for i, name := range names {
		values[i] = labels[name]
	}

	seen := p.cardinality[metric]
	key := strings.Join(values, "\x00")
	if _, ok := seen[key]; !ok {
		if len(seen) >= p.config.MaxLabelCardinality {
			for i := range values {
				values[i] = "_other"
			}
			return values
		}
		seen[key] = struct{}{}
	}
	return values
}

// sanitizeMetricName rewrites a metric path into a valid Prometheus name.
func sanitizeMetricName(metric string) string {
	var b strings.Builder
	b.Grow(len(metric))
	for i, r := range metric {
		valid := r == '_' ||
			(r >= 'a' && r <= 'z') ||
			(r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9' && i > 0)
		if valid {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// Verify interface compliance at compile time.
var _ Sink = (*PrometheusSink)(nil)
