// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry provides metric export for benchmark results.
//
// The benchmark engine emits a small set of metrics per completed run
// (average duration, p95 duration, targets met). Export is fire-and-forget:
// a sink failure is logged by the caller and never changes the outcome of a
// benchmark run or a regression check.
package telemetry

import (
	"context"
	"errors"
	"sync"
	"time"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrNilContext is returned when a nil context is provided.
	ErrNilContext = errors.New("context must not be nil")

	// ErrSinkClosed is returned when attempting to use a closed sink.
	ErrSinkClosed = errors.New("sink has been closed")

	// ErrNoSinks is returned when creating a composite sink with no children.
	ErrNoSinks = errors.New("at least one sink is required")
)

// -----------------------------------------------------------------------------
// Interface
// -----------------------------------------------------------------------------

// Sink exports benchmark metrics to a monitoring backend.
//
// Description:
//
//	Sink is the boundary between the statistical core and whatever
//	monitoring system consumes its numbers. Implementations handle the
//	backend specifics (Prometheus, InfluxDB, ...).
//
// Thread Safety: All implementations must be safe for concurrent use.
//
// Example:
//
//	sink, err := telemetry.NewPrometheusSink(telemetry.DefaultPrometheusConfig())
//	if err != nil {
//	    return fmt.Errorf("create sink: %w", err)
//	}
//	defer sink.Close()
//
//	_ = sink.Emit(ctx, "avg_duration_ms", 12.4,
//	    map[string]string{"operation": "checkout"}, time.Now())
type Sink interface {
	// Emit records one metric observation.
	//
	// Inputs:
	//   - ctx: Context for cancellation. Must not be nil.
	//   - metric: Metric path, e.g. "avg_duration_ms".
	//   - value: Observed value.
	//   - labels: Label key/value pairs. May be nil.
	//   - ts: Observation timestamp.
	//
	// Outputs:
	//   - error: Non-nil if recording fails or the sink is closed.
	Emit(ctx context.Context, metric string, value float64, labels map[string]string, ts time.Time) error

	// Flush ensures buffered observations are exported.
	Flush(ctx context.Context) error

	// Close flushes and releases resources. Idempotent.
	Close() error
}

// -----------------------------------------------------------------------------
// No-Op Sink
// -----------------------------------------------------------------------------

// NoopSink discards all observations. Useful as a default when no
// monitoring backend is configured, and in tests.
//
// Thread Safety: Safe for concurrent use.
type NoopSink struct{}

// NewNoopSink creates a sink that accepts and discards everything.
func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

// Emit discards the observation.
func (n *NoopSink) Emit(ctx context.Context, _ string, _ float64, _ map[string]string, _ time.Time) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// Flush does nothing.
func (n *NoopSink) Flush(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// Close does nothing.
func (n *NoopSink) Close() error { return nil }

// -----------------------------------------------------------------------------
// Composite Sink
// -----------------------------------------------------------------------------

// CompositeSink fans observations out to multiple sinks.
//
// Thread Safety: Safe for concurrent use.
type CompositeSink struct {
	sinks  []Sink
	mu     sync.RWMutex
	closed bool
}

// NewCompositeSink creates a sink that forwards to every child.
//
// Inputs:
//   - sinks: Child sinks. Nil children are skipped; at least one non-nil
//     child is required.
//
// Outputs:
//   - *CompositeSink: The composite. Never nil on success.
//   - error: ErrNoSinks when no usable child was given.
func NewCompositeSink(sinks ...Sink) (*CompositeSink, error) {
	valid := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			valid = append(valid, s)
		}
	}
	if len(valid) == 0 {
		return nil, ErrNoSinks
	}
	return &CompositeSink{sinks: valid}, nil
}

// Emit forwards the observation to all children. Errors are joined; one
// child's failure does not prevent delivery to the others.
func (c *CompositeSink) Emit(ctx context.Context, metric string, value float64, labels map[string]string, ts time.Time) error {
	if ctx == nil {
		return ErrNilContext
	}

	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return ErrSinkClosed
	}
	sinks := c.sinks
	c.mu.RUnlock()

	var errs []error
	for _, s := range sinks {
		if err := s.Emit(ctx, metric, value, labels, ts); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Flush flushes all children.
func (c *CompositeSink) Flush(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}

	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return ErrSinkClosed
	}
	sinks := c.sinks
	c.mu.RUnlock()

	var errs []error
	for _, s := range sinks {
		if err := s.Flush(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes all children. Idempotent.
func (c *CompositeSink) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	sinks := c.sinks
	c.mu.Unlock()

	var errs []error
	for _, s := range sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Verify interface compliance at compile time.
var (
	_ Sink = (*NoopSink)(nil)
	_ Sink = (*CompositeSink)(nil)
)
