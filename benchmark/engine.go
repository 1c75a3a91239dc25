// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package benchmark implements the benchmark engine: it executes a target
// operation repeatedly, records per-iteration latency and resource cost,
// and reduces the samples to a graded statistical summary.
package benchmark

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/perfbench/pkg/validation"
	"github.com/AleutianAI/perfbench/sampler"
	"github.com/AleutianAI/perfbench/stats"
	"github.com/AleutianAI/perfbench/store"
	"github.com/AleutianAI/perfbench/telemetry"
)

const tracerName = "perfbench.benchmark"

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrNoOperation indicates no callable target operation was supplied.
	ErrNoOperation = errors.New("no target operation supplied")

	// ErrInsufficientSamples indicates too few iterations succeeded to
	// produce defensible statistics.
	ErrInsufficientSamples = errors.New("insufficient valid samples")

	// ErrInvalidConfig indicates the run configuration is unusable.
	ErrInvalidConfig = errors.New("invalid benchmark configuration")
)

// -----------------------------------------------------------------------------
// Engine
// -----------------------------------------------------------------------------

// Operation is the target being benchmarked. It may block or await
// asynchronous work internally; the engine waits for each call to return
// before starting the next iteration.
type Operation func(ctx context.Context) error

// defaultHistoryLimit bounds the per-operation in-memory result history.
const defaultHistoryLimit = 100

// resultKeyPrefix namespaces persisted results in the store.
const resultKeyPrefix = "result/"

// Engine executes benchmark runs and keeps a bounded per-operation history.
//
// Description:
//
//	Engine owns the measurement loop: warmup, timed iterations with
//	per-iteration fault isolation, outlier removal, statistical reduction,
//	grading, and trend labeling. Results are appended to a bounded
//	in-memory history and persisted/exported best-effort.
//
// Thread Safety: Safe for concurrent use. Iterations within one run are
// strictly sequential; independent runs may execute concurrently.
type Engine struct {
	store   store.Store
	sink    telemetry.Sink
	sampler sampler.Sampler
	logger  *slog.Logger

	historyLimit int

	mu      sync.Mutex
	history map[string][]*Result
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithStore sets the result store. Store failures degrade to "no history";
// they never fail a run.
func WithStore(s store.Store) EngineOption {
	return func(e *Engine) { e.store = s }
}

// WithSink sets the metrics sink. Emission is fire-and-forget.
func WithSink(s telemetry.Sink) EngineOption {
	return func(e *Engine) {
		if s != nil {
			e.sink = s
		}
	}
}

// WithSampler sets the process resource sampler.
func WithSampler(s sampler.Sampler) EngineOption {
	return func(e *Engine) { e.sampler = s }
}

// WithLogger sets the logger. Nil values are ignored.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithHistoryLimit sets the per-operation in-memory history bound.
// Non-positive values are ignored.
func WithHistoryLimit(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.historyLimit = n
		}
	}
}

// NewEngine creates a benchmark engine.
//
// Description:
//
//	Creates an engine with no store, a no-op sink, no resource sampler,
//	and slog.Default() for logging; use options to override.
//
// Outputs:
//   - *Engine: The new engine. Never nil.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		sink:         telemetry.NewNoopSink(),
		logger:       slog.Default(),
		historyLimit: defaultHistoryLimit,
		history:      make(map[string][]*Result),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes one benchmark run for the named operation.
//
// Description:
//
//	Runs the configured warmup iterations (failures logged and
//	swallowed), then up to MeasurementIterations timed calls. The
//	MaxDuration budget is advisory and checked between iterations; an
//	in-flight iteration always runs to completion. A failing iteration
//	is logged and dropped from the sample set, never recorded as a zero
//	duration. After measurement, outliers beyond the configured standard
//	deviation band are removed (reverting if more than half the samples
//	would be discarded) and the remainder is reduced to a graded Result.
//
// Inputs:
//   - ctx: Context for cancellation. Must not be nil.
//   - operation: The operation name used for history, persistence keys,
//     and metric labels.
//   - op: The target operation. Must not be nil.
//   - opts: Optional run configuration.
//
// Outputs:
//   - *Result: The run summary. Never nil on success.
//   - error: ErrNoOperation, ErrInvalidConfig, or ErrInsufficientSamples
//     (all wrapped). Store, sink, and sampler failures never surface here.
//
// Thread Safety: Safe for concurrent use for different operations.
//
// Example:
//
//	result, err := engine.Run(ctx, "checkout", op,
//	    benchmark.WithIterations(200),
//	    benchmark.WithTargets(50, 120, 250),
//	)
//	if err != nil {
//	    return fmt.Errorf("benchmark checkout: %w", err)
//	}
//	fmt.Printf("grade=%s p95=%.2fms\n", result.Grade, result.Latency.P95)
func (e *Engine) Run(ctx context.Context, operation string, op Operation, opts ...RunOption) (*Result, error) {
	if ctx == nil {
		return nil, errors.New("context must not be nil")
	}
	if op == nil {
		return nil, fmt.Errorf("benchmarking %s: %w", operation, ErrNoOperation)
	}
	if err := validation.ValidateOperationName(operation); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "benchmark.Engine.Run",
		trace.WithAttributes(
			attribute.String("benchmark.operation", operation),
			attribute.Int("benchmark.iterations", cfg.MeasurementIterations),
			attribute.Int("benchmark.warmup", cfg.WarmupIterations),
		),
	)
	defer span.End()

	e.runWarmup(ctx, operation, op, cfg)

	durations, cpu, memory, failed := e.runMeasurement(ctx, operation, op, cfg)
	if len(durations) < cfg.MinValidSamples {
		err := fmt.Errorf("benchmarking %s: %w: %d valid of %d required",
			operation, ErrInsufficientSamples, len(durations), cfg.MinValidSamples)
		span.RecordError(err)
		span.SetStatus(codes.Error, "insufficient samples")
		return nil, err
	}

	result := e.buildResult(operation, durations, cpu, memory, failed, cfg)

	e.appendHistory(result)
	e.persist(ctx, result)
	e.emit(ctx, result)

	span.SetAttributes(
		attribute.Int("benchmark.result.valid_samples", result.ValidSampleCount),
		attribute.Int("benchmark.result.outliers_removed", result.OutliersRemoved),
		attribute.Float64("benchmark.result.mean_ms", result.Latency.Mean),
		attribute.Float64("benchmark.result.p95_ms", result.Latency.P95),
		attribute.String("benchmark.result.grade", result.Grade),
	)
	span.SetStatus(codes.Ok, "benchmark completed")

	return result, nil
}

// runWarmup executes warmup iterations, swallowing per-call failures.
func (e *Engine) runWarmup(ctx context.Context, operation string, op Operation, cfg *Config) {
	for i := 0; i < cfg.WarmupIterations; i++ {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if err := op(ctx); err != nil {
			e.logger.Warn("warmup iteration failed",
				slog.String("operation", operation),
				slog.Int("iteration", i),
				slog.String("error", err.Error()),
			)
		}
	}
}

// runMeasurement executes timed iterations and returns the duration samples
// in milliseconds plus per-iteration CPU/memory observations.
func (e *Engine) runMeasurement(ctx context.Context, operation string, op Operation, cfg *Config) (durations, cpu, memory []float64, failed int) {
	durations = make([]float64, 0, cfg.MeasurementIterations)
	deadline := time.Now().Add(cfg.MaxDuration)

	for i := 0; i < cfg.MeasurementIterations; i++ {
		select {
		case <-ctx.Done():
			e.logger.Warn("benchmark run cancelled, keeping gathered samples",
				slog.String("operation", operation),
				slog.Int("completed", len(durations)),
			)
			return durations, cpu, memory, failed
		default:
		}
		if time.Now().After(deadline) {
			// Soft timeout: the run completes with what it has.
			e.logger.Warn("benchmark run exceeded max duration",
				slog.String("operation", operation),
				slog.Duration("max_duration", cfg.MaxDuration),
				slog.Int("completed", len(durations)),
			)
			return durations, cpu, memory, failed
		}

		e.sampleUsage(ctx, operation)

		start := time.Now()
		err := op(ctx)
		elapsed := time.Since(start)

		if err != nil {
			failed++
			e.logger.Warn("benchmark iteration failed, dropping sample",
				slog.String("operation", operation),
				slog.Int("iteration", i),
				slog.String("error", err.Error()),
			)
			continue
		}

		durations = append(durations, float64(elapsed)/float64(time.Millisecond))
		if usage, ok := e.sampleUsage(ctx, operation); ok {
			cpu = append(cpu, usage.CPUPercent)
			memory = append(memory, usage.ResidentMemoryMB)
		}
	}
	return durations, cpu, memory, failed
}

// sampleUsage takes a best-effort resource observation.
func (e *Engine) sampleUsage(ctx context.Context, operation string) (sampler.Usage, bool) {
	if e.sampler == nil {
		return sampler.Usage{}, false
	}
	usage, err := e.sampler.Sample(ctx)
	if err != nil {
		e.logger.Debug("resource sample failed",
			slog.String("operation", operation),
			slog.String("error", err.Error()),
		)
		return sampler.Usage{}, false
	}
	return usage, true
}

// buildResult reduces the gathered samples into an immutable Result.
func (e *Engine) buildResult(operation string, durations, cpu, memory []float64, failed int, cfg *Config) *Result {
	valid, removed := stats.RemoveOutliers(durations, cfg.OutlierThresholdStdDev)
	if removed > 0 {
		e.logger.Debug("outliers removed",
			slog.String("operation", operation),
			slog.Int("raw_count", len(durations)),
			slog.Int("removed", removed),
		)
	}

	latency := stats.Summarize(valid, cfg.ConfidenceLevel)
	grade, meetsTargets := gradeTargets(latency, cfg)
	trend, changePercent := trendAgainst(e.latest(operation), latency.Mean)

	return &Result{
		Operation:          operation,
		RunID:              uuid.NewString(),
		Timestamp:          time.Now().UTC(),
		Latency:            latency,
		RawSampleCount:     len(durations),
		ValidSampleCount:   len(valid),
		OutliersRemoved:    removed,
		FailedIterations:   failed,
		AvgCPUPercent:      stats.Mean(cpu),
		AvgMemoryMB:        stats.Mean(memory),
		MeetsTargets:       meetsTargets,
		Grade:              grade,
		Trend:              trend,
		TrendChangePercent: changePercent,
	}
}

// -----------------------------------------------------------------------------
// History
// -----------------------------------------------------------------------------

// History returns a copy of the in-memory result history for an operation,
// oldest first.
func (e *Engine) History(operation string) []*Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	results := e.history[operation]
	out := make([]*Result, len(results))
	copy(out, results)
	return out
}

// latest returns the most recent result for an operation, or nil.
func (e *Engine) latest(operation string) *Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	results := e.history[operation]
	if len(results) == 0 {
		return nil
	}
	return results[len(results)-1]
}

// appendHistory appends a result, evicting the oldest past the bound.
func (e *Engine) appendHistory(result *Result) {
	e.mu.Lock()
	defer e.mu.Unlock()
	results := append(e.history[result.Operation], result)
	if len(results) > e.historyLimit {
		results = results[len(results)-e.historyLimit:]
	}
	e.history[result.Operation] = results
}

// -----------------------------------------------------------------------------
// Side Effects
// -----------------------------------------------------------------------------

// ResultKey builds the storage key for a result.
func ResultKey(result *Result) string {
	return ResultPrefix(result.Operation) + store.TimeKey(result.Timestamp) + "/" + result.RunID
}

// ResultPrefix returns the storage key prefix holding every persisted
// result for an operation.
func ResultPrefix(operation string) string {
	return resultKeyPrefix + operation + "/"
}

// persist stores the result best-effort.
func (e *Engine) persist(ctx context.Context, result *Result) {
	if e.store == nil {
		return
	}
	if err := e.store.Put(ctx, ResultKey(result), result); err != nil {
		e.logger.Warn("result persistence failed",
			slog.String("operation", result.Operation),
			slog.String("run_id", result.RunID),
			slog.String("error", err.Error()),
		)
	}
}

// emit exports the run's metrics fire-and-forget.
func (e *Engine) emit(ctx context.Context, result *Result) {
	labels := map[string]string{"operation": result.Operation}
	targetsMet := 0.0
	if result.MeetsTargets {
		targetsMet = 1.0
	}

	metrics := []struct {
		name  string
		value float64
	}{
		{"avg_duration_ms", result.Latency.Mean},
		{"p95_duration_ms", result.Latency.P95},
		{"targets_met", targetsMet},
	}
	for _, m := range metrics {
		if err := e.sink.Emit(ctx, m.name, m.value, labels, result.Timestamp); err != nil {
			e.logger.Warn("metric emission failed",
				slog.String("operation", result.Operation),
				slog.String("metric", m.name),
				slog.String("error", err.Error()),
			)
		}
	}
}
