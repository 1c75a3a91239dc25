// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package regression compares fresh benchmark samples against recorded
// baselines and classifies meaningful performance degradations.
package regression

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/perfbench/pkg/validation"
	"github.com/AleutianAI/perfbench/stats"
	"github.com/AleutianAI/perfbench/store"
)

const tracerName = "perfbench.regression"

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrInsufficientSamples indicates too few samples to compare against
	// a baseline.
	ErrInsufficientSamples = errors.New("insufficient samples for regression analysis")

	// ErrNoBaselineFound indicates no baseline exists for the operation.
	ErrNoBaselineFound = errors.New("no baseline found")
)

// -----------------------------------------------------------------------------
// Severity
// -----------------------------------------------------------------------------

// Severity classifies how badly performance has degraded.
type Severity string

const (
	// SeverityNone indicates no meaningful slowdown.
	SeverityNone Severity = "none"

	// SeverityMinor indicates a slowdown at or past the minor threshold.
	SeverityMinor Severity = "minor"

	// SeverityMajor indicates a slowdown at or past the major threshold.
	SeverityMajor Severity = "major"

	// SeverityCritical indicates a slowdown at or past the critical threshold.
	SeverityCritical Severity = "critical"
)

// -----------------------------------------------------------------------------
// Configuration
// -----------------------------------------------------------------------------

// DetectorConfig holds the regression thresholds.
type DetectorConfig struct {
	// MinSampleSize is the fewest samples accepted for a baseline or a
	// detection pass.
	MinSampleSize int

	// MinorThreshold, MajorThreshold, and CriticalThreshold are the
	// mean-latency ratios (current / baseline) at which each severity
	// begins.
	MinorThreshold    float64
	MajorThreshold    float64
	CriticalThreshold float64

	// LatencyFailThreshold flags average_duration and p95_duration as
	// failing metrics when exceeded.
	LatencyFailThreshold float64

	// CPUFailThreshold flags cpu_usage as a failing metric when exceeded.
	CPUFailThreshold float64

	// MemoryFailThreshold flags memory_usage as a failing metric when
	// exceeded.
	MemoryFailThreshold float64

	// MinEffectSize is the smallest Cohen's d accepted as a practical
	// difference.
	MinEffectSize float64

	// PValueThreshold is the significance cutoff for the p-value proxy.
	PValueThreshold float64

	// ConfidenceLevel selects the z constant for confidence intervals.
	ConfidenceLevel float64
}

// DefaultDetectorConfig returns the standard thresholds.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		MinSampleSize:        10,
		MinorThreshold:       1.2,
		MajorThreshold:       1.5,
		CriticalThreshold:    2.0,
		LatencyFailThreshold: 1.2,
		CPUFailThreshold:     1.5,
		MemoryFailThreshold:  1.3,
		MinEffectSize:        0.5,
		PValueThreshold:      0.05,
		ConfidenceLevel:      0.95,
	}
}

// Validate checks the configuration for usable values.
func (c DetectorConfig) Validate() error {
	if c.MinSampleSize < 2 {
		return fmt.Errorf("min sample size must be >= 2, got %d", c.MinSampleSize)
	}
	if !(c.MinorThreshold > 1.0) {
		return fmt.Errorf("minor threshold must exceed 1.0, got %v", c.MinorThreshold)
	}
	if c.MajorThreshold < c.MinorThreshold || c.CriticalThreshold < c.MajorThreshold {
		return fmt.Errorf("severity thresholds must be ascending: %v, %v, %v",
			c.MinorThreshold, c.MajorThreshold, c.CriticalThreshold)
	}
	return nil
}

// -----------------------------------------------------------------------------
// Detection Result
// -----------------------------------------------------------------------------

// Result is the outcome of one regression check. It is ephemeral: results
// are returned to the caller and never persisted.
type Result struct {
	// Operation is the checked operation name.
	Operation string `json:"operation"`

	// BaselineID identifies the baseline the check ran against.
	BaselineID string `json:"baseline_id"`

	// DetectedAt is when the check ran (UTC).
	DetectedAt time.Time `json:"detected_at"`

	// HasRegression reports whether the slowdown is severe, statistically
	// significant, and practically large all at once.
	HasRegression bool `json:"has_regression"`

	// Severity classifies the mean-latency ratio.
	Severity Severity `json:"severity"`

	// Confidence is the detector's confidence in the verdict, in [0, 1].
	Confidence float64 `json:"confidence"`

	// BaselineMean and CurrentMean are the compared mean latencies (ms).
	BaselineMean float64 `json:"baseline_mean_ms"`
	CurrentMean  float64 `json:"current_mean_ms"`

	// PercentChange is the mean-latency change versus baseline, in percent.
	PercentChange float64 `json:"percent_change"`

	// Significant reports whether the current confidence interval sits
	// entirely above the baseline's.
	Significant bool `json:"significant"`

	// EffectSize is the pooled Cohen's d between the two sample sets.
	EffectSize float64 `json:"effect_size"`

	// PValue is a coarse proxy, not an exact test statistic.
	PValue float64 `json:"p_value"`

	// FailingMetrics lists metrics that independently exceeded their
	// thresholds, regardless of HasRegression.
	FailingMetrics []string `json:"failing_metrics,omitempty"`

	// Recommendations suggests followups for the failing metrics.
	Recommendations []string `json:"recommendations,omitempty"`

	// Baseline and Current carry the full statistical summaries.
	Baseline stats.Summary `json:"baseline"`
	Current  stats.Summary `json:"current"`
}

// -----------------------------------------------------------------------------
// Detector
// -----------------------------------------------------------------------------

// Detector creates baselines and checks fresh samples against them.
//
// Description:
//
//	The detector keeps a per-operation "current baseline" cache and
//	optionally persists every baseline to a store. Detection resolves a
//	baseline by explicit ID, then the cached current one, then the most
//	recent persisted one.
//
// Thread Safety: Safe for concurrent use. Concurrent baseline creation
// for the same operation is last-writer-wins on the current cache.
type Detector struct {
	store  store.Store
	logger *slog.Logger
	cfg    DetectorConfig

	mu      sync.RWMutex
	current map[string]*Baseline
}

// DetectorOption configures a Detector.
type DetectorOption func(*Detector)

// WithStore sets the baseline store. Without one, baselines live only in
// the per-instance cache.
func WithStore(s store.Store) DetectorOption {
	return func(d *Detector) { d.store = s }
}

// WithLogger sets the logger. Nil values are ignored.
func WithLogger(logger *slog.Logger) DetectorOption {
	return func(d *Detector) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithConfig replaces the detection thresholds. Invalid configurations
// are ignored.
func WithConfig(cfg DetectorConfig) DetectorOption {
	return func(d *Detector) {
		if cfg.Validate() == nil {
			d.cfg = cfg
		}
	}
}

// NewDetector creates a regression detector with default thresholds.
func NewDetector(opts ...DetectorOption) *Detector {
	d := &Detector{
		logger:  slog.Default(),
		cfg:     DefaultDetectorConfig(),
		current: make(map[string]*Baseline),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// CreateBaseline records a new performance baseline for an operation.
//
// Description:
//
//	Reduces the raw duration samples (milliseconds) to a statistical
//	summary with no outlier removal, persists the baseline when a store
//	is configured, and installs it as the operation's current baseline.
//
// Inputs:
//   - ctx: Context for cancellation and tracing.
//   - operation: The operation name.
//   - durations: Raw latency samples in milliseconds. Must contain at
//     least MinSampleSize values.
//   - opts: Optional environment, version, tags, resource usage.
//
// Outputs:
//   - *Baseline: The recorded baseline. Never nil on success.
//   - error: ErrInsufficientSamples (wrapped) when too few samples.
//     Store failures are logged and do not fail creation.
func (d *Detector) CreateBaseline(ctx context.Context, operation string, durations []float64, opts ...BaselineOption) (*Baseline, error) {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "regression.Detector.CreateBaseline",
		trace.WithAttributes(
			attribute.String("regression.operation", operation),
			attribute.Int("regression.sample_count", len(durations)),
		),
	)
	defer span.End()

	if err := validation.ValidateOperationName(operation); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid operation name")
		return nil, fmt.Errorf("baseline for %s: %w", operation, err)
	}
	if len(durations) < d.cfg.MinSampleSize {
		err := fmt.Errorf("baseline for %s: %w: %d of %d required",
			operation, ErrInsufficientSamples, len(durations), d.cfg.MinSampleSize)
		span.RecordError(err)
		span.SetStatus(codes.Error, "insufficient samples")
		return nil, err
	}

	baseline := &Baseline{
		ID:        uuid.NewString(),
		Operation: operation,
		CreatedAt: time.Now().UTC(),
		Latency:   stats.Summarize(durations, d.cfg.ConfidenceLevel),
	}
	for _, opt := range opts {
		opt(baseline)
	}

	if d.store != nil {
		if err := d.store.Put(ctx, BaselineKey(baseline), baseline); err != nil {
			d.logger.Warn("baseline persistence failed",
				slog.String("operation", operation),
				slog.String("baseline_id", baseline.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	d.mu.Lock()
	d.current[operation] = baseline
	d.mu.Unlock()

	d.logger.Info("baseline recorded",
		slog.String("operation", operation),
		slog.String("baseline_id", baseline.ID),
		slog.Float64("mean_ms", baseline.Latency.Mean),
		slog.Int("samples", baseline.Latency.SampleCount),
	)
	span.SetStatus(codes.Ok, "baseline recorded")
	return baseline, nil
}

// DetectOption configures one detection pass.
type DetectOption func(*detectOptions)

type detectOptions struct {
	baselineID string
	cpuPercent float64
	memoryMB   float64
	hasUsage   bool
}

// WithBaselineID pins the detection pass to a specific baseline instead
// of the operation's current one.
func WithBaselineID(id string) DetectOption {
	return func(o *detectOptions) { o.baselineID = id }
}

// WithCurrentUsage supplies the mean CPU and memory cost observed while
// the current samples were gathered, enabling the cpu_usage and
// memory_usage checks.
func WithCurrentUsage(cpuPercent, memoryMB float64) DetectOption {
	return func(o *detectOptions) {
		o.cpuPercent = cpuPercent
		o.memoryMB = memoryMB
		o.hasUsage = true
	}
}

// WithCurrentUsageSamples supplies per-iteration CPU and memory
// observations, reduced to their means. Either slice may be empty.
func WithCurrentUsageSamples(cpuPercents, memoryMBs []float64) DetectOption {
	return func(o *detectOptions) {
		if len(cpuPercents) > 0 {
			o.cpuPercent = stats.Mean(cpuPercents)
		}
		if len(memoryMBs) > 0 {
			o.memoryMB = stats.Mean(memoryMBs)
		}
		o.hasUsage = len(cpuPercents) > 0 || len(memoryMBs) > 0
	}
}

// DetectRegression checks fresh duration samples against a baseline.
//
// Description:
//
//	Resolves a baseline (explicit ID, then cached current, then most
//	recent persisted), summarizes the current samples with no outlier
//	removal, and classifies the slowdown. HasRegression requires the
//	severity, the confidence-interval separation, the effect size, and
//	the p-value proxy to agree; a single inflated sample cannot trip it.
//	Failing metrics are evaluated independently, so a resource blowup is
//	reported even when latency is flat.
//
// Inputs:
//   - ctx: Context for cancellation and tracing.
//   - operation: The operation name.
//   - durations: Current latency samples in milliseconds. Must contain
//     at least MinSampleSize values.
//   - opts: Optional baseline pin and resource usage.
//
// Outputs:
//   - *Result: The verdict. Never nil on success.
//   - error: ErrInsufficientSamples or ErrNoBaselineFound (wrapped).
//
// Example:
//
//	report, err := detector.DetectRegression(ctx, "checkout", samples,
//	    regression.WithCurrentUsage(avgCPU, avgMem))
//	if err != nil {
//	    return err
//	}
//	if report.HasRegression {
//	    log.Printf("%s regressed: %s (%.0f%% slower)",
//	        report.Operation, report.Severity, report.PercentChange)
//	}
func (d *Detector) DetectRegression(ctx context.Context, operation string, durations []float64, opts ...DetectOption) (*Result, error) {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "regression.Detector.DetectRegression",
		trace.WithAttributes(
			attribute.String("regression.operation", operation),
			attribute.Int("regression.sample_count", len(durations)),
		),
	)
	defer span.End()

	var options detectOptions
	for _, opt := range opts {
		opt(&options)
	}

	if len(durations) < d.cfg.MinSampleSize {
		err := fmt.Errorf("detecting regression for %s: %w: %d of %d required",
			operation, ErrInsufficientSamples, len(durations), d.cfg.MinSampleSize)
		span.RecordError(err)
		span.SetStatus(codes.Error, "insufficient samples")
		return nil, err
	}

	baseline, err := d.resolveBaseline(ctx, operation, options.baselineID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "baseline resolution failed")
		return nil, err
	}

	current := stats.Summarize(durations, d.cfg.ConfidenceLevel)
	result := d.compare(baseline, current, options)

	span.SetAttributes(
		attribute.String("regression.severity", string(result.Severity)),
		attribute.Bool("regression.detected", result.HasRegression),
		attribute.Float64("regression.effect_size", result.EffectSize),
	)
	span.SetStatus(codes.Ok, "detection completed")

	if result.HasRegression {
		d.logger.Warn("performance regression detected",
			slog.String("operation", operation),
			slog.String("baseline_id", baseline.ID),
			slog.String("severity", string(result.Severity)),
			slog.Float64("percent_change", result.PercentChange),
			slog.Float64("confidence", result.Confidence),
		)
	}
	return result, nil
}

// compare builds the verdict from a resolved baseline and a fresh summary.
func (d *Detector) compare(baseline *Baseline, current stats.Summary, options detectOptions) *Result {
	ratio := 0.0
	if baseline.Latency.Mean > 0 {
		ratio = current.Mean / baseline.Latency.Mean
	}

	severity := d.severityFor(ratio)
	significant := current.CILow > baseline.Latency.CIHigh

	// Coarse proxy: CI separation stands in for a formal test.
	pValue := 0.1
	if significant {
		pValue = 0.01
	}

	effectSize := math.Abs(stats.CohensD(
		baseline.Latency.Mean, baseline.Latency.StdDev,
		current.Mean, current.StdDev,
	))

	hasRegression := severity != SeverityNone &&
		significant &&
		effectSize >= d.cfg.MinEffectSize &&
		pValue < d.cfg.PValueThreshold

	confidence := math.Min(1.0, 0.5*effectSize+0.5*(1.0-pValue))

	percentChange := 0.0
	if baseline.Latency.Mean > 0 {
		percentChange = (current.Mean - baseline.Latency.Mean) / baseline.Latency.Mean * 100
	}

	failing := d.failingMetrics(baseline, current, options)

	return &Result{
		Operation:       baseline.Operation,
		BaselineID:      baseline.ID,
		DetectedAt:      time.Now().UTC(),
		HasRegression:   hasRegression,
		Severity:        severity,
		Confidence:      confidence,
		BaselineMean:    baseline.Latency.Mean,
		CurrentMean:     current.Mean,
		PercentChange:   percentChange,
		Significant:     significant,
		EffectSize:      effectSize,
		PValue:          pValue,
		FailingMetrics:  failing,
		Recommendations: recommendations(severity, failing),
		Baseline:        baseline.Latency,
		Current:         current,
	}
}

// severityFor maps a mean-latency ratio to a severity class.
func (d *Detector) severityFor(ratio float64) Severity {
	switch {
	case ratio >= d.cfg.CriticalThreshold:
		return SeverityCritical
	case ratio >= d.cfg.MajorThreshold:
		return SeverityMajor
	case ratio >= d.cfg.MinorThreshold:
		return SeverityMinor
	default:
		return SeverityNone
	}
}

// failingMetrics evaluates each metric against its own threshold,
// independent of the overall regression verdict.
func (d *Detector) failingMetrics(baseline *Baseline, current stats.Summary, options detectOptions) []string {
	var failing []string
	if baseline.Latency.Mean > 0 && current.Mean > baseline.Latency.Mean*d.cfg.LatencyFailThreshold {
		failing = append(failing, "average_duration")
	}
	if baseline.Latency.P95 > 0 && current.P95 > baseline.Latency.P95*d.cfg.LatencyFailThreshold {
		failing = append(failing, "p95_duration")
	}
	if options.hasUsage {
		if baseline.AvgCPUPercent > 0 && options.cpuPercent > baseline.AvgCPUPercent*d.cfg.CPUFailThreshold {
			failing = append(failing, "cpu_usage")
		}
		if baseline.AvgMemoryMB > 0 && options.memoryMB > baseline.AvgMemoryMB*d.cfg.MemoryFailThreshold {
			failing = append(failing, "memory_usage")
		}
	}
	return failing
}

// -----------------------------------------------------------------------------
// Baseline Resolution
// -----------------------------------------------------------------------------

// resolveBaseline finds the baseline for a detection pass: explicit ID
// first, then the cached current baseline, then the newest persisted one.
func (d *Detector) resolveBaseline(ctx context.Context, operation, baselineID string) (*Baseline, error) {
	if baselineID != "" {
		return d.baselineByID(ctx, operation, baselineID)
	}

	d.mu.RLock()
	cached := d.current[operation]
	d.mu.RUnlock()
	if cached != nil {
		return cached, nil
	}

	baselines, err := d.listOperation(ctx, operation)
	if err != nil {
		return nil, err
	}
	if len(baselines) == 0 {
		return nil, fmt.Errorf("operation %s: %w", operation, ErrNoBaselineFound)
	}
	// Keys are chronological; the last entry is the newest.
	newest := baselines[len(baselines)-1]

	d.mu.Lock()
	if d.current[operation] == nil {
		d.current[operation] = newest
	}
	d.mu.Unlock()
	return newest, nil
}

// baselineByID loads a specific baseline, preferring the cache.
func (d *Detector) baselineByID(ctx context.Context, operation, baselineID string) (*Baseline, error) {
	d.mu.RLock()
	cached := d.current[operation]
	d.mu.RUnlock()
	if cached != nil && cached.ID == baselineID {
		return cached, nil
	}

	baselines, err := d.listOperation(ctx, operation)
	if err != nil {
		return nil, err
	}
	for _, b := range baselines {
		if b.ID == baselineID {
			return b, nil
		}
	}
	return nil, fmt.Errorf("baseline %s for operation %s: %w", baselineID, operation, ErrNoBaselineFound)
}

// listOperation returns the persisted baselines for one operation,
// oldest first.
func (d *Detector) listOperation(ctx context.Context, operation string) ([]*Baseline, error) {
	if d.store == nil {
		return nil, nil
	}
	entries, err := d.store.List(ctx, baselineKeyPrefix+operation+"/")
	if err != nil {
		return nil, fmt.Errorf("listing baselines for %s: %w", operation, err)
	}
	return decodeBaselines(d.logger, entries), nil
}

// -----------------------------------------------------------------------------
// Baseline Management
// -----------------------------------------------------------------------------

// ListBaselines returns recorded baselines, newest first. An empty
// operation lists baselines for every operation.
func (d *Detector) ListBaselines(ctx context.Context, operation string) ([]*Baseline, error) {
	if d.store == nil {
		return d.cachedBaselines(operation), nil
	}

	prefix := baselineKeyPrefix
	if operation != "" {
		prefix += operation + "/"
	}
	entries, err := d.store.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("listing baselines: %w", err)
	}

	baselines := decodeBaselines(d.logger, entries)
	// Store order is oldest-first; callers want the newest on top.
	for i, j := 0, len(baselines)-1; i < j; i, j = i+1, j-1 {
		baselines[i], baselines[j] = baselines[j], baselines[i]
	}
	return baselines, nil
}

// cachedBaselines snapshots the current cache, newest first by creation
// time.
func (d *Detector) cachedBaselines(operation string) []*Baseline {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []*Baseline
	for op, b := range d.current {
		if operation == "" || op == operation {
			out = append(out, b)
		}
	}
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].CreatedAt.After(out[i].CreatedAt) {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out
}

// CleanupOldBaselines deletes persisted baselines older than the
// retention window and returns how many were removed. Cached current
// baselines pointing at deleted records are dropped.
func (d *Detector) CleanupOldBaselines(ctx context.Context, retentionDays int) (int, error) {
	if d.store == nil {
		return 0, nil
	}
	if retentionDays < 1 {
		return 0, fmt.Errorf("retention days must be >= 1, got %d", retentionDays)
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
	entries, err := d.store.List(ctx, baselineKeyPrefix)
	if err != nil {
		return 0, fmt.Errorf("listing baselines for cleanup: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		var b Baseline
		if err := entry.Decode(&b); err != nil {
			d.logger.Warn("skipping undecodable baseline entry",
				slog.String("key", entry.Key),
				slog.String("error", err.Error()),
			)
			continue
		}
		if !b.CreatedAt.Before(cutoff) {
			continue
		}
		if err := d.store.Delete(ctx, entry.Key); err != nil {
			d.logger.Warn("baseline deletion failed",
				slog.String("key", entry.Key),
				slog.String("error", err.Error()),
			)
			continue
		}
		removed++

		d.mu.Lock()
		if cached := d.current[b.Operation]; cached != nil && cached.ID == b.ID {
			delete(d.current, b.Operation)
		}
		d.mu.Unlock()
	}

	if removed > 0 {
		d.logger.Info("stale baselines removed",
			slog.Int("count", removed),
			slog.Int("retention_days", retentionDays),
		)
	}
	return removed, nil
}

// decodeBaselines decodes store entries, skipping corrupt records.
func decodeBaselines(logger *slog.Logger, entries []store.Entry) []*Baseline {
	baselines := make([]*Baseline, 0, len(entries))
	for _, entry := range entries {
		if !strings.HasPrefix(entry.Key, baselineKeyPrefix) {
			continue
		}
		var b Baseline
		if err := entry.Decode(&b); err != nil {
			logger.Warn("skipping undecodable baseline entry",
				slog.String("key", entry.Key),
				slog.String("error", err.Error()),
			)
			continue
		}
		baselines = append(baselines, &b)
	}
	return baselines
}
