// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package sampler provides process resource sampling for benchmark runs.
//
// The benchmark engine samples CPU and resident memory of the host process
// once before and once after each measured iteration. Sampling is strictly
// best-effort: a failing sampler degrades resource accounting, never a run.
package sampler

import (
	"context"
	"errors"
	"os"

	"github.com/shirou/gopsutil/v3/process"
)

// ErrUnavailable indicates the sampler cannot observe the process.
var ErrUnavailable = errors.New("resource sampler unavailable")

// Usage is one resource observation of the host process.
//
// Thread Safety: Immutable after creation; safe for concurrent read access.
type Usage struct {
	// CPUPercent is the process CPU utilization in percent.
	CPUPercent float64 `json:"cpu_percent"`

	// ResidentMemoryMB is the resident set size in megabytes.
	ResidentMemoryMB float64 `json:"resident_memory_mb"`
}

// Sampler observes the resource usage of the current process.
//
// Thread Safety: Implementations must be safe for concurrent use.
type Sampler interface {
	// Sample returns one resource observation.
	Sample(ctx context.Context) (Usage, error)
}

// -----------------------------------------------------------------------------
// Process Sampler
// -----------------------------------------------------------------------------

// ProcessSampler samples the current OS process via gopsutil.
//
// Thread Safety: Safe for concurrent use.
type ProcessSampler struct {
	proc *process.Process
}

// NewProcessSampler creates a sampler bound to the current process.
//
// Outputs:
//   - *ProcessSampler: The sampler. Never nil on success.
//   - error: ErrUnavailable (wrapped) if the process cannot be inspected.
func NewProcessSampler() (*ProcessSampler, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, errors.Join(ErrUnavailable, err)
	}
	return &ProcessSampler{proc: proc}, nil
}

// Sample implements Sampler.
//
// CPU percent is computed over the interval since the previous call, which
// is how gopsutil's zero-interval mode works; the first observation of a
// fresh sampler reads as 0.
func (p *ProcessSampler) Sample(ctx context.Context) (Usage, error) {
	cpu, err := p.proc.PercentWithContext(ctx, 0)
	if err != nil {
		return Usage{}, errors.Join(ErrUnavailable, err)
	}
	mem, err := p.proc.MemoryInfoWithContext(ctx)
	if err != nil {
		return Usage{}, errors.Join(ErrUnavailable, err)
	}
	return Usage{
		CPUPercent:       cpu,
		ResidentMemoryMB: float64(mem.RSS) / (1024 * 1024),
	}, nil
}

// -----------------------------------------------------------------------------
// Static Sampler (for testing)
// -----------------------------------------------------------------------------

// StaticSampler returns a fixed Usage on every call. Useful for tests and
// for disabling resource accounting without nil checks in the engine.
type StaticSampler struct {
	usage Usage
	err   error
}

// NewStaticSampler creates a sampler that always returns the given usage.
func NewStaticSampler(usage Usage) *StaticSampler {
	return &StaticSampler{usage: usage}
}

// NewFailingSampler creates a sampler that always returns the given error.
func NewFailingSampler(err error) *StaticSampler {
	return &StaticSampler{err: err}
}

// Sample implements Sampler.
func (s *StaticSampler) Sample(_ context.Context) (Usage, error) {
	if s.err != nil {
		return Usage{}, s.err
	}
	return s.usage, nil
}

// Verify interface compliance at compile time.
var (
	_ Sampler = (*ProcessSampler)(nil)
	_ Sampler = (*StaticSampler)(nil)
)
