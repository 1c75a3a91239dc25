// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"time"

	"github.com/AleutianAI/perfbench/benchmark"
)

// =============================================================================
// PROBE TARGETS
// =============================================================================

// probeClient is shared by every HTTP probe iteration so connection reuse
// reflects steady-state behavior.
var probeClient = &http.Client{Timeout: 30 * time.Second}

// buildOperation turns the --cmd / --url flags into a benchmark target.
// Exactly one of the two must be set.
func buildOperation(command, url string) (benchmark.Operation, error) {
	switch {
	case command != "" && url != "":
		return nil, fmt.Errorf("--cmd and --url are mutually exclusive")
	case command != "":
		return commandOperation(command), nil
	case url != "":
		return httpOperation(url), nil
	default:
		return nil, fmt.Errorf("one of --cmd or --url is required")
	}
}

// commandOperation runs a shell command per iteration. A non-zero exit
// drops the iteration.
func commandOperation(command string) benchmark.Operation {
	return func(ctx context.Context) error {
		cmd := exec.CommandContext(ctx, "sh", "-c", command)
		if out, err := cmd.CombinedOutput(); err != nil {
			return fmt.Errorf("command failed: %w: %s", err, firstLine(out))
		}
		return nil
	}
}

// httpOperation issues a GET per iteration. Non-2xx responses drop the
// iteration.
func httpOperation(url string) benchmark.Operation {
	return func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("building probe request: %w", err)
		}
		resp, err := probeClient.Do(req)
		if err != nil {
			return fmt.Errorf("probe failed: %w", err)
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("probe returned %s", resp.Status)
		}
		return nil
	}
}

func firstLine(out []byte) string {
	for i, b := range out {
		if b == '\n' {
			return string(out[:i])
		}
	}
	return string(out)
}

// collectSamples runs the operation and times each successful call,
// returning latency samples in milliseconds. Used by the baseline and
// detect commands, which feed raw samples to the detector.
func collectSamples(ctx context.Context, op benchmark.Operation, warmup, iterations int) ([]float64, error) {
	for i := 0; i < warmup; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := op(ctx); err != nil {
			appLogger.Warn("warmup iteration failed", "iteration", i, "error", err.Error())
		}
	}

	samples := make([]float64, 0, iterations)
	for i := 0; i < iterations; i++ {
		if err := ctx.Err(); err != nil {
			return samples, err
		}
		start := time.Now()
		if err := op(ctx); err != nil {
			appLogger.Warn("iteration failed, dropping sample", "iteration", i, "error", err.Error())
			continue
		}
		samples = append(samples, float64(time.Since(start))/float64(time.Millisecond))
	}
	return samples, nil
}
