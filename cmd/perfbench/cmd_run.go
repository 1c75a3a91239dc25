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
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/perfbench/benchmark"
	"github.com/AleutianAI/perfbench/sampler"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	runName       string  // Operation name for history and persistence
	runCommand    string  // Shell command to benchmark
	runURL        string  // HTTP endpoint to probe
	runIterations int     // Measurement iterations (0 = config default)
	runWarmup     int     // Warmup iterations (-1 = config default)
	runTargetAvg  float64 // Target mean latency in ms (0 = no target)
	runTargetP95  float64 // Target p95 latency in ms
	runTargetP99  float64 // Target p99 latency in ms
	runJSONOutput bool    // Emit the full result as JSON
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Benchmark a command or HTTP endpoint",
	Long: `Runs a benchmark against a shell command or an HTTP endpoint,
producing a statistical latency summary with optional target grading.

Examples:
  perfbench run --name checkout --cmd "./checkout-sim"
  perfbench run --name health --url http://localhost:8080/healthz
  perfbench run --name checkout --cmd "./checkout-sim" \
      --target-avg 50 --target-p95 120 --target-p99 250
  perfbench run --name checkout --cmd "./checkout-sim" --json`,
	RunE: runBenchmarkCommand,
}

func init() {
	runCmd.Flags().StringVar(&runName, "name", "", "Operation name (required)")
	runCmd.Flags().StringVar(&runCommand, "cmd", "", "Shell command to benchmark")
	runCmd.Flags().StringVar(&runURL, "url", "", "HTTP endpoint to probe with GET")
	runCmd.Flags().IntVar(&runIterations, "iterations", 0, "Measurement iterations (default from config)")
	runCmd.Flags().IntVar(&runWarmup, "warmup", -1, "Warmup iterations (default from config)")
	runCmd.Flags().Float64Var(&runTargetAvg, "target-avg", 0, "Target mean latency in ms")
	runCmd.Flags().Float64Var(&runTargetP95, "target-p95", 0, "Target p95 latency in ms")
	runCmd.Flags().Float64Var(&runTargetP99, "target-p99", 0, "Target p99 latency in ms")
	runCmd.Flags().BoolVar(&runJSONOutput, "json", false, "Output the full result as JSON")
	_ = runCmd.MarkFlagRequired("name")
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func runBenchmarkCommand(cmd *cobra.Command, args []string) error {
	op, err := buildOperation(runCommand, runURL)
	if err != nil {
		return err
	}

	st, err := openStore(appConfig)
	if err != nil {
		return err
	}
	defer st.Close()

	sink, _, err := buildSink(appConfig)
	if err != nil {
		return err
	}
	defer sink.Close()

	engineOpts := []benchmark.EngineOption{
		benchmark.WithStore(st),
		benchmark.WithSink(sink),
		benchmark.WithLogger(appLogger.Slog()),
	}
	if ps, err := sampler.NewProcessSampler(); err == nil {
		engineOpts = append(engineOpts, benchmark.WithSampler(ps))
	} else {
		appLogger.Warn("resource sampling disabled", "error", err.Error())
	}

	runOpts := appConfig.Benchmark.RunOptions()
	if runIterations > 0 {
		runOpts = append(runOpts, benchmark.WithIterations(runIterations))
	}
	if runWarmup >= 0 {
		runOpts = append(runOpts, benchmark.WithWarmup(runWarmup))
	}
	if runTargetAvg > 0 || runTargetP95 > 0 || runTargetP99 > 0 {
		runOpts = append(runOpts, benchmark.WithTargets(runTargetAvg, runTargetP95, runTargetP99))
	}

	engine := benchmark.NewEngine(engineOpts...)
	result, err := engine.Run(cmd.Context(), runName, op, runOpts...)
	if err != nil {
		return err
	}

	if runJSONOutput {
		return json.NewEncoder(os.Stdout).Encode(result)
	}
	printResult(result)
	return nil
}

// printResult renders the human-readable run summary.
func printResult(r *benchmark.Result) {
	fmt.Printf("Operation:  %s (run %s)\n", r.Operation, r.RunID)
	fmt.Printf("Samples:    %d valid / %d raw (%d outliers removed, %d failed)\n",
		r.ValidSampleCount, r.RawSampleCount, r.OutliersRemoved, r.FailedIterations)
	fmt.Printf("Latency:    mean %.2fms  median %.2fms  p95 %.2fms  p99 %.2fms\n",
		r.Latency.Mean, r.Latency.Median, r.Latency.P95, r.Latency.P99)
	fmt.Printf("Spread:     min %.2fms  max %.2fms  stddev %.2fms  CI [%.2f, %.2f]\n",
		r.Latency.Min, r.Latency.Max, r.Latency.StdDev, r.Latency.CILow, r.Latency.CIHigh)
	if r.AvgCPUPercent > 0 || r.AvgMemoryMB > 0 {
		fmt.Printf("Resources:  cpu %.1f%%  memory %.1fMB\n", r.AvgCPUPercent, r.AvgMemoryMB)
	}
	fmt.Printf("Grade:      %s (targets met: %v)\n", r.Grade, r.MeetsTargets)
	if r.Trend != benchmark.TrendUnknown {
		fmt.Printf("Trend:      %s (%+.1f%%)\n", r.Trend, r.TrendChangePercent)
	}
}
