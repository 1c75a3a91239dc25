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
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/perfbench/regression"
)

// errRegressionDetected signals a regression verdict. Returning it instead
// of exiting directly lets deferred cleanup (store close) run before main
// maps it to a non-zero exit code.
var errRegressionDetected = errors.New("regression detected")

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	detectName       string // Operation name
	detectCommand    string // Shell command to sample
	detectURL        string // HTTP endpoint to sample
	detectIterations int    // Sample count
	detectWarmup     int    // Warmup iterations
	detectBaselineID string // Pin to a specific baseline
	detectJSONOutput bool   // Emit the verdict as JSON
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Check fresh samples against the recorded baseline",
	Long: `Samples the target and compares the results against the operation's
baseline. Exits non-zero when a regression is detected, so the command can
gate CI pipelines.

Examples:
  perfbench detect --name checkout --cmd "./checkout-sim"
  perfbench detect --name checkout --cmd "./checkout-sim" --baseline-id <id>
  perfbench detect --name health --url http://localhost:8080/healthz --json`,
	RunE: runDetectCommand,
}

func init() {
	detectCmd.Flags().StringVar(&detectName, "name", "", "Operation name (required)")
	detectCmd.Flags().StringVar(&detectCommand, "cmd", "", "Shell command to sample")
	detectCmd.Flags().StringVar(&detectURL, "url", "", "HTTP endpoint to sample")
	detectCmd.Flags().IntVar(&detectIterations, "iterations", 0, "Sample count (default from config)")
	detectCmd.Flags().IntVar(&detectWarmup, "warmup", -1, "Warmup iterations (default from config)")
	detectCmd.Flags().StringVar(&detectBaselineID, "baseline-id", "", "Compare against a specific baseline")
	detectCmd.Flags().BoolVar(&detectJSONOutput, "json", false, "Output the verdict as JSON")
	_ = detectCmd.MarkFlagRequired("name")
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func runDetectCommand(cmd *cobra.Command, args []string) error {
	op, err := buildOperation(detectCommand, detectURL)
	if err != nil {
		return err
	}

	st, err := openStore(appConfig)
	if err != nil {
		return err
	}
	defer st.Close()

	iterations := detectIterations
	if iterations <= 0 {
		iterations = appConfig.Benchmark.MeasurementIterations
	}
	warmup := detectWarmup
	if warmup < 0 {
		warmup = appConfig.Benchmark.WarmupIterations
	}

	samples, err := collectSamples(cmd.Context(), op, warmup, iterations)
	if err != nil {
		return err
	}

	var opts []regression.DetectOption
	if detectBaselineID != "" {
		opts = append(opts, regression.WithBaselineID(detectBaselineID))
	}

	detector := buildDetector(appConfig, st)
	result, err := detector.DetectRegression(cmd.Context(), detectName, samples, opts...)
	if err != nil {
		return err
	}

	if detectJSONOutput {
		if err := json.NewEncoder(os.Stdout).Encode(result); err != nil {
			return err
		}
	} else {
		printVerdict(result)
	}

	if result.HasRegression {
		return errRegressionDetected
	}
	return nil
}

// printVerdict renders the human-readable detection summary.
func printVerdict(r *regression.Result) {
	status := "OK"
	if r.HasRegression {
		status = "REGRESSION"
	}
	fmt.Printf("Verdict:     %s (severity %s, confidence %.2f)\n", status, r.Severity, r.Confidence)
	fmt.Printf("Latency:     baseline %.2fms -> current %.2fms (%+.1f%%)\n",
		r.BaselineMean, r.CurrentMean, r.PercentChange)
	fmt.Printf("Statistics:  significant=%v  effect size %.2f  p=%.2f\n",
		r.Significant, r.EffectSize, r.PValue)
	fmt.Printf("Baseline:    %s\n", r.BaselineID)
	if len(r.FailingMetrics) > 0 {
		fmt.Printf("Failing:     %v\n", r.FailingMetrics)
	}
	for _, rec := range r.Recommendations {
		fmt.Printf("  - %s\n", rec)
	}
}
