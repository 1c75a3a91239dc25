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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/perfbench/regression"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	baselineName        string // Operation name
	baselineCommand     string // Shell command to sample
	baselineURL         string // HTTP endpoint to sample
	baselineIterations  int    // Sample count
	baselineWarmup      int    // Warmup iterations
	baselineEnvironment string // Environment tag (ci, staging, prod)
	baselineVersion     string // Version under test
	baselineRetention   int    // Cleanup retention in days (0 = config default)
	baselineListAll     bool   // List baselines for every operation
)

// =============================================================================
// COMMAND DEFINITIONS
// =============================================================================

var baselineCmd = &cobra.Command{
	Use:   "baseline",
	Short: "Manage performance baselines",
}

var baselineCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Record a new baseline for an operation",
	Long: `Samples the target and records the resulting statistics as the
operation's current baseline. Older baselines are retained for pinned
comparisons until cleanup removes them.

Examples:
  perfbench baseline create --name checkout --cmd "./checkout-sim"
  perfbench baseline create --name health --url http://localhost:8080/healthz \
      --environment ci --version v1.4.0`,
	RunE: runBaselineCreate,
}

var baselineListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded baselines, newest first",
	RunE:  runBaselineList,
}

var baselineCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete baselines older than the retention window",
	RunE:  runBaselineCleanup,
}

func init() {
	baselineCreateCmd.Flags().StringVar(&baselineName, "name", "", "Operation name (required)")
	baselineCreateCmd.Flags().StringVar(&baselineCommand, "cmd", "", "Shell command to sample")
	baselineCreateCmd.Flags().StringVar(&baselineURL, "url", "", "HTTP endpoint to sample")
	baselineCreateCmd.Flags().IntVar(&baselineIterations, "iterations", 0, "Sample count (default from config)")
	baselineCreateCmd.Flags().IntVar(&baselineWarmup, "warmup", -1, "Warmup iterations (default from config)")
	baselineCreateCmd.Flags().StringVar(&baselineEnvironment, "environment", "", "Environment the baseline was captured in")
	baselineCreateCmd.Flags().StringVar(&baselineVersion, "version", "", "Software version under test")
	_ = baselineCreateCmd.MarkFlagRequired("name")

	baselineListCmd.Flags().StringVar(&baselineName, "name", "", "Filter by operation name")
	baselineListCmd.Flags().BoolVar(&baselineListAll, "all", false, "List baselines for every operation")

	baselineCleanupCmd.Flags().IntVar(&baselineRetention, "retention-days", 0, "Retention window in days (default from config)")
}

// =============================================================================
// COMMAND IMPLEMENTATIONS
// =============================================================================

func runBaselineCreate(cmd *cobra.Command, args []string) error {
	op, err := buildOperation(baselineCommand, baselineURL)
	if err != nil {
		return err
	}

	st, err := openStore(appConfig)
	if err != nil {
		return err
	}
	defer st.Close()

	iterations := baselineIterations
	if iterations <= 0 {
		iterations = appConfig.Benchmark.MeasurementIterations
	}
	warmup := baselineWarmup
	if warmup < 0 {
		warmup = appConfig.Benchmark.WarmupIterations
	}

	samples, err := collectSamples(cmd.Context(), op, warmup, iterations)
	if err != nil {
		return err
	}

	var opts []regression.BaselineOption
	if baselineEnvironment != "" {
		opts = append(opts, regression.WithEnvironment(baselineEnvironment))
	}
	if baselineVersion != "" {
		opts = append(opts, regression.WithVersion(baselineVersion))
	}

	detector := buildDetector(appConfig, st)
	baseline, err := detector.CreateBaseline(cmd.Context(), baselineName, samples, opts...)
	if err != nil {
		return err
	}

	fmt.Printf("Baseline %s recorded for %s\n", baseline.ID, baseline.Operation)
	fmt.Printf("Latency: mean %.2fms  p95 %.2fms  p99 %.2fms (%d samples)\n",
		baseline.Latency.Mean, baseline.Latency.P95, baseline.Latency.P99,
		baseline.Latency.SampleCount)
	return nil
}

func runBaselineList(cmd *cobra.Command, args []string) error {
	if baselineName == "" && !baselineListAll {
		return fmt.Errorf("either --name or --all is required")
	}

	st, err := openStore(appConfig)
	if err != nil {
		return err
	}
	defer st.Close()

	detector := buildDetector(appConfig, st)
	baselines, err := detector.ListBaselines(cmd.Context(), baselineName)
	if err != nil {
		return err
	}
	if len(baselines) == 0 {
		fmt.Println("No baselines recorded.")
		return nil
	}

	for _, b := range baselines {
		fmt.Printf("%s  %s  mean %.2fms  p95 %.2fms  %s",
			b.CreatedAt.Format("2006-01-02 15:04:05"), b.Operation,
			b.Latency.Mean, b.Latency.P95, b.ID)
		if b.Version != "" {
			fmt.Printf("  (%s)", b.Version)
		}
		fmt.Println()
	}
	return nil
}

func runBaselineCleanup(cmd *cobra.Command, args []string) error {
	st, err := openStore(appConfig)
	if err != nil {
		return err
	}
	defer st.Close()

	retention := baselineRetention
	if retention <= 0 {
		retention = appConfig.Detector.RetentionDays
	}

	detector := buildDetector(appConfig, st)
	removed, err := detector.CleanupOldBaselines(cmd.Context(), retention)
	if err != nil {
		return err
	}
	fmt.Printf("Removed %d baseline(s) older than %d days.\n", removed, retention)
	return nil
}
