// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command perfbench benchmarks named operations, records baselines, and
// detects performance regressions.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/perfbench/config"
	"github.com/AleutianAI/perfbench/pkg/logging"
)

// =============================================================================
// GLOBAL STATE
// =============================================================================

var (
	configPath string
	logLevel   string

	appConfig *config.Config
	appLogger *logging.Logger
)

var rootCmd = &cobra.Command{
	Use:   "perfbench",
	Short: "Benchmark operations and detect performance regressions",
	Long: `perfbench measures the latency and resource cost of operations,
reduces raw samples to robust statistical summaries, and compares fresh
runs against recorded baselines.

Examples:
  perfbench run --name checkout --cmd "./checkout-sim"   # Benchmark a command
  perfbench run --name health --url http://localhost:8080/healthz
  perfbench baseline create --name checkout --cmd "./checkout-sim"
  perfbench detect --name checkout --cmd "./checkout-sim"
  perfbench serve                                        # Read-only HTTP API`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	err := rootCmd.Execute()
	code, report := exitCodeFor(err)
	if report {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(code)
}

// exitCodeFor maps a command error to the process exit code. A regression
// verdict exits non-zero without the error banner; the verdict was already
// printed by the command.
func exitCodeFor(err error) (code int, report bool) {
	switch {
	case err == nil:
		return 0, false
	case errors.Is(err, errRegressionDetected):
		return 1, false
	default:
		return 1, true
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Path to the YAML configuration file (defaults apply when omitted)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"Log level: debug, info, warn, error")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		appConfig = cfg
		appLogger = logging.New(logging.Config{
			Level:   logging.ParseLevel(logLevel),
			Service: "perfbench",
		})
		return nil
	}
	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		if appLogger != nil {
			_ = appLogger.Close()
		}
	}

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(baselineCmd)
	baselineCmd.AddCommand(baselineCreateCmd)
	baselineCmd.AddCommand(baselineListCmd)
	baselineCmd.AddCommand(baselineCleanupCmd)
	rootCmd.AddCommand(detectCmd)
	rootCmd.AddCommand(serveCmd)
}
